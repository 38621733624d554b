// Package lifecycle owns the report state machine. Every mutation goes
// through the Manager: it validates the transition, commits it atomically via
// the store's optimistic-concurrency check, appends the audit entry, and fans
// out notifications. Classification and notification are asynchronous and
// non-blocking — their failures surface as report status fields, never as
// transition errors.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/firewatch-ph/firewatch/internal/audit"
	"github.com/firewatch-ph/firewatch/internal/classify"
	"github.com/firewatch-ph/firewatch/internal/notify"
	"github.com/firewatch-ph/firewatch/internal/report"
	"github.com/firewatch-ph/firewatch/internal/routing"
	"github.com/firewatch-ph/firewatch/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Notifier queues a transition notification. *notify.Dispatcher satisfies
// this interface; tests substitute a recorder.
type Notifier interface {
	Enqueue(channel notify.Channel, event notify.Event, snap *report.Report)
}

// MetricsRecorder is an optional callback recording committed transitions.
type MetricsRecorder func(event string)

// Manager is the report lifecycle state machine.
type Manager struct {
	store      store.Store
	classifier classify.Classifier // nil = manual classification only
	notifier   Notifier            // nil = no notifications
	auditLog   audit.Log           // nil = no audit trail
	logger     *zap.Logger

	classifyTimeout time.Duration
	onMetrics       MetricsRecorder
	onAuditAppend   func()

	// wg tracks in-flight classification goroutines; Wait drains them.
	wg sync.WaitGroup
}

// NewManager creates a Manager. classifier, notifier, and auditLog may each
// be nil to disable that collaborator.
func NewManager(st store.Store, classifier classify.Classifier, notifier Notifier, auditLog audit.Log, logger *zap.Logger) *Manager {
	return &Manager{
		store:           st,
		classifier:      classifier,
		notifier:        notifier,
		auditLog:        auditLog,
		logger:          logger,
		classifyTimeout: classify.DefaultTimeout,
	}
}

// SetClassifyTimeout bounds a single classification attempt.
func (m *Manager) SetClassifyTimeout(d time.Duration) {
	if d > 0 {
		m.classifyTimeout = d
	}
}

// SetMetricsRecorder configures the transition metrics callback.
func (m *Manager) SetMetricsRecorder(fn MetricsRecorder) {
	m.onMetrics = fn
}

// SetAuditMetricsRecorder configures a callback fired on every successful
// audit chain append.
func (m *Manager) SetAuditMetricsRecorder(fn func()) {
	m.onAuditAppend = fn
}

// Wait blocks until all in-flight classification goroutines finish.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Submit accepts a citizen report, acknowledges immediately, and dispatches
// classification in the background. The returned snapshot is already
// persisted with status Pending.
func (m *Manager) Submit(ctx context.Context, req *report.SubmitRequest) (*report.Report, error) {
	if err := validateSubmit(req); err != nil {
		return nil, err
	}

	r := &report.Report{
		ID:          uuid.New(),
		Kind:        req.Kind,
		Location:    req.Location,
		Description: strings.TrimSpace(req.Description),
		MediaRefs:   req.MediaRefs,
		ReporterID:  req.ReporterID,
		Severity:    report.SeverityUnclassified,
		RoutedTo:    report.TargetUnrouted,
		ClassifierState: report.ClassifierNone,
	}
	if m.classifier != nil {
		r.ClassifierState = report.ClassifierPending
	}
	r.AppendHistory(report.StatusPending, req.ReporterID, "report submitted")

	if err := m.store.Create(ctx, r); err != nil {
		m.logger.Error("failed to create report", zap.Error(err))
		return nil, fmt.Errorf("create report: %w", err)
	}

	m.logger.Info("report submitted",
		zap.String("report_id", r.ID.String()),
		zap.String("kind", string(r.Kind)),
		zap.String("reporter_id", r.ReporterID),
	)
	m.appendAudit(ctx, r.ID, "submit", req.ReporterID, map[string]string{
		"kind":     string(r.Kind),
		"location": r.Location.Description,
	})
	m.record("submit")

	if m.classifier != nil {
		m.dispatchClassification(r)
	}
	return r, nil
}

// Get returns a read-only snapshot of a report.
func (m *Manager) Get(ctx context.Context, id uuid.UUID) (*report.Report, error) {
	return m.store.Get(ctx, id)
}

// List returns snapshots of all reports, newest first.
func (m *Manager) List(ctx context.Context) ([]*report.Report, error) {
	return m.store.List(ctx)
}

// OverrideSeverity sets the severity label manually. Allowed only before
// dispatch; the override clears the classifier confidence entirely, and a
// stale automated verdict arriving afterwards is discarded, never applied.
func (m *Manager) OverrideSeverity(ctx context.Context, id uuid.UUID, label report.Severity, operatorID, reason string) (*report.Report, error) {
	if !label.Classified() {
		return nil, &report.ErrValidation{Msg: fmt.Sprintf("severity %q is not an assignable label", label)}
	}

	r, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !r.Status.PreDispatch() {
		return nil, fmt.Errorf("override severity in status %s: %w", r.Status, report.ErrInvalidTransition)
	}

	r.Severity = label
	r.Confidence = nil // override supersedes the classifier verdict entirely
	if r.Status == report.StatusPending {
		r.RoutedTo = routing.Recommend(r.Kind, label).Target
	}
	note := fmt.Sprintf("severity overridden to %s", label)
	if reason != "" {
		note += ": " + reason
	}
	r.AppendHistory(r.Status, operatorID, note)

	if err := m.store.Update(ctx, r); err != nil {
		return nil, err
	}

	m.appendAudit(ctx, id, "override_severity", operatorID, map[string]string{
		"label":  string(label),
		"reason": reason,
	})
	m.record("override_severity")
	return r, nil
}

// Route dispatches a report to a responder class. Legal only from Pending.
// Departing from the router's recommendation requires an override reason
// code, which is recorded for the audit trail.
func (m *Manager) Route(ctx context.Context, id uuid.UUID, target report.Target, operatorID string, reason routing.OverrideReason) (*report.Report, error) {
	if !target.Routable() {
		return nil, &report.ErrValidation{Msg: fmt.Sprintf("target %q is not a responder class", target)}
	}

	r, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canTransition(r.Status, report.StatusDispatched) {
		return nil, fmt.Errorf("route from status %s: %w", r.Status, report.ErrInvalidTransition)
	}

	rec := routing.Recommend(r.Kind, r.Severity)
	note := fmt.Sprintf("dispatched to %s", target)
	if rec.Target != report.TargetUnrouted && rec.Target != target {
		if reason == "" {
			return nil, &report.ErrValidation{Msg: "override reason code required when departing from the routing recommendation"}
		}
		if !routing.ValidReason(reason) {
			return nil, &report.ErrValidation{Msg: fmt.Sprintf("unknown override reason code %q", reason)}
		}
		note = fmt.Sprintf("dispatched to %s, overriding recommendation %s (%s)", target, rec.Target, reason)
	}

	r.RoutedTo = target
	r.AppendHistory(report.StatusDispatched, operatorID, note)

	if err := m.store.Update(ctx, r); err != nil {
		return nil, err
	}

	m.logger.Info("report dispatched",
		zap.String("report_id", id.String()),
		zap.String("target", string(target)),
		zap.String("operator_id", operatorID),
	)
	m.appendAudit(ctx, id, "route", operatorID, map[string]string{
		"target":      string(target),
		"recommended": string(rec.Target),
		"reason":      string(reason),
	})
	m.record("route")

	if ch, ok := notify.ChannelForTarget(target); ok {
		m.enqueue(ch, notify.EventDispatched, r)
	}
	m.enqueue(notify.ChannelReporter, notify.EventDispatched, r)
	return r, nil
}

// RequestMoreInfo moves a Pending report to PendingAdditionalInfo and asks the
// reporter for details. Any routing recommendation is reset.
func (m *Manager) RequestMoreInfo(ctx context.Context, id uuid.UUID, operatorID string) (*report.Report, error) {
	r, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status != report.StatusPending {
		return nil, fmt.Errorf("request more info from status %s: %w", r.Status, report.ErrInvalidTransition)
	}

	r.RoutedTo = report.TargetUnrouted
	r.AppendHistory(report.StatusPendingInfo, operatorID, "additional information requested from reporter")

	if err := m.store.Update(ctx, r); err != nil {
		return nil, err
	}

	m.appendAudit(ctx, id, "request_info", operatorID, nil)
	m.record("request_info")
	m.enqueue(notify.ChannelReporter, notify.EventInfoRequested, r)
	return r, nil
}

// SupplementInfo records the reporter's additional details and moves the
// report back to Pending, starting a fresh classification cycle: the old
// verdict is cleared and routing stays unrouted until reclassified.
func (m *Manager) SupplementInfo(ctx context.Context, id uuid.UUID, note string) (*report.Report, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		return nil, &report.ErrValidation{Msg: "supplement note must not be empty"}
	}

	r, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status != report.StatusPendingInfo {
		return nil, fmt.Errorf("supplement info from status %s: %w", r.Status, report.ErrInvalidTransition)
	}

	r.Description = r.Description + "\n\n" + note
	r.Severity = report.SeverityUnclassified
	r.Confidence = nil
	r.RoutedTo = report.TargetUnrouted
	r.ClassifierState = report.ClassifierNone
	if m.classifier != nil {
		r.ClassifierState = report.ClassifierPending
	}
	r.AppendHistory(report.StatusPending, r.ReporterID, "reporter supplied additional information")

	if err := m.store.Update(ctx, r); err != nil {
		return nil, err
	}

	m.appendAudit(ctx, id, "supplement", r.ReporterID, nil)
	m.record("supplement")

	if m.classifier != nil {
		m.dispatchClassification(r)
	}
	return r, nil
}

// Resolve closes a dispatched report as handled and notifies the reporter.
func (m *Manager) Resolve(ctx context.Context, id uuid.UUID, operatorID string) (*report.Report, error) {
	r, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canTransition(r.Status, report.StatusResolved) {
		return nil, fmt.Errorf("resolve from status %s: %w", r.Status, report.ErrInvalidTransition)
	}

	r.AppendHistory(report.StatusResolved, operatorID, "report resolved")

	if err := m.store.Update(ctx, r); err != nil {
		return nil, err
	}

	m.appendAudit(ctx, id, "resolve", operatorID, nil)
	m.record("resolve")
	m.enqueue(notify.ChannelReporter, notify.EventResolved, r)
	return r, nil
}

// Reject closes a report as a false alarm. Legal from any non-terminal state.
func (m *Manager) Reject(ctx context.Context, id uuid.UUID, operatorID, reason string) (*report.Report, error) {
	r, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canTransition(r.Status, report.StatusRejected) {
		return nil, fmt.Errorf("reject from status %s: %w", r.Status, report.ErrInvalidTransition)
	}

	note := "report rejected as false alarm"
	if reason != "" {
		note += ": " + reason
	}
	r.AppendHistory(report.StatusRejected, operatorID, note)

	if err := m.store.Update(ctx, r); err != nil {
		return nil, err
	}

	m.appendAudit(ctx, id, "reject", operatorID, map[string]string{"reason": reason})
	m.record("reject")
	m.enqueue(notify.ChannelReporter, notify.EventRejected, r)
	return r, nil
}

// AmendLocation corrects the submitted location. Allowed only while Pending —
// once confirmed past intake the location is immutable.
func (m *Manager) AmendLocation(ctx context.Context, id uuid.UUID, loc report.Location, actor string) (*report.Report, error) {
	if err := validateLocation(loc); err != nil {
		return nil, err
	}

	r, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status != report.StatusPending {
		return nil, fmt.Errorf("amend location in status %s: %w", r.Status, report.ErrInvalidTransition)
	}

	r.Location = loc
	r.AppendHistory(r.Status, actor, "location amended")

	if err := m.store.Update(ctx, r); err != nil {
		return nil, err
	}
	m.appendAudit(ctx, id, "amend_location", actor, map[string]string{"location": loc.Description})
	return r, nil
}

// ── Async classification ──────────────────────────────────────────────────────

// dispatchClassification fires the classifier in the background. The intake
// path never waits on it.
func (m *Manager) dispatchClassification(snap *report.Report) {
	in := classify.Input{
		ReportID:     snap.ID,
		Kind:         snap.Kind,
		Description:  snap.Description,
		LocationDesc: snap.Location.Description,
		MediaCount:   len(snap.MediaRefs),
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), m.classifyTimeout)
		defer cancel()

		res, err := m.classifier.Classify(ctx, in)
		if err != nil {
			m.logger.Warn("classification unavailable, falling back to manual path",
				zap.String("report_id", in.ReportID.String()),
				zap.Error(err),
			)
			m.markClassifierUnavailable(in.ReportID)
			m.record("classification_unavailable")
			return
		}
		m.commitClassification(in.ReportID, res)
	}()
}

// commitClassification applies an automated verdict through the optimistic-
// concurrency loop. A verdict is stale — and silently discarded — when the
// report has left Pending or an operator has already set the severity; an
// override always beats a late automated write.
func (m *Manager) commitClassification(id uuid.UUID, res classify.Result) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for try := 0; try < 5; try++ {
		r, err := m.store.Get(ctx, id)
		if err != nil {
			m.logger.Warn("load report for classification commit", zap.Error(err))
			return
		}
		if r.Status != report.StatusPending || r.Severity != report.SeverityUnclassified {
			m.logger.Info("stale classification result discarded",
				zap.String("report_id", id.String()),
				zap.String("status", string(r.Status)),
				zap.String("severity", string(r.Severity)),
			)
			return
		}

		conf := res.Confidence
		r.Severity = res.Label
		r.Confidence = &conf
		r.ClassifierState = report.ClassifierComplete
		rec := routing.Recommend(r.Kind, res.Label)
		r.RoutedTo = rec.Target
		r.AppendHistory(report.StatusPending, "classifier",
			fmt.Sprintf("classified %s (confidence %.2f); recommended %s", res.Label, res.Confidence, rec.Target))

		err = m.store.Update(ctx, r)
		if err == nil {
			m.appendAudit(ctx, id, "classify", audit.SystemActor, map[string]string{
				"label":       string(res.Label),
				"recommended": string(rec.Target),
			})
			m.record("classification_complete")
			return
		}
		if !errors.Is(err, report.ErrStaleVersion) {
			m.logger.Warn("commit classification", zap.Error(err))
			return
		}
		// Lost the race; re-read and re-check whether the verdict still applies.
	}
	m.logger.Warn("classification commit abandoned after repeated conflicts",
		zap.String("report_id", id.String()),
	)
}

// markClassifierUnavailable flips the observable classifier state so operators
// know the manual path is required. Best-effort.
func (m *Manager) markClassifierUnavailable(id uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for try := 0; try < 5; try++ {
		r, err := m.store.Get(ctx, id)
		if err != nil {
			return
		}
		if r.ClassifierState != report.ClassifierPending {
			return
		}
		r.ClassifierState = report.ClassifierUnavailable
		err = m.store.Update(ctx, r)
		if err == nil || !errors.Is(err, report.ErrStaleVersion) {
			return
		}
	}
}

// ── Helpers ──────────────────────────────────────────────────────────────────

// appendAudit writes an audit entry in a non-fatal manner.
func (m *Manager) appendAudit(ctx context.Context, id uuid.UUID, event, actor string, payload any) {
	if m.auditLog == nil {
		return
	}
	if _, err := m.auditLog.Append(ctx, id.String(), event, actor, payload); err != nil {
		m.logger.Error("audit append failed (non-fatal)",
			zap.String("event", event),
			zap.String("report_id", id.String()),
			zap.Error(err),
		)
		return
	}
	if m.onAuditAppend != nil {
		m.onAuditAppend()
	}
}

func (m *Manager) enqueue(ch notify.Channel, event notify.Event, snap *report.Report) {
	if m.notifier == nil {
		return
	}
	m.notifier.Enqueue(ch, event, snap.Clone())
}

func (m *Manager) record(event string) {
	if m.onMetrics != nil {
		m.onMetrics(event)
	}
}

func validateSubmit(req *report.SubmitRequest) error {
	if !req.Kind.Valid() {
		return &report.ErrValidation{Msg: fmt.Sprintf("unknown report kind %q", req.Kind)}
	}
	if strings.TrimSpace(req.Description) == "" {
		return &report.ErrValidation{Msg: "description is required"}
	}
	if strings.TrimSpace(req.ReporterID) == "" {
		return &report.ErrValidation{Msg: "reporter_id is required"}
	}
	return validateLocation(req.Location)
}

func validateLocation(loc report.Location) error {
	if strings.TrimSpace(loc.Description) == "" && loc.Lat == 0 && loc.Lng == 0 {
		return &report.ErrValidation{Msg: "location is required: provide coordinates or a description"}
	}
	return nil
}
