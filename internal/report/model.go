package report

import (
	"time"

	"github.com/google/uuid"
)

// Kind distinguishes time-critical fire incidents from standing hazard reports.
type Kind string

const (
	KindUrgentIncident Kind = "urgent_incident"
	KindHazardReport   Kind = "hazard_report"
)

// Valid reports whether k is a known report kind.
func (k Kind) Valid() bool {
	return k == KindUrgentIncident || k == KindHazardReport
}

// Severity is the triage label attached to a report.
type Severity string

const (
	SeverityUnclassified Severity = "unclassified"
	SeverityMinor        Severity = "minor"
	SeverityMajor        Severity = "major"
)

// Valid reports whether s is a known severity value.
func (s Severity) Valid() bool {
	return s == SeverityUnclassified || s == SeverityMinor || s == SeverityMajor
}

// Classified reports whether s is a label a classifier or operator may assign.
// SeverityUnclassified is the intake default, never an assignable label.
func (s Severity) Classified() bool {
	return s == SeverityMinor || s == SeverityMajor
}

// Target is the responder class a report is routed to.
type Target string

const (
	TargetUnrouted          Target = "unrouted"
	TargetBarangayOfficials Target = "barangay_officials"
	TargetBFP               Target = "bfp"
)

// Routable reports whether t is a responder class an operator may dispatch to.
func (t Target) Routable() bool {
	return t == TargetBarangayOfficials || t == TargetBFP
}

// Status is the lifecycle state of a report.
type Status string

const (
	StatusPending     Status = "pending"
	StatusPendingInfo Status = "pending_additional_info"
	StatusDispatched  Status = "dispatched"
	StatusResolved    Status = "resolved"
	StatusRejected    Status = "rejected"
)

// Valid reports whether s is a known lifecycle status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPendingInfo, StatusDispatched, StatusResolved, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are legal from s.
func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusRejected
}

// PreDispatch reports whether s precedes dispatch. Severity and location are
// mutable only in these states, and routedTo must be Unrouted while in them.
func (s Status) PreDispatch() bool {
	return s == StatusPending || s == StatusPendingInfo
}

// ClassifierState is the observable state of the automated classification
// pipeline for a report. It is informational only; the lifecycle never blocks
// on it.
type ClassifierState string

const (
	ClassifierNone        ClassifierState = "none"        // no classifier configured
	ClassifierPending     ClassifierState = "pending"     // classification dispatched, result awaited
	ClassifierComplete    ClassifierState = "complete"    // result committed
	ClassifierUnavailable ClassifierState = "unavailable" // upstream failed; manual path
)

// Location is a coordinate plus a free-text description (street, barangay).
type Location struct {
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	Description string  `json:"description"`
}

// HistoryEntry is one append-only status audit record.
type HistoryEntry struct {
	Status Status    `json:"status"`
	Actor  string    `json:"actor"`
	Note   string    `json:"note,omitempty"`
	At     time.Time `json:"at"`
}

// DeliveryState is the operator-visible outcome of one notification channel.
type DeliveryState string

const (
	DeliveryPending   DeliveryState = "pending"
	DeliveryDelivered DeliveryState = "delivered"
	DeliveryFailed    DeliveryState = "failed"
)

// DeliveryRecord tracks notification delivery per channel. Delivery failures
// surface here; they never reopen or fail the report itself.
type DeliveryRecord struct {
	Channel   string        `json:"channel"`
	Event     string        `json:"event"`
	State     DeliveryState `json:"state"`
	Attempts  int           `json:"attempts"`
	LastError string        `json:"last_error,omitempty"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Report is the central entity of the engine. The store owns it exclusively;
// readers only ever see Clone()d snapshots.
type Report struct {
	ID          uuid.UUID `json:"id"`
	Kind        Kind      `json:"kind"`
	Location    Location  `json:"location"`
	Description string    `json:"description"`
	MediaRefs   []string  `json:"media_refs,omitempty"`
	ReporterID  string    `json:"reporter_id"`
	Severity    Severity  `json:"severity"`
	// Confidence is present iff Severity was set by the classifier and has not
	// since been overridden by an operator. A manual override clears it.
	Confidence      *float64         `json:"confidence,omitempty"`
	RoutedTo        Target           `json:"routed_to"`
	Status          Status           `json:"status"`
	ClassifierState ClassifierState  `json:"classifier_state"`
	History         []HistoryEntry   `json:"history"`
	Deliveries      []DeliveryRecord `json:"deliveries,omitempty"`
	// Version is the optimistic-concurrency token. Every committed update
	// increments it; a write carrying an old version fails with ErrStaleVersion.
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy safe to hand to readers.
func (r *Report) Clone() *Report {
	c := *r
	if r.Confidence != nil {
		v := *r.Confidence
		c.Confidence = &v
	}
	c.MediaRefs = append([]string(nil), r.MediaRefs...)
	c.History = append([]HistoryEntry(nil), r.History...)
	c.Deliveries = append([]DeliveryRecord(nil), r.Deliveries...)
	return &c
}

// AppendHistory records a status entry and synchronises Status with it, so the
// "last history entry equals current status" invariant holds by construction.
func (r *Report) AppendHistory(status Status, actor, note string) {
	r.Status = status
	r.History = append(r.History, HistoryEntry{
		Status: status,
		Actor:  actor,
		Note:   note,
		At:     time.Now().UTC(),
	})
}

// SetDelivery upserts the delivery record for a channel/event pair.
func (r *Report) SetDelivery(channel, event string, state DeliveryState, attempts int, lastErr string) {
	now := time.Now().UTC()
	for i := range r.Deliveries {
		if r.Deliveries[i].Channel == channel && r.Deliveries[i].Event == event {
			r.Deliveries[i].State = state
			r.Deliveries[i].Attempts = attempts
			r.Deliveries[i].LastError = lastErr
			r.Deliveries[i].UpdatedAt = now
			return
		}
	}
	r.Deliveries = append(r.Deliveries, DeliveryRecord{
		Channel:   channel,
		Event:     event,
		State:     state,
		Attempts:  attempts,
		LastError: lastErr,
		UpdatedAt: now,
	})
}

// SubmitRequest is the intake payload for a new report.
type SubmitRequest struct {
	Kind        Kind     `json:"kind"        binding:"required"`
	Location    Location `json:"location"`
	Description string   `json:"description" binding:"required"`
	MediaRefs   []string `json:"media_refs"`
	ReporterID  string   `json:"reporter_id" binding:"required"`
}
