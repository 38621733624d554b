// Package notify fans out transition notifications to the reporter, the
// barangay officials, and the BFP. Delivery is at-least-once with bounded
// retries and backoff; outcomes are written back to the report's
// operator-visible delivery records and never propagate to the state machine.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/firewatch-ph/firewatch/internal/report"
	"github.com/firewatch-ph/firewatch/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Channel identifies a notification audience. Each channel has its own queue
// and a single consumer goroutine, so retries on one channel never delay the
// others (multiple-producer/single-consumer per channel).
type Channel string

const (
	ChannelReporter Channel = "reporter"
	ChannelBarangay Channel = "barangay_officials"
	ChannelBFP      Channel = "bfp"
)

// ChannelForTarget maps a routing target to its notification channel.
func ChannelForTarget(t report.Target) (Channel, bool) {
	switch t {
	case report.TargetBarangayOfficials:
		return ChannelBarangay, true
	case report.TargetBFP:
		return ChannelBFP, true
	}
	return "", false
}

// Event names the lifecycle transition that triggered a notification.
type Event string

const (
	EventDispatched    Event = "dispatched"
	EventInfoRequested Event = "info_requested"
	EventResolved      Event = "resolved"
	EventRejected      Event = "rejected"
)

// MetricsRecorder is an optional callback for recording delivery outcomes.
type MetricsRecorder func(channel string, success bool)

type job struct {
	reportID  uuid.UUID
	channel   Channel
	event     Event
	recipient string
	subject   string
	body      string
}

// Dispatcher queues and delivers notifications.
type Dispatcher struct {
	store      store.Store
	sender     Sender
	logger     *zap.Logger
	recipients map[Channel]string
	onMetrics  MetricsRecorder

	// backoff[n] is the sleep before attempt n (1-based); len-1 = max attempts.
	backoff []time.Duration

	queues map[Channel]chan job
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// queueDepth is the per-channel buffer; Enqueue never blocks a transition, so
// an overfull queue fails the delivery record instead of the caller.
const queueDepth = 64

// NewDispatcher creates a Dispatcher and starts one consumer per channel.
// recipients maps the barangay and BFP channels to their contact addresses;
// the reporter channel always uses the report's own reporter ID.
func NewDispatcher(st store.Store, sender Sender, recipients map[Channel]string, logger *zap.Logger) *Dispatcher {
	d := &Dispatcher{
		store:      st,
		sender:     sender,
		logger:     logger,
		recipients: recipients,
		backoff:    []time.Duration{0, 1 * time.Second, 5 * time.Second, 25 * time.Second},
		queues:     make(map[Channel]chan job),
	}
	for _, ch := range []Channel{ChannelReporter, ChannelBarangay, ChannelBFP} {
		q := make(chan job, queueDepth)
		d.queues[ch] = q
		d.wg.Add(1)
		go d.consume(q)
	}
	return d
}

// SetMetricsRecorder configures the metrics callback.
func (d *Dispatcher) SetMetricsRecorder(fn MetricsRecorder) {
	d.onMetrics = fn
}

// SetBackoff replaces the retry schedule. backoff[n] is the delay before
// attempt n (index 0 unused); the schedule length fixes the attempt count.
func (d *Dispatcher) SetBackoff(backoff []time.Duration) {
	d.backoff = backoff
}

// Enqueue queues a notification for the given channel about a transition on
// the report. Never blocks and never returns an error: a full or closed queue
// is recorded as a failed delivery on the report.
func (d *Dispatcher) Enqueue(channel Channel, event Event, snap *report.Report) {
	recipient := d.recipientFor(channel, snap)
	subject, body := buildMessage(event, snap)
	j := job{
		reportID:  snap.ID,
		channel:   channel,
		event:     event,
		recipient: recipient,
		subject:   subject,
		body:      body,
	}

	d.recordDelivery(j.reportID, channel, event, report.DeliveryPending, 0, "")

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		d.recordDelivery(j.reportID, channel, event, report.DeliveryFailed, 0, "dispatcher closed")
		return
	}
	select {
	case d.queues[channel] <- j:
	default:
		d.logger.Error("notify: queue full, delivery dropped",
			zap.String("channel", string(channel)),
			zap.String("report_id", snap.ID.String()),
		)
		d.recordDelivery(j.reportID, channel, event, report.DeliveryFailed, 0, "queue full")
	}
}

// Close stops the consumers after draining queued jobs.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, q := range d.queues {
		close(q)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) consume(q chan job) {
	defer d.wg.Done()
	for j := range q {
		d.deliver(j)
	}
}

// deliver attempts delivery with backoff. At-least-once: transient failures
// retry; exhausting the schedule marks the delivery failed, nothing more.
func (d *Dispatcher) deliver(j job) {
	maxAttempts := len(d.backoff) - 1
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if d.backoff[attempt] > 0 {
			time.Sleep(d.backoff[attempt])
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := d.sender.Send(ctx, j.recipient, j.subject, j.body)
		cancel()

		if err == nil {
			d.recordDelivery(j.reportID, j.channel, j.event, report.DeliveryDelivered, attempt, "")
			if d.onMetrics != nil {
				d.onMetrics(string(j.channel), true)
			}
			return
		}

		d.logger.Warn("notify: delivery attempt failed",
			zap.String("channel", string(j.channel)),
			zap.String("report_id", j.reportID.String()),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)

		if attempt == maxAttempts {
			d.recordDelivery(j.reportID, j.channel, j.event, report.DeliveryFailed, attempt, err.Error())
			if d.onMetrics != nil {
				d.onMetrics(string(j.channel), false)
			}
		}
	}
}

// recordDelivery writes a delivery outcome to the report through the store's
// optimistic-concurrency loop. Losing a race just means re-reading; giving up
// after several conflicts is logged and otherwise absorbed.
func (d *Dispatcher) recordDelivery(id uuid.UUID, channel Channel, event Event, state report.DeliveryState, attempts int, lastErr string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for try := 0; try < 5; try++ {
		r, err := d.store.Get(ctx, id)
		if err != nil {
			d.logger.Warn("notify: load report for delivery record", zap.Error(err))
			return
		}
		r.SetDelivery(string(channel), string(event), state, attempts, lastErr)
		err = d.store.Update(ctx, r)
		if err == nil {
			return
		}
		if !errors.Is(err, report.ErrStaleVersion) {
			d.logger.Warn("notify: write delivery record", zap.Error(err))
			return
		}
	}
	d.logger.Warn("notify: delivery record lost optimistic-concurrency race repeatedly",
		zap.String("report_id", id.String()),
		zap.String("channel", string(channel)),
	)
}

func (d *Dispatcher) recipientFor(channel Channel, snap *report.Report) string {
	if channel == ChannelReporter {
		return snap.ReporterID
	}
	if addr, ok := d.recipients[channel]; ok && addr != "" {
		return addr
	}
	return string(channel)
}

// buildMessage renders the subject and body for a transition notification.
func buildMessage(event Event, snap *report.Report) (subject, body string) {
	where := snap.Location.Description
	if where == "" {
		where = fmt.Sprintf("%.5f,%.5f", snap.Location.Lat, snap.Location.Lng)
	}

	switch event {
	case EventDispatched:
		subject = fmt.Sprintf("[FireWatch] Report %s dispatched to %s", shortID(snap.ID), snap.RoutedTo)
	case EventInfoRequested:
		subject = fmt.Sprintf("[FireWatch] Report %s needs more information", shortID(snap.ID))
	case EventResolved:
		subject = fmt.Sprintf("[FireWatch] Report %s resolved", shortID(snap.ID))
	case EventRejected:
		subject = fmt.Sprintf("[FireWatch] Report %s closed as false alarm", shortID(snap.ID))
	default:
		subject = fmt.Sprintf("[FireWatch] Report %s updated", shortID(snap.ID))
	}

	body = fmt.Sprintf(
		"Report:   %s\nKind:     %s\nSeverity: %s\nStatus:   %s\nLocation: %s\n\n%s\n",
		snap.ID, snap.Kind, snap.Severity, snap.Status, where, snap.Description,
	)
	return subject, body
}

func shortID(id uuid.UUID) string {
	s := id.String()
	return s[:8]
}
