// Package notify delivers outbox events. State-changing transactions
// insert events; the Dispatcher polls and hands them to a Sender. Delivery
// is best-effort and decoupled: a failed send never touches the state
// change that produced the event.
package notify

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"printbroker/db"
	"printbroker/internal/metrics"
)

// MaxAttempts before an event is parked as FAILED.
const MaxAttempts = 5

// Sender delivers one event. The production implementation is the mail
// transport; tests and local runs use LogSender.
type Sender interface {
	Send(ctx context.Context, ev db.NotificationEvent) error
}

// LogSender logs instead of sending.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, ev db.NotificationEvent) error {
	log.Printf("notify [%s] to=%q subject=%q", ev.Kind, ev.Recipient, ev.Subject)
	return nil
}

// OutboxStore is the slice of storage the dispatcher needs.
type OutboxStore interface {
	ClaimPendingEvents(ctx context.Context, limit int) ([]db.NotificationEvent, error)
	MarkEventSent(ctx context.Context, id int64) error
	MarkEventFailed(ctx context.Context, id int64, lastError string, maxAttempts int) error
}

type Dispatcher struct {
	Store    OutboxStore
	Sender   Sender
	Interval time.Duration
	Batch    int
}

func NewDispatcher(store OutboxStore, sender Sender) *Dispatcher {
	return &Dispatcher{
		Store:    store,
		Sender:   sender,
		Interval: 5 * time.Second,
		Batch:    20,
	}
}

// Run polls the outbox until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.DispatchPending(ctx); err != nil {
				log.Printf("outbox dispatch: %v", err)
			}
		}
	}
}

// DispatchPending delivers one batch of pending events.
func (d *Dispatcher) DispatchPending(ctx context.Context) error {
	events, err := d.Store.ClaimPendingEvents(ctx, d.Batch)
	if err != nil {
		return err
	}
	for _, ev := range events {
		if err := d.Sender.Send(ctx, ev); err != nil {
			log.Printf("notify %d (%s) failed: %v", ev.ID, ev.Kind, err)
			metrics.NotificationsSent.WithLabelValues("failed").Inc()
			if err := d.Store.MarkEventFailed(ctx, ev.ID, err.Error(), MaxAttempts); err != nil {
				return err
			}
			continue
		}
		metrics.NotificationsSent.WithLabelValues("sent").Inc()
		if err := d.Store.MarkEventSent(ctx, ev.ID); err != nil {
			return err
		}
	}
	return nil
}

// TrackingURL builds a carrier deep link by name matching. Unrecognized
// carriers get no link, just the raw number in the notification body.
func TrackingURL(carrier, trackingNumber string) string {
	c := strings.ToLower(carrier)
	switch {
	case strings.Contains(c, "ups"):
		return "https://www.ups.com/track?tracknum=" + trackingNumber
	case strings.Contains(c, "fedex"):
		return "https://www.fedex.com/fedextrack/?trknbr=" + trackingNumber
	case strings.Contains(c, "usps"):
		return "https://tools.usps.com/go/TrackConfirmAction?tLabels=" + trackingNumber
	default:
		return ""
	}
}

// StatusChangeBody renders the internal notification for a vendor status
// change, including the tracking link when the carrier is recognized.
func StatusChangeBody(jobNo, oldStatus, newStatus, trackingNumber, trackingCarrier string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Job %s vendor status changed: %s -> %s", jobNo, oldStatus, newStatus)
	if trackingNumber != "" {
		fmt.Fprintf(&b, "\nTracking: %s", trackingNumber)
		if url := TrackingURL(trackingCarrier, trackingNumber); url != "" {
			fmt.Fprintf(&b, " (%s)", url)
		}
	}
	return b.String()
}
