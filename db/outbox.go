package db

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// Notification event kinds.
const (
	EventRFQInvite           = "RFQ_INVITE"
	EventPortalConfirmed     = "PORTAL_CONFIRMED"
	EventPortalStatusChanged = "PORTAL_STATUS_CHANGED"
	EventPortalFilesUploaded = "PORTAL_FILES_UPLOADED"
)

// Outbox statuses.
const (
	EventStatusPending = "PENDING"
	EventStatusSent    = "SENT"
	EventStatusFailed  = "FAILED"
)

// NotificationEvent is an outbox row. State-changing transactions insert
// the event alongside the mutation; the dispatcher delivers it afterwards.
// Delivery failure never reaches the transaction that caused the event.
type NotificationEvent struct {
	ID        int64      `db:"id" json:"id"`
	Kind      string     `db:"kind" json:"kind"`
	JobID     *string    `db:"job_id" json:"jobId,omitempty"`
	RFQID     *string    `db:"rfq_id" json:"rfqId,omitempty"`
	PortalID  *string    `db:"portal_id" json:"portalId,omitempty"`
	Recipient string     `db:"recipient" json:"recipient"`
	Subject   string     `db:"subject" json:"subject"`
	Body      string     `db:"body" json:"body"`
	Status    string     `db:"status" json:"status"`
	Attempts  int        `db:"attempts" json:"attempts"`
	LastError string     `db:"last_error" json:"lastError,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
	SentAt    *time.Time `db:"sent_at" json:"sentAt,omitempty"`
}

func insertEvent(ctx context.Context, e sqlx.ExtContext, ev *NotificationEvent) error {
	if ev == nil {
		return nil
	}
	query := `
        INSERT INTO notification_outbox (kind, job_id, rfq_id, portal_id, recipient, subject, body, status)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING id, created_at`
	return e.QueryRowxContext(ctx, query,
		ev.Kind, ev.JobID, ev.RFQID, ev.PortalID, ev.Recipient, ev.Subject, ev.Body, EventStatusPending).
		Scan(&ev.ID, &ev.CreatedAt)
}

// EnqueueEvent inserts a standalone outbox event (no surrounding
// transaction needed, e.g. per-vendor RFQ invites).
func (s *Storage) EnqueueEvent(ctx context.Context, ev *NotificationEvent) error {
	return insertEvent(ctx, s.db, ev)
}

// ClaimPendingEvents returns the oldest pending events for delivery. A
// single dispatcher consumes the outbox, so no row locking is needed.
func (s *Storage) ClaimPendingEvents(ctx context.Context, limit int) ([]NotificationEvent, error) {
	events := []NotificationEvent{}
	query := `SELECT * FROM notification_outbox WHERE status=$1 ORDER BY id ASC LIMIT $2`
	err := s.db.SelectContext(ctx, &events, query, EventStatusPending, limit)
	return events, err
}

func (s *Storage) MarkEventSent(ctx context.Context, id int64) error {
	query := `UPDATE notification_outbox SET status=$1, sent_at=NOW() WHERE id=$2`
	_, err := s.db.ExecContext(ctx, query, EventStatusSent, id)
	return err
}

// MarkEventFailed bumps the attempt counter and flips the event to FAILED
// once maxAttempts is reached. Failed events stay in the table for
// inspection; they are never retried automatically.
func (s *Storage) MarkEventFailed(ctx context.Context, id int64, lastError string, maxAttempts int) error {
	query := `
        UPDATE notification_outbox
        SET attempts = attempts + 1,
            last_error = $1,
            status = CASE WHEN attempts + 1 >= $2 THEN $3 ELSE status END
        WHERE id = $4`
	_, err := s.db.ExecContext(ctx, query, lastError, maxAttempts, EventStatusFailed, id)
	return err
}
