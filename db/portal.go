package db

import (
	"context"
	"time"
)

// Vendor-reported production statuses. VendorStatusNone is the default
// before the vendor confirms the PO.
const (
	VendorStatusNone             = "NONE"
	VendorStatusPOReceived       = "PO_RECEIVED"
	VendorStatusInProduction     = "IN_PRODUCTION"
	VendorStatusPrintingComplete = "PRINTING_COMPLETE"
	VendorStatusShipped          = "SHIPPED"
)

// JobPortal is the token-gated vendor view of a job. One row per job; the
// token is a bearer capability, whoever holds it acts as the vendor.
type JobPortal struct {
	ID               string     `db:"id" json:"id"`
	JobID            string     `db:"job_id" json:"jobId"`
	ShareToken       string     `db:"share_token" json:"-"`
	PurchaseOrderID  *string    `db:"purchase_order_id" json:"purchaseOrderId,omitempty"`
	ExpiresAt        time.Time  `db:"expires_at" json:"expiresAt"`
	AccessCount      int        `db:"access_count" json:"accessCount"`
	AccessedAt       *time.Time `db:"accessed_at" json:"accessedAt,omitempty"`
	ConfirmedAt      *time.Time `db:"confirmed_at" json:"confirmedAt,omitempty"`
	ConfirmedByName  string     `db:"confirmed_by_name" json:"confirmedByName,omitempty"`
	ConfirmedByEmail string     `db:"confirmed_by_email" json:"confirmedByEmail,omitempty"`
	VendorStatus     string     `db:"vendor_status" json:"vendorStatus"`
	StatusUpdatedAt  *time.Time `db:"status_updated_at" json:"statusUpdatedAt,omitempty"`
	TrackingNumber   string     `db:"tracking_number" json:"trackingNumber,omitempty"`
	TrackingCarrier  string     `db:"tracking_carrier" json:"trackingCarrier,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"createdAt"`
}

type PortalStatusLog struct {
	ID        int64     `db:"id" json:"id"`
	PortalID  string    `db:"portal_id" json:"portalId"`
	OldStatus string    `db:"old_status" json:"oldStatus"`
	NewStatus string    `db:"new_status" json:"newStatus"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// UpsertPortal issues or rotates the portal for a job as a single atomic
// write: the row keeps its identity and vendor-facing fields, only the
// token, PO scope and expiry are replaced. There is never a window with no
// valid portal for the job.
func (s *Storage) UpsertPortal(ctx context.Context, p *JobPortal) error {
	query := `
        INSERT INTO job_portal (id, job_id, share_token, purchase_order_id, expires_at, vendor_status)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (job_id) DO UPDATE SET
            share_token = EXCLUDED.share_token,
            purchase_order_id = EXCLUDED.purchase_order_id,
            expires_at = EXCLUDED.expires_at
        RETURNING id, access_count, accessed_at, confirmed_at, confirmed_by_name,
                  confirmed_by_email, vendor_status, status_updated_at,
                  tracking_number, tracking_carrier, created_at`
	return s.db.QueryRowContext(ctx, query,
		p.ID, p.JobID, p.ShareToken, p.PurchaseOrderID, p.ExpiresAt, VendorStatusNone).
		Scan(&p.ID, &p.AccessCount, &p.AccessedAt, &p.ConfirmedAt, &p.ConfirmedByName,
			&p.ConfirmedByEmail, &p.VendorStatus, &p.StatusUpdatedAt,
			&p.TrackingNumber, &p.TrackingCarrier, &p.CreatedAt)
}

func (s *Storage) GetPortalByToken(ctx context.Context, token string) (*JobPortal, error) {
	p := &JobPortal{}
	query := `SELECT * FROM job_portal WHERE share_token=$1`
	err := s.db.GetContext(ctx, p, query, token)
	return p, err
}

func (s *Storage) GetPortalByJob(ctx context.Context, jobID string) (*JobPortal, error) {
	p := &JobPortal{}
	query := `SELECT * FROM job_portal WHERE job_id=$1`
	err := s.db.GetContext(ctx, p, query, jobID)
	return p, err
}

// TouchPortalAccess records the access audit trail. Fired on every
// successful token resolution, reads included.
func (s *Storage) TouchPortalAccess(ctx context.Context, portalID string) error {
	query := `UPDATE job_portal SET access_count = access_count + 1, accessed_at = NOW() WHERE id=$1`
	_, err := s.db.ExecContext(ctx, query, portalID)
	return err
}

// ConfirmPortal stamps the confirmation fields and, when the vendor status
// is still at its default, bumps it to PO_RECEIVED — one transaction, so a
// portal is never observably confirmed but status-less. The notification
// event commits with the state change.
func (s *Storage) ConfirmPortal(ctx context.Context, portalID, name, email string, ev *NotificationEvent) (*JobPortal, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	p := &JobPortal{}
	err = tx.GetContext(ctx, p,
		`UPDATE job_portal
         SET confirmed_at = NOW(), confirmed_by_name = $1, confirmed_by_email = $2,
             vendor_status = CASE WHEN vendor_status = $3 THEN $4 ELSE vendor_status END,
             status_updated_at = CASE WHEN vendor_status = $3 THEN NOW() ELSE status_updated_at END
         WHERE id = $5 AND confirmed_at IS NULL
         RETURNING *`,
		name, email, VendorStatusNone, VendorStatusPOReceived, portalID)
	if err != nil {
		return nil, err
	}
	if err := insertEvent(ctx, tx, ev); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return p, nil
}

// UpdatePortalStatus writes the vendor status (and tracking fields when
// given), appends the old→new audit row and enqueues the notification, all
// in one transaction.
func (s *Storage) UpdatePortalStatus(ctx context.Context, portalID, newStatus, trackingNumber, trackingCarrier string, ev *NotificationEvent) (*JobPortal, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var oldStatus string
	err = tx.GetContext(ctx, &oldStatus,
		`SELECT vendor_status FROM job_portal WHERE id=$1 FOR UPDATE`, portalID)
	if err != nil {
		return nil, err
	}

	p := &JobPortal{}
	err = tx.GetContext(ctx, p,
		`UPDATE job_portal
         SET vendor_status = $1,
             status_updated_at = NOW(),
             tracking_number = CASE WHEN $2 <> '' THEN $2 ELSE tracking_number END,
             tracking_carrier = CASE WHEN $3 <> '' THEN $3 ELSE tracking_carrier END
         WHERE id = $4
         RETURNING *`,
		newStatus, trackingNumber, trackingCarrier, portalID)
	if err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO portal_status_log (portal_id, old_status, new_status) VALUES ($1, $2, $3)`,
		portalID, oldStatus, newStatus)
	if err != nil {
		return nil, err
	}
	if err := insertEvent(ctx, tx, ev); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Storage) GetPortalStatusLog(ctx context.Context, portalID string) ([]PortalStatusLog, error) {
	logs := []PortalStatusLog{}
	query := `SELECT * FROM portal_status_log WHERE portal_id=$1 ORDER BY id ASC`
	err := s.db.SelectContext(ctx, &logs, query, portalID)
	return logs, err
}
