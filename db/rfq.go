package db

import (
	"context"
	"database/sql"
	"time"
)

// RFQ statuses. QUOTED is derived (every invited vendor answered), never
// set directly by staff.
const (
	RFQStatusDraft     = "DRAFT"
	RFQStatusPending   = "PENDING"
	RFQStatusQuoted    = "QUOTED"
	RFQStatusAwarded   = "AWARDED"
	RFQStatusConverted = "CONVERTED"
	RFQStatusCancelled = "CANCELLED"
)

// Quote statuses.
const (
	QuoteStatusPending  = "PENDING"
	QuoteStatusReceived = "RECEIVED"
	QuoteStatusDeclined = "DECLINED"
)

type VendorRFQ struct {
	ID        string    `db:"id" json:"id"`
	RFQNumber string    `db:"rfq_number" json:"rfqNumber"`
	Title     string    `db:"title" json:"title"`
	Specs     string    `db:"specs" json:"specs"`
	DueDate   time.Time `db:"due_date" json:"dueDate"`
	Notes     string    `db:"notes" json:"notes"`
	Status    string    `db:"status" json:"status"`
	JobID     *string   `db:"job_id" json:"jobId,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"-"`
}

type VendorQuote struct {
	ID             string     `db:"id" json:"id"`
	RFQID          string     `db:"rfq_id" json:"rfqId"`
	VendorID       string     `db:"vendor_id" json:"vendorId"`
	QuoteAmount    float64    `db:"quote_amount" json:"quoteAmount"`
	TurnaroundDays *int       `db:"turnaround_days" json:"turnaroundDays,omitempty"`
	Notes          string     `db:"notes" json:"notes"`
	Status         string     `db:"status" json:"status"`
	IsAwarded      bool       `db:"is_awarded" json:"isAwarded"`
	RespondedAt    *time.Time `db:"responded_at" json:"respondedAt,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"createdAt"`
}

// CreateRFQ inserts the RFQ and its vendor assignments in one transaction.
func (s *Storage) CreateRFQ(ctx context.Context, rfq *VendorRFQ, vendorIDs []string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
        INSERT INTO vendor_rfq (id, rfq_number, title, specs, due_date, notes, status)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING created_at, updated_at`
	err = tx.QueryRowContext(ctx, query,
		rfq.ID, rfq.RFQNumber, rfq.Title, rfq.Specs, rfq.DueDate, rfq.Notes, rfq.Status).
		Scan(&rfq.CreatedAt, &rfq.UpdatedAt)
	if err != nil {
		return err
	}
	for _, vid := range vendorIDs {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO rfq_vendor (rfq_id, vendor_id) VALUES ($1, $2)`, rfq.ID, vid)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Storage) GetRFQ(ctx context.Context, id string) (*VendorRFQ, error) {
	rfq := &VendorRFQ{}
	query := `SELECT * FROM vendor_rfq WHERE id=$1`
	err := s.db.GetContext(ctx, rfq, query, id)
	return rfq, err
}

func (s *Storage) GetRFQs(ctx context.Context, limit, offset int) ([]VendorRFQ, error) {
	rfqs := []VendorRFQ{}
	query := `SELECT * FROM vendor_rfq ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	err := s.db.SelectContext(ctx, &rfqs, query, limit, offset)
	return rfqs, err
}

func (s *Storage) UpdateRFQStatus(ctx context.Context, id, status string) error {
	query := `UPDATE vendor_rfq SET status=$1, updated_at=NOW() WHERE id=$2`
	_, err := s.db.ExecContext(ctx, query, status, id)
	return err
}

func (s *Storage) DeleteRFQ(ctx context.Context, id string) error {
	query := `DELETE FROM vendor_rfq WHERE id=$1`
	_, err := s.db.ExecContext(ctx, query, id)
	return err
}

func (s *Storage) GetRFQVendors(ctx context.Context, rfqID string) ([]Vendor, error) {
	vendors := []Vendor{}
	query := `
        SELECT v.* FROM vendor v
        JOIN rfq_vendor rv ON rv.vendor_id = v.id
        WHERE rv.rfq_id = $1
        ORDER BY v.name ASC`
	err := s.db.SelectContext(ctx, &vendors, query, rfqID)
	return vendors, err
}

func (s *Storage) IsVendorAssigned(ctx context.Context, rfqID, vendorID string) (bool, error) {
	var count int
	query := `SELECT COUNT(1) FROM rfq_vendor WHERE rfq_id=$1 AND vendor_id=$2`
	err := s.db.GetContext(ctx, &count, query, rfqID, vendorID)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// AddRFQVendor invites another vendor after creation. When the RFQ already
// reached QUOTED the status drops back to PENDING in the same transaction,
// so it never sits QUOTED with an unanswered invitee.
func (s *Storage) AddRFQVendor(ctx context.Context, rfqID, vendorID string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO rfq_vendor (rfq_id, vendor_id) VALUES ($1, $2)
         ON CONFLICT (rfq_id, vendor_id) DO NOTHING`, rfqID, vendorID)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE vendor_rfq SET status=$1, updated_at=NOW() WHERE id=$2 AND status=$3`,
		RFQStatusPending, rfqID, RFQStatusQuoted)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// UpsertQuote records or corrects a vendor's quote. A second call for the
// same (rfq, vendor) pair overwrites the previous entry.
func (s *Storage) UpsertQuote(ctx context.Context, q *VendorQuote) error {
	query := `
        INSERT INTO vendor_quote
            (id, rfq_id, vendor_id, quote_amount, turnaround_days, notes, status, responded_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (rfq_id, vendor_id) DO UPDATE SET
            quote_amount = EXCLUDED.quote_amount,
            turnaround_days = EXCLUDED.turnaround_days,
            notes = EXCLUDED.notes,
            status = EXCLUDED.status,
            responded_at = EXCLUDED.responded_at
        RETURNING id, created_at`
	return s.db.QueryRowContext(ctx, query,
		q.ID, q.RFQID, q.VendorID, q.QuoteAmount, q.TurnaroundDays, q.Notes, q.Status, q.RespondedAt).
		Scan(&q.ID, &q.CreatedAt)
}

func (s *Storage) GetQuote(ctx context.Context, rfqID, vendorID string) (*VendorQuote, error) {
	q := &VendorQuote{}
	query := `SELECT * FROM vendor_quote WHERE rfq_id=$1 AND vendor_id=$2`
	err := s.db.GetContext(ctx, q, query, rfqID, vendorID)
	return q, err
}

func (s *Storage) GetQuotesForRFQ(ctx context.Context, rfqID string) ([]VendorQuote, error) {
	quotes := []VendorQuote{}
	query := `SELECT * FROM vendor_quote WHERE rfq_id=$1 ORDER BY created_at ASC`
	err := s.db.SelectContext(ctx, &quotes, query, rfqID)
	return quotes, err
}

// CountVendorsWithoutReceivedQuote counts invited vendors that have not yet
// responded with a RECEIVED quote. Zero means responses are complete.
func (s *Storage) CountVendorsWithoutReceivedQuote(ctx context.Context, rfqID string) (int, error) {
	var count int
	query := `
        SELECT COUNT(1) FROM rfq_vendor rv
        WHERE rv.rfq_id = $1
        AND NOT EXISTS (
            SELECT 1 FROM vendor_quote q
            WHERE q.rfq_id = rv.rfq_id AND q.vendor_id = rv.vendor_id AND q.status = $2)`
	err := s.db.GetContext(ctx, &count, query, rfqID, QuoteStatusReceived)
	return count, err
}

// AwardQuote clears every award flag for the RFQ and sets the winner inside
// one transaction, so a reader never sees zero or two awarded quotes
// committed. Also moves the RFQ to AWARDED.
func (s *Storage) AwardQuote(ctx context.Context, rfqID, vendorID string) (*VendorQuote, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`UPDATE vendor_quote SET is_awarded = FALSE WHERE rfq_id = $1`, rfqID)
	if err != nil {
		return nil, err
	}
	q := &VendorQuote{}
	err = tx.GetContext(ctx, q,
		`UPDATE vendor_quote SET is_awarded = TRUE
         WHERE rfq_id = $1 AND vendor_id = $2
         RETURNING *`, rfqID, vendorID)
	if err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE vendor_rfq SET status=$1, updated_at=NOW() WHERE id=$2`,
		RFQStatusAwarded, rfqID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return q, nil
}

func (s *Storage) GetAwardedQuote(ctx context.Context, rfqID string) (*VendorQuote, error) {
	q := &VendorQuote{}
	query := `SELECT * FROM vendor_quote WHERE rfq_id=$1 AND is_awarded LIMIT 1`
	err := s.db.GetContext(ctx, q, query, rfqID)
	return q, err
}

// ConvertRFQToExistingJob points the linked job at the awarded vendor and
// price and flips the RFQ to CONVERTED, atomically.
func (s *Storage) ConvertRFQToExistingJob(ctx context.Context, rfqID, jobID, vendorID string, price float64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`UPDATE job SET vendor_id=$1, price=$2, updated_at=NOW() WHERE id=$3`,
		vendorID, price, jobID)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE vendor_rfq SET status=$1, updated_at=NOW() WHERE id=$2`,
		RFQStatusConverted, rfqID)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// ConvertRFQToNewJob creates the job and flips the RFQ to CONVERTED with the
// new job linked, atomically. The job number must already be assigned.
func (s *Storage) ConvertRFQToNewJob(ctx context.Context, rfqID string, job *Job) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
        INSERT INTO job (id, job_no, title, customer_id, vendor_id, price, status, spec)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING created_at, updated_at`
	err = tx.QueryRowContext(ctx, query,
		job.ID, job.JobNo, job.Title, job.CustomerID, job.VendorID, job.Price, job.Status, job.Spec).
		Scan(&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE vendor_rfq SET status=$1, job_id=$2, updated_at=NOW()
         WHERE id=$3 AND status <> $1`,
		RFQStatusConverted, job.ID, rfqID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return tx.Commit()
}
