package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

type Storage struct {
	db *sqlx.DB
}

func NewStorage(db *sqlx.DB) *Storage {
	return &Storage{db: db}
}

// Vendor is a print supplier the shop brokers work to.
type Vendor struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	Phone     string    `db:"phone" json:"phone"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

type VendorContact struct {
	ID        string `db:"id" json:"id"`
	VendorID  string `db:"vendor_id" json:"vendorId"`
	Name      string `db:"name" json:"name"`
	Email     string `db:"email" json:"email"`
	IsPrimary bool   `db:"is_primary" json:"isPrimary"`
}

func (s *Storage) GetVendor(ctx context.Context, id string) (*Vendor, error) {
	v := &Vendor{}
	query := `SELECT * FROM vendor WHERE id=$1`
	err := s.db.GetContext(ctx, v, query, id)
	return v, err
}

func (s *Storage) GetVendorsByIDs(ctx context.Context, ids []string) ([]Vendor, error) {
	if len(ids) == 0 {
		return []Vendor{}, nil
	}
	query, args, err := sqlx.In(`SELECT * FROM vendor WHERE id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)
	vendors := []Vendor{}
	err = s.db.SelectContext(ctx, &vendors, query, args...)
	return vendors, err
}

// GetVendorRecipient resolves where vendor-facing mail goes: the primary
// contact email when one exists, otherwise the vendor's own email. Returns
// an empty string when neither is set.
func (s *Storage) GetVendorRecipient(ctx context.Context, vendorID string) (string, error) {
	var email string
	query := `
        SELECT COALESCE(
            (SELECT c.email FROM vendor_contact c
             WHERE c.vendor_id = v.id AND c.is_primary AND c.email <> ''
             LIMIT 1),
            v.email)
        FROM vendor v WHERE v.id = $1`
	err := s.db.GetContext(ctx, &email, query, vendorID)
	return email, err
}

type Customer struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

func (s *Storage) GetCustomer(ctx context.Context, id string) (*Customer, error) {
	c := &Customer{}
	query := `SELECT * FROM customer WHERE id=$1`
	err := s.db.GetContext(ctx, c, query, id)
	return c, err
}

// JobSpec is the typed job specification blob. Downstream consumers (portal
// view, document generation) read known fields only, so the blob is a struct
// serialized to JSONB rather than an untyped map.
type JobSpec struct {
	PaperStock      string `json:"paperStock,omitempty"`
	Size            string `json:"size,omitempty"`
	Colors          string `json:"colors,omitempty"`
	Finishing       string `json:"finishing,omitempty"`
	Quantity        int    `json:"quantity,omitempty"`
	SourceRFQNumber string `json:"sourceRfqNumber,omitempty"`
	SourceSpecs     string `json:"sourceSpecs,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

func (js JobSpec) Value() (driver.Value, error) {
	return json.Marshal(js)
}

func (js *JobSpec) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*js = JobSpec{}
		return nil
	case []byte:
		return json.Unmarshal(v, js)
	case string:
		return json.Unmarshal([]byte(v), js)
	default:
		return fmt.Errorf("unsupported type %T for JobSpec", src)
	}
}

type Job struct {
	ID         string    `db:"id" json:"id"`
	JobNo      string    `db:"job_no" json:"jobNo"`
	Title      string    `db:"title" json:"title"`
	CustomerID string    `db:"customer_id" json:"customerId"`
	VendorID   *string   `db:"vendor_id" json:"vendorId,omitempty"`
	Price      *float64  `db:"price" json:"price,omitempty"`
	Status     string    `db:"status" json:"status"`
	Spec       JobSpec   `db:"spec" json:"spec"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time `db:"updated_at" json:"-"`
}

func (s *Storage) CreateJob(ctx context.Context, j *Job) error {
	query := `
        INSERT INTO job (id, job_no, title, customer_id, vendor_id, price, status, spec)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING created_at, updated_at`
	return s.db.QueryRowContext(ctx, query,
		j.ID, j.JobNo, j.Title, j.CustomerID, j.VendorID, j.Price, j.Status, j.Spec).
		Scan(&j.CreatedAt, &j.UpdatedAt)
}

func (s *Storage) GetJob(ctx context.Context, id string) (*Job, error) {
	j := &Job{}
	query := `SELECT * FROM job WHERE id=$1`
	err := s.db.GetContext(ctx, j, query, id)
	return j, err
}

// PurchaseOrder carries only the fields the vendor portal needs; PO document
// generation is handled outside this service.
type PurchaseOrder struct {
	ID        string    `db:"id" json:"id"`
	PONumber  string    `db:"po_number" json:"poNumber"`
	JobID     string    `db:"job_id" json:"jobId"`
	VendorID  string    `db:"vendor_id" json:"vendorId"`
	Amount    float64   `db:"amount" json:"amount"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

func (s *Storage) GetPurchaseOrder(ctx context.Context, id string) (*PurchaseOrder, error) {
	po := &PurchaseOrder{}
	query := `SELECT * FROM purchase_order WHERE id=$1`
	err := s.db.GetContext(ctx, po, query, id)
	return po, err
}

func (s *Storage) GetPurchaseOrdersForJob(ctx context.Context, jobID string) ([]PurchaseOrder, error) {
	pos := []PurchaseOrder{}
	query := `SELECT * FROM purchase_order WHERE job_id=$1 ORDER BY created_at ASC`
	err := s.db.SelectContext(ctx, &pos, query, jobID)
	return pos, err
}

// IsNotFound reports whether err is the driver's empty-result error.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
