package db

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// File kinds. Vendor proofs come through the portal; ADMIN files never
// leave the office and are excluded from portal downloads.
const (
	FileKindVendorProof = "VENDOR_PROOF"
	FileKindCustomer    = "CUSTOMER"
	FileKindAdmin       = "ADMIN"
)

type JobFile struct {
	ID         string    `db:"id" json:"id"`
	JobID      string    `db:"job_id" json:"jobId"`
	Kind       string    `db:"kind" json:"kind"`
	Name       string    `db:"name" json:"name"`
	Size       int64     `db:"size" json:"size"`
	Checksum   string    `db:"checksum" json:"checksum"`
	StorageKey string    `db:"storage_key" json:"-"`
	UploadedAt time.Time `db:"uploaded_at" json:"uploadedAt"`
}

// AddJobFiles records an upload batch and its aggregate notification in one
// transaction.
func (s *Storage) AddJobFiles(ctx context.Context, files []JobFile, ev *NotificationEvent) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for i := range files {
		err = tx.QueryRowContext(ctx,
			`INSERT INTO job_file (id, job_id, kind, name, size, checksum, storage_key)
             VALUES ($1, $2, $3, $4, $5, $6, $7)
             RETURNING uploaded_at`,
			files[i].ID, files[i].JobID, files[i].Kind, files[i].Name,
			files[i].Size, files[i].Checksum, files[i].StorageKey).
			Scan(&files[i].UploadedAt)
		if err != nil {
			return err
		}
	}
	if err := insertEvent(ctx, tx, ev); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Storage) GetJobFiles(ctx context.Context, jobID string, kinds []string) ([]JobFile, error) {
	files := []JobFile{}
	if len(kinds) == 0 {
		query := `SELECT * FROM job_file WHERE job_id=$1 ORDER BY uploaded_at ASC`
		err := s.db.SelectContext(ctx, &files, query, jobID)
		return files, err
	}
	query, args, err := sqlx.In(
		`SELECT * FROM job_file WHERE job_id = ? AND kind IN (?) ORDER BY uploaded_at ASC`,
		jobID, kinds)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)
	err = s.db.SelectContext(ctx, &files, query, args...)
	return files, err
}
