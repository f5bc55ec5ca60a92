package db

import (
	"context"
	"fmt"
	"time"
)

// Number sequences live in entity_counter and are bumped with a single
// UPDATE ... RETURNING, so concurrent creates cannot hand out the same
// number. RFQ numbers reset daily by keying the counter on the date.

func (s *Storage) nextCounter(ctx context.Context, name string) (int, error) {
	var value int
	query := `
        INSERT INTO entity_counter (name, value) VALUES ($1, 1)
        ON CONFLICT (name) DO UPDATE SET value = entity_counter.value + 1
        RETURNING value`
	err := s.db.QueryRowContext(ctx, query, name).Scan(&value)
	return value, err
}

// NextRFQNumber issues the next RFQ-YYYYMMDD-NNN number for today.
func (s *Storage) NextRFQNumber(ctx context.Context, now time.Time) (string, error) {
	day := now.Format("20060102")
	n, err := s.nextCounter(ctx, "rfq:"+day)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("RFQ-%s-%03d", day, n), nil
}

// NextJobNumber issues the next J-NNNN number from the global job sequence.
func (s *Storage) NextJobNumber(ctx context.Context) (string, error) {
	n, err := s.nextCounter(ctx, "job")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("J-%04d", n), nil
}
