package db_test

import (
	"testing"

	"printbroker/db"

	"github.com/stretchr/testify/require"
)

func TestJobSpecScan(t *testing.T) {
	var spec db.JobSpec

	// Postgres hands JSONB back as []byte; sqlite-style drivers as string;
	// a NULL column as nil. All three must land in a usable struct.
	require.NoError(t, spec.Scan([]byte(`{"paperStock":"100lb gloss","quantity":500}`)))
	require.Equal(t, "100lb gloss", spec.PaperStock)
	require.Equal(t, 500, spec.Quantity)

	require.NoError(t, spec.Scan(`{"sourceRfqNumber":"RFQ-20260801-001"}`))
	require.Equal(t, "RFQ-20260801-001", spec.SourceRFQNumber)

	require.NoError(t, spec.Scan(nil))
	require.Equal(t, db.JobSpec{}, spec)

	require.Error(t, spec.Scan(42))
}

func TestJobSpecValueOmitsEmptyFields(t *testing.T) {
	v, err := db.JobSpec{Size: "8.5x11"}.Value()
	require.NoError(t, err)
	require.JSONEq(t, `{"size":"8.5x11"}`, string(v.([]byte)))
}
