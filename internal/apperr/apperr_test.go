package apperr_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"printbroker/internal/apperr"

	"github.com/stretchr/testify/require"
)

func TestStatusCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{apperr.Validation("missing field"), http.StatusBadRequest},
		{apperr.Conflict("already converted"), http.StatusBadRequest},
		{apperr.NotFound("no such portal"), http.StatusNotFound},
		{apperr.Expired("link expired"), http.StatusGone},
	}
	for _, tc := range cases {
		status, ok := apperr.StatusCode(tc.err)
		require.True(t, ok)
		require.Equal(t, tc.want, status)
	}
}

func TestStatusCodeWrapped(t *testing.T) {
	// The 410/404 split must survive wrapping.
	wrapped := fmt.Errorf("resolve portal: %w", apperr.Expired("link expired"))
	status, ok := apperr.StatusCode(wrapped)
	require.True(t, ok)
	require.Equal(t, http.StatusGone, status)
}

func TestStatusCodeUnknownError(t *testing.T) {
	_, ok := apperr.StatusCode(errors.New("connection refused"))
	require.False(t, ok)
}
