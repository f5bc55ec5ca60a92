package notify_test

import (
	"context"
	"errors"
	"testing"

	"printbroker/db"
	"printbroker/internal/notify"

	"github.com/stretchr/testify/require"
)

func TestTrackingURL(t *testing.T) {
	cases := []struct {
		carrier string
		want    string
	}{
		{"UPS", "https://www.ups.com/track?tracknum=123"},
		{"ups ground", "https://www.ups.com/track?tracknum=123"},
		{"FedEx", "https://www.fedex.com/fedextrack/?trknbr=123"},
		{"USPS Priority", "https://tools.usps.com/go/TrackConfirmAction?tLabels=123"},
		{"DHL", ""},
		{"", ""},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, notify.TrackingURL(tc.carrier, "123"), "carrier %q", tc.carrier)
	}
}

func TestStatusChangeBody(t *testing.T) {
	body := notify.StatusChangeBody("J-0042", "IN_PRODUCTION", "SHIPPED", "123", "FedEx")
	require.Contains(t, body, "J-0042")
	require.Contains(t, body, "IN_PRODUCTION -> SHIPPED")
	require.Contains(t, body, "https://www.fedex.com/fedextrack/?trknbr=123")

	// Unknown carrier: raw number, no deep link.
	body = notify.StatusChangeBody("J-0042", "IN_PRODUCTION", "SHIPPED", "123", "DHL")
	require.Contains(t, body, "Tracking: 123")
	require.NotContains(t, body, "http")
}

type fakeOutbox struct {
	pending []db.NotificationEvent
	sent    []int64
	failed  []int64
}

func (f *fakeOutbox) ClaimPendingEvents(ctx context.Context, limit int) ([]db.NotificationEvent, error) {
	return f.pending, nil
}

func (f *fakeOutbox) MarkEventSent(ctx context.Context, id int64) error {
	f.sent = append(f.sent, id)
	return nil
}

func (f *fakeOutbox) MarkEventFailed(ctx context.Context, id int64, lastError string, maxAttempts int) error {
	f.failed = append(f.failed, id)
	return nil
}

type flakySender struct {
	failID int64
}

func (s flakySender) Send(ctx context.Context, ev db.NotificationEvent) error {
	if ev.ID == s.failID {
		return errors.New("smtp timeout")
	}
	return nil
}

func TestDispatchPending(t *testing.T) {
	outbox := &fakeOutbox{pending: []db.NotificationEvent{
		{ID: 1, Kind: db.EventPortalConfirmed},
		{ID: 2, Kind: db.EventPortalStatusChanged},
		{ID: 3, Kind: db.EventRFQInvite},
	}}
	d := notify.NewDispatcher(outbox, flakySender{failID: 2})

	require.NoError(t, d.DispatchPending(context.Background()))

	// A failed send is recorded and does not stop the batch.
	require.Equal(t, []int64{1, 3}, outbox.sent)
	require.Equal(t, []int64{2}, outbox.failed)
}
