// Package metrics registers the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PortalResolves counts token resolutions by outcome: ok, not_found,
	// expired.
	PortalResolves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "printbroker_portal_resolves_total",
			Help: "Portal token resolutions by outcome",
		},
		[]string{"outcome"},
	)

	// PortalStatusChanges counts vendor status transitions by new status.
	PortalStatusChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "printbroker_portal_status_changes_total",
			Help: "Vendor portal status changes by new status",
		},
		[]string{"status"},
	)

	// NotificationsSent counts outbox deliveries by result.
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "printbroker_notifications_total",
			Help: "Notification deliveries by result",
		},
		[]string{"result"},
	)
)
