package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "license_api",
		Name:      "webhook_events_total",
		Help:      "Stripe webhook events received, by event type.",
	}, []string{"type"})

	VerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "license_api",
		Name:      "verifications_total",
		Help:      "License verification verdicts, by outcome.",
	}, []string{"result"})

	LicensesIssuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "license_api",
		Name:      "licenses_issued_total",
		Help:      "Licenses issued, by issuing actor.",
	}, []string{"actor"})

	LicensesByStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "license_api",
		Name:      "licenses_by_status",
		Help:      "Current license counts by status, refreshed periodically.",
	}, []string{"status"})

	TrialDevicesConsumed = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "license_api",
		Name:      "trial_devices_consumed",
		Help:      "Total (license, device) pairs that have consumed a trial.",
	})
)
