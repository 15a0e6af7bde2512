package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by flow (password|otp) and result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authgate_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"flow", "result"},
	)

	// SignUps counts account creations by result.
	SignUps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authgate_signups_total",
			Help: "Total number of sign-up attempts",
		},
		[]string{"result"},
	)

	// ActiveSessions tracks sessions that are neither expired nor revoked.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "authgate_active_sessions",
			Help: "Number of active sessions",
		},
	)

	// MailDispatches counts outbound email deliveries by kind (verify_email|reset_password|otp_login) and result.
	MailDispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authgate_mail_dispatches_total",
			Help: "Total number of outbound email dispatch attempts",
		},
		[]string{"kind", "result"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "authgate_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
