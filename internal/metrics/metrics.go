package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AccessDecisions counts visibility resolver outcomes per action.
	AccessDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "brokerportal",
		Name:      "access_decisions_total",
		Help:      "Visibility decisions by action and outcome.",
	}, []string{"action", "outcome"})

	// PathGateRejections counts document path validations the gate refused.
	PathGateRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "brokerportal",
		Name:      "path_gate_rejections_total",
		Help:      "Document download paths rejected by the safety gate.",
	}, []string{"violation"})

	// SessionTimeouts counts sessions force-expired for inactivity.
	SessionTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "brokerportal",
		Name:      "session_timeouts_total",
		Help:      "Sessions revoked after exceeding the inactivity timeout.",
	})

	// LoginAttempts counts portal logins by result.
	LoginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "brokerportal",
		Name:      "login_attempts_total",
		Help:      "Login attempts by result.",
	}, []string{"result"})
)
