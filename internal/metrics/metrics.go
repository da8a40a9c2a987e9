// Package metrics exposes Prometheus collectors for the wallet subsystem.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ActiveSessions tracks live WalletConnect sessions across conversations.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chatwallet_active_sessions",
		Help: "Number of active WalletConnect sessions.",
	})

	// PendingRequests tracks requests awaiting a user decision.
	PendingRequests = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chatwallet_pending_requests",
		Help: "Number of requests awaiting user approval.",
	})

	// ApprovalOutcomes counts terminal pending-request transitions.
	ApprovalOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatwallet_approval_outcomes_total",
		Help: "Terminal outcomes of approval requests.",
	}, []string{"outcome"})

	// PairingFailures counts failed pairing attempts.
	PairingFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatwallet_pairing_failures_total",
		Help: "Number of failed WalletConnect pairing attempts.",
	})
)

// Outcome labels for ApprovalOutcomes.
const (
	OutcomeApproved = "approved"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
	OutcomeExpired  = "expired"
)

// Serve starts the metrics HTTP listener. It blocks, so run it in its own
// goroutine.
func Serve(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return server.ListenAndServe()
}
