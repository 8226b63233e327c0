// Package metrics defines the custom Prometheus metrics of the user service.
// All metrics are registered with the default registry on import, which is
// the registry served by the /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "user_service"

// ── Authorization ─────────────────────────────────────────────────────────────

// AuthorizationDecisionsTotal counts ownership policy decisions.
// Labels:
//   - decision: "allow" or "deny"
//   - reason: "admin", "owner", "not_owner", "unresolved", "admin_only"
var AuthorizationDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "authorization_decisions_total",
		Help:      "Total number of ownership policy decisions, by decision and reason.",
	},
	[]string{"decision", "reason"},
)

// ── Use cases ─────────────────────────────────────────────────────────────────

// UseCaseFailuresTotal counts failed use cases rendered to HTTP callers.
// Label:
//   - kind: "validation", "not_found", "conflict", "forbidden", "infrastructure"
var UseCaseFailuresTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "use_case_failures_total",
		Help:      "Total number of failed use cases, by failure kind.",
	},
	[]string{"kind"},
)

// ── Bootstrap ─────────────────────────────────────────────────────────────────

// BootstrapRunsTotal counts admin bootstrap runs.
// Label:
//   - outcome: "disabled", "existing", "provisioning" or "error"
var BootstrapRunsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "admin_bootstrap_runs_total",
		Help:      "Total number of admin bootstrap runs, by outcome.",
	},
	[]string{"outcome"},
)

// ObserveDecision is suitable as an ownership policy decision hook.
func ObserveDecision(decision, reason string) {
	AuthorizationDecisionsTotal.WithLabelValues(decision, reason).Inc()
}
