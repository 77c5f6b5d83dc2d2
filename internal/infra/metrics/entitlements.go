package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		entitlementRecomputes,
		offGraphTransitions,
		entitlementsExpired,
	)
}

var (
	entitlementRecomputes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entitlement_recomputes_total",
			Help: "Entitlement resolver runs by resulting plan.",
		},
		[]string{"plan"},
	)

	offGraphTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscription_offgraph_transitions_total",
			Help: "Gateway-reported status transitions outside the expected lifecycle graph.",
		},
		[]string{"from", "to"},
	)

	entitlementsExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "entitlements_expired_total",
			Help: "Users downgraded by the expiry sweep after premium_expiry passed.",
		},
	)
)

func IncEntitlementRecompute(plan string) {
	entitlementRecomputes.WithLabelValues(norm(plan)).Inc()
}

func IncOffGraphTransition(from, to string) {
	offGraphTransitions.WithLabelValues(norm(from), norm(to)).Inc()
}

func AddEntitlementsExpired(n int) {
	entitlementsExpired.Add(float64(n))
}
