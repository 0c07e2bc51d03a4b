package resilience

import "github.com/prometheus/client_golang/prometheus"

// Breaker telemetry. The "target" label names the guarded dependency, today
// only the webhook endpoints orders fan out to.
var (
	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "comanda",
			Name:      "breaker_state",
			Help:      "Breaker state per target: 0=closed, 1=open, 2=half-open.",
		},
		[]string{"target"},
	)
	BreakerTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "comanda",
			Name:      "breaker_transition_total",
			Help:      "State transitions per target, labelled with both states.",
		},
		[]string{"target", "from", "to"},
	)
	BreakerOpenedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "comanda",
			Name:      "breaker_open_total",
			Help:      "Times a target tripped open. A climbing rate means a webhook receiver is down.",
		},
		[]string{"target"},
	)
)

func init() {
	prometheus.MustRegister(BreakerState, BreakerTransitions, BreakerOpenedTotal)
}
