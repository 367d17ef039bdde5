package obs

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// QuoteMetrics groups the Prometheus collectors for quotation activity.
type QuoteMetrics struct {
	Calculations     *prometheus.CounterVec
	Rejected         *prometheus.CounterVec
	MarginViolations prometheus.Counter
	MarginConflicts  prometheus.Counter
	Persisted        *prometheus.CounterVec
}

// NewQuoteMetrics registers and returns the quotation collectors.
func NewQuoteMetrics(namespace string, reg prometheus.Registerer) *QuoteMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &QuoteMetrics{
		Calculations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_calculations_total",
			Help:      "Pricing calculations performed, by kind.",
		}, []string{"kind"}),
		Rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_rejected_total",
			Help:      "Pricing inputs rejected by validation, by kind.",
		}, []string{"kind"}),
		MarginViolations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_margin_violations_total",
			Help:      "Final price overrides discarded for being below total cost.",
		}),
		MarginConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_margin_conflicts_total",
			Help:      "Requests that supplied both a percentage and a fixed PEN margin.",
		}),
		Persisted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_persisted_total",
			Help:      "Quotation snapshot writes, by result.",
		}, []string{"result"}),
	}
	m.Calculations = mustRegister(reg, m.Calculations)
	m.Rejected = mustRegister(reg, m.Rejected)
	m.MarginViolations = mustRegister(reg, m.MarginViolations)
	m.MarginConflicts = mustRegister(reg, m.MarginConflicts)
	m.Persisted = mustRegister(reg, m.Persisted)
	return m
}

// mustRegister registers c, reusing an identical collector that is already registered.
func mustRegister[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}
