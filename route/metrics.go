package route

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts routing outcomes. A nil *Metrics records nothing.
type Metrics struct {
	reconciliations *prometheus.CounterVec
	guardRedirects  prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	rec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "afisha",
		Subsystem: "route",
		Name:      "reconciliations_total",
		Help:      "Recovered deep links by outcome.",
	}, []string{"outcome"})
	if err := reg.Register(rec); err != nil {
		existing, ok := alreadyRegistered(err)
		if !ok {
			return nil, err
		}
		if rec, ok = existing.(*prometheus.CounterVec); !ok {
			return nil, err
		}
	}

	var guard prometheus.Counter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "afisha",
		Subsystem: "route",
		Name:      "guard_redirects_total",
		Help:      "Anonymous visits to protected paths sent to the login page.",
	})
	if err := reg.Register(guard); err != nil {
		existing, ok := alreadyRegistered(err)
		if !ok {
			return nil, err
		}
		if guard, ok = existing.(prometheus.Counter); !ok {
			return nil, err
		}
	}
	return &Metrics{reconciliations: rec, guardRedirects: guard}, nil
}

func alreadyRegistered(err error) (prometheus.Collector, bool) {
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		return are.ExistingCollector, true
	}
	return nil, false
}

func (m *Metrics) reconciled(outcome string) {
	if m != nil {
		m.reconciliations.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) guarded() {
	if m != nil {
		m.guardRedirects.Inc()
	}
}
