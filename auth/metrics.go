package auth

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts session outcomes. A nil *Metrics is valid and records nothing.
type Metrics struct {
	restores *prometheus.CounterVec
	logins   *prometheus.CounterVec
	checks   *prometheus.CounterVec
}

// NewMetrics registers the session counters with reg. Registering twice on the same
// registry reuses the existing counters.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	restores, err := registerCounter(reg, "restores_total", "Silent session restoration attempts by outcome.")
	if err != nil {
		return nil, err
	}
	logins, err := registerCounter(reg, "logins_total", "Login attempts by outcome.")
	if err != nil {
		return nil, err
	}
	checks, err := registerCounter(reg, "checks_total", "Manual session checks by outcome.")
	if err != nil {
		return nil, err
	}
	return &Metrics{restores: restores, logins: logins, checks: checks}, nil
}

func registerCounter(reg prometheus.Registerer, name, help string) (*prometheus.CounterVec, error) {
	c := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "afisha",
		Subsystem: "session",
		Name:      name,
		Help:      help,
	}, []string{"outcome"})
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return c, nil
}

func (m *Metrics) restore(outcome string) {
	if m != nil {
		m.restores.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) login(outcome string) {
	if m != nil {
		m.logins.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) check(outcome string) {
	if m != nil {
		m.checks.WithLabelValues(outcome).Inc()
	}
}
