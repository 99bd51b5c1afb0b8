package verification

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts verification outcomes.
type Metrics struct {
	decisions     *prometheus.CounterVec
	storeFailures prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// uses prometheus.DefaultRegisterer. Already registered collectors are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "otp_verification_decisions_total",
		Help: "Verification requests by decision kind",
	}, []string{"kind"})
	storeFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "otp_verification_store_failures_total",
		Help: "Verification requests that failed to read or write state",
	})

	m := &Metrics{}
	if err := reg.Register(decisions); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, err
		}
		decisions = are.ExistingCollector.(*prometheus.CounterVec)
	}
	if err := reg.Register(storeFailures); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, err
		}
		storeFailures = are.ExistingCollector.(prometheus.Counter)
	}
	m.decisions = decisions
	m.storeFailures = storeFailures
	return m, nil
}

func (m *Metrics) observe(kind Kind) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) storeFailure() {
	if m == nil {
		return
	}
	m.storeFailures.Inc()
}
