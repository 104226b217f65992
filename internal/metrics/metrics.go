package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus instruments for breaker activity.
type Metrics struct {
	failures *prometheus.CounterVec
	trips    *prometheus.CounterVec
	resets   *prometheus.CounterVec

	registeredBreakers  *prometheus.GaugeVec
	unavailableBreakers *prometheus.GaugeVec
}

// New creates the instruments and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "breakerbox_failures_total",
			Help: "Total failures recorded against each breaker",
		}, []string{"box", "breaker"}),

		trips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "breakerbox_trips_total",
			Help: "Total automatic trips per breaker",
		}, []string{"box", "breaker"}),

		resets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "breakerbox_resets_total",
			Help: "Total breaker resets, split by auto vs manual",
		}, []string{"box", "breaker", "mode"}),

		registeredBreakers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "breakerbox_registered_breakers",
			Help: "Number of breakers registered per box",
		}, []string{"box"}),

		unavailableBreakers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "breakerbox_unavailable_breakers",
			Help: "Number of breakers currently open or disabled per box",
		}, []string{"box"}),
	}

	collectors := []prometheus.Collector{
		m.failures,
		m.trips,
		m.resets,
		m.registeredBreakers,
		m.unavailableBreakers,
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *Metrics) RecordFailure(box, breaker string) {
	m.failures.WithLabelValues(box, breaker).Inc()
}

func (m *Metrics) RecordTrip(box, breaker string) {
	m.trips.WithLabelValues(box, breaker).Inc()
}

func (m *Metrics) RecordReset(box, breaker, mode string) {
	m.resets.WithLabelValues(box, breaker, mode).Inc()
}

func (m *Metrics) AddRegistered(box string, delta int) {
	m.registeredBreakers.WithLabelValues(box).Add(float64(delta))
}

func (m *Metrics) AddUnavailable(box string, delta int) {
	if delta == 0 {
		return
	}
	m.unavailableBreakers.WithLabelValues(box).Add(float64(delta))
}
