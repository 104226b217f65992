package metrics_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/angeloszaimis/breakerbox/internal/circuitbreaker"
	"github.com/angeloszaimis/breakerbox/internal/metrics"
	"github.com/angeloszaimis/breakerbox/internal/registry"
)

func TestMetrics(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Metrics Suite")
}

// gatherValue reads one sample out of the registry, matching on metric name
// and label values. Missing series read as zero.
func gatherValue(reg *prometheus.Registry, name string, labels map[string]string) float64 {
	families, err := reg.Gather()
	Expect(err).NotTo(HaveOccurred())

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	sample:
		for _, m := range mf.GetMetric() {
			got := make(map[string]string, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				got[lp.GetName()] = lp.GetValue()
			}
			for k, v := range labels {
				if got[k] != v {
					continue sample
				}
			}
			return sampleValue(m)
		}
	}

	return 0
}

func sampleValue(m *dto.Metric) float64 {
	if m.GetCounter() != nil {
		return m.GetCounter().GetValue()
	}
	return m.GetGauge().GetValue()
}

var _ = Describe("Metrics", func() {
	var (
		reg *prometheus.Registry
		m   *metrics.Metrics
	)

	BeforeEach(func() {
		reg = prometheus.NewRegistry()

		var err error
		m, err = metrics.New(reg)
		Expect(err).NotTo(HaveOccurred())
	})

	It("should count failures per box and breaker", func() {
		m.RecordFailure("payments", "billing-api")
		m.RecordFailure("payments", "billing-api")
		m.RecordFailure("payments", "ledger-api")

		Expect(gatherValue(reg, "breakerbox_failures_total",
			map[string]string{"box": "payments", "breaker": "billing-api"})).To(Equal(2.0))
		Expect(gatherValue(reg, "breakerbox_failures_total",
			map[string]string{"box": "payments", "breaker": "ledger-api"})).To(Equal(1.0))
	})

	It("should split resets by mode", func() {
		m.RecordReset("payments", "billing-api", "auto")
		m.RecordReset("payments", "billing-api", "manual")
		m.RecordReset("payments", "billing-api", "manual")

		Expect(gatherValue(reg, "breakerbox_resets_total",
			map[string]string{"mode": "auto"})).To(Equal(1.0))
		Expect(gatherValue(reg, "breakerbox_resets_total",
			map[string]string{"mode": "manual"})).To(Equal(2.0))
	})

	It("should move gauges in both directions", func() {
		m.AddRegistered("payments", 1)
		m.AddRegistered("payments", 1)
		m.AddRegistered("payments", -1)

		Expect(gatherValue(reg, "breakerbox_registered_breakers",
			map[string]string{"box": "payments"})).To(Equal(1.0))
	})

	It("should fail when registering the instruments twice", func() {
		_, err := metrics.New(reg)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Collector", func() {
	var (
		reg       *prometheus.Registry
		m         *metrics.Metrics
		collector *metrics.Collector
		ctx       context.Context
		cancel    context.CancelFunc
	)

	BeforeEach(func() {
		reg = prometheus.NewRegistry()

		var err error
		m, err = metrics.New(reg)
		Expect(err).NotTo(HaveOccurred())

		collector = metrics.NewCollector(64, m, slog.Default())
		ctx, cancel = context.WithCancel(context.Background())
		collector.Start(ctx)
	})

	AfterEach(func() {
		cancel()
	})

	failuresFor := func(breaker string) func() float64 {
		return func() float64 {
			return gatherValue(reg, "breakerbox_failures_total",
				map[string]string{"box": "test", "breaker": breaker})
		}
	}

	unavailableGauge := func() float64 {
		return gatherValue(reg, "breakerbox_unavailable_breakers",
			map[string]string{"box": "test"})
	}

	It("should count failure events", func() {
		collector.EventChannel() <- registry.Event{
			Type: registry.EventFailureRecorded, Box: "test", Breaker: "svcA",
		}

		Eventually(failuresFor("svcA")).Should(Equal(1.0))
	})

	It("should track trips and resets on the unavailable gauge", func() {
		collector.EventChannel() <- registry.Event{
			Type: registry.EventTripped, Box: "test", Breaker: "svcA",
			Prev: circuitbreaker.StateClosed, State: circuitbreaker.StateOpen,
		}
		Eventually(unavailableGauge).Should(Equal(1.0))

		collector.EventChannel() <- registry.Event{
			Type: registry.EventManualReset, Box: "test", Breaker: "svcA",
			Prev: circuitbreaker.StateOpen, State: circuitbreaker.StateClosed,
		}
		Eventually(unavailableGauge).Should(Equal(0.0))
	})

	It("should not double-count disabling an already-open breaker", func() {
		collector.EventChannel() <- registry.Event{
			Type: registry.EventTripped, Box: "test", Breaker: "svcA",
			Prev: circuitbreaker.StateClosed, State: circuitbreaker.StateOpen,
		}
		collector.EventChannel() <- registry.Event{
			Type: registry.EventDisabled, Box: "test", Breaker: "svcA",
			Prev: circuitbreaker.StateOpen, State: circuitbreaker.StateDisabled,
		}

		Consistently(unavailableGauge, 200*time.Millisecond).Should(BeNumerically("<=", 1.0))
		Eventually(unavailableGauge).Should(Equal(1.0))
	})

	It("should track registration counts, overwrites included", func() {
		registeredGauge := func() float64 {
			return gatherValue(reg, "breakerbox_registered_breakers",
				map[string]string{"box": "test"})
		}

		collector.EventChannel() <- registry.Event{
			Type: registry.EventRegistered, Box: "test", Breaker: "svcA",
		}
		collector.EventChannel() <- registry.Event{
			Type: registry.EventRegistered, Box: "test", Breaker: "svcA",
			Prev: circuitbreaker.StateOpen, Replaced: true,
		}

		Eventually(registeredGauge).Should(Equal(1.0))

		collector.EventChannel() <- registry.Event{
			Type: registry.EventRemoved, Box: "test", Breaker: "svcA",
			Prev: circuitbreaker.StateClosed, State: circuitbreaker.StateClosed,
		}
		Eventually(registeredGauge).Should(Equal(0.0))
	})

	It("should drain pending events on shutdown", func() {
		for i := 0; i < 10; i++ {
			collector.EventChannel() <- registry.Event{
				Type: registry.EventFailureRecorded, Box: "test", Breaker: "svcB",
			}
		}
		cancel()

		Eventually(failuresFor("svcB")).Should(Equal(10.0))
	})
})
