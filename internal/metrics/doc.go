// Package metrics exposes breaker activity as Prometheus metrics.
//
// Registry workers emit events on a buffered channel; a dedicated collector
// goroutine consumes them and updates the instruments, so the breaker path
// never blocks on metrics. Events are dropped, not queued unboundedly, when
// the collector falls behind.
//
// Exported series:
//
//   - breakerbox_failures_total{box,breaker}
//   - breakerbox_trips_total{box,breaker}
//   - breakerbox_resets_total{box,breaker,mode}   mode is "auto" or "manual"
//   - breakerbox_registered_breakers{box}
//   - breakerbox_unavailable_breakers{box}        open or disabled
//
// Example:
//
//	m, _ := metrics.New(prometheus.DefaultRegisterer)
//	collector := metrics.NewCollector(1000, m, logger)
//	collector.Start(ctx)
//
//	box := registry.Start("payments", registry.WithEvents(collector.EventChannel()))
package metrics
