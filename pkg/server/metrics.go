package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// BufferPoolMetrics are the Adaptive Partitioned Buffer Pool's
// per-partition counters/gauges the component design calls for (hits,
// misses, evictions, dirty writes, total accesses), labeled by
// partition so a multi-partition pool's hot and cold partitions are
// distinguishable on a single dashboard.
type BufferPoolMetrics struct {
	Hits         *prometheus.CounterVec
	Misses       *prometheus.CounterVec
	Evictions    *prometheus.CounterVec
	DirtyWrites  *prometheus.CounterVec
	TotalAccess  *prometheus.CounterVec
	registry     *prometheus.Registry
}

// NewBufferPoolMetrics builds and registers a fresh metric set against
// its own registry, so a test can spin up many servers without
// colliding on the global default registry.
func NewBufferPoolMetrics() *BufferPoolMetrics {
	reg := prometheus.NewRegistry()
	labels := []string{"partition"}

	m := &BufferPoolMetrics{
		Hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "francodb_buffer_pool_hits_total",
			Help: "Buffer pool frame lookups satisfied without a disk read.",
		}, labels),
		Misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "francodb_buffer_pool_misses_total",
			Help: "Buffer pool frame lookups that required a disk read.",
		}, labels),
		Evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "francodb_buffer_pool_evictions_total",
			Help: "Frames evicted from the buffer pool to make room for a new page.",
		}, labels),
		DirtyWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "francodb_buffer_pool_dirty_writes_total",
			Help: "Dirty frames flushed back to disk.",
		}, labels),
		TotalAccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "francodb_buffer_pool_accesses_total",
			Help: "Total buffer pool accesses (hits plus misses).",
		}, labels),
		registry: reg,
	}

	reg.MustRegister(m.Hits, m.Misses, m.Evictions, m.DirtyWrites, m.TotalAccess)
	return m
}

// Handler serves the registered metrics over HTTP, for mounting at
// "/metrics".
func (m *BufferPoolMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
