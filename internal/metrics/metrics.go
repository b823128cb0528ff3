// Package metrics provides Prometheus instrumentation for the preview
// pipeline. All metrics are prefixed with "ptui_" and registered with the
// default registry through promauto.
//
// Serve exposes them over HTTP when PTUI_METRICS_ADDR is set:
//
//	go metrics.Serve(ctx, env.MetricsAddr)
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Preview cache metrics
var (
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ptui_preview_cache_hits_total",
			Help: "Total number of preview cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ptui_preview_cache_misses_total",
			Help: "Total number of preview cache misses",
		},
	)

	CacheJoins = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ptui_preview_cache_joins_total",
			Help: "Requests that joined an in-flight render instead of starting one",
		},
	)

	CacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ptui_preview_cache_evictions_total",
			Help: "Total number of entries evicted from the preview cache",
		},
	)

	CacheOversize = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ptui_preview_cache_oversize_total",
			Help: "Rendered previews larger than the whole cache budget",
		},
	)

	CacheSizeBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ptui_preview_cache_size_bytes",
			Help: "Bytes currently held by the preview cache",
		},
	)

	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ptui_preview_cache_entries",
			Help: "Number of entries currently held by the preview cache",
		},
	)
)

// Scheduler metrics
var (
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ptui_scheduler_jobs_total",
			Help: "Render jobs by final state",
		},
		[]string{"state"}, // "done", "failed", "cancelled"
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ptui_scheduler_job_duration_seconds",
			Help:    "Decode and render duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"backend"},
	)

	JobsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ptui_scheduler_jobs_in_flight",
			Help: "Number of render jobs currently running on a worker",
		},
	)

	StaleResults = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ptui_scheduler_stale_results_total",
			Help: "Results dropped because a newer generation superseded them",
		},
	)
)

// Decoder and renderer metrics
var (
	DecodesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ptui_decode_total",
			Help: "Decodes by decoder and scale denominator",
		},
		[]string{"decoder", "scale"},
	)

	DecodeFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ptui_decode_fallbacks_total",
			Help: "Fast decode path degradations by reason",
		},
		[]string{"reason"}, // "unavailable", "failed"
	)

	RenderFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ptui_render_fallbacks_total",
			Help: "Backends skipped by the negotiation chain",
		},
		[]string{"backend"},
	)
)
