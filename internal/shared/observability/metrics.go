package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	ParsingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pyrefactor_parsing_seconds",
		Help:    "Time spent parsing a source file.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})

	SourceBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pyrefactor_source_bytes",
		Help:    "Size of submitted source files.",
		Buckets: prometheus.ExponentialBuckets(256, 4, 8),
	})

	PassDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pyrefactor_pass_seconds",
		Help:    "Time spent in a single refactoring pass.",
		Buckets: prometheus.DefBuckets,
	}, []string{"pass"})

	PassFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pyrefactor_pass_failures_total",
		Help: "Total number of passes abandoned after an internal failure.",
	}, []string{"pass"})

	SuggestionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pyrefactor_suggestions_total",
		Help: "Total number of suggestions emitted, by category.",
	}, []string{"category"})

	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pyrefactor_requests_total",
		Help: "Total number of refactor requests, by transport and outcome.",
	}, []string{"transport", "outcome"})

	RateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pyrefactor_rate_limited_total",
		Help: "Total number of HTTP requests rejected by the rate limiter.",
	})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pyrefactor_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})

	ConfigReloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pyrefactor_config_reloads_total",
		Help: "Total number of configuration reload attempts, by outcome.",
	}, []string{"outcome"})
)
