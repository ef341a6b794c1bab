package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// cacheRequests counts GetOrBuild calls by outcome
	cacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "navigation_cache_requests_total",
		Help: "Navigation cache lookups by outcome",
	}, []string{"outcome"})

	// treeBuilds counts tree builds by result
	treeBuilds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "navigation_tree_builds_total",
		Help: "Navigation tree builds by result",
	}, []string{"result"})

	// treeBuildDuration tracks build latency
	treeBuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "navigation_tree_build_duration_seconds",
		Help:    "Navigation tree build duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
	})

	cacheInvalidations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "navigation_cache_invalidations_total",
		Help: "Navigation cache invalidations",
	})

	storeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "navigation_cache_store_errors_total",
		Help: "Navigation cache store failures by operation",
	}, []string{"operation"})
)
