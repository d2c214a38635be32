package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	errorCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tzinsided_server",
		Name:      "error_total",
		Help:      "The total number of errors occurring",
	})

	lookupCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tzinsided_server",
		Name:      "lookup_total",
		Help:      "Lookups by resolving index, none when nothing matched",
	}, []string{"source"})

	fallbackCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tzinsided_server",
		Name:      "lookup_offset_total",
		Help:      "Lookups resolved only after shifting the query point",
	}, []string{"source"})

	exportHitCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tzinsided_server",
		Name:      "export_cache_hit_total",
		Help:      "GeoJSON exports cache hits",
	})

	exportMissCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tzinsided_server",
		Name:      "export_cache_miss_total",
		Help:      "GeoJSON exports cache misses",
	})
)
