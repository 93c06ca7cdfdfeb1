package routing

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	assignmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "legalnexus_assignments_total",
			Help: "Director assignments by resolution method; method=\"none\" counts failures.",
		},
		[]string{"method"},
	)

	ruleCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "legalnexus_rule_cache_lookups_total",
			Help: "Routing rule cache lookups by result (hit, miss, error).",
		},
		[]string{"result"},
	)
)
