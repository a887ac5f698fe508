package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "semmap_queries_total",
		Help: "Total queries executed by form and outcome",
	}, []string{"form", "outcome"})

	queryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "semmap_query_duration_seconds",
		Help:    "Store round trip duration per query",
		Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"form"})

	materializedEntities = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "semmap_materialized_entities",
		Help:    "Entities materialized per entity query",
		Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000},
	})

	commitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "semmap_commits_total",
		Help: "Total session commits by outcome",
	}, []string{"outcome"})
)

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
