package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newswire_fetches_total",
			Help: "Total number of upstream fetch calls",
		},
		[]string{"source", "status"},
	)

	ItemsCollected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newswire_items_collected_total",
			Help: "Raw items returned by upstream sources",
		},
		[]string{"source"},
	)

	ArticlesSaved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "newswire_articles_saved_total",
			Help: "Articles persisted after dedup and capping",
		},
	)

	DuplicatesFiltered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "newswire_duplicates_filtered_total",
			Help: "Candidates rejected by url or fuzzy-title dedup",
		},
	)

	ItemsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "newswire_items_dropped_total",
			Help: "Raw items dropped during normalization",
		},
	)

	ArticlesDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "newswire_articles_deleted_total",
			Help: "Articles removed by the retention sweep",
		},
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "newswire_pipeline_run_duration_seconds",
			Help:    "Wall time of one full pipeline pass",
			Buckets: prometheus.DefBuckets,
		},
	)
)
