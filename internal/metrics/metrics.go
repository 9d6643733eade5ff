package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline指标
var (
	DocumentsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragpipe_documents_ingested_total",
			Help: "Total number of document ingestion operations",
		},
		[]string{"action"}, // indexed, unchanged, deleted, failed
	)

	IngestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ragpipe_ingest_duration_seconds",
			Help:    "Duration of document ingestion",
			Buckets: prometheus.DefBuckets,
		},
	)

	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragpipe_queries_total",
			Help: "Total number of answer queries",
		},
		[]string{"outcome"}, // answered, no_evidence, error
	)

	QueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ragpipe_query_duration_seconds",
			Help:    "Duration of answer queries end to end",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	RerankDegraded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ragpipe_rerank_degraded_total",
			Help: "Total number of queries that fell back to fused order",
		},
	)

	ImageCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragpipe_image_cache_total",
			Help: "Image description cache lookups",
		},
		[]string{"result"}, // hit_redis, hit_db, miss
	)
)
