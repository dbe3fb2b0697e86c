package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AssessmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_assessments_total",
			Help: "Total number of novelty assessments by resulting label",
		},
		[]string{"label"},
	)

	AssessmentDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "argus_assessment_duration_seconds",
			Help:    "Time taken to assess one rule end to end",
			Buckets: prometheus.DefBuckets,
		},
	)

	ExactHashHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "argus_exact_hash_hits_total",
			Help: "Total number of assessments short-circuited by an exact hash match",
		},
	)

	CandidatesRetrieved = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "argus_candidates_retrieved",
			Help:    "Number of gated candidates retrieved per assessment",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
		},
	)

	CandidateErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "argus_candidate_errors_total",
			Help: "Total number of candidates skipped due to scoring errors",
		},
	)

	CanonicalizeErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "argus_canonicalize_errors_total",
			Help: "Total number of rules that failed canonicalization",
		},
	)

	EmbeddingRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_embedding_requests_total",
			Help: "Total number of embedding service batch requests by outcome",
		},
		[]string{"outcome"},
	)

	EmbeddingCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_embedding_cache_total",
			Help: "Total number of embedding cache lookups by outcome",
		},
		[]string{"outcome"},
	)

	MatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_matches_total",
			Help: "Total number of coverage matches by resulting label",
		},
		[]string{"label"},
	)

	ReindexProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "argus_reindex_processed_total",
			Help: "Total number of rules reprocessed by reindex jobs",
		},
	)

	ReindexFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "argus_reindex_failures_total",
			Help: "Total number of rules that failed during reindex",
		},
	)
)
