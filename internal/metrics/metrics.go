package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tts_live_sessions_active",
		Help: "Currently open live WebSocket sessions",
	})

	SessionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tts_live_sessions_total",
		Help: "Total live sessions opened",
	})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tts_stage_duration_seconds",
		Help:    "Per-stage latency (phonemize, synthesize)",
		Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.2, 0.5, 1.0, 2.0, 5.0},
	}, []string{"stage"})

	SentenceSynthesisDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tts_sentence_synthesis_duration_seconds",
		Help:    "End-to-end per-sentence synthesis latency",
		Buckets: []float64{0.05, 0.1, 0.2, 0.5, 1.0, 2.0, 5.0},
	})

	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tts_errors_total",
		Help: "Error counts by stage and error type",
	}, []string{"stage", "error_type"})

	AudioChunksSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tts_audio_chunks_sent_total",
		Help: "Total audio chunks written to live sessions",
	})

	SentencesSynthesized = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tts_sentences_synthesized_total",
		Help: "Total sentences synthesized across all sessions",
	})

	JobsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tts_jobs_submitted_total",
		Help: "Total batch jobs submitted",
	})

	JobsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tts_jobs_completed_total",
		Help: "Total batch jobs finished, by outcome",
	}, []string{"outcome"})

	JobsSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tts_jobs_swept_total",
		Help: "Total stale jobs deleted by the cleanup sweeper",
	})

	JWKSCacheRefreshes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tts_jwks_cache_refreshes_total",
		Help: "Total JWKS cache refreshes (kid miss or TTL expiry)",
	})
)
