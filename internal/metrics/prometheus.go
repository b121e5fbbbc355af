package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RecordingsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keyframes_recordings_processed_total",
		Help: "Total number of recordings processed, by outcome",
	}, []string{"status"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "keyframes_stage_duration_seconds",
		Help:    "Duration of each pipeline stage",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"stage"})

	FramesExtractedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "keyframes_frames_extracted_total",
		Help: "Total number of frames sampled from recordings",
	})

	FramesSelectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "keyframes_frames_selected_total",
		Help: "Total number of key frames emitted",
	})

	AudioFallbackTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keyframes_audio_fallback_total",
		Help: "Recordings finished without narration, by reason",
	}, []string{"reason"})

	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "keyframes_active_workers",
		Help: "Number of jobs currently being processed",
	})

	RetryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keyframes_retry_total",
		Help: "Total number of job retries",
	}, []string{"attempt"})
)
