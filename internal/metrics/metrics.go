package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the transcriber service.
type Metrics struct {
	UploadsReceived prometheus.Counter
	JobsCreated     prometheus.Counter
	JobsFinished    *prometheus.CounterVec
	JobDuration     prometheus.Histogram

	TranscriptionRequests prometheus.Counter
	TranscriptionFailures prometheus.Counter
	TranscriptionRetries  prometheus.Counter
	ChunksProcessed       prometheus.Counter
}

// NewMetrics creates and registers all metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		UploadsReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "transcriber_uploads_received_total",
			Help: "Total number of accepted uploads",
		}),
		JobsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "transcriber_jobs_created_total",
			Help: "Total number of jobs created",
		}),
		JobsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "transcriber_jobs_finished_total",
			Help: "Total number of jobs reaching a terminal state",
		}, []string{"status"}),
		JobDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "transcriber_job_duration_seconds",
			Help:    "Wall-clock pipeline duration per job",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}),
		TranscriptionRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "transcriber_transcription_requests_total",
			Help: "Total transcription API attempts, including retries",
		}),
		TranscriptionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "transcriber_transcription_failures_total",
			Help: "Total transcription calls that failed after retries",
		}),
		TranscriptionRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "transcriber_transcription_retries_total",
			Help: "Total transcription retry attempts",
		}),
		ChunksProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "transcriber_chunks_processed_total",
			Help: "Total audio chunks transcribed",
		}),
	}
}
