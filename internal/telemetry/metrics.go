package telemetry

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pointconv/internal/logging"
)

const namespace = "pointconv"

var (
	Conversions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "conversions_total",
		Help:      "Datasets converted, by transform kind.",
	}, []string{"kind"})

	PointsConverted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "points_converted_total",
		Help:      "Points rewritten by the transformer, by transform kind.",
	}, []string{"kind"})

	ConversionSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "conversion_duration_seconds",
		Help:      "Wall time of a single dataset conversion.",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
	}, []string{"kind"})

	DatasetsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "datasets_skipped_total",
		Help:      "Input datasets the plugin did not convert, by reason.",
	}, []string{"reason"})

	TasksRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "tasks_running",
		Help:      "Dataset tasks currently in the running state.",
	})

	TaskTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "task_transitions_total",
		Help:      "Dataset task state transitions, by target state.",
	}, []string{"state"})

	RPCs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "grpc_requests_total",
		Help:      "Conversion service calls, by method and status code.",
	}, []string{"method", "code"})

	Frames = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pipeline_frames_total",
		Help:      "Pipeline frames handled, by outcome.",
	}, []string{"outcome"})
)

// Expose serves the default registry on :port/metrics in the background.
func Expose(port int) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.L().Error("telemetry: metrics listener stopped", "port", port, "err", err)
		}
	}()
	return srv
}
