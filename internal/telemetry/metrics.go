package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"irisml/internal/logging"
)

const namespace = "irisml"

// Metrics owns a private registry so tests and multiple engines do not clash.
type Metrics struct {
	Registry *prometheus.Registry

	// Labels: outcome (ok, unavailable, invalid, error)
	PredictionsTotal   *prometheus.CounterVec
	PredictionDuration prometheus.Histogram
	ModelLoaded        prometheus.Gauge
	ModelVersion       prometheus.Gauge

	PoisonedCellsTotal prometheus.Counter
	// Labels: status (FINISHED, FAILED)
	TrainingRunsTotal *prometheus.CounterVec
	// Labels: split (train, validation_clean), poison_percent, max_depth
	RunAccuracy *prometheus.GaugeVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		PredictionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "predictions_total",
			Help:      "Prediction requests by outcome.",
		}, []string{"outcome"}),
		PredictionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "prediction_duration_seconds",
			Help:      "Time spent producing a prediction.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
		ModelLoaded: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "model",
			Name:      "loaded",
			Help:      "1 when a model is loaded and serving.",
		}),
		ModelVersion: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "model",
			Name:      "version",
			Help:      "Registry version of the serving model.",
		}),
		PoisonedCellsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "training",
			Name:      "poisoned_cells_total",
			Help:      "Cell assignments made by the poisoning stage.",
		}),
		TrainingRunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "training",
			Name:      "runs_total",
			Help:      "Training runs by final status.",
		}, []string{"status"}),
		RunAccuracy: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "training",
			Name:      "accuracy",
			Help:      "Accuracy of the latest run per poisoning level and depth.",
		}, []string{"split", "poison_percent", "max_depth"}),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// ObserveRun records a finished run's accuracies.
func (m *Metrics) ObserveRun(poisonFraction float64, maxDepth int, train, clean float64) {
	pct := strconv.FormatFloat(poisonFraction*100, 'f', 1, 64)
	depth := strconv.Itoa(maxDepth)
	m.RunAccuracy.WithLabelValues("train", pct, depth).Set(train)
	m.RunAccuracy.WithLabelValues("validation_clean", pct, depth).Set(clean)
}

// Expose serves /metrics on its own port in the background. The returned
// server is nil when port is 0.
func Expose(port int, m *Metrics) *http.Server {
	if port == 0 {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.For("telemetry").Error("metrics listener stopped", "port", port, "err", err)
		}
	}()
	return srv
}

// Shutdown stops a server returned by Expose. Nil is a no-op.
func Shutdown(ctx context.Context, srv *http.Server) error {
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
