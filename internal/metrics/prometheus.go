package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/vipul43/tmdb-sync-worker/internal/models"
	"github.com/vipul43/tmdb-sync-worker/internal/service"
)

const namespace = "tmdb_sync"

var _ service.Recorder = (*PrometheusRecorder)(nil)

// PrometheusRecorder exposes pipeline measurements on its own registry
type PrometheusRecorder struct {
	registry *prometheus.Registry

	batches       *prometheus.CounterVec
	batchDuration *prometheus.HistogramVec
	batchRetries  prometheus.Counter
	pages         prometheus.Counter
	items         prometheus.Counter
	errors        *prometheus.CounterVec
	checkpoint    *prometheus.GaugeVec
}

func NewPrometheusRecorder() *PrometheusRecorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &PrometheusRecorder{
		registry: registry,
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Batches processed by outcome.",
		}, []string{"outcome"}),
		batchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Time spent processing one batch attempt.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}, []string{"outcome"}),
		batchRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_retries_total",
			Help:      "Batch attempts scheduled after a failed attempt.",
		}),
		pages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_fetched_total",
			Help:      "Catalog pages fetched successfully.",
		}),
		items: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_upserted_total",
			Help:      "Movies upserted.",
		}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Failed batch attempts by error type.",
		}, []string{"type"}),
		checkpoint: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "checkpoint_page",
			Help:      "Last page synced per job.",
		}, []string{"job"}),
	}

	registry.MustRegister(r.batches, r.batchDuration, r.batchRetries, r.pages, r.items, r.errors, r.checkpoint)
	return r
}

func (r *PrometheusRecorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *PrometheusRecorder) BatchFinished(outcome string, elapsed time.Duration) {
	r.batches.WithLabelValues(outcome).Inc()
	r.batchDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

func (r *PrometheusRecorder) BatchRetried() {
	r.batchRetries.Inc()
}

func (r *PrometheusRecorder) PagesFetched(n int) {
	r.pages.Add(float64(n))
}

func (r *PrometheusRecorder) ItemsUpserted(n int) {
	r.items.Add(float64(n))
}

func (r *PrometheusRecorder) SyncError(errType models.ErrorType) {
	r.errors.WithLabelValues(string(errType)).Inc()
}

func (r *PrometheusRecorder) Checkpoint(jobName string, page int) {
	r.checkpoint.WithLabelValues(jobName).Set(float64(page))
}

// Handler serves the registry in the Prometheus exposition format
func (r *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled
func (r *PrometheusRecorder) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.WithField("addr", addr).Info("Serving metrics")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
