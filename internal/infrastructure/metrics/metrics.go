// Package metrics exposes Prometheus metrics for lifecycle events, reaper runs
// and the HTTP surface.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dggpoliticalaction/greeter/internal/application/ports"
	"github.com/dggpoliticalaction/greeter/internal/application/retention"
	"github.com/dggpoliticalaction/greeter/internal/domain"
)

var (
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "greeter_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
	lifecycleEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greeter_lifecycle_events_total",
			Help: "Onboarding and welcome thread transitions by type",
		},
		[]string{"type"},
	)
	reaperRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greeter_reaper_runs_total",
			Help: "Inactivity reaper runs by outcome",
		},
		[]string{"outcome"},
	)
	reaperThreads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greeter_reaper_threads_total",
			Help: "Welcome threads seen by the inactivity reaper by result",
		},
		[]string{"result"},
	)
)

// PrometheusMiddleware records request duration labelled by the matched chi
// route pattern, so path parameters do not create new series.
func PrometheusMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		httpRequestDuration.
			WithLabelValues(r.Method, routePattern(r), strconv.Itoa(ww.Status())).
			Observe(time.Since(start).Seconds())
	})
}

func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return "unmatched"
	}
	if p := rctx.RoutePattern(); p != "" {
		return p
	}
	return "unmatched"
}

// RecordReaperRun records the outcome of one reaper run.
func RecordReaperRun(report retention.Report, err error) {
	if err != nil {
		reaperRuns.WithLabelValues("error").Inc()
	} else {
		reaperRuns.WithLabelValues("ok").Inc()
	}
	reaperThreads.WithLabelValues("checked").Add(float64(report.Checked))
	reaperThreads.WithLabelValues("closed").Add(float64(report.Closed))
	reaperThreads.WithLabelValues("failed").Add(float64(report.Failed))
}

// RegisterPendingGauge exposes the pending onboarding count. Call once.
func RegisterPendingGauge(count func() int) {
	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "greeter_pending_onboardings",
		Help: "Welcome thread creations waiting for their delay",
	}, func() float64 { return float64(count()) })
}

// Emitter counts lifecycle events and forwards them to next, if any.
type Emitter struct {
	next ports.LifecycleEmitter
}

// NewEmitter wraps next (may be nil) with event counting.
func NewEmitter(next ports.LifecycleEmitter) *Emitter {
	return &Emitter{next: next}
}

// Emit implements ports.LifecycleEmitter.
func (e *Emitter) Emit(ctx context.Context, event domain.LifecycleEvent) error {
	lifecycleEvents.WithLabelValues(string(event.Type)).Inc()
	if e.next == nil {
		return nil
	}
	return e.next.Emit(ctx, event)
}

var _ ports.LifecycleEmitter = (*Emitter)(nil)
