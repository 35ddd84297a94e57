package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	Registry *prometheus.Registry

	httpDuration        *prometheus.HistogramVec
	previewRequests     *prometheus.CounterVec
	previewQuestions    prometheus.Counter
	underfilledSections prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "examdesk",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		previewRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "examdesk",
			Name:      "preview_requests_total",
			Help:      "Exam preview requests by outcome.",
		}, []string{"outcome"}),
		previewQuestions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "examdesk",
			Name:      "preview_questions_total",
			Help:      "Questions returned by exam previews.",
		}),
		underfilledSections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "examdesk",
			Name:      "preview_underfilled_sections_total",
			Help:      "Preview sections that returned fewer questions than requested.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpDuration, m.previewRequests, m.previewQuestions, m.underfilledSections,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Middleware records request latency labelled with the chi route pattern,
// so /api/questions/{id} is one series rather than one per id.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpDuration.
			WithLabelValues(r.Method, route, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
	})
}

// PreviewDone counts one preview request. outcome is ok|client_error|error.
func (m *Metrics) PreviewDone(outcome string) {
	if m == nil {
		return
	}
	m.previewRequests.WithLabelValues(outcome).Inc()
}

// PreviewSection counts the questions one section produced.
func (m *Metrics) PreviewSection(requested, returned int) {
	if m == nil {
		return
	}
	m.previewQuestions.Add(float64(returned))
	if returned < requested {
		m.underfilledSections.Inc()
	}
}
