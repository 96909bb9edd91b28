// Package metrics holds the daemon's Prometheus collectors.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sdkbridge/internal/eventbus"
	"sdkbridge/internal/linkqueue"
)

const namespace = "sdkbridge"

// Metrics owns a private registry so tests and embedders never collide on
// the global one.
type Metrics struct {
	reg *prometheus.Registry

	commands       *prometheus.CounterVec
	linksProduced  *prometheus.CounterVec
	linksDelivered prometheus.Counter
	linksPending   prometheus.Gauge
	attached       prometheus.Gauge
	events         *prometheus.CounterVec
	busDropped     prometheus.GaugeFunc

	httpDuration *prometheus.HistogramVec
	httpRequests *prometheus.CounterVec
}

// New registers every collector. bus may be nil.
func New(bus eventbus.Bus) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	m := &Metrics{
		reg: reg,
		commands: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "commands_total",
			Help: "Host method calls by method and result code.",
		}, []string{"method", "code"}),
		linksProduced: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "links_produced_total",
			Help: "Deep links observed, by source.",
		}, []string{"source"}),
		linksDelivered: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "links_delivered_total",
			Help: "Deep links accepted by the stream consumer.",
		}),
		linksPending: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "links_pending",
			Help: "Deep links buffered while no consumer is attached.",
		}),
		attached: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "consumer_attached",
			Help: "1 while a stream consumer is attached.",
		}),
		events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "events_logged_total",
			Help: "App events accepted by the SDK, by kind.",
		}, []string{"kind"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"path", "method", "status"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"path", "method", "status"}),
	}
	if bus != nil {
		m.busDropped = f.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace, Name: "eventbus_dropped",
			Help: "Bus events missed by slow subscribers.",
		}, func() float64 { return float64(bus.Dropped()) })
	}
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// ObserveCommand counts one method call. code is "ok" or a command error code.
func (m *Metrics) ObserveCommand(method, code string) {
	m.commands.WithLabelValues(method, code).Inc()
}

// ObserveQueue is a linkqueue observer.
func (m *Metrics) ObserveQueue(s linkqueue.Stats) {
	m.linksPending.Set(float64(s.Pending))
	if s.Attached {
		m.attached.Set(1)
	} else {
		m.attached.Set(0)
	}
}

// Consume counts bridge signals from ch until ctx is done or ch closes.
func (m *Metrics) Consume(ctx context.Context, ch <-chan eventbus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			m.record(e)
		}
	}
}

func (m *Metrics) record(e eventbus.Event) {
	switch e.Type {
	case eventbus.LinkProduced:
		if d, ok := e.Data.(eventbus.LinkData); ok {
			m.linksProduced.WithLabelValues(d.Source).Inc()
		}
	case eventbus.LinkDelivered:
		m.linksDelivered.Inc()
	case eventbus.EventLogged:
		if d, ok := e.Data.(eventbus.EventData); ok {
			m.events.WithLabelValues(d.Kind).Inc()
		}
	}
}

// Middleware records RED metrics keyed by the chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			path = rc.RoutePattern()
		}
		status := strconv.Itoa(ww.Status())
		m.httpDuration.WithLabelValues(path, r.Method, status).Observe(time.Since(start).Seconds())
		m.httpRequests.WithLabelValues(path, r.Method, status).Inc()
	})
}
