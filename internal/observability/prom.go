package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

type Prom struct {
	RequestsTotal    *prometheus.CounterVec
	RequestsDuration *prometheus.HistogramVec
	InFlight         *prometheus.GaugeVec
	// DB
	DbQueryDuration *prometheus.HistogramVec
	DbErrorsTotal   *prometheus.CounterVec

	// Attendance state machine
	Transitions *prometheus.CounterVec

	// Domain events
	EventsPublished *prometheus.CounterVec
	EventsConsumed  *prometheus.CounterVec
	EventDuration   *prometheus.HistogramVec

	StatsCache *prometheus.CounterVec
}

func NewProm(reg prometheus.Registerer) *Prom {
	p := &Prom{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "attendance",
				Name:      "http_requests_total",
				Help:      "Total HTTP requests processed",
			},
			[]string{"method", "route", "status"},
		),
		RequestsDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "attendance",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency distributions.",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"method", "route", "status"},
		),
		InFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "attendance",
				Name:      "http_in_flight_requests",
				Help:      "Current number of in-flight HTTP requests.",
			},
			[]string{"method", "route"},
		),
		DbQueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "attendance",
				Subsystem: "db",
				Name:      "query_duration_seconds",
				Help:      "DB operation latency (logical op, not raw SQL)",
				Buckets:   []float64{0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.35, 0.5, 1, 2, 5},
			},
			[]string{"op", "status"},
		),
		DbErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "attendance",
				Subsystem: "db",
				Name:      "errors_total",
				Help:      "DB errors by logical op and class.",
			},
			[]string{"op", "class"},
		),
		Transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "attendance",
				Subsystem: "ledger",
				Name:      "transitions_total",
				Help:      "Check-in/check-out attempts by action and outcome.",
			},
			[]string{"action", "result"}, // result=ok|already_checked_in|not_checked_in|already_checked_out|error
		),
		EventsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "attendance",
				Subsystem: "events",
				Name:      "published_total",
				Help:      "Domain events handed to the broker by type and result.",
			},
			[]string{"type", "result"},
		),
		EventsConsumed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "attendance",
				Subsystem: "events",
				Name:      "consumed_total",
				Help:      "Domain events processed by the worker by type and result.",
			},
			[]string{"type", "result"}, // result=done|failed|rejected
		),
		EventDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "attendance",
				Subsystem: "events",
				Name:      "handle_duration_seconds",
				Help:      "Worker event handling duration by type.",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"type"},
		),
		StatsCache: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "attendance",
				Subsystem: "stats",
				Name:      "cache_lookups_total",
				Help:      "Team stats cache lookups by result.",
			},
			[]string{"result"}, // hit|miss|error
		),
	}
	reg.MustRegister(
		p.RequestsTotal, p.RequestsDuration, p.InFlight,
		p.DbQueryDuration, p.DbErrorsTotal,
		p.Transitions,
		p.EventsPublished, p.EventsConsumed, p.EventDuration,
		p.StatsCache,
	)

	return p
}

func (p *Prom) GinHandleMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()

		// route template is only available after routing; best effort:
		route := ctx.FullPath()

		if route == "" {
			route = "unmatched"
		}

		method := ctx.Request.Method
		p.InFlight.WithLabelValues(method, route).Inc()
		defer p.InFlight.WithLabelValues(method, route).Dec()
		ctx.Next()

		status := strconv.Itoa(ctx.Writer.Status())
		secs := time.Since(start).Seconds()

		p.RequestsTotal.WithLabelValues(method, route, status).Inc()
		p.RequestsDuration.WithLabelValues(method, route, status).Observe(secs)
	}
}

// The helpers below are nil-safe so components can run without metrics.

func (p *Prom) ObserveTransition(action, result string) {
	if p == nil {
		return
	}
	p.Transitions.WithLabelValues(action, result).Inc()
}

func (p *Prom) ObservePublish(eventType string, err error) {
	if p == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	p.EventsPublished.WithLabelValues(eventType, result).Inc()
}

func (p *Prom) ObserveConsumed(eventType, result string, d time.Duration) {
	if p == nil {
		return
	}
	p.EventsConsumed.WithLabelValues(eventType, result).Inc()
	p.EventDuration.WithLabelValues(eventType).Observe(d.Seconds())
}

func (p *Prom) ObserveStatsCache(result string) {
	if p == nil {
		return
	}
	p.StatsCache.WithLabelValues(result).Inc()
}
