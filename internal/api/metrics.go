package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTPMetrics holds request and connection metrics for the server.
type HTTPMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	wsConnections   prometheus.Gauge
}

// NewHTTPMetrics registers HTTP metrics on reg. sessions, when non-nil,
// is exported as a gauge.
func NewHTTPMetrics(reg prometheus.Registerer, sessions SessionManager) *HTTPMetrics {
	factory := promauto.With(reg)

	m := &HTTPMetrics{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "attachdrop",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by route and status",
		}, []string{"method", "route", "status"}),

		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "attachdrop",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),

		wsConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "attachdrop",
			Name:      "websocket_connections",
			Help:      "Number of open widget websocket connections",
		}),
	}

	if sessions != nil {
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "attachdrop",
			Name:      "active_sessions",
			Help:      "Number of live widget sessions",
		}, func() float64 { return float64(sessions.Count()) })
	}

	return m
}

// Middleware records every request. Streaming routes are timed until the
// stream closes.
func (m *HTTPMetrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				status = http.StatusInternalServerError
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else if ae, ok := err.(*APIError); ok {
					status = ae.Status
				}
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			m.requestsTotal.WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).Inc()
			m.requestDuration.WithLabelValues(c.Request().Method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

func (m *HTTPMetrics) wsOpened() {
	if m != nil {
		m.wsConnections.Inc()
	}
}

func (m *HTTPMetrics) wsClosed() {
	if m != nil {
		m.wsConnections.Dec()
	}
}
