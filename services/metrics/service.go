package metrics

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Service aggregates the pipeline's Prometheus collectors behind nil-safe
// recording methods so callers never have to check whether metrics are
// enabled.
type Service struct {
	registry *prometheus.Registry

	loginAttempts    *prometheus.CounterVec
	tokenRotations   *prometheus.CounterVec
	anomalies        *prometheus.CounterVec
	rateLimitDenials *prometheus.CounterVec
	geoLookups       *prometheus.CounterVec
}

func NewService() *Service {
	registry := prometheus.NewRegistry()

	s := &Service{
		registry: registry,
		loginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loginguard",
			Name:      "login_attempts_total",
			Help:      "Login attempts partitioned by outcome.",
		}, []string{"outcome"}),
		tokenRotations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loginguard",
			Name:      "token_rotations_total",
			Help:      "Refresh token rotation attempts partitioned by outcome.",
		}, []string{"outcome"}),
		anomalies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loginguard",
			Name:      "anomalies_total",
			Help:      "Recorded anomalies partitioned by kind and severity.",
		}, []string{"kind", "severity"}),
		rateLimitDenials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loginguard",
			Name:      "rate_limit_denials_total",
			Help:      "Requests rejected by the rate limiter partitioned by route class.",
		}, []string{"route_class"}),
		geoLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loginguard",
			Name:      "geoip_lookups_total",
			Help:      "Geolocation lookups partitioned by result (hit, miss, skipped).",
		}, []string{"result"}),
	}

	registry.MustRegister(
		s.loginAttempts,
		s.tokenRotations,
		s.anomalies,
		s.rateLimitDenials,
		s.geoLookups,
	)

	return s
}

func (s *Service) RecordLogin(outcome string) {
	if s == nil {
		return
	}
	s.loginAttempts.WithLabelValues(outcome).Inc()
}

func (s *Service) RecordRotation(outcome string) {
	if s == nil {
		return
	}
	s.tokenRotations.WithLabelValues(outcome).Inc()
}

func (s *Service) RecordAnomaly(kind, severity string) {
	if s == nil {
		return
	}
	s.anomalies.WithLabelValues(kind, severity).Inc()
}

func (s *Service) RecordRateLimitDenial(routeClass string) {
	if s == nil {
		return
	}
	s.rateLimitDenials.WithLabelValues(routeClass).Inc()
}

func (s *Service) RecordGeoLookup(result string) {
	if s == nil {
		return
	}
	s.geoLookups.WithLabelValues(result).Inc()
}

// Handler serves the scrape endpoint from the service's own registry so
// only collectors registered here are exposed.
func (s *Service) Handler() echo.HandlerFunc {
	if s == nil {
		return func(c echo.Context) error {
			return c.NoContent(http.StatusNotFound)
		}
	}
	h := promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
	return func(c echo.Context) error {
		h.ServeHTTP(c.Response(), c.Request())
		return nil
	}
}
