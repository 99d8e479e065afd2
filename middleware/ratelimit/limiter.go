package ratelimit

import (
	"time"

	"github.com/tech-arch1tect/loginguard/config"
	"github.com/tech-arch1tect/loginguard/services/logging"
	"go.uber.org/zap"
)

// Route classes with distinct configured ceilings.
const (
	RouteAuth    = "auth"
	RouteMutate  = "mutate"
	RouteGeneral = "general"
)

type Rule struct {
	Rate   int
	Period time.Duration
}

type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// MetricsRecorder counts denied requests. Optional.
type MetricsRecorder interface {
	RecordRateLimitDenial(routeClass string)
}

type Limiter struct {
	store   Store
	rules   map[string]Rule
	logger  *logging.Service
	metrics MetricsRecorder
}

func NewLimiter(store Store, cfg *config.RateLimitConfig, logger *logging.Service) *Limiter {
	return &Limiter{
		store: store,
		rules: map[string]Rule{
			RouteAuth:    {Rate: cfg.AuthRate, Period: cfg.AuthPeriod},
			RouteMutate:  {Rate: cfg.MutateRate, Period: cfg.MutatePeriod},
			RouteGeneral: {Rate: cfg.GeneralRate, Period: cfg.GeneralPeriod},
		},
		logger: logger,
	}
}

func (l *Limiter) SetMetricsRecorder(metrics MetricsRecorder) {
	l.metrics = metrics
}

// Check records one request for the client+route pair and reports whether it
// is within the route's ceiling. A store failure allows the request through:
// the limiter is a speed bump, not the sole defense.
func (l *Limiter) Check(clientKey, routeKey string) Result {
	rule, ok := l.rules[routeKey]
	if !ok {
		rule = l.rules[RouteGeneral]
	}

	count, resetAt, err := l.store.Increment(clientKey+":"+routeKey, rule.Period)
	if err != nil {
		l.logger.Error("rate limit store unavailable, allowing request",
			zap.String("route", routeKey),
			zap.Error(err))
		return Result{Allowed: true, Limit: rule.Rate, Remaining: rule.Rate, ResetAt: time.Now().Add(rule.Period)}
	}

	remaining := rule.Rate - count
	if remaining < 0 {
		remaining = 0
	}

	if count > rule.Rate {
		retryAfter := time.Until(resetAt)
		if retryAfter < time.Second {
			retryAfter = time.Second
		}

		l.logger.Warn("rate limit exceeded",
			zap.String("client", clientKey),
			zap.String("route", routeKey),
			zap.Int("count", count),
			zap.Int("limit", rule.Rate))

		if l.metrics != nil {
			l.metrics.RecordRateLimitDenial(routeKey)
		}

		return Result{
			Allowed:    false,
			Limit:      rule.Rate,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: retryAfter,
		}
	}

	return Result{
		Allowed:   true,
		Limit:     rule.Rate,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}

// Forget clears the window for a client+route pair.
func (l *Limiter) Forget(clientKey, routeKey string) {
	if err := l.store.Reset(clientKey + ":" + routeKey); err != nil {
		l.logger.Warn("failed to reset rate limit window",
			zap.String("route", routeKey),
			zap.Error(err))
	}
}
