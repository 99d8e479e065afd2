package ratelimit

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// Middleware guards a route group with the named route-class rule. Quota
// headers are always set so callers can surface remaining budget.
func Middleware(limiter *Limiter, routeKey string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			result := limiter.Check(clientKey(c), routeKey)

			c.Response().Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			c.Response().Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			c.Response().Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

			if !result.Allowed {
				retryAfter := int(result.RetryAfter.Seconds())
				c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfter))

				return echo.NewHTTPError(http.StatusTooManyRequests, map[string]any{
					"error":       "too many requests",
					"retry_after": retryAfter,
				})
			}

			return next(c)
		}
	}
}

func clientKey(c echo.Context) string {
	realIP := c.RealIP()

	if realIP == "" || realIP == "unknown" {
		realIP = "fallback"
	}

	return realIP
}
