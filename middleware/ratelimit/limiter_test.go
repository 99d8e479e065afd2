package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tech-arch1tect/loginguard/config"
)

func getTestRateLimitConfig() *config.RateLimitConfig {
	return &config.RateLimitConfig{
		AuthRate:      3,
		AuthPeriod:    15 * time.Minute,
		MutateRate:    10,
		MutatePeriod:  time.Minute,
		GeneralRate:   100,
		GeneralPeriod: time.Minute,
	}
}

func TestLimiter_Check_AllowsWithinCeiling(t *testing.T) {
	limiter := NewLimiter(NewMemoryStore(), getTestRateLimitConfig(), nil)

	for i := 0; i < 3; i++ {
		result := limiter.Check("10.1.2.3", RouteAuth)
		assert.True(t, result.Allowed, "request %d should be allowed", i+1)
		assert.Equal(t, 3, result.Limit)
		assert.Equal(t, 3-(i+1), result.Remaining)
	}
}

func TestLimiter_Check_DeniesOverCeiling(t *testing.T) {
	limiter := NewLimiter(NewMemoryStore(), getTestRateLimitConfig(), nil)

	for i := 0; i < 3; i++ {
		limiter.Check("10.1.2.3", RouteAuth)
	}

	result := limiter.Check("10.1.2.3", RouteAuth)
	assert.False(t, result.Allowed)
	assert.Equal(t, 0, result.Remaining)
	assert.Greater(t, result.RetryAfter, time.Duration(0))
}

func TestLimiter_Check_WindowReset(t *testing.T) {
	cfg := getTestRateLimitConfig()
	cfg.AuthRate = 1
	cfg.AuthPeriod = 20 * time.Millisecond
	limiter := NewLimiter(NewMemoryStore(), cfg, nil)

	assert.True(t, limiter.Check("10.1.2.3", RouteAuth).Allowed)
	assert.False(t, limiter.Check("10.1.2.3", RouteAuth).Allowed)

	time.Sleep(30 * time.Millisecond)

	assert.True(t, limiter.Check("10.1.2.3", RouteAuth).Allowed, "counter should reset once the window elapses")
}

func TestLimiter_Check_IndependentClients(t *testing.T) {
	limiter := NewLimiter(NewMemoryStore(), getTestRateLimitConfig(), nil)

	for i := 0; i < 4; i++ {
		limiter.Check("10.1.2.3", RouteAuth)
	}

	result := limiter.Check("10.9.9.9", RouteAuth)
	assert.True(t, result.Allowed, "a different client must have its own window")
}

func TestLimiter_Check_UnknownRouteFallsBackToGeneral(t *testing.T) {
	limiter := NewLimiter(NewMemoryStore(), getTestRateLimitConfig(), nil)

	result := limiter.Check("10.1.2.3", "unheard-of")
	assert.True(t, result.Allowed)
	assert.Equal(t, 100, result.Limit)
}
