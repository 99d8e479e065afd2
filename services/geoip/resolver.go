package geoip

import (
	"context"
	"net"
	"time"

	"github.com/tech-arch1tect/loginguard/config"
	"github.com/tech-arch1tect/loginguard/internal/kvstore"
	"github.com/tech-arch1tect/loginguard/services/logging"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// MetricsRecorder counts lookup outcomes. Optional.
type MetricsRecorder interface {
	RecordGeoLookup(result string)
}

// Resolver caches upstream lookups and enforces a process-wide per-minute
// call budget. Exhausting the budget yields "no location" instead of
// blocking: geolocation is advisory and must never stall a login.
type Resolver struct {
	provider Provider
	cache    *kvstore.MemoryStore[cacheEntry]
	budget   *rate.Limiter
	ttl      time.Duration
	logger   *logging.Service
	metrics  MetricsRecorder
}

func NewResolver(provider Provider, cfg *config.GeoIPConfig, logger *logging.Service) *Resolver {
	perMinute := rate.Limit(float64(cfg.CallsPerMinute) / 60.0)

	return &Resolver{
		provider: provider,
		cache:    kvstore.NewMemoryStore[cacheEntry](),
		budget:   rate.NewLimiter(perMinute, cfg.CallsPerMinute),
		ttl:      cfg.CacheTTL,
		logger:   logger,
	}
}

func (r *Resolver) SetMetricsRecorder(metrics MetricsRecorder) {
	r.metrics = metrics
}

func (r *Resolver) recordLookup(result string) {
	if r.metrics != nil {
		r.metrics.RecordGeoLookup(result)
	}
}

// Resolve returns the location for a public address, or nil when the address
// is private/loopback, the cache misses with the budget exhausted, or the
// upstream lookup fails.
func (r *Resolver) Resolve(ctx context.Context, address string) *Location {
	if isPrivateAddress(address) {
		r.recordLookup("skipped")
		return nil
	}

	if entry, ok := r.cache.Get(address); ok && time.Since(entry.fetchedAt) < r.ttl {
		r.recordLookup("hit")
		if !entry.valid {
			return nil
		}
		return entry.location
	}

	if !r.budget.Allow() {
		r.logger.Warn("geolocation call budget exhausted, skipping lookup",
			zap.String("ip_address", address))
		r.recordLookup("skipped")
		return nil
	}

	r.recordLookup("miss")

	location, err := r.provider.Lookup(ctx, address)
	if err != nil {
		r.logger.Warn("geolocation lookup failed",
			zap.String("ip_address", address),
			zap.Error(err))
		r.cache.Set(address, cacheEntry{fetchedAt: time.Now(), valid: false})
		return nil
	}

	r.cache.Set(address, cacheEntry{
		location:  location,
		fetchedAt: location.FetchedAt,
		valid:     true,
	})

	r.logger.Debug("geolocation resolved",
		zap.String("ip_address", address),
		zap.String("country", location.CountryCode),
		zap.String("city", location.City))

	return location
}

// SweepExpired drops cache entries past the TTL.
func (r *Resolver) SweepExpired() int {
	return r.cache.Sweep(func(entry cacheEntry) bool {
		return time.Since(entry.fetchedAt) >= r.ttl
	})
}

func (r *Resolver) StartSweepWorker(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for range ticker.C {
			if swept := r.SweepExpired(); swept > 0 {
				r.logger.Debug("swept expired geolocation cache entries",
					zap.Int("count", swept))
			}
		}
	}()
}

func isPrivateAddress(address string) bool {
	ip := net.ParseIP(address)
	if ip == nil {
		return true
	}

	return ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsUnspecified()
}
