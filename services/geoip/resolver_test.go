package geoip

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tech-arch1tect/loginguard/config"
)

type mockProvider struct {
	lookupFunc func(ctx context.Context, address string) (*Location, error)
	calls      int
}

func (m *mockProvider) Lookup(ctx context.Context, address string) (*Location, error) {
	m.calls++
	if m.lookupFunc != nil {
		return m.lookupFunc(ctx, address)
	}
	return &Location{
		IPAddress:   address,
		Country:     "United Kingdom",
		CountryCode: "GB",
		City:        "London",
		Latitude:    51.5074,
		Longitude:   -0.1278,
		Provider:    "Test ISP",
		FetchedAt:   time.Now(),
	}, nil
}

func getTestGeoIPConfig() *config.GeoIPConfig {
	return &config.GeoIPConfig{
		CacheTTL:       24 * time.Hour,
		CallsPerMinute: 40,
	}
}

func TestResolver_Resolve_CachesWithinTTL(t *testing.T) {
	provider := &mockProvider{}
	resolver := NewResolver(provider, getTestGeoIPConfig(), nil)

	first := resolver.Resolve(context.Background(), "81.2.69.142")
	assert.NotNil(t, first)
	assert.Equal(t, "GB", first.CountryCode)

	second := resolver.Resolve(context.Background(), "81.2.69.142")
	assert.NotNil(t, second)

	assert.Equal(t, 1, provider.calls, "second resolution within TTL must hit the cache")
}

func TestResolver_Resolve_PrivateAddresses(t *testing.T) {
	provider := &mockProvider{}
	resolver := NewResolver(provider, getTestGeoIPConfig(), nil)

	tests := []string{"10.0.0.5", "192.168.1.1", "127.0.0.1", "::1", "172.16.0.9", "not-an-ip"}
	for _, address := range tests {
		t.Run(address, func(t *testing.T) {
			assert.Nil(t, resolver.Resolve(context.Background(), address))
		})
	}

	assert.Equal(t, 0, provider.calls, "private addresses must never consume quota")
}

func TestResolver_Resolve_BudgetExhausted(t *testing.T) {
	cfg := getTestGeoIPConfig()
	cfg.CallsPerMinute = 2
	provider := &mockProvider{}
	resolver := NewResolver(provider, cfg, nil)

	assert.NotNil(t, resolver.Resolve(context.Background(), "81.2.69.142"))
	assert.NotNil(t, resolver.Resolve(context.Background(), "81.2.69.143"))

	// Burst of 2 is spent and the refill rate is far slower than the test.
	assert.Nil(t, resolver.Resolve(context.Background(), "81.2.69.144"))
	assert.Equal(t, 2, provider.calls)
}

func TestResolver_Resolve_FailedLookupCachedAsInvalid(t *testing.T) {
	provider := &mockProvider{
		lookupFunc: func(ctx context.Context, address string) (*Location, error) {
			return nil, ErrLookupFailed
		},
	}
	resolver := NewResolver(provider, getTestGeoIPConfig(), nil)

	assert.Nil(t, resolver.Resolve(context.Background(), "81.2.69.142"))
	assert.Nil(t, resolver.Resolve(context.Background(), "81.2.69.142"))
	assert.Equal(t, 1, provider.calls, "failed lookups must not be retried within the TTL")
}

func TestDistance(t *testing.T) {
	london := &Location{Latitude: 51.5074, Longitude: -0.1278}
	newYork := &Location{Latitude: 40.7128, Longitude: -74.0060}
	paris := &Location{Latitude: 48.8566, Longitude: 2.3522}

	assert.InDelta(t, 5570, Distance(london, newYork), 50)
	assert.InDelta(t, 344, Distance(london, paris), 10)
	assert.InDelta(t, 0, Distance(london, london), 0.01)
}
