package geoip

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tech-arch1tect/loginguard/config"
)

var ErrLookupFailed = errors.New("geolocation lookup failed")

// Provider resolves a public network address against an upstream source.
type Provider interface {
	Lookup(ctx context.Context, address string) (*Location, error)
}

// HTTPProvider queries an ip-api.com style JSON endpoint.
type HTTPProvider struct {
	baseURL string
	client  *http.Client
}

func NewHTTPProvider(cfg *config.GeoIPConfig) *HTTPProvider {
	return &HTTPProvider{
		baseURL: cfg.ProviderURL,
		client: &http.Client{
			Timeout: cfg.ProviderTimeout,
		},
	}
}

type providerResponse struct {
	Status      string  `json:"status"`
	Message     string  `json:"message"`
	Country     string  `json:"country"`
	CountryCode string  `json:"countryCode"`
	RegionName  string  `json:"regionName"`
	City        string  `json:"city"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	ISP         string  `json:"isp"`
}

func (p *HTTPProvider) Lookup(ctx context.Context, address string) (*Location, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/"+address, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build lookup request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream geolocation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: upstream returned %d", ErrLookupFailed, resp.StatusCode)
	}

	var body providerResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode geolocation response: %w", err)
	}

	if body.Status != "success" {
		return nil, fmt.Errorf("%w: %s", ErrLookupFailed, body.Message)
	}

	return &Location{
		IPAddress:   address,
		Country:     body.Country,
		CountryCode: body.CountryCode,
		Region:      body.RegionName,
		City:        body.City,
		Latitude:    body.Lat,
		Longitude:   body.Lon,
		Provider:    body.ISP,
		FetchedAt:   time.Now(),
	}, nil
}
