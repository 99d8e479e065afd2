package geoip

import (
	"math"
	"time"
)

// earthRadiusKm is the fixed radius used for great-circle distances.
const earthRadiusKm = 6371.0

// Location is an approximate geolocation for a network address.
type Location struct {
	IPAddress   string    `json:"ip_address"`
	Country     string    `json:"country"`
	CountryCode string    `json:"country_code"`
	Region      string    `json:"region"`
	City        string    `json:"city"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Provider    string    `json:"provider"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// cacheEntry wraps a lookup result. valid=false records a failed resolution
// so repeat lookups of the same unresolvable address do not burn quota.
type cacheEntry struct {
	location  *Location
	fetchedAt time.Time
	valid     bool
}

// Distance returns the Haversine great-circle distance in kilometres.
func Distance(a, b *Location) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)

	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}
