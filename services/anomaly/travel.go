package anomaly

import (
	"context"
	"time"

	"github.com/tech-arch1tect/loginguard/services/geoip"
	"go.uber.org/zap"
)

type travelConfidence string

const (
	confidenceHigh   travelConfidence = "high"
	confidenceMedium travelConfidence = "medium"
	confidenceLow    travelConfidence = "low"
)

// checkImpossibleTravel compares this login against the user's most recent
// prior session. The check is skipped outright when either address fails to
// resolve, the addresses match, the distance is below the minimum threshold,
// or too little time has elapsed; all of those are more likely noise than
// travel. Low-confidence results (same country within the configured cutoff,
// usually a VPN or proxy hop) are computed but not recorded.
func (e *Engine) checkImpossibleTravel(ctx context.Context, userID uint, email, address, userAgent string, now time.Time) bool {
	prior, err := e.sessions.RecentLogins(userID, 1)
	if err != nil {
		e.logger.Warn("impossible-travel check skipped",
			zap.Uint("user_id", userID),
			zap.Error(err))
		return false
	}
	if len(prior) == 0 {
		return false
	}

	previous := prior[0]
	if previous.IPAddress == address {
		return false
	}

	elapsed := now.Sub(previous.CreatedAt)
	if elapsed < e.config.Anomaly.MinTravelElapsed {
		return false
	}

	from := e.resolver.Resolve(ctx, previous.IPAddress)
	to := e.resolver.Resolve(ctx, address)
	if from == nil || to == nil {
		return false
	}

	distanceKm := geoip.Distance(from, to)
	if distanceKm < e.config.Anomaly.MinTravelDistanceKm {
		return false
	}

	speedKmh := distanceKm / elapsed.Hours()
	if speedKmh <= e.config.Anomaly.MaxPlausibleSpeedKmh {
		return false
	}

	confidence := e.travelConfidence(from, to, distanceKm, elapsed)

	e.logger.Info("implausible travel speed computed",
		zap.Uint("user_id", userID),
		zap.Float64("distance_km", distanceKm),
		zap.Duration("elapsed", elapsed),
		zap.Float64("speed_kmh", speedKmh),
		zap.String("confidence", string(confidence)))

	if confidence == confidenceLow {
		return false
	}

	severity := SeverityHigh
	if confidence == confidenceHigh {
		severity = SeverityCritical
	}

	e.record(Record{
		UserID:    userID,
		Email:     email,
		Kind:      KindImpossibleTravel,
		Severity:  severity,
		IPAddress: address,
		UserAgent: userAgent,
	}, map[string]any{
		"from_country": from.CountryCode,
		"from_city":    from.City,
		"to_country":   to.CountryCode,
		"to_city":      to.City,
		"distance_km":  distanceKm,
		"elapsed_min":  elapsed.Minutes(),
		"speed_kmh":    speedKmh,
		"confidence":   string(confidence),
	})

	return true
}

// travelConfidence grades how certain the impossible-travel result is.
// Same-country hops under the cutoff distance are downgraded to low: they
// are more likely a VPN or proxy switch than physical movement.
func (e *Engine) travelConfidence(from, to *geoip.Location, distanceKm float64, elapsed time.Duration) travelConfidence {
	if from.CountryCode == to.CountryCode && distanceKm < e.config.Anomaly.SameCountryCutoffKm {
		return confidenceLow
	}

	intercontinental := distanceKm > 5000
	if intercontinental && elapsed < time.Hour {
		return confidenceHigh
	}
	if distanceKm > 1000 && elapsed < 30*time.Minute {
		return confidenceHigh
	}
	if from.Provider != "" && to.Provider != "" && from.Provider != to.Provider {
		return confidenceHigh
	}

	return confidenceMedium
}
