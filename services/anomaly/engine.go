package anomaly

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tech-arch1tect/loginguard/config"
	"github.com/tech-arch1tect/loginguard/services/alerts"
	"github.com/tech-arch1tect/loginguard/services/geoip"
	"github.com/tech-arch1tect/loginguard/services/logging"
	"github.com/tech-arch1tect/loginguard/session"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrRecordNotFound = errors.New("anomaly record not found")

// SessionHistory is the slice of the session registry the engine consults.
type SessionHistory interface {
	RecentLogins(userID uint, limit int) ([]session.Session, error)
	HasFingerprint(userID uint, fp string) (bool, error)
	HasAddress(userID uint, ipAddress string) (bool, error)
}

// Resolver is the slice of the geolocation resolver the engine consults.
type Resolver interface {
	Resolve(ctx context.Context, address string) *geoip.Location
}

// MetricsRecorder counts recorded anomalies. Optional.
type MetricsRecorder interface {
	RecordAnomaly(kind, severity string)
}

// Engine runs the post-authentication checks and the failed-login counter.
// Every check is advisory: a failing dependency is logged and the check is
// skipped, because a login must not fail on an anomaly-detection hiccup.
type Engine struct {
	db         *gorm.DB
	counter    *FailedLoginCounter
	sessions   SessionHistory
	resolver   Resolver
	dispatcher *alerts.Dispatcher
	config     *config.Config
	logger     *logging.Service
	metrics    MetricsRecorder
}

func NewEngine(db *gorm.DB, counter *FailedLoginCounter, sessions SessionHistory, resolver Resolver, dispatcher *alerts.Dispatcher, cfg *config.Config, logger *logging.Service) *Engine {
	return &Engine{
		db:         db,
		counter:    counter,
		sessions:   sessions,
		resolver:   resolver,
		dispatcher: dispatcher,
		config:     cfg,
		logger:     logger,
	}
}

func (e *Engine) SetMetricsRecorder(metrics MetricsRecorder) {
	e.metrics = metrics
}

// RecordFailedLogin counts one credential failure for the address. The
// medium and critical thresholds are independent; each fires exactly once as
// the in-window count reaches it.
func (e *Engine) RecordFailedLogin(email, address string) {
	count := e.counter.Record(address)

	e.logger.Debug("failed login recorded",
		zap.String("ip_address", address),
		zap.Int("window_count", count))

	switch count {
	case e.config.Anomaly.FailedLoginMedium:
		e.record(Record{
			Email:     email,
			Kind:      KindFailedLogins,
			Severity:  SeverityMedium,
			IPAddress: address,
		}, map[string]any{"failed_attempts": count})
	case e.config.Anomaly.FailedLoginCritical:
		e.record(Record{
			Email:     email,
			Kind:      KindBruteForce,
			Severity:  SeverityCritical,
			IPAddress: address,
		}, map[string]any{"failed_attempts": count})
	}
}

// RunLoginChecks is invoked after successful credential verification and
// before the new session is inserted, so the registry still holds only prior
// logins. It clears the failed-login counter for the address and returns the
// kinds of any anomalies detected.
func (e *Engine) RunLoginChecks(ctx context.Context, userID uint, email, fp, address, userAgent string) []Kind {
	e.counter.Clear(address)

	var kinds []Kind

	if e.checkNewDevice(userID, email, fp, address, userAgent) {
		kinds = append(kinds, KindNewDevice)
	}

	if e.checkNewLocation(userID, email, address, userAgent) {
		kinds = append(kinds, KindNewLocation)
	}

	if e.checkImpossibleTravel(ctx, userID, email, address, userAgent, time.Now()) {
		kinds = append(kinds, KindImpossibleTravel)
	}

	return kinds
}

func (e *Engine) checkNewDevice(userID uint, email, fp, address, userAgent string) bool {
	seen, err := e.sessions.HasFingerprint(userID, fp)
	if err != nil {
		e.logger.Warn("new-device check skipped",
			zap.Uint("user_id", userID),
			zap.Error(err))
		return false
	}
	if seen {
		return false
	}

	e.record(Record{
		UserID:    userID,
		Email:     email,
		Kind:      KindNewDevice,
		Severity:  SeverityLow,
		IPAddress: address,
		UserAgent: userAgent,
	}, map[string]any{"fingerprint": fp})

	return true
}

func (e *Engine) checkNewLocation(userID uint, email, address, userAgent string) bool {
	seen, err := e.sessions.HasAddress(userID, address)
	if err != nil {
		e.logger.Warn("new-location check skipped",
			zap.Uint("user_id", userID),
			zap.Error(err))
		return false
	}
	if seen {
		return false
	}

	e.record(Record{
		UserID:    userID,
		Email:     email,
		Kind:      KindNewLocation,
		Severity:  SeverityLow,
		IPAddress: address,
		UserAgent: userAgent,
	}, nil)

	return true
}

// ReportTokenReuse records the critical reuse-of-spent-token anomaly. The
// ledger calls this after purging the user's outstanding tokens.
func (e *Engine) ReportTokenReuse(userID uint, address, userAgent string, details map[string]any) {
	e.record(Record{
		UserID:    userID,
		Kind:      KindTokenReuse,
		Severity:  SeverityCritical,
		IPAddress: address,
		UserAgent: userAgent,
	}, details)
}

// Acknowledge stamps a record with who acknowledged it. Acknowledging an
// already-acknowledged record is a no-op.
func (e *Engine) Acknowledge(recordID uint, by string) error {
	var record Record
	if err := e.db.First(&record, recordID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRecordNotFound
		}
		return fmt.Errorf("database error: %w", err)
	}

	result := e.db.Model(&Record{}).
		Where("id = ? AND acknowledged_at IS NULL", recordID).
		Updates(map[string]any{
			"acknowledged_at": time.Now(),
			"acknowledged_by": by,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to acknowledge anomaly: %w", result.Error)
	}

	return nil
}

// ListUnacknowledged returns open anomalies, newest first.
func (e *Engine) ListUnacknowledged(page, perPage int) ([]Record, int64, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	var total int64
	if err := e.db.Model(&Record{}).
		Where("acknowledged_at IS NULL").
		Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count anomalies: %w", err)
	}

	var records []Record
	err := e.db.Where("acknowledged_at IS NULL").
		Order("created_at DESC, id DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&records).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list anomalies: %w", err)
	}

	return records, total, nil
}

// record persists the anomaly and, for high and critical severities, hands
// it to outbound alert delivery. Persistence failure is logged but never
// propagated into the login flow.
func (e *Engine) record(record Record, details map[string]any) {
	if details != nil {
		if detail, err := json.Marshal(details); err == nil {
			record.Details = string(detail)
		}
	}
	record.CreatedAt = time.Now()

	if err := e.db.Create(&record).Error; err != nil {
		e.logger.Error("failed to persist anomaly record",
			zap.String("kind", string(record.Kind)),
			zap.Error(err))
		return
	}

	e.logger.Info("anomaly recorded",
		zap.String("kind", string(record.Kind)),
		zap.String("severity", string(record.Severity)),
		zap.Uint("user_id", record.UserID),
		zap.String("ip_address", record.IPAddress))

	if e.metrics != nil {
		e.metrics.RecordAnomaly(string(record.Kind), string(record.Severity))
	}

	if record.Severity != SeverityHigh && record.Severity != SeverityCritical {
		return
	}

	if e.dispatcher == nil {
		return
	}

	event := alerts.NewEvent(alertTitle(record.Kind), string(record.Severity), record.Details)
	event.UserID = record.UserID
	event.Email = record.Email
	event.IPAddress = record.IPAddress
	event.UserAgent = record.UserAgent
	event.Details = details

	e.dispatcher.Dispatch(event)
}

func alertTitle(kind Kind) string {
	switch kind {
	case KindFailedLogins:
		return "Multiple failed logins"
	case KindBruteForce:
		return "Possible brute force attack"
	case KindImpossibleTravel:
		return "Impossible travel detected"
	case KindTokenReuse:
		return "Refresh token reuse detected"
	case KindNewDevice:
		return "Login from new device"
	case KindNewLocation:
		return "Login from new location"
	default:
		return string(kind)
	}
}
