package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tech-arch1tect/loginguard/config"
	"github.com/tech-arch1tect/loginguard/internal/fingerprint"
	"github.com/tech-arch1tect/loginguard/services/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrSessionNotFound = errors.New("session not found")

type Registry struct {
	db     *gorm.DB
	config *config.Config
	logger *logging.Service
}

func NewRegistry(db *gorm.DB, cfg *config.Config, logger *logging.Service) *Registry {
	return &Registry{
		db:     db,
		config: cfg,
		logger: logger,
	}
}

// Create inserts a tracked session for the user. When the user is at or over
// the concurrency cap the least-recently-active sessions are revoked first,
// so the active count never exceeds the cap after Create returns. More than
// one session can be evicted when the cap was lowered since the sessions
// were created.
func (r *Registry) Create(userID uint, ipAddress, userAgent string) (*CreateResult, error) {
	now := time.Now()
	session := &Session{
		UserID:       userID,
		Token:        uuid.New().String(),
		Fingerprint:  fingerprint.Derive(userAgent),
		IPAddress:    ipAddress,
		UserAgent:    userAgent,
		CreatedAt:    now,
		LastActivity: now,
	}

	var evictedIDs []uint

	err := r.db.Transaction(func(tx *gorm.DB) error {
		var active int64
		if err := tx.Model(&Session{}).
			Where("user_id = ? AND revoked_at IS NULL", userID).
			Count(&active).Error; err != nil {
			return fmt.Errorf("failed to count active sessions: %w", err)
		}

		// Evict enough sessions that the insert leaves the user exactly
		// at the cap.
		excess := active - int64(r.config.Session.MaxConcurrent) + 1
		if excess > 0 {
			var oldest []Session
			if err := tx.Where("user_id = ? AND revoked_at IS NULL", userID).
				Order("last_activity ASC").
				Limit(int(excess)).
				Find(&oldest).Error; err != nil {
				return fmt.Errorf("failed to find eviction candidates: %w", err)
			}

			for _, victim := range oldest {
				evictedIDs = append(evictedIDs, victim.ID)
			}

			if err := tx.Model(&Session{}).
				Where("id IN ? AND revoked_at IS NULL", evictedIDs).
				Updates(map[string]any{
					"revoked_at":     now,
					"revoked_reason": ReasonSessionLimit,
				}).Error; err != nil {
				return fmt.Errorf("failed to evict sessions: %w", err)
			}
		}

		if err := tx.Create(session).Error; err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}

		return nil
	})
	if err != nil {
		r.logger.Error("session create failed",
			zap.Uint("user_id", userID),
			zap.Error(err))
		return nil, err
	}

	if len(evictedIDs) > 0 {
		r.logger.Info("evicted least-recently-active sessions",
			zap.Uint("user_id", userID),
			zap.Uints("evicted_session_ids", evictedIDs))
	}

	r.logger.Info("session created",
		zap.Uint("user_id", userID),
		zap.Uint("session_id", session.ID),
		zap.String("ip_address", ipAddress))

	return &CreateResult{Session: session, EvictedSessionIDs: evictedIDs}, nil
}

func (r *Registry) ListActive(userID uint) ([]Session, error) {
	var sessions []Session
	err := r.db.Where("user_id = ? AND revoked_at IS NULL", userID).
		Order("last_activity DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active sessions: %w", err)
	}

	return sessions, nil
}

func (r *Registry) GetByToken(token string) (*Session, error) {
	var session Session
	err := r.db.Where("token = ?", token).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	return &session, nil
}

// Touch records activity on a session, feeding the least-recently-active
// eviction order.
func (r *Registry) Touch(sessionID uint) error {
	return r.db.Model(&Session{}).
		Where("id = ? AND revoked_at IS NULL", sessionID).
		Update("last_activity", time.Now()).Error
}

// Revoke marks the session with a revocation time and reason. Revoking an
// already-revoked session is a no-op.
func (r *Registry) Revoke(token, reason string) error {
	result := r.db.Model(&Session{}).
		Where("token = ? AND revoked_at IS NULL", token).
		Updates(map[string]any{
			"revoked_at":     time.Now(),
			"revoked_reason": reason,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to revoke session: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		r.logger.Info("session revoked", zap.String("reason", reason))
	}

	return nil
}

// RevokeByID revokes by primary key, scoped to the owning user so a caller
// can never revoke another user's session.
func (r *Registry) RevokeByID(userID, sessionID uint, reason string) error {
	result := r.db.Model(&Session{}).
		Where("id = ? AND user_id = ? AND revoked_at IS NULL", sessionID, userID).
		Updates(map[string]any{
			"revoked_at":     time.Now(),
			"revoked_reason": reason,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to revoke session: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		r.logger.Info("session revoked",
			zap.Uint("user_id", userID),
			zap.Uint("session_id", sessionID),
			zap.String("reason", reason))
	}

	return nil
}

func (r *Registry) RevokeAll(userID uint, reason string) (int64, error) {
	result := r.db.Model(&Session{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Updates(map[string]any{
			"revoked_at":     time.Now(),
			"revoked_reason": reason,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to revoke user sessions: %w", result.Error)
	}

	r.logger.Info("revoked all user sessions",
		zap.Uint("user_id", userID),
		zap.String("reason", reason),
		zap.Int64("count", result.RowsAffected))

	return result.RowsAffected, nil
}

// RecentLogins returns the user's most recent sessions, newest first,
// regardless of revocation state. Used for login-history lookups.
func (r *Registry) RecentLogins(userID uint, limit int) ([]Session, error) {
	var sessions []Session
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load login history: %w", err)
	}

	return sessions, nil
}

// HasFingerprint reports whether any prior session for the user carries this
// exact device fingerprint.
func (r *Registry) HasFingerprint(userID uint, fp string) (bool, error) {
	var count int64
	err := r.db.Model(&Session{}).
		Where("user_id = ? AND fingerprint = ?", userID, fp).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to query fingerprints: %w", err)
	}

	return count > 0, nil
}

// HasAddress reports whether any prior session for the user originated from
// this exact address.
func (r *Registry) HasAddress(userID uint, ipAddress string) (bool, error) {
	var count int64
	err := r.db.Model(&Session{}).
		Where("user_id = ? AND ip_address = ?", userID, ipAddress).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to query addresses: %w", err)
	}

	return count > 0, nil
}
