package refreshtoken

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/tech-arch1tect/loginguard/config"
	"github.com/tech-arch1tect/loginguard/services/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrRefreshTokenNotFound  = errors.New("refresh token not found")
	ErrRefreshTokenExpired   = errors.New("refresh token expired")
	ErrRefreshTokenRevoked   = errors.New("refresh token revoked")
	ErrRefreshTokenReused    = errors.New("refresh token reuse detected")
	ErrTokenGenerationFailed = errors.New("failed to generate secure token")
)

// AccessTokenIssuer mints the short-lived credential returned alongside a
// rotated refresh token.
type AccessTokenIssuer interface {
	GenerateAccessToken(userID uint, sessionID uint) (string, error)
}

// SecurityReporter receives the reuse-of-spent-token signal.
type SecurityReporter interface {
	ReportTokenReuse(userID uint, address, userAgent string, details map[string]any)
}

type Service struct {
	db       *gorm.DB
	config   *config.Config
	issuer   AccessTokenIssuer
	reporter SecurityReporter
	logger   *logging.Service
}

func NewService(db *gorm.DB, cfg *config.Config, issuer AccessTokenIssuer, reporter SecurityReporter, logger *logging.Service) *Service {
	logger.Info("initializing refresh token ledger",
		zap.Duration("token_expiry", cfg.RefreshToken.Expiry),
		zap.Int("token_length", cfg.RefreshToken.TokenLength),
		zap.Duration("cleanup_interval", cfg.RefreshToken.CleanupInterval))

	return &Service{
		db:       db,
		config:   cfg,
		issuer:   issuer,
		reporter: reporter,
		logger:   logger,
	}
}

// Issue generates a fresh single-use token for the user. The plaintext is
// returned exactly once; only its hash is stored.
func (s *Service) Issue(userID uint, sessionID uint, address, userAgent string) (*IssueResult, error) {
	token, err := s.generateSecureToken()
	if err != nil {
		s.logger.Error("failed to generate refresh token secret", zap.Error(err))
		return nil, ErrTokenGenerationFailed
	}

	now := time.Now()
	record := RefreshToken{
		UserID:    userID,
		SessionID: sessionID,
		TokenHash: s.hashToken(token),
		IPAddress: address,
		UserAgent: userAgent,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.config.RefreshToken.Expiry),
	}

	if err := s.db.Create(&record).Error; err != nil {
		s.logger.Error("failed to store refresh token", zap.Error(err))
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	s.logger.Info("refresh token issued",
		zap.Uint("user_id", userID),
		zap.Uint("token_id", record.ID),
		zap.Time("expires_at", record.ExpiresAt))

	return &IssueResult{
		Token:     token,
		TokenID:   record.ID,
		ExpiresAt: record.ExpiresAt,
	}, nil
}

// Rotate redeems a refresh token for a new token pair. Presenting an
// already-used token is treated as proof of theft: every outstanding token
// for that user is revoked and the reuse is reported before the call fails.
// The mark-used write is guarded so two concurrent rotations of the same
// token cannot both succeed; the loser takes the reuse branch.
func (s *Service) Rotate(plaintext, address, userAgent string) (*RotationResult, error) {
	var record RefreshToken
	err := s.db.Where("token_hash = ?", s.hashToken(plaintext)).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn("rotation failed, token not found",
				zap.String("ip_address", address))
			return nil, ErrRefreshTokenNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	now := time.Now()

	if record.UsedAt != nil {
		return nil, s.handleReuse(&record, address, userAgent)
	}

	if now.After(record.ExpiresAt) {
		s.logger.Warn("rotation failed, token expired",
			zap.Uint("token_id", record.ID),
			zap.Uint("user_id", record.UserID),
			zap.Time("expired_at", record.ExpiresAt))
		return nil, ErrRefreshTokenExpired
	}

	if record.RevokedAt != nil {
		s.logger.Warn("rotation failed, token revoked",
			zap.Uint("token_id", record.ID),
			zap.Uint("user_id", record.UserID),
			zap.String("reason", record.RevokedReason))
		return nil, ErrRefreshTokenRevoked
	}

	// Conditional write: only one concurrent rotation can flip used_at.
	result := s.db.Model(&RefreshToken{}).
		Where("id = ? AND used_at IS NULL", record.ID).
		Update("used_at", now)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to mark token used: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, s.handleReuse(&record, address, userAgent)
	}

	issued, err := s.Issue(record.UserID, record.SessionID, address, userAgent)
	if err != nil {
		return nil, fmt.Errorf("failed to issue replacement token: %w", err)
	}

	if err := s.db.Model(&RefreshToken{}).
		Where("id = ?", record.ID).
		Update("replaced_by_id", issued.TokenID).Error; err != nil {
		s.logger.Warn("failed to link replacement token",
			zap.Uint("token_id", record.ID),
			zap.Uint("replacement_id", issued.TokenID),
			zap.Error(err))
	}

	accessToken, err := s.issuer.GenerateAccessToken(record.UserID, record.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to mint access credential: %w", err)
	}

	s.logger.Info("refresh token rotated",
		zap.Uint("user_id", record.UserID),
		zap.Uint("old_token_id", record.ID),
		zap.Uint("new_token_id", issued.TokenID))

	return &RotationResult{
		AccessToken:    accessToken,
		RefreshToken:   issued.Token,
		RefreshTokenID: issued.TokenID,
		OldTokenID:     record.ID,
		SessionID:      record.SessionID,
		ExpiresAt:      issued.ExpiresAt,
	}, nil
}

// handleReuse runs the critical path for a spent token presented a second
// time: full purge of the user's outstanding tokens plus a security report.
// The order of attacker and legitimate holder is unknowable, so both lose
// their credentials.
func (s *Service) handleReuse(record *RefreshToken, address, userAgent string) error {
	s.logger.Error("refresh token reuse detected",
		zap.Uint("token_id", record.ID),
		zap.Uint("user_id", record.UserID),
		zap.String("ip_address", address))

	purged, err := s.RevokeAllUserTokens(record.UserID, ReasonReuseDetected)
	if err != nil {
		s.logger.Error("failed to purge user tokens after reuse",
			zap.Uint("user_id", record.UserID),
			zap.Error(err))
	}

	if s.reporter != nil {
		s.reporter.ReportTokenReuse(record.UserID, address, userAgent, map[string]any{
			"token_id":      record.ID,
			"purged_tokens": purged,
		})
	}

	return ErrRefreshTokenReused
}

// Revoke marks a single token revoked by its plaintext.
func (s *Service) Revoke(plaintext, reason string) error {
	result := s.db.Model(&RefreshToken{}).
		Where("token_hash = ? AND revoked_at IS NULL", s.hashToken(plaintext)).
		Updates(map[string]any{
			"revoked_at":     time.Now(),
			"revoked_reason": reason,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return ErrRefreshTokenNotFound
	}

	s.logger.Info("refresh token revoked", zap.String("reason", reason))
	return nil
}

// RevokeAllUserTokens revokes every outstanding, non-revoked, non-used token
// for the user and reports how many were hit.
func (s *Service) RevokeAllUserTokens(userID uint, reason string) (int64, error) {
	result := s.db.Model(&RefreshToken{}).
		Where("user_id = ? AND used_at IS NULL AND revoked_at IS NULL", userID).
		Updates(map[string]any{
			"revoked_at":     time.Now(),
			"revoked_reason": reason,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to revoke user tokens: %w", result.Error)
	}

	s.logger.Info("revoked all outstanding user tokens",
		zap.Uint("user_id", userID),
		zap.String("reason", reason),
		zap.Int64("count", result.RowsAffected))

	return result.RowsAffected, nil
}

// CleanupStaleTokens deletes tokens well past use: expired beyond the
// expired-retention window, or used/revoked beyond the consumed-retention
// window. Bounds storage growth without touching live credentials.
func (s *Service) CleanupStaleTokens() error {
	now := time.Now()

	expiredBefore := now.Add(-s.config.RefreshToken.ExpiredRetention)
	result := s.db.Where("expires_at < ?", expiredBefore).Delete(&RefreshToken{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete expired tokens: %w", result.Error)
	}
	deleted := result.RowsAffected

	consumedBefore := now.Add(-s.config.RefreshToken.ConsumedRetention)
	result = s.db.Where("(used_at IS NOT NULL AND used_at < ?) OR (revoked_at IS NOT NULL AND revoked_at < ?)",
		consumedBefore, consumedBefore).Delete(&RefreshToken{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete consumed tokens: %w", result.Error)
	}
	deleted += result.RowsAffected

	if deleted > 0 {
		s.logger.Info("cleaned up stale refresh tokens", zap.Int64("count", deleted))
	}

	return nil
}

func (s *Service) StartCleanupWorker() {
	go func() {
		ticker := time.NewTicker(s.config.RefreshToken.CleanupInterval)
		defer ticker.Stop()

		for range ticker.C {
			if err := s.CleanupStaleTokens(); err != nil {
				s.logger.Error("refresh token cleanup worker failed", zap.Error(err))
			}
		}
	}()

	s.logger.Info("started refresh token cleanup worker",
		zap.Duration("interval", s.config.RefreshToken.CleanupInterval))
}

func (s *Service) generateSecureToken() (string, error) {
	tokenBytes := make([]byte, s.config.RefreshToken.TokenLength)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(tokenBytes), nil
}

func (s *Service) hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
