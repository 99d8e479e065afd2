package refreshtoken

import (
	"time"
)

// Revocation reasons recorded on tokens.
const (
	ReasonReuseDetected = "reuse_detected"
	ReasonLogout        = "logout"
	ReasonUserRequest   = "user_request"
)

// RefreshToken is the durable record of a single-use rotation credential.
// Only the hash of the secret is stored; the plaintext is returned once at
// issuance and never retrievable again.
type RefreshToken struct {
	ID            uint       `json:"id" gorm:"primaryKey"`
	UserID        uint       `json:"user_id" gorm:"not null;index"`
	SessionID     uint       `json:"session_id" gorm:"index"`
	TokenHash     string     `json:"-" gorm:"uniqueIndex;size:255;not null"`
	IPAddress     string     `json:"ip_address" gorm:"size:45"`
	UserAgent     string     `json:"user_agent" gorm:"size:500"`
	IssuedAt      time.Time  `json:"issued_at"`
	ExpiresAt     time.Time  `json:"expires_at" gorm:"not null;index"`
	UsedAt        *time.Time `json:"used_at" gorm:"index"`
	RevokedAt     *time.Time `json:"revoked_at" gorm:"index"`
	RevokedReason string     `json:"revoked_reason" gorm:"size:100"`
	ReplacedByID  *uint      `json:"replaced_by_id"`
}

func (RefreshToken) TableName() string {
	return "refresh_tokens"
}

// Outstanding reports whether the token could still be presented for
// rotation.
func (t *RefreshToken) Outstanding(at time.Time) bool {
	return t.UsedAt == nil && t.RevokedAt == nil && at.Before(t.ExpiresAt)
}

type IssueResult struct {
	Token     string
	TokenID   uint
	ExpiresAt time.Time
}

type RotationResult struct {
	AccessToken    string
	RefreshToken   string
	RefreshTokenID uint
	OldTokenID     uint
	SessionID      uint
	ExpiresAt      time.Time
}
