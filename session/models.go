package session

import (
	"time"
)

// Revocation reasons recorded on terminated sessions.
const (
	ReasonLogout        = "logout"
	ReasonSessionLimit  = "session_limit"
	ReasonSecurityPurge = "security_purge"
	ReasonUserRequest   = "user_request"
)

type Session struct {
	ID            uint       `json:"id" gorm:"primaryKey"`
	UserID        uint       `json:"user_id" gorm:"not null;index"`
	Token         string     `json:"-" gorm:"uniqueIndex;size:255;not null"`
	Fingerprint   string     `json:"fingerprint" gorm:"size:64;index"`
	IPAddress     string     `json:"ip_address" gorm:"size:45"`
	UserAgent     string     `json:"user_agent" gorm:"size:500"`
	CreatedAt     time.Time  `json:"created_at" gorm:"index"`
	LastActivity  time.Time  `json:"last_activity" gorm:"index"`
	RevokedAt     *time.Time `json:"revoked_at" gorm:"index"`
	RevokedReason string     `json:"revoked_reason" gorm:"size:100"`
}

func (Session) TableName() string {
	return "admin_sessions"
}

func (s *Session) Active() bool {
	return s.RevokedAt == nil
}

type CreateResult struct {
	Session           *Session
	EvictedSessionIDs []uint
}
