package anomaly

import (
	"time"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

type Kind string

const (
	KindFailedLogins     Kind = "multiple_failed_logins"
	KindBruteForce       Kind = "brute_force"
	KindNewDevice        Kind = "new_device"
	KindNewLocation      Kind = "new_location"
	KindImpossibleTravel Kind = "impossible_travel"
	KindTokenReuse       Kind = "refresh_token_reuse"
)

// Record is an append-only fact. The only permitted mutation is adding an
// acknowledgement; records are never deleted by the system.
type Record struct {
	ID             uint       `json:"id" gorm:"primaryKey"`
	UserID         uint       `json:"user_id" gorm:"index"`
	Email          string     `json:"email" gorm:"size:255"`
	Kind           Kind       `json:"kind" gorm:"size:50;not null;index"`
	Severity       Severity   `json:"severity" gorm:"size:20;not null;index"`
	IPAddress      string     `json:"ip_address" gorm:"size:45"`
	UserAgent      string     `json:"user_agent" gorm:"size:500"`
	Details        string     `json:"details" gorm:"size:2000"`
	CreatedAt      time.Time  `json:"created_at" gorm:"index"`
	AcknowledgedBy string     `json:"acknowledged_by" gorm:"size:255"`
	AcknowledgedAt *time.Time `json:"acknowledged_at" gorm:"index"`
}

func (Record) TableName() string {
	return "anomaly_records"
}
