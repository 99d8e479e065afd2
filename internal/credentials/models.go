package credentials

import "time"

// AdminUser is a back-office operator account. Only the fields the login
// endpoint needs are modelled here; profile data lives elsewhere.
type AdminUser struct {
	ID           uint      `json:"id" gorm:"primarykey"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Email        string    `json:"email" gorm:"uniqueIndex;not null;size:255"`
	PasswordHash string    `json:"-" gorm:"not null;size:255"`
	Disabled     bool      `json:"disabled" gorm:"default:false"`
}

func (AdminUser) TableName() string {
	return "admin_users"
}
