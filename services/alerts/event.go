package alerts

import (
	"time"

	"github.com/google/uuid"
)

// Event is the structured payload handed to outbound delivery. Delivery is
// asynchronous and its failure is non-fatal to the login flow.
type Event struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Severity    string         `json:"severity"`
	Description string         `json:"description"`
	UserID      uint           `json:"user_id,omitempty"`
	Email       string         `json:"email,omitempty"`
	IPAddress   string         `json:"ip_address,omitempty"`
	UserAgent   string         `json:"user_agent,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
	Details     map[string]any `json:"details,omitempty"`
}

func NewEvent(title, severity, description string) Event {
	return Event{
		ID:          uuid.New().String(),
		Title:       title,
		Severity:    severity,
		Description: description,
		Timestamp:   time.Now(),
	}
}
