package models

import (
	"time"

	"github.com/gofrs/uuid"
)

const (
	DecisionAllowed = "allowed"
	DecisionDenied  = "denied"
)

// AuditLog records an authorization decision taken on a task.
type AuditLog struct {
	ID            uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	UserID        uuid.UUID `json:"user_id" gorm:"type:uuid;index"`
	Action        string    `json:"action" gorm:"not null"`
	Resource      string    `json:"resource" gorm:"not null"`
	ResourceID    uuid.UUID `json:"resource_id" gorm:"type:uuid"`
	Decision      string    `json:"decision" gorm:"not null"`
	Reason        string    `json:"reason"`
	IPAddress     string    `json:"ip_address"`
	UserAgent     string    `json:"user_agent"`
	RequestMethod string    `json:"request_method"`
	RequestPath   string    `json:"request_path"`
	Timestamp     time.Time `json:"timestamp"`
}
