package models

import (
	"time"

	"gorm.io/datatypes"
)

// Priority tiers for notifications, lowest to highest.
type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityNormal   Priority = "NORMAL"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

// Priorities lists every tier in ascending order.
var Priorities = []Priority{PriorityLow, PriorityNormal, PriorityHigh, PriorityCritical}

// Valid reports whether p is a known tier.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Notification is one durable row per recipient. Rows created by the same
// publish share an EventID.
type Notification struct {
	BaseModel

	UserID      string         `gorm:"type:uuid;index;not null" json:"user_id"`
	EventID     string         `gorm:"type:uuid;index" json:"event_id"`
	Scope       string         `gorm:"type:varchar(255)" json:"scope"`
	Type        string         `gorm:"type:varchar(64);not null" json:"type"`
	Priority    Priority       `gorm:"type:varchar(16);default:'NORMAL';index" json:"priority"`
	Title       string         `gorm:"type:varchar(255);not null" json:"title"`
	Message     string         `gorm:"type:text" json:"message"`
	ActionURL   string         `gorm:"type:text" json:"action_url"`
	Data        datatypes.JSON `json:"data"`
	RequiresAck bool           `gorm:"default:false" json:"requires_ack"`

	IsRead bool       `gorm:"default:false;index" json:"is_read"`
	ReadAt *time.Time `json:"read_at"`
}
