package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Role segments clinic staff. Values are upper-case and appear verbatim in channel names.
type Role string

const (
	RoleReception Role = "RECEPTION"
	RoleDentist   Role = "DENTIST"
	RoleImaging   Role = "IMAGING"
	RoleAdmin     Role = "ADMIN"
)

// Valid reports whether r is one of the known clinic roles.
func (r Role) Valid() bool {
	switch r {
	case RoleReception, RoleDentist, RoleImaging, RoleAdmin:
		return true
	}
	return false
}

// ParseRole normalises s and validates it.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	return r, r.Valid()
}

// User is a staff member. Soft-deleted users can no longer open realtime sessions.
type User struct {
	BaseModel

	Name     string `gorm:"type:varchar(255);not null" json:"name"`
	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Role     Role   `gorm:"type:varchar(32);not null;index" json:"role"`
	BranchID string `gorm:"type:varchar(64);index" json:"branch_id"`

	IsActive   bool       `gorm:"default:true" json:"is_active"`
	LastSeenAt *time.Time `json:"last_seen_at"`

	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
