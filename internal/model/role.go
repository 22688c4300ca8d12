package model

import (
	"time"

	"gorm.io/gorm"
)

// Role names recognized by the membership directory.
const (
	RoleAdmin     = "admin"
	RoleTeacher   = "teacher"
	RoleAssistant = "assistant"
)

// UserRole associates a user with a role. A user may hold more than one role
// (an owner of an individual center is both admin and teacher).
type UserRole struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	UserID    uint           `json:"user_id" gorm:"index:idx_user_role,unique;not null"`
	Role      string         `json:"role" gorm:"type:varchar(50);index:idx_user_role,unique;not null"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	User User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}
