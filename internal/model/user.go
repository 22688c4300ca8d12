package model

import (
	"time"

	"gorm.io/gorm"
)

// User represents a staff member (admin, teacher or assistant) of a center.
// Assistants carry a TeacherID back-reference to the teacher they work for.
type User struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	TenantID    uint           `json:"tenant_id" gorm:"index;not null"`
	Name        string         `json:"name" gorm:"type:varchar(100);not null"`
	Email       string         `json:"email" gorm:"type:varchar(100);uniqueIndex"`
	Phone       string         `json:"phone" gorm:"type:varchar(30)"`
	Subject     string         `json:"subject,omitempty" gorm:"type:varchar(100)"`
	Password    string         `json:"-" gorm:"type:varchar(255)"`
	Approved    bool           `json:"approved" gorm:"default:false"`
	InviteToken string         `json:"-" gorm:"type:varchar(64);index"` // Non-empty while an invitation is pending
	TeacherID   *uint          `json:"teacher_id,omitempty" gorm:"index"` // Set when the user is an assistant scoped to a teacher
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Tenant Tenant     `json:"tenant,omitempty" gorm:"foreignKey:TenantID"`
	Roles  []UserRole `json:"roles,omitempty" gorm:"foreignKey:UserID"`
}
