package model

import (
	"time"

	"gorm.io/gorm"
)

// Student belongs to a tenant and to one owning teacher. GroupID is nullable
// and single-valued: a student is enrolled in at most one group at a time,
// and enrollment operations must keep it that way.
type Student struct {
	ID            uint           `json:"id" gorm:"primaryKey"`
	TenantID      uint           `json:"tenant_id" gorm:"index;not null"`
	UserID        uint           `json:"user_id" gorm:"index;not null"` // Owning teacher
	GroupID       *uint          `json:"group_id,omitempty" gorm:"index"`
	Name          string         `json:"name" gorm:"type:varchar(100);not null"`
	Phone         string         `json:"phone" gorm:"type:varchar(30)"`
	GuardianPhone string         `json:"guardian_phone,omitempty" gorm:"type:varchar(30)"`
	Level         string         `json:"level,omitempty" gorm:"type:varchar(50)"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Tenant  Tenant `json:"tenant,omitempty" gorm:"foreignKey:TenantID"`
	Teacher User   `json:"teacher,omitempty" gorm:"foreignKey:UserID"`
	Group   *Group `json:"group,omitempty" gorm:"foreignKey:GroupID"`
}
