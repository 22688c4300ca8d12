package model

import (
	"time"

	"gorm.io/gorm"
)

// PaymentType is how students of a group are billed
type PaymentType string

const (
	PaymentTypeMonthly    PaymentType = "monthly"
	PaymentTypePerSession PaymentType = "per_session"
)

// Group is a teaching group run by one teacher. MaxStudents is the hard
// enrollment ceiling; it is independent of the tenant's plan quotas.
type Group struct {
	ID           uint           `json:"id" gorm:"primaryKey"`
	TenantID     uint           `json:"tenant_id" gorm:"index;not null"`
	UserID       uint           `json:"user_id" gorm:"index;not null"` // Teacher running the group
	Name         string         `json:"name" gorm:"type:varchar(100);not null"`
	Subject      string         `json:"subject" gorm:"type:varchar(100)"`
	Level        string         `json:"level,omitempty" gorm:"type:varchar(50)"`
	MaxStudents  int            `json:"max_students" gorm:"not null"`
	StudentPrice float64        `json:"student_price" gorm:"type:numeric(12,2)"`
	PaymentType  PaymentType    `json:"payment_type" gorm:"type:varchar(20);not null;default:'monthly'"`
	IsActive     bool           `json:"is_active" gorm:"default:true"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Tenant    Tenant          `json:"tenant,omitempty" gorm:"foreignKey:TenantID"`
	Teacher   User            `json:"teacher,omitempty" gorm:"foreignKey:UserID"`
	Students  []Student       `json:"students,omitempty" gorm:"foreignKey:GroupID"`
	Schedules []GroupSchedule `json:"schedules,omitempty" gorm:"foreignKey:GroupID"`
}

// GroupSchedule is one weekly slot of a group. Overlap between slots is not
// validated here.
type GroupSchedule struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	GroupID   uint           `json:"group_id" gorm:"index;not null"`
	DayOfWeek int            `json:"day_of_week" gorm:"not null"` // 0 = Sunday
	StartTime string         `json:"start_time" gorm:"type:varchar(5);not null"` // "16:00"
	EndTime   string         `json:"end_time" gorm:"type:varchar(5);not null"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}
