package model

import (
	"time"

	"gorm.io/gorm"
)

// PlanType distinguishes single-teacher plans from multi-teacher plans
type PlanType string

const (
	PlanTypeIndividual   PlanType = "individual"
	PlanTypeMultiTeacher PlanType = "multi_teacher"
)

// Plan is an immutable catalog entry describing what a subscription allows.
// Plans are read-only inputs to the quota resolver; this service never
// creates or edits them outside the seed step.
type Plan struct {
	ID            uint           `json:"id" gorm:"primaryKey"`
	Name          string         `json:"name" gorm:"type:varchar(100);not null"`
	PlanType      PlanType       `json:"plan_type" gorm:"type:varchar(20);not null;default:'individual'"`
	MaxTeachers   int            `json:"max_teachers" gorm:"not null"`
	MaxAssistants int            `json:"max_assistants" gorm:"not null"`
	MaxStudents   int            `json:"max_students" gorm:"not null"`
	Price         float64        `json:"price" gorm:"type:numeric(12,2);not null"`
	DurationDays  int            `json:"duration_days" gorm:"not null"`
	Active        bool           `json:"active" gorm:"default:true"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `json:"-" gorm:"index"`
}
