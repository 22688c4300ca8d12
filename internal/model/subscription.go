package model

import (
	"time"

	"gorm.io/gorm"
)

// Subscription binds a tenant to a plan for a time window. A tenant has at
// most one subscription active at any instant; without one the quota
// resolver falls back to the free-tier limits.
type Subscription struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	TenantID  uint           `json:"tenant_id" gorm:"index;not null"`
	PlanID    uint           `json:"plan_id" gorm:"index;not null"`
	StartsAt  time.Time      `json:"starts_at" gorm:"not null"`
	EndsAt    time.Time      `json:"ends_at" gorm:"not null"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Tenant Tenant `json:"tenant,omitempty" gorm:"foreignKey:TenantID"`
	Plan   Plan   `json:"plan,omitempty" gorm:"foreignKey:PlanID"`
}

// ActiveAt reports whether the subscription window covers the given instant.
func (s *Subscription) ActiveAt(t time.Time) bool {
	return !t.Before(s.StartsAt) && t.Before(s.EndsAt)
}
