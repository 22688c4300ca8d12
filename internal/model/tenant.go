package model

import (
	"time"

	"gorm.io/gorm"
)

// TenantKind distinguishes a single-teacher center from an organization
type TenantKind string

const (
	TenantKindIndividual   TenantKind = "individual"
	TenantKindOrganization TenantKind = "organization"
)

// Tenant represents an educational center. Every user, student and group
// belongs to exactly one tenant and is never visible across tenants.
type Tenant struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	Name      string         `json:"name" gorm:"type:varchar(100);not null"`
	Kind      TenantKind     `json:"kind" gorm:"type:varchar(20);not null;default:'individual'"`
	OwnerID   uint           `json:"owner_id" gorm:"index;not null"` // User who created this center at onboarding
	Active    bool           `json:"active" gorm:"default:true"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Users    []User    `json:"users,omitempty" gorm:"foreignKey:TenantID"`
	Students []Student `json:"students,omitempty" gorm:"foreignKey:TenantID"`
	Groups   []Group   `json:"groups,omitempty" gorm:"foreignKey:TenantID"`
}
