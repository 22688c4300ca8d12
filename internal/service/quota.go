package service

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"center-service/internal/model"
)

// Fallback quota applied to tenants without an active subscription.
const (
	FallbackMaxTeachers   = 1
	FallbackMaxAssistants = 0
	FallbackMaxStudents   = 10
)

// Quota is the resolved ceiling and live usage for one tenant. Usage is
// recomputed from current rows on every call and never stored.
type Quota struct {
	MaxTeachers       int            `json:"max_teachers"`
	MaxAssistants     int            `json:"max_assistants"`
	MaxStudents       int            `json:"max_students"`
	PlanType          model.PlanType `json:"plan_type"`
	CurrentTeachers   int            `json:"current_teachers"`
	CurrentAssistants int            `json:"current_assistants"`
	CurrentStudents   int            `json:"current_students"`
}

// QuotaService resolves the plan-derived resource ceilings of a tenant.
type QuotaService struct {
	db *gorm.DB
}

// NewQuotaService creates a quota service on the given database
func NewQuotaService(db *gorm.DB) *QuotaService {
	return &QuotaService{db: db}
}

// Resolve returns the quota of the tenant under its currently active
// subscription, or the fallback quota when no subscription is active.
// It is a pure read.
func (s *QuotaService) Resolve(ctx context.Context, tenantID uint) (Quota, error) {
	return s.resolve(s.db.WithContext(ctx), tenantID)
}

// resolve runs on the given handle so callers holding a transaction (and a
// lock on the tenant row) see counts consistent with their writes.
func (s *QuotaService) resolve(db *gorm.DB, tenantID uint) (Quota, error) {
	q := Quota{
		MaxTeachers:   FallbackMaxTeachers,
		MaxAssistants: FallbackMaxAssistants,
		MaxStudents:   FallbackMaxStudents,
		PlanType:      model.PlanTypeIndividual,
	}

	now := time.Now()
	var sub model.Subscription
	err := db.Preload("Plan").
		Where("tenant_id = ? AND starts_at <= ? AND ends_at > ?", tenantID, now, now).
		Order("starts_at DESC").
		First(&sub).Error
	switch {
	case err == nil:
		q.MaxTeachers = sub.Plan.MaxTeachers
		q.MaxAssistants = sub.Plan.MaxAssistants
		q.MaxStudents = sub.Plan.MaxStudents
		q.PlanType = sub.Plan.PlanType
	case errors.Is(err, gorm.ErrRecordNotFound):
		// No active subscription, fallback quota stands.
	default:
		return Quota{}, err
	}

	teachers, err := s.countUsersByRole(db, tenantID, model.RoleTeacher)
	if err != nil {
		return Quota{}, err
	}
	assistants, err := s.countUsersByRole(db, tenantID, model.RoleAssistant)
	if err != nil {
		return Quota{}, err
	}

	var students int64
	if err := db.Model(&model.Student{}).Where("tenant_id = ?", tenantID).Count(&students).Error; err != nil {
		return Quota{}, err
	}

	q.CurrentTeachers = teachers
	q.CurrentAssistants = assistants
	q.CurrentStudents = int(students)
	return q, nil
}

func (s *QuotaService) countUsersByRole(db *gorm.DB, tenantID uint, role string) (int, error) {
	var n int64
	err := db.Model(&model.User{}).
		Joins("JOIN user_roles ON user_roles.user_id = users.id AND user_roles.deleted_at IS NULL").
		Where("users.tenant_id = ? AND user_roles.role = ?", tenantID, role).
		Count(&n).Error
	return int(n), err
}
