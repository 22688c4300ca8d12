package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"center-service/internal/model"
)

// Actor identifies the authenticated user performing an operation.
type Actor struct {
	UserID   uint
	TenantID uint
}

// MembershipService decides whether an actor may operate on a tenant's
// resources. Every mutation path goes through one of its checks before any
// write happens.
type MembershipService struct {
	db    *gorm.DB
	roles RoleDirectory
}

// NewMembershipService creates a membership authority backed by the given
// role directory
func NewMembershipService(db *gorm.DB, roles RoleDirectory) *MembershipService {
	return &MembershipService{db: db, roles: roles}
}

// Authorize allows tenant-management actions only to admins acting on their
// own tenant.
func (s *MembershipService) Authorize(ctx context.Context, actor Actor, tenantID uint) error {
	if actor.TenantID != tenantID {
		return fmt.Errorf("%w: tenant mismatch", ErrUnauthorized)
	}
	isAdmin, err := s.roles.HasRole(ctx, actor.UserID, model.RoleAdmin)
	if err != nil {
		return err
	}
	if !isAdmin {
		return fmt.Errorf("%w: admin role required", ErrUnauthorized)
	}
	return nil
}

// AuthorizeUserDelete runs the admin and tenant checks and additionally
// denies deleting the actor's own user record, independent of role.
func (s *MembershipService) AuthorizeUserDelete(ctx context.Context, actor Actor, targetUserID, tenantID uint) error {
	if err := s.Authorize(ctx, actor, tenantID); err != nil {
		return err
	}
	if targetUserID == actor.UserID {
		return fmt.Errorf("%w: cannot delete your own account", ErrUnauthorized)
	}
	return nil
}

// TeacherInTenant verifies that userID is a teacher of the given tenant.
// Returns ErrNotFound when the user is missing or in another tenant, and
// ErrUnauthorized when the user exists there but is not a teacher.
func (s *MembershipService) TeacherInTenant(ctx context.Context, userID, tenantID uint) error {
	return s.teacherInTenant(s.db.WithContext(ctx), ctx, userID, tenantID)
}

func (s *MembershipService) teacherInTenant(db *gorm.DB, ctx context.Context, userID, tenantID uint) error {
	var usr model.User
	if err := db.Where("id = ? AND tenant_id = ?", userID, tenantID).First(&usr).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: teacher %d", ErrNotFound, userID)
		}
		return err
	}
	isTeacher, err := s.roles.HasRole(ctx, userID, model.RoleTeacher)
	if err != nil {
		return err
	}
	if !isTeacher {
		return fmt.Errorf("%w: user %d is not a teacher", ErrUnauthorized, userID)
	}
	return nil
}
