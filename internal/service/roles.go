package service

import (
	"context"

	"gorm.io/gorm"

	"center-service/internal/model"
)

// RoleDirectory is the membership directory consulted for every capability
// check. The gorm-backed implementation below is the default; deployments
// with an external directory can inject their own.
type RoleDirectory interface {
	HasRole(ctx context.Context, userID uint, role string) (bool, error)
	AssignRole(ctx context.Context, userID uint, role string) error
	RevokeRoles(ctx context.Context, userID uint) error
}

// TxRoleDirectory is implemented by directories that can join a database
// transaction, so role grants commit or roll back together with the rows
// they belong to.
type TxRoleDirectory interface {
	RoleDirectory
	WithTx(tx *gorm.DB) RoleDirectory
}

// DirectoryWithTx binds the directory to tx when it supports transactions;
// external directories without transactional writes are returned unchanged.
func DirectoryWithTx(roles RoleDirectory, tx *gorm.DB) RoleDirectory {
	if txDir, ok := roles.(TxRoleDirectory); ok {
		return txDir.WithTx(tx)
	}
	return roles
}

// RoleStore implements RoleDirectory over the user_roles table.
type RoleStore struct {
	db *gorm.DB
}

// NewRoleStore creates the gorm-backed role directory
func NewRoleStore(db *gorm.DB) *RoleStore {
	return &RoleStore{db: db}
}

// WithTx implements TxRoleDirectory
func (s *RoleStore) WithTx(tx *gorm.DB) RoleDirectory {
	return &RoleStore{db: tx}
}

func (s *RoleStore) HasRole(ctx context.Context, userID uint, role string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&model.UserRole{}).
		Where("user_id = ? AND role = ?", userID, role).
		Count(&n).Error
	return n > 0, err
}

func (s *RoleStore) AssignRole(ctx context.Context, userID uint, role string) error {
	has, err := s.HasRole(ctx, userID, role)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	return s.db.WithContext(ctx).Create(&model.UserRole{UserID: userID, Role: role}).Error
}

func (s *RoleStore) RevokeRoles(ctx context.Context, userID uint) error {
	return s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&model.UserRole{}).Error
}
