package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"center-service/internal/model"
	"center-service/pkg/mailer"

	"go.uber.org/zap"
)

// ResourceService is the façade behind every user and student mutation. It
// orders the checks the same way for each operation: membership gate first,
// then the quota check for creations, then same-tenant consistency on any
// referenced teacher, then the write. Nothing is written when any check
// fails.
type ResourceService struct {
	db      *gorm.DB
	quota   *QuotaService
	members *MembershipService
	roles   RoleDirectory
	mail    mailer.Mailer
	log     *zap.Logger
}

// NewResourceService wires the resource mutation façade
func NewResourceService(db *gorm.DB, quota *QuotaService, members *MembershipService, roles RoleDirectory, mail mailer.Mailer, log *zap.Logger) *ResourceService {
	return &ResourceService{db: db, quota: quota, members: members, roles: roles, mail: mail, log: log}
}

// NewUser is the payload for staff creation and invitation.
type NewUser struct {
	Name      string
	Email     string
	Phone     string
	Subject   string
	Role      string // teacher or assistant
	Password  string
	TeacherID *uint // required when Role is assistant
}

// UpdateUser is the payload for staff updates. Nil fields are left as-is.
type UpdateUser struct {
	Name    *string
	Phone   *string
	Subject *string
}

// NewStudent is the payload for student creation.
type NewStudent struct {
	Name          string
	Phone         string
	GuardianPhone string
	Level         string
	TeacherID     uint
	GroupID       *uint
}

// UpdateStudent is the payload for student updates. Nil fields are left as-is.
type UpdateStudent struct {
	Name          *string
	Phone         *string
	GuardianPhone *string
	Level         *string
	TeacherID     *uint
}

// CreateUser creates an approved teacher or assistant in the actor's
// center, enforcing the plan quota for the role. The tenant row is locked
// for the duration of the check-and-write so two concurrent creations
// cannot both pass a count of N against a limit of N+1.
func (s *ResourceService) CreateUser(ctx context.Context, actor Actor, nu NewUser) (model.User, error) {
	return s.createUser(ctx, actor, nu, true, "")
}

// InviteUser creates an unapproved user and hands an invitation with a
// one-time token to the mailer. The same membership and quota checks as
// CreateUser apply. The token is stored on the user row before anything is
// sent, so a delivery failure does not undo the creation: the token stays
// valid and the invite can be re-sent.
func (s *ResourceService) InviteUser(ctx context.Context, actor Actor, nu NewUser) (model.User, string, error) {
	token := uuid.New().String()
	usr, err := s.createUser(ctx, actor, nu, false, token)
	if err != nil {
		return model.User{}, "", err
	}

	var tenant model.Tenant
	if err := s.db.WithContext(ctx).First(&tenant, actor.TenantID).Error; err != nil {
		return model.User{}, "", err
	}

	inv := mailer.Invitation{
		ToName:     usr.Name,
		ToEmail:    usr.Email,
		CenterName: tenant.Name,
		Role:       nu.Role,
		Token:      token,
	}
	if err := s.mail.SendInvitation(inv); err != nil {
		s.log.Error("failed to deliver invitation",
			zap.String("email", usr.Email),
			zap.Error(err))
	}
	return usr, token, nil
}

func (s *ResourceService) createUser(ctx context.Context, actor Actor, nu NewUser, approved bool, inviteToken string) (model.User, error) {
	if err := s.members.Authorize(ctx, actor, actor.TenantID); err != nil {
		return model.User{}, err
	}
	if nu.Role != model.RoleTeacher && nu.Role != model.RoleAssistant {
		return model.User{}, fmt.Errorf("%w: role %q cannot be created here", ErrUnauthorized, nu.Role)
	}

	usr := model.User{
		TenantID:    actor.TenantID,
		Name:        nu.Name,
		Email:       nu.Email,
		Phone:       nu.Phone,
		Subject:     nu.Subject,
		Approved:    approved,
		InviteToken: inviteToken,
	}
	if nu.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(nu.Password), bcrypt.DefaultCost)
		if err != nil {
			return model.User{}, err
		}
		usr.Password = string(hash)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The lock on the tenant row serializes quota-checked creations
		// within one center.
		var tenant model.Tenant
		if err := lockForUpdate(tx).First(&tenant, actor.TenantID).Error; err != nil {
			return err
		}

		q, err := s.quota.resolve(tx, actor.TenantID)
		if err != nil {
			return err
		}
		switch nu.Role {
		case model.RoleTeacher:
			if q.CurrentTeachers+1 > q.MaxTeachers {
				return &QuotaExceededError{Resource: "teacher", Current: q.CurrentTeachers, Limit: q.MaxTeachers}
			}
		case model.RoleAssistant:
			if q.CurrentAssistants+1 > q.MaxAssistants {
				return &QuotaExceededError{Resource: "assistant", Current: q.CurrentAssistants, Limit: q.MaxAssistants}
			}
			if nu.TeacherID == nil {
				return fmt.Errorf("%w: assistant requires a teacher", ErrNotFound)
			}
			if err := s.members.teacherInTenant(tx, ctx, *nu.TeacherID, actor.TenantID); err != nil {
				return err
			}
			usr.TeacherID = nu.TeacherID
		}

		if err := tx.Create(&usr).Error; err != nil {
			return err
		}
		return DirectoryWithTx(s.roles, tx).AssignRole(ctx, usr.ID, nu.Role)
	})
	if err != nil {
		return model.User{}, err
	}
	return usr, nil
}

// ApproveUser toggles the approved flag of a user in the actor's center.
func (s *ResourceService) ApproveUser(ctx context.Context, actor Actor, userID uint, approved bool) (model.User, error) {
	if err := s.members.Authorize(ctx, actor, actor.TenantID); err != nil {
		return model.User{}, err
	}
	usr, err := s.userInTenant(ctx, userID, actor.TenantID)
	if err != nil {
		return model.User{}, err
	}
	if err := s.db.WithContext(ctx).Model(&usr).Update("approved", approved).Error; err != nil {
		return model.User{}, err
	}
	usr.Approved = approved
	return usr, nil
}

// UpdateUser applies profile changes. Updates do not increase counts so no
// quota check runs, but the membership and tenant checks still do.
func (s *ResourceService) UpdateUser(ctx context.Context, actor Actor, userID uint, uu UpdateUser) (model.User, error) {
	if err := s.members.Authorize(ctx, actor, actor.TenantID); err != nil {
		return model.User{}, err
	}
	usr, err := s.userInTenant(ctx, userID, actor.TenantID)
	if err != nil {
		return model.User{}, err
	}

	if uu.Name != nil {
		usr.Name = *uu.Name
	}
	if uu.Phone != nil {
		usr.Phone = *uu.Phone
	}
	if uu.Subject != nil {
		usr.Subject = *uu.Subject
	}
	if err := s.db.WithContext(ctx).Save(&usr).Error; err != nil {
		return model.User{}, err
	}
	return usr, nil
}

// DeleteUser removes a staff member and their role rows. Self-deletion is
// denied. The quota usage drops on the next resolution; nothing else
// cascades.
func (s *ResourceService) DeleteUser(ctx context.Context, actor Actor, userID uint) error {
	if err := s.members.AuthorizeUserDelete(ctx, actor, userID, actor.TenantID); err != nil {
		return err
	}
	usr, err := s.userInTenant(ctx, userID, actor.TenantID)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := DirectoryWithTx(s.roles, tx).RevokeRoles(ctx, usr.ID); err != nil {
			return err
		}
		return tx.Delete(&usr).Error
	})
}

// AcceptInvite activates an invited account: the token from the invitation
// email sets the password and approves the user, and is consumed in the
// process so it cannot be replayed.
func (s *ResourceService) AcceptInvite(ctx context.Context, token, password string) (model.User, error) {
	if token == "" {
		return model.User{}, fmt.Errorf("%w: invitation", ErrNotFound)
	}

	var usr model.User
	if err := s.db.WithContext(ctx).Where("invite_token = ?", token).First(&usr).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.User{}, fmt.Errorf("%w: invitation", ErrNotFound)
		}
		return model.User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return model.User{}, err
	}

	if err := s.db.WithContext(ctx).Model(&usr).Updates(map[string]interface{}{
		"password":     string(hash),
		"approved":     true,
		"invite_token": "",
	}).Error; err != nil {
		return model.User{}, err
	}
	usr.Password = string(hash)
	usr.Approved = true
	usr.InviteToken = ""
	return usr, nil
}

// CreateStudent creates a student owned by a teacher of the actor's center,
// enforcing the student quota. When an initial group is given, the group's
// capacity check runs inside the same transaction so the enrollment can
// never land over the ceiling.
func (s *ResourceService) CreateStudent(ctx context.Context, actor Actor, ns NewStudent) (model.Student, error) {
	if err := s.members.Authorize(ctx, actor, actor.TenantID); err != nil {
		return model.Student{}, err
	}

	student := model.Student{
		TenantID:      actor.TenantID,
		UserID:        ns.TeacherID,
		Name:          ns.Name,
		Phone:         ns.Phone,
		GuardianPhone: ns.GuardianPhone,
		Level:         ns.Level,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tenant model.Tenant
		if err := lockForUpdate(tx).First(&tenant, actor.TenantID).Error; err != nil {
			return err
		}

		q, err := s.quota.resolve(tx, actor.TenantID)
		if err != nil {
			return err
		}
		if q.CurrentStudents+1 > q.MaxStudents {
			return &QuotaExceededError{Resource: "student", Current: q.CurrentStudents, Limit: q.MaxStudents}
		}

		if err := s.members.teacherInTenant(tx, ctx, ns.TeacherID, actor.TenantID); err != nil {
			return err
		}

		if ns.GroupID != nil {
			var group model.Group
			if err := lockForUpdate(tx).
				Where("id = ? AND tenant_id = ?", *ns.GroupID, actor.TenantID).
				First(&group).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: group %d", ErrNotFound, *ns.GroupID)
				}
				return err
			}
			var enrolled int64
			if err := tx.Model(&model.Student{}).Where("group_id = ?", group.ID).Count(&enrolled).Error; err != nil {
				return err
			}
			if int(enrolled)+1 > group.MaxStudents {
				return &CapacityExceededError{
					GroupName: group.Name,
					Enrolled:  int(enrolled),
					Requested: 1,
					Limit:     group.MaxStudents,
				}
			}
			student.GroupID = ns.GroupID
		}

		return tx.Create(&student).Error
	})
	if err != nil {
		return model.Student{}, err
	}
	return student, nil
}

// UpdateStudent applies profile changes; no quota check.
func (s *ResourceService) UpdateStudent(ctx context.Context, actor Actor, studentID uint, us UpdateStudent) (model.Student, error) {
	if err := s.members.Authorize(ctx, actor, actor.TenantID); err != nil {
		return model.Student{}, err
	}

	var student model.Student
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND tenant_id = ?", studentID, actor.TenantID).First(&student).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: student %d", ErrNotFound, studentID)
			}
			return err
		}

		if us.TeacherID != nil {
			if err := s.members.teacherInTenant(tx, ctx, *us.TeacherID, actor.TenantID); err != nil {
				return err
			}
			student.UserID = *us.TeacherID
		}
		if us.Name != nil {
			student.Name = *us.Name
		}
		if us.Phone != nil {
			student.Phone = *us.Phone
		}
		if us.GuardianPhone != nil {
			student.GuardianPhone = *us.GuardianPhone
		}
		if us.Level != nil {
			student.Level = *us.Level
		}
		return tx.Save(&student).Error
	})
	if err != nil {
		return model.Student{}, err
	}
	return student, nil
}

// DeleteStudent removes a student. The student quota usage drops on the
// next resolution and the group seat frees up immediately; counts are
// always recomputed, never decremented.
func (s *ResourceService) DeleteStudent(ctx context.Context, actor Actor, studentID uint) error {
	if err := s.members.Authorize(ctx, actor, actor.TenantID); err != nil {
		return err
	}

	res := s.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", studentID, actor.TenantID).
		Delete(&model.Student{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: student %d", ErrNotFound, studentID)
	}
	return nil
}

func (s *ResourceService) userInTenant(ctx context.Context, userID, tenantID uint) (model.User, error) {
	var usr model.User
	err := s.db.WithContext(ctx).Where("id = ? AND tenant_id = ?", userID, tenantID).First(&usr).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.User{}, fmt.Errorf("%w: user %d", ErrNotFound, userID)
		}
		return model.User{}, err
	}
	return usr, nil
}
