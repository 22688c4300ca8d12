package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"center-service/internal/model"
)

// EnrollmentService owns the student-to-group assignment rules: one group
// per student, a hard capacity ceiling per group, and same-tenant
// consistency between teacher, group and students.
type EnrollmentService struct {
	db      *gorm.DB
	members *MembershipService
}

// NewEnrollmentService creates the enrollment manager
func NewEnrollmentService(db *gorm.DB, members *MembershipService) *EnrollmentService {
	return &EnrollmentService{db: db, members: members}
}

// NewGroup is the payload for group creation.
type NewGroup struct {
	Name         string
	Subject      string
	Level        string
	TeacherID    uint
	MaxStudents  int
	StudentPrice float64
	PaymentType  model.PaymentType
	Schedules    []model.GroupSchedule
}

// UpdateGroup is the payload for group updates. Nil fields are left as-is.
type UpdateGroup struct {
	Name         *string
	Subject      *string
	Level        *string
	TeacherID    *uint
	MaxStudents  *int
	StudentPrice *float64
	PaymentType  *model.PaymentType
	IsActive     *bool
}

// Assign enrolls a batch of students into a group. The whole batch is
// validated before anything is written: cross-tenant students, students that
// already have a group, and the capacity ceiling each reject the entire
// batch. On success every student's group_id is set in one step.
func (s *EnrollmentService) Assign(ctx context.Context, actor Actor, groupID uint, studentIDs []uint) error {
	if len(studentIDs) == 0 {
		return nil
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var group model.Group
		if err := lockForUpdate(tx).First(&group, groupID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: group %d", ErrNotFound, groupID)
			}
			return err
		}
		if err := s.members.Authorize(ctx, actor, group.TenantID); err != nil {
			return err
		}

		// Students are loaded with row locks so a concurrent assignment of
		// the same student to another group serializes here.
		var students []model.Student
		if err := lockForUpdate(tx).
			Where("id IN ? AND tenant_id = ?", studentIDs, group.TenantID).
			Find(&students).Error; err != nil {
			return err
		}
		if len(students) != len(uniqueIDs(studentIDs)) {
			return fmt.Errorf("%w: one or more students do not belong to this center", ErrNotFound)
		}

		conflicts, err := s.enrolledConflicts(tx, students)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return &AlreadyEnrolledError{Conflicts: conflicts}
		}

		var enrolled int64
		if err := tx.Model(&model.Student{}).Where("group_id = ?", group.ID).Count(&enrolled).Error; err != nil {
			return err
		}
		if int(enrolled)+len(students) > group.MaxStudents {
			return &CapacityExceededError{
				GroupName: group.Name,
				Enrolled:  int(enrolled),
				Requested: len(students),
				Limit:     group.MaxStudents,
			}
		}

		return tx.Model(&model.Student{}).
			Where("id IN ?", studentIDs).
			Update("group_id", group.ID).Error
	})
}

// Remove clears the student's group assignment when it currently points at
// the given group. Removing an unassigned student (or one in another group)
// returns ErrNotEnrolled and changes nothing, so repeated calls converge.
func (s *EnrollmentService) Remove(ctx context.Context, actor Actor, studentID, groupID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var student model.Student
		if err := lockForUpdate(tx).First(&student, studentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: student %d", ErrNotFound, studentID)
			}
			return err
		}
		if err := s.members.Authorize(ctx, actor, student.TenantID); err != nil {
			return err
		}
		if student.GroupID == nil || *student.GroupID != groupID {
			return ErrNotEnrolled
		}
		return tx.Model(&student).Update("group_id", nil).Error
	})
}

// CreateGroup persists a group and its schedule slots. Groups are not
// quota-limited; only the teacher's tenant membership is checked.
func (s *EnrollmentService) CreateGroup(ctx context.Context, actor Actor, ng NewGroup) (model.Group, error) {
	if err := s.members.Authorize(ctx, actor, actor.TenantID); err != nil {
		return model.Group{}, err
	}
	if err := s.members.TeacherInTenant(ctx, ng.TeacherID, actor.TenantID); err != nil {
		return model.Group{}, err
	}

	group := model.Group{
		TenantID:     actor.TenantID,
		UserID:       ng.TeacherID,
		Name:         ng.Name,
		Subject:      ng.Subject,
		Level:        ng.Level,
		MaxStudents:  ng.MaxStudents,
		StudentPrice: ng.StudentPrice,
		PaymentType:  ng.PaymentType,
		IsActive:     true,
		Schedules:    ng.Schedules,
	}
	if group.PaymentType == "" {
		group.PaymentType = model.PaymentTypeMonthly
	}

	if err := s.db.WithContext(ctx).Create(&group).Error; err != nil {
		return model.Group{}, err
	}
	return group, nil
}

// Update applies the changed fields to a group. Lowering MaxStudents below
// the current enrollment is allowed: nobody is evicted, the group simply
// reports oversubscribed and blocks further assignment until enrollment
// drops under the new ceiling.
func (s *EnrollmentService) Update(ctx context.Context, actor Actor, groupID uint, ug UpdateGroup) (model.Group, error) {
	var group model.Group
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).First(&group, groupID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: group %d", ErrNotFound, groupID)
			}
			return err
		}
		if err := s.members.Authorize(ctx, actor, group.TenantID); err != nil {
			return err
		}

		if ug.TeacherID != nil {
			if err := s.members.teacherInTenant(tx, ctx, *ug.TeacherID, group.TenantID); err != nil {
				return err
			}
			group.UserID = *ug.TeacherID
		}
		if ug.Name != nil {
			group.Name = *ug.Name
		}
		if ug.Subject != nil {
			group.Subject = *ug.Subject
		}
		if ug.Level != nil {
			group.Level = *ug.Level
		}
		if ug.MaxStudents != nil {
			group.MaxStudents = *ug.MaxStudents
		}
		if ug.StudentPrice != nil {
			group.StudentPrice = *ug.StudentPrice
		}
		if ug.PaymentType != nil {
			group.PaymentType = *ug.PaymentType
		}
		if ug.IsActive != nil {
			group.IsActive = *ug.IsActive
		}

		return tx.Save(&group).Error
	})
	return group, err
}

// Delete removes a group after unassigning its students. Quotas are not
// affected; the group count is not quota-limited and student counts only
// change when students themselves are deleted.
func (s *EnrollmentService) Delete(ctx context.Context, actor Actor, groupID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var group model.Group
		if err := lockForUpdate(tx).First(&group, groupID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: group %d", ErrNotFound, groupID)
			}
			return err
		}
		if err := s.members.Authorize(ctx, actor, group.TenantID); err != nil {
			return err
		}

		if err := tx.Model(&model.Student{}).Where("group_id = ?", group.ID).Update("group_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Where("group_id = ?", group.ID).Delete(&model.GroupSchedule{}).Error; err != nil {
			return err
		}
		return tx.Delete(&group).Error
	})
}

// EnrolledCount returns the live number of students assigned to the group.
func (s *EnrollmentService) EnrolledCount(ctx context.Context, groupID uint) (int, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&model.Student{}).Where("group_id = ?", groupID).Count(&n).Error
	return int(n), err
}

// CheckNotEnrolled is the reusable "students not already enrolled"
// predicate: it returns an AlreadyEnrolledError naming every student of the
// selection that currently has a group.
func (s *EnrollmentService) CheckNotEnrolled(ctx context.Context, tenantID uint, studentIDs []uint) error {
	var students []model.Student
	if err := s.db.WithContext(ctx).
		Where("id IN ? AND tenant_id = ?", studentIDs, tenantID).
		Find(&students).Error; err != nil {
		return err
	}
	conflicts, err := s.enrolledConflicts(s.db.WithContext(ctx), students)
	if err != nil {
		return err
	}
	if len(conflicts) > 0 {
		return &AlreadyEnrolledError{Conflicts: conflicts}
	}
	return nil
}

func (s *EnrollmentService) enrolledConflicts(db *gorm.DB, students []model.Student) ([]EnrollmentConflict, error) {
	var conflicts []EnrollmentConflict
	for _, st := range students {
		if st.GroupID == nil {
			continue
		}
		var current model.Group
		if err := db.First(&current, *st.GroupID).Error; err != nil {
			return nil, err
		}
		conflicts = append(conflicts, EnrollmentConflict{
			StudentName: st.Name,
			GroupName:   current.Name,
		})
	}
	return conflicts, nil
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
