package service

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"center-service/internal/model"
	"center-service/pkg/mailer"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	// A file-backed database: every pooled connection to ":memory:" opens its
	// own empty database, which breaks queries that run outside an open
	// transaction's connection.
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&model.Tenant{},
		&model.User{},
		&model.UserRole{},
		&model.Plan{},
		&model.Subscription{},
		&model.Student{},
		&model.Group{},
		&model.GroupSchedule{},
	)
	require.NoError(t, err)

	return db
}

// captureMailer records invitations instead of delivering them.
type captureMailer struct {
	sent []mailer.Invitation
	err  error
}

func (m *captureMailer) SendInvitation(inv mailer.Invitation) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, inv)
	return nil
}

// testEnv bundles the services wired against one test database.
type testEnv struct {
	db         *gorm.DB
	roles      *RoleStore
	quota      *QuotaService
	members    *MembershipService
	enrollment *EnrollmentService
	resources  *ResourceService
	mail       *captureMailer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := setupTestDB(t)
	roles := NewRoleStore(db)
	quota := NewQuotaService(db)
	members := NewMembershipService(db, roles)
	mail := &captureMailer{}
	return &testEnv{
		db:         db,
		roles:      roles,
		quota:      quota,
		members:    members,
		enrollment: NewEnrollmentService(db, members),
		resources:  NewResourceService(db, quota, members, roles, mail, zap.NewNop()),
		mail:       mail,
	}
}

// createTenant inserts a tenant with an admin owner and returns the acting
// admin. The admin holds only the admin role so it never counts against the
// teacher quota.
func (e *testEnv) createTenant(t *testing.T, name string, kind model.TenantKind) (model.Tenant, Actor) {
	t.Helper()

	owner := model.User{Name: name + " owner", Email: name + "-owner@test.local", Approved: true}
	require.NoError(t, e.db.Create(&owner).Error)

	tenant := model.Tenant{Name: name, Kind: kind, OwnerID: owner.ID, Active: true}
	require.NoError(t, e.db.Create(&tenant).Error)
	require.NoError(t, e.db.Model(&owner).Update("tenant_id", tenant.ID).Error)

	require.NoError(t, e.db.Create(&model.UserRole{UserID: owner.ID, Role: model.RoleAdmin}).Error)

	return tenant, Actor{UserID: owner.ID, TenantID: tenant.ID}
}

// subscribe puts the tenant on a plan with the given limits, active now.
func (e *testEnv) subscribe(t *testing.T, tenantID uint, planType model.PlanType, maxTeachers, maxAssistants, maxStudents int) {
	t.Helper()

	plan := model.Plan{
		Name:          "test plan",
		PlanType:      planType,
		MaxTeachers:   maxTeachers,
		MaxAssistants: maxAssistants,
		MaxStudents:   maxStudents,
		Price:         100,
		DurationDays:  30,
		Active:        true,
	}
	require.NoError(t, e.db.Create(&plan).Error)

	sub := model.Subscription{
		TenantID: tenantID,
		PlanID:   plan.ID,
		StartsAt: time.Now().Add(-time.Hour),
		EndsAt:   time.Now().Add(30 * 24 * time.Hour),
	}
	require.NoError(t, e.db.Create(&sub).Error)
}

// createTeacher inserts an approved teacher directly, bypassing quota.
func (e *testEnv) createTeacher(t *testing.T, tenantID uint, name string) model.User {
	t.Helper()

	usr := model.User{TenantID: tenantID, Name: name, Email: name + "@test.local", Approved: true}
	require.NoError(t, e.db.Create(&usr).Error)
	require.NoError(t, e.db.Create(&model.UserRole{UserID: usr.ID, Role: model.RoleTeacher}).Error)
	return usr
}

// createStudent inserts a student directly, bypassing quota.
func (e *testEnv) createStudent(t *testing.T, tenantID, teacherID uint, name string) model.Student {
	t.Helper()

	st := model.Student{TenantID: tenantID, UserID: teacherID, Name: name}
	require.NoError(t, e.db.Create(&st).Error)
	return st
}

// createGroup inserts a group directly.
func (e *testEnv) createGroup(t *testing.T, tenantID, teacherID uint, name string, maxStudents int) model.Group {
	t.Helper()

	g := model.Group{
		TenantID:    tenantID,
		UserID:      teacherID,
		Name:        name,
		Subject:     "math",
		MaxStudents: maxStudents,
		PaymentType: model.PaymentTypeMonthly,
		IsActive:    true,
	}
	require.NoError(t, e.db.Create(&g).Error)
	return g
}
