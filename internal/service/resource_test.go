package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"center-service/internal/model"
)

func TestCreateUserEnforcesTeacherQuota(t *testing.T) {
	env := newTestEnv(t)
	tenant, actor := env.createTenant(t, "tq", model.TenantKindOrganization)
	env.subscribe(t, tenant.ID, model.PlanTypeMultiTeacher, 2, 0, 50)

	ctx := context.Background()
	_, err := env.resources.CreateUser(ctx, actor, NewUser{Name: "T1", Email: "tq-t1@test.local", Role: model.RoleTeacher})
	require.NoError(t, err)
	_, err = env.resources.CreateUser(ctx, actor, NewUser{Name: "T2", Email: "tq-t2@test.local", Role: model.RoleTeacher})
	require.NoError(t, err)

	_, err = env.resources.CreateUser(ctx, actor, NewUser{Name: "T3", Email: "tq-t3@test.local", Role: model.RoleTeacher})
	var qe *QuotaExceededError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, "teacher", qe.Resource)
	assert.Equal(t, 2, qe.Current)
	assert.Equal(t, 2, qe.Limit)

	// Nothing was written for the rejected teacher.
	q, err := env.quota.Resolve(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, q.CurrentTeachers)
}

func TestCreateUserFallbackQuota(t *testing.T) {
	env := newTestEnv(t)
	_, actor := env.createTenant(t, "fb", model.TenantKindIndividual)

	ctx := context.Background()
	_, err := env.resources.CreateUser(ctx, actor, NewUser{Name: "F1", Email: "fb-t1@test.local", Role: model.RoleTeacher})
	require.NoError(t, err)

	// Fallback allows a single teacher and zero assistants.
	_, err = env.resources.CreateUser(ctx, actor, NewUser{Name: "F2", Email: "fb-t2@test.local", Role: model.RoleTeacher})
	var qe *QuotaExceededError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, "teacher", qe.Resource)
	assert.Equal(t, 1, qe.Limit)
}

func TestCreateAssistant(t *testing.T) {
	env := newTestEnv(t)
	tenant, actor := env.createTenant(t, "asst", model.TenantKindOrganization)
	env.subscribe(t, tenant.ID, model.PlanTypeMultiTeacher, 5, 1, 50)
	teacher := env.createTeacher(t, tenant.ID, "asst-teacher")

	ctx := context.Background()
	usr, err := env.resources.CreateUser(ctx, actor, NewUser{
		Name:      "A1",
		Email:     "asst-a1@test.local",
		Role:      model.RoleAssistant,
		TeacherID: &teacher.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, usr.TeacherID)
	assert.Equal(t, teacher.ID, *usr.TeacherID)

	// Second assistant exceeds the limit of one.
	_, err = env.resources.CreateUser(ctx, actor, NewUser{
		Name:      "A2",
		Email:     "asst-a2@test.local",
		Role:      model.RoleAssistant,
		TeacherID: &teacher.ID,
	})
	var qe *QuotaExceededError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, "assistant", qe.Resource)
}

func TestCreateAssistantRequiresTeacher(t *testing.T) {
	env := newTestEnv(t)
	tenant, actor := env.createTenant(t, "asst2", model.TenantKindOrganization)
	env.subscribe(t, tenant.ID, model.PlanTypeMultiTeacher, 5, 5, 50)

	ctx := context.Background()
	_, err := env.resources.CreateUser(ctx, actor, NewUser{Name: "A", Email: "asst2-a@test.local", Role: model.RoleAssistant})
	assert.ErrorIs(t, err, ErrNotFound)

	// Teacher of another tenant cannot be referenced.
	other, _ := env.createTenant(t, "asst2-other", model.TenantKindOrganization)
	foreign := env.createTeacher(t, other.ID, "asst2-foreign")
	_, err = env.resources.CreateUser(ctx, actor, NewUser{
		Name:      "A",
		Email:     "asst2-b@test.local",
		Role:      model.RoleAssistant,
		TeacherID: &foreign.ID,
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateUserRejectsAdminRole(t *testing.T) {
	env := newTestEnv(t)
	tenant, actor := env.createTenant(t, "noadm", model.TenantKindOrganization)
	env.subscribe(t, tenant.ID, model.PlanTypeMultiTeacher, 5, 5, 50)

	_, err := env.resources.CreateUser(context.Background(), actor, NewUser{Name: "X", Email: "noadm-x@test.local", Role: model.RoleAdmin})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestCreateUserRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	tenant, _ := env.createTenant(t, "nonadm", model.TenantKindOrganization)
	env.subscribe(t, tenant.ID, model.PlanTypeMultiTeacher, 5, 5, 50)
	teacher := env.createTeacher(t, tenant.ID, "nonadm-teacher")

	_, err := env.resources.CreateUser(context.Background(),
		Actor{UserID: teacher.ID, TenantID: tenant.ID},
		NewUser{Name: "X", Email: "nonadm-x@test.local", Role: model.RoleTeacher})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestInviteUser(t *testing.T) {
	env := newTestEnv(t)
	tenant, actor := env.createTenant(t, "inv", model.TenantKindOrganization)
	env.subscribe(t, tenant.ID, model.PlanTypeMultiTeacher, 5, 5, 50)

	usr, token, err := env.resources.InviteUser(context.Background(), actor, NewUser{
		Name:  "Invited",
		Email: "inv-t1@test.local",
		Role:  model.RoleTeacher,
	})
	require.NoError(t, err)
	assert.False(t, usr.Approved)
	assert.NotEmpty(t, token)

	require.Len(t, env.mail.sent, 1)
	assert.Equal(t, "inv-t1@test.local", env.mail.sent[0].ToEmail)
	assert.Equal(t, tenant.Name, env.mail.sent[0].CenterName)
	assert.Equal(t, token, env.mail.sent[0].Token)

	// The emailed token is the stored one.
	var stored model.User
	require.NoError(t, env.db.First(&stored, usr.ID).Error)
	assert.Equal(t, token, stored.InviteToken)

	// Invited users count against the quota before they accept.
	q, err := env.quota.Resolve(context.Background(), tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, q.CurrentTeachers)
}

func TestInviteUserSurvivesDeliveryFailure(t *testing.T) {
	env := newTestEnv(t)
	tenant, actor := env.createTenant(t, "invf", model.TenantKindOrganization)
	env.subscribe(t, tenant.ID, model.PlanTypeMultiTeacher, 5, 5, 50)
	env.mail.err = assert.AnError

	usr, token, err := env.resources.InviteUser(context.Background(), actor, NewUser{
		Name:  "Unlucky",
		Email: "invf-t1@test.local",
		Role:  model.RoleTeacher,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	// The token survives the delivery failure, so the invite can still be
	// accepted (or re-sent) later.
	var stored model.User
	require.NoError(t, env.db.First(&stored, usr.ID).Error)
	assert.False(t, stored.Approved)
	assert.Equal(t, token, stored.InviteToken)

	accepted, err := env.resources.AcceptInvite(context.Background(), token, "chosen-password")
	require.NoError(t, err)
	assert.True(t, accepted.Approved)
}

func TestAcceptInvite(t *testing.T) {
	env := newTestEnv(t)
	tenant, actor := env.createTenant(t, "acc", model.TenantKindOrganization)
	env.subscribe(t, tenant.ID, model.PlanTypeMultiTeacher, 5, 5, 50)

	usr, token, err := env.resources.InviteUser(context.Background(), actor, NewUser{
		Name:  "Accepting",
		Email: "acc-t1@test.local",
		Role:  model.RoleTeacher,
	})
	require.NoError(t, err)

	accepted, err := env.resources.AcceptInvite(context.Background(), token, "chosen-password")
	require.NoError(t, err)
	assert.Equal(t, usr.ID, accepted.ID)
	assert.True(t, accepted.Approved)
	assert.Empty(t, accepted.InviteToken)

	var stored model.User
	require.NoError(t, env.db.First(&stored, usr.ID).Error)
	assert.True(t, stored.Approved)
	assert.Empty(t, stored.InviteToken)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("chosen-password")))

	// The token is consumed; a second acceptance fails.
	_, err = env.resources.AcceptInvite(context.Background(), token, "other-password")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAcceptInviteRejectsUnknownToken(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.resources.AcceptInvite(context.Background(), "no-such-token", "chosen-password")
	assert.ErrorIs(t, err, ErrNotFound)

	// An empty token never matches, even while users without a pending
	// invite carry an empty invite_token column.
	_, err = env.resources.AcceptInvite(context.Background(), "", "chosen-password")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestApproveUser(t *testing.T) {
	env := newTestEnv(t)
	tenant, actor := env.createTenant(t, "appr", model.TenantKindOrganization)
	env.subscribe(t, tenant.ID, model.PlanTypeMultiTeacher, 5, 5, 50)

	usr, _, err := env.resources.InviteUser(context.Background(), actor, NewUser{
		Name:  "Pending",
		Email: "appr-t1@test.local",
		Role:  model.RoleTeacher,
	})
	require.NoError(t, err)

	approved, err := env.resources.ApproveUser(context.Background(), actor, usr.ID, true)
	require.NoError(t, err)
	assert.True(t, approved.Approved)
}

func TestDeleteUserFreesQuota(t *testing.T) {
	env := newTestEnv(t)
	tenant, actor := env.createTenant(t, "delq", model.TenantKindIndividual)

	ctx := context.Background()
	usr, err := env.resources.CreateUser(ctx, actor, NewUser{Name: "T", Email: "delq-t@test.local", Role: model.RoleTeacher})
	require.NoError(t, err)

	// Fallback limit of one teacher is reached.
	_, err = env.resources.CreateUser(ctx, actor, NewUser{Name: "T2", Email: "delq-t2@test.local", Role: model.RoleTeacher})
	var qe *QuotaExceededError
	require.ErrorAs(t, err, &qe)

	require.NoError(t, env.resources.DeleteUser(ctx, actor, usr.ID))

	// The slot is free again on the next resolution.
	_, err = env.resources.CreateUser(ctx, actor, NewUser{Name: "T2", Email: "delq-t2@test.local", Role: model.RoleTeacher})
	require.NoError(t, err)

	q, err := env.quota.Resolve(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, q.CurrentTeachers)
}

func TestDeleteUserRejectsSelf(t *testing.T) {
	env := newTestEnv(t)
	_, actor := env.createTenant(t, "delself", model.TenantKindOrganization)

	err := env.resources.DeleteUser(context.Background(), actor, actor.UserID)
	assert.ErrorIs(t, err, ErrUnauthorized)

	var stored model.User
	assert.NoError(t, env.db.First(&stored, actor.UserID).Error)
}

func TestUpdateUser(t *testing.T) {
	env := newTestEnv(t)
	tenant, actor := env.createTenant(t, "upd", model.TenantKindOrganization)
	teacher := env.createTeacher(t, tenant.ID, "upd-teacher")

	name := "Renamed"
	subject := "physics"
	usr, err := env.resources.UpdateUser(context.Background(), actor, teacher.ID, UpdateUser{Name: &name, Subject: &subject})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", usr.Name)
	assert.Equal(t, "physics", usr.Subject)
	assert.Equal(t, teacher.Email, usr.Email)
}

func TestCreateStudentEnforcesQuota(t *testing.T) {
	env := newTestEnv(t)
	tenant, actor := env.createTenant(t, "stq", model.TenantKindOrganization)
	env.subscribe(t, tenant.ID, model.PlanTypeMultiTeacher, 5, 0, 2)
	teacher := env.createTeacher(t, tenant.ID, "stq-teacher")

	ctx := context.Background()
	_, err := env.resources.CreateStudent(ctx, actor, NewStudent{Name: "S1", TeacherID: teacher.ID})
	require.NoError(t, err)
	_, err = env.resources.CreateStudent(ctx, actor, NewStudent{Name: "S2", TeacherID: teacher.ID})
	require.NoError(t, err)

	_, err = env.resources.CreateStudent(ctx, actor, NewStudent{Name: "S3", TeacherID: teacher.ID})
	var qe *QuotaExceededError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, "student", qe.Resource)
	assert.Equal(t, 2, qe.Current)
}

func TestCreateStudentWithInitialGroup(t *testing.T) {
	env := newTestEnv(t)
	tenant, actor := env.createTenant(t, "stg", model.TenantKindOrganization)
	env.subscribe(t, tenant.ID, model.PlanTypeMultiTeacher, 5, 0, 50)
	teacher := env.createTeacher(t, tenant.ID, "stg-teacher")
	group := env.createGroup(t, tenant.ID, teacher.ID, "stg-group", 1)

	ctx := context.Background()
	st, err := env.resources.CreateStudent(ctx, actor, NewStudent{Name: "S1", TeacherID: teacher.ID, GroupID: &group.ID})
	require.NoError(t, err)
	require.NotNil(t, st.GroupID)
	assert.Equal(t, group.ID, *st.GroupID)

	// The group is full; the next creation with the same group fails and
	// writes nothing.
	_, err = env.resources.CreateStudent(ctx, actor, NewStudent{Name: "S2", TeacherID: teacher.ID, GroupID: &group.ID})
	var ce *CapacityExceededError
	require.ErrorAs(t, err, &ce)

	q, err := env.quota.Resolve(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, q.CurrentStudents)
}

func TestCreateStudentRejectsForeignTeacher(t *testing.T) {
	env := newTestEnv(t)
	tenant, actor := env.createTenant(t, "stf", model.TenantKindOrganization)
	env.subscribe(t, tenant.ID, model.PlanTypeMultiTeacher, 5, 0, 50)
	other, _ := env.createTenant(t, "stf-other", model.TenantKindOrganization)
	foreign := env.createTeacher(t, other.ID, "stf-foreign")

	_, err := env.resources.CreateStudent(context.Background(), actor, NewStudent{Name: "S", TeacherID: foreign.ID})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateStudentReassignsTeacher(t *testing.T) {
	env := newTestEnv(t)
	tenant, actor := env.createTenant(t, "stu", model.TenantKindOrganization)
	t1 := env.createTeacher(t, tenant.ID, "stu-t1")
	t2 := env.createTeacher(t, tenant.ID, "stu-t2")
	st := env.createStudent(t, tenant.ID, t1.ID, "stu-s1")

	updated, err := env.resources.UpdateStudent(context.Background(), actor, st.ID, UpdateStudent{TeacherID: &t2.ID})
	require.NoError(t, err)
	assert.Equal(t, t2.ID, updated.UserID)
}

func TestDeleteStudentNotFound(t *testing.T) {
	env := newTestEnv(t)
	_, actor := env.createTenant(t, "stdel", model.TenantKindOrganization)

	err := env.resources.DeleteStudent(context.Background(), actor, 99999)
	assert.ErrorIs(t, err, ErrNotFound)
}

// recordingDirectory wraps RoleStore and records every grant and
// revocation, including those made through a transaction-bound copy.
type recordingDirectory struct {
	store *RoleStore
	calls *[]string
}

func (d *recordingDirectory) HasRole(ctx context.Context, userID uint, role string) (bool, error) {
	return d.store.HasRole(ctx, userID, role)
}

func (d *recordingDirectory) AssignRole(ctx context.Context, userID uint, role string) error {
	*d.calls = append(*d.calls, "assign:"+role)
	return d.store.AssignRole(ctx, userID, role)
}

func (d *recordingDirectory) RevokeRoles(ctx context.Context, userID uint) error {
	*d.calls = append(*d.calls, "revoke")
	return d.store.RevokeRoles(ctx, userID)
}

func (d *recordingDirectory) WithTx(tx *gorm.DB) RoleDirectory {
	return &recordingDirectory{store: d.store.WithTx(tx).(*RoleStore), calls: d.calls}
}

func TestRoleChangesGoThroughDirectory(t *testing.T) {
	env := newTestEnv(t)
	tenant, actor := env.createTenant(t, "dir", model.TenantKindOrganization)
	env.subscribe(t, tenant.ID, model.PlanTypeMultiTeacher, 5, 5, 50)

	var calls []string
	dir := &recordingDirectory{store: env.roles, calls: &calls}
	members := NewMembershipService(env.db, dir)
	resources := NewResourceService(env.db, env.quota, members, dir, env.mail, zap.NewNop())

	ctx := context.Background()
	usr, err := resources.CreateUser(ctx, actor, NewUser{Name: "T", Email: "dir-t@test.local", Role: model.RoleTeacher})
	require.NoError(t, err)
	assert.Contains(t, calls, "assign:"+model.RoleTeacher)

	require.NoError(t, resources.DeleteUser(ctx, actor, usr.ID))
	assert.Contains(t, calls, "revoke")
}
