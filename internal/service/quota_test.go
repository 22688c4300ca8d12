package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"center-service/internal/model"
)

func TestResolveFallbackWithoutSubscription(t *testing.T) {
	env := newTestEnv(t)
	tenant, _ := env.createTenant(t, "solo", model.TenantKindIndividual)

	q, err := env.quota.Resolve(context.Background(), tenant.ID)
	require.NoError(t, err)

	assert.Equal(t, FallbackMaxTeachers, q.MaxTeachers)
	assert.Equal(t, FallbackMaxAssistants, q.MaxAssistants)
	assert.Equal(t, FallbackMaxStudents, q.MaxStudents)
	assert.Equal(t, model.PlanTypeIndividual, q.PlanType)
	assert.Equal(t, 0, q.CurrentTeachers)
	assert.Equal(t, 0, q.CurrentStudents)
}

func TestResolveUsesActiveSubscription(t *testing.T) {
	env := newTestEnv(t)
	tenant, _ := env.createTenant(t, "academy", model.TenantKindOrganization)
	env.subscribe(t, tenant.ID, model.PlanTypeMultiTeacher, 5, 3, 100)

	q, err := env.quota.Resolve(context.Background(), tenant.ID)
	require.NoError(t, err)

	assert.Equal(t, 5, q.MaxTeachers)
	assert.Equal(t, 3, q.MaxAssistants)
	assert.Equal(t, 100, q.MaxStudents)
	assert.Equal(t, model.PlanTypeMultiTeacher, q.PlanType)
}

func TestResolveIgnoresExpiredSubscription(t *testing.T) {
	env := newTestEnv(t)
	tenant, _ := env.createTenant(t, "lapsed", model.TenantKindOrganization)

	plan := model.Plan{Name: "old", PlanType: model.PlanTypeMultiTeacher, MaxTeachers: 5, MaxAssistants: 5, MaxStudents: 100, DurationDays: 30}
	require.NoError(t, env.db.Create(&plan).Error)
	sub := model.Subscription{
		TenantID: tenant.ID,
		PlanID:   plan.ID,
		StartsAt: time.Now().Add(-60 * 24 * time.Hour),
		EndsAt:   time.Now().Add(-30 * 24 * time.Hour),
	}
	require.NoError(t, env.db.Create(&sub).Error)

	q, err := env.quota.Resolve(context.Background(), tenant.ID)
	require.NoError(t, err)

	assert.Equal(t, FallbackMaxTeachers, q.MaxTeachers)
	assert.Equal(t, FallbackMaxStudents, q.MaxStudents)
}

func TestResolveCountsLiveUsage(t *testing.T) {
	env := newTestEnv(t)
	tenant, _ := env.createTenant(t, "busy", model.TenantKindOrganization)
	env.subscribe(t, tenant.ID, model.PlanTypeMultiTeacher, 5, 3, 100)

	teacher := env.createTeacher(t, tenant.ID, "busy-t1")
	env.createTeacher(t, tenant.ID, "busy-t2")
	env.createStudent(t, tenant.ID, teacher.ID, "busy-s1")
	env.createStudent(t, tenant.ID, teacher.ID, "busy-s2")
	env.createStudent(t, tenant.ID, teacher.ID, "busy-s3")

	q, err := env.quota.Resolve(context.Background(), tenant.ID)
	require.NoError(t, err)

	assert.Equal(t, 2, q.CurrentTeachers)
	assert.Equal(t, 0, q.CurrentAssistants)
	assert.Equal(t, 3, q.CurrentStudents)
}

func TestResolveUsageDropsAfterDelete(t *testing.T) {
	env := newTestEnv(t)
	tenant, actor := env.createTenant(t, "shrink", model.TenantKindOrganization)
	env.subscribe(t, tenant.ID, model.PlanTypeMultiTeacher, 5, 3, 100)

	teacher := env.createTeacher(t, tenant.ID, "shrink-t1")
	st := env.createStudent(t, tenant.ID, teacher.ID, "shrink-s1")

	require.NoError(t, env.resources.DeleteStudent(context.Background(), actor, st.ID))

	q, err := env.quota.Resolve(context.Background(), tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, q.CurrentStudents)
}

func TestResolveScopedToTenant(t *testing.T) {
	env := newTestEnv(t)
	a, _ := env.createTenant(t, "tenant-a", model.TenantKindOrganization)
	b, _ := env.createTenant(t, "tenant-b", model.TenantKindOrganization)

	teacher := env.createTeacher(t, a.ID, "a-teacher")
	env.createStudent(t, a.ID, teacher.ID, "a-student")

	q, err := env.quota.Resolve(context.Background(), b.ID)
	require.NoError(t, err)

	assert.Equal(t, 0, q.CurrentTeachers)
	assert.Equal(t, 0, q.CurrentStudents)
}
