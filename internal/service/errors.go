package service

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnauthorized is returned when the acting user fails the membership
	// checks: missing admin role, cross-tenant access, or self-deletion.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound is returned when a referenced teacher, student or group
	// does not exist in the actor's center.
	ErrNotFound = errors.New("not found")

	// ErrNotEnrolled is returned by Remove when the student is not in the
	// given group. The call is a no-op.
	ErrNotEnrolled = errors.New("student is not enrolled in this group")
)

// QuotaExceededError is a plan-quota rejection. Resource names which of the
// tenant's ceilings was hit.
type QuotaExceededError struct {
	Resource string // "teacher", "assistant" or "student"
	Current  int
	Limit    int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("%s quota exceeded: %d of %d in use", e.Resource, e.Current, e.Limit)
}

// CapacityExceededError is a group-capacity rejection. The whole batch is
// rejected; no partial assignment happens.
type CapacityExceededError struct {
	GroupName string
	Enrolled  int
	Requested int
	Limit     int
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("group %q is full: %d enrolled, %d requested, capacity %d",
		e.GroupName, e.Enrolled, e.Requested, e.Limit)
}

// EnrollmentConflict names one student that blocked a batch assignment and
// the group it currently belongs to.
type EnrollmentConflict struct {
	StudentName string
	GroupName   string
}

// AlreadyEnrolledError aggregates every student of a batch that already has
// a group, so the caller can show one coherent message instead of looping.
type AlreadyEnrolledError struct {
	Conflicts []EnrollmentConflict
}

func (e *AlreadyEnrolledError) Error() string {
	parts := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		parts = append(parts, fmt.Sprintf("%s (in %s)", c.StudentName, c.GroupName))
	}
	return "students already enrolled: " + strings.Join(parts, ", ")
}
