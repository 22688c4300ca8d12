package handler

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"center-service/internal/service"
	"center-service/pkg/jwtutil"
	"center-service/pkg/mailer"
)

// Package-level services wired once at startup, the same way the database
// handle is global.
var (
	roleStore     service.RoleDirectory
	quotaSvc      *service.QuotaService
	membershipSvc *service.MembershipService
	enrollmentSvc *service.EnrollmentService
	resourceSvc   *service.ResourceService
	jwtUtil       *jwtutil.JWTUtil
)

// Init wires the domain services consumed by the handlers
func Init(db *gorm.DB, jwt *jwtutil.JWTUtil, mail mailer.Mailer, log *zap.Logger) {
	roleStore = service.NewRoleStore(db)
	quotaSvc = service.NewQuotaService(db)
	membershipSvc = service.NewMembershipService(db, roleStore)
	enrollmentSvc = service.NewEnrollmentService(db, membershipSvc)
	resourceSvc = service.NewResourceService(db, quotaSvc, membershipSvc, roleStore, mail, log)
	jwtUtil = jwt
}
