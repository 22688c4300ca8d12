package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"center-service/internal/model"
	"center-service/internal/service"
	"center-service/pkg/database"
	"center-service/pkg/logger"
	"center-service/prometheus"
)

// CreateUser creates a teacher or assistant in the caller's center. The
// plan quota for the role is enforced before anything is written.
func CreateUser(c echo.Context) error {
	log := logger.FromContext(c)

	actor, ok := actorFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var req struct {
		Name      string `json:"name" validate:"required"`
		Email     string `json:"email" validate:"required,email"`
		Phone     string `json:"phone"`
		Subject   string `json:"subject"`
		Role      string `json:"role" validate:"required,oneof=teacher assistant"`
		Password  string `json:"password" validate:"required,min=8"`
		TeacherID *uint  `json:"teacher_id"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse user creation request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	usr, err := resourceSvc.CreateUser(c.Request().Context(), actor, service.NewUser{
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Subject:   req.Subject,
		Role:      req.Role,
		Password:  req.Password,
		TeacherID: req.TeacherID,
	})
	if err != nil {
		log.Warn("User creation rejected", zap.String("role", req.Role), zap.Error(err))
		return errorResponse(c, err)
	}

	prometheus.RecordResourceOperation("user", "create")
	log.Info("User created",
		zap.Uint("id", usr.ID),
		zap.String("role", req.Role),
		zap.Uint("tenant_id", actor.TenantID))

	return c.JSON(http.StatusCreated, usr)
}

// InviteUser creates an unapproved user and emails an invitation. The quota
// check is the same as for direct creation.
func InviteUser(c echo.Context) error {
	log := logger.FromContext(c)

	actor, ok := actorFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var req struct {
		Name      string `json:"name" validate:"required"`
		Email     string `json:"email" validate:"required,email"`
		Phone     string `json:"phone"`
		Subject   string `json:"subject"`
		Role      string `json:"role" validate:"required,oneof=teacher assistant"`
		TeacherID *uint  `json:"teacher_id"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse invitation request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	usr, _, err := resourceSvc.InviteUser(c.Request().Context(), actor, service.NewUser{
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Subject:   req.Subject,
		Role:      req.Role,
		TeacherID: req.TeacherID,
	})
	if err != nil {
		log.Warn("Invitation rejected", zap.String("email", req.Email), zap.Error(err))
		return errorResponse(c, err)
	}

	prometheus.RecordResourceOperation("user", "invite")
	log.Info("User invited", zap.Uint("id", usr.ID), zap.String("email", usr.Email))

	return c.JSON(http.StatusCreated, echo.Map{
		"message": "invitation sent",
		"user":    usr,
	})
}

// ListUsers returns the staff of the caller's center.
func ListUsers(c echo.Context) error {
	log := logger.FromContext(c)

	actor, ok := actorFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	// Track database operation
	defer prometheus.TrackDBOperation("query")(time.Now())

	var users []model.User
	if result := database.GetDB().Preload("Roles").Where("tenant_id = ?", actor.TenantID).Find(&users); result.Error != nil {
		log.Error("Failed to retrieve users", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve users"})
	}

	return c.JSON(http.StatusOK, users)
}

// ApproveUser toggles the approved flag of a staff member.
func ApproveUser(c echo.Context) error {
	log := logger.FromContext(c)

	actor, ok := actorFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user ID"})
	}

	var req struct {
		Approved bool `json:"approved"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	usr, err := resourceSvc.ApproveUser(c.Request().Context(), actor, uint(id), req.Approved)
	if err != nil {
		log.Warn("Approval rejected", zap.Uint64("id", id), zap.Error(err))
		return errorResponse(c, err)
	}

	prometheus.RecordResourceOperation("user", "approve")
	return c.JSON(http.StatusOK, usr)
}

// UpdateUser applies profile changes to a staff member.
func UpdateUser(c echo.Context) error {
	log := logger.FromContext(c)

	actor, ok := actorFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user ID"})
	}

	var req struct {
		Name    *string `json:"name"`
		Phone   *string `json:"phone"`
		Subject *string `json:"subject"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	usr, err := resourceSvc.UpdateUser(c.Request().Context(), actor, uint(id), service.UpdateUser{
		Name:    req.Name,
		Phone:   req.Phone,
		Subject: req.Subject,
	})
	if err != nil {
		log.Warn("User update rejected", zap.Uint64("id", id), zap.Error(err))
		return errorResponse(c, err)
	}

	prometheus.RecordResourceOperation("user", "update")
	return c.JSON(http.StatusOK, usr)
}

// DeleteUser removes a staff member. Deleting your own account is denied.
func DeleteUser(c echo.Context) error {
	log := logger.FromContext(c)

	actor, ok := actorFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user ID"})
	}

	if err := resourceSvc.DeleteUser(c.Request().Context(), actor, uint(id)); err != nil {
		log.Warn("User deletion rejected", zap.Uint64("id", id), zap.Error(err))
		return errorResponse(c, err)
	}

	prometheus.RecordResourceOperation("user", "delete")
	log.Info("User deleted", zap.Uint64("id", id), zap.Uint("tenant_id", actor.TenantID))

	return c.JSON(http.StatusOK, echo.Map{"message": "user deleted"})
}
