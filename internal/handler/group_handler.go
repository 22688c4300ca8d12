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

type scheduleRequest struct {
	DayOfWeek int    `json:"day_of_week" validate:"min=0,max=6"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
}

// CreateGroup creates a teaching group with its weekly schedule. Groups are
// not quota-limited.
func CreateGroup(c echo.Context) error {
	log := logger.FromContext(c)

	actor, ok := actorFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var req struct {
		Name         string            `json:"name" validate:"required"`
		Subject      string            `json:"subject" validate:"required"`
		Level        string            `json:"level"`
		TeacherID    uint              `json:"teacher_id" validate:"required"`
		MaxStudents  int               `json:"max_students" validate:"required,min=1"`
		StudentPrice float64           `json:"student_price" validate:"min=0"`
		PaymentType  string            `json:"payment_type" validate:"omitempty,oneof=monthly per_session"`
		Schedules    []scheduleRequest `json:"schedules" validate:"dive"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse group creation request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	schedules := make([]model.GroupSchedule, 0, len(req.Schedules))
	for _, s := range req.Schedules {
		schedules = append(schedules, model.GroupSchedule{
			DayOfWeek: s.DayOfWeek,
			StartTime: s.StartTime,
			EndTime:   s.EndTime,
		})
	}

	group, err := enrollmentSvc.CreateGroup(c.Request().Context(), actor, service.NewGroup{
		Name:         req.Name,
		Subject:      req.Subject,
		Level:        req.Level,
		TeacherID:    req.TeacherID,
		MaxStudents:  req.MaxStudents,
		StudentPrice: req.StudentPrice,
		PaymentType:  model.PaymentType(req.PaymentType),
		Schedules:    schedules,
	})
	if err != nil {
		log.Warn("Group creation rejected", zap.Error(err))
		return errorResponse(c, err)
	}

	prometheus.RecordResourceOperation("group", "create")
	log.Info("Group created",
		zap.Uint("id", group.ID),
		zap.Uint("teacher_id", group.UserID),
		zap.Int("max_students", group.MaxStudents))

	return c.JSON(http.StatusCreated, group)
}

// GetGroup returns one group with its schedule, enrolled count and the
// oversubscribed status (capacity may legitimately sit below enrollment
// after the ceiling was lowered).
func GetGroup(c echo.Context) error {
	log := logger.FromContext(c)

	actor, ok := actorFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid group ID"})
	}

	var group model.Group
	if result := database.GetDB().Preload("Schedules").
		Where("id = ? AND tenant_id = ?", id, actor.TenantID).
		First(&group); result.Error != nil {
		log.Warn("Group not found", zap.Uint64("id", id))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "group not found"})
	}

	enrolled, err := enrollmentSvc.EnrolledCount(c.Request().Context(), group.ID)
	if err != nil {
		log.Error("Failed to count enrollment", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to count enrollment"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"group":          group,
		"enrolled":       enrolled,
		"oversubscribed": enrolled > group.MaxStudents,
	})
}

// ListGroups returns the groups of the caller's center.
func ListGroups(c echo.Context) error {
	log := logger.FromContext(c)

	actor, ok := actorFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	query := database.GetDB().Preload("Schedules").Where("tenant_id = ?", actor.TenantID)
	if teacherID := c.QueryParam("teacher_id"); teacherID != "" {
		query = query.Where("user_id = ?", teacherID)
	}

	// Track database operation
	defer prometheus.TrackDBOperation("query")(time.Now())

	var groups []model.Group
	if result := query.Find(&groups); result.Error != nil {
		log.Error("Failed to retrieve groups", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve groups"})
	}

	return c.JSON(http.StatusOK, groups)
}

// UpdateGroup applies changes to a group. Lowering the capacity below the
// current enrollment is allowed and surfaces as oversubscribed.
func UpdateGroup(c echo.Context) error {
	log := logger.FromContext(c)

	actor, ok := actorFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid group ID"})
	}

	var req struct {
		Name         *string  `json:"name"`
		Subject      *string  `json:"subject"`
		Level        *string  `json:"level"`
		TeacherID    *uint    `json:"teacher_id"`
		MaxStudents  *int     `json:"max_students" validate:"omitempty,min=1"`
		StudentPrice *float64 `json:"student_price" validate:"omitempty,min=0"`
		PaymentType  *string  `json:"payment_type" validate:"omitempty,oneof=monthly per_session"`
		IsActive     *bool    `json:"is_active"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	var paymentType *model.PaymentType
	if req.PaymentType != nil {
		pt := model.PaymentType(*req.PaymentType)
		paymentType = &pt
	}

	group, err := enrollmentSvc.Update(c.Request().Context(), actor, uint(id), service.UpdateGroup{
		Name:         req.Name,
		Subject:      req.Subject,
		Level:        req.Level,
		TeacherID:    req.TeacherID,
		MaxStudents:  req.MaxStudents,
		StudentPrice: req.StudentPrice,
		PaymentType:  paymentType,
		IsActive:     req.IsActive,
	})
	if err != nil {
		log.Warn("Group update rejected", zap.Uint64("id", id), zap.Error(err))
		return errorResponse(c, err)
	}

	enrolled, err := enrollmentSvc.EnrolledCount(c.Request().Context(), group.ID)
	if err != nil {
		log.Error("Failed to count enrollment", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to count enrollment"})
	}

	prometheus.RecordResourceOperation("group", "update")
	return c.JSON(http.StatusOK, echo.Map{
		"group":          group,
		"enrolled":       enrolled,
		"oversubscribed": enrolled > group.MaxStudents,
	})
}

// DeleteGroup removes a group after unassigning its students.
func DeleteGroup(c echo.Context) error {
	log := logger.FromContext(c)

	actor, ok := actorFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid group ID"})
	}

	if err := enrollmentSvc.Delete(c.Request().Context(), actor, uint(id)); err != nil {
		log.Warn("Group deletion rejected", zap.Uint64("id", id), zap.Error(err))
		return errorResponse(c, err)
	}

	prometheus.RecordResourceOperation("group", "delete")
	return c.JSON(http.StatusOK, echo.Map{"message": "group deleted"})
}
