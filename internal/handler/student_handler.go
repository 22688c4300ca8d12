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

// CreateStudent creates a student in the caller's center, enforcing the
// plan's student quota.
func CreateStudent(c echo.Context) error {
	log := logger.FromContext(c)

	actor, ok := actorFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var req struct {
		Name          string `json:"name" validate:"required"`
		Phone         string `json:"phone"`
		GuardianPhone string `json:"guardian_phone"`
		Level         string `json:"level"`
		TeacherID     uint   `json:"teacher_id" validate:"required"`
		GroupID       *uint  `json:"group_id"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse student creation request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	student, err := resourceSvc.CreateStudent(c.Request().Context(), actor, service.NewStudent{
		Name:          req.Name,
		Phone:         req.Phone,
		GuardianPhone: req.GuardianPhone,
		Level:         req.Level,
		TeacherID:     req.TeacherID,
		GroupID:       req.GroupID,
	})
	if err != nil {
		log.Warn("Student creation rejected", zap.Error(err))
		return errorResponse(c, err)
	}

	prometheus.RecordResourceOperation("student", "create")
	log.Info("Student created",
		zap.Uint("id", student.ID),
		zap.Uint("teacher_id", student.UserID),
		zap.Uint("tenant_id", actor.TenantID))

	return c.JSON(http.StatusCreated, student)
}

// ListStudents returns the students of the caller's center, optionally
// filtered by teacher or group.
func ListStudents(c echo.Context) error {
	log := logger.FromContext(c)

	actor, ok := actorFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	query := database.GetDB().Where("tenant_id = ?", actor.TenantID)
	if teacherID := c.QueryParam("teacher_id"); teacherID != "" {
		query = query.Where("user_id = ?", teacherID)
	}
	if groupID := c.QueryParam("group_id"); groupID != "" {
		query = query.Where("group_id = ?", groupID)
	}

	// Track database operation
	defer prometheus.TrackDBOperation("query")(time.Now())

	var students []model.Student
	if result := query.Find(&students); result.Error != nil {
		log.Error("Failed to retrieve students", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve students"})
	}

	return c.JSON(http.StatusOK, students)
}

// UpdateStudent applies profile changes to a student.
func UpdateStudent(c echo.Context) error {
	log := logger.FromContext(c)

	actor, ok := actorFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid student ID"})
	}

	var req struct {
		Name          *string `json:"name"`
		Phone         *string `json:"phone"`
		GuardianPhone *string `json:"guardian_phone"`
		Level         *string `json:"level"`
		TeacherID     *uint   `json:"teacher_id"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	student, err := resourceSvc.UpdateStudent(c.Request().Context(), actor, uint(id), service.UpdateStudent{
		Name:          req.Name,
		Phone:         req.Phone,
		GuardianPhone: req.GuardianPhone,
		Level:         req.Level,
		TeacherID:     req.TeacherID,
	})
	if err != nil {
		log.Warn("Student update rejected", zap.Uint64("id", id), zap.Error(err))
		return errorResponse(c, err)
	}

	prometheus.RecordResourceOperation("student", "update")
	return c.JSON(http.StatusOK, student)
}

// DeleteStudent removes a student; the quota seat frees on the next
// resolution.
func DeleteStudent(c echo.Context) error {
	log := logger.FromContext(c)

	actor, ok := actorFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid student ID"})
	}

	if err := resourceSvc.DeleteStudent(c.Request().Context(), actor, uint(id)); err != nil {
		log.Warn("Student deletion rejected", zap.Uint64("id", id), zap.Error(err))
		return errorResponse(c, err)
	}

	prometheus.RecordResourceOperation("student", "delete")
	return c.JSON(http.StatusOK, echo.Map{"message": "student deleted"})
}
