package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"center-service/pkg/logger"
	"center-service/prometheus"
)

// AssignStudents enrolls a batch of students into a group. The batch either
// passes every check and lands whole, or is rejected whole.
func AssignStudents(c echo.Context) error {
	log := logger.FromContext(c)

	actor, ok := actorFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	groupID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid group ID"})
	}

	var req struct {
		StudentIDs []uint `json:"student_ids" validate:"required,min=1"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse assignment request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	if err := enrollmentSvc.Assign(c.Request().Context(), actor, uint(groupID), req.StudentIDs); err != nil {
		log.Warn("Assignment rejected",
			zap.Uint64("group_id", groupID),
			zap.Int("batch_size", len(req.StudentIDs)),
			zap.Error(err))
		return errorResponse(c, err)
	}

	prometheus.RecordEnrollment("assign")
	log.Info("Students assigned",
		zap.Uint64("group_id", groupID),
		zap.Int("count", len(req.StudentIDs)))

	return c.JSON(http.StatusOK, echo.Map{
		"message":  "students assigned",
		"group_id": groupID,
		"count":    len(req.StudentIDs),
	})
}

// RemoveStudent takes one student out of a group. Removing a student that
// is not in the group is reported but changes nothing.
func RemoveStudent(c echo.Context) error {
	log := logger.FromContext(c)

	actor, ok := actorFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	groupID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid group ID"})
	}
	studentID, err := strconv.ParseUint(c.Param("student_id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid student ID"})
	}

	if err := enrollmentSvc.Remove(c.Request().Context(), actor, uint(studentID), uint(groupID)); err != nil {
		log.Warn("Removal rejected",
			zap.Uint64("group_id", groupID),
			zap.Uint64("student_id", studentID),
			zap.Error(err))
		return errorResponse(c, err)
	}

	prometheus.RecordEnrollment("remove")
	return c.JSON(http.StatusOK, echo.Map{"message": "student removed from group"})
}
