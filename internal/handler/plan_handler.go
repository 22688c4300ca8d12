package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"center-service/internal/model"
	"center-service/pkg/database"
	"center-service/pkg/logger"
	"center-service/prometheus"
)

// ListPlans returns the active plan catalog. Plans are read-only here;
// subscriptions are managed by the billing system.
func ListPlans(c echo.Context) error {
	log := logger.FromContext(c)

	// Track database operation
	defer prometheus.TrackDBOperation("query")(time.Now())

	var plans []model.Plan
	if result := database.GetDB().Where("active = ?", true).Order("price").Find(&plans); result.Error != nil {
		log.Error("Failed to retrieve plans", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve plans"})
	}

	return c.JSON(http.StatusOK, plans)
}
