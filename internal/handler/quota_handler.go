package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"center-service/pkg/logger"
)

// GetQuota returns the caller's resolved plan quota with live usage. The
// counts are recomputed from current rows on every call.
func GetQuota(c echo.Context) error {
	log := logger.FromContext(c)

	actor, ok := actorFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	quota, err := quotaSvc.Resolve(c.Request().Context(), actor.TenantID)
	if err != nil {
		log.Error("Failed to resolve quota", zap.Uint("tenant_id", actor.TenantID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to resolve quota"})
	}

	return c.JSON(http.StatusOK, quota)
}
