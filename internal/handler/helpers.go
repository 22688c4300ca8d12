package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"center-service/internal/service"
	"center-service/pkg/jwtutil"
	"center-service/prometheus"
)

// actorFromContext builds the acting identity from the JWT claims stored by
// the auth middleware. The target tenant is always the actor's own tenant.
func actorFromContext(c echo.Context) (service.Actor, bool) {
	claims, ok := c.Get("user").(*jwtutil.UserClaims)
	if !ok {
		return service.Actor{}, false
	}
	return service.Actor{UserID: claims.UserID, TenantID: claims.TenantID}, true
}

// errorResponse maps the domain error kinds to HTTP responses. Every
// rejection is a precondition failure raised before any write, so the body
// is safe to show to the user.
func errorResponse(c echo.Context, err error) error {
	var quotaErr *service.QuotaExceededError
	var capacityErr *service.CapacityExceededError
	var enrolledErr *service.AlreadyEnrolledError

	switch {
	case errors.As(err, &quotaErr):
		prometheus.RecordQuotaExceeded(quotaErr.Resource)
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{
			"error":    quotaErr.Error(),
			"resource": quotaErr.Resource,
			"current":  quotaErr.Current,
			"limit":    quotaErr.Limit,
		})
	case errors.As(err, &capacityErr):
		prometheus.CapacityExceededCounter.Inc()
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{
			"error":    capacityErr.Error(),
			"enrolled": capacityErr.Enrolled,
			"limit":    capacityErr.Limit,
		})
	case errors.As(err, &enrolledErr):
		prometheus.RecordError("already_enrolled")
		return c.JSON(http.StatusConflict, echo.Map{"error": enrolledErr.Error()})
	case errors.Is(err, service.ErrNotEnrolled):
		prometheus.RecordError("not_enrolled")
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrUnauthorized):
		prometheus.RecordError("unauthorized")
		return c.JSON(http.StatusForbidden, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		prometheus.RecordError("not_found")
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	default:
		prometheus.RecordError("internal")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}
