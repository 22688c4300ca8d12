package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"center-service/internal/model"
	"center-service/internal/service"
	"center-service/pkg/database"
	"center-service/pkg/logger"
	"center-service/prometheus"
)

// Register handles center onboarding: it creates the owning user and the
// center in one transaction and grants the admin role (plus teacher, for
// individual centers where the owner teaches).
func Register(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RegisterCounter.Inc()

	var req struct {
		Name       string `json:"name" validate:"required"`
		Email      string `json:"email" validate:"required,email"`
		Phone      string `json:"phone"`
		Password   string `json:"password" validate:"required,min=8"`
		CenterName string `json:"center_name" validate:"required"`
		CenterKind string `json:"center_kind" validate:"omitempty,oneof=individual organization"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse registration request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	kind := model.TenantKind(req.CenterKind)
	if kind == "" {
		kind = model.TenantKindIndividual
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
	}

	var usr model.User
	var tenant model.Tenant
	err = database.GetDB().Transaction(func(tx *gorm.DB) error {
		usr = model.User{
			Name:     req.Name,
			Email:    req.Email,
			Phone:    req.Phone,
			Password: string(hash),
			Approved: true,
		}
		if err := tx.Create(&usr).Error; err != nil {
			return err
		}

		tenant = model.Tenant{
			Name:    req.CenterName,
			Kind:    kind,
			OwnerID: usr.ID,
			Active:  true,
		}
		if err := tx.Create(&tenant).Error; err != nil {
			return err
		}

		if err := tx.Model(&usr).Update("tenant_id", tenant.ID).Error; err != nil {
			return err
		}
		usr.TenantID = tenant.ID

		dir := service.DirectoryWithTx(roleStore, tx)
		if err := dir.AssignRole(c.Request().Context(), usr.ID, model.RoleAdmin); err != nil {
			return err
		}
		if kind == model.TenantKindIndividual {
			// The owner of an individual center is its one teacher.
			if err := dir.AssignRole(c.Request().Context(), usr.ID, model.RoleTeacher); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Error("Registration failed", zap.String("email", req.Email), zap.Error(err))
		return c.JSON(http.StatusConflict, echo.Map{"error": "registration failed"})
	}

	token, err := jwtUtil.GenerateToken(usr.Email, usr.ID, tenant.ID, tenant.Name, model.RoleAdmin)
	if err != nil {
		log.Error("Failed to generate token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token error"})
	}

	log.Info("Center registered",
		zap.String("email", usr.Email),
		zap.Uint("tenant_id", tenant.ID),
		zap.String("kind", string(kind)))

	return c.JSON(http.StatusCreated, echo.Map{
		"token": token,
		"user":  usr,
		"center": echo.Map{
			"id":   tenant.ID,
			"name": tenant.Name,
			"kind": tenant.Kind,
		},
	})
}

// Login verifies credentials and issues a JWT scoped to the user's center.
func Login(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.LoginCounter.Inc()

	var req struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse login request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	var usr model.User
	if result := database.GetDB().Where("email = ?", req.Email).First(&usr); result.Error != nil {
		log.Warn("User not found", zap.String("email", req.Email))
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(usr.Password), []byte(req.Password)); err != nil {
		log.Warn("Invalid password", zap.String("email", req.Email))
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	if !usr.Approved {
		log.Warn("Unapproved user attempted login", zap.String("email", req.Email))
		return c.JSON(http.StatusForbidden, echo.Map{"error": "account pending approval"})
	}

	var tenant model.Tenant
	if result := database.GetDB().First(&tenant, usr.TenantID); result.Error != nil {
		log.Error("Tenant not found for user", zap.Uint("tenant_id", usr.TenantID))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "center lookup failed"})
	}

	role := highestRole(c, usr.ID)
	token, err := jwtUtil.GenerateToken(usr.Email, usr.ID, usr.TenantID, tenant.Name, role)
	if err != nil {
		log.Error("Failed to generate token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token error"})
	}

	log.Info("User logged in",
		zap.String("email", usr.Email),
		zap.Uint("tenant_id", usr.TenantID),
		zap.String("role", role))

	return c.JSON(http.StatusOK, echo.Map{
		"token": token,
		"user":  usr,
		"center": echo.Map{
			"id":   tenant.ID,
			"name": tenant.Name,
			"kind": tenant.Kind,
		},
	})
}

// AcceptInvite activates an invited account. The emailed token is matched
// against the stored one, the chosen password is set and the token is
// consumed.
func AcceptInvite(c echo.Context) error {
	log := logger.FromContext(c)

	var req struct {
		Token    string `json:"token" validate:"required"`
		Password string `json:"password" validate:"required,min=8"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse invitation acceptance request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	usr, err := resourceSvc.AcceptInvite(c.Request().Context(), req.Token, req.Password)
	if err != nil {
		log.Warn("Invitation acceptance rejected", zap.Error(err))
		return errorResponse(c, err)
	}

	log.Info("Invitation accepted", zap.Uint("id", usr.ID), zap.String("email", usr.Email))
	return c.JSON(http.StatusOK, echo.Map{
		"message": "account activated",
		"user":    usr,
	})
}

// highestRole picks the most privileged role the user holds, for the token
// claim only. Authorization always re-checks the directory; a failed lookup
// is logged and skipped rather than treated as absence of every role.
func highestRole(c echo.Context, userID uint) string {
	log := logger.FromContext(c)
	ctx := c.Request().Context()
	for _, role := range []string{model.RoleAdmin, model.RoleTeacher, model.RoleAssistant} {
		has, err := roleStore.HasRole(ctx, userID, role)
		if err != nil {
			log.Error("Failed to look up role",
				zap.Uint("user_id", userID),
				zap.String("role", role),
				zap.Error(err))
			continue
		}
		if has {
			return role
		}
	}
	return ""
}
