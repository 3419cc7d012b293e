package handlers

import (
	"encoding/json"
	"net/http"

	"assetflow/internal/api/middleware"
	"assetflow/internal/apperrors"
	"assetflow/internal/config"
	"assetflow/internal/models"
	"assetflow/internal/services"
	"assetflow/internal/utils"
	"assetflow/internal/utils/logger"

	"github.com/labstack/echo/v4"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuthHandler exchanges identity-provider access tokens for API sessions.
// There is no local registration or password path; the identity provider owns
// credentials.
type AuthHandler struct {
	db    *gorm.DB
	authz *services.AuthzService
	cfg   *config.Config
	log   *logger.Logger
}

func NewAuthHandler(db *gorm.DB, authz *services.AuthzService, cfg *config.Config) *AuthHandler {
	return &AuthHandler{db: db, authz: authz, cfg: cfg, log: logger.New("AuthHandler")}
}

type LoginRequest struct {
	AccessToken string `json:"access_token" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// Login verifies the provider access token, upserts the local user mirror and
// issues a session token stamped with the user's effective role.
// @Summary Log in with an identity provider access token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Provider access token"
// @Success 200 {object} map[string]interface{} "Session token, refresh token and profile"
// @Failure 401 {object} map[string]string "Invalid access token"
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	identity, err := utils.GetUserFromIdentityProvider(h.cfg.Identity.BaseURL, req.AccessToken)
	if err != nil {
		h.log.Error("Identity provider rejected access token: %v", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
	}
	if !identity.IsActive {
		return echo.NewHTTPError(http.StatusUnauthorized, "identity is deactivated")
	}

	user, err := h.upsertUser(identity)
	if err != nil {
		h.log.Error("Failed to upsert user %s: %v", err, identity.SocialID)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to record user")
	}

	role, _, err := h.authz.ResolveEffectiveRole(c.Request().Context(), user.SocialID)
	if err != nil {
		if appErr, ok := apperrors.As(err); ok {
			return echo.NewHTTPError(appErr.HTTPStatus(), appErr.Message)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to resolve role")
	}

	token, err := utils.GenerateJWT(*user, role)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to issue token")
	}
	refreshToken, err := utils.GenerateRefreshToken(*user)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to issue refresh token")
	}

	h.log.Success("User %s logged in with role %s from %s", user.SocialID, role.Name, utils.GetIPAddress(c.Request()))
	return c.JSON(http.StatusOK, map[string]interface{}{
		"token":         token,
		"refresh_token": refreshToken,
		"user":          user,
		"role":          role,
	})
}

// upsertUser mirrors the provider identity into app_users. The raw provider
// payload is kept alongside for audit.
func (h *AuthHandler) upsertUser(identity *utils.IdentityUser) (*models.AppUser, error) {
	providerData, _ := json.Marshal(identity)

	var user models.AppUser
	err := h.db.Where("social_id = ?", identity.SocialID).First(&user).Error
	if err == gorm.ErrRecordNotFound {
		user = models.AppUser{
			SocialID:     identity.SocialID,
			Email:        identity.Email,
			Name:         identity.Name,
			IsActive:     identity.IsActive,
			ProviderData: datatypes.JSON(providerData),
		}
		if err := h.db.Create(&user).Error; err != nil {
			return nil, err
		}
		return &user, nil
	}
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"email":         identity.Email,
		"name":          identity.Name,
		"is_active":     identity.IsActive,
		"provider_data": datatypes.JSON(providerData),
	}
	if err := h.db.Model(&user).Updates(updates).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// RefreshToken issues a fresh session token. The role is re-resolved, so a
// refresh after a role change yields a token with the new role.
// @Summary Refresh the session token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RefreshRequest true "Refresh token"
// @Success 200 {object} map[string]string "New session token"
// @Failure 401 {object} map[string]string "Invalid refresh token"
// @Router /api/v1/auth/refresh [post]
func (h *AuthHandler) RefreshToken(c echo.Context) error {
	var req RefreshRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	claims, err := utils.ParseRefreshToken(req.RefreshToken)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid refresh token")
	}

	var user models.AppUser
	if err := h.db.Where("social_id = ? AND is_active = ? AND is_deleted = false",
		claims.SocialID, true).First(&user).Error; err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "user not found or inactive")
	}

	role, _, err := h.authz.ResolveEffectiveRole(c.Request().Context(), user.SocialID)
	if err != nil {
		if appErr, ok := apperrors.As(err); ok {
			return echo.NewHTTPError(appErr.HTTPStatus(), appErr.Message)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to resolve role")
	}

	token, err := utils.GenerateJWT(user, role)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to issue token")
	}

	return c.JSON(http.StatusOK, map[string]string{"token": token})
}

// GetMe returns the caller's profile and effective role.
// @Summary Get the authenticated user's profile
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/users/me [get]
func (h *AuthHandler) GetMe(c echo.Context) error {
	socialID := middleware.GetSocialID(c)

	var user models.AppUser
	if err := h.db.Where("social_id = ? AND is_deleted = false", socialID).First(&user).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"user": user,
		"role": middleware.GetRole(c),
	})
}

// ListUsers returns the mirrored identities.
// @Summary List users
// @Tags users
// @Produce json
// @Success 200 {array} models.AppUser
// @Router /api/v1/users [get]
func (h *AuthHandler) ListUsers(c echo.Context) error {
	var users []models.AppUser
	query := h.db.Where("is_deleted = false")
	if active := c.QueryParam("active"); active != "" {
		query = query.Where("is_active = ?", active == "true")
	}
	if err := query.Order("name ASC").Find(&users).Error; err != nil {
		h.log.Error("Failed to list users: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list users")
	}
	return c.JSON(http.StatusOK, users)
}

// GetUser returns one mirrored identity by social id.
// @Summary Get a user
// @Tags users
// @Produce json
// @Param socialId path string true "Social ID"
// @Success 200 {object} models.AppUser
// @Failure 404 {object} map[string]string "Not found"
// @Router /api/v1/users/{socialId} [get]
func (h *AuthHandler) GetUser(c echo.Context) error {
	socialID := c.Param("socialId")
	if socialID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing socialId parameter")
	}

	var user models.AppUser
	if err := h.db.Where("social_id = ? AND is_deleted = false", socialID).First(&user).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}
	return c.JSON(http.StatusOK, user)
}

// SetUserActive activates or deactivates a mirrored identity. Deactivation
// locks the user out on their next request.
// @Summary Activate or deactivate a user
// @Tags users
// @Accept json
// @Produce json
// @Param socialId path string true "Social ID"
// @Success 200 {object} models.AppUser
// @Failure 404 {object} map[string]string "Not found"
// @Router /api/v1/users/{socialId}/active [put]
func (h *AuthHandler) SetUserActive(c echo.Context) error {
	socialID := c.Param("socialId")
	if socialID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing socialId parameter")
	}

	var req struct {
		IsActive bool `json:"isActive"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	var user models.AppUser
	if err := h.db.Where("social_id = ? AND is_deleted = false", socialID).First(&user).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}

	if err := h.db.Model(&user).Update("is_active", req.IsActive).Error; err != nil {
		h.log.Error("Failed to update user %s: %v", err, socialID)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to update user")
	}

	h.authz.InvalidateCachedRole(c.Request().Context(), socialID)
	return c.JSON(http.StatusOK, user)
}
