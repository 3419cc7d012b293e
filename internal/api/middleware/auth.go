package middleware

import (
	"assetflow/internal/apperrors"
	"assetflow/internal/db"
	"assetflow/internal/models"
	"assetflow/internal/services"
	"assetflow/internal/utils/logger"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
)

var log = logger.New("auth_middleware")

type AuthMiddleware struct {
	jwtSecret string
	authz     *services.AuthzService
}

type Claims struct {
	SocialID string `json:"social_id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	RoleID   string `json:"role_id"`
	RoleName string `json:"role_name"`
	jwt.RegisteredClaims
}

func NewAuthMiddleware(jwtSecret string, authz *services.AuthzService) *AuthMiddleware {
	return &AuthMiddleware{
		jwtSecret: jwtSecret,
		authz:     authz,
	}
}

func (m *AuthMiddleware) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing authorization header")
			}

			tokenParts := strings.Split(authHeader, " ")
			if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization header format")
			}

			return m.validateJWT(c, tokenParts[1], next)
		}
	}
}

func (m *AuthMiddleware) validateJWT(c echo.Context, tokenString string, next echo.HandlerFunc) error {

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(m.jwtSecret), nil
	})

	if err != nil || !token.Valid {
		log.Error("Error parsing JWT token: %v", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
	}

	// Validate expiration
	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
		return echo.NewHTTPError(http.StatusUnauthorized, "Token has expired")
	}

	// Verify the identity still exists and is active
	user := &models.AppUser{}
	if err := db.DB.Where("social_id = ? AND is_active = ? AND is_deleted = false",
		claims.SocialID, true).First(user).Error; err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not found or inactive")
	}

	// The token carries the role effective at issue time. Recompute the
	// current role and force re-authentication on mismatch, so a role change
	// takes effect no later than the user's next request.
	role, err := m.authz.VerifyRoleClaim(c.Request().Context(), claims.SocialID, claims.RoleID)
	if err != nil {
		if appErr, ok := apperrors.As(err); ok {
			return echo.NewHTTPError(appErr.HTTPStatus(), appErr.Message)
		}
		return echo.NewHTTPError(http.StatusUnauthorized, "Failed to resolve role")
	}

	// Set context values
	c.Set("socialID", claims.SocialID)
	c.Set("email", claims.Email)
	c.Set("role", role)
	c.Set("roleName", role.Name)

	return next(c)
}

// GetSocialID Helper functions to get values from context
func GetSocialID(c echo.Context) string {
	if id, ok := c.Get("socialID").(string); ok {
		return id
	}
	return ""
}

func GetRole(c echo.Context) *models.Role {
	if role, ok := c.Get("role").(*models.Role); ok {
		return role
	}
	return nil
}

func GetRoleName(c echo.Context) string {
	if name, ok := c.Get("roleName").(string); ok {
		return name
	}
	return ""
}

// IsUnrestricted reports whether the permission middleware marked the caller
// as unrestricted for the route's module.
func IsUnrestricted(c echo.Context) bool {
	if unrestricted, ok := c.Get("moduleUnrestricted").(bool); ok {
		return unrestricted
	}
	return false
}
