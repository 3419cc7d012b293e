package middleware

import (
	"net/http"

	"assetflow/internal/services"

	"github.com/labstack/echo/v4"
)

// ActionForMethod maps an HTTP method onto the catalog's CRUD action names
func ActionForMethod(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead:
		return "read"
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return ""
	}
}

// RequireModulePermission checks the caller's effective role against one
// module of the permission model. The action is derived from the HTTP method.
// It also records whether the caller is unrestricted in the module, so list
// handlers can widen their read filters.
func RequireModulePermission(authz *services.AuthzService, moduleName string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role := GetRole(c)
			if role == nil {
				return echo.NewHTTPError(http.StatusForbidden, "no active role")
			}

			action := ActionForMethod(c.Request().Method)
			if action == "" {
				return echo.NewHTTPError(http.StatusForbidden, "Invalid request method")
			}

			if !authz.HasPermission(role, moduleName, action) {
				return echo.NewHTTPError(http.StatusForbidden, "insufficient permission")
			}

			c.Set("moduleUnrestricted", authz.IsModuleUnrestricted(role, moduleName))

			return next(c)
		}
	}
}
