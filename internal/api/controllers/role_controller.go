package controllers

import (
	"net/http"

	"assetflow/internal/api/middleware"
	"assetflow/internal/api/validator"
	"assetflow/internal/db"
	"assetflow/internal/models"
	"assetflow/internal/services"
	"assetflow/internal/utils/logger"

	"github.com/labstack/echo/v4"
)

var roleLog = logger.New("role_controller")

// RoleController serves the role catalog and manual role assignments. Scoped
// assignments are normally managed through entity admin sync, this is the
// escape hatch for direct grants.
type RoleController struct {
	authz *services.AuthzService
}

func NewRoleController(authz *services.AuthzService) *RoleController {
	return &RoleController{authz: authz}
}

// List returns the role catalog with each role's module grants.
func (c *RoleController) List(ctx echo.Context) error {
	var roles []models.Role
	if err := db.DB.Preload("Modules.Module").
		Where("is_deleted = false").Order("name ASC").Find(&roles).Error; err != nil {
		roleLog.Error("Failed to list roles: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list roles")
	}
	return ctx.JSON(http.StatusOK, roles)
}

// Get returns one role with its module grants.
func (c *RoleController) Get(ctx echo.Context) error {
	id := ctx.Param("id")
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing id parameter")
	}

	var role models.Role
	if err := db.DB.Preload("Modules.Module").
		Where("id = ? AND is_deleted = false", id).First(&role).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "role not found")
	}
	return ctx.JSON(http.StatusOK, role)
}

// Assignments lists the active role assignments of one identity.
func (c *RoleController) Assignments(ctx echo.Context) error {
	socialID := ctx.QueryParam("socialId")
	if socialID == "" {
		socialID = middleware.GetSocialID(ctx)
	}

	var assignments []models.UserRoleAssignment
	if err := db.DB.Preload("Role").
		Where("assigned_to_social_id = ? AND is_active = ? AND is_deleted = false", socialID, true).
		Order("created_at ASC").Find(&assignments).Error; err != nil {
		roleLog.Error("Failed to list role assignments: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list role assignments")
	}
	return ctx.JSON(http.StatusOK, assignments)
}

// Assign grants a role to an identity. The cached role resolution of the
// target is invalidated so the grant is visible on their next request.
func (c *RoleController) Assign(ctx echo.Context) error {
	var body validator.RoleAssignmentRequest
	if err := ctx.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body "+err.Error())
	}
	if err := ctx.Validate(&body); err != nil {
		return err
	}

	var role models.Role
	if err := db.DB.Where("id = ? AND is_active = ? AND is_deleted = false", body.RoleID, true).
		First(&role).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "role not found")
	}

	assignment := models.UserRoleAssignment{
		AssignedToSocialID: body.AssignedToSocialID,
		RoleID:             body.RoleID,
		IsActive:           true,
	}
	if body.EntityID != "" {
		assignment.EntityID = &body.EntityID
	}
	if err := db.DB.Create(&assignment).Error; err != nil {
		roleLog.Error("Failed to create role assignment: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to create role assignment")
	}

	c.authz.InvalidateCachedRole(ctx.Request().Context(), body.AssignedToSocialID)

	return ctx.JSON(http.StatusCreated, assignment)
}

// Revoke deactivates an assignment. The row is kept for audit.
func (c *RoleController) Revoke(ctx echo.Context) error {
	id := ctx.Param("id")
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing id parameter")
	}

	var assignment models.UserRoleAssignment
	if err := db.DB.Where("id = ? AND is_deleted = false", id).First(&assignment).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "role assignment not found")
	}

	if err := db.DB.Model(&assignment).Update("is_active", false).Error; err != nil {
		roleLog.Error("Failed to revoke role assignment: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to revoke role assignment")
	}

	c.authz.InvalidateCachedRole(ctx.Request().Context(), assignment.AssignedToSocialID)

	return ctx.NoContent(http.StatusNoContent)
}

// RegisterRoutes mounts the role catalog and assignment endpoints.
func (c *RoleController) RegisterRoutes(g *echo.Group) {
	g.GET("/roles", c.List)
	g.GET("/roles/:id", c.Get)
	g.GET("/role-assignments", c.Assignments)
	g.POST("/role-assignments", c.Assign)
	g.DELETE("/role-assignments/:id", c.Revoke)
}
