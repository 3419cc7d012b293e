package controllers

import (
	"net/http"
	"reflect"

	"assetflow/internal/models"
	"assetflow/internal/services"

	"github.com/labstack/echo/v4"
)

// DelegableController serves the entity kinds that carry their own admin set.
// Create and Update accept an "admins" list on the entity body and reconcile
// the delegated role grants against it.
type DelegableController[T any] struct {
	*BaseController[T]
	admins     *services.AdminMappingService
	entityType models.EntityType
}

func NewDelegableController[T any](service services.BaseService[T], admins *services.AdminMappingService, entityType models.EntityType) *DelegableController[T] {
	return &DelegableController[T]{
		BaseController: NewBaseController(service),
		admins:         admins,
		entityType:     entityType,
	}
}

// entityID reads the uuid primary key off the embedded base model.
func entityID[T any](entity *T) string {
	field := reflect.ValueOf(entity).Elem().FieldByName("ID")
	if !field.IsValid() {
		return ""
	}
	return field.String()
}

// adminSet reads the transient admins list off the entity body. A nil slice
// means the caller did not touch the admin set.
func adminSet[T any](entity *T) []string {
	field := reflect.ValueOf(entity).Elem().FieldByName("Admins")
	if !field.IsValid() || field.IsNil() {
		return nil
	}
	return field.Interface().([]string)
}

func setAdminSet[T any](entity *T, admins []string) {
	field := reflect.ValueOf(entity).Elem().FieldByName("Admins")
	if field.IsValid() {
		field.Set(reflect.ValueOf(admins))
	}
}

// Create persists the entity, then reconciles its admin set when one was
// supplied.
func (c *DelegableController[T]) Create(ctx echo.Context) error {
	var entity T
	if err := ctx.Bind(&entity); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body "+err.Error())
	}
	if err := ctx.Validate(&entity); err != nil {
		return err
	}

	if err := c.service.Create(ctx.Request().Context(), &entity, parseIncludes(ctx)...); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if admins := adminSet(&entity); admins != nil {
		if err := c.admins.SyncAdmins(ctx.Request().Context(), entityID(&entity),
			c.entityType, admins, c.entityType.DelegatedRoleName()); err != nil {
			return httpError(err)
		}
	}

	return ctx.JSON(http.StatusCreated, entity)
}

// Update persists the entity, then reconciles its admin set when one was
// supplied. Omitting admins leaves the current set alone.
func (c *DelegableController[T]) Update(ctx echo.Context) error {
	id := ctx.Param("id")
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing id parameter")
	}

	var entity T
	if err := ctx.Bind(&entity); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body "+err.Error())
	}
	if err := ctx.Validate(&entity); err != nil {
		return err
	}

	if err := c.service.Update(ctx.Request().Context(), id, &entity, parseIncludes(ctx)...); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if admins := adminSet(&entity); admins != nil {
		if err := c.admins.SyncAdmins(ctx.Request().Context(), id,
			c.entityType, admins, c.entityType.DelegatedRoleName()); err != nil {
			return httpError(err)
		}
	}

	return ctx.JSON(http.StatusOK, entity)
}

// Get returns the entity with its current admin set filled in.
func (c *DelegableController[T]) Get(ctx echo.Context) error {
	id := ctx.Param("id")
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing id parameter")
	}

	entity, err := c.service.Get(ctx.Request().Context(), id, parseIncludes(ctx)...)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "entity not found")
	}

	mappings, err := c.admins.AdminsFor(ctx.Request().Context(), c.entityType, id)
	if err == nil {
		admins := make([]string, 0, len(mappings))
		for _, m := range mappings {
			admins = append(admins, m.UserSocialID)
		}
		setAdminSet(entity, admins)
	}

	return ctx.JSON(http.StatusOK, entity)
}

// RegisterRoutes registers CRUD routes with the admin-aware handlers.
func (c *DelegableController[T]) RegisterRoutes(g *echo.Group, path string, methods ...string) {
	if len(methods) == 0 {
		methods = []string{"POST", "GET", "PUT", "DELETE"}
	}

	for _, method := range methods {
		switch method {
		case "POST":
			g.POST(path, c.Create)
		case "GET":
			g.GET(path+"/:id", c.Get)
			g.GET(path, c.List)
		case "PUT":
			g.PUT(path+"/:id", c.Update)
		case "DELETE":
			g.DELETE(path+"/:id", c.Delete)
		}
	}
}
