package registry

import (
	"github.com/labstack/echo/v4"

	"assetflow/internal/api/controllers"
	"assetflow/internal/api/middleware"
	"assetflow/internal/models"
	"assetflow/internal/services"

	"gorm.io/gorm"
)

// registerDelegable mounts admin-aware CRUD for one entity kind of the asset
// hierarchy. Every route is gated on the caller's grants in the entity's
// module.
func registerDelegable[T any](g *echo.Group, db *gorm.DB, authz *services.AuthzService,
	admins *services.AdminMappingService, path, moduleName string, entityType models.EntityType, model T) {

	service := services.NewBaseService(db, model)
	controller := controllers.NewDelegableController(service, admins, entityType)

	group := g.Group(path)
	group.Use(middleware.RequireModulePermission(authz, moduleName))
	controller.RegisterRoutes(group, "")
}

// registerPlain mounts plain CRUD for entity kinds without a delegated admin
// set.
func registerPlain[T any](g *echo.Group, db *gorm.DB, authz *services.AuthzService,
	path, moduleName string, model T) {

	service := services.NewBaseService(db, model)
	controller := controllers.NewBaseController(service)

	group := g.Group(path)
	group.Use(middleware.RequireModulePermission(authz, moduleName))
	controller.RegisterRoutes(group, "")
}

// RegisterCRUDRoutes registers CRUD routes for the asset catalog - godoc
// @Summary Register CRUD routes for the asset catalog
// @Description Categories, sub-categories, groups, items, policies, SLAs and fault reports
// @Accept json
// @Produce json
func RegisterCRUDRoutes(g *echo.Group, db *gorm.DB, authz *services.AuthzService, admins *services.AdminMappingService) {
	// Asset hierarchy, each level carries its own delegated admin set
	registerDelegable(g, db, authz, admins, "/categories", "Category", models.EntityTypeCategory, models.Category{})
	registerDelegable(g, db, authz, admins, "/sub-categories", "SubCategory", models.EntityTypeSubCategory, models.SubCategory{})
	registerDelegable(g, db, authz, admins, "/groups", "Group", models.EntityTypeGroup, models.Group{})
	registerDelegable(g, db, authz, admins, "/items", "Item", models.EntityTypeItem, models.Item{})

	// Governance documents
	registerDelegable(g, db, authz, admins, "/policies", "Policy", models.EntityTypePolicy, models.Policy{})
	registerDelegable(g, db, authz, admins, "/slas", "SLA", models.EntityTypeSLA, models.SLA{})

	// Fault reports, scoped to the reporter unless the module is unrestricted
	registerPlain(g, db, authz, "/reports", "Report", models.FaultReport{})
}
