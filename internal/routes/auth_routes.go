package routes

import (
	"assetflow/internal/api/middleware"
	"assetflow/internal/config"
	"assetflow/internal/handlers"
	"assetflow/internal/services"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

func SetupAuthRoutes(e *echo.Echo, db *gorm.DB, cfg *config.Config, authz *services.AuthzService) {
	authHandler := handlers.NewAuthHandler(db, authz, cfg)

	base := e.Group("/api/v1")

	// Public auth routes group
	auth := base.Group("/auth")

	// Public routes (no auth required)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.RefreshToken)

	// Protected user routes (require authentication)
	users := base.Group("/users")
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret, authz)
	users.Use(authMiddleware.Middleware())

	users.GET("/me", authHandler.GetMe) // accessible to any authenticated user

	// User management, gated on the Role module
	management := users.Group("")
	management.Use(middleware.RequireModulePermission(authz, "Role"))
	management.GET("", authHandler.ListUsers)
	management.GET("/:socialId", authHandler.GetUser)
	management.PUT("/:socialId/active", authHandler.SetUserActive)
}
