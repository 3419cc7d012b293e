package api

import (
	"assetflow/internal/api/controllers"
	"assetflow/internal/api/middleware"
	"assetflow/internal/api/registry"
	"assetflow/internal/handlers"
	"assetflow/internal/routes"
	"net/http"

	_ "assetflow/docs/swagger"

	"github.com/labstack/echo/v4"
	echoSwagger "github.com/swaggo/echo-swagger"
)

func (s *Server) registerRoutes() {
	s.echo.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, "AssetFlow API")
	})
	// Health check
	// @Summary Health check
	// @Description Check if the server is running
	// @Accept json
	// @Produce json
	// @Success 200 {object} map[string]string "OK"
	// @Router /health [get]
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/swagger/*", echoSwagger.WrapHandler)

	handoverController := controllers.NewHandoverController(s.services.Handovers)

	// Token-based acknowledgment from the notification deep link; the signed
	// token stands in for a session.
	s.echo.POST("/api/v1/handovers/acknowledge", handoverController.AcknowledgeByToken)

	// Identity provider push notifications, authenticated by HMAC signature
	if s.sync != nil {
		webhookHandler := handlers.NewWebhookHandler(s.config, s.sync)
		s.echo.POST("/webhooks/identity", webhookHandler.HandleIdentityWebhook)
	}

	// API v1 group
	api := s.echo.Group("/api/v1")
	api.Use(s.auth.Middleware())

	// Asset catalog CRUD
	registry.RegisterCRUDRoutes(api, s.db, s.services.Authz, s.services.Admins)

	// Custody-transfer workflow
	transferGroup := api.Group("")
	transferGroup.Use(middleware.RequireModulePermission(s.services.Authz, "Transfer"))
	controllers.NewTransferController(s.services.Approvals).RegisterRoutes(transferGroup)

	handoverGroup := api.Group("")
	handoverGroup.Use(middleware.RequireModulePermission(s.services.Authz, "Handover"))
	handoverController.RegisterRoutes(handoverGroup)

	// Role catalog and assignments
	roleGroup := api.Group("")
	roleGroup.Use(middleware.RequireModulePermission(s.services.Authz, "Role"))
	controllers.NewRoleController(s.services.Authz).RegisterRoutes(roleGroup)

	routes.SetupUploadRoutes(api, s.config)
}
