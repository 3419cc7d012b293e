package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-advanced-admin/admin"
	admingorm "github.com/go-advanced-admin/orm-gorm"
	adminecho "github.com/go-advanced-admin/web-echo"
	"golang.org/x/time/rate"

	authmw "assetflow/internal/api/middleware"
	"assetflow/internal/api/validator"
	"assetflow/internal/apperrors"
	"assetflow/internal/config"
	"assetflow/internal/handlers"
	"assetflow/internal/models"
	"assetflow/internal/routes"
	"assetflow/internal/services"

	console "assetflow/internal/utils/logger"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"gorm.io/gorm"
)

type Server struct {
	echo     *echo.Echo
	config   *config.Config
	db       *gorm.DB
	services *services.Set
	sync     handlers.SyncEnqueuer
	auth     *authmw.AuthMiddleware
}

var log = console.New("API-Server")

// NewServer @title AssetFlow API
// @version 1.0
// @description Asset catalog, authorization and custody-transfer workflow API.
// @host localhost:8080
// @BasePath /api/v1
func NewServer(cfg *config.Config, db *gorm.DB, svcs *services.Set, sync handlers.SyncEnqueuer) *Server {
	e := echo.New()

	// Create custom validator
	e.Validator = validator.NewValidator()

	// Configure middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPut, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, echo.HeaderContentLength},
	}))
	e.Use(middleware.RequestID())
	e.Use(middleware.Secure())
	e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout: 30 * time.Second,
	}))
	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
	}))
	e.Use(middleware.BodyLimit("10M"))

	// Custom error handler
	e.HTTPErrorHandler = customHTTPErrorHandler

	// Create server instance
	s := &Server{
		echo:     e,
		config:   cfg,
		db:       db,
		services: svcs,
		sync:     sync,
		auth:     authmw.NewAuthMiddleware(cfg.JWT.Secret, svcs.Authz),
	}

	// Seed the permission catalog
	if err := models.SeedPermissions(db); err != nil {
		log.Warn("Warning: Failed to seed permissions: %v", err)
	} else {
		log.Success("Successfully seeded permissions")
	}

	if err := models.CreateBootstrapAdminFromEnv(db); err != nil {
		log.Warn("Warning: Failed to create bootstrap admin: %v", err)
	} else {
		log.Success("Successfully ensured bootstrap admin")
	}

	e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(20))))

	// Create a new GORM integrator
	gormIntegrator := admingorm.NewIntegrator(db)
	// Panel routes sit behind the JWT middleware like every protected surface
	echoIntegrator := adminecho.NewIntegrator(e.Group("", s.auth.Middleware()))

	// Admin panel access mirrors the super-admin rule
	permissionChecker := adminPermissionChecker(svcs.Authz)

	// Create a new admin panel
	adminPanel, err := admin.NewPanel(
		gormIntegrator, echoIntegrator, permissionChecker, nil,
	)
	if err != nil {
		err := log.Error("Failed to create admin panel", err)
		if err != nil {
			return nil
		}
	}

	// Register the admin panel
	_, err = adminPanel.RegisterApp(
		"AssetFlow",
		"AssetFlow Admin Panel",
		nil,
	)
	if err != nil {
		err := log.Error("Failed to create admin panel", err)
		if err != nil {
			return nil
		}
	}

	routes.SetupAuthRoutes(s.echo, s.db, s.config, svcs.Authz)

	// Register routes
	s.registerRoutes()
	return s
}

// adminPermissionChecker admits only the super-admin role into the panel.
// Every other caller, authenticated or not, is denied.
func adminPermissionChecker(authz *services.AuthzService) func(admin.PermissionRequest, interface{}) (bool, error) {
	return func(_ admin.PermissionRequest, ctx interface{}) (bool, error) {
		c, ok := ctx.(echo.Context)
		if !ok {
			return false, nil
		}
		socialID := authmw.GetSocialID(c)
		if socialID == "" {
			return false, nil
		}
		role, _, err := authz.ResolveEffectiveRole(c.Request().Context(), socialID)
		if err != nil {
			return false, nil
		}
		return role.IsSuperAdmin(), nil
	}
}

func (s *Server) Start() error {
	return s.echo.Start(fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Health check endpoint
func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"version": "1.0.0",
		"time":    time.Now().Format(time.RFC3339),
	})
}

// Custom HTTP error handler
func customHTTPErrorHandler(err error, c echo.Context) {
	var (
		code    = http.StatusInternalServerError
		message interface{}
	)

	switch e := err.(type) {
	case *echo.HTTPError:
		code = e.Code
		message = e.Message
	case validator.ValidationErrors:
		code = http.StatusBadRequest
		message = formatValidationErrors(e)
	default:
		if appErr, ok := apperrors.As(err); ok {
			code = appErr.HTTPStatus()
			message = appErr.Message
		} else {
			message = http.StatusText(code)
		}
	}

	if !c.Response().Committed {
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, map[string]interface{}{
				"error": message,
				"code":  code,
				"time":  time.Now().Format(time.RFC3339),
			})
		}
		if err != nil {
			c.Echo().Logger.Error(err)
		}
	}
}

// formatValidationErrors formats validation errors into a map
func formatValidationErrors(errors validator.ValidationErrors) map[string]string {
	errMap := make(map[string]string)
	for _, err := range errors {
		field := err.Field()
		tag := err.Tag()
		param := err.Param()

		switch tag {
		case "required":
			errMap[field] = fmt.Sprintf("%s is required", field)
		case "email":
			errMap[field] = fmt.Sprintf("%s must be a valid email", field)
		case "min":
			errMap[field] = fmt.Sprintf("%s must be at least %s", field, param)
		case "max":
			errMap[field] = fmt.Sprintf("%s must be at most %s", field, param)
		case "url":
			errMap[field] = fmt.Sprintf("%s must be a valid URL", field)
		case "uuid":
			errMap[field] = fmt.Sprintf("%s must be a valid UUID", field)
		case "oneof":
			errMap[field] = fmt.Sprintf("%s must be one of [%s]", field, param)
		case "gt":
			errMap[field] = fmt.Sprintf("%s must be greater than %s", field, param)
		case "required_if":
			errMap[field] = fmt.Sprintf("%s is required when %s", field, param)
		case "json":
			errMap[field] = fmt.Sprintf("%s must be valid JSON", field)
		case "entity_type":
			errMap[field] = fmt.Sprintf("%s must be a known entity type", field)
		case "transfer_status":
			errMap[field] = fmt.Sprintf("%s must be one of: pending, in-review, approved, rejected, completed", field)
		case "approval_action":
			errMap[field] = fmt.Sprintf("%s must be either 'approved' or 'rejected'", field)
		case "handover_status":
			errMap[field] = fmt.Sprintf("%s must be a known handover status", field)
		default:
			errMap[field] = fmt.Sprintf("%s failed validation: %s", field, tag)
		}
	}
	return errMap
}
