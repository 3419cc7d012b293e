package main

import (
	"assetflow/docs/swagger"
	"assetflow/internal/events"
	"assetflow/internal/handlers"
	"assetflow/internal/utils/crypto"
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"assetflow/internal/api"
	"assetflow/internal/config"
	"assetflow/internal/db"
	"assetflow/internal/models"
	"assetflow/internal/services"
	"assetflow/internal/tasks"
	"assetflow/internal/utils/logger"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

// 🚀 Main function
// @Summary Main function
// @Description Main function
// @title AssetFlow API
// @version 1.0
// @description API documentation for the AssetFlow application
// @host api.assetflow.dev
// @BasePath /
// @schemes https

// @securityDefinitions.basic BasicAuth
// @in header
// @name Authorization

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-KEY

func main() {

	logger := logger.New("assetflow")

	// check if .env file exists
	if _, err := os.Stat(".env"); os.IsNotExist(err) {
		logger.Info("No .env file found, skipping environment variable loading")
	} else {
		logger.Info("Loading environment variables from .env file")
		if err := godotenv.Load(); err != nil {
			log.Fatalf("Failed to load environment variables: %v", err)
		}
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize keys
	if err := crypto.InitializeKeys(
		cfg.Crypto.PrivateKey); err != nil {
		log.Fatalf("Failed to initialize keys: %v", err)
	}

	// Connect to database
	if err := db.Connect(cfg); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		err := db.Close()
		if err != nil {
			log.Fatalf("Failed to close database connection: %v", err)
		}
	}()

	db_instance := db.GetDB()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Wire the workflow services over one shared store
	svcs := services.NewSet(db_instance, redisClient)

	// Initialize task handlers
	taskHandler := tasks.NewTaskHandler(db_instance, nil)
	taskClient := tasks.NewTaskClient(cfg.Redis.Addr, cfg.Redis.Username, cfg.Redis.Password, cfg.Redis.DB)
	defer taskClient.Close()

	// A role change anywhere invalidates that identity's cached resolution
	events.On("role.changed", func(data interface{}) {
		if socialID, ok := data.(string); ok {
			svcs.Authz.InvalidateCachedRole(context.Background(), socialID)
		}
	})

	// The final approval of a transfer opens its handover automatically
	events.On("transfer.fully_approved", func(data interface{}) {
		ev, ok := data.(*services.FullyApprovedEvent)
		if !ok {
			return
		}
		if _, err := svcs.Handovers.Create(context.Background(),
			ev.ItemID, ev.TransferRequestID, ev.FromSocialID, ev.ToSocialID, ""); err != nil {
			logger.Error("Failed to open handover for transfer %s: %v", err, ev.TransferRequestID)
		}
	})

	// Each newly pending approval step notifies its approver
	events.On("approval.pending", func(data interface{}) {
		ev, ok := data.(*services.PendingApprovalEvent)
		if !ok {
			return
		}
		if err := taskClient.EnqueueApprovalNotification(tasks.ApprovalNotificationPayload{
			TransferRequestID: ev.TransferRequestID,
			ApproverSocialID:  ev.ApproverSocialID,
			Level:             ev.Level,
		}); err != nil {
			logger.Error("Failed to enqueue approval notification: %v", err)
		}
	})

	// A new handover asks its receiver to acknowledge
	events.On("handover.created", func(data interface{}) {
		h, ok := data.(*models.Handover)
		if !ok {
			return
		}
		if err := taskClient.EnqueueHandoverNotification(tasks.HandoverNotificationPayload{
			HandoverID:       h.ID,
			ReceiverSocialID: h.ToSocialID,
		}); err != nil {
			logger.Error("Failed to enqueue handover notification: %v", err)
		}
	})

	// Initialize task server
	taskServer := tasks.NewServer(
		cfg.Redis.Addr,
		cfg.Redis.Username,
		cfg.Redis.Password,
		cfg.Redis.DB,
		taskHandler,
		logger,
	)

	// Create a context for task server
	serverCtx, serverCancel := context.WithCancel(context.Background())
	defer serverCancel()

	// Start task server
	go func() {
		if err := taskServer.Start(serverCtx); err != nil {
			logger.Error("Task server error", err)
		}
	}()

	// Initialize task scheduler
	taskScheduler := tasks.NewScheduler(
		cfg.Redis.Addr,
		cfg.Redis.Username,
		cfg.Redis.Password,
		cfg.Redis.DB,
		cfg.Identity.SyncSchedule,
		logger,
	)

	// Start task scheduler
	go func() {
		if err := taskScheduler.Start(); err != nil {
			logger.Error("Task scheduler error", err)
		}
	}()

	// Initialize API server
	apiServer := api.NewServer(cfg, db_instance, svcs, taskClient)
	go func() {

		// Initialize S3 service
		s3Service, err := services.NewS3Service(
			cfg.Storage.S3.BucketName,
			cfg.Storage.S3.Endpoint,
			cfg.Storage.S3.Region,
			cfg.Storage.S3.AccessKey,
			cfg.Storage.S3.SecretKey,
		)
		if err != nil {
			log.Fatalf("Failed to initialize S3 service: %v", err)
		}

		// Register the URL generator
		models.RegisterFileURLGenerator(s3Service)
		handlers.RegisterStorageHandler(s3Service)

		logger.Success("API server started")

		// Swagger documentation
		swagger.SwaggerInfo.Title = "AssetFlow API Documentation"
		swagger.SwaggerInfo.Description = "API documentation for the AssetFlow application"
		swagger.SwaggerInfo.Version = "1.0"
		swagger.SwaggerInfo.Host = "api.assetflow.dev"
		swagger.SwaggerInfo.Schemes = []string{"https"}

		if err := apiServer.Start(); err != nil {
			logger.Error("API server error", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the servers
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Create a deadline for graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Stop task scheduler
	taskScheduler.Stop()

	// Stop task server
	serverCancel()

	// Shutdown API server
	if err := apiServer.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown API server", err)
	}

	logger.Info("Servers shutdown gracefully")
}
