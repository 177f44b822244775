package main

import (
	"github.com/patchpilot/patchpilot/internal/config"
	"github.com/patchpilot/patchpilot/internal/handlers"
	"github.com/patchpilot/patchpilot/internal/models"
	"github.com/patchpilot/patchpilot/internal/services"
	"github.com/patchpilot/patchpilot/internal/utils"
	"github.com/patchpilot/patchpilot/pkg/logger"
)

// appServices holds all initialized services and handlers needed by the application.
type appServices struct {
	aiCfg          *config.AIConfig
	taskQueue      services.TaskQueue
	worker         *services.Worker
	eviction       *services.EvictionScheduler
	authHandler    *handlers.AuthHandler
	webhookHandler *handlers.WebhookHandler
}

// bootstrap initializes all application dependencies: database, queue, schedulers.
func bootstrap(cfg *config.Config) *appServices {
	utils.SetJWTSecret(cfg.JWT.Secret)

	if err := models.InitDB(&cfg.Database); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	if err := models.AutoMigrate(); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}

	if err := models.SeedDefaultData(); err != nil {
		logger.Warn().Err(err).Msg("Failed to seed default data")
	}

	// The webhook handler owns the webhook service and, through it, the
	// review orchestrator that processes queued tasks.
	webhookHandler := handlers.NewWebhookHandler(models.GetDB(), &cfg.AI)

	// Task queue uses Redis if enabled, otherwise processes inline
	taskQueue := services.InitTaskQueue(cfg)
	if syncQueue, ok := taskQueue.(*services.SyncQueue); ok {
		syncQueue.SetProcessor(webhookHandler.Service().ProcessReviewTask)
	}

	var worker *services.Worker
	if cfg.Redis.Enabled {
		worker = services.InitWorker(&cfg.Redis)
		if worker != nil {
			worker.SetProcessor(webhookHandler.Service().ProcessReviewTask)
			worker.Start()
		}
	}

	// Scheduled cache eviction
	eviction := services.NewEvictionScheduler(services.NewReviewCacheService(models.GetDB()), &cfg.Cache)
	if err := eviction.Start(); err != nil {
		logger.Warn().Err(err).Msg("Failed to start cache eviction scheduler")
	}

	// Create default admin user
	authHandler := handlers.NewAuthHandler(models.GetDB(), cfg)
	if err := authHandler.CreateAdminIfNotExists(); err != nil {
		logger.Warn().Err(err).Msg("Failed to create admin user")
	}

	return &appServices{
		aiCfg:          &cfg.AI,
		taskQueue:      taskQueue,
		worker:         worker,
		eviction:       eviction,
		authHandler:    authHandler,
		webhookHandler: webhookHandler,
	}
}

// shutdown gracefully stops all services.
func (s *appServices) shutdown() {
	s.eviction.Stop()
	if s.worker != nil {
		s.worker.Stop()
	}
	if s.taskQueue != nil {
		s.taskQueue.Close()
	}
}
