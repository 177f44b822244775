package main

import (
	"github.com/gin-gonic/gin"
	"github.com/patchpilot/patchpilot/internal/handlers"
	"github.com/patchpilot/patchpilot/internal/middleware"
	"github.com/patchpilot/patchpilot/internal/models"
	"github.com/patchpilot/patchpilot/pkg/logger"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, svc *appServices) {
	// Middleware
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS())

	// Rate limiter for webhook routes
	webhookLimiter := middleware.NewRateLimiter(10, 20)

	// Health check
	healthHandler := handlers.NewHealthHandler()
	r.GET("/health", healthHandler.CheckHealth)

	// API routes
	api := r.Group("/api")
	{
		// Webhook routes (public with signature verification)
		hooks := api.Group("/webhook", webhookLimiter.Middleware())
		{
			hooks.POST("/github", svc.webhookHandler.HandleGitHubWebhookGeneric)
			hooks.POST("/github/:repository_id", svc.webhookHandler.HandleGitHubWebhook)
			hooks.GET("/status/:run_id", svc.webhookHandler.GetReviewStatus)
		}

		// Auth routes (public)
		auth := api.Group("/auth")
		{
			auth.POST("/login", svc.authHandler.Login)
			auth.POST("/refresh", svc.authHandler.Refresh)
		}

		// Protected routes
		protected := api.Group("")
		protected.Use(middleware.AuthRequired())
		{
			// Auth
			protected.GET("/auth/me", svc.authHandler.GetCurrentUser)
			protected.POST("/auth/logout", svc.authHandler.Logout)
			protected.POST("/auth/change-password", svc.authHandler.ChangePassword)

			// Dashboard
			dashboardHandler := handlers.NewDashboardHandler(models.GetDB())
			protected.GET("/dashboard/stats", dashboardHandler.GetStats)

			// Repositories (read for all users)
			repoHandler := handlers.NewRepositoryHandler(models.GetDB())
			protected.GET("/repositories", repoHandler.List)
			protected.GET("/repositories/:id", repoHandler.Get)

			// Repository cache info
			cacheHandler := handlers.NewCacheHandler(models.GetDB())
			protected.GET("/repositories/:id/cache", cacheHandler.GetRepositoryCacheInfo)

			// Review runs
			runHandler := handlers.NewReviewRunHandler(models.GetDB())
			protected.GET("/reviews", runHandler.List)
			protected.GET("/reviews/:id", runHandler.Get)

			// Prompts (read for all users)
			promptHandler := handlers.NewPromptHandler(models.GetDB())
			protected.GET("/prompts", promptHandler.List)
			protected.GET("/prompts/all", promptHandler.GetAll)
			protected.GET("/prompts/:id", promptHandler.Get)

			// LLM Configs (read for all users)
			llmHandler := handlers.NewLLMConfigHandler(models.GetDB())
			protected.GET("/llm-configs", llmHandler.List)
			protected.GET("/llm-configs/active", llmHandler.GetActive)
			protected.GET("/llm-configs/:id", llmHandler.Get)
		}

		// Admin only routes
		admin := api.Group("")
		admin.Use(middleware.AuthRequired(), middleware.AdminRequired())
		{
			repoHandler := handlers.NewRepositoryHandler(models.GetDB())
			admin.POST("/repositories", repoHandler.Create)
			admin.PUT("/repositories/:id", repoHandler.Update)
			admin.DELETE("/repositories/:id", repoHandler.Delete)

			cacheHandler := handlers.NewCacheHandler(models.GetDB())
			admin.DELETE("/repositories/:id/cache", cacheHandler.EvictRepositoryCache)
			admin.POST("/cache/evict", cacheHandler.Evict)

			promptHandler := handlers.NewPromptHandler(models.GetDB())
			admin.POST("/prompts", promptHandler.Create)
			admin.PUT("/prompts/:id", promptHandler.Update)
			admin.DELETE("/prompts/:id", promptHandler.Delete)
			admin.POST("/prompts/:id/default", promptHandler.SetDefault)

			admin.POST("/reviews/:id/retry", svc.webhookHandler.RetryReview)

			llmHandler := handlers.NewLLMConfigHandler(models.GetDB())
			admin.POST("/llm-configs", llmHandler.Create)
			admin.PUT("/llm-configs/:id", llmHandler.Update)
			admin.DELETE("/llm-configs/:id", llmHandler.Delete)
		}
	}
}
