package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patchpilot/patchpilot/internal/config"
	"github.com/patchpilot/patchpilot/internal/services"
	"github.com/patchpilot/patchpilot/internal/services/webhook"
	"gorm.io/gorm"
)

type WebhookHandler struct {
	webhookService *webhook.Service
	repoService    *services.RepositoryService
}

func NewWebhookHandler(db *gorm.DB, aiCfg *config.AIConfig) *WebhookHandler {
	return &WebhookHandler{
		webhookService: webhook.NewService(db, aiCfg),
		repoService:    services.NewRepositoryService(db),
	}
}

// Service exposes the underlying webhook service for task processor wiring
func (h *WebhookHandler) Service() *webhook.Service {
	return h.webhookService
}

// HandleGitHubWebhook receives GitHub webhook deliveries
// POST /api/webhook/github/:repository_id
func (h *WebhookHandler) HandleGitHubWebhook(c *gin.Context) {
	repositoryID, err := strconv.ParseUint(c.Param("repository_id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid repository id"})
		return
	}

	repo, err := h.repoService.GetByID(uint(repositoryID))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "repository not found"})
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}

	signature := c.GetHeader("X-Hub-Signature-256")
	if repo.WebhookSecret != "" && !webhook.VerifyGitHubSignature(repo.WebhookSecret, body, signature) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook signature"})
		return
	}

	eventType := c.GetHeader("X-GitHub-Event")

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		_, _ = h.webhookService.HandleGitHubWebhook(ctx, uint(repositoryID), eventType, body)
	}()

	c.JSON(http.StatusOK, gin.H{"message": "webhook received"})
}

// HandleGitHubWebhookGeneric receives GitHub webhook deliveries without a
// repository id in the path, resolving the repository from the payload
// POST /api/webhook/github
func (h *WebhookHandler) HandleGitHubWebhookGeneric(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}

	var payload struct {
		Repository struct {
			FullName string `json:"full_name"`
		} `json:"repository"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to parse body"})
		return
	}
	if payload.Repository.FullName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "repository full_name not found in webhook payload"})
		return
	}

	repo, err := h.repoService.GetByFullName(payload.Repository.FullName)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "repository not registered: " + payload.Repository.FullName})
		return
	}

	signature := c.GetHeader("X-Hub-Signature-256")
	if repo.WebhookSecret != "" && !webhook.VerifyGitHubSignature(repo.WebhookSecret, body, signature) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook signature"})
		return
	}

	eventType := c.GetHeader("X-GitHub-Event")

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		_, _ = h.webhookService.HandleGitHubWebhook(ctx, repo.ID, eventType, body)
	}()

	c.JSON(http.StatusOK, gin.H{"message": "webhook received"})
}

// RetryReview re-enqueues a failed review run
// POST /api/reviews/:id/retry
func (h *WebhookHandler) RetryReview(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
		return
	}

	runID, err := h.webhookService.RetryRun(uint(id))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "retry initiated", "run_id": runID})
}

// GetReviewStatus reports the state of a review run
// GET /api/webhook/status/:run_id
func (h *WebhookHandler) GetReviewStatus(c *gin.Context) {
	runID := c.Param("run_id")
	if runID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "run id required"})
		return
	}

	status, err := h.webhookService.GetReviewStatus(runID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, status)
}
