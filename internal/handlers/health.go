package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/patchpilot/patchpilot/internal/models"
	"github.com/patchpilot/patchpilot/internal/services"
)

// HealthHandler provides health check endpoints.
type HealthHandler struct{}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// CheckHealth returns the health status of all subsystems.
func (h *HealthHandler) CheckHealth(c *gin.Context) {
	overall := "healthy"

	// Database check
	dbStatus := "ok"
	sqlDB, err := models.GetDB().DB()
	if err != nil {
		dbStatus = "error: " + err.Error()
		overall = "unhealthy"
	} else if err := sqlDB.Ping(); err != nil {
		dbStatus = "error: " + err.Error()
		overall = "unhealthy"
	}

	// Queue mode
	taskQueue := services.GetTaskQueue()
	queueMode := "sync"
	if taskQueue != nil && taskQueue.IsAsync() {
		queueMode = "async (Redis)"
	}

	// In-flight review count
	var pendingCount int64
	models.GetDB().Model(&models.ReviewRun{}).
		Where("status IN ?", []string{models.RunStatusPending, models.RunStatusAnalyzing}).
		Count(&pendingCount)

	c.JSON(200, gin.H{
		"status":  overall,
		"service": "patchpilot",
		"components": gin.H{
			"database":        dbStatus,
			"queue_mode":      queueMode,
			"pending_reviews": pendingCount,
		},
	})
}
