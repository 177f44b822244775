package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patchpilot/patchpilot/internal/services"
	"github.com/patchpilot/patchpilot/pkg/response"
	"gorm.io/gorm"
)

type CacheHandler struct {
	cacheService *services.ReviewCacheService
}

func NewCacheHandler(db *gorm.DB) *CacheHandler {
	return &CacheHandler{
		cacheService: services.NewReviewCacheService(db),
	}
}

// GetRepositoryCacheInfo returns the cache entry count for a repository
// GET /api/repositories/:id/cache
func (h *CacheHandler) GetRepositoryCacheInfo(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid repository id")
		return
	}

	count, err := h.cacheService.CountForRepository(uint(id))
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"repository_id": id,
		"entries":       count,
	})
}

// EvictRepositoryCache drops every cache entry for a repository
// DELETE /api/repositories/:id/cache
func (h *CacheHandler) EvictRepositoryCache(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid repository id")
		return
	}

	removed, err := h.cacheService.EvictRepository(uint(id))
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{"removed": removed})
}

type evictRequest struct {
	OlderThanDays int `json:"older_than_days" binding:"required,min=1"`
}

// Evict drops cache entries older than the requested age, all repositories
// POST /api/cache/evict
func (h *CacheHandler) Evict(c *gin.Context) {
	var req evictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	age := time.Duration(req.OlderThanDays) * 24 * time.Hour
	removed, err := h.cacheService.EvictOlderThan(0, age)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{"removed": removed})
}
