package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/patchpilot/patchpilot/internal/middleware"
	"github.com/patchpilot/patchpilot/internal/services"
	"github.com/patchpilot/patchpilot/pkg/response"
	"gorm.io/gorm"
)

type RepositoryHandler struct {
	repoService *services.RepositoryService
}

func NewRepositoryHandler(db *gorm.DB) *RepositoryHandler {
	return &RepositoryHandler{
		repoService: services.NewRepositoryService(db),
	}
}

// List returns paginated repositories
// GET /api/repositories
func (h *RepositoryHandler) List(c *gin.Context) {
	var req services.RepositoryListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.repoService.List(&req)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, result)
}

// Get returns one repository
// GET /api/repositories/:id
func (h *RepositoryHandler) Get(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid repository id")
		return
	}

	repo, err := h.repoService.GetByID(uint(id))
	if err != nil {
		response.NotFound(c, "repository not found")
		return
	}

	response.Success(c, repo)
}

// Create registers a repository for review
// POST /api/repositories
func (h *RepositoryHandler) Create(c *gin.Context) {
	var req services.CreateRepositoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	repo, err := h.repoService.Create(&req, middleware.GetUserID(c))
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	response.Created(c, repo)
}

// Update updates a repository
// PUT /api/repositories/:id
func (h *RepositoryHandler) Update(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid repository id")
		return
	}

	var req services.UpdateRepositoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	repo, err := h.repoService.Update(uint(id), &req)
	if err != nil {
		response.NotFound(c, err.Error())
		return
	}

	response.Success(c, repo)
}

// Delete removes a repository and its cached reviews
// DELETE /api/repositories/:id
func (h *RepositoryHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid repository id")
		return
	}

	if err := h.repoService.Delete(uint(id)); err != nil {
		response.NotFound(c, err.Error())
		return
	}

	response.Success(c, gin.H{"message": "repository deleted"})
}
