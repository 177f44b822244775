package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/patchpilot/patchpilot/internal/models"
	"github.com/patchpilot/patchpilot/internal/services"
	"github.com/patchpilot/patchpilot/pkg/response"
	"gorm.io/gorm"
)

type PromptHandler struct {
	promptService *services.PromptService
}

func NewPromptHandler(db *gorm.DB) *PromptHandler {
	return &PromptHandler{
		promptService: services.NewPromptService(db),
	}
}

// List returns paginated prompt templates
// GET /api/prompts
func (h *PromptHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 10
	}

	params := services.PromptListParams{
		Page:     page,
		PageSize: pageSize,
		Name:     c.Query("name"),
	}
	if v := c.Query("is_system"); v != "" {
		isSystem := v == "true"
		params.IsSystem = &isSystem
	}

	result, err := h.promptService.List(params)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, result)
}

// GetAll returns all prompts for selection
// GET /api/prompts/all
func (h *PromptHandler) GetAll(c *gin.Context) {
	prompts, err := h.promptService.GetAllActive()
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, prompts)
}

// Get returns one prompt template
// GET /api/prompts/:id
func (h *PromptHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "prompt")
	if !ok {
		return
	}

	prompt, err := h.promptService.GetByID(id)
	if err != nil {
		response.NotFound(c, "prompt not found")
		return
	}

	response.Success(c, prompt)
}

type createPromptRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Content     string `json:"content" binding:"required"`
}

// Create creates a prompt template
// POST /api/prompts
func (h *PromptHandler) Create(c *gin.Context) {
	var req createPromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	prompt := &models.PromptTemplate{
		Name:        req.Name,
		Description: req.Description,
		Content:     req.Content,
	}
	if err := h.promptService.Create(prompt); err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Created(c, prompt)
}

type updatePromptRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Content     string `json:"content"`
}

// Update updates a prompt template
// PUT /api/prompts/:id
func (h *PromptHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "prompt")
	if !ok {
		return
	}

	var req updatePromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	updates := make(map[string]interface{})
	if req.Name != "" {
		updates["name"] = req.Name
	}
	if req.Description != "" {
		updates["description"] = req.Description
	}
	if req.Content != "" {
		updates["content"] = req.Content
	}

	if err := h.promptService.Update(id, updates); err != nil {
		response.NotFound(c, err.Error())
		return
	}

	prompt, _ := h.promptService.GetByID(id)
	response.Success(c, prompt)
}

// Delete removes a prompt template
// DELETE /api/prompts/:id
func (h *PromptHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "prompt")
	if !ok {
		return
	}

	if err := h.promptService.Delete(id); err != nil {
		response.NotFound(c, "prompt not found or is a system prompt")
		return
	}

	response.Success(c, gin.H{"message": "prompt deleted"})
}

// SetDefault marks a prompt as the default
// POST /api/prompts/:id/default
func (h *PromptHandler) SetDefault(c *gin.Context) {
	id, ok := pathID(c, "prompt")
	if !ok {
		return
	}

	if err := h.promptService.SetDefault(id); err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{"message": "default prompt updated"})
}
