package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/patchpilot/patchpilot/internal/services"
	"github.com/patchpilot/patchpilot/pkg/response"
	"gorm.io/gorm"
)

// pathID reads the :id route parameter. On a malformed value it writes a 400
// response and returns false.
func pathID(c *gin.Context, what string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid "+what+" id")
		return 0, false
	}
	return uint(id), true
}

type LLMConfigHandler struct {
	llmService *services.LLMConfigService
}

func NewLLMConfigHandler(db *gorm.DB) *LLMConfigHandler {
	return &LLMConfigHandler{llmService: services.NewLLMConfigService(db)}
}

// List handles GET /api/llm-configs with pagination.
func (h *LLMConfigHandler) List(c *gin.Context) {
	var req services.LLMConfigListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.llmService.List(&req)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, result)
}

// GetActive handles GET /api/llm-configs/active, listing enabled providers
// for the repository settings dropdown.
func (h *LLMConfigHandler) GetActive(c *gin.Context) {
	configs, err := h.llmService.GetActive()
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, configs)
}

// Get handles GET /api/llm-configs/:id.
func (h *LLMConfigHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "config")
	if !ok {
		return
	}

	config, err := h.llmService.GetByID(id)
	if err != nil {
		response.NotFound(c, "llm config not found")
		return
	}
	response.Success(c, config)
}

// Create handles POST /api/llm-configs.
func (h *LLMConfigHandler) Create(c *gin.Context) {
	var req services.CreateLLMConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	config, err := h.llmService.Create(&req)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Created(c, config)
}

// Update handles PUT /api/llm-configs/:id.
func (h *LLMConfigHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "config")
	if !ok {
		return
	}

	var req services.UpdateLLMConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	config, err := h.llmService.Update(id, &req)
	if err != nil {
		response.NotFound(c, err.Error())
		return
	}
	response.Success(c, config)
}

// Delete handles DELETE /api/llm-configs/:id.
func (h *LLMConfigHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "config")
	if !ok {
		return
	}

	if err := h.llmService.Delete(id); err != nil {
		response.NotFound(c, err.Error())
		return
	}
	response.Success(c, gin.H{"message": "llm config deleted"})
}
