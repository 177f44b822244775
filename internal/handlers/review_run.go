package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/patchpilot/patchpilot/internal/services"
	"github.com/patchpilot/patchpilot/pkg/response"
	"gorm.io/gorm"
)

type ReviewRunHandler struct {
	runService *services.ReviewRunService
}

func NewReviewRunHandler(db *gorm.DB) *ReviewRunHandler {
	return &ReviewRunHandler{
		runService: services.NewReviewRunService(db),
	}
}

// List returns paginated review runs
// GET /api/reviews
func (h *ReviewRunHandler) List(c *gin.Context) {
	var req services.ReviewRunListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.runService.List(&req)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, result)
}

// Get returns one review run
// GET /api/reviews/:id
func (h *ReviewRunHandler) Get(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		// Fall back to UUID lookup
		run, runErr := h.runService.GetByRunID(c.Param("id"))
		if runErr != nil {
			response.NotFound(c, "review run not found")
			return
		}
		response.Success(c, run)
		return
	}

	run, err := h.runService.GetByID(uint(id))
	if err != nil {
		response.NotFound(c, "review run not found")
		return
	}

	response.Success(c, run)
}
