package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/jengzang/fishing-sync/internal/models"
	"github.com/jengzang/fishing-sync/internal/service"
	"github.com/jengzang/fishing-sync/pkg/response"
)

// CatchHandler handles HTTP requests for catches
type CatchHandler struct {
	captureService *service.CaptureService
	catchService   *service.CatchService
}

// NewCatchHandler creates a new catch handler
func NewCatchHandler(captureService *service.CaptureService, catchService *service.CatchService) *CatchHandler {
	return &CatchHandler{
		captureService: captureService,
		catchService:   catchService,
	}
}

// CreateCatch handles POST /api/v1/catches
func (h *CatchHandler) CreateCatch(c *gin.Context) {
	var form models.CatchForm
	if err := c.ShouldBindJSON(&form); err != nil {
		response.BadRequest(c, "Invalid catch form")
		return
	}

	fc, err := h.captureService.SubmitCatch(c.Request.Context(), form)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Created(c, fc)
}

// ListCatches handles GET /api/v1/catches
func (h *CatchHandler) ListCatches(c *gin.Context) {
	catches, err := h.catchService.ListCatches(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{
		"data":  catches,
		"count": len(catches),
	})
}

// GetCatch handles GET /api/v1/catches/:id
func (h *CatchHandler) GetCatch(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	fc, err := h.catchService.GetCatch(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, fc)
}

// UpdateCatch handles PUT /api/v1/catches/:id
func (h *CatchHandler) UpdateCatch(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var body models.Catch
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "Invalid catch")
		return
	}

	fc, err := h.catchService.UpdateCatch(c.Request.Context(), id, body)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, fc)
}

// GetUnsubmitted handles GET /api/v1/catches/unsubmitted
func (h *CatchHandler) GetUnsubmitted(c *gin.Context) {
	catches, err := h.catchService.GetUnsubmitted(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{
		"data":  catches,
		"count": len(catches),
	})
}

// CountUnsubmitted handles GET /api/v1/catches/unsubmitted/count
func (h *CatchHandler) CountUnsubmitted(c *gin.Context) {
	n, err := h.catchService.CountUnsubmitted(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{"count": n})
}
