package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/jengzang/fishing-sync/internal/models"
	"github.com/jengzang/fishing-sync/internal/service"
	"github.com/jengzang/fishing-sync/internal/session"
	"github.com/jengzang/fishing-sync/pkg/response"
)

// TrackHandler handles HTTP requests for location fixes and stored positions
type TrackHandler struct {
	provider     *session.PushProvider
	trackService *service.TrackService
}

// NewTrackHandler creates a new track handler
func NewTrackHandler(provider *session.PushProvider, trackService *service.TrackService) *TrackHandler {
	return &TrackHandler{
		provider:     provider,
		trackService: trackService,
	}
}

// PostFix handles POST /api/v1/fixes
func (h *TrackHandler) PostFix(c *gin.Context) {
	var fix models.Fix
	if err := c.ShouldBindJSON(&fix); err != nil {
		response.BadRequest(c, "Invalid fix")
		return
	}

	result, err := h.provider.Push(c.Request.Context(), fix)
	if err != nil {
		respondError(c, err)
		return
	}

	// rejected fixes are accepted too; the caller is a sensor, not a user
	response.Accepted(c, result)
}

// GetLastPosition handles GET /api/v1/positions/last
func (h *TrackHandler) GetLastPosition(c *gin.Context) {
	pos, err := h.trackService.GetLastPosition(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, pos)
}

// CountPositions handles GET /api/v1/positions/count
func (h *TrackHandler) CountPositions(c *gin.Context) {
	counts, err := h.trackService.CountPositions(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, counts)
}

// GetUnuploadedPositions handles GET /api/v1/positions/unuploaded
func (h *TrackHandler) GetUnuploadedPositions(c *gin.Context) {
	positions, err := h.trackService.GetUnuploadedPositions(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{
		"data":  positions,
		"count": len(positions),
	})
}
