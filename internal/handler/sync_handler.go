package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/jengzang/fishing-sync/internal/cloudsync"
	"github.com/jengzang/fishing-sync/pkg/response"
)

// SyncHandler handles HTTP requests that drive the sync engine
type SyncHandler struct {
	engine *cloudsync.Engine
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(engine *cloudsync.Engine) *SyncHandler {
	return &SyncHandler{engine: engine}
}

// SyncNow handles POST /api/v1/sync. With ?async=true the attempt is
// handed to the scheduler and the request returns immediately.
func (h *SyncHandler) SyncNow(c *gin.Context) {
	if c.Query("async") == "true" {
		if err := h.engine.Trigger(); err != nil {
			respondError(c, err)
			return
		}
		response.Accepted(c, gin.H{"triggered": true})
		return
	}

	res, err := h.engine.SyncNow(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, res)
}

// GetStatus handles GET /api/v1/sync/status
func (h *SyncHandler) GetStatus(c *gin.Context) {
	response.Success(c, gin.H{"last": h.engine.Status()})
}
