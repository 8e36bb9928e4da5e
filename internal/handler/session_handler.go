package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jengzang/fishing-sync/internal/models"
	"github.com/jengzang/fishing-sync/internal/service"
	"github.com/jengzang/fishing-sync/internal/session"
	"github.com/jengzang/fishing-sync/pkg/response"
)

// SessionHandler handles HTTP requests for tracking state, the session and
// track export
type SessionHandler struct {
	session      *session.Session
	trackService *service.TrackService
	now          func() time.Time
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(s *session.Session, trackService *service.TrackService) *SessionHandler {
	return &SessionHandler{
		session:      s,
		trackService: trackService,
		now:          time.Now,
	}
}

// GetSession handles GET /api/v1/session
func (h *SessionHandler) GetSession(c *gin.Context) {
	response.Success(c, h.session.Snapshot())
}

// GetTracking handles GET /api/v1/tracking
func (h *SessionHandler) GetTracking(c *gin.Context) {
	h.trackingState(c)
}

// StartTracking handles POST /api/v1/tracking/start
func (h *SessionHandler) StartTracking(c *gin.Context) {
	if err := h.session.Tracker().Start(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	h.trackingState(c)
}

// StopTracking handles POST /api/v1/tracking/stop
func (h *SessionHandler) StopTracking(c *gin.Context) {
	if err := h.session.Tracker().Stop(); err != nil {
		respondError(c, err)
		return
	}
	h.trackingState(c)
}

// ToggleTracking handles POST /api/v1/tracking/toggle
func (h *SessionHandler) ToggleTracking(c *gin.Context) {
	if _, err := h.session.Tracker().Toggle(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	h.trackingState(c)
}

func (h *SessionHandler) trackingState(c *gin.Context) {
	state, changed := h.session.Tracker().State()
	response.Success(c, gin.H{
		"state":     state,
		"changedAt": changed,
	})
}

// GetPeriod handles GET /api/v1/period
func (h *SessionHandler) GetPeriod(c *gin.Context) {
	response.Success(c, models.PeriodFor(h.now()))
}

// ExportGeoJSON handles GET /api/v1/export/geojson?date=YYYY-MM-DD&simplify=meters.
// The export covers the fishing day starting at noon on date.
func (h *SessionHandler) ExportGeoJSON(c *gin.Context) {
	day := h.now()
	if s := c.Query("date"); s != "" {
		d, err := time.ParseInLocation("2006-01-02", s, time.Local)
		if err != nil {
			response.BadRequest(c, "Invalid date, expected YYYY-MM-DD")
			return
		}
		day = d.Add(12 * time.Hour)
	}

	var simplify float64
	if s := c.Query("simplify"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v < 0 {
			response.BadRequest(c, "Invalid simplify tolerance")
			return
		}
		simplify = v
	}

	fc, err := h.trackService.ExportDay(c.Request.Context(), day, simplify)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(200, fc)
}
