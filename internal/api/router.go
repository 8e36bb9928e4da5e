package api

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jengzang/fishing-sync/internal/cloudsync"
	"github.com/jengzang/fishing-sync/internal/config"
	"github.com/jengzang/fishing-sync/internal/handler"
	"github.com/jengzang/fishing-sync/internal/middleware"
	"github.com/jengzang/fishing-sync/internal/service"
	"github.com/jengzang/fishing-sync/internal/session"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the components served by the local API
type Deps struct {
	Session  *session.Session
	Provider *session.PushProvider
	Capture  *service.CaptureService
	Catches  *service.CatchService
	Tracks   *service.TrackService
	Engine   *cloudsync.Engine
}

// SetupRouter builds the HTTP router
func SetupRouter(cfg *config.Config, d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Logger())

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Fishing sync service is running",
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	trackHandler := handler.NewTrackHandler(d.Provider, d.Tracks)
	catchHandler := handler.NewCatchHandler(d.Capture, d.Catches)
	sessionHandler := handler.NewSessionHandler(d.Session, d.Tracks)
	syncHandler := handler.NewSyncHandler(d.Engine)

	api := r.Group("/api/v1")
	api.Use(middleware.RateLimit(middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)))
	{
		api.POST("/fixes", trackHandler.PostFix)

		positions := api.Group("/positions")
		{
			positions.GET("/last", trackHandler.GetLastPosition)
			positions.GET("/count", trackHandler.CountPositions)
			positions.GET("/unuploaded", trackHandler.GetUnuploadedPositions)
		}

		catches := api.Group("/catches")
		{
			catches.POST("", catchHandler.CreateCatch)
			catches.GET("", catchHandler.ListCatches)
			catches.GET("/unsubmitted", catchHandler.GetUnsubmitted)
			catches.GET("/unsubmitted/count", catchHandler.CountUnsubmitted)
			catches.GET("/:id", catchHandler.GetCatch)
			catches.PUT("/:id", catchHandler.UpdateCatch)
		}

		tracking := api.Group("/tracking")
		{
			tracking.GET("", sessionHandler.GetTracking)
			tracking.POST("/start", sessionHandler.StartTracking)
			tracking.POST("/stop", sessionHandler.StopTracking)
			tracking.POST("/toggle", sessionHandler.ToggleTracking)
		}

		api.POST("/sync", syncHandler.SyncNow)
		api.GET("/sync/status", syncHandler.GetStatus)

		api.GET("/session", sessionHandler.GetSession)
		api.GET("/period", sessionHandler.GetPeriod)
		api.GET("/export/geojson", sessionHandler.ExportGeoJSON)
	}

	return r
}
