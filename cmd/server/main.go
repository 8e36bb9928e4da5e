package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apex/log"
	jsonhandler "github.com/apex/log/handlers/json"
	"github.com/apex/log/handlers/text"
	"github.com/gin-gonic/gin"
	"github.com/jengzang/fishing-sync/internal/api"
	"github.com/jengzang/fishing-sync/internal/auth"
	"github.com/jengzang/fishing-sync/internal/cloudsync"
	"github.com/jengzang/fishing-sync/internal/config"
	"github.com/jengzang/fishing-sync/internal/database"
	"github.com/jengzang/fishing-sync/internal/metrics"
	"github.com/jengzang/fishing-sync/internal/repository"
	"github.com/jengzang/fishing-sync/internal/service"
	"github.com/jengzang/fishing-sync/internal/session"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, database.Config{
		Path:          cfg.DBPath,
		BusyTimeoutMS: cfg.BusyTimeoutMS,
	})
	if err != nil {
		log.WithError(err).Fatal("failed to open database")
	}
	defer db.Close()

	store := repository.NewStore(db)
	metrics.Register()

	deviceID, err := session.ResolveDeviceID(ctx, store.Settings, cfg.DeviceID)
	if err != nil {
		log.WithError(err).Fatal("failed to resolve device id")
	}

	capture := service.NewCaptureService(store.Positions, store.Catches)
	provider := session.NewPushProvider()
	tracker := session.NewTracker(provider, session.StaticPermission(cfg.LocationPermission), capture.HandleFix)
	sess := session.New(deviceID, tracker)

	interval := cfg.Sync.Interval
	if cfg.Sync.URL == "" {
		log.Warn("SYNC_URL not set, scheduled sync disabled")
		interval = 0
	}
	engine := cloudsync.NewEngine(
		store,
		cloudsync.NewClient(cfg.Sync.URL, cfg.Sync.Timeout),
		tokenProvider(ctx, cfg),
		cloudsync.Options{
			DeviceID:    deviceID,
			PeriodScope: cfg.Sync.Scope == config.ScopePeriod,
			RequireAuth: cfg.Sync.Auth == config.AuthRequired,
			Interval:    interval,
			MinGap:      cfg.Sync.MinGap,
		},
	)
	// triggered attempts still run without a URL and report a transport failure
	go engine.Run(ctx)

	gin.SetMode(gin.ReleaseMode)
	router := api.SetupRouter(cfg, api.Deps{
		Session:  sess,
		Provider: provider,
		Capture:  capture,
		Catches:  service.NewCatchService(store.Catches),
		Tracks:   service.NewTrackService(store.Positions, store.Catches),
		Engine:   engine,
	})

	srv := &http.Server{
		Addr:              cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := tracker.Stop(); err != nil {
			log.WithError(err).Warn("failed to stop tracking")
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("server shutdown failed")
		}
	}()

	log.WithFields(log.Fields{"addr": cfg.Port, "device": deviceID}).Info("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("failed to start server")
	}
	log.Info("server stopped")
}

func setupLogging(cfg *config.Config) {
	if cfg.LogFormat == "json" {
		log.SetHandler(jsonhandler.New(os.Stderr))
	} else {
		log.SetHandler(text.New(os.Stderr))
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithError(err).Warnf("invalid LOG_LEVEL %q, using info", cfg.LogLevel)
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

// tokenProvider picks the bearer token source: OAuth refresh when configured,
// then a static token, otherwise none
func tokenProvider(ctx context.Context, cfg *config.Config) auth.TokenProvider {
	switch {
	case cfg.OAuth.Enabled():
		return auth.NewRefreshing(ctx, auth.RefreshConfig{
			TokenURL:     cfg.OAuth.TokenURL,
			ClientID:     cfg.OAuth.ClientID,
			ClientSecret: cfg.OAuth.ClientSecret,
			RefreshToken: cfg.OAuth.RefreshToken,
		})
	case cfg.Sync.BearerToken != "":
		return auth.NewStatic(cfg.Sync.BearerToken)
	default:
		return auth.None{}
	}
}
