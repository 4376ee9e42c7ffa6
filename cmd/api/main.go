package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/spatialdeez/microstore/internal/api"
	"github.com/spatialdeez/microstore/internal/app"
	"github.com/spatialdeez/microstore/internal/auth"
	"github.com/spatialdeez/microstore/internal/config"
	"github.com/spatialdeez/microstore/internal/logger"
	"github.com/spatialdeez/microstore/internal/metrics"
	"github.com/spatialdeez/microstore/internal/services"
	"github.com/spatialdeez/microstore/internal/storage"
)

func main() {
	// a missing .env is fine, the environment may already be set
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Env, cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := app.OpenStore(ctx, cfg)
	if err != nil {
		log.Error("store", "err", err)
		os.Exit(1)
	}
	defer closeStore()

	files, err := storage.NewFiles(cfg.UploadDir)
	if err != nil {
		log.Error("uploads", "err", err)
		os.Exit(1)
	}

	userSvc := services.NewUserService(store, cfg)
	metrics.Init()
	r := api.NewRouter(api.RouterDeps{
		Cfg:        cfg,
		TM:         auth.NewTokenManager(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.AccessTTL, cfg.RefreshTTL),
		Sessions:   auth.NewSessions([]byte(cfg.SessionKey), cfg.CookieSecure),
		Files:      files,
		UserSvc:    userSvc,
		CatalogSvc: services.NewCatalogService(store, files, cfg),
		CartSvc:    services.NewCartService(store, cfg),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.HTTPPort, "env", cfg.Env, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", "err", err)
	}
}
