package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"waselni/internal/app"
	"waselni/internal/config"
	"waselni/internal/domain"
	"waselni/internal/logger"
	"waselni/internal/middleware"
	internalRedis "waselni/internal/redis"
	"waselni/internal/repository"
	"waselni/internal/session"
	"waselni/internal/viewmodel"
)

func main() {
	cfg := config.Load()

	logr, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	gin.SetMode(cfg.Server.Mode)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic first so the database and Redis are instrumented.
	var nrApp *newrelic.Application
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			logr.WithError(err).Warn("failed to initialize New Relic")
		} else {
			logr.WithField("app", cfg.NewRelic.AppName).Info("New Relic enabled")
		}
	}

	backend, err := app.NewBackend(ctx, cfg, nrApp, logr)
	if err != nil {
		logr.WithError(err).Fatal("failed to initialize record store")
	}
	defer backend.Close()

	// Redis is optional: without it idempotency keys are ignored and the
	// university list is read from the store.
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient, err = app.NewRedisClient(ctx, cfg.Redis, nrApp)
		if err != nil {
			logr.WithError(err).Warn("redis unavailable; continuing without cache")
			redisClient = nil
		} else {
			defer redisClient.Close()
			logr.WithField("addr", cfg.Redis.Addr).Info("connected to Redis")
		}
	}

	server, sessions := wireServer(backend, redisClient, nrApp, cfg, logr)
	sessions.Start(ctx)

	go func() {
		logr.WithField("port", cfg.Server.Port).Info("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.WithError(err).Fatal("server error")
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logr.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.WithError(err).Error("server forced to shutdown")
	}
	sessions.Close()
	if nrApp != nil {
		nrApp.Shutdown(5 * time.Second)
	}

	logr.Info("server exited")
}

// wireServer wires all dependencies and returns the HTTP server and the
// session manager.
func wireServer(backend *app.Backend, redisClient *redis.Client, nrApp *newrelic.Application, cfg *config.Config, logr *logrus.Logger) (*http.Server, *session.Manager) {
	universityRepo := repository.NewUniversityRepository(backend.Client)
	var responseCache middleware.ResponseCache
	if redisClient != nil {
		universityRepo = internalRedis.NewUniversityCache(universityRepo, redisClient, cfg.Redis.UniversityTTL, logr)
		responseCache = redisClient
	}

	fleet := viewmodel.NewFleet(backend.Client, backend.Source, cfg.Fleet.NearbyRadiusKm, logr)
	universities := viewmodel.NewUniversities(universityRepo, logr)

	sessions := session.NewManager(backend.Client, backend.Source, fleet, universities, session.Options{
		IdleTimeout:     cfg.Session.IdleTimeout,
		SweepInterval:   cfg.Session.SweepInterval,
		DefaultLanguage: domain.ParseLanguage(cfg.Session.DefaultLanguage),
	}, logr)

	router := app.NewRouter(app.RouterDeps{
		Sessions:      sessions,
		ResponseCache: responseCache,
		NewRelicApp:   nrApp,
		Logger:        logr,
	})

	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, sessions
}
