package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/churchdesk/admin-api/config"
	"github.com/churchdesk/admin-api/internal/app"
	activityHandler "github.com/churchdesk/admin-api/internal/handler/activity"
	"github.com/churchdesk/admin-api/internal/handler/communication"
	groupHandler "github.com/churchdesk/admin-api/internal/handler/group"
	"github.com/churchdesk/admin-api/internal/handler/health"
	promHandler "github.com/churchdesk/admin-api/internal/handler/prometheus"
	settingHandler "github.com/churchdesk/admin-api/internal/handler/setting"
	"github.com/churchdesk/admin-api/internal/middleware"
	"github.com/churchdesk/admin-api/internal/router"
	activityService "github.com/churchdesk/admin-api/internal/service/activity"
	groupService "github.com/churchdesk/admin-api/internal/service/group"
	messageService "github.com/churchdesk/admin-api/internal/service/message"
	settingService "github.com/churchdesk/admin-api/internal/service/setting"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := app.NewLogger(cfg.Log)

	ctx := context.Background()
	a, err := app.New(ctx, cfg, logger, "api")
	if err != nil {
		logger.Fatal(err, "failed to initialise application")
	}
	defer a.Close()

	// Initialize services
	messageSvc := messageService.NewService(a.Repos.Messages, a.Repos.Scheduled, logger)
	settingSvc := settingService.NewService(a.Repos.Settings, a.Settings, a.Channels, logger)
	activitySvc := activityService.NewService(a.Repos.Activity)
	groupSvc := groupService.NewService(a.Repos.Groups, logger)

	// Initialize handlers
	var redisPinger health.Pinger
	if a.Broker != nil {
		redisPinger = health.PingFunc(a.Broker.Ping)
	}
	handlers := router.Handlers{
		Communication: communication.NewHandler(a.Dispatch, messageSvc),
		Settings:      settingHandler.NewHandler(settingSvc),
		Groups:        groupHandler.NewHandler(groupSvc),
		Activity:      activityHandler.NewHandler(activitySvc),
		Health:        health.NewHandler(a.DB, redisPinger),
	}
	if cfg.Monitoring.PrometheusEnabled {
		handlers.Metrics = promHandler.New(cfg.Monitoring.Namespace, a.Registry)
	}

	// Setup router
	r := router.NewRouter(handlers, router.RouterConfig{
		RateLimitEnabled: cfg.RateLimit.Enabled,
		RateLimit:        rate.Limit(cfg.RateLimit.RequestsPerSecond),
		RateBurst:        cfg.RateLimit.Burst,
		RequestTimeout:   cfg.Server.RequestTimeout,
		CORSConfig:       corsConfig(cfg.CORS),
		MetricsPath:      cfg.Monitoring.MetricsPath,
		Validation:       middleware.DefaultValidationConfig(),
	})
	if err := r.Setup(); err != nil {
		logger.Fatal(err, "failed to set up routes")
	}

	// Create server
	srv := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        r.Engine(),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	// Start server
	go func() {
		logger.Info("starting server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(err, "failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(err, "server forced to shutdown")
	}

	logger.Info("server exited properly")
}

func corsConfig(c config.CORSConfig) middleware.CORSConfig {
	cors := middleware.DefaultCORSConfig()
	if len(c.AllowedOrigins) > 0 {
		cors.AllowOrigins = c.AllowedOrigins
	}
	if len(c.AllowedMethods) > 0 {
		cors.AllowMethods = c.AllowedMethods
	}
	if len(c.AllowedHeaders) > 0 {
		cors.AllowHeaders = c.AllowedHeaders
	}
	return cors
}
