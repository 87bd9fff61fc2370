package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/churchdesk/admin-api/config"
	"github.com/churchdesk/admin-api/internal/app"
	"github.com/churchdesk/admin-api/internal/handler/health"
	promHandler "github.com/churchdesk/admin-api/internal/handler/prometheus"
	"github.com/churchdesk/admin-api/pkg/logger"
	"github.com/churchdesk/admin-api/pkg/worker"
)

func main() {
	_ = godotenv.Load()

	// Load config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	env, err := config.LoadWorkerEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load worker environment")
	}

	workerID := env.ID
	if workerID == "" {
		workerID = generateWorkerID()
	}
	logger := app.NewLogger(cfg.Log).WithFields(map[string]interface{}{"worker_id": workerID})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, logger, "worker")
	if err != nil {
		logger.Fatal(err, "Failed to initialise worker")
	}
	defer a.Close()

	srv := setupHealthCheck(cfg.Worker.HealthPort, a, logger)

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutting down...")
		cancel()
	}()

	var wg sync.WaitGroup

	if !env.DisableScheduler {
		runner := worker.NewScheduledRunner(a.Repos.Scheduled, a.Dispatch, worker.ScheduledRunnerConfig{
			ClaimLimit:   cfg.Worker.ClaimLimit,
			PollInterval: cfg.Worker.PollInterval,
			RetryDelay:   cfg.Worker.RetryDelay,
			StaleAfter:   cfg.Worker.StrandedAfter,
		}, logger, a.Metrics)
		wg.Add(1)
		go func() {
			defer wg.Done()
			runner.Start(ctx)
		}()
	}

	if !env.DisableSupervisor {
		supervisor := worker.NewStrandedSupervisor(a.Repos.Messages, a.Dispatch, worker.StrandedSupervisorConfig{
			Interval:      cfg.Worker.PollInterval,
			StrandedAfter: cfg.Worker.StrandedAfter,
			Limit:         cfg.Worker.ClaimLimit,
		}, logger, a.Metrics)
		wg.Add(1)
		go func() {
			defer wg.Done()
			supervisor.Start(ctx)
		}()
	}

	wg.Wait()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(err, "Health check server shutdown failed")
	}
}

func setupHealthCheck(port int, a *app.App, logger *logger.Logger) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	health.NewHandler(a.DB, nil).RegisterRoutes(&engine.RouterGroup)
	if a.Config.Monitoring.PrometheusEnabled {
		engine.GET(a.Config.Monitoring.MetricsPath, promHandler.New(a.Config.Monitoring.Namespace+"_worker", a.Registry).Handler())
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: engine,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(err, "Health check server failed")
			os.Exit(1)
		}
	}()
	return srv
}

func generateWorkerID() string {
	// Generate a unique worker ID using hostname and timestamp
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("%s-%d", hostname, time.Now().UnixNano())
}
