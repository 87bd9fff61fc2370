// Package app wires the stores, channel adapters and dispatch service shared
// by the API and worker binaries.
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/churchdesk/admin-api/config"
	"github.com/churchdesk/admin-api/internal/channel"
	"github.com/churchdesk/admin-api/internal/dispatch"
	"github.com/churchdesk/admin-api/internal/repository/postgres"
	"github.com/churchdesk/admin-api/pkg/logger"
	"github.com/churchdesk/admin-api/pkg/messaging"
	"github.com/churchdesk/admin-api/pkg/messaging/redis"
	"github.com/churchdesk/admin-api/pkg/metrics"
)

type App struct {
	Config    *config.Config
	Logger    *logger.Logger
	DB        *sqlx.DB
	Repos     *postgres.Repositories
	Settings  *channel.SettingsStore
	Channels  *channel.Registry
	Broker    *redis.RedisBroker
	Publisher messaging.Publisher
	Registry  *prometheus.Registry
	Metrics   *metrics.Metrics
	Dispatch  *dispatch.Service
}

// NewLogger builds the process logger from config and installs it globally.
func NewLogger(cfg config.LogConfig) *logger.Logger {
	log := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Level),
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		JSON:       cfg.JSON,
	})
	log.SetGlobal()
	return log
}

// New connects to postgres and, when configured, redis. subsystem labels the
// dispatch metrics of the calling binary.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger, subsystem string) (*App, error) {
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	a := &App{
		Config:    cfg,
		Logger:    log,
		DB:        db,
		Repos:     postgres.NewRepositories(db),
		Publisher: messaging.NopPublisher{},
		Registry:  prometheus.NewRegistry(),
	}
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Metrics = metrics.NewMetrics(cfg.Monitoring.Namespace, subsystem, a.Registry)

	if cfg.Redis.URL != "" {
		broker, err := redis.NewRedisBroker(ctx, redis.Config{
			URL:          cfg.Redis.URL,
			MaxRetries:   cfg.Redis.MaxRetries,
			RetryBackoff: cfg.Redis.RetryBackoff,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		}, log)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.Broker = broker
		a.Publisher = messaging.NewBrokerPublisher(broker, cfg.Redis.Channel)
	} else {
		log.Warn("redis url not configured, message events will not be published")
	}

	a.Settings = channel.NewSettingsStore(a.Repos.Settings, cfg.Settings.CacheTTL)
	a.Channels = channel.NewRegistry(
		channel.NewEmailAdapter(a.Settings, cfg.AWS.Region, log),
		channel.NewSMSAdapter(a.Settings, cfg.AWS.Region, log),
	)

	a.Dispatch = dispatch.NewService(dispatch.Config{
		Queue: dispatch.QueueConfig{
			BatchSize:   cfg.Dispatch.BatchSize,
			BatchPause:  cfg.Dispatch.BatchPause,
			MaxInFlight: cfg.Dispatch.MaxInFlight,
		},
		ActivityLogSize: cfg.Dispatch.ActivityLogSize,
	}, dispatch.Dependencies{
		Audience:  a.Repos.Audience,
		Messages:  a.Repos.Messages,
		Activity:  a.Repos.Activity,
		Channels:  a.Channels,
		Settings:  a.Settings,
		Publisher: a.Publisher,
		Metrics:   a.Metrics,
		Logger:    log,
	})

	return a, nil
}

func (a *App) Close() {
	if a.Broker != nil {
		if err := a.Broker.Close(); err != nil {
			a.Logger.Error(err, "failed to close redis broker")
		}
	}
	if err := a.DB.Close(); err != nil {
		a.Logger.Error(err, "failed to close database")
	}
}
