package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/churchdesk/admin-api/internal/dispatch"
	"github.com/churchdesk/admin-api/internal/model"
	"github.com/churchdesk/admin-api/internal/repository"
	"github.com/churchdesk/admin-api/pkg/logger"
	"github.com/churchdesk/admin-api/pkg/metrics"
)

// Deliverer runs the delivery loop of a stored message.
type Deliverer interface {
	Deliver(ctx context.Context, messageID uuid.UUID) (*dispatch.Result, error)
}

type ScheduledRunnerConfig struct {
	ClaimLimit   int
	PollInterval time.Duration
	RetryDelay   time.Duration
	// Tickets left in processing longer than this are handed back.
	StaleAfter time.Duration
}

// ScheduledRunner claims due schedule tickets and delivers their messages.
type ScheduledRunner struct {
	repo      repository.ScheduledMessageRepository
	deliverer Deliverer
	config    ScheduledRunnerConfig
	logger    *logger.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewScheduledRunner(
	repo repository.ScheduledMessageRepository,
	deliverer Deliverer,
	config ScheduledRunnerConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *ScheduledRunner {
	// Config validation instead of defaults
	if config.ClaimLimit <= 0 {
		panic("ClaimLimit must be greater than 0")
	}
	if config.PollInterval <= 0 {
		panic("PollInterval must be greater than 0")
	}
	if config.RetryDelay <= 0 {
		panic("RetryDelay must be greater than 0")
	}
	if config.StaleAfter <= 0 {
		panic("StaleAfter must be greater than 0")
	}

	return &ScheduledRunner{
		repo:      repo,
		deliverer: deliverer,
		config:    config,
		logger:    logger,
		metrics:   metrics,
		now:       time.Now,
	}
}

func (r *ScheduledRunner) Start(ctx context.Context) {
	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	r.logger.Info("Starting scheduled message runner")

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Shutting down scheduled message runner")
			return
		case <-ticker.C:
			if err := r.RunOnce(ctx); err != nil {
				r.logger.Error(err, "Failed to process scheduled messages")
			}
		}
	}
}

// RunOnce requeues abandoned tickets, then claims and delivers what is due.
func (r *ScheduledRunner) RunOnce(ctx context.Context) error {
	now := r.now().UTC()

	requeued, err := r.repo.RequeueStale(ctx, now.Add(-r.config.StaleAfter))
	if err != nil {
		r.metrics.DatabaseOperations.WithLabelValues("requeue_stale", "error").Inc()
		return fmt.Errorf("failed to requeue stale tickets: %w", err)
	}
	if requeued > 0 {
		r.logger.Warn("Requeued stale scheduled tickets", "count", requeued)
	}

	tickets, err := r.repo.ClaimDue(ctx, now, r.config.ClaimLimit)
	if err != nil {
		r.metrics.DatabaseOperations.WithLabelValues("claim_due", "error").Inc()
		return fmt.Errorf("failed to claim due tickets: %w", err)
	}
	r.metrics.DatabaseOperations.WithLabelValues("claim_due", "success").Inc()

	for _, ticket := range tickets {
		r.metrics.ScheduledClaimed.Inc()
		if err := r.process(ctx, ticket); err != nil {
			r.logger.Error(err, "Failed to process scheduled ticket",
				"ticket_id", ticket.ID.String(),
				"message_id", ticket.MessageID.String())
		}
	}

	return nil
}

func (r *ScheduledRunner) process(ctx context.Context, ticket *model.ScheduledMessage) error {
	timer := prometheus.NewTimer(r.metrics.ScheduledProcessingLatency)
	defer timer.ObserveDuration()

	res, err := r.deliverer.Deliver(ctx, ticket.MessageID)
	if err == nil && res.Status != model.MessageStatusPublished {
		err = fmt.Errorf("%d deliveries still pending", res.Stats.Pending)
	}

	if err != nil {
		r.metrics.ScheduledFailed.Inc()
		nextRun := r.now().UTC().Add(r.config.RetryDelay)
		if releaseErr := r.repo.Release(ctx, ticket.ID, nextRun, err.Error()); releaseErr != nil {
			r.logger.Error(releaseErr, "Failed to release scheduled ticket", "ticket_id", ticket.ID.String())
		}
		return err
	}

	if err := r.repo.Complete(ctx, ticket.ID); err != nil {
		return fmt.Errorf("failed to complete ticket: %w", err)
	}

	r.logger.Info("Scheduled message delivered",
		"message_id", ticket.MessageID.String(),
		"sent", res.Stats.Sent,
		"failed", res.Stats.Failed)
	return nil
}
