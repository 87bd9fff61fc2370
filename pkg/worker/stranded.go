package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/churchdesk/admin-api/internal/dispatch"
	"github.com/churchdesk/admin-api/internal/model"
	"github.com/churchdesk/admin-api/internal/repository"
	"github.com/churchdesk/admin-api/pkg/logger"
	"github.com/churchdesk/admin-api/pkg/metrics"
)

// Resumer finishes the pending rows of an immediate message.
type Resumer interface {
	ResumePending(ctx context.Context, messageID uuid.UUID) (*dispatch.Result, error)
}

type StrandedSupervisorConfig struct {
	Interval      time.Duration
	StrandedAfter time.Duration
	Limit         int
}

// StrandedSupervisor picks up immediate messages whose delivery loop died
// with the API process.
type StrandedSupervisor struct {
	repo    repository.MessageRepository
	resumer Resumer
	config  StrandedSupervisorConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewStrandedSupervisor(
	repo repository.MessageRepository,
	resumer Resumer,
	config StrandedSupervisorConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *StrandedSupervisor {
	if config.Limit <= 0 {
		config.Limit = 50
	}
	return &StrandedSupervisor{
		repo:    repo,
		resumer: resumer,
		config:  config,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

func (s *StrandedSupervisor) Start(ctx context.Context) {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.logger.Error(err, "Failed to resume stranded messages")
			}
		}
	}
}

// RunOnce resumes messages left pending longer than the grace period and
// returns how many reached published.
func (s *StrandedSupervisor) RunOnce(ctx context.Context) (int, error) {
	cutoff := s.now().UTC().Add(-s.config.StrandedAfter)

	ids, err := s.repo.ListStranded(ctx, cutoff, s.config.Limit)
	if err != nil {
		s.metrics.DatabaseOperations.WithLabelValues("list_stranded", "error").Inc()
		return 0, fmt.Errorf("failed to list stranded messages: %w", err)
	}

	resumed := 0
	for _, id := range ids {
		res, err := s.resumer.ResumePending(ctx, id)
		if err != nil {
			s.logger.Error(err, "Failed to resume message", "message_id", id.String())
			continue
		}
		s.metrics.StrandedResumed.Inc()
		if res.Status == model.MessageStatusPublished {
			resumed++
		}
	}

	if len(ids) > 0 {
		s.logger.Info("Resumed stranded messages", "found", len(ids), "published", resumed)
	}
	return resumed, nil
}
