package message

import (
	"context"
	stderrors "errors"

	"github.com/google/uuid"

	"github.com/churchdesk/admin-api/internal/model"
	"github.com/churchdesk/admin-api/internal/repository"
	"github.com/churchdesk/admin-api/pkg/errors"
	"github.com/churchdesk/admin-api/pkg/logger"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

type MessageServicer interface {
	ListMessages(ctx context.Context, status string, limit int) ([]*model.Message, error)
	GetMessage(ctx context.Context, id uuid.UUID) (*model.MessageDetail, error)
	DeleteMessage(ctx context.Context, id uuid.UUID) error
	CancelSchedule(ctx context.Context, messageID uuid.UUID) error
	Stats(ctx context.Context) (*model.CommunicationStats, error)
}

type Service struct {
	messages  repository.MessageRepository
	scheduled repository.ScheduledMessageRepository
	log       *logger.Logger
}

func NewService(messages repository.MessageRepository, scheduled repository.ScheduledMessageRepository, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		messages:  messages,
		scheduled: scheduled,
		log:       log,
	}
}

func (s *Service) ListMessages(ctx context.Context, status string, limit int) ([]*model.Message, error) {
	filter := model.MessageFilter{Status: model.MessageStatus(status), Limit: clampLimit(limit)}
	switch filter.Status {
	case "", model.MessageStatusPending, model.MessageStatusScheduled, model.MessageStatusPublished, model.MessageStatusFailed:
	default:
		return nil, errors.InvalidRequest("unknown message status: " + status)
	}

	msgs, err := s.messages.List(ctx, filter)
	if err != nil {
		return nil, errors.StoreUnavailable("message listing", err)
	}
	if msgs == nil {
		msgs = []*model.Message{}
	}
	return msgs, nil
}

func (s *Service) GetMessage(ctx context.Context, id uuid.UUID) (*model.MessageDetail, error) {
	msg, err := s.messages.Get(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "message", "message lookup")
	}

	rows, err := s.messages.Recipients(ctx, id)
	if err != nil {
		return nil, errors.StoreUnavailable("recipient lookup", err)
	}
	if rows == nil {
		rows = []*model.MessageRecipient{}
	}
	detail := &model.MessageDetail{Message: msg, Recipients: rows}

	if msg.Status == model.MessageStatusScheduled {
		ticket, err := s.scheduled.GetByMessage(ctx, id)
		switch {
		case err == nil:
			detail.Schedule = ticket
		case !stderrors.Is(err, repository.ErrNotFound):
			return nil, errors.StoreUnavailable("schedule lookup", err)
		}
	}
	return detail, nil
}

func (s *Service) DeleteMessage(ctx context.Context, id uuid.UUID) error {
	if err := s.messages.Delete(ctx, id); err != nil {
		return mapRepoError(err, "message", "message deletion")
	}
	s.log.Info("message deleted", "message_id", id)
	return nil
}

// CancelSchedule cancels a ticket that no runner has claimed yet. The message
// itself keeps its scheduled status.
func (s *Service) CancelSchedule(ctx context.Context, messageID uuid.UUID) error {
	if err := s.scheduled.Cancel(ctx, messageID); err != nil {
		return mapRepoError(err, "pending scheduled message", "schedule cancellation")
	}
	s.log.Info("scheduled message cancelled", "message_id", messageID)
	return nil
}

func (s *Service) Stats(ctx context.Context) (*model.CommunicationStats, error) {
	stats, err := s.messages.Stats(ctx)
	if err != nil {
		return nil, errors.StoreUnavailable("statistics", err)
	}
	if stats.DeliveryByStatus == nil {
		stats.DeliveryByStatus = map[string]int{}
	}
	return stats, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	default:
		return limit
	}
}

func mapRepoError(err error, resource, op string) error {
	if stderrors.Is(err, repository.ErrNotFound) {
		return errors.NotFound(resource, err)
	}
	return errors.StoreUnavailable(op, err)
}
