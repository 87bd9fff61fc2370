package message

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/churchdesk/admin-api/internal/model"
	"github.com/churchdesk/admin-api/internal/repository"
	apperrors "github.com/churchdesk/admin-api/pkg/errors"
)

type stubMessages struct {
	repository.MessageRepository

	msgs      map[uuid.UUID]*model.Message
	rows      map[uuid.UUID][]*model.MessageRecipient
	stats     *model.CommunicationStats
	err       error
	gotFilter model.MessageFilter
}

func (s *stubMessages) List(_ context.Context, f model.MessageFilter) ([]*model.Message, error) {
	s.gotFilter = f
	if s.err != nil {
		return nil, s.err
	}
	var out []*model.Message
	for _, m := range s.msgs {
		if f.Status == "" || m.Status == f.Status {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *stubMessages) Get(_ context.Context, id uuid.UUID) (*model.Message, error) {
	if s.err != nil {
		return nil, s.err
	}
	m, ok := s.msgs[id]
	if !ok {
		return nil, fmt.Errorf("message: %w", repository.ErrNotFound)
	}
	return m, nil
}

func (s *stubMessages) Recipients(_ context.Context, id uuid.UUID) ([]*model.MessageRecipient, error) {
	return s.rows[id], nil
}

func (s *stubMessages) Delete(_ context.Context, id uuid.UUID) error {
	if s.err != nil {
		return s.err
	}
	if _, ok := s.msgs[id]; !ok {
		return fmt.Errorf("message: %w", repository.ErrNotFound)
	}
	delete(s.msgs, id)
	return nil
}

func (s *stubMessages) Stats(context.Context) (*model.CommunicationStats, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.stats, nil
}

type stubScheduled struct {
	repository.ScheduledMessageRepository

	pending map[uuid.UUID]bool
}

func (s *stubScheduled) Cancel(_ context.Context, id uuid.UUID) error {
	if !s.pending[id] {
		return fmt.Errorf("pending scheduled message: %w", repository.ErrNotFound)
	}
	delete(s.pending, id)
	return nil
}

func (s *stubScheduled) GetByMessage(_ context.Context, id uuid.UUID) (*model.ScheduledMessage, error) {
	if !s.pending[id] {
		return nil, fmt.Errorf("scheduled message: %w", repository.ErrNotFound)
	}
	return &model.ScheduledMessage{MessageID: id, Status: model.ScheduleStatusPending}, nil
}

func seeded() (*stubMessages, uuid.UUID, uuid.UUID) {
	published, scheduled := uuid.New(), uuid.New()
	now := time.Now()
	return &stubMessages{
		msgs: map[uuid.UUID]*model.Message{
			published: {ID: published, Title: "Sunday", Status: model.MessageStatusPublished, SentAt: &now},
			scheduled: {ID: scheduled, Title: "Retreat", Status: model.MessageStatusScheduled},
		},
		rows: map[uuid.UUID][]*model.MessageRecipient{
			published: {{ID: uuid.New(), MessageID: published, Channel: model.ChannelEmail, Status: model.DeliveryStatusSent}},
		},
	}, published, scheduled
}

func TestListMessages(t *testing.T) {
	repo, _, _ := seeded()
	svc := NewService(repo, &stubScheduled{}, nil)

	msgs, err := svc.ListMessages(context.Background(), "published", 0)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
	assert.Equal(t, DefaultListLimit, repo.gotFilter.Limit)

	_, err = svc.ListMessages(context.Background(), "", 1000)
	require.NoError(t, err)
	assert.Equal(t, MaxListLimit, repo.gotFilter.Limit)

	_, err = svc.ListMessages(context.Background(), "", 20)
	require.NoError(t, err)
	assert.Equal(t, 20, repo.gotFilter.Limit)
}

func TestListMessages_EmptyIsNotNil(t *testing.T) {
	svc := NewService(&stubMessages{}, &stubScheduled{}, nil)

	msgs, err := svc.ListMessages(context.Background(), "pending", 10)

	require.NoError(t, err)
	assert.NotNil(t, msgs)
	assert.Empty(t, msgs)
}

func TestListMessages_UnknownStatus(t *testing.T) {
	svc := NewService(&stubMessages{}, &stubScheduled{}, nil)

	_, err := svc.ListMessages(context.Background(), "archived", 10)

	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidRequest))
}

func TestGetMessage(t *testing.T) {
	repo, published, _ := seeded()
	svc := NewService(repo, &stubScheduled{}, nil)

	detail, err := svc.GetMessage(context.Background(), published)
	require.NoError(t, err)
	assert.Equal(t, "Sunday", detail.Title)
	assert.Len(t, detail.Recipients, 1)

	_, err = svc.GetMessage(context.Background(), uuid.New())
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestGetMessage_IncludesSchedule(t *testing.T) {
	repo, published, scheduled := seeded()
	svc := NewService(repo, &stubScheduled{pending: map[uuid.UUID]bool{scheduled: true}}, nil)

	detail, err := svc.GetMessage(context.Background(), scheduled)
	require.NoError(t, err)
	require.NotNil(t, detail.Schedule)
	assert.Equal(t, model.ScheduleStatusPending, detail.Schedule.Status)

	detail, err = svc.GetMessage(context.Background(), published)
	require.NoError(t, err)
	assert.Nil(t, detail.Schedule)
}

func TestGetMessage_StoreDown(t *testing.T) {
	svc := NewService(&stubMessages{err: errors.New("connection refused")}, &stubScheduled{}, nil)

	_, err := svc.GetMessage(context.Background(), uuid.New())

	assert.True(t, apperrors.Is(err, apperrors.ErrStoreUnavailable))
}

func TestDeleteMessage(t *testing.T) {
	repo, published, _ := seeded()
	svc := NewService(repo, &stubScheduled{}, nil)

	require.NoError(t, svc.DeleteMessage(context.Background(), published))
	assert.NotContains(t, repo.msgs, published)

	err := svc.DeleteMessage(context.Background(), published)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestCancelSchedule(t *testing.T) {
	repo, _, scheduled := seeded()
	tickets := &stubScheduled{pending: map[uuid.UUID]bool{scheduled: true}}
	svc := NewService(repo, tickets, nil)

	require.NoError(t, svc.CancelSchedule(context.Background(), scheduled))
	assert.Equal(t, model.MessageStatusScheduled, repo.msgs[scheduled].Status)

	err := svc.CancelSchedule(context.Background(), scheduled)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestStats(t *testing.T) {
	svc := NewService(&stubMessages{stats: &model.CommunicationStats{MessagesPublished: 3, TotalReached: 12}}, &stubScheduled{}, nil)

	stats, err := svc.Stats(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, stats.MessagesPublished)
	assert.NotNil(t, stats.DeliveryByStatus)
}
