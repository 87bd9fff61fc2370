package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/churchdesk/admin-api/internal/dispatch"
	"github.com/churchdesk/admin-api/internal/model"
	"github.com/churchdesk/admin-api/internal/repository"
	"github.com/churchdesk/admin-api/pkg/logger"
	"github.com/churchdesk/admin-api/pkg/metrics"
)

type release struct {
	nextRun time.Time
	lastErr string
}

type fakeTickets struct {
	repository.ScheduledMessageRepository

	due         []*model.ScheduledMessage
	claimErr    error
	staleBefore time.Time
	completed   []uuid.UUID
	released    map[uuid.UUID]release
}

func (f *fakeTickets) RequeueStale(_ context.Context, before time.Time) (int64, error) {
	f.staleBefore = before
	return 0, nil
}

func (f *fakeTickets) ClaimDue(context.Context, time.Time, int) ([]*model.ScheduledMessage, error) {
	if f.claimErr != nil {
		return nil, f.claimErr
	}
	due := f.due
	f.due = nil
	return due, nil
}

func (f *fakeTickets) Complete(_ context.Context, id uuid.UUID) error {
	f.completed = append(f.completed, id)
	return nil
}

func (f *fakeTickets) Release(_ context.Context, id uuid.UUID, nextRun time.Time, lastErr string) error {
	if f.released == nil {
		f.released = map[uuid.UUID]release{}
	}
	f.released[id] = release{nextRun, lastErr}
	return nil
}

type fakeDeliverer struct {
	results map[uuid.UUID]*dispatch.Result
	errs    map[uuid.UUID]error
	calls   []uuid.UUID
}

func (f *fakeDeliverer) Deliver(_ context.Context, id uuid.UUID) (*dispatch.Result, error) {
	f.calls = append(f.calls, id)
	if err := f.errs[id]; err != nil {
		return nil, err
	}
	return f.results[id], nil
}

func (f *fakeDeliverer) ResumePending(ctx context.Context, id uuid.UUID) (*dispatch.Result, error) {
	return f.Deliver(ctx, id)
}

var fixedNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newMetrics() *metrics.Metrics {
	return metrics.NewMetrics("test", "worker", prometheus.NewRegistry())
}

func TestScheduledRunner_RunOnce(t *testing.T) {
	okMsg, failMsg, partialMsg := uuid.New(), uuid.New(), uuid.New()
	okTicket := &model.ScheduledMessage{ID: uuid.New(), MessageID: okMsg}
	failTicket := &model.ScheduledMessage{ID: uuid.New(), MessageID: failMsg}
	partialTicket := &model.ScheduledMessage{ID: uuid.New(), MessageID: partialMsg}

	tickets := &fakeTickets{due: []*model.ScheduledMessage{okTicket, failTicket, partialTicket}}
	deliverer := &fakeDeliverer{
		results: map[uuid.UUID]*dispatch.Result{
			okMsg:      {MessageID: okMsg, Status: model.MessageStatusPublished, Stats: model.DeliveryStats{Sent: 3}},
			partialMsg: {MessageID: partialMsg, Status: model.MessageStatusPending, Stats: model.DeliveryStats{Sent: 1, Pending: 2}},
		},
		errs: map[uuid.UUID]error{failMsg: errors.New("store unavailable")},
	}
	m := newMetrics()
	runner := NewScheduledRunner(tickets, deliverer, ScheduledRunnerConfig{
		ClaimLimit:   10,
		PollInterval: time.Minute,
		RetryDelay:   5 * time.Minute,
		StaleAfter:   30 * time.Minute,
	}, logger.Nop(), m)
	runner.now = func() time.Time { return fixedNow }

	require.NoError(t, runner.RunOnce(context.Background()))

	assert.Equal(t, []uuid.UUID{okMsg, failMsg, partialMsg}, deliverer.calls)
	assert.Equal(t, []uuid.UUID{okTicket.ID}, tickets.completed)
	assert.Equal(t, fixedNow.Add(-30*time.Minute), tickets.staleBefore)

	require.Contains(t, tickets.released, failTicket.ID)
	assert.Equal(t, fixedNow.Add(5*time.Minute), tickets.released[failTicket.ID].nextRun)
	assert.Equal(t, "store unavailable", tickets.released[failTicket.ID].lastErr)
	assert.Equal(t, "2 deliveries still pending", tickets.released[partialTicket.ID].lastErr)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.ScheduledClaimed))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ScheduledFailed))
}

func TestScheduledRunner_ClaimError(t *testing.T) {
	runner := NewScheduledRunner(&fakeTickets{claimErr: errors.New("db down")}, &fakeDeliverer{}, ScheduledRunnerConfig{
		ClaimLimit: 1, PollInterval: time.Second, RetryDelay: time.Second, StaleAfter: time.Second,
	}, logger.Nop(), newMetrics())

	err := runner.RunOnce(context.Background())

	assert.ErrorContains(t, err, "db down")
}

func TestScheduledRunner_RejectsBadConfig(t *testing.T) {
	assert.Panics(t, func() {
		NewScheduledRunner(&fakeTickets{}, &fakeDeliverer{}, ScheduledRunnerConfig{}, logger.Nop(), newMetrics())
	})
}

func TestScheduledRunner_StartStopsOnCancel(t *testing.T) {
	runner := NewScheduledRunner(&fakeTickets{}, &fakeDeliverer{}, ScheduledRunnerConfig{
		ClaimLimit: 1, PollInterval: time.Millisecond, RetryDelay: time.Second, StaleAfter: time.Second,
	}, logger.Nop(), newMetrics())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		runner.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runner did not stop")
	}
}

type strandedMessages struct {
	repository.MessageRepository

	ids    []uuid.UUID
	cutoff time.Time
	limit  int
}

func (s *strandedMessages) ListStranded(_ context.Context, before time.Time, limit int) ([]uuid.UUID, error) {
	s.cutoff, s.limit = before, limit
	return s.ids, nil
}

func TestStrandedSupervisor_RunOnce(t *testing.T) {
	done, stuck, gone := uuid.New(), uuid.New(), uuid.New()
	repo := &strandedMessages{ids: []uuid.UUID{done, stuck, gone}}
	resumer := &fakeDeliverer{
		results: map[uuid.UUID]*dispatch.Result{
			done:  {Status: model.MessageStatusPublished},
			stuck: {Status: model.MessageStatusPending},
		},
		errs: map[uuid.UUID]error{gone: errors.New("message not found")},
	}
	m := newMetrics()
	sup := NewStrandedSupervisor(repo, resumer, StrandedSupervisorConfig{Interval: time.Minute, StrandedAfter: 15 * time.Minute}, logger.Nop(), m)
	sup.now = func() time.Time { return fixedNow }

	n, err := sup.RunOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, fixedNow.Add(-15*time.Minute), repo.cutoff)
	assert.Equal(t, 50, repo.limit)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.StrandedResumed))
}
