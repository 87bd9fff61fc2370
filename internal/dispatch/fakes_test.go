package dispatch

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/churchdesk/admin-api/internal/channel"
	"github.com/churchdesk/admin-api/internal/model"
	"github.com/churchdesk/admin-api/internal/repository"
)

type fakeAudience struct {
	members    []model.RecipientIdentity
	byGroup    map[string][]model.RecipientIdentity
	byMinistry map[string][]model.RecipientIdentity
	byCustom   map[int64][]model.RecipientIdentity
	users      []model.RecipientIdentity
	err        error
	calls      int
}

func (f *fakeAudience) ActiveMembers(context.Context) ([]model.RecipientIdentity, error) {
	f.calls++
	return f.members, f.err
}

func (f *fakeAudience) MembersByChurchGroup(_ context.Context, g string) ([]model.RecipientIdentity, error) {
	f.calls++
	return f.byGroup[g], f.err
}

func (f *fakeAudience) MembersByMinistry(_ context.Context, m string) ([]model.RecipientIdentity, error) {
	f.calls++
	return f.byMinistry[m], f.err
}

func (f *fakeAudience) MembersByCustomGroup(_ context.Context, id int64) ([]model.RecipientIdentity, error) {
	f.calls++
	return f.byCustom[id], f.err
}

func (f *fakeAudience) MembersByIDs(_ context.Context, ids []int64) ([]model.RecipientIdentity, error) {
	f.calls++
	var out []model.RecipientIdentity
	for _, id := range ids {
		for _, m := range f.members {
			if m.ID == id {
				out = append(out, m)
			}
		}
	}
	return out, f.err
}

func (f *fakeAudience) EnabledUsers(context.Context) ([]model.RecipientIdentity, error) {
	f.calls++
	return f.users, f.err
}

// memMessages is an in-memory MessageRepository.
type memMessages struct {
	mu        sync.Mutex
	messages  map[uuid.UUID]*model.Message
	rows      map[uuid.UUID][]*model.MessageRecipient
	tickets   map[uuid.UUID]*model.ScheduledMessage
	createErr error
	markErr   map[uuid.UUID]error
}

func newMemMessages() *memMessages {
	return &memMessages{
		messages: make(map[uuid.UUID]*model.Message),
		rows:     make(map[uuid.UUID][]*model.MessageRecipient),
		tickets:  make(map[uuid.UUID]*model.ScheduledMessage),
		markErr:  make(map[uuid.UUID]error),
	}
}

func (m *memMessages) CreateWithRecipients(_ context.Context, msg *model.Message, rows []*model.MessageRecipient, ticket *model.ScheduledMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	cp := *msg
	m.messages[msg.ID] = &cp
	for _, r := range rows {
		rc := *r
		m.rows[msg.ID] = append(m.rows[msg.ID], &rc)
	}
	if ticket != nil {
		tc := *ticket
		m.tickets[msg.ID] = &tc
	}
	return nil
}

func (m *memMessages) Get(_ context.Context, id uuid.UUID) (*model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *msg
	return &cp, nil
}

func (m *memMessages) List(context.Context, model.MessageFilter) ([]*model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Message
	for _, msg := range m.messages {
		out = append(out, msg)
	}
	return out, nil
}

func (m *memMessages) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.messages, id)
	delete(m.rows, id)
	delete(m.tickets, id)
	return nil
}

func (m *memMessages) Recipients(_ context.Context, id uuid.UUID) ([]*model.MessageRecipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[id], nil
}

func (m *memMessages) PendingRecipients(_ context.Context, id uuid.UUID) ([]*model.MessageRecipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.MessageRecipient
	for _, r := range m.rows[id] {
		if r.Status == model.DeliveryStatusPending {
			rc := *r
			out = append(out, &rc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func (m *memMessages) findRow(id uuid.UUID) *model.MessageRecipient {
	for _, rows := range m.rows {
		for _, r := range rows {
			if r.ID == id {
				return r
			}
		}
	}
	return nil
}

func (m *memMessages) MarkRecipientSent(_ context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.markErr[id]; err != nil {
		return err
	}
	r := m.findRow(id)
	if r == nil || r.Status != model.DeliveryStatusPending {
		return repository.ErrNotFound
	}
	r.Status = model.DeliveryStatusSent
	r.SentAt = &at
	return nil
}

func (m *memMessages) MarkRecipientFailed(_ context.Context, id uuid.UUID, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.markErr[id]; err != nil {
		return err
	}
	r := m.findRow(id)
	if r == nil || r.Status != model.DeliveryStatusPending {
		return repository.ErrNotFound
	}
	r.Status = model.DeliveryStatusFailed
	r.ErrorMessage = &errMsg
	return nil
}

func (m *memMessages) DeliveryStats(_ context.Context, id uuid.UUID) (model.DeliveryStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var s model.DeliveryStats
	for _, r := range m.rows[id] {
		switch r.Status {
		case model.DeliveryStatusSent:
			s.Sent++
		case model.DeliveryStatusFailed:
			s.Failed++
		default:
			s.Pending++
		}
	}
	return s, nil
}

func (m *memMessages) Finalize(_ context.Context, id uuid.UUID, stats model.DeliveryStats, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok {
		return repository.ErrNotFound
	}
	msg.Status = model.MessageStatusPublished
	msg.TotalSent, msg.TotalFailed = stats.Sent, stats.Failed
	msg.SentAt = &at
	return nil
}

func (m *memMessages) ListStranded(context.Context, time.Time, int) ([]uuid.UUID, error) {
	return nil, nil
}

func (m *memMessages) Stats(context.Context) (*model.CommunicationStats, error) {
	return &model.CommunicationStats{}, nil
}

func (m *memMessages) rowsOf(id uuid.UUID) []*model.MessageRecipient {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[id]
}

type memActivity struct {
	mu      sync.Mutex
	entries []*model.Activity
	err     error
}

func (a *memActivity) Record(_ context.Context, e *model.Activity, keep int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.entries = append([]*model.Activity{e}, a.entries...)
	if len(a.entries) > keep {
		a.entries = a.entries[:keep]
	}
	return nil
}

func (a *memActivity) ListRecent(_ context.Context, limit int) ([]*model.Activity, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if limit < len(a.entries) {
		return a.entries[:limit], nil
	}
	return a.entries, nil
}

// recordingAdapter succeeds unless fail or panicOn says otherwise.
type recordingAdapter struct {
	mu      sync.Mutex
	sent    []string
	fail    map[string]string
	panicOn map[string]bool
}

func (r *recordingAdapter) Send(_ context.Context, dest, _, _ string) channel.Outcome {
	r.mu.Lock()
	r.sent = append(r.sent, dest)
	r.mu.Unlock()

	if r.panicOn[dest] {
		panic("provider exploded")
	}
	if msg, ok := r.fail[dest]; ok {
		return channel.Outcome{Provider: "fake", ErrorDetail: msg}
	}
	return channel.Outcome{Success: true, Provider: "fake"}
}

func (r *recordingAdapter) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sent...)
}
