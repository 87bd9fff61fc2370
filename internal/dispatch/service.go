package dispatch

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/churchdesk/admin-api/internal/channel"
	"github.com/churchdesk/admin-api/internal/model"
	"github.com/churchdesk/admin-api/internal/repository"
	"github.com/churchdesk/admin-api/pkg/errors"
	"github.com/churchdesk/admin-api/pkg/logger"
	"github.com/churchdesk/admin-api/pkg/messaging"
	"github.com/churchdesk/admin-api/pkg/metrics"
)

type Action string

const (
	ActionSend     Action = "send"
	ActionSchedule Action = "schedule"
)

// Request is a validated-on-entry dispatch command.
type Request struct {
	Title         string
	Content       string
	MessageType   string
	Channels      []model.Channel
	AudienceType  string
	AudienceValue string
	GroupID       *int64
	MemberIDs     []int64
	Action        Action
	// ScheduledAt is RFC3339 and required for ActionSchedule.
	ScheduledAt string
}

type Result struct {
	MessageID       uuid.UUID           `json:"message_id"`
	TotalRecipients int                 `json:"total_recipients"`
	Status          model.MessageStatus `json:"status"`
	Stats           model.DeliveryStats `json:"delivery_stats"`
}

type Config struct {
	Queue           QueueConfig
	ActivityLogSize int
}

type Dependencies struct {
	Audience  repository.AudienceRepository
	Messages  repository.MessageRepository
	Activity  repository.ActivityRepository
	Channels  *channel.Registry
	// Settings supplies max_sms_per_batch. Optional.
	Settings  channel.SettingsSource
	Publisher messaging.Publisher
	Metrics   *metrics.Metrics
	Logger    *logger.Logger
}

type DispatchServicer interface {
	Dispatch(ctx context.Context, req Request) (*Result, error)
	Deliver(ctx context.Context, messageID uuid.UUID) (*Result, error)
	ResumePending(ctx context.Context, messageID uuid.UUID) (*Result, error)
	Recipients(ctx context.Context, sel Audience) ([]model.RecipientIdentity, error)
}

// Service creates messages and drives their delivery.
type Service struct {
	resolver  *Resolver
	messages  repository.MessageRepository
	activity  repository.ActivityRepository
	channels  *channel.Registry
	settings  channel.SettingsSource
	queue     *Queue
	publisher messaging.Publisher
	metrics   *metrics.Metrics
	logger    *logger.Logger
	keep      int
	now       func() time.Time
}

func NewService(cfg Config, deps Dependencies) *Service {
	if cfg.ActivityLogSize <= 0 {
		cfg.ActivityLogSize = 4
	}
	if deps.Publisher == nil {
		deps.Publisher = messaging.NopPublisher{}
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewMetrics("churchdesk", "dispatch", prometheus.NewRegistry())
	}
	return &Service{
		resolver:  NewResolver(deps.Audience),
		messages:  deps.Messages,
		activity:  deps.Activity,
		channels:  deps.Channels,
		settings:  deps.Settings,
		queue:     NewQueue(cfg.Queue),
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		keep:      cfg.ActivityLogSize,
		now:       time.Now,
	}
}

type plan struct {
	channels    []model.Channel
	audience    model.AudienceSpec
	scheduledAt *time.Time
}

func (s *Service) validate(req Request) (*plan, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, errors.InvalidRequest("title is required")
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, errors.InvalidRequest("content is required")
	}
	if len(req.Channels) == 0 {
		return nil, errors.InvalidRequest("at least one delivery channel is required")
	}
	for _, ch := range req.Channels {
		if !ch.Valid() {
			return nil, errors.InvalidRequest(fmt.Sprintf("unsupported delivery channel %q", ch))
		}
	}

	p := &plan{channels: uniqueChannels(req.Channels)}

	switch req.Action {
	case ActionSend, "":
	case ActionSchedule:
		if req.ScheduledAt == "" {
			return nil, errors.InvalidRequest("scheduled_at is required when scheduling")
		}
		at, err := time.Parse(time.RFC3339, req.ScheduledAt)
		if err != nil {
			return nil, errors.InvalidRequest("scheduled_at must be an RFC3339 timestamp")
		}
		at = at.UTC()
		p.scheduledAt = &at
	default:
		return nil, errors.InvalidRequest(fmt.Sprintf("unsupported action %q", req.Action))
	}

	audience, err := Audience{
		Type:      req.AudienceType,
		Value:     req.AudienceValue,
		GroupID:   req.GroupID,
		MemberIDs: req.MemberIDs,
	}.spec()
	if err != nil {
		return nil, err
	}
	p.audience = audience
	return p, nil
}

// Audience is the raw audience selection of a request.
type Audience struct {
	Type      string
	Value     string
	GroupID   *int64
	MemberIDs []int64
}

func (a Audience) spec() (model.AudienceSpec, error) {
	t, ok := model.ParseAudienceType(a.Type)
	if !ok {
		return model.AudienceSpec{}, errors.InvalidAudience("unknown audience type: " + a.Type)
	}
	return model.AudienceSpec{
		Type:      t,
		Value:     strings.TrimSpace(a.Value),
		GroupID:   a.GroupID,
		MemberIDs: a.MemberIDs,
	}, nil
}

// Recipients resolves an audience without writing anything. An empty
// audience is not an error here.
func (s *Service) Recipients(ctx context.Context, sel Audience) ([]model.RecipientIdentity, error) {
	audience, err := sel.spec()
	if err != nil {
		return nil, err
	}
	found, err := s.resolver.Resolve(ctx, audience)
	if err != nil {
		return nil, err
	}
	if found == nil {
		found = []model.RecipientIdentity{}
	}
	return found, nil
}

// Dispatch validates the request, resolves the audience, persists the
// message with its rows and either delivers immediately or leaves a
// schedule ticket for the worker.
func (s *Service) Dispatch(ctx context.Context, req Request) (*Result, error) {
	res, err := s.dispatch(ctx, req)
	if err != nil {
		s.metrics.DispatchErrors.WithLabelValues(string(errors.CodeOf(err))).Inc()
		return nil, err
	}
	return res, nil
}

func (s *Service) dispatch(ctx context.Context, req Request) (*Result, error) {
	p, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	recipients, err := s.resolver.Resolve(ctx, p.audience)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	msg := &model.Message{
		ID:        uuid.New(),
		Type:      req.MessageType,
		Title:     strings.TrimSpace(req.Title),
		Content:   req.Content,
		Channels:  p.channels,
		Status:    model.MessageStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if msg.Type == "" {
		msg.Type = model.DefaultMessageType
	}

	fan, err := FanOut(msg.ID, recipients, p.channels)
	if err != nil {
		return nil, err
	}
	msg.TotalRecipients = fan.Total

	var ticket *model.ScheduledMessage
	if p.scheduledAt != nil {
		msg.Status = model.MessageStatusScheduled
		msg.ScheduledAt = p.scheduledAt
		ticket = &model.ScheduledMessage{
			ID:            uuid.New(),
			MessageID:     msg.ID,
			ScheduledTime: *p.scheduledAt,
			Status:        model.ScheduleStatusPending,
			NextRun:       *p.scheduledAt,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
	}

	if err := s.messages.CreateWithRecipients(ctx, msg, fan.Rows, ticket); err != nil {
		return nil, errors.StoreUnavailable("message creation", err)
	}

	log := s.logger.WithFields(map[string]interface{}{"message_id": msg.ID.String()})
	if ticket != nil {
		log.Info("message scheduled", "recipients", fan.Total, "scheduled_at", p.scheduledAt.Format(time.RFC3339))
		s.metrics.MessagesTotal.WithLabelValues(string(model.MessageStatusScheduled)).Inc()
		s.publish(ctx, messaging.Event{
			Type:            messaging.EventMessageScheduled,
			MessageID:       msg.ID,
			Status:          string(msg.Status),
			TotalRecipients: msg.TotalRecipients,
			ScheduledAt:     msg.ScheduledAt,
			OccurredAt:      now,
		})
		return &Result{MessageID: msg.ID, TotalRecipients: fan.Total, Status: msg.Status}, nil
	}

	log.Info("message created", "recipients", fan.Total, "channels", len(p.channels))

	// Delivery outlives the request once the rows are committed.
	return s.deliver(context.WithoutCancel(ctx), msg, fan.Rows)
}

// Deliver sends every pending row of a pending or scheduled message and
// finalizes it. Already published messages return their stored totals.
func (s *Service) Deliver(ctx context.Context, messageID uuid.UUID) (*Result, error) {
	msg, err := s.load(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.Status == model.MessageStatusPublished {
		return publishedResult(msg), nil
	}

	rows, err := s.messages.PendingRecipients(ctx, messageID)
	if err != nil {
		return nil, errors.StoreUnavailable("pending recipient lookup", err)
	}
	return s.deliver(ctx, msg, rows)
}

// ResumePending finishes an interrupted immediate dispatch. It is safe to
// call repeatedly. Scheduled messages are left to the scheduled runner.
func (s *Service) ResumePending(ctx context.Context, messageID uuid.UUID) (*Result, error) {
	msg, err := s.load(ctx, messageID)
	if err != nil {
		return nil, err
	}
	switch msg.Status {
	case model.MessageStatusPublished:
		return publishedResult(msg), nil
	case model.MessageStatusScheduled:
		return nil, errors.InvalidRequest("message is scheduled; it will be delivered by the scheduler")
	}

	rows, err := s.messages.PendingRecipients(ctx, messageID)
	if err != nil {
		return nil, errors.StoreUnavailable("pending recipient lookup", err)
	}
	s.logger.Info("resuming message delivery", "message_id", messageID.String(), "pending", len(rows))
	return s.deliver(ctx, msg, rows)
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*model.Message, error) {
	msg, err := s.messages.Get(ctx, id)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.NotFound("message", err)
		}
		return nil, errors.StoreUnavailable("message lookup", err)
	}
	return msg, nil
}

func publishedResult(msg *model.Message) *Result {
	return &Result{
		MessageID:       msg.ID,
		TotalRecipients: msg.TotalRecipients,
		Status:          msg.Status,
		Stats:           model.DeliveryStats{Sent: msg.TotalSent, Failed: msg.TotalFailed},
	}
}

func (s *Service) deliver(ctx context.Context, msg *model.Message, rows []*model.MessageRecipient) (*Result, error) {
	if err := s.queue.Run(ctx, len(rows), func(ctx context.Context, i int) {
		s.deliverRow(ctx, msg, rows[i])
	}, s.smsLimit(ctx, rows)...); err != nil {
		s.logger.Warn("delivery interrupted", "message_id", msg.ID.String(), "error", err.Error())
	}
	return s.finalize(ctx, msg)
}

// smsLimit caps SMS rows per batch at the configured max_sms_per_batch.
func (s *Service) smsLimit(ctx context.Context, rows []*model.MessageRecipient) []Limit {
	if s.settings == nil {
		return nil
	}
	hasSMS := false
	for _, row := range rows {
		if row.Channel == model.ChannelSMS {
			hasSMS = true
			break
		}
	}
	if !hasSMS {
		return nil
	}

	sms, err := s.settings.SMSSettings(ctx)
	if err != nil {
		s.logger.Warn("sms batch limit unavailable, using queue batch size", "error", err.Error())
		return nil
	}
	if sms.MaxSMSPerBatch <= 0 {
		return nil
	}
	return []Limit{{
		Max:   sms.MaxSMSPerBatch,
		Match: func(i int) bool { return rows[i].Channel == model.ChannelSMS },
	}}
}

func (s *Service) deliverRow(ctx context.Context, msg *model.Message, row *model.MessageRecipient) {
	s.metrics.QueueInFlight.Inc()
	defer s.metrics.QueueInFlight.Dec()

	start := s.now()
	out := s.send(ctx, msg, row)
	s.metrics.DeliveryLatency.WithLabelValues(string(row.Channel)).Observe(time.Since(start).Seconds())

	outcome := "sent"
	if !out.Success {
		outcome = "failed"
	}
	s.metrics.DeliveriesTotal.WithLabelValues(string(row.Channel), out.Provider, outcome).Inc()

	var err error
	if out.Success {
		err = s.messages.MarkRecipientSent(ctx, row.ID, s.now().UTC())
	} else {
		s.logger.Warn("delivery failed",
			"message_id", msg.ID.String(),
			"recipient_id", row.RecipientID,
			"channel", string(row.Channel),
			"provider", out.Provider,
			"error", out.ErrorDetail)
		err = s.messages.MarkRecipientFailed(ctx, row.ID, out.ErrorDetail)
	}
	if err != nil {
		// The row stays pending and is picked up by ResumePending.
		s.logger.Error(err, "failed to record delivery outcome",
			"message_id", msg.ID.String(), "row_id", row.ID.String())
	}
}

// send never panics; an adapter panic becomes a failed outcome.
func (s *Service) send(ctx context.Context, msg *model.Message, row *model.MessageRecipient) (out channel.Outcome) {
	adapter, err := s.channels.For(row.Channel)
	if err != nil {
		return channel.Outcome{ErrorDetail: err.Error()}
	}

	defer func() {
		if p := recover(); p != nil {
			out = channel.Outcome{ErrorDetail: fmt.Sprintf("adapter panic: %v", p)}
		}
	}()
	return adapter.Send(ctx, row.Destination(), msg.Title, msg.Content)
}

func (s *Service) finalize(ctx context.Context, msg *model.Message) (*Result, error) {
	stats, err := s.messages.DeliveryStats(ctx, msg.ID)
	if err != nil {
		return nil, errors.StoreUnavailable("delivery stats", err)
	}

	if stats.Pending > 0 {
		// Some outcomes were not recorded. Leave the message pending for
		// the stranded supervisor.
		s.logger.Warn("message left pending", "message_id", msg.ID.String(), "pending", stats.Pending)
		return &Result{
			MessageID:       msg.ID,
			TotalRecipients: msg.TotalRecipients,
			Status:          model.MessageStatusPending,
			Stats:           stats,
		}, nil
	}

	now := s.now().UTC()
	if err := s.messages.Finalize(ctx, msg.ID, stats, now); err != nil {
		return nil, errors.StoreUnavailable("message finalize", err)
	}
	msg.Status = model.MessageStatusPublished
	msg.TotalSent, msg.TotalFailed = stats.Sent, stats.Failed
	msg.SentAt = &now

	s.logger.Info("message published",
		"message_id", msg.ID.String(), "sent", stats.Sent, "failed", stats.Failed)
	s.metrics.MessagesTotal.WithLabelValues(string(model.MessageStatusPublished)).Inc()

	s.recordActivity(ctx, msg)
	s.publish(ctx, messaging.Event{
		Type:            messaging.EventMessagePublished,
		MessageID:       msg.ID,
		Status:          string(msg.Status),
		TotalRecipients: msg.TotalRecipients,
		Sent:            stats.Sent,
		Failed:          stats.Failed,
		OccurredAt:      now,
	})

	return &Result{
		MessageID:       msg.ID,
		TotalRecipients: msg.TotalRecipients,
		Status:          msg.Status,
		Stats:           stats,
	}, nil
}

func (s *Service) recordActivity(ctx context.Context, msg *model.Message) {
	id := msg.ID
	entry := &model.Activity{
		Type:        model.ActivityMessageSent,
		Title:       "Message sent",
		Description: fmt.Sprintf("%s sent to %d recipients", msg.Title, msg.TotalRecipients),
		Icon:        "message",
		RelatedID:   &id,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.activity.Record(ctx, entry, s.keep); err != nil {
		s.logger.Error(err, "failed to log message activity", "message_id", msg.ID.String())
	}
}

func (s *Service) publish(ctx context.Context, event messaging.Event) {
	status := "ok"
	if err := s.publisher.Publish(ctx, event); err != nil {
		status = "error"
		s.logger.Warn("failed to publish event",
			"event", event.Type, "message_id", event.MessageID.String(), "error", err.Error())
	}
	s.metrics.EventPublishes.WithLabelValues(event.Type, status).Inc()
}
