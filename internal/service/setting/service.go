package setting

import (
	"context"
	"strings"

	"github.com/churchdesk/admin-api/internal/channel"
	"github.com/churchdesk/admin-api/internal/model"
	"github.com/churchdesk/admin-api/internal/repository"
	"github.com/churchdesk/admin-api/pkg/errors"
	"github.com/churchdesk/admin-api/pkg/logger"
)

// Mask replaces stored secrets on read. Writing it back leaves the secret unchanged.
const Mask = "********"

const (
	TestEmailSubject = "Test Email - Church Management System"
	TestEmailBody    = "This is a test email. If you receive this, your email configuration is working correctly!"
	TestSMSBody      = "Test SMS from Church Management System. Your SMS is working!"
)

type SettingServicer interface {
	GetSettings(ctx context.Context, t model.SettingType) (map[string]string, error)
	UpdateSettings(ctx context.Context, t model.SettingType, values map[string]string) error
	TestSend(ctx context.Context, t model.SettingType, destination string) (channel.Outcome, error)
}

// Store is the cached, defaults-merged view of the settings table.
type Store interface {
	Values(ctx context.Context, t model.SettingType) (map[string]string, error)
	Invalidate(t model.SettingType)
}

type Service struct {
	repo     repository.SettingsRepository
	store    Store
	channels *channel.Registry
	log      *logger.Logger
}

func NewService(repo repository.SettingsRepository, store Store, channels *channel.Registry, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		repo:     repo,
		store:    store,
		channels: channels,
		log:      log,
	}
}

func (s *Service) GetSettings(ctx context.Context, t model.SettingType) (map[string]string, error) {
	if !t.Valid() {
		return nil, errors.InvalidRequest("unknown setting type: " + string(t))
	}

	values, err := s.store.Values(ctx, t)
	if err != nil {
		return nil, errors.StoreUnavailable("settings lookup", err)
	}
	for k, v := range values {
		if model.SecretSettingKeys[k] && v != "" {
			values[k] = Mask
		}
	}
	return values, nil
}

// UpdateSettings upserts the known keys of t. Unknown keys are dropped.
func (s *Service) UpdateSettings(ctx context.Context, t model.SettingType, values map[string]string) error {
	if !t.Valid() {
		return errors.InvalidRequest("unknown setting type: " + string(t))
	}

	var rows []*model.Setting
	for _, key := range model.SettingKeys[t] {
		v, ok := values[key]
		if !ok {
			continue
		}
		if model.SecretSettingKeys[key] && v == Mask {
			continue
		}
		rows = append(rows, &model.Setting{Key: key, Value: strings.TrimSpace(v), Type: t})
	}
	if len(rows) == 0 {
		return errors.InvalidRequest("no recognised settings in request")
	}

	if err := s.repo.Upsert(ctx, rows); err != nil {
		return errors.StoreUnavailable("settings update", err)
	}
	s.store.Invalidate(t)

	s.log.Info("communication settings updated", "setting_type", t, "keys", len(rows))
	return nil
}

// TestSend pushes a fixed test message through the configured provider.
// A provider failure is reported in the outcome, not as an error.
func (s *Service) TestSend(ctx context.Context, t model.SettingType, destination string) (channel.Outcome, error) {
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return channel.Outcome{}, errors.InvalidRequest("test destination is required")
	}

	var (
		ch      model.Channel
		subject string
		body    string
	)
	switch t {
	case model.SettingTypeEmail:
		ch, subject, body = model.ChannelEmail, TestEmailSubject, TestEmailBody
	case model.SettingTypeSMS:
		ch, body = model.ChannelSMS, TestSMSBody
	default:
		return channel.Outcome{}, errors.InvalidRequest("unknown setting type: " + string(t))
	}

	adapter, err := s.channels.For(ch)
	if err != nil {
		return channel.Outcome{}, errors.Internal(err)
	}

	out := adapter.Send(ctx, destination, subject, body)
	if !out.Success {
		s.log.Warn("test send failed", "channel", ch, "provider", out.Provider, "error", out.ErrorDetail)
	}
	return out, nil
}
