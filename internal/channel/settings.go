package channel

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/churchdesk/admin-api/internal/model"
	"github.com/churchdesk/admin-api/internal/repository"
)

// SettingsSource supplies provider settings to the adapters.
type SettingsSource interface {
	EmailSettings(ctx context.Context) (model.EmailSettings, error)
	SMSSettings(ctx context.Context) (model.SMSSettings, error)
}

// DefaultSettings returns the values used for keys missing from the store.
func DefaultSettings(t model.SettingType) map[string]string {
	switch t {
	case model.SettingTypeEmail:
		return map[string]string{
			model.SettingEmailProvider:    "smtp",
			model.SettingEmailFromName:    "Church Management System",
			model.SettingEmailFromAddress: "noreply@church.com",
			model.SettingSMTPHost:         "smtp.gmail.com",
			model.SettingSMTPPort:         "587",
			model.SettingSMTPUsername:     "",
			model.SettingSMTPPassword:     "",
			model.SettingSMTPEncryption:   "tls",
			model.SettingSESRegion:        "",
		}
	case model.SettingTypeSMS:
		return map[string]string{
			model.SettingSMSProvider:    ProviderNone,
			model.SettingSMSAPIKey:      "",
			model.SettingSMSAPISecret:   "",
			model.SettingSMSSenderID:    "CHURCH",
			model.SettingMaxSMSPerBatch: "100",
			model.SettingSNSRegion:      "",
		}
	default:
		return map[string]string{}
	}
}

// SettingsStore reads communication_settings through the repository and
// caches the merged view per type.
type SettingsStore struct {
	repo  repository.SettingsRepository
	cache *cache.Cache
}

func NewSettingsStore(repo repository.SettingsRepository, ttl time.Duration) *SettingsStore {
	return &SettingsStore{
		repo:  repo,
		cache: cache.New(ttl, 2*ttl),
	}
}

// Values returns defaults overlaid with every non-empty stored value.
func (s *SettingsStore) Values(ctx context.Context, t model.SettingType) (map[string]string, error) {
	if cached, ok := s.cache.Get(string(t)); ok {
		return copyMap(cached.(map[string]string)), nil
	}

	rows, err := s.repo.ListByType(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("load %s settings: %w", t, err)
	}

	values := DefaultSettings(t)
	for _, row := range rows {
		if row.Value != "" {
			values[row.Key] = row.Value
		}
	}

	s.cache.SetDefault(string(t), values)
	return copyMap(values), nil
}

// Invalidate drops the cached view after an update.
func (s *SettingsStore) Invalidate(t model.SettingType) {
	s.cache.Delete(string(t))
}

func (s *SettingsStore) EmailSettings(ctx context.Context) (model.EmailSettings, error) {
	v, err := s.Values(ctx, model.SettingTypeEmail)
	if err != nil {
		return model.EmailSettings{}, err
	}
	return model.EmailSettings{
		Provider:    v[model.SettingEmailProvider],
		FromName:    v[model.SettingEmailFromName],
		FromAddress: v[model.SettingEmailFromAddress],
		SMTPHost:    v[model.SettingSMTPHost],
		SMTPPort:    atoiOr(v[model.SettingSMTPPort], 587),
		Username:    v[model.SettingSMTPUsername],
		Password:    v[model.SettingSMTPPassword],
		Encryption:  v[model.SettingSMTPEncryption],
		SESRegion:   v[model.SettingSESRegion],
	}, nil
}

func (s *SettingsStore) SMSSettings(ctx context.Context) (model.SMSSettings, error) {
	v, err := s.Values(ctx, model.SettingTypeSMS)
	if err != nil {
		return model.SMSSettings{}, err
	}
	return model.SMSSettings{
		Provider:       v[model.SettingSMSProvider],
		APIKey:         v[model.SettingSMSAPIKey],
		APISecret:      v[model.SettingSMSAPISecret],
		SenderID:       v[model.SettingSMSSenderID],
		MaxSMSPerBatch: atoiOr(v[model.SettingMaxSMSPerBatch], 100),
		SNSRegion:      v[model.SettingSNSRegion],
	}, nil
}

func atoiOr(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
