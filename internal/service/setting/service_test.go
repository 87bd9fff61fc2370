package setting

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/churchdesk/admin-api/internal/channel"
	"github.com/churchdesk/admin-api/internal/model"
	apperrors "github.com/churchdesk/admin-api/pkg/errors"
)

type memSettings struct {
	upserted    []*model.Setting
	err         error
	invalidated []model.SettingType
	values      map[model.SettingType]map[string]string
}

func (m *memSettings) ListByType(context.Context, model.SettingType) ([]*model.Setting, error) {
	return nil, nil
}

func (m *memSettings) Upsert(_ context.Context, rows []*model.Setting) error {
	if m.err != nil {
		return m.err
	}
	m.upserted = append(m.upserted, rows...)
	return nil
}

func (m *memSettings) Values(_ context.Context, t model.SettingType) (map[string]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := map[string]string{}
	for k, v := range m.values[t] {
		out[k] = v
	}
	return out, nil
}

func (m *memSettings) Invalidate(t model.SettingType) {
	m.invalidated = append(m.invalidated, t)
}

type captureAdapter struct {
	dest, subject, body string
	outcome             channel.Outcome
}

func (c *captureAdapter) Send(_ context.Context, dest, subject, body string) channel.Outcome {
	c.dest, c.subject, c.body = dest, subject, body
	return c.outcome
}

func TestGetSettings_MasksSecrets(t *testing.T) {
	store := &memSettings{values: map[model.SettingType]map[string]string{
		model.SettingTypeSMS: {
			model.SettingSMSProvider:  "twilio",
			model.SettingSMSAPIKey:    "AC123",
			model.SettingSMSAPISecret: "",
		},
	}}
	svc := NewService(store, store, nil, nil)

	values, err := svc.GetSettings(context.Background(), model.SettingTypeSMS)

	require.NoError(t, err)
	assert.Equal(t, "twilio", values[model.SettingSMSProvider])
	assert.Equal(t, Mask, values[model.SettingSMSAPIKey])
	assert.Equal(t, "", values[model.SettingSMSAPISecret])
}

func TestGetSettings_UnknownType(t *testing.T) {
	store := &memSettings{}
	svc := NewService(store, store, nil, nil)

	_, err := svc.GetSettings(context.Background(), "push")

	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidRequest))
}

func TestUpdateSettings_KnownKeysOnly(t *testing.T) {
	store := &memSettings{}
	svc := NewService(store, store, nil, nil)

	err := svc.UpdateSettings(context.Background(), model.SettingTypeEmail, map[string]string{
		model.SettingSMTPHost:     " mail.example.org ",
		model.SettingSMTPPassword: Mask,
		"favourite_colour":        "blue",
		model.SettingSMSSenderID:  "NOPE",
	})

	require.NoError(t, err)
	require.Len(t, store.upserted, 1)
	assert.Equal(t, model.SettingSMTPHost, store.upserted[0].Key)
	assert.Equal(t, "mail.example.org", store.upserted[0].Value)
	assert.Equal(t, model.SettingTypeEmail, store.upserted[0].Type)
	assert.Equal(t, []model.SettingType{model.SettingTypeEmail}, store.invalidated)
}

func TestUpdateSettings_NothingRecognised(t *testing.T) {
	store := &memSettings{}
	svc := NewService(store, store, nil, nil)

	err := svc.UpdateSettings(context.Background(), model.SettingTypeSMS, map[string]string{"foo": "bar"})

	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidRequest))
	assert.Empty(t, store.invalidated)
}

func TestUpdateSettings_StoreDown(t *testing.T) {
	store := &memSettings{err: errors.New("db down")}
	svc := NewService(store, store, nil, nil)

	err := svc.UpdateSettings(context.Background(), model.SettingTypeSMS, map[string]string{model.SettingSMSProvider: "sns"})

	assert.True(t, apperrors.Is(err, apperrors.ErrStoreUnavailable))
	assert.Empty(t, store.invalidated)
}

func TestTestSend(t *testing.T) {
	email := &captureAdapter{outcome: channel.Outcome{Success: true, Provider: "smtp"}}
	sms := &captureAdapter{outcome: channel.Outcome{Provider: "twilio", ErrorDetail: "twilio credentials not configured"}}
	store := &memSettings{}
	svc := NewService(store, store, channel.NewRegistry(email, sms), nil)

	out, err := svc.TestSend(context.Background(), model.SettingTypeEmail, "pastor@example.org")
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, "pastor@example.org", email.dest)
	assert.Equal(t, TestEmailSubject, email.subject)
	assert.Equal(t, TestEmailBody, email.body)

	out, err = svc.TestSend(context.Background(), model.SettingTypeSMS, "+15550001")
	require.NoError(t, err)
	assert.False(t, out.Success)
	assert.Equal(t, "twilio credentials not configured", out.ErrorDetail)
	assert.Equal(t, TestSMSBody, sms.body)
}

func TestTestSend_Validation(t *testing.T) {
	store := &memSettings{}
	svc := NewService(store, store, channel.NewRegistry(&captureAdapter{}, &captureAdapter{}), nil)

	_, err := svc.TestSend(context.Background(), model.SettingTypeEmail, "  ")
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidRequest))

	_, err = svc.TestSend(context.Background(), "fax", "123")
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidRequest))
}
