package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/churchdesk/admin-api/internal/model"
	"github.com/churchdesk/admin-api/internal/repository"
)

type settingsRepository struct {
	BaseRepository
}

func NewSettingsRepository(base BaseRepository) repository.SettingsRepository {
	return &settingsRepository{base}
}

func (r *settingsRepository) ListByType(ctx context.Context, settingType model.SettingType) ([]*model.Setting, error) {
	query := `
		SELECT setting_key, setting_value, setting_type, description, updated_at
		FROM communication_settings
		WHERE setting_type = $1
		ORDER BY setting_key`

	var out []*model.Setting
	if err := r.db.SelectContext(ctx, &out, query, settingType); err != nil {
		return nil, fmt.Errorf("failed to list %s settings: %w", settingType, err)
	}
	return out, nil
}

func (r *settingsRepository) Upsert(ctx context.Context, settings []*model.Setting) error {
	query := `
		INSERT INTO communication_settings (setting_key, setting_value, setting_type, description, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (setting_key) DO UPDATE SET
			setting_value = EXCLUDED.setting_value,
			setting_type = EXCLUDED.setting_type,
			updated_at = EXCLUDED.updated_at`

	now := time.Now()
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		for _, s := range settings {
			s.UpdatedAt = now
			if _, err := tx.ExecContext(ctx, query, s.Key, s.Value, s.Type, s.Description, s.UpdatedAt); err != nil {
				return fmt.Errorf("failed to upsert setting %s: %w", s.Key, err)
			}
		}
		return nil
	})
}
