package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/churchdesk/admin-api/internal/model"
	"github.com/churchdesk/admin-api/internal/repository"
)

type activityRepository struct {
	BaseRepository
}

func NewActivityRepository(base BaseRepository) repository.ActivityRepository {
	return &activityRepository{base}
}

func (r *activityRepository) Record(ctx context.Context, activity *model.Activity, keep int) error {
	insert := `
		INSERT INTO activity_log (activity_type, title, description, icon, related_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	trim := `
		DELETE FROM activity_log
		WHERE id NOT IN (
			SELECT id FROM activity_log
			ORDER BY created_at DESC, id DESC
			LIMIT $1
		)`

	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = time.Now().UTC()
	}

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.QueryRowxContext(ctx, insert,
			activity.Type,
			activity.Title,
			activity.Description,
			activity.Icon,
			activity.RelatedID,
			activity.CreatedAt,
		).Scan(&activity.ID)
		if err != nil {
			return fmt.Errorf("failed to insert activity: %w", err)
		}

		if _, err := tx.ExecContext(ctx, trim, keep); err != nil {
			return fmt.Errorf("failed to trim activity log: %w", err)
		}
		return nil
	})
}

func (r *activityRepository) ListRecent(ctx context.Context, limit int) ([]*model.Activity, error) {
	query := `
		SELECT id, activity_type, title, description, icon, related_id, created_at
		FROM activity_log
		ORDER BY created_at DESC, id DESC
		LIMIT $1`

	var out []*model.Activity
	if err := r.db.SelectContext(ctx, &out, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	return out, nil
}
