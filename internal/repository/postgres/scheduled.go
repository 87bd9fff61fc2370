package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/churchdesk/admin-api/internal/model"
	"github.com/churchdesk/admin-api/internal/repository"
)

type scheduledMessageRepository struct {
	BaseRepository
}

func NewScheduledMessageRepository(base BaseRepository) repository.ScheduledMessageRepository {
	return &scheduledMessageRepository{base}
}

const scheduledColumns = `
	id, message_id, scheduled_time, status, next_run, attempts, last_error,
	created_at, updated_at`

// ClaimDue locks due pending tickets, skipping rows another worker holds,
// and flips them to processing before the lock is released.
func (r *scheduledMessageRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*model.ScheduledMessage, error) {
	selectQuery := `
		SELECT ` + scheduledColumns + `
		FROM scheduled_messages
		WHERE status = $1 AND next_run <= $2
		ORDER BY next_run
		LIMIT $3
		FOR UPDATE SKIP LOCKED`

	claimQuery := `
		UPDATE scheduled_messages
		SET status = $1, attempts = attempts + 1, updated_at = $2
		WHERE id = ANY($3)`

	var tickets []*model.ScheduledMessage
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := tx.SelectContext(ctx, &tickets, selectQuery, model.ScheduleStatusPending, now, limit); err != nil {
			return fmt.Errorf("failed to select due tickets: %w", err)
		}
		if len(tickets) == 0 {
			return nil
		}

		ids := make([]string, len(tickets))
		for i, t := range tickets {
			ids[i] = t.ID.String()
		}
		if _, err := tx.ExecContext(ctx, claimQuery, model.ScheduleStatusProcessing, now, pq.Array(ids)); err != nil {
			return fmt.Errorf("failed to claim due tickets: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, t := range tickets {
		t.Status = model.ScheduleStatusProcessing
		t.Attempts++
		t.UpdatedAt = now
	}
	return tickets, nil
}

func (r *scheduledMessageRepository) Complete(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE scheduled_messages
		SET status = $1, last_error = NULL, updated_at = NOW()
		WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, model.ScheduleStatusCompleted, id)
	if err != nil {
		return fmt.Errorf("failed to complete scheduled message: %w", err)
	}
	return mustAffect(result, "scheduled message")
}

// Release hands a failed ticket back to the pool for a later attempt.
func (r *scheduledMessageRepository) Release(ctx context.Context, id uuid.UUID, nextRun time.Time, lastErr string) error {
	query := `
		UPDATE scheduled_messages
		SET status = $1, next_run = $2, last_error = $3, updated_at = NOW()
		WHERE id = $4`

	result, err := r.db.ExecContext(ctx, query, model.ScheduleStatusPending, nextRun, lastErr, id)
	if err != nil {
		return fmt.Errorf("failed to release scheduled message: %w", err)
	}
	return mustAffect(result, "scheduled message")
}

// RequeueStale returns processing tickets abandoned by a crashed worker.
func (r *scheduledMessageRepository) RequeueStale(ctx context.Context, updatedBefore time.Time) (int64, error) {
	query := `
		UPDATE scheduled_messages
		SET status = $1, updated_at = NOW()
		WHERE status = $2 AND updated_at < $3`

	result, err := r.db.ExecContext(ctx, query, model.ScheduleStatusPending, model.ScheduleStatusProcessing, updatedBefore)
	if err != nil {
		return 0, fmt.Errorf("failed to requeue stale tickets: %w", err)
	}
	return result.RowsAffected()
}

// Cancel only affects a ticket that has not been claimed yet.
func (r *scheduledMessageRepository) Cancel(ctx context.Context, messageID uuid.UUID) error {
	query := `
		UPDATE scheduled_messages
		SET status = $1, updated_at = NOW()
		WHERE message_id = $2 AND status = $3`

	result, err := r.db.ExecContext(ctx, query, model.ScheduleStatusCancelled, messageID, model.ScheduleStatusPending)
	if err != nil {
		return fmt.Errorf("failed to cancel scheduled message: %w", err)
	}
	return mustAffect(result, "pending scheduled message")
}

func (r *scheduledMessageRepository) GetByMessage(ctx context.Context, messageID uuid.UUID) (*model.ScheduledMessage, error) {
	query := `
		SELECT ` + scheduledColumns + `
		FROM scheduled_messages
		WHERE message_id = $1
		ORDER BY created_at DESC
		LIMIT 1`

	var ticket model.ScheduledMessage
	if err := r.db.GetContext(ctx, &ticket, query, messageID); err != nil {
		return nil, notFoundOr(err, "scheduled message")
	}
	return &ticket, nil
}
