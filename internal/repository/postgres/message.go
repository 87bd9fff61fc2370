package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/churchdesk/admin-api/internal/model"
	"github.com/churchdesk/admin-api/internal/repository"
)

// recipientInsertChunk keeps a batched insert under the postgres bind limit.
const recipientInsertChunk = 500

type messageRepository struct {
	BaseRepository
}

func NewMessageRepository(base BaseRepository) repository.MessageRepository {
	return &messageRepository{base}
}

const messageColumns = `
	id, message_type, title, content, delivery_channels, status, scheduled_at,
	total_recipients, total_sent, total_failed, sent_at, created_at, updated_at`

const recipientColumns = `
	id, message_id, seq, recipient_id, recipient_type, recipient_name,
	recipient_email, recipient_phone, delivery_channel, delivery_status,
	sent_at, error_message`

func (r *messageRepository) CreateWithRecipients(
	ctx context.Context,
	msg *model.Message,
	rows []*model.MessageRecipient,
	ticket *model.ScheduledMessage,
) error {
	msgQuery := `
		INSERT INTO messages (` + messageColumns + `)
		VALUES (
			:id, :message_type, :title, :content, :delivery_channels, :status, :scheduled_at,
			:total_recipients, :total_sent, :total_failed, :sent_at, :created_at, :updated_at
		)`

	rowQuery := `
		INSERT INTO message_recipients (` + recipientColumns + `)
		VALUES (
			:id, :message_id, :seq, :recipient_id, :recipient_type, :recipient_name,
			:recipient_email, :recipient_phone, :delivery_channel, :delivery_status,
			:sent_at, :error_message
		)`

	ticketQuery := `
		INSERT INTO scheduled_messages (
			id, message_id, scheduled_time, status, next_run, attempts,
			last_error, created_at, updated_at
		) VALUES (
			:id, :message_id, :scheduled_time, :status, :next_run, :attempts,
			:last_error, :created_at, :updated_at
		)`

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, msgQuery, msg); err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}

		for start := 0; start < len(rows); start += recipientInsertChunk {
			end := start + recipientInsertChunk
			if end > len(rows) {
				end = len(rows)
			}
			if _, err := tx.NamedExecContext(ctx, rowQuery, rows[start:end]); err != nil {
				return fmt.Errorf("failed to insert message recipients: %w", err)
			}
		}

		if ticket != nil {
			if _, err := tx.NamedExecContext(ctx, ticketQuery, ticket); err != nil {
				return fmt.Errorf("failed to insert scheduled message: %w", err)
			}
		}
		return nil
	})
}

func (r *messageRepository) Get(ctx context.Context, id uuid.UUID) (*model.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`

	var msg model.Message
	if err := r.db.GetContext(ctx, &msg, query, id); err != nil {
		return nil, notFoundOr(err, "message")
	}
	return &msg, nil
}

func (r *messageRepository) List(ctx context.Context, filter model.MessageFilter) ([]*model.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2`

	var msgs []*model.Message
	if err := r.db.SelectContext(ctx, &msgs, query, string(filter.Status), filter.Limit); err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return msgs, nil
}

// Delete removes the message; recipient rows and tickets cascade.
func (r *messageRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return mustAffect(result, "message")
}

func (r *messageRepository) Recipients(ctx context.Context, messageID uuid.UUID) ([]*model.MessageRecipient, error) {
	query := `
		SELECT ` + recipientColumns + `
		FROM message_recipients
		WHERE message_id = $1
		ORDER BY seq`

	var rows []*model.MessageRecipient
	if err := r.db.SelectContext(ctx, &rows, query, messageID); err != nil {
		return nil, fmt.Errorf("failed to list message recipients: %w", err)
	}
	return rows, nil
}

func (r *messageRepository) PendingRecipients(ctx context.Context, messageID uuid.UUID) ([]*model.MessageRecipient, error) {
	query := `
		SELECT ` + recipientColumns + `
		FROM message_recipients
		WHERE message_id = $1 AND delivery_status = $2
		ORDER BY seq`

	var rows []*model.MessageRecipient
	if err := r.db.SelectContext(ctx, &rows, query, messageID, model.DeliveryStatusPending); err != nil {
		return nil, fmt.Errorf("failed to list pending recipients: %w", err)
	}
	return rows, nil
}

// MarkRecipientSent only moves pending rows; terminal rows are left untouched.
func (r *messageRepository) MarkRecipientSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	query := `
		UPDATE message_recipients
		SET delivery_status = $1, sent_at = $2, error_message = NULL
		WHERE id = $3 AND delivery_status = $4`

	_, err := r.db.ExecContext(ctx, query, model.DeliveryStatusSent, sentAt, id, model.DeliveryStatusPending)
	if err != nil {
		return fmt.Errorf("failed to mark recipient sent: %w", err)
	}
	return nil
}

func (r *messageRepository) MarkRecipientFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	query := `
		UPDATE message_recipients
		SET delivery_status = $1, error_message = $2
		WHERE id = $3 AND delivery_status = $4`

	_, err := r.db.ExecContext(ctx, query, model.DeliveryStatusFailed, errMsg, id, model.DeliveryStatusPending)
	if err != nil {
		return fmt.Errorf("failed to mark recipient failed: %w", err)
	}
	return nil
}

func (r *messageRepository) DeliveryStats(ctx context.Context, messageID uuid.UUID) (model.DeliveryStats, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE delivery_status = 'sent') AS sent,
			COUNT(*) FILTER (WHERE delivery_status = 'failed') AS failed,
			COUNT(*) FILTER (WHERE delivery_status = 'pending') AS pending
		FROM message_recipients
		WHERE message_id = $1`

	var stats model.DeliveryStats
	if err := r.db.GetContext(ctx, &stats, query, messageID); err != nil {
		return stats, fmt.Errorf("failed to count delivery stats: %w", err)
	}
	return stats, nil
}

func (r *messageRepository) Finalize(ctx context.Context, id uuid.UUID, stats model.DeliveryStats, sentAt time.Time) error {
	query := `
		UPDATE messages
		SET status = $1, sent_at = $2, total_sent = $3, total_failed = $4, updated_at = $2
		WHERE id = $5`

	result, err := r.db.ExecContext(ctx, query,
		model.MessageStatusPublished,
		sentAt,
		stats.Sent,
		stats.Failed,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to finalize message: %w", err)
	}
	return mustAffect(result, "message")
}

// ListStranded returns immediate sends that never reached published.
func (r *messageRepository) ListStranded(ctx context.Context, createdBefore time.Time, limit int) ([]uuid.UUID, error) {
	query := `
		SELECT id
		FROM messages
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at
		LIMIT $3`

	var ids []uuid.UUID
	if err := r.db.SelectContext(ctx, &ids, query, model.MessageStatusPending, createdBefore, limit); err != nil {
		return nil, fmt.Errorf("failed to list stranded messages: %w", err)
	}
	return ids, nil
}

func (r *messageRepository) Stats(ctx context.Context) (*model.CommunicationStats, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM messages WHERE status = 'published') AS messages_published,
			(SELECT COUNT(*) FROM messages WHERE status = 'scheduled') AS messages_scheduled,
			(SELECT COALESCE(SUM(total_sent), 0) FROM messages WHERE status = 'published') AS total_reached,
			(SELECT COUNT(*) FROM users WHERE is_active = true) AS active_users`

	var stats model.CommunicationStats
	if err := r.db.GetContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("failed to load communication stats: %w", err)
	}

	type statusCount struct {
		Status string `db:"delivery_status"`
		Count  int    `db:"count"`
	}
	var counts []statusCount
	byStatus := `
		SELECT delivery_status, COUNT(*) AS count
		FROM message_recipients
		GROUP BY delivery_status`
	if err := r.db.SelectContext(ctx, &counts, byStatus); err != nil {
		return nil, fmt.Errorf("failed to count deliveries by status: %w", err)
	}

	stats.DeliveryByStatus = make(map[string]int, len(counts))
	for _, c := range counts {
		stats.DeliveryByStatus[c.Status] = c.Count
	}
	return &stats, nil
}
