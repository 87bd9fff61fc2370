package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/churchdesk/admin-api/internal/model"
)

// All repository interfaces in one file
type (
	// AudienceRepository reads the member and user directories.
	AudienceRepository interface {
		ActiveMembers(ctx context.Context) ([]model.RecipientIdentity, error)
		MembersByChurchGroup(ctx context.Context, group string) ([]model.RecipientIdentity, error)
		MembersByMinistry(ctx context.Context, ministry string) ([]model.RecipientIdentity, error)
		MembersByCustomGroup(ctx context.Context, groupID int64) ([]model.RecipientIdentity, error)
		MembersByIDs(ctx context.Context, ids []int64) ([]model.RecipientIdentity, error)
		EnabledUsers(ctx context.Context) ([]model.RecipientIdentity, error)
	}

	// MessageRepository owns messages and their delivery rows.
	MessageRepository interface {
		// CreateWithRecipients writes the message, every row and the optional
		// schedule ticket in one transaction.
		CreateWithRecipients(ctx context.Context, msg *model.Message, rows []*model.MessageRecipient, ticket *model.ScheduledMessage) error
		Get(ctx context.Context, id uuid.UUID) (*model.Message, error)
		List(ctx context.Context, filter model.MessageFilter) ([]*model.Message, error)
		Delete(ctx context.Context, id uuid.UUID) error

		Recipients(ctx context.Context, messageID uuid.UUID) ([]*model.MessageRecipient, error)
		PendingRecipients(ctx context.Context, messageID uuid.UUID) ([]*model.MessageRecipient, error)
		MarkRecipientSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error
		MarkRecipientFailed(ctx context.Context, id uuid.UUID, errMsg string) error

		DeliveryStats(ctx context.Context, messageID uuid.UUID) (model.DeliveryStats, error)
		Finalize(ctx context.Context, id uuid.UUID, stats model.DeliveryStats, sentAt time.Time) error
		ListStranded(ctx context.Context, createdBefore time.Time, limit int) ([]uuid.UUID, error)
		Stats(ctx context.Context) (*model.CommunicationStats, error)
	}

	// ScheduledMessageRepository manages schedule tickets.
	ScheduledMessageRepository interface {
		ClaimDue(ctx context.Context, now time.Time, limit int) ([]*model.ScheduledMessage, error)
		Complete(ctx context.Context, id uuid.UUID) error
		Release(ctx context.Context, id uuid.UUID, nextRun time.Time, lastErr string) error
		RequeueStale(ctx context.Context, updatedBefore time.Time) (int64, error)
		Cancel(ctx context.Context, messageID uuid.UUID) error
		GetByMessage(ctx context.Context, messageID uuid.UUID) (*model.ScheduledMessage, error)
	}

	ActivityRepository interface {
		// Record appends the entry and keeps only the newest keep entries.
		Record(ctx context.Context, activity *model.Activity, keep int) error
		ListRecent(ctx context.Context, limit int) ([]*model.Activity, error)
	}

	// MessageGroupRepository manages custom message groups and their members.
	MessageGroupRepository interface {
		// List returns groups newest first, each with its members.
		List(ctx context.Context) ([]*model.MessageGroup, error)
		// Create writes the group and its memberships in one transaction.
		Create(ctx context.Context, group *model.MessageGroup, memberIDs []int64) error
		Delete(ctx context.Context, id int64) error
	}

	SettingsRepository interface {
		ListByType(ctx context.Context, settingType model.SettingType) ([]*model.Setting, error)
		Upsert(ctx context.Context, settings []*model.Setting) error
	}
)
