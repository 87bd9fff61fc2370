package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/churchdesk/admin-api/internal/repository"
)

// Repositories bundles every postgres-backed repository over one pool.
type Repositories struct {
	Audience  repository.AudienceRepository
	Messages  repository.MessageRepository
	Scheduled repository.ScheduledMessageRepository
	Activity  repository.ActivityRepository
	Settings  repository.SettingsRepository
	Groups    repository.MessageGroupRepository
}

func NewRepositories(db *sqlx.DB) *Repositories {
	base := NewBaseRepository(db)
	return &Repositories{
		Audience:  NewAudienceRepository(base),
		Messages:  NewMessageRepository(base),
		Scheduled: NewScheduledMessageRepository(base),
		Activity:  NewActivityRepository(base),
		Settings:  NewSettingsRepository(base),
		Groups:    NewMessageGroupRepository(base),
	}
}
