package model

import (
	"time"

	"github.com/google/uuid"
)

const ActivityMessageSent = "message_sent"

// Activity is one entry of the dashboard's recent-activity feed.
type Activity struct {
	ID          int64      `json:"id" db:"id"`
	Type        string     `json:"activity_type" db:"activity_type"`
	Title       string     `json:"title" db:"title"`
	Description string     `json:"description" db:"description"`
	Icon        string     `json:"icon" db:"icon"`
	RelatedID   *uuid.UUID `json:"related_id,omitempty" db:"related_id"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}
