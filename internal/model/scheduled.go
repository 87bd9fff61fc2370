package model

import (
	"time"

	"github.com/google/uuid"
)

type ScheduleStatus string

const (
	ScheduleStatusPending    ScheduleStatus = "pending"
	ScheduleStatusProcessing ScheduleStatus = "processing"
	ScheduleStatusCompleted  ScheduleStatus = "completed"
	ScheduleStatusCancelled  ScheduleStatus = "cancelled"
)

// ScheduledMessage is the ticket the worker claims when a scheduled message falls due.
type ScheduledMessage struct {
	ID            uuid.UUID      `json:"id" db:"id"`
	MessageID     uuid.UUID      `json:"message_id" db:"message_id"`
	ScheduledTime time.Time      `json:"scheduled_time" db:"scheduled_time"`
	Status        ScheduleStatus `json:"status" db:"status"`
	NextRun       time.Time      `json:"next_run" db:"next_run"`
	Attempts      int            `json:"attempts" db:"attempts"`
	LastError     *string        `json:"last_error,omitempty" db:"last_error"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at" db:"updated_at"`
}
