package model

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

func (c Channel) Valid() bool {
	return c == ChannelEmail || c == ChannelSMS
}

// ChannelList is stored as a postgres text[].
type ChannelList []Channel

func (l ChannelList) Value() (driver.Value, error) {
	arr := make(pq.StringArray, len(l))
	for i, c := range l {
		arr[i] = string(c)
	}
	return arr.Value()
}

func (l *ChannelList) Scan(src interface{}) error {
	var arr pq.StringArray
	if err := arr.Scan(src); err != nil {
		return fmt.Errorf("scan channel list: %w", err)
	}
	out := make(ChannelList, len(arr))
	for i, s := range arr {
		out[i] = Channel(s)
	}
	*l = out
	return nil
}

type MessageStatus string

const (
	MessageStatusPending   MessageStatus = "pending"
	MessageStatusScheduled MessageStatus = "scheduled"
	MessageStatusPublished MessageStatus = "published"
	// MessageStatusFailed is reserved; no transition produces it.
	MessageStatusFailed MessageStatus = "failed"
)

const DefaultMessageType = "general"

// Message is one outbound communication and its aggregate delivery totals.
type Message struct {
	ID              uuid.UUID     `json:"id" db:"id"`
	Type            string        `json:"message_type" db:"message_type"`
	Title           string        `json:"title" db:"title"`
	Content         string        `json:"content" db:"content"`
	Channels        ChannelList   `json:"delivery_channels" db:"delivery_channels"`
	Status          MessageStatus `json:"status" db:"status"`
	ScheduledAt     *time.Time    `json:"scheduled_at,omitempty" db:"scheduled_at"`
	TotalRecipients int           `json:"total_recipients" db:"total_recipients"`
	TotalSent       int           `json:"total_sent" db:"total_sent"`
	TotalFailed     int           `json:"total_failed" db:"total_failed"`
	SentAt          *time.Time    `json:"sent_at,omitempty" db:"sent_at"`
	CreatedAt       time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at" db:"updated_at"`
}

type DeliveryStatus string

const (
	DeliveryStatusPending DeliveryStatus = "pending"
	DeliveryStatusSent    DeliveryStatus = "sent"
	DeliveryStatusFailed  DeliveryStatus = "failed"
)

func (s DeliveryStatus) Terminal() bool {
	return s == DeliveryStatusSent || s == DeliveryStatusFailed
}

// RecipientSnapshot is the contact data copied at fan-out time. Later edits
// to the member or user record never reach an existing row.
type RecipientSnapshot struct {
	Name  string `json:"recipient_name" db:"recipient_name"`
	Email string `json:"recipient_email" db:"recipient_email"`
	Phone string `json:"recipient_phone" db:"recipient_phone"`
}

// Contact returns the destination for ch, empty when the snapshot has none.
func (s RecipientSnapshot) Contact(ch Channel) string {
	switch ch {
	case ChannelEmail:
		return s.Email
	case ChannelSMS:
		return s.Phone
	default:
		return ""
	}
}

// MessageRecipient is one delivery attempt: a recipient on a single channel.
type MessageRecipient struct {
	ID            uuid.UUID     `json:"id" db:"id"`
	MessageID     uuid.UUID     `json:"message_id" db:"message_id"`
	Seq           int           `json:"seq" db:"seq"`
	RecipientID   int64         `json:"recipient_id" db:"recipient_id"`
	RecipientType RecipientType `json:"recipient_type" db:"recipient_type"`
	RecipientSnapshot
	Channel      Channel        `json:"delivery_channel" db:"delivery_channel"`
	Status       DeliveryStatus `json:"delivery_status" db:"delivery_status"`
	SentAt       *time.Time     `json:"sent_at,omitempty" db:"sent_at"`
	ErrorMessage *string        `json:"error_message,omitempty" db:"error_message"`
}

// Destination is the contact field matching the row's channel.
func (r *MessageRecipient) Destination() string {
	return r.Contact(r.Channel)
}

// DeliveryStats are the terminal row counts of one message.
type DeliveryStats struct {
	Sent    int `json:"sent" db:"sent"`
	Failed  int `json:"failed" db:"failed"`
	Pending int `json:"pending" db:"pending"`
}

// MessageFilter narrows message listings.
type MessageFilter struct {
	Status MessageStatus
	Limit  int
}

// MessageDetail is a message with its delivery rows and, for scheduled
// messages, the latest ticket.
type MessageDetail struct {
	*Message
	Recipients []*MessageRecipient `json:"recipients"`
	Schedule   *ScheduledMessage   `json:"schedule,omitempty"`
}

// CommunicationStats backs the dashboard counters.
type CommunicationStats struct {
	MessagesPublished int            `json:"messages_published" db:"messages_published"`
	MessagesScheduled int            `json:"messages_scheduled" db:"messages_scheduled"`
	TotalReached      int            `json:"total_reached" db:"total_reached"`
	ActiveUsers       int            `json:"active_users" db:"active_users"`
	DeliveryByStatus  map[string]int `json:"delivery_by_status" db:"-"`
}
