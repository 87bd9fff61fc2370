package model

import "time"

type GroupType string

const (
	GroupTypeStatic  GroupType = "static"
	GroupTypeDynamic GroupType = "dynamic"
)

func (t GroupType) Valid() bool {
	return t == GroupTypeStatic || t == GroupTypeDynamic
}

// MessageGroup is a named member list used by custom_group audiences.
type MessageGroup struct {
	ID          int64               `json:"group_id" db:"group_id"`
	Name        string              `json:"group_name" db:"group_name"`
	Description *string             `json:"description,omitempty" db:"description"`
	Type        GroupType           `json:"group_type" db:"group_type"`
	CreatedAt   time.Time           `json:"created_at" db:"created_at"`
	MemberCount int                 `json:"member_count" db:"-"`
	Members     []RecipientIdentity `json:"members" db:"-"`
}
