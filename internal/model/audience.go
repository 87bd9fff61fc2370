package model

import "strings"

type AudienceType string

const (
	AudienceAll         AudienceType = "all"
	AudienceChurchGroup AudienceType = "church_group"
	AudienceMinistry    AudienceType = "ministry"
	AudienceCustomGroup AudienceType = "custom_group"
	AudienceIndividual  AudienceType = "individual"
	AudienceUsers       AudienceType = "users"
)

var audienceAliases = map[string]AudienceType{
	"":             AudienceAll,
	"all":          AudienceAll,
	"group":        AudienceChurchGroup,
	"church_group": AudienceChurchGroup,
	"ministry":     AudienceMinistry,
	"department":   AudienceMinistry,
	"custom_group": AudienceCustomGroup,
	"individual":   AudienceIndividual,
	"users":        AudienceUsers,
}

// ParseAudienceType resolves aliases; ok is false for unknown types.
func ParseAudienceType(s string) (AudienceType, bool) {
	t, ok := audienceAliases[strings.ToLower(strings.TrimSpace(s))]
	return t, ok
}

// AudienceSpec selects who receives a message. It is never persisted.
type AudienceSpec struct {
	Type      AudienceType
	Value     string
	GroupID   *int64
	MemberIDs []int64
}

type RecipientType string

const (
	RecipientTypeMember RecipientType = "member"
	RecipientTypeUser   RecipientType = "user"
)

// RecipientIdentity is a resolved member or system user.
type RecipientIdentity struct {
	ID        int64         `json:"id" db:"id"`
	Type      RecipientType `json:"type" db:"type"`
	FirstName string        `json:"first_name" db:"first_name"`
	LastName  string        `json:"last_name" db:"last_name"`
	Email     string        `json:"email" db:"email"`
	Phone     string        `json:"phone" db:"phone"`
}

func (r RecipientIdentity) FullName() string {
	return strings.TrimSpace(r.FirstName + " " + r.LastName)
}

// Snapshot copies the contact fields at this moment.
func (r RecipientIdentity) Snapshot() RecipientSnapshot {
	return RecipientSnapshot{
		Name:  r.FullName(),
		Email: strings.TrimSpace(r.Email),
		Phone: strings.TrimSpace(r.Phone),
	}
}
