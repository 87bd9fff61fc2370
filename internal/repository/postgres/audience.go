package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/churchdesk/admin-api/internal/model"
	"github.com/churchdesk/admin-api/internal/repository"
)

const memberActiveStatus = "Active"

type audienceRepository struct {
	BaseRepository
}

func NewAudienceRepository(base BaseRepository) repository.AudienceRepository {
	return &audienceRepository{base}
}

const memberColumns = `
	m.member_id AS id,
	'member' AS type,
	COALESCE(m.first_name, '') AS first_name,
	COALESCE(m.last_name, '') AS last_name,
	COALESCE(m.email, '') AS email,
	COALESCE(m.phone, '') AS phone`

func (r *audienceRepository) ActiveMembers(ctx context.Context) ([]model.RecipientIdentity, error) {
	query := `SELECT` + memberColumns + `
		FROM members m
		WHERE m.status = $1
		ORDER BY m.member_id`

	var out []model.RecipientIdentity
	if err := r.db.SelectContext(ctx, &out, query, memberActiveStatus); err != nil {
		return nil, fmt.Errorf("failed to list active members: %w", err)
	}
	return out, nil
}

func (r *audienceRepository) MembersByChurchGroup(ctx context.Context, group string) ([]model.RecipientIdentity, error) {
	query := `SELECT` + memberColumns + `
		FROM members m
		WHERE m.church_group = $1 AND m.status = $2
		ORDER BY m.member_id`

	var out []model.RecipientIdentity
	if err := r.db.SelectContext(ctx, &out, query, group, memberActiveStatus); err != nil {
		return nil, fmt.Errorf("failed to list church group members: %w", err)
	}
	return out, nil
}

// membershipRow is a join row whose member side is NULL when the member
// failed the active filter.
type membershipRow struct {
	ID        sql.NullInt64  `db:"id"`
	FirstName sql.NullString `db:"first_name"`
	LastName  sql.NullString `db:"last_name"`
	Email     sql.NullString `db:"email"`
	Phone     sql.NullString `db:"phone"`
}

func (r *audienceRepository) MembersByMinistry(ctx context.Context, ministry string) ([]model.RecipientIdentity, error) {
	query := `
		SELECT m.member_id AS id, m.first_name, m.last_name, m.email, m.phone
		FROM member_ministries mm
		JOIN ministries mi ON mi.ministry_id = mm.ministry_id
		LEFT JOIN members m ON m.member_id = mm.member_id AND m.status = $2
		WHERE mi.ministry_name = $1
		ORDER BY mm.member_id`

	var rows []membershipRow
	if err := r.db.SelectContext(ctx, &rows, query, ministry, memberActiveStatus); err != nil {
		return nil, fmt.Errorf("failed to list ministry members: %w", err)
	}
	return dropUnmatched(rows), nil
}

func (r *audienceRepository) MembersByCustomGroup(ctx context.Context, groupID int64) ([]model.RecipientIdentity, error) {
	query := `
		SELECT m.member_id AS id, m.first_name, m.last_name, m.email, m.phone
		FROM message_group_members gm
		LEFT JOIN members m ON m.member_id = gm.member_id AND m.status = $2
		WHERE gm.group_id = $1
		ORDER BY gm.member_id`

	var rows []membershipRow
	if err := r.db.SelectContext(ctx, &rows, query, groupID, memberActiveStatus); err != nil {
		return nil, fmt.Errorf("failed to list custom group members: %w", err)
	}
	return dropUnmatched(rows), nil
}

func dropUnmatched(rows []membershipRow) []model.RecipientIdentity {
	out := make([]model.RecipientIdentity, 0, len(rows))
	for _, row := range rows {
		if !row.ID.Valid {
			continue
		}
		out = append(out, model.RecipientIdentity{
			ID:        row.ID.Int64,
			Type:      model.RecipientTypeMember,
			FirstName: row.FirstName.String,
			LastName:  row.LastName.String,
			Email:     row.Email.String,
			Phone:     row.Phone.String,
		})
	}
	return out
}

// MembersByIDs applies no status filter.
func (r *audienceRepository) MembersByIDs(ctx context.Context, ids []int64) ([]model.RecipientIdentity, error) {
	query := `SELECT` + memberColumns + `
		FROM members m
		WHERE m.member_id = ANY($1)
		ORDER BY m.member_id`

	var out []model.RecipientIdentity
	if err := r.db.SelectContext(ctx, &out, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("failed to list members by id: %w", err)
	}
	return out, nil
}

func (r *audienceRepository) EnabledUsers(ctx context.Context) ([]model.RecipientIdentity, error) {
	query := `
		SELECT
			u.id,
			'user' AS type,
			COALESCE(u.first_name, '') AS first_name,
			COALESCE(u.last_name, '') AS last_name,
			COALESCE(u.email, '') AS email,
			'' AS phone
		FROM users u
		WHERE u.is_active = true
		ORDER BY u.id`

	var out []model.RecipientIdentity
	if err := r.db.SelectContext(ctx, &out, query); err != nil {
		return nil, fmt.Errorf("failed to list enabled users: %w", err)
	}
	return out, nil
}
