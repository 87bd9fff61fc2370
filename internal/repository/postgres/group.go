package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/churchdesk/admin-api/internal/model"
	"github.com/churchdesk/admin-api/internal/repository"
)

type messageGroupRepository struct {
	BaseRepository
}

func NewMessageGroupRepository(base BaseRepository) repository.MessageGroupRepository {
	return &messageGroupRepository{base}
}

type groupMemberRow struct {
	GroupID int64 `db:"group_id"`
	model.RecipientIdentity
}

func (r *messageGroupRepository) List(ctx context.Context) ([]*model.MessageGroup, error) {
	groupsQuery := `
		SELECT group_id, group_name, description, group_type, created_at
		FROM message_groups
		ORDER BY created_at DESC, group_id DESC`

	var groups []*model.MessageGroup
	if err := r.db.SelectContext(ctx, &groups, groupsQuery); err != nil {
		return nil, fmt.Errorf("failed to list message groups: %w", err)
	}
	if len(groups) == 0 {
		return groups, nil
	}

	ids := make([]int64, len(groups))
	byID := make(map[int64]*model.MessageGroup, len(groups))
	for i, g := range groups {
		ids[i] = g.ID
		g.Members = []model.RecipientIdentity{}
		byID[g.ID] = g
	}

	membersQuery := `SELECT gm.group_id,` + memberColumns + `
		FROM message_group_members gm
		JOIN members m ON m.member_id = gm.member_id
		WHERE gm.group_id = ANY($1)
		ORDER BY gm.group_id, m.member_id`

	var rows []groupMemberRow
	if err := r.db.SelectContext(ctx, &rows, membersQuery, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("failed to list message group members: %w", err)
	}
	for _, row := range rows {
		if g, ok := byID[row.GroupID]; ok {
			g.Members = append(g.Members, row.RecipientIdentity)
		}
	}
	for _, g := range groups {
		g.MemberCount = len(g.Members)
	}
	return groups, nil
}

func (r *messageGroupRepository) Create(ctx context.Context, group *model.MessageGroup, memberIDs []int64) error {
	groupQuery := `
		INSERT INTO message_groups (group_name, description, group_type, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING group_id`

	membersQuery := `
		INSERT INTO message_group_members (group_id, member_id)
		SELECT $1, UNNEST($2::bigint[])
		ON CONFLICT DO NOTHING`

	if group.CreatedAt.IsZero() {
		group.CreatedAt = time.Now().UTC()
	}

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.QueryRowxContext(ctx, groupQuery,
			group.Name,
			group.Description,
			group.Type,
			group.CreatedAt,
		).Scan(&group.ID)
		if err != nil {
			return fmt.Errorf("failed to insert message group: %w", err)
		}

		if len(memberIDs) > 0 {
			if _, err := tx.ExecContext(ctx, membersQuery, group.ID, pq.Array(memberIDs)); err != nil {
				return fmt.Errorf("failed to insert message group members: %w", err)
			}
		}
		group.MemberCount = len(memberIDs)
		return nil
	})
}

func (r *messageGroupRepository) Delete(ctx context.Context, id int64) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM message_group_members WHERE group_id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete message group members: %w", err)
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM message_groups WHERE group_id = $1`, id)
		if err != nil {
			return fmt.Errorf("failed to delete message group: %w", err)
		}
		return mustAffect(result, "message group")
	})
}
