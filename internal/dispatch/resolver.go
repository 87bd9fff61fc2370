package dispatch

import (
	"context"

	"github.com/churchdesk/admin-api/internal/model"
	"github.com/churchdesk/admin-api/internal/repository"
	"github.com/churchdesk/admin-api/pkg/errors"
)

// Resolver turns an audience selection into recipient identities.
type Resolver struct {
	repo repository.AudienceRepository
}

func NewResolver(repo repository.AudienceRepository) *Resolver {
	return &Resolver{repo: repo}
}

// Resolve returns the selected identities de-duplicated by (type, id) in
// first-seen order. Parameter problems are reported before any query runs.
func (r *Resolver) Resolve(ctx context.Context, spec model.AudienceSpec) ([]model.RecipientIdentity, error) {
	var (
		found []model.RecipientIdentity
		err   error
	)

	switch spec.Type {
	case model.AudienceAll, "":
		found, err = r.repo.ActiveMembers(ctx)
	case model.AudienceChurchGroup:
		if spec.Value == "" {
			return nil, errors.InvalidAudience("audience_value is required for church_group")
		}
		found, err = r.repo.MembersByChurchGroup(ctx, spec.Value)
	case model.AudienceMinistry:
		if spec.Value == "" {
			return nil, errors.InvalidAudience("audience_value is required for ministry")
		}
		found, err = r.repo.MembersByMinistry(ctx, spec.Value)
	case model.AudienceCustomGroup:
		if spec.GroupID == nil {
			return nil, errors.InvalidAudience("group_id is required for custom_group")
		}
		found, err = r.repo.MembersByCustomGroup(ctx, *spec.GroupID)
	case model.AudienceIndividual:
		if len(spec.MemberIDs) == 0 {
			return nil, errors.InvalidAudience("member_ids is required for individual")
		}
		found, err = r.repo.MembersByIDs(ctx, spec.MemberIDs)
	case model.AudienceUsers:
		found, err = r.repo.EnabledUsers(ctx)
	default:
		return nil, errors.InvalidAudience("unknown audience type: " + string(spec.Type))
	}
	if err != nil {
		return nil, errors.StoreUnavailable("audience resolution", err)
	}

	return dedupe(found), nil
}

type identityKey struct {
	t  model.RecipientType
	id int64
}

func dedupe(in []model.RecipientIdentity) []model.RecipientIdentity {
	seen := make(map[identityKey]struct{}, len(in))
	out := make([]model.RecipientIdentity, 0, len(in))
	for _, r := range in {
		if r.Type == "" {
			r.Type = model.RecipientTypeMember
		}
		k := identityKey{r.Type, r.ID}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}
