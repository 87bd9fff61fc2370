package group

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/churchdesk/admin-api/internal/model"
	"github.com/churchdesk/admin-api/internal/repository"
	"github.com/churchdesk/admin-api/pkg/errors"
	"github.com/churchdesk/admin-api/pkg/logger"
)

type GroupServicer interface {
	ListGroups(ctx context.Context) ([]*model.MessageGroup, error)
	CreateGroup(ctx context.Context, req CreateRequest) (*model.MessageGroup, error)
	DeleteGroup(ctx context.Context, id int64) error
}

type CreateRequest struct {
	Name        string
	Description string
	Type        string
	MemberIDs   []int64
}

type Service struct {
	repo repository.MessageGroupRepository
	log  *logger.Logger
}

func NewService(repo repository.MessageGroupRepository, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{repo: repo, log: log}
}

func (s *Service) ListGroups(ctx context.Context) ([]*model.MessageGroup, error) {
	groups, err := s.repo.List(ctx)
	if err != nil {
		return nil, errors.StoreUnavailable("message group listing", err)
	}
	if groups == nil {
		groups = []*model.MessageGroup{}
	}
	return groups, nil
}

// CreateGroup defaults the type to static and drops repeated or
// non-positive member ids.
func (s *Service) CreateGroup(ctx context.Context, req CreateRequest) (*model.MessageGroup, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, errors.InvalidRequest("group_name is required")
	}

	groupType := model.GroupType(strings.TrimSpace(req.Type))
	if groupType == "" {
		groupType = model.GroupTypeStatic
	}
	if !groupType.Valid() {
		return nil, errors.InvalidRequest(fmt.Sprintf("unsupported group_type %q", req.Type))
	}

	group := &model.MessageGroup{Name: name, Type: groupType}
	if d := strings.TrimSpace(req.Description); d != "" {
		group.Description = &d
	}

	ids := make([]int64, 0, len(req.MemberIDs))
	seen := make(map[int64]bool, len(req.MemberIDs))
	for _, id := range req.MemberIDs {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}

	if err := s.repo.Create(ctx, group, ids); err != nil {
		return nil, errors.StoreUnavailable("message group creation", err)
	}
	s.log.Info("message group created", "group_id", group.ID, "members", len(ids))
	return group, nil
}

func (s *Service) DeleteGroup(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return errors.NotFound("message group", err)
		}
		return errors.StoreUnavailable("message group deletion", err)
	}
	s.log.Info("message group deleted", "group_id", id)
	return nil
}
