package activity

import (
	"context"

	"github.com/churchdesk/admin-api/internal/model"
	"github.com/churchdesk/admin-api/internal/repository"
	"github.com/churchdesk/admin-api/pkg/errors"
)

const DefaultLimit = 10

type ActivityServicer interface {
	Recent(ctx context.Context, limit int) ([]*model.Activity, error)
}

type Service struct {
	repo repository.ActivityRepository
}

func NewService(repo repository.ActivityRepository) *Service {
	return &Service{repo: repo}
}

// Recent returns the newest entries first.
func (s *Service) Recent(ctx context.Context, limit int) ([]*model.Activity, error) {
	if limit <= 0 || limit > DefaultLimit {
		limit = DefaultLimit
	}

	entries, err := s.repo.ListRecent(ctx, limit)
	if err != nil {
		return nil, errors.StoreUnavailable("activity lookup", err)
	}
	if entries == nil {
		entries = []*model.Activity{}
	}
	return entries, nil
}
