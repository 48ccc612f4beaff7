package audit

import (
	"context"
	"fmt"
)

type Service interface {
	GetTrail(ctx context.Context, query ListQuery) (*ListResult, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) GetTrail(ctx context.Context, query ListQuery) (*ListResult, error) {
	query.normalize()

	entries, total, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit trail: %w", err)
	}

	totalPages := int((total + int64(query.Limit) - 1) / int64(query.Limit))
	return &ListResult{
		Entries:    entries,
		Total:      total,
		Page:       query.Page,
		Limit:      query.Limit,
		TotalPages: totalPages,
	}, nil
}
