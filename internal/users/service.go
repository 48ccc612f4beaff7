package users

import (
	"context"
	"time"

	"gatherly/internal/shared/config"
	"gatherly/internal/shared/constants"
	"gatherly/pkg/cache"

	"github.com/google/uuid"
)

type Service interface {
	GetUser(ctx context.Context, id uuid.UUID) (*Profile, error)
	ExportData(ctx context.Context, id uuid.UUID) (*ExportBundle, error)
	Erase(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo          Repository
	registrations RegistrationSource
	cache         cache.Service
	config        *config.Config
}

func NewService(repo Repository, registrations RegistrationSource, cacheService cache.Service, cfg *config.Config) Service {
	return &service{
		repo:          repo,
		registrations: registrations,
		cache:         cacheService,
		config:        cfg,
	}
}

func (s *service) GetUser(ctx context.Context, id uuid.UUID) (*Profile, error) {
	var profile Profile

	if s.cache != nil {
		key := constants.BuildUserDetailKey(id.String())
		err := s.cache.GetOrSet(ctx, key, s.config.Cache.UserTTL, func() (interface{}, error) {
			user, err := s.repo.GetByID(ctx, id)
			if err != nil {
				return nil, err
			}
			return ToProfile(user), nil
		}, &profile)
		if err != nil {
			return nil, err
		}
		return &profile, nil
	}

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	profile = ToProfile(user)
	return &profile, nil
}

// ExportData assembles the full data export for one user: profile plus the
// registration history supplied by the registrations adapter.
func (s *service) ExportData(ctx context.Context, id uuid.UUID) (*ExportBundle, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	records, err := s.registrations.UserRegistrations(ctx, id)
	if err != nil {
		return nil, err
	}

	return &ExportBundle{
		GeneratedAt:   time.Now().UTC(),
		User:          ToProfile(user),
		Registrations: records,
	}, nil
}

// Erase anonymizes the user's PII and deactivates the account. Registration
// rows stay behind so event counts and waitlist history remain truthful.
func (s *service) Erase(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Anonymize(ctx, id); err != nil {
		return err
	}

	if s.cache != nil {
		_ = s.cache.Delete(ctx, constants.BuildUserDetailKey(id.String()))
	}

	return nil
}
