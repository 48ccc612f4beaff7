// internal/auth/repository.go
package auth

import (
	"context"

	"gatherly/internal/users"

	"github.com/google/uuid"
)

type Repository interface {
	CreateUser(ctx context.Context, user *users.User) error
	GetUserByEmail(ctx context.Context, email string) (*users.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*users.User, error)
	UpdateUserPassword(ctx context.Context, userID uuid.UUID, hashedPassword string) error
	EmailExists(ctx context.Context, email string) (bool, error)
}

// repository delegates to the users repository so credential rows share the
// PII cipher and email index with the rest of the system
type repository struct {
	users users.Repository
}

func NewRepository(usersRepo users.Repository) Repository {
	return &repository{
		users: usersRepo,
	}
}

func (r *repository) CreateUser(ctx context.Context, user *users.User) error {
	return r.users.Create(ctx, user)
}

func (r *repository) GetUserByEmail(ctx context.Context, email string) (*users.User, error) {
	return r.users.GetByEmail(ctx, email)
}

func (r *repository) GetUserByID(ctx context.Context, id uuid.UUID) (*users.User, error) {
	return r.users.GetByID(ctx, id)
}

func (r *repository) UpdateUserPassword(ctx context.Context, userID uuid.UUID, hashedPassword string) error {
	return r.users.UpdatePassword(ctx, userID, hashedPassword)
}

func (r *repository) EmailExists(ctx context.Context, email string) (bool, error) {
	return r.users.EmailExists(ctx, email)
}
