package port

import (
	"context"

	"github.com/arklim/api-starter/internal/core/domain"
)

// UserFilter narrows user listings.
type UserFilter struct {
	Search   string
	RoleID   string
	IsActive *bool
	Limit    int
	Offset   int
}

// UserRepository exposes persistence behavior for users.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context, filter UserFilter) ([]domain.User, error)
	Count(ctx context.Context, filter UserFilter) (int, error)
	Update(ctx context.Context, user domain.User) error
	Deactivate(ctx context.Context, id string) error
	CountByRole(ctx context.Context, roleID string) (int, error)
}
