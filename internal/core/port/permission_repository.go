package port

import (
	"context"

	"github.com/arklim/api-starter/internal/core/domain"
)

// PermissionFilter narrows permission listings.
type PermissionFilter struct {
	Resource string
	Action   string
	Limit    int
	Offset   int
}

// PermissionRepository manages the permission catalog and role grants.
type PermissionRepository interface {
	Create(ctx context.Context, permission domain.Permission) error
	GetByID(ctx context.Context, id string) (*domain.Permission, error)
	GetByName(ctx context.Context, name string) (*domain.Permission, error)
	List(ctx context.Context, filter PermissionFilter) ([]domain.Permission, error)
	Count(ctx context.Context, filter PermissionFilter) (int, error)
	Update(ctx context.Context, permission domain.Permission) error
	Delete(ctx context.Context, id string) error

	ListByRole(ctx context.Context, roleID string) ([]domain.Permission, error)
	ListBySubject(ctx context.Context, userID string) ([]domain.Permission, error)
	Grant(ctx context.Context, roleID, permissionID string) error
	Revoke(ctx context.Context, roleID, permissionID string) error
	CountGrants(ctx context.Context, permissionID string) (int, error)
}
