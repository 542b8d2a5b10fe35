package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/api-starter/internal/core/domain"
	"github.com/arklim/api-starter/internal/core/port"
	"github.com/arklim/api-starter/internal/repository"
)

var (
	// ErrPermissionNotFound indicates the requested permission does not exist.
	ErrPermissionNotFound = errors.New("permission not found")
	// ErrPermissionExists indicates a permission for the pair already exists.
	ErrPermissionExists = errors.New("permission already exists")
	// ErrPermissionInUse indicates roles still hold grants for the permission.
	ErrPermissionInUse = errors.New("permission is granted to roles")
	// ErrInvalidPermission indicates the resource or action has an invalid shape.
	ErrInvalidPermission = errors.New("invalid permission definition")
)

// CreatePermissionInput captures the payload for creating a permission.
type CreatePermissionInput struct {
	Resource    string
	Action      string
	Description *string
}

// UpdatePermissionInput captures the mutable permission fields. The
// (resource, action) identity is immutable; only the description changes.
type UpdatePermissionInput struct {
	Description *string
}

// ListPermissionsInput captures filters for listing permissions.
type ListPermissionsInput struct {
	Resource string
	Action   string
	Limit    int
	Offset   int
}

// ListPermissionsResult includes permissions and pagination metadata.
type ListPermissionsResult struct {
	Permissions []domain.Permission
	Total       int
	Limit       int
	Offset      int
}

// PermissionService manages the permission catalog.
type PermissionService struct {
	permissions port.PermissionRepository
	logger      *zap.Logger
	now         func() time.Time
}

// NewPermissionService constructs a PermissionService.
func NewPermissionService(permissions port.PermissionRepository, log *zap.Logger) *PermissionService {
	if log == nil {
		log = zap.NewNop()
	}
	service := &PermissionService{permissions: permissions, logger: log}
	service.now = func() time.Time { return time.Now().UTC() }
	return service
}

// WithClock overrides the service clock for deterministic tests.
func (s *PermissionService) WithClock(clock func() time.Time) *PermissionService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// List returns permissions with optional filtering and pagination.
func (s *PermissionService) List(ctx context.Context, input ListPermissionsInput) (*ListPermissionsResult, error) {
	filter := port.PermissionFilter{
		Resource: strings.ToLower(strings.TrimSpace(input.Resource)),
		Action:   strings.ToLower(strings.TrimSpace(input.Action)),
		Limit:    input.Limit,
		Offset:   input.Offset,
	}

	permissions, err := s.permissions.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list permissions: %w", err)
	}

	total, err := s.permissions.Count(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("count permissions: %w", err)
	}

	return &ListPermissionsResult{
		Permissions: permissions,
		Total:       total,
		Limit:       input.Limit,
		Offset:      input.Offset,
	}, nil
}

// Get retrieves a permission by id.
func (s *PermissionService) Get(ctx context.Context, id string) (*domain.Permission, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("permission id is required")
	}

	permission, err := s.permissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPermissionNotFound
		}
		return nil, fmt.Errorf("lookup permission: %w", err)
	}

	return permission, nil
}

// Create provisions a permission for a (resource, action) pair. The
// display name derives from the pair and must stay unique.
func (s *PermissionService) Create(ctx context.Context, input CreatePermissionInput) (*domain.Permission, error) {
	resource := strings.ToLower(strings.TrimSpace(input.Resource))
	action := strings.ToLower(strings.TrimSpace(input.Action))

	if err := domain.ValidatePermissionParts(resource, action); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPermission, err)
	}

	name := domain.PermissionName(resource, action)

	if existing, err := s.permissions.GetByName(ctx, name); err == nil && existing != nil {
		return nil, ErrPermissionExists
	} else if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup permission by name: %w", err)
	}

	permission := domain.Permission{
		ID:        uuid.NewString(),
		Resource:  resource,
		Action:    action,
		Name:      name,
		CreatedAt: s.now(),
	}
	if input.Description != nil {
		if trimmed := strings.TrimSpace(*input.Description); trimmed != "" {
			permission.Description = &trimmed
		}
	}

	if err := s.permissions.Create(ctx, permission); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrPermissionExists
		}
		return nil, fmt.Errorf("create permission: %w", err)
	}

	return &permission, nil
}

// Update changes a permission's description. The pair identity and the
// derived name never change after creation.
func (s *PermissionService) Update(ctx context.Context, id string, input UpdatePermissionInput) (*domain.Permission, error) {
	permission, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Description != nil {
		trimmed := strings.TrimSpace(*input.Description)
		if trimmed == "" {
			permission.Description = nil
		} else {
			permission.Description = &trimmed
		}
	}

	if err := s.permissions.Update(ctx, *permission); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPermissionNotFound
		}
		return nil, fmt.Errorf("update permission: %w", err)
	}

	return permission, nil
}

// Delete removes a permission that no role currently holds. Grants must
// be revoked explicitly first so authority never disappears as a side
// effect.
func (s *PermissionService) Delete(ctx context.Context, id string) error {
	permission, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	grants, err := s.permissions.CountGrants(ctx, permission.ID)
	if err != nil {
		return fmt.Errorf("count permission grants: %w", err)
	}
	if grants > 0 {
		return ErrPermissionInUse
	}

	if err := s.permissions.Delete(ctx, permission.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrPermissionNotFound
		}
		return fmt.Errorf("delete permission: %w", err)
	}

	return nil
}
