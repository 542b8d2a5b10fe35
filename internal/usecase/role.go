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
	// ErrRoleNotFound indicates the named role does not exist.
	ErrRoleNotFound = errors.New("role not found")
	// ErrRoleExists indicates a role with the provided name already exists.
	ErrRoleExists = errors.New("role already exists")
	// ErrRoleInUse indicates the role is still assigned to users.
	ErrRoleInUse = errors.New("role is assigned to users")
	// ErrSystemRole indicates a built-in role cannot be renamed or deleted.
	ErrSystemRole = errors.New("system role cannot be modified")
)

// systemRoles are seeded with the schema and anchor the authorization
// model: super_admin carries the bypass and user is the registration
// default. Renaming or deleting either would silently change semantics.
var systemRoles = map[string]struct{}{
	domain.RoleSuperAdmin: {},
	domain.RoleDefault:    {},
}

// CreateRoleInput captures the payload for creating a role.
type CreateRoleInput struct {
	Name        string
	Description *string
}

// UpdateRoleInput captures the mutable role fields. Nil fields are left
// unchanged.
type UpdateRoleInput struct {
	Name        *string
	Description *string
}

// RoleDetail pairs a role with its granted permissions.
type RoleDetail struct {
	Role        domain.Role
	Permissions []domain.Permission
}

// RoleService manages roles and their permission grants.
type RoleService struct {
	roles       port.RoleRepository
	users       port.UserRepository
	permissions port.PermissionRepository
	events      port.EventPublisher
	logger      *zap.Logger
	now         func() time.Time
}

// NewRoleService constructs a RoleService.
func NewRoleService(
	roles port.RoleRepository,
	users port.UserRepository,
	permissions port.PermissionRepository,
	events port.EventPublisher,
	log *zap.Logger,
) *RoleService {
	if log == nil {
		log = zap.NewNop()
	}
	service := &RoleService{
		roles:       roles,
		users:       users,
		permissions: permissions,
		events:      events,
		logger:      log,
	}
	service.now = func() time.Time { return time.Now().UTC() }
	return service
}

// WithClock overrides the service clock for deterministic tests.
func (s *RoleService) WithClock(clock func() time.Time) *RoleService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// List returns all roles.
func (s *RoleService) List(ctx context.Context) ([]domain.Role, error) {
	roles, err := s.roles.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	return roles, nil
}

// Get returns a role together with its granted permissions.
func (s *RoleService) Get(ctx context.Context, id string) (*RoleDetail, error) {
	role, err := s.getRole(ctx, id)
	if err != nil {
		return nil, err
	}

	permissions, err := s.permissions.ListByRole(ctx, role.ID)
	if err != nil {
		return nil, fmt.Errorf("list role permissions: %w", err)
	}

	return &RoleDetail{Role: *role, Permissions: permissions}, nil
}

// Create provisions a new role.
func (s *RoleService) Create(ctx context.Context, input CreateRoleInput) (*domain.Role, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("role name is required")
	}

	if existing, err := s.roles.GetByName(ctx, name); err == nil && existing != nil {
		return nil, ErrRoleExists
	} else if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup role by name: %w", err)
	}

	role := domain.Role{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: s.now(),
	}
	if input.Description != nil {
		if trimmed := strings.TrimSpace(*input.Description); trimmed != "" {
			role.Description = &trimmed
		}
	}

	if err := s.roles.Create(ctx, role); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrRoleExists
		}
		return nil, fmt.Errorf("create role: %w", err)
	}

	return &role, nil
}

// Update modifies a role's name or description. System roles keep their
// names; only descriptions may change.
func (s *RoleService) Update(ctx context.Context, id string, input UpdateRoleInput) (*domain.Role, error) {
	role, err := s.getRole(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, fmt.Errorf("role name must not be empty")
		}
		if name != role.Name {
			if _, protected := systemRoles[role.Name]; protected {
				return nil, ErrSystemRole
			}
			role.Name = name
		}
	}
	if input.Description != nil {
		trimmed := strings.TrimSpace(*input.Description)
		if trimmed == "" {
			role.Description = nil
		} else {
			role.Description = &trimmed
		}
	}

	if err := s.roles.Update(ctx, *role); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return nil, ErrRoleExists
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrRoleNotFound
		default:
			return nil, fmt.Errorf("update role: %w", err)
		}
	}

	return role, nil
}

// Delete removes a role that no user currently holds.
func (s *RoleService) Delete(ctx context.Context, id string) error {
	role, err := s.getRole(ctx, id)
	if err != nil {
		return err
	}

	if _, protected := systemRoles[role.Name]; protected {
		return ErrSystemRole
	}

	holders, err := s.users.CountByRole(ctx, role.ID)
	if err != nil {
		return fmt.Errorf("count role holders: %w", err)
	}
	if holders > 0 {
		return ErrRoleInUse
	}

	if err := s.roles.Delete(ctx, role.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrRoleNotFound
		}
		return fmt.Errorf("delete role: %w", err)
	}

	return nil
}

// Grant links a permission to a role. Granting an already-granted
// permission succeeds without creating a second grant.
func (s *RoleService) Grant(ctx context.Context, actorID, roleID, permissionID string) ([]domain.Permission, error) {
	role, err := s.getRole(ctx, roleID)
	if err != nil {
		return nil, err
	}

	permission, err := s.getPermission(ctx, permissionID)
	if err != nil {
		return nil, err
	}

	if err := s.permissions.Grant(ctx, role.ID, permission.ID); err != nil {
		return nil, fmt.Errorf("grant permission: %w", err)
	}

	s.publishGrantChange(ctx, *role, permission.Name, actorID, true)

	granted, err := s.permissions.ListByRole(ctx, role.ID)
	if err != nil {
		return nil, fmt.Errorf("list role permissions: %w", err)
	}

	return granted, nil
}

// Revoke removes a permission grant from a role. Revoking an absent
// grant is a no-op.
func (s *RoleService) Revoke(ctx context.Context, actorID, roleID, permissionID string) error {
	role, err := s.getRole(ctx, roleID)
	if err != nil {
		return err
	}

	permission, err := s.getPermission(ctx, permissionID)
	if err != nil {
		return err
	}

	if err := s.permissions.Revoke(ctx, role.ID, permission.ID); err != nil {
		return fmt.Errorf("revoke permission: %w", err)
	}

	s.publishGrantChange(ctx, *role, permission.Name, actorID, false)

	return nil
}

func (s *RoleService) getRole(ctx context.Context, id string) (*domain.Role, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("role id is required")
	}

	role, err := s.roles.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRoleNotFound
		}
		return nil, fmt.Errorf("lookup role: %w", err)
	}

	return role, nil
}

func (s *RoleService) getPermission(ctx context.Context, id string) (*domain.Permission, error) {
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

func (s *RoleService) publishGrantChange(ctx context.Context, role domain.Role, permissionName, actorID string, granted bool) {
	if s.events == nil {
		return
	}

	if granted {
		event := domain.PermissionGrantedEvent{
			EventID:        uuid.NewString(),
			RoleID:         role.ID,
			RoleName:       role.Name,
			PermissionName: permissionName,
			Actor:          actorID,
			GrantedAt:      s.now(),
		}
		if err := s.events.PublishPermissionGranted(ctx, event); err != nil {
			s.logger.Warn("permission granted event not published",
				zap.String("role", role.Name), zap.String("permission", permissionName), zap.Error(err))
		}
		return
	}

	event := domain.PermissionRevokedEvent{
		EventID:        uuid.NewString(),
		RoleID:         role.ID,
		RoleName:       role.Name,
		PermissionName: permissionName,
		Actor:          actorID,
		RevokedAt:      s.now(),
	}
	if err := s.events.PublishPermissionRevoked(ctx, event); err != nil {
		s.logger.Warn("permission revoked event not published",
			zap.String("role", role.Name), zap.String("permission", permissionName), zap.Error(err))
	}
}
