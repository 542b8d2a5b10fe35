package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/arklim/api-starter/internal/core/domain"
	"github.com/arklim/api-starter/internal/core/port"
	"github.com/arklim/api-starter/internal/repository"
)

// ErrPermissionDenied indicates the actor lacks required permissions.
var ErrPermissionDenied = errors.New("insufficient permissions")

// Requirement names a single resource:action pair a caller must hold.
type Requirement struct {
	Resource string
	Action   string
}

// Name returns the canonical "resource:action" permission name.
func (r Requirement) Name() string {
	return domain.PermissionName(r.Resource, r.Action)
}

// RequirementNames renders requirements as canonical permission names.
func RequirementNames(requirements []Requirement) []string {
	names := make([]string, 0, len(requirements))
	for _, requirement := range requirements {
		names = append(names, requirement.Name())
	}
	return names
}

// AccessService resolves a subject's role to its granted permissions and
// answers allow/deny questions. Resolution happens per call against the
// durable grant state, so revoking a grant takes effect on the next
// request without invalidating tokens. The super_admin role bypasses
// every check unconditionally.
type AccessService struct {
	users       port.UserRepository
	roles       port.RoleRepository
	permissions port.PermissionRepository
}

// NewAccessService constructs the permission oracle.
func NewAccessService(users port.UserRepository, roles port.RoleRepository, permissions port.PermissionRepository) *AccessService {
	return &AccessService{users: users, roles: roles, permissions: permissions}
}

// IsSuperAdmin reports whether the subject holds the bypass role.
func (s *AccessService) IsSuperAdmin(ctx context.Context, subjectID string) (bool, error) {
	role, err := s.resolveRole(ctx, subjectID)
	if err != nil {
		return false, err
	}
	return role != nil && role.IsSuperAdmin(), nil
}

// HasPermission reports whether the subject's role grants the pair.
func (s *AccessService) HasPermission(ctx context.Context, subjectID, resource, action string) (bool, error) {
	return s.HasAllPermissions(ctx, subjectID, []Requirement{{Resource: resource, Action: action}})
}

// HasAnyPermission reports whether at least one requirement is granted.
func (s *AccessService) HasAnyPermission(ctx context.Context, subjectID string, requirements []Requirement) (bool, error) {
	if len(requirements) == 0 {
		return false, nil
	}

	granted, bypass, err := s.grantedSet(ctx, subjectID)
	if err != nil {
		return false, err
	}
	if bypass {
		return true, nil
	}

	for _, requirement := range requirements {
		if _, ok := granted[requirement.Name()]; ok {
			return true, nil
		}
	}

	return false, nil
}

// HasAllPermissions reports whether every requirement is granted.
func (s *AccessService) HasAllPermissions(ctx context.Context, subjectID string, requirements []Requirement) (bool, error) {
	if len(requirements) == 0 {
		return true, nil
	}

	granted, bypass, err := s.grantedSet(ctx, subjectID)
	if err != nil {
		return false, err
	}
	if bypass {
		return true, nil
	}

	for _, requirement := range requirements {
		if _, ok := granted[requirement.Name()]; !ok {
			return false, nil
		}
	}

	return true, nil
}

// MissingPermissions returns the requirements the subject does not hold,
// in input order. Empty result means the check passes.
func (s *AccessService) MissingPermissions(ctx context.Context, subjectID string, requirements []Requirement) ([]string, error) {
	if len(requirements) == 0 {
		return nil, nil
	}

	granted, bypass, err := s.grantedSet(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if bypass {
		return nil, nil
	}

	missing := make([]string, 0, len(requirements))
	for _, requirement := range requirements {
		if _, ok := granted[requirement.Name()]; !ok {
			missing = append(missing, requirement.Name())
		}
	}

	return missing, nil
}

// PermissionsOf returns the subject's granted permission names. The
// super_admin role yields an empty slice: the bypass makes explicit
// grants unnecessary, so callers must not read emptiness as denial for
// that role.
func (s *AccessService) PermissionsOf(ctx context.Context, subjectID string) ([]string, error) {
	role, err := s.resolveRole(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if role == nil {
		return []string{}, nil
	}
	if role.IsSuperAdmin() {
		return []string{}, nil
	}

	granted, err := s.permissions.ListByRole(ctx, role.ID)
	if err != nil {
		return nil, fmt.Errorf("list role permissions: %w", err)
	}

	names := make([]string, 0, len(granted))
	for _, permission := range granted {
		names = append(names, permission.Name)
	}

	return names, nil
}

// RoleOf resolves the subject's role. Missing subject surfaces
// repository.ErrNotFound; a dangling role reference resolves to nil.
func (s *AccessService) RoleOf(ctx context.Context, subjectID string) (*domain.Role, error) {
	return s.resolveRole(ctx, subjectID)
}

// grantedSet resolves the subject's role into a membership set for
// checks. bypass is true for super_admin, in which case the set is not
// populated.
func (s *AccessService) grantedSet(ctx context.Context, subjectID string) (map[string]struct{}, bool, error) {
	role, err := s.resolveRole(ctx, subjectID)
	if err != nil {
		return nil, false, err
	}
	if role == nil {
		return map[string]struct{}{}, false, nil
	}
	if role.IsSuperAdmin() {
		return nil, true, nil
	}

	granted, err := s.permissions.ListByRole(ctx, role.ID)
	if err != nil {
		return nil, false, fmt.Errorf("list role permissions: %w", err)
	}

	set := make(map[string]struct{}, len(granted))
	for _, permission := range granted {
		set[permission.Name] = struct{}{}
	}

	return set, false, nil
}

func (s *AccessService) resolveRole(ctx context.Context, subjectID string) (*domain.Role, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return nil, fmt.Errorf("subject id is required")
	}

	user, err := s.users.GetByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("lookup subject: %w", err)
	}

	if strings.TrimSpace(user.RoleID) == "" {
		return nil, nil
	}

	role, err := s.roles.GetByID(ctx, user.RoleID)
	if err != nil {
		// A dangling role reference means zero permissions, not an
		// authorization outage.
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup role: %w", err)
	}

	return role, nil
}
