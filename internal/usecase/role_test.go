package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/arklim/api-starter/internal/core/domain"
	"github.com/arklim/api-starter/internal/repository"
)

func newRoleService(t *testing.T, roles *mockRoleRepository, users *mockUserRepository, permissions *mockPermissionRepository, events *mockEventPublisher) *RoleService {
	t.Helper()
	return NewRoleService(roles, users, permissions, events, nil).WithClock(fixedClock)
}

func TestRoleService_CreateRole(t *testing.T) {
	roles := &mockRoleRepository{}
	service := newRoleService(t, roles, &mockUserRepository{}, &mockPermissionRepository{}, &mockEventPublisher{})

	description := "  Reviews support tickets  "
	role, err := service.Create(context.Background(), CreateRoleInput{Name: " support ", Description: &description})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if roles.createCalls != 1 {
		t.Fatalf("expected one create call, got %d", roles.createCalls)
	}
	if role.Name != "support" {
		t.Fatalf("expected trimmed name, got %q", role.Name)
	}
	if role.Description == nil || *role.Description != "Reviews support tickets" {
		t.Fatal("expected trimmed description")
	}
	if !role.CreatedAt.Equal(fixedNow) {
		t.Fatalf("expected created_at %v, got %v", fixedNow, role.CreatedAt)
	}
}

func TestRoleService_CreateRejectsDuplicateName(t *testing.T) {
	t.Run("existing name", func(t *testing.T) {
		roles := &mockRoleRepository{getByNameResult: &domain.Role{ID: "role-support", Name: "support"}}
		service := newRoleService(t, roles, &mockUserRepository{}, &mockPermissionRepository{}, &mockEventPublisher{})

		if _, err := service.Create(context.Background(), CreateRoleInput{Name: "support"}); !errors.Is(err, ErrRoleExists) {
			t.Fatalf("expected ErrRoleExists, got %v", err)
		}
		if roles.createCalls != 0 {
			t.Fatalf("expected no create call, got %d", roles.createCalls)
		}
	})

	t.Run("insert race", func(t *testing.T) {
		roles := &mockRoleRepository{createErr: repository.ErrDuplicate}
		service := newRoleService(t, roles, &mockUserRepository{}, &mockPermissionRepository{}, &mockEventPublisher{})

		if _, err := service.Create(context.Background(), CreateRoleInput{Name: "support"}); !errors.Is(err, ErrRoleExists) {
			t.Fatalf("expected ErrRoleExists, got %v", err)
		}
	})
}

func TestRoleService_GetIncludesGrants(t *testing.T) {
	roles := &mockRoleRepository{getByIDResult: &domain.Role{ID: "role-editor", Name: "editor"}}
	permissions := &mockPermissionRepository{listByRoleResult: []domain.Permission{{Name: "user:read"}, {Name: "user:update"}}}

	service := newRoleService(t, roles, &mockUserRepository{}, permissions, &mockEventPublisher{})

	detail, err := service.Get(context.Background(), "role-editor")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if detail.Role.Name != "editor" {
		t.Fatalf("expected editor, got %q", detail.Role.Name)
	}
	if len(detail.Permissions) != 2 {
		t.Fatalf("expected 2 permissions, got %d", len(detail.Permissions))
	}
}

func TestRoleService_UpdateRenamesCustomRole(t *testing.T) {
	roles := &mockRoleRepository{getByIDResult: &domain.Role{ID: "role-support", Name: "support"}}
	service := newRoleService(t, roles, &mockUserRepository{}, &mockPermissionRepository{}, &mockEventPublisher{})

	name := "tier-one-support"
	role, err := service.Update(context.Background(), "role-support", UpdateRoleInput{Name: &name})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if role.Name != "tier-one-support" {
		t.Fatalf("expected renamed role, got %q", role.Name)
	}
	if roles.updatedRole.Name != "tier-one-support" {
		t.Fatalf("expected persisted rename, got %q", roles.updatedRole.Name)
	}
}

func TestRoleService_UpdateProtectsSystemRoleNames(t *testing.T) {
	for _, systemRole := range []string{domain.RoleSuperAdmin, domain.RoleDefault} {
		t.Run(systemRole, func(t *testing.T) {
			roles := &mockRoleRepository{getByIDResult: &domain.Role{ID: "role-sys", Name: systemRole}}
			service := newRoleService(t, roles, &mockUserRepository{}, &mockPermissionRepository{}, &mockEventPublisher{})

			name := "renamed"
			if _, err := service.Update(context.Background(), "role-sys", UpdateRoleInput{Name: &name}); !errors.Is(err, ErrSystemRole) {
				t.Fatalf("expected ErrSystemRole, got %v", err)
			}
			if roles.updateCalls != 0 {
				t.Fatalf("expected no update call, got %d", roles.updateCalls)
			}
		})
	}
}

func TestRoleService_UpdateAllowsSystemRoleDescription(t *testing.T) {
	roles := &mockRoleRepository{getByIDResult: &domain.Role{ID: "role-sys", Name: domain.RoleDefault}}
	service := newRoleService(t, roles, &mockUserRepository{}, &mockPermissionRepository{}, &mockEventPublisher{})

	description := "Baseline role for self-registered accounts"
	role, err := service.Update(context.Background(), "role-sys", UpdateRoleInput{Description: &description})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if role.Description == nil || *role.Description != description {
		t.Fatal("expected description to update")
	}
	if role.Name != domain.RoleDefault {
		t.Fatalf("system role name must not change, got %q", role.Name)
	}
}

func TestRoleService_DeleteRemovesUnassignedRole(t *testing.T) {
	roles := &mockRoleRepository{getByIDResult: &domain.Role{ID: "role-support", Name: "support"}}
	users := &mockUserRepository{countByRoleResult: 0}

	service := newRoleService(t, roles, users, &mockPermissionRepository{}, &mockEventPublisher{})

	if err := service.Delete(context.Background(), "role-support"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if roles.deleteCalls != 1 || roles.deleteLastID != "role-support" {
		t.Fatal("expected one delete call for role-support")
	}
}

func TestRoleService_DeleteBlockedWhileAssigned(t *testing.T) {
	roles := &mockRoleRepository{getByIDResult: &domain.Role{ID: "role-support", Name: "support"}}
	users := &mockUserRepository{countByRoleResult: 3}

	service := newRoleService(t, roles, users, &mockPermissionRepository{}, &mockEventPublisher{})

	if err := service.Delete(context.Background(), "role-support"); !errors.Is(err, ErrRoleInUse) {
		t.Fatalf("expected ErrRoleInUse, got %v", err)
	}
	if roles.deleteCalls != 0 {
		t.Fatalf("expected no delete call, got %d", roles.deleteCalls)
	}
}

func TestRoleService_DeleteProtectsSystemRoles(t *testing.T) {
	roles := &mockRoleRepository{getByIDResult: &domain.Role{ID: "role-root", Name: domain.RoleSuperAdmin}}
	users := &mockUserRepository{}

	service := newRoleService(t, roles, users, &mockPermissionRepository{}, &mockEventPublisher{})

	if err := service.Delete(context.Background(), "role-root"); !errors.Is(err, ErrSystemRole) {
		t.Fatalf("expected ErrSystemRole, got %v", err)
	}
	if users.countByRoleCalls != 0 {
		t.Fatal("system role check must precede the holder count")
	}
}

func TestRoleService_GrantPermission(t *testing.T) {
	roles := &mockRoleRepository{getByIDResult: &domain.Role{ID: "role-editor", Name: "editor"}}
	permissions := &mockPermissionRepository{
		getByIDResult:    &domain.Permission{ID: "perm-1", Resource: "user", Action: "update", Name: "user:update"},
		listByRoleResult: []domain.Permission{{Name: "user:read"}, {Name: "user:update"}},
	}
	events := &mockEventPublisher{}

	service := newRoleService(t, roles, &mockUserRepository{}, permissions, events)

	granted, err := service.Grant(context.Background(), "admin-1", "role-editor", "perm-1")
	if err != nil {
		t.Fatalf("grant: %v", err)
	}

	if permissions.grantCalls != 1 || permissions.grantedRoleID != "role-editor" || permissions.grantedPermission != "perm-1" {
		t.Fatal("expected one grant call for role-editor/perm-1")
	}
	if len(granted) != 2 {
		t.Fatalf("expected updated grant list, got %d entries", len(granted))
	}
	if events.grantedCalls != 1 {
		t.Fatalf("expected one granted event, got %d", events.grantedCalls)
	}
	if events.granted.RoleName != "editor" || events.granted.PermissionName != "user:update" || events.granted.Actor != "admin-1" {
		t.Fatalf("unexpected event: role=%q permission=%q actor=%q",
			events.granted.RoleName, events.granted.PermissionName, events.granted.Actor)
	}
}

func TestRoleService_GrantAgainSucceeds(t *testing.T) {
	// The repository layer treats a duplicate grant as a no-op, so a
	// second grant returns success with the unchanged list.
	roles := &mockRoleRepository{getByIDResult: &domain.Role{ID: "role-editor", Name: "editor"}}
	permissions := &mockPermissionRepository{
		getByIDResult:    &domain.Permission{ID: "perm-1", Name: "user:update"},
		listByRoleResult: []domain.Permission{{Name: "user:update"}},
	}

	service := newRoleService(t, roles, &mockUserRepository{}, permissions, &mockEventPublisher{})

	for i := 0; i < 2; i++ {
		granted, err := service.Grant(context.Background(), "admin-1", "role-editor", "perm-1")
		if err != nil {
			t.Fatalf("grant attempt %d: %v", i+1, err)
		}
		if len(granted) != 1 {
			t.Fatalf("grant attempt %d: expected 1 entry, got %d", i+1, len(granted))
		}
	}
	if permissions.grantCalls != 2 {
		t.Fatalf("expected two grant calls, got %d", permissions.grantCalls)
	}
}

func TestRoleService_GrantUnknownTargets(t *testing.T) {
	t.Run("unknown role", func(t *testing.T) {
		service := newRoleService(t, &mockRoleRepository{}, &mockUserRepository{}, &mockPermissionRepository{}, &mockEventPublisher{})

		if _, err := service.Grant(context.Background(), "admin-1", "ghost", "perm-1"); !errors.Is(err, ErrRoleNotFound) {
			t.Fatalf("expected ErrRoleNotFound, got %v", err)
		}
	})

	t.Run("unknown permission", func(t *testing.T) {
		roles := &mockRoleRepository{getByIDResult: &domain.Role{ID: "role-editor", Name: "editor"}}
		service := newRoleService(t, roles, &mockUserRepository{}, &mockPermissionRepository{}, &mockEventPublisher{})

		if _, err := service.Grant(context.Background(), "admin-1", "role-editor", "ghost"); !errors.Is(err, ErrPermissionNotFound) {
			t.Fatalf("expected ErrPermissionNotFound, got %v", err)
		}
	})
}

func TestRoleService_RevokePermission(t *testing.T) {
	roles := &mockRoleRepository{getByIDResult: &domain.Role{ID: "role-editor", Name: "editor"}}
	permissions := &mockPermissionRepository{
		getByIDResult: &domain.Permission{ID: "perm-1", Name: "user:update"},
	}
	events := &mockEventPublisher{}

	service := newRoleService(t, roles, &mockUserRepository{}, permissions, events)

	if err := service.Revoke(context.Background(), "admin-1", "role-editor", "perm-1"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if permissions.revokeCalls != 1 || permissions.revokedRoleID != "role-editor" || permissions.revokedPermission != "perm-1" {
		t.Fatal("expected one revoke call for role-editor/perm-1")
	}
	if events.revokedCalls != 1 || events.revoked.PermissionName != "user:update" {
		t.Fatalf("expected one revoked event for user:update, got %d", events.revokedCalls)
	}

	// Revoking a grant that is already absent stays a no-op.
	if err := service.Revoke(context.Background(), "admin-1", "role-editor", "perm-1"); err != nil {
		t.Fatalf("second revoke: %v", err)
	}
}
