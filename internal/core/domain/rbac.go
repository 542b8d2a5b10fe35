package domain

import (
	"fmt"
	"regexp"
	"time"
)

// RoleSuperAdmin bypasses every permission check.
const RoleSuperAdmin = "super_admin"

// RoleDefault is assigned to self-registered users.
const RoleDefault = "user"

// Well-known resources. The catalog is extensible; these cover the
// endpoints the service itself exposes.
const (
	ResourceUser       = "user"
	ResourceRole       = "role"
	ResourcePermission = "permission"
	ResourceProduct    = "product"
	ResourceOrder      = "order"
	ResourcePayment    = "payment"
	ResourceReport     = "report"
	ResourceSettings   = "settings"
)

// Core actions shared by most resources. Resource-specific verbs
// (cancel, refund, export) are accepted as long as they match the
// permission part shape.
const (
	ActionCreate = "create"
	ActionRead   = "read"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionAssign = "assign"
)

var permissionPartPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Role defines a named set of permissions.
type Role struct {
	ID          string
	Name        string
	Description *string
	CreatedAt   time.Time
}

// IsSuperAdmin reports whether the role short-circuits permission checks.
func (r Role) IsSuperAdmin() bool {
	return r.Name == RoleSuperAdmin
}

// Permission defines a capability as a (resource, action) pair. Name is
// always derived from the pair and is unique across the catalog.
type Permission struct {
	ID          string
	Resource    string
	Action      string
	Name        string
	Description *string
	CreatedAt   time.Time
}

// RolePermission links a role with a granted permission.
type RolePermission struct {
	RoleID       string
	PermissionID string
	GrantedAt    time.Time
}

// PermissionName derives the canonical "<resource>:<action>" permission name.
func PermissionName(resource, action string) string {
	return resource + ":" + action
}

// ValidatePermissionParts checks that resource and action are lowercase
// snake-case identifiers so derived names stay unambiguous.
func ValidatePermissionParts(resource, action string) error {
	if !permissionPartPattern.MatchString(resource) {
		return fmt.Errorf("invalid permission resource %q", resource)
	}
	if !permissionPartPattern.MatchString(action) {
		return fmt.Errorf("invalid permission action %q", action)
	}
	return nil
}
