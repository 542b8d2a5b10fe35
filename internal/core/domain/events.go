package domain

import "time"

// UserRegisteredEvent represents the payload for starter.user.registered messages.
type UserRegisteredEvent struct {
	EventID      string
	UserID       string
	Email        string
	Role         string
	RegisteredAt time.Time
	IPAddress    *string
	Metadata     map[string]any
}

// UserLoggedInEvent represents the payload for starter.user.logged_in messages.
type UserLoggedInEvent struct {
	EventID    string
	UserID     string
	Email      string
	SessionID  string
	IPAddress  *string
	UserAgent  *string
	LoggedInAt time.Time
	Metadata   map[string]any
}

// UserLoggedOutEvent represents the payload for starter.user.logged_out messages.
type UserLoggedOutEvent struct {
	EventID     string
	UserID      string
	SessionID   string
	LoggedOutAt time.Time
	Metadata    map[string]any
}

// TokenRefreshedEvent represents the payload for starter.token.refreshed messages.
type TokenRefreshedEvent struct {
	EventID   string
	UserID    string
	SessionID string
	RotatedAt time.Time
	IPAddress *string
	Metadata  map[string]any
}

// UserDeactivatedEvent represents the payload for starter.user.deactivated messages.
type UserDeactivatedEvent struct {
	EventID       string
	UserID        string
	Actor         string
	DeactivatedAt time.Time
	Metadata      map[string]any
}

// PermissionGrantedEvent represents the payload for starter.permission.granted messages.
type PermissionGrantedEvent struct {
	EventID        string
	RoleID         string
	RoleName       string
	PermissionName string
	Actor          string
	GrantedAt      time.Time
	Metadata       map[string]any
}

// PermissionRevokedEvent represents the payload for starter.permission.revoked messages.
type PermissionRevokedEvent struct {
	EventID        string
	RoleID         string
	RoleName       string
	PermissionName string
	Actor          string
	RevokedAt      time.Time
	Metadata       map[string]any
}
