package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/api-starter/internal/core/domain"
	"github.com/arklim/api-starter/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for development environments.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, userID string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published",
		zap.String("event_type", eventType),
		zap.String("user_id", userID),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishUserRegistered logs user.registered events.
func (p *StubPublisher) PublishUserRegistered(_ context.Context, event domain.UserRegisteredEvent) error {
	payload := map[string]any{
		"user_id":       event.UserID,
		"email":         event.Email,
		"role":          event.Role,
		"registered_at": event.RegisteredAt,
		"ip_address":    event.IPAddress,
		"metadata":      event.Metadata,
	}
	p.logEvent("user.registered", event.UserID, event.RegisteredAt, payload)
	return nil
}

// PublishUserLoggedIn logs user.logged_in events.
func (p *StubPublisher) PublishUserLoggedIn(_ context.Context, event domain.UserLoggedInEvent) error {
	payload := map[string]any{
		"user_id":      event.UserID,
		"email":        event.Email,
		"session_id":   event.SessionID,
		"ip_address":   event.IPAddress,
		"user_agent":   event.UserAgent,
		"logged_in_at": event.LoggedInAt,
		"metadata":     event.Metadata,
	}
	p.logEvent("user.logged_in", event.UserID, event.LoggedInAt, payload)
	return nil
}

// PublishUserLoggedOut logs user.logged_out events.
func (p *StubPublisher) PublishUserLoggedOut(_ context.Context, event domain.UserLoggedOutEvent) error {
	payload := map[string]any{
		"user_id":       event.UserID,
		"session_id":    event.SessionID,
		"logged_out_at": event.LoggedOutAt,
		"metadata":      event.Metadata,
	}
	p.logEvent("user.logged_out", event.UserID, event.LoggedOutAt, payload)
	return nil
}

// PublishTokenRefreshed logs token.refreshed events.
func (p *StubPublisher) PublishTokenRefreshed(_ context.Context, event domain.TokenRefreshedEvent) error {
	payload := map[string]any{
		"user_id":    event.UserID,
		"session_id": event.SessionID,
		"rotated_at": event.RotatedAt,
		"ip_address": event.IPAddress,
		"metadata":   event.Metadata,
	}
	p.logEvent("token.refreshed", event.UserID, event.RotatedAt, payload)
	return nil
}

// PublishUserDeactivated logs user.deactivated events.
func (p *StubPublisher) PublishUserDeactivated(_ context.Context, event domain.UserDeactivatedEvent) error {
	payload := map[string]any{
		"user_id":        event.UserID,
		"actor":          event.Actor,
		"deactivated_at": event.DeactivatedAt,
		"metadata":       event.Metadata,
	}
	p.logEvent("user.deactivated", event.UserID, event.DeactivatedAt, payload)
	return nil
}

// PublishPermissionGranted logs permission.granted events.
func (p *StubPublisher) PublishPermissionGranted(_ context.Context, event domain.PermissionGrantedEvent) error {
	payload := map[string]any{
		"role_id":         event.RoleID,
		"role_name":       event.RoleName,
		"permission_name": event.PermissionName,
		"actor":           event.Actor,
		"granted_at":      event.GrantedAt,
		"metadata":        event.Metadata,
	}
	p.logEvent("permission.granted", event.Actor, event.GrantedAt, payload)
	return nil
}

// PublishPermissionRevoked logs permission.revoked events.
func (p *StubPublisher) PublishPermissionRevoked(_ context.Context, event domain.PermissionRevokedEvent) error {
	payload := map[string]any{
		"role_id":         event.RoleID,
		"role_name":       event.RoleName,
		"permission_name": event.PermissionName,
		"actor":           event.Actor,
		"revoked_at":      event.RevokedAt,
		"metadata":        event.Metadata,
	}
	p.logEvent("permission.revoked", event.Actor, event.RevokedAt, payload)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
