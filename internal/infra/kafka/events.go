package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arklim/api-starter/internal/core/domain"
	"github.com/arklim/api-starter/internal/core/port"
	"github.com/arklim/api-starter/internal/infra/config"
)

const schemaVersion = "1.0"

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	UserID    string           `json:"user_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, userID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}

	if span := trace.SpanFromContext(ctx); span != nil {
		if sc := span.SpanContext(); sc.IsValid() {
			metadata["trace_id"] = sc.TraceID().String()
		}
	}

	envelope := eventEnvelope{
		EventID:   id,
		EventType: eventType,
		UserID:    userID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishUserRegistered publishes user.registered events.
func (p *EventPublisher) PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error {
	payload := struct {
		UserID       string         `json:"user_id"`
		Email        string         `json:"email"`
		Role         string         `json:"role"`
		RegisteredAt time.Time      `json:"registered_at"`
		IPAddress    *string        `json:"ip_address,omitempty"`
		Metadata     map[string]any `json:"metadata,omitempty"`
	}{
		UserID:       event.UserID,
		Email:        event.Email,
		Role:         event.Role,
		RegisteredAt: event.RegisteredAt.UTC(),
		IPAddress:    event.IPAddress,
		Metadata:     event.Metadata,
	}

	return p.publish(ctx, event.EventID, "user.registered", event.UserID, event.RegisteredAt, payload)
}

// PublishUserLoggedIn publishes user.logged_in events.
func (p *EventPublisher) PublishUserLoggedIn(ctx context.Context, event domain.UserLoggedInEvent) error {
	payload := struct {
		UserID     string         `json:"user_id"`
		Email      string         `json:"email"`
		SessionID  string         `json:"session_id"`
		IPAddress  *string        `json:"ip_address,omitempty"`
		UserAgent  *string        `json:"user_agent,omitempty"`
		LoggedInAt time.Time      `json:"logged_in_at"`
		Metadata   map[string]any `json:"metadata,omitempty"`
	}{
		UserID:     event.UserID,
		Email:      event.Email,
		SessionID:  event.SessionID,
		IPAddress:  event.IPAddress,
		UserAgent:  event.UserAgent,
		LoggedInAt: event.LoggedInAt.UTC(),
		Metadata:   event.Metadata,
	}

	return p.publish(ctx, event.EventID, "user.logged_in", event.UserID, event.LoggedInAt, payload)
}

// PublishUserLoggedOut publishes user.logged_out events.
func (p *EventPublisher) PublishUserLoggedOut(ctx context.Context, event domain.UserLoggedOutEvent) error {
	payload := struct {
		UserID      string         `json:"user_id"`
		SessionID   string         `json:"session_id,omitempty"`
		LoggedOutAt time.Time      `json:"logged_out_at"`
		Metadata    map[string]any `json:"metadata,omitempty"`
	}{
		UserID:      event.UserID,
		SessionID:   event.SessionID,
		LoggedOutAt: event.LoggedOutAt.UTC(),
		Metadata:    event.Metadata,
	}

	return p.publish(ctx, event.EventID, "user.logged_out", event.UserID, event.LoggedOutAt, payload)
}

// PublishTokenRefreshed publishes token.refreshed events.
func (p *EventPublisher) PublishTokenRefreshed(ctx context.Context, event domain.TokenRefreshedEvent) error {
	payload := struct {
		UserID    string         `json:"user_id"`
		SessionID string         `json:"session_id,omitempty"`
		RotatedAt time.Time      `json:"rotated_at"`
		IPAddress *string        `json:"ip_address,omitempty"`
		Metadata  map[string]any `json:"metadata,omitempty"`
	}{
		UserID:    event.UserID,
		SessionID: event.SessionID,
		RotatedAt: event.RotatedAt.UTC(),
		IPAddress: event.IPAddress,
		Metadata:  event.Metadata,
	}

	return p.publish(ctx, event.EventID, "token.refreshed", event.UserID, event.RotatedAt, payload)
}

// PublishUserDeactivated publishes user.deactivated events.
func (p *EventPublisher) PublishUserDeactivated(ctx context.Context, event domain.UserDeactivatedEvent) error {
	payload := struct {
		UserID        string         `json:"user_id"`
		Actor         string         `json:"actor,omitempty"`
		DeactivatedAt time.Time      `json:"deactivated_at"`
		Metadata      map[string]any `json:"metadata,omitempty"`
	}{
		UserID:        event.UserID,
		Actor:         event.Actor,
		DeactivatedAt: event.DeactivatedAt.UTC(),
		Metadata:      event.Metadata,
	}

	return p.publish(ctx, event.EventID, "user.deactivated", event.UserID, event.DeactivatedAt, payload)
}

// PublishPermissionGranted publishes permission.granted events. The
// envelope user is the acting administrator; the payload names the role
// whose grant set changed.
func (p *EventPublisher) PublishPermissionGranted(ctx context.Context, event domain.PermissionGrantedEvent) error {
	payload := struct {
		RoleID         string         `json:"role_id"`
		RoleName       string         `json:"role_name"`
		PermissionName string         `json:"permission_name"`
		Actor          string         `json:"actor,omitempty"`
		GrantedAt      time.Time      `json:"granted_at"`
		Metadata       map[string]any `json:"metadata,omitempty"`
	}{
		RoleID:         event.RoleID,
		RoleName:       event.RoleName,
		PermissionName: event.PermissionName,
		Actor:          event.Actor,
		GrantedAt:      event.GrantedAt.UTC(),
		Metadata:       event.Metadata,
	}

	return p.publish(ctx, event.EventID, "permission.granted", event.Actor, event.GrantedAt, payload)
}

// PublishPermissionRevoked publishes permission.revoked events.
func (p *EventPublisher) PublishPermissionRevoked(ctx context.Context, event domain.PermissionRevokedEvent) error {
	payload := struct {
		RoleID         string         `json:"role_id"`
		RoleName       string         `json:"role_name"`
		PermissionName string         `json:"permission_name"`
		Actor          string         `json:"actor,omitempty"`
		RevokedAt      time.Time      `json:"revoked_at"`
		Metadata       map[string]any `json:"metadata,omitempty"`
	}{
		RoleID:         event.RoleID,
		RoleName:       event.RoleName,
		PermissionName: event.PermissionName,
		Actor:          event.Actor,
		RevokedAt:      event.RevokedAt.UTC(),
		Metadata:       event.Metadata,
	}

	return p.publish(ctx, event.EventID, "permission.revoked", event.Actor, event.RevokedAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
