package port

import (
	"context"
	"time"

	"github.com/arklim/api-starter/internal/core/domain"
)

// RefreshTokenStore keeps at most one active refresh token per subject.
// Storing a new token replaces whatever was there before, which is what
// invalidates older refresh tokens on rotation.
type RefreshTokenStore interface {
	Store(ctx context.Context, subjectID, token string, ttl time.Duration) error
	Get(ctx context.Context, subjectID string) (string, error)
	Remove(ctx context.Context, subjectID string) error
}

// AccessTokenBlacklist records revoked access tokens until their natural
// expiry so logout takes effect before the token runs out.
type AccessTokenBlacklist interface {
	Add(ctx context.Context, token string, ttl time.Duration) error
	Contains(ctx context.Context, token string) (bool, error)
}

// SessionStore caches login session metadata alongside the refresh token
// lifetime. Session loss is non-fatal; tokens stay verifiable without it.
type SessionStore interface {
	Save(ctx context.Context, session domain.Session, ttl time.Duration) error
	Get(ctx context.Context, id string) (*domain.Session, error)
	Touch(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
	ListByUser(ctx context.Context, userID string) ([]domain.Session, error)
}

// RateLimitStore defines the persistence operations required to enforce sliding-window limits.
type RateLimitStore interface {
	TrimWindow(ctx context.Context, identifier string, window time.Duration, reference time.Time) error
	CountAttempts(ctx context.Context, identifier string, window time.Duration, reference time.Time) (int, error)
	RecordAttempt(ctx context.Context, identifier string, at time.Time) error
	OldestAttempt(ctx context.Context, identifier string, window time.Duration, reference time.Time) (time.Time, bool, error)
}
