package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/arklim/api-starter/internal/core/port"
	"github.com/arklim/api-starter/internal/repository"
)

const defaultRefreshTokenPrefix = "auth:refresh"

// RefreshTokenRepository keeps the single active refresh token per subject
// in Redis. An unconditional SET on store is what enforces rotation: the
// previous token stops matching the cross-check the moment a new one lands.
type RefreshTokenRepository struct {
	client *red.Client
	prefix string
}

// NewRefreshTokenRepository wires a Redis client into a refresh token store.
func NewRefreshTokenRepository(client *red.Client, keyPrefix string) *RefreshTokenRepository {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultRefreshTokenPrefix
	}

	return &RefreshTokenRepository{client: client, prefix: prefix}
}

// Store saves the refresh token for the subject, replacing any prior one.
func (r *RefreshTokenRepository) Store(ctx context.Context, subjectID, token string, ttl time.Duration) error {
	key := r.key(subjectID)
	if key == "" {
		return errors.New("subject id must not be empty")
	}
	if strings.TrimSpace(token) == "" {
		return errors.New("token must not be empty")
	}
	if ttl <= 0 {
		return errors.New("ttl must be positive")
	}

	if err := r.client.Set(ctx, key, token, ttl).Err(); err != nil {
		return fmt.Errorf("redis set refresh token: %w", err)
	}

	return nil
}

// Get returns the currently stored refresh token for the subject.
// Returns repository.ErrNotFound when no token is stored.
func (r *RefreshTokenRepository) Get(ctx context.Context, subjectID string) (string, error) {
	key := r.key(subjectID)
	if key == "" {
		return "", errors.New("subject id must not be empty")
	}

	value, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return "", repository.ErrNotFound
		}
		return "", fmt.Errorf("redis get refresh token: %w", err)
	}

	return value, nil
}

// Remove deletes the stored refresh token for the subject. Removing an
// absent token is a no-op.
func (r *RefreshTokenRepository) Remove(ctx context.Context, subjectID string) error {
	key := r.key(subjectID)
	if key == "" {
		return errors.New("subject id must not be empty")
	}

	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del refresh token: %w", err)
	}

	return nil
}

func (r *RefreshTokenRepository) key(subjectID string) string {
	trimmed := strings.TrimSpace(subjectID)
	if trimmed == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s", r.prefix, trimmed)
}

var _ port.RefreshTokenStore = (*RefreshTokenRepository)(nil)
