package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/arklim/api-starter/internal/core/port"
	"github.com/arklim/api-starter/internal/infra/security"
)

const defaultBlacklistPrefix = "auth:blacklist"

// BlacklistRepository records revoked access tokens in Redis. Keys are
// SHA-256 digests of the raw token so revoked credentials are never
// stored verbatim, and entries carry a TTL equal to the token's
// remaining lifetime so the set never outlives the tokens it tracks.
type BlacklistRepository struct {
	client *red.Client
	prefix string
}

// NewBlacklistRepository wires a Redis client into an access-token blacklist.
func NewBlacklistRepository(client *red.Client, keyPrefix string) *BlacklistRepository {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultBlacklistPrefix
	}

	return &BlacklistRepository{client: client, prefix: prefix}
}

// Add marks the access token revoked until the supplied TTL elapses.
func (r *BlacklistRepository) Add(ctx context.Context, token string, ttl time.Duration) error {
	key := r.key(token)
	if key == "" {
		return errors.New("token must not be empty")
	}
	if ttl <= 0 {
		return errors.New("ttl must be positive")
	}

	if err := r.client.Set(ctx, key, "revoked", ttl).Err(); err != nil {
		return fmt.Errorf("redis set blacklisted token: %w", err)
	}

	return nil
}

// Contains reports whether the access token has been revoked.
func (r *BlacklistRepository) Contains(ctx context.Context, token string) (bool, error) {
	key := r.key(token)
	if key == "" {
		return false, errors.New("token must not be empty")
	}

	count, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists blacklisted token: %w", err)
	}

	return count > 0, nil
}

func (r *BlacklistRepository) key(token string) string {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s", r.prefix, security.HashToken(trimmed))
}

var _ port.AccessTokenBlacklist = (*BlacklistRepository)(nil)
