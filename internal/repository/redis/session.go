package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/arklim/api-starter/internal/core/domain"
	"github.com/arklim/api-starter/internal/core/port"
	"github.com/arklim/api-starter/internal/repository"
)

const defaultSessionPrefix = "session"

// SessionRepository caches login session metadata in Redis. Sessions are
// auxiliary state: tokens stay verifiable when a session record is lost,
// so every write here is best-effort from the caller's point of view.
//
// Each session lives under <prefix>:<id> with a fixed TTL, and a
// companion <prefix>:user:<userID> set indexes the ids per subject so
// sessions can be listed without a scan.
type SessionRepository struct {
	client *red.Client
	prefix string
}

type sessionRecord struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	IP        *string   `json:"ip,omitempty"`
	UserAgent *string   `json:"user_agent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	LastSeen  time.Time `json:"last_seen"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewSessionRepository wires a Redis client into a session store.
func NewSessionRepository(client *red.Client, keyPrefix string) *SessionRepository {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultSessionPrefix
	}

	return &SessionRepository{client: client, prefix: prefix}
}

// Save stores the session under its id and indexes it for its user.
func (r *SessionRepository) Save(ctx context.Context, session domain.Session, ttl time.Duration) error {
	key := r.key(session.ID)
	if key == "" {
		return errors.New("session id must not be empty")
	}
	if strings.TrimSpace(session.UserID) == "" {
		return errors.New("session user id must not be empty")
	}
	if ttl <= 0 {
		return errors.New("ttl must be positive")
	}

	payload, err := json.Marshal(toSessionRecord(session))
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, key, payload, ttl)
	pipe.SAdd(ctx, r.userKey(session.UserID), session.ID)
	pipe.Expire(ctx, r.userKey(session.UserID), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis save session: %w", err)
	}

	return nil
}

// Get returns the session stored under the supplied id.
// Returns repository.ErrNotFound when the session is absent or expired.
func (r *SessionRepository) Get(ctx context.Context, id string) (*domain.Session, error) {
	key := r.key(id)
	if key == "" {
		return nil, errors.New("session id must not be empty")
	}

	payload, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("redis get session: %w", err)
	}

	var record sessionRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}

	session := fromSessionRecord(record)
	return &session, nil
}

// Touch updates the session's last-seen timestamp without changing its TTL.
func (r *SessionRepository) Touch(ctx context.Context, id string, at time.Time) error {
	key := r.key(id)
	if key == "" {
		return errors.New("session id must not be empty")
	}

	payload, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return repository.ErrNotFound
		}
		return fmt.Errorf("redis get session: %w", err)
	}

	var record sessionRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return fmt.Errorf("unmarshal session: %w", err)
	}

	record.LastSeen = at.UTC()

	updated, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	if err := r.client.Set(ctx, key, updated, red.KeepTTL).Err(); err != nil {
		return fmt.Errorf("redis touch session: %w", err)
	}

	return nil
}

// Delete removes the session and its index entry. Deleting an absent
// session is a no-op.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	key := r.key(id)
	if key == "" {
		return errors.New("session id must not be empty")
	}

	session, err := r.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.SRem(ctx, r.userKey(session.UserID), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis delete session: %w", err)
	}

	return nil
}

// ListByUser returns the user's live sessions, pruning index entries
// whose session keys have already expired.
func (r *SessionRepository) ListByUser(ctx context.Context, userID string) ([]domain.Session, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errors.New("user id must not be empty")
	}

	ids, err := r.client.SMembers(ctx, r.userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list session ids: %w", err)
	}

	sessions := make([]domain.Session, 0, len(ids))
	for _, id := range ids {
		session, err := r.Get(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				_ = r.client.SRem(ctx, r.userKey(userID), id).Err()
				continue
			}
			return nil, err
		}
		sessions = append(sessions, *session)
	}

	return sessions, nil
}

func (r *SessionRepository) key(id string) string {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s", r.prefix, trimmed)
}

func (r *SessionRepository) userKey(userID string) string {
	return fmt.Sprintf("%s:user:%s", r.prefix, strings.TrimSpace(userID))
}

func toSessionRecord(session domain.Session) sessionRecord {
	return sessionRecord{
		ID:        session.ID,
		UserID:    session.UserID,
		Email:     session.Email,
		Role:      session.Role,
		IP:        session.IP,
		UserAgent: session.UserAgent,
		CreatedAt: session.CreatedAt.UTC(),
		LastSeen:  session.LastSeen.UTC(),
		ExpiresAt: session.ExpiresAt.UTC(),
	}
}

func fromSessionRecord(record sessionRecord) domain.Session {
	return domain.Session{
		ID:        record.ID,
		UserID:    record.UserID,
		Email:     record.Email,
		Role:      record.Role,
		IP:        record.IP,
		UserAgent: record.UserAgent,
		CreatedAt: record.CreatedAt,
		LastSeen:  record.LastSeen,
		ExpiresAt: record.ExpiresAt,
	}
}

var _ port.SessionStore = (*SessionRepository)(nil)
