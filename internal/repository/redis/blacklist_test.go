package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	red "github.com/redis/go-redis/v9"

	"github.com/arklim/api-starter/internal/infra/security"
)

func newTestRedis(t *testing.T) (*red.Client, *miniredis.Miniredis) {
	t.Helper()

	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := red.NewClient(&red.Options{Addr: server.Addr()})

	t.Cleanup(func() {
		_ = client.Close()
		server.Close()
	})

	return client, server
}

func TestBlacklistRepository_AddAndContains(t *testing.T) {
	client, server := newTestRedis(t)
	repo := NewBlacklistRepository(client, "auth:blacklist")

	ctx := context.Background()
	token := "header.payload.signature"
	ttl := 2 * time.Minute

	if err := repo.Add(ctx, token, ttl); err != nil {
		t.Fatalf("Add returned error: %v", err)
	}

	revoked, err := repo.Contains(ctx, token)
	if err != nil {
		t.Fatalf("Contains returned error: %v", err)
	}
	if !revoked {
		t.Fatalf("expected token to be blacklisted")
	}

	remaining := server.TTL("auth:blacklist:" + security.HashToken(token))
	if remaining <= 0 || remaining > ttl {
		t.Fatalf("expected ttl within (0, %v], got %v", ttl, remaining)
	}
}

func TestBlacklistRepository_SelfExpires(t *testing.T) {
	client, server := newTestRedis(t)
	repo := NewBlacklistRepository(client, "auth:blacklist")

	ctx := context.Background()
	token := "short.lived.token"

	if err := repo.Add(ctx, token, time.Minute); err != nil {
		t.Fatalf("Add returned error: %v", err)
	}

	server.FastForward(61 * time.Second)

	revoked, err := repo.Contains(ctx, token)
	if err != nil {
		t.Fatalf("Contains returned error: %v", err)
	}
	if revoked {
		t.Fatalf("expected blacklist entry to expire with the token")
	}
}

func TestBlacklistRepository_ContainsMiss(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewBlacklistRepository(client, "auth:blacklist")

	revoked, err := repo.Contains(context.Background(), "never.seen.token")
	if err != nil {
		t.Fatalf("Contains returned error: %v", err)
	}
	if revoked {
		t.Fatalf("expected unknown token to not be blacklisted")
	}
}

func TestBlacklistRepository_InvalidInput(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewBlacklistRepository(client, "auth:blacklist")

	if err := repo.Add(context.Background(), "", time.Minute); err == nil {
		t.Fatalf("expected error for empty token")
	}
	if err := repo.Add(context.Background(), "token", 0); err == nil {
		t.Fatalf("expected error for non-positive ttl")
	}
	if _, err := repo.Contains(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty token in Contains")
	}
}
