package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"tradepost/api/internal/store"
)

func setupTestRedis(t *testing.T) *RedisStore {
	t.Helper()
	s := miniredis.RunT(t)
	sessions, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	t.Cleanup(func() { sessions.Close() })
	return sessions
}

func TestSaveAndLookupRefreshSession(t *testing.T) {
	sessions := setupTestRedis(t)
	ctx := context.Background()

	user := store.User{ID: "507f1f77bcf86cd799439011", Username: "casey42", Email: "casey@example.com"}
	if err := sessions.SaveRefreshSession(ctx, "hash-1", user, time.Now().Add(24*time.Hour)); err != nil {
		t.Fatalf("SaveRefreshSession failed: %v", err)
	}

	got, err := sessions.LookupRefreshSession(ctx, "hash-1")
	if err != nil {
		t.Fatalf("LookupRefreshSession failed: %v", err)
	}
	if got.ID != user.ID || got.Username != user.Username || got.Email != user.Email {
		t.Errorf("identity mismatch: got %+v", got)
	}
}

func TestLookupExpiredSession(t *testing.T) {
	s := miniredis.RunT(t)
	sessions, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	defer sessions.Close()
	ctx := context.Background()

	user := store.User{ID: "u1"}
	if err := sessions.SaveRefreshSession(ctx, "hash-2", user, time.Now().Add(time.Millisecond)); err != nil {
		t.Fatalf("SaveRefreshSession failed: %v", err)
	}

	s.FastForward(2 * time.Millisecond)

	if _, err := sessions.LookupRefreshSession(ctx, "hash-2"); err == nil {
		t.Error("expected error for expired token, got nil")
	}
}

func TestRevokeRefreshSession(t *testing.T) {
	sessions := setupTestRedis(t)
	ctx := context.Background()

	user := store.User{ID: "u1"}
	if err := sessions.SaveRefreshSession(ctx, "hash-3", user, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("SaveRefreshSession failed: %v", err)
	}
	if err := sessions.RevokeRefreshSession(ctx, "hash-3"); err != nil {
		t.Fatalf("RevokeRefreshSession failed: %v", err)
	}
	if _, err := sessions.LookupRefreshSession(ctx, "hash-3"); err == nil {
		t.Error("expected error after revocation, got nil")
	}
}

func TestLookupNonExistentSession(t *testing.T) {
	sessions := setupTestRedis(t)
	if _, err := sessions.LookupRefreshSession(context.Background(), "nope"); err == nil {
		t.Error("expected error for unknown token, got nil")
	}
}
