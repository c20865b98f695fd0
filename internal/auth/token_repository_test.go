package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func seedTokenUser(t *testing.T, repo UserRepository) *User {
	t.Helper()
	user := &User{Username: "alice", PasswordHash: "h", IsActive: true}
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("seeding user: %v", err)
	}
	return user
}

func TestTokenCreateAndGetByHash(t *testing.T) {
	db := setupAuthDB(t)
	user := seedTokenUser(t, NewUserRepository(db))
	repo := NewTokenRepository(db)
	ctx := context.Background()

	raw, err := GenerateRefreshToken()
	if err != nil {
		t.Fatalf("GenerateRefreshToken() error: %v", err)
	}

	token := &RefreshToken{
		UserID:    user.ID,
		TokenHash: HashToken(raw),
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}
	if err := repo.Create(ctx, token); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if token.ID == "" {
		t.Error("Create() should generate an ID")
	}

	got, err := repo.GetByTokenHash(ctx, HashToken(raw))
	if err != nil {
		t.Fatalf("GetByTokenHash() error: %v", err)
	}
	if got.UserID != user.ID || got.Revoked {
		t.Errorf("GetByTokenHash() = %+v", got)
	}
}

func TestTokenGetByHash_Unknown(t *testing.T) {
	db := setupAuthDB(t)
	repo := NewTokenRepository(db)

	_, err := repo.GetByTokenHash(context.Background(), HashToken("never-issued"))
	if !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestTokenRevoke(t *testing.T) {
	db := setupAuthDB(t)
	user := seedTokenUser(t, NewUserRepository(db))
	repo := NewTokenRepository(db)
	ctx := context.Background()

	token := &RefreshToken{
		UserID:    user.ID,
		TokenHash: HashToken("raw-1"),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := repo.Create(ctx, token); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	if err := repo.Revoke(ctx, token.ID); err != nil {
		t.Fatalf("Revoke() error: %v", err)
	}

	got, err := repo.GetByTokenHash(ctx, HashToken("raw-1"))
	if err != nil {
		t.Fatalf("GetByTokenHash() error: %v", err)
	}
	if !got.Revoked {
		t.Error("token should be revoked")
	}
}

func TestTokenRotate(t *testing.T) {
	db := setupAuthDB(t)
	user := seedTokenUser(t, NewUserRepository(db))
	repo := NewTokenRepository(db)
	ctx := context.Background()

	oldToken := &RefreshToken{
		UserID:    user.ID,
		TokenHash: HashToken("old-raw"),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := repo.Create(ctx, oldToken); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	newToken := &RefreshToken{
		UserID:    user.ID,
		TokenHash: HashToken("new-raw"),
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}
	if err := repo.Rotate(ctx, oldToken.ID, newToken); err != nil {
		t.Fatalf("Rotate() error: %v", err)
	}

	old, err := repo.GetByTokenHash(ctx, HashToken("old-raw"))
	if err != nil {
		t.Fatalf("GetByTokenHash(old) error: %v", err)
	}
	if !old.Revoked {
		t.Error("old token should be revoked after rotation")
	}

	fresh, err := repo.GetByTokenHash(ctx, HashToken("new-raw"))
	if err != nil {
		t.Fatalf("GetByTokenHash(new) error: %v", err)
	}
	if fresh.Revoked {
		t.Error("new token should not be revoked")
	}
}

func TestTokenRevokeAllForUser(t *testing.T) {
	db := setupAuthDB(t)
	user := seedTokenUser(t, NewUserRepository(db))
	repo := NewTokenRepository(db)
	ctx := context.Background()

	for _, raw := range []string{"raw-a", "raw-b"} {
		token := &RefreshToken{
			UserID:    user.ID,
			TokenHash: HashToken(raw),
			ExpiresAt: time.Now().Add(time.Hour),
		}
		if err := repo.Create(ctx, token); err != nil {
			t.Fatalf("Create(%s) error: %v", raw, err)
		}
	}

	if err := repo.RevokeAllForUser(ctx, user.ID); err != nil {
		t.Fatalf("RevokeAllForUser() error: %v", err)
	}

	for _, raw := range []string{"raw-a", "raw-b"} {
		got, err := repo.GetByTokenHash(ctx, HashToken(raw))
		if err != nil {
			t.Fatalf("GetByTokenHash(%s) error: %v", raw, err)
		}
		if !got.Revoked {
			t.Errorf("token %s should be revoked", raw)
		}
	}
}

func TestTokenDeleteExpired(t *testing.T) {
	db := setupAuthDB(t)
	user := seedTokenUser(t, NewUserRepository(db))
	repo := NewTokenRepository(db)
	ctx := context.Background()

	expired := &RefreshToken{
		UserID:    user.ID,
		TokenHash: HashToken("expired-raw"),
		ExpiresAt: time.Now().Add(-time.Hour),
	}
	live := &RefreshToken{
		UserID:    user.ID,
		TokenHash: HashToken("live-raw"),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	for _, tok := range []*RefreshToken{expired, live} {
		if err := repo.Create(ctx, tok); err != nil {
			t.Fatalf("Create() error: %v", err)
		}
	}

	n, err := repo.DeleteExpired(ctx)
	if err != nil {
		t.Fatalf("DeleteExpired() error: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 deleted token, got %d", n)
	}

	if _, err := repo.GetByTokenHash(ctx, HashToken("expired-raw")); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("expired token should be gone, got %v", err)
	}
	if _, err := repo.GetByTokenHash(ctx, HashToken("live-raw")); err != nil {
		t.Errorf("live token should remain: %v", err)
	}
}
