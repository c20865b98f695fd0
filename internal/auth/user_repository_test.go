package auth

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// setupAuthDB creates an in-memory SQLite database with the auth tables.
func setupAuthDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			display_name TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL,
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE TABLE refresh_tokens (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			token_hash TEXT NOT NULL UNIQUE,
			expires_at TEXT NOT NULL,
			revoked INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		);
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func TestUserCreateAndGet(t *testing.T) {
	db := setupAuthDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	user := &User{Username: "alice", DisplayName: "Alice", PasswordHash: "hash", IsActive: true}
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if user.ID == "" {
		t.Error("Create() should generate an ID")
	}

	byID, err := repo.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetByID() error: %v", err)
	}
	if byID.Username != "alice" || !byID.IsActive {
		t.Errorf("GetByID() = %+v", byID)
	}

	byName, err := repo.GetByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("GetByUsername() error: %v", err)
	}
	if byName.ID != user.ID {
		t.Errorf("GetByUsername() returned %s, want %s", byName.ID, user.ID)
	}
}

func TestUserCreate_DuplicateUsername(t *testing.T) {
	db := setupAuthDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	if err := repo.Create(ctx, &User{Username: "alice", PasswordHash: "h", IsActive: true}); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	err := repo.Create(ctx, &User{Username: "alice", PasswordHash: "h", IsActive: true})
	if !errors.Is(err, ErrUsernameExists) {
		t.Errorf("expected ErrUsernameExists, got %v", err)
	}
}

func TestUserGet_NotFound(t *testing.T) {
	db := setupAuthDB(t)
	repo := NewUserRepository(db)

	if _, err := repo.GetByID(context.Background(), "usr-nope"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := repo.GetByUsername(context.Background(), "nobody"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestUserUpdateAndDelete(t *testing.T) {
	db := setupAuthDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	user := &User{Username: "alice", DisplayName: "Alice", PasswordHash: "h", IsActive: true}
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	user.DisplayName = "Alice Cooper"
	user.IsActive = false
	if err := repo.Update(ctx, user); err != nil {
		t.Fatalf("Update() error: %v", err)
	}

	got, err := repo.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetByID() error: %v", err)
	}
	if got.DisplayName != "Alice Cooper" || got.IsActive {
		t.Errorf("Update() not applied: %+v", got)
	}

	if err := repo.UpdatePassword(ctx, user.ID, "new-hash"); err != nil {
		t.Fatalf("UpdatePassword() error: %v", err)
	}
	got, err = repo.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetByID() error: %v", err)
	}
	if got.PasswordHash != "new-hash" {
		t.Error("UpdatePassword() not applied")
	}

	if err := repo.Delete(ctx, user.ID); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if _, err := repo.GetByID(ctx, user.ID); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound after delete, got %v", err)
	}
}

func TestUserCountAndList(t *testing.T) {
	db := setupAuthDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	count, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 users, got %d", count)
	}

	users, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(users) != 0 {
		t.Errorf("expected empty list, got %d", len(users))
	}

	for _, name := range []string{"alice", "bob"} {
		if err := repo.Create(ctx, &User{Username: name, PasswordHash: "h", IsActive: true}); err != nil {
			t.Fatalf("Create(%s) error: %v", name, err)
		}
	}

	count, err = repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 users, got %d", count)
	}
}
