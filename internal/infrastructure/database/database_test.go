package database

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(Config{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		db.Close() //nolint:errcheck // test cleanup
	})
	return db
}

func TestOpen_CreatesDirectoryAndFile(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(Config{
		Path:        filepath.Join(dir, "nested", "data", "test.db"),
		WALMode:     false,
		BusyTimeout: 1,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close() //nolint:errcheck // test cleanup

	if err := db.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestHealthCheck(t *testing.T) {
	db := openTestDB(t)
	if err := db.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestClose_Idempotent(t *testing.T) {
	db := openTestDB(t)
	if err := db.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestForeignKeysEnabled(t *testing.T) {
	db := openTestDB(t)

	var enabled int
	if err := db.QueryRowContext(context.Background(), "PRAGMA foreign_keys").Scan(&enabled); err != nil {
		t.Fatalf("querying foreign_keys pragma: %v", err)
	}
	if enabled != 1 {
		t.Error("foreign keys should be enabled")
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		name        string
		wantVersion string
		wantUp      bool
		wantOK      bool
	}{
		{"20260110_120000_initial_schema.up.sql", "20260110_120000", true, true},
		{"20260110_120000_initial_schema.down.sql", "20260110_120000", false, true},
		{"notes.txt", "", false, false},
		{"badname.sql", "", false, false},
		{"20260110_120000_add_shares.up.sql", "20260110_120000", true, true},
	}

	for _, tt := range tests {
		version, isUp, ok := parseMigrationFilename(tt.name)
		if ok != tt.wantOK {
			t.Errorf("parseMigrationFilename(%q) ok = %v, want %v", tt.name, ok, tt.wantOK)
			continue
		}
		if !ok {
			continue
		}
		if version != tt.wantVersion || isUp != tt.wantUp {
			t.Errorf("parseMigrationFilename(%q) = (%q, %v), want (%q, %v)",
				tt.name, version, isUp, tt.wantVersion, tt.wantUp)
		}
	}
}

func TestExtractMigrationName(t *testing.T) {
	if got := extractMigrationName("20260110_120000_initial_schema.up.sql"); got != "initial_schema" {
		t.Errorf("extractMigrationName() = %q, want initial_schema", got)
	}
}

func TestMigrate_NoEmbeddedFS(t *testing.T) {
	db := openTestDB(t)
	// Without registered migrations, Migrate is a no-op beyond creating
	// the bookkeeping table.
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	var count int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	if err != nil {
		t.Fatalf("querying schema_migrations: %v", err)
	}
	if count != 0 {
		t.Errorf("schema_migrations has %d rows, want 0", count)
	}
}
