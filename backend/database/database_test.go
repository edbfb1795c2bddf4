package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestOpenAndClose(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if db == nil {
		t.Fatal("db is nil")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var version string
	if err := db.QueryRowContext(ctx, "SELECT sqlite_version()").Scan(&version); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if version == "" {
		t.Fatal("sqlite version is empty")
	}
	t.Logf("SQLite version: %s", version)

	if err := db.Checkpoint(ctx); err != nil {
		t.Fatalf("Checkpoint failed: %v", err)
	}
	if err := db.CloseSafe(); err != nil {
		t.Fatalf("CloseSafe failed: %v", err)
	}
}

func TestMigrateAndCountUsers(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.CloseSafe()

	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	// Migrate must be idempotent: a second run against the same file
	// shouldn't fail on "table already exists" or the ALTER TABLE
	// duplicate-column guards.
	if err := db.Migrate(); err != nil {
		t.Fatalf("second Migrate failed: %v", err)
	}

	ctx := context.Background()
	count, err := db.CountUsers(ctx)
	if err != nil {
		t.Fatalf("CountUsers failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected count 0, got %d", count)
	}

	if _, err := db.ExecContext(ctx, "INSERT INTO users (email, password_hash, role) VALUES (?, ?, ?)",
		"test@example.com", "hash123", "user"); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	count, err = db.CountUsers(ctx)
	if err != nil {
		t.Fatalf("CountUsers failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected count 1, got %d", count)
	}
}

func TestCloseSafeNilDB(t *testing.T) {
	var db *DB
	if err := db.CloseSafe(); err == nil {
		t.Fatal("expected error closing a nil DB")
	}
}
