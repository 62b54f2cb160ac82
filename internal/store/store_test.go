package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
)

func openMemory(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var widgetMigrations = []Migration{
	{
		Version:     1,
		Description: "create widgets",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`CREATE TABLE widgets (name TEXT PRIMARY KEY)`)
			return err
		},
	},
	{
		Version:     2,
		Description: "add price",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`ALTER TABLE widgets ADD COLUMN price REAL`)
			return err
		},
	},
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	if err := s.Migrate(ctx, "widgets", widgetMigrations); err != nil {
		t.Fatalf("first Migrate() error = %v", err)
	}
	if err := s.Migrate(ctx, "widgets", widgetMigrations); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}

	var n int
	if err := s.DB().QueryRow(`SELECT COUNT(*) FROM _migrations WHERE component = 'widgets'`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("applied migrations = %d, want 2", n)
	}
}

func TestMigrateRollsBackFailedStep(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.Migrate(ctx, "broken", []Migration{{
		Version:     1,
		Description: "fails halfway",
		Up: func(tx *sql.Tx) error {
			if _, err := tx.Exec(`CREATE TABLE half (id INTEGER)`); err != nil {
				return err
			}
			return boom
		},
	}})
	if !errors.Is(err, boom) {
		t.Fatalf("Migrate() error = %v, want boom", err)
	}

	var name string
	err = s.DB().QueryRow(`SELECT name FROM sqlite_master WHERE name = 'half'`).Scan(&name)
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("table from failed migration survived: %v", err)
	}
}

func TestCheckpointOnFile(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "curio.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := s.Migrate(context.Background(), "widgets", widgetMigrations); err != nil {
		t.Fatal(err)
	}
	if err := s.Checkpoint(context.Background()); err != nil {
		t.Errorf("Checkpoint() error = %v", err)
	}
}
