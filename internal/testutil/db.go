// Package testutil opens migrated throwaway databases for tests.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"gorm.io/gorm"

	"messageboard/internal/config"
	"messageboard/internal/platform/database"
)

func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// OpenSQLite returns a migrated SQLite database in a per-test temp dir.
func OpenSQLite(t testing.TB) *gorm.DB {
	t.Helper()

	cfg := config.Default().Database
	cfg.SQLite.Path = filepath.Join(t.TempDir(), "board.db")
	cfg.LogLevel = "silent"

	ctx := context.Background()
	db, err := database.Open(ctx, cfg, "", DiscardLogger())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })

	if err := database.Migrate(ctx, db, config.DriverSQLite, DiscardLogger()); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return db
}
