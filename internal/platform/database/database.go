// Package database opens the configured relational backend and brings its
// schema up to date before any request is served.
package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"messageboard/internal/config"
	"messageboard/internal/platform/migrate"
	mysqlClient "messageboard/internal/platform/mysql"
	sqliteClient "messageboard/internal/platform/sqlite"
	"messageboard/internal/storage/migrations"
)

func Open(ctx context.Context, cfg config.DatabaseConfig, dsn string, log *slog.Logger) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger: newGormLogger(log, cfg.LogLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	switch cfg.Driver {
	case config.DriverSQLite:
		return sqliteClient.New(ctx, cfg.SQLite.Path, gormCfg)
	case config.DriverMySQL:
		return mysqlClient.New(ctx, dsn, gormCfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Migrate applies the embedded scripts for driver. The migration set lives
// in a directory named after the driver.
func Migrate(ctx context.Context, db *gorm.DB, driver string, log *slog.Logger) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db failed: %w", err)
	}
	applied, err := migrate.Apply(ctx, sqlDB, migrations.FS, driver)
	if err != nil {
		return fmt.Errorf("apply migrations failed: %w", err)
	}
	for _, name := range applied {
		log.Info("applied migration", "name", name, "driver", driver)
	}
	return nil
}

func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func newGormLogger(log *slog.Logger, level string) logger.Interface {
	var gormLevel logger.LogLevel
	var slogLevel slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "silent":
		gormLevel = logger.Silent
	case "error":
		gormLevel, slogLevel = logger.Error, slog.LevelError
	case "info", "debug":
		gormLevel, slogLevel = logger.Info, slog.LevelDebug
	default:
		gormLevel, slogLevel = logger.Warn, slog.LevelWarn
	}
	return logger.New(
		slog.NewLogLogger(log.Handler(), slogLevel),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormLevel,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}
