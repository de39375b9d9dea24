package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"messageboard/internal/cache"
	"messageboard/internal/config"
	"messageboard/internal/platform/database"
	rabbitmqClient "messageboard/internal/platform/rabbitmq"
	redisClient "messageboard/internal/platform/redis"
)

type App struct {
	Config *config.Config
	Logger *slog.Logger
	DB     *gorm.DB

	// Optional; nil unless enabled in config.
	Redis     *redis.Client
	Cache     *cache.MessageCache
	MQConn    *amqp.Connection
	Publisher *rabbitmqClient.EventPublisher

	StartedAt time.Time
}

// NewWithConfig opens the database, applies migrations and connects the
// optional cache and broker. Resources opened before a failure are closed.
func NewWithConfig(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	app := &App{
		Config:    cfg,
		Logger:    log,
		StartedAt: time.Now(),
	}

	db, err := database.Open(ctx, cfg.Database, cfg.MySQLDSN(), log)
	if err != nil {
		return nil, err
	}
	app.DB = db
	if err := database.Migrate(ctx, db, cfg.Database.Driver, log); err != nil {
		_ = app.Close()
		return nil, err
	}

	if cfg.Redis.Enabled {
		redisCli, err := redisClient.New(ctx, cfg.Redis)
		if err != nil {
			_ = app.Close()
			return nil, err
		}
		app.Redis = redisCli
		app.Cache = cache.NewMessageCache(redisCli, time.Duration(cfg.Redis.MessageTTLSeconds)*time.Second)
		log.Info("message cache enabled", "addr", cfg.Redis.Addr)
	}

	if cfg.RabbitMQ.Enabled {
		mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL, cfg.App.Name)
		if err != nil {
			_ = app.Close()
			return nil, err
		}
		app.MQConn = mqConn
		app.Publisher = rabbitmqClient.NewEventPublisher(mqConn, cfg.RabbitMQ.EventQueue)
		log.Info("message events enabled", "queue", cfg.RabbitMQ.EventQueue)
	}

	return app, nil
}

func (a *App) Close() error {
	var errs []error
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if a.MQConn != nil && !a.MQConn.IsClosed() {
		if err := a.MQConn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close rabbitmq: %w", err))
		}
	}
	if a.DB != nil {
		if err := database.Close(a.DB); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	return errors.Join(errs...)
}
