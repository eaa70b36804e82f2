// Package bootstrap поднимает общие зависимости приложений: документное
// хранилище, кеш Redis и публикацию событий в RabbitMQ.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/Xmananti/llb-case-tracker/internal/cache"
	"github.com/Xmananti/llb-case-tracker/internal/config"
	"github.com/Xmananti/llb-case-tracker/internal/lib/sl"
	"github.com/Xmananti/llb-case-tracker/internal/migrations"
	"github.com/Xmananti/llb-case-tracker/internal/models"
	"github.com/Xmananti/llb-case-tracker/internal/rabbitmq"
	"github.com/Xmananti/llb-case-tracker/internal/storage"
	"github.com/Xmananti/llb-case-tracker/internal/storage/memory"
	"github.com/Xmananti/llb-case-tracker/internal/storage/postgresql"
)

const (
	dbReadyAttempts = 10
	dbReadyDelay    = 3 * time.Second
	rabbitRetryWait = 2 * time.Second
)

// Cache — JSON-кеш профилей и организаций.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
}

// Publisher публикует доменные события.
type Publisher interface {
	Publish(ctx context.Context, event models.Event) error
}

// Resources — открытые зависимости приложения.
type Resources struct {
	Store     storage.Store
	Cache     Cache
	Publisher Publisher

	closers []func() error
	log     *slog.Logger
}

// Open открывает хранилище, кеш и брокер по конфигу. Кеш и брокер
// необязательны: при пустом адресе используются заглушки.
func Open(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Resources, error) {
	res := &Resources{log: log}

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	res.Store = store
	res.closers = append(res.closers, store.Close)

	if cfg.AddressRedis == "" {
		log.Info("redis address is empty, cache disabled")
		res.Cache = cache.Nop{}
	} else {
		c, err := cache.InitServer(ctx, cfg.RedisConnection)
		if err != nil {
			res.Close()
			return nil, fmt.Errorf("cache not initialized: %w", err)
		}
		res.Cache = c
		res.closers = append(res.closers, c.Close)
	}

	if cfg.RabbitMQ.URL == "" {
		log.Info("rabbitmq url is empty, events disabled")
		res.Publisher = rabbitmq.Nop{}
	} else {
		conn, err := rabbitmq.Connect(cfg.RabbitMQ.URL, cfg.RabbitMQ.MaxRetries, rabbitRetryWait)
		if err != nil {
			res.Close()
			return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
		}
		res.closers = append(res.closers, conn.Close)

		ch, err := rabbitmq.SetupChannel(conn, cfg.Exchange)
		if err != nil {
			res.Close()
			return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
		}
		pub := rabbitmq.NewPublisher(ch, cfg.Exchange)
		res.Publisher = pub
		res.closers = append(res.closers, pub.Close)
	}

	return res, nil
}

func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (storage.Store, error) {
	if cfg.Driver == config.DriverMemory {
		log.Warn("using in-memory document store, data is lost on restart")
		return memory.New(), nil
	}

	db, err := postgresql.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}
	if err := waitForDB(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	if err := migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func waitForDB(ctx context.Context, db *postgresql.Storage) error {
	var err error
	for range dbReadyAttempts {
		if err = postgresql.CheckDatabaseReady(ctx, db); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(dbReadyDelay):
		}
	}
	return fmt.Errorf("database not ready after retries: %w", err)
}

// Close закрывает зависимости в обратном порядке открытия.
func (r *Resources) Close() error {
	var result *multierror.Error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			r.log.Error("failed to close resource", sl.Err(err))
			result = multierror.Append(result, err)
		}
	}
	r.closers = nil
	return result.ErrorOrNil()
}
