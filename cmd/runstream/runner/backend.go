package runner

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/papercomputeco/runstream/pkg/eventstream"
	"github.com/papercomputeco/runstream/pkg/eventstream/kafka"
	"github.com/papercomputeco/runstream/pkg/storage"
	"github.com/papercomputeco/runstream/pkg/storage/postgres"
	"github.com/papercomputeco/runstream/pkg/storage/sqlite"
	"github.com/papercomputeco/runstream/pkg/worker"
)

// Backends are the recording targets selected for a run.
type Backends struct {
	Driver    storage.Driver
	Publisher eventstream.Publisher
	Pool      *worker.Pool

	// Database names the store the driver writes to.
	Database string
}

// OpenDriver opens the storage driver selected by o. It returns nil when no
// storage is configured. SQLite wins over Postgres when both are set.
func OpenDriver(ctx context.Context, o Options, logger *zap.Logger) (storage.Driver, error) {
	switch {
	case o.SQLitePath != "":
		driver, err := sqlite.NewDriver(ctx, o.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite driver: %w", err)
		}
		logger.Debug("using SQLite storage", zap.String("path", o.SQLitePath))
		return driver, nil

	case o.PostgresDSN != "":
		driver, err := postgres.NewDriver(ctx, o.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL driver: %w", err)
		}
		logger.Debug("using PostgreSQL storage")
		return driver, nil

	default:
		return nil, nil
	}
}

// OpenPublisher opens the Kafka publisher when brokers are configured, and
// returns nil otherwise.
func OpenPublisher(o Options, logger *zap.Logger) (eventstream.Publisher, error) {
	brokers := kafka.ParseBrokers(o.KafkaBrokers)
	if len(brokers) == 0 {
		return nil, nil
	}

	publisher, err := kafka.NewPublisher(kafka.Config{
		Brokers: brokers,
		Topic:   o.KafkaTopic,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka publisher: %w", err)
	}

	logger.Debug("publishing decoded events to Kafka",
		zap.Strings("brokers", brokers),
		zap.String("topic", o.KafkaTopic),
	)
	return publisher, nil
}

// OpenBackends opens every configured recording target and a worker pool
// feeding them. The pool is nil when nothing is configured.
func OpenBackends(ctx context.Context, o Options, source string, logger *zap.Logger) (*Backends, error) {
	b := &Backends{}

	driver, err := OpenDriver(ctx, o, logger)
	if err != nil {
		return nil, err
	}
	b.Driver = driver
	if o.SQLitePath != "" {
		b.Database = o.SQLitePath
	}

	publisher, err := OpenPublisher(o, logger)
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	b.Publisher = publisher

	if b.Driver == nil && b.Publisher == nil {
		return b, nil
	}

	pool, err := worker.NewPool(&worker.Config{
		Driver:    b.Driver,
		Publisher: b.Publisher,
		Source:    source,
		Logger:    logger,
	})
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	b.Pool = pool

	return b, nil
}

// Close drains the pool and then closes the publisher and driver. It is safe
// to call more than once.
func (b *Backends) Close() error {
	if b.Pool != nil {
		b.Pool.Close()
	}

	var errs []error
	if b.Publisher != nil {
		errs = append(errs, b.Publisher.Close())
		b.Publisher = nil
	}
	if b.Driver != nil {
		errs = append(errs, b.Driver.Close())
		b.Driver = nil
	}
	return errors.Join(errs...)
}
