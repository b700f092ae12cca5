// Package backend opens the storage driver and event publisher shared by the
// serve commands.
package backend

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/papercomputeco/quill/pkg/eventstream"
	"github.com/papercomputeco/quill/pkg/eventstream/kafka"
	"github.com/papercomputeco/quill/pkg/eventstream/nop"
	"github.com/papercomputeco/quill/pkg/storage"
	"github.com/papercomputeco/quill/pkg/storage/inmemory"
	"github.com/papercomputeco/quill/pkg/storage/postgres"
	"github.com/papercomputeco/quill/pkg/storage/sqlite"
)

// StorageOptions selects the transcript store. PostgresDSN wins over
// SQLitePath; with neither set the store is in memory.
type StorageOptions struct {
	SQLitePath  string
	PostgresDSN string
}

// OpenStorage opens the configured storage driver.
func OpenStorage(ctx context.Context, opts StorageOptions, logger *slog.Logger) (storage.Driver, error) {
	switch {
	case opts.PostgresDSN != "":
		driver, err := postgres.NewDriver(ctx, opts.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL storer: %w", err)
		}
		logger.Info("using PostgreSQL storage")
		return driver, nil

	case opts.SQLitePath != "":
		driver, err := sqlite.NewSQLiteDriver(opts.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite storer: %w", err)
		}
		logger.Info("using SQLite storage", "path", opts.SQLitePath)
		return driver, nil

	default:
		logger.Info("using in-memory storage")
		return inmemory.NewDriver(), nil
	}
}

// OpenPublisher returns a Kafka publisher when brokers is non-empty and a
// no-op publisher otherwise. brokers is a comma-separated list.
func OpenPublisher(brokers, topic string, logger *slog.Logger) (eventstream.Publisher, error) {
	list := SplitBrokers(brokers)
	if len(list) == 0 {
		logger.Debug("turn events disabled")
		return nop.NewPublisher(), nil
	}

	pub, err := kafka.NewPublisher(kafka.Config{
		Brokers: list,
		Topic:   topic,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka publisher: %w", err)
	}

	logger.Info("publishing turn events", "brokers", list, "topic", topic)
	return pub, nil
}

// SplitBrokers parses a comma-separated broker list, dropping blanks.
func SplitBrokers(brokers string) []string {
	var out []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
