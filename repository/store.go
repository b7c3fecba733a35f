package repository

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"tonotes/config"
	"tonotes/model"
)

// NoteStore is the versioned note collection. Update is a compare-and-set on
// the version: it succeeds only when expectedVersion is the stored version and
// then stores version+1. Implementations must make that check and the
// increment a single atomic step.
type NoteStore interface {
	Create(ctx context.Context, note *model.Note) error
	Get(ctx context.Context, id string) (*model.Note, error)
	List(ctx context.Context) ([]*model.Note, error)
	Update(ctx context.Context, id, content string, expectedVersion int64, updatedAt time.Time) (*model.Note, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
	Close(ctx context.Context) error
}

// Open builds the store selected by cfg.Driver, wrapped in the Redis list
// cache when a Redis URL is configured.
func Open(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (NoteStore, error) {
	var (
		store NoteStore
		err   error
	)
	switch cfg.Driver {
	case config.DriverMongo:
		store, err = OpenMongoStore(ctx, cfg.Mongo)
	case config.DriverSQLite:
		store, err = OpenSQLiteStore(cfg.SQLitePath)
	case config.DriverMemory:
		store = NewMemoryStore()
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	logger.Info("note store opened", "driver", cfg.Driver)

	if cfg.RedisURL == "" {
		return store, nil
	}
	cached, err := NewCachedStore(ctx, store, cfg.RedisURL, cfg.ListCacheTTL, logger)
	if err != nil {
		// The cache is optional; serve straight from the backing store.
		logger.Warn("redis list cache disabled", "error", err)
		return store, nil
	}
	return cached, nil
}

func storageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", model.ErrStorageUnavailable, op, err)
}

func conflictError(id string, expected int64, current *model.Note) error {
	return &model.VersionConflictError{NoteID: id, Expected: expected, Current: current}
}

// sortNewestFirst orders by creation time, newest first, with the id as a
// stable tie breaker.
func sortNewestFirst(notes []*model.Note) {
	sort.SliceStable(notes, func(i, j int) bool {
		if notes[i].CreatedAt.Equal(notes[j].CreatedAt) {
			return notes[i].ID > notes[j].ID
		}
		return notes[i].CreatedAt.After(notes[j].CreatedAt)
	})
}
