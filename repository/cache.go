package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"tonotes/model"
)

const (
	listCachePrefix   = "notes:list:"
	listGenerationKey = "notes:list:gen"
)

// CachedStore serves List from Redis and forwards everything else to the
// backing store. Each successful mutation bumps a generation counter that is
// part of the cache key, so a listing read before a write can never be served
// after it. Redis errors fall back to the backing store. If a bump fails,
// List bypasses the cache until a later bump succeeds.
type CachedStore struct {
	NoteStore
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger

	mu    sync.Mutex
	stale bool
}

// NewCachedStore creates and initializes a new list cache
func NewCachedStore(ctx context.Context, store NoteStore, redisURL string, ttl time.Duration, logger *slog.Logger) (*CachedStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return newCachedStore(store, client, ttl, logger), nil
}

func newCachedStore(store NoteStore, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedStore{NoteStore: store, client: client, ttl: ttl, logger: logger}
}

func (s *CachedStore) List(ctx context.Context) ([]*model.Note, error) {
	if s.isStale() {
		return s.NoteStore.List(ctx)
	}
	gen, err := s.client.Get(ctx, listGenerationKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		s.logger.Warn("list cache unavailable", "error", err)
		return s.NoteStore.List(ctx)
	}
	key := fmt.Sprintf("%s%d", listCachePrefix, gen)

	if data, err := s.client.Get(ctx, key).Bytes(); err == nil {
		var notes []*model.Note
		if err := json.Unmarshal(data, &notes); err == nil {
			return notes, nil
		}
		s.logger.Warn("discarding corrupt list cache entry", "key", key)
	} else if !errors.Is(err, redis.Nil) {
		s.logger.Warn("list cache read failed", "error", err)
	}

	notes, err := s.NoteStore.List(ctx)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(notes); err == nil {
		if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
			s.logger.Warn("list cache write failed", "error", err)
		}
	}
	return notes, nil
}

func (s *CachedStore) Create(ctx context.Context, note *model.Note) error {
	if err := s.NoteStore.Create(ctx, note); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *CachedStore) Update(ctx context.Context, id, content string, expectedVersion int64, updatedAt time.Time) (*model.Note, error) {
	note, err := s.NoteStore.Update(ctx, id, content, expectedVersion, updatedAt)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return note, nil
}

func (s *CachedStore) Delete(ctx context.Context, id string) error {
	if err := s.NoteStore.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *CachedStore) Close(ctx context.Context) error {
	cacheErr := s.client.Close()
	return errors.Join(s.NoteStore.Close(ctx), cacheErr)
}

func (s *CachedStore) isStale() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stale
}

func (s *CachedStore) invalidate(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.client.Incr(ctx, listGenerationKey).Err()
	if err == nil {
		s.stale = false
		return
	}
	s.stale = true
	s.logger.Warn("list cache invalidation failed", "error", err)

	// Drop the listing cached under the current generation.
	gen, err := s.client.Get(ctx, listGenerationKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return
	}
	if err := s.client.Del(ctx, fmt.Sprintf("%s%d", listCachePrefix, gen)).Err(); err != nil {
		s.logger.Warn("list cache eviction failed", "error", err)
	}
}
