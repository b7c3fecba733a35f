package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tonotes/model"
)

// MemoryStore keeps notes in process memory. It is used by tests and by the
// "memory" driver for throwaway deployments.
type MemoryStore struct {
	mu    sync.RWMutex
	notes map[string]*model.Note
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{notes: make(map[string]*model.Note)}
}

func (s *MemoryStore) Create(_ context.Context, note *model.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.notes[note.ID]; exists {
		return storageError("create", fmt.Errorf("duplicate id %s", note.ID))
	}
	s.notes[note.ID] = note.Clone()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*model.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	note, ok := s.notes[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return note.Clone(), nil
}

func (s *MemoryStore) List(_ context.Context) ([]*model.Note, error) {
	s.mu.RLock()
	notes := make([]*model.Note, 0, len(s.notes))
	for _, n := range s.notes {
		notes = append(notes, n.Clone())
	}
	s.mu.RUnlock()

	sortNewestFirst(notes)
	return notes, nil
}

func (s *MemoryStore) Update(_ context.Context, id, content string, expectedVersion int64, updatedAt time.Time) (*model.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	note, ok := s.notes[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	if note.Version != expectedVersion {
		return nil, conflictError(id, expectedVersion, note.Clone())
	}
	note.Content = content
	note.Version++
	note.UpdatedAt = updatedAt
	return note.Clone(), nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notes[id]; !ok {
		return model.ErrNotFound
	}
	delete(s.notes, id)
	return nil
}

func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.notes), nil
}

func (s *MemoryStore) Close(context.Context) error { return nil }
