package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"tonotes/model"
	"tonotes/repository"
	"tonotes/services"
)

const maxContentLength = 50000

// Indexer is told about every accepted mutation so search stays current.
type Indexer interface {
	IndexNote(ctx context.Context, note *model.Note) error
	RemoveNote(ctx context.Context, id string) error
}

type NotesService struct {
	store   repository.NoteStore
	codec   *services.SnapshotCodec
	indexer Indexer
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string
}

type NotesOption func(*NotesService)

func WithIndexer(ix Indexer) NotesOption {
	return func(s *NotesService) { s.indexer = ix }
}

func WithLogger(l *slog.Logger) NotesOption {
	return func(s *NotesService) { s.logger = l }
}

func WithClock(now func() time.Time) NotesOption {
	return func(s *NotesService) { s.now = now }
}

func WithIDGenerator(newID func() string) NotesOption {
	return func(s *NotesService) { s.newID = newID }
}

func NewNotesService(store repository.NoteStore, codec *services.SnapshotCodec, opts ...NotesOption) *NotesService {
	s := &NotesService{
		store:  store,
		codec:  codec,
		logger: slog.Default(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// validateContent normalizes content and rejects blank or oversized notes.
func validateContent(content string) (string, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", model.ValidationError("note content cannot be empty")
	}
	if len(trimmed) > maxContentLength {
		return "", model.ValidationError("note content exceeds maximum length")
	}
	return trimmed, nil
}

func (s *NotesService) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

func (s *NotesService) ListNotes(ctx context.Context) ([]*model.Note, error) {
	return s.store.List(ctx)
}

func (s *NotesService) GetNote(ctx context.Context, id string) (*model.Note, error) {
	return s.store.Get(ctx, id)
}

func (s *NotesService) CountNotes(ctx context.Context) (int, error) {
	return s.store.Count(ctx)
}

// CreateNote stores a new note at version 1. Content is validated before the
// store is touched.
func (s *NotesService) CreateNote(ctx context.Context, content string) (*model.Note, error) {
	content, err := validateContent(content)
	if err != nil {
		return nil, err
	}

	now := s.timestamp()
	note := &model.Note{
		ID:        s.newID(),
		Content:   content,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, note); err != nil {
		return nil, err
	}
	s.logger.Info("note created", "note_id", note.ID)
	s.reindex(ctx, note)
	return note, nil
}

// UpdateNote replaces the content when expectedVersion is still current.
// A stale version yields *model.VersionConflictError with the stored note.
func (s *NotesService) UpdateNote(ctx context.Context, id, content string, expectedVersion int64) (*model.Note, error) {
	content, err := validateContent(content)
	if err != nil {
		return nil, err
	}
	if expectedVersion < 1 {
		return nil, model.ValidationError("version must be a positive integer")
	}

	note, err := s.store.Update(ctx, id, content, expectedVersion, s.timestamp())
	if err != nil {
		var conflict *model.VersionConflictError
		if errors.As(err, &conflict) && conflict.Current != nil {
			s.logger.Info("note update rejected: stale version",
				"note_id", id, "expected", expectedVersion, "current", conflict.Current.Version)
		}
		return nil, err
	}
	s.logger.Info("note updated", "note_id", id, "version", note.Version)
	s.reindex(ctx, note)
	return note, nil
}

// DeleteNote removes the note regardless of its version.
func (s *NotesService) DeleteNote(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("note deleted", "note_id", id)
	if s.indexer != nil {
		if err := s.indexer.RemoveNote(ctx, id); err != nil {
			s.logger.Warn("search index removal failed", "note_id", id, "error", err)
		}
	}
	return nil
}

// ShareNote encodes the note's current state into a share token.
func (s *NotesService) ShareNote(ctx context.Context, id string) (string, model.Snapshot, error) {
	note, err := s.store.Get(ctx, id)
	if err != nil {
		return "", model.Snapshot{}, err
	}
	snapshot := note.Snapshot()
	token, err := s.codec.Encode(snapshot)
	if err != nil {
		return "", model.Snapshot{}, err
	}
	return token, snapshot, nil
}

// ResolveShare decodes a token without consulting the store: the note may
// have changed or been deleted since it was shared.
func (s *NotesService) ResolveShare(token string) (model.Snapshot, error) {
	return s.codec.Decode(token)
}

func (s *NotesService) reindex(ctx context.Context, note *model.Note) {
	if s.indexer == nil {
		return
	}
	if err := s.indexer.IndexNote(ctx, note); err != nil {
		s.logger.Warn("search indexing failed", "note_id", note.ID, "error", err)
	}
}
