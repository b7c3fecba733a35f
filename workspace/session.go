package workspace

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"tonotes/model"
	"tonotes/services"
)

const (
	DefaultResyncDelay     = 2 * time.Second
	DefaultHighlightWindow = 3 * time.Second
	DefaultNoticeWindow    = 3 * time.Second
)

var ErrSessionClosed = errors.New("workspace session closed")

// NotesAPI is the notes half of the REST contract. client.Client satisfies it.
type NotesAPI interface {
	List(ctx context.Context) ([]*model.Note, error)
	Create(ctx context.Context, content string) (*model.Note, error)
	Update(ctx context.Context, id, content string, expectedVersion int64) (*model.Note, error)
	Delete(ctx context.Context, id string) error
}

// SearchAPI is the search half of the REST contract.
type SearchAPI interface {
	Search(ctx context.Context, query string, topK int) (*model.SearchResult, error)
	Status(ctx context.Context) (model.ServiceStatus, error)
	Refresh(ctx context.Context) error
}

type API interface {
	NotesAPI
	SearchAPI
}

type Options struct {
	ResyncDelay     time.Duration
	HighlightWindow time.Duration
	NoticeWindow    time.Duration
	// Codec encodes and decodes share links locally. Defaults to an
	// unsigned codec.
	Codec  *services.SnapshotCodec
	Logger *slog.Logger
}

// Session is the state of one client: the current listing, open edit
// sessions, search state and pending timers. Nothing is shared between
// sessions. The session lock is never held across a network call.
type Session struct {
	api       API
	presenter Presenter
	opts      Options
	logger    *slog.Logger
	timers    *timers

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	notes     []*model.Note
	edits     map[string]*EditSession
	editSeq   uint64
	noteLocks map[string]*sync.Mutex
	closed    bool

	Search *SearchReconciler
}

func NewSession(api API, presenter Presenter, opts Options) *Session {
	if opts.ResyncDelay <= 0 {
		opts.ResyncDelay = DefaultResyncDelay
	}
	if opts.HighlightWindow <= 0 {
		opts.HighlightWindow = DefaultHighlightWindow
	}
	if opts.NoticeWindow <= 0 {
		opts.NoticeWindow = DefaultNoticeWindow
	}
	if opts.Codec == nil {
		opts.Codec = services.NewSnapshotCodec("")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if presenter == nil {
		presenter = NopPresenter{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		api:       api,
		presenter: presenter,
		opts:      opts,
		logger:    opts.Logger.With("component", "workspace"),
		timers:    newTimers(),
		ctx:       ctx,
		cancel:    cancel,
		edits:     make(map[string]*EditSession),
		noteLocks: make(map[string]*sync.Mutex),
	}
	s.Search = &SearchReconciler{session: s, status: model.ServiceStatus{State: model.StateLoading}}
	return s
}

// Start loads the listing and checks the search service once.
func (s *Session) Start(ctx context.Context) error {
	err := s.Refresh(ctx)
	s.Search.CheckStatus(ctx)
	return err
}

// Close cancels every pending timer and in-flight resync. It is safe to call
// more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	edits := s.edits
	s.edits = make(map[string]*EditSession)
	s.mu.Unlock()

	s.timers.stopAll()
	s.cancel()
	for _, e := range edits {
		e.abandon()
	}
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Refresh replaces the listing with the server's. On failure the listing is
// left as it was.
func (s *Session) Refresh(ctx context.Context) error {
	if s.isClosed() {
		return ErrSessionClosed
	}
	notes, err := s.api.List(ctx)
	if err != nil {
		s.presenter.ShowError(err)
		return err
	}
	s.mu.Lock()
	s.notes = cloneNotes(notes)
	snapshot := cloneNotes(s.notes)
	s.mu.Unlock()

	s.presenter.ShowNotes(snapshot)
	return nil
}

// Notes returns a copy of the current listing, newest first.
func (s *Session) Notes() []*model.Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneNotes(s.notes)
}

// Note looks id up in the current listing.
func (s *Session) Note(id string) (*model.Note, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(id); i >= 0 {
		return s.notes[i].Clone(), true
	}
	return nil, false
}

func (s *Session) indexOf(id string) int {
	return slices.IndexFunc(s.notes, func(n *model.Note) bool { return n.ID == id })
}

func (s *Session) Create(ctx context.Context, content string) (*model.Note, error) {
	if s.isClosed() {
		return nil, ErrSessionClosed
	}
	note, err := s.api.Create(ctx, content)
	if err != nil {
		if !errors.Is(err, model.ErrValidation) {
			s.presenter.ShowError(err)
		}
		return nil, err
	}
	s.mu.Lock()
	s.notes = append([]*model.Note{note.Clone()}, s.notes...)
	snapshot := cloneNotes(s.notes)
	s.mu.Unlock()

	s.presenter.ShowNotes(snapshot)
	return note, nil
}

// Delete removes the note on the server. Delete does not check versions; an
// open edit session on the note is discarded locally.
func (s *Session) Delete(ctx context.Context, id string) error {
	if s.isClosed() {
		return ErrSessionClosed
	}
	lock := s.noteLock(id)
	lock.Lock()
	err := s.api.Delete(ctx, id)
	lock.Unlock()
	if err != nil {
		s.presenter.ShowError(err)
		return err
	}

	s.mu.Lock()
	if i := s.indexOf(id); i >= 0 {
		s.notes = slices.Delete(s.notes, i, i+1)
	}
	edit := s.edits[id]
	snapshot := cloneNotes(s.notes)
	s.mu.Unlock()

	if edit != nil {
		edit.Cancel()
	}
	s.presenter.ShowNotes(snapshot)
	return nil
}

// BeginEdit opens an edit session on a note from the current listing. An
// open session on the same note is cancelled and replaced.
func (s *Session) BeginEdit(id string) (*EditSession, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return nil, model.ErrNotFound
	}
	note := s.notes[i]
	s.editSeq++
	e := &EditSession{
		session:     s,
		seq:         s.editSeq,
		noteID:      id,
		baseVersion: note.Version,
		draft:       note.Content,
		state:       Editing,
		done:        make(chan struct{}),
	}
	prev := s.edits[id]
	s.edits[id] = e
	s.mu.Unlock()

	if prev != nil {
		prev.Cancel()
	}
	return e, nil
}

// OpenEdit returns the open edit session for id, if any.
func (s *Session) OpenEdit(id string) (*EditSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.edits[id]
	return e, ok
}

func (s *Session) endEdit(e *EditSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.edits[e.noteID] == e {
		delete(s.edits, e.noteID)
	}
}

// replaceNote swaps the listing entry for note and returns the new listing.
func (s *Session) replaceNote(note *model.Note) []*model.Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(note.ID); i >= 0 {
		s.notes[i] = note.Clone()
	} else {
		s.notes = append([]*model.Note{note.Clone()}, s.notes...)
	}
	return cloneNotes(s.notes)
}

// noteLock serializes operations on one note so they complete in the order
// they were issued.
func (s *Session) noteLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.noteLocks[id]
	if !ok {
		l = &sync.Mutex{}
		s.noteLocks[id] = l
	}
	return l
}

// Share encodes the listed note into a share link without a server call.
func (s *Session) Share(id, baseURL string) (token, link string, err error) {
	note, ok := s.Note(id)
	if !ok {
		return "", "", model.ErrNotFound
	}
	token, err = s.opts.Codec.Encode(note.Snapshot())
	if err != nil {
		return "", "", err
	}
	return token, services.ShareURL(baseURL, token), nil
}

// OpenShared decodes a share token locally. The live listing is not
// consulted.
func (s *Session) OpenShared(token string) (model.Snapshot, error) {
	snapshot, err := s.opts.Codec.Decode(token)
	if err != nil {
		s.presenter.ShowError(err)
		return model.Snapshot{}, err
	}
	return snapshot, nil
}

func cloneNotes(notes []*model.Note) []*model.Note {
	out := make([]*model.Note, 0, len(notes))
	for _, n := range notes {
		out = append(out, n.Clone())
	}
	return out
}
