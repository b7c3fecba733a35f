package workspace

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"tonotes/model"
	"tonotes/repository"
	"tonotes/services"
	"tonotes/usecase"
)

// fakeAPI serves notes from a real NotesService over the memory store, so
// version checks behave as they do on the server. Search calls are scripted.
type fakeAPI struct {
	notes *usecase.NotesService

	listCalls   atomic.Int32
	updateCalls atomic.Int32
	searchCalls atomic.Int32

	mu         sync.Mutex
	updateErr  error
	searchFn   func(query string, topK int) (*model.SearchResult, error)
	status     model.ServiceStatus
	statusErr  error
	refreshErr error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		notes:  usecase.NewNotesService(repository.NewMemoryStore(), services.NewSnapshotCodec("")),
		status: model.ServiceStatus{State: model.StateActive},
	}
}

func (f *fakeAPI) List(ctx context.Context) ([]*model.Note, error) {
	f.listCalls.Add(1)
	return f.notes.ListNotes(ctx)
}

func (f *fakeAPI) Create(ctx context.Context, content string) (*model.Note, error) {
	return f.notes.CreateNote(ctx, content)
}

func (f *fakeAPI) Update(ctx context.Context, id, content string, expectedVersion int64) (*model.Note, error) {
	f.updateCalls.Add(1)
	f.mu.Lock()
	err := f.updateErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.notes.UpdateNote(ctx, id, content, expectedVersion)
}

func (f *fakeAPI) Delete(ctx context.Context, id string) error {
	return f.notes.DeleteNote(ctx, id)
}

func (f *fakeAPI) Search(_ context.Context, query string, topK int) (*model.SearchResult, error) {
	f.searchCalls.Add(1)
	f.mu.Lock()
	fn := f.searchFn
	f.mu.Unlock()
	if fn == nil {
		return &model.SearchResult{Query: query, Sources: []model.SearchSource{}}, nil
	}
	return fn(query, topK)
}

func (f *fakeAPI) Status(context.Context) (model.ServiceStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status, f.statusErr
}

func (f *fakeAPI) Refresh(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshErr
}

func (f *fakeAPI) set(fn func(f *fakeAPI)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

type event struct {
	kind   string
	noteID string
}

// recordingPresenter keeps every call in order.
type recordingPresenter struct {
	mu      sync.Mutex
	events  []event
	notes   []*model.Note
	results *model.SearchResult
	errs    []error
	notice  string
}

func (p *recordingPresenter) record(kind, noteID string) {
	p.events = append(p.events, event{kind: kind, noteID: noteID})
}

func (p *recordingPresenter) ShowNotes(notes []*model.Note) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notes = notes
	p.record("notes", "")
}

func (p *recordingPresenter) ShowConflict(noteID string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs = append(p.errs, err)
	p.record("conflict", noteID)
}

func (p *recordingPresenter) ShowError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs = append(p.errs, err)
	p.record("error", "")
}

func (p *recordingPresenter) ShowNotice(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notice = msg
	p.record("notice", "")
}

func (p *recordingPresenter) ClearNotice() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notice = ""
	p.record("clear-notice", "")
}

func (p *recordingPresenter) ShowStatus(model.ServiceStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("status", "")
}

func (p *recordingPresenter) ShowSearch(result *model.SearchResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results = result
	p.record("search", "")
}

func (p *recordingPresenter) Focus(noteID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("focus", noteID)
}

func (p *recordingPresenter) Highlight(noteID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("highlight", noteID)
}

func (p *recordingPresenter) ClearHighlight(noteID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("clear-highlight", noteID)
}

func (p *recordingPresenter) count(kind, noteID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.kind == kind && (noteID == "" || e.noteID == noteID) {
			n++
		}
	}
	return n
}

func (p *recordingPresenter) eventCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func (p *recordingPresenter) listing() []*model.Note {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.notes
}

const (
	testResync    = 80 * time.Millisecond
	testHighlight = 80 * time.Millisecond
	waitFor       = 2 * time.Second
	tick          = 5 * time.Millisecond
)

func newTestSession(t *testing.T, api API) (*Session, *recordingPresenter) {
	t.Helper()
	p := &recordingPresenter{}
	s := NewSession(api, p, Options{
		ResyncDelay:     testResync,
		HighlightWindow: testHighlight,
		NoticeWindow:    testHighlight,
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	t.Cleanup(s.Close)
	return s, p
}
