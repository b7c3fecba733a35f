package workspace

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"tonotes/model"
)

type EditState int

const (
	Idle EditState = iota
	Editing
	Submitting
	Committed
	Conflicted
	Resyncing
)

func (s EditState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Editing:
		return "editing"
	case Submitting:
		return "submitting"
	case Committed:
		return "committed"
	case Conflicted:
		return "conflicted"
	case Resyncing:
		return "resyncing"
	default:
		return fmt.Sprintf("EditState(%d)", int(s))
	}
}

var ErrEditClosed = errors.New("edit session is not open")

// EditSession is one in-progress edit of a note: the draft and the version
// it was based on.
//
// A submit that loses to a concurrent writer (or finds the note deleted)
// warns through the presenter at once, then after the resync delay reloads
// the listing and discards the draft. There is no merge.
type EditSession struct {
	session     *Session
	seq         uint64
	noteID      string
	baseVersion int64

	mu    sync.Mutex
	draft string
	state EditState

	done     chan struct{}
	doneOnce sync.Once
}

func (e *EditSession) NoteID() string     { return e.noteID }
func (e *EditSession) BaseVersion() int64 { return e.baseVersion }

func (e *EditSession) Draft() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.draft
}

func (e *EditSession) State() EditState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *EditSession) SetDraft(content string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Editing {
		return ErrEditClosed
	}
	e.draft = content
	return nil
}

// Wait blocks until the session has committed or returned to idle, and
// reports the final state.
func (e *EditSession) Wait(ctx context.Context) (EditState, error) {
	select {
	case <-e.done:
		return e.State(), nil
	case <-ctx.Done():
		return e.State(), ctx.Err()
	}
}

func (e *EditSession) finish() {
	e.doneOnce.Do(func() { close(e.done) })
}

func (e *EditSession) resyncKey() string {
	return fmt.Sprintf("resync:%s:%d", e.noteID, e.seq)
}

// Submit sends the draft with the base version. A blank draft is rejected
// without a network call and the session stays open. Transport and storage
// failures are shown and also leave the session open for another attempt.
func (e *EditSession) Submit(ctx context.Context) (*model.Note, error) {
	e.mu.Lock()
	if e.state != Editing {
		e.mu.Unlock()
		return nil, ErrEditClosed
	}
	if strings.TrimSpace(e.draft) == "" {
		e.mu.Unlock()
		return nil, model.ValidationError("note content cannot be empty")
	}
	e.state = Submitting
	draft := e.draft
	e.mu.Unlock()

	s := e.session
	lock := s.noteLock(e.noteID)
	lock.Lock()
	note, err := s.api.Update(ctx, e.noteID, draft, e.baseVersion)
	lock.Unlock()

	switch {
	case err == nil:
		e.mu.Lock()
		if e.state == Submitting {
			e.state = Committed
		}
		e.mu.Unlock()
		s.endEdit(e)
		e.finish()
		s.presenter.ShowNotes(s.replaceNote(note))
		return note, nil

	case errors.Is(err, model.ErrVersionConflict), errors.Is(err, model.ErrNotFound):
		e.mu.Lock()
		if e.state != Submitting {
			// Cancelled while the request was in flight.
			e.mu.Unlock()
			return nil, err
		}
		e.state = Conflicted
		e.mu.Unlock()

		s.presenter.ShowConflict(e.noteID, err)
		s.timers.schedule(e.resyncKey(), s.opts.ResyncDelay, e.resync)
		return nil, err

	default:
		e.mu.Lock()
		if e.state == Submitting {
			e.state = Editing
		}
		e.mu.Unlock()
		s.presenter.ShowError(err)
		return nil, err
	}
}

// resync reloads the listing and drops the draft.
func (e *EditSession) resync() {
	e.mu.Lock()
	if e.state != Conflicted {
		e.mu.Unlock()
		return
	}
	e.state = Resyncing
	e.mu.Unlock()

	s := e.session
	if err := s.Refresh(s.ctx); err != nil {
		s.logger.Warn("resync after conflict failed", "note_id", e.noteID, "error", err)
	}

	e.mu.Lock()
	e.draft = ""
	e.state = Idle
	e.mu.Unlock()
	s.endEdit(e)
	e.finish()
}

// Cancel abandons the edit without touching the server. A pending resync is
// cancelled too. Once the resync has started Cancel has no effect.
func (e *EditSession) Cancel() {
	e.mu.Lock()
	switch e.state {
	case Editing, Submitting, Conflicted:
	default:
		e.mu.Unlock()
		return
	}
	e.state = Idle
	e.draft = ""
	e.mu.Unlock()

	e.session.timers.cancel(e.resyncKey())
	e.session.endEdit(e)
	e.finish()
}

// abandon is Cancel for a session that is being torn down.
func (e *EditSession) abandon() {
	e.mu.Lock()
	if e.state != Committed {
		e.state = Idle
		e.draft = ""
	}
	e.mu.Unlock()
	e.finish()
}
