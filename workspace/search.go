package workspace

import (
	"context"
	"errors"
	"strings"
	"sync"

	"tonotes/model"
)

const (
	highlightKey = "highlight"
	noticeKey    = "notice"
)

// SearchReconciler owns the search side of a session: service status, the
// latest result set and the highlighted note. Each result set replaces the
// previous one in full.
type SearchReconciler struct {
	session *Session

	mu          sync.Mutex
	status      model.ServiceStatus
	results     *model.SearchResult
	highlighted string
	// seq numbers queries as they are issued; only the latest may apply.
	seq uint64

	// present orders applying a result set with showing it. Never taken
	// while holding mu.
	present sync.Mutex
}

func (r *SearchReconciler) Status() model.ServiceStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Results returns the current result set, or nil.
func (r *SearchReconciler) Results() *model.SearchResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.results
}

func (r *SearchReconciler) Highlighted() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.highlighted
}

func (r *SearchReconciler) setStatus(status model.ServiceStatus) {
	r.mu.Lock()
	r.status = status
	r.mu.Unlock()
	r.session.presenter.ShowStatus(status)
}

// CheckStatus asks the service for its state. An unreachable service reads
// as error with the failure as the reason.
func (r *SearchReconciler) CheckStatus(ctx context.Context) model.ServiceStatus {
	status, err := r.session.api.Status(ctx)
	if err != nil {
		status = model.ServiceStatus{State: model.StateError, Reason: err.Error()}
	}
	r.setStatus(status)
	return status
}

// Search runs query and replaces the result set. Blank queries fail locally.
//
// On failure the results are cleared. A transport or HTTP failure also moves
// the status to error; an unsuccessful answer from a reachable service
// leaves the status alone. A success marks the service active.
//
// A response that arrives after a newer query was issued, or after the
// results were cleared, is returned to the caller but not applied.
func (r *SearchReconciler) Search(ctx context.Context, query string, limit int) (*model.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, model.ValidationError("query cannot be empty")
	}
	s := r.session

	r.mu.Lock()
	r.seq++
	seq := r.seq
	r.mu.Unlock()

	result, err := s.api.Search(ctx, query, limit)

	r.present.Lock()
	defer r.present.Unlock()

	if err != nil {
		searchErr := &model.SearchError{}
		unreachable := !errors.As(err, &searchErr) || searchErr.Unreachable()

		r.mu.Lock()
		if seq != r.seq {
			r.mu.Unlock()
			return nil, err
		}
		r.results = nil
		status := r.status
		if unreachable {
			status = model.ServiceStatus{State: model.StateError, Reason: err.Error()}
			r.status = status
		}
		r.mu.Unlock()

		s.presenter.ShowSearch(nil)
		if unreachable {
			s.presenter.ShowStatus(status)
		}
		s.presenter.ShowError(err)
		return nil, err
	}

	r.mu.Lock()
	if seq != r.seq {
		r.mu.Unlock()
		return result, nil
	}
	r.results = result
	r.status.State = model.StateActive
	r.status.Reason = ""
	status := r.status
	r.mu.Unlock()

	s.presenter.ShowStatus(status)
	s.presenter.ShowSearch(result)
	return result, nil
}

// SelectResult focuses and highlights a note from the current listing. The
// search response is not consulted. The highlight clears itself after the
// highlight window; selecting again supersedes the pending clear.
func (r *SearchReconciler) SelectResult(noteID string) error {
	s := r.session
	if _, ok := s.Note(noteID); !ok {
		return model.ErrNotFound
	}

	r.mu.Lock()
	prev := r.highlighted
	r.highlighted = noteID
	r.mu.Unlock()

	if prev != "" && prev != noteID {
		s.presenter.ClearHighlight(prev)
	}
	s.presenter.Focus(noteID)
	s.presenter.Highlight(noteID)

	s.timers.schedule(highlightKey, s.opts.HighlightWindow, func() {
		r.mu.Lock()
		if r.highlighted != noteID {
			r.mu.Unlock()
			return
		}
		r.highlighted = ""
		r.mu.Unlock()
		s.presenter.ClearHighlight(noteID)
	})
	return nil
}

// RefreshIndex asks the service to rebuild its index and re-checks the
// status when it succeeds.
func (r *SearchReconciler) RefreshIndex(ctx context.Context) (model.ServiceStatus, error) {
	s := r.session
	if err := s.api.Refresh(ctx); err != nil {
		s.presenter.ShowError(err)
		return r.Status(), err
	}

	status := r.CheckStatus(ctx)
	s.presenter.ShowNotice("Search index refreshed successfully")
	s.timers.schedule(noticeKey, s.opts.NoticeWindow, s.presenter.ClearNotice)
	return status, nil
}

func (r *SearchReconciler) ClearResults() {
	r.present.Lock()
	defer r.present.Unlock()
	r.mu.Lock()
	r.seq++
	r.results = nil
	r.mu.Unlock()
	r.session.presenter.ShowSearch(nil)
}
