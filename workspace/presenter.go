package workspace

import "tonotes/model"

// Presenter is the rendering side of a session. Calls are made from the
// goroutine that finished the operation, including timer goroutines, and
// never while a session lock is held.
type Presenter interface {
	ShowNotes(notes []*model.Note)
	// ShowConflict warns that an edit lost a race; err matches
	// model.ErrVersionConflict or model.ErrNotFound.
	ShowConflict(noteID string, err error)
	ShowError(err error)
	ShowNotice(msg string)
	ClearNotice()
	ShowStatus(status model.ServiceStatus)
	// ShowSearch renders the current results; nil means none.
	ShowSearch(result *model.SearchResult)
	Focus(noteID string)
	Highlight(noteID string)
	ClearHighlight(noteID string)
}

// NopPresenter ignores everything. Embed it to implement only some methods.
type NopPresenter struct{}

func (NopPresenter) ShowNotes([]*model.Note) {}
func (NopPresenter) ShowConflict(string, error) {}
func (NopPresenter) ShowError(error) {}
func (NopPresenter) ShowNotice(string) {}
func (NopPresenter) ClearNotice() {}
func (NopPresenter) ShowStatus(model.ServiceStatus) {}
func (NopPresenter) ShowSearch(*model.SearchResult) {}
func (NopPresenter) Focus(string) {}
func (NopPresenter) Highlight(string) {}
func (NopPresenter) ClearHighlight(string) {}
