package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"tonotes/model"
)

type (
	notesMsg          struct{ notes []*model.Note }
	errMsg            struct{ err error }
	noticeMsg         string
	clearNoticeMsg    struct{}
	statusMsg         model.ServiceStatus
	searchMsg         struct{ result *model.SearchResult }
	focusMsg          string
	highlightMsg      string
	clearHighlightMsg string
)

type conflictMsg struct {
	noteID string
	err    error
}

// Presenter forwards session events to a running program as messages.
// Events that arrive before Attach, or after the program exits, are dropped.
type Presenter struct {
	mu      sync.Mutex
	program *tea.Program
}

func NewPresenter() *Presenter {
	return &Presenter{}
}

func (p *Presenter) Attach(program *tea.Program) {
	p.mu.Lock()
	p.program = program
	p.mu.Unlock()
}

func (p *Presenter) send(msg tea.Msg) {
	p.mu.Lock()
	program := p.program
	p.mu.Unlock()
	if program != nil {
		program.Send(msg)
	}
}

func (p *Presenter) ShowNotes(notes []*model.Note)         { p.send(notesMsg{notes: notes}) }
func (p *Presenter) ShowConflict(noteID string, err error) { p.send(conflictMsg{noteID: noteID, err: err}) }
func (p *Presenter) ShowError(err error)                   { p.send(errMsg{err: err}) }
func (p *Presenter) ShowNotice(msg string)                 { p.send(noticeMsg(msg)) }
func (p *Presenter) ClearNotice()                          { p.send(clearNoticeMsg{}) }
func (p *Presenter) ShowStatus(status model.ServiceStatus) { p.send(statusMsg(status)) }
func (p *Presenter) ShowSearch(result *model.SearchResult) { p.send(searchMsg{result: result}) }
func (p *Presenter) Focus(noteID string)                   { p.send(focusMsg(noteID)) }
func (p *Presenter) Highlight(noteID string)               { p.send(highlightMsg(noteID)) }
func (p *Presenter) ClearHighlight(noteID string)          { p.send(clearHighlightMsg(noteID)) }
