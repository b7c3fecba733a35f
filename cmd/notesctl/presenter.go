package main

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"tonotes/model"
	"tonotes/workspace"
)

// textPresenter prints the asynchronous parts of a session: conflict
// warnings and notices. Command results are printed by the commands.
type textPresenter struct {
	workspace.NopPresenter

	mu  sync.Mutex
	out io.Writer
	err io.Writer
}

func newTextPresenter(out, errOut io.Writer) *textPresenter {
	return &textPresenter{out: out, err: errOut}
}

func (p *textPresenter) ShowConflict(noteID string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if errors.Is(err, model.ErrNotFound) {
		fmt.Fprintf(p.err, "Warning: note %s was deleted elsewhere. Your draft will be discarded.\n", noteID)
		return
	}
	fmt.Fprintf(p.err, "Warning: note %s was changed elsewhere. Reloading; your draft will be discarded.\n", noteID)
}

func (p *textPresenter) ShowNotice(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, msg)
}
