package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"tonotes/model"
	"tonotes/workspace"
)

type mode int
type focusArea int

const (
	modeBrowse mode = iota
	modeEdit
	modeAdd
	modeSearch
)

const (
	focusNotes focusArea = iota
	focusResults
)

const searchLimit = 3

type Options struct {
	// ShareBaseURL prefixes share links made with the share key.
	ShareBaseURL string
}

type noteItem struct {
	n           *model.Note
	highlighted bool
}

func (i noteItem) Title() string {
	title := firstLine(i.n.Content, 40)
	if i.highlighted {
		return "» " + title
	}
	return title
}
func (i noteItem) Description() string {
	return fmt.Sprintf("v%d · %s", i.n.Version, i.n.CreatedAt.Local().Format("2006-01-02 15:04"))
}
func (i noteItem) FilterValue() string { return i.n.Content }

// Results of commands issued from Update.
type (
	startedMsg   struct{ err error }
	savedMsg     struct{ err error }
	createdMsg   struct{ err error }
	deletedMsg   struct{ err error }
	searchedMsg  struct{ err error }
	refreshedMsg struct{ err error }
	selectedMsg  struct{ err error }
)

// Model renders one workspace session. Every session call that reaches the
// presenter runs inside a tea.Cmd, never in Update.
type Model struct {
	session *workspace.Session
	opts    Options

	width  int
	height int

	mode  mode
	focus focusArea

	noteList list.Model
	preview  viewport.Model
	editor   textarea.Model
	query    textinput.Model

	notes       []*model.Note
	edit        *workspace.EditSession
	results     *model.SearchResult
	resultIdx   int
	highlighted string
	status      model.ServiceStatus

	notice string
	flash  string

	help     help.Model
	keys     KeyMap
	showHelp bool
}

func NewModel(session *workspace.Session, opts Options) Model {
	l := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)

	ta := textarea.New()
	ta.Placeholder = "Write your note..."
	ta.ShowLineNumbers = false
	ta.Prompt = ""
	ta.CharLimit = 0

	ti := textinput.New()
	ti.Placeholder = "Search notes..."
	ti.Prompt = "/ "

	h := help.New()
	h.ShowAll = false

	return Model{
		session:  session,
		opts:     opts,
		mode:     modeBrowse,
		focus:    focusNotes,
		noteList: l,
		preview:  viewport.New(0, 0),
		editor:   ta,
		query:    ti,
		status:   session.Search.Status(),
		help:     h,
		keys:     DefaultKeyMap(),
	}
}

func (m Model) Init() tea.Cmd {
	session := m.session
	return func() tea.Msg {
		return startedMsg{err: session.Start(context.Background())}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	// ---------- session events ----------

	case notesMsg:
		m.setNotes(msg.notes)
		return m, nil

	case conflictMsg:
		if m.edit != nil && m.edit.NoteID() == msg.noteID {
			m.leaveEditor()
		}
		if errors.Is(msg.err, model.ErrNotFound) {
			m.flash = "This note was deleted elsewhere. Your draft will be discarded."
		} else {
			m.flash = "This note was changed elsewhere. Reloading; your draft will be discarded."
		}
		return m, nil

	case errMsg:
		m.flash = "Error: " + msg.err.Error()
		return m, nil

	case noticeMsg:
		m.notice = string(msg)
		return m, nil

	case clearNoticeMsg:
		m.notice = ""
		return m, nil

	case statusMsg:
		m.status = model.ServiceStatus(msg)
		return m, nil

	case searchMsg:
		m.results = msg.result
		m.resultIdx = 0
		if m.results == nil && m.focus == focusResults {
			m.focus = focusNotes
		}
		m.syncPreview()
		return m, nil

	case focusMsg:
		m.selectByID(string(msg))
		m.focus = focusNotes
		m.syncPreview()
		return m, nil

	case highlightMsg:
		m.highlighted = string(msg)
		m.refreshItems()
		return m, nil

	case clearHighlightMsg:
		if m.highlighted == string(msg) {
			m.highlighted = ""
			m.refreshItems()
		}
		return m, nil

	// ---------- command results ----------

	case searchedMsg, refreshedMsg:
		// Failures arrive separately as errMsg.
		if m.flash == "Searching..." || m.flash == "Rebuilding search index..." {
			m.flash = ""
		}
		return m, nil

	case deletedMsg:
		if msg.err == nil {
			m.flash = "Deleted"
		}
		return m, nil

	case startedMsg, selectedMsg:
		return m, nil

	case savedMsg:
		switch {
		case msg.err == nil:
			m.leaveEditor()
			m.flash = "Saved"
		case errors.Is(msg.err, model.ErrValidation):
			m.flash = msg.err.Error()
		}
		return m, nil

	case createdMsg:
		switch {
		case msg.err == nil:
			m.leaveEditor()
			m.noteList.Select(0)
			m.syncPreview()
			m.flash = "Created"
		case errors.Is(msg.err, model.ErrValidation):
			m.flash = msg.err.Error()
		}
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case modeEdit, modeAdd:
			return m.updateEditor(msg)
		case modeSearch:
			return m.updateSearch(msg)
		}
		return m.updateBrowse(msg)
	}

	return m, nil
}

func (m Model) updateEditor(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyCtrlC:
		return m, tea.Quit

	case key.Matches(msg, m.keys.Cancel):
		if m.edit != nil {
			m.edit.Cancel()
		}
		m.leaveEditor()
		m.flash = "Canceled"
		return m, nil

	case key.Matches(msg, m.keys.Save):
		content := m.editor.Value()
		if m.mode == modeAdd {
			session := m.session
			return m, func() tea.Msg {
				_, err := session.Create(context.Background(), content)
				return createdMsg{err: err}
			}
		}
		edit := m.edit
		if edit == nil {
			m.leaveEditor()
			return m, nil
		}
		if err := edit.SetDraft(content); err != nil {
			m.leaveEditor()
			m.flash = "Edit is no longer open"
			return m, nil
		}
		m.flash = "Saving..."
		return m, func() tea.Msg {
			_, err := edit.Submit(context.Background())
			return savedMsg{err: err}
		}
	}

	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	return m, cmd
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyCtrlC:
		return m, tea.Quit

	case key.Matches(msg, m.keys.Cancel):
		m.mode = modeBrowse
		m.query.Blur()
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		query := m.query.Value()
		m.mode = modeBrowse
		m.query.Blur()
		if strings.TrimSpace(query) == "" {
			m.flash = "query cannot be empty"
			return m, nil
		}
		m.focus = focusResults
		m.flash = "Searching..."
		session := m.session
		return m, func() tea.Msg {
			_, err := session.Search.Search(context.Background(), query, searchLimit)
			return searchedMsg{err: err}
		}
	}

	var cmd tea.Cmd
	m.query, cmd = m.query.Update(msg)
	return m, cmd
}

func (m Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	session := m.session

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		m.help.ShowAll = m.showHelp
		return m, nil

	case key.Matches(msg, m.keys.Tab):
		if m.focus == focusNotes && m.results != nil && len(m.results.Sources) > 0 {
			m.focus = focusResults
		} else {
			m.focus = focusNotes
		}
		m.syncPreview()
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.focus == focusResults {
			if m.results != nil && m.resultIdx < len(m.results.Sources)-1 {
				m.resultIdx++
			}
		} else {
			m.noteList.CursorDown()
		}
		m.syncPreview()
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if m.focus == focusResults {
			if m.resultIdx > 0 {
				m.resultIdx--
			}
		} else {
			m.noteList.CursorUp()
		}
		m.syncPreview()
		return m, nil

	case key.Matches(msg, m.keys.New):
		m.mode = modeAdd
		m.edit = nil
		m.editor.SetValue("")
		m.flash = ""
		return m, m.editor.Focus()

	case key.Matches(msg, m.keys.Edit):
		note := m.selected()
		if note == nil {
			return m, nil
		}
		edit, err := session.BeginEdit(note.ID)
		if err != nil {
			m.flash = "Error: " + err.Error()
			return m, nil
		}
		m.mode = modeEdit
		m.edit = edit
		m.editor.SetValue(edit.Draft())
		m.editor.CursorEnd()
		m.flash = ""
		return m, m.editor.Focus()

	case key.Matches(msg, m.keys.Delete):
		note := m.selected()
		if note == nil {
			return m, nil
		}
		id := note.ID
		return m, func() tea.Msg {
			return deletedMsg{err: session.Delete(context.Background(), id)}
		}

	case key.Matches(msg, m.keys.Share):
		note := m.selected()
		if note == nil {
			return m, nil
		}
		_, link, err := session.Share(note.ID, m.opts.ShareBaseURL)
		if err != nil {
			m.flash = "Error: " + err.Error()
			return m, nil
		}
		m.flash = "Share link: " + link
		return m, nil

	case key.Matches(msg, m.keys.Search):
		m.mode = modeSearch
		m.query.SetValue("")
		return m, m.query.Focus()

	case key.Matches(msg, m.keys.Select):
		src := m.currentSource()
		if m.focus != focusResults || src == nil {
			return m, nil
		}
		id := src.NoteID
		return m, func() tea.Msg {
			err := session.Search.SelectResult(id)
			if errors.Is(err, model.ErrNotFound) {
				err = fmt.Errorf("note %s is not in the listing", id)
				return errMsg{err: err}
			}
			return selectedMsg{err: err}
		}

	case key.Matches(msg, m.keys.Clear):
		return m, func() tea.Msg {
			session.Search.ClearResults()
			return nil
		}

	case key.Matches(msg, m.keys.Reload):
		return m, func() tea.Msg {
			return startedMsg{err: session.Refresh(context.Background())}
		}

	case key.Matches(msg, m.keys.Reindex):
		m.flash = "Rebuilding search index..."
		return m, func() tea.Msg {
			_, err := session.Search.RefreshIndex(context.Background())
			return refreshedMsg{err: err}
		}
	}

	return m, nil
}

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "loading..."
	}

	sidebar := m.renderSidebar()
	main := m.renderMain()

	root := lipgloss.JoinHorizontal(lipgloss.Top, sidebar, main)
	return lipgloss.JoinVertical(lipgloss.Left, root, m.renderStatusLine(), m.renderHelp())
}

// ---------- rendering ----------

var (
	border = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))

	titleStyle   = lipgloss.NewStyle().Bold(true)
	blurStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	focusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	noticeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	resultsStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
)

func (m Model) renderSidebar() string {
	label := fmt.Sprintf("Notes (%d)", len(m.notes))
	header := titleStyle.Render("tonotes") + " " + blurStyle.Render("•") + " "
	if m.focus == focusNotes && m.mode == modeBrowse {
		header += focusStyle.Render(label)
	} else {
		header += blurStyle.Render(label)
	}

	body := m.noteList.View()
	if len(m.notes) == 0 {
		body = blurStyle.Render("No notes yet. Press 'n' to create one.")
	}

	box := border.Width(m.noteList.Width()).Height(m.noteList.Height()+2).Padding(0, 1)
	return box.Render(header + "\n" + body)
}

func (m Model) renderMain() string {
	var header, content string
	switch m.mode {
	case modeEdit:
		header = titleStyle.Render("Edit")
		if m.edit != nil {
			header += " " + blurStyle.Render(fmt.Sprintf("(based on v%d)", m.edit.BaseVersion()))
		}
		content = m.editor.View()
	case modeAdd:
		header = titleStyle.Render("New note")
		content = m.editor.View()
	default:
		header = titleStyle.Render("Preview")
		content = m.preview.View()
		if strings.TrimSpace(content) == "" {
			content = blurStyle.Render("Select a note or press 'n' to create one.")
		}
	}
	if m.mode == modeSearch {
		content = m.query.View() + "\n\n" + content
	}
	if m.results != nil {
		content += "\n\n" + m.renderResults()
	}

	w := max(20, m.width-m.noteList.Width()-8)
	box := border.Width(w).Height(m.noteList.Height()+2).Padding(0, 1)
	if m.mode != modeBrowse || m.focus == focusResults {
		box = box.BorderForeground(lipgloss.Color("205"))
	}
	return box.Render(header + "\n\n" + content)
}

func (m Model) renderResults() string {
	r := m.results
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Results for %q", r.Query)))
	b.WriteString("\n")
	if r.Response != "" {
		b.WriteString(resultsStyle.Render(r.Response))
		b.WriteString("\n")
	}
	if len(r.Sources) == 0 {
		b.WriteString(blurStyle.Render("No matching notes."))
		return b.String()
	}
	for i, src := range r.Sources {
		line := fmt.Sprintf("%3.0f%%  %s", src.Similarity*100, firstLine(src.Preview, 60))
		if m.focus == focusResults && i == m.resultIdx {
			line = focusStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) renderStatusLine() string {
	status := "search: " + string(m.status.State)
	if m.status.State == model.StateActive {
		status += fmt.Sprintf(" (%d chunks)", m.status.IndexedChunks)
	}
	parts := []string{statusStyle.Render(status)}
	if m.notice != "" {
		parts = append(parts, noticeStyle.Render(m.notice))
	}
	if m.flash != "" {
		parts = append(parts, warnStyle.Render(m.flash))
	}
	return lipgloss.NewStyle().Padding(0, 1).Render(strings.Join(parts, "  "))
}

func (m Model) renderHelp() string {
	var view string
	switch m.mode {
	case modeEdit, modeAdd:
		view = m.help.View(editKeyMap{KeyMap: m.keys})
	case modeSearch:
		view = m.help.View(searchKeyMap{KeyMap: m.keys})
	default:
		view = m.help.View(m.keys)
	}
	return lipgloss.NewStyle().Padding(0, 1).Render(view)
}

// ---------- helpers ----------

func (m *Model) layout() {
	sidebarW := max(28, min(44, m.width/3))
	contentH := max(10, m.height-4)

	rightW := m.width - sidebarW - 8
	bodyH := max(3, contentH-6)

	m.noteList.SetSize(sidebarW-4, contentH-4)
	m.preview = viewport.New(rightW, bodyH)
	m.editor.SetWidth(rightW)
	m.editor.SetHeight(bodyH)
	m.query.Width = rightW - 4

	m.syncPreview()
}

func (m *Model) setNotes(notes []*model.Note) {
	selectedID := ""
	if n := m.selected(); n != nil {
		selectedID = n.ID
	}
	m.notes = notes
	m.refreshItems()
	if selectedID != "" {
		m.selectByID(selectedID)
	}
	m.syncPreview()
}

func (m *Model) refreshItems() {
	items := make([]list.Item, 0, len(m.notes))
	for _, n := range m.notes {
		items = append(items, noteItem{n: n, highlighted: n.ID == m.highlighted})
	}
	m.noteList.SetItems(items)
}

func (m *Model) selectByID(id string) {
	for i, n := range m.notes {
		if n.ID == id {
			m.noteList.Select(i)
			return
		}
	}
}

func (m Model) selected() *model.Note {
	idx := m.noteList.Index()
	if idx < 0 || idx >= len(m.notes) {
		return nil
	}
	return m.notes[idx]
}

func (m Model) currentSource() *model.SearchSource {
	if m.results == nil || m.resultIdx >= len(m.results.Sources) {
		return nil
	}
	return &m.results.Sources[m.resultIdx]
}

func (m *Model) syncPreview() {
	if n := m.selected(); n != nil {
		m.preview.SetContent(n.Content)
		return
	}
	m.preview.SetContent("")
}

func (m *Model) leaveEditor() {
	m.mode = modeBrowse
	m.edit = nil
	m.editor.Blur()
	m.syncPreview()
}

func firstLine(s string, limit int) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	if r := []rune(line); len(r) > limit {
		return string(r[:limit-3]) + "..."
	}
	return line
}

// Run shows the session until the user quits or ctx is cancelled.
func Run(ctx context.Context, session *workspace.Session, presenter *Presenter, opts Options) error {
	p := tea.NewProgram(NewModel(session, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	presenter.Attach(p)
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run tui: %w", err)
	}
	return nil
}
