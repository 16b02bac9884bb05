package ui

import (
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"taskman/internal/clipboard"
	"taskman/internal/config"
	"taskman/internal/report"
	"taskman/internal/storage"
)

type mode int

const (
	modeBrowse mode = iota
	modeForm
	modeConfirm
	modeChooser
	modeResults
	modeNote
)

type focus int

const (
	focusTree focus = iota
	focusRelated
)

type Options struct {
	Store     *storage.Store
	Config    config.Config
	Logger    *zap.Logger
	Clipboard clipboard.Writer
}

type Model struct {
	store  *storage.Store
	cfg    config.Config
	keys   keyMap
	log    *zap.Logger
	clip   clipboard.Writer
	theme  Theme
	styles styles

	rows     []storage.TreeRow
	cursor   int
	selected map[int]bool
	sortBy   sortKey

	focus     focus
	related   []relatedItem
	relCursor int

	mode    mode
	form    *form
	pending *relatedItem
	search  *searchState
	note    viewport.Model
	noteID  int

	width  int
	height int
	status string
}

func New(opts Options) (Model, error) {
	if opts.Store == nil {
		return Model{}, errors.New("ui needs a store")
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	clip := opts.Clipboard
	if clip == nil {
		clip = clipboard.New(log)
	}
	name, err := opts.Store.Theme(opts.Config.Theme)
	if err != nil {
		return Model{}, fmt.Errorf("failed to read theme: %w", err)
	}
	theme, _ := ThemeByName(name)

	m := Model{
		store:    opts.Store,
		cfg:      opts.Config,
		keys:     newKeyMap(opts.Config.Keys),
		log:      log,
		clip:     clip,
		theme:    theme,
		styles:   theme.styles(),
		selected: map[int]bool{},
		note:     viewport.New(80, 20),
		width:    120,
		height:   40,
	}
	m.reload()
	if m.status == "" {
		m.status = fmt.Sprintf("Press '%s' to add a task, %s to select.",
			keyLabel(m.cfg.Keys.AddTask), keyLabel(m.cfg.Keys.Select))
	}
	return m, nil
}

func Run(opts Options) error {
	m, err := New(opts)
	if err != nil {
		return err
	}
	program := tea.NewProgram(m, tea.WithAltScreen())
	_, err = program.Run()
	return err
}

// reload re-reads tasks and related data, keeping the cursor on the same task.
func (m *Model) reload() {
	current, hadCurrent := m.currentTask()
	tasks, err := m.store.Tasks()
	if err != nil {
		m.status = fmt.Sprintf("reload failed: %v", err)
		m.log.Error("reload tasks", zap.Error(err))
		return
	}
	m.rows = storage.BuildTree(tasks, m.sortBy.less())

	known := make(map[int]bool, len(m.rows))
	for _, r := range m.rows {
		known[r.ID] = true
	}
	for id := range m.selected {
		if !known[id] {
			delete(m.selected, id)
		}
	}
	if !hadCurrent || !m.moveTo(current.ID) {
		m.cursor = clampCursor(m.cursor, len(m.rows))
	}
	m.reloadRelated()
}

func (m *Model) reloadRelated() {
	ids := m.targetIDs()
	rel, err := m.store.Related(ids...)
	if err != nil {
		m.status = fmt.Sprintf("related failed: %v", err)
		m.log.Error("reload related", zap.Ints("tasks", ids), zap.Error(err))
		return
	}
	m.related = relatedItems(rel)
	m.relCursor = clampCursor(m.relCursor, len(m.related))
	if len(m.related) == 0 {
		m.focus = focusTree
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

type browserMsg struct {
	url string
	err error
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.note.Width = max(msg.Width-4, 20)
		m.note.Height = max(msg.Height-6, 5)
		return m, nil
	case editorDoneMsg:
		return m.finishNoteEdit(msg)
	case browserMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("open failed: %v", msg.err)
		} else {
			m.status = "Opened " + msg.url
		}
		return m, nil
	case tea.KeyMsg:
		switch m.mode {
		case modeForm:
			return m.updateForm(msg)
		case modeConfirm:
			return m.updateConfirm(msg.String())
		case modeChooser:
			return m.updateChooser(msg.String())
		case modeResults:
			return m.updateResults(msg)
		case modeNote:
			return m.updateNoteView(msg)
		}
		return m.updateBrowse(msg)
	}
	return m, nil
}

func (m Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := m.keys
	switch {
	case key.Matches(msg, k.Quit):
		return m, tea.Quit
	case key.Matches(msg, k.Down):
		if m.focus == focusRelated {
			m.relCursor = clampCursor(m.relCursor+1, len(m.related))
		} else if len(m.rows) > 0 {
			m.cursor = clampCursor(m.cursor+1, len(m.rows))
			m.reloadRelated()
		}
	case key.Matches(msg, k.Up):
		if m.focus == focusRelated {
			m.relCursor = clampCursor(m.relCursor-1, len(m.related))
		} else if len(m.rows) > 0 {
			m.cursor = clampCursor(m.cursor-1, len(m.rows))
			m.reloadRelated()
		}
	case key.Matches(msg, k.NextPanel), key.Matches(msg, k.PrevPanel):
		if m.focus == focusTree && len(m.related) > 0 {
			m.focus = focusRelated
		} else {
			m.focus = focusTree
		}
	case key.Matches(msg, k.Select):
		t, ok := m.currentTask()
		if !ok || m.focus != focusTree {
			return m, nil
		}
		if m.selected[t.ID] {
			delete(m.selected, t.ID)
		} else {
			m.selected[t.ID] = true
		}
		m.status = fmt.Sprintf("%d task(s) selected", len(m.selected))
		m.reloadRelated()
	case key.Matches(msg, k.AddTask):
		return m.openForm(m.taskForm(nil, 0))
	case key.Matches(msg, k.AddSubtask):
		t, ok := m.currentTask()
		if !ok {
			m.status = "No task to add a subtask to"
			return m, nil
		}
		return m.openForm(m.taskForm(nil, t.ID))
	case key.Matches(msg, k.AddRelated):
		t, ok := m.currentTask()
		if !ok {
			m.status = "No task selected"
			return m, nil
		}
		m.mode = modeChooser
		m.status = fmt.Sprintf("Attach to #%d: [d]elivery [l]ink [t]ag [o]rigin [b]ooking, esc to cancel", t.ID)
	case key.Matches(msg, k.Note):
		t, ok := m.currentTask()
		if !ok {
			m.status = "No task selected"
			return m, nil
		}
		return m.startNoteEdit(t.ID, 0, "")
	case key.Matches(msg, k.Edit):
		return m.editFocused()
	case key.Matches(msg, k.Delete):
		return m.confirmDelete()
	case key.Matches(msg, k.Confirm):
		return m.openFocused()
	case key.Matches(msg, k.Open):
		it, ok := m.currentRelated()
		if m.focus != focusRelated || !ok || strings.TrimSpace(it.url) == "" {
			m.status = "Nothing to open"
			return m, nil
		}
		return m, openURL(it.url)
	case key.Matches(msg, k.Search):
		return m.openForm(m.searchForm())
	case key.Matches(msg, k.Report):
		ids := m.targetIDs()
		if _, err := report.Copy(m.clip, m.store, ids); err != nil {
			m.status = fmt.Sprintf("report failed: %v", err)
			m.log.Error("copy report", zap.Ints("tasks", ids), zap.Error(err))
			return m, nil
		}
		m.status = fmt.Sprintf("Report of %d task(s) copied to clipboard", len(ids))
	case key.Matches(msg, k.Theme):
		m.theme = m.theme.next()
		m.styles = m.theme.styles()
		if err := m.store.SetTheme(m.theme.Name); err != nil {
			m.status = fmt.Sprintf("theme not saved: %v", err)
			return m, nil
		}
		m.status = "Theme: " + m.theme.Name
	case key.Matches(msg, k.Sort):
		m.sortBy = m.sortBy.next()
		m.reload()
		m.status = "Sorted by " + m.sortBy.String()
	}
	return m, nil
}

func (m Model) openForm(f *form) (tea.Model, tea.Cmd) {
	m.form = f
	m.mode = modeForm
	m.status = f.title
	return m, nil
}

func (m Model) editFocused() (tea.Model, tea.Cmd) {
	if m.focus == focusRelated {
		it, ok := m.currentRelated()
		if !ok {
			return m, nil
		}
		if it.kind == kindNote {
			n, err := m.store.GetNote(it.id)
			if err != nil {
				m.status = err.Error()
				return m, nil
			}
			return m.startNoteEdit(n.TaskID, n.ID, n.Content)
		}
		f, err := m.editForm(it)
		if err != nil {
			m.status = err.Error()
			return m, nil
		}
		return m.openForm(f)
	}
	t, ok := m.currentTask()
	if !ok {
		m.status = "No tasks to edit"
		return m, nil
	}
	return m.openForm(m.taskForm(&t, 0))
}

func (m Model) confirmDelete() (tea.Model, tea.Cmd) {
	var it relatedItem
	if m.focus == focusRelated {
		r, ok := m.currentRelated()
		if !ok {
			return m, nil
		}
		it = r
	} else {
		t, ok := m.currentTask()
		if !ok {
			return m, nil
		}
		it = relatedItem{kind: kindTask, id: t.ID, text: t.Name}
	}
	m.pending = &it
	m.mode = modeConfirm
	m.status = fmt.Sprintf("Delete %s #%d \"%s\"? y/n", it.kind, it.id, it.text)
	if it.kind == kindNote {
		m.status += fmt.Sprintf(", a deletes every note of task #%d", it.taskID)
	}
	return m, nil
}

func (m Model) updateConfirm(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "n", "N", "esc":
		m.status = "Delete cancelled"
	case "y", "Y":
		if m.pending == nil {
			m.status = "Nothing to delete"
			break
		}
		it := *m.pending
		if err := m.deleteItem(it); err != nil {
			m.status = fmt.Sprintf("delete failed: %v", err)
			m.log.Warn("delete refused", zap.String("kind", string(it.kind)), zap.Int("id", it.id), zap.Error(err))
			break
		}
		if it.kind == kindTask {
			delete(m.selected, it.id)
		}
		m.status = fmt.Sprintf("Deleted %s #%d", it.kind, it.id)
		m.reload()
	case "a", "A":
		if m.pending == nil || m.pending.kind != kindNote {
			return m, nil
		}
		taskID := m.pending.taskID
		n, err := m.store.DeleteTaskNotes(taskID)
		if err != nil {
			m.status = fmt.Sprintf("delete failed: %v", err)
			m.log.Warn("notes not deleted", zap.Int("task", taskID), zap.Error(err))
			break
		}
		m.status = fmt.Sprintf("Deleted %d note(s) of task #%d", n, taskID)
		m.reload()
	default:
		return m, nil
	}
	m.mode = modeBrowse
	m.pending = nil
	return m, nil
}

func (m Model) updateChooser(key string) (tea.Model, tea.Cmd) {
	t, ok := m.currentTask()
	if !ok {
		m.mode = modeBrowse
		return m, nil
	}
	var f *form
	switch key {
	case "d":
		f = m.deliveryForm(t.ID, nil)
	case "l":
		f = m.linkForm(t.ID, nil)
	case "t":
		f = m.tagForm(t.ID, nil)
	case "o":
		f = m.originForm(t.ID, nil)
	case "b":
		f = m.bookingForm(t.ID, nil)
	case "esc", m.cfg.Keys.Cancel:
		m.mode = modeBrowse
		m.status = "Cancelled"
		return m, nil
	default:
		return m, nil
	}
	return m.openForm(f)
}

// openFocused shows the task details, or opens the focused related item.
func (m Model) openFocused() (tea.Model, tea.Cmd) {
	if m.focus == focusRelated {
		it, ok := m.currentRelated()
		if !ok {
			return m, nil
		}
		switch it.kind {
		case kindNote:
			return m.viewNote(it.id)
		case kindLink, kindOrigin:
			if it.url != "" {
				return m, openURL(it.url)
			}
		}
		m.status = fmt.Sprintf("%s #%d: %s", it.kind, it.id, it.text)
		return m, nil
	}
	t, ok := m.currentTask()
	if !ok {
		m.status = "No tasks"
		return m, nil
	}
	m.status = taskDetail(t)
	return m, nil
}

func taskDetail(t storage.Task) string {
	info := fmt.Sprintf("Task #%d • %s", t.ID, t.Name)
	if t.Customer != "" {
		info += " • customer:" + t.Customer
	}
	if t.StartedAt.Valid {
		info += " • started " + humanize.Time(t.StartedAt.Time)
	}
	if t.FinishedAt.Valid {
		info += " • finished " + humanize.Time(t.FinishedAt.Time)
	}
	if t.Description != "" {
		info += " • " + t.Description
	}
	return info
}

func openURL(url string) tea.Cmd {
	return func() tea.Msg {
		return browserMsg{url: url, err: browserCommand(url).Start()}
	}
}

func browserCommand(url string) *exec.Cmd {
	switch runtime.GOOS {
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	case "darwin":
		return exec.Command("open", url)
	}
	return exec.Command("xdg-open", url)
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.styles.title.Render("taskman"))
	b.WriteString(m.styles.muted.Render("  theme:" + m.theme.Name))
	b.WriteString("\n\n")

	switch m.mode {
	case modeForm:
		b.WriteString(m.styles.activePanel.Render(m.renderForm()))
	case modeResults:
		b.WriteString(m.styles.activePanel.Render(m.renderResults()))
	case modeNote:
		b.WriteString(m.styles.activePanel.Render(m.note.View()))
	default:
		half := max(m.width/2-4, 30)
		tree, related := m.styles.panel, m.styles.panel
		if m.focus == focusTree {
			tree = m.styles.activePanel
		} else {
			related = m.styles.activePanel
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
			tree.Width(half).Render(m.renderTree()),
			related.Width(half).Render(m.renderRelated()),
		))
	}

	b.WriteString("\n\n")
	b.WriteString(m.styles.status.Render(m.status))
	b.WriteString("\n")
	b.WriteString(m.styles.help.Render(m.keys.helpLine()))
	return b.String()
}
