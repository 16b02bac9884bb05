package ui

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskman/internal/clipboard"
	"taskman/internal/config"
	"taskman/internal/editor"
	"taskman/internal/storage"
)

type fixture struct {
	store *storage.Store
	clip  *clipboard.Recorder
}

func newModel(t *testing.T) (Model, fixture) {
	t.Helper()
	dir := t.TempDir()
	cfg, err := config.LoadOrCreate(filepath.Join(dir, "config.toml"))
	require.NoError(t, err)
	store, err := storage.Open(filepath.Join(dir, "ui.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	rec := &clipboard.Recorder{}
	m, err := New(Options{Store: store, Config: cfg, Clipboard: rec})
	require.NoError(t, err)
	return m, fixture{store: store, clip: rec}
}

func keyMsg(k string) tea.KeyMsg {
	switch k {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "shift+tab":
		return tea.KeyMsg{Type: tea.KeyShiftTab}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

func press(t *testing.T, m Model, keys ...string) Model {
	t.Helper()
	for _, k := range keys {
		next, _ := m.Update(keyMsg(k))
		m = next.(Model)
	}
	return m
}

func typeText(t *testing.T, m Model, s string) Model {
	t.Helper()
	for _, r := range s {
		m = press(t, m, string(r))
	}
	return m
}

func TestAddTaskThroughForm(t *testing.T) {
	m, fx := newModel(t)

	m = press(t, m, "a")
	require.Equal(t, modeForm, m.mode)
	m = typeText(t, m, "ACME")
	m = press(t, m, "enter")
	m = typeText(t, m, "T-1 quick")
	m = press(t, m, "enter")
	m = typeText(t, m, "fix login")
	m = press(t, m, "enter")
	m = typeText(t, m, "2024-05-01 09:00")
	m = press(t, m, "enter", "enter")

	assert.Equal(t, modeBrowse, m.mode)
	tasks, err := fx.store.Tasks()
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "ACME", tasks[0].Customer)
	assert.Equal(t, "T-1 quick", tasks[0].Name)
	assert.Equal(t, "2024-05-01 09:00", storage.FormatTime(tasks[0].StartedAt))
	assert.Contains(t, m.View(), "T-1 quick")
}

func TestFormRejectsBadInput(t *testing.T) {
	m, fx := newModel(t)
	m = press(t, m, "a", "enter", "enter", "enter", "enter", "enter")
	assert.Equal(t, modeForm, m.mode, "a task needs a name")
	assert.Equal(t, errNameRequired.Error(), m.status)

	m = press(t, m, "esc")
	assert.Equal(t, modeBrowse, m.mode)
	tasks, err := fx.store.Tasks()
	require.NoError(t, err)
	assert.Empty(t, tasks)

	m = press(t, m, "a", "enter")
	m = typeText(t, m, "x")
	m = press(t, m, "enter", "enter")
	m = typeText(t, m, "yesterday")
	m = press(t, m, "enter", "enter")
	assert.Contains(t, m.status, "started")
}

func TestFormCompletesFromExistingValues(t *testing.T) {
	m, fx := newModel(t)
	_, err := fx.store.AddTask(storage.TaskInput{Customer: "ACME Corp", Name: "old"}, 0)
	require.NoError(t, err)
	m.reload()

	m = press(t, m, "a")
	m = typeText(t, m, "corp")
	require.Equal(t, []string{"ACME Corp"}, m.form.matches)
	m = press(t, m, "tab")
	assert.Equal(t, "ACME Corp", m.form.fields[0].input.Value())
	assert.Equal(t, 0, m.form.index, "completing stays on the field")
	m = press(t, m, "tab")
	assert.Equal(t, 1, m.form.index)
}

func TestSubtaskAndTree(t *testing.T) {
	m, fx := newModel(t)
	parent, err := fx.store.AddTask(storage.TaskInput{Customer: "ACME", Name: "parent"}, 0)
	require.NoError(t, err)
	m.reload()

	m = press(t, m, "A", "enter")
	m = typeText(t, m, "child")
	m = press(t, m, "enter", "enter", "enter", "enter")

	require.Len(t, m.rows, 2)
	assert.Equal(t, parent, int(m.rows[1].ParentID.Int64))
	assert.Equal(t, 1, m.rows[1].Depth)
	assert.Equal(t, 1, m.cursor, "cursor follows the new task")

	view := m.renderTree()
	assert.Contains(t, view, "─────")
	assert.Contains(t, view, "└──")
}

func TestSelectionDrivesRelatedPanel(t *testing.T) {
	m, fx := newModel(t)
	a, err := fx.store.AddTask(storage.TaskInput{Name: "a"}, 0)
	require.NoError(t, err)
	b, err := fx.store.AddTask(storage.TaskInput{Name: "b"}, 0)
	require.NoError(t, err)
	_, err = fx.store.AddLink(a, storage.Link{Type: "jira", RawLink: "https://jira/a"})
	require.NoError(t, err)
	_, err = fx.store.AddTag(b, storage.Tag{Type: "area", Keywords: "billing"})
	require.NoError(t, err)
	m.reload()

	require.Len(t, m.related, 1, "the cursor task alone when nothing is selected")
	m = press(t, m, " ", "j", " ")
	assert.True(t, m.selected[a])
	assert.True(t, m.selected[b])
	assert.Len(t, m.related, 2)

	m = press(t, m, "tab")
	assert.Equal(t, focusRelated, m.focus)
	m = press(t, m, "tab")
	assert.Equal(t, focusTree, m.focus)
}

func TestAttachThroughChooser(t *testing.T) {
	m, fx := newModel(t)
	id, err := fx.store.AddTask(storage.TaskInput{Name: "a"}, 0)
	require.NoError(t, err)
	m.reload()

	m = press(t, m, "n")
	require.Equal(t, modeChooser, m.mode)
	m = press(t, m, "d")
	require.Equal(t, modeForm, m.mode)
	m = typeText(t, m, "1.2")
	m = press(t, m, "enter")
	m = typeText(t, m, "srvA")
	m = press(t, m, "enter")
	m = typeText(t, m, "PROD")
	m = press(t, m, "enter", "enter")

	rel, err := fx.store.Related(id)
	require.NoError(t, err)
	require.Len(t, rel.Deliveries, 1)
	assert.Equal(t, "srvA", rel.Deliveries[0].Server)
	require.Len(t, m.related, 1)
	assert.Equal(t, kindDelivery, m.related[0].kind)
}

func TestDeleteConfirmation(t *testing.T) {
	m, fx := newModel(t)
	parent, err := fx.store.AddTask(storage.TaskInput{Name: "parent"}, 0)
	require.NoError(t, err)
	_, err = fx.store.AddTask(storage.TaskInput{Name: "child"}, parent)
	require.NoError(t, err)
	m.reload()

	m = press(t, m, "d", "n")
	assert.Equal(t, "Delete cancelled", m.status)
	assert.Len(t, m.rows, 2)

	m = press(t, m, "d", "y")
	assert.Contains(t, m.status, "subtasks")
	assert.Len(t, m.rows, 2)

	m = press(t, m, "j", "d", "y")
	assert.Len(t, m.rows, 1)
	m = press(t, m, "d", "y")
	assert.Empty(t, m.rows)
}

func TestDeleteRelatedItem(t *testing.T) {
	m, fx := newModel(t)
	id, err := fx.store.AddTask(storage.TaskInput{Name: "a"}, 0)
	require.NoError(t, err)
	_, err = fx.store.AddTag(id, storage.Tag{Type: "area", Keywords: "x"})
	require.NoError(t, err)
	m.reload()

	m = press(t, m, "tab", "d", "y")
	rel, err := fx.store.Related(id)
	require.NoError(t, err)
	assert.Empty(t, rel.Tags)
	assert.Equal(t, focusTree, m.focus)
	assert.Len(t, m.rows, 1)
}

func TestDeleteAllNotesOfTask(t *testing.T) {
	m, fx := newModel(t)
	id, err := fx.store.AddTask(storage.TaskInput{Name: "a"}, 0)
	require.NoError(t, err)
	for _, content := range []string{"# one", "# two"} {
		_, err = fx.store.AddNote(id, content)
		require.NoError(t, err)
	}
	m.reload()

	m = press(t, m, "tab", "d")
	assert.Equal(t, modeConfirm, m.mode)
	assert.Contains(t, m.status, fmt.Sprintf("a deletes every note of task #%d", id))

	m = press(t, m, "a")
	assert.Equal(t, modeBrowse, m.mode)
	assert.Equal(t, fmt.Sprintf("Deleted 2 note(s) of task #%d", id), m.status)
	rel, err := fx.store.Related(id)
	require.NoError(t, err)
	assert.Empty(t, rel.Notes)
}

func TestRelatedLinkShowsTags(t *testing.T) {
	items := relatedItems(storage.Related{Links: []storage.Link{{
		ID: 3, Type: "doc", RawLink: "https://x",
		Tags: []storage.Tag{{Type: "area", Keywords: "billing"}, {Keywords: "urgent"}},
	}}})
	require.Len(t, items, 1)
	assert.Equal(t, "[doc] https://x (area: billing, urgent)", items[0].text)
	assert.Equal(t, "https://x", items[0].url)
}

func TestThemeCyclePersists(t *testing.T) {
	m, fx := newModel(t)
	assert.Equal(t, "normal", m.theme.Name)
	m = press(t, m, "t")
	assert.Equal(t, "dark", m.theme.Name)
	saved, err := fx.store.Theme("normal")
	require.NoError(t, err)
	assert.Equal(t, "dark", saved)

	m2, err := New(Options{Store: fx.store, Config: m.cfg, Clipboard: fx.clip})
	require.NoError(t, err)
	assert.Equal(t, "dark", m2.theme.Name)
	assert.Equal(t, []string{"normal", "dark", "old_book", "gray_red", "orange_blue"}, ThemeNames())
}

func TestReportCopiesSelection(t *testing.T) {
	m, fx := newModel(t)
	_, err := fx.store.AddTask(storage.TaskInput{Customer: "ACME", Name: "T-1"}, 0)
	require.NoError(t, err)
	m.reload()

	m = press(t, m, "r")
	p, ok := fx.clip.Last()
	require.True(t, ok, m.status)
	assert.Contains(t, p.HTML, "<strong>ACME</strong>")
	assert.Contains(t, m.status, "copied")
}

func TestSearchJumpsToOwner(t *testing.T) {
	m, fx := newModel(t)
	_, err := fx.store.AddTask(storage.TaskInput{Name: "first"}, 0)
	require.NoError(t, err)
	target, err := fx.store.AddTask(storage.TaskInput{Name: "second"}, 0)
	require.NoError(t, err)
	linkID, err := fx.store.AddLink(target, storage.Link{Type: "wiki", RawLink: "https://wiki/needle"})
	require.NoError(t, err)
	m.reload()

	m = press(t, m, "/")
	require.Equal(t, modeForm, m.mode)
	m.form.fields[0].input.SetValue("link")
	m.form.fields[1].input.SetValue("raw_link")
	m = press(t, m, "enter", "enter", "enter")
	m = typeText(t, m, "needle")
	m = press(t, m, "enter")
	require.Equal(t, modeResults, m.mode, m.status)
	require.Len(t, m.search.result.Rows, 1)
	assert.Contains(t, m.View(), "https://wiki/needle")

	m = press(t, m, "enter")
	assert.Equal(t, modeBrowse, m.mode)
	cur, ok := m.currentTask()
	require.True(t, ok)
	assert.Equal(t, target, cur.ID)
	assert.True(t, m.selected[target])
	assert.Equal(t, focusRelated, m.focus)
	it, ok := m.currentRelated()
	require.True(t, ok)
	assert.Equal(t, relatedItem{kind: kindLink, id: linkID, text: "[wiki] https://wiki/needle", url: "https://wiki/needle"}, it)
}

func TestSortCycles(t *testing.T) {
	m, fx := newModel(t)
	_, err := fx.store.AddTask(storage.TaskInput{Customer: "b", Name: "z"}, 0)
	require.NoError(t, err)
	_, err = fx.store.AddTask(storage.TaskInput{Customer: "a", Name: "y"}, 0)
	require.NoError(t, err)
	m.reload()
	assert.Equal(t, "z", m.rows[0].Name)

	m = press(t, m, "s")
	assert.Equal(t, sortByCustomer, m.sortBy)
	assert.Equal(t, "y", m.rows[0].Name)
	m = press(t, m, "s", "s", "s")
	assert.Equal(t, sortByID, m.sortBy)
}

func TestFinishNoteEdit(t *testing.T) {
	m, fx := newModel(t)
	id, err := fx.store.AddTask(storage.TaskInput{Name: "a"}, 0)
	require.NoError(t, err)
	m.reload()

	path, err := editor.TempFile("# Meeting\nnotes")
	require.NoError(t, err)
	next, _ := m.Update(editorDoneMsg{path: path, taskID: id})
	m = next.(Model)
	assert.Contains(t, m.status, "added")

	rel, err := fx.store.Related(id)
	require.NoError(t, err)
	require.Len(t, rel.Notes, 1)
	assert.Equal(t, "# Meeting", rel.Notes[0].Title())

	path, err = editor.TempFile("   ")
	require.NoError(t, err)
	next, _ = m.Update(editorDoneMsg{path: path, taskID: id})
	m = next.(Model)
	assert.Equal(t, "Empty note discarded", m.status)

	noteID := rel.Notes[0].ID
	path, err = editor.TempFile("# Meeting\nupdated")
	require.NoError(t, err)
	next, _ = m.Update(editorDoneMsg{path: path, taskID: id, noteID: noteID, original: rel.Notes[0].Content})
	m = next.(Model)
	n, err := fx.store.GetNote(noteID)
	require.NoError(t, err)
	assert.Equal(t, "# Meeting\nupdated", n.Content)

	m.focusItem(kindNote, noteID)
	m = press(t, m, "enter")
	assert.Equal(t, modeNote, m.mode)
	assert.True(t, strings.Contains(m.note.View(), "updated"))
	m = press(t, m, "esc")
	assert.Equal(t, modeBrowse, m.mode)
}

func TestHelpLineFollowsKeymap(t *testing.T) {
	m, _ := newModel(t)
	help := m.keys.helpLine()
	assert.Contains(t, help, "space select")
	assert.Contains(t, help, "/ search")
	assert.Contains(t, help, "q quit")
}
