package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"taskman/internal/storage"
)

type searchState struct {
	result storage.SearchResult
	cursor int
}

func (m Model) searchForm() *form {
	store := m.store
	var f *form
	columns := func(fragment string) []string {
		cols, err := store.Columns(strings.TrimSpace(f.fields[0].input.Value()))
		if err != nil {
			return nil
		}
		return fixedSuggester(cols)(fragment)
	}
	f = newForm("Search", []formField{
		newField("Table", "task", fixedSuggester(storage.SearchTables)),
		newField("Field", "name", columns),
		newField("Operator", "LIKE", fixedSuggester(storage.SearchOperators)),
		newField("Value", "", nil),
	}, func(m *Model, v []string) (string, error) {
		res, err := m.store.Search(storage.SearchQuery{Table: v[0], Field: v[1], Operator: v[2], Value: v[3]})
		if err != nil {
			return "", err
		}
		m.search = &searchState{result: res}
		m.mode = modeResults
		return fmt.Sprintf("%d match(es) in %s, enter to jump, esc to close", len(res.Rows), res.Table), nil
	})
	return f
}

func (m Model) updateResults(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	s := m.search
	switch {
	case msg.String() == "esc" || msg.String() == m.cfg.Keys.Cancel:
		m.search = nil
		m.mode = modeBrowse
		m.status = ""
	case msg.String() == "down" || msg.String() == m.cfg.Keys.Down:
		s.cursor = clampCursor(s.cursor+1, len(s.result.Rows))
	case msg.String() == "up" || msg.String() == m.cfg.Keys.Up:
		s.cursor = clampCursor(s.cursor-1, len(s.result.Rows))
	case msg.String() == "enter" || msg.String() == m.cfg.Keys.Confirm:
		return m.jumpToResult()
	}
	return m, nil
}

// jumpToResult selects the task owning the highlighted row and focuses the
// row itself in the related panel.
func (m Model) jumpToResult() (tea.Model, tea.Cmd) {
	s := m.search
	id, err := s.result.RowID(s.cursor)
	if err != nil {
		m.status = err.Error()
		return m, nil
	}
	taskID, err := m.store.OwnerTask(s.result.Table, id)
	if err != nil {
		m.status = err.Error()
		return m, nil
	}
	m.search = nil
	m.mode = modeBrowse
	m.focus = focusTree
	for k := range m.selected {
		delete(m.selected, k)
	}
	m.reload()
	if !m.moveTo(taskID) {
		m.status = fmt.Sprintf("task #%d not found", taskID)
		return m, nil
	}
	m.selected[taskID] = true
	m.reloadRelated()
	if kind := itemKind(s.result.Table); kind != kindTask {
		m.focusItem(kind, id)
	}
	m.status = fmt.Sprintf("Jumped to task #%d", taskID)
	return m, nil
}

func (m Model) renderResults() string {
	s := m.search
	var b strings.Builder
	b.WriteString(m.styles.title.Render(fmt.Sprintf("Search results: %s", s.result.Table)))
	b.WriteString("\n")
	b.WriteString(m.styles.header.Render(strings.Join(s.result.Columns, " | ")))
	b.WriteString("\n")
	if len(s.result.Rows) == 0 {
		b.WriteString(m.styles.muted.Render("No matches"))
		return b.String()
	}
	for i, row := range s.result.Rows {
		cells := make([]string, len(row))
		for j, c := range row {
			cells[j] = truncate(strings.ReplaceAll(c, "\n", " "), 40)
		}
		line := strings.Join(cells, " | ")
		if i == s.cursor {
			line = m.styles.cursor.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
