package ui

import (
	"fmt"
	"strings"

	"taskman/internal/storage"
)

type sortKey int

const (
	sortByID sortKey = iota
	sortByCustomer
	sortByName
	sortByStarted
)

var sortNames = []string{"id", "customer", "name", "started"}

func (s sortKey) String() string {
	return sortNames[s]
}

func (s sortKey) next() sortKey {
	return sortKey((int(s) + 1) % len(sortNames))
}

func (s sortKey) less() func(a, b storage.Task) bool {
	switch s {
	case sortByCustomer:
		return func(a, b storage.Task) bool {
			if !strings.EqualFold(a.Customer, b.Customer) {
				return strings.ToLower(a.Customer) < strings.ToLower(b.Customer)
			}
			return a.ID < b.ID
		}
	case sortByName:
		return func(a, b storage.Task) bool {
			if !strings.EqualFold(a.Name, b.Name) {
				return strings.ToLower(a.Name) < strings.ToLower(b.Name)
			}
			return a.ID < b.ID
		}
	case sortByStarted:
		return func(a, b storage.Task) bool {
			switch {
			case a.StartedAt.Valid != b.StartedAt.Valid:
				return a.StartedAt.Valid
			case a.StartedAt.Valid && !a.StartedAt.Time.Equal(b.StartedAt.Time):
				return a.StartedAt.Time.Before(b.StartedAt.Time)
			}
			return a.ID < b.ID
		}
	}
	return nil
}

// TreeIndicator marks roots with a rule and children with an elbow.
func TreeIndicator(depth int) string {
	if depth == 0 {
		return "─────"
	}
	return strings.Repeat("    ", depth-1) + "└──"
}

func (m Model) renderTree() string {
	if len(m.rows) == 0 {
		return m.styles.muted.Render(fmt.Sprintf("No tasks yet. Press '%s' to add one.", keyLabel(m.cfg.Keys.AddTask)))
	}
	var b strings.Builder
	b.WriteString(m.styles.header.Render(fmt.Sprintf("Tasks (sorted by %s)", m.sortBy)))
	b.WriteString("\n")
	for i, r := range m.rows {
		mark := "[ ]"
		if m.selected[r.ID] {
			mark = "[x]"
		}
		label := r.Name
		if r.Customer != "" {
			label = r.Customer + ": " + r.Name
		}
		if r.FinishedAt.Valid {
			label += " ✓"
		}
		line := fmt.Sprintf("%s %s #%d %s", mark, TreeIndicator(r.Depth), r.ID, label)
		switch {
		case i == m.cursor && m.focus == focusTree:
			line = m.styles.cursor.Render(line)
		case m.selected[r.ID]:
			line = m.styles.selected.Render(line)
		default:
			line = m.styles.app.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) currentTask() (storage.Task, bool) {
	if len(m.rows) == 0 {
		return storage.Task{}, false
	}
	return m.rows[clampCursor(m.cursor, len(m.rows))].Task, true
}

// targetIDs are the selected tasks in display order, or the task under the
// cursor when nothing is selected.
func (m Model) targetIDs() []int {
	var ids []int
	for _, r := range m.rows {
		if m.selected[r.ID] {
			ids = append(ids, r.ID)
		}
	}
	if len(ids) == 0 {
		if t, ok := m.currentTask(); ok {
			ids = []int{t.ID}
		}
	}
	return ids
}

func (m *Model) moveTo(taskID int) bool {
	for i, r := range m.rows {
		if r.ID == taskID {
			m.cursor = i
			return true
		}
	}
	return false
}
