package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

const maxMatches = 5

type formField struct {
	label   string
	input   textinput.Model
	suggest func(fragment string) []string
}

// form is a modal list of text fields. Tab completes the highlighted
// suggestion, or moves on when there is nothing to complete.
type form struct {
	title   string
	fields  []formField
	index   int
	matches []string
	pick    int
	submit  func(m *Model, values []string) (string, error)
}

func newField(label, value string, suggest func(string) []string) formField {
	ti := textinput.New()
	ti.Prompt = ""
	ti.Placeholder = label
	ti.CharLimit = 1024
	ti.Width = 48
	ti.SetValue(value)
	return formField{label: label, input: ti, suggest: suggest}
}

func newForm(title string, fields []formField, submit func(m *Model, values []string) (string, error)) *form {
	f := &form{title: title, fields: fields, submit: submit}
	f.focus(0)
	return f
}

func (f *form) values() []string {
	out := make([]string, len(f.fields))
	for i, fl := range f.fields {
		out[i] = strings.TrimSpace(fl.input.Value())
	}
	return out
}

func (f *form) current() *formField {
	return &f.fields[f.index]
}

func (f *form) focus(i int) tea.Cmd {
	f.fields[f.index].input.Blur()
	f.index = wrapIndex(i, len(f.fields))
	cur := f.current()
	cur.input.CursorEnd()
	f.refresh()
	return cur.input.Focus()
}

func (f *form) refresh() {
	f.matches, f.pick = nil, 0
	cur := f.current()
	if cur.suggest == nil {
		return
	}
	value := strings.TrimSpace(cur.input.Value())
	for _, s := range cur.suggest(value) {
		if s == value {
			continue
		}
		f.matches = append(f.matches, s)
		if len(f.matches) == maxMatches {
			break
		}
	}
}

func (f *form) complete() bool {
	if len(f.matches) == 0 {
		return false
	}
	cur := f.current()
	cur.input.SetValue(f.matches[f.pick])
	cur.input.CursorEnd()
	f.refresh()
	return true
}

func (m Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	f := m.form
	switch msg.String() {
	case "esc", m.cfg.Keys.Cancel:
		m.form = nil
		m.mode = modeBrowse
		m.status = "Cancelled"
		return m, nil
	case "tab":
		if f.complete() {
			return m, nil
		}
		return m, f.focus(f.index + 1)
	case "shift+tab":
		return m, f.focus(f.index - 1)
	case "ctrl+n":
		if len(f.matches) > 0 {
			f.pick = (f.pick + 1) % len(f.matches)
		}
		return m, nil
	case "ctrl+p":
		if len(f.matches) > 0 {
			f.pick = wrapIndex(f.pick-1, len(f.matches))
		}
		return m, nil
	case "enter", m.cfg.Keys.Confirm:
		if f.index < len(f.fields)-1 {
			return m, f.focus(f.index + 1)
		}
		status, err := f.submit(&m, f.values())
		if err != nil {
			m.status = err.Error()
			return m, nil
		}
		if m.mode == modeForm {
			m.mode = modeBrowse
		}
		if m.form == f {
			m.form = nil
		}
		m.status = status
		m.reload()
		return m, nil
	}
	var cmd tea.Cmd
	cur := f.current()
	cur.input, cmd = cur.input.Update(msg)
	f.refresh()
	return m, cmd
}

func (m Model) renderForm() string {
	f := m.form
	var b strings.Builder
	b.WriteString(m.styles.title.Render(f.title))
	b.WriteString("\n\n")
	for i, fl := range f.fields {
		prefix := "  "
		if i == f.index {
			prefix = "> "
		}
		b.WriteString(fmt.Sprintf("%s%-14s %s\n", prefix, fl.label, fl.input.View()))
		if i == f.index && len(f.matches) > 0 {
			for j, s := range f.matches {
				line := "    " + s
				if j == f.pick {
					line = m.styles.cursor.Render(line)
				} else {
					line = m.styles.muted.Render(line)
				}
				b.WriteString(line + "\n")
			}
		}
	}
	b.WriteString("\n")
	b.WriteString(m.styles.help.Render("enter next/save • tab complete/next • shift+tab back • ctrl+n/ctrl+p pick • esc cancel"))
	return b.String()
}

func wrapIndex(idx, n int) int {
	if n <= 0 {
		return 0
	}
	idx %= n
	if idx < 0 {
		idx += n
	}
	return idx
}

func clampCursor(cur, n int) int {
	if n <= 0 || cur < 0 {
		return 0
	}
	if cur >= n {
		return n - 1
	}
	return cur
}
