package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"taskman/internal/editor"
)

type editorDoneMsg struct {
	path     string
	taskID   int
	noteID   int
	original string
	err      error
}

// startNoteEdit hands a temporary copy of the note to the external editor.
// noteID 0 creates a new note on taskID.
func (m Model) startNoteEdit(taskID, noteID int, content string) (tea.Model, tea.Cmd) {
	path, err := editor.TempFile(content)
	if err != nil {
		m.status = err.Error()
		return m, nil
	}
	cmd, err := editor.Command(m.cfg.EditorCommand(), path)
	if err != nil {
		m.status = err.Error()
		return m, nil
	}
	m.status = "Editing note in " + cmd.Path
	done := editorDoneMsg{path: path, taskID: taskID, noteID: noteID, original: content}
	return m, tea.ExecProcess(cmd, func(err error) tea.Msg {
		done.err = err
		return done
	})
}

func (m Model) finishNoteEdit(msg editorDoneMsg) (tea.Model, tea.Cmd) {
	content, err := editor.Collect(msg.path)
	if msg.err != nil {
		m.status = fmt.Sprintf("editor failed: %v", msg.err)
		return m, nil
	}
	if err != nil {
		m.status = err.Error()
		return m, nil
	}
	switch {
	case msg.noteID == 0 && strings.TrimSpace(content) == "":
		m.status = "Empty note discarded"
		return m, nil
	case msg.noteID == 0:
		id, err := m.store.AddNote(msg.taskID, content)
		if err != nil {
			m.status = fmt.Sprintf("save failed: %v", err)
			return m, nil
		}
		m.log.Info("note added", zap.Int("note", id), zap.Int("task", msg.taskID))
		m.status = fmt.Sprintf("Note #%d added", id)
	case content == msg.original:
		m.status = "Note unchanged"
		return m, nil
	default:
		if err := m.store.UpdateNote(msg.noteID, content); err != nil {
			m.status = fmt.Sprintf("save failed: %v", err)
			return m, nil
		}
		m.status = fmt.Sprintf("Note #%d saved", msg.noteID)
	}
	m.reload()
	return m, nil
}

func (m Model) viewNote(id int) (tea.Model, tea.Cmd) {
	n, err := m.store.GetNote(id)
	if err != nil {
		m.status = err.Error()
		return m, nil
	}
	out, err := RenderMarkdown(n.Content, m.note.Width, m.theme.Dark)
	if err != nil {
		out = n.Content
	}
	m.note.SetContent(out)
	m.note.GotoTop()
	m.noteID = id
	m.mode = modeNote
	m.status = fmt.Sprintf("Note #%d: %s (esc to close, %s to edit)", n.ID, n.Title(), keyLabel(m.cfg.Keys.Edit))
	return m, nil
}

func (m Model) updateNoteView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q", m.cfg.Keys.Cancel:
		m.mode = modeBrowse
		m.status = ""
		return m, nil
	case m.cfg.Keys.Edit:
		n, err := m.store.GetNote(m.noteID)
		if err != nil {
			m.status = err.Error()
			return m, nil
		}
		m.mode = modeBrowse
		return m.startNoteEdit(n.TaskID, n.ID, n.Content)
	}
	var cmd tea.Cmd
	m.note, cmd = m.note.Update(msg)
	return m, cmd
}
