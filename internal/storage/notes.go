package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

type Note struct {
	ID      int
	TaskID  int
	Content string
}

// Title is the first line of the note.
func (n Note) Title() string {
	first, _, _ := strings.Cut(strings.TrimLeft(n.Content, "\r\n"), "\n")
	return strings.TrimSpace(first)
}

func (s *Store) AddNote(taskID int, content string) (int, error) {
	if _, err := s.GetTask(taskID); err != nil {
		return 0, err
	}
	res, err := s.db.Exec(`INSERT INTO note (task_id, content) VALUES (?, ?);`, taskID, content)
	if err != nil {
		return 0, fmt.Errorf("failed to add note: %w", err)
	}
	id, err := res.LastInsertId()
	return int(id), err
}

func (s *Store) UpdateNote(id int, content string) error {
	res, err := s.db.Exec(`UPDATE note SET content = ? WHERE id = ?;`, content, id)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res, "note", id)
}

func (s *Store) GetNote(id int) (Note, error) {
	var n Note
	err := s.db.QueryRow(`SELECT id, COALESCE(task_id, 0), COALESCE(content, '') FROM note WHERE id = ?;`, id).
		Scan(&n.ID, &n.TaskID, &n.Content)
	if errors.Is(err, sql.ErrNoRows) {
		return Note{}, fmt.Errorf("note %d: %w", id, ErrNotFound)
	}
	return n, err
}

func (s *Store) DeleteNote(id int) error {
	res, err := s.db.Exec(`DELETE FROM note WHERE id = ?;`, id)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res, "note", id)
}

// DeleteTaskNotes drops every note of a task and reports how many went.
func (s *Store) DeleteTaskNotes(taskID int) (int, error) {
	res, err := s.db.Exec(`DELETE FROM note WHERE task_id = ?;`, taskID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
