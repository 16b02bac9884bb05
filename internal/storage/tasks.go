package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

type Task struct {
	ID          int
	ParentID    sql.NullInt64
	Customer    string
	Name        string
	Description string
	StartedAt   sql.NullTime
	FinishedAt  sql.NullTime
}

// TaskInput carries the editable fields of a task form.
type TaskInput struct {
	Customer    string
	Name        string
	Description string
	StartedAt   sql.NullTime
	FinishedAt  sql.NullTime
}

func (t Task) Input() TaskInput {
	return TaskInput{
		Customer:    t.Customer,
		Name:        t.Name,
		Description: t.Description,
		StartedAt:   t.StartedAt,
		FinishedAt:  t.FinishedAt,
	}
}

func (t Task) IsSubtask() bool {
	return t.ParentID.Valid
}

// TreeRow is a task placed in the hierarchy. Depth 0 is a root.
type TreeRow struct {
	Task
	Depth int
}

const taskColumns = `id, task_id, COALESCE(customer, ''), COALESCE(name, ''), COALESCE(description, ''), started_at, finished_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(sc rowScanner) (Task, error) {
	var t Task
	var started, finished sql.NullString
	if err := sc.Scan(&t.ID, &t.ParentID, &t.Customer, &t.Name, &t.Description, &started, &finished); err != nil {
		return Task{}, err
	}
	t.StartedAt = scanTime(started)
	t.FinishedAt = scanTime(finished)
	return t, nil
}

func (s *Store) queryTasks(query string, args ...any) ([]Task, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}

// AddTask inserts a task. parentID 0 creates a root task.
func (s *Store) AddTask(in TaskInput, parentID int) (int, error) {
	parent := sql.NullInt64{}
	if parentID != 0 {
		if _, err := s.GetTask(parentID); err != nil {
			return 0, fmt.Errorf("parent: %w", err)
		}
		parent = sql.NullInt64{Int64: int64(parentID), Valid: true}
	}
	res, err := s.db.Exec(`INSERT INTO task (customer, name, description, started_at, finished_at, task_id) VALUES (?, ?, ?, ?, ?, ?);`,
		in.Customer, in.Name, in.Description, timeValue(in.StartedAt), timeValue(in.FinishedAt), parent)
	if err != nil {
		return 0, fmt.Errorf("failed to create task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	s.log.Info("task created", zap.Int64("id", id), zap.Int("parent", parentID))
	return int(id), nil
}

func (s *Store) UpdateTask(id int, in TaskInput) error {
	res, err := s.db.Exec(`UPDATE task SET customer = ?, name = ?, description = ?, started_at = ?, finished_at = ? WHERE id = ?;`,
		in.Customer, in.Name, in.Description, timeValue(in.StartedAt), timeValue(in.FinishedAt), id)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	return affectedOrNotFound(res, "task", id)
}

func (s *Store) GetTask(id int) (Task, error) {
	t, err := scanTask(s.db.QueryRow(`SELECT `+taskColumns+` FROM task WHERE id = ?;`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	return t, err
}

func (s *Store) Tasks() ([]Task, error) {
	return s.queryTasks(`SELECT ` + taskColumns + ` FROM task ORDER BY id;`)
}

func (s *Store) RootTasks() ([]Task, error) {
	return s.queryTasks(`SELECT ` + taskColumns + ` FROM task WHERE task_id IS NULL ORDER BY id;`)
}

func (s *Store) ChildTasks(parentID int) ([]Task, error) {
	return s.queryTasks(`SELECT `+taskColumns+` FROM task WHERE task_id = ? ORDER BY id;`, parentID)
}

// TaskTree returns every task in display order: each root followed by its
// descendants, depth first, siblings by id.
func (s *Store) TaskTree() ([]TreeRow, error) {
	tasks, err := s.Tasks()
	if err != nil {
		return nil, err
	}
	return BuildTree(tasks, nil), nil
}

// BuildTree arranges tasks depth first. less orders siblings; nil keeps id
// order. A task whose parent is missing is shown as a root.
func BuildTree(tasks []Task, less func(a, b Task) bool) []TreeRow {
	known := make(map[int]bool, len(tasks))
	for _, t := range tasks {
		known[t.ID] = true
	}
	children := map[int][]Task{}
	var roots []Task
	for _, t := range tasks {
		if t.ParentID.Valid && known[int(t.ParentID.Int64)] && int(t.ParentID.Int64) != t.ID {
			p := int(t.ParentID.Int64)
			children[p] = append(children[p], t)
			continue
		}
		roots = append(roots, t)
	}
	order := func(list []Task) {
		sort.SliceStable(list, func(i, j int) bool {
			if less != nil {
				return less(list[i], list[j])
			}
			return list[i].ID < list[j].ID
		})
	}

	out := make([]TreeRow, 0, len(tasks))
	visited := make(map[int]bool, len(tasks))
	var walk func(t Task, depth int)
	walk = func(t Task, depth int) {
		if visited[t.ID] {
			return
		}
		visited[t.ID] = true
		out = append(out, TreeRow{Task: t, Depth: depth})
		kids := children[t.ID]
		order(kids)
		for _, c := range kids {
			walk(c, depth+1)
		}
	}
	order(roots)
	for _, r := range roots {
		walk(r, 0)
	}
	return out
}

// MoveTask re-parents a task. parentID 0 makes it a root.
func (s *Store) MoveTask(id, parentID int) error {
	if _, err := s.GetTask(id); err != nil {
		return err
	}
	parent := sql.NullInt64{}
	if parentID != 0 {
		seen := map[int]bool{}
		for cur := parentID; cur != 0 && !seen[cur]; {
			if cur == id {
				return ErrCycle
			}
			seen[cur] = true
			t, err := s.GetTask(cur)
			if errors.Is(err, ErrNotFound) && cur != parentID {
				break
			}
			if err != nil {
				return fmt.Errorf("parent: %w", err)
			}
			cur = 0
			if t.ParentID.Valid {
				cur = int(t.ParentID.Int64)
			}
		}
		parent = sql.NullInt64{Int64: int64(parentID), Valid: true}
	}
	_, err := s.db.Exec(`UPDATE task SET task_id = ? WHERE id = ?;`, parent, id)
	return err
}

// DeleteTask removes a task together with its notes, bookings and
// attachments. Attached entities no other task uses are removed too.
func (s *Store) DeleteTask(id int) error {
	if _, err := s.GetTask(id); err != nil {
		return err
	}
	var children int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM task WHERE task_id = ?;`, id).Scan(&children); err != nil {
		return err
	}
	if children > 0 {
		return fmt.Errorf("task %d: %w", id, ErrHasSubtasks)
	}

	err := s.withTx(func(tx *sql.Tx) error {
		// bookings go first so the origins they used can be pruned
		if _, err := tx.Exec(`DELETE FROM booking WHERE task_id = ?;`, id); err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM note WHERE task_id = ?;`, id); err != nil {
			return err
		}
		for _, a := range attachments {
			ids, err := attachedIDs(tx, a, id)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(fmt.Sprintf(`DELETE FROM %s WHERE task_id = ?;`, a.join), id); err != nil {
				return err
			}
			if err := pruneOrphans(tx, a, ids); err != nil {
				return err
			}
		}
		_, err := tx.Exec(`DELETE FROM task WHERE id = ?;`, id)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	s.log.Info("task deleted", zap.Int("id", id))
	return nil
}

// Ancestors returns the chain of parents of a task, nearest first.
func (s *Store) Ancestors(id int) ([]Task, error) {
	t, err := s.GetTask(id)
	if err != nil {
		return nil, err
	}
	var out []Task
	seen := map[int]bool{id: true}
	for t.ParentID.Valid {
		pid := int(t.ParentID.Int64)
		if seen[pid] {
			break
		}
		seen[pid] = true
		t, err = s.GetTask(pid)
		if errors.Is(err, ErrNotFound) {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
