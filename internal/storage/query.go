package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// suggestColumns lists the free-text columns forms autocomplete from.
var suggestColumns = map[string][]string{
	"task":     {"customer", "name", "description"},
	"delivery": {"version", "server", "environment"},
	"link":     {"type"},
	"tag":      {"type", "keywords"},
	"origin":   {"name", "type"},
	"booking":  {"description"},
}

const suggestLimit = 50

// Suggest returns the distinct values of table.column containing fragment.
func (s *Store) Suggest(table, column, fragment string) ([]string, error) {
	cols, ok := suggestColumns[table]
	if !ok || !slices.Contains(cols, column) {
		return nil, fmt.Errorf("no suggestions for %s.%s", table, column)
	}
	query := fmt.Sprintf(`SELECT DISTINCT %[2]s FROM %[1]s WHERE %[2]s LIKE ? ESCAPE '\' AND %[2]s <> '' ORDER BY %[2]s LIMIT %[3]d;`,
		table, column, suggestLimit)
	rows, err := s.db.Query(query, likePattern(fragment))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *Store) Setting(key string) (string, bool, error) {
	var v sql.NullString
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?;`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v.String, true, nil
}

func (s *Store) SetSetting(key, value string) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?);`, key, value)
	return err
}

const themeKey = "theme"

// Theme returns the saved theme name, or fallback when none was saved.
func (s *Store) Theme(fallback string) (string, error) {
	v, ok, err := s.Setting(themeKey)
	if err != nil || !ok || v == "" {
		return fallback, err
	}
	return v, nil
}

func (s *Store) SetTheme(name string) error {
	return s.SetSetting(themeKey, name)
}

// SearchTables are the tables a search may target.
var SearchTables = []string{"task", "delivery", "link", "tag", "origin", "booking", "note"}

// SearchOperators are the comparison operators a search may use.
var SearchOperators = []string{"LIKE", "=", "!=", "<", ">", "<=", ">="}

type SearchQuery struct {
	Table    string
	Field    string
	Operator string
	Value    string
}

type SearchResult struct {
	Table   string
	Columns []string
	Rows    [][]string
}

// RowID is the id column of a result row.
func (r SearchResult) RowID(i int) (int, error) {
	if i < 0 || i >= len(r.Rows) {
		return 0, fmt.Errorf("row %d: %w", i, ErrNotFound)
	}
	idx := slices.Index(r.Columns, "id")
	if idx < 0 {
		return 0, fmt.Errorf("%w: result has no id column", ErrInvalidSearch)
	}
	return strconv.Atoi(r.Rows[i][idx])
}

// Columns lists the columns of a searchable table.
func (s *Store) Columns(table string) ([]string, error) {
	if !slices.Contains(SearchTables, table) {
		return nil, fmt.Errorf("%w: unknown table %q", ErrInvalidSearch, table)
	}
	return s.tableColumns(table)
}

func (s *Store) Search(q SearchQuery) (SearchResult, error) {
	res := SearchResult{Table: q.Table}
	cols, err := s.Columns(q.Table)
	if err != nil {
		return res, err
	}
	if !slices.Contains(cols, q.Field) {
		return res, fmt.Errorf("%w: %s has no field %q", ErrInvalidSearch, q.Table, q.Field)
	}
	op := strings.ToUpper(strings.TrimSpace(q.Operator))
	if op == "" {
		op = "LIKE"
	}
	if !slices.Contains(SearchOperators, op) {
		return res, fmt.Errorf("%w: operator %q", ErrInvalidSearch, q.Operator)
	}
	if strings.TrimSpace(q.Value) == "" {
		return res, fmt.Errorf("%w: value is empty", ErrInvalidSearch)
	}

	value := q.Value
	cond := fmt.Sprintf(`"%s" %s ?`, q.Field, op)
	if op == "LIKE" {
		value = likePattern(q.Value)
		cond += ` ESCAPE '\'`
	}
	rows, err := s.db.Query(fmt.Sprintf(`SELECT * FROM %s WHERE %s ORDER BY id;`, q.Table, cond), value)
	if err != nil {
		return res, err
	}
	defer rows.Close()

	res.Columns, err = rows.Columns()
	if err != nil {
		return res, err
	}
	for rows.Next() {
		raw := make([]any, len(res.Columns))
		ptrs := make([]any, len(raw))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return res, err
		}
		row := make([]string, len(raw))
		for i, v := range raw {
			row[i] = cellString(v)
		}
		res.Rows = append(res.Rows, row)
	}
	return res, rows.Err()
}

func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

var ownerQueries = map[string]string{
	"task":     `SELECT id FROM task WHERE id = ?;`,
	"delivery": `SELECT task_id FROM task_delivery WHERE delivery_id = ? ORDER BY id LIMIT 1;`,
	"link":     `SELECT task_id FROM task_link WHERE link_id = ? ORDER BY id LIMIT 1;`,
	"tag":      `SELECT task_id FROM tag_task WHERE tag_id = ? ORDER BY id LIMIT 1;`,
	"origin":   `SELECT task_id FROM task_origin WHERE origin_id = ? ORDER BY id LIMIT 1;`,
	"booking":  `SELECT task_id FROM booking WHERE id = ?;`,
	"note":     `SELECT task_id FROM note WHERE id = ?;`,
}

// OwnerTask resolves a row of any searchable table to the task it belongs to.
func (s *Store) OwnerTask(table string, id int) (int, error) {
	q, ok := ownerQueries[table]
	if !ok {
		return 0, fmt.Errorf("%w: unknown table %q", ErrInvalidSearch, table)
	}
	var taskID sql.NullInt64
	err := s.db.QueryRow(q, id).Scan(&taskID)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !taskID.Valid) {
		return 0, fmt.Errorf("%s %d has no task: %w", table, id, ErrNotFound)
	}
	if err != nil {
		return 0, err
	}
	return int(taskID.Int64), nil
}
