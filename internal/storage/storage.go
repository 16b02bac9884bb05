package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrHasSubtasks    = errors.New("task has subtasks")
	ErrCycle          = errors.New("task cannot be its own ancestor")
	ErrInUse          = errors.New("still referenced")
	ErrOriginRequired = errors.New("an origin is required")
	ErrTimesRequired  = errors.New("start and end times are required")
	ErrInvalidRange   = errors.New("end is before start")
	ErrInvalidSearch  = errors.New("invalid search")
)

type Store struct {
	db  *sql.DB
	log *zap.Logger
}

func Open(dbPath string, logger *zap.Logger) (*Store, error) {
	if dbPath == "" {
		return nil, errors.New("db path is empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if !strings.HasPrefix(dbPath, "file:") {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, err
		}
	}
	dsn := sqliteDSN(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, log: logger}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	logger.Debug("database opened", zap.String("path", dbPath))
	return s, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS task (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	customer TEXT,
	name TEXT,
	description TEXT,
	started_at TEXT,
	finished_at TEXT,
	task_id INTEGER,
	FOREIGN KEY(task_id) REFERENCES task(id)
);
CREATE TABLE IF NOT EXISTS delivery (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	version TEXT,
	server TEXT,
	environment TEXT,
	delivery_date_time TEXT
);
CREATE TABLE IF NOT EXISTS task_delivery (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	delivery_id INTEGER,
	task_id INTEGER,
	FOREIGN KEY(delivery_id) REFERENCES delivery(id),
	FOREIGN KEY(task_id) REFERENCES task(id)
);
CREATE TABLE IF NOT EXISTS link (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	type TEXT,
	raw_link TEXT
);
CREATE TABLE IF NOT EXISTS task_link (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id INTEGER,
	link_id INTEGER,
	FOREIGN KEY(task_id) REFERENCES task(id),
	FOREIGN KEY(link_id) REFERENCES link(id)
);
CREATE TABLE IF NOT EXISTS tag (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	type TEXT,
	keywords TEXT
);
CREATE TABLE IF NOT EXISTS tag_task (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id INTEGER,
	tag_id INTEGER,
	FOREIGN KEY(task_id) REFERENCES task(id),
	FOREIGN KEY(tag_id) REFERENCES tag(id)
);
CREATE TABLE IF NOT EXISTS tag_link (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	link_id INTEGER,
	tag_id INTEGER,
	FOREIGN KEY(link_id) REFERENCES link(id),
	FOREIGN KEY(tag_id) REFERENCES tag(id)
);
CREATE TABLE IF NOT EXISTS origin (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT,
	type TEXT,
	raw_link TEXT
);
CREATE TABLE IF NOT EXISTS task_origin (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id INTEGER,
	origin_id INTEGER,
	FOREIGN KEY(task_id) REFERENCES task(id),
	FOREIGN KEY(origin_id) REFERENCES origin(id)
);
CREATE TABLE IF NOT EXISTS booking (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	description TEXT,
	started_at TEXT,
	ended_at TEXT,
	duration TEXT,
	task_id INTEGER,
	FOREIGN KEY(task_id) REFERENCES task(id)
);
CREATE TABLE IF NOT EXISTS note (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id INTEGER,
	content TEXT,
	FOREIGN KEY(task_id) REFERENCES task(id)
);
CREATE TABLE IF NOT EXISTS settings (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	key TEXT UNIQUE,
	value TEXT
);`

const indexes = `
CREATE INDEX IF NOT EXISTS idx_task_parent ON task(task_id);
CREATE INDEX IF NOT EXISTS idx_task_delivery_task ON task_delivery(task_id);
CREATE INDEX IF NOT EXISTS idx_task_link_task ON task_link(task_id);
CREATE INDEX IF NOT EXISTS idx_tag_task_task ON tag_task(task_id);
CREATE INDEX IF NOT EXISTS idx_task_origin_task ON task_origin(task_id);
CREATE INDEX IF NOT EXISTS idx_booking_task ON booking(task_id);
CREATE INDEX IF NOT EXISTS idx_note_task ON note(task_id);`

func (s *Store) ensureSchema() error {
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	// booking.origin_id arrived after the first databases were created
	if err := s.ensureColumns("booking", map[string]string{
		"origin_id": "ALTER TABLE booking ADD COLUMN origin_id INTEGER REFERENCES origin(id);",
	}); err != nil {
		return err
	}
	_, err := s.db.Exec(indexes)
	return err
}

func (s *Store) ensureColumns(table string, required map[string]string) error {
	existing, err := s.columnSet(table)
	if err != nil {
		return err
	}
	for col, alter := range required {
		if _, ok := existing[col]; ok {
			continue
		}
		if _, err := s.db.Exec(alter); err != nil {
			return err
		}
		s.log.Info("added column", zap.String("table", table), zap.String("column", col))
	}
	return nil
}

func (s *Store) columnSet(table string) (map[string]struct{}, error) {
	cols, err := s.tableColumns(table)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		set[c] = struct{}{}
	}
	return set, nil
}

// tableColumns must only be called with a trusted table name.
func (s *Store) tableColumns(table string) ([]string, error) {
	rows, err := s.db.Query(fmt.Sprintf(`PRAGMA table_info(%s);`, table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var cols []string
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, err
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}

func (s *Store) withTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func sqliteDSN(path string) string {
	if strings.HasPrefix(path, "file:") {
		return path
	}
	abs, err := filepath.Abs(path)
	if err == nil {
		path = abs
	}
	u := url.URL{
		Scheme: "file",
		Path:   path,
	}
	q := u.Query()
	q.Set("mode", "rwc")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "foreign_keys(1)")
	u.RawQuery = q.Encode()
	return u.String()
}

func likePattern(fragment string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(fragment) + "%"
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func intArgs(ids []int) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

func affectedOrNotFound(res sql.Result, what string, id int) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", what, id, ErrNotFound)
	}
	return nil
}
