package storage

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func mustTime(t *testing.T, v string) sql.NullTime {
	t.Helper()
	tm, err := ParseTime(v)
	require.NoError(t, err)
	return tm
}

func addTask(t *testing.T, s *Store, name string, parent int) int {
	t.Helper()
	id, err := s.AddTask(TaskInput{Customer: "ACME", Name: name, Description: name + " work"}, parent)
	require.NoError(t, err)
	return id
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "x.db")
	s, err := Open(path, nil)
	require.NoError(t, err)
	id, err := s.AddTask(TaskInput{Name: "keep"}, 0)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path, nil)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.GetTask(id)
	require.NoError(t, err)
	assert.Equal(t, "keep", got.Name)

	cols, err := s.Columns("booking")
	require.NoError(t, err)
	assert.Contains(t, cols, "origin_id")
}

func TestTaskCRUD(t *testing.T) {
	s := newTestStore(t)
	id, err := s.AddTask(TaskInput{
		Customer:  "ACME",
		Name:      "T-1",
		StartedAt: mustTime(t, "2024-05-01 09:30"),
	}, 0)
	require.NoError(t, err)

	got, err := s.GetTask(id)
	require.NoError(t, err)
	assert.Equal(t, "ACME", got.Customer)
	assert.False(t, got.IsSubtask())
	assert.Equal(t, "2024-05-01 09:30", FormatTime(got.StartedAt))
	assert.False(t, got.FinishedAt.Valid)

	in := got.Input()
	in.Description = "changed"
	in.FinishedAt = mustTime(t, "2024-05-02")
	require.NoError(t, s.UpdateTask(id, in))
	got, err = s.GetTask(id)
	require.NoError(t, err)
	assert.Equal(t, "changed", got.Description)
	assert.Equal(t, "2024-05-02 00:00", FormatTime(got.FinishedAt))

	assert.ErrorIs(t, s.UpdateTask(999, in), ErrNotFound)
	_, err = s.GetTask(999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTaskStoredInOriginalTimeFormat(t *testing.T) {
	s := newTestStore(t)
	id, err := s.AddTask(TaskInput{StartedAt: mustTime(t, "2024-05-01 14:30")}, 0)
	require.NoError(t, err)
	var raw string
	require.NoError(t, s.db.QueryRow(`SELECT started_at FROM task WHERE id = ?`, id).Scan(&raw))
	assert.Equal(t, "2024-05-01T14:30:00", raw)
}

func TestSubtasksAndTree(t *testing.T) {
	s := newTestStore(t)
	root := addTask(t, s, "root", 0)
	child := addTask(t, s, "child", root)
	grand := addTask(t, s, "grand", child)
	other := addTask(t, s, "other", 0)

	_, err := s.AddTask(TaskInput{Name: "lost"}, 4242)
	assert.ErrorIs(t, err, ErrNotFound)

	rows, err := s.TaskTree()
	require.NoError(t, err)
	var ids, depths []int
	for _, r := range rows {
		ids = append(ids, r.ID)
		depths = append(depths, r.Depth)
	}
	assert.Equal(t, []int{root, child, grand, other}, ids)
	assert.Equal(t, []int{0, 1, 2, 0}, depths)

	roots, err := s.RootTasks()
	require.NoError(t, err)
	assert.Len(t, roots, 2)
	kids, err := s.ChildTasks(root)
	require.NoError(t, err)
	require.Len(t, kids, 1)
	assert.Equal(t, child, kids[0].ID)

	anc, err := s.Ancestors(grand)
	require.NoError(t, err)
	require.Len(t, anc, 2)
	assert.Equal(t, child, anc[0].ID)
	assert.Equal(t, root, anc[1].ID)
}

func TestBuildTreeOrdersSiblingsAndKeepsOrphans(t *testing.T) {
	tasks := []Task{
		{ID: 1, Name: "b"},
		{ID: 2, Name: "a"},
		{ID: 3, Name: "z", ParentID: sql.NullInt64{Int64: 1, Valid: true}},
		{ID: 4, Name: "y", ParentID: sql.NullInt64{Int64: 1, Valid: true}},
		{ID: 5, Name: "orphan", ParentID: sql.NullInt64{Int64: 77, Valid: true}},
	}
	rows := BuildTree(tasks, func(a, b Task) bool { return a.Name < b.Name })
	var names []string
	for _, r := range rows {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"a", "b", "y", "z", "orphan"}, names)
}

func TestMoveTaskRejectsCycles(t *testing.T) {
	s := newTestStore(t)
	a := addTask(t, s, "a", 0)
	b := addTask(t, s, "b", a)
	c := addTask(t, s, "c", b)

	assert.ErrorIs(t, s.MoveTask(a, c), ErrCycle)
	assert.ErrorIs(t, s.MoveTask(a, a), ErrCycle)

	require.NoError(t, s.MoveTask(c, 0))
	got, err := s.GetTask(c)
	require.NoError(t, err)
	assert.False(t, got.ParentID.Valid)

	require.NoError(t, s.MoveTask(a, c))
	got, err = s.GetTask(a)
	require.NoError(t, err)
	assert.Equal(t, int64(c), got.ParentID.Int64)
}

func TestDeleteTask(t *testing.T) {
	s := newTestStore(t)
	parent := addTask(t, s, "parent", 0)
	child := addTask(t, s, "child", parent)
	sibling := addTask(t, s, "sibling", 0)

	assert.ErrorIs(t, s.DeleteTask(parent), ErrHasSubtasks)

	deliveryID, err := s.AddDelivery(child, Delivery{Version: "1.0", Environment: "PROD"})
	require.NoError(t, err)
	shared, err := s.AddOrigin(child, Origin{Name: "BCS-1"})
	require.NoError(t, err)
	_, err = s.db.Exec(`INSERT INTO task_origin (task_id, origin_id) VALUES (?, ?)`, sibling, shared)
	require.NoError(t, err)
	_, err = s.AddNote(child, "remember")
	require.NoError(t, err)
	_, err = s.AddBooking(child, BookingInput{
		Origin:    "BCS-1",
		StartedAt: mustTime(t, "2024-05-01 08:00"),
		EndedAt:   mustTime(t, "2024-05-01 09:00"),
	})
	require.NoError(t, err)

	require.NoError(t, s.DeleteTask(child))
	_, err = s.GetTask(child)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetDelivery(deliveryID)
	assert.ErrorIs(t, err, ErrNotFound, "delivery used only by the task is pruned")
	_, err = s.GetOrigin(shared)
	assert.NoError(t, err, "origin still used by another task survives")

	rel, err := s.Related(child)
	require.NoError(t, err)
	assert.True(t, rel.Empty())

	require.NoError(t, s.DeleteTask(parent))
	assert.ErrorIs(t, s.DeleteTask(parent), ErrNotFound)
}

func TestAttachmentsAndRelated(t *testing.T) {
	s := newTestStore(t)
	t1 := addTask(t, s, "one", 0)
	t2 := addTask(t, s, "two", 0)

	d1, err := s.AddDelivery(t1, Delivery{Version: "2.1", Server: "srv-a", Environment: "TEST", DeliveredAt: mustTime(t, "2024-06-01 10:15")})
	require.NoError(t, err)
	_, err = s.AddDelivery(t2, Delivery{Version: "2.1", Server: "srv-a", Environment: "PROD"})
	require.NoError(t, err)
	l1, err := s.AddLink(t1, Link{Type: "jira", RawLink: "https://jira/T-1"})
	require.NoError(t, err)
	tag1, err := s.AddTag(t1, Tag{Type: "area", Keywords: "billing"})
	require.NoError(t, err)
	o1, err := s.AddOrigin(t1, Origin{Name: "BCS-9", Type: "ticket", RawLink: "https://bcs/9"})
	require.NoError(t, err)
	// the same origin attached to the second task must be reported once
	_, err = s.db.Exec(`INSERT INTO task_origin (task_id, origin_id) VALUES (?, ?)`, t2, o1)
	require.NoError(t, err)
	_, err = s.AddNote(t2, "# Title\nbody")
	require.NoError(t, err)

	rel, err := s.Related(t1, t2)
	require.NoError(t, err)
	assert.Len(t, rel.Deliveries, 2)
	assert.Len(t, rel.Links, 1)
	assert.Len(t, rel.Tags, 1)
	assert.Len(t, rel.Origins, 1)
	require.Len(t, rel.Notes, 1)
	assert.Equal(t, "# Title", rel.Notes[0].Title())

	d, err := s.GetDelivery(d1)
	require.NoError(t, err)
	assert.Equal(t, "2024-06-01 10:15", FormatTime(d.DeliveredAt))
	d.Server = "srv-b"
	require.NoError(t, s.UpdateDelivery(d1, d))
	d, err = s.GetDelivery(d1)
	require.NoError(t, err)
	assert.Equal(t, "srv-b", d.Server)

	require.NoError(t, s.UpdateLink(l1, Link{Type: "wiki", RawLink: "https://wiki"}))
	l, err := s.GetLink(l1)
	require.NoError(t, err)
	assert.Equal(t, "wiki", l.Type)

	require.NoError(t, s.TagLink(tag1, l1))
	require.NoError(t, s.TagLink(tag1, l1), "tagging twice is a no-op")
	tags, err := s.LinkTags(l1)
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, "billing", tags[0].Keywords)
	rel, err = s.Related(t1)
	require.NoError(t, err)
	require.Len(t, rel.Links, 1)
	assert.Equal(t, tags, rel.Links[0].Tags)

	require.NoError(t, s.DeleteLink(l1))
	tags, err = s.LinkTags(l1)
	require.NoError(t, err)
	assert.Empty(t, tags)
	assert.ErrorIs(t, s.DeleteLink(l1), ErrNotFound)

	require.NoError(t, s.UpdateTag(tag1, Tag{Type: "area", Keywords: "payments"}))
	tg, err := s.GetTag(tag1)
	require.NoError(t, err)
	assert.Equal(t, "payments", tg.Keywords)
	require.NoError(t, s.DeleteTag(tag1))

	require.NoError(t, s.UpdateOrigin(o1, Origin{Name: "BCS-10"}))
	o, err := s.GetOrigin(o1)
	require.NoError(t, err)
	assert.Equal(t, "BCS-10", o.Name)

	_, err = s.AddLink(999, Link{Type: "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBookings(t *testing.T) {
	s := newTestStore(t)
	task := addTask(t, s, "t", 0)
	_, err := s.AddOrigin(task, Origin{Name: "Internal"})
	require.NoError(t, err)

	start := mustTime(t, "2024-05-01 08:00")
	end := mustTime(t, "2024-05-01 09:45")

	_, err = s.AddBooking(task, BookingInput{StartedAt: start, EndedAt: end})
	assert.ErrorIs(t, err, ErrOriginRequired)
	_, err = s.AddBooking(task, BookingInput{Origin: "Internal", StartedAt: start})
	assert.ErrorIs(t, err, ErrTimesRequired)
	_, err = s.AddBooking(task, BookingInput{Origin: "Internal", StartedAt: end, EndedAt: start})
	assert.ErrorIs(t, err, ErrInvalidRange)
	_, err = s.AddBooking(task, BookingInput{Origin: "Nope", StartedAt: start, EndedAt: end})
	assert.ErrorIs(t, err, ErrNotFound)

	id, err := s.AddBooking(task, BookingInput{Description: "analysis", Origin: "Internal", StartedAt: start, EndedAt: end})
	require.NoError(t, err)
	b, err := s.GetBooking(id)
	require.NoError(t, err)
	assert.Equal(t, "1h45", b.Duration)
	assert.Equal(t, "Internal", b.OriginName)
	assert.Equal(t, task, b.TaskID)

	in := b.Input()
	in.Duration = "2h"
	require.NoError(t, s.UpdateBooking(id, in))
	b, err = s.GetBooking(id)
	require.NoError(t, err)
	assert.Equal(t, "2h", b.Duration)

	oid := int(b.OriginID.Int64)
	assert.ErrorIs(t, s.DeleteOrigin(oid), ErrInUse)
	require.NoError(t, s.DeleteBooking(id))
	require.NoError(t, s.DeleteOrigin(oid))
	assert.ErrorIs(t, s.DeleteBooking(id), ErrNotFound)
}

func TestNotes(t *testing.T) {
	s := newTestStore(t)
	task := addTask(t, s, "t", 0)
	id, err := s.AddNote(task, "\nfirst line\nsecond")
	require.NoError(t, err)
	n, err := s.GetNote(id)
	require.NoError(t, err)
	assert.Equal(t, "first line", n.Title())

	require.NoError(t, s.UpdateNote(id, "new"))
	n, err = s.GetNote(id)
	require.NoError(t, err)
	assert.Equal(t, "new", n.Content)

	_, err = s.AddNote(task, "other")
	require.NoError(t, err)
	removed, err := s.DeleteTaskNotes(task)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.ErrorIs(t, s.DeleteNote(id), ErrNotFound)
}

func TestSuggest(t *testing.T) {
	s := newTestStore(t)
	for _, c := range []string{"ACME", "Acme Labs", "Globex", ""} {
		_, err := s.AddTask(TaskInput{Customer: c}, 0)
		require.NoError(t, err)
	}
	_, err := s.AddTask(TaskInput{Customer: "ACME"}, 0)
	require.NoError(t, err)

	got, err := s.Suggest("task", "customer", "cm")
	require.NoError(t, err)
	assert.Equal(t, []string{"ACME", "Acme Labs"}, got)

	got, err = s.Suggest("task", "customer", "")
	require.NoError(t, err)
	assert.Len(t, got, 3)

	got, err = s.Suggest("task", "customer", "%")
	require.NoError(t, err)
	assert.Empty(t, got, "wildcards are matched literally")

	_, err = s.Suggest("task", "id; DROP TABLE task", "")
	assert.Error(t, err)
}

func TestSettingsAndTheme(t *testing.T) {
	s := newTestStore(t)
	name, err := s.Theme("normal")
	require.NoError(t, err)
	assert.Equal(t, "normal", name)

	require.NoError(t, s.SetTheme("dark"))
	require.NoError(t, s.SetTheme("old_book"))
	name, err = s.Theme("normal")
	require.NoError(t, err)
	assert.Equal(t, "old_book", name)

	_, ok, err := s.Setting("missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSearchAndOwner(t *testing.T) {
	s := newTestStore(t)
	task := addTask(t, s, "searchable", 0)
	dID, err := s.AddDelivery(task, Delivery{Version: "3.4.1", Environment: "PROD"})
	require.NoError(t, err)
	nID, err := s.AddNote(task, "needle in a note")
	require.NoError(t, err)

	res, err := s.Search(SearchQuery{Table: "delivery", Field: "version", Operator: "LIKE", Value: "3.4"})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, []string{"id", "version", "server", "environment", "delivery_date_time"}, res.Columns)
	rowID, err := res.RowID(0)
	require.NoError(t, err)
	assert.Equal(t, dID, rowID)

	owner, err := s.OwnerTask("delivery", dID)
	require.NoError(t, err)
	assert.Equal(t, task, owner)
	owner, err = s.OwnerTask("note", nID)
	require.NoError(t, err)
	assert.Equal(t, task, owner)

	res, err = s.Search(SearchQuery{Table: "task", Field: "id", Operator: "=", Value: "1"})
	require.NoError(t, err)
	assert.Len(t, res.Rows, 1)

	_, err = s.Search(SearchQuery{Table: "sqlite_master", Field: "name", Value: "x"})
	assert.ErrorIs(t, err, ErrInvalidSearch)
	_, err = s.Search(SearchQuery{Table: "task", Field: "name) OR (1=1", Value: "x"})
	assert.ErrorIs(t, err, ErrInvalidSearch)
	_, err = s.Search(SearchQuery{Table: "task", Field: "name", Operator: "; DROP", Value: "x"})
	assert.ErrorIs(t, err, ErrInvalidSearch)
	_, err = s.Search(SearchQuery{Table: "task", Field: "name", Value: " "})
	assert.ErrorIs(t, err, ErrInvalidSearch)

	_, err = s.OwnerTask("delivery", 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestParseTimeForms(t *testing.T) {
	for _, in := range []string{"2024-05-01 14:30", "2024-05-01T14:30", "2024-05-01T14:30:00"} {
		got, err := ParseTime(in)
		require.NoError(t, err, in)
		assert.Equal(t, "2024-05-01 14:30", FormatTime(got), in)
	}
	got, err := ParseTime("  ")
	require.NoError(t, err)
	assert.False(t, got.Valid)
	_, err = ParseTime("01/05/2024")
	assert.Error(t, err)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0h00", FormatDuration(0))
	assert.Equal(t, "2h05", FormatDuration(2*time.Hour+5*time.Minute))
	assert.Equal(t, "25h00", FormatDuration(25*time.Hour))
}
