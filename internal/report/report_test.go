package report

import (
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskman/internal/clipboard"
	"taskman/internal/clipfmt"
	"taskman/internal/storage"
)

func newStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(filepath.Join(t.TempDir(), "report.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func at(t *testing.T, v string) sql.NullTime {
	t.Helper()
	tm, err := storage.ParseTime(v)
	require.NoError(t, err)
	return tm
}

func seed(t *testing.T, s *storage.Store) (parent, child int) {
	t.Helper()
	var err error
	parent, err = s.AddTask(storage.TaskInput{Customer: "ACME", Name: "T-1", Description: "fix login"}, 0)
	require.NoError(t, err)
	child, err = s.AddTask(storage.TaskInput{Name: "T-1a", Description: "part"}, parent)
	require.NoError(t, err)

	for _, d := range []storage.Delivery{
		{Version: "1.2", Server: "srvA", Environment: "PROD", DeliveredAt: at(t, "2024-05-03 10:00")},
		{Version: "1.2", Server: "srvA", Environment: "TEST", DeliveredAt: at(t, "2024-05-01 09:30")},
		{Version: "1.1", Server: "srvB", Environment: "TEST", DeliveredAt: at(t, "2024-04-01 08:05")},
	} {
		_, err := s.AddDelivery(parent, d)
		require.NoError(t, err)
	}
	_, err = s.AddOrigin(parent, storage.Origin{Name: "BCS-7", RawLink: "https://bcs/7"})
	require.NoError(t, err)
	return parent, child
}

func TestBuild(t *testing.T) {
	s := newStore(t)
	parent, child := seed(t, s)

	out, err := Build(s, []int{child, parent})
	require.NoError(t, err)

	want := []string{
		"<p><strong>ACME</strong>: <code>T-1</code></p><ul>",
		"<li>Description: fix login</li>",
		"<li>Deliveries:</li><ul>",
		"<li>V 1.1, srvB:</li><ul>",
		"<li>[x] TEST, 2024.04.01 08h05</li>",
		"<li>V 1.2, srvA:</li><ul>",
		"<li>[x] TEST, 2024.05.01 09h30</li>",
		"<li>[x] PROD, 2024.05.03 10h00</li>",
		`<li><a href="https://bcs/7">BCS: BCS-7</a></li>`,
		"<li>Sub-task: <code>T-1a</code></li><ul>",
		"<li>Description: part</li>",
	}
	pos := -1
	for _, w := range want {
		i := strings.Index(out, w)
		require.GreaterOrEqual(t, i, 0, "missing %q in\n%s", w, out)
		assert.Greater(t, i, pos, "%q out of order", w)
		pos = i
	}
	assert.Equal(t, strings.Count(out, "<ul>"), strings.Count(out, "</ul>"))
	assert.Equal(t, 1, strings.Count(out, "T-1a"), "a selected child is reported once")
}

func TestBuildUnselectedParent(t *testing.T) {
	s := newStore(t)
	_, child := seed(t, s)

	out, err := Build(s, []int{child})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "<li>Sub-task: <code>T-1a</code></li><ul>"))
	assert.NotContains(t, out, "ACME")
}

func TestBuildEscapes(t *testing.T) {
	s := newStore(t)
	id, err := s.AddTask(storage.TaskInput{Customer: "A&B", Name: "<x>", Description: `"q"`}, 0)
	require.NoError(t, err)
	out, err := Build(s, []int{id})
	require.NoError(t, err)
	assert.Contains(t, out, "<strong>A&amp;B</strong>: <code>&lt;x&gt;</code>")
	assert.Contains(t, out, "Description: &#34;q&#34;")
}

func TestBuildRequiresSelection(t *testing.T) {
	_, err := Build(newStore(t), nil)
	assert.ErrorIs(t, err, ErrNoSelection)
}

func TestOrderDeliveries(t *testing.T) {
	got := OrderDeliveries([]storage.Delivery{
		{ID: 1, Version: "2", Environment: "PROD"},
		{ID: 2, Version: "1", Environment: "PROD"},
		{ID: 3, Version: "2", Environment: "INT"},
		{ID: 4, Version: "1", Environment: "TEST"},
	})
	var ids []int
	for _, d := range got {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []int{4, 3, 2, 1}, ids)
}

func TestCopy(t *testing.T) {
	s := newStore(t)
	parent, _ := seed(t, s)
	rec := &clipboard.Recorder{}

	p, err := Copy(rec, s, []int{parent})
	require.NoError(t, err)
	last, ok := rec.Last()
	require.True(t, ok)
	assert.Equal(t, p, last)

	frag, err := clipfmt.Fragment(p.HTML)
	require.NoError(t, err)
	assert.Contains(t, frag, "<strong>ACME</strong>")
	assert.Contains(t, p.RTF, `\pard \b ACME: T-1 \par `)
	assert.Contains(t, p.Text, "**ACME**: `T-1`")
	assert.Contains(t, p.Text, "* [x] PROD, 2024.05.03 10h00")
}
