package export

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskman/internal/storage"
)

func TestBuildNestsSubtasks(t *testing.T) {
	s, err := storage.Open(filepath.Join(t.TempDir(), "export.db"), nil)
	require.NoError(t, err)
	defer s.Close()

	root, err := s.AddTask(storage.TaskInput{Customer: "ACME", Name: "T-1"}, 0)
	require.NoError(t, err)
	child, err := s.AddTask(storage.TaskInput{Name: "T-1a"}, root)
	require.NoError(t, err)
	_, err = s.AddTask(storage.TaskInput{Name: "T-1a-i"}, child)
	require.NoError(t, err)
	_, err = s.AddTask(storage.TaskInput{Name: "T-2"}, 0)
	require.NoError(t, err)

	link, err := s.AddLink(child, storage.Link{Type: "jira", RawLink: "https://jira/1"})
	require.NoError(t, err)
	tag, err := s.AddTag(child, storage.Tag{Type: "area", Keywords: "billing"})
	require.NoError(t, err)
	require.NoError(t, s.TagLink(tag, link))
	_, err = s.AddNote(root, "hello")
	require.NoError(t, err)

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	snap, err := Build(s, now)
	require.NoError(t, err)

	_, err = uuid.Parse(snap.Meta.ID)
	assert.NoError(t, err)
	assert.Equal(t, "2024-05-01T12:00:00Z", snap.Meta.GeneratedAt)
	assert.Equal(t, 4, snap.Meta.TaskCount)

	require.Len(t, snap.Tasks, 2)
	assert.Equal(t, []string{"hello"}, snap.Tasks[0].Notes)
	require.Len(t, snap.Tasks[0].Subtasks, 1)
	sub := snap.Tasks[0].Subtasks[0]
	assert.Equal(t, "T-1a", sub.Name)
	assert.Equal(t, []Link{{Type: "jira", URL: "https://jira/1", Tags: []Tag{{Type: "area", Keywords: "billing"}}}}, sub.Links)
	assert.Equal(t, []Tag{{Type: "area", Keywords: "billing"}}, sub.Tags)
	require.Len(t, sub.Subtasks, 1)
	assert.Equal(t, "T-1a-i", sub.Subtasks[0].Name)
	assert.Equal(t, "T-2", snap.Tasks[1].Name)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, snap))
	assert.Contains(t, buf.String(), "schema_version: 1")

	back, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, snap, back)
	assert.Equal(t, 4, back.Count())
	assert.NoError(t, Verify(back))
}

func TestVerifyRejectsDamagedSnapshots(t *testing.T) {
	snap, err := Read(strings.NewReader(`meta:
  id: x
  schema_version: 1
  task_count: 3
tasks:
  - id: 1
    name: a
    subtasks:
      - id: 2
        name: b
`))
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Count())
	assert.ErrorIs(t, Verify(snap), ErrTaskCount)

	snap.Meta.TaskCount = 2
	snap.Meta.SchemaVersion = 7
	assert.ErrorIs(t, Verify(snap), ErrSchemaVersion)

	_, err = Read(strings.NewReader("meta: ["))
	assert.Error(t, err)
}
