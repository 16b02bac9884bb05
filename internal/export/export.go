// Package export writes a YAML snapshot of the whole task database.
package export

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"taskman/internal/storage"
)

const SchemaVersion = 1

var (
	ErrSchemaVersion = errors.New("unsupported snapshot schema version")
	ErrTaskCount     = errors.New("snapshot task count does not match its tasks")
)

// Snapshot is the document written by Write.
type Snapshot struct {
	Meta  Meta   `yaml:"meta"`
	Tasks []Task `yaml:"tasks"`
}

// Meta identifies one export run.
type Meta struct {
	ID            string `yaml:"id"`
	SchemaVersion int    `yaml:"schema_version"`
	GeneratedAt   string `yaml:"generated_at"`
	TaskCount     int    `yaml:"task_count"`
}

// Task is a task with everything attached to it and its subtasks nested.
type Task struct {
	ID          int        `yaml:"id"`
	Customer    string     `yaml:"customer,omitempty"`
	Name        string     `yaml:"name"`
	Description string     `yaml:"description,omitempty"`
	StartedAt   string     `yaml:"started_at,omitempty"`
	FinishedAt  string     `yaml:"finished_at,omitempty"`
	Deliveries  []Delivery `yaml:"deliveries,omitempty"`
	Links       []Link     `yaml:"links,omitempty"`
	Tags        []Tag      `yaml:"tags,omitempty"`
	Origins     []Origin   `yaml:"origins,omitempty"`
	Bookings    []Booking  `yaml:"bookings,omitempty"`
	Notes       []string   `yaml:"notes,omitempty"`
	Subtasks    []Task     `yaml:"subtasks,omitempty"`
}

type Delivery struct {
	Version     string `yaml:"version"`
	Server      string `yaml:"server,omitempty"`
	Environment string `yaml:"environment,omitempty"`
	DeliveredAt string `yaml:"delivered_at,omitempty"`
}

type Link struct {
	Type string `yaml:"type,omitempty"`
	URL  string `yaml:"url"`
	Tags []Tag  `yaml:"tags,omitempty"`
}

type Tag struct {
	Type     string `yaml:"type,omitempty"`
	Keywords string `yaml:"keywords"`
}

type Origin struct {
	Name string `yaml:"name"`
	Type string `yaml:"type,omitempty"`
	URL  string `yaml:"url,omitempty"`
}

type Booking struct {
	Origin      string `yaml:"origin"`
	Description string `yaml:"description,omitempty"`
	StartedAt   string `yaml:"started_at"`
	EndedAt     string `yaml:"ended_at"`
	Duration    string `yaml:"duration"`
}

// Source is the part of the store an export reads.
type Source interface {
	TaskTree() ([]storage.TreeRow, error)
	Related(taskIDs ...int) (storage.Related, error)
}

// Build reads every task from src. now stamps the snapshot.
func Build(src Source, now time.Time) (*Snapshot, error) {
	rows, err := src.TaskTree()
	if err != nil {
		return nil, fmt.Errorf("failed to read tasks: %w", err)
	}
	snap := &Snapshot{Meta: Meta{
		ID:            uuid.New().String(),
		SchemaVersion: SchemaVersion,
		GeneratedAt:   now.Format(time.RFC3339),
		TaskCount:     len(rows),
	}}

	// rows come depth first, so the open path is enough to place each task
	var path []*Task
	for _, r := range rows {
		t, err := buildTask(src, r.Task)
		if err != nil {
			return nil, err
		}
		if r.Depth > len(path) {
			r.Depth = len(path)
		}
		path = path[:r.Depth]
		var node *Task
		if r.Depth == 0 {
			snap.Tasks = append(snap.Tasks, t)
			node = &snap.Tasks[len(snap.Tasks)-1]
		} else {
			parent := path[r.Depth-1]
			parent.Subtasks = append(parent.Subtasks, t)
			node = &parent.Subtasks[len(parent.Subtasks)-1]
		}
		path = append(path, node)
	}
	return snap, nil
}

func buildTask(src Source, t storage.Task) (Task, error) {
	out := Task{
		ID:          t.ID,
		Customer:    t.Customer,
		Name:        t.Name,
		Description: t.Description,
		StartedAt:   storage.FormatTime(t.StartedAt),
		FinishedAt:  storage.FormatTime(t.FinishedAt),
	}
	rel, err := src.Related(t.ID)
	if err != nil {
		return out, fmt.Errorf("task %d: %w", t.ID, err)
	}
	for _, d := range rel.Deliveries {
		out.Deliveries = append(out.Deliveries, Delivery{
			Version:     d.Version,
			Server:      d.Server,
			Environment: d.Environment,
			DeliveredAt: storage.FormatTime(d.DeliveredAt),
		})
	}
	for _, l := range rel.Links {
		link := Link{Type: l.Type, URL: l.RawLink}
		for _, tg := range l.Tags {
			link.Tags = append(link.Tags, Tag{Type: tg.Type, Keywords: tg.Keywords})
		}
		out.Links = append(out.Links, link)
	}
	for _, tg := range rel.Tags {
		out.Tags = append(out.Tags, Tag{Type: tg.Type, Keywords: tg.Keywords})
	}
	for _, o := range rel.Origins {
		out.Origins = append(out.Origins, Origin{Name: o.Name, Type: o.Type, URL: o.RawLink})
	}
	for _, b := range rel.Bookings {
		out.Bookings = append(out.Bookings, Booking{
			Origin:      b.OriginName,
			Description: b.Description,
			StartedAt:   storage.FormatTime(b.StartedAt),
			EndedAt:     storage.FormatTime(b.EndedAt),
			Duration:    b.Duration,
		})
	}
	for _, n := range rel.Notes {
		out.Notes = append(out.Notes, n.Content)
	}
	return out, nil
}

// Write encodes snap as YAML.
func Write(w io.Writer, snap *Snapshot) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return enc.Close()
}

// Read decodes a snapshot written by Write.
func Read(r io.Reader) (*Snapshot, error) {
	var snap Snapshot
	if err := yaml.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snap, nil
}

// Count returns the number of tasks in the snapshot, subtasks included.
func (s *Snapshot) Count() int {
	var count func(list []Task) int
	count = func(list []Task) int {
		n := len(list)
		for _, t := range list {
			n += count(t.Subtasks)
		}
		return n
	}
	return count(s.Tasks)
}

// Verify checks that a snapshot read back is one this version wrote and
// that none of its tasks went missing.
func Verify(snap *Snapshot) error {
	if snap.Meta.SchemaVersion != SchemaVersion {
		return fmt.Errorf("%w: %d", ErrSchemaVersion, snap.Meta.SchemaVersion)
	}
	if n := snap.Count(); n != snap.Meta.TaskCount {
		return fmt.Errorf("%w: header says %d, found %d", ErrTaskCount, snap.Meta.TaskCount, n)
	}
	return nil
}
