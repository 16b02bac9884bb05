package report

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/net/html"

	"taskman/internal/clipboard"
	"taskman/internal/clipfmt"
	"taskman/internal/storage"
)

var ErrNoSelection = errors.New("select at least one task")

const prodEnvironment = "PROD"

// Source is the part of the store a report reads from.
type Source interface {
	GetTask(id int) (storage.Task, error)
	Related(taskIDs ...int) (storage.Related, error)
}

type builder struct {
	src      Source
	tasks    map[int]storage.Task
	order    []int
	children map[int][]int
	visited  map[int]bool
	lines    []string
}

// Build renders the selected tasks as an HTML fragment. A selected task is
// nested under its parent when the parent is selected as well.
func Build(src Source, ids []int) (string, error) {
	if len(ids) == 0 {
		return "", ErrNoSelection
	}
	b := &builder{
		src:      src,
		tasks:    map[int]storage.Task{},
		children: map[int][]int{},
		visited:  map[int]bool{},
	}
	for _, id := range ids {
		if _, ok := b.tasks[id]; ok {
			continue
		}
		t, err := src.GetTask(id)
		if err != nil {
			return "", err
		}
		b.tasks[id] = t
		b.order = append(b.order, id)
	}
	var roots []int
	for _, id := range b.order {
		t := b.tasks[id]
		if t.ParentID.Valid {
			if _, ok := b.tasks[int(t.ParentID.Int64)]; ok && int(t.ParentID.Int64) != id {
				b.children[int(t.ParentID.Int64)] = append(b.children[int(t.ParentID.Int64)], id)
				continue
			}
		}
		roots = append(roots, id)
	}
	for _, kids := range b.children {
		sort.Ints(kids)
	}
	for _, id := range roots {
		if err := b.task(id, 0); err != nil {
			return "", err
		}
	}
	return strings.Join(b.lines, "\n"), nil
}

func (b *builder) add(level int, s string) {
	b.lines = append(b.lines, strings.Repeat("    ", level)+s)
}

func (b *builder) task(id, level int) error {
	if b.visited[id] {
		return nil
	}
	b.visited[id] = true
	t := b.tasks[id]

	if t.Customer != "" {
		b.add(level, fmt.Sprintf("<p><strong>%s</strong>: <code>%s</code></p><ul>", esc(t.Customer), esc(t.Name)))
	} else {
		b.add(level, fmt.Sprintf("<li>Sub-task: <code>%s</code></li><ul>", esc(t.Name)))
	}
	b.add(level+1, fmt.Sprintf("<li>Description: %s</li>", esc(t.Description)))

	rel, err := b.src.Related(id)
	if err != nil {
		return fmt.Errorf("task %d: %w", id, err)
	}
	if len(rel.Deliveries) > 0 {
		b.deliveries(level+1, rel.Deliveries)
	}
	for _, o := range rel.Origins {
		b.add(level+1, fmt.Sprintf(`<li><a href="%s">BCS: %s</a></li>`, esc(o.RawLink), esc(o.Name)))
	}
	for _, child := range b.children[id] {
		if err := b.task(child, level+1); err != nil {
			return err
		}
	}
	b.add(level, "</ul>")
	return nil
}

func (b *builder) deliveries(level int, list []storage.Delivery) {
	b.add(level, "<li>Deliveries:</li><ul>")
	group := ""
	for _, d := range OrderDeliveries(list) {
		name := fmt.Sprintf("V %s, %s", d.Version, d.Server)
		if name != group {
			if group != "" {
				b.add(level+1, "</ul>")
			}
			b.add(level+1, fmt.Sprintf("<li>%s:</li><ul>", esc(name)))
			group = name
		}
		b.add(level+2, fmt.Sprintf("<li>[x] %s, %s</li>", esc(d.Environment), DeliveryDate(d)))
	}
	b.add(level+1, "</ul>")
	b.add(level, "</ul>")
}

// OrderDeliveries sorts by version then environment and moves production
// deliveries to the end.
func OrderDeliveries(list []storage.Delivery) []storage.Delivery {
	out := make([]storage.Delivery, len(list))
	copy(out, list)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Version != out[j].Version {
			return out[i].Version < out[j].Version
		}
		return out[i].Environment < out[j].Environment
	})
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Environment != prodEnvironment && out[j].Environment == prodEnvironment
	})
	return out
}

func DeliveryDate(d storage.Delivery) string {
	if !d.DeliveredAt.Valid {
		return ""
	}
	return d.DeliveredAt.Time.Format("2006.01.02 15h04")
}

func esc(s string) string {
	return html.EscapeString(s)
}

// Copy builds the report for ids and puts it on the clipboard.
func Copy(w clipboard.Writer, src Source, ids []int) (clipfmt.Payload, error) {
	fragment, err := Build(src, ids)
	if err != nil {
		return clipfmt.Payload{}, err
	}
	p, err := clipfmt.FromHTML(fragment)
	if err != nil {
		return clipfmt.Payload{}, err
	}
	if err := w.Write(p); err != nil {
		return p, fmt.Errorf("copy report: %w", err)
	}
	return p, nil
}
