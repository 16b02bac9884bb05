package ui

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"taskman/internal/storage"
)

var errNameRequired = errors.New("name cannot be empty")

func (m Model) suggester(table, column string) func(string) []string {
	store := m.store
	return func(fragment string) []string {
		out, err := store.Suggest(table, column, fragment)
		if err != nil {
			return nil
		}
		return out
	}
}

func (m Model) originSuggester() func(string) []string {
	store := m.store
	return func(fragment string) []string {
		origins, err := store.Origins()
		if err != nil {
			return nil
		}
		var out []string
		seen := map[string]bool{}
		for _, o := range origins {
			if seen[o.Name] || !strings.Contains(strings.ToLower(o.Name), strings.ToLower(fragment)) {
				continue
			}
			seen[o.Name] = true
			out = append(out, o.Name)
		}
		return out
	}
}

func fixedSuggester(options []string) func(string) []string {
	return func(fragment string) []string {
		var out []string
		for _, o := range options {
			if strings.Contains(strings.ToLower(o), strings.ToLower(fragment)) {
				out = append(out, o)
			}
		}
		return out
	}
}

func parseTimeField(label, v string) (sql.NullTime, error) {
	t, err := storage.ParseTime(v)
	if err != nil {
		return t, fmt.Errorf("%s: %w", label, err)
	}
	return t, nil
}

func (m Model) taskForm(existing *storage.Task, parentID int) *form {
	var t storage.Task
	title := "New task"
	if parentID != 0 {
		title = fmt.Sprintf("New subtask of #%d", parentID)
	}
	if existing != nil {
		t = *existing
		title = fmt.Sprintf("Edit task #%d", t.ID)
	}
	fields := []formField{
		newField("Customer", t.Customer, m.suggester("task", "customer")),
		newField("Name", t.Name, m.suggester("task", "name")),
		newField("Description", t.Description, m.suggester("task", "description")),
		newField("Started", storage.FormatTime(t.StartedAt), nil),
		newField("Finished", storage.FormatTime(t.FinishedAt), nil),
	}
	return newForm(title, fields, func(m *Model, v []string) (string, error) {
		if v[1] == "" {
			return "", errNameRequired
		}
		in := storage.TaskInput{Customer: v[0], Name: v[1], Description: v[2]}
		var err error
		if in.StartedAt, err = parseTimeField("started", v[3]); err != nil {
			return "", err
		}
		if in.FinishedAt, err = parseTimeField("finished", v[4]); err != nil {
			return "", err
		}
		if existing != nil {
			if err := m.store.UpdateTask(existing.ID, in); err != nil {
				return "", fmt.Errorf("save failed: %w", err)
			}
			return "Task saved", nil
		}
		id, err := m.store.AddTask(in, parentID)
		if err != nil {
			return "", fmt.Errorf("save failed: %w", err)
		}
		m.reload()
		m.moveTo(id)
		return fmt.Sprintf("Added task #%d", id), nil
	})
}

func (m Model) deliveryForm(taskID int, existing *storage.Delivery) *form {
	var d storage.Delivery
	title := fmt.Sprintf("New delivery for task #%d", taskID)
	if existing != nil {
		d = *existing
		title = fmt.Sprintf("Edit delivery #%d", d.ID)
	}
	fields := []formField{
		newField("Version", d.Version, m.suggester("delivery", "version")),
		newField("Server", d.Server, m.suggester("delivery", "server")),
		newField("Environment", d.Environment, m.suggester("delivery", "environment")),
		newField("Delivered", storage.FormatTime(d.DeliveredAt), nil),
	}
	return newForm(title, fields, func(m *Model, v []string) (string, error) {
		at, err := parseTimeField("delivered", v[3])
		if err != nil {
			return "", err
		}
		in := storage.Delivery{Version: v[0], Server: v[1], Environment: v[2], DeliveredAt: at}
		if existing != nil {
			return "Delivery saved", m.store.UpdateDelivery(existing.ID, in)
		}
		_, err = m.store.AddDelivery(taskID, in)
		return "Delivery added", err
	})
}

func (m Model) linkForm(taskID int, existing *storage.Link) *form {
	var l storage.Link
	title := fmt.Sprintf("New link for task #%d", taskID)
	if existing != nil {
		l = *existing
		title = fmt.Sprintf("Edit link #%d", l.ID)
	}
	fields := []formField{
		newField("Type", l.Type, m.suggester("link", "type")),
		newField("URL", l.RawLink, nil),
	}
	return newForm(title, fields, func(m *Model, v []string) (string, error) {
		in := storage.Link{Type: v[0], RawLink: v[1]}
		if existing != nil {
			return "Link saved", m.store.UpdateLink(existing.ID, in)
		}
		_, err := m.store.AddLink(taskID, in)
		return "Link added", err
	})
}

func (m Model) tagForm(taskID int, existing *storage.Tag) *form {
	var t storage.Tag
	title := fmt.Sprintf("New tag for task #%d", taskID)
	if existing != nil {
		t = *existing
		title = fmt.Sprintf("Edit tag #%d", t.ID)
	}
	fields := []formField{
		newField("Type", t.Type, m.suggester("tag", "type")),
		newField("Keywords", t.Keywords, m.suggester("tag", "keywords")),
	}
	return newForm(title, fields, func(m *Model, v []string) (string, error) {
		in := storage.Tag{Type: v[0], Keywords: v[1]}
		if existing != nil {
			return "Tag saved", m.store.UpdateTag(existing.ID, in)
		}
		_, err := m.store.AddTag(taskID, in)
		return "Tag added", err
	})
}

func (m Model) originForm(taskID int, existing *storage.Origin) *form {
	var o storage.Origin
	title := fmt.Sprintf("New origin for task #%d", taskID)
	if existing != nil {
		o = *existing
		title = fmt.Sprintf("Edit origin #%d", o.ID)
	}
	fields := []formField{
		newField("Name", o.Name, m.suggester("origin", "name")),
		newField("Type", o.Type, m.suggester("origin", "type")),
		newField("URL", o.RawLink, nil),
	}
	return newForm(title, fields, func(m *Model, v []string) (string, error) {
		if v[0] == "" {
			return "", errNameRequired
		}
		in := storage.Origin{Name: v[0], Type: v[1], RawLink: v[2]}
		if existing != nil {
			return "Origin saved", m.store.UpdateOrigin(existing.ID, in)
		}
		_, err := m.store.AddOrigin(taskID, in)
		return "Origin added", err
	})
}

func (m Model) bookingForm(taskID int, existing *storage.Booking) *form {
	var b storage.Booking
	title := fmt.Sprintf("New booking for task #%d", taskID)
	if existing != nil {
		b = *existing
		title = fmt.Sprintf("Edit booking #%d", b.ID)
	}
	fields := []formField{
		newField("Origin", b.OriginName, m.originSuggester()),
		newField("Description", b.Description, m.suggester("booking", "description")),
		newField("Started", storage.FormatTime(b.StartedAt), nil),
		newField("Ended", storage.FormatTime(b.EndedAt), nil),
		newField("Duration", b.Duration, nil),
	}
	return newForm(title, fields, func(m *Model, v []string) (string, error) {
		in := storage.BookingInput{Origin: v[0], Description: v[1], Duration: v[4]}
		var err error
		if in.StartedAt, err = parseTimeField("started", v[2]); err != nil {
			return "", err
		}
		if in.EndedAt, err = parseTimeField("ended", v[3]); err != nil {
			return "", err
		}
		if existing != nil {
			return "Booking saved", m.store.UpdateBooking(existing.ID, in)
		}
		_, err = m.store.AddBooking(taskID, in)
		return "Booking added", err
	})
}

// editForm opens the edit form for a related item.
func (m Model) editForm(it relatedItem) (*form, error) {
	switch it.kind {
	case kindDelivery:
		d, err := m.store.GetDelivery(it.id)
		if err != nil {
			return nil, err
		}
		return m.deliveryForm(0, &d), nil
	case kindLink:
		l, err := m.store.GetLink(it.id)
		if err != nil {
			return nil, err
		}
		return m.linkForm(0, &l), nil
	case kindTag:
		t, err := m.store.GetTag(it.id)
		if err != nil {
			return nil, err
		}
		return m.tagForm(0, &t), nil
	case kindOrigin:
		o, err := m.store.GetOrigin(it.id)
		if err != nil {
			return nil, err
		}
		return m.originForm(0, &o), nil
	case kindBooking:
		b, err := m.store.GetBooking(it.id)
		if err != nil {
			return nil, err
		}
		return m.bookingForm(b.TaskID, &b), nil
	}
	return nil, fmt.Errorf("cannot edit %s here", it.kind)
}
