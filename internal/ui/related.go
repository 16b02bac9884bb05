package ui

import (
	"fmt"
	"strings"

	"taskman/internal/storage"
)

type itemKind string

const (
	kindTask     itemKind = "task"
	kindDelivery itemKind = "delivery"
	kindLink     itemKind = "link"
	kindTag      itemKind = "tag"
	kindOrigin   itemKind = "origin"
	kindBooking  itemKind = "booking"
	kindNote     itemKind = "note"
)

type relatedItem struct {
	kind itemKind
	id   int
	text string
	url  string
	// taskID is the owning task of a note
	taskID int
}

func relatedItems(r storage.Related) []relatedItem {
	var out []relatedItem
	for _, d := range r.Deliveries {
		text := strings.TrimSpace(fmt.Sprintf("V %s %s %s %s", d.Version, d.Server, d.Environment, storage.FormatTime(d.DeliveredAt)))
		out = append(out, relatedItem{kind: kindDelivery, id: d.ID, text: text})
	}
	for _, l := range r.Links {
		text := fmt.Sprintf("[%s] %s", l.Type, l.RawLink)
		if len(l.Tags) > 0 {
			text += " (" + strings.Join(l.TagLabels(), ", ") + ")"
		}
		out = append(out, relatedItem{kind: kindLink, id: l.ID, text: text, url: l.RawLink})
	}
	for _, t := range r.Tags {
		out = append(out, relatedItem{kind: kindTag, id: t.ID, text: fmt.Sprintf("%s: %s", t.Type, t.Keywords)})
	}
	for _, o := range r.Origins {
		text := o.Name
		if o.Type != "" {
			text += " (" + o.Type + ")"
		}
		if o.RawLink != "" {
			text += " " + o.RawLink
		}
		out = append(out, relatedItem{kind: kindOrigin, id: o.ID, text: text, url: o.RawLink})
	}
	for _, b := range r.Bookings {
		text := strings.TrimSpace(fmt.Sprintf("%s %s %s %s", b.OriginName, b.Duration, storage.FormatTime(b.StartedAt), b.Description))
		out = append(out, relatedItem{kind: kindBooking, id: b.ID, text: text})
	}
	for _, n := range r.Notes {
		title := n.Title()
		if title == "" {
			title = "(empty note)"
		}
		out = append(out, relatedItem{kind: kindNote, id: n.ID, text: title, taskID: n.TaskID})
	}
	return out
}

func (m Model) renderRelated() string {
	var b strings.Builder
	if len(m.related) == 0 {
		b.WriteString(m.styles.muted.Render("Nothing attached"))
		return b.String()
	}
	var section itemKind
	for i, it := range m.related {
		if it.kind != section {
			if section != "" {
				b.WriteString("\n")
			}
			b.WriteString(m.styles.header.Render(sectionTitle(it.kind)))
			b.WriteString("\n")
			section = it.kind
		}
		line := fmt.Sprintf("  #%d %s", it.id, it.text)
		if m.focus == focusRelated && i == m.relCursor {
			line = m.styles.cursor.Render(line)
		} else {
			line = m.styles.app.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func sectionTitle(k itemKind) string {
	switch k {
	case kindDelivery:
		return "Deliveries"
	case kindLink:
		return "Links"
	case kindTag:
		return "Tags"
	case kindOrigin:
		return "Origins"
	case kindBooking:
		return "Bookings"
	case kindNote:
		return "Notes"
	}
	return string(k)
}

func (m Model) currentRelated() (relatedItem, bool) {
	if len(m.related) == 0 {
		return relatedItem{}, false
	}
	return m.related[clampCursor(m.relCursor, len(m.related))], true
}

// focusItem puts the related cursor on kind/id when present.
func (m *Model) focusItem(kind itemKind, id int) bool {
	for i, it := range m.related {
		if it.kind == kind && it.id == id {
			m.relCursor = i
			m.focus = focusRelated
			return true
		}
	}
	return false
}

func (m *Model) deleteItem(it relatedItem) error {
	switch it.kind {
	case kindTask:
		return m.store.DeleteTask(it.id)
	case kindDelivery:
		return m.store.DeleteDelivery(it.id)
	case kindLink:
		return m.store.DeleteLink(it.id)
	case kindTag:
		return m.store.DeleteTag(it.id)
	case kindOrigin:
		return m.store.DeleteOrigin(it.id)
	case kindBooking:
		return m.store.DeleteBooking(it.id)
	case kindNote:
		return m.store.DeleteNote(it.id)
	}
	return fmt.Errorf("unknown item %s", it.kind)
}
