package storage

import (
	"database/sql"
	"fmt"
)

// Related gathers everything attached to a set of tasks. Each entity shows
// up once even when several of the tasks share it.
type Related struct {
	Deliveries []Delivery
	Links      []Link
	Tags       []Tag
	Origins    []Origin
	Bookings   []Booking
	Notes      []Note
}

func (r Related) Empty() bool {
	return len(r.Deliveries)+len(r.Links)+len(r.Tags)+len(r.Origins)+len(r.Bookings)+len(r.Notes) == 0
}

func (s *Store) Related(taskIDs ...int) (Related, error) {
	var r Related
	if len(taskIDs) == 0 {
		return r, nil
	}
	in := placeholders(len(taskIDs))
	args := intArgs(taskIDs)

	err := s.collect(fmt.Sprintf(`SELECT DISTINCT %s FROM delivery d JOIN task_delivery td ON d.id = td.delivery_id WHERE td.task_id IN (%s) ORDER BY d.id;`, deliveryColumns, in),
		args, func(rows *sql.Rows) error {
			d, err := scanDelivery(rows)
			r.Deliveries = append(r.Deliveries, d)
			return err
		})
	if err != nil {
		return r, fmt.Errorf("deliveries: %w", err)
	}

	err = s.collect(fmt.Sprintf(`SELECT DISTINCT l.id, COALESCE(l.type, ''), COALESCE(l.raw_link, '') FROM link l JOIN task_link tl ON l.id = tl.link_id WHERE tl.task_id IN (%s) ORDER BY l.id;`, in),
		args, func(rows *sql.Rows) error {
			var l Link
			err := rows.Scan(&l.ID, &l.Type, &l.RawLink)
			r.Links = append(r.Links, l)
			return err
		})
	if err != nil {
		return r, fmt.Errorf("links: %w", err)
	}
	for i := range r.Links {
		if r.Links[i].Tags, err = s.LinkTags(r.Links[i].ID); err != nil {
			return r, fmt.Errorf("link %d tags: %w", r.Links[i].ID, err)
		}
	}

	err = s.collect(fmt.Sprintf(`SELECT DISTINCT t.id, COALESCE(t.type, ''), COALESCE(t.keywords, '') FROM tag t JOIN tag_task tt ON t.id = tt.tag_id WHERE tt.task_id IN (%s) ORDER BY t.id;`, in),
		args, func(rows *sql.Rows) error {
			var t Tag
			err := rows.Scan(&t.ID, &t.Type, &t.Keywords)
			r.Tags = append(r.Tags, t)
			return err
		})
	if err != nil {
		return r, fmt.Errorf("tags: %w", err)
	}

	err = s.collect(fmt.Sprintf(`SELECT DISTINCT o.id, COALESCE(o.name, ''), COALESCE(o.type, ''), COALESCE(o.raw_link, '') FROM origin o JOIN task_origin t_o ON o.id = t_o.origin_id WHERE t_o.task_id IN (%s) ORDER BY o.id;`, in),
		args, func(rows *sql.Rows) error {
			var o Origin
			err := rows.Scan(&o.ID, &o.Name, &o.Type, &o.RawLink)
			r.Origins = append(r.Origins, o)
			return err
		})
	if err != nil {
		return r, fmt.Errorf("origins: %w", err)
	}

	err = s.collect(fmt.Sprintf(`SELECT %s FROM booking b LEFT JOIN origin o ON o.id = b.origin_id WHERE b.task_id IN (%s) ORDER BY b.id;`, bookingColumns, in),
		args, func(rows *sql.Rows) error {
			b, err := scanBooking(rows)
			r.Bookings = append(r.Bookings, b)
			return err
		})
	if err != nil {
		return r, fmt.Errorf("bookings: %w", err)
	}

	err = s.collect(fmt.Sprintf(`SELECT id, COALESCE(task_id, 0), COALESCE(content, '') FROM note WHERE task_id IN (%s) ORDER BY id;`, in),
		args, func(rows *sql.Rows) error {
			var n Note
			err := rows.Scan(&n.ID, &n.TaskID, &n.Content)
			r.Notes = append(r.Notes, n)
			return err
		})
	if err != nil {
		return r, fmt.Errorf("notes: %w", err)
	}
	return r, nil
}

func (s *Store) collect(query string, args []any, each func(rows *sql.Rows) error) error {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := each(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}
