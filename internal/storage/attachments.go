package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

type Delivery struct {
	ID          int
	Version     string
	Server      string
	Environment string
	DeliveredAt sql.NullTime
}

type Link struct {
	ID      int
	Type    string
	RawLink string
	// Tags is filled by Related.
	Tags []Tag
}

type Tag struct {
	ID       int
	Type     string
	Keywords string
}

type Origin struct {
	ID      int
	Name    string
	Type    string
	RawLink string
}

// TagLabels renders the link's tags as "type: keywords".
func (l Link) TagLabels() []string {
	out := make([]string, 0, len(l.Tags))
	for _, t := range l.Tags {
		if t.Type == "" {
			out = append(out, t.Keywords)
			continue
		}
		out = append(out, t.Type+": "+t.Keywords)
	}
	return out
}

// attachment describes an entity hung off tasks through a join table.
type attachment struct {
	kind    string
	table   string
	join    string
	joinCol string
}

var (
	deliveryAttachment = attachment{kind: "delivery", table: "delivery", join: "task_delivery", joinCol: "delivery_id"}
	linkAttachment     = attachment{kind: "link", table: "link", join: "task_link", joinCol: "link_id"}
	tagAttachment      = attachment{kind: "tag", table: "tag", join: "tag_task", joinCol: "tag_id"}
	originAttachment   = attachment{kind: "origin", table: "origin", join: "task_origin", joinCol: "origin_id"}

	attachments = []attachment{deliveryAttachment, linkAttachment, tagAttachment, originAttachment}
)

// attach inserts an entity row and links it to the task in one transaction.
func (s *Store) attach(a attachment, taskID int, insert string, args ...any) (int, error) {
	if _, err := s.GetTask(taskID); err != nil {
		return 0, err
	}
	var id int64
	err := s.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(insert, args...)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		if err != nil {
			return err
		}
		_, err = tx.Exec(fmt.Sprintf(`INSERT INTO %s (%s, task_id) VALUES (?, ?);`, a.join, a.joinCol), id, taskID)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to add %s: %w", a.kind, err)
	}
	s.log.Info("attached", zap.String("kind", a.kind), zap.Int64("id", id), zap.Int("task", taskID))
	return int(id), nil
}

// detach deletes an entity and every join row pointing at it.
func (s *Store) detach(a attachment, id int, extra ...string) error {
	err := s.withTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(fmt.Sprintf(`DELETE FROM %s WHERE %s = ?;`, a.join, a.joinCol), id); err != nil {
			return err
		}
		for _, stmt := range extra {
			if _, err := tx.Exec(stmt, id); err != nil {
				return err
			}
		}
		res, err := tx.Exec(fmt.Sprintf(`DELETE FROM %s WHERE id = ?;`, a.table), id)
		if err != nil {
			return err
		}
		return affectedOrNotFound(res, a.kind, id)
	})
	if err != nil {
		return err
	}
	s.log.Info("detached", zap.String("kind", a.kind), zap.Int("id", id))
	return nil
}

func attachedIDs(tx *sql.Tx, a attachment, taskID int) ([]int, error) {
	rows, err := tx.Query(fmt.Sprintf(`SELECT %s FROM %s WHERE task_id = ?;`, a.joinCol, a.join), taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int
	for rows.Next() {
		var id sql.NullInt64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		if id.Valid {
			ids = append(ids, int(id.Int64))
		}
	}
	return ids, rows.Err()
}

// pruneOrphans removes entities that no task references any more. Origins
// still used by a booking are kept.
func pruneOrphans(tx *sql.Tx, a attachment, ids []int) error {
	for _, id := range ids {
		var refs int
		q := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s = ?;`, a.join, a.joinCol)
		if err := tx.QueryRow(q, id).Scan(&refs); err != nil {
			return err
		}
		if a == originAttachment {
			var bookings int
			if err := tx.QueryRow(`SELECT COUNT(*) FROM booking WHERE origin_id = ?;`, id).Scan(&bookings); err != nil {
				return err
			}
			refs += bookings
		}
		if refs > 0 {
			continue
		}
		switch a {
		case linkAttachment:
			if _, err := tx.Exec(`DELETE FROM tag_link WHERE link_id = ?;`, id); err != nil {
				return err
			}
		case tagAttachment:
			var links int
			if err := tx.QueryRow(`SELECT COUNT(*) FROM tag_link WHERE tag_id = ?;`, id).Scan(&links); err != nil {
				return err
			}
			if links > 0 {
				continue
			}
		}
		if _, err := tx.Exec(fmt.Sprintf(`DELETE FROM %s WHERE id = ?;`, a.table), id); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) AddDelivery(taskID int, d Delivery) (int, error) {
	return s.attach(deliveryAttachment, taskID,
		`INSERT INTO delivery (version, server, environment, delivery_date_time) VALUES (?, ?, ?, ?);`,
		d.Version, d.Server, d.Environment, timeValue(d.DeliveredAt))
}

func (s *Store) UpdateDelivery(id int, d Delivery) error {
	res, err := s.db.Exec(`UPDATE delivery SET version = ?, server = ?, environment = ?, delivery_date_time = ? WHERE id = ?;`,
		d.Version, d.Server, d.Environment, timeValue(d.DeliveredAt), id)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res, "delivery", id)
}

func (s *Store) GetDelivery(id int) (Delivery, error) {
	d, err := scanDelivery(s.db.QueryRow(`SELECT `+deliveryColumns+` FROM delivery d WHERE d.id = ?;`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Delivery{}, fmt.Errorf("delivery %d: %w", id, ErrNotFound)
	}
	return d, err
}

func (s *Store) DeleteDelivery(id int) error {
	return s.detach(deliveryAttachment, id)
}

const deliveryColumns = `d.id, COALESCE(d.version, ''), COALESCE(d.server, ''), COALESCE(d.environment, ''), d.delivery_date_time`

func scanDelivery(sc rowScanner) (Delivery, error) {
	var d Delivery
	var at sql.NullString
	if err := sc.Scan(&d.ID, &d.Version, &d.Server, &d.Environment, &at); err != nil {
		return Delivery{}, err
	}
	d.DeliveredAt = scanTime(at)
	return d, nil
}

func (s *Store) AddLink(taskID int, l Link) (int, error) {
	return s.attach(linkAttachment, taskID,
		`INSERT INTO link (type, raw_link) VALUES (?, ?);`, l.Type, l.RawLink)
}

func (s *Store) UpdateLink(id int, l Link) error {
	res, err := s.db.Exec(`UPDATE link SET type = ?, raw_link = ? WHERE id = ?;`, l.Type, l.RawLink, id)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res, "link", id)
}

func (s *Store) GetLink(id int) (Link, error) {
	var l Link
	err := s.db.QueryRow(`SELECT id, COALESCE(type, ''), COALESCE(raw_link, '') FROM link WHERE id = ?;`, id).
		Scan(&l.ID, &l.Type, &l.RawLink)
	if errors.Is(err, sql.ErrNoRows) {
		return Link{}, fmt.Errorf("link %d: %w", id, ErrNotFound)
	}
	return l, err
}

func (s *Store) DeleteLink(id int) error {
	return s.detach(linkAttachment, id, `DELETE FROM tag_link WHERE link_id = ?;`)
}

func (s *Store) AddTag(taskID int, t Tag) (int, error) {
	return s.attach(tagAttachment, taskID,
		`INSERT INTO tag (type, keywords) VALUES (?, ?);`, t.Type, t.Keywords)
}

func (s *Store) UpdateTag(id int, t Tag) error {
	res, err := s.db.Exec(`UPDATE tag SET type = ?, keywords = ? WHERE id = ?;`, t.Type, t.Keywords, id)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res, "tag", id)
}

func (s *Store) GetTag(id int) (Tag, error) {
	var t Tag
	err := s.db.QueryRow(`SELECT id, COALESCE(type, ''), COALESCE(keywords, '') FROM tag WHERE id = ?;`, id).
		Scan(&t.ID, &t.Type, &t.Keywords)
	if errors.Is(err, sql.ErrNoRows) {
		return Tag{}, fmt.Errorf("tag %d: %w", id, ErrNotFound)
	}
	return t, err
}

func (s *Store) DeleteTag(id int) error {
	return s.detach(tagAttachment, id, `DELETE FROM tag_link WHERE tag_id = ?;`)
}

// TagLink labels a link with an existing tag.
func (s *Store) TagLink(tagID, linkID int) error {
	if _, err := s.GetTag(tagID); err != nil {
		return err
	}
	if _, err := s.GetLink(linkID); err != nil {
		return err
	}
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM tag_link WHERE tag_id = ? AND link_id = ?;`, tagID, linkID).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	_, err := s.db.Exec(`INSERT INTO tag_link (link_id, tag_id) VALUES (?, ?);`, linkID, tagID)
	return err
}

// LinkTags lists the tags attached to a link.
func (s *Store) LinkTags(linkID int) ([]Tag, error) {
	rows, err := s.db.Query(`SELECT t.id, COALESCE(t.type, ''), COALESCE(t.keywords, '')
FROM tag t JOIN tag_link tl ON t.id = tl.tag_id
WHERE tl.link_id = ? ORDER BY t.id;`, linkID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tags []Tag
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.Type, &t.Keywords); err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

func (s *Store) AddOrigin(taskID int, o Origin) (int, error) {
	return s.attach(originAttachment, taskID,
		`INSERT INTO origin (name, type, raw_link) VALUES (?, ?, ?);`, o.Name, o.Type, o.RawLink)
}

func (s *Store) UpdateOrigin(id int, o Origin) error {
	res, err := s.db.Exec(`UPDATE origin SET name = ?, type = ?, raw_link = ? WHERE id = ?;`, o.Name, o.Type, o.RawLink, id)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res, "origin", id)
}

func (s *Store) GetOrigin(id int) (Origin, error) {
	var o Origin
	err := s.db.QueryRow(`SELECT id, COALESCE(name, ''), COALESCE(type, ''), COALESCE(raw_link, '') FROM origin WHERE id = ?;`, id).
		Scan(&o.ID, &o.Name, &o.Type, &o.RawLink)
	if errors.Is(err, sql.ErrNoRows) {
		return Origin{}, fmt.Errorf("origin %d: %w", id, ErrNotFound)
	}
	return o, err
}

// DeleteOrigin refuses while bookings still point at the origin.
func (s *Store) DeleteOrigin(id int) error {
	var bookings int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM booking WHERE origin_id = ?;`, id).Scan(&bookings); err != nil {
		return err
	}
	if bookings > 0 {
		return fmt.Errorf("origin %d is used by %d booking(s): %w", id, bookings, ErrInUse)
	}
	return s.detach(originAttachment, id)
}

// Origins lists every origin, for booking forms.
func (s *Store) Origins() ([]Origin, error) {
	rows, err := s.db.Query(`SELECT id, COALESCE(name, ''), COALESCE(type, ''), COALESCE(raw_link, '') FROM origin ORDER BY name, id;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Origin
	for rows.Next() {
		var o Origin
		if err := rows.Scan(&o.ID, &o.Name, &o.Type, &o.RawLink); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *Store) originByName(name string) (Origin, error) {
	var o Origin
	err := s.db.QueryRow(`SELECT id, COALESCE(name, ''), COALESCE(type, ''), COALESCE(raw_link, '') FROM origin WHERE name = ? ORDER BY id LIMIT 1;`, name).
		Scan(&o.ID, &o.Name, &o.Type, &o.RawLink)
	if errors.Is(err, sql.ErrNoRows) {
		return Origin{}, fmt.Errorf("origin %q: %w", name, ErrNotFound)
	}
	return o, err
}
