package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

type Booking struct {
	ID          int
	TaskID      int
	OriginID    sql.NullInt64
	OriginName  string
	Description string
	StartedAt   sql.NullTime
	EndedAt     sql.NullTime
	Duration    string
}

// BookingInput is what a booking form submits. Origin is matched by name.
type BookingInput struct {
	Description string
	StartedAt   sql.NullTime
	EndedAt     sql.NullTime
	Duration    string
	Origin      string
}

const bookingColumns = `b.id, COALESCE(b.task_id, 0), b.origin_id, COALESCE(o.name, ''), COALESCE(b.description, ''), b.started_at, b.ended_at, COALESCE(b.duration, '')`

func scanBooking(sc rowScanner) (Booking, error) {
	var b Booking
	var started, ended sql.NullString
	if err := sc.Scan(&b.ID, &b.TaskID, &b.OriginID, &b.OriginName, &b.Description, &started, &ended, &b.Duration); err != nil {
		return Booking{}, err
	}
	b.StartedAt = scanTime(started)
	b.EndedAt = scanTime(ended)
	return b, nil
}

func (s *Store) resolveBooking(in BookingInput) (int, string, error) {
	name := strings.TrimSpace(in.Origin)
	if name == "" {
		return 0, "", ErrOriginRequired
	}
	if !in.StartedAt.Valid || !in.EndedAt.Valid {
		return 0, "", ErrTimesRequired
	}
	if in.EndedAt.Time.Before(in.StartedAt.Time) {
		return 0, "", ErrInvalidRange
	}
	origin, err := s.originByName(name)
	if err != nil {
		return 0, "", err
	}
	duration := strings.TrimSpace(in.Duration)
	if duration == "" {
		duration = FormatDuration(in.EndedAt.Time.Sub(in.StartedAt.Time))
	}
	return origin.ID, duration, nil
}

func (s *Store) AddBooking(taskID int, in BookingInput) (int, error) {
	if _, err := s.GetTask(taskID); err != nil {
		return 0, err
	}
	originID, duration, err := s.resolveBooking(in)
	if err != nil {
		return 0, err
	}
	res, err := s.db.Exec(`INSERT INTO booking (description, started_at, ended_at, duration, task_id, origin_id) VALUES (?, ?, ?, ?, ?, ?);`,
		in.Description, timeValue(in.StartedAt), timeValue(in.EndedAt), duration, taskID, originID)
	if err != nil {
		return 0, fmt.Errorf("failed to add booking: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	s.log.Info("booking added", zap.Int64("id", id), zap.Int("task", taskID), zap.String("duration", duration))
	return int(id), nil
}

func (s *Store) UpdateBooking(id int, in BookingInput) error {
	originID, duration, err := s.resolveBooking(in)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(`UPDATE booking SET description = ?, started_at = ?, ended_at = ?, duration = ?, origin_id = ? WHERE id = ?;`,
		in.Description, timeValue(in.StartedAt), timeValue(in.EndedAt), duration, originID, id)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res, "booking", id)
}

func (s *Store) GetBooking(id int) (Booking, error) {
	b, err := scanBooking(s.db.QueryRow(`SELECT `+bookingColumns+` FROM booking b LEFT JOIN origin o ON o.id = b.origin_id WHERE b.id = ?;`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Booking{}, fmt.Errorf("booking %d: %w", id, ErrNotFound)
	}
	return b, err
}

func (s *Store) DeleteBooking(id int) error {
	res, err := s.db.Exec(`DELETE FROM booking WHERE id = ?;`, id)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res, "booking", id)
}

func (b Booking) Input() BookingInput {
	return BookingInput{
		Description: b.Description,
		StartedAt:   b.StartedAt,
		EndedAt:     b.EndedAt,
		Duration:    b.Duration,
		Origin:      b.OriginName,
	}
}
