package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// TimeLayout is how timestamps are stored: local wall clock, seconds
// precision, no zone.
const TimeLayout = "2006-01-02T15:04:05"

var inputLayouts = []string{
	TimeLayout,
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTime accepts the date forms a user types into a form. An empty
// string yields an invalid (NULL) time.
func ParseTime(v string) (sql.NullTime, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return sql.NullTime{}, nil
	}
	for _, layout := range inputLayouts {
		if t, err := time.ParseInLocation(layout, v, time.Local); err == nil {
			return sql.NullTime{Time: t, Valid: true}, nil
		}
	}
	return sql.NullTime{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD HH:MM", v)
}

// FormatTime renders a time the way forms display it.
func FormatTime(t sql.NullTime) string {
	if !t.Valid {
		return ""
	}
	return t.Time.Format("2006-01-02 15:04")
}

func timeValue(t sql.NullTime) sql.NullString {
	if !t.Valid {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Time.Format(TimeLayout), Valid: true}
}

func scanTime(v sql.NullString) sql.NullTime {
	if !v.Valid || strings.TrimSpace(v.String) == "" {
		return sql.NullTime{}
	}
	s := strings.TrimSpace(v.String)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return sql.NullTime{Time: t, Valid: true}
	}
	if t, err := ParseTime(s); err == nil {
		return t
	}
	return sql.NullTime{}
}

// FormatDuration renders a booking duration as hours and minutes.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	d = d.Round(time.Minute)
	h := int(d / time.Hour)
	m := int((d % time.Hour) / time.Minute)
	return fmt.Sprintf("%dh%02d", h, m)
}
