package store

import (
	"errors"
	"strings"
	"time"
)

// timeLayout is fixed width so lexical comparisons in SQL order correctly.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Scanner is implemented by *sql.Row and *sql.Rows.
type Scanner interface {
	Scan(dest ...any) error
}

// FormatTime renders t in the stored UTC layout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// Now returns the current time formatted for storage.
func Now() string {
	return FormatTime(time.Now())
}

// ParseTime reads a stored timestamp.
func ParseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

// ParseNullableTime converts a nullable column into an optional time.
func ParseNullableTime(value string, valid bool) *time.Time {
	if !valid {
		return nil
	}
	t, err := ParseTime(value)
	if err != nil {
		return nil
	}
	return &t
}

// NullableString maps the empty string to NULL.
func NullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

// NullableID maps non-positive identifiers to NULL.
func NullableID(value int64) any {
	if value <= 0 {
		return nil
	}
	return value
}

// Placeholders returns count comma separated bind markers.
func Placeholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

// IsUniqueViolation reports whether err came from a UNIQUE or PRIMARY KEY constraint.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "PRIMARY KEY constraint failed")
}
