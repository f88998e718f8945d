package sqlitedb

import (
	"database/sql"
	"errors"
	"strings"
	"time"
)

// Scanner is satisfied by *sql.Row and *sql.Rows.
type Scanner interface {
	Scan(dest ...any) error
}

// NullableString maps "" to SQL NULL.
func NullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

// NullableInt maps a nil pointer to SQL NULL.
func NullableInt(value *int64) any {
	if value == nil {
		return nil
	}
	return *value
}

// NullableTime maps a nil pointer to SQL NULL and formats others with FormatTime.
func NullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return FormatTime(*value)
}

// TimeLayout is fixed width so stored timestamps sort lexically.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// FormatTime renders t the way every table stores timestamps.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// BoolToInt stores booleans as 0/1.
func BoolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

// ParseTime accepts RFC3339Nano and SQLite's CURRENT_TIMESTAMP layout.
func ParseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

// TimeFrom converts a nullable column into a time, zero when NULL or malformed.
func TimeFrom(value sql.NullString) time.Time {
	if !value.Valid {
		return time.Time{}
	}
	t, err := ParseTime(value.String)
	if err != nil {
		return time.Time{}
	}
	return t
}

// TimePtrFrom converts a nullable column into a time pointer.
func TimePtrFrom(value sql.NullString) *time.Time {
	if !value.Valid {
		return nil
	}
	t, err := ParseTime(value.String)
	if err != nil {
		return nil
	}
	return &t
}

// IntPtrFrom converts a nullable integer column into a pointer.
func IntPtrFrom(value sql.NullInt64) *int64 {
	if !value.Valid {
		return nil
	}
	v := value.Int64
	return &v
}

// Placeholders returns "?,?,?" for count parameters.
func Placeholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", count), ",")
}

// Int64Args converts ids into query arguments.
func Int64Args(ids []int64) []any {
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	return args
}
