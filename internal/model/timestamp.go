package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TimestampLayout is the wire format for every timestamp the API emits.
const TimestampLayout = "2006-01-02T15:04:05Z"

// storage layouts the drivers may hand back when a column loses its
// declared type (views, aggregates) and arrives as text.
var storageLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
	TimestampLayout,
}

// Timestamp is a UTC instant with one-second resolution.
//
// It converts at both boundaries: JSON (TimestampLayout, RFC 3339 accepted
// on input) and SQL (Scan accepts time.Time or any storage text layout).
type Timestamp struct {
	time.Time
}

// NewTimestamp normalises t to UTC whole seconds.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC().Truncate(time.Second)}
}

// Now is NewTimestamp(time.Now()).
func Now() Timestamp {
	return NewTimestamp(time.Now())
}

// ParseTimestamp accepts TimestampLayout, RFC 3339, or a bare YYYY-MM-DD date.
func ParseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{TimestampLayout, time.RFC3339Nano, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return NewTimestamp(t), nil
		}
	}
	return Timestamp{}, fmt.Errorf("model: unrecognised timestamp %q", s)
}

func (t Timestamp) String() string {
	return t.UTC().Format(TimestampLayout)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("model: timestamp must be a string: %w", err)
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Scan implements sql.Scanner.
func (t *Timestamp) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*t = NewTimestamp(v)
		return nil
	case string:
		return t.scanText(v)
	case []byte:
		return t.scanText(string(v))
	case int64:
		*t = NewTimestamp(time.Unix(v, 0))
		return nil
	case nil:
		*t = Timestamp{}
		return nil
	}
	return fmt.Errorf("model: cannot scan %T into Timestamp", src)
}

func (t *Timestamp) scanText(s string) error {
	for _, layout := range storageLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			*t = NewTimestamp(parsed)
			return nil
		}
	}
	return fmt.Errorf("model: unrecognised stored timestamp %q", s)
}

// Value implements driver.Valuer so stores can bind a Timestamp directly.
func (t Timestamp) Value() (driver.Value, error) {
	return t.UTC(), nil
}

// NullTimestamp is a Timestamp that may be SQL NULL / JSON null.
type NullTimestamp struct {
	Timestamp Timestamp
	Valid     bool
}

func SomeTimestamp(t Timestamp) NullTimestamp {
	return NullTimestamp{Timestamp: t, Valid: true}
}

func (n *NullTimestamp) Scan(src any) error {
	if src == nil {
		*n = NullTimestamp{}
		return nil
	}
	if err := n.Timestamp.Scan(src); err != nil {
		return err
	}
	n.Valid = true
	return nil
}

func (n NullTimestamp) Value() (driver.Value, error) {
	if !n.Valid {
		return nil, nil
	}
	return n.Timestamp.Value()
}

func (n NullTimestamp) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return n.Timestamp.MarshalJSON()
}

func (n *NullTimestamp) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*n = NullTimestamp{}
		return nil
	}
	if err := n.Timestamp.UnmarshalJSON(b); err != nil {
		return err
	}
	n.Valid = true
	return nil
}
