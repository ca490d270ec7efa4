package assemble

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Number scans any numeric column into a float64. Postgres NUMERIC arrives
// as text, SQLite REAL as float64, COUNT/SUM over integers as int64.
type Number float64

func (n *Number) Scan(src any) error {
	f, err := toFloat(src)
	if err != nil {
		return err
	}
	*n = Number(f)
	return nil
}

func (n Number) Float64() float64 { return float64(n) }

// NullNumber is a Number that may be NULL (outer-joined columns).
type NullNumber struct {
	Float64 float64
	Valid   bool
}

func (n *NullNumber) Scan(src any) error {
	if src == nil {
		*n = NullNumber{}
		return nil
	}
	f, err := toFloat(src)
	if err != nil {
		return err
	}
	*n = NullNumber{Float64: f, Valid: true}
	return nil
}

// NullInt scans nullable id columns, including ones a driver returns as
// float or text.
type NullInt struct {
	Int64 int64
	Valid bool
}

func (n *NullInt) Scan(src any) error {
	if src == nil {
		*n = NullInt{}
		return nil
	}
	f, err := toFloat(src)
	if err != nil {
		return err
	}
	if f != math.Trunc(f) {
		return fmt.Errorf("assemble: %v is not an integer", src)
	}
	*n = NullInt{Int64: int64(f), Valid: true}
	return nil
}

func toFloat(src any) (float64, error) {
	switch v := src.(type) {
	case nil:
		return 0, nil
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int:
		return float64(v), nil
	case []byte:
		return parseFloat(string(v))
	case string:
		return parseFloat(v)
	}
	return 0, fmt.Errorf("assemble: cannot scan %T as a number", src)
}

func parseFloat(s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("assemble: parsing number %q: %w", s, err)
	}
	return f, nil
}
