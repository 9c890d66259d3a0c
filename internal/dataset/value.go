// Package dataset holds the in-memory table a file is loaded into.
//
// A Table is an ordered list of named columns of equal length. Each column
// declares a Kind and holds tagged Values of that kind, or missing values.
// The table lives for one load-edit-sync session and is never persisted in
// this form.
package dataset

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind is the declared type of a column.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
	KindDatetime
)

var kindNames = map[Kind]string{
	KindString:   "string",
	KindInt:      "int",
	KindFloat:    "float",
	KindBool:     "bool",
	KindDatetime: "datetime",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// IsNumeric reports whether the kind holds numbers.
func (k Kind) IsNumeric() bool {
	return k == KindInt || k == KindFloat
}

// ParseKind converts a kind name ("int", "float", ...) back to a Kind.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return KindString, fmt.Errorf("unknown column kind %q", s)
}

// Kinds returns all kinds in declaration order.
func Kinds() []Kind {
	return []Kind{KindString, KindInt, KindFloat, KindBool, KindDatetime}
}

// DatetimeLayout is the canonical text form of datetime values.
const DatetimeLayout = "2006-01-02 15:04:05"

// Value is a single cell. The zero Value is missing.
type Value struct {
	kind  Kind
	valid bool
	s     string
	i     int64
	f     float64
	b     bool
	t     time.Time
}

// Missing returns the missing value.
func Missing() Value { return Value{} }

// Text returns a string value.
func Text(s string) Value { return Value{kind: KindString, valid: true, s: s} }

// Int returns an integer value.
func Int(i int64) Value { return Value{kind: KindInt, valid: true, i: i} }

// Float returns a floating point value.
func Float(f float64) Value { return Value{kind: KindFloat, valid: true, f: f} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, valid: true, b: b} }

// Time returns a datetime value.
func Time(t time.Time) Value { return Value{kind: KindDatetime, valid: true, t: t} }

// IsMissing reports whether the cell has no value.
func (v Value) IsMissing() bool { return !v.valid }

// Kind returns the value's kind. Missing values report KindString.
func (v Value) Kind() Kind { return v.kind }

// Interface returns the value as a driver-friendly Go value, nil when missing.
func (v Value) Interface() any {
	if !v.valid {
		return nil
	}
	switch v.kind {
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindBool:
		return v.b
	case KindDatetime:
		return v.t
	default:
		return v.s
	}
}

// Int64 returns the integer payload and whether the value is an integer.
func (v Value) Int64() (int64, bool) { return v.i, v.valid && v.kind == KindInt }

// Float64 returns the value as a float for numeric kinds.
func (v Value) Float64() (float64, bool) {
	if !v.valid {
		return 0, false
	}
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	}
	return 0, false
}

// String renders the value for display. Missing values render empty.
func (v Value) String() string {
	if !v.valid {
		return ""
	}
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindDatetime:
		return v.t.Format(DatetimeLayout)
	default:
		return v.s
	}
}

// missingKey never collides with a rendered value because rendered values
// cannot contain NUL.
const missingKey = "\x00"

// Key is the stringified form used for row equality. Missing values have a
// key distinct from every present value, including the empty string.
// Datetimes are keyed in UTC, the zone drivers return stored times in.
func (v Value) Key() string {
	if !v.valid {
		return missingKey
	}
	if v.kind == KindDatetime {
		return v.t.UTC().Format(DatetimeLayout)
	}
	return strings.ReplaceAll(v.String(), "\x00", "")
}

// Equal compares two values by key.
func (v Value) Equal(o Value) bool { return v.Key() == o.Key() }
