package dataset

// parse.go converts raw cell text into typed values.
//
// The importer reads every cell as text first. Columns are then classified
// independently: a column becomes numeric only when every present value
// parses, so one stray word keeps the whole column as text. Boolean and
// datetime parsing is used when a user converts a column explicitly.

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidValue is returned when text cannot be parsed as a column's kind.
var ErrInvalidValue = errors.New("invalid value")

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would land more than this many years in the future are moved
// to the previous century.
var TwoDigitYearPivot = 20

// Date layouts split by year format for proper 2-digit year handling.
var (
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
	}
	fourDigitYearLayouts = []string{
		DatetimeLayout, "2006-01-02T15:04:05Z07:00", "2006-01-02 15:04:05Z07:00", "2006-01-02T15:04:05", "2006-01-02 15:04",
		"2006/01/02 15:04:05",
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"2006-01-02", "2006/01/02", "2006.01.02",
		"Jan 2, 2006", "2 Jan 2006",
		"20060102",
	}
)

// ParseInt parses an integer cell. Surrounding whitespace is ignored.
func ParseInt(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return i, true
}

// ParseFloat parses a floating point cell. NaN and infinities are rejected
// so they stay text instead of becoming values no database column accepts.
func ParseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ParseBool accepts true/false, yes/no, t/f, y/n, 1/0 (case-insensitive).
func ParseBool(s string) (bool, bool) {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "true", "t", "yes", "y", "1":
		return true, true
	case "false", "f", "no", "n", "0":
		return false, true
	default:
		return false, false
	}
}

// ParseDatetime supports ISO, US and EU date formats with optional time,
// handling 2-digit years with TwoDigitYearPivot.
func ParseDatetime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	// Try 4-digit year layouts first (unambiguous)
	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return t, true
		}
	}

	return time.Time{}, false
}

// ParseValue parses raw text as the given kind. Empty or whitespace-only
// text is a missing value for every kind except string, where only the
// empty string is missing.
func ParseValue(kind Kind, raw string) (Value, error) {
	if raw == "" || (kind != KindString && strings.TrimSpace(raw) == "") {
		return Missing(), nil
	}

	switch kind {
	case KindString:
		return Text(raw), nil
	case KindInt:
		if i, ok := ParseInt(raw); ok {
			return Int(i), nil
		}
		// Accept integral floats such as "3.0" typed into an int column.
		if f, ok := ParseFloat(raw); ok && f == math.Trunc(f) && math.Abs(f) < 1<<63 {
			return Int(int64(f)), nil
		}
	case KindFloat:
		if f, ok := ParseFloat(raw); ok {
			return Float(f), nil
		}
	case KindBool:
		if b, ok := ParseBool(raw); ok {
			return Bool(b), nil
		}
	case KindDatetime:
		if t, ok := ParseDatetime(raw); ok {
			return Time(t), nil
		}
	}
	return Missing(), fmt.Errorf("%w: %q is not a valid %s", ErrInvalidValue, raw, kind)
}

// naTokens are the cell texts the importer reads as missing values, the
// default NA set of common spreadsheet and dataframe tools.
var naTokens = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {},
	"NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {}, "nan": {}, "null": {},
}

// IsNA reports whether a raw cell is a missing-value marker. Matching is
// exact: "na" and " NA" are text.
func IsNA(s string) bool {
	_, ok := naTokens[s]
	return ok
}

// hasLeadingZero reports whether s is a number written with a significant
// leading zero, such as "007" or "-01". "0" and "0.5" do not count.
func hasLeadingZero(s string) bool {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "+-")
	return len(s) > 1 && s[0] == '0' && s[1] >= '0' && s[1] <= '9'
}

// Classify picks the kind for a column of raw text cells: int when every
// present cell is an integer, float when every present cell is numeric,
// string otherwise. Empty cells are ignored. An all-empty column, or one
// containing identifiers with leading zeros, stays string.
func Classify(raw []string) Kind {
	kind := KindInt
	present := 0
	for _, s := range raw {
		if strings.TrimSpace(s) == "" {
			continue
		}
		present++
		if hasLeadingZero(s) {
			return KindString
		}
		if kind == KindInt {
			if _, ok := ParseInt(s); ok {
				continue
			}
			kind = KindFloat
		}
		if _, ok := ParseFloat(s); !ok {
			return KindString
		}
	}
	if present == 0 {
		return KindString
	}
	return kind
}

// ColumnFromText classifies raw cells and builds a column from them.
func ColumnFromText(name string, raw []string) *Column {
	kind := Classify(raw)
	values := make([]Value, len(raw))
	for i, s := range raw {
		v, err := ParseValue(kind, s)
		if err != nil {
			// Classify guarantees every present cell parses; keep text if not.
			v = Text(s)
		}
		values[i] = v
	}
	return &Column{Name: name, Kind: kind, Values: values}
}

// FromDB converts a value scanned from a database driver into a Value of
// the given kind. Drivers disagree on representations (MySQL returns most
// columns as []byte, booleans as 0/1), so conversion goes through text when
// needed. Values that do not fit the kind fall back to text.
func FromDB(kind Kind, src any) Value {
	switch v := src.(type) {
	case nil:
		return Missing()
	case int64:
		switch kind {
		case KindBool:
			return Bool(v != 0)
		case KindFloat:
			return Float(float64(v))
		case KindInt:
			return Int(v)
		}
		return fromDBText(kind, strconv.FormatInt(v, 10))
	case float64:
		switch kind {
		case KindFloat:
			return Float(v)
		case KindInt:
			if v == math.Trunc(v) {
				return Int(int64(v))
			}
		}
		return fromDBText(kind, strconv.FormatFloat(v, 'g', -1, 64))
	case bool:
		if kind == KindBool {
			return Bool(v)
		}
		return fromDBText(kind, strconv.FormatBool(v))
	case time.Time:
		if kind == KindDatetime {
			return Time(v)
		}
		return fromDBText(kind, v.Format(DatetimeLayout))
	case []byte:
		return fromDBText(kind, string(v))
	case string:
		return fromDBText(kind, v)
	default:
		return fromDBText(kind, fmt.Sprint(v))
	}
}

func fromDBText(kind Kind, s string) Value {
	v, err := ParseValue(kind, s)
	if err != nil {
		return Text(s)
	}
	if kind == KindString && s == "" {
		// An empty string stored in the database is not a missing value.
		return Text("")
	}
	return v
}
