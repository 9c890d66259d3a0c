package dataset

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrLengthMismatch is returned when a column would break the
	// equal-row-count invariant.
	ErrLengthMismatch = errors.New("column length does not match table")
	// ErrRowRange is returned for a row index outside the table.
	ErrRowRange = errors.New("row index out of range")
	// ErrColumnRange is returned for an unknown column index or name.
	ErrColumnRange = errors.New("column not found")
)

// Column is a named sequence of values of one kind.
type Column struct {
	Name   string
	Kind   Kind
	Values []Value
}

// MissingCount returns the number of missing values in the column.
func (c *Column) MissingCount() int {
	n := 0
	for _, v := range c.Values {
		if v.IsMissing() {
			n++
		}
	}
	return n
}

// Table is an ordered collection of equal-length named columns.
// Column order and row order are significant.
type Table struct {
	columns []*Column
	rows    int
}

// New returns an empty table.
func New() *Table {
	return &Table{}
}

// AddColumn appends a column. The first column fixes the row count; later
// columns must match it.
func (t *Table) AddColumn(col *Column) error {
	if col == nil {
		return fmt.Errorf("add column: nil column")
	}
	if len(t.columns) > 0 && len(col.Values) != t.rows {
		return fmt.Errorf("add column %q: %w (got %d rows, want %d)",
			col.Name, ErrLengthMismatch, len(col.Values), t.rows)
	}
	if len(t.columns) == 0 {
		t.rows = len(col.Values)
	}
	t.columns = append(t.columns, col)
	return nil
}

// NumRows returns the row count.
func (t *Table) NumRows() int { return t.rows }

// NumCols returns the column count.
func (t *Table) NumCols() int { return len(t.columns) }

// Columns returns the table's columns in order. Callers must not change the
// length of any column's Values.
func (t *Table) Columns() []*Column { return t.columns }

// ColumnNames returns the column names in order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// Column finds a column by exact name.
func (t *Table) Column(name string) (*Column, bool) {
	for _, c := range t.columns {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// ColumnIndex returns the position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Row returns a copy of row i.
func (t *Table) Row(i int) []Value {
	row := make([]Value, len(t.columns))
	for j, c := range t.columns {
		row[j] = c.Values[i]
	}
	return row
}

// RowKey joins the stringified cells of row i, for exact-match comparison.
func (t *Table) RowKey(i int) string {
	return RowKey(t.Row(i))
}

// RowKey joins the keys of the given values with a unit separator.
func RowKey(values []Value) string {
	keys := make([]string, len(values))
	for i, v := range values {
		keys[i] = v.Key()
	}
	return strings.Join(keys, "\x1f")
}

// Cell returns the value at (row, col).
func (t *Table) Cell(row, col int) (Value, error) {
	if err := t.checkCell(row, col); err != nil {
		return Missing(), err
	}
	return t.columns[col].Values[row], nil
}

func (t *Table) checkCell(row, col int) error {
	if col < 0 || col >= len(t.columns) {
		return fmt.Errorf("%w: index %d", ErrColumnRange, col)
	}
	if row < 0 || row >= t.rows {
		return fmt.Errorf("%w: %d (rows: %d)", ErrRowRange, row, t.rows)
	}
	return nil
}

// SetCell parses raw as the column's kind and stores it. Empty text stores
// a missing value.
func (t *Table) SetCell(row, col int, raw string) error {
	if err := t.checkCell(row, col); err != nil {
		return err
	}
	c := t.columns[col]
	v, err := ParseValue(c.Kind, raw)
	if err != nil {
		return fmt.Errorf("column %q row %d: %w", c.Name, row, err)
	}
	c.Values[row] = v
	return nil
}

// AppendRow parses one raw cell per column and appends the row. Short rows
// are padded with missing values. The table is unchanged on error.
func (t *Table) AppendRow(raw []string) error {
	if len(raw) > len(t.columns) {
		return fmt.Errorf("append row: %d cells for %d columns", len(raw), len(t.columns))
	}
	row := make([]Value, len(t.columns))
	for j, c := range t.columns {
		if j >= len(raw) {
			continue
		}
		v, err := ParseValue(c.Kind, raw[j])
		if err != nil {
			return fmt.Errorf("append row: column %q: %w", c.Name, err)
		}
		row[j] = v
	}
	for j, c := range t.columns {
		c.Values = append(c.Values, row[j])
	}
	t.rows++
	return nil
}

// DeleteRow removes row i.
func (t *Table) DeleteRow(i int) error {
	if i < 0 || i >= t.rows {
		return fmt.Errorf("%w: %d (rows: %d)", ErrRowRange, i, t.rows)
	}
	for _, c := range t.columns {
		c.Values = append(c.Values[:i], c.Values[i+1:]...)
	}
	t.rows--
	return nil
}

// ConvertColumn re-parses every value of a column as kind. Either every
// present value converts or the column is left untouched.
func (t *Table) ConvertColumn(col int, kind Kind) error {
	if col < 0 || col >= len(t.columns) {
		return fmt.Errorf("%w: index %d", ErrColumnRange, col)
	}
	c := t.columns[col]
	if c.Kind == kind {
		return nil
	}
	converted := make([]Value, len(c.Values))
	for i, v := range c.Values {
		if v.IsMissing() {
			continue
		}
		nv, err := ParseValue(kind, v.String())
		if err != nil {
			return fmt.Errorf("convert column %q to %s: row %d: %w", c.Name, kind, i, err)
		}
		converted[i] = nv
	}
	c.Kind = kind
	c.Values = converted
	return nil
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	out := &Table{rows: t.rows, columns: make([]*Column, len(t.columns))}
	for i, c := range t.columns {
		values := make([]Value, len(c.Values))
		copy(values, c.Values)
		out.columns[i] = &Column{Name: c.Name, Kind: c.Kind, Values: values}
	}
	return out
}

// MissingCount returns the number of missing cells across all columns.
func (t *Table) MissingCount() int {
	n := 0
	for _, c := range t.columns {
		n += c.MissingCount()
	}
	return n
}
