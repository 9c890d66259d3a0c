package dbsync

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/JonMunkholm/PreChart2DB/internal/dataset"
)

// UntitledTable replaces table names that sanitize to nothing.
const UntitledTable = "untitled_table"

// DefaultIdentityColumn names the auto-incrementing key.
const DefaultIdentityColumn = "id"

// sanitize turns spaces into underscores and drops every rune that is not
// a letter, a digit or an underscore.
func sanitize(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r == ' ':
			b.WriteByte('_')
		case r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SanitizeTableName returns a safe identifier for a table, or
// UntitledTable when nothing survives.
func SanitizeTableName(name string) string {
	if s := sanitize(name); s != "" {
		return s
	}
	return UntitledTable
}

// SanitizeColumnName returns a safe identifier for a column. An empty result
// means the column is dropped from the schema.
func SanitizeColumnName(name string) string {
	return sanitize(name)
}

// ColumnDef is one relational column.
type ColumnDef struct {
	Name     string
	Type     string
	Identity bool

	// Source column in the dataset; unset for the identity column.
	Source      string
	SourceIndex int
	Kind        dataset.Kind
}

// Schema is the relational table derived from a dataset.
type Schema struct {
	Table   string
	Columns []ColumnDef
}

// DataColumns returns every column except the identity column.
func (s Schema) DataColumns() []ColumnDef {
	out := make([]ColumnDef, 0, len(s.Columns))
	for _, c := range s.Columns {
		if !c.Identity {
			out = append(out, c)
		}
	}
	return out
}

// skippedColumns returns the dataset column names dropped because they sanitize to
// nothing.
func skippedColumns(t *dataset.Table) []string {
	var out []string
	for _, c := range t.Columns() {
		if SanitizeColumnName(c.Name) == "" {
			out = append(out, c.Name)
		}
	}
	return out
}

// deriveSchema maps each dataset column to a relational column, identity
// column first. Names are compared case-insensitively because MySQL and
// SQLite treat column names that way.
func deriveSchema(d Dialect, t *dataset.Table, name, identity string) (Schema, error) {
	s := Schema{Table: SanitizeTableName(name)}
	s.Columns = append(s.Columns, ColumnDef{
		Name:     identity,
		Type:     d.IdentityType(),
		Identity: true,
	})

	owners := map[string]string{strings.ToLower(identity): "identity column"}
	for i, c := range t.Columns() {
		safe := SanitizeColumnName(c.Name)
		if safe == "" {
			continue
		}
		key := strings.ToLower(safe)
		if owner, ok := owners[key]; ok {
			return Schema{}, fmt.Errorf("%w: column %q and %s both map to %q",
				ErrColumnCollision, c.Name, owner, safe)
		}
		owners[key] = fmt.Sprintf("column %q", c.Name)

		s.Columns = append(s.Columns, ColumnDef{
			Name:        safe,
			Type:        d.ColumnType(c.Kind),
			Source:      c.Name,
			SourceIndex: i,
			Kind:        c.Kind,
		})
	}

	if len(s.Columns) <= 1 {
		return Schema{}, fmt.Errorf("%w: table %q", ErrNoColumns, s.Table)
	}
	return s, nil
}

// createTableSQL renders CREATE TABLE for s.
func createTableSQL(d Dialect, s Schema) string {
	defs := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		defs[i] = d.Quote(c.Name) + " " + c.Type
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", d.Quote(s.Table), strings.Join(defs, ", "))
}

func dropTableSQL(d Dialect, table string) string {
	return "DROP TABLE IF EXISTS " + d.Quote(table)
}

func columnList(d Dialect, cols []ColumnDef) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = d.Quote(c.Name)
	}
	return strings.Join(quoted, ", ")
}

func selectSQL(d Dialect, table string, cols []ColumnDef) string {
	return fmt.Sprintf("SELECT %s FROM %s", columnList(d, cols), d.Quote(table))
}

// insertSQL renders a multi-row INSERT with rows*len(cols) placeholders.
func insertSQL(d Dialect, table string, cols []ColumnDef, rows int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", d.Quote(table), columnList(d, cols))
	n := 1
	for r := 0; r < rows; r++ {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for c := range cols {
			if c > 0 {
				b.WriteString(", ")
			}
			b.WriteString(d.Placeholder(n))
			n++
		}
		b.WriteByte(')')
	}
	return b.String()
}
