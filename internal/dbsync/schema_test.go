package dbsync

import (
	"errors"
	"strings"
	"testing"

	"github.com/JonMunkholm/PreChart2DB/internal/dataset"
)

func TestSanitizeNames(t *testing.T) {
	tests := []struct {
		input     string
		wantTable string
		wantCol   string
	}{
		{input: "my table!", wantTable: "my_table", wantCol: "my_table"},
		{input: "Sales_2024", wantTable: "Sales_2024", wantCol: "Sales_2024"},
		{input: "!!!", wantTable: UntitledTable, wantCol: ""},
		{input: "", wantTable: UntitledTable, wantCol: ""},
		{input: "이름", wantTable: "이름", wantCol: "이름"},
		{input: "a-b.c", wantTable: "abc", wantCol: "abc"},
		{input: "Unnamed: 1", wantTable: "Unnamed_1", wantCol: "Unnamed_1"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := SanitizeTableName(tt.input); got != tt.wantTable {
				t.Errorf("SanitizeTableName(%q) = %q, want %q", tt.input, got, tt.wantTable)
			}
			if got := SanitizeColumnName(tt.input); got != tt.wantCol {
				t.Errorf("SanitizeColumnName(%q) = %q, want %q", tt.input, got, tt.wantCol)
			}
		})
	}
}

func table(t *testing.T, cols ...*dataset.Column) *dataset.Table {
	t.Helper()
	tbl := dataset.New()
	for _, c := range cols {
		if err := tbl.AddColumn(c); err != nil {
			t.Fatalf("AddColumn: %v", err)
		}
	}
	return tbl
}

func typed(name string, kind dataset.Kind, n int) *dataset.Column {
	return &dataset.Column{Name: name, Kind: kind, Values: make([]dataset.Value, n)}
}

func TestDeriveSchema_Types(t *testing.T) {
	tbl := table(t,
		typed("i", dataset.KindInt, 1),
		typed("f", dataset.KindFloat, 1),
		typed("d", dataset.KindDatetime, 1),
		typed("b", dataset.KindBool, 1),
		typed("s", dataset.KindString, 1),
		typed("u", dataset.Kind(99), 1),
	)

	tests := []struct {
		dialect Dialect
		want    []string
	}{
		{mysqlDialect{}, []string{"INT AUTO_INCREMENT PRIMARY KEY", "BIGINT", "DOUBLE", "DATETIME", "BOOLEAN", "VARCHAR(255)", "VARCHAR(255)"}},
		{postgresDialect{}, []string{"INTEGER GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY", "BIGINT", "DOUBLE PRECISION", "TIMESTAMP", "BOOLEAN", "VARCHAR(255)", "VARCHAR(255)"}},
		{sqliteDialect{}, []string{"INTEGER PRIMARY KEY AUTOINCREMENT", "BIGINT", "DOUBLE", "DATETIME", "BOOLEAN", "VARCHAR(255)", "VARCHAR(255)"}},
	}

	for _, tt := range tests {
		t.Run(tt.dialect.Name(), func(t *testing.T) {
			s, err := deriveSchema(tt.dialect, tbl, "t", "row_id")
			if err != nil {
				t.Fatalf("deriveSchema: %v", err)
			}
			if len(s.Columns) != len(tt.want) {
				t.Fatalf("got %d columns, want %d", len(s.Columns), len(tt.want))
			}
			if !s.Columns[0].Identity || s.Columns[0].Name != "row_id" {
				t.Errorf("first column = %+v, want identity row_id", s.Columns[0])
			}
			for i, want := range tt.want {
				if s.Columns[i].Type != want {
					t.Errorf("column %d type = %q, want %q", i, s.Columns[i].Type, want)
				}
			}
		})
	}
}

func TestDeriveSchema_Errors(t *testing.T) {
	tests := []struct {
		name     string
		cols     []string
		identity string
		want     error
	}{
		{name: "only unnamed columns", cols: []string{"!!", "??"}, identity: "id", want: ErrNoColumns},
		{name: "no columns", cols: nil, identity: "id", want: ErrNoColumns},
		{name: "two columns same sanitized name", cols: []string{"a b", "a_b"}, identity: "id", want: ErrColumnCollision},
		{name: "case-insensitive clash", cols: []string{"Name", "name"}, identity: "id", want: ErrColumnCollision},
		{name: "source id clashes with identity", cols: []string{"id", "name"}, identity: "id", want: ErrColumnCollision},
		{name: "renamed identity avoids clash", cols: []string{"id", "name"}, identity: "row_id", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cols []*dataset.Column
			for _, c := range tt.cols {
				cols = append(cols, typed(c, dataset.KindString, 0))
			}
			_, err := deriveSchema(mysqlDialect{}, table(t, cols...), "t", tt.identity)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDeriveSchema_DropsUnnamedColumns(t *testing.T) {
	tbl := table(t, typed("name", dataset.KindString, 0), typed("%%", dataset.KindInt, 0), typed("age", dataset.KindInt, 0))

	s, err := deriveSchema(sqliteDialect{}, tbl, "my table!", "id")
	if err != nil {
		t.Fatalf("deriveSchema: %v", err)
	}
	if s.Table != "my_table" {
		t.Errorf("table = %q, want my_table", s.Table)
	}
	data := s.DataColumns()
	if len(data) != 2 || data[0].Name != "name" || data[1].Name != "age" || data[1].SourceIndex != 2 {
		t.Errorf("data columns = %+v", data)
	}
}

func TestStatements(t *testing.T) {
	s := Schema{Table: "People", Columns: []ColumnDef{
		{Name: "id", Type: "INT AUTO_INCREMENT PRIMARY KEY", Identity: true},
		{Name: "name", Type: "VARCHAR(255)"},
		{Name: "age", Type: "BIGINT"},
	}}

	if got, want := createTableSQL(mysqlDialect{}, s), "CREATE TABLE `People` (`id` INT AUTO_INCREMENT PRIMARY KEY, `name` VARCHAR(255), `age` BIGINT)"; got != want {
		t.Errorf("create = %q, want %q", got, want)
	}
	if got, want := insertSQL(postgresDialect{}, "People", s.DataColumns(), 2), `INSERT INTO "People" ("name", "age") VALUES ($1, $2), ($3, $4)`; got != want {
		t.Errorf("insert = %q, want %q", got, want)
	}
	if got := selectSQL(sqliteDialect{}, "People", s.DataColumns()); !strings.HasPrefix(got, `SELECT "name", "age" FROM "People"`) {
		t.Errorf("select = %q", got)
	}
	if got := (mysqlDialect{}).Quote("we`ird"); got != "`we``ird`" {
		t.Errorf("quote = %q", got)
	}
}

func TestDialectFor(t *testing.T) {
	for _, name := range []string{"mysql", "", "postgres", "pgx", "sqlite", "sqlite3"} {
		if _, err := DialectFor(name); err != nil {
			t.Errorf("DialectFor(%q): %v", name, err)
		}
	}
	if _, err := DialectFor("oracle"); !errors.Is(err, ErrUnsupportedDriver) {
		t.Errorf("expected ErrUnsupportedDriver, got %v", err)
	}
}
