package importer

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/korean"

	"github.com/JonMunkholm/PreChart2DB/internal/dataset"
	"github.com/JonMunkholm/PreChart2DB/internal/report"
)

func load(t *testing.T, name, content string, opts Options) (*dataset.Table, *report.Recorder, error) {
	t.Helper()
	rec := report.NewRecorder(0)
	tbl, err := New(rec).Load(context.Background(), FromReader(name, strings.NewReader(content)), opts)
	return tbl, rec, err
}

func rowInterfaces(tbl *dataset.Table, i int) []any {
	row := tbl.Row(i)
	out := make([]any, len(row))
	for c, v := range row {
		out[c] = v.Interface()
	}
	return out
}

func kinds(tbl *dataset.Table) []dataset.Kind {
	out := make([]dataset.Kind, 0, tbl.NumCols())
	for _, c := range tbl.Columns() {
		out = append(out, c.Kind)
	}
	return out
}

func TestLoad_CSVCoercesColumnsIndependently(t *testing.T) {
	tbl, rec, err := load(t, "people.csv", "id,name,score,code\n1,Alice,1.5,007\n2,Bob,,008\n", Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "name", "score", "code"}, tbl.ColumnNames())
	assert.Equal(t, []dataset.Kind{dataset.KindInt, dataset.KindString, dataset.KindFloat, dataset.KindString}, kinds(tbl))
	assert.Equal(t, 2, tbl.NumRows())

	v, _ := tbl.Cell(1, 2)
	assert.True(t, v.IsMissing())

	assert.Contains(t, rec.Messages(), "CSV file loaded: people.csv")
	assert.Equal(t, "File read and types converted. 2 rows, columns: id, name, score, code", rec.Last())
}

func TestLoad_NAMarkersAreMissing(t *testing.T) {
	tbl, _, err := load(t, "values.csv", "v,label\n1,a\nNA,N/A\n3,null\nN/A,na\n", Options{})
	require.NoError(t, err)

	assert.Equal(t, []dataset.Kind{dataset.KindInt, dataset.KindString}, kinds(tbl))
	v, _ := tbl.Column("v")
	assert.Equal(t, 2, v.MissingCount())
	label, _ := tbl.Column("label")
	assert.Equal(t, 2, label.MissingCount())
	cell, _ := tbl.Cell(3, 1)
	assert.Equal(t, "na", cell.String(), "markers match exactly")
}

func TestLoad_SemicolonCP949(t *testing.T) {
	utf8Text := "이름;나이;도시\n홍길동;30;서울\n김철수;25;부산\n"
	encoded, err := korean.EUCKR.NewEncoder().String(utf8Text)
	require.NoError(t, err)

	tbl, _, err := load(t, "korean.csv", encoded, Options{Delimiter: ";", Encoding: "cp949"})
	require.NoError(t, err)

	plain, _, err := load(t, "plain.csv", strings.ReplaceAll(utf8Text, ";", ","), Options{})
	require.NoError(t, err)

	assert.Equal(t, plain.NumCols(), tbl.NumCols())
	assert.Equal(t, plain.NumRows(), tbl.NumRows())
	assert.Equal(t, []string{"이름", "나이", "도시"}, tbl.ColumnNames())
	v, _ := tbl.Cell(0, 0)
	assert.Equal(t, "홍길동", v.String())
	assert.Equal(t, dataset.KindInt, tbl.Columns()[1].Kind)
}

func TestLoad_WrongEncodingIsParseError(t *testing.T) {
	encoded, err := korean.EUCKR.NewEncoder().String("이름\n홍길동\n")
	require.NoError(t, err)

	_, rec, err := load(t, "korean.csv", encoded, Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrParse))
	assert.True(t, errors.Is(err, ErrInvalidUTF8))
	assert.Contains(t, rec.Last(), "Error while loading korean.csv")
}

func TestLoad_TabDelimiterAndBOM(t *testing.T) {
	tbl, _, err := load(t, "tabs.csv", "\ufeffa\tb\n1\tx\n", Options{Delimiter: "\t"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, tbl.ColumnNames())
}

func TestLoad_HeaderNormalization(t *testing.T) {
	tbl, _, err := load(t, "dups.csv", "a,,a,a\n1,2,3\n", Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "Unnamed: 1", "a.1", "a.2"}, tbl.ColumnNames())

	v, _ := tbl.Cell(0, 3)
	assert.True(t, v.IsMissing(), "short rows are padded")
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		opts    Options
		want    error
		message string
	}{
		{name: "unsupported extension", file: "notes.txt", content: "a", want: ErrUnsupportedFormat, message: "Unsupported file format: .txt"},
		{name: "empty file", file: "empty.csv", content: "", want: ErrParse},
		{name: "too many fields", file: "wide.csv", content: "a,b\n1,2,3\n", want: ErrParse},
		{name: "bad delimiter", file: "x.csv", content: "a\n1\n", opts: Options{Delimiter: ";;"}, want: ErrParse},
		{name: "unknown encoding", file: "x.csv", content: "a\n1\n", opts: Options{Encoding: "klingon"}, want: ErrParse},
		{name: "not a workbook", file: "x.xlsx", content: "plain text", want: ErrParse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, rec, err := load(t, tt.file, tt.content, tt.opts)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Load() error = %v, want %v", err, tt.want)
			}
			if tbl != nil {
				t.Error("expected no table on error")
			}
			if tt.message != "" && rec.Last() != tt.message {
				t.Errorf("reported %q, want %q", rec.Last(), tt.message)
			}
		})
	}
}

func TestLoad_FromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv")
	require.NoError(t, os.WriteFile(path, []byte("x,y\n1,2\n"), 0o600))

	im := New(nil)
	tbl, err := im.Load(context.Background(), FromPath(path), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, tbl.NumRows())

	_, err = im.Load(context.Background(), FromPath(filepath.Join(dir, "missing.csv")), Options{})
	assert.True(t, errors.Is(err, ErrFileNotFound))
}

func TestLoad_MaxFileSize(t *testing.T) {
	im := New(nil)
	im.MaxFileSize = 8

	_, err := im.Load(context.Background(), FromReader("big.csv", strings.NewReader("a,b\n1,2\n3,4\n5,6\n")), Options{})
	assert.True(t, errors.Is(err, ErrFileTooLarge))
}

func TestLoad_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(nil).Load(ctx, FromReader("a.csv", strings.NewReader("a\n1\n")), Options{})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestSource_Stem(t *testing.T) {
	src := FromPath("/tmp/uploads/Sales Report.xlsx")
	assert.Equal(t, "Sales Report.xlsx", src.Name)
	assert.Equal(t, "Sales Report", src.Stem())
	assert.Equal(t, ".xlsx", src.Ext())
}

// ----------------------------------------------------------------------------
// Excel
// ----------------------------------------------------------------------------

func workbook(t *testing.T, sheets map[string][][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	first := true
	for name, rows := range sheets {
		if first {
			require.NoError(t, f.SetSheetName("Sheet1", name))
			first = false
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for r, row := range rows {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetSheetRow(name, cell, &row))
		}
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestLoad_XLSX(t *testing.T) {
	data := workbook(t, map[string][][]any{
		"People": {
			{"id", "name", "ratio"},
			{1, "Alice", 0.5},
			{},
			{2, "Bob", 0.25},
		},
	})

	rec := report.NewRecorder(0)
	tbl, err := New(rec).Load(context.Background(), FromReader("people.xlsx", bytes.NewReader(data)), Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "name", "ratio"}, tbl.ColumnNames())
	assert.Equal(t, 2, tbl.NumRows(), "blank rows are dropped")
	assert.Equal(t, []dataset.Kind{dataset.KindInt, dataset.KindString, dataset.KindFloat}, kinds(tbl))
	assert.Contains(t, rec.Messages(), "Excel file loaded: people.xlsx")
}

func TestLoad_XLSXSheetSelection(t *testing.T) {
	data := workbook(t, map[string][][]any{
		"First":  {{"a"}, {"1"}},
		"Second": {{"b", "c"}, {"x", "y"}},
	})

	im := New(nil)
	tbl, err := im.Load(context.Background(), FromReader("book.xlsx", bytes.NewReader(data)), Options{Sheet: "Second"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, tbl.ColumnNames())

	_, err = im.Load(context.Background(), FromReader("book.xlsx", bytes.NewReader(data)), Options{Sheet: "Nope"})
	assert.True(t, errors.Is(err, ErrSheetNotFound))
	assert.True(t, errors.Is(err, ErrParse))
}

func TestLoad_XLSXStyledCellsKeepRawValues(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	const sheet = "Sheet1"

	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"amount", "share", "joined", "logged"}))
	money, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	require.NoError(t, err)
	percent, err := f.NewStyle(&excelize.Style{NumFmt: 10})
	require.NoError(t, err)
	dayFmt := "yyyy/mm/dd"
	day, err := f.NewStyle(&excelize.Style{CustomNumFmt: &dayFmt})
	require.NoError(t, err)

	cells := []struct {
		cell  string
		value any
		style int
	}{
		{"A2", 1234.5, money},
		{"A3", 2000, money},
		{"B2", 0.125, percent},
		{"B3", 1, percent},
		{"C2", 45293, day},
		{"C3", 45294.5, day},
	}
	for _, c := range cells {
		require.NoError(t, f.SetCellValue(sheet, c.cell, c.value))
		require.NoError(t, f.SetCellStyle(sheet, c.cell, c.cell, c.style))
	}
	require.NoError(t, f.SetCellValue(sheet, "D2", time.Date(2024, 3, 4, 15, 30, 0, 0, time.UTC)))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	tbl, err := New(nil).Load(context.Background(), FromReader("styled.xlsx", bytes.NewReader(buf.Bytes())), Options{})
	require.NoError(t, err)

	assert.Equal(t, []dataset.Kind{dataset.KindFloat, dataset.KindFloat, dataset.KindString, dataset.KindString}, kinds(tbl))
	assert.Equal(t, []any{1234.5, 0.125, "2024-01-02 00:00:00", "2024-03-04 15:30:00"}, rowInterfaces(tbl, 0))
	assert.Equal(t, []any{float64(2000), float64(1), "2024-01-03 12:00:00", nil}, rowInterfaces(tbl, 1))
}

func TestClassifyNumFmt(t *testing.T) {
	code := func(s string) *string { return &s }
	tests := []struct {
		name   string
		id     int
		custom *string
		want   numFmtClass
	}{
		{name: "general", id: 0, want: numFmtNumber},
		{name: "thousands", id: 4, want: numFmtNumber},
		{name: "percent", id: 10, want: numFmtNumber},
		{name: "short date", id: 14, want: numFmtDate},
		{name: "date time", id: 22, want: numFmtDate},
		{name: "time", id: 21, want: numFmtTime},
		{name: "custom date", id: 164, custom: code("yyyy-mm-dd"), want: numFmtDate},
		{name: "custom minutes", id: 165, custom: code("mm:ss"), want: numFmtTime},
		{name: "custom month name", id: 166, custom: code("mmm"), want: numFmtDate},
		{name: "quoted letters", id: 167, custom: code(`#,##0 "days"`), want: numFmtNumber},
		{name: "currency locale", id: 168, custom: code(`[$₩-412]#,##0;[Red]-#,##0`), want: numFmtNumber},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyNumFmt(tt.id, tt.custom))
		})
	}
}

func TestLoad_XLS(t *testing.T) {
	path := filepath.Join("testdata", "people.xls")

	rec := report.NewRecorder(0)
	tbl, err := New(rec).Load(context.Background(), FromPath(path), Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "amount", "name", "joined"}, tbl.ColumnNames())
	assert.Equal(t, []dataset.Kind{dataset.KindInt, dataset.KindFloat, dataset.KindString, dataset.KindString}, kinds(tbl))
	assert.Equal(t, []any{int64(1), 1234.5, "Alice", "2024-01-02 00:00:00"}, rowInterfaces(tbl, 0))
	assert.Equal(t, []any{int64(2), float64(2000), "Bob", "2024-01-03 00:00:00"}, rowInterfaces(tbl, 1))
	assert.Contains(t, rec.Messages(), "Excel file loaded: people.xls")

	notes, err := New(nil).Load(context.Background(), FromPath(path), Options{Sheet: "Notes"})
	require.NoError(t, err)
	assert.Equal(t, []string{"note"}, notes.ColumnNames())
	assert.Equal(t, []any{"hello"}, rowInterfaces(notes, 0))

	_, err = New(nil).Load(context.Background(), FromPath(path), Options{Sheet: "Summary"})
	assert.True(t, errors.Is(err, ErrSheetNotFound))
}

func TestXLSCell(t *testing.T) {
	assert.Equal(t, "2024-01-02 00:00:00", xlsCell("2024-01-02T00:00:00Z"))
	assert.Equal(t, "1234.5", xlsCell("1234.5"))
	assert.Equal(t, "Alice", xlsCell("Alice"))
}

func TestSquareRows(t *testing.T) {
	got := squareRows([][]string{
		{},
		{"a"},
		{"1", "2"},
		{"", ""},
	})
	assert.Equal(t, [][]string{{"a", "Unnamed: 1"}, {"1", "2"}}, got)
	assert.Nil(t, squareRows([][]string{{""}}))
}
