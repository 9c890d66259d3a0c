package importer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/PreChart2DB/internal/dataset"
)

// ErrSheetNotFound is returned (wrapped in ErrParse) when a named worksheet
// does not exist.
var ErrSheetNotFound = fmt.Errorf("%w: sheet not found", ErrParse)

// readExcel reads one worksheet as strings. Rows are widened to the widest
// row, naming extra header cells "Unnamed: N". Fully blank rows are dropped.
func readExcel(ctx context.Context, r io.Reader, ext, sheet string) ([][]string, error) {
	// Both workbook formats need random access.
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rows [][]string
	if ext == ExtXLS {
		rows, err = readXLS(data, sheet)
	} else {
		rows, err = readXLSX(data, sheet)
	}
	if err != nil {
		return nil, err
	}
	return squareRows(rows), nil
}

// readXLSX reads raw cell values so number formats such as thousands
// separators or currency do not turn numeric cells into text. Cells styled
// with a date or time format are rendered as datetime text instead of their
// serial number.
func readXLSX(data []byte, sheet string) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: open workbook: %v", ErrParse, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrParse)
	}
	name := sheets[0]
	if sheet != "" {
		if !slices.Contains(sheets, sheet) {
			return nil, fmt.Errorf("%w: %q (available: %v)", ErrSheetNotFound, sheet, sheets)
		}
		name = sheet
	}

	rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: read sheet %q: %v", ErrParse, name, err)
	}

	dates := newDateCells(f, name)
	for r, row := range rows {
		for c, v := range row {
			if text, ok := dates.render(r, c, v); ok {
				row[c] = text
			}
		}
	}
	return rows, nil
}

type numFmtClass int

const (
	numFmtNumber numFmtClass = iota
	numFmtDate
	numFmtTime
)

// dateCells renders serial numbers of date-styled cells. Style lookups are
// cached per style index.
type dateCells struct {
	f        *excelize.File
	sheet    string
	date1904 bool
	styles   map[int]numFmtClass
}

func newDateCells(f *excelize.File, sheet string) *dateCells {
	d := &dateCells{f: f, sheet: sheet, styles: make(map[int]numFmtClass)}
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		d.date1904 = *props.Date1904
	}
	return d
}

func (d *dateCells) render(row, col int, raw string) (string, bool) {
	if raw == "" {
		return "", false
	}
	serial, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return "", false
	}
	cell, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return "", false
	}
	styleID, err := d.f.GetCellStyle(d.sheet, cell)
	if err != nil {
		return "", false
	}
	class, seen := d.styles[styleID]
	if !seen {
		if style, err := d.f.GetStyle(styleID); err == nil && style != nil {
			class = classifyNumFmt(style.NumFmt, style.CustomNumFmt)
		}
		d.styles[styleID] = class
	}
	if class == numFmtNumber {
		return "", false
	}

	t, err := excelize.ExcelDateToTime(serial, d.date1904)
	if err != nil {
		return "", false
	}
	if class == numFmtTime {
		return t.Format("15:04:05"), true
	}
	return t.Format(dataset.DatetimeLayout), true
}

// classifyNumFmt tells date and time formats apart from number formats.
// Built-in ids follow the OOXML numFmt table, including the CJK date ids.
func classifyNumFmt(id int, custom *string) numFmtClass {
	if custom != nil && *custom != "" {
		return classifyFormatCode(*custom)
	}
	switch {
	case id >= 14 && id <= 17, id == 22, id >= 27 && id <= 36, id >= 50 && id <= 58:
		return numFmtDate
	case id >= 18 && id <= 21, id >= 45 && id <= 47:
		return numFmtTime
	}
	return numFmtNumber
}

// classifyFormatCode inspects a custom format code, ignoring quoted text,
// escaped characters and bracketed sections such as colors and locales.
func classifyFormatCode(code string) numFmtClass {
	var b strings.Builder
	inQuote, inBracket, escaped := false, false, false
	for _, r := range strings.ToLower(code) {
		switch {
		case escaped:
			escaped = false
		case inQuote:
			inQuote = r != '"'
		case inBracket:
			inBracket = r != ']'
		case r == '\\':
			escaped = true
		case r == '"':
			inQuote = true
		case r == '[':
			inBracket = true
		case r == ';':
			// Only the positive section decides.
			return classifyLetters(b.String())
		default:
			b.WriteRune(r)
		}
	}
	return classifyLetters(b.String())
}

func classifyLetters(s string) numFmtClass {
	switch {
	case strings.ContainsAny(s, "yd"):
		return numFmtDate
	case strings.ContainsAny(s, "hs"):
		return numFmtTime
	case strings.ContainsRune(s, 'm'):
		return numFmtDate
	}
	return numFmtNumber
}

// xlsMaxCols is the BIFF8 column limit, used when a sheet stores no row
// records to tell how wide its rows are.
const xlsMaxCols = 256

func readXLS(data []byte, sheet string) ([][]string, error) {
	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("%w: open workbook: %v", ErrParse, err)
	}
	if wb == nil || wb.NumSheets() == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrParse)
	}

	var ws *xls.WorkSheet
	var names []string
	for i := 0; i < wb.NumSheets(); i++ {
		s := wb.GetSheet(i)
		if s == nil {
			continue
		}
		names = append(names, s.Name)
		if ws == nil && (sheet == "" || s.Name == sheet) {
			ws = s
		}
	}
	if ws == nil {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrSheetNotFound, sheet, names)
	}

	sheetRows := make([]*xls.Row, int(ws.MaxRow)+1)
	width := 0
	for i := range sheetRows {
		row := xlsRow(ws, i)
		if row == nil {
			continue
		}
		sheetRows[i] = row
		width = max(width, row.LastCol())
	}
	if width == 0 {
		width = xlsMaxCols
	}

	rows := make([][]string, len(sheetRows))
	for i, row := range sheetRows {
		if row == nil {
			continue
		}
		cells := make([]string, width)
		last := 0
		for c := range cells {
			cells[c] = xlsCell(row.Col(c))
			if cells[c] != "" {
				last = c + 1
			}
		}
		rows[i] = cells[:last]
	}
	return rows, nil
}

// xlsRow returns row i, or nil when the sheet stores nothing for it. The
// reader dereferences missing rows, so the panic is recovered here.
func xlsRow(ws *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return ws.Row(i)
}

// xlsCell normalises a legacy cell. Numbers already come back unformatted;
// the reader renders date-styled cells as RFC 3339, which is rewritten in
// the datetime layout used for every other source.
func xlsCell(v string) string {
	if len(v) >= 20 && v[4] == '-' && v[10] == 'T' {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t.Format(dataset.DatetimeLayout)
		}
	}
	return v
}

// squareRows drops leading and interior blank rows after the header and
// widens the header to the widest data row.
func squareRows(rows [][]string) [][]string {
	// Skip blank rows before the header.
	for len(rows) > 0 && isBlankRow(rows[0]) {
		rows = rows[1:]
	}
	if len(rows) == 0 {
		return nil
	}

	out := [][]string{rows[0]}
	width := len(rows[0])
	for _, row := range rows[1:] {
		if isBlankRow(row) {
			continue
		}
		width = max(width, len(row))
		out = append(out, row)
	}
	out[0] = widenHeader(slices.Clone(out[0]), width)
	return out
}
