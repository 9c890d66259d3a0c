// Package importer turns CSV and Excel files into dataset tables.
//
// Loading happens in two phases. Every cell is first read as text, with NA
// markers such as "N/A" and "null" read as missing, then each column is
// independently promoted to a numeric kind when all of its values parse as
// numbers. Progress and failures go to a report.Reporter.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/JonMunkholm/PreChart2DB/internal/dataset"
	"github.com/JonMunkholm/PreChart2DB/internal/report"
)

var (
	// ErrFileNotFound is returned when a path source does not exist.
	ErrFileNotFound = errors.New("file not found")
	// ErrUnsupportedFormat is returned for extensions other than
	// .csv, .xlsx and .xls.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrParse wraps every failure to read the file's content.
	ErrParse = errors.New("parse error")
	// ErrFileTooLarge is returned when a file exceeds Importer.MaxFileSize.
	ErrFileTooLarge = errors.New("file too large")
)

// Supported extensions.
const (
	ExtCSV  = ".csv"
	ExtXLSX = ".xlsx"
	ExtXLS  = ".xls"
)

// DefaultDelimiter is used when Options.Delimiter is empty.
const DefaultDelimiter = ","

// Delimiters lists the CSV delimiters offered by the front-ends.
var Delimiters = []string{",", ";", "\t"}

// Source is a named file to import. The name's extension selects the format.
type Source struct {
	Name string

	path   string
	reader io.Reader
}

// FromPath returns a Source reading the file at path.
func FromPath(path string) Source {
	return Source{Name: filepath.Base(path), path: path}
}

// FromReader returns a Source reading r, named name (e.g. an uploaded file).
func FromReader(name string, r io.Reader) Source {
	return Source{Name: filepath.Base(name), reader: r}
}

// Ext returns the lower-cased file extension.
func (s Source) Ext() string {
	return strings.ToLower(filepath.Ext(s.Name))
}

// Stem returns the file name without extension.
func (s Source) Stem() string {
	return strings.TrimSuffix(s.Name, filepath.Ext(s.Name))
}

func (s Source) open() (io.ReadCloser, error) {
	if s.reader != nil {
		if rc, ok := s.reader.(io.ReadCloser); ok {
			return rc, nil
		}
		return io.NopCloser(s.reader), nil
	}
	if s.path == "" {
		return nil, fmt.Errorf("%w: no file given", ErrFileNotFound)
	}
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, s.Name)
		}
		return nil, err
	}
	return f, nil
}

// Options controls how a file is read.
type Options struct {
	// Delimiter separates CSV fields. Must be a single character.
	Delimiter string
	// Encoding is the CSV text encoding label (utf-8, euc-kr, cp949, ...).
	Encoding string
	// Sheet selects an Excel worksheet by name. Empty means the first sheet.
	Sheet string
}

func (o Options) withDefaults() Options {
	if o.Delimiter == "" {
		o.Delimiter = DefaultDelimiter
	}
	if o.Encoding == "" {
		o.Encoding = DefaultEncoding
	}
	return o
}

func (o Options) delimiterRune() (rune, error) {
	r, size := utf8.DecodeRuneInString(o.Delimiter)
	if size != len(o.Delimiter) || r == utf8.RuneError || r == '"' || r == '\r' || r == '\n' {
		return 0, fmt.Errorf("%w: invalid delimiter %q", ErrParse, o.Delimiter)
	}
	return r, nil
}

// Importer loads files into tables.
type Importer struct {
	reporter report.Reporter

	// MaxFileSize limits how many bytes are read from a source. Zero means
	// no limit.
	MaxFileSize int64
}

// New returns an Importer reporting to r (report.Discard if nil).
func New(r report.Reporter) *Importer {
	if r == nil {
		r = report.Discard
	}
	return &Importer{reporter: r}
}

// Load reads src into a table. Failures are reported and returned wrapping
// ErrFileNotFound, ErrUnsupportedFormat, ErrParse or ErrFileTooLarge.
func (im *Importer) Load(ctx context.Context, src Source, opts Options) (*dataset.Table, error) {
	t, err := im.load(ctx, src, opts.withDefaults())
	if err != nil {
		switch {
		case errors.Is(err, ErrUnsupportedFormat):
			im.reporter.Report(fmt.Sprintf("Unsupported file format: %s", src.Ext()))
		case errors.Is(err, ErrFileNotFound):
			im.reporter.Report(fmt.Sprintf("File not found: %s", src.Name))
		default:
			im.reporter.Report(fmt.Sprintf("Error while loading %s: %v", src.Name, err))
		}
		return nil, err
	}

	im.reporter.Report(fmt.Sprintf("File read and types converted. %d rows, columns: %s",
		t.NumRows(), strings.Join(t.ColumnNames(), ", ")))
	return t, nil
}

func (im *Importer) load(ctx context.Context, src Source, opts Options) (*dataset.Table, error) {
	ext := src.Ext()
	switch ext {
	case ExtCSV, ExtXLSX, ExtXLS:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	rc, err := src.open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var r io.Reader = rc
	if im.MaxFileSize > 0 {
		r = NewSizeLimitReader(rc, im.MaxFileSize)
	}

	var records [][]string
	switch ext {
	case ExtCSV:
		records, err = readCSV(ctx, r, opts)
		if err == nil {
			im.reporter.Report(fmt.Sprintf("CSV file loaded: %s", src.Name))
		}
	default:
		records, err = readExcel(ctx, r, ext, opts.Sheet)
		if err == nil {
			im.reporter.Report(fmt.Sprintf("Excel file loaded: %s", src.Name))
		}
	}
	if err != nil {
		if errors.Is(err, ErrFileTooLarge) || errors.Is(err, ErrParse) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	return buildTable(records)
}

// buildTable turns header + data records into a typed table.
func buildTable(records [][]string) (*dataset.Table, error) {
	if len(records) == 0 || len(records[0]) == 0 {
		return nil, fmt.Errorf("%w: no columns to parse from file", ErrParse)
	}

	header := normalizeHeader(records[0])
	rows := records[1:]

	columns := make([][]string, len(header))
	for c := range columns {
		columns[c] = make([]string, len(rows))
	}
	for r, row := range rows {
		for c := range header {
			if c < len(row) && !dataset.IsNA(row[c]) {
				columns[c][r] = row[c]
			}
		}
	}

	t := dataset.New()
	for c, name := range header {
		if err := t.AddColumn(dataset.ColumnFromText(name, columns[c])); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParse, err)
		}
	}
	return t, nil
}
