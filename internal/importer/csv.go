package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
)

// readCSV reads every record of a delimited text file as strings.
// Rows shorter than the header are padded later; longer rows are an error.
func readCSV(ctx context.Context, r io.Reader, opts Options) ([][]string, error) {
	comma, err := opts.delimiterRune()
	if err != nil {
		return nil, err
	}
	decoded, err := decodeReader(r, opts.Encoding)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(decoded)
	cr.Comma = comma
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	var records [][]string
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				return nil, fmt.Errorf("%w: %v", ErrParse, err)
			}
			return nil, err
		}
		if len(records) > 0 {
			if len(rec) > len(records[0]) {
				line, _ := cr.FieldPos(0)
				return nil, fmt.Errorf("%w: line %d: expected %d fields, saw %d",
					ErrParse, line, len(records[0]), len(rec))
			}
			if isBlankRow(rec) && len(rec) == 1 {
				continue
			}
		}
		records = append(records, rec)
	}
	return records, nil
}
