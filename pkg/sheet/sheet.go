// Package sheet reads and writes the leads spreadsheet.
//
// Rows and columns are 1-based, as in a spreadsheet UI: the header occupies
// row 1 and the first lead is row 2.
package sheet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
)

// ErrColumnNotFound is returned when a header name is absent from the sheet.
var ErrColumnNotFound = errors.New("column not found")

// Record is one data row keyed by header name.
type Record struct {
	Fields map[string]string
	Row    int
}

// Sheet is a worksheet of string cells.
type Sheet interface {
	// Headers returns the values of row 1.
	Headers(ctx context.Context) ([]string, error)
	// Records returns every data row below the header.
	Records(ctx context.Context) ([]Record, error)
	// UpdateCell overwrites a single cell.
	UpdateCell(ctx context.Context, row, col int, value string) error
	Close() error
}

// ColumnIndex returns the 1-based position of name in headers.
func ColumnIndex(headers []string, name string) (int, error) {
	i := slices.Index(headers, name)
	if i < 0 {
		return 0, fmt.Errorf("%w: %q", ErrColumnNotFound, name)
	}
	return i + 1, nil
}

// EnsureColumns appends any of names missing from headers to row 1 and returns
// the updated header list.
func EnsureColumns(ctx context.Context, s Sheet, headers []string, names []string, logger *slog.Logger) ([]string, error) {
	out := slices.Clone(headers)
	for _, name := range names {
		if slices.Contains(out, name) {
			continue
		}
		if logger != nil {
			logger.Info("adding column", "name", name, "position", len(out)+1)
		}
		if err := s.UpdateCell(ctx, 1, len(out)+1, name); err != nil {
			return out, fmt.Errorf("adding column %q: %w", name, err)
		}
		out = append(out, name)
	}
	return out, nil
}

// recordsFromValues converts a grid whose first row is the header into records.
// Short rows are padded with empty strings; duplicate or blank headers keep the
// first occurrence.
func recordsFromValues(values [][]string) []Record {
	if len(values) == 0 {
		return nil
	}
	headers := values[0]
	records := make([]Record, 0, len(values)-1)
	for i, row := range values[1:] {
		fields := make(map[string]string, len(headers))
		for c, h := range headers {
			if h == "" {
				continue
			}
			if _, dup := fields[h]; dup {
				continue
			}
			if c < len(row) {
				fields[h] = row[c]
			} else {
				fields[h] = ""
			}
		}
		records = append(records, Record{Row: i + 2, Fields: fields})
	}
	return records
}

// ColumnLetter converts a 1-based column index to A1 notation letters.
func ColumnLetter(col int) string {
	var b []byte
	for col > 0 {
		col--
		b = append([]byte{byte('A' + col%26)}, b...)
		col /= 26
	}
	return string(b)
}
