package sheet

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS cells (
	row_num INTEGER NOT NULL,
	col_num INTEGER NOT NULL,
	value   TEXT    NOT NULL DEFAULT '',
	PRIMARY KEY (row_num, col_num)
);`

// SQLite is a worksheet stored in a local SQLite database.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens or creates a sheet database at path. ":memory:" gives a
// throwaway sheet.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	dsn := path
	if path != ":memory:" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("resolve db path: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(abs), 0o750); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
		dsn = abs
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("migrate sqlite sheet: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) values(ctx context.Context) ([][]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT row_num, col_num, value FROM cells ORDER BY row_num, col_num`)
	if err != nil {
		return nil, fmt.Errorf("query cells: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only

	var grid [][]string
	for rows.Next() {
		var r, c int
		var v string
		if err := rows.Scan(&r, &c, &v); err != nil {
			return nil, fmt.Errorf("scan cell: %w", err)
		}
		for len(grid) < r {
			grid = append(grid, nil)
		}
		row := grid[r-1]
		for len(row) < c {
			row = append(row, "")
		}
		row[c-1] = v
		grid[r-1] = row
	}
	return grid, rows.Err()
}

// Headers returns row 1.
func (s *SQLite) Headers(ctx context.Context) ([]string, error) {
	grid, err := s.values(ctx)
	if err != nil {
		return nil, err
	}
	if len(grid) == 0 {
		return nil, nil
	}
	return grid[0], nil
}

// Records returns every row below the header.
func (s *SQLite) Records(ctx context.Context) ([]Record, error) {
	grid, err := s.values(ctx)
	if err != nil {
		return nil, err
	}
	return recordsFromValues(grid), nil
}

// UpdateCell overwrites one cell.
func (s *SQLite) UpdateCell(ctx context.Context, row, col int, value string) error {
	if row < 1 || col < 1 {
		return fmt.Errorf("invalid cell %d,%d", row, col)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cells (row_num, col_num, value) VALUES (?, ?, ?)
		 ON CONFLICT (row_num, col_num) DO UPDATE SET value = excluded.value`,
		row, col, value)
	if err != nil {
		return fmt.Errorf("update %s%d: %w", ColumnLetter(col), row, err)
	}
	return nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
