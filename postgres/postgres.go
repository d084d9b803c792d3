// Package postgres adapts PostgreSQL tables to sluice sources and
// sinks through database/sql and the lib/pq driver. The source scans
// a table by timestamp column; the sink appends each batch with a
// single multi-row INSERT.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/lib/pq" // registers the postgres driver

	"github.com/sluicekit/sluice"
	"github.com/sluicekit/sluice/config"
)

// Open connects to the database in cfg and verifies the connection.
func Open(cfg config.PostgresConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// RowFunc extracts the column values for one record, in the same order
// as the configured columns.
type RowFunc[T any] func(record T) []any

// ScanFunc scans one result row into a record.
type ScanFunc[T any] func(rows *sql.Rows) (T, error)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// InsertStatement builds a single multi-row INSERT:
//
//	INSERT INTO events (id, payload) VALUES ($1,$2),($3,$4)
func InsertStatement(table string, columns []string, rows int) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(table)
	b.WriteString(" (")
	b.WriteString(strings.Join(columns, ", "))
	b.WriteString(") VALUES ")
	n := 1
	for r := 0; r < rows; r++ {
		if r > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('(')
		for c := 0; c < len(columns); c++ {
			if c > 0 {
				b.WriteByte(',')
			}
			fmt.Fprintf(&b, "$%d", n)
			n++
		}
		b.WriteByte(')')
	}
	return b.String()
}

// SelectStatement builds the windowed scan query: all configured
// columns, filtered to [since, until) on the time column and ordered
// by it.
func SelectStatement(table string, columns []string, timeColumn string) string {
	return fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s >= $1 AND %s < $2 ORDER BY %s ASC",
		strings.Join(columns, ", "), table, timeColumn, timeColumn, timeColumn,
	)
}

// Sink batch-inserts records into a table.
type Sink[T any] struct {
	db      execer
	table   string
	columns []string
	row     RowFunc[T]
	logger  *slog.Logger
}

var _ sluice.Sink[int] = (*Sink[int])(nil)

// NewSink builds a sink inserting into cfg.Table. row must return one
// value per configured column. Panics on a nil db or row func, or when
// the table or columns are missing.
func NewSink[T any](db *sql.DB, cfg config.PostgresConfig, row RowFunc[T], logger *slog.Logger) *Sink[T] {
	if db == nil {
		panic("postgres: db cannot be nil")
	}
	return newSink(db, cfg, row, logger)
}

func newSink[T any](db execer, cfg config.PostgresConfig, row RowFunc[T], logger *slog.Logger) *Sink[T] {
	if cfg.Table == "" {
		panic("postgres: table cannot be empty")
	}
	if len(cfg.Columns) == 0 {
		panic("postgres: columns cannot be empty")
	}
	if row == nil {
		panic("postgres: row func cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink[T]{
		db:      db,
		table:   cfg.Table,
		columns: cfg.Columns,
		row:     row,
		logger:  logger,
	}
}

// Write implements sluice.Sink. The whole batch goes in one statement,
// so it lands atomically.
func (s *Sink[T]) Write(ctx context.Context, records []T) error {
	if len(records) == 0 {
		return nil
	}
	args := make([]any, 0, len(records)*len(s.columns))
	for _, record := range records {
		values := s.row(record)
		if len(values) != len(s.columns) {
			return fmt.Errorf("postgres: row has %d values, want %d", len(values), len(s.columns))
		}
		args = append(args, values...)
	}
	query := InsertStatement(s.table, s.columns, len(records))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert into %s: %w", s.table, err)
	}
	s.logger.Debug("inserted batch", "table", s.table, "count", len(records))
	return nil
}

// Source fetches rows whose time column falls in [since, until).
type Source[T any] struct {
	db     querier
	table  string
	query  string
	scan   ScanFunc[T]
	logger *slog.Logger
}

var _ sluice.WindowedSource[int] = (*Source[int])(nil)

// NewSource builds a windowed source scanning cfg.Table by
// cfg.TimeColumn. Panics on a nil db or scan func, or when the table,
// columns, or time column is missing.
func NewSource[T any](db *sql.DB, cfg config.PostgresConfig, scan ScanFunc[T], logger *slog.Logger) *Source[T] {
	if db == nil {
		panic("postgres: db cannot be nil")
	}
	return newSource(db, cfg, scan, logger)
}

func newSource[T any](db querier, cfg config.PostgresConfig, scan ScanFunc[T], logger *slog.Logger) *Source[T] {
	if cfg.Table == "" {
		panic("postgres: table cannot be empty")
	}
	if len(cfg.Columns) == 0 {
		panic("postgres: columns cannot be empty")
	}
	if cfg.TimeColumn == "" {
		panic("postgres: time column cannot be empty")
	}
	if scan == nil {
		panic("postgres: scan func cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Source[T]{
		db:     db,
		table:  cfg.Table,
		query:  SelectStatement(cfg.Table, cfg.Columns, cfg.TimeColumn),
		scan:   scan,
		logger: logger,
	}
}

// Fetch implements sluice.WindowedSource.
func (s *Source[T]) Fetch(ctx context.Context, since, until time.Time) ([]T, error) {
	rows, err := s.db.QueryContext(ctx, s.query, since, until)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", s.table, err)
	}
	defer rows.Close()

	var records []T
	for rows.Next() {
		record, err := s.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	s.logger.Debug("fetched rows", "table", s.table, "count", len(records))
	return records, nil
}
