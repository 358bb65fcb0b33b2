// Package database wraps a live SQLite connection, file-backed or in-memory.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/theirongolddev/dbchat/internal/errs"
	"github.com/theirongolddev/dbchat/internal/metrics"

	_ "modernc.org/sqlite" // register sqlite driver
)

// MemoryPath is the sentinel source path for an ephemeral database.
const MemoryPath = ":memory:"

// Source names what a Handle connects to.
type Source struct {
	path   string
	create bool
}

// File is an existing database file. Opening fails if it is missing.
func File(path string) Source { return Source{path: path} }

// NewFile is a database file that is created when missing.
func NewFile(path string) Source { return Source{path: path, create: true} }

// Memory is an ephemeral in-memory database.
func Memory() Source { return Source{path: MemoryPath} }

// IsMemory reports whether the source is the in-memory sentinel.
func (s Source) IsMemory() bool { return s.path == MemoryPath || s.path == "" }

func (s Source) String() string {
	if s.IsMemory() {
		return MemoryPath
	}
	return s.path
}

// Result is the outcome of one statement.
// Row-returning statements fill Columns and Rows; others fill RowsAffected.
type Result struct {
	Columns      []string
	Rows         [][]any
	RowsAffected int64
}

// HasRows reports whether the statement produced a result set.
func (r Result) HasRows() bool { return len(r.Columns) > 0 }

// QueryError is a statement the engine rejected.
type QueryError struct {
	Statement string
	Err       error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query failed: %v (statement: %s)", e.Err, preview(e.Statement, 80))
}

func (e *QueryError) Unwrap() error { return e.Err }

func (e *QueryError) ErrKind() errs.Kind { return errs.Query }

// Handle owns one connection. It is not safe for concurrent use.
type Handle struct {
	db      *sql.DB
	src     Source
	onClose []func()
}

// Open connects to src.
func Open(ctx context.Context, src Source) (*Handle, error) {
	dsn := MemoryPath
	if !src.IsMemory() {
		if !src.create {
			if _, err := os.Stat(src.path); err != nil {
				return nil, errs.Wrap(errs.IO, "opening database file "+src.path, err)
			}
		}
		dsn = src.path + "?_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errs.Wrap(errs.IO, "opening database "+src.String(), err)
	}
	// Every pooled connection to :memory: would be a separate database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errs.Wrap(errs.IO, "connecting to database "+src.String(), err)
	}
	// An arbitrary file may not be SQLite at all; surface that at open time.
	var n int
	if err := db.QueryRowContext(ctx, "SELECT count(*) FROM sqlite_master").Scan(&n); err != nil {
		_ = db.Close()
		return nil, errs.Wrap(errs.IO, "reading database "+src.String(), err)
	}

	return &Handle{db: db, src: src}, nil
}

// FromDB wraps an already-open connection. The caller keeps pool settings.
func FromDB(db *sql.DB, src Source) *Handle {
	return &Handle{db: db, src: src}
}

// Source returns what the handle is connected to.
func (h *Handle) Source() Source { return h.src }

// OnClose registers fn to run after the connection is closed.
func (h *Handle) OnClose(fn func()) {
	h.onClose = append(h.onClose, fn)
}

// Close closes the connection and runs OnClose hooks in reverse order.
func (h *Handle) Close() error {
	err := h.db.Close()
	for i := len(h.onClose) - 1; i >= 0; i-- {
		h.onClose[i]()
	}
	h.onClose = nil
	return err
}

// Run executes exactly one statement.
func (h *Handle) Run(ctx context.Context, stmt string) (Result, error) {
	start := time.Now()
	res, err := h.run(ctx, stmt)
	metrics.ObserveStatement(time.Since(start), err)
	if err != nil {
		return Result{}, &QueryError{Statement: stmt, Err: err}
	}
	return res, nil
}

func (h *Handle) run(ctx context.Context, stmt string) (Result, error) {
	if !returnsRows(stmt) {
		r, err := h.db.ExecContext(ctx, stmt)
		if err != nil {
			return Result{}, err
		}
		n, _ := r.RowsAffected()
		return Result{RowsAffected: n}, nil
	}

	rows, err := h.db.QueryContext(ctx, stmt)
	if err != nil {
		return Result{}, err
	}
	defer func() { _ = rows.Close() }()
	return scanRows(rows)
}

func scanRows(rows *sql.Rows) (Result, error) {
	cols, err := rows.Columns()
	if err != nil {
		return Result{}, err
	}
	res := Result{Columns: cols, Rows: [][]any{}}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return Result{}, err
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		res.Rows = append(res.Rows, vals)
	}
	return res, rows.Err()
}

// returnsRows guesses from the leading keyword whether stmt yields a result set.
func returnsRows(stmt string) bool {
	s := strings.TrimLeft(stripLeadingComments(stmt), " \t\r\n(")
	end := strings.IndexFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z')
	})
	if end >= 0 {
		s = s[:end]
	}
	switch strings.ToUpper(s) {
	case "SELECT", "WITH", "PRAGMA", "EXPLAIN", "VALUES":
		return true
	}
	return false
}

func stripLeadingComments(s string) string {
	for {
		s = strings.TrimLeft(s, " \t\r\n")
		switch {
		case strings.HasPrefix(s, "--"):
			i := strings.IndexByte(s, '\n')
			if i < 0 {
				return ""
			}
			s = s[i+1:]
		case strings.HasPrefix(s, "/*"):
			i := strings.Index(s[2:], "*/")
			if i < 0 {
				return ""
			}
			s = s[i+4:]
		default:
			return s
		}
	}
}

// Tables lists user tables in name order.
func (h *Handle) Tables(ctx context.Context) ([]string, error) {
	rows, err := h.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

const sampleRows = 3

// DescribeSchema renders each table's CREATE statement followed by a few sample rows.
func (h *Handle) DescribeSchema(ctx context.Context) (string, error) {
	rows, err := h.db.QueryContext(ctx,
		`SELECT name, sql FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return "", fmt.Errorf("reading schema: %w", err)
	}
	type table struct{ name, ddl string }
	var tables []table
	for rows.Next() {
		var t table
		var ddl sql.NullString
		if err := rows.Scan(&t.name, &ddl); err != nil {
			_ = rows.Close()
			return "", fmt.Errorf("reading schema: %w", err)
		}
		t.ddl = ddl.String
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return "", fmt.Errorf("reading schema: %w", err)
	}
	_ = rows.Close()

	var b strings.Builder
	for i, t := range tables {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(strings.TrimSpace(t.ddl))
		sample, err := h.run(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT %d", QuoteIdent(t.name), sampleRows))
		if err != nil {
			return "", fmt.Errorf("sampling %s: %w", t.name, err)
		}
		fmt.Fprintf(&b, "\n\n/*\n%d rows from %s table:\n", sampleRows, t.name)
		b.WriteString(strings.Join(sample.Columns, "\t"))
		for _, row := range sample.Rows {
			b.WriteByte('\n')
			for j, v := range row {
				if j > 0 {
					b.WriteByte('\t')
				}
				b.WriteString(FormatValue(v))
			}
		}
		b.WriteString("\n*/")
	}
	return b.String(), nil
}

// QuoteIdent quotes a SQLite identifier.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// FormatValue renders a scanned column value for display.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return x
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}

func preview(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}

// IsQueryError reports whether err came from the engine rejecting a statement.
func IsQueryError(err error) bool {
	var qe *QueryError
	return errors.As(err, &qe)
}
