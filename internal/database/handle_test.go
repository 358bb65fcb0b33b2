package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/theirongolddev/dbchat/internal/errs"
)

func openMemory(t *testing.T) *Handle {
	t.Helper()
	h, err := Open(context.Background(), Memory())
	if err != nil {
		t.Fatalf("Open(memory): %v", err)
	}
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func mustRun(t *testing.T, h *Handle, stmt string) Result {
	t.Helper()
	res, err := h.Run(context.Background(), stmt)
	if err != nil {
		t.Fatalf("Run(%q): %v", stmt, err)
	}
	return res
}

func TestMemoryHandleKeepsStateAcrossStatements(t *testing.T) {
	h := openMemory(t)

	mustRun(t, h, "CREATE TABLE t (a INTEGER, b TEXT)")
	res := mustRun(t, h, "INSERT INTO t VALUES (1, 'x'), (2, 'y')")
	if res.RowsAffected != 2 {
		t.Fatalf("RowsAffected = %d, want 2", res.RowsAffected)
	}
	if res.HasRows() {
		t.Fatal("INSERT should not report a result set")
	}

	res = mustRun(t, h, "SELECT a, b FROM t ORDER BY a")
	if got := strings.Join(res.Columns, ","); got != "a,b" {
		t.Fatalf("Columns = %q, want a,b", got)
	}
	if len(res.Rows) != 2 {
		t.Fatalf("Rows = %d, want 2", len(res.Rows))
	}
	if FormatValue(res.Rows[1][1]) != "y" {
		t.Fatalf("Rows[1][1] = %v, want y", res.Rows[1][1])
	}
}

func TestRunReturnsQueryError(t *testing.T) {
	h := openMemory(t)

	_, err := h.Run(context.Background(), "SELECT * FROM missing_table")
	if err == nil {
		t.Fatal("expected error for missing table")
	}
	var qe *QueryError
	if !errors.As(err, &qe) {
		t.Fatalf("error %T is not *QueryError", err)
	}
	if qe.Statement != "SELECT * FROM missing_table" {
		t.Fatalf("Statement = %q", qe.Statement)
	}
	if !errs.Is(err, errs.Query) {
		t.Fatal("QueryError does not carry the query kind")
	}
	if !IsQueryError(err) {
		t.Fatal("IsQueryError = false")
	}
}

func TestOpenMissingFileFails(t *testing.T) {
	_, err := Open(context.Background(), File(filepath.Join(t.TempDir(), "nope.db")))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !errs.Is(err, errs.IO) {
		t.Fatalf("error kind = %q, want io", errs.KindOf(err))
	}
}

func TestOpenNonDatabaseFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.db")
	if err := os.WriteFile(path, []byte("this is not a sqlite file, just some text padding it out"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(context.Background(), File(path)); err == nil {
		t.Fatal("expected error opening a text file as a database")
	}
}

func TestFileHandlePersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "shop.db")

	h, err := Open(ctx, NewFile(path))
	if err != nil {
		t.Fatalf("Open(NewFile): %v", err)
	}
	mustRun(t, h, "CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT)")
	mustRun(t, h, "INSERT INTO items (name) VALUES ('lamp')")
	if err := h.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	h2, err := Open(ctx, File(path))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = h2.Close() }()

	res := mustRun(t, h2, "SELECT name FROM items")
	if len(res.Rows) != 1 || FormatValue(res.Rows[0][0]) != "lamp" {
		t.Fatalf("rows = %v, want [[lamp]]", res.Rows)
	}
	if h2.Source().IsMemory() {
		t.Fatal("file source reported as memory")
	}
}

func TestDescribeSchema(t *testing.T) {
	h := openMemory(t)
	mustRun(t, h, "CREATE TABLE customers (id INTEGER, name TEXT)")
	mustRun(t, h, "CREATE TABLE orders (id INTEGER, customer_id INTEGER)")
	for _, name := range []string{"ada", "bob", "cy", "dee"} {
		mustRun(t, h, "INSERT INTO customers (name) VALUES ('"+name+"')")
	}

	schema, err := h.DescribeSchema(context.Background())
	if err != nil {
		t.Fatalf("DescribeSchema: %v", err)
	}
	for _, want := range []string{
		"CREATE TABLE customers (id INTEGER, name TEXT)",
		"CREATE TABLE orders (id INTEGER, customer_id INTEGER)",
		"3 rows from customers table:",
		"id\tname",
		"NULL\tada",
	} {
		if !strings.Contains(schema, want) {
			t.Errorf("schema missing %q:\n%s", want, schema)
		}
	}
	if strings.Contains(schema, "dee") {
		t.Error("schema sample should be limited to 3 rows")
	}
	if strings.Index(schema, "customers") > strings.Index(schema, "orders") {
		t.Error("tables should be described in name order")
	}

	tables, err := h.Tables(context.Background())
	if err != nil {
		t.Fatalf("Tables: %v", err)
	}
	if strings.Join(tables, ",") != "customers,orders" {
		t.Fatalf("Tables = %v", tables)
	}
}

func TestOnCloseRunsInReverseOrder(t *testing.T) {
	h, err := Open(context.Background(), Memory())
	if err != nil {
		t.Fatal(err)
	}
	var order []string
	h.OnClose(func() { order = append(order, "first") })
	h.OnClose(func() { order = append(order, "second") })
	if err := h.Close(); err != nil {
		t.Fatal(err)
	}
	if strings.Join(order, ",") != "second,first" {
		t.Fatalf("order = %v", order)
	}
}

func TestReturnsRows(t *testing.T) {
	cases := []struct {
		stmt string
		want bool
	}{
		{"SELECT 1", true},
		{"  select * from t", true},
		{"WITH x AS (SELECT 1) SELECT * FROM x", true},
		{"-- leading\nSELECT 1", true},
		{"/* c */ PRAGMA table_info(t)", true},
		{"(SELECT 1)", true},
		{"INSERT INTO t VALUES (1)", false},
		{"CREATE TABLE t (a)", false},
		{"", false},
		{"-- only a comment", false},
	}
	for _, c := range cases {
		if got := returnsRows(c.stmt); got != c.want {
			t.Errorf("returnsRows(%q) = %v, want %v", c.stmt, got, c.want)
		}
	}
}

func TestQuoteIdent(t *testing.T) {
	if got := QuoteIdent(`we"ird`); got != `"we""ird"` {
		t.Fatalf("QuoteIdent = %s", got)
	}
}
