// Package inspect parses a raw MySQL dump and reports table definitions the
// dialect normalizer leaves in place. Findings are advisory: they predict
// statements likely to fail against SQLite but never change what runs.
package inspect

import (
	"fmt"
	"strings"

	"github.com/pingcap/tidb/pkg/parser"
	"github.com/pingcap/tidb/pkg/parser/ast"
	"github.com/pingcap/tidb/pkg/parser/format"
	_ "github.com/pingcap/tidb/pkg/parser/test_driver"

	"github.com/theirongolddev/dbchat/internal/errs"
)

// Kind classifies a finding.
type Kind string

const (
	MultiColumnKey        Kind = "multi-column-key"
	UniqueKey             Kind = "unique-key"
	FulltextKey           Kind = "fulltext-key"
	OnUpdate              Kind = "on-update"
	ColumnComment         Kind = "column-comment"
	ColumnCollate         Kind = "column-collate"
	EnumType              Kind = "enum-type"
	TableOption           Kind = "table-option"
	AutoIncrementValue    Kind = "auto-increment-value"
	MultiColumnForeignKey Kind = "multi-column-foreign-key"
	ForeignKeyAction      Kind = "foreign-key-action"
)

// Finding is one construct outside the normalizer's rewrite set.
type Finding struct {
	Statement int // 1-based position among parsed statements
	Table     string
	Kind      Kind
	Message   string
}

func (f Finding) String() string {
	return fmt.Sprintf("#%d %s: [%s] %s", f.Statement, f.Table, f.Kind, f.Message)
}

// Report lists the tables seen and what was found in them.
type Report struct {
	Statements int
	Tables     []string
	Findings   []Finding
}

// Count returns how many findings have kind k.
func (r Report) Count(k Kind) int {
	n := 0
	for _, f := range r.Findings {
		if f.Kind == k {
			n++
		}
	}
	return n
}

// Inspect parses raw and examines every CREATE TABLE statement.
// A parse failure is returned with the normalization kind.
func Inspect(raw string) (Report, error) {
	stmts, _, err := parser.New().Parse(raw, "", "")
	if err != nil {
		return Report{}, errs.Wrap(errs.Normalization, "parsing MySQL dump", err)
	}

	rep := Report{Statements: len(stmts)}
	for i, stmt := range stmts {
		create, ok := stmt.(*ast.CreateTableStmt)
		if !ok {
			continue
		}
		t := tableInspector{index: i + 1, name: create.Table.Name.O}
		t.options(create.Options)
		t.columns(create.Cols)
		t.constraints(create.Constraints)

		rep.Tables = append(rep.Tables, t.name)
		rep.Findings = append(rep.Findings, t.findings...)
	}
	return rep, nil
}

type tableInspector struct {
	index    int
	name     string
	findings []Finding
}

func (t *tableInspector) add(k Kind, msg string, args ...any) {
	t.findings = append(t.findings, Finding{
		Statement: t.index,
		Table:     t.name,
		Kind:      k,
		Message:   fmt.Sprintf(msg, args...),
	})
}

func (t *tableInspector) options(opts []*ast.TableOption) {
	for _, opt := range opts {
		switch opt.Tp {
		case ast.TableOptionEngine, ast.TableOptionCharset, ast.TableOptionCollate, ast.TableOptionNone:
		case ast.TableOptionAutoIncrement:
			// The bare keyword is stripped, leaving "=<n>" behind.
			t.add(AutoIncrementValue, "table option AUTO_INCREMENT=%d leaves a dangling value", opt.UintValue)
		case ast.TableOptionComment:
			t.add(TableOption, "table option COMMENT is not stripped")
		case ast.TableOptionRowFormat:
			t.add(TableOption, "table option ROW_FORMAT is not stripped")
		default:
			t.add(TableOption, "table option %s is not stripped", restore(opt))
		}
	}
}

func (t *tableInspector) columns(cols []*ast.ColumnDef) {
	for _, col := range cols {
		name := col.Name.Name.O
		typ := strings.ToLower(col.Tp.String())
		if strings.HasPrefix(typ, "enum(") || strings.HasPrefix(typ, "set(") {
			t.add(EnumType, "column `%s` has type %s", name, col.Tp.String())
		}
		for _, opt := range col.Options {
			switch opt.Tp {
			case ast.ColumnOptionOnUpdate:
				if opt.Expr != nil {
					t.add(OnUpdate, "column `%s` has ON UPDATE %s", name, restore(opt.Expr))
				}
			case ast.ColumnOptionComment:
				t.add(ColumnComment, "column `%s` has a COMMENT", name)
			case ast.ColumnOptionCollate:
				t.add(ColumnCollate, "column `%s` has COLLATE %s", name, opt.StrValue)
			}
		}
	}
}

func (t *tableInspector) constraints(cons []*ast.Constraint) {
	for _, c := range cons {
		cols := keyColumns(c.Keys)
		switch c.Tp {
		case ast.ConstraintKey, ast.ConstraintIndex:
			if len(cols) > 1 {
				t.add(MultiColumnKey, "KEY `%s` (%s) spans several columns", c.Name, strings.Join(cols, ", "))
			}
		case ast.ConstraintUniq, ast.ConstraintUniqKey, ast.ConstraintUniqIndex:
			t.add(UniqueKey, "UNIQUE KEY `%s` (%s) is not stripped", c.Name, strings.Join(cols, ", "))
		case ast.ConstraintFulltext:
			t.add(FulltextKey, "FULLTEXT KEY `%s` (%s) is not stripped", c.Name, strings.Join(cols, ", "))
		case ast.ConstraintForeignKey:
			if len(cols) > 1 {
				t.add(MultiColumnForeignKey, "FOREIGN KEY `%s` (%s) spans several columns", c.Name, strings.Join(cols, ", "))
			}
			if c.Refer != nil && (c.Refer.OnDelete != nil && c.Refer.OnDelete.ReferOpt != ast.ReferOptionNoOption ||
				c.Refer.OnUpdate != nil && c.Refer.OnUpdate.ReferOpt != ast.ReferOptionNoOption) {
				t.add(ForeignKeyAction, "FOREIGN KEY `%s` has referential actions left behind when stripped", c.Name)
			}
		}
	}
}

func keyColumns(keys []*ast.IndexPartSpecification) []string {
	cols := make([]string, 0, len(keys))
	for _, k := range keys {
		if k.Column != nil {
			cols = append(cols, "`"+k.Column.Name.O+"`")
		} else {
			cols = append(cols, "<expr>")
		}
	}
	return cols
}

type restorer interface {
	Restore(ctx *format.RestoreCtx) error
}

func restore(n restorer) string {
	if n == nil {
		return ""
	}
	var sb strings.Builder
	if err := n.Restore(format.NewRestoreCtx(format.DefaultRestoreFlags, &sb)); err != nil {
		return "?"
	}
	return sb.String()
}
