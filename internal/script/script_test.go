package script

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/dbchat/internal/database"
	"github.com/theirongolddev/dbchat/internal/dialect"
	"github.com/theirongolddev/dbchat/internal/errs"
)

// recorder is a Runner that remembers every statement and fails on demand.
type recorder struct {
	calls  []string
	failAt int // 1-based call number that fails; 0 never fails
}

func (r *recorder) Run(_ context.Context, stmt string) (database.Result, error) {
	r.calls = append(r.calls, stmt)
	if r.failAt > 0 && len(r.calls) == r.failAt {
		return database.Result{}, &database.QueryError{Statement: stmt, Err: errors.New("near \"KEY\": syntax error")}
	}
	return database.Result{}, nil
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dump.sql")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestSplitTwoStatements(t *testing.T) {
	stmts := Statements(dialect.Normalize("CREATE TABLE t (a int); INSERT INTO t VALUES (1);"))
	assert.Equal(t, []string{"CREATE TABLE t (a int)", "INSERT INTO t VALUES (1)"}, stmts)
}

func TestExecuteRunsStatementsInOrder(t *testing.T) {
	path := writeScript(t, "CREATE TABLE t (a int) ENGINE=InnoDB;\n\nINSERT INTO t VALUES (1);\n  ;\nINSERT INTO t VALUES (2)")
	r := &recorder{}

	rep, err := Execute(context.Background(), r, path)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"CREATE TABLE t (a int)",
		"INSERT INTO t VALUES (1)",
		"INSERT INTO t VALUES (2)",
	}, r.calls)
	assert.Equal(t, 3, rep.Submitted)
	assert.Equal(t, 3, rep.Executed)
}

func TestExecuteWhitespaceOnlyScript(t *testing.T) {
	r := &recorder{}
	rep, err := Execute(context.Background(), r, writeScript(t, "  \n\t\n ;  ; \n"))
	require.NoError(t, err)
	assert.Empty(t, r.calls)
	assert.Zero(t, rep.Submitted)
}

func TestExecuteCommentOnlyScript(t *testing.T) {
	body := "-- MySQL dump 10.13\n" +
		"/*!40101 SET @OLD_CHARACTER_SET_CLIENT=@@CHARACTER_SET_CLIENT */;\n" +
		"/*!40103 SET TIME_ZONE='+00:00' */;\n" +
		"# trailing note\n"
	r := &recorder{}

	rep, err := Execute(context.Background(), r, writeScript(t, body))
	require.NoError(t, err)
	assert.Empty(t, r.calls)
	assert.Equal(t, 3, rep.Skipped)
}

func TestExecuteStopsAtFirstFailure(t *testing.T) {
	body := "INSERT INTO t VALUES (1);INSERT INTO t VALUES (2);INSERT INTO t VALUES (3);INSERT INTO t VALUES (4);INSERT INTO t VALUES (5);"
	r := &recorder{failAt: 3}

	rep, err := Execute(context.Background(), r, writeScript(t, body))
	require.Error(t, err)
	assert.Len(t, r.calls, 3)
	assert.Equal(t, 3, rep.Submitted)
	assert.Equal(t, 2, rep.Executed)

	var se *StatementError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 3, se.Index)
	var qe *database.QueryError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, "INSERT INTO t VALUES (3)", qe.Statement)
	assert.True(t, errs.Is(err, errs.Query))
}

func TestExecuteStopsAtFirstFailureAgainstMockDB(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec("CREATE TABLE a (x INTEGER NOT NULL)").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE b (x INTEGER NOT NULL)").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE c (x INTEGER NOT NULL) KEY").WillReturnError(errors.New("syntax error"))

	h := database.FromDB(db, database.Memory())
	script := "CREATE TABLE a (x int NOT NULL);\nCREATE TABLE b (x int NOT NULL);\nCREATE TABLE c (x int NOT NULL) KEY;\nCREATE TABLE d (x int NOT NULL);\nCREATE TABLE e (x int NOT NULL);\n"

	rep, err := New(nil).ExecuteText(context.Background(), h, script)
	require.Error(t, err)
	assert.Equal(t, 3, rep.Submitted)
	assert.True(t, database.IsQueryError(err))
	// Statements four and five never reach the driver.
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteMissingFile(t *testing.T) {
	_, err := Execute(context.Background(), &recorder{}, filepath.Join(t.TempDir(), "missing.sql"))
	require.Error(t, err)

	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.True(t, errs.Is(err, errs.IO))
}

func TestExecuteInvalidUTF8(t *testing.T) {
	path := filepath.Join(t.TempDir(), "latin1.sql")
	require.NoError(t, os.WriteFile(path, []byte("INSERT INTO t VALUES ('caf\xe9');"), 0o600))

	r := &recorder{}
	_, err := Execute(context.Background(), r, path)
	require.ErrorIs(t, err, ErrInvalidUTF8)
	assert.Empty(t, r.calls)
}

func TestReadFileStripsBOM(t *testing.T) {
	text, err := ReadFile(writeScript(t, "\xEF\xBB\xBFSELECT 1;"))
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1;", text)
}

type failingNormalizer struct{}

func (failingNormalizer) Normalize(string) (string, error) {
	return "", &dialect.NormalizationError{Rule: "parser", Err: errors.New("unexpected EOF")}
}

func TestExecuteNormalizationFailure(t *testing.T) {
	r := &recorder{}
	_, err := New(nil).WithNormalizer(failingNormalizer{}).ExecuteText(context.Background(), r, "SELECT 1;")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Normalization))
	assert.Empty(t, r.calls)
}

func TestIsBlank(t *testing.T) {
	assert.True(t, IsBlank(""))
	assert.True(t, IsBlank("  \n\t"))
	assert.True(t, IsBlank("-- comment only"))
	assert.True(t, IsBlank("/* block */\n-- and line"))
	assert.True(t, IsBlank("/*!40101 SET NAMES utf8 */"))
	assert.True(t, IsBlank("# hash comment\n  # another"))
	assert.False(t, IsBlank("-- comment\nSELECT 1"))
	assert.False(t, IsBlank("SELECT '--'"))
	assert.False(t, IsBlank("SELECT a # b"))
}

func TestExecuteAgainstSQLite(t *testing.T) {
	ctx := context.Background()
	h, err := database.Open(ctx, database.Memory())
	require.NoError(t, err)
	defer func() { _ = h.Close() }()

	rep, err := Execute(ctx, h, writeScript(t, mysqlDump))
	require.NoError(t, err)
	assert.Greater(t, rep.Skipped, 0)

	res, err := h.Run(ctx, "SELECT c.name, o.total FROM orders o JOIN customers c ON c.id = o.customer_id ORDER BY o.id")
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "Ada", database.FormatValue(res.Rows[0][0]))

	// The INTEGER PRIMARY KEY rewrite keeps rowid assignment working.
	_, err = h.Run(ctx, "INSERT INTO customers (name) VALUES ('Cy')")
	require.NoError(t, err)
	res, err = h.Run(ctx, "SELECT max(id) FROM customers")
	require.NoError(t, err)
	assert.Equal(t, "3", database.FormatValue(res.Rows[0][0]))
}

func TestExecuteLeavesPartialStateOnFailure(t *testing.T) {
	ctx := context.Background()
	h, err := database.Open(ctx, database.Memory())
	require.NoError(t, err)
	defer func() { _ = h.Close() }()

	body := "CREATE TABLE a (x int);\nINSERT INTO a VALUES (1);\nINSERT INTO missing VALUES (2);\nINSERT INTO a VALUES (3);\n"
	_, err = Execute(ctx, h, writeScript(t, body))
	require.Error(t, err)

	res, err := h.Run(ctx, "SELECT count(*) FROM a")
	require.NoError(t, err)
	assert.Equal(t, "1", database.FormatValue(res.Rows[0][0]))
}

var mysqlDump = strings.Join([]string{
	"-- MySQL dump 10.13  Distrib 8.0.36",
	"/*!40101 SET @OLD_CHARACTER_SET_CLIENT=@@CHARACTER_SET_CLIENT */;",
	"/*!40101 SET NAMES utf8mb4 */;",
	"DROP TABLE IF EXISTS `customers`;",
	"CREATE TABLE `customers` (",
	"  `id` int NOT NULL AUTO_INCREMENT,",
	"  `name` varchar(100) CHARACTER SET utf8mb4 NOT NULL,",
	"  PRIMARY KEY (`id`)",
	") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_0900_ai_ci;",
	"INSERT INTO `customers` VALUES (1,'Ada'),(2,'Bob');",
	"DROP TABLE IF EXISTS `orders`;",
	"CREATE TABLE `orders` (",
	"  `id` int NOT NULL AUTO_INCREMENT,",
	"  `customer_id` int NOT NULL,",
	"  `total` decimal(10,2) NOT NULL,",
	"  KEY `fk_customer` (`customer_id`),",
	"  CONSTRAINT `fk_customer` FOREIGN KEY (`customer_id`) REFERENCES `customers` (`id`),",
	"  PRIMARY KEY (`id`)",
	") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;",
	"INSERT INTO `orders` VALUES (1,1,9.50),(2,2,12.00);",
	"",
}, "\n")
