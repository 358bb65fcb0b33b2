// Package script applies SQL dump files to a database handle.
//
// A script is read whole, passed through the dialect normalizer, split on ';'
// and run one statement at a time in source order. There is no wrapping
// transaction: the first failing statement stops the run and everything
// before it stays applied.
package script

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/theirongolddev/dbchat/internal/database"
	"github.com/theirongolddev/dbchat/internal/dialect"
	"github.com/theirongolddev/dbchat/internal/errs"
	"github.com/theirongolddev/dbchat/internal/logging"
	"github.com/theirongolddev/dbchat/internal/metrics"
)

// Delimiter separates statements. Semicolons inside string literals are not special-cased.
const Delimiter = ";"

// ErrInvalidUTF8 is wrapped by IOError when a script is not valid UTF-8 text.
var ErrInvalidUTF8 = errors.New("script is not valid UTF-8")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Runner executes a single statement. *database.Handle satisfies it.
type Runner interface {
	Run(ctx context.Context, stmt string) (database.Result, error)
}

// IOError reports a script file that could not be read or decoded.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("reading script %s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

func (e *IOError) ErrKind() errs.Kind { return errs.IO }

// StatementError identifies which statement stopped the run.
type StatementError struct {
	Index int // 1-based among submitted statements
	Err   error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("statement %d: %v", e.Index, e.Err)
}

func (e *StatementError) Unwrap() error { return e.Err }

// Report summarizes one run.
type Report struct {
	Submitted int // statements handed to the runner, including a failing one
	Executed  int // statements that succeeded
	Skipped   int // blank or comment-only fragments
	Duration  time.Duration
}

// Executor holds the normalizer and logger used for every run.
type Executor struct {
	normalizer dialect.Normalizer
	logger     *slog.Logger
}

// New returns an Executor using the regex normalizer.
// A nil logger discards output.
func New(logger *slog.Logger) *Executor {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Executor{normalizer: dialect.RegexNormalizer{}, logger: logger}
}

// WithNormalizer returns a copy of e that uses n.
func (e *Executor) WithNormalizer(n dialect.Normalizer) *Executor {
	cp := *e
	cp.normalizer = n
	return &cp
}

// Execute applies the script at path using a default Executor.
func Execute(ctx context.Context, r Runner, path string) (Report, error) {
	return New(nil).Execute(ctx, r, path)
}

// Execute reads the file at path and applies it to r.
func (e *Executor) Execute(ctx context.Context, r Runner, path string) (Report, error) {
	text, err := ReadFile(path)
	if err != nil {
		metrics.ObserveScript(err)
		return Report{}, err
	}
	e.logger.Debug("script read", slog.String("path", path), slog.Int("bytes", len(text)))
	return e.ExecuteText(ctx, r, text)
}

// ExecuteText normalizes text and applies it to r.
func (e *Executor) ExecuteText(ctx context.Context, r Runner, text string) (Report, error) {
	start := time.Now()
	rep, err := e.executeText(ctx, r, text)
	rep.Duration = time.Since(start)
	metrics.ObserveScript(err)

	attrs := []any{
		slog.Int("submitted", rep.Submitted),
		slog.Int("executed", rep.Executed),
		slog.Int("skipped", rep.Skipped),
		slog.Duration("duration", rep.Duration),
	}
	if err != nil {
		e.logger.Warn("script stopped", append(attrs, slog.Any("error", err))...)
	} else {
		e.logger.Info("script applied", attrs...)
	}
	return rep, err
}

func (e *Executor) executeText(ctx context.Context, r Runner, text string) (Report, error) {
	var rep Report

	clean, err := e.normalizer.Normalize(text)
	if err != nil {
		return rep, err
	}

	for _, frag := range Split(clean) {
		stmt := strings.TrimSpace(frag)
		if IsBlank(stmt) {
			if stmt != "" {
				rep.Skipped++
			}
			continue
		}

		rep.Submitted++
		e.logger.Debug("running statement", slog.Int("index", rep.Submitted), slog.String("sql", stmt))
		if _, err := r.Run(ctx, stmt); err != nil {
			return rep, &StatementError{Index: rep.Submitted, Err: err}
		}
		rep.Executed++
	}
	return rep, nil
}

// ReadFile loads a script as UTF-8 text, dropping a leading byte order mark.
func ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the caller's upload
	if err != nil {
		return "", &IOError{Path: path, Err: err}
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return "", &IOError{Path: path, Err: ErrInvalidUTF8}
	}
	return string(data), nil
}

// Split cuts text on the statement delimiter. Fragments are returned untrimmed.
func Split(text string) []string {
	return strings.Split(text, Delimiter)
}

// Statements returns the trimmed, non-blank statements of text in source order.
func Statements(text string) []string {
	var out []string
	for _, frag := range Split(text) {
		stmt := strings.TrimSpace(frag)
		if !IsBlank(stmt) {
			out = append(out, stmt)
		}
	}
	return out
}

// IsBlank reports whether s holds nothing but whitespace and comments.
// MySQL conditional comments (/*!40101 ... */) count as comments.
func IsBlank(s string) bool {
	return strings.TrimSpace(stripComments(s)) == ""
}

func stripComments(s string) string {
	var b strings.Builder
	lineStart := true
	for i := 0; i < len(s); {
		switch {
		case strings.HasPrefix(s[i:], "--"):
			i = skipLine(s, i)
		case lineStart && s[i] == '#':
			i = skipLine(s, i)
		case strings.HasPrefix(s[i:], "/*"):
			end := strings.Index(s[i+2:], "*/")
			if end < 0 {
				return b.String()
			}
			i += end + 4
		default:
			c := s[i]
			b.WriteByte(c)
			switch c {
			case '\n':
				lineStart = true
			case ' ', '\t', '\r':
			default:
				lineStart = false
			}
			i++
			continue
		}
	}
	return b.String()
}

func skipLine(s string, i int) int {
	nl := strings.IndexByte(s[i:], '\n')
	if nl < 0 {
		return len(s)
	}
	return i + nl
}
