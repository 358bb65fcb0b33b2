// Package session holds the per-user chat context: the conversation history
// and at most one live database handle.
//
// A Session is not safe for concurrent use. Callers that share one across
// goroutines serialize access themselves.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/theirongolddev/dbchat/internal/database"
	"github.com/theirongolddev/dbchat/internal/errs"
	"github.com/theirongolddev/dbchat/internal/logging"
	"github.com/theirongolddev/dbchat/internal/metrics"
	"github.com/theirongolddev/dbchat/internal/pipeline"
	"github.com/theirongolddev/dbchat/internal/script"
)

// Greeting seeds every new history.
const Greeting = "Hello! I'm a SQL assistant. Ask me anything about your database."

// Role tags who authored a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one chat message.
type Turn struct {
	Role    Role
	Content string
	At      time.Time
}

var (
	// ErrNoDatabase is returned by operations that need a loaded database.
	ErrNoDatabase = errs.New(errs.NoDatabase, "no database loaded yet; upload a .db or .sql file first")
	// ErrEmptyQuestion is returned for a blank question.
	ErrEmptyQuestion = errors.New("empty question")
	// ErrUnsupportedFile is returned for uploads that are neither .db nor .sql.
	ErrUnsupportedFile = errs.New(errs.UnsupportedFile, "choose a .db or .sql file")
)

// Recorder mirrors turns to durable storage. *store.History satisfies it.
type Recorder interface {
	CreateChat(ctx context.Context, source string) (string, error)
	AppendTurn(ctx context.Context, chatID, role, content string, at time.Time) error
}

// Options configures a Session. Zero values select the defaults.
type Options struct {
	Pipeline pipeline.Pipeline
	Executor *script.Executor
	Recorder Recorder
	Logger   *slog.Logger
	TempDir  string // where uploads are spooled; os.TempDir() when empty
}

// LoadKind says how an upload was applied.
type LoadKind string

const (
	LoadedDatabase LoadKind = "database"
	LoadedScript   LoadKind = "script"
)

// LoadResult describes a successful upload.
type LoadResult struct {
	Name   string
	Kind   LoadKind
	Report script.Report // set for scripts
	Tables []string
}

// Summary is a one-line status message for the upload.
func (r LoadResult) Summary() string {
	if r.Kind == LoadedDatabase {
		return fmt.Sprintf("Database file %s connected (%d tables).", r.Name, len(r.Tables))
	}
	return fmt.Sprintf("SQL script %s executed: %d statements, in-memory database has %d tables.",
		r.Name, r.Report.Executed, len(r.Tables))
}

// Session is one user's chat context.
type Session struct {
	pipe     pipeline.Pipeline
	exec     *script.Executor
	recorder Recorder
	logger   *slog.Logger
	tempDir  string

	db      *database.Handle
	source  string
	history []Turn
	chatID  string
}

// New creates a session whose history holds only the greeting.
func New(opts Options) *Session {
	s := &Session{
		pipe:     opts.Pipeline,
		exec:     opts.Executor,
		recorder: opts.Recorder,
		logger:   opts.Logger,
		tempDir:  opts.TempDir,
	}
	if s.pipe == nil {
		s.pipe = pipeline.Stub{}
	}
	if s.logger == nil {
		s.logger = logging.Discard()
	}
	if s.exec == nil {
		s.exec = script.New(s.logger)
	}
	s.history = []Turn{{Role: RoleAssistant, Content: Greeting, At: time.Now()}}
	return s
}

// Load applies an uploaded file. A .db file replaces the current handle;
// a .sql script runs against the current handle, or a fresh in-memory one.
// A script that fails part way leaves the statements before it applied.
func (s *Session) Load(ctx context.Context, name string, r io.Reader) (LoadResult, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if ext != ".db" && ext != ".sql" {
		return LoadResult{}, fmt.Errorf("%s: %w", name, ErrUnsupportedFile)
	}
	metrics.ObserveUpload(ext)

	tmp, err := s.spool(r, ext)
	if err != nil {
		return LoadResult{}, err
	}

	res := LoadResult{Name: filepath.Base(name)}
	if ext == ".db" {
		if err := s.openFile(ctx, tmp); err != nil {
			_ = os.Remove(tmp)
			return LoadResult{}, err
		}
		res.Kind = LoadedDatabase
	} else {
		defer func() { _ = os.Remove(tmp) }()
		fresh := s.db == nil
		if fresh {
			h, err := database.Open(ctx, database.Memory())
			if err != nil {
				return LoadResult{}, err
			}
			s.db = h
		}
		rep, err := s.exec.Execute(ctx, s.db, tmp)
		if err != nil {
			// A script that never reached the engine leaves no database behind.
			if fresh && rep.Submitted == 0 {
				_ = s.db.Close()
				s.db = nil
			}
			return LoadResult{Name: res.Name, Kind: LoadedScript, Report: rep}, err
		}
		res.Kind = LoadedScript
		res.Report = rep
	}
	s.source = res.Name

	res.Tables, err = s.db.Tables(ctx)
	if err != nil {
		return res, errs.Wrap(errs.Query, "listing tables", err)
	}
	s.logger.Info("upload loaded", slog.String("name", res.Name), slog.String("kind", string(res.Kind)),
		slog.Int("tables", len(res.Tables)))
	return res, nil
}

// LoadFile is Load for a file already on disk.
func (s *Session) LoadFile(ctx context.Context, path string) (LoadResult, error) {
	f, err := os.Open(path) //nolint:gosec // user-supplied path
	if err != nil {
		return LoadResult{}, errs.Wrap(errs.IO, "opening "+path, err)
	}
	defer func() { _ = f.Close() }()
	return s.Load(ctx, path, f)
}

func (s *Session) spool(r io.Reader, ext string) (string, error) {
	f, err := os.CreateTemp(s.tempDir, "dbchat-upload-*"+ext)
	if err != nil {
		return "", errs.Wrap(errs.IO, "creating upload file", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", errs.Wrap(errs.IO, "writing upload file", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", errs.Wrap(errs.IO, "writing upload file", err)
	}
	return f.Name(), nil
}

func (s *Session) openFile(ctx context.Context, path string) error {
	h, err := database.Open(ctx, database.File(path))
	if err != nil {
		return err
	}
	h.OnClose(func() { _ = os.Remove(path) })
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Warn("closing previous database", slog.Any("error", err))
		}
	}
	s.db = h
	return nil
}

// Ask records the question, runs the pipeline and records its answer.
// Without a loaded database the pipeline is never called and history is unchanged.
func (s *Session) Ask(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}
	if s.db == nil {
		metrics.ObserveQuestion(ErrNoDatabase)
		return "", ErrNoDatabase
	}

	s.append(ctx, RoleUser, question)
	resp, err := s.pipe.Answer(ctx, pipeline.Request{
		Question: question,
		History:  s.messages(),
		DB:       s.db,
	})
	metrics.ObserveQuestion(err)
	if err != nil {
		s.logger.Warn("question failed", slog.String("sql", resp.SQL), slog.Any("error", err))
		return "", err
	}
	s.append(ctx, RoleAssistant, resp.Answer)
	return resp.Answer, nil
}

func (s *Session) append(ctx context.Context, role Role, content string) {
	turn := Turn{Role: role, Content: content, At: time.Now()}
	s.history = append(s.history, turn)
	s.record(ctx, turn)
}

// record mirrors a turn. Storage failures are logged and never fail the chat.
func (s *Session) record(ctx context.Context, turn Turn) {
	if s.recorder == nil {
		return
	}
	if s.chatID == "" {
		id, err := s.recorder.CreateChat(ctx, s.source)
		if err != nil {
			s.logger.Warn("recording chat", slog.Any("error", err))
			return
		}
		s.chatID = id
		// The greeting predates the chat row.
		g := s.history[0]
		if err := s.recorder.AppendTurn(ctx, id, string(g.Role), g.Content, g.At); err != nil {
			s.logger.Warn("recording turn", slog.Any("error", err))
		}
	}
	if err := s.recorder.AppendTurn(ctx, s.chatID, string(turn.Role), turn.Content, turn.At); err != nil {
		s.logger.Warn("recording turn", slog.Any("error", err))
	}
}

func (s *Session) messages() []pipeline.Message {
	out := make([]pipeline.Message, len(s.history))
	for i, t := range s.history {
		out[i] = pipeline.Message{Role: string(t.Role), Content: t.Content}
	}
	return out
}

// History returns a copy of the conversation so far.
func (s *Session) History() []Turn {
	out := make([]Turn, len(s.history))
	copy(out, s.history)
	return out
}

// Clear resets the history to the greeting and starts a new recorded chat.
func (s *Session) Clear() {
	s.history = []Turn{{Role: RoleAssistant, Content: Greeting, At: time.Now()}}
	s.chatID = ""
}

// SetPipeline swaps the answering pipeline, e.g. after credentials change.
func (s *Session) SetPipeline(p pipeline.Pipeline) {
	if p == nil {
		p = pipeline.Stub{}
	}
	s.pipe = p
}

// ChatID is the recorder's ID for this conversation, empty until the first recorded turn.
func (s *Session) ChatID() string { return s.chatID }

// HasDatabase reports whether a handle is loaded.
func (s *Session) HasDatabase() bool { return s.db != nil }

// Source names the last successfully loaded upload.
func (s *Session) Source() string { return s.source }

// Schema describes the loaded database.
func (s *Session) Schema(ctx context.Context) (string, error) {
	if s.db == nil {
		return "", ErrNoDatabase
	}
	return s.db.DescribeSchema(ctx)
}

// Query runs one statement directly against the loaded database.
func (s *Session) Query(ctx context.Context, stmt string) (database.Result, error) {
	if s.db == nil {
		return database.Result{}, ErrNoDatabase
	}
	return s.db.Run(ctx, stmt)
}

// Close releases the database handle. The session must not be used afterwards.
func (s *Session) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
