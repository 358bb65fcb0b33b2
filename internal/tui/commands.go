package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/theirongolddev/dbchat/internal/database"
	"github.com/theirongolddev/dbchat/internal/session"
)

// command is a parsed slash command.
type command struct {
	name string
	arg  string
}

// parseCommand splits "/name rest of line". ok is false for plain questions.
func parseCommand(line string) (command, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return command{}, false
	}
	name, arg, _ := strings.Cut(line[1:], " ")
	return command{name: strings.ToLower(name), arg: strings.TrimSpace(arg)}, true
}

// commandHelp lists slash commands for the help overlay.
var commandHelp = []struct{ usage, desc string }{
	{"/load <path>", "load a .db file or run a .sql script"},
	{"/schema", "show the loaded tables and columns"},
	{"/sql <statement>", "run one statement directly"},
	{"/clear", "reset the conversation"},
	{"/help", "toggle this help"},
	{"/quit", "exit"},
}

// opTimeout bounds every background session call.
const opTimeout = 5 * time.Minute

// Results of background session calls. Each carries a snapshot of the state
// the view needs so View never reads the session directly.

type loadedMsg struct {
	path  string
	res   session.LoadResult
	err   error
	hasDB bool
}

type answerMsg struct {
	answer string
	err    error
}

type schemaMsg struct {
	text string
	err  error
}

type queryMsg struct {
	res database.Result
	err error
}

func loadCmd(s *session.Session, path string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		res, err := s.LoadFile(ctx, path)
		return loadedMsg{path: path, res: res, err: err, hasDB: s.HasDatabase()}
	}
}

func askCmd(s *session.Session, question string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		answer, err := s.Ask(ctx, question)
		return answerMsg{answer: answer, err: err}
	}
}

func schemaCmd(s *session.Session) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		text, err := s.Schema(ctx)
		return schemaMsg{text: text, err: err}
	}
}

func queryCmd(s *session.Session, stmt string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		res, err := s.Query(ctx, stmt)
		return queryMsg{res: res, err: err}
	}
}

func describeLoadError(path string, err error) string {
	if database.IsQueryError(err) {
		return fmt.Sprintf("Script %s stopped: %v", path, err)
	}
	return fmt.Sprintf("Could not load %s: %v", path, err)
}
