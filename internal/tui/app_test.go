package tui

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/theirongolddev/dbchat/internal/pipeline"
	"github.com/theirongolddev/dbchat/internal/session"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in      string
		name    string
		arg     string
		command bool
	}{
		{"how many orders?", "", "", false},
		{"/schema", "schema", "", true},
		{"  /LOAD  ./shop.db ", "load", "./shop.db", true},
		{"/sql SELECT * FROM t WHERE a = 'x y'", "sql", "SELECT * FROM t WHERE a = 'x y'", true},
	}
	for _, tt := range tests {
		cmd, ok := parseCommand(tt.in)
		if ok != tt.command {
			t.Fatalf("parseCommand(%q) ok = %v, want %v", tt.in, ok, tt.command)
		}
		if cmd.name != tt.name || cmd.arg != tt.arg {
			t.Fatalf("parseCommand(%q) = %+v, want name=%q arg=%q", tt.in, cmd, tt.name, tt.arg)
		}
	}
}

func newTestApp(t *testing.T) App {
	t.Helper()
	echo := pipeline.Func(func(_ context.Context, req pipeline.Request) (pipeline.Response, error) {
		return pipeline.Response{Answer: "echo: " + req.Question}, nil
	})
	s := session.New(session.Options{Pipeline: echo, TempDir: t.TempDir()})
	t.Cleanup(func() { _ = s.Close() })

	m, _ := NewApp(Options{Session: s}).Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return m.(App)
}

// send types line into the input, presses enter, runs any resulting
// background work and feeds its results back into the model.
func send(t *testing.T, a App, line string) App {
	t.Helper()
	a.input.SetValue(line)
	m, cmd := a.Update(tea.KeyMsg{Type: tea.KeyEnter})
	a = m.(App)
	for _, msg := range runCmd(cmd) {
		m, _ = a.Update(msg)
		a = m.(App)
	}
	return a
}

func runCmd(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	batch, ok := msg.(tea.BatchMsg)
	if !ok {
		return []tea.Msg{msg}
	}
	var out []tea.Msg
	for _, c := range batch {
		out = append(out, runCmd(c)...)
	}
	return out
}

func lastEntry(a App) entry {
	return a.entries[len(a.entries)-1]
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shop.sql")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNewAppShowsGreeting(t *testing.T) {
	a := newTestApp(t)
	if len(a.entries) != 1 || a.entries[0].text != session.Greeting {
		t.Fatalf("entries = %+v, want greeting only", a.entries)
	}
	if !strings.Contains(a.View(), "no database") {
		t.Fatal("status bar should say no database is loaded")
	}
}

func TestQuestionWithoutDatabase(t *testing.T) {
	a := send(t, newTestApp(t), "how many rows?")
	if len(a.entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(a.entries))
	}
	if e := lastEntry(a); e.kind != entryError || e.text != session.ErrNoDatabase.Error() {
		t.Fatalf("last entry = %+v", e)
	}
	if a.busy {
		t.Fatal("app should not be busy")
	}
}

func TestLoadAskAndQuery(t *testing.T) {
	path := writeScript(t, "CREATE TABLE items (id int, name varchar(20));\nINSERT INTO items VALUES (1,'lamp'),(2,'desk');")

	a := send(t, newTestApp(t), "/load "+path)
	if !a.hasDB || a.tables != 1 || a.source != "shop.sql" {
		t.Fatalf("after load: hasDB=%v tables=%d source=%q", a.hasDB, a.tables, a.source)
	}
	if e := lastEntry(a); e.kind != entryNote || !strings.Contains(e.text, "2 statements") {
		t.Fatalf("load note = %+v", e)
	}

	a = send(t, a, "what is in stock?")
	n := len(a.entries)
	if a.entries[n-2].kind != entryUser || a.entries[n-1].text != "echo: what is in stock?" {
		t.Fatalf("ask entries = %+v", a.entries[n-2:])
	}

	a = send(t, a, "/sql SELECT name FROM items ORDER BY id")
	if e := lastEntry(a); e.kind != entryBlock || !strings.Contains(e.text, "lamp") || !strings.Contains(e.text, "2 rows") {
		t.Fatalf("sql entry = %+v", e)
	}
}

func TestLoadFailureKeepsPartialState(t *testing.T) {
	path := writeScript(t, "CREATE TABLE a (x int);\nINSERT INTO missing VALUES (1);")

	a := send(t, newTestApp(t), "/load "+path)
	if !a.hasDB {
		t.Fatal("partial script load should leave a database")
	}
	n := len(a.entries)
	if a.entries[n-2].kind != entryError || !strings.Contains(a.entries[n-1].text, "1 statements ran") {
		t.Fatalf("failure entries = %+v", a.entries[n-2:])
	}
}

func TestClearAndUnknownCommand(t *testing.T) {
	a := send(t, newTestApp(t), "/bogus")
	if e := lastEntry(a); e.kind != entryError || !strings.Contains(e.text, "/bogus") {
		t.Fatalf("unknown command entry = %+v", e)
	}

	a = send(t, a, "/clear")
	if len(a.entries) != 1 || a.entries[0].text != session.Greeting {
		t.Fatalf("entries after clear = %+v", a.entries)
	}
}

func TestEnterIgnoredWhileBusy(t *testing.T) {
	a := newTestApp(t)
	a.busy = true
	a.input.SetValue("/schema")
	m, cmd := a.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		t.Fatal("enter while busy should not start work")
	}
	if got := m.(App).input.Value(); got != "/schema" {
		t.Fatalf("input = %q, want it kept", got)
	}
}

func TestHelpToggle(t *testing.T) {
	a := send(t, newTestApp(t), "/help")
	if !a.showHelp {
		t.Fatal("help should be shown")
	}
	if !strings.Contains(a.View(), "/load <path>") {
		t.Fatal("help view should list commands")
	}
	m, _ := a.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if m.(App).showHelp {
		t.Fatal("esc should close help")
	}
}
