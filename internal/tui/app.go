// Package tui provides the interactive Bubble Tea chat for dbchat.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/dbchat/internal/cli"
	"github.com/theirongolddev/dbchat/internal/config"
	"github.com/theirongolddev/dbchat/internal/pipeline"
	"github.com/theirongolddev/dbchat/internal/session"
	"github.com/theirongolddev/dbchat/internal/tui/components"
	"github.com/theirongolddev/dbchat/internal/tui/theme"
)

type entryKind int

const (
	entryUser entryKind = iota
	entryAssistant
	entryNote
	entryError
	entryBlock // pre-rendered output such as a result table
)

type entry struct {
	kind entryKind
	text string
}

// Options configures the chat app.
type Options struct {
	Session     *session.Session
	InitialFile string // loaded on start when set
	MaxRows     int    // rows shown for /sql results
	NeedSetup   bool   // show the first-run form
	// PipelineFor builds the answering pipeline after the setup form saves new credentials.
	PipelineFor func(cfg config.Config) pipeline.Pipeline
}

// App is the root Bubble Tea model.
type App struct {
	sess        *session.Session
	initialFile string
	maxRows     int
	pipelineFor func(config.Config) pipeline.Pipeline

	entries []entry

	// Snapshot of session state, refreshed from background results.
	source string
	tables int
	hasDB  bool

	// UI state
	width    int
	height   int
	ready    bool
	showHelp bool
	busy     bool
	busyText string

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	// First-run setup (huh form)
	setupForm *huh.Form
	setupVals *setupValues
	needSetup bool
}

const (
	minTerminalWidth = 60
	maxContentWidth  = 140
	headerHeight     = 2
	inputHeight      = 3 // bordered single-line input
	statusHeight     = 1
	defaultMaxRows   = 50
)

// NewApp creates a new TUI app model.
func NewApp(opts Options) App {
	ti := textinput.New()
	ti.Placeholder = "Ask about your data, or /help"
	ti.Prompt = "› "
	ti.CharLimit = 4000
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.Active.Accent)

	maxRows := opts.MaxRows
	if maxRows <= 0 {
		maxRows = defaultMaxRows
	}

	a := App{
		sess:        opts.Session,
		initialFile: opts.InitialFile,
		maxRows:     maxRows,
		pipelineFor: opts.PipelineFor,
		input:       ti,
		spinner:     sp,
		needSetup:   opts.NeedSetup,
		hasDB:       opts.Session.HasDatabase(),
		source:      opts.Session.Source(),
	}
	for _, t := range a.sess.History() {
		a.entries = append(a.entries, entry{kind: entryAssistant, text: t.Content})
	}
	if a.needSetup {
		a.setupVals = newSetupValues()
		a.setupForm = newSetupForm(a.setupVals)
	}
	return a
}

// Init implements tea.Model.
func (a App) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink}
	if a.setupForm != nil {
		cmds = append(cmds, a.setupForm.Init())
	}
	if a.initialFile != "" {
		cmds = append(cmds, func() tea.Msg { return startLoadMsg{path: a.initialFile} })
	}
	return tea.Batch(cmds...)
}

// startLoadMsg defers the initial load until Update owns the model.
type startLoadMsg struct{ path string }

// Update implements tea.Model.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.layout()
		if a.setupForm != nil {
			a.setupForm = a.setupForm.WithWidth(msg.Width).WithHeight(msg.Height)
		}
		return a, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		if a.needSetup && a.setupForm != nil {
			return a.updateSetupForm(msg)
		}
		return a.updateKeys(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		a.viewport, cmd = a.viewport.Update(msg)
		return a, cmd

	case spinner.TickMsg:
		if !a.busy {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case startLoadMsg:
		return a.startLoad(msg.path)

	case loadedMsg:
		a.busy = false
		a.hasDB = msg.hasDB
		if msg.err != nil {
			a.addEntry(entryError, describeLoadError(msg.path, msg.err))
			if msg.res.Report.Executed > 0 {
				a.addEntry(entryNote, fmt.Sprintf("%d statements ran before the failure and stay applied.", msg.res.Report.Executed))
			}
			return a, nil
		}
		a.source = msg.res.Name
		a.tables = len(msg.res.Tables)
		a.addEntry(entryNote, msg.res.Summary())
		return a, nil

	case answerMsg:
		a.busy = false
		if msg.err != nil {
			a.addEntry(entryError, msg.err.Error())
			return a, nil
		}
		a.addEntry(entryAssistant, msg.answer)
		return a, nil

	case schemaMsg:
		a.busy = false
		if msg.err != nil {
			a.addEntry(entryError, msg.err.Error())
			return a, nil
		}
		a.addEntry(entryBlock, msg.text)
		return a, nil

	case queryMsg:
		a.busy = false
		if msg.err != nil {
			a.addEntry(entryError, msg.err.Error())
			return a, nil
		}
		a.addEntry(entryBlock, strings.TrimRight(cli.RenderResult(msg.res, a.maxRows), "\n"))
		return a, nil
	}

	// Forward unhandled messages to the setup form (cursor blinks, etc.)
	if a.needSetup && a.setupForm != nil {
		return a.updateSetupForm(msg)
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

func (a App) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		a.showHelp = false
		return a, nil
	case "pgup", "pgdown", "ctrl+u", "ctrl+d":
		var cmd tea.Cmd
		a.viewport, cmd = a.viewport.Update(msg)
		return a, cmd
	case "enter":
		if a.busy {
			return a, nil
		}
		line := strings.TrimSpace(a.input.Value())
		if line == "" {
			return a, nil
		}
		a.input.SetValue("")
		return a.submit(line)
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

// submit dispatches one input line. Only one session call runs at a time.
func (a App) submit(line string) (tea.Model, tea.Cmd) {
	cmd, isCommand := parseCommand(line)
	if !isCommand {
		if !a.hasDB {
			a.addEntry(entryError, session.ErrNoDatabase.Error())
			return a, nil
		}
		a.addEntry(entryUser, line)
		return a.startBusy("Thinking", askCmd(a.sess, line))
	}

	switch cmd.name {
	case "load":
		if cmd.arg == "" {
			a.addEntry(entryError, "usage: /load <path to .db or .sql>")
			return a, nil
		}
		return a.startLoad(cmd.arg)
	case "schema":
		return a.startBusy("Reading schema", schemaCmd(a.sess))
	case "sql":
		if cmd.arg == "" {
			a.addEntry(entryError, "usage: /sql <statement>")
			return a, nil
		}
		a.addEntry(entryUser, cmd.arg)
		return a.startBusy("Running", queryCmd(a.sess, cmd.arg))
	case "clear":
		a.sess.Clear()
		a.entries = nil
		for _, t := range a.sess.History() {
			a.entries = append(a.entries, entry{kind: entryAssistant, text: t.Content})
		}
		a.refreshViewport()
		return a, nil
	case "help", "?":
		a.showHelp = !a.showHelp
		return a, nil
	case "quit", "exit", "q":
		return a, tea.Quit
	default:
		a.addEntry(entryError, fmt.Sprintf("unknown command /%s; try /help", cmd.name))
		return a, nil
	}
}

func (a App) startLoad(path string) (tea.Model, tea.Cmd) {
	return a.startBusy("Loading "+path, loadCmd(a.sess, path))
}

func (a App) startBusy(text string, work tea.Cmd) (tea.Model, tea.Cmd) {
	a.busy = true
	a.busyText = text
	return a, tea.Batch(a.spinner.Tick, work)
}

func (a App) updateSetupForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	form, cmd := a.setupForm.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		a.setupForm = f
	}

	if a.setupForm.State == huh.StateCompleted {
		cfg, err := saveSetupConfig(a.setupVals)
		if err != nil {
			a.addEntry(entryError, "Could not save config: "+err.Error())
		} else {
			a.addEntry(entryNote, "Settings saved to "+config.ConfigPath())
		}
		if a.pipelineFor != nil {
			a.sess.SetPipeline(a.pipelineFor(cfg))
		}
		a.needSetup = false
		a.setupForm = nil
		return a, nil
	}

	if a.setupForm.State == huh.StateAborted {
		a.needSetup = false
		a.setupForm = nil
		return a, nil
	}

	return a, cmd
}

func (a *App) addEntry(kind entryKind, text string) {
	a.entries = append(a.entries, entry{kind: kind, text: text})
	a.refreshViewport()
}

func (a App) contentWidth() int {
	cw := a.width
	if cw > maxContentWidth {
		cw = maxContentWidth
	}
	return cw
}

// layout sizes the viewport and input to the window.
func (a *App) layout() {
	w := a.contentWidth()
	h := a.height - headerHeight - inputHeight - statusHeight
	if h < 3 {
		h = 3
	}
	if !a.ready {
		a.viewport = viewport.New(w, h)
		a.ready = true
	} else {
		a.viewport.Width = w
		a.viewport.Height = h
	}
	a.input.Width = w - 6
	a.refreshViewport()
}

func (a *App) refreshViewport() {
	if !a.ready {
		return
	}
	a.viewport.SetContent(a.renderTranscript(a.viewport.Width))
	a.viewport.GotoBottom()
}

func (a App) renderTranscript(width int) string {
	t := theme.Active
	bodyWidth := width - 4
	parts := make([]string, 0, len(a.entries))
	for _, e := range a.entries {
		switch e.kind {
		case entryUser:
			parts = append(parts, components.Message("You", t.User, e.text, bodyWidth))
		case entryAssistant:
			text := e.text
			if text == "" {
				text = "(no answer)"
			}
			parts = append(parts, components.Message("Assistant", t.Accent, text, bodyWidth))
		case entryNote:
			parts = append(parts, components.Note(e.text, t.TextMuted, width))
		case entryError:
			parts = append(parts, components.Note(e.text, t.Red, width))
		case entryBlock:
			parts = append(parts, e.text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// View implements tea.Model.
func (a App) View() string {
	if a.width == 0 {
		return ""
	}
	if a.width < minTerminalWidth {
		return a.viewTooNarrow()
	}
	if a.needSetup && a.setupForm != nil {
		return a.setupForm.View()
	}
	if a.showHelp {
		return a.viewHelp()
	}
	return a.viewMain()
}

func (a App) viewTooNarrow() string {
	return fmt.Sprintf("\n  Terminal too narrow (%d cols)\n\n  dbchat needs at least %d columns.\n",
		a.width, minTerminalWidth)
}

func (a App) viewMain() string {
	t := theme.Active
	w := a.contentWidth()

	titleStyle := lipgloss.NewStyle().Foreground(t.AccentBright).Bold(true)
	mutedStyle := lipgloss.NewStyle().Foreground(t.TextMuted)
	header := titleStyle.Render("◈ dbchat") + mutedStyle.Render(" · chat with your database")

	inputStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.BorderAccent).
		Width(w - 2)
	if a.busy {
		inputStyle = inputStyle.BorderForeground(t.Border)
	}

	left := "no database · /load <file>"
	if a.hasDB {
		src := a.source
		if src == "" {
			src = "database"
		}
		left = fmt.Sprintf("%s · %d tables", src, a.tables)
	}
	right := "/help · ctrl+c quit"
	if a.busy {
		right = a.spinner.View() + " " + a.busyText
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header+"\n",
		a.viewport.View(),
		inputStyle.Render(a.input.View()),
		components.RenderStatusBar(w, left, right),
	)
}

func (a App) viewHelp() string {
	t := theme.Active
	keyStyle := lipgloss.NewStyle().Foreground(t.Accent)
	descStyle := lipgloss.NewStyle().Foreground(t.TextPrimary)

	rowWidth := a.contentWidth() - 4
	if rowWidth > 110 {
		rowWidth = 110
	}
	widths := components.LayoutRow(rowWidth, 2)

	helpLines := func(rows [][2]string, width int) string {
		keyWidth := 18
		descWidth := components.CardInnerWidth(width) - keyWidth
		var b strings.Builder
		for i, r := range rows {
			if i > 0 {
				b.WriteString("\n")
			}
			b.WriteString(keyStyle.Render(fmt.Sprintf("%-*s", keyWidth, r[0])))
			b.WriteString(descStyle.Render(cli.Truncate(r[1], descWidth)))
		}
		return b.String()
	}

	cmds := make([][2]string, 0, len(commandHelp))
	for _, h := range commandHelp {
		cmds = append(cmds, [2]string{h.usage, h.desc})
	}
	keys := [][2]string{
		{"enter", "send the question or command"},
		{"pgup/pgdown", "scroll the conversation"},
		{"mouse wheel", "scroll the conversation"},
		{"esc", "close help"},
		{"ctrl+c", "quit"},
	}

	row := components.CardRow([]string{
		components.ContentCard("Commands", helpLines(cmds, widths[0]), widths[0]),
		components.ContentCard("Keys", helpLines(keys, widths[1]), widths[1]),
	})
	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, row)
}
