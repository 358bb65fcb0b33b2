package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/theirongolddev/dbchat/internal/config"
	"github.com/theirongolddev/dbchat/internal/logging"
	"github.com/theirongolddev/dbchat/internal/pipeline"
	"github.com/theirongolddev/dbchat/internal/tui"
	"github.com/theirongolddev/dbchat/internal/tui/theme"
)

var flagChatMaxRows int

var chatCmd = &cobra.Command{
	Use:   "chat [file.db|file.sql]",
	Short: "Launch the interactive chat",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runChat,
}

func init() {
	for _, c := range []*cobra.Command{rootCmd, chatCmd} {
		c.Flags().IntVar(&flagChatMaxRows, "max-rows", 50, "Rows shown for /sql results")
	}
	rootCmd.Args = cobra.MaximumNArgs(1)
	rootCmd.AddCommand(chatCmd)
}

func runChat(_ *cobra.Command, args []string) error {
	cfg := loadConfig()
	theme.SetActive(cfg.Appearance.Theme)

	// Force TrueColor profile so all background styling produces ANSI codes
	lipgloss.SetColorProfile(termenv.TrueColor)

	// stderr would corrupt the alt screen, so chat logs go to a file.
	logf, err := openChatLog(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logf.Close() }()
	logger := logging.New(logging.Options{Level: cfg.Log.Level, JSON: cfg.Log.JSON}, logf)

	s, cleanup := newSession(cfg, logger)
	defer cleanup()

	opts := tui.Options{
		Session:   s,
		MaxRows:   flagChatMaxRows,
		NeedSetup: !config.Exists(),
		PipelineFor: func(c config.Config) pipeline.Pipeline {
			return newPipeline(c, logger)
		},
	}
	if len(args) == 1 {
		opts.InitialFile = args[0]
	}

	p := tea.NewProgram(tui.NewApp(opts), tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

func openChatLog(cfg config.Config) (*os.File, error) {
	dir := config.DataDir(cfg)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	path := filepath.Join(dir, "chat.log")
	//nolint:gosec // log path is configured by the local user
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open chat log: %w", err)
	}
	return f, nil
}
