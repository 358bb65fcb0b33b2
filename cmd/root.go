// Package cmd implements the dbchat CLI commands.
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/dbchat/internal/cli"
	"github.com/theirongolddev/dbchat/internal/config"
	"github.com/theirongolddev/dbchat/internal/llm"
	"github.com/theirongolddev/dbchat/internal/logging"
	"github.com/theirongolddev/dbchat/internal/pipeline"
	"github.com/theirongolddev/dbchat/internal/session"
	"github.com/theirongolddev/dbchat/internal/store"
)

var (
	flagQuiet     bool
	flagLogLevel  string
	flagLogJSON   bool
	flagDataDir   string
	flagNoHistory bool
)

var rootCmd = &cobra.Command{
	Use:   "dbchat",
	Short: "Chat with a SQLite database or MySQL dump",
	Long: "Load a SQLite .db file or run a .sql script (MySQL dumps are normalized for SQLite),\n" +
		"then ask questions about the data in plain language.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runChat,
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, cli.RenderError(err))
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Suppress progress output")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error (default from config)")
	rootCmd.PersistentFlags().BoolVar(&flagLogJSON, "log-json", false, "Write logs as JSON")
	rootCmd.PersistentFlags().StringVarP(&flagDataDir, "data-dir", "d", "", "Directory for chat history (default from config)")
	rootCmd.PersistentFlags().BoolVar(&flagNoHistory, "no-history", false, "Do not record chats")
}

// loadConfig reads the config file, falling back to defaults on error,
// and applies the persistent flags on top.
func loadConfig() config.Config {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "  warning: %v (using defaults)\n", err)
		cfg = config.DefaultConfig()
	}
	if flagDataDir != "" {
		cfg.General.DataDir = flagDataDir
	}
	if flagLogLevel != "" {
		cfg.Log.Level = flagLogLevel
	}
	if flagLogJSON {
		cfg.Log.JSON = true
	}
	if flagNoHistory {
		cfg.General.SaveHistory = false
	}
	return cfg
}

// newLogger writes to stderr, or nowhere when quiet.
func newLogger(cfg config.Config) *slog.Logger {
	var w io.Writer = os.Stderr
	if flagQuiet {
		w = nil
	}
	return logging.New(logging.Options{Level: cfg.Log.Level, JSON: cfg.Log.JSON}, w)
}

// newPipeline returns the model-backed chain when an API key is configured,
// else the stub that answers with an empty string.
func newPipeline(cfg config.Config, logger *slog.Logger) pipeline.Pipeline {
	client := llm.NewClient(llm.Config{
		BaseURL:     config.GetBaseURL(cfg),
		APIKey:      config.GetAPIKey(cfg),
		Model:       config.GetModel(cfg),
		Temperature: cfg.LLM.Temperature,
	})
	if client == nil {
		logger.Debug("no API key configured; answers come from the stub pipeline")
		return pipeline.Stub{}
	}
	logger.Debug("using model pipeline", slog.String("model", client.Model()))
	return pipeline.NewChain(client, client, logger)
}

// openHistory opens the chat history store, or returns nil when recording is off.
// A store that fails to open is logged and skipped.
func openHistory(cfg config.Config, logger *slog.Logger) *store.History {
	if !cfg.General.SaveHistory {
		return nil
	}
	h, err := store.Open(config.HistoryPath(cfg))
	if err != nil {
		logger.Warn("chat history unavailable", slog.Any("error", err))
		return nil
	}
	return h
}

// newSession wires a session to the configured pipeline and history store.
// The returned cleanup closes both.
func newSession(cfg config.Config, logger *slog.Logger) (*session.Session, func()) {
	hist := openHistory(cfg, logger)
	opts := session.Options{
		Pipeline: newPipeline(cfg, logger),
		Logger:   logger,
	}
	if hist != nil {
		opts.Recorder = hist
	}
	s := session.New(opts)
	return s, func() {
		_ = s.Close()
		if hist != nil {
			_ = hist.Close()
		}
	}
}
