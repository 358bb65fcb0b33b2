package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/dbchat/internal/server"
	"github.com/theirongolddev/dbchat/internal/session"
)

var (
	flagServeAddr         string
	flagServeIdle         time.Duration
	flagServeEventsBuffer int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve chat sessions over HTTP",
	Long: "Each POST /v1/sessions creates an isolated session. Upload a file to\n" +
		"/v1/sessions/{id}/upload, then POST questions to /v1/sessions/{id}/ask.",
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagServeAddr, "addr", "", "HTTP listen address (default from config)")
	serveCmd.Flags().DurationVar(&flagServeIdle, "idle-timeout", 30*time.Minute, "Close sessions unused for this long")
	serveCmd.Flags().IntVar(&flagServeEventsBuffer, "events-buffer", 200, "Max in-memory events retained")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg := loadConfig()
	logger := newLogger(cfg)

	addr := cfg.Server.Addr
	if flagServeAddr != "" {
		addr = flagServeAddr
	}

	pipe := newPipeline(cfg, logger)
	hist := openHistory(cfg, logger)
	if hist != nil {
		defer func() { _ = hist.Close() }()
	}

	svc := server.New(server.Config{
		Addr:           addr,
		MaxUploadBytes: int64(cfg.Server.MaxUploadMB) << 20,
		IdleTimeout:    flagServeIdle,
		EventsBuffer:   flagServeEventsBuffer,
		Logger:         logger,
		NewSession: func() *session.Session {
			opts := session.Options{Pipeline: pipe, Logger: logger}
			if hist != nil {
				opts.Recorder = hist
			}
			return session.New(opts)
		},
	})

	if !flagQuiet {
		fmt.Fprintf(os.Stderr, "  dbchat serving on http://%s\n", addr)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
