package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/dbchat/internal/session"
)

var askCmd = &cobra.Command{
	Use:   "ask <file.db|file.sql> <question...>",
	Short: "Load a file and answer one question",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
}

func runAsk(c *cobra.Command, args []string) error {
	ctx := cmdContext(c)
	s, cleanup, err := loadedSession(ctx, args[0])
	if err != nil {
		return err
	}
	defer cleanup()

	answer, err := s.Ask(ctx, strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	fmt.Println(answer)
	return nil
}

// loadedSession builds a session and applies path to it.
func loadedSession(ctx context.Context, path string) (*session.Session, func(), error) {
	cfg := loadConfig()
	logger := newLogger(cfg)
	s, cleanup := newSession(cfg, logger)

	res, err := s.LoadFile(ctx, path)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	if !flagQuiet {
		fmt.Fprintf(os.Stderr, "  %s\n", res.Summary())
	}
	return s, cleanup, nil
}

func cmdContext(c *cobra.Command) context.Context {
	if ctx := c.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
