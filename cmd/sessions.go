package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/dbchat/internal/cli"
	"github.com/theirongolddev/dbchat/internal/config"
	"github.com/theirongolddev/dbchat/internal/store"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List recorded chats",
	RunE:  runSessions,
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <chat-id>",
	Short: "Print one recorded chat",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsShow,
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <chat-id>",
	Short: "Delete one recorded chat",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsDelete,
}

var sessionsLimit int

func init() {
	sessionsCmd.Flags().IntVarP(&sessionsLimit, "limit", "l", 20, "Number of chats to show")
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func openHistoryStrict() (*store.History, error) {
	cfg := loadConfig()
	h, err := store.Open(config.HistoryPath(cfg))
	if err != nil {
		return nil, fmt.Errorf("opening chat history: %w", err)
	}
	return h, nil
}

func runSessions(c *cobra.Command, _ []string) error {
	h, err := openHistoryStrict()
	if err != nil {
		return err
	}
	defer func() { _ = h.Close() }()

	chats, err := h.ListChats(cmdContext(c), sessionsLimit)
	if err != nil {
		return err
	}
	if len(chats) == 0 {
		fmt.Println("\n  No chats recorded yet.")
		return nil
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("CHATS  (showing %d)", len(chats))))
	fmt.Println()

	rows := make([][]string, 0, len(chats))
	for _, ch := range chats {
		rows = append(rows, []string{
			ch.ID,
			ch.CreatedAt.Local().Format("Jan 02 15:04"),
			cli.Truncate(valueOr(ch.Source, "-"), 24),
			cli.FormatNumber(int64(ch.Turns)),
		})
	}

	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"ID", "Started", "Source", "Turns"},
		Rows:    rows,
	}))
	return nil
}

func runSessionsShow(c *cobra.Command, args []string) error {
	h, err := openHistoryStrict()
	if err != nil {
		return err
	}
	defer func() { _ = h.Close() }()

	turns, err := h.LoadTurns(cmdContext(c), args[0])
	if err != nil {
		return err
	}
	for _, t := range turns {
		fmt.Printf("[%s] %s\n%s\n\n", t.CreatedAt.Local().Format("15:04:05"), t.Role, t.Content)
	}
	return nil
}

func runSessionsDelete(c *cobra.Command, args []string) error {
	h, err := openHistoryStrict()
	if err != nil {
		return err
	}
	defer func() { _ = h.Close() }()

	err = h.DeleteChat(cmdContext(c), args[0])
	if errors.Is(err, store.ErrChatNotFound) {
		return fmt.Errorf("no chat with id %s", args[0])
	}
	if err != nil {
		return err
	}
	if !flagQuiet {
		fmt.Printf("  Deleted chat %s\n", args[0])
	}
	return nil
}
