package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/dbchat/internal/cli"
)

var flagQueryMaxRows int

var queryCmd = &cobra.Command{
	Use:   "query <file.db|file.sql> <statement...>",
	Short: "Run one SQL statement and print the result",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runQuery,
}

func init() {
	queryCmd.Flags().IntVar(&flagQueryMaxRows, "max-rows", 100, "Rows to print (0 for all)")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(c *cobra.Command, args []string) error {
	ctx := cmdContext(c)
	s, cleanup, err := loadedSession(ctx, args[0])
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := s.Query(ctx, strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	fmt.Print(cli.RenderResult(res, flagQueryMaxRows))
	return nil
}
