package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/dbchat/internal/cli"
	"github.com/theirongolddev/dbchat/internal/database"
	"github.com/theirongolddev/dbchat/internal/script"
)

var flagExecDB string

var execCmd = &cobra.Command{
	Use:   "exec <script.sql>",
	Short: "Normalize and run a SQL script",
	Long: "Runs every statement of the script in order and stops at the first failure.\n" +
		"Without --db the script runs against a throwaway in-memory database.",
	Args: cobra.ExactArgs(1),
	RunE: runExec,
}

func init() {
	execCmd.Flags().StringVar(&flagExecDB, "db", "", "SQLite file to apply the script to (created if missing)")
	rootCmd.AddCommand(execCmd)
}

func runExec(c *cobra.Command, args []string) error {
	cfg := loadConfig()
	logger := newLogger(cfg)
	ctx := cmdContext(c)

	src := database.Memory()
	if flagExecDB != "" {
		src = database.NewFile(flagExecDB)
	}
	h, err := database.Open(ctx, src)
	if err != nil {
		return err
	}
	defer func() { _ = h.Close() }()

	rep, err := script.New(logger).Execute(ctx, h, args[0])
	printReport(rep)
	if err != nil {
		var se *script.StatementError
		if errors.As(err, &se) && !flagQuiet {
			fmt.Fprintf(os.Stderr, "  %d statements before the failure stay applied.\n", rep.Executed)
		}
		return err
	}

	tables, err := h.Tables(ctx)
	if err != nil {
		return err
	}
	if !flagQuiet {
		fmt.Printf("  %s now has %d tables\n", src, len(tables))
	}
	return nil
}

func printReport(rep script.Report) {
	if flagQuiet {
		return
	}
	fmt.Printf("  Submitted %s statements, %s succeeded, %s skipped (%s)\n",
		cli.FormatNumber(int64(rep.Submitted)),
		cli.FormatNumber(int64(rep.Executed)),
		cli.FormatNumber(int64(rep.Skipped)),
		cli.FormatElapsed(rep.Duration),
	)
}
