package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/dbchat/internal/cli"
	"github.com/theirongolddev/dbchat/internal/dialect"
	"github.com/theirongolddev/dbchat/internal/script"
)

var (
	flagNormalizeTrace  bool
	flagNormalizeOutput string
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize <dump.sql>",
	Short: "Print a MySQL dump rewritten for SQLite",
	Args:  cobra.ExactArgs(1),
	RunE:  runNormalize,
}

func init() {
	normalizeCmd.Flags().BoolVar(&flagNormalizeTrace, "trace", false, "Report rewrites per rule on stderr")
	normalizeCmd.Flags().StringVarP(&flagNormalizeOutput, "output", "o", "", "Write to a file instead of stdout")
	rootCmd.AddCommand(normalizeCmd)
}

func runNormalize(_ *cobra.Command, args []string) error {
	text, err := script.ReadFile(args[0])
	if err != nil {
		return err
	}

	out, hits := dialect.Trace(text)
	if flagNormalizeTrace {
		fmt.Fprint(os.Stderr, cli.RenderTrace(hits))
		fmt.Fprintf(os.Stderr, "  %s statements to run\n", cli.FormatNumber(int64(len(script.Statements(out)))))
	}

	if flagNormalizeOutput == "" {
		_, err = fmt.Print(out)
		return err
	}
	if err := os.WriteFile(flagNormalizeOutput, []byte(out), 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", flagNormalizeOutput, err)
	}
	return nil
}
