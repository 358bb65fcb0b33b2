package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/dbchat/internal/cli"
	"github.com/theirongolddev/dbchat/internal/inspect"
	"github.com/theirongolddev/dbchat/internal/script"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <dump.sql>",
	Short: "Report MySQL constructs the normalizer leaves in place",
	Long: "Parses the raw dump with a MySQL grammar and lists table definitions\n" +
		"likely to fail after normalization. Nothing is executed.",
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(_ *cobra.Command, args []string) error {
	text, err := script.ReadFile(args[0])
	if err != nil {
		return err
	}
	rep, err := inspect.Inspect(text)
	if err != nil {
		return err
	}
	fmt.Println()
	fmt.Print(cli.RenderFindings(rep))
	return nil
}
