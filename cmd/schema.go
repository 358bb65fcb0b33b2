package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var schemaCmd = &cobra.Command{
	Use:   "schema <file.db|file.sql>",
	Short: "Describe the tables of a database or script",
	Args:  cobra.ExactArgs(1),
	RunE:  runSchema,
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}

func runSchema(c *cobra.Command, args []string) error {
	ctx := cmdContext(c)
	s, cleanup, err := loadedSession(ctx, args[0])
	if err != nil {
		return err
	}
	defer cleanup()

	text, err := s.Schema(ctx)
	if err != nil {
		return err
	}
	fmt.Println(text)
	return nil
}
