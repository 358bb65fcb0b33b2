package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/dbchat/internal/config"
	"github.com/theirongolddev/dbchat/internal/llm"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show current configuration",
	RunE:  runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(_ *cobra.Command, _ []string) error {
	cfg := loadConfig()

	fmt.Printf("  Config file: %s\n", config.ConfigPath())
	if config.Exists() {
		fmt.Println("  Status: loaded")
	} else {
		fmt.Println("  Status: using defaults (no config file)")
	}
	fmt.Println()

	fmt.Println("  [General]")
	fmt.Printf("    Data directory: %s\n", config.DataDir(cfg))
	fmt.Printf("    Save history:   %v\n", cfg.General.SaveHistory)
	fmt.Println()

	fmt.Println("  [LLM]")
	if apiKey := config.GetAPIKey(cfg); apiKey != "" {
		fmt.Printf("    API key:  %s\n", maskAPIKey(apiKey))
	} else {
		fmt.Println("    API key:  not configured (answers are empty)")
	}
	fmt.Printf("    Endpoint: %s\n", valueOr(config.GetBaseURL(cfg), llm.DefaultBaseURL))
	fmt.Printf("    Model:    %s\n", valueOr(config.GetModel(cfg), llm.DefaultModel))
	fmt.Println()

	fmt.Println("  [Appearance]")
	fmt.Printf("    Theme: %s\n", cfg.Appearance.Theme)
	fmt.Println()

	fmt.Println("  [Log]")
	fmt.Printf("    Level: %s\n", cfg.Log.Level)
	fmt.Printf("    JSON:  %v\n", cfg.Log.JSON)
	fmt.Println()

	fmt.Println("  [Server]")
	fmt.Printf("    Address:    %s\n", cfg.Server.Addr)
	fmt.Printf("    Max upload: %d MB\n", cfg.Server.MaxUploadMB)
	fmt.Println()

	fmt.Println("  Run `dbchat setup` to reconfigure.")
	return nil
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
