package tui

import (
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/theirongolddev/dbchat/internal/config"
	"github.com/theirongolddev/dbchat/internal/llm"
	"github.com/theirongolddev/dbchat/internal/tui/theme"
)

// setupValues is bound to the first-run form fields.
type setupValues struct {
	apiKey  string
	baseURL string
	model   string
	theme   string
}

func newSetupValues() *setupValues {
	cfg, _ := config.Load()
	return &setupValues{
		baseURL: cfg.LLM.BaseURL,
		model:   cfg.LLM.Model,
		theme:   theme.ByName(cfg.Appearance.Theme).Name,
	}
}

func newSetupForm(v *setupValues) *huh.Form {
	themeOpts := huh.NewOptions(theme.Names()...)

	return huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title("Welcome to dbchat").
				Description("Load a .db or .sql file and ask questions about it in plain language.\nAnswers need an OpenAI-compatible API key; without one the chat still loads and queries data."),
			huh.NewInput().
				Title("API key").
				Description("Leave blank to skip. DBCHAT_API_KEY overrides this.").
				EchoMode(huh.EchoModePassword).
				Value(&v.apiKey),
			huh.NewInput().
				Title("Endpoint").
				Placeholder(llm.DefaultBaseURL).
				Value(&v.baseURL),
			huh.NewInput().
				Title("Model").
				Placeholder(llm.DefaultModel).
				Value(&v.model),
			huh.NewSelect[string]().
				Title("Color theme").
				Options(themeOpts...).
				Value(&v.theme),
		),
	).WithShowHelp(false)
}

// saveSetupConfig merges the form values into the stored config and applies the theme.
func saveSetupConfig(v *setupValues) (config.Config, error) {
	cfg, _ := config.Load()

	if key := strings.TrimSpace(v.apiKey); key != "" {
		cfg.LLM.APIKey = key
	}
	cfg.LLM.BaseURL = strings.TrimSpace(v.baseURL)
	cfg.LLM.Model = strings.TrimSpace(v.model)
	if v.theme != "" {
		cfg.Appearance.Theme = v.theme
		theme.SetActive(v.theme)
	}

	return cfg, config.Save(cfg)
}

// RunSetup runs the setup form on its own, outside the chat.
func RunSetup() (config.Config, error) {
	v := newSetupValues()
	if err := newSetupForm(v).Run(); err != nil {
		return config.Config{}, err
	}
	return saveSetupConfig(v)
}
