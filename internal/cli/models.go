package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/tribunal/internal/providers"
)

type modelInfo struct {
	Provider string
	Models   []string
}

var knownModels = []modelInfo{
	{Provider: "anthropic", Models: []string{"claude-sonnet-4-20250514", "claude-opus-4-1-20250805", "claude-3-5-haiku-latest"}},
	{Provider: "openai", Models: []string{"gpt-4o", "gpt-4.1", "gpt-4.1-mini", "o3-mini"}},
	{Provider: "openrouter", Models: []string{"anthropic/claude-sonnet-4", "openai/gpt-4o", "google/gemini-2.5-pro"}},
	{Provider: "gemini", Models: []string{"gemini-2.5-flash", "gemini-2.5-pro"}},
	{Provider: "ollama", Models: []string{"llama3.1", "qwen2.5-coder", "deepseek-coder-v2"}},
}

func newModelsCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Provider and model management",
	}
	cmd.AddCommand(newModelsListCmd(g), newModelsDoctorCmd(g))
	return cmd
}

func newModelsListCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List known providers, their models and credentials",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			ui := newUI(g, cmd.OutOrStdout(), cmd.ErrOrStderr())
			table := ui.Table([]string{"Provider", "Model", "Default", "Credential"})
			for _, info := range knownModels {
				cred := credentialStatus(info.Provider)
				for _, m := range info.Models {
					def := ""
					if m == providers.DefaultModel(info.Provider) {
						def = "yes"
					}
					_ = table.Append([]string{info.Provider, m, def, cred})
				}
			}
			return table.Render()
		},
	}
}

// credentialStatus describes whether the provider's key is present.
func credentialStatus(provider string) string {
	env := providers.KeyEnv(provider)
	if env == "" {
		return "not required"
	}
	if os.Getenv(env) != "" {
		return env + " set"
	}
	return env + " missing"
}

func newModelsDoctorCmd(g *globalOptions) *cobra.Command {
	var provider, model string
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that the selected provider is configured and responding",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides := map[string]any{}
			if provider != "" {
				overrides["provider"] = provider
			}
			if model != "" {
				overrides["model"] = model
			}
			cfg, err := loadConfig(g, overrides)
			if err != nil {
				return err
			}
			ui := newUI(g, cmd.OutOrStdout(), cmd.ErrOrStderr())

			name, err := providers.Detect(cfg.Provider)
			if err != nil {
				return err
			}
			m, err := providers.New(name, cfg.Model)
			if err != nil {
				return err
			}
			ui.Info("Checking %s (%s)...", m.Name(), m.ModelID())

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if _, err := m.Invoke(ctx, providers.Request{
				System:    "Respond with exactly: ok",
				Prompt:    "ping",
				MaxTokens: 10,
			}); err != nil {
				return fmt.Errorf("%s: %w", m.Name(), err)
			}
			ui.Success("%s is configured and responding", m.Name())
			return nil
		},
	}
	cmd.Flags().StringVarP(&provider, "provider", "p", "", "Provider to check (auto-detected when empty)")
	cmd.Flags().StringVarP(&model, "model", "m", "", "Model to check")
	return cmd
}
