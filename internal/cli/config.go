package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/tribunal/internal/config"
)

func newConfigCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage tribunal configuration",
	}
	cmd.AddCommand(newConfigInitCmd(g), newConfigSetCmd(g), newConfigShowCmd(g))
	return cmd
}

// configFile is the file config init and set write to.
func configFile(g *globalOptions) (string, error) {
	if g.configPath != "" {
		return g.configPath, nil
	}
	return config.ConfigPath()
}

func newConfigInitCmd(g *globalOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a default configuration file",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configFile(g)
			if err != nil {
				return err
			}
			if err := config.Init(path, force); err != nil {
				return &configError{err: err}
			}
			newUI(g, cmd.OutOrStdout(), cmd.ErrOrStderr()).Success("Config file created at %s", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	return cmd
}

func newConfigSetCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: "Set a configuration value in the config file. Nested keys use dots\n" +
			"(dedup.similarity, cache.enabled); list values are comma-separated.",
		Args: usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configFile(g)
			if err != nil {
				return err
			}
			if err := config.SetField(path, args[0], args[1]); err != nil {
				return &configError{err: err}
			}
			newUI(g, cmd.OutOrStdout(), cmd.ErrOrStderr()).Success("Set %s = %s", args[0], args[1])
			return nil
		},
	}
}

func newConfigShowCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration and where each value comes from",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Describe(g.configPath)
			if err != nil {
				return &configError{err: err}
			}
			ui := newUI(g, cmd.OutOrStdout(), cmd.ErrOrStderr())
			table := ui.Table([]string{"Key", "Value", "Source", "Env"})
			for _, s := range settings {
				_ = table.Append([]string{s.Key, s.Value, s.Source, s.EnvVar})
			}
			if err := table.Render(); err != nil {
				return fmt.Errorf("rendering table: %w", err)
			}
			return nil
		},
	}
}
