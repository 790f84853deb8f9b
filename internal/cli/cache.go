package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/dshills/tribunal/internal/cache"
)

func newCacheCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the reviewer response cache",
	}
	cmd.AddCommand(newCacheShowCmd(g), newCacheClearCmd(g))
	return cmd
}

func newCacheClearCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all cached reviewer responses",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(g, nil)
			if err != nil {
				return err
			}
			c, err := cache.New(true, cfg.Cache.Dir, cfg.Cache.TTLSeconds)
			if err != nil {
				return fmt.Errorf("opening cache: %w", err)
			}
			n, err := c.Clear()
			if err != nil {
				return fmt.Errorf("clearing cache: %w", err)
			}
			newUI(g, cmd.OutOrStdout(), cmd.ErrOrStderr()).Success("Removed %d cached responses from %s", n, c.Dir())
			return nil
		},
	}
}

func newCacheShowCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show cache statistics",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(g, nil)
			if err != nil {
				return err
			}
			ui := newUI(g, cmd.OutOrStdout(), cmd.ErrOrStderr())
			if !cfg.Cache.Enabled {
				ui.Info("Cache is disabled.")
				return nil
			}
			c, err := cache.New(true, cfg.Cache.Dir, cfg.Cache.TTLSeconds)
			if err != nil {
				return fmt.Errorf("opening cache: %w", err)
			}
			stats, err := c.GetStats()
			if err != nil {
				return fmt.Errorf("reading cache stats: %w", err)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Directory: %s\n", stats.Dir)
			fmt.Fprintf(w, "Entries:   %d (%d expired)\n", stats.Entries, stats.Expired)
			fmt.Fprintf(w, "Size:      %d bytes\n", stats.TotalBytes)
			if len(stats.ByLens) == 0 {
				return nil
			}
			lenses := make([]string, 0, len(stats.ByLens))
			for l := range stats.ByLens {
				lenses = append(lenses, l)
			}
			sort.Strings(lenses)
			fmt.Fprintln(w)
			table := ui.Table([]string{"Lens", "Entries"})
			for _, l := range lenses {
				_ = table.Append([]string{l, fmt.Sprint(stats.ByLens[l])})
			}
			return table.Render()
		},
	}
}
