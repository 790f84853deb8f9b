package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/tribunal/internal/output"
	"github.com/dshills/tribunal/internal/store"
)

func newSessionsCmd(g *globalOptions) *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Browse review sessions saved with --session-db",
	}
	cmd.PersistentFlags().StringVar(&dbPath, "session-db", "", "Transcript database (default: session.db from config)")
	cmd.AddCommand(newSessionsListCmd(g, &dbPath), newSessionsShowCmd(g, &dbPath))
	return cmd
}

func openStore(cmd *cobra.Command, g *globalOptions, dbPath string) (*store.SQLiteStore, error) {
	overrides := map[string]any{}
	if dbPath != "" {
		overrides["session.db"] = dbPath
	}
	cfg, err := loadConfig(g, overrides)
	if err != nil {
		return nil, err
	}
	if cfg.Session.DB == "" {
		return nil, &usageError{err: errors.New("no transcript database: pass --session-db or set session.db")}
	}
	return store.Open(cmd.Context(), cfg.Session.DB)
}

func newSessionsListCmd(g *globalOptions, dbPath *string) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved sessions, most recent first",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openStore(cmd, g, *dbPath)
			if err != nil {
				return err
			}
			defer db.Close()

			sessions, err := db.ListSessions(cmd.Context(), limit)
			if err != nil {
				return err
			}
			ui := newUI(g, cmd.OutOrStdout(), cmd.ErrOrStderr())
			if len(sessions) == 0 {
				ui.Info("No saved sessions.")
				return nil
			}
			table := ui.Table([]string{"ID", "Source", "Target", "Model", "Rounds", "Decision", "Updated"})
			for _, s := range sessions {
				_ = table.Append([]string{
					shortID(s.ID), s.Source, s.Target, s.Provider + "/" + s.Model,
					fmt.Sprint(s.Rounds), string(s.LastDecision), s.UpdatedAt.Local().Format("2006-01-02 15:04"),
				})
			}
			return table.Render()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum sessions to list (0 for all)")
	return cmd
}

func newSessionsShowCmd(g *globalOptions, dbPath *string) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Render a saved session (ID or unique ID prefix)",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openStore(cmd, g, *dbPath)
			if err != nil {
				return err
			}
			defer db.Close()

			st, err := db.GetSession(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			renderer, err := output.GetRenderer(format, !useColor(g, cmd.OutOrStdout()))
			if err != nil {
				return &usageError{err: err}
			}
			return renderer.Session(cmd.OutOrStdout(), st)
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "Output format (text, markdown, json, yaml, sarif)")
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
