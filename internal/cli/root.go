package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

// Exit codes
const (
	ExitSuccess      = 0
	ExitUsageError   = 2
	ExitConfigError  = 3
	ExitRuntimeError = 4
	ExitInterrupted  = 130
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	noColor    bool
	logLevel   string
}

// NewRootCmd builds the tribunal command tree. Running the root command with
// --source and --target behaves like `tribunal review`.
func NewRootCmd() *cobra.Command {
	g := &globalOptions{}
	ro := &reviewOptions{}

	root := &cobra.Command{
		Use:   "tribunal",
		Short: "Multi-agent code review for git branches",
		Long: "Tribunal reviews the changes between two git branches with several independent\n" +
			"reviewer lenses, merges their findings into one verdict and lets you ask\n" +
			"follow-up questions in further rounds.",
		Args:          usageArgs(cobra.NoArgs),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if ro.source == "" && ro.target == "" {
				return cmd.Help()
			}
			return runReview(cmd, g, ro)
		},
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", "", "Config file path (default: the user config directory)")
	root.PersistentFlags().BoolVar(&g.noColor, "no-color", false, "Disable coloured output")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	addReviewFlags(root, ro)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	root.AddCommand(
		newReviewCmd(g),
		newBranchesCmd(),
		newConfigCmd(g),
		newModelsCmd(g),
		newCacheCmd(g),
		newSessionsCmd(g),
		newVersionCmd(),
	)
	return root
}

// Run executes the CLI with the process arguments and returns an exit code.
func Run() int {
	return Execute(context.Background(), NewRootCmd(), os.Args[1:])
}

// Execute runs root with args. Errors are printed once as "Error: ..." on
// stderr and mapped to an exit code.
func Execute(ctx context.Context, root *cobra.Command, args []string) int {
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}
	fmt.Fprintf(root.ErrOrStderr(), "Error: %v\n", err)
	return exitCode(err)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print tribunal version",
		Args:  usageArgs(cobra.NoArgs),
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tribunal version %s\n", version)
		},
	}
}
