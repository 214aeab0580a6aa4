package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "taskdesk",
	Short: "Terminal client for the taskdesk project and task platform",
	Long: `taskdesk is a terminal client for the taskdesk project and task management
platform. It signs you in, keeps your session across runs, and renders the
platform's views (dashboard, projects, tasks, calendar, documents, wiki,
notifications and administration) either as one-shot commands or inside an
interactive shell.

Configuration lives in ~/.taskdesk/config.yaml and can be overridden with
TASKDESK_* environment variables or the global flags below.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with ctx, which is cancelled on
// interrupt by main.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().String("api-url", "", "backend API base URL (overrides api_url)")
	rootCmd.PersistentFlags().String("config", "", "config file (default is $HOME/.taskdesk/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "log format: text, json")
	rootCmd.PersistentFlags().StringP("output", "o", "", "output format: text, json, yaml")
}
