package cmd

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/taskdesk/internal/guard"
	"github.com/felixgeelhaar/taskdesk/internal/tui"
)

var openCmd = &cobra.Command{
	Use:   "open [route]",
	Short: "Render a view",
	Long: `Render one view of the platform, the way the web client would after
navigating to the route. Access rules apply: without a session you land on
/login, without the required role on your default page.

Examples:
  taskdesk open /dashboard
  taskdesk open projects/planning
  taskdesk open --list`,
	Args: cobra.MaximumNArgs(1),
	RunE: runOpen,
}

var shellCmd = &cobra.Command{
	Use:   "shell [route]",
	Short: "Start the interactive shell",
	Long: `Start an interactive shell. Type a route to open it; the status line shows
the session and a spinner while it is being checked. Landing on /login
opens a sign-in form.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runShell,
}

func init() {
	openCmd.Flags().Bool("list", false, "list available routes")

	rootCmd.AddCommand(openCmd)
	rootCmd.AddCommand(shellCmd)
}

func runOpen(cmd *cobra.Command, args []string) error {
	e, err := bootstrap(cmd)
	if err != nil {
		return err
	}

	if list, _ := cmd.Flags().GetBool("list"); list || len(args) == 0 {
		return e.out.Format(routeList(e.app.Routes().Sorted()))
	}

	e.app.Mount(cmd.Context())
	page, err := e.app.Navigate(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if page.Denied != nil {
		e.logger.WithError(page.Denied).Warn("access denied", "requested", args[0], "rendered", page.Route)
	} else if len(page.Redirects) > 0 {
		e.logger.Info("redirected", "requested", args[0], "rendered", page.Route)
	}
	return e.out.Format(page)
}

func runShell(cmd *cobra.Command, args []string) error {
	e, err := bootstrap(cmd)
	if err != nil {
		return err
	}

	start := guard.DashboardRoute
	if len(args) == 1 {
		start = args[0]
	}

	updates, unsubscribe := tui.Subscribe(e.app.Session())
	defer unsubscribe()

	shell := tui.NewShell(cmd.Context(), e.app, start, updates)
	p := tea.NewProgram(shell,
		tea.WithAltScreen(),
		tea.WithContext(cmd.Context()),
		tea.WithInput(cmd.InOrStdin()),
		tea.WithOutput(cmd.OutOrStdout()),
	)
	_, err = p.Run()
	return err
}
