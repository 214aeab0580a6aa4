package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/taskdesk/internal/errors"
	"github.com/felixgeelhaar/taskdesk/internal/platform"
	"github.com/felixgeelhaar/taskdesk/internal/session"
	"github.com/felixgeelhaar/taskdesk/internal/tokenstore"
	"github.com/felixgeelhaar/taskdesk/internal/tui"
)

// EnvPassword lets scripts pass the password without exposing it in argv.
const EnvPassword = "TASKDESK_PASSWORD"

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the platform",
	Long: `Sign in with your email and password.

On a terminal, missing values are asked for in a form. In scripts pass
--email and --password, or set TASKDESK_PASSWORD.

With --remember (the default) the session token is saved in
~/.taskdesk/storage.json and reused by later commands. With --remember=false
it lives only as long as this process, which is useful for 'taskdesk shell'.

Examples:
  taskdesk login
  taskdesk login --email ada@example.com
  TASKDESK_PASSWORD=... taskdesk login --email ada@example.com`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the stored session",
	Long: `Sign out. The backend is told about it when reachable; the stored token is
removed locally in any case.`,
	Args: cobra.NoArgs,
	RunE: runLogout,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show session status",
	Long: `Check the stored session against the backend and report the result.

status never fails because of the session itself: an expired token or an
unreachable backend is reported, not returned as an error.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Print the signed-in user",
	Args:  cobra.NoArgs,
	RunE:  runWhoami,
}

func init() {
	loginCmd.Flags().String("email", "", "account email")
	loginCmd.Flags().String("password", "", "account password (prefer TASKDESK_PASSWORD or the prompt)")
	loginCmd.Flags().Bool("remember", true, "keep the session for future runs")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(whoamiCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	e, err := bootstrap(cmd)
	if err != nil {
		return err
	}

	email, _ := cmd.Flags().GetString("email")
	password, _ := cmd.Flags().GetString("password")
	remember, _ := cmd.Flags().GetBool("remember")
	if password == "" {
		password = os.Getenv(EnvPassword)
	}

	if email == "" || password == "" {
		if !tui.ShouldPrompt() {
			var missing []string
			if email == "" {
				missing = append(missing, "email")
			}
			if password == "" {
				missing = append(missing, "password")
			}
			return errors.NewMissingInputError("no terminal to prompt on", missing...).
				WithSuggestion(fmt.Sprintf("Or set %s to supply the password", EnvPassword))
		}
		if email == "" {
			if last, ok := e.app.Store().LastUser(); ok {
				email = last.Email
			}
		}
		creds := tui.Credentials{Email: email, Password: password, Remember: remember}
		if err := tui.PromptLogin(&creds); err != nil {
			return err
		}
		email, password, remember = creds.Email, creds.Password, creds.Remember
	}

	user, err := e.app.Login(cmd.Context(), strings.TrimSpace(email), password, remember)
	if err != nil {
		return err
	}
	return e.out.Format(loginResult{User: user, Storage: tokenstore.KindFor(remember).String()})
}

func runLogout(cmd *cobra.Command, args []string) error {
	e, err := bootstrap(cmd)
	if err != nil {
		return err
	}

	had := e.app.Store().HasToken()
	e.app.Logout(cmd.Context())
	if !had {
		return e.out.Format("Not logged in.")
	}
	return e.out.Format("Logged out.")
}

func runStatus(cmd *cobra.Command, args []string) error {
	e, err := bootstrap(cmd)
	if err != nil {
		return err
	}

	token, kind := e.app.Store().Read()
	snap := e.app.Mount(cmd.Context())

	report := statusReport{
		APIURL:  e.cfg.APIURL,
		State:   snap.State.String(),
		Storage: kind.String(),
		User:    snap.User,
	}
	if info, ok := platform.InspectToken(token); ok && snap.HasToken {
		report.Token = &info
	}
	if snap.User == nil {
		if last, ok := e.app.Store().LastUser(); ok {
			report.LastUser = &last
		}
	}
	if snap.State == session.StateUnauthenticated && snap.Err == nil {
		report.Error = "not logged in; run 'taskdesk login'"
	} else if snap.Err != nil {
		report.Error = firstLine(snap.Err.Error())
	}
	return e.out.Format(report)
}

func runWhoami(cmd *cobra.Command, args []string) error {
	e, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	snap, err := e.mountUser(cmd)
	if err != nil {
		return err
	}
	return e.out.Format(userView{User: *snap.User})
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
