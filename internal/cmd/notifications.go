package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/taskdesk/internal/ux"
)

var notificationsCmd = &cobra.Command{
	Use:     "notifications",
	Aliases: []string{"notes"},
	Short:   "Read your notifications",
}

var notificationsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List notifications",
	Args:    cobra.NoArgs,
	RunE:    runNotificationsList,
}

var notificationsReadCmd = &cobra.Command{
	Use:   "read <id>...",
	Short: "Mark notifications as read",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runNotificationsRead,
}

func init() {
	notificationsListCmd.Flags().Bool("unread", false, "only unread notifications")

	notificationsCmd.AddCommand(notificationsListCmd)
	notificationsCmd.AddCommand(notificationsReadCmd)
	rootCmd.AddCommand(notificationsCmd)
}

func runNotificationsList(cmd *cobra.Command, args []string) error {
	e, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	if _, err := e.mountUser(cmd); err != nil {
		return err
	}

	notes, err := e.app.Client().ListNotifications(cmd.Context())
	if err != nil {
		return ux.FormatError(err, "list notifications")
	}
	if unread, _ := cmd.Flags().GetBool("unread"); unread {
		filtered := notes[:0]
		for _, n := range notes {
			if !n.Read {
				filtered = append(filtered, n)
			}
		}
		notes = filtered
	}
	return e.out.Format(notificationList(notes))
}

func runNotificationsRead(cmd *cobra.Command, args []string) error {
	e, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	if _, err := e.mountUser(cmd); err != nil {
		return err
	}

	for _, id := range args {
		if err := e.app.Client().MarkNotificationRead(cmd.Context(), id); err != nil {
			return ux.FormatError(err, fmt.Sprintf("mark %s as read", id))
		}
		e.logger.Debug("notification marked read", "id", id)
	}
	return e.out.Format(fmt.Sprintf("Marked %d notification(s) as read.", len(args)))
}
