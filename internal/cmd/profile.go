package cmd

import (
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/taskdesk/internal/errors"
	"github.com/felixgeelhaar/taskdesk/internal/platform"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show or change your profile",
	Args:  cobra.NoArgs,
	RunE:  runWhoami,
}

var profileUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update profile fields",
	Long: `Update the fields given as flags; others are left unchanged.

Examples:
  taskdesk profile update --first-name Ada --last-name Lovelace
  taskdesk profile update --expertise administrative`,
	Args: cobra.NoArgs,
	RunE: runProfileUpdate,
}

var profileFlags = []struct {
	name  string
	usage string
	field func(*platform.ProfileUpdate) **string
}{
	{"first-name", "first name", func(u *platform.ProfileUpdate) **string { return &u.FirstName }},
	{"last-name", "last name", func(u *platform.ProfileUpdate) **string { return &u.LastName }},
	{"email", "email address", func(u *platform.ProfileUpdate) **string { return &u.Email }},
	{"expertise", "expertise area", func(u *platform.ProfileUpdate) **string { return &u.Expertise }},
	{"image", "profile image URL", func(u *platform.ProfileUpdate) **string { return &u.ImageURL }},
}

func init() {
	for _, f := range profileFlags {
		profileUpdateCmd.Flags().String(f.name, "", f.usage)
	}

	profileCmd.AddCommand(profileUpdateCmd)
	rootCmd.AddCommand(profileCmd)
}

func runProfileUpdate(cmd *cobra.Command, args []string) error {
	var update platform.ProfileUpdate
	changed := 0
	for _, f := range profileFlags {
		if !cmd.Flags().Changed(f.name) {
			continue
		}
		v, _ := cmd.Flags().GetString(f.name)
		*f.field(&update) = &v
		changed++
	}
	if changed == 0 {
		return errors.New(errors.ErrCodeConfigInvalid, "nothing to update").
			WithSuggestion("Pass at least one of --first-name, --last-name, --email, --expertise, --image")
	}

	e, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	if _, err := e.mountUser(cmd); err != nil {
		return err
	}

	user, err := e.app.Session().UpdateProfile(cmd.Context(), update)
	if err != nil {
		return err
	}
	return e.out.Format(userView{User: *user})
}
