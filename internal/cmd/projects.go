package cmd

import (
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/taskdesk/internal/ux"
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "Work with projects",
}

var projectsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List the projects visible to you",
	Args:    cobra.NoArgs,
	RunE:    runProjectsList,
}

var projectsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one project",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectsShow,
}

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Work with tasks",
}

var tasksListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List tasks, optionally for one project",
	Args:    cobra.NoArgs,
	RunE:    runTasksList,
}

func init() {
	tasksListCmd.Flags().String("project", "", "only tasks of this project ID")

	projectsCmd.AddCommand(projectsListCmd)
	projectsCmd.AddCommand(projectsShowCmd)
	tasksCmd.AddCommand(tasksListCmd)

	rootCmd.AddCommand(projectsCmd)
	rootCmd.AddCommand(tasksCmd)
}

func runProjectsList(cmd *cobra.Command, args []string) error {
	e, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	if _, err := e.mountUser(cmd); err != nil {
		return err
	}

	projects, err := e.app.Client().ListProjects(cmd.Context())
	if err != nil {
		return ux.FormatError(err, "list projects")
	}
	return e.out.Format(projectList(projects))
}

func runProjectsShow(cmd *cobra.Command, args []string) error {
	e, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	if _, err := e.mountUser(cmd); err != nil {
		return err
	}

	project, err := e.app.Client().GetProject(cmd.Context(), args[0])
	if err != nil {
		return ux.FormatError(err, "show project "+args[0])
	}
	return e.out.Format(projectView{Project: *project})
}

func runTasksList(cmd *cobra.Command, args []string) error {
	e, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	if _, err := e.mountUser(cmd); err != nil {
		return err
	}

	projectID, _ := cmd.Flags().GetString("project")
	tasks, err := e.app.Client().ListTasks(cmd.Context(), projectID)
	if err != nil {
		return ux.FormatError(err, "list tasks")
	}
	return e.out.Format(taskList(tasks))
}
