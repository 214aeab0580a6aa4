package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/taskdesk/internal/account"
	"github.com/felixgeelhaar/taskdesk/internal/session"
	"github.com/felixgeelhaar/taskdesk/internal/ux"
)

const dateLayout = "2006-01-02"

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(dateLayout)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func table(headers []string, rows [][]string, empty string) (string, error) {
	if len(rows) == 0 {
		return empty + "\n", nil
	}
	var b strings.Builder
	if err := ux.WriteTable(&b, headers, rows); err != nil {
		return "", err
	}
	return b.String(), nil
}

func loginView(_ context.Context, a *App, _ session.Snapshot) (string, error) {
	var b strings.Builder
	b.WriteString("You are not signed in.\n")
	b.WriteString("Run 'taskdesk login' to authenticate.\n")
	if last, ok := a.store.LastUser(); ok && last.Email != "" {
		fmt.Fprintf(&b, "\nLast signed in as %s (%s) on %s.\n", last.Email, last.Role, last.LoginTime.Local().Format(time.RFC1123))
	}
	return b.String(), nil
}

func dashboardView(ctx context.Context, a *App, snap session.Snapshot) (string, error) {
	projects, err := a.client.ListProjects(ctx)
	if err != nil {
		return "", err
	}
	tasks, err := a.client.ListTasks(ctx, "")
	if err != nil {
		return "", err
	}
	notes, err := a.client.ListNotifications(ctx)
	if err != nil {
		return "", err
	}

	open := 0
	for _, t := range tasks {
		if t.Status != "done" {
			open++
		}
	}
	unread := 0
	for _, n := range notes {
		if !n.Read {
			unread++
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Welcome back, %s.\n\n", snap.User.DisplayName())
	fmt.Fprintf(&b, "Projects:       %d\n", len(projects))
	fmt.Fprintf(&b, "Open tasks:     %d\n", open)
	fmt.Fprintf(&b, "Notifications:  %d unread\n", unread)
	return b.String(), nil
}

func projectsView(ctx context.Context, a *App, _ session.Snapshot) (string, error) {
	projects, err := a.client.ListProjects(ctx)
	if err != nil {
		return "", err
	}
	rows := make([][]string, 0, len(projects))
	for _, p := range projects {
		rows = append(rows, []string{p.ID, p.Name, orDash(p.Status)})
	}
	return table([]string{"ID", "NAME", "STATUS"}, rows, "No projects.")
}

func manageProjectsView(ctx context.Context, a *App, _ session.Snapshot) (string, error) {
	projects, err := a.client.ListProjects(ctx)
	if err != nil {
		return "", err
	}
	rows := make([][]string, 0, len(projects))
	for _, p := range projects {
		rows = append(rows, []string{p.ID, p.Name, orDash(p.Status), orDash(p.ManagerID), formatDate(p.StartDate), formatDate(p.EndDate)})
	}
	return table([]string{"ID", "NAME", "STATUS", "MANAGER", "START", "END"}, rows, "No projects to manage.")
}

func planningView(ctx context.Context, a *App, _ session.Snapshot) (string, error) {
	projects, err := a.client.ListProjects(ctx)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, p := range projects {
		tasks, err := a.client.ListTasks(ctx, p.ID)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "%s (%s)\n", p.Name, orDash(p.Status))
		if len(tasks) == 0 {
			b.WriteString("  no tasks\n")
		}
		for _, t := range tasks {
			fmt.Fprintf(&b, "  [%s] %s  due %s\n", t.Status, t.Title, formatDate(t.DueDate))
		}
		b.WriteString("\n")
	}
	if b.Len() == 0 {
		return "Nothing to plan.\n", nil
	}
	return b.String(), nil
}

func tasksView(ctx context.Context, a *App, _ session.Snapshot) (string, error) {
	tasks, err := a.client.ListTasks(ctx, "")
	if err != nil {
		return "", err
	}
	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, []string{t.ID, t.ProjectID, t.Title, t.Status, formatDate(t.DueDate)})
	}
	return table([]string{"ID", "PROJECT", "TITLE", "STATUS", "DUE"}, rows, "No tasks.")
}

func calendarView(ctx context.Context, a *App, _ session.Snapshot) (string, error) {
	events, err := a.client.ListEvents(ctx)
	if err != nil {
		return "", err
	}
	rows := make([][]string, 0, len(events))
	for _, e := range events {
		rows = append(rows, []string{e.Start.Local().Format("2006-01-02 15:04"), e.End.Local().Format("15:04"), e.Title})
	}
	return table([]string{"START", "END", "TITLE"}, rows, "No upcoming events.")
}

func documentsView(ctx context.Context, a *App, _ session.Snapshot) (string, error) {
	docs, err := a.client.ListDocuments(ctx)
	if err != nil {
		return "", err
	}
	rows := make([][]string, 0, len(docs))
	for _, d := range docs {
		rows = append(rows, []string{d.ID, d.Name, orDash(d.ProjectID), fmt.Sprintf("%d", d.Size), formatDate(d.UpdatedAt)})
	}
	return table([]string{"ID", "NAME", "PROJECT", "BYTES", "UPDATED"}, rows, "No documents.")
}

func wikiView(ctx context.Context, a *App, _ session.Snapshot) (string, error) {
	pages, err := a.client.ListWikiPages(ctx)
	if err != nil {
		return "", err
	}
	rows := make([][]string, 0, len(pages))
	for _, p := range pages {
		rows = append(rows, []string{p.Slug, p.Title, formatDate(p.UpdatedAt)})
	}
	return table([]string{"SLUG", "TITLE", "UPDATED"}, rows, "The wiki is empty.")
}

func notificationsView(ctx context.Context, a *App, _ session.Snapshot) (string, error) {
	notes, err := a.client.ListNotifications(ctx)
	if err != nil {
		return "", err
	}
	rows := make([][]string, 0, len(notes))
	for _, n := range notes {
		mark := "*"
		if n.Read {
			mark = ""
		}
		rows = append(rows, []string{mark, n.ID, n.Message, formatDate(n.CreatedAt)})
	}
	return table([]string{"", "ID", "MESSAGE", "DATE"}, rows, "No notifications.")
}

func profileView(_ context.Context, _ *App, snap session.Snapshot) (string, error) {
	return DescribeUser(snap.User), nil
}

func usersView(ctx context.Context, a *App, _ session.Snapshot) (string, error) {
	users, err := a.client.ListUsers(ctx)
	if err != nil {
		return "", err
	}
	rows := make([][]string, 0, len(users))
	for _, u := range users {
		rows = append(rows, []string{u.ID, u.DisplayName(), u.Email, string(u.Role), orDash(u.Expertise)})
	}
	return table([]string{"ID", "NAME", "EMAIL", "ROLE", "EXPERTISE"}, rows, "No users.")
}

func settingsView(_ context.Context, a *App, _ session.Snapshot) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "API URL:       %s\n", a.cfg.APIURL)
	fmt.Fprintf(&b, "Timeout:       %s\n", a.cfg.Timeout)
	fmt.Fprintf(&b, "Storage:       %s\n", a.cfg.StoragePath)
	fmt.Fprintf(&b, "Log level:     %s\n", a.cfg.Logging.Level)
	return b.String(), nil
}

// DescribeUser renders a user's profile as aligned key/value lines.
func DescribeUser(u *account.User) string {
	if u == nil {
		return "Not signed in.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Name:       %s\n", u.DisplayName())
	fmt.Fprintf(&b, "Email:      %s\n", u.Email)
	fmt.Fprintf(&b, "Role:       %s\n", u.Role)
	fmt.Fprintf(&b, "Expertise:  %s\n", orDash(u.Expertise))
	if u.ImageURL != "" {
		fmt.Fprintf(&b, "Image:      %s\n", u.ImageURL)
	}
	return b.String()
}
