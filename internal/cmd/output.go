package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/felixgeelhaar/taskdesk/internal/account"
	"github.com/felixgeelhaar/taskdesk/internal/app"
	"github.com/felixgeelhaar/taskdesk/internal/platform"
	"github.com/felixgeelhaar/taskdesk/internal/tokenstore"
	"github.com/felixgeelhaar/taskdesk/internal/ux"
)

func dateOrDash(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02")
}

type userView struct {
	account.User `yaml:",inline"`
}

func (v userView) RenderText(w io.Writer) error {
	_, err := io.WriteString(w, app.DescribeUser(&v.User))
	return err
}

type loginResult struct {
	User    *account.User `json:"user" yaml:"user"`
	Storage string        `json:"storage" yaml:"storage"`
}

func (r loginResult) String() string {
	where := "saved for future runs"
	if r.Storage == tokenstore.KindSession.String() {
		where = "kept for this process only"
	}
	return fmt.Sprintf("Logged in as %s (%s). Session %s.", r.User.DisplayName(), r.User.Role, where)
}

type statusReport struct {
	APIURL   string               `json:"apiUrl" yaml:"api_url"`
	State    string               `json:"state" yaml:"state"`
	Storage  string               `json:"storage" yaml:"storage"`
	User     *account.User        `json:"user,omitempty" yaml:"user,omitempty"`
	Token    *platform.TokenInfo  `json:"token,omitempty" yaml:"token,omitempty"`
	LastUser *tokenstore.LastUser `json:"lastUser,omitempty" yaml:"last_user,omitempty"`
	Error    string               `json:"error,omitempty" yaml:"error,omitempty"`
}

func (s statusReport) RenderText(w io.Writer) error {
	fmt.Fprintf(w, "Backend:  %s\n", s.APIURL)
	fmt.Fprintf(w, "Session:  %s\n", s.State)
	fmt.Fprintf(w, "Token:    %s\n", s.Storage)
	if s.Token != nil && !s.Token.ExpiresAt.IsZero() {
		if s.Token.Expired(time.Now()) {
			fmt.Fprintf(w, "Expires:  %s (expired)\n", s.Token.ExpiresAt.Local().Format(time.RFC1123))
		} else {
			fmt.Fprintf(w, "Expires:  %s (in %s)\n", s.Token.ExpiresAt.Local().Format(time.RFC1123),
				time.Until(s.Token.ExpiresAt).Round(time.Minute))
		}
	}
	if s.User != nil {
		fmt.Fprintf(w, "User:     %s <%s> (%s)\n", s.User.DisplayName(), s.User.Email, s.User.Role)
	} else if s.LastUser != nil && s.LastUser.Email != "" {
		fmt.Fprintf(w, "Last:     %s, %s\n", s.LastUser.Email, s.LastUser.LoginTime.Local().Format(time.RFC1123))
	}
	if s.Error != "" {
		fmt.Fprintf(w, "Error:    %s\n", s.Error)
	}
	return nil
}

type projectList []platform.Project

func (l projectList) RenderText(w io.Writer) error {
	if len(l) == 0 {
		_, err := fmt.Fprintln(w, "No projects.")
		return err
	}
	rows := make([][]string, 0, len(l))
	for _, p := range l {
		rows = append(rows, []string{p.ID, p.Name, p.Status, dateOrDash(p.StartDate), dateOrDash(p.EndDate)})
	}
	return ux.WriteTable(w, []string{"ID", "NAME", "STATUS", "START", "END"}, rows)
}

type projectView struct {
	platform.Project `yaml:",inline"`
}

func (v projectView) RenderText(w io.Writer) error {
	fmt.Fprintf(w, "ID:           %s\n", v.ID)
	fmt.Fprintf(w, "Name:         %s\n", v.Name)
	fmt.Fprintf(w, "Status:       %s\n", v.Status)
	fmt.Fprintf(w, "Start:        %s\n", dateOrDash(v.StartDate))
	fmt.Fprintf(w, "End:          %s\n", dateOrDash(v.EndDate))
	if v.Description != "" {
		fmt.Fprintf(w, "\n%s\n", v.Description)
	}
	return nil
}

type taskList []platform.Task

func (l taskList) RenderText(w io.Writer) error {
	if len(l) == 0 {
		_, err := fmt.Fprintln(w, "No tasks.")
		return err
	}
	rows := make([][]string, 0, len(l))
	for _, t := range l {
		rows = append(rows, []string{t.ID, t.ProjectID, t.Title, t.Status, dateOrDash(t.DueDate)})
	}
	return ux.WriteTable(w, []string{"ID", "PROJECT", "TITLE", "STATUS", "DUE"}, rows)
}

type notificationList []platform.Notification

func (l notificationList) RenderText(w io.Writer) error {
	if len(l) == 0 {
		_, err := fmt.Fprintln(w, "No notifications.")
		return err
	}
	rows := make([][]string, 0, len(l))
	for _, n := range l {
		state := "unread"
		if n.Read {
			state = "read"
		}
		rows = append(rows, []string{n.ID, state, n.Message, dateOrDash(n.CreatedAt)})
	}
	return ux.WriteTable(w, []string{"ID", "STATE", "MESSAGE", "DATE"}, rows)
}

type routeList []app.Route

func (l routeList) RenderText(w io.Writer) error {
	rows := make([][]string, 0, len(l))
	for _, r := range l {
		rows = append(rows, []string{r.Path, r.Title, r.Requires()})
	}
	return ux.WriteTable(w, []string{"ROUTE", "TITLE", "REQUIRES"}, rows)
}
