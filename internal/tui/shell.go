// Package tui is the interactive terminal shell: a route prompt over the
// rendered page, a spinner while the session is being checked, and an
// embedded sign-in form whenever navigation lands on the login page.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/felixgeelhaar/taskdesk/internal/account"
	"github.com/felixgeelhaar/taskdesk/internal/app"
	"github.com/felixgeelhaar/taskdesk/internal/guard"
	"github.com/felixgeelhaar/taskdesk/internal/session"
)

// Backend is what the shell drives. *app.App implements it.
type Backend interface {
	Mount(ctx context.Context) session.Snapshot
	Navigate(ctx context.Context, path string) (*app.Page, error)
	Login(ctx context.Context, email, password string, remember bool) (*account.User, error)
	Logout(ctx context.Context)
	Snapshot() session.Snapshot
}

type shellKeys struct {
	Quit   key.Binding
	Submit key.Binding
	Cancel key.Binding
	Back   key.Binding
}

var defaultKeys = shellKeys{
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c"),
		key.WithHelp("ctrl+c", "quit"),
	),
	Submit: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "open route"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "clear"),
	),
	Back: key.NewBinding(
		key.WithKeys("ctrl+b"),
		key.WithHelp("ctrl+b", "back"),
	),
}

// Messages

type mountedMsg struct {
	snap session.Snapshot
}

type pageMsg struct {
	path string
	page *app.Page
	err  error
}

type loginMsg struct {
	next string
	user *account.User
	err  error
}

type sessionMsg session.Snapshot

// Shell is the bubbletea model of 'taskdesk shell'.
type Shell struct {
	ctx     context.Context
	backend Backend
	start   string
	updates <-chan session.Snapshot

	spinner spinner.Model
	input   textinput.Model
	keys    shellKeys
	styles  Styles

	form      *huh.Form
	creds     *Credentials
	afterAuth string

	snap     session.Snapshot
	page     *app.Page
	err      error
	busy     string
	history  []string
	width    int
	height   int
	quitting bool
}

// NewShell creates the shell. updates, if non-nil, delivers session
// snapshots as they change so the status line tracks background transitions.
func NewShell(ctx context.Context, backend Backend, start string, updates <-chan session.Snapshot) Shell {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = DefaultStyles().Status

	in := textinput.New()
	in.Prompt = "> "
	in.Placeholder = "route, e.g. /projects (or back, reload, logout, quit)"
	in.CharLimit = 256
	in.Focus()

	if start == "" {
		start = guard.DashboardRoute
	}

	return Shell{
		ctx:     ctx,
		backend: backend,
		start:   start,
		updates: updates,
		spinner: sp,
		input:   in,
		keys:    defaultKeys,
		styles:  DefaultStyles(),
		snap:    backend.Snapshot(),
		busy:    "Checking session",
	}
}

// Subscribe adapts a session container subscription to the channel
// NewShell expects. Snapshots are dropped while the shell is behind.
func Subscribe(c *session.Container) (<-chan session.Snapshot, func()) {
	ch := make(chan session.Snapshot, 8)
	unsubscribe := c.Subscribe(func(s session.Snapshot) {
		select {
		case ch <- s:
		default:
		}
	})
	return ch, unsubscribe
}

// Init starts the spinner, the mount and the session listener.
func (m Shell) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.mount(), m.listen())
}

func (m Shell) mount() tea.Cmd {
	return func() tea.Msg {
		return mountedMsg{snap: m.backend.Mount(m.ctx)}
	}
}

func (m Shell) listen() tea.Cmd {
	if m.updates == nil {
		return nil
	}
	updates := m.updates
	return func() tea.Msg {
		s, ok := <-updates
		if !ok {
			return nil
		}
		return sessionMsg(s)
	}
}

func (m Shell) navigate(path string) tea.Cmd {
	return func() tea.Msg {
		page, err := m.backend.Navigate(m.ctx, path)
		return pageMsg{path: path, page: page, err: err}
	}
}

func (m Shell) login(c Credentials, next string) tea.Cmd {
	return func() tea.Msg {
		user, err := m.backend.Login(m.ctx, c.Email, c.Password, c.Remember)
		return loginMsg{next: next, user: user, err: err}
	}
}

func (m Shell) logout() tea.Cmd {
	return func() tea.Msg {
		m.backend.Logout(m.ctx)
		page, err := m.backend.Navigate(m.ctx, guard.LoginRoute)
		return pageMsg{path: guard.LoginRoute, page: page, err: err}
	}
}

// Update handles messages and updates the model state (required by Bubble Tea)
func (m Shell) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.form != nil {
			m.form = m.form.WithWidth(msg.Width)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case sessionMsg:
		m.snap = session.Snapshot(msg)
		return m, m.listen()

	case mountedMsg:
		m.snap = msg.snap
		m.busy = "Loading " + m.start
		return m, m.navigate(m.start)

	case pageMsg:
		return m.handlePage(msg)

	case loginMsg:
		if msg.err != nil {
			m.busy = ""
			m.err = msg.err
			cmd := m.startLoginForm(m.afterAuth)
			return m, cmd
		}
		m.snap = m.backend.Snapshot()
		m.busy = "Loading " + msg.next
		return m, m.navigate(msg.next)

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
		if m.form != nil {
			return m.updateForm(msg)
		}
		return m.handleKey(msg)
	}

	if m.form != nil {
		return m.updateForm(msg)
	}
	return m, nil
}

func (m Shell) handlePage(msg pageMsg) (tea.Model, tea.Cmd) {
	m.busy = ""
	m.snap = m.backend.Snapshot()
	if msg.err != nil {
		m.err = msg.err
		return m, nil
	}

	m.err = nil
	m.page = msg.page
	if n := len(m.history); n == 0 || m.history[n-1] != msg.page.Route {
		m.history = append(m.history, msg.page.Route)
	}

	if msg.page.Route == guard.LoginRoute {
		next := guard.DashboardRoute
		if len(msg.page.Redirects) > 0 {
			next = msg.page.Redirects[0]
		}
		cmd := m.startLoginForm(next)
		return m, cmd
	}
	return m, nil
}

func (m *Shell) startLoginForm(next string) tea.Cmd {
	email := ""
	if m.creds != nil {
		email = m.creds.Email
	}
	m.creds = &Credentials{Email: email}
	m.afterAuth = next
	m.form = NewLoginForm(m.creds)
	if m.width > 0 {
		m.form = m.form.WithWidth(m.width)
	}
	return m.form.Init()
}

func (m Shell) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if km, ok := msg.(tea.KeyMsg); ok && key.Matches(km, m.keys.Cancel) {
		m.form = nil
		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		creds := *m.creds
		creds.Email = strings.TrimSpace(creds.Email)
		m.form = nil
		m.err = nil
		m.busy = "Signing in as " + creds.Email
		return m, m.login(creds, m.afterAuth)
	case huh.StateAborted:
		m.form = nil
		return m, nil
	}
	return m, cmd
}

func (m Shell) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Submit):
		input := strings.TrimSpace(m.input.Value())
		m.input.Reset()
		return m.runCommand(input)

	case key.Matches(msg, m.keys.Back):
		return m.runCommand("back")

	case key.Matches(msg, m.keys.Cancel):
		m.input.Reset()
		m.err = nil
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Shell) runCommand(input string) (tea.Model, tea.Cmd) {
	switch input {
	case "quit", "exit", "q":
		m.quitting = true
		return m, tea.Quit

	case "logout":
		m.busy = "Signing out"
		m.history = nil
		return m, m.logout()

	case "back":
		if len(m.history) < 2 {
			return m, nil
		}
		m.history = m.history[:len(m.history)-1]
		prev := m.history[len(m.history)-1]
		m.busy = "Loading " + prev
		return m, m.navigate(prev)

	case "", "reload":
		current := m.start
		if m.page != nil {
			current = m.page.Route
		}
		m.busy = "Loading " + current
		return m, m.navigate(current)

	case "login":
		cmd := m.startLoginForm(guard.DashboardRoute)
		return m, cmd

	default:
		m.busy = "Loading " + input
		return m, m.navigate(input)
	}
}

// View renders the TUI (required by Bubble Tea)
func (m Shell) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.styles.Title.Render("taskdesk"))
	b.WriteString(" ")
	b.WriteString(m.renderStatus())
	b.WriteString("\n")

	switch {
	case m.form != nil:
		b.WriteString("\n")
		if m.err != nil {
			b.WriteString(m.styles.Error.Render(firstLine(m.err)))
			b.WriteString("\n\n")
		}
		b.WriteString(m.form.View())
		b.WriteString("\n")
		b.WriteString(m.styles.Help.Render("esc cancel • ctrl+c quit"))
		return b.String()

	case m.page != nil:
		b.WriteString(m.styles.Subtitle.Render(fmt.Sprintf("%s  %s", m.page.Title, m.styles.Muted.Render(m.page.Route))))
		b.WriteString("\n")
		b.WriteString(m.styles.Border.Render(strings.TrimRight(m.page.Body, "\n")))
		b.WriteString("\n")
	}

	if m.err != nil {
		b.WriteString(m.styles.Error.Render(firstLine(m.err)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(m.renderHelp())
	return b.String()
}

func (m Shell) renderStatus() string {
	if m.busy != "" || m.snap.State == session.StateChecking {
		label := m.busy
		if m.snap.State == session.StateChecking {
			label = "Checking session"
		}
		return m.spinner.View() + " " + m.styles.Status.Render(label+"...")
	}
	if u := m.snap.User; u != nil {
		return m.styles.Success.Render(fmt.Sprintf("● %s (%s)", u.Email, u.Role))
	}
	if m.snap.State == session.StateError {
		return m.styles.Error.Render("● backend unreachable")
	}
	return m.styles.Muted.Render("○ signed out")
}

func (m Shell) renderHelp() string {
	bindings := []key.Binding{m.keys.Submit, m.keys.Back, m.keys.Cancel, m.keys.Quit}
	parts := make([]string, 0, len(bindings))
	for _, kb := range bindings {
		h := kb.Help()
		parts = append(parts, m.styles.Key.Render(h.Key)+" "+m.styles.KeyDesc.Render(h.Desc))
	}
	return m.styles.Help.Render(strings.Join(parts, "  "))
}

func firstLine(err error) string {
	s := err.Error()
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
