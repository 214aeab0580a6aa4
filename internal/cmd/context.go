package cmd

import (
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/taskdesk/internal/app"
	"github.com/felixgeelhaar/taskdesk/internal/config"
	"github.com/felixgeelhaar/taskdesk/internal/errors"
	"github.com/felixgeelhaar/taskdesk/internal/log"
	"github.com/felixgeelhaar/taskdesk/internal/session"
	"github.com/felixgeelhaar/taskdesk/internal/ux"
)

// CommandContext holds the global flags of one invocation. Commands build
// it from their cobra.Command instead of reading package state.
type CommandContext struct {
	APIURL     string
	ConfigPath string
	LogLevel   string
	LogFormat  string
	Output     string
}

// NewCommandContext extracts the persistent flags from cmd.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	apiURL, err := cmd.Flags().GetString("api-url")
	if err != nil {
		return nil, err
	}
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	logLevel, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return nil, err
	}
	logFormat, err := cmd.Flags().GetString("log-format")
	if err != nil {
		return nil, err
	}
	output, err := cmd.Flags().GetString("output")
	if err != nil {
		return nil, err
	}

	return &CommandContext{
		APIURL:     apiURL,
		ConfigPath: configPath,
		LogLevel:   logLevel,
		LogFormat:  logFormat,
		Output:     output,
	}, nil
}

// ResolveConfigPath returns --config, else TASKDESK_CONFIG, else the default.
func (cc *CommandContext) ResolveConfigPath() (string, error) {
	if cc.ConfigPath != "" {
		return cc.ConfigPath, nil
	}
	return config.Path()
}

// LoadConfig loads the configuration and applies flag overrides, which take
// precedence over the file and the environment.
func (cc *CommandContext) LoadConfig() (*config.Config, error) {
	path, err := cc.ResolveConfigPath()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if cc.APIURL != "" {
		cfg.APIURL = cc.APIURL
	}
	if cc.LogLevel != "" {
		cfg.Logging.Level = cc.LogLevel
	}
	if cc.LogFormat != "" {
		cfg.Logging.Format = cc.LogFormat
	}
	if cc.Output != "" {
		cfg.Output = cc.Output
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// env is everything a command needs to talk to the backend.
type env struct {
	cc     *CommandContext
	cfg    *config.Config
	logger *log.Logger
	app    *app.App
	out    ux.Formatter
}

// bootstrap loads configuration, installs the process logger on stderr and
// wires the application. It does not mount.
func bootstrap(cmd *cobra.Command) (*env, error) {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return nil, err
	}
	cfg, err := cc.LoadConfig()
	if err != nil {
		return nil, err
	}

	lc := log.FromSettings(cfg.Logging.Level, cfg.Logging.Format)
	lc.Output = cmd.ErrOrStderr()
	logger := log.New(lc)
	log.SetDefaultLogger(logger)

	a, err := app.New(app.Options{Config: cfg, Logger: logger})
	if err != nil {
		return nil, err
	}

	out, err := ux.NewFormatter(cfg.Output, &ux.FormatterOptions{Writer: cmd.OutOrStdout()})
	if err != nil {
		return nil, err
	}

	return &env{cc: cc, cfg: cfg, logger: logger, app: a, out: out}, nil
}

// mountUser mounts the app and requires an authenticated user.
func (e *env) mountUser(cmd *cobra.Command) (session.Snapshot, error) {
	snap := e.app.Mount(cmd.Context())
	return snap, requireUser(snap, e.cfg.APIURL)
}

// requireUser explains why snap has no user, if it has none.
func requireUser(snap session.Snapshot, apiURL string) error {
	switch {
	case snap.User != nil:
		return nil
	case snap.State == session.StateError && snap.HasToken:
		return errors.NewAPIUnavailableError(apiURL, snap.Err)
	case snap.Err != nil:
		return snap.Err
	default:
		return errors.NewNotLoggedInError()
	}
}
