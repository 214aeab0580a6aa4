// Package config loads the client configuration from ~/.taskdesk/config.yaml,
// an optional .env file, and TASKDESK_* environment variables, in increasing
// order of precedence.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/taskdesk/internal/errors"
)

// Environment variables recognised by Load.
const (
	EnvConfigPath  = "TASKDESK_CONFIG"
	EnvAPIURL      = "TASKDESK_API_URL"
	EnvStoragePath = "TASKDESK_STORAGE_PATH"
	EnvLogLevel    = "TASKDESK_LOG_LEVEL"
	EnvLogFormat   = "TASKDESK_LOG_FORMAT"
	EnvStorageKey  = "TASKDESK_STORAGE_KEY"
)

// Config is the client configuration
type Config struct {
	APIURL      string        `yaml:"api_url"`
	Timeout     time.Duration `yaml:"timeout"`
	StoragePath string        `yaml:"storage_path"`
	Output      string        `yaml:"output"`
	Logging     LoggingConfig `yaml:"logging"`

	// StorageKey seals the persistent token area when set. It is read from
	// the environment only and never written to the config file.
	StorageKey string `yaml:"-"`
}

// LoggingConfig controls the structured logger
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "text", "json"
}

// Dir returns the taskdesk state directory, ~/.taskdesk.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".taskdesk"), nil
}

// Default returns the built-in configuration
func Default() *Config {
	storage := "storage.json"
	if dir, err := Dir(); err == nil {
		storage = filepath.Join(dir, "storage.json")
	}
	return &Config{
		APIURL:      "http://localhost:5000/api",
		Timeout:     30 * time.Second,
		StoragePath: storage,
		Output:      "text",
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// Path returns the configuration file location. TASKDESK_CONFIG wins over
// the default ~/.taskdesk/config.yaml.
func Path() (string, error) {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads the file at path over the defaults, then applies .env and
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}

	// .env is optional
	_ = godotenv.Load()

	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads only the YAML file, without environment overrides.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.Wrap(errors.ErrCodeConfigReadFailed, fmt.Sprintf("failed to read config: %s", path), err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.NewConfigUnmarshalError(path, err)
	}
	return cfg, nil
}

// Save writes cfg to path, creating the directory if needed.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// ApplyEnv overrides fields from TASKDESK_* variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvAPIURL); v != "" {
		c.APIURL = v
	}
	if v := os.Getenv(EnvStoragePath); v != "" {
		c.StoragePath = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv(EnvStorageKey); v != "" {
		c.StorageKey = v
	}
}

// Validate checks the configuration for values the client cannot run with.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New(errors.ErrCodeConfigInvalid, fmt.Sprintf("api_url must be an http(s) URL, got %q", c.APIURL)).
			WithSuggestion("Run 'taskdesk config set api_url https://tasks.example.com/api'")
	}
	if c.Timeout <= 0 {
		return errors.New(errors.ErrCodeConfigInvalid, "timeout must be positive")
	}
	if strings.TrimSpace(c.StoragePath) == "" {
		return errors.New(errors.ErrCodeConfigInvalid, "storage_path must not be empty")
	}
	switch c.Output {
	case "text", "json", "yaml":
	default:
		return errors.New(errors.ErrCodeConfigInvalid, fmt.Sprintf("output must be text, json or yaml, got %q", c.Output))
	}
	return nil
}

// Keys lists the settable configuration keys in dot notation.
func Keys() []string {
	return []string{"api_url", "timeout", "storage_path", "output", "logging.level", "logging.format"}
}

// Get retrieves a value using dot notation
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "api_url":
		return c.APIURL, nil
	case "timeout":
		return c.Timeout.String(), nil
	case "storage_path":
		return c.StoragePath, nil
	case "output":
		return c.Output, nil
	case "logging.level":
		return c.Logging.Level, nil
	case "logging.format":
		return c.Logging.Format, nil
	default:
		return "", unknownKey(key)
	}
}

// Set assigns a value using dot notation
func (c *Config) Set(key, value string) error {
	switch key {
	case "api_url":
		c.APIURL = value
	case "timeout":
		d, err := parseDuration(value)
		if err != nil {
			return errors.Wrap(errors.ErrCodeConfigInvalid, fmt.Sprintf("invalid timeout %q", value), err)
		}
		c.Timeout = d
	case "storage_path":
		c.StoragePath = value
	case "output":
		c.Output = value
	case "logging.level":
		c.Logging.Level = value
	case "logging.format":
		c.Logging.Format = value
	default:
		return unknownKey(key)
	}
	return c.Validate()
}

// parseDuration accepts Go durations and bare seconds.
func parseDuration(s string) (time.Duration, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(s)
}

func unknownKey(key string) error {
	return errors.New(errors.ErrCodeConfigKeyUnknown, fmt.Sprintf("unknown configuration key: %s", key)).
		WithSuggestion("Valid keys: " + strings.Join(Keys(), ", "))
}
