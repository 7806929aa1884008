// Package config assembles the board client's settings. Sources apply in
// order, later ones winning: built-in defaults, an optional YAML file,
// the environment (including a .env file) and command-line flags.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// FileEnv names the environment variable that points at a YAML file.
const FileEnv = "BOARD_CONFIG"

type Config struct {
	Env               string        `yaml:"env"`
	Port              string        `yaml:"port"`
	ServerURL         string        `yaml:"server_url"`
	APIBaseURL        string        `yaml:"api_base_url"`
	DatabaseURL       string        `yaml:"database_url"`
	CORSOrigin        string        `yaml:"cors_origin"`
	BoardToken        string        `yaml:"board_token"`
	PageSize          int           `yaml:"page_size"`
	VoteCooldown      time.Duration `yaml:"vote_cooldown"`
	ToastDuration     time.Duration `yaml:"toast_duration"`
	PendingTimeout    time.Duration `yaml:"pending_timeout"`
	ReconnectAttempts int           `yaml:"reconnect_attempts"`
	MirrorComments    bool          `yaml:"mirror_comments"`
	NodeID            int64         `yaml:"node_id"`
}

func Default() *Config {
	return &Config{
		Env:               "development",
		Port:              "8080",
		ServerURL:         "ws://localhost:5000/ws",
		APIBaseURL:        "http://localhost:5000",
		CORSOrigin:        "*",
		PageSize:          10,
		VoteCooldown:      2 * time.Second,
		ToastDuration:     3 * time.Second,
		PendingTimeout:    15 * time.Second,
		ReconnectAttempts: 5,
		MirrorComments:    true,
	}
}

// IsProduction reports whether the board runs with production defaults.
func (c *Config) IsProduction() bool { return c.Env == "production" }

type setting struct {
	env    string
	flag   string
	usage  string
	isBool bool
	set    func(c *Config, v string) error
}

func stringSetting(env, flag, usage string, field func(*Config) *string) setting {
	return setting{env: env, flag: flag, usage: usage, set: func(c *Config, v string) error {
		*field(c) = v
		return nil
	}}
}

func intSetting(env, flag, usage string, field func(*Config) *int) setting {
	return setting{env: env, flag: flag, usage: usage, set: func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(c) = n
		return nil
	}}
}

func durationSetting(env, flag, usage string, field func(*Config) *time.Duration) setting {
	return setting{env: env, flag: flag, usage: usage, set: func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*field(c) = d
		return nil
	}}
}

var settings = []setting{
	stringSetting("APP_ENV", "env", "runtime environment (development or production)", func(c *Config) *string { return &c.Env }),
	stringSetting("PORT", "port", "port for the local view server", func(c *Config) *string { return &c.Port }),
	stringSetting("SERVER_URL", "server-url", "websocket URL of the board backend", func(c *Config) *string { return &c.ServerURL }),
	stringSetting("API_BASE_URL", "api-base-url", "REST base URL of the board backend", func(c *Config) *string { return &c.APIBaseURL }),
	stringSetting("DATABASE_URL", "database-url", "local store, sqlite:// or postgres://", func(c *Config) *string { return &c.DatabaseURL }),
	stringSetting("CORS_ORIGIN", "cors-origin", "allowed CORS origin", func(c *Config) *string { return &c.CORSOrigin }),
	stringSetting("BOARD_TOKEN", "board-token", "token required on write routes (empty disables)", func(c *Config) *string { return &c.BoardToken }),
	intSetting("PAGE_SIZE", "page-size", "confessions per page", func(c *Config) *int { return &c.PageSize }),
	durationSetting("VOTE_COOLDOWN", "vote-cooldown", "per-confession vote cooldown", func(c *Config) *time.Duration { return &c.VoteCooldown }),
	durationSetting("TOAST_DURATION", "toast-duration", "how long notifications stay up", func(c *Config) *time.Duration { return &c.ToastDuration }),
	durationSetting("PENDING_TIMEOUT", "pending-timeout", "how long a submission waits for confirmation", func(c *Config) *time.Duration { return &c.PendingTimeout }),
	intSetting("RECONNECT_ATTEMPTS", "reconnect-attempts", "websocket reconnection attempts", func(c *Config) *int { return &c.ReconnectAttempts }),
	{env: "MIRROR_COMMENTS", flag: "mirror-comments", usage: "also post comments over REST", isBool: true, set: func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		c.MirrorComments = b
		return nil
	}},
	{env: "NODE_ID", flag: "node-id", usage: "snowflake node id (0-1023)", set: func(c *Config, v string) error {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return err
		}
		c.NodeID = n
		return nil
	}},
}

// Load reads a .env file if present, then parses args against the process
// environment.
func Load(args []string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, reading from environment")
	}
	return Parse(args, os.LookupEnv)
}

// Parse builds a Config from args and the variables visible through lookup.
func Parse(args []string, lookup func(string) (string, bool)) (*Config, error) {
	fs := pflag.NewFlagSet("blurtbox", pflag.ContinueOnError)
	file, _ := lookup(FileEnv)
	fs.StringVar(&file, "config", file, "YAML config file")
	for _, s := range settings {
		fs.String(s.flag, "", s.usage)
		if s.isBool {
			fs.Lookup(s.flag).NoOptDefVal = "true"
		}
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := Default()
	if file != "" {
		if err := cfg.loadFile(file); err != nil {
			return nil, err
		}
	}
	for _, s := range settings {
		if v, ok := lookup(s.env); ok && v != "" {
			if err := s.set(cfg, v); err != nil {
				return nil, fmt.Errorf("invalid %s %q: %w", s.env, v, err)
			}
		}
	}
	for _, s := range settings {
		if !fs.Changed(s.flag) {
			continue
		}
		v, _ := fs.GetString(s.flag)
		if err := s.set(cfg, v); err != nil {
			return nil, fmt.Errorf("invalid --%s %q: %w", s.flag, v, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

// Validate checks the assembled settings.
func (c *Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("port is required"))
	}
	if err := checkURL(c.ServerURL, "ws", "wss"); err != nil {
		errs = append(errs, fmt.Errorf("server URL: %w", err))
	}
	if err := checkURL(c.APIBaseURL, "http", "https"); err != nil {
		errs = append(errs, fmt.Errorf("API base URL: %w", err))
	}
	if c.PageSize < 1 {
		errs = append(errs, fmt.Errorf("page size must be positive, got %d", c.PageSize))
	}
	if c.VoteCooldown <= 0 || c.ToastDuration <= 0 {
		errs = append(errs, errors.New("vote cooldown and toast duration must be positive"))
	}
	if c.PendingTimeout < 0 {
		errs = append(errs, errors.New("pending timeout cannot be negative"))
	}
	if c.ReconnectAttempts < 0 {
		errs = append(errs, errors.New("reconnect attempts cannot be negative"))
	}
	if c.NodeID < 0 || c.NodeID > 1023 {
		errs = append(errs, fmt.Errorf("node id must be between 0 and 1023, got %d", c.NodeID))
	}
	return errors.Join(errs...)
}

func checkURL(raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	for _, s := range schemes {
		if u.Scheme == s && u.Host != "" {
			return nil
		}
	}
	return fmt.Errorf("%q must be an absolute %v URL", raw, schemes)
}
