// Package config loads the todos configuration.
//
// Values come from, in increasing precedence: built-in defaults, the YAML
// file (~/.todos/config.yaml unless a path is given), TODOS_* environment
// variables, and command-line flags applied by the caller.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const FileName = "config.yaml"

// Environment variables.
const (
	EnvServer = "TODOS_SERVER"
	EnvDir    = "TODOS_DIR"
	EnvListen = "TODOS_LISTEN"
	EnvDebug  = "TODOS_DEBUG"
)

// Config is the full configuration of the client and the server.
type Config struct {
	// Server is the base URL of the todos service.
	Server string `yaml:"server"`

	// DataDir holds the local state file, the log and the default database.
	DataDir string `yaml:"data_dir"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	Serve ServeConfig `yaml:"serve"`
}

// ServeConfig configures `todos serve`.
type ServeConfig struct {
	Listen     string        `yaml:"listen"`
	DBPath     string        `yaml:"db_path"`
	APIPrefix  string        `yaml:"api_prefix"`
	CookieName string        `yaml:"cookie_name"`
	SessionTTL time.Duration `yaml:"session_ttl"`
	CodeTTL    time.Duration `yaml:"code_ttl"`

	// GreetingTodos creates starter todos for new users.
	GreetingTodos bool `yaml:"greeting_todos"`
	// GreetingFile replaces the built-in starter todos with a JSON list.
	GreetingFile string `yaml:"greeting_file"`

	// Debug accepts any login code.
	Debug bool `yaml:"debug"`
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	home, _ := os.UserHomeDir()
	dir := filepath.Join(home, ".todos")
	return &Config{
		Server:   "http://localhost:8000",
		DataDir:  dir,
		LogLevel: "info",
		Serve: ServeConfig{
			Listen:        ":8000",
			APIPrefix:     "/api/v1",
			CookieName:    "session_id",
			SessionTTL:    30 * 24 * time.Hour,
			CodeTTL:       5 * time.Minute,
			GreetingTodos: true,
		},
	}
}

// DefaultPath returns ~/.todos/config.yaml, or $TODOS_DIR/config.yaml when
// TODOS_DIR is set.
func DefaultPath() string {
	if dir := os.Getenv(EnvDir); dir != "" {
		return filepath.Join(dir, FileName)
	}
	return filepath.Join(Default().DataDir, FileName)
}

// Load reads path over the defaults and applies the environment. A
// missing file is not an error unless required is set.
func Load(path string, required bool) (*Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist) && !required:
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from TODOS_* variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvServer); ok && v != "" {
		c.Server = v
	}
	if v, ok := lookup(EnvDir); ok && v != "" {
		c.DataDir = v
	}
	if v, ok := lookup(EnvListen); ok && v != "" {
		c.Serve.Listen = v
	}
	if v, ok := lookup(EnvDebug); ok && v != "" {
		d, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvDebug, err)
		}
		c.Serve.Debug = d
	}
	return nil
}

// Validate checks the fields the client and the server depend on.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Server)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("server %q: want an http or https URL", c.Server)
	}
	if c.DataDir == "" {
		return errors.New("data_dir is empty")
	}
	if !strings.HasPrefix(c.Serve.APIPrefix, "/") {
		return fmt.Errorf("api_prefix %q must start with /", c.Serve.APIPrefix)
	}
	if c.Serve.SessionTTL <= 0 || c.Serve.CodeTTL <= 0 {
		return errors.New("session_ttl and code_ttl must be positive")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level %q: want debug, info, warn or error", c.LogLevel)
	}
	return nil
}

// DBPath is Serve.DBPath, defaulting to todos.db in the data directory.
func (c *Config) DBPath() string {
	if c.Serve.DBPath != "" {
		return c.Serve.DBPath
	}
	return filepath.Join(c.DataDir, "todos.db")
}

// Save writes c to path as YAML, creating the directory.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
