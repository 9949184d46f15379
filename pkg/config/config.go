package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

// DefaultPath is the config file read when CONFIG_PATH is not set.
const DefaultPath = "config.yaml"

// Config holds all configuration for dbconnect.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
type Config struct {
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// ResolveDockerHosts rewrites localhost addresses to host.docker.internal
	// when running inside a container.
	ResolveDockerHosts bool `yaml:"resolve_docker_hosts" env:"RESOLVE_DOCKER_HOSTS" env-default:"false"`

	Connections []ConnectionConfig `yaml:"connections"`
}

// ConnectionConfig is one named database configuration. Connectors treat it
// as read-only for their whole lifetime.
type ConnectionConfig struct {
	Name string `yaml:"name"`
	// Kind selects the backend: "exasol", "postgres" or "mssql".
	Kind string `yaml:"kind"`
	// DSN holds one or more host:port addresses, comma-separated.
	DSN      string `yaml:"dsn"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	// PasswordEnv names an environment variable holding the password.
	// Takes precedence over Password when the variable is set.
	PasswordEnv string `yaml:"password_env"`
	Schema      string `yaml:"schema"`
	DBName      string `yaml:"dbname"`
	// Params are backend-specific driver parameters passed through as-is.
	Params map[string]any `yaml:"params"`
}

// HasSchema reports whether a schema was configured.
func (c *ConnectionConfig) HasSchema() bool {
	return c.Schema != ""
}

// HasDBName reports whether a database name was configured.
func (c *ConnectionConfig) HasDBName() bool {
	return c.DBName != ""
}

// HasParam reports whether a backend parameter was configured.
func (c *ConnectionConfig) HasParam(key string) bool {
	_, ok := c.Params[key]
	return ok
}

// Load reads configuration from the YAML file named by CONFIG_PATH (default
// config.yaml) with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = DefaultPath
	}
	return LoadFile(path, version)
}

// LoadFile reads configuration from the given YAML file.
func LoadFile(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := cfg.parseComplexFields(); err != nil {
		return nil, fmt.Errorf("failed to parse config fields: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// parseComplexFields handles fields that need post-processing after loading.
func (c *Config) parseComplexFields() error {
	for i := range c.Connections {
		conn := &c.Connections[i]
		conn.Kind = strings.ToLower(strings.TrimSpace(conn.Kind))

		if conn.PasswordEnv != "" {
			if pw, ok := os.LookupEnv(conn.PasswordEnv); ok {
				conn.Password = pw
			}
		}

		if c.ResolveDockerHosts {
			conn.DSN = rewriteDSNHosts(conn.DSN, ResolveHostForDocker)
		}
	}
	return nil
}

// Validate checks that every connection is named, unique and addressable.
// Address syntax is left to the backends.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Connections))
	for i, conn := range c.Connections {
		if conn.Name == "" {
			return fmt.Errorf("connections[%d]: name is required", i)
		}
		if seen[conn.Name] {
			return fmt.Errorf("connections[%d]: duplicate name %q", i, conn.Name)
		}
		seen[conn.Name] = true

		if conn.Kind == "" {
			return fmt.Errorf("connection %q: kind is required", conn.Name)
		}
		if conn.DSN == "" {
			return fmt.Errorf("connection %q: dsn is required", conn.Name)
		}
	}
	return nil
}

// Connection returns the named connection configuration.
func (c *Config) Connection(name string) (*ConnectionConfig, bool) {
	for i := range c.Connections {
		if c.Connections[i].Name == name {
			return &c.Connections[i], true
		}
	}
	return nil, false
}
