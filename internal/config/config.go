// Package config loads server configuration from defaults, an optional YAML
// file, a .env file and the environment, in increasing precedence.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dpshade/wakatime-mcp/pkg/wakatimeapi"
)

// MCPPath is the HTTP path of the MCP endpoint.
const MCPPath = "/mcp"

// Config holds the application configuration.
type Config struct {
	WakaTime WakaTimeConfig `yaml:"wakatime"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// WakaTimeConfig configures the upstream API client.
type WakaTimeConfig struct {
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// ServerConfig configures the HTTP listener and inbound checks.
type ServerConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	AuthSecret string `yaml:"auth_secret"` // empty disables bearer auth
	RateLimit  int    `yaml:"rate_limit"`  // requests per second per caller, 0 disables
}

// DatabaseConfig configures the optional usage log.
type DatabaseConfig struct {
	URL string `yaml:"url"` // empty disables the usage log
}

// LoggingConfig configures zap and the Loki sink.
type LoggingConfig struct {
	Level  string     `yaml:"level"`
	AppEnv string     `yaml:"app_env"`
	Loki   LokiConfig `yaml:"loki"`
}

// LokiConfig holds Grafana Loki credentials.
type LokiConfig struct {
	URL    string `yaml:"url"`
	User   string `yaml:"user"`
	APIKey string `yaml:"api_key"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		WakaTime: WakaTimeConfig{
			BaseURL: wakatimeapi.DefaultBaseURL,
			Timeout: wakatimeapi.DefaultTimeout,
		},
		Server: ServerConfig{
			Host:      "0.0.0.0",
			Port:      8000,
			RateLimit: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			AppEnv: "wakatime-mcp-dev",
		},
	}
}

// Load builds the configuration. path names an optional YAML file; when it is
// set the file must exist. A .env file in the working directory is read if
// present; real environment variables take precedence over it.
func Load(path string) (*Config, error) {
	return load(path, ".env")
}

func load(path, envFile string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "read config")
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(err, "parse config")
		}
	}

	dotenv := map[string]string{}
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			vals, err := godotenv.Read(envFile)
			if err != nil {
				return nil, errors.Wrapf(err, "read %s", envFile)
			}
			dotenv = vals
		}
	}

	if err := cfg.applyEnvOverrides(func(key string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return dotenv[key]
	}); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides(getenv func(string) string) error {
	setString := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}

	setString(&c.WakaTime.APIKey, wakatimeapi.APIKeyEnv)
	setString(&c.WakaTime.BaseURL, "WAKATIME_BASE_URL")
	setString(&c.Server.Host, "HOST")
	setString(&c.Server.AuthSecret, "MCP_AUTH_SECRET")
	setString(&c.Database.URL, "DATABASE_URL")
	setString(&c.Logging.Level, "LOG_LEVEL")
	setString(&c.Logging.AppEnv, "APP_ENV")
	setString(&c.Logging.Loki.URL, "GRAFANA_LOKI_URL")
	setString(&c.Logging.Loki.User, "GRAFANA_LOKI_USER")
	setString(&c.Logging.Loki.APIKey, "GRAFANA_LOKI_API_KEY")

	if v := getenv("WAKATIME_TIMEOUT"); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return errors.Wrap(err, "WAKATIME_TIMEOUT")
		}
		c.WakaTime.Timeout = d
	}
	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(err, "PORT")
		}
		c.Server.Port = port
	}
	if v := getenv("MCP_RATE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(err, "MCP_RATE_LIMIT")
		}
		c.Server.RateLimit = n
	}
	return nil
}

// parseDuration accepts Go durations ("45s") or a bare number of seconds.
func parseDuration(v string) (time.Duration, error) {
	if d, err := time.ParseDuration(v); err == nil {
		return d, nil
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	return time.Duration(secs) * time.Second, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return errors.Errorf("invalid port %d", c.Server.Port)
	}
	if c.Server.RateLimit < 0 {
		return errors.Errorf("invalid rate limit %d", c.Server.RateLimit)
	}
	if c.WakaTime.Timeout <= 0 {
		return errors.Errorf("invalid WakaTime timeout %s", c.WakaTime.Timeout)
	}
	if c.WakaTime.BaseURL == "" {
		return errors.New("WakaTime base URL is empty")
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}
