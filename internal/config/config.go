package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vango-dev/querystate/internal/errors"
	"github.com/vango-dev/querystate/pkg/options"
)

const (
	// DefaultPort is the default server port.
	DefaultPort = 8080

	// DefaultHost is the default server host.
	DefaultHost = "localhost"

	// DefaultShutdownTimeout bounds graceful shutdown.
	DefaultShutdownTimeout = "5s"

	// DefaultMetricsPath is where Prometheus metrics are served.
	DefaultMetricsPath = "/metrics"

	// DefaultNamespace is the Prometheus namespace.
	DefaultNamespace = "querystate"
)

// FileNames are the configuration file names Load looks for, in order.
var FileNames = []string{"querystate.yaml", "querystate.yml", "querystate.json"}

// Config represents the complete querystate configuration.
type Config struct {
	// Server contains HTTP server settings.
	Server ServerConfig `json:"server" yaml:"server"`

	// Queue contains update queue settings.
	Queue QueueConfig `json:"queue" yaml:"queue"`

	// Defaults are the navigation options applied to every binding.
	Defaults DefaultsConfig `json:"defaults" yaml:"defaults"`

	// Metrics contains Prometheus settings.
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"logLevel,omitempty" yaml:"logLevel,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `json:"host,omitempty" yaml:"host,omitempty"`
	Port int    `json:"port,omitempty" yaml:"port,omitempty"`

	// ShutdownTimeout is how long active connections get to drain (e.g., "5s").
	ShutdownTimeout string `json:"shutdownTimeout,omitempty" yaml:"shutdownTimeout,omitempty"`
}

// QueueConfig contains update queue settings.
type QueueConfig struct {
	// Throttle is the default minimum interval between URL updates.
	Throttle string `json:"throttle,omitempty" yaml:"throttle,omitempty"`

	// RateLimitFactor scales every throttle interval for WebSocket clients.
	RateLimitFactor float64 `json:"rateLimitFactor,omitempty" yaml:"rateLimitFactor,omitempty"`
}

// DefaultsConfig contains the weakest layer of navigation options.
type DefaultsConfig struct {
	History        string `json:"history,omitempty" yaml:"history,omitempty"`
	Shallow        *bool  `json:"shallow,omitempty" yaml:"shallow,omitempty"`
	Scroll         bool   `json:"scroll,omitempty" yaml:"scroll,omitempty"`
	ClearOnDefault bool   `json:"clearOnDefault,omitempty" yaml:"clearOnDefault,omitempty"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	Enabled   bool   `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Path      string `json:"path,omitempty" yaml:"path,omitempty"`
	Namespace string `json:"namespace,omitempty" yaml:"namespace,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	shallow := true
	return &Config{
		Server: ServerConfig{
			Host:            DefaultHost,
			Port:            DefaultPort,
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		Queue: QueueConfig{
			Throttle:        options.DefaultThrottle.String(),
			RateLimitFactor: 1,
		},
		Defaults: DefaultsConfig{
			History: options.HistoryReplace.String(),
			Shallow: &shallow,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Path:      DefaultMetricsPath,
			Namespace: DefaultNamespace,
		},
		LogLevel: "info",
	}
}

// Load reads configuration from the first of FileNames found in dir.
func Load(dir string) (*Config, error) {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}
	return nil, errors.New("E100").
		WithDetail("No querystate.yaml or querystate.json found in " + dir).
		WithSuggestion("Create querystate.yaml or pass --config")
}

// LoadFile reads configuration from the specified file path. The format is
// chosen by extension; anything other than .json is read as YAML.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E100").
				WithDetail("No config file at " + path)
		}
		return nil, errors.New("E101").Wrap(err)
	}

	cfg := New()
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, errors.New("E101").
			WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error())
	}

	cfg.configPath = path
	cfg.applyDefaults()

	return cfg, nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = DefaultHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	if c.Queue.Throttle == "" {
		c.Queue.Throttle = options.DefaultThrottle.String()
	}
	if c.Queue.RateLimitFactor == 0 {
		c.Queue.RateLimitFactor = 1
	}

	if c.Defaults.History == "" {
		c.Defaults.History = options.HistoryReplace.String()
	}
	if c.Defaults.Shallow == nil {
		shallow := true
		c.Defaults.Shallow = &shallow
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultNamespace
	}

	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return errors.New("E102").
			WithDetail("Port must be between 0 and 65535, got " + strconv.Itoa(c.Server.Port))
	}
	if _, err := options.ParseHistory(c.Defaults.History); err != nil {
		return errors.New("E103").Wrap(err)
	}
	if d, err := time.ParseDuration(c.Queue.Throttle); err != nil || d < 0 {
		return errors.New("E104").
			WithDetail("queue.throttle: " + strconv.Quote(c.Queue.Throttle))
	}
	if c.Queue.RateLimitFactor < 0 {
		return errors.New("E105").
			WithDetail("queue.rateLimitFactor must not be negative")
	}
	if _, err := time.ParseDuration(c.Server.ShutdownTimeout); err != nil {
		return errors.New("E104").
			WithDetail("server.shutdownTimeout: " + strconv.Quote(c.Server.ShutdownTimeout))
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return errors.New("E106").Wrap(err)
	}
	return nil
}

// Address returns the host:port the server listens on.
func (c *Config) Address() string {
	return c.Server.Host + ":" + strconv.Itoa(c.Server.Port)
}

// ShutdownTimeout returns the parsed shutdown timeout, or the default when
// it does not parse.
func (c *Config) ShutdownTimeout() time.Duration {
	d, err := time.ParseDuration(c.Server.ShutdownTimeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// Level returns the configured log level, or info when it does not parse.
func (c *Config) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Options returns the configured defaults as the weakest options layer.
// Call Validate first; invalid fields are left unset.
func (c *Config) Options() options.Options {
	var opts []options.Options
	if h, err := options.ParseHistory(c.Defaults.History); err == nil {
		opts = append(opts, options.WithHistory(h))
	}
	if c.Defaults.Shallow != nil {
		opts = append(opts, options.Shallow(*c.Defaults.Shallow))
	}
	opts = append(opts,
		options.Scroll(c.Defaults.Scroll),
		options.ClearOnDefault(c.Defaults.ClearOnDefault),
	)
	if d, err := time.ParseDuration(c.Queue.Throttle); err == nil {
		opts = append(opts, options.Throttle(d))
	}
	return options.Join(opts...)
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	for _, name := range FileNames {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}
