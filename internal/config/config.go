package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds the application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Notify   NotifyConfig   `yaml:"notify"`
	Sources  []Source       `yaml:"sources"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	HTTPPort   int    `yaml:"http_port"`
	StaticDir  string `yaml:"static_dir"`
}

// DatabaseConfig selects and configures the link store backend
type DatabaseConfig struct {
	Driver         string        `yaml:"driver"`
	Path           string        `yaml:"path"` // sqlite only
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	Name           string        `yaml:"name"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	SSLMode        string        `yaml:"ssl_mode"`
	MaxOpenConns   int           `yaml:"max_open_conns"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// AuthConfig holds authentication settings
type AuthConfig struct {
	JWTSecret     string        `yaml:"jwt_secret"`
	TokenDuration time.Duration `yaml:"token_duration"`
}

// NotifyConfig configures where alt alerts are delivered.
// The websocket hub is always on; NATS and Redis are optional.
type NotifyConfig struct {
	Prefix string      `yaml:"prefix"`
	NATS   NATSConfig  `yaml:"nats"`
	Redis  RedisConfig `yaml:"redis"`
}

// NATSConfig holds NATS publisher settings
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// RedisConfig holds Redis pub/sub publisher settings
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

// Source is a proxy log file to watch for player connections
type Source struct {
	Name    string `yaml:"name"`
	LogPath string `yaml:"log_path"`
	Format  string `yaml:"format"` // velocity, bungee, plain or auto
	// Replay records every connection already in the log at startup,
	// without alerting, before following new lines.
	Replay bool `yaml:"replay"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Mode string `yaml:"mode"`
}

// ValidationError lists every problem found in a configuration
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

// Load reads configuration from a YAML file, applies defaults and validates it
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML and applies defaults without validating
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = "127.0.0.1"
	}
	if cfg.Server.HTTPPort == 0 {
		cfg.Server.HTTPPort = 8080
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverSQLite
	}
	cfg.Database.Driver = strings.ToLower(cfg.Database.Driver)
	if cfg.Database.Driver == DriverSQLite && cfg.Database.Path == "" {
		cfg.Database.Path = "/var/lib/altcheck/altcheck.db"
	}
	if cfg.Database.Driver == DriverPostgres {
		if cfg.Database.Port == 0 {
			cfg.Database.Port = 5432
		}
		if cfg.Database.SSLMode == "" {
			cfg.Database.SSLMode = "disable"
		}
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.ConnectTimeout == 0 {
		cfg.Database.ConnectTimeout = 5 * time.Second
	}

	if cfg.Auth.TokenDuration == 0 {
		cfg.Auth.TokenDuration = 24 * time.Hour
	}

	if cfg.Notify.NATS.URL != "" && cfg.Notify.NATS.Subject == "" {
		cfg.Notify.NATS.Subject = "altcheck.alerts"
	}
	if cfg.Notify.Redis.Addr != "" && cfg.Notify.Redis.Channel == "" {
		cfg.Notify.Redis.Channel = "altcheck:alerts"
	}

	for i := range cfg.Sources {
		if cfg.Sources[i].Format == "" {
			cfg.Sources[i].Format = "auto"
		}
		if cfg.Sources[i].Name == "" {
			cfg.Sources[i].Name = filepath.Base(cfg.Sources[i].LogPath)
		}
	}

	if cfg.Log.Mode == "" {
		cfg.Log.Mode = "production"
	}
}

var validFormats = map[string]bool{
	"auto": true, "velocity": true, "bungee": true, "plain": true,
}

// Validate checks the configuration and reports every problem at once.
// A config that fails validation must never be served.
func (cfg *Config) Validate() error {
	var problems []string

	db := cfg.Database
	switch db.Driver {
	case DriverSQLite:
		if db.Path == "" {
			problems = append(problems, "database.path is required for sqlite")
		}
	case DriverPostgres:
		if db.Host == "" {
			problems = append(problems, "database.host is required for postgres")
		}
		if db.Name == "" {
			problems = append(problems, "database.name is required for postgres")
		}
		if db.Username == "" {
			problems = append(problems, "database.username is required for postgres")
		}
		if db.Port <= 0 || db.Port > 65535 {
			problems = append(problems, fmt.Sprintf("database.port %d out of range", db.Port))
		}
	default:
		problems = append(problems, fmt.Sprintf("database.driver %q is not one of sqlite, postgres", db.Driver))
	}
	if db.MaxOpenConns < 0 {
		problems = append(problems, "database.max_open_conns must not be negative")
	}

	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		problems = append(problems, "auth.jwt_secret is required")
	}
	if cfg.Auth.TokenDuration < 0 {
		problems = append(problems, "auth.token_duration must not be negative")
	}

	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		problems = append(problems, fmt.Sprintf("server.http_port %d out of range", cfg.Server.HTTPPort))
	}

	seen := make(map[string]bool)
	for i, src := range cfg.Sources {
		if src.LogPath == "" {
			problems = append(problems, fmt.Sprintf("sources[%d].log_path is required", i))
		}
		if !validFormats[src.Format] {
			problems = append(problems, fmt.Sprintf("sources[%d].format %q is unknown", i, src.Format))
		}
		if seen[src.Name] {
			problems = append(problems, fmt.Sprintf("sources[%d].name %q is duplicated", i, src.Name))
		}
		seen[src.Name] = true
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// IsValidationError reports whether err came from Validate
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
