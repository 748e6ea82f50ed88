// Package config provides configuration loading and validation for the CRM
// server. It handles YAML config files, .env preloading, and ${VAR}
// environment substitution so secrets stay out of the config file.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"realtycrm/pkg/logx"
)

// Default values applied when the config file omits a field.
const (
	DefaultListenAddr     = ":8000"
	DefaultDatabasePath   = "crm.db"
	DefaultQueueSize      = 256
	DefaultTokenTTL       = 30 * time.Minute
	DefaultRequestTimeout = 30 * time.Second
	DefaultEventLogDir    = "logs"
)

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	ListenAddr     string        `yaml:"listen_addr"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// UnmarshalYAML decodes duration fields from strings like "30s"; the yaml
// package has no native duration support.
func (s *ServerConfig) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		ListenAddr     string `yaml:"listen_addr"`
		RequestTimeout string `yaml:"request_timeout"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	s.ListenAddr = raw.ListenAddr
	if raw.RequestTimeout != "" {
		d, err := time.ParseDuration(raw.RequestTimeout)
		if err != nil {
			return fmt.Errorf("invalid request_timeout %q: %w", raw.RequestTimeout, err)
		}
		s.RequestTimeout = d
	}
	return nil
}

// DatabaseConfig holds the SQLite settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds token signing settings. SecretKey normally arrives via
// ${CRM_SECRET_KEY} substitution rather than being written into the file.
type AuthConfig struct {
	SecretKey string        `yaml:"secret_key"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

// UnmarshalYAML decodes token_ttl from strings like "24h".
func (a *AuthConfig) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		SecretKey string `yaml:"secret_key"`
		TokenTTL  string `yaml:"token_ttl"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	a.SecretKey = raw.SecretKey
	if raw.TokenTTL != "" {
		d, err := time.ParseDuration(raw.TokenTTL)
		if err != nil {
			return fmt.Errorf("invalid token_ttl %q: %w", raw.TokenTTL, err)
		}
		a.TokenTTL = d
	}
	return nil
}

// SMTPConfig holds the outbound mail relay settings.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// CalendarConfig points at the calendar backend.
type CalendarConfig struct {
	BaseURL    string `yaml:"base_url"`
	CalendarID string `yaml:"calendar_id"`
	APIKey     string `yaml:"api_key"`
}

// ESignConfig points at the signature backend.
type ESignConfig struct {
	BaseURL   string `yaml:"base_url"`
	AccountID string `yaml:"account_id"`
	APIKey    string `yaml:"api_key"`
}

// QueueConfig sizes the controller's deferred-task queue.
type QueueConfig struct {
	Size int `yaml:"size"`
}

// EventLogConfig controls the JSONL message journal.
type EventLogConfig struct {
	Dir      string `yaml:"dir"`
	Disabled bool   `yaml:"disabled"`
}

// Config is the root configuration for the CRM server.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	SMTP     SMTPConfig     `yaml:"smtp"`
	Calendar CalendarConfig `yaml:"calendar"`
	ESign    ESignConfig    `yaml:"esign"`
	Queue    QueueConfig    `yaml:"queue"`
	EventLog EventLogConfig `yaml:"eventlog"`
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv replaces ${VAR} references with environment values. Unset
// variables expand to the empty string so validation catches them instead
// of the literal placeholder leaking into secrets.
func expandEnv(raw []byte) []byte {
	return envVarPattern.ReplaceAllFunc(raw, func(match []byte) []byte {
		name := envVarPattern.FindSubmatch(match)[1]
		return []byte(os.Getenv(string(name)))
	})
}

// Load reads the YAML config at path, after preloading a .env file from the
// working directory when one exists. Missing fields take defaults; a missing
// secret key is an error because tokens could not be verified across
// restarts.
func Load(path string) (*Config, error) {
	logger := logx.NewLogger("config")

	if err := godotenv.Load(); err == nil {
		logger.Debug("loaded .env file")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(expandEnv(raw), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.Info("loaded config from %s (listen %s, db %s)", path, cfg.Server.ListenAddr, cfg.Database.Path)
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = DefaultListenAddr
	}
	if c.Server.RequestTimeout <= 0 {
		c.Server.RequestTimeout = DefaultRequestTimeout
	}
	if c.Database.Path == "" {
		c.Database.Path = DefaultDatabasePath
	}
	if c.Auth.TokenTTL <= 0 {
		c.Auth.TokenTTL = DefaultTokenTTL
	}
	if c.Queue.Size <= 0 {
		c.Queue.Size = DefaultQueueSize
	}
	if c.EventLog.Dir == "" {
		c.EventLog.Dir = DefaultEventLogDir
	}
	if c.SMTP.Port == 0 {
		c.SMTP.Port = 587
	}
}

// Validate rejects configs the server cannot safely run with.
func (c *Config) Validate() error {
	if c.Auth.SecretKey == "" {
		return fmt.Errorf("auth.secret_key is required (set CRM_SECRET_KEY)")
	}
	if len(c.Auth.SecretKey) < 16 {
		return fmt.Errorf("auth.secret_key must be at least 16 characters")
	}
	return nil
}
