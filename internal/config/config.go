// Package config provides configuration management for the styler using
// Viper for flexible loading from files, environment variables, and
// command-line flags.
//
// Configuration is read from .adminstyler.yml in the working directory,
// with environment overrides under the ADMINSTYLER_ prefix
// (e.g. ADMINSTYLER_SERVER_PORT) and flag bindings taking precedence
// over both.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full application configuration. Viper decodes through
// the mapstructure tags; the yaml tags keep the file format in sync.
type Config struct {
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Security SecurityConfig `yaml:"security" mapstructure:"security"`
	Preview  PreviewConfig  `yaml:"preview" mapstructure:"preview"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Theme    ThemeConfig    `yaml:"theme" mapstructure:"theme"`
	LogLevel string         `yaml:"log_level" mapstructure:"log_level"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	Host           string   `yaml:"host" mapstructure:"host"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	Environment    string   `yaml:"environment" mapstructure:"environment"`
}

// SecurityConfig holds signing and rate-limit settings
type SecurityConfig struct {
	Secret            string        `yaml:"secret" mapstructure:"secret"`
	NonceTTL          time.Duration `yaml:"nonce_ttl" mapstructure:"nonce_ttl"`
	SessionTTL        time.Duration `yaml:"session_ttl" mapstructure:"session_ttl"`
	DemoRole          string        `yaml:"demo_role" mapstructure:"demo_role"`
	RateLimitEnabled  bool          `yaml:"rate_limit_enabled" mapstructure:"rate_limit_enabled"`
	RequestsPerMinute int           `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
	BurstSize         int           `yaml:"burst_size" mapstructure:"burst_size"`
}

// PreviewConfig holds live-preview tuning
type PreviewConfig struct {
	Debounce time.Duration `yaml:"debounce" mapstructure:"debounce"`
}

// StoreConfig holds settings persistence options
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ThemeConfig holds the optional theme file to watch
type ThemeConfig struct {
	Path  string `yaml:"path" mapstructure:"path"`
	Watch bool   `yaml:"watch" mapstructure:"watch"`
}

// Load builds the configuration from viper's merged sources, applies
// defaults, and validates the result.
func Load() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	applyDefaults(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func applyDefaults(config *Config) {
	if config.Server.Port == 0 {
		config.Server.Port = 8090
	}
	if config.Server.Host == "" {
		config.Server.Host = "localhost"
	}
	if config.Server.Environment == "" {
		config.Server.Environment = "development"
	}
	if len(config.Server.AllowedOrigins) == 0 {
		config.Server.AllowedOrigins = []string{
			fmt.Sprintf("http://%s:%d", config.Server.Host, config.Server.Port),
			fmt.Sprintf("http://localhost:%d", config.Server.Port),
			fmt.Sprintf("http://127.0.0.1:%d", config.Server.Port),
		}
	}

	if config.Security.NonceTTL == 0 {
		config.Security.NonceTTL = 10 * time.Minute
	}
	if config.Security.SessionTTL == 0 {
		config.Security.SessionTTL = 12 * time.Hour
	}
	if config.Security.DemoRole == "" {
		config.Security.DemoRole = "administrator"
	}
	if !viper.IsSet("security.rate_limit_enabled") {
		config.Security.RateLimitEnabled = true
	}
	if config.Security.RequestsPerMinute == 0 {
		config.Security.RequestsPerMinute = 300
	}
	if config.Security.BurstSize == 0 {
		config.Security.BurstSize = 30
	}

	if config.Preview.Debounce == 0 {
		config.Preview.Debounce = 300 * time.Millisecond
	}

	if config.Store.Path == "" {
		config.Store.Path = ".adminstyler/settings.db"
	}

	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
}

// validateConfig validates configuration values for security and correctness
func validateConfig(config *Config) error {
	if config.Server.Port < 0 || config.Server.Port > 65535 {
		return fmt.Errorf("port %d is not in valid range 0-65535", config.Server.Port)
	}

	if config.Server.Host != "" {
		dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\"}
		for _, char := range dangerousChars {
			if strings.Contains(config.Server.Host, char) {
				return fmt.Errorf("host contains dangerous character: %s", char)
			}
		}
	}

	if config.Server.Environment == "production" && config.Security.Secret == "" {
		return fmt.Errorf("security.secret is required in production")
	}

	if err := validatePath(config.Store.Path); err != nil {
		return fmt.Errorf("store path: %w", err)
	}
	if config.Theme.Path != "" {
		if err := validatePath(config.Theme.Path); err != nil {
			return fmt.Errorf("theme path: %w", err)
		}
	}

	return nil
}

// validatePath rejects traversal and shell metacharacters in file paths
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}

	cleanPath := filepath.Clean(path)
	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path contains traversal: %s", path)
	}

	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'"}
	for _, char := range dangerousChars {
		if strings.Contains(cleanPath, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}

	return nil
}
