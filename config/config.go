package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Sessions SessionsConfig `mapstructure:"sessions"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Safety   SafetyConfig   `mapstructure:"safety"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Transport string `mapstructure:"transport"`
	HTTPPort  int    `mapstructure:"http_port"`
}

// SessionsConfig holds session storage configuration
type SessionsConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// EngineConfig holds execution engine configuration
type EngineConfig struct {
	DefaultTimeoutSec int               `mapstructure:"default_timeout_sec"`
	PythonBin         string            `mapstructure:"python_bin"`
	Env               map[string]string `mapstructure:"env"`
}

// SafetyConfig holds the optional pre-execution safety checker configuration
type SafetyConfig struct {
	Enabled         bool     `mapstructure:"enabled"`
	BlockedPatterns []string `mapstructure:"blocked_patterns"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
}

// New loads and validates the application configuration
func New() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Set default values
	viper.SetDefault("server.transport", "stdio")
	viper.SetDefault("server.http_port", 8080)
	viper.SetDefault("sessions.base_dir", "./sessions")
	viper.SetDefault("engine.default_timeout_sec", 0)
	viper.SetDefault("engine.python_bin", "python3")
	viper.SetDefault("engine.env", map[string]string{})
	viper.SetDefault("safety.enabled", false)
	viper.SetDefault("safety.blocked_patterns", []string{
		"os.fork(",
		"ctypes.",
		"os.execv",
	})
	viper.SetDefault("logging.mode", "production")
	viper.SetDefault("logging.level", "info")

	// SESSIONS_DIR selects the base directory for all session directories
	if err := viper.BindEnv("sessions.base_dir", "SESSIONS_DIR"); err != nil {
		return nil, fmt.Errorf("error binding SESSIONS_DIR: %w", err)
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// If config file not found, continue with defaults
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Validate configuration
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

// validate ensures the configuration is valid
func (c *Config) validate() error {
	if c.Server.Transport != "stdio" && c.Server.Transport != "http" {
		return fmt.Errorf("invalid server.transport: %s, must be 'stdio' or 'http'", c.Server.Transport)
	}

	if c.Sessions.BaseDir == "" {
		return fmt.Errorf("sessions.base_dir must not be empty")
	}

	if c.Engine.DefaultTimeoutSec < 0 {
		return fmt.Errorf("engine.default_timeout_sec must not be negative, got: %d", c.Engine.DefaultTimeoutSec)
	}

	if c.Engine.PythonBin == "" {
		return fmt.Errorf("engine.python_bin must not be empty")
	}

	if c.Logging.Mode != "production" && c.Logging.Mode != "development" {
		return fmt.Errorf("invalid logging.mode: %s, must be 'production' or 'development'", c.Logging.Mode)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging.level: %s, must be one of 'debug', 'info', 'warn', 'error'", c.Logging.Level)
	}

	return nil
}

// GetDefaultTimeout returns the default execution deadline as a duration.
// A zero duration means executions run unbounded unless the caller supplies
// a deadline.
func (c *Config) GetDefaultTimeout() time.Duration {
	return time.Duration(c.Engine.DefaultTimeoutSec) * time.Second
}
