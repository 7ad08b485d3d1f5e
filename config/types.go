package config

import "time"

// Config represents the complete configuration structure
type Config struct {
	Zymmr   ZymmrConfig   `mapstructure:"zymmr"`
	Logging LoggingConfig `mapstructure:"logging"`
	Output  OutputConfig  `mapstructure:"output"`
	Filters FilterConfig  `mapstructure:"filters"`
}

// ZymmrConfig holds the Zymmr connection details and client tuning
type ZymmrConfig struct {
	URL           string        `mapstructure:"url"`
	Username      string        `mapstructure:"username"`
	Password      string        `mapstructure:"password"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RetryCount    int           `mapstructure:"retry_count"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	MaxRetryDelay time.Duration `mapstructure:"max_retry_delay"`
	AutoLogin     bool          `mapstructure:"auto_login"`
	PageSize      int           `mapstructure:"page_size"`
	Concurrency   int           `mapstructure:"concurrency"`
	UserAgent     string        `mapstructure:"user_agent"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Color  bool   `mapstructure:"color"`
}

// OutputConfig controls how documents are printed
type OutputConfig struct {
	Format string `mapstructure:"format"`
	Color  bool   `mapstructure:"color"`
}

// FilterConfig contains named filter presets, name to expr expression.
// Names are case-insensitive.
type FilterConfig map[string]string
