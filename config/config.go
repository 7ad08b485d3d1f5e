package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/s0up4200/zymmr/zymmr"
)

// envBindings maps config keys to the environment variables that override them
var envBindings = map[string][]string{
	"zymmr.url":             {"ZYMMR_BASE_URL", "ZYMMR_URL"},
	"zymmr.username":        {"ZYMMR_USERNAME"},
	"zymmr.password":        {"ZYMMR_PASSWORD"},
	"zymmr.timeout":         {"ZYMMR_TIMEOUT"},
	"zymmr.retry_count":     {"ZYMMR_RETRY_COUNT"},
	"zymmr.retry_delay":     {"ZYMMR_RETRY_DELAY"},
	"zymmr.max_retry_delay": {"ZYMMR_MAX_RETRY_DELAY"},
	"zymmr.auto_login":      {"ZYMMR_AUTO_LOGIN"},
	"logging.level":         {"ZYMMR_LOG_LEVEL"},
	"logging.format":        {"ZYMMR_LOG_FORMAT"},
	"output.format":         {"ZYMMR_OUTPUT"},
}

// Load loads the configuration from file and environment. An explicit
// configPath must exist; otherwise .zymmr is looked up in the current
// directory, the home directory and /etc/zymmr, and may be absent.
func Load(configPath string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()

	// Set default values
	setDefaults(v)

	for key, envs := range envBindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("error binding %s: %w", key, err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
	} else {
		v.SetConfigName(".zymmr")
		v.SetConfigType("yaml")

		// Check current directory first
		v.AddConfigPath(".")

		// Check home directory
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}

		// Check /etc
		v.AddConfigPath("/etc/zymmr/")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadDotEnv loads variables from a .env file without overriding the
// environment. A missing file is not an error.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error loading %s: %w", filepath.Base(path), err)
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Client defaults
	v.SetDefault("zymmr.timeout", zymmr.DefaultTimeout)
	v.SetDefault("zymmr.retry_count", zymmr.DefaultMaxAttempts)
	v.SetDefault("zymmr.retry_delay", zymmr.DefaultRetryDelay)
	v.SetDefault("zymmr.max_retry_delay", zymmr.DefaultMaxRetryDelay)
	v.SetDefault("zymmr.auto_login", true)
	v.SetDefault("zymmr.page_size", zymmr.DefaultPageSize)
	v.SetDefault("zymmr.concurrency", zymmr.DefaultConcurrency)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.color", true)

	// Output defaults
	v.SetDefault("output.format", "table")
	v.SetDefault("output.color", true)
}

// validate checks if the configuration is valid
func validate(cfg *Config) error {
	if cfg.Zymmr.URL == "" {
		return fmt.Errorf("zymmr.url is required")
	}
	u, err := url.Parse(cfg.Zymmr.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("zymmr.url must be an http or https URL: %s", cfg.Zymmr.URL)
	}

	if cfg.Zymmr.Username == "" {
		return fmt.Errorf("zymmr.username is required")
	}

	if cfg.Zymmr.Timeout <= 0 {
		return fmt.Errorf("zymmr.timeout must be positive")
	}
	if cfg.Zymmr.RetryCount < 1 {
		return fmt.Errorf("zymmr.retry_count must be at least 1")
	}
	if cfg.Zymmr.RetryDelay <= 0 {
		return fmt.Errorf("zymmr.retry_delay must be positive")
	}

	// Validate logging level
	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		return fmt.Errorf("invalid logging level: %s", cfg.Logging.Level)
	}

	// Validate logging format
	validFormats := map[string]bool{
		"console": true,
		"json":    true,
	}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("invalid logging format: %s", cfg.Logging.Format)
	}

	validOutputs := map[string]bool{
		"table": true,
		"tree":  true,
		"json":  true,
		"yaml":  true,
	}
	if !validOutputs[cfg.Output.Format] {
		return fmt.Errorf("invalid output format: %s (must be table, tree, json or yaml)", cfg.Output.Format)
	}

	for name, expr := range cfg.Filters {
		if strings.TrimSpace(expr) == "" {
			return fmt.Errorf("filters.%s has an empty expression", name)
		}
	}

	return nil
}

// ClientConfig converts the connection settings into a zymmr.Config
func (c *Config) ClientConfig() zymmr.Config {
	return zymmr.Config{
		BaseURL:       c.Zymmr.URL,
		Username:      c.Zymmr.Username,
		Password:      c.Zymmr.Password,
		Timeout:       c.Zymmr.Timeout,
		MaxAttempts:   c.Zymmr.RetryCount,
		RetryDelay:    c.Zymmr.RetryDelay,
		MaxRetryDelay: c.Zymmr.MaxRetryDelay,
		AutoLogin:     c.Zymmr.AutoLogin,
	}
}

// ClientOptions returns the client options derived from the configuration
func (c *Config) ClientOptions() []zymmr.Option {
	opts := []zymmr.Option{
		zymmr.WithPageSize(c.Zymmr.PageSize),
		zymmr.WithConcurrency(c.Zymmr.Concurrency),
	}
	if c.Zymmr.UserAgent != "" {
		opts = append(opts, zymmr.WithUserAgent(c.Zymmr.UserAgent))
	}
	return opts
}
