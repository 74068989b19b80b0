// Package config holds the client configuration: where the classification
// service lives, upload limits and timeouts, the view API address and logging.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	ServiceURL      string        `yaml:"service_url"`
	UploadTimeout   time.Duration `yaml:"upload_timeout"`
	ListenAddr      string        `yaml:"listen_addr"`
	MaxUploadSize   int64         `yaml:"max_upload_size"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	LogLevel        string        `yaml:"log_level"`
	LogFormat       string        `yaml:"log_format"`
}

// Default returns a configuration pointing at a locally running service.
func Default() *Config {
	return &Config{
		ServiceURL:      "http://127.0.0.1:5000",
		UploadTimeout:   30 * time.Second,
		ListenAddr:      ":8080",
		MaxUploadSize:   10 << 20,
		ShutdownTimeout: 15 * time.Second,
		LogLevel:        "info",
		LogFormat:       "json",
	}
}

// Load starts from Default, overlays the YAML file at path when path is not
// empty, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables looked up with lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("CLASSIFIER_URL"); ok && v != "" {
		c.ServiceURL = v
	}
	if v, ok := lookup("LISTEN_ADDR"); ok && v != "" {
		c.ListenAddr = v
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		c.LogLevel = v
	}
	if v, ok := lookup("LOG_FORMAT"); ok && v != "" {
		c.LogFormat = v
	}
	if v, ok := lookup("UPLOAD_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("UPLOAD_TIMEOUT: %w", err)
		}
		c.UploadTimeout = d
	}
	if v, ok := lookup("MAX_UPLOAD_SIZE"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("MAX_UPLOAD_SIZE: %w", err)
		}
		c.MaxUploadSize = n
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	u, err := url.Parse(c.ServiceURL)
	if err != nil {
		return fmt.Errorf("service_url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("service_url must be an absolute http(s) url, got %q", c.ServiceURL)
	}
	if c.UploadTimeout <= 0 {
		return errors.New("upload_timeout must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("shutdown_timeout must be positive")
	}
	if c.MaxUploadSize <= 0 {
		return errors.New("max_upload_size must be positive")
	}
	if c.ListenAddr == "" {
		return errors.New("listen_addr cannot be empty")
	}
	return nil
}
