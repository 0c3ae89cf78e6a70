// Package config loads the client configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

var ErrBaseURLEmpty = errors.New("config: base_url must be set")
var ErrBaseURLInvalid = errors.New("config: base_url must be an absolute http(s) URL")

// Duration wraps time.Duration so YAML values like "30s" or "10m" parse.
type Duration time.Duration

// UnmarshalYAML parses a Go duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration in Go syntax.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config holds everything the client needs to run.
type Config struct {
	BaseURL         string   `yaml:"base_url"`
	RequestTimeout  Duration `yaml:"request_timeout"`
	RefreshInterval Duration `yaml:"refresh_interval"`
	StorePath       string   `yaml:"store_path"`
	KeyPath         string   `yaml:"key_path"`
	RolesFile       string   `yaml:"roles_file"`
	LogLevel        string   `yaml:"log_level"`
	LogFormat       string   `yaml:"log_format"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		RequestTimeout:  Duration(30 * time.Second),
		RefreshInterval: Duration(10 * time.Minute),
		StorePath:       "databyte.db",
		KeyPath:         "databyte.key",
		RolesFile:       "roles.yaml",
		LogLevel:        "info",
		LogFormat:       "text",
	}
}

// Load reads a YAML config file over the defaults. A missing file is fine;
// the defaults are returned unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path) //nolint:gosec // path from CLI flag
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the fields the client cannot run without.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return ErrBaseURLEmpty
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
		return ErrBaseURLInvalid
	}
	if c.RequestTimeout <= 0 {
		return errors.New("config: request_timeout must be positive")
	}
	if c.RefreshInterval <= 0 {
		return errors.New("config: refresh_interval must be positive")
	}
	return nil
}
