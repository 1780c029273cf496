// Package config resolves client settings from defaults, an optional YAML
// file and the environment. Command-line flags are applied last by the
// caller.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultAPIURL         = "http://localhost:8000"
	DefaultPollInterval   = 2 * time.Second
	DefaultRequestTimeout = 30 * time.Second
)

// Environment variables read by FromEnv.
const (
	EnvAPIURL         = "MODERATION_API_URL"
	EnvPollInterval   = "MODERATION_POLL_INTERVAL"
	EnvRequestTimeout = "MODERATION_REQUEST_TIMEOUT"
	EnvMetricsFile    = "MODERATION_METRICS_FILE"
)

type Config struct {
	APIURL         string
	PollInterval   time.Duration
	RequestTimeout time.Duration
	// MetricsFile receives EMF metric lines; empty disables metrics.
	MetricsFile string
}

// fileConfig is the on-disk shape. Durations are Go duration strings ("2s").
type fileConfig struct {
	APIURL         string `yaml:"api_url"`
	PollInterval   string `yaml:"poll_interval"`
	RequestTimeout string `yaml:"request_timeout"`
	MetricsFile    string `yaml:"metrics_file"`
}

func Default() *Config {
	return &Config{
		APIURL:         DefaultAPIURL,
		PollInterval:   DefaultPollInterval,
		RequestTimeout: DefaultRequestTimeout,
	}
}

// Load returns defaults overlaid with the YAML file at path (if non-empty)
// and then the environment. The result is not validated; flags may still
// change it.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.FromEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays the non-empty fields of a YAML file onto c.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if fc.APIURL != "" {
		c.APIURL = fc.APIURL
	}
	if fc.MetricsFile != "" {
		c.MetricsFile = fc.MetricsFile
	}
	if err := setDuration(&c.PollInterval, "poll_interval", fc.PollInterval); err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}
	if err := setDuration(&c.RequestTimeout, "request_timeout", fc.RequestTimeout); err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}
	return nil
}

// FromEnv overlays the MODERATION_* environment variables onto c.
func (c *Config) FromEnv() error {
	if v := strings.TrimSpace(os.Getenv(EnvAPIURL)); v != "" {
		c.APIURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvMetricsFile)); v != "" {
		c.MetricsFile = v
	}
	if err := setDuration(&c.PollInterval, EnvPollInterval, os.Getenv(EnvPollInterval)); err != nil {
		return err
	}
	return setDuration(&c.RequestTimeout, EnvRequestTimeout, os.Getenv(EnvRequestTimeout))
}

// Validate checks the resolved configuration.
func (c *Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.APIURL)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("invalid API URL %q: %w", c.APIURL, err))
	case u.Scheme != "http" && u.Scheme != "https":
		errs = append(errs, fmt.Errorf("API URL %q must use http or https", c.APIURL))
	case u.Host == "":
		errs = append(errs, fmt.Errorf("API URL %q has no host", c.APIURL))
	}

	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll interval must be > 0 (got %s)", c.PollInterval))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("request timeout must be > 0 (got %s)", c.RequestTimeout))
	}
	return errors.Join(errs...)
}

// BaseURL is APIURL without a trailing slash, ready for path joining.
func (c *Config) BaseURL() string {
	return strings.TrimRight(c.APIURL, "/")
}

func setDuration(dst *time.Duration, name, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", name, raw, err)
	}
	*dst = d
	return nil
}
