package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aluiziolira/scan-catalog/parser"
)

// NoThreshold disables the extraction item cap.
const NoThreshold = -1

// Config holds scraper configuration.
type Config struct {
	BaseURL         string        `yaml:"base_url"`
	URL             string        `yaml:"url"`
	Threshold       int           `yaml:"threshold"`
	Attributes      []string      `yaml:"attributes"`
	CategoryKey     string        `yaml:"category_key"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxRetries      int           `yaml:"max_retries"`
	RetryBackoff    time.Duration `yaml:"retry_backoff"`
	RetryBackoffMax time.Duration `yaml:"retry_backoff_max"`
	CacheSize       int           `yaml:"cache_size"`
	OutputFile      string        `yaml:"output_file"`
	OutputFormat    string        `yaml:"output_format"` // json, csv, jsonl, or dual
	UserAgent       string        `yaml:"user_agent"`
	MetricsAddr     string        `yaml:"metrics_addr"`
	Verbose         bool          `yaml:"verbose"`
}

// DefaultConfig returns conservative defaults for the target shop.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:         "https://www.scan.co.uk",
		URL:             "https://www.scan.co.uk/shop/computer-hardware/solid-state-drives/all",
		Threshold:       NoThreshold,
		Attributes:      append([]string(nil), parser.DefaultAttributes...),
		CategoryKey:     "category",
		Timeout:         10 * time.Second,
		MaxRetries:      0,
		RetryBackoff:    200 * time.Millisecond,
		RetryBackoffMax: 2 * time.Second,
		CacheSize:       32,
		OutputFile:      "output/catalog.json",
		OutputFormat:    "json",
		UserAgent:       "Mozilla/5.0",
		Verbose:         false,
	}
}

// Whitelist builds the attribute whitelist described by the configuration.
func (c *Config) Whitelist() *parser.Whitelist {
	return parser.NewWhitelist(c.Attributes...)
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if err := validateURL("base URL", c.BaseURL); err != nil {
		return err
	}
	if c.URL != "" {
		if err := validateURL("start URL", c.URL); err != nil {
			return err
		}
	}

	if c.Threshold < NoThreshold {
		return fmt.Errorf("threshold cannot be negative (use %d to disable)", NoThreshold)
	}
	if len(c.Attributes) == 0 {
		return fmt.Errorf("attribute whitelist cannot be empty")
	}
	for _, attr := range c.Attributes {
		if strings.TrimSpace(attr) == "" {
			return fmt.Errorf("attribute whitelist contains an empty name")
		}
	}
	if strings.TrimSpace(c.CategoryKey) == "" {
		return fmt.Errorf("category key cannot be empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("cache size cannot be negative")
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	switch c.OutputFormat {
	case "json", "csv", "jsonl", "dual":
	default:
		return fmt.Errorf("output format must be json, csv, jsonl, or dual")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	return nil
}

func validateURL(name, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s cannot be empty", name)
	}
	parsedURL, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("%s must include a host", name)
	}
	return nil
}
