package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "threshold below disabled marker",
			mutate: func(cfg *Config) {
				cfg.Threshold = -2
			},
			wantErr: "threshold",
		},
		{
			name: "empty base url",
			mutate: func(cfg *Config) {
				cfg.BaseURL = ""
			},
			wantErr: "base URL",
		},
		{
			name: "invalid url format",
			mutate: func(cfg *Config) {
				cfg.BaseURL = "http://"
			},
			wantErr: "base URL",
		},
		{
			name: "start url without host",
			mutate: func(cfg *Config) {
				cfg.URL = "/shop/all"
			},
			wantErr: "start URL",
		},
		{
			name: "negative timeout",
			mutate: func(cfg *Config) {
				cfg.Timeout = -1 * time.Second
			},
			wantErr: "timeout",
		},
		{
			name: "empty whitelist",
			mutate: func(cfg *Config) {
				cfg.Attributes = nil
			},
			wantErr: "whitelist",
		},
		{
			name: "blank attribute",
			mutate: func(cfg *Config) {
				cfg.Attributes = []string{"price", " "}
			},
			wantErr: "empty name",
		},
		{
			name: "backoff above max",
			mutate: func(cfg *Config) {
				cfg.RetryBackoff = 3 * time.Second
				cfg.RetryBackoffMax = time.Second
			},
			wantErr: "retry backoff",
		},
		{
			name: "unknown format",
			mutate: func(cfg *Config) {
				cfg.OutputFormat = "xml"
			},
			wantErr: "output format",
		},
		{
			name: "negative cache",
			mutate: func(cfg *Config) {
				cfg.CacheSize = -1
			},
			wantErr: "cache size",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
	if cfg.Threshold != NoThreshold {
		t.Fatalf("default threshold = %d, want disabled", cfg.Threshold)
	}
}

func TestConfigWhitelist(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Attributes = []string{"price", "data-wpid", "price"}

	got := cfg.Whitelist().Keys()
	if want := []string{"data-price", "data-wpid"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("whitelist = %v, want %v", got, want)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scraper.yaml")
	content := `
url: https://www.scan.co.uk/shop/gpu
threshold: 25
attributes: [description, price]
timeout: 3s
output_format: csv
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.URL != "https://www.scan.co.uk/shop/gpu" || cfg.Threshold != 25 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Timeout != 3*time.Second {
		t.Fatalf("timeout = %v, want 3s", cfg.Timeout)
	}
	if !reflect.DeepEqual(cfg.Attributes, []string{"description", "price"}) {
		t.Fatalf("attributes = %v", cfg.Attributes)
	}
	if cfg.UserAgent != DefaultConfig().UserAgent {
		t.Fatalf("omitted keys should keep defaults, user agent = %q", cfg.UserAgent)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("loaded config invalid: %v", err)
	}
}

func TestLoadFileRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scraper.yaml")
	if err := os.WriteFile(path, []byte("pages: 3\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatalf("expected error for unknown key")
	}
}

func TestLoadFileEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if !reflect.DeepEqual(cfg, DefaultConfig()) {
		t.Fatalf("empty file should yield defaults")
	}
}

func TestEnvInt(t *testing.T) {
	t.Setenv("SCRAPER_TEST_INT", " 42 ")
	value, ok, err := EnvInt("SCRAPER_TEST_INT")
	if err != nil || !ok || value != 42 {
		t.Fatalf("EnvInt() = %d, %v, %v", value, ok, err)
	}

	t.Setenv("SCRAPER_TEST_INT", "many")
	if _, _, err := EnvInt("SCRAPER_TEST_INT"); err == nil {
		t.Fatalf("expected parse error")
	}

	if _, ok, err := EnvInt("SCRAPER_TEST_UNSET"); ok || err != nil {
		t.Fatalf("unset variable should report ok=false without error")
	}
}
