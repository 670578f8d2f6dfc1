package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

type mapEnv map[string]string

func (m mapEnv) Getenv(key string) string { return m[key] }

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadConfigFromEnv(mapEnv{"MASTER_SECRET": "x"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Port != 3000 {
		t.Fatalf("expected default port 3000, got %d", cfg.Port)
	}
	if cfg.GinMode != "release" {
		t.Fatalf("expected default gin mode release, got %q", cfg.GinMode)
	}
	if cfg.PageSize != 100 {
		t.Fatalf("expected default page size 100, got %d", cfg.PageSize)
	}
}

func TestLoadConfigFromEnv_MissingSecret(t *testing.T) {
	_, err := LoadConfigFromEnv(mapEnv{})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestLoadConfigFromEnv_PortOverride(t *testing.T) {
	cfg, err := LoadConfigFromEnv(mapEnv{"MASTER_SECRET": "x", "PORT": "1234"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Port != 1234 {
		t.Fatalf("expected port 1234, got %d", cfg.Port)
	}
}

func TestLoadConfigFromEnv_RateLimit(t *testing.T) {
	cfg, err := LoadConfigFromEnv(mapEnv{"MASTER_SECRET": "x", "RATE_LIMIT_PER_MINUTE": "0"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.RateLimit != 0 {
		t.Fatalf("expected rate limit disabled, got %d", cfg.RateLimit)
	}
	if _, err := LoadConfigFromEnv(mapEnv{"MASTER_SECRET": "x", "RATE_LIMIT_PER_MINUTE": "-1"}); err == nil {
		t.Fatalf("expected error for negative rate limit")
	}
}

func TestLoadConfigFromEnv_InvalidPageSize(t *testing.T) {
	_, err := LoadConfigFromEnv(mapEnv{"MASTER_SECRET": "x", "PAGE_SIZE": "0"})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestLoadClientConfigFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadClientConfigFromEnv(mapEnv{"SPARK_ACCESS_TOKEN": "tok"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.BaseURL != DefaultBaseURL {
		t.Fatalf("expected default base url, got %q", cfg.BaseURL)
	}
	if cfg.Timeout != 30*time.Second {
		t.Fatalf("expected 30s timeout, got %v", cfg.Timeout)
	}
	if cfg.RequestsPerSecond != 0 {
		t.Fatalf("expected unlimited rate, got %v", cfg.RequestsPerSecond)
	}
	if cfg.LogLevel != logrus.InfoLevel {
		t.Fatalf("expected info level, got %v", cfg.LogLevel)
	}
}

func TestLoadClientConfigFromEnv_MissingToken(t *testing.T) {
	_, err := LoadClientConfigFromEnv(mapEnv{"SPARK_ACCESS_TOKEN": "   "})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestLoadClientConfigFromEnv_Overrides(t *testing.T) {
	cfg, err := LoadClientConfigFromEnv(mapEnv{
		"SPARK_ACCESS_TOKEN":        "tok",
		"SPARK_BASE_URL":            "http://localhost:3000/v1/",
		"SPARK_TIMEOUT_SECONDS":     "5",
		"SPARK_REQUESTS_PER_SECOND": "2.5",
		"SPARK_LOG_LEVEL":           "debug",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.BaseURL != "http://localhost:3000/v1" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.BaseURL)
	}
	if cfg.Timeout != 5*time.Second {
		t.Fatalf("expected 5s, got %v", cfg.Timeout)
	}
	if cfg.RequestsPerSecond != 2.5 {
		t.Fatalf("expected 2.5, got %v", cfg.RequestsPerSecond)
	}
	if cfg.LogLevel != logrus.DebugLevel {
		t.Fatalf("expected debug, got %v", cfg.LogLevel)
	}
}

func TestLoadClientConfigFromEnv_InvalidLevel(t *testing.T) {
	_, err := LoadClientConfigFromEnv(mapEnv{"SPARK_ACCESS_TOKEN": "tok", "SPARK_LOG_LEVEL": "loud"})
	if err == nil {
		t.Fatalf("expected error")
	}
}
