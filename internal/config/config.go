package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const DefaultBaseURL = "https://api.ciscospark.com/v1"

// Config configures the fake service binary.
type Config struct {
	Port         int
	MasterSecret string
	GinMode      string
	TLSCertFile  string
	TLSKeyFile   string
	TokenExpiry  time.Duration
	PageSize     int
	RateLimit    int
	LogLevel     logrus.Level
}

// ClientConfig configures an SDK client built from the environment.
type ClientConfig struct {
	AccessToken       string
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	LogLevel          logrus.Level
}

type Env interface {
	Getenv(key string) string
}

type osEnv struct{}

func (osEnv) Getenv(key string) string { return os.Getenv(key) }

// loadDotEnv merges a .env file from the working directory into the process
// environment. Variables already set win.
func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func LoadConfig() (Config, error) {
	if err := loadDotEnv(); err != nil {
		return Config{}, err
	}
	return LoadConfigFromEnv(osEnv{})
}

func LoadClientConfig() (ClientConfig, error) {
	if err := loadDotEnv(); err != nil {
		return ClientConfig{}, err
	}
	return LoadClientConfigFromEnv(osEnv{})
}

func LoadConfigFromEnv(env Env) (Config, error) {
	cfg := Config{
		Port:        3000,
		GinMode:     "release",
		TokenExpiry: 7 * 24 * time.Hour,
		PageSize:    100,
		RateLimit:   600,
		LogLevel:    logrus.InfoLevel,
	}

	if raw := env.Getenv("PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil || port <= 0 || port > 65535 {
			return Config{}, fmt.Errorf("invalid PORT")
		}
		cfg.Port = port
	}

	cfg.MasterSecret = env.Getenv("MASTER_SECRET")
	if cfg.MasterSecret == "" {
		return Config{}, fmt.Errorf("MASTER_SECRET is required")
	}

	if raw := env.Getenv("GIN_MODE"); raw != "" {
		cfg.GinMode = raw
	}

	cfg.TLSCertFile = env.Getenv("TLS_CERT_FILE")
	cfg.TLSKeyFile = env.Getenv("TLS_KEY_FILE")

	if raw := env.Getenv("TOKEN_EXPIRY_SECONDS"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			return Config{}, fmt.Errorf("invalid TOKEN_EXPIRY_SECONDS")
		}
		cfg.TokenExpiry = time.Duration(seconds) * time.Second
	}

	if raw := env.Getenv("PAGE_SIZE"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size <= 0 {
			return Config{}, fmt.Errorf("invalid PAGE_SIZE")
		}
		cfg.PageSize = size
	}

	if raw := env.Getenv("RATE_LIMIT_PER_MINUTE"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return Config{}, fmt.Errorf("invalid RATE_LIMIT_PER_MINUTE")
		}
		cfg.RateLimit = limit
	}

	level, err := parseLevel(env)
	if err != nil {
		return Config{}, err
	}
	cfg.LogLevel = level

	return cfg, nil
}

func LoadClientConfigFromEnv(env Env) (ClientConfig, error) {
	cfg := ClientConfig{
		BaseURL:  DefaultBaseURL,
		Timeout:  30 * time.Second,
		LogLevel: logrus.InfoLevel,
	}

	cfg.AccessToken = strings.TrimSpace(env.Getenv("SPARK_ACCESS_TOKEN"))
	if cfg.AccessToken == "" {
		return ClientConfig{}, fmt.Errorf("SPARK_ACCESS_TOKEN is required")
	}

	if raw := env.Getenv("SPARK_BASE_URL"); raw != "" {
		cfg.BaseURL = strings.TrimRight(raw, "/")
	}

	if raw := env.Getenv("SPARK_TIMEOUT_SECONDS"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			return ClientConfig{}, fmt.Errorf("invalid SPARK_TIMEOUT_SECONDS")
		}
		cfg.Timeout = time.Duration(seconds) * time.Second
	}

	if raw := env.Getenv("SPARK_REQUESTS_PER_SECOND"); raw != "" {
		rps, err := strconv.ParseFloat(raw, 64)
		if err != nil || rps < 0 {
			return ClientConfig{}, fmt.Errorf("invalid SPARK_REQUESTS_PER_SECOND")
		}
		cfg.RequestsPerSecond = rps
	}

	level, err := parseLevel(env)
	if err != nil {
		return ClientConfig{}, err
	}
	cfg.LogLevel = level

	return cfg, nil
}

func parseLevel(env Env) (logrus.Level, error) {
	raw := env.Getenv("SPARK_LOG_LEVEL")
	if raw == "" {
		return logrus.InfoLevel, nil
	}
	level, err := logrus.ParseLevel(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid SPARK_LOG_LEVEL: %w", err)
	}
	return level, nil
}
