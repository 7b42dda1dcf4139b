package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/aiasylum/sanctuary/pkg/gateway"
	"github.com/aiasylum/sanctuary/pkg/logging"
)

func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); strings.TrimSpace(v) != "" {
		return v
	}
	return def
}

func getEnvBoolDefault(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getEnvIntDefault(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if i, err := strconv.Atoi(v); err == nil {
		return i
	}
	return def
}

// serviceConfig is everything main needs: the gateway config plus the
// collaborator endpoints the gateway itself never sees.
type serviceConfig struct {
	Gateway gateway.Config

	RedisURL        string
	BlobBaseURL     string
	BlobToken       string
	BlobTokenSecret string
}

// fileConfig is the optional YAML config file shape. Values set here win
// over flags and env for the fields they name.
type fileConfig struct {
	ListenAddr    string `yaml:"listen_addr"`
	RedisURL      string `yaml:"redis_url"`
	BlobBaseURL   string `yaml:"blob_base_url"`
	BlobToken     string `yaml:"blob_token"`
	AdminPassword string `yaml:"admin_password"`
	SpecPath      string `yaml:"spec_path"`
	MaxUploadMB   int64  `yaml:"max_upload_mb"`
	RateLimit     struct {
		Enabled    *bool `yaml:"enabled"`
		PerWindow  int   `yaml:"per_window"`
		WindowSecs int   `yaml:"window_secs"`
	} `yaml:"rate_limit"`
}

// applyFileConfig overlays the YAML file's values onto cfg; fields the file
// leaves unset keep their flag/env values.
func applyFileConfig(cfg *serviceConfig, file *fileConfig) {
	if file.ListenAddr != "" {
		cfg.Gateway.ListenAddr = file.ListenAddr
	}
	if file.RedisURL != "" {
		cfg.RedisURL = file.RedisURL
	}
	if file.BlobBaseURL != "" {
		cfg.BlobBaseURL = file.BlobBaseURL
	}
	if file.BlobToken != "" {
		cfg.BlobToken = file.BlobToken
	}
	if file.AdminPassword != "" {
		cfg.Gateway.AdminPassword = file.AdminPassword
	}
	if file.SpecPath != "" {
		cfg.Gateway.SpecPath = file.SpecPath
	}
	if file.MaxUploadMB > 0 {
		cfg.Gateway.MaxUploadBytes = file.MaxUploadMB * 1024 * 1024
	}
	if file.RateLimit.Enabled != nil {
		cfg.Gateway.RateLimitEnabled = *file.RateLimit.Enabled
	}
	if file.RateLimit.PerWindow > 0 {
		cfg.Gateway.RateLimitPerWindow = file.RateLimit.PerWindow
	}
	if file.RateLimit.WindowSecs > 0 {
		cfg.Gateway.RateLimitWindow = time.Duration(file.RateLimit.WindowSecs) * time.Second
	}
}

func loadConfigFromYAML(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}
	return &cfg, nil
}

// parseConfig parses flags and environment variables.
// Priority: flags > env > defaults.
func parseConfig(logger *logging.ColoredLogger) *serviceConfig {
	configPath := flag.String("config", getEnvDefault("GATEWAY_CONFIG", ""), "Path to config YAML file (overrides flags)")
	addr := flag.String("addr", getEnvDefault("GATEWAY_ADDR", ":6001"), "HTTP listen address (e.g., :6001)")
	redisURL := flag.String("redis-url", getEnvDefault("REDIS_URL", ""), "Redis URL; empty runs on the in-memory store")
	blobBase := flag.String("blob-base-url", getEnvDefault("BLOB_BASE_URL", ""), "Blob storage provider base URL")
	blobToken := flag.String("blob-token", getEnvDefault("BLOB_TOKEN", ""), "Blob storage write token")
	adminPassword := flag.String("admin-password", getEnvDefault("ADMIN_PASSWORD", ""), "Admin view password; empty disables the view")
	specPath := flag.String("spec-path", getEnvDefault("SPEC_PATH", "api-spec.yaml"), "Path to the protocol schema document")
	maxUpload := flag.Int64("max-upload-bytes", int64(getEnvIntDefault("MAX_UPLOAD_BYTES", 500*1024*1024)), "Max size for deferred client uploads")
	rlEnabled := flag.Bool("rate-limit", getEnvBoolDefault("RATE_LIMIT_ENABLED", true), "Enable per-IP rate limiting")
	rlPerWindow := flag.Int("rate-limit-per-window", getEnvIntDefault("RATE_LIMIT_PER_WINDOW", 10), "Requests allowed per window per IP")
	rlWindowSecs := flag.Int("rate-limit-window-secs", getEnvIntDefault("RATE_LIMIT_WINDOW_SECS", 60), "Rate limit window in seconds")
	flag.Parse()

	cfg := &serviceConfig{
		Gateway: gateway.Config{
			ListenAddr:         *addr,
			AdminPassword:      *adminPassword,
			SpecPath:           *specPath,
			MaxUploadBytes:     *maxUpload,
			RateLimitEnabled:   *rlEnabled,
			RateLimitPerWindow: *rlPerWindow,
			RateLimitWindow:    time.Duration(*rlWindowSecs) * time.Second,
		},
		RedisURL:        *redisURL,
		BlobBaseURL:     *blobBase,
		BlobToken:       *blobToken,
		BlobTokenSecret: getEnvDefault("BLOB_TOKEN_SECRET", ""),
	}

	if *configPath != "" {
		file, err := loadConfigFromYAML(*configPath)
		if err != nil {
			logger.ComponentError(logging.ComponentGeneral, "Failed to load config from YAML", zap.Error(err))
			os.Exit(1)
		}
		applyFileConfig(cfg, file)
		logger.ComponentInfo(logging.ComponentGeneral, "Configuration loaded from YAML file",
			zap.String("path", *configPath))
	}

	logger.ComponentInfo(logging.ComponentGeneral, "Loaded gateway configuration",
		zap.String("addr", cfg.Gateway.ListenAddr),
		zap.Bool("redis", cfg.RedisURL != ""),
		zap.Bool("rate_limit", cfg.Gateway.RateLimitEnabled),
		zap.Bool("admin_view", cfg.Gateway.AdminPassword != ""),
	)
	return cfg
}
