// Package config loads configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all blockdeck server configuration.
type Config struct {
	// Server
	ListenAddr  string
	MetricsAddr string

	// Logging
	LogLevel  string
	LogFormat string

	// Registry
	RegistryManifest string
	BlockSourceRoot  string // overrides the manifest's source_root when set

	// Content source ("local" or "s3", default: "local")
	StorageBackend  string
	LocalSourcePath string

	// S3 content source
	S3Endpoint  string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Region    string
	S3UseSSL    bool

	// Marketplace database (optional; marketplace routes disabled when empty)
	DatabaseURL string

	// AI diagram generator (optional; disabled when no API key)
	GenAIAPIKey string
	GenAIModel  string

	// Preview sessions
	PreviewSessionTTL   time.Duration
	PreviewFetchTimeout time.Duration
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:          envOr("LISTEN_ADDR", ":8080"),
		MetricsAddr:         envOr("METRICS_ADDR", ":9090"),
		LogLevel:            envOr("LOG_LEVEL", "info"),
		LogFormat:           envOr("LOG_FORMAT", "json"),
		RegistryManifest:    envOr("REGISTRY_MANIFEST", "registry/manifest.json"),
		BlockSourceRoot:     envOr("BLOCK_SOURCE_ROOT", ""),
		StorageBackend:      envOr("STORAGE_BACKEND", "local"),
		LocalSourcePath:     envOr("LOCAL_SOURCE_PATH", "."),
		S3Endpoint:          envOr("S3_ENDPOINT", "http://localhost:9000"),
		S3Bucket:            envOr("S3_BUCKET", "blockdeck"),
		S3AccessKey:         envOr("S3_ACCESS_KEY", "minioadmin"),
		S3SecretKey:         envOr("S3_SECRET_KEY", "minioadmin"),
		S3Region:            envOr("S3_REGION", "us-east-1"),
		S3UseSSL:            envBool("S3_USE_SSL", false),
		DatabaseURL:         envOr("DATABASE_URL", ""),
		GenAIAPIKey:         envOr("GENAI_API_KEY", ""),
		GenAIModel:          envOr("GENAI_MODEL", "gemini-2.0-flash"),
		PreviewSessionTTL:   envDuration("PREVIEW_SESSION_TTL", 30*time.Minute),
		PreviewFetchTimeout: envDuration("PREVIEW_FETCH_TIMEOUT", 30*time.Second),
	}

	if cfg.RegistryManifest == "" {
		return nil, fmt.Errorf("REGISTRY_MANIFEST is required")
	}
	if cfg.StorageBackend != "local" && cfg.StorageBackend != "s3" {
		return nil, fmt.Errorf("STORAGE_BACKEND must be local or s3, got %q", cfg.StorageBackend)
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
