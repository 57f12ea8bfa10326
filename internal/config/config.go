package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// envPrefix matches the settings prefix the rest of the bio-mcp tooling uses.
const envPrefix = "BIO_MCP_"

type Config struct {
	ListenAddr string

	// External tool invocation.
	InterproPath string
	TimeoutSec   int
	MaxFileSize  int64

	// Filesystem layout.
	TempDir   string
	ResultDir string

	// Scheduling.
	PoolSize      int
	QueueCapacity int

	// Job retention. Terminal jobs and their result artifacts are pruned
	// once older than Retention.
	Retention     time.Duration
	SweepInterval time.Duration

	// Optional badger checkpoint directory. Empty means in-memory only.
	BadgerDir string

	// Completion notification.
	NotifyTimeout    time.Duration
	NotifyMaxRetries int
}

func Load() *Config {
	tempDir := getEnv("TEMP_DIR", filepath.Join(os.TempDir(), "interprod"))
	return &Config{
		ListenAddr:       getEnv("LISTEN_ADDR", ":8080"),
		InterproPath:     getEnv("INTERPRO_PATH", "interproscan.sh"),
		TimeoutSec:       getEnvInt("TIMEOUT_SECONDS", 1800),
		MaxFileSize:      getEnvInt64("MAX_FILE_SIZE", 100_000_000),
		TempDir:          tempDir,
		ResultDir:        getEnv("RESULT_DIR", filepath.Join(tempDir, "results")),
		PoolSize:         getEnvInt("POOL_SIZE", 2),
		QueueCapacity:    getEnvInt("QUEUE_CAPACITY", 1024),
		Retention:        time.Duration(getEnvInt("RETENTION_HOURS", 24*30)) * time.Hour,
		SweepInterval:    time.Duration(getEnvInt("SWEEP_INTERVAL_MINUTES", 60)) * time.Minute,
		BadgerDir:        getEnv("BADGER_DIR", ""),
		NotifyTimeout:    time.Duration(getEnvInt("NOTIFY_TIMEOUT_SEC", 10)) * time.Second,
		NotifyMaxRetries: getEnvInt("NOTIFY_MAX_RETRIES", 5),
	}
}

func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(envPrefix + key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(envPrefix + key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v := os.Getenv(envPrefix + key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return fallback
}
