// Package config provides configuration loading for the sync runner.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// SyncConfig holds one run's configuration. It is loaded once at startup and
// passed to component constructors; nothing reads the environment after that.
type SyncConfig struct {
	// Source settings
	SourceDriver string
	SourceDSN    string
	SourceTable  string

	// Paging settings
	PageSize         int
	BatchSize        int
	MaxRecordsPerRun int

	// Watermark settings. When WatermarkDSN is set the cursor lives in a
	// Postgres control table instead of a local file.
	WatermarkFile    string
	WatermarkDSN     string
	WatermarkName    string
	DefaultWatermark string

	// Target settings
	TargetURL    string
	Entity       string
	AlternateKey string
	TenantID     string
	ClientID     string
	ClientSecret string

	// HTTP resilience settings
	MaxRetries  int
	BackoffBase time.Duration
	RateLimit   float64

	// Envelope archive settings (disabled when ArchiveBucket is empty)
	ArchiveBucket    string
	ArchivePrefix    string
	ArchiveEndpoint  string
	ArchiveAccessKey string
	ArchiveSecretKey string
	ArchiveUseSSL    bool
}

// LoadSyncConfig loads configuration from environment.
func LoadSyncConfig() *SyncConfig {
	return &SyncConfig{
		SourceDriver: getEnv("SYNC_SOURCE_DRIVER", "postgres"),
		SourceDSN:    getEnv("SYNC_SOURCE_DSN", ""),
		SourceTable:  getEnv("SYNC_SOURCE_TABLE", "crm_ds.customers"),

		PageSize:         getEnvInt("SYNC_PAGE_SIZE", 5000),
		BatchSize:        getEnvInt("SYNC_BATCH_SIZE", 50),
		MaxRecordsPerRun: getEnvInt("SYNC_MAX_RECORDS_PER_RUN", 0),

		WatermarkFile:    getEnv("SYNC_WATERMARK_FILE", "watermark.json"),
		WatermarkDSN:     getEnv("SYNC_WATERMARK_DSN", ""),
		WatermarkName:    getEnv("SYNC_WATERMARK_NAME", "customers"),
		DefaultWatermark: getEnv("SYNC_DEFAULT_WATERMARK", "2020-01-01T00:00:00Z"),

		TargetURL:    getEnv("SYNC_TARGET_URL", ""),
		Entity:       getEnv("SYNC_TARGET_ENTITY", "new_customers"),
		AlternateKey: getEnv("SYNC_TARGET_ALTERNATE_KEY", "externalid"),
		TenantID:     getEnv("SYNC_TENANT_ID", ""),
		ClientID:     getEnv("SYNC_CLIENT_ID", ""),
		ClientSecret: getEnv("SYNC_CLIENT_SECRET", ""),

		MaxRetries:  getEnvInt("SYNC_MAX_RETRIES", 6),
		BackoffBase: time.Duration(getEnvFloat("SYNC_BACKOFF_BASE_SECS", 2.0) * float64(time.Second)),
		RateLimit:   getEnvFloat("SYNC_RATE_LIMIT", 10.0),

		ArchiveBucket:    getEnv("SYNC_ARCHIVE_BUCKET", ""),
		ArchivePrefix:    getEnv("SYNC_ARCHIVE_PREFIX", "envelopes"),
		ArchiveEndpoint:  getEnv("SYNC_ARCHIVE_ENDPOINT", ""),
		ArchiveAccessKey: getEnv("SYNC_ARCHIVE_ACCESS_KEY", ""),
		ArchiveSecretKey: getEnv("SYNC_ARCHIVE_SECRET_KEY", ""),
		ArchiveUseSSL:    getEnv("SYNC_ARCHIVE_USE_SSL", "false") == "true",
	}
}

// Validate checks that the settings required for a real run are present.
func (c *SyncConfig) Validate() error {
	missing := func(name string) error {
		return fmt.Errorf("missing required configuration: %s", name)
	}
	switch {
	case c.SourceDSN == "":
		return missing("SYNC_SOURCE_DSN")
	case c.TargetURL == "":
		return missing("SYNC_TARGET_URL")
	case c.TenantID == "":
		return missing("SYNC_TENANT_ID")
	case c.ClientID == "":
		return missing("SYNC_CLIENT_ID")
	case c.ClientSecret == "":
		return missing("SYNC_CLIENT_SECRET")
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("SYNC_PAGE_SIZE must be positive")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("SYNC_BATCH_SIZE must be positive")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
