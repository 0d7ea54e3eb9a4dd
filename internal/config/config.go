// Package config holds all runtime configuration for dashbackup.
// Values come from environment variables with flag overrides applied
// by the cmd layer; there is no process-wide mutable state.
package config

import (
	"os"
	"strconv"
	"time"

	"dashbackup/internal/errors"
)

// Defaults for the dashboard database connection and restore budget
const (
	DefaultDatabaseURL    = "postgresql://homepage@db:5432/homepage"
	DefaultBackupDir      = "/app/data/backups"
	DefaultRestoreTimeout = 600 * time.Second
)

// Config holds all configuration options
type Config struct {
	// Version information
	Version   string
	BuildTime string
	GitCommit string

	// Database connection string: postgresql:// or sqlite://
	DatabaseURL string

	// Backup options
	BackupDir  string
	Compress   bool  // gzip the dump artifact (backup_*.sql.gz)
	MinFreeMB  int64 // free-space preflight threshold (0 = skip check)
	PGDumpPath string
	PSQLPath   string

	// GFS retention thresholds
	RetentionDays   int
	RetentionWeeks  int
	RetentionMonths int

	// Restore options
	RestoreTimeout time.Duration
	StrictRestore  bool // abort on any nonzero restore exit, not just ERROR markers

	// Scheduler
	ScheduleInterval time.Duration

	// Output options
	NoColor   bool
	Debug     bool
	LogLevel  string
	LogFormat string
}

// New creates a new configuration with defaults from the environment
func New() *Config {
	return &Config{
		DatabaseURL: getEnvString("DATABASE_URL", DefaultDatabaseURL),

		BackupDir:  getEnvString("BACKUP_DIR", DefaultBackupDir),
		Compress:   getEnvBool("BACKUP_COMPRESS", false),
		MinFreeMB:  int64(getEnvInt("BACKUP_MIN_FREE_MB", 100)),
		PGDumpPath: getEnvString("PG_DUMP_PATH", "pg_dump"),
		PSQLPath:   getEnvString("PSQL_PATH", "psql"),

		RetentionDays:   getEnvInt("BACKUP_RETENTION_DAYS", 7),
		RetentionWeeks:  getEnvInt("BACKUP_RETENTION_WEEKS", 4),
		RetentionMonths: getEnvInt("BACKUP_RETENTION_MONTHS", 6),

		RestoreTimeout: getEnvDuration("RESTORE_TIMEOUT", DefaultRestoreTimeout),
		StrictRestore:  getEnvBool("RESTORE_STRICT", false),

		ScheduleInterval: getEnvDuration("BACKUP_INTERVAL", 24*time.Hour),

		LogLevel:  getEnvString("LOG_LEVEL", "info"),
		LogFormat: getEnvString("LOG_FORMAT", "text"),
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.InvalidConfig("database-url", "must not be empty")
	}
	if c.BackupDir == "" {
		return errors.InvalidConfig("backup-dir", "must not be empty")
	}
	if c.RetentionDays < 0 || c.RetentionWeeks < 0 || c.RetentionMonths < 0 {
		return errors.InvalidConfig("retention", "thresholds must not be negative")
	}
	if c.RestoreTimeout <= 0 {
		return errors.InvalidConfig("restore-timeout", "must be positive")
	}
	if c.ScheduleInterval < time.Minute {
		return errors.InvalidConfig("interval", "must be at least one minute")
	}
	return nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
