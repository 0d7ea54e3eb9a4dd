// Package cmd implements the dashbackup command-line interface
package cmd

import (
	"context"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"dashbackup/internal/config"
	"dashbackup/internal/logger"
	"dashbackup/internal/service"
)

var (
	cfg *config.Config
	log logger.Logger
)

var rootCmd = &cobra.Command{
	Use:   "dashbackup",
	Short: "Backup and restore for the dashboard database",
	Long: `dashbackup creates, restores, and prunes snapshots of the dashboard
database. PostgreSQL databases are dumped with portability flags so a
backup taken on one server version restores cleanly on another; the
embedded sqlite engine is snapshotted by file copy.

Configuration comes from environment variables (DATABASE_URL,
BACKUP_DIR, BACKUP_RETENTION_DAYS, ...) with flag overrides.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Debug {
			cfg.LogLevel = "debug"
		}
		color.NoColor = color.NoColor || cfg.NoColor
		log = logger.New(cfg.LogLevel, cfg.LogFormat)
		return cfg.Validate()
	},
}

// Execute runs the CLI with the given configuration
func Execute(ctx context.Context, c *config.Config, l logger.Logger) error {
	cfg = c
	log = l
	bindRootFlags()
	return rootCmd.ExecuteContext(ctx)
}

func bindRootFlags() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&cfg.DatabaseURL, "database-url", cfg.DatabaseURL, "Database connection string (postgresql:// or sqlite://)")
	f.StringVar(&cfg.BackupDir, "backup-dir", cfg.BackupDir, "Directory holding backup files")
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	f.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format (text, json)")
	f.BoolVar(&cfg.Debug, "debug", cfg.Debug, "Enable debug logging")
	f.BoolVar(&cfg.NoColor, "no-color", cfg.NoColor, "Disable colored output")
}

// newService builds the backup service from the effective configuration
func newService() (*service.Service, error) {
	return service.New(cfg, log)
}
