package cmd

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"dashbackup/internal/service"
)

var scheduleInterval time.Duration

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run periodic backups until interrupted",
	Long: `Take a backup immediately and then one per interval, applying the
retention policy after each. Runs in the foreground until SIGINT or
SIGTERM; intended for a container entrypoint or a systemd service.

Examples:
  # Daily backups (the default interval)
  dashbackup schedule

  # Every six hours
  dashbackup schedule --interval 6h`,
	RunE: runSchedule,
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
	scheduleCmd.Flags().DurationVar(&scheduleInterval, "interval", 0, "Backup interval (overrides BACKUP_INTERVAL)")
}

func runSchedule(cmd *cobra.Command, args []string) error {
	if scheduleInterval > 0 {
		cfg.ScheduleInterval = scheduleInterval
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	svc, err := newService()
	if err != nil {
		return err
	}

	sched := service.NewScheduler(svc, cfg.ScheduleInterval, log)
	if err := sched.Run(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
