package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	cleanupDryRun bool
	cleanupDays   int
	cleanupWeeks  int
	cleanupMonths int
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Prune old backups with the GFS retention policy",
	Long: `Apply grandfather-father-son retention: keep the newest backup per
day, ISO week, and month for the configured number of recent buckets.
The most recent backup is always kept, whatever the policy says.

Examples:
  # Apply the configured policy (BACKUP_RETENTION_DAYS/WEEKS/MONTHS)
  dashbackup cleanup

  # Preview without deleting
  dashbackup cleanup --dry-run

  # One-off tighter policy
  dashbackup cleanup --days 3 --weeks 2 --months 1`,
	RunE: runCleanupCmd,
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
	cleanupCmd.Flags().BoolVar(&cleanupDryRun, "dry-run", false, "Show what would be deleted without deleting")
	cleanupCmd.Flags().IntVar(&cleanupDays, "days", -1, "Daily buckets to keep (overrides BACKUP_RETENTION_DAYS)")
	cleanupCmd.Flags().IntVar(&cleanupWeeks, "weeks", -1, "Weekly buckets to keep (overrides BACKUP_RETENTION_WEEKS)")
	cleanupCmd.Flags().IntVar(&cleanupMonths, "months", -1, "Monthly buckets to keep (overrides BACKUP_RETENTION_MONTHS)")
}

func runCleanupCmd(cmd *cobra.Command, args []string) error {
	if cleanupDays >= 0 {
		cfg.RetentionDays = cleanupDays
	}
	if cleanupWeeks >= 0 {
		cfg.RetentionWeeks = cleanupWeeks
	}
	if cleanupMonths >= 0 {
		cfg.RetentionMonths = cleanupMonths
	}

	svc, err := newService()
	if err != nil {
		return err
	}

	res, err := svc.Cleanup(cleanupDryRun)
	if err != nil {
		return err
	}

	verb := "deleted"
	if cleanupDryRun {
		verb = "would delete"
	}
	fmt.Printf("%s %d kept, %s %d (%s)\n",
		color.GreenString("Retention:"), len(res.Kept), verb, len(res.Deleted), res.HumanSpaceFreed())
	for _, name := range res.Deleted {
		fmt.Println("  -", name)
	}
	return nil
}
