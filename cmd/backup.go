package cmd

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var backupCompress bool

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Create a new backup of the database",
	Long: `Dump the database into a timestamped file in the backup directory
and apply the retention policy afterwards.

Examples:
  # Plain SQL dump
  dashbackup backup

  # Gzip-compressed dump (backup_*.sql.gz)
  dashbackup backup --compress`,
	RunE: runBackup,
}

func init() {
	rootCmd.AddCommand(backupCmd)
	backupCmd.Flags().BoolVar(&backupCompress, "compress", false, "Compress the dump with gzip")
}

func runBackup(cmd *cobra.Command, args []string) error {
	if backupCompress {
		cfg.Compress = true
	}

	svc, err := newService()
	if err != nil {
		return err
	}

	res, err := svc.CreateBackup(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Printf("%s %s (%s in %s)\n",
		color.GreenString("Backup created:"),
		res.Path, res.HumanSize(), res.Duration.Round(time.Millisecond))
	return nil
}
