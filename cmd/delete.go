package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <backup-file>",
	Short: "Delete a single backup file",
	Long: `Remove one backup from the backup directory by name.

Deleting a file that does not exist is an error, not a silent no-op.

Examples:
  dashbackup delete backup_20260101_020000.sql`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	svc, err := newService()
	if err != nil {
		return err
	}

	if err := svc.DeleteBackup(args[0]); err != nil {
		return err
	}
	fmt.Println("Deleted", args[0])
	return nil
}
