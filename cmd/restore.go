package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	restoreYes     bool
	restoreStrict  bool
	restoreTimeout time.Duration
)

var restoreCmd = &cobra.Command{
	Use:   "restore <backup-file>",
	Short: "Restore the database from a backup",
	Long: `Replay a backup into the live database. This OVERWRITES the current
database contents.

Before executing, the backup is sanitized for the running server
version: settings newer servers emit but older ones reject, and
provider-specific meta-commands, are filtered out. Other sessions on
the database are terminated so the restore is not blocked by locks.

Examples:
  # Interactive restore with confirmation
  dashbackup restore backup_20260801_020000.sql

  # Unattended restore
  dashbackup restore backup_20260801_020000.sql --yes

  # Fail on any nonzero tool exit instead of classifying stderr
  dashbackup restore backup_20260801_020000.sql --strict`,
	Args: cobra.ExactArgs(1),
	RunE: runRestore,
}

func init() {
	rootCmd.AddCommand(restoreCmd)
	restoreCmd.Flags().BoolVarP(&restoreYes, "yes", "y", false, "Skip the confirmation prompt")
	restoreCmd.Flags().BoolVar(&restoreStrict, "strict", false, "Treat any nonzero restore exit as failure")
	restoreCmd.Flags().DurationVar(&restoreTimeout, "timeout", 0, "Override the restore timeout (default from RESTORE_TIMEOUT)")
}

func runRestore(cmd *cobra.Command, args []string) error {
	filename := args[0]

	if restoreStrict {
		cfg.StrictRestore = true
	}
	if restoreTimeout > 0 {
		cfg.RestoreTimeout = restoreTimeout
	}

	svc, err := newService()
	if err != nil {
		return err
	}

	if !restoreYes {
		fmt.Printf("%s restore %s into %s\n",
			color.YellowString("This will OVERWRITE the current database:"),
			filename, svc.Database())
		fmt.Print("Type 'yes' to continue: ")

		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		if strings.TrimSpace(answer) != "yes" {
			fmt.Println("Restore cancelled")
			return nil
		}
	}

	res, err := svc.RestoreBackup(cmd.Context(), filename)
	if err != nil {
		return err
	}

	msg := color.GreenString("Restore complete:")
	if res.SoftSuccess {
		msg = color.YellowString("Restore complete (tool reported non-fatal issues):")
	}
	fmt.Printf("%s %s in %s\n", msg, res.Filename, res.Duration.Round(time.Millisecond))
	return nil
}
