package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var listFormat string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available backups, newest first",
	Long: `Show every backup in the backup directory with size and age.

Examples:
  # Human-readable table
  dashbackup list

  # JSON for scripts
  dashbackup list --format json`,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().StringVar(&listFormat, "format", "table", "Output format (table, json)")
}

func runList(cmd *cobra.Command, args []string) error {
	svc, err := newService()
	if err != nil {
		return err
	}

	records, err := svc.ListBackups()
	if err != nil {
		return err
	}

	if listFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	if len(records) == 0 {
		fmt.Println("No backups found in", svc.Catalog().Dir())
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, color.New(color.Bold).Sprint("NAME\tSIZE\tCREATED"))
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.Filename, r.HumanSize(), humanize.Time(r.CreatedAt))
	}
	return w.Flush()
}
