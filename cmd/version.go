// Package cmd - version command showing build and system info
package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

var versionFormat string

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version and build information",
	RunE:  runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().StringVar(&versionFormat, "format", "text", "Output format (text, json, short)")
}

type versionInfo struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	GitCommit string `json:"git_commit"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

func runVersion(cmd *cobra.Command, args []string) error {
	info := versionInfo{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		GitCommit: cfg.GitCommit,
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}

	switch versionFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	case "short":
		fmt.Printf("dashbackup %s\n", info.Version)
	default:
		fmt.Printf("dashbackup %s\n", info.Version)
		fmt.Printf("  build time: %s\n", info.BuildTime)
		fmt.Printf("  git commit: %s\n", info.GitCommit)
		fmt.Printf("  go:         %s %s/%s\n", info.GoVersion, info.OS, info.Arch)
	}
	return nil
}
