package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"dashbackup/cmd"
	"dashbackup/internal/config"
	"dashbackup/internal/logger"
)

// Set at build time with -ldflags
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	cfg := config.New()
	cfg.Version = version
	cfg.BuildTime = buildTime
	cfg.GitCommit = gitCommit

	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Execute(ctx, cfg, log); err != nil {
		log.Error("Command failed", "error", err)
		os.Exit(1)
	}
}
