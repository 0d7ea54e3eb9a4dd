//go:build !windows
// +build !windows

// Package cleanup provides subprocess lifecycle helpers for the external
// dump and restore tools: process-group creation so a cancelled operation
// kills the whole tree, and context-aware waiting.
package cleanup

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"dashbackup/internal/logger"
)

// SafeCommand creates an exec.Cmd with proper process group setup for clean
// termination. Child processes spawned by the tool die with it on cancel.
func SafeCommand(ctx context.Context, name string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)

	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true, // New process group; killed as a unit
		Pgid:    0,
	}

	// Detach stdin so psql never blocks on a password prompt; TERM=dumb
	// keeps it from opening /dev/tty for one
	cmd.Stdin = nil
	cmd.Env = append(os.Environ(), "TERM=dumb")

	return cmd
}

// KillCommandGroup forcibly terminates a command and its process group.
// SIGTERM first, SIGKILL after a short grace period.
func KillCommandGroup(cmd *exec.Cmd, log logger.Logger) error {
	if cmd.Process == nil {
		return nil // Not started or already cleaned up
	}

	pid := cmd.Process.Pid
	pgid, err := syscall.Getpgid(pid)
	if err != nil {
		// Process already gone
		return nil
	}

	log.Debug("Terminating process group", "pid", pid)

	if err := syscall.Kill(-pgid, syscall.SIGTERM); err != nil {
		log.Debug("SIGTERM failed, trying SIGKILL", "error", err)
	}

	done := make(chan struct{}, 1)
	go func() {
		_, _ = cmd.Process.Wait()
		done <- struct{}{}
	}()

	select {
	case <-time.After(3 * time.Second):
		log.Debug("Process did not stop gracefully, sending SIGKILL", "pid", pid)
		if err := syscall.Kill(-pgid, syscall.SIGKILL); err != nil {
			log.Debug("SIGKILL failed", "error", err)
		}
		<-done
	case <-done:
	}

	return nil
}

// WaitWithContext waits for the command to complete, killing the whole
// process group if the context is cancelled or its deadline passes.
// Returns ctx.Err() in that case so callers can distinguish a timeout
// from a tool failure.
func WaitWithContext(ctx context.Context, cmd *exec.Cmd, log logger.Logger) error {
	if cmd.Process == nil {
		return fmt.Errorf("process not started")
	}

	cmdDone := make(chan error, 1)
	go func() {
		cmdDone <- cmd.Wait()
	}()

	select {
	case err := <-cmdDone:
		return err

	case <-ctx.Done():
		log.Debug("Context cancelled, terminating process", "pid", cmd.Process.Pid)

		pgid, err := syscall.Getpgid(cmd.Process.Pid)
		if err == nil {
			_ = syscall.Kill(-pgid, syscall.SIGTERM)

			select {
			case <-cmdDone:
			case <-time.After(2 * time.Second):
				_ = syscall.Kill(-pgid, syscall.SIGKILL)
				<-cmdDone
			}
		} else {
			_ = cmd.Process.Kill()
			<-cmdDone
		}

		return ctx.Err()
	}
}
