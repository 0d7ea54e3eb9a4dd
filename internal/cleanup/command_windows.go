//go:build windows
// +build windows

package cleanup

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"dashbackup/internal/logger"
)

// SafeCommand creates an exec.Cmd. Windows has no process groups in the
// POSIX sense; CommandContext kills the direct child on cancel.
func SafeCommand(ctx context.Context, name string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = nil
	cmd.Env = append(os.Environ(), "TERM=dumb")
	return cmd
}

// KillCommandGroup terminates the command process
func KillCommandGroup(cmd *exec.Cmd, log logger.Logger) error {
	if cmd.Process == nil {
		return nil
	}
	log.Debug("Terminating process", "pid", cmd.Process.Pid)
	return cmd.Process.Kill()
}

// WaitWithContext waits for the command, killing it on context cancellation
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
		_ = cmd.Process.Kill()
		<-cmdDone
		return ctx.Err()
	}
}
