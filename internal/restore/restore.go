// Package restore replays a backup into the live database.
//
// A restore is destructive: the dump carries DROP..IF EXISTS statements,
// so the pipeline verifies the artifact, drains competing sessions,
// sanitizes the SQL for the running server version, and only then
// executes it. Each run walks a fixed phase sequence that external
// observers can poll.
package restore

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/pgzip"

	"dashbackup/internal/catalog"
	"dashbackup/internal/cleanup"
	"dashbackup/internal/dburl"
	apperrors "dashbackup/internal/errors"
	"dashbackup/internal/logger"
	"dashbackup/internal/sanitize"
)

// Phase is a step in the restore pipeline
type Phase string

const (
	PhasePending    Phase = "PENDING"
	PhaseVerifying  Phase = "VERIFYING"
	PhaseDraining   Phase = "DRAINING"
	PhaseSanitizing Phase = "SANITIZING"
	PhaseRestoring  Phase = "RESTORING"
	PhaseComplete   Phase = "COMPLETE"
	PhaseFailed     Phase = "FAILED"
)

// Drainer terminates other database sessions before the restore runs
type Drainer interface {
	TerminateOthers(ctx context.Context, params *dburl.Params) error
}

// Result describes a finished restore
type Result struct {
	Filename string
	Duration time.Duration

	// Warnings counts tolerated WARNING/NOTICE lines from the tool
	Warnings int

	// SoftSuccess marks a nonzero tool exit that produced no fatal
	// error marker and was accepted
	SoftSuccess bool
}

// Executor runs the restore pipeline
type Executor struct {
	log      logger.Logger
	cat      *catalog.Catalog
	drainer  Drainer
	psqlPath string
	timeout  time.Duration
	strict   bool

	mu    sync.Mutex
	phase Phase
}

// New creates a restore executor. drainer may be nil to skip draining.
// strict mode rejects any nonzero tool exit instead of classifying it.
func New(cat *catalog.Catalog, drainer Drainer, psqlPath string, timeout time.Duration, strict bool, log logger.Logger) *Executor {
	return &Executor{
		log:      log,
		cat:      cat,
		drainer:  drainer,
		psqlPath: psqlPath,
		timeout:  timeout,
		strict:   strict,
		phase:    PhasePending,
	}
}

// Phase returns the current pipeline phase
func (e *Executor) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

func (e *Executor) setPhase(p Phase) {
	e.mu.Lock()
	e.phase = p
	e.mu.Unlock()
	e.log.Debug("Restore phase", "phase", string(p))
}

// Restore replays the named backup into the database described by params.
// On any failure the phase is left at FAILED and the error describes the
// first fatal condition. The sanitized temp file is removed on every
// path, success or failure.
func (e *Executor) Restore(ctx context.Context, params *dburl.Params, filename string) (*Result, error) {
	start := time.Now()
	op := e.log.StartOperation("restore " + filename)

	res, err := e.run(ctx, params, filename)
	if err != nil {
		e.setPhase(PhaseFailed)
		op.Fail("restore failed", "error", err)
		return nil, err
	}

	res.Duration = time.Since(start)
	e.setPhase(PhaseComplete)
	op.Complete("database restored")
	return res, nil
}

func (e *Executor) run(ctx context.Context, params *dburl.Params, filename string) (*Result, error) {
	e.setPhase(PhaseVerifying)

	backupPath, err := e.cat.Path(filename)
	if err != nil {
		return nil, err
	}
	if !e.cat.Exists(filename) {
		return nil, apperrors.BackupNotFound(filename, e.cat.Dir())
	}

	if params.Kind() == dburl.KindSQLite {
		return e.restoreSQLite(backupPath, params, filename)
	}

	e.setPhase(PhaseDraining)
	if e.drainer != nil {
		if err := e.drainer.TerminateOthers(ctx, params); err != nil {
			// Best-effort: the restore may still succeed with sessions
			// attached, so a drain failure only warns
			e.log.Warn("Could not terminate existing connections", "error", err)
		}
	}

	e.setPhase(PhaseSanitizing)
	sanitizedPath := backupPath + catalog.SanitizedSuffix
	if _, err := sanitize.SQLFile(backupPath, sanitizedPath, sanitize.DefaultRules(), e.log); err != nil {
		return nil, err
	}
	defer e.removeSanitized(sanitizedPath)

	e.setPhase(PhaseRestoring)
	res, err := e.runPSQL(ctx, params, sanitizedPath)
	if err != nil {
		return nil, err
	}
	res.Filename = filename
	return res, nil
}

// runPSQL executes the sanitized SQL under the configured wall-clock
// budget. On a nonzero exit the tool's stderr is classified: the first
// ERROR marker is fatal, WARNING and NOTICE lines are expected from the
// DROP..IF EXISTS preamble and tolerated. A zero exit is a success
// regardless of stderr content.
func (e *Executor) runPSQL(ctx context.Context, params *dburl.Params, sqlPath string) (*Result, error) {
	tool, err := exec.LookPath(e.psqlPath)
	if err != nil {
		return nil, apperrors.ToolMissing(e.psqlPath, err)
	}

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := cleanup.SafeCommand(runCtx, tool,
		"--dbname="+params.CleanURL(),
		"--file="+sqlPath,
		"--no-psqlrc")
	cmd.Env = append(cmd.Env, params.Env()...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, apperrors.RestoreFailed(err.Error())
	}

	waitErr := cleanup.WaitWithContext(runCtx, cmd, e.log)

	if waitErr != nil && errors.Is(waitErr, context.DeadlineExceeded) && ctx.Err() == nil {
		return nil, apperrors.RestoreTimeout(e.timeout.Seconds())
	}
	if waitErr != nil && runCtx.Err() != nil && ctx.Err() != nil {
		// Caller-initiated cancellation, not a timeout
		return nil, ctx.Err()
	}

	firstError, warnings := classifyOutput(&stderr)

	if waitErr != nil {
		if firstError != "" {
			return nil, apperrors.RestoreFailed(firstError)
		}
		if e.strict {
			return nil, apperrors.RestoreFailed(lastLine(&stderr))
		}
		// Nonzero exit with no fatal marker: typically version skew
		// noise from statements the server ignored
		e.log.Warn("Restore tool exited nonzero without a fatal error; treating as success",
			"error", waitErr)
		return &Result{Warnings: warnings, SoftSuccess: true}, nil
	}

	// The tool exits zero even when individual statements failed (no
	// ON_ERROR_STOP); a clean exit means the run completed, so error
	// lines are logged rather than fatal
	if firstError != "" {
		e.log.Warn("Restore tool reported statement errors but exited cleanly",
			"error", firstError)
	}
	if warnings > 0 {
		e.log.Debug("Restore produced tolerated warnings", "lines_total", warnings)
	}
	return &Result{Warnings: warnings}, nil
}

// restoreSQLite swaps the live database file for the backed-up copy.
// Drain and sanitize do not apply to the embedded engine.
func (e *Executor) restoreSQLite(backupPath string, params *dburl.Params, filename string) (*Result, error) {
	e.setPhase(PhaseRestoring)

	src, err := os.Open(backupPath)
	if err != nil {
		return nil, apperrors.RestoreFailed(err.Error())
	}
	defer src.Close()

	var reader io.Reader = src
	if strings.HasSuffix(backupPath, ".gz") {
		gz, err := pgzip.NewReader(src)
		if err != nil {
			return nil, apperrors.RestoreFailed(err.Error())
		}
		defer gz.Close()
		reader = gz
	}

	dest, err := os.Create(params.FilePath)
	if err != nil {
		return nil, apperrors.RestoreFailed(err.Error())
	}

	if _, err := io.Copy(dest, reader); err != nil {
		dest.Close()
		return nil, apperrors.RestoreFailed(err.Error())
	}
	if err := dest.Close(); err != nil {
		return nil, apperrors.RestoreFailed(err.Error())
	}

	return &Result{Filename: filename}, nil
}

// removeSanitized deletes the temp file; failure to do so is logged and
// never propagated
func (e *Executor) removeSanitized(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		e.log.Warn("Could not remove sanitized temp file", "file", path, "error", err)
	}
}

// classifyOutput scans tool stderr line by line. It returns the first
// fatal ERROR line (empty if none) and the count of tolerated
// WARNING/NOTICE lines.
func classifyOutput(stderr *bytes.Buffer) (string, int) {
	var firstError string
	warnings := 0

	sc := bufio.NewScanner(bytes.NewReader(stderr.Bytes()))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case strings.Contains(line, "ERROR:"):
			if firstError == "" {
				firstError = line
			}
		case strings.Contains(line, "WARNING:"), strings.Contains(line, "NOTICE:"):
			warnings++
		}
	}
	return firstError, warnings
}

// lastLine returns the final non-empty stderr line for strict-mode
// failure messages
func lastLine(stderr *bytes.Buffer) string {
	lines := strings.Split(strings.TrimSpace(stderr.String()), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return "restore tool exited with an error"
}
