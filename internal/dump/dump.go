// Package dump produces portable snapshots of the dashboard database.
//
// PostgreSQL databases go through pg_dump with portability flags so the
// resulting SQL replays cleanly on a different server version or even a
// different hosting provider. The embedded engine is snapshotted with a
// plain file copy, no external tool involved.
package dump

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/pgzip"
	"github.com/shirou/gopsutil/v3/disk"

	"dashbackup/internal/cleanup"
	"dashbackup/internal/dburl"
	apperrors "dashbackup/internal/errors"
	"dashbackup/internal/logger"
)

// portabilityFlags make the dump replayable across versions and providers:
// ownership and ACLs are site-specific, DROP..IF EXISTS lets the restore
// replace existing objects, and comments avoid provider-injected noise.
var portabilityFlags = []string{
	"--no-owner",
	"--no-acl",
	"--clean",
	"--if-exists",
	"--no-comments",
}

// Result describes a completed dump
type Result struct {
	Path       string
	SizeBytes  int64
	Duration   time.Duration
	Compressed bool
}

// HumanSize formats the dump size for display
func (r *Result) HumanSize() string {
	return humanize.Bytes(uint64(r.SizeBytes))
}

// usageFunc reports filesystem usage; overridable in tests
type usageFunc func(path string) (*disk.UsageStat, error)

// Executor runs database dumps
type Executor struct {
	log        logger.Logger
	pgDumpPath string
	compress   bool
	minFreeMB  uint64
	usage      usageFunc
}

// New creates a dump executor. pgDumpPath may be a bare name resolved
// through PATH or an absolute path. minFreeMB below 1 disables the disk
// preflight.
func New(pgDumpPath string, compress bool, minFreeMB int, log logger.Logger) *Executor {
	mb := uint64(0)
	if minFreeMB > 0 {
		mb = uint64(minFreeMB)
	}
	return &Executor{
		log:        log,
		pgDumpPath: pgDumpPath,
		compress:   compress,
		minFreeMB:  mb,
		usage:      disk.Usage,
	}
}

// CreateDump writes a snapshot of the database described by params to
// destPath. On any failure the partial destination file is removed.
func (e *Executor) CreateDump(ctx context.Context, params *dburl.Params, destPath string) (*Result, error) {
	start := time.Now()

	if err := e.checkDiskSpace(filepath.Dir(destPath)); err != nil {
		return nil, err
	}

	var err error
	switch params.Kind() {
	case dburl.KindSQLite:
		err = e.copySQLite(params.FilePath, destPath)
	default:
		err = e.runPGDump(ctx, params, destPath)
	}
	if err != nil {
		os.Remove(destPath)
		return nil, err
	}

	info, err := os.Stat(destPath)
	if err != nil {
		os.Remove(destPath)
		return nil, apperrors.DumpFailed("", err)
	}

	res := &Result{
		Path:       destPath,
		SizeBytes:  info.Size(),
		Duration:   time.Since(start),
		Compressed: e.compress,
	}

	e.log.Info("Backup created",
		"file", filepath.Base(destPath),
		"size", res.HumanSize(),
		"database", params.Database)
	return res, nil
}

// runPGDump streams pg_dump output to the destination, optionally through
// a parallel gzip writer. The password reaches pg_dump only via PGPASSWORD
// in the child environment; the argv carries the credentials-free URL.
func (e *Executor) runPGDump(ctx context.Context, params *dburl.Params, destPath string) error {
	tool, err := exec.LookPath(e.pgDumpPath)
	if err != nil {
		return apperrors.ToolMissing(e.pgDumpPath, err)
	}

	args := append([]string{"--dbname=" + params.CleanURL()}, portabilityFlags...)

	cmd := cleanup.SafeCommand(ctx, tool, args...)
	cmd.Env = append(cmd.Env, params.Env()...)

	dest, err := os.Create(destPath)
	if err != nil {
		return apperrors.DumpFailed("", err)
	}

	var sink io.WriteCloser = dest
	var gz *pgzip.Writer
	if e.compress {
		gz = pgzip.NewWriter(dest)
		sink = gz
	}

	var stderr bytes.Buffer
	cmd.Stdout = sink
	cmd.Stderr = &stderr

	e.log.Debug("Running dump tool", "database", params.Database, "host", params.Host)

	if err := cmd.Start(); err != nil {
		dest.Close()
		return apperrors.DumpFailed(stderr.String(), err)
	}

	waitErr := cleanup.WaitWithContext(ctx, cmd, e.log)

	var closeErr error
	if gz != nil {
		closeErr = gz.Close()
	}
	if err := dest.Close(); closeErr == nil {
		closeErr = err
	}

	if waitErr != nil {
		return apperrors.DumpFailed(stderr.String(), waitErr)
	}
	if closeErr != nil {
		return apperrors.DumpFailed("", closeErr)
	}
	return nil
}

// copySQLite snapshots the embedded database file. The source is opened
// read-only and never touched.
func (e *Executor) copySQLite(srcPath, destPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return apperrors.DumpFailed("", err)
	}
	defer src.Close()

	dest, err := os.Create(destPath)
	if err != nil {
		return apperrors.DumpFailed("", err)
	}

	var sink io.WriteCloser = dest
	var gz *pgzip.Writer
	if e.compress {
		gz = pgzip.NewWriter(dest)
		sink = gz
	}

	_, copyErr := io.Copy(sink, src)

	var closeErr error
	if gz != nil {
		closeErr = gz.Close()
	}
	if err := dest.Close(); closeErr == nil {
		closeErr = err
	}

	if copyErr != nil {
		return apperrors.DumpFailed("", copyErr)
	}
	if closeErr != nil {
		return apperrors.DumpFailed("", closeErr)
	}
	return nil
}

// checkDiskSpace verifies the destination filesystem has at least the
// configured headroom before starting a dump
func (e *Executor) checkDiskSpace(dir string) error {
	if e.minFreeMB == 0 {
		return nil
	}

	stat, err := e.usage(dir)
	if err != nil {
		// Preflight is advisory; an unreadable mount table should not
		// block the backup itself
		e.log.Debug("Disk usage check failed", "error", err)
		return nil
	}

	freeMB := stat.Free / (1024 * 1024)
	if freeMB < e.minFreeMB {
		return apperrors.DiskFull(dir, freeMB, e.minFreeMB)
	}

	e.log.Debug("Disk preflight passed", "free", humanize.Bytes(stat.Free))
	return nil
}
