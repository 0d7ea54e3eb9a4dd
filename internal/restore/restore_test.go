package restore

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"dashbackup/internal/catalog"
	"dashbackup/internal/dburl"
	apperrors "dashbackup/internal/errors"
	"dashbackup/internal/logger"
)

const backupName = "backup_20260801_120000.sql"

const dumpBody = `DROP TABLE IF EXISTS widgets;
SET transaction_timeout = 0;
CREATE TABLE widgets (id serial);
\restrict on
INSERT INTO widgets VALUES (1);
`

type fakeDrainer struct {
	called bool
	err    error
}

func (d *fakeDrainer) TerminateOthers(ctx context.Context, params *dburl.Params) error {
	d.called = true
	return d.err
}

func writePsql(t *testing.T, dir, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs require a POSIX shell")
	}
	path := filepath.Join(dir, "psql")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

// newFixture builds a catalog over a temp dir with one backup in it and
// returns the dir, catalog, and connection params
func newFixture(t *testing.T) (string, *catalog.Catalog, *dburl.Params) {
	t.Helper()
	dir := t.TempDir()
	cat := catalog.New(dir, logger.NewNullLogger())
	if err := os.WriteFile(filepath.Join(dir, backupName), []byte(dumpBody), 0o600); err != nil {
		t.Fatal(err)
	}
	params, err := dburl.Parse("postgresql://homepage:pw@db:5432/homepage")
	if err != nil {
		t.Fatal(err)
	}
	return dir, cat, params
}

func sanitizedPath(dir string) string {
	return filepath.Join(dir, backupName+catalog.SanitizedSuffix)
}

func assertNoSanitizedLeftover(t *testing.T, dir string) {
	t.Helper()
	if _, err := os.Stat(sanitizedPath(dir)); !os.IsNotExist(err) {
		t.Error("sanitized temp file was not removed")
	}
}

func TestRestoreSuccess(t *testing.T) {
	dir, cat, params := newFixture(t)
	capture := filepath.Join(dir, "executed.sql")
	psql := writePsql(t, dir, `
for a in "$@"; do
  case "$a" in
    --file=*) cp "${a#--file=}" `+capture+` ;;
  esac
done
echo 'NOTICE:  table "widgets" does not exist, skipping' >&2
echo 'WARNING: no privileges were granted' >&2
exit 0
`)

	drainer := &fakeDrainer{}
	exec := New(cat, drainer, psql, time.Minute, false, logger.NewNullLogger())

	res, err := exec.Restore(context.Background(), params, backupName)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}

	if exec.Phase() != PhaseComplete {
		t.Errorf("phase = %s, expected COMPLETE", exec.Phase())
	}
	if !drainer.called {
		t.Error("drainer was not invoked")
	}
	if res.Warnings != 2 {
		t.Errorf("Warnings = %d, expected 2", res.Warnings)
	}
	if res.SoftSuccess {
		t.Error("clean exit should not be marked soft success")
	}

	executed, err := os.ReadFile(capture)
	if err != nil {
		t.Fatalf("stub did not receive a SQL file: %v", err)
	}
	if bytes.Contains(executed, []byte("SET transaction_timeout")) {
		t.Error("version-specific directive reached the restore tool")
	}
	if bytes.Contains(executed, []byte(`\restrict`)) {
		t.Error("provider meta-command reached the restore tool")
	}
	if !bytes.Contains(executed, []byte("CREATE TABLE widgets")) {
		t.Error("real SQL was filtered out")
	}

	assertNoSanitizedLeftover(t, dir)
}

func TestRestoreBackupNotFound(t *testing.T) {
	_, cat, params := newFixture(t)
	exec := New(cat, nil, "psql", time.Minute, false, logger.NewNullLogger())

	_, err := exec.Restore(context.Background(), params, "backup_19990101_000000.sql")
	if !apperrors.IsBackupNotFound(err) {
		t.Fatalf("Restore() error = %v, expected BackupNotFound", err)
	}
	if exec.Phase() != PhaseFailed {
		t.Errorf("phase = %s, expected FAILED", exec.Phase())
	}
}

func TestRestoreRejectsTraversalNames(t *testing.T) {
	_, cat, params := newFixture(t)
	exec := New(cat, nil, "psql", time.Minute, false, logger.NewNullLogger())

	if _, err := exec.Restore(context.Background(), params, "../etc/passwd"); err == nil {
		t.Fatal("expected error for traversal name")
	}
}

func TestRestoreFatalError(t *testing.T) {
	dir, cat, params := newFixture(t)
	psql := writePsql(t, dir, `
echo 'NOTICE:  extension exists' >&2
echo 'ERROR:  relation "widgets" already exists' >&2
echo 'ERROR:  second error should not win' >&2
exit 3
`)

	exec := New(cat, &fakeDrainer{}, psql, time.Minute, false, logger.NewNullLogger())

	_, err := exec.Restore(context.Background(), params, backupName)
	if !apperrors.IsRestoreFailed(err) {
		t.Fatalf("Restore() error = %v, expected RestoreFailed", err)
	}

	var backupErr *apperrors.BackupError
	if errors.As(err, &backupErr) {
		if !strings.Contains(backupErr.Details, `relation "widgets" already exists`) {
			t.Errorf("first ERROR line not carried: %q", backupErr.Details)
		}
		if strings.Contains(backupErr.Details, "second error") {
			t.Errorf("later ERROR line overrode the first: %q", backupErr.Details)
		}
	}

	assertNoSanitizedLeftover(t, dir)
}

func TestRestoreErrorLinesWithCleanExitTolerated(t *testing.T) {
	dir, cat, params := newFixture(t)
	psql := writePsql(t, dir, `
echo 'ERROR:  relation "widgets" already exists' >&2
echo 'NOTICE:  extension exists' >&2
exit 0
`)

	exec := New(cat, &fakeDrainer{}, psql, time.Minute, false, logger.NewNullLogger())

	res, err := exec.Restore(context.Background(), params, backupName)
	if err != nil {
		t.Fatalf("Restore() error = %v, clean exit must succeed despite ERROR lines", err)
	}
	if res.SoftSuccess {
		t.Error("clean exit should not be marked soft success")
	}
	if exec.Phase() != PhaseComplete {
		t.Errorf("phase = %s, expected COMPLETE", exec.Phase())
	}

	assertNoSanitizedLeftover(t, dir)
}

func TestRestoreSoftSuccess(t *testing.T) {
	dir, cat, params := newFixture(t)
	psql := writePsql(t, dir, `
echo 'WARNING: skipped unsupported statement' >&2
exit 2
`)

	exec := New(cat, &fakeDrainer{}, psql, time.Minute, false, logger.NewNullLogger())

	res, err := exec.Restore(context.Background(), params, backupName)
	if err != nil {
		t.Fatalf("Restore() error = %v, expected soft success", err)
	}
	if !res.SoftSuccess {
		t.Error("nonzero exit without ERROR should be a soft success")
	}
	if exec.Phase() != PhaseComplete {
		t.Errorf("phase = %s, expected COMPLETE", exec.Phase())
	}

	assertNoSanitizedLeftover(t, dir)
}

func TestRestoreStrictModeRejectsNonzeroExit(t *testing.T) {
	dir, cat, params := newFixture(t)
	psql := writePsql(t, dir, `
echo 'WARNING: skipped unsupported statement' >&2
exit 2
`)

	exec := New(cat, &fakeDrainer{}, psql, time.Minute, true, logger.NewNullLogger())

	_, err := exec.Restore(context.Background(), params, backupName)
	if !apperrors.IsRestoreFailed(err) {
		t.Fatalf("Restore() error = %v, expected RestoreFailed in strict mode", err)
	}

	assertNoSanitizedLeftover(t, dir)
}

func TestRestoreTimeout(t *testing.T) {
	dir, cat, params := newFixture(t)
	psql := writePsql(t, dir, `sleep 30`)

	exec := New(cat, &fakeDrainer{}, psql, 200*time.Millisecond, false, logger.NewNullLogger())

	start := time.Now()
	_, err := exec.Restore(context.Background(), params, backupName)
	if !apperrors.IsRestoreTimeout(err) {
		t.Fatalf("Restore() error = %v, expected RestoreTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("timeout took %s, process group not killed promptly", elapsed)
	}

	assertNoSanitizedLeftover(t, dir)
}

func TestRestoreDrainFailureIsTolerated(t *testing.T) {
	dir, cat, params := newFixture(t)
	psql := writePsql(t, dir, `exit 0`)

	drainer := &fakeDrainer{err: errors.New("permission denied")}
	exec := New(cat, drainer, psql, time.Minute, false, logger.NewNullLogger())

	if _, err := exec.Restore(context.Background(), params, backupName); err != nil {
		t.Fatalf("drain failure must not abort the restore: %v", err)
	}

	assertNoSanitizedLeftover(t, dir)
}

func TestRestoreSQLiteSwapsFile(t *testing.T) {
	dir := t.TempDir()
	cat := catalog.New(dir, logger.NewNullLogger())

	backup := []byte("SQLite format 3\x00snapshot")
	if err := os.WriteFile(filepath.Join(dir, backupName), backup, 0o600); err != nil {
		t.Fatal(err)
	}

	live := filepath.Join(dir, "app.db")
	if err := os.WriteFile(live, []byte("current contents"), 0o600); err != nil {
		t.Fatal(err)
	}
	params, err := dburl.Parse("sqlite:///" + live)
	if err != nil {
		t.Fatal(err)
	}

	exec := New(cat, nil, "psql", time.Minute, false, logger.NewNullLogger())
	if _, err := exec.Restore(context.Background(), params, backupName); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}

	got, err := os.ReadFile(live)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, backup) {
		t.Error("live database does not match the backup")
	}
}
