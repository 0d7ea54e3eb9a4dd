package catalog

import (
	"testing"
	"time"

	"github.com/spf13/afero"

	apperrors "dashbackup/internal/errors"
	"dashbackup/internal/logger"
)

func newMemCatalog(t *testing.T) (*Catalog, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	cat := NewWithFs(fs, "/backups", logger.NewNullLogger())
	if err := cat.EnsureWritable(); err != nil {
		t.Fatalf("EnsureWritable() error = %v", err)
	}
	return cat, fs
}

func writeBackup(t *testing.T, fs afero.Fs, name string, mtime time.Time) {
	t.Helper()
	path := "/backups/" + name
	if err := afero.WriteFile(fs, path, []byte("-- dump\n"), 0o600); err != nil {
		t.Fatalf("WriteFile(%s) error = %v", name, err)
	}
	if err := fs.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("Chtimes(%s) error = %v", name, err)
	}
}

func TestListSortsNewestFirst(t *testing.T) {
	cat, fs := newMemCatalog(t)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	writeBackup(t, fs, "backup_20260801_120000.sql", base)
	writeBackup(t, fs, "backup_20260803_120000.sql", base.AddDate(0, 0, 2))
	writeBackup(t, fs, "backup_20260802_120000.sql", base.AddDate(0, 0, 1))

	records, err := cat.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	if len(records) != 3 {
		t.Fatalf("List() returned %d records, expected 3", len(records))
	}

	expected := []string{
		"backup_20260803_120000.sql",
		"backup_20260802_120000.sql",
		"backup_20260801_120000.sql",
	}
	for i, name := range expected {
		if records[i].Filename != name {
			t.Errorf("records[%d] = %s, expected %s", i, records[i].Filename, name)
		}
	}
}

func TestListFiltersNonBackupFiles(t *testing.T) {
	cat, fs := newMemCatalog(t)
	now := time.Now()

	writeBackup(t, fs, "backup_20260801_120000.sql", now)
	writeBackup(t, fs, "backup_20260802_120000.sql.gz", now)
	writeBackup(t, fs, "backup_20260801_120000.sql.sanitized", now)
	writeBackup(t, fs, "notes.txt", now)
	writeBackup(t, fs, ".probe_write", now)

	records, err := cat.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("List() returned %d records, expected 2: %v", len(records), records)
	}
	for _, r := range records {
		if !IsBackupFile(r.Filename) {
			t.Errorf("non-backup file listed: %s", r.Filename)
		}
	}
}

func TestListMissingDirectory(t *testing.T) {
	fs := afero.NewMemMapFs()
	cat := NewWithFs(fs, "/nonexistent", logger.NewNullLogger())

	records, err := cat.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(records) != 0 {
		t.Errorf("List() on missing dir = %d records", len(records))
	}
}

func TestDeleteMissingIsObservable(t *testing.T) {
	cat, _ := newMemCatalog(t)

	err := cat.Delete("backup_20260101_000000.sql")
	if !apperrors.IsBackupNotFound(err) {
		t.Errorf("Delete() on missing file = %v, expected BackupNotFound", err)
	}
}

func TestDeleteRemovesFile(t *testing.T) {
	cat, fs := newMemCatalog(t)
	writeBackup(t, fs, "backup_20260801_120000.sql", time.Now())

	if err := cat.Delete("backup_20260801_120000.sql"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if cat.Exists("backup_20260801_120000.sql") {
		t.Error("file still exists after delete")
	}
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"backup_20260801_120000.sql", false},
		{"backup_20260801_120000.sql.gz", false},
		{"", true},
		{"../etc/passwd", true},
		{"sub/dir.sql", true},
		{`win\path.sql`, true},
		{"..", true},
	}

	for _, tc := range tests {
		err := ValidateName(tc.name)
		if (err != nil) != tc.wantErr {
			t.Errorf("ValidateName(%q) error = %v, wantErr %v", tc.name, err, tc.wantErr)
		}
	}
}

func TestIsBackupFile(t *testing.T) {
	tests := []struct {
		name     string
		expected bool
	}{
		{"backup_20260801_120000.sql", true},
		{"backup_20260801_120000.sql.gz", true},
		{"backup_20260801_120000.sql.sanitized", false},
		{"backup_20260801_120000.sql.gz.sanitized", false},
		{"readme.md", false},
		{".probe_write", false},
	}

	for _, tc := range tests {
		if got := IsBackupFile(tc.name); got != tc.expected {
			t.Errorf("IsBackupFile(%q) = %v, expected %v", tc.name, got, tc.expected)
		}
	}
}

func TestHumanSize(t *testing.T) {
	r := Record{Filename: "backup.sql", SizeBytes: 2048}
	if r.HumanSize() == "" {
		t.Error("HumanSize should not be empty")
	}
}

func TestEnsureWritableCreatesDirectory(t *testing.T) {
	fs := afero.NewMemMapFs()
	cat := NewWithFs(fs, "/deep/backup/root", logger.NewNullLogger())

	if err := cat.EnsureWritable(); err != nil {
		t.Fatalf("EnsureWritable() error = %v", err)
	}

	ok, _ := afero.DirExists(fs, "/deep/backup/root")
	if !ok {
		t.Error("backup directory was not created")
	}

	// Probe file must not linger
	if exists, _ := afero.Exists(fs, "/deep/backup/root/.probe_write"); exists {
		t.Error("probe file left behind")
	}
}
