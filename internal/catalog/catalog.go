// Package catalog enumerates the backup directory and exposes per-file
// metadata. The catalog is stateless: every listing is recomputed from
// the filesystem, so it can run concurrently with an in-flight backup.
package catalog

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"

	"dashbackup/internal/errors"
	"dashbackup/internal/logger"
)

// SanitizedSuffix marks the transient restore artifact. Files carrying it
// must never appear in catalog listings.
const SanitizedSuffix = ".sanitized"

// probeFile is the temporary name used by the startup writability check
const probeFile = ".probe_write"

// Record describes a single backup file
type Record struct {
	Filename  string    `json:"filename"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// HumanSize returns the size formatted for display
func (r Record) HumanSize() string {
	return humanize.Bytes(uint64(r.SizeBytes))
}

// Catalog manages the flat backup directory
type Catalog struct {
	fs  afero.Fs
	dir string
	log logger.Logger
}

// New creates a catalog over the OS filesystem
func New(dir string, log logger.Logger) *Catalog {
	return NewWithFs(afero.NewOsFs(), dir, log)
}

// NewWithFs creates a catalog over an arbitrary filesystem (tests use a
// memory-backed one)
func NewWithFs(fs afero.Fs, dir string, log logger.Logger) *Catalog {
	return &Catalog{fs: fs, dir: dir, log: log}
}

// Dir returns the backup root directory
func (c *Catalog) Dir() string {
	return c.dir
}

// Path returns the full path of a named backup after validating the name
func (c *Catalog) Path(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	return filepath.Join(c.dir, name), nil
}

// Exists reports whether a named backup file is present
func (c *Catalog) Exists(name string) bool {
	path, err := c.Path(name)
	if err != nil {
		return false
	}
	ok, err := afero.Exists(c.fs, path)
	return err == nil && ok
}

// List scans the backup directory and returns records sorted newest-first.
// Unreadable entries are skipped; a missing directory yields an empty list.
func (c *Catalog) List() ([]Record, error) {
	infos, err := afero.ReadDir(c.fs, c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Record{}, nil
		}
		return nil, err
	}

	records := make([]Record, 0, len(infos))
	for _, info := range infos {
		if info == nil || info.IsDir() {
			continue
		}
		if !IsBackupFile(info.Name()) {
			continue
		}
		records = append(records, Record{
			Filename:  info.Name(),
			SizeBytes: info.Size(),
			CreatedAt: info.ModTime(),
		})
	}

	sort.Slice(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.After(records[j].CreatedAt)
		}
		return records[i].Filename > records[j].Filename
	})

	return records, nil
}

// Delete removes a backup file by name. Deleting a file that does not
// exist is observable: it returns BackupNotFound rather than succeeding
// silently.
func (c *Catalog) Delete(name string) error {
	path, err := c.Path(name)
	if err != nil {
		return err
	}

	ok, err := afero.Exists(c.fs, path)
	if err != nil {
		return err
	}
	if !ok {
		return errors.BackupNotFound(name, c.dir)
	}

	if err := c.fs.Remove(path); err != nil {
		return err
	}
	c.log.Info("Deleted backup file", "file", name)
	return nil
}

// EnsureWritable creates the backup directory if needed and verifies it
// accepts writes with a probe file. Callers log (not fail) on error.
func (c *Catalog) EnsureWritable() error {
	if err := c.fs.MkdirAll(c.dir, 0o700); err != nil {
		return err
	}

	probe := filepath.Join(c.dir, probeFile)
	if err := afero.WriteFile(c.fs, probe, []byte("probe"), 0o600); err != nil {
		return err
	}
	if err := c.fs.Remove(probe); err != nil {
		return err
	}

	if records, err := c.List(); err == nil {
		c.log.Info("Backup directory ready", "dir", c.dir, "existing_backups", len(records))
	}
	return nil
}

// IsBackupFile reports whether a filename belongs in catalog listings:
// the expected dump extensions, never the transient sanitized artifact.
func IsBackupFile(name string) bool {
	if strings.HasSuffix(name, SanitizedSuffix) {
		return false
	}
	return strings.HasSuffix(name, ".sql") || strings.HasSuffix(name, ".sql.gz")
}

// ValidateName rejects names that could escape the backup directory
func ValidateName(name string) error {
	if name == "" {
		return errors.InvalidName(name, "empty name")
	}
	if strings.ContainsAny(name, "/\\") {
		return errors.InvalidName(name, "path separators are not allowed")
	}
	if name == "." || name == ".." || strings.Contains(name, "..") {
		return errors.InvalidName(name, "path traversal is not allowed")
	}
	return nil
}

