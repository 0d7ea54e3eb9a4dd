// Package service wires the backup components into the operations the
// CLI exposes. A single mutex serializes backup, restore, and prune so
// concurrent invocations cannot interleave destructive filesystem work.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"dashbackup/internal/catalog"
	"dashbackup/internal/config"
	"dashbackup/internal/dburl"
	"dashbackup/internal/drain"
	"dashbackup/internal/dump"
	"dashbackup/internal/logger"
	"dashbackup/internal/restore"
	"dashbackup/internal/retention"
)

// Service exposes the backup, restore, list, delete, and cleanup
// operations over one configured database and backup directory
type Service struct {
	mu sync.Mutex

	cfg    *config.Config
	log    logger.Logger
	params *dburl.Params
	cat    *catalog.Catalog
	dumper *dump.Executor

	drainer restore.Drainer
	now     func() time.Time
}

// New resolves the connection string and prepares the backup directory.
// An unwritable directory is surfaced at startup as a warning rather
// than at the first failed backup; the service still starts so listing
// and restore keep working.
func New(cfg *config.Config, log logger.Logger) (*Service, error) {
	params, err := dburl.Parse(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	cat := catalog.New(cfg.BackupDir, log)
	if err := cat.EnsureWritable(); err != nil {
		log.Warn("Backup directory is not writable", "dir", cfg.BackupDir, "error", err)
	}

	s := &Service{
		cfg:    cfg,
		log:    log,
		params: params,
		cat:    cat,
		dumper: dump.New(cfg.PGDumpPath, cfg.Compress, int(cfg.MinFreeMB), log),
		now:    time.Now,
	}
	if params.Kind() == dburl.KindPostgres {
		s.drainer = drain.New(log)
	}
	return s, nil
}

// Catalog returns the underlying backup catalog
func (s *Service) Catalog() *catalog.Catalog {
	return s.cat
}

// Database returns the resolved, credentials-free connection parameters
func (s *Service) Database() *dburl.Params {
	return s.params
}

// CreateBackup dumps the database into a timestamped file and then
// applies the retention policy. A retention failure after a successful
// dump is logged, not returned: the backup itself succeeded.
func (s *Service) CreateBackup(ctx context.Context) (*dump.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := s.nextFilename()
	path, err := s.cat.Path(name)
	if err != nil {
		return nil, err
	}

	res, err := s.dumper.CreateDump(ctx, s.params, path)
	if err != nil {
		return nil, err
	}

	if _, err := retention.Apply(s.cat, s.policy(), false, s.log); err != nil {
		s.log.Warn("Retention pruning had failures", "error", err)
	}

	return res, nil
}

// ListBackups returns all backups, newest first
func (s *Service) ListBackups() ([]catalog.Record, error) {
	return s.cat.List()
}

// RestoreBackup replays the named backup into the database
func (s *Service) RestoreBackup(ctx context.Context, filename string) (*restore.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exec := restore.New(s.cat, s.drainer, s.cfg.PSQLPath,
		s.cfg.RestoreTimeout, s.cfg.StrictRestore, s.log)
	return exec.Restore(ctx, s.params, filename)
}

// DeleteBackup removes a single backup by name
func (s *Service) DeleteBackup(filename string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cat.Delete(filename)
}

// Cleanup applies the retention policy on demand
func (s *Service) Cleanup(dryRun bool) (*retention.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return retention.Apply(s.cat, s.policy(), dryRun, s.log)
}

func (s *Service) policy() retention.Policy {
	return retention.Policy{
		Days:   s.cfg.RetentionDays,
		Weeks:  s.cfg.RetentionWeeks,
		Months: s.cfg.RetentionMonths,
	}
}

// nextFilename builds a timestamped backup name. When a second backup
// lands within the same second, a numeric suffix keeps the names unique
// instead of overwriting the earlier file.
func (s *Service) nextFilename() string {
	ext := ".sql"
	if s.cfg.Compress {
		ext = ".sql.gz"
	}

	base := "backup_" + s.now().Format("20060102_150405")
	name := base + ext
	for n := 1; s.cat.Exists(name); n++ {
		name = fmt.Sprintf("%s_%d%s", base, n, ext)
	}
	return name
}
