// Package drain terminates other active sessions on the target database
// immediately before a destructive restore, so the dump's DROP/CREATE
// statements are not blocked by existing locks.
//
// Draining is strictly best-effort: some deployments lack the privilege
// to terminate sessions, and a restore may still succeed without it.
// Callers log failures as warnings and continue.
package drain

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver

	"dashbackup/internal/dburl"
	"dashbackup/internal/logger"
)

// terminateQuery kills every other backend attached to the database.
// The database name is bound as a parameter, never interpolated.
const terminateQuery = `SELECT pg_terminate_backend(pid) FROM pg_stat_activity WHERE datname = $1 AND pid <> pg_backend_pid()`

// OpenFunc opens a database handle; overridable in tests
type OpenFunc func(driverName, dsn string) (*sql.DB, error)

// Terminator drains connections from a PostgreSQL database
type Terminator struct {
	log  logger.Logger
	open OpenFunc
}

// New creates a Terminator using the pgx stdlib driver
func New(log logger.Logger) *Terminator {
	return &Terminator{log: log, open: sql.Open}
}

// NewWithOpen creates a Terminator with a custom opener (for tests)
func NewWithOpen(log logger.Logger, open OpenFunc) *Terminator {
	return &Terminator{log: log, open: open}
}

// TerminateOthers connects to the target database and terminates all other
// active sessions on it. The initial connection is retried briefly with
// exponential backoff; the terminate statement itself runs once.
func (t *Terminator) TerminateOthers(ctx context.Context, params *dburl.Params) error {
	// The password rides in the connection config, not in any argv, so
	// carrying it in the DSN handed to the driver is safe here. url.URL
	// re-encodes the userinfo, so reserved characters in the password
	// survive the round trip.
	u := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", params.Host, params.Port),
		Path:   "/" + params.Database,
		User:   url.User(params.Username),
	}
	if params.Password != "" {
		u.User = url.UserPassword(params.Username, params.Password)
	}

	db, err := t.open("pgx", u.String())
	if err != nil {
		return fmt.Errorf("open drain connection: %w", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(1)

	policy := backoff.WithContext(newConnectBackoff(), ctx)
	if err := backoff.Retry(func() error {
		return db.PingContext(ctx)
	}, policy); err != nil {
		return fmt.Errorf("reach database for drain: %w", err)
	}

	t.log.Info("Terminating other connections", "database", params.Database)

	if _, err := db.ExecContext(ctx, terminateQuery, params.Database); err != nil {
		return fmt.Errorf("terminate connections: %w", err)
	}

	t.log.Debug("Connections terminated", "database", params.Database)
	return nil
}

// newConnectBackoff bounds the drain connection attempts: draining is
// non-essential, so give up quickly rather than stall the restore
func newConnectBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxElapsedTime = 5 * time.Second
	return b
}
