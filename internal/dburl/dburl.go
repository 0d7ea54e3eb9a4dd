// Package dburl resolves the dashboard's database connection string into
// credential-isolated parameters for the external dump/restore tools.
//
// The password is never placed in a command line: it is exposed only
// through Env(), which callers append to the child process environment.
// Everything else travels in the "clean" URL that is safe for argv and
// for logs.
package dburl

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Connection defaults matching the dashboard deployment
const (
	DefaultUser     = "homepage"
	DefaultHost     = "db"
	DefaultPort     = 5432
	DefaultDatabase = "homepage"
)

// Kind identifies the engine variant behind a connection string
type Kind int

const (
	KindPostgres Kind = iota
	KindSQLite
)

func (k Kind) String() string {
	switch k {
	case KindPostgres:
		return "postgresql"
	case KindSQLite:
		return "sqlite"
	default:
		return "unknown"
	}
}

// Params holds the structured connection parameters.
// Password is kept out of CleanURL and String.
type Params struct {
	Scheme   string
	Username string
	Password string
	Host     string
	Port     int
	Database string

	// FilePath is the absolute database file path for the embedded engine
	FilePath string
}

// Parse resolves a connection string of the form
// scheme://[user[:password]@]host[:port]/database (or sqlite:///path).
// Driver suffixes from ORM-style URLs (postgresql+asyncpg, sqlite+aiosqlite)
// are stripped. Missing components fall back to the deployment defaults.
func Parse(raw string) (*Params, error) {
	if raw == "" {
		return nil, fmt.Errorf("empty connection string")
	}

	normalized := normalizeScheme(raw)

	if strings.HasPrefix(normalized, "sqlite") {
		return parseSQLite(normalized)
	}

	u, err := url.Parse(normalized)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	p := &Params{
		Scheme:   "postgresql",
		Username: DefaultUser,
		Host:     DefaultHost,
		Port:     DefaultPort,
		Database: DefaultDatabase,
	}

	if u.User != nil {
		if name := u.User.Username(); name != "" {
			p.Username = name
		}
		// url.Parse percent-decodes userinfo, so the password is
		// already in its raw form here
		if pwd, ok := u.User.Password(); ok {
			p.Password = pwd
		}
	}
	if host := u.Hostname(); host != "" {
		p.Host = host
	}
	if portStr := u.Port(); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil {
			p.Port = port
		}
	}
	if db := strings.TrimPrefix(u.Path, "/"); db != "" {
		p.Database = db
	}

	return p, nil
}

// parseSQLite extracts the database file path from a sqlite URL.
// Relative paths are resolved against the working directory.
func parseSQLite(raw string) (*Params, error) {
	idx := strings.Index(raw, "///")
	if idx < 0 {
		return nil, fmt.Errorf("malformed sqlite URL %q", raw)
	}

	path := raw[idx+3:]
	if path == "" {
		return nil, fmt.Errorf("sqlite URL %q has no file path", raw)
	}
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve sqlite path: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	return &Params{
		Scheme:   "sqlite",
		Database: filepath.Base(path),
		FilePath: path,
	}, nil
}

// normalizeScheme strips ORM driver suffixes like +asyncpg and maps
// postgres:// to postgresql://
func normalizeScheme(raw string) string {
	idx := strings.Index(raw, "://")
	if idx < 0 {
		return raw
	}

	scheme := raw[:idx]
	if plus := strings.Index(scheme, "+"); plus >= 0 {
		scheme = scheme[:plus]
	}
	if scheme == "postgres" {
		scheme = "postgresql"
	}
	return scheme + raw[idx:]
}

// Kind returns the engine variant for these parameters
func (p *Params) Kind() Kind {
	if p.Scheme == "sqlite" {
		return KindSQLite
	}
	return KindPostgres
}

// CleanURL reconstructs a credentials-free connection URL suitable for
// command-line arguments and logging
func (p *Params) CleanURL() string {
	if p.Kind() == KindSQLite {
		return "sqlite://" + p.FilePath
	}
	return fmt.Sprintf("postgresql://%s@%s:%d/%s", p.Username, p.Host, p.Port, p.Database)
}

// String implements fmt.Stringer without leaking the password
func (p *Params) String() string {
	return p.CleanURL()
}

// Env returns the extra environment variables for a child dump/restore
// process. The password travels only here, never through argv.
func (p *Params) Env() []string {
	if p.Password == "" {
		return nil
	}
	return []string{"PGPASSWORD=" + p.Password}
}
