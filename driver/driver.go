// Package driver implements the opaque handle/connection/result/statement
// abstraction of spec §4.1, grounded on the teacher's adapter package
// (github.com/k0kubun/sqldef adapter/database.go, adapter/postgres,
// adapter/sqlite3): both wrap Go's database/sql with one concrete
// per-backend implementation selected from a connection-string prefix.
package driver

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Kind selects the backend by the scheme-name prefix of spec §4.1/§6:
// "pgsql:" or "sqlite:", or a registered name.
type Kind string

const (
	KindPostgres Kind = "pgsql"
	KindSQLite   Kind = "sqlite"
)

// Params is the free-form connection parameter bag parsed from a
// connection string of the shape "kind:key=val;key=val" (spec §6).
type Params map[string]string

// ParseDSN splits a spec §6 connection string into its Kind and Params,
// e.g. "pgsql:host=db;dbname=app;user=app" or
// "sqlite:dbname=/path;mode=rwc;journal=wal;cache=shared".
func ParseDSN(dsn string) (Kind, Params, error) {
	idx := strings.IndexByte(dsn, ':')
	if idx < 0 {
		return "", nil, fmt.Errorf("driver: malformed DSN %q: missing kind prefix", dsn)
	}
	kind := Kind(dsn[:idx])
	rest := dsn[idx+1:]
	params := Params{}
	if rest != "" {
		for _, kv := range strings.Split(rest, ";") {
			if kv == "" {
				continue
			}
			eq := strings.IndexByte(kv, '=')
			if eq < 0 {
				return "", nil, fmt.Errorf("driver: malformed DSN parameter %q", kv)
			}
			params[kv[:eq]] = kv[eq+1:]
		}
	}
	return kind, params, nil
}

// Diagnostics is the structured backend error info of spec §4.1/§6.
type Diagnostics struct {
	Code        int32
	StatusName  string
	Description string
	FailedQuery string
}

// Driver is the opaque-handle abstraction of spec §4.1. Each backend
// (pgdriver, sqlitedriver) implements it over database/sql.
type Driver interface {
	// Connect opens a *sql.DB-backed handle for params. A nil, error
	// return signals BackendUnavailable at the call site (spec §4.1).
	Connect(ctx context.Context, params Params) (*sql.DB, error)

	// Rebind rewrites a builder-numbered "?n" placeholder string into the
	// backend's native parameter style ("$n" for Postgres, "?n"/"?" for
	// SQLite — see qbuilder.Dialect.Placeholder for the inverse mapping
	// used when emitting fresh SQL text directly).
	Rebind(sql string) string

	// Translate maps a backend-native error into Diagnostics (spec §4.1
	// error translation).
	Translate(err error) Diagnostics

	// SupportsNotifications reports whether LISTEN/NOTIFY-style
	// broadcast delivery is available (spec §4.1; false for SQLite).
	SupportsNotifications() bool

	// Dialect identifies which qbuilder.Dialect this backend speaks.
	DialectName() string
}

// Registry maps a Kind to a constructor, letting callers register
// backends by name (spec §4.1 "open(kind, params) ... or by a registered
// name").
type Registry struct {
	drivers map[Kind]func() Driver
}

func NewRegistry() *Registry {
	return &Registry{drivers: make(map[Kind]func() Driver)}
}

func (r *Registry) Register(kind Kind, ctor func() Driver) {
	r.drivers[kind] = ctor
}

// Open selects a backend by the DSN's kind prefix and returns a fresh
// Driver instance (spec §4.1 open(kind, params)).
func (r *Registry) Open(dsn string) (Driver, Params, error) {
	kind, params, err := ParseDSN(dsn)
	if err != nil {
		return nil, nil, err
	}
	ctor, ok := r.drivers[kind]
	if !ok {
		return nil, nil, fmt.Errorf("driver: unregistered backend kind %q", kind)
	}
	return ctor(), params, nil
}
