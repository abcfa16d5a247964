// Package sqlitedriver implements the SQLite backend of the driver
// abstraction (spec §4.1), grounded on the teacher's
// adapter/sqlite3.NewDatabase (github.com/k0kubun/sqldef):
// sql.Open("sqlite3", config.DbName) over github.com/mattn/go-sqlite3.
package sqlitedriver

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/stelladb/stellator/driver"
)

// Driver implements driver.Driver for SQLite via github.com/mattn/go-sqlite3.
type Driver struct{}

func New() driver.Driver { return &Driver{} }

func (d *Driver) DialectName() string { return "sqlite" }

func (d *Driver) Connect(ctx context.Context, params driver.Params) (*sql.DB, error) {
	dsn := buildDSN(params)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	// SQLite connections are not safe for concurrent writers; the engine
	// already serializes per outermost transaction (spec §5), so cap the
	// pool to one connection unless the caller asked for shared-cache
	// threading="serialized" (spec §6 DSN grammar).
	if params["threading"] != "serialized" {
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

func buildDSN(p driver.Params) string {
	path := p["dbname"]
	var opts []string
	if mode, ok := p["mode"]; ok {
		opts = append(opts, "mode="+mode)
	}
	if cache, ok := p["cache"]; ok {
		opts = append(opts, "cache="+cache)
	}
	if journal, ok := p["journal"]; ok {
		opts = append(opts, "_journal_mode="+strings.ToUpper(journal))
	}
	if len(opts) == 0 {
		return path
	}
	return fmt.Sprintf("%s?%s", path, strings.Join(opts, "&"))
}

var placeholderRe = regexp.MustCompile(`\?\d+`)

// Rebind rewrites builder-numbered "?n" placeholders to bare "?" for the
// go-sqlite3 driver, which binds purely positionally.
func (d *Driver) Rebind(sqlText string) string {
	return placeholderRe.ReplaceAllString(sqlText, "?")
}

func (d *Driver) SupportsNotifications() bool { return false }

func (d *Driver) Translate(err error) driver.Diagnostics {
	if err == nil {
		return driver.Diagnostics{}
	}
	if sqliteErr, ok := err.(sqlite3.Error); ok {
		return driver.Diagnostics{
			Code:        int32(sqliteErr.Code),
			StatusName:  sqliteErr.Code.Error(),
			Description: sqliteErr.Error(),
		}
	}
	return driver.Diagnostics{Description: err.Error()}
}
