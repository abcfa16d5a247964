// Package pgdriver implements the PostgreSQL backend of the driver
// abstraction (spec §4.1), grounded on the teacher's
// adapter/postgres.NewDatabase (github.com/k0kubun/sqldef) DSN-building
// and sql.Open("postgres", ...) usage, swapped from the deprecated
// lib/pq-via-pg_dump dump path to plain database/sql query execution
// since this package serves live CRUD traffic, not a one-shot DDL dump.
package pgdriver

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/stelladb/stellator/driver"
)

// Driver implements driver.Driver for PostgreSQL via github.com/lib/pq.
type Driver struct{}

func New() driver.Driver { return &Driver{} }

func (d *Driver) DialectName() string { return "postgres" }

func (d *Driver) Connect(ctx context.Context, params driver.Params) (*sql.DB, error) {
	dsn := buildDSN(params)
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func buildDSN(p driver.Params) string {
	var b strings.Builder
	write := func(k, v string) {
		if v == "" {
			return
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s='%s'", k, strings.ReplaceAll(v, "'", `\'`))
	}
	write("host", p["host"])
	write("port", p["port"])
	write("dbname", p["dbname"])
	write("user", p["user"])
	write("password", p["password"])
	if mode, ok := p["sslmode"]; ok {
		write("sslmode", mode)
	}
	return b.String()
}

var placeholderRe = regexp.MustCompile(`\?(\d+)`)

// Rebind rewrites builder-numbered "?n" placeholders to PostgreSQL's "$n".
func (d *Driver) Rebind(sqlText string) string {
	return placeholderRe.ReplaceAllStringFunc(sqlText, func(m string) string {
		n := placeholderRe.FindStringSubmatch(m)[1]
		return "$" + n
	})
}

func (d *Driver) SupportsNotifications() bool { return true }

func (d *Driver) Translate(err error) driver.Diagnostics {
	if err == nil {
		return driver.Diagnostics{}
	}
	if pqErr, ok := err.(*pq.Error); ok {
		code, _ := strconv.ParseInt(string(pqErr.Code), 10, 32)
		return driver.Diagnostics{
			Code:        int32(code),
			StatusName:  string(pqErr.Code.Name()),
			Description: pqErr.Message,
		}
	}
	return driver.Diagnostics{Description: err.Error()}
}

// NewListener returns a pq.Listener for dsn, used by aux.Broadcaster to
// implement spec §4.1's optional listen(channel)/poll_notifications().
func NewListener(dsn string) *pq.Listener {
	return pq.NewListener(dsn, 10*time.Second, time.Minute, nil)
}
