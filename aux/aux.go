// Package aux implements the auxiliary services of spec §4.8 — the
// sessions KV, the intra-cluster broadcaster, and the login/delta audit
// readers — each a thin wrapper over one of the engine-owned side tables
// of spec §3.5 (__sessions, __broadcasts, __login, __delta_{scheme}).
// Grounded on the original STSqlHandle.cc table SQL for shape, and on the
// teacher's adapter/database ad hoc SQL style (no builder/ORM for these
// fixed internal tables) for composition.
package aux

import (
	"context"
	"database/sql"

	"github.com/stelladb/stellator/driver"
	"github.com/stelladb/stellator/sdberr"
)

// conn rebinds builder-numbered "?n" placeholders to the bound driver's
// native style before delegating to *sql.DB, the same Rebind step
// worker.Transaction.Exec/Query/QueryRow apply — aux services run as
// background tasks outside any request transaction, so they talk to
// adapter.DB directly rather than through a Transaction.
type conn struct {
	a *driver.Adapter
}

func newConn(a *driver.Adapter) conn { return conn{a: a} }

func (c conn) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.a.DB.ExecContext(ctx, c.a.Driver.Rebind(query), args...)
}

func (c conn) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.a.DB.QueryContext(ctx, c.a.Driver.Rebind(query), args...)
}

func (c conn) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return c.a.DB.QueryRowContext(ctx, c.a.Driver.Rebind(query), args...)
}

func wrapErr(err error, op string) error {
	if err == nil {
		return nil
	}
	return sdberr.Wrap(sdberr.KindBackendUnavailable, err, "aux: %s", op)
}
