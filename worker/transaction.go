// Package worker implements the reentrant transaction and the Worker
// CRUD surface of spec §3.3/§4.5/§5, grounded on the original
// STStorageWorker.cc/STStorageTransaction.cc and, for the transaction
// wrapping style (begin once, nest via counter, roll back on first
// error), on the teacher's adapter.RunDDLs/RunTrans helpers
// (github.com/k0kubun/sqldef adapter/database.go).
package worker

import (
	"context"
	"database/sql"

	"github.com/stelladb/stellator/driver"
	"github.com/stelladb/stellator/procctx"
	"github.com/stelladb/stellator/scheme"
	"github.com/stelladb/stellator/sdberr"
	"github.com/stelladb/stellator/value"
)

// Transaction is the reentrant stack of spec §3.3/§5: nested Begin/Commit/
// Rollback calls within one request only adjust depth; only the outermost
// frame talks to the backend. A scratch map carries per-request state
// (BindUserID stores the acting user id there), and an
// async task runner (procctx.Runner) accumulates work deferred to after
// commit (spec §4.10 ScheduleAsyncTask).
type Transaction struct {
	adapter *driver.Adapter
	role    scheme.Role

	depth  int
	sqlTx  *sql.Tx
	sticky bool

	scratch map[string]value.Value
	async   *procctx.Runner
}

// NewTransaction returns a Transaction bound to adapter, not yet begun.
func NewTransaction(adapter *driver.Adapter, role scheme.Role) *Transaction {
	return &Transaction{
		adapter: adapter,
		role:    role,
		scratch: make(map[string]value.Value),
		async:   procctx.NewRunner(),
	}
}

// Adapter returns the bound connection/driver pair.
func (t *Transaction) Adapter() *driver.Adapter { return t.adapter }

// Role returns the access role this transaction acts under.
func (t *Transaction) Role() scheme.Role { return t.role }

// Depth reports the current nesting depth (0 means not begun).
func (t *Transaction) Depth() int { return t.depth }

// Aborted reports whether a prior backend error has made this
// transaction sticky-rolled-back (spec §5/§7): once set, every subsequent
// Worker call on this transaction short-circuits without emitting SQL.
func (t *Transaction) Aborted() bool { return t.sticky }

// Scratch returns the per-transaction scratch map itself, for hook
// bookkeeping.
func (t *Transaction) Scratch() map[string]value.Value { return t.scratch }

// Async returns the deferred-task runner bound to this transaction.
func (t *Transaction) Async() *procctx.Runner { return t.async }

// BindUserID records the acting user id in the transaction scratch state
// (spec §4.5 access-role predicates need "the acting user"), typically
// called once at request entry with procctx.UserID(ctx).
func (t *Transaction) BindUserID(id int64) { t.scratch["__userID"] = value.Int(id) }

// Begin opens (or, if already open, just counts) a nested transaction
// frame. Only the outermost call issues BEGIN against the backend (spec
// §5 "Begin/Commit/Rollback on a non-outermost frame only adjust the
// stack counter").
func (t *Transaction) Begin(ctx context.Context) error {
	if t.sticky {
		return sdberr.New(sdberr.KindTransactionAborted, "transaction %s already sticky-rolled-back", t.adapter.Driver.DialectName())
	}
	if t.depth == 0 {
		tx, err := t.adapter.DB.BeginTx(ctx, nil)
		if err != nil {
			return t.recordBackendError(ctx, err)
		}
		t.sqlTx = tx
		recordTxDepth(ctx, 1)
	}
	t.depth++
	return nil
}

// Commit closes one nesting frame. The outermost Commit actually commits
// against the backend and, once that succeeds, drains scheduled async
// tasks (spec §4.10: tasks run once the owning transaction commits).
func (t *Transaction) Commit(ctx context.Context) error {
	if t.depth == 0 {
		return sdberr.New(sdberr.KindBug, "Commit called on a transaction that was never begun")
	}
	t.depth--
	if t.depth > 0 {
		return nil
	}
	if t.sticky {
		// The sticky rollback already happened inline with the error
		// that caused it; nothing left to commit.
		return sdberr.New(sdberr.KindTransactionAborted, "cannot commit a sticky-rolled-back transaction")
	}
	if err := t.sqlTx.Commit(); err != nil {
		return t.recordBackendError(ctx, err)
	}
	recordTxDepth(ctx, -1)
	return t.async.Drain(ctx)
}

// Rollback unwinds one nesting frame and marks the transaction sticky so
// every call above it in the stack also sees the abort. The outermost
// Rollback issues ROLLBACK against the backend.
func (t *Transaction) Rollback(ctx context.Context) error {
	if t.depth == 0 {
		return nil
	}
	t.sticky = true
	t.depth--
	if t.depth > 0 {
		return nil
	}
	if t.sqlTx == nil {
		return nil
	}
	recordTxDepth(ctx, -1)
	err := t.sqlTx.Rollback()
	if err != nil && err != sql.ErrTxDone {
		return sdberr.Wrap(sdberr.KindBackendUnavailable, err, "rollback failed")
	}
	return nil
}

// recordBackendError translates a backend error via the bound driver,
// marks the transaction sticky (spec §5/§7: "the first backend error...
// sets Transaction.sticky = true"), best-effort rolls back the open
// sql.Tx, and returns the structured error for the caller.
func (t *Transaction) recordBackendError(ctx context.Context, err error) error {
	t.sticky = true
	diag := t.adapter.Driver.Translate(err)
	if t.sqlTx != nil {
		_ = t.sqlTx.Rollback()
	}
	kind := sdberr.KindBackendUnavailable
	switch {
	case diag.StatusName == "unique_violation" || diag.StatusName == "foreign_key_violation" || diag.StatusName == "check_violation":
		kind = sdberr.KindConstraintViolation
	}
	return sdberr.Wrap(kind, err, "%s", diag.Description).WithInfo(sdberr.Info{
		Code:        diag.Code,
		Status:      diag.StatusName,
		Description: diag.Description,
		FailedQuery: diag.FailedQuery,
	})
}

// checkAborted is the short-circuit guard every Worker entrypoint opens
// with (spec §5/§7: "subsequent Worker calls short-circuit to
// sdberr.TransactionAborted without emitting SQL").
func (t *Transaction) checkAborted() error {
	if t.sticky {
		return sdberr.Sentinel(sdberr.KindTransactionAborted)
	}
	return nil
}

// Exec runs a write statement against the outermost sql.Tx, recording a
// sticky rollback on failure.
func (t *Transaction) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if err := t.checkAborted(); err != nil {
		return nil, err
	}
	res, err := t.sqlTx.ExecContext(ctx, t.adapter.Driver.Rebind(query), args...)
	if err != nil {
		return nil, t.recordBackendError(ctx, err)
	}
	return res, nil
}

// Query runs a read statement against the outermost sql.Tx, recording a
// sticky rollback on failure.
func (t *Transaction) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if err := t.checkAborted(); err != nil {
		return nil, err
	}
	rows, err := t.sqlTx.QueryContext(ctx, t.adapter.Driver.Rebind(query), args...)
	if err != nil {
		return nil, t.recordBackendError(ctx, err)
	}
	return rows, nil
}

// QueryRow runs a single-row read statement against the outermost sql.Tx.
func (t *Transaction) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return t.sqlTx.QueryRowContext(ctx, t.adapter.Driver.Rebind(query), args...)
}
