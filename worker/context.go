package worker

import (
	"context"

	"github.com/stelladb/stellator/driver"
	"github.com/stelladb/stellator/procctx"
	"github.com/stelladb/stellator/scheme"
)

// AcquireTransaction implements procctx.AcquireTransaction (spec §4.10):
// it returns the Transaction already bound to ctx's TxHolder, or creates
// and begins a fresh one on first use within this context tree, retain-
// counting nested acquisitions so only the outermost caller ends it.
// procctx.TxHolder is generic over `any` to avoid an import cycle (procctx
// cannot import worker); this function is the one place that narrows it
// back to the concrete *Transaction type.
func AcquireTransaction(ctx context.Context, adapter *driver.Adapter, role scheme.Role) (context.Context, *Transaction, error) {
	holder := procctx.TxHolderFrom(ctx)
	if holder == nil {
		ctx, holder = procctx.WithTxHolder(ctx)
	}
	txAny := holder.Acquire(func() any {
		return NewTransaction(adapter, role)
	})
	tx := txAny.(*Transaction)
	if tx.Depth() == 0 {
		if err := tx.Begin(ctx); err != nil {
			return ctx, nil, err
		}
	} else {
		_ = tx.Begin(ctx) // nested: only bumps the depth counter
	}
	return ctx, tx, nil
}

// ReleaseTransaction implements the matching release half of
// AcquireTransaction: it decrements the retain/depth counters and, once
// both reach zero, commits (or, if the transaction went sticky, reports
// the abort) — the caller that opened the outermost frame is the one
// whose Release call actually talks to the backend.
func ReleaseTransaction(ctx context.Context, tx *Transaction, failed bool) error {
	if h := procctx.TxHolderFrom(ctx); h != nil {
		h.Release()
	}
	if failed {
		return tx.Rollback(ctx)
	}
	return tx.Commit(ctx)
}

// ScheduleAsyncTask implements procctx.ScheduleAsyncTask (spec §4.10):
// setup receives a fresh TaskContext and must return a closure taking the
// concrete *Transaction, queued for execution once the owning outermost
// transaction's Commit() returns successfully. The adaptation from
// procctx.Runner's context.Context-shaped closures to Transaction-shaped
// ones happens here, the one place both packages are in scope.
func ScheduleAsyncTask(ctx context.Context, tx *Transaction, setup func(tc *procctx.TaskContext) func(t *Transaction) error) {
	tx.Async().Schedule(func(tc *procctx.TaskContext) func(context.Context) error {
		run := setup(tc)
		return func(taskCtx context.Context) error {
			child := NewTransaction(tx.Adapter(), tx.Role())
			if err := child.Begin(taskCtx); err != nil {
				return err
			}
			if err := run(child); err != nil {
				_ = child.Rollback(taskCtx)
				return err
			}
			return child.Commit(taskCtx)
		}
	})
}
