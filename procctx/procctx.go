// Package procctx implements the process-context registry of spec §4.10:
// the current adapter, user and request metadata for an in-flight
// operation, plus async-task scheduling hooks. Grounded on the original
// STStorage.h internals:: namespace (getAdapterFromContext,
// getUserIdFromContext, getRequestData, scheduleAyncDbTask), mapped onto
// Go's idiomatic context.Context value-passing since Go has no
// thread-local/task-local storage primitive (this task's "context.Context
// on blocking operations" rule).
package procctx

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/stelladb/stellator/driver"
)

type ctxKey int

const (
	keyAdapter ctxKey = iota
	keyUserID
	keyRequest
	keyTxHolder
)

// RequestData mirrors the original internals::RequestData: address,
// hostname, and URI of the in-flight request, when one exists.
type RequestData struct {
	Exists   bool
	Address  string
	Hostname string
	URI      string
}

// WithAdapter binds the current Adapter into ctx.
func WithAdapter(ctx context.Context, a *driver.Adapter) context.Context {
	return context.WithValue(ctx, keyAdapter, a)
}

// Adapter returns the Adapter bound to ctx, or nil if none.
func Adapter(ctx context.Context) *driver.Adapter {
	a, _ := ctx.Value(keyAdapter).(*driver.Adapter)
	return a
}

// WithUserID binds the acting user id into ctx.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, keyUserID, userID)
}

// UserID returns the acting user id bound to ctx, or (0, false).
func UserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(keyUserID).(int64)
	return id, ok
}

// WithRequest binds request metadata into ctx.
func WithRequest(ctx context.Context, req RequestData) context.Context {
	return context.WithValue(ctx, keyRequest, req)
}

// Request returns the request metadata bound to ctx.
func Request(ctx context.Context) RequestData {
	req, ok := ctx.Value(keyRequest).(RequestData)
	if !ok {
		return RequestData{}
	}
	return req
}

// NewRequestID mints a correlation id for a new request, used to tag log
// lines and broadcast envelopes (spec §6 broadcast message format).
func NewRequestID() string { return uuid.NewString() }

// TxHolder is the retain-counted transaction slot a context carries so
// that nested AcquireTransaction calls within the same request observe
// the same instance (spec §4.10 "nested calls receive the same instance
// and a retain-counter controls end-of-transaction behaviour"). It is
// generic over the concrete transaction type (worker.Transaction) to
// avoid an import cycle between procctx and worker.
type TxHolder struct {
	mu     sync.Mutex
	tx     any
	retain int
}

// WithTxHolder installs an empty TxHolder into ctx, returning the new
// context and the holder for direct use by worker.AcquireTransaction.
func WithTxHolder(ctx context.Context) (context.Context, *TxHolder) {
	h := &TxHolder{}
	return context.WithValue(ctx, keyTxHolder, h), h
}

// TxHolderFrom returns the TxHolder bound to ctx, or nil if WithTxHolder
// was never called.
func TxHolderFrom(ctx context.Context) *TxHolder {
	h, _ := ctx.Value(keyTxHolder).(*TxHolder)
	return h
}

// Acquire returns the held transaction, creating it via newTx on first
// use, and increments the retain counter. Release decrements it; the
// caller should end the underlying transaction only once the counter
// reaches zero.
func (h *TxHolder) Acquire(newTx func() any) any {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.tx == nil {
		h.tx = newTx()
	}
	h.retain++
	return h.tx
}

// Release decrements the retain counter and reports whether it reached
// zero (i.e. whether the caller now owns ending the transaction).
func (h *TxHolder) Release() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.retain > 0 {
		h.retain--
	}
	return h.retain == 0
}
