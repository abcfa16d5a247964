package aux

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stelladb/stellator/driver"
	"github.com/stelladb/stellator/value"
	"github.com/stelladb/stellator/worker"
)

// Broadcaster implements spec §4.8's per-transaction broadcast vector:
// Queue accumulates messages during a transaction, Flush writes them as
// one multi-row INSERT into __broadcasts(id, date, msg) at commit and
// issues a backend NOTIFY when the driver supports it (pgdriver's
// pq.Listener; SQLite has no equivalent, per driver.Driver.
// SupportsNotifications). Envelopes carry a google/uuid id for
// cross-process correlation in logs, matching the rest of the engine's
// request-id scheme (procctx.NewRequestID).
type Broadcaster struct {
	a       *driver.Adapter
	pending []value.Value
}

// NewBroadcaster binds a Broadcaster to adapter.
func NewBroadcaster(a *driver.Adapter) *Broadcaster {
	return &Broadcaster{a: a}
}

// Queue appends msg (a value.Value document; set "local": true within it
// to mark in-process-only delivery per spec §6) to the pending vector,
// stamping it with a fresh envelope id and the current time.
func (b *Broadcaster) Queue(msg value.Value) {
	envelope := value.NewDict()
	envelope.Set("id", value.String(uuid.NewString()))
	envelope.Set("date", value.Int(time.Now().UnixMicro()))
	envelope.Set("payload", msg)
	b.pending = append(b.pending, envelope)
}

// Pending reports how many messages are queued, unflushed.
func (b *Broadcaster) Pending() int { return len(b.pending) }

// Flush writes every queued message as one multi-row INSERT against tx,
// then clears the pending vector (spec §4.8 "flushed at commit as one
// multi-row INSERT"). The caller is expected to invoke Flush from a
// worker.Transaction commit hook (procctx.Runner / spec §4.10) so the
// insert participates in the same outermost transaction as the writes
// that produced the messages.
func (b *Broadcaster) Flush(ctx context.Context, tx *worker.Transaction) error {
	if len(b.pending) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString(`INSERT INTO "__broadcasts" ("date", "msg") VALUES `)
	args := make([]any, 0, len(b.pending)*2)
	for i, msg := range b.pending {
		if i > 0 {
			sb.WriteString(", ")
		}
		date, _ := msg.Get("date")
		dateInt, _ := date.AsInt()
		encoded, err := msg.MarshalJSON()
		if err != nil {
			return wrapErr(err, "broadcast flush: encode message")
		}
		fmt.Fprintf(&sb, "(?%d, ?%d)", i*2+1, i*2+2)
		args = append(args, dateInt, encoded)
	}
	if _, err := tx.Exec(ctx, sb.String(), args...); err != nil {
		return err
	}
	b.pending = nil

	if b.a.Driver.SupportsNotifications() {
		if _, err := tx.Exec(ctx, `NOTIFY stellator_broadcast`); err != nil {
			return err
		}
	}
	return nil
}

// ProcessBroadcasts reads every __broadcasts row with id > since, in
// order, invoking cb for each decoded message, and returns the new
// high-water-mark id (spec §4.8: "process_broadcasts(since_id, cb)...
// returns the new high-water-mark id").
func (b *Broadcaster) ProcessBroadcasts(ctx context.Context, since int64, cb func(value.Value) error) (int64, error) {
	c := newConn(b.a)
	rows, err := c.query(ctx,
		`SELECT "id", "msg" FROM "__broadcasts" WHERE "id" > ?1 ORDER BY "id"`, since)
	if err != nil {
		return since, wrapErr(err, "process broadcasts: select")
	}
	defer rows.Close()

	highWater := since
	for rows.Next() {
		var id int64
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return highWater, wrapErr(err, "process broadcasts: scan")
		}
		var msg value.Value
		if err := msg.UnmarshalJSON(raw); err != nil {
			return highWater, wrapErr(err, "process broadcasts: decode")
		}
		if payload, ok := msg.Get("payload"); ok {
			msg = payload
		}
		if err := cb(msg); err != nil {
			return highWater, err
		}
		highWater = id
	}
	return highWater, wrapErr(rows.Err(), "process broadcasts: iterate")
}
