package aux

import (
	"context"
	"database/sql"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stelladb/stellator/driver"
)

// Sessions is the TTL key/value store of spec §4.8, backed by
// __sessions(name BLOB PK, mtime, maxage, data), grounded on the
// original STSqlHandle.cc session table SQL.
type Sessions struct {
	c conn
}

// NewSessions binds a Sessions store to adapter.
func NewSessions(a *driver.Adapter) *Sessions {
	return &Sessions{c: newConn(a)}
}

// Set upserts key with value and a time-to-live, stamping the current
// time as mtime (spec §4.8 "set(key, value, ttl) -> upsert by name with
// current time").
func (s *Sessions) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	now := time.Now().Unix()
	maxAge := int64(ttl / time.Second)
	_, err := s.c.exec(ctx, `
		INSERT INTO "__sessions" ("name", "mtime", "maxage", "data") VALUES (?1, ?2, ?3, ?4)
		ON CONFLICT ("name") DO UPDATE SET "mtime" = excluded."mtime", "maxage" = excluded."maxage", "data" = excluded."data"`,
		[]byte(key), now, maxAge, value)
	return wrapErr(err, "sessions set")
}

// Get returns the stored value for key, or (nil, false) if absent or
// expired (spec §4.8 "get(key) ignores rows whose mtime+maxage < now()").
func (s *Sessions) Get(ctx context.Context, key string) ([]byte, bool, error) {
	row := s.c.queryRow(ctx,
		`SELECT "data" FROM "__sessions" WHERE "name" = ?1 AND "mtime" + "maxage" >= ?2`,
		[]byte(key), time.Now().Unix())
	var data []byte
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, wrapErr(err, "sessions get")
	}
	return data, true, nil
}

// Delete removes key unconditionally.
func (s *Sessions) Delete(ctx context.Context, key string) error {
	_, err := s.c.exec(ctx, `DELETE FROM "__sessions" WHERE "name" = ?1`, []byte(key))
	return wrapErr(err, "sessions delete")
}

// Sweep deletes every expired session row, then drains __removed to
// physically delete orphaned file rows (spec §4.8: "a sweeper deletes
// expired rows and then queries __removed to physically delete orphaned
// file rows"). deleteFile is invoked once per drained oid; its failure is
// retried with backoff (lock contention on the files table under
// concurrent writers) before being surfaced to the caller.
func (s *Sessions) Sweep(ctx context.Context, deleteFile func(ctx context.Context, fileOID int64) error) error {
	now := time.Now().Unix()
	if _, err := s.c.exec(ctx, `DELETE FROM "__sessions" WHERE "mtime" + "maxage" < ?1`, now); err != nil {
		return wrapErr(err, "sessions sweep")
	}

	rows, err := s.c.query(ctx, `SELECT "__oid" FROM "__removed"`)
	if err != nil {
		return wrapErr(err, "sessions sweep: select removed")
	}
	var oids []int64
	for rows.Next() {
		var oid int64
		if err := rows.Scan(&oid); err != nil {
			rows.Close()
			return wrapErr(err, "sessions sweep: scan removed")
		}
		oids = append(oids, oid)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return wrapErr(err, "sessions sweep: iterate removed")
	}
	rows.Close()

	for _, oid := range oids {
		oid := oid
		op := func() error { return deleteFile(ctx, oid) }
		if err := backoff.Retry(op, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)); err != nil {
			return wrapErr(err, "sessions sweep: delete orphaned file")
		}
		if _, err := s.c.exec(ctx, `DELETE FROM "__removed" WHERE "__oid" = ?1`, oid); err != nil {
			return wrapErr(err, "sessions sweep: clear removed entry")
		}
	}
	return nil
}

// RunSweeper runs Sweep on a ticker until ctx is cancelled, logging
// sweep errors rather than stopping (a single failed sweep should not
// kill the background loop).
func (s *Sessions) RunSweeper(ctx context.Context, interval time.Duration, deleteFile func(ctx context.Context, fileOID int64) error, onErr func(error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Sweep(ctx, deleteFile); err != nil && onErr != nil {
				onErr(err)
			}
		}
	}
}
