package aux_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stelladb/stellator/aux"
	"github.com/stelladb/stellator/driver"
	"github.com/stelladb/stellator/driver/sqlitedriver"
	"github.com/stelladb/stellator/scheme"
	"github.com/stelladb/stellator/value"
	"github.com/stelladb/stellator/worker"
)

func openTestAdapter(t *testing.T) *driver.Adapter {
	t.Helper()
	db, err := sql.Open("sqlite3", "file::memory:?cache=shared")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE "__sessions" (
		"name" BLOB PRIMARY KEY,
		"mtime" INTEGER,
		"maxage" INTEGER,
		"data" BLOB
	)`)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE "__removed" ("__oid" INTEGER PRIMARY KEY)`)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE "__broadcasts" (
		"id" INTEGER PRIMARY KEY AUTOINCREMENT,
		"date" INTEGER,
		"msg" BLOB
	)`)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE "__login" (
		"__oid" INTEGER PRIMARY KEY AUTOINCREMENT,
		"user" INTEGER, "name" TEXT, "password_snapshot" TEXT,
		"date" INTEGER, "success" INTEGER, "addr" TEXT, "host" TEXT, "path" TEXT
	)`)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE "__delta_post" ("object" INTEGER, "time" INTEGER, "action" TEXT, "user" INTEGER)`)
	require.NoError(t, err)

	return driver.NewAdapter(sqlitedriver.New(), db, driver.DefaultStmtCacheSize)
}

func TestSessionsSetGet(t *testing.T) {
	ctx := context.Background()
	a := openTestAdapter(t)
	s := aux.NewSessions(a)

	require.NoError(t, s.Set(ctx, "sess-1", []byte("payload"), time.Hour))

	data, ok, err := s.Get(ctx, "sess-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), data)
}

func TestSessionsGetExpired(t *testing.T) {
	ctx := context.Background()
	a := openTestAdapter(t)
	s := aux.NewSessions(a)

	require.NoError(t, s.Set(ctx, "sess-2", []byte("stale"), -time.Hour))

	_, ok, err := s.Get(ctx, "sess-2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSessionsSetUpsert(t *testing.T) {
	ctx := context.Background()
	a := openTestAdapter(t)
	s := aux.NewSessions(a)

	require.NoError(t, s.Set(ctx, "sess-3", []byte("v1"), time.Hour))
	require.NoError(t, s.Set(ctx, "sess-3", []byte("v2"), time.Hour))

	data, ok, err := s.Get(ctx, "sess-3")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v2"), data)

	var count int
	require.NoError(t, a.DB.QueryRow(`select count(*) from "__sessions"`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestSessionsSweepDrainsRemoved(t *testing.T) {
	ctx := context.Background()
	a := openTestAdapter(t)
	s := aux.NewSessions(a)

	require.NoError(t, s.Set(ctx, "expired", []byte("x"), -time.Minute))
	require.NoError(t, s.Set(ctx, "fresh", []byte("y"), time.Hour))
	_, err := a.DB.Exec(`insert into "__removed" ("__oid") values (42)`)
	require.NoError(t, err)

	var drained []int64
	err = s.Sweep(ctx, func(_ context.Context, oid int64) error {
		drained = append(drained, oid)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{42}, drained)

	_, ok, err := s.Get(ctx, "fresh")
	require.NoError(t, err)
	assert.True(t, ok)
	_, ok, err = s.Get(ctx, "expired")
	require.NoError(t, err)
	assert.False(t, ok)

	var remaining int
	require.NoError(t, a.DB.QueryRow(`select count(*) from "__removed"`).Scan(&remaining))
	assert.Equal(t, 0, remaining)
}

func TestBroadcasterQueueAndFlush(t *testing.T) {
	ctx := context.Background()
	a := openTestAdapter(t)
	b := aux.NewBroadcaster(a)

	msg := value.NewDict()
	msg.Set("kind", value.String("ping"))
	b.Queue(msg)
	assert.Equal(t, 1, b.Pending())

	tx := worker.NewTransaction(a, scheme.Admin)
	require.NoError(t, tx.Begin(ctx))
	require.NoError(t, b.Flush(ctx, tx))
	require.NoError(t, tx.Commit(ctx))

	assert.Equal(t, 0, b.Pending())

	var count int
	require.NoError(t, a.DB.QueryRow(`select count(*) from "__broadcasts"`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestBroadcasterProcessBroadcasts(t *testing.T) {
	ctx := context.Background()
	a := openTestAdapter(t)
	b := aux.NewBroadcaster(a)

	for _, kind := range []string{"a", "b", "c"} {
		msg := value.NewDict()
		msg.Set("kind", value.String(kind))
		b.Queue(msg)
	}
	tx := worker.NewTransaction(a, scheme.Admin)
	require.NoError(t, tx.Begin(ctx))
	require.NoError(t, b.Flush(ctx, tx))
	require.NoError(t, tx.Commit(ctx))

	var seen []string
	highWater, err := b.ProcessBroadcasts(ctx, 0, func(v value.Value) error {
		kind, _ := v.Get("kind")
		s, _ := kind.AsString()
		seen = append(seen, s)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, seen)
	assert.Equal(t, int64(3), highWater)

	seen = nil
	_, err = b.ProcessBroadcasts(ctx, highWater, func(v value.Value) error {
		seen = append(seen, "should not run")
		return nil
	})
	require.NoError(t, err)
	assert.Empty(t, seen)
}

func TestLoginHistoryGetHistory(t *testing.T) {
	ctx := context.Background()
	a := openTestAdapter(t)
	_, err := a.DB.Exec(`insert into "__login" ("user","name","password_snapshot","date","success","addr","host","path")
		values (1,'alice@example.com','h',100,1,'1.2.3.4','','/login')`)
	require.NoError(t, err)
	_, err = a.DB.Exec(`insert into "__login" ("user","name","password_snapshot","date","success","addr","host","path")
		values (1,'alice@example.com','h',50,0,'1.2.3.4','','/login')`)
	require.NoError(t, err)

	h := aux.NewLoginHistory(a)
	entries, err := h.GetHistory(ctx, 1, 0, nil)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	first, _ := entries[0].Get("action")
	firstAction, _ := first.AsString()
	assert.Equal(t, "failure", firstAction)

	second, _ := entries[1].Get("action")
	secondAction, _ := second.AsString()
	assert.Equal(t, "success", secondAction)
}

func TestDeltaAuditGetHistory(t *testing.T) {
	ctx := context.Background()
	a := openTestAdapter(t)
	_, err := a.DB.Exec(`CREATE TABLE "post" ("__oid" INTEGER PRIMARY KEY, "title" TEXT)`)
	require.NoError(t, err)
	_, err = a.DB.Exec(`insert into "post" ("__oid","title") values (5, 'hello')`)
	require.NoError(t, err)
	_, err = a.DB.Exec(`insert into "__delta_post" ("object","time","action","user") values (5, 1000, 'update', 1)`)
	require.NoError(t, err)

	d := aux.NewDeltaAudit(a)
	s := scheme.New("post").HasDelta(true).
		Field(scheme.Field{Name: "title", Type: scheme.TypeText})
	entries, err := d.GetHistory(ctx, s, 0, nil)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	action, _ := entries[0].Get("action")
	actionStr, _ := action.AsString()
	assert.Equal(t, "update", actionStr)
	obj, _ := entries[0].Get("object")
	objInt, _ := obj.AsInt()
	assert.Equal(t, int64(5), objInt)
}

func TestDeltaAuditViewHistory(t *testing.T) {
	ctx := context.Background()
	a := openTestAdapter(t)
	_, err := a.DB.Exec(`CREATE TABLE "post_f_tags_delta" ("object" INTEGER, "tag" INTEGER, "time" INTEGER)`)
	require.NoError(t, err)
	_, err = a.DB.Exec(`CREATE TABLE "post_f_tags_view" ("tag" INTEGER, "target_id" INTEGER, "__vid" INTEGER)`)
	require.NoError(t, err)
	_, err = a.DB.Exec(`insert into "post_f_tags_delta" ("object","tag","time") values (9, 42, 500)`)
	require.NoError(t, err)

	target := scheme.New("tag")
	s := scheme.New("post").Field(scheme.Field{
		Name: "tags", Type: scheme.TypeView,
		View: &scheme.FieldView{Target: target, Delta: true},
	})
	field, ok := s.FieldByName("tags")
	require.True(t, ok)

	d := aux.NewDeltaAudit(a)
	entries, err := d.ViewHistory(ctx, s, field, 42, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	vid, _ := entries[0].Get("__vid")
	vidInt, _ := vid.AsInt()
	assert.Equal(t, int64(0), vidInt)
}
