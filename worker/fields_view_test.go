package worker_test

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stelladb/stellator/driver"
	"github.com/stelladb/stellator/driver/sqlitedriver"
	"github.com/stelladb/stellator/scheme"
	"github.com/stelladb/stellator/worker"
)

func openViewTestDB(t *testing.T) *driver.Adapter {
	t.Helper()
	db, err := sql.Open("sqlite3", "file::memory:?cache=shared")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE post (__oid INTEGER PRIMARY KEY AUTOINCREMENT, title TEXT, search TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE tag (__oid INTEGER PRIMARY KEY AUTOINCREMENT, label TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE post_f_tags_view (__vid INTEGER PRIMARY KEY AUTOINCREMENT, tag INTEGER, target_id INTEGER)`)
	require.NoError(t, err)

	_, err = db.Exec(`insert into tag (label) values ('red')`)
	require.NoError(t, err)
	_, err = db.Exec(`insert into tag (label) values ('blue')`)
	require.NoError(t, err)
	_, err = db.Exec(`insert into post (title, search) values ('hello world', 'hello world')`)
	require.NoError(t, err)
	_, err = db.Exec(`insert into post_f_tags_view (tag, target_id) values (1, 1)`)
	require.NoError(t, err)
	_, err = db.Exec(`insert into post_f_tags_view (tag, target_id) values (1, 2)`)
	require.NoError(t, err)

	return driver.NewAdapter(sqlitedriver.New(), db, driver.DefaultStmtCacheSize)
}

func postWithTagsScheme() *scheme.Scheme {
	target := scheme.New("tag").
		Field(scheme.Field{Name: "label", Type: scheme.TypeText})
	return scheme.New("post").
		Field(scheme.Field{Name: "title", Type: scheme.TypeText}).
		Field(scheme.Field{Name: "search", Type: scheme.TypeFullTextView}).
		Field(scheme.Field{Name: "tags", Type: scheme.TypeView, View: &scheme.FieldView{Target: target}}).
		Role(scheme.Admin, scheme.AccessPolicy{Select: true, Create: true})
}

func TestGetFieldViewMembers(t *testing.T) {
	ctx := context.Background()
	a := openViewTestDB(t)
	tx := worker.NewTransaction(a, scheme.Admin)
	require.NoError(t, tx.Begin(ctx))
	t.Cleanup(func() { _ = tx.Rollback(ctx) })

	w := worker.New(postWithTagsScheme(), tx, worker.Options{Role: scheme.Admin})

	v, err := w.GetField(ctx, 1, "tags")
	require.NoError(t, err)
	members, ok := v.AsArray()
	require.True(t, ok)
	require.Len(t, members, 2)

	label, _ := members[0].Get("label")
	labelStr, _ := label.AsString()
	assert.Equal(t, "red", labelStr)
}

func TestCountFieldViewMembers(t *testing.T) {
	ctx := context.Background()
	a := openViewTestDB(t)
	tx := worker.NewTransaction(a, scheme.Admin)
	require.NoError(t, tx.Begin(ctx))
	t.Cleanup(func() { _ = tx.Rollback(ctx) })

	w := worker.New(postWithTagsScheme(), tx, worker.Options{Role: scheme.Admin})

	n, err := w.CountField(ctx, 1, "tags")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestGetFieldFullTextScalar(t *testing.T) {
	ctx := context.Background()
	a := openViewTestDB(t)
	tx := worker.NewTransaction(a, scheme.Admin)
	require.NoError(t, tx.Begin(ctx))
	t.Cleanup(func() { _ = tx.Rollback(ctx) })

	w := worker.New(postWithTagsScheme(), tx, worker.Options{Role: scheme.Admin})

	v, err := w.GetField(ctx, 1, "search")
	require.NoError(t, err)
	s, ok := v.AsString()
	require.True(t, ok)
	assert.Equal(t, "hello world", s)
}
