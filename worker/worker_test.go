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
	"github.com/stelladb/stellator/translator"
	"github.com/stelladb/stellator/value"
	"github.com/stelladb/stellator/worker"
)

func openTestDB(t *testing.T) *driver.Adapter {
	t.Helper()
	db, err := sql.Open("sqlite3", "file::memory:?cache=shared")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE user (
		__oid INTEGER PRIMARY KEY AUTOINCREMENT,
		email TEXT UNIQUE,
		age INTEGER
	)`)
	require.NoError(t, err)

	return driver.NewAdapter(sqlitedriver.New(), db, driver.DefaultStmtCacheSize)
}

func userScheme() *scheme.Scheme {
	return scheme.New("user").
		Field(scheme.Field{Name: "email", Type: scheme.TypeText, Flags: scheme.Unique}).
		Field(scheme.Field{Name: "age", Type: scheme.TypeInteger}).
		Role(scheme.Admin, scheme.AccessPolicy{Select: true, Create: true, Update: true, Remove: true})
}

func beginTx(t *testing.T, a *driver.Adapter) *worker.Transaction {
	t.Helper()
	tx := worker.NewTransaction(a, scheme.Admin)
	require.NoError(t, tx.Begin(context.Background()))
	t.Cleanup(func() { _ = tx.Rollback(context.Background()) })
	return tx
}

func TestWorkerCreateAndGet(t *testing.T) {
	ctx := context.Background()
	a := openTestDB(t)
	tx := beginTx(t, a)
	w := worker.New(userScheme(), tx, worker.Options{Role: scheme.Admin})

	patch := value.NewDict()
	patch.Set("email", value.String("alice@example.com"))
	patch.Set("age", value.Int(30))

	created, err := w.Create(ctx, patch)
	require.NoError(t, err)
	oid, ok := created.Get("__oid")
	require.True(t, ok)
	oidVal, _ := oid.AsInt()
	assert.Greater(t, oidVal, int64(0))

	fetched, err := w.Get(ctx, oidVal)
	require.NoError(t, err)
	email, _ := fetched.Get("email")
	s, _ := email.AsString()
	assert.Equal(t, "alice@example.com", s)
}

func TestWorkerUpdateAndRemove(t *testing.T) {
	ctx := context.Background()
	a := openTestDB(t)
	tx := beginTx(t, a)
	w := worker.New(userScheme(), tx, worker.Options{Role: scheme.Admin})

	patch := value.NewDict()
	patch.Set("email", value.String("bob@example.com"))
	patch.Set("age", value.Int(20))
	created, err := w.Create(ctx, patch)
	require.NoError(t, err)
	oid, _ := created.Get("__oid")
	oidVal, _ := oid.AsInt()

	update := value.NewDict()
	update.Set("age", value.Int(21))
	updated, err := w.Update(ctx, oidVal, update)
	require.NoError(t, err)
	age, _ := updated.Get("age")
	ageVal, _ := age.AsInt()
	assert.Equal(t, int64(21), ageVal)

	require.NoError(t, w.Remove(ctx, oidVal))
	_, err = w.Get(ctx, oidVal)
	assert.Error(t, err)
}

func TestWorkerAccessPolicyDeniesWithoutSQL(t *testing.T) {
	ctx := context.Background()
	a := openTestDB(t)
	tx := beginTx(t, a)
	s := scheme.New("user").
		Field(scheme.Field{Name: "email", Type: scheme.TypeText})
	// No Role() declared for scheme.Admin, so the zero-value (deny-all)
	// policy applies; Create must fail before any SQL is emitted.
	w := worker.New(s, tx, worker.Options{Role: scheme.Admin})

	patch := value.NewDict()
	patch.Set("email", value.String("nobody@example.com"))
	_, err := w.Create(ctx, patch)
	assert.Error(t, err)
}

func TestWorkerSelectOrderedPagination(t *testing.T) {
	ctx := context.Background()
	a := openTestDB(t)
	tx := beginTx(t, a)
	s := userScheme()
	w := worker.New(s, tx, worker.Options{Role: scheme.Admin})

	for _, seed := range []struct {
		email string
		age   int64
	}{
		{"a@example.com", 20},
		{"b@example.com", 20},
		{"c@example.com", 30},
	} {
		p := value.NewDict()
		p.Set("email", value.String(seed.email))
		p.Set("age", value.Int(seed.age))
		_, err := w.Create(ctx, p)
		require.NoError(t, err)
	}

	ageField, ok := s.FieldByName("age")
	require.True(t, ok)

	page1, err := w.Select(ctx, worker.SelectQuery{Order: ageField, Dir: scheme.Asc, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page1, 2)
	for _, doc := range page1 {
		age, _ := doc.Get("age")
		ageVal, _ := age.AsInt()
		assert.Equal(t, int64(20), ageVal)
	}

	last := page1[len(page1)-1]
	lastOID, _ := last.Get("__oid")
	lastOIDVal, _ := lastOID.AsInt()
	lastAge, _ := last.Get("age")
	lastAgeVal, _ := lastAge.AsInt()
	cursor := translator.NextCursor(ageField, lastOIDVal, lastAgeVal)

	page2, err := w.Select(ctx, worker.SelectQuery{Order: ageField, Dir: scheme.Asc, Cursor: cursor})
	require.NoError(t, err)
	require.Len(t, page2, 1)
	age2, _ := page2[0].Get("age")
	age2Val, _ := age2.AsInt()
	assert.Equal(t, int64(30), age2Val)
}

func TestTransactionStickyRollback(t *testing.T) {
	ctx := context.Background()
	a := openTestDB(t)
	tx := worker.NewTransaction(a, scheme.Admin)
	require.NoError(t, tx.Begin(ctx))

	// Force a backend error: insert a duplicate unique email.
	s := userScheme()
	w := worker.New(s, tx, worker.Options{Role: scheme.Admin})
	p1 := value.NewDict()
	p1.Set("email", value.String("dup@example.com"))
	p1.Set("age", value.Int(1))
	_, err := w.Create(ctx, p1)
	require.NoError(t, err)

	p2 := value.NewDict()
	p2.Set("email", value.String("dup@example.com"))
	p2.Set("age", value.Int(2))
	_, err = w.Create(ctx, p2)
	require.Error(t, err)
	assert.True(t, tx.Aborted())

	_, err = w.Get(ctx, 1)
	assert.Error(t, err)
}
