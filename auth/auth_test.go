package auth_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stelladb/stellator/auth"
	"github.com/stelladb/stellator/driver"
	"github.com/stelladb/stellator/driver/sqlitedriver"
	"github.com/stelladb/stellator/scheme"
	"github.com/stelladb/stellator/worker"
)

func openTestAdapter(t *testing.T) *driver.Adapter {
	t.Helper()
	db, err := sql.Open("sqlite3", "file::memory:?cache=shared")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE user (
		__oid INTEGER PRIMARY KEY AUTOINCREMENT,
		email TEXT UNIQUE,
		password TEXT
	)`)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE "__login" (
		__oid INTEGER PRIMARY KEY AUTOINCREMENT,
		user INTEGER,
		name TEXT,
		password_snapshot TEXT,
		date INTEGER,
		success INTEGER,
		addr TEXT,
		host TEXT,
		path TEXT
	)`)
	require.NoError(t, err)

	return driver.NewAdapter(sqlitedriver.New(), db, driver.DefaultStmtCacheSize)
}

func userScheme() *scheme.Scheme {
	return scheme.New("user").
		Field(scheme.Field{Name: "email", Type: scheme.TypeText, Flags: scheme.Unique}).
		Field(scheme.Field{Name: "password", Type: scheme.TypeText}).
		Role(scheme.Admin, scheme.AccessPolicy{Select: true, Create: true})
}

func authConfig() auth.Config {
	return auth.Config{
		Scheme:          userScheme(),
		IdentifierField: "email",
		PasswordField:   "password",
		MaxAuthTime:     time.Hour,
		MaxLoginFailure: 3,
		Verifier:        auth.DefaultVerifier{},
	}
}

func seedUser(t *testing.T, a *driver.Adapter, email, password string) int64 {
	t.Helper()
	hash, err := auth.DefaultVerifier{}.Hash(password)
	require.NoError(t, err)
	res, err := a.DB.Exec(`INSERT INTO user (email, password) VALUES (?, ?)`, email, hash)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func TestAuthorizeUserSuccess(t *testing.T) {
	ctx := context.Background()
	a := openTestAdapter(t)
	seedUser(t, a, "alice@example.com", "correct horse")

	tx := worker.NewTransaction(a, scheme.Admin)
	require.NoError(t, tx.Begin(ctx))
	defer tx.Rollback(ctx)

	result, err := auth.AuthorizeUser(ctx, tx, authConfig(), "alice@example.com", "correct horse", auth.RequestInfo{Addr: "127.0.0.1"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.False(t, result.Cooldown)

	var count int
	require.NoError(t, tx.QueryRow(ctx, `SELECT COUNT(*) FROM "__login" WHERE success = 1`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestAuthorizeUserWrongPassword(t *testing.T) {
	ctx := context.Background()
	a := openTestAdapter(t)
	seedUser(t, a, "bob@example.com", "hunter2")

	tx := worker.NewTransaction(a, scheme.Admin)
	require.NoError(t, tx.Begin(ctx))
	defer tx.Rollback(ctx)

	result, err := auth.AuthorizeUser(ctx, tx, authConfig(), "bob@example.com", "wrong", auth.RequestInfo{})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 1, result.FailedAttempts)
}

func TestAuthorizeUserLockout(t *testing.T) {
	ctx := context.Background()
	a := openTestAdapter(t)
	seedUser(t, a, "carol@example.com", "s3cret")
	cfg := authConfig()
	cfg.MaxLoginFailure = 1

	tx := worker.NewTransaction(a, scheme.Admin)
	require.NoError(t, tx.Begin(ctx))
	defer tx.Rollback(ctx)

	_, err := auth.AuthorizeUser(ctx, tx, cfg, "carol@example.com", "wrong", auth.RequestInfo{})
	require.NoError(t, err)

	result, err := auth.AuthorizeUser(ctx, tx, cfg, "carol@example.com", "s3cret", auth.RequestInfo{})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.True(t, result.Cooldown)
}

func TestAuthorizeUserSuccessBumpsExistingRow(t *testing.T) {
	ctx := context.Background()
	a := openTestAdapter(t)
	seedUser(t, a, "dora@example.com", "letmein")
	cfg := authConfig()

	tx := worker.NewTransaction(a, scheme.Admin)
	require.NoError(t, tx.Begin(ctx))
	defer tx.Rollback(ctx)

	_, err := auth.AuthorizeUser(ctx, tx, cfg, "dora@example.com", "letmein", auth.RequestInfo{})
	require.NoError(t, err)
	_, err = auth.AuthorizeUser(ctx, tx, cfg, "dora@example.com", "letmein", auth.RequestInfo{})
	require.NoError(t, err)

	var count int
	require.NoError(t, tx.QueryRow(ctx, `SELECT COUNT(*) FROM "__login" WHERE success = 1`).Scan(&count))
	assert.Equal(t, 1, count)
}
