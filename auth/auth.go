// Package auth implements the login/lockout flow of spec §4.9, grounded
// on the original STSqlHandle.cc session/login table SQL (the
// __login(user, name, password_snapshot, date, success, addr, host,
// path) shape of spec §3.5) and expressed against worker.Transaction the
// same way worker/postupdate.go composes ad hoc SQL outside the
// qbuilder/translator path for a fixed, engine-owned table.
package auth

import (
	"context"
	"time"

	"github.com/stelladb/stellator/scheme"
	"github.com/stelladb/stellator/sdberr"
	"github.com/stelladb/stellator/value"
	"github.com/stelladb/stellator/worker"
)

// Verifier checks a candidate password against a stored hash and
// produces new hashes, pluggable per spec §4.9 ("password verification
// is pluggable").
type Verifier interface {
	Verify(stored, candidate string) bool
	Hash(candidate string) (string, error)
}

// Config names the user scheme and its identifier/password columns, plus
// the lockout window parameters of spec §6's auth environment surface
// (max_auth_time, max_login_failure).
type Config struct {
	Scheme          *scheme.Scheme
	IdentifierField string // e.g. "email" or "name"
	PasswordField   string // column holding the verifier's stored hash
	MaxAuthTime     time.Duration
	MaxLoginFailure int
	Verifier        Verifier
}

// RequestInfo carries the optional request metadata spec §4.9 step 4
// records alongside a login attempt, when available.
type RequestInfo struct {
	Addr string
	Host string
	Path string
}

// Result is what AuthorizeUser returns: the resolved user on success, or
// the lockout/failure detail spec's Open Questions section calls a
// "structured error {cooldown, failed_attempts}" on abort.
type Result struct {
	Success        bool
	User           value.Value
	Cooldown       bool
	FailedAttempts int
}

// AuthorizeUser implements spec §4.9's five numbered steps:
//  1. resolve identifier to a user row,
//  2. count failed logins in the trailing MaxAuthTime window and abort
//     if at or over MaxLoginFailure,
//  3. verify the candidate password,
//  4. append (or, on success, opportunistically bump) a __login row,
//  5. return the user value on success; on a failed attempt, a Result
//     with Cooldown/FailedAttempts filled in. An unknown identifier
//     returns an error.
//
// The whole sequence runs against the caller's already-begun tx, per
// spec's "must run inside one transaction started by the caller or by
// the function itself."
func AuthorizeUser(ctx context.Context, tx *worker.Transaction, cfg Config, identifier, password string, req RequestInfo) (Result, error) {
	userOID, passwordHash, err := resolveUser(ctx, tx, cfg, identifier)
	if err != nil {
		return Result{}, err
	}
	if userOID == 0 {
		return Result{}, sdberr.Sentinel(sdberr.KindNotFound)
	}

	since := time.Now().Add(-cfg.MaxAuthTime).UnixMicro()
	failedAttempts, err := countFailedLogins(ctx, tx, userOID, since)
	if err != nil {
		return Result{}, err
	}
	if failedAttempts >= cfg.MaxLoginFailure {
		if err := recordLogin(ctx, tx, userOID, identifier, passwordHash, false, req); err != nil {
			return Result{}, err
		}
		return Result{Cooldown: true, FailedAttempts: failedAttempts}, nil
	}

	verifier := cfg.Verifier
	if verifier == nil {
		verifier = DefaultVerifier{}
	}
	if !verifier.Verify(passwordHash, password) {
		if err := recordLogin(ctx, tx, userOID, identifier, passwordHash, false, req); err != nil {
			return Result{}, err
		}
		return Result{FailedAttempts: failedAttempts + 1}, nil
	}

	if err := recordSuccess(ctx, tx, userOID, identifier, passwordHash, since, req); err != nil {
		return Result{}, err
	}

	user, err := fetchUserValue(ctx, tx, cfg, userOID)
	if err != nil {
		return Result{}, err
	}
	return Result{Success: true, User: user}, nil
}

func resolveUser(ctx context.Context, tx *worker.Transaction, cfg Config, identifier string) (int64, string, error) {
	sqlText := `SELECT "__oid", "` + cfg.PasswordField + `" FROM "` + cfg.Scheme.Name + `" WHERE "` + cfg.IdentifierField + `" = ?1`
	row := tx.QueryRow(ctx, sqlText, identifier)
	var oid int64
	var hash string
	if err := row.Scan(&oid, &hash); err != nil {
		return 0, "", nil // no matching row: caller treats oid==0 as not-found
	}
	return oid, hash, nil
}

func countFailedLogins(ctx context.Context, tx *worker.Transaction, userOID int64, sinceMicros int64) (int, error) {
	row := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM "__login" WHERE "user" = ?1 AND "success" = 0 AND "date" >= ?2`,
		userOID, sinceMicros)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, sdberr.Wrap(sdberr.KindBackendUnavailable, err, "auth: count failed logins")
	}
	return n, nil
}

func recordLogin(ctx context.Context, tx *worker.Transaction, userOID int64, name, passwordSnapshot string, success bool, req RequestInfo) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO "__login" ("user", "name", "password_snapshot", "date", "success", "addr", "host", "path")
		 VALUES (?1, ?2, ?3, ?4, ?5, ?6, ?7, ?8)`,
		userOID, name, passwordSnapshot, time.Now().UnixMicro(), success, req.Addr, req.Host, req.Path)
	if err != nil {
		return sdberr.Wrap(sdberr.KindBackendUnavailable, err, "auth: record login attempt")
	}
	return nil
}

// recordSuccess implements the spec's Open-Question-resolved behaviour:
// "update most-recent success row opportunistically instead of always
// inserting" — if a successful row for this user already exists within
// the lockout window, bump its date rather than inserting a duplicate.
func recordSuccess(ctx context.Context, tx *worker.Transaction, userOID int64, name, passwordSnapshot string, sinceMicros int64, req RequestInfo) error {
	now := time.Now().UnixMicro()
	res, err := tx.Exec(ctx,
		`UPDATE "__login" SET "date" = ?1 WHERE "__oid" = (
			SELECT "__oid" FROM "__login"
			WHERE "user" = ?2 AND "success" = 1 AND "date" >= ?3
			ORDER BY "date" DESC LIMIT 1
		)`, now, userOID, sinceMicros)
	if err != nil {
		return sdberr.Wrap(sdberr.KindBackendUnavailable, err, "auth: bump login row")
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	return recordLogin(ctx, tx, userOID, name, passwordSnapshot, true, req)
}

func fetchUserValue(ctx context.Context, tx *worker.Transaction, cfg Config, userOID int64) (value.Value, error) {
	w := worker.New(cfg.Scheme, tx, worker.Options{Role: tx.Role()})
	return w.Get(ctx, userOID)
}
