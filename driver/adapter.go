package driver

import "database/sql"

// Adapter is the (driver, connection) pair bound to a connection for the
// current task (spec §4.1, glossary "Adapter"), plus the per-connection
// prepared-statement cache spec §4.1 requires.
type Adapter struct {
	Driver Driver
	DB     *sql.DB
	Stmts  *StmtCache
}

// NewAdapter wraps an already-opened *sql.DB with its own statement cache.
func NewAdapter(d Driver, db *sql.DB, stmtCacheSize int) *Adapter {
	return &Adapter{Driver: d, DB: db, Stmts: NewStmtCache(stmtCacheSize)}
}

// Close releases the adapter's statement cache and underlying *sql.DB.
func (a *Adapter) Close() error {
	a.Stmts.Close()
	return a.DB.Close()
}
