// Package qbuilder implements the fluent, state-by-construction SQL
// builder of spec §4.3. It is grounded on the teacher's schema/ast.go
// struct shape (github.com/k0kubun/sqldef) generalized from "DDL struct
// that stringifies once" to "statement-in-progress that stringifies on
// Finalize", and on the original STSqlQuery.h naming (SqlQuery,
// writeWhere, writeSelectFrom, WhereContinue) which this package's method
// names (WhereBuilder, Where, With) are chosen to echo.
package qbuilder

import "strconv"

// Dialect captures the handful of SQL-text differences the builder must
// know about: identifier quoting (both dialects double-quote, so this is
// currently only parameter style) and placeholder numbering style.
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

// Placeholder renders the nth (1-based) bind placeholder for the dialect.
// Internally the builder always numbers placeholders "?n"; the driver
// layer rewrites to "$n" for PostgreSQL at bind time (see driver.Rebind),
// so this helper exists for callers that want dialect-correct SQL text
// directly out of the builder (e.g. migration DDL, which has no bind
// slots at all and never calls this).
func (d Dialect) Placeholder(n int) string {
	switch d {
	case Postgres:
		return "$" + strconv.Itoa(n)
	default:
		return "?" + strconv.Itoa(n)
	}
}
