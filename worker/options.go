package worker

import (
	"github.com/stelladb/stellator/scheme"
	"github.com/stelladb/stellator/translator"
)

// ConflictAction selects what an INSERT does when it collides with a
// unique constraint (spec §4.5 "Conflict handling on INSERT").
type ConflictAction int

const (
	// ConflictFail lets the backend's constraint violation propagate as
	// sdberr.ConstraintViolation (the default: no ON CONFLICT clause).
	ConflictFail ConflictAction = iota
	ConflictDoNothing
	ConflictDoUpdate
)

// ConflictPolicy configures Worker.Create's conflict handling.
type ConflictPolicy struct {
	Action ConflictAction
	// Target names the unique column (or comma-joined tuple) the ON
	// CONFLICT clause targets; required for DoNothing/DoUpdate.
	Target string
	// UpdateFields lists the fields DO UPDATE assigns from EXCLUDED.
	UpdateFields []string
	// UpdateWhere is an optional pre-rendered guard on DO UPDATE.
	UpdateWhere string
}

// Options configures one Worker's view over a Scheme: acting role, field
// projection, default conflict policy, and persistent filter conditions
// applied to every Select/Count (spec §4.5 "Worker binds one *scheme.
// Scheme + *Transaction + Options{...}").
type Options struct {
	Role       scheme.Role
	Fields     scheme.FieldRequest
	Conflict   ConflictPolicy
	Conditions []scheme.Condition
}

// DefaultOptions returns the zero-value Options: Nobody role, default "*"
// projection, fail-on-conflict, no persistent filter.
func DefaultOptions() Options { return Options{} }

// SelectQuery configures ordering, keyset pagination and full-text ranking
// for Worker.Select (spec §4.6). The zero value selects every row matching
// the worker's Conditions in unspecified order, same as before this type
// existed.
type SelectQuery struct {
	// Order is the field to sort by; nil means no ORDER BY at all, in
	// which case Cursor/Dir/FTSQuery/Limit are ignored.
	Order *scheme.Field
	Dir   scheme.Direction
	// Cursor resumes after a previous page's last row, per
	// translator.NextCursor; nil means "first page".
	Cursor *translator.PageCursor
	// Limit caps the number of rows returned when Order is set; <=0 means
	// unlimited.
	Limit int
	// FTSQuery is the raw (uncompiled) search phrase to rank by when Order
	// is a FullTextView field; ignored otherwise.
	FTSQuery string
}
