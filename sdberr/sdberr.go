// Package sdberr defines the structured error kinds surfaced across the
// storage engine, grounded on spec §7's error-kind table and §6's
// {error, status, desc, query} error record.
package sdberr

import "fmt"

// Kind enumerates the caller-visible error categories.
type Kind int

const (
	KindBackendUnavailable Kind = iota
	KindConstraintViolation
	KindTransactionAborted
	KindSchemaDenied
	KindSchemaValidation
	KindNotFound
	KindConflict
	KindAuthLocked
	KindBug
)

func (k Kind) String() string {
	switch k {
	case KindBackendUnavailable:
		return "BackendUnavailable"
	case KindConstraintViolation:
		return "ConstraintViolation"
	case KindTransactionAborted:
		return "TransactionAborted"
	case KindSchemaDenied:
		return "SchemaDenied"
	case KindSchemaValidation:
		return "SchemaValidation"
	case KindNotFound:
		return "NotFound"
	case KindConflict:
		return "Conflict"
	case KindAuthLocked:
		return "AuthLocked"
	case KindBug:
		return "Bug"
	default:
		return "Unknown"
	}
}

// Info is the backend-facing diagnostics record produced by driver error
// translation (spec §4.1) and carried in the error record of spec §6.
type Info struct {
	Code        int32
	Status      string
	Description string
	FailedQuery string
}

// Error is the structured error value returned across package boundaries.
// It wraps an optional backend Info and carries enough context to decide
// recovery (spec §7: only NotFound and policy-guarded Conflict recover
// locally; everything else propagates).
type Error struct {
	Kind    Kind
	Message string
	Info    *Info
	cause   error
}

func (e *Error) Error() string {
	if e.Info != nil && e.Info.FailedQuery != "" {
		return fmt.Sprintf("%s: %s (query: %s)", e.Kind, e.Message, e.Info.FailedQuery)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is supports errors.Is comparisons against a bare Kind-tagged sentinel
// produced by New(kind, "").
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

// New builds an Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error of the given kind, chaining cause via Unwrap.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: cause}
}

// WithInfo attaches backend diagnostics to an Error and returns it.
func (e *Error) WithInfo(info Info) *Error {
	e.Info = &info
	return e
}

// Sentinel returns a bare instance of kind for use with errors.Is, e.g.
// errors.Is(err, sdberr.Sentinel(sdberr.KindNotFound)).
func Sentinel(kind Kind) *Error { return &Error{Kind: kind} }

// Is reports whether err (or anything it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if ae, ok := err.(*Error); ok {
			e = ae
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return e != nil && e.Kind == kind
}
