package qbuilder

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ParamKind tags the wire kind of a bound value (spec §4.1 bind kinds).
type ParamKind int

const (
	KindInt ParamKind = iota
	KindFloat
	KindBool
	KindText
	KindBlob
	KindNull
)

// Param is one (index, kind, value) triple buffered alongside the
// statement text, per spec §4.3's "(index, kind, bytes) triples."
type Param struct {
	Index int
	Kind  ParamKind
	Value any
}

// Builder accumulates SQL text into a single shared buffer across chained
// transitions and records one finalisation token, emitted once by
// Finalize() (spec §4.3).
type Builder struct {
	dialect   Dialect
	buf       strings.Builder
	params    []Param
	finToken  string
	finalized bool
}

// New starts a fresh Builder for the given dialect.
func New(d Dialect) *Builder {
	return &Builder{dialect: d}
}

func (b *Builder) write(s string) *Builder {
	b.buf.WriteString(s)
	return b
}

func (b *Builder) writef(format string, args ...any) *Builder {
	fmt.Fprintf(&b.buf, format, args...)
	return b
}

// Ident quotes a bare identifier. Wildcards are never quoted (spec §4.3).
func Ident(name string) string {
	if name == "*" {
		return "*"
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Qualified renders table."field", or just "field" quoted if table=="".
func Qualified(table, field string) string {
	if table == "" {
		return Ident(field)
	}
	if field == "*" {
		return table + ".*"
	}
	return table + "." + Ident(field)
}

// Aliased renders `expr AS "alias"`.
func Aliased(expr, alias string) string {
	return expr + " AS " + Ident(alias)
}

// Bind records a new parameter and returns its placeholder text ("?n").
// The driver layer rewrites placeholders to the dialect's native style at
// bind time (see driver.Rebind) — the builder itself always numbers
// internally with "?n", per spec §4.3.
func (b *Builder) Bind(kind ParamKind, value any) string {
	idx := len(b.params) + 1
	b.params = append(b.params, Param{Index: idx, Kind: kind, Value: value})
	return fmt.Sprintf("?%d", idx)
}

// Literal writes a raw SQL literal directly into the text, bypassing bind
// slots entirely (spec §4.1: "dialect-specific kinds are emitted as
// literals in the SQL string, not via bind slots").
func Literal(sql string) string { return sql }

// Params returns the buffered bind parameters in index order.
func (b *Builder) Params() []Param { return b.params }

// SQL returns the accumulated text without the finalisation token; used
// by callers composing one Builder's output as a sub-expression of
// another (e.g. CTE bodies).
func (b *Builder) SQL() string { return b.buf.String() }

// Finalize appends the recorded finalisation token (once) and returns the
// complete statement text.
func (b *Builder) Finalize() string {
	if !b.finalized {
		b.buf.WriteString(b.finToken)
		b.finalized = true
	}
	return b.buf.String()
}

func (b *Builder) setFinToken(tok string) { b.finToken = tok }

// With opens a CTE clause: WITH "name" AS (...). body is invoked with a
// fresh Builder for the subquery; its SQL (without finalisation token) is
// embedded. Chainable: multiple With() calls accumulate comma-separated
// CTEs, mirroring the teacher's closure-based nested-clause pattern and
// the original SqlQuery::with() naming.
func (b *Builder) With(name string, body func(*Builder)) *Builder {
	sub := New(b.dialect)
	body(sub)
	subSQL := strings.TrimSuffix(sub.SQL(), ";")

	// sub numbered its own placeholders from ?1; fold its bound params into
	// b's list and shift the CTE text's placeholder numbers by however many
	// params b already holds, so the final flat param list lines up with
	// the placeholder numbers across every CTE plus the outer statement.
	offset := len(b.params)
	if offset > 0 {
		subSQL = renumberPlaceholders(subSQL, offset)
	}
	for _, p := range sub.Params() {
		b.params = append(b.params, Param{Index: p.Index + offset, Kind: p.Kind, Value: p.Value})
	}

	if b.buf.Len() == 0 {
		b.write("WITH ")
	} else {
		b.write(", ")
	}
	b.writef("%s AS (%s)", Ident(name), subSQL)
	return b
}

var placeholderRe = regexp.MustCompile(`\?(\d+)`)

// renumberPlaceholders shifts every "?n" placeholder in sql by offset.
func renumberPlaceholders(sql string, offset int) string {
	return placeholderRe.ReplaceAllStringFunc(sql, func(m string) string {
		n, _ := strconv.Atoi(m[1:])
		return "?" + strconv.Itoa(n+offset)
	})
}

// Dialect reports the builder's target dialect.
func (b *Builder) Dialect() Dialect { return b.dialect }
