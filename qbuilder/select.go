package qbuilder

import "strings"

// The Select* types realize the grammar of spec §4.3:
//   Select -> Fields -> From -> [Join*] -> [Where] -> [GroupBy -> [Having]]
//          -> [OrderBy -> [Limit|Offset]] -> [ForUpdate] -> Finalized
// Each stage only exposes the transitions legal from that point, so an
// illegal clause order is a compile error rather than a runtime one.

type SelectStmt struct{ b *Builder }

// Select begins a SELECT statement.
func (b *Builder) Select() *SelectStmt {
	b.setFinToken(";")
	b.write("SELECT ")
	return &SelectStmt{b: b}
}

type SelectFields struct{ b *Builder }

// Fields lists the projected columns/expressions, already rendered (use
// Ident/Qualified/Aliased to build each entry).
func (s *SelectStmt) Fields(exprs ...string) *SelectFields {
	s.b.write(strings.Join(exprs, ", "))
	return &SelectFields{b: s.b}
}

type SelectFrom struct{ b *Builder }

// From names the source table (and optional alias).
func (s *SelectFields) From(table string, alias string) *SelectFrom {
	s.b.write(" FROM " + Ident(table))
	if alias != "" {
		s.b.write(" " + Ident(alias))
	}
	return &SelectFrom{b: s.b}
}

// FromRaw embeds a pre-rendered FROM source, e.g. a CTE reference or a
// parenthesised subquery, without re-quoting it as an identifier.
func (s *SelectFields) FromRaw(source string) *SelectFrom {
	s.b.write(" FROM " + source)
	return &SelectFrom{b: s.b}
}

// Join appends a JOIN clause; kind is e.g. "INNER JOIN", "LEFT JOIN",
// "RIGHT JOIN". Repeatable.
func (s *SelectFrom) Join(kind, table, alias, on string) *SelectFrom {
	s.b.writef(" %s %s", kind, Ident(table))
	if alias != "" {
		s.b.write(" " + Ident(alias))
	}
	s.b.write(" ON " + on)
	return s
}

// JoinRaw appends a JOIN against a pre-rendered source (a CTE name or
// parenthesised subquery).
func (s *SelectFrom) JoinRaw(kind, source, on string) *SelectFrom {
	s.b.writef(" %s %s ON %s", kind, source, on)
	return s
}

type SelectWhere struct{ b *Builder }

// Where opens a WHERE clause; fn receives a fresh WhereBuilder to compose
// predicates, mirroring the original SqlQuery's closure-based nesting.
func (s *SelectFrom) Where(fn func(*WhereBuilder)) *SelectWhere {
	s.b.write(" WHERE ")
	fn(&WhereBuilder{b: s.b})
	return &SelectWhere{b: s.b}
}

// NoWhere skips straight past the optional WHERE clause.
func (s *SelectFrom) NoWhere() *SelectWhere { return &SelectWhere{b: s.b} }

type SelectGroupBy struct{ b *Builder }

func (s *SelectWhere) GroupBy(fields ...string) *SelectGroupBy {
	s.b.write(" GROUP BY " + strings.Join(quoteAll(fields), ", "))
	return &SelectGroupBy{b: s.b}
}

// Direction is an ORDER BY sort direction.
type Direction int

const (
	Asc Direction = iota
	Desc
)

// Nulls controls NULLS FIRST/LAST placement in an ORDER BY clause.
type Nulls int

const (
	NullsDefault Nulls = iota
	NullsFirst
	NullsLast
)

type SelectOrderBy struct{ b *Builder }

func (s *SelectGroupBy) Having(cond string) *SelectOrderBy {
	s.b.write(" HAVING " + cond)
	return &SelectOrderBy{b: s.b}
}

func (s *SelectGroupBy) NoHaving() *SelectOrderBy { return &SelectOrderBy{b: s.b} }

// OrderBy, reachable from either WHERE or GROUP BY/HAVING.
func (s *SelectWhere) OrderBy(expr string, dir Direction, nulls Nulls) *SelectOrderBy {
	writeOrderBy(s.b, expr, dir, nulls)
	return &SelectOrderBy{b: s.b}
}

func (s *SelectOrderBy) ThenBy(expr string, dir Direction, nulls Nulls) *SelectOrderBy {
	s.b.write(", ")
	writeOrderByExpr(s.b, expr, dir, nulls)
	return s
}

func writeOrderBy(b *Builder, expr string, dir Direction, nulls Nulls) {
	b.write(" ORDER BY ")
	writeOrderByExpr(b, expr, dir, nulls)
}

func writeOrderByExpr(b *Builder, expr string, dir Direction, nulls Nulls) {
	b.write(expr)
	if dir == Desc {
		b.write(" DESC")
	} else {
		b.write(" ASC")
	}
	switch nulls {
	case NullsFirst:
		b.write(" NULLS FIRST")
	case NullsLast:
		b.write(" NULLS LAST")
	}
}

type SelectLimit struct{ b *Builder }

func (s *SelectOrderBy) Limit(n int) *SelectLimit {
	s.b.write(" LIMIT " + s.b.Bind(KindInt, int64(n)))
	return &SelectLimit{b: s.b}
}

func (s *SelectLimit) Offset(n int) *SelectLimit {
	s.b.write(" OFFSET " + s.b.Bind(KindInt, int64(n)))
	return s
}

type SelectForUpdate struct{ b *Builder }

func (s *SelectLimit) ForUpdate() *SelectForUpdate {
	s.b.write(" FOR UPDATE")
	return &SelectForUpdate{b: s.b}
}

func (s *SelectOrderBy) ForUpdate() *SelectForUpdate {
	s.b.write(" FOR UPDATE")
	return &SelectForUpdate{b: s.b}
}

func (s *SelectLimit) Finalize() string      { return s.b.Finalize() }
func (s *SelectOrderBy) Finalize() string    { return s.b.Finalize() }
func (s *SelectWhere) Finalize() string      { return s.b.Finalize() }
func (s *SelectForUpdate) Finalize() string  { return s.b.Finalize() }
func (s *SelectGroupBy) Finalize() string    { return s.b.Finalize() }

func quoteAll(fields []string) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = Ident(f)
	}
	return out
}
