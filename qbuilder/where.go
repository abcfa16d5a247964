package qbuilder

// WhereBuilder composes AND-joined predicates inside one WHERE clause (or
// a parenthesised group), mirroring the original SqlQuery::WhereContinue
// closure shape named in STSqlQuery.h.
type WhereBuilder struct {
	b     *Builder
	count int
}

func (w *WhereBuilder) sep() {
	if w.count > 0 {
		w.b.write(" AND ")
	}
	w.count++
}

// Bind forwards to the underlying Builder.Bind, for callers composing a
// raw predicate fragment (via Raw/Or) that still needs bound parameters
// instead of inline literals.
func (w *WhereBuilder) Bind(kind ParamKind, value any) string {
	return w.b.Bind(kind, value)
}

// Builder exposes the underlying Builder, for callers that need to open a
// CTE (With) alongside the predicates they compose here — e.g. the
// keyset tie-break pagination predicate, which compares against a "u"
// CTE rather than a plain literal.
func (w *WhereBuilder) Builder() *Builder {
	return w.b
}

// Raw appends a pre-rendered predicate fragment verbatim.
func (w *WhereBuilder) Raw(sql string) *WhereBuilder {
	w.sep()
	w.b.write(sql)
	return w
}

// Or appends a pre-rendered fragment joined by OR instead of AND against
// the immediately preceding predicate, for ad hoc disjunctions; callers
// needing full OR-of-groups structure should use Group for each branch
// and Raw to join them.
func (w *WhereBuilder) Or(sql string) *WhereBuilder {
	w.b.write(" OR ")
	w.b.write(sql)
	w.count++
	return w
}

func (w *WhereBuilder) cmp(field, op string, kind ParamKind, value any) *WhereBuilder {
	w.sep()
	w.b.writef("%s %s %s", Ident(field), op, w.b.Bind(kind, value))
	return w
}

func (w *WhereBuilder) Eq(field string, kind ParamKind, value any) *WhereBuilder {
	return w.cmp(field, "=", kind, value)
}
func (w *WhereBuilder) Ne(field string, kind ParamKind, value any) *WhereBuilder {
	return w.cmp(field, "!=", kind, value)
}
func (w *WhereBuilder) Lt(field string, kind ParamKind, value any) *WhereBuilder {
	return w.cmp(field, "<", kind, value)
}
func (w *WhereBuilder) Le(field string, kind ParamKind, value any) *WhereBuilder {
	return w.cmp(field, "<=", kind, value)
}
func (w *WhereBuilder) Gt(field string, kind ParamKind, value any) *WhereBuilder {
	return w.cmp(field, ">", kind, value)
}
func (w *WhereBuilder) Ge(field string, kind ParamKind, value any) *WhereBuilder {
	return w.cmp(field, ">=", kind, value)
}

// Between emits BETWEEN (closed) or, when open is true, the open-interval
// rewrite "(field > lo AND field < hi)" (spec §4.3 "BETWEEN open/closed
// variants").
func (w *WhereBuilder) Between(field string, kind ParamKind, lo, hi any, open bool) *WhereBuilder {
	w.sep()
	if open {
		w.b.writef("(%s > %s AND %s < %s)", Ident(field), w.b.Bind(kind, lo), Ident(field), w.b.Bind(kind, hi))
	} else {
		w.b.writef("%s BETWEEN %s AND %s", Ident(field), w.b.Bind(kind, lo), w.b.Bind(kind, hi))
	}
	return w
}

func (w *WhereBuilder) NotBetween(field string, kind ParamKind, lo, hi any) *WhereBuilder {
	w.sep()
	w.b.writef("%s NOT BETWEEN %s AND %s", Ident(field), w.b.Bind(kind, lo), w.b.Bind(kind, hi))
	return w
}

// In emits "field IN (...)". Scalar-typed arrays are inlined without bind
// slots per spec §4.3: "For IN with scalar arrays the builder emits
// IN (a,b,c) without bind slots."
func (w *WhereBuilder) In(field string, literals []string) *WhereBuilder {
	w.sep()
	w.b.writef("%s IN (", Ident(field))
	for i, lit := range literals {
		if i > 0 {
			w.b.write(", ")
		}
		w.b.write(lit)
	}
	w.b.write(")")
	return w
}

func (w *WhereBuilder) NotIn(field string, literals []string) *WhereBuilder {
	w.sep()
	w.b.writef("%s NOT IN (", Ident(field))
	for i, lit := range literals {
		if i > 0 {
			w.b.write(", ")
		}
		w.b.write(lit)
	}
	w.b.write(")")
	return w
}

func (w *WhereBuilder) IsNull(field string) *WhereBuilder {
	w.sep()
	w.b.writef("%s IS NULL", Ident(field))
	return w
}

func (w *WhereBuilder) IsNotNull(field string) *WhereBuilder {
	w.sep()
	w.b.writef("%s IS NOT NULL", Ident(field))
	return w
}

// Includes emits the full-text match operator (spec §4.3 "@@ (Includes,
// full-text)"). ftsQuery is the already-compiled to_tsquery(...) (or
// equivalent) expression text.
func (w *WhereBuilder) Includes(field, ftsQuery string) *WhereBuilder {
	w.sep()
	w.b.writef("%s @@ %s", Ident(field), ftsQuery)
	return w
}

// Group opens a parenthesised sub-WHERE; fn composes predicates against a
// fresh nested WhereBuilder (spec §4.3: "Parenthesised WHERE clauses take
// a closure that receives a fresh WhereBegin in an incremented state").
func (w *WhereBuilder) Group(fn func(*WhereBuilder)) *WhereBuilder {
	w.sep()
	w.b.write("(")
	fn(&WhereBuilder{b: w.b})
	w.b.write(")")
	return w
}
