package qbuilder

import "strings"

// Insert -> Fields -> Values+ -> [OnConflict -> DoNothing|DoUpdate -> Where?] -> [Returning] -> Finalized

type InsertStmt struct{ b *Builder }

func (b *Builder) InsertInto(table string) *InsertStmt {
	b.setFinToken(";")
	b.writef("INSERT INTO %s ", Ident(table))
	return &InsertStmt{b: b}
}

type InsertFields struct {
	b      *Builder
	fields []string
}

func (s *InsertStmt) Fields(fields ...string) *InsertFields {
	s.b.write("(" + strings.Join(quoteAll(fields), ", ") + ")")
	return &InsertFields{b: s.b, fields: fields}
}

type InsertValues struct{ b *Builder }

// Values appends one "(...)" value-tuple; kinds must align 1:1 with the
// fields passed to Fields. Repeatable for multi-row INSERT (spec §4.3
// "value-tuples... append (...) groups separated by commas").
func (s *InsertFields) Values(kinds []ParamKind, values []any) *InsertValues {
	s.b.write(" VALUES ")
	writeValueTuple(s.b, kinds, values)
	return &InsertValues{b: s.b}
}

func (s *InsertValues) Values(kinds []ParamKind, values []any) *InsertValues {
	s.b.write(", ")
	writeValueTuple(s.b, kinds, values)
	return s
}

func writeValueTuple(b *Builder, kinds []ParamKind, values []any) {
	b.write("(")
	for i, v := range values {
		if i > 0 {
			b.write(", ")
		}
		if lit, ok := v.(literalValue); ok {
			b.write(string(lit))
			continue
		}
		b.write(b.Bind(kinds[i], v))
	}
	b.write(")")
}

// literalValue marks a value that must be written directly into SQL text
// instead of through a bind slot (spec §4.1: dialect-specific kinds such
// as tsvector/point/int-array literals).
type literalValue string

// LiteralValue wraps a raw SQL literal for use in Values()/Set().
func LiteralValue(sql string) any { return literalValue(sql) }

type InsertConflict struct{ b *Builder }

func (s *InsertValues) OnConflict(target string) *InsertConflict {
	s.b.writef(" ON CONFLICT (%s)", Ident(target))
	return &InsertConflict{b: s.b}
}

func (s *InsertValues) NoConflictClause() *InsertReturning {
	return &InsertReturning{b: s.b}
}

type InsertReturning struct{ b *Builder }

func (c *InsertConflict) DoNothing() *InsertReturning {
	c.b.write(" DO NOTHING")
	return &InsertReturning{b: c.b}
}

// DoUpdate emits DO UPDATE SET col=EXCLUDED.col,... for each of cols, with
// an optional WHERE guard (spec §4.5 conflict handling).
func (c *InsertConflict) DoUpdate(cols []string, where string) *InsertReturning {
	c.b.write(" DO UPDATE SET ")
	for i, col := range cols {
		if i > 0 {
			c.b.write(", ")
		}
		c.b.writef("%s = EXCLUDED.%s", Ident(col), Ident(col))
	}
	if where != "" {
		c.b.write(" WHERE " + where)
	}
	return &InsertReturning{b: c.b}
}

func (r *InsertReturning) Returning(fields ...string) string {
	if len(fields) > 0 {
		r.b.write(" RETURNING " + strings.Join(fields, ", "))
	}
	return r.b.Finalize()
}

func (r *InsertReturning) Finalize() string { return r.b.Finalize() }
