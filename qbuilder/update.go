package qbuilder

import "strings"

// Update -> Set+ -> [Where] -> [Returning] -> Finalized

type UpdateStmt struct{ b *Builder }

func (b *Builder) Update(table string) *UpdateStmt {
	b.setFinToken(";")
	b.writef("UPDATE %s SET ", Ident(table))
	return &UpdateStmt{b: b}
}

type UpdateSet struct {
	b     *Builder
	count int
}

func (s *UpdateStmt) Set(field string, kind ParamKind, value any) *UpdateSet {
	u := &UpdateSet{b: s.b}
	return u.Set(field, kind, value)
}

func (s *UpdateSet) Set(field string, kind ParamKind, value any) *UpdateSet {
	if s.count > 0 {
		s.b.write(", ")
	}
	s.count++
	if lit, ok := value.(literalValue); ok {
		s.b.writef("%s = %s", Ident(field), string(lit))
		return s
	}
	s.b.writef("%s = %s", Ident(field), s.b.Bind(kind, value))
	return s
}

type UpdateWhere struct{ b *Builder }

func (s *UpdateSet) Where(fn func(*WhereBuilder)) *UpdateWhere {
	s.b.write(" WHERE ")
	fn(&WhereBuilder{b: s.b})
	return &UpdateWhere{b: s.b}
}

func (s *UpdateSet) NoWhere() *UpdateWhere { return &UpdateWhere{b: s.b} }

func (u *UpdateWhere) Returning(fields ...string) string {
	if len(fields) > 0 {
		u.b.write(" RETURNING " + strings.Join(fields, ", "))
	}
	return u.b.Finalize()
}

func (u *UpdateWhere) Finalize() string { return u.b.Finalize() }
func (s *UpdateSet) Finalize() string   { return s.b.Finalize() }
