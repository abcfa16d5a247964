package qbuilder

import "strings"

// Delete -> [Where] -> [Returning] -> Finalized

type DeleteStmt struct{ b *Builder }

func (b *Builder) DeleteFrom(table string) *DeleteStmt {
	b.setFinToken(";")
	b.writef("DELETE FROM %s", Ident(table))
	return &DeleteStmt{b: b}
}

type DeleteWhere struct{ b *Builder }

func (s *DeleteStmt) Where(fn func(*WhereBuilder)) *DeleteWhere {
	s.b.write(" WHERE ")
	fn(&WhereBuilder{b: s.b})
	return &DeleteWhere{b: s.b}
}

func (s *DeleteStmt) NoWhere() *DeleteWhere { return &DeleteWhere{b: s.b} }

func (d *DeleteWhere) Returning(fields ...string) string {
	if len(fields) > 0 {
		d.b.write(" RETURNING " + strings.Join(fields, ", "))
	}
	return d.b.Finalize()
}

func (d *DeleteWhere) Finalize() string { return d.b.Finalize() }
