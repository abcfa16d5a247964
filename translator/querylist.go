package translator

import (
	"fmt"

	"github.com/stelladb/stellator/qbuilder"
	"github.com/stelladb/stellator/scheme"
)

// QueryListPlan is the compiled SELECT for fetching one relation-typed
// field's members for a given parent row (spec §4.6 QueryList: "one CTE
// per hop — Object/Set-reference/Set-reverse/View — and id-only short-
// circuit").
type QueryListPlan struct {
	SQL  string
	Args []any
}

// WriteQueryList compiles the SELECT for field's members belonging to
// parentOID. When idOnly is true (the "id-only short-circuit" of spec
// §4.6), only __oid is projected, skipping the join to the target
// scheme's own columns entirely — used when a caller only needs
// membership, not the member rows.
func (c *Context) WriteQueryList(field *scheme.Field, parentOID int64, idOnly bool) (*QueryListPlan, error) {
	var plan *QueryListPlan
	var err error
	switch field.Type {
	case scheme.TypeSet:
		plan, err = c.writeSetQueryList(field, parentOID, idOnly)
	case scheme.TypeArray:
		plan, err = c.writeArrayQueryList(field, parentOID)
	case scheme.TypeView:
		plan, err = c.writeViewQueryList(field, parentOID, idOnly)
	default:
		return nil, fmt.Errorf("translator: field %q is not a listable relation", field.Name)
	}
	if err != nil {
		return nil, err
	}
	return trace("WriteQueryList:"+field.Name, plan), nil
}

func (c *Context) writeSetQueryList(field *scheme.Field, parentOID int64, idOnly bool) (*QueryListPlan, error) {
	target := field.Set.Target
	b := qbuilder.New(c.Dialect)

	if fk, ok := c.Scheme.ResolveForeignLink(field); ok {
		// Set-reference hop: target rows whose reciprocal FK points here.
		cols := []string{qbuilder.Ident("__oid")}
		if !idOnly {
			for _, f := range target.Fields() {
				if !f.IsRelation() {
					cols = append(cols, qbuilder.Ident(f.Name))
				}
			}
		}
		sqlText := b.Select().Fields(cols...).From(target.Name, "").
			Where(func(wb *qbuilder.WhereBuilder) { wb.Eq(fk.Name, qbuilder.KindInt, parentOID) }).
			Finalize()
		return &QueryListPlan{SQL: sqlText, Args: flatten(b)}, nil
	}

	// Set-reverse (many-to-many) hop: one CTE over the join table, then
	// joined against the target's own columns unless idOnly.
	joinTable := c.Scheme.Name + "_f_" + field.Name
	b.With("members", func(sub *qbuilder.Builder) {
		sub.Select().Fields(qbuilder.Ident("target_id")).From(joinTable, "").
			Where(func(wb *qbuilder.WhereBuilder) { wb.Eq("parent_id", qbuilder.KindInt, parentOID) }).
			Finalize()
	})
	cols := []string{qbuilder.Qualified("members", "target_id")}
	fromAlias := "members"
	if !idOnly {
		cols = []string{qbuilder.Aliased(qbuilder.Qualified("t", "__oid"), "__oid")}
		for _, f := range target.Fields() {
			if !f.IsRelation() {
				cols = append(cols, qbuilder.Qualified("t", f.Name))
			}
		}
		sqlText := b.Select().Fields(cols...).FromRaw(qbuilder.Ident("members")).
			Join("INNER JOIN", target.Name, "t", fmt.Sprintf("%s = %s", qbuilder.Qualified("t", "__oid"), qbuilder.Qualified("members", "target_id"))).
			NoWhere().Finalize()
		return &QueryListPlan{SQL: sqlText, Args: flatten(b)}, nil
	}
	sqlText := b.Select().Fields(cols...).FromRaw(fromAlias).NoWhere().Finalize()
	return &QueryListPlan{SQL: sqlText, Args: flatten(b)}, nil
}

func (c *Context) writeArrayQueryList(field *scheme.Field, parentOID int64) (*QueryListPlan, error) {
	table := c.Scheme.Name + "_f_" + field.Name
	b := qbuilder.New(c.Dialect)
	sqlText := b.Select().Fields(qbuilder.Ident("data")).From(table, "").
		Where(func(wb *qbuilder.WhereBuilder) { wb.Eq("parent_id", qbuilder.KindInt, parentOID) }).
		Finalize()
	return &QueryListPlan{SQL: sqlText, Args: flatten(b)}, nil
}

func (c *Context) writeViewQueryList(field *scheme.Field, parentOID int64, idOnly bool) (*QueryListPlan, error) {
	viewTable := c.Scheme.Name + "_f_" + field.Name + "_view"
	target := field.View.Target
	b := qbuilder.New(c.Dialect)

	cols := []string{qbuilder.Aliased(qbuilder.Qualified("v", "__vid"), "__vid")}
	if idOnly {
		cols = append(cols, qbuilder.Aliased(qbuilder.Qualified("v", "target_id"), "__oid"))
		sqlText := b.Select().Fields(cols...).From(viewTable, "v").
			Where(func(wb *qbuilder.WhereBuilder) {
				wb.Raw(fmt.Sprintf("%s = %s", qbuilder.Qualified("v", "tag"), wb.Bind(qbuilder.KindInt, parentOID)))
			}).
			Finalize()
		return &QueryListPlan{SQL: sqlText, Args: flatten(b)}, nil
	}

	cols = append(cols, qbuilder.Aliased(qbuilder.Qualified("t", "__oid"), "__oid"))
	fields := field.View.Fields
	if len(fields) == 0 {
		for _, f := range target.Fields() {
			if !f.IsRelation() {
				fields = append(fields, f.Name)
			}
		}
	}
	for _, name := range fields {
		cols = append(cols, qbuilder.Qualified("t", name))
	}
	sqlText := b.Select().Fields(cols...).From(viewTable, "v").
		JoinRaw("LEFT JOIN", qbuilder.Ident(target.Name)+" t",
			fmt.Sprintf("%s = %s", qbuilder.Qualified("t", "__oid"), qbuilder.Qualified("v", "target_id"))).
		Where(func(wb *qbuilder.WhereBuilder) {
			wb.Raw(fmt.Sprintf("%s = %s", qbuilder.Qualified("v", "tag"), wb.Bind(qbuilder.KindInt, parentOID)))
		}).
		Finalize()
	return &QueryListPlan{SQL: sqlText, Args: flatten(b)}, nil
}

func flatten(b *qbuilder.Builder) []any {
	params := b.Params()
	out := make([]any, len(params))
	for i, p := range params {
		out[i] = p.Value
	}
	return out
}
