package translator

import (
	"fmt"

	"github.com/stelladb/stellator/cursor"
	"github.com/stelladb/stellator/qbuilder"
	"github.com/stelladb/stellator/scheme"
)

// WriteQueryDelta compiles the two-stage aggregate-then-right-join CTE
// spec §4.6 describes for a change-audited scheme: the first stage
// aggregates `__delta_{scheme}` rows per object since a watermark down to
// one (action, time, user) per object, and the second stage right-joins
// that aggregate against the live table so a deleted row still surfaces
// (as a delta-only record with every scalar column NULL).
func (c *Context) WriteQueryDelta(sinceTime int64) (*QueryListPlan, error) {
	if !c.Scheme.HasDeltaFlag() {
		return nil, fmt.Errorf("translator: scheme %q is not delta-audited", c.Scheme.Name)
	}
	deltaTable := "__delta_" + c.Scheme.Name
	b := qbuilder.New(c.Dialect)

	b.With("latest_delta", func(sub *qbuilder.Builder) {
		sub.Select().
			Fields(
				qbuilder.Ident("object"),
				qbuilder.Aliased("MAX("+qbuilder.Ident("time")+")", "time"),
			).
			From(deltaTable, "").
			Where(func(wb *qbuilder.WhereBuilder) { wb.Ge("time", qbuilder.KindInt, sinceTime) }).
			GroupBy("object").
			NoHaving().Finalize()
	})

	cols := []string{
		qbuilder.Aliased(qbuilder.Qualified("d", "object"), cursor.DeltaColumns.Object),
		qbuilder.Aliased(qbuilder.Qualified("d", "action"), cursor.DeltaColumns.Action),
		qbuilder.Aliased(qbuilder.Qualified("ld", "time"), cursor.DeltaColumns.Time),
		qbuilder.Aliased(qbuilder.Qualified("d", "user"), cursor.DeltaColumns.User),
		qbuilder.Aliased(qbuilder.Qualified("t", "__oid"), "__oid"),
	}
	for _, f := range c.Scheme.Fields() {
		if !f.IsRelation() {
			cols = append(cols, qbuilder.Qualified("t", f.Name))
		}
	}

	sqlText := b.Select().Fields(cols...).
		FromRaw(qbuilder.Ident("latest_delta") + " ld").
		Join("INNER JOIN", deltaTable, "d",
			fmt.Sprintf("%s = %s AND %s = %s",
				qbuilder.Qualified("d", "object"), qbuilder.Qualified("ld", "object"),
				qbuilder.Qualified("d", "time"), qbuilder.Qualified("ld", "time"))).
		JoinRaw("LEFT JOIN", qbuilder.Ident(c.Scheme.Name)+" t",
			fmt.Sprintf("%s = %s", qbuilder.Qualified("t", "__oid"), qbuilder.Qualified("d", "object"))).
		NoWhere().Finalize()

	return trace("WriteQueryDelta", &QueryListPlan{SQL: sqlText, Args: flatten(b)}), nil
}

// WriteQueryViewDelta compiles the view-delta variant (spec §4.6
// "including the view-delta (tag, object) = (parent_id, target_id) join
// and __vid tombstone signalling"): changes to a View field's membership
// for one parent row since a watermark, joined back against the live
// view-member table so a row that has left the view still surfaces with
// __vid = 0.
func (c *Context) WriteQueryViewDelta(field *scheme.Field, parentOID int64, sinceTime int64) (*QueryListPlan, error) {
	if field.Type != scheme.TypeView || field.View == nil || !field.View.Delta {
		return nil, fmt.Errorf("translator: field %q is not a delta-tracked view", field.Name)
	}
	deltaTable := c.Scheme.Name + "_f_" + field.Name + "_delta"
	viewTable := c.Scheme.Name + "_f_" + field.Name + "_view"
	b := qbuilder.New(c.Dialect)

	b.With("latest_view_delta", func(sub *qbuilder.Builder) {
		sub.Select().
			Fields(
				qbuilder.Ident("object"),
				qbuilder.Aliased("MAX("+qbuilder.Ident("time")+")", "time"),
			).
			From(deltaTable, "").
			Where(func(wb *qbuilder.WhereBuilder) {
				wb.Eq("tag", qbuilder.KindInt, parentOID)
				wb.Ge("time", qbuilder.KindInt, sinceTime)
			}).
			GroupBy("object").
			NoHaving().Finalize()
	})

	cols := []string{
		qbuilder.Aliased(qbuilder.Qualified("d", "object"), "__oid"),
		qbuilder.Aliased("COALESCE("+qbuilder.Qualified("v", "__vid")+", 0)", "__vid"),
		qbuilder.Aliased(qbuilder.Qualified("lvd", "time"), cursor.DeltaColumns.Time),
	}
	sqlText := b.Select().Fields(cols...).
		FromRaw(qbuilder.Ident("latest_view_delta") + " lvd").
		Join("INNER JOIN", deltaTable, "d",
			fmt.Sprintf("%s = %s AND %s = %s",
				qbuilder.Qualified("d", "object"), qbuilder.Qualified("lvd", "object"),
				qbuilder.Qualified("d", "time"), qbuilder.Qualified("lvd", "time"))).
		JoinRaw("LEFT JOIN", qbuilder.Ident(viewTable)+" v",
			fmt.Sprintf("(%s, %s) = (%s, %s)",
				qbuilder.Qualified("v", "tag"), qbuilder.Qualified("v", "target_id"),
				qbuilder.Literal(fmt.Sprintf("%d", parentOID)), qbuilder.Qualified("d", "object"))).
		NoWhere().Finalize()

	return trace("WriteQueryViewDelta", &QueryListPlan{SQL: sqlText, Args: flatten(b)}), nil
}
