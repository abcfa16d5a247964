package worker

import (
	"context"
	"strconv"

	"github.com/stelladb/stellator/qbuilder"
	"github.com/stelladb/stellator/scheme"
	"github.com/stelladb/stellator/sdberr"
	"github.com/stelladb/stellator/value"
)

// applyRelations is the post-update protocol of spec §4.5: after the main
// row exists, each relation-typed field named in patch is applied as its
// own statement(s) against the field's backing table, grounded on the
// original STStorageWorker.cc field-splitting logic (main-statement
// fields vs. pending-relation fields). Object fields never reach here —
// scheme.FieldType.IsRelation() excludes them, so they are written
// directly as a main-row column by Create/Update.
func (w *Worker) applyRelations(ctx context.Context, parentOID int64, relations []*scheme.Field, patch value.Value) error {
	for _, f := range relations {
		v, _ := patch.Get(f.Name)
		var err error
		switch f.Type {
		case scheme.TypeSet:
			err = w.applySetField(ctx, f, parentOID, v)
		case scheme.TypeArray:
			err = w.applyArrayField(ctx, f, parentOID, v)
		case scheme.TypeView, scheme.TypeFullTextView:
			err = sdberr.New(sdberr.KindSchemaValidation, "field %q is derived and cannot be written directly", f.Name)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// relationTable names the backing table for a Set/Array field, mirroring
// the original implicit join/element-table naming ("{scheme}_f_{field}").
func relationTable(s *scheme.Scheme, f *scheme.Field) string {
	return s.Name + "_f_" + f.Name
}

// applySetField implements the Set-of-ids and Set-of-dicts branches of the
// post-update protocol (spec §4.5 step covering Set fields): patch.v may
// be an array of int oids (link existing Target rows) or an array of
// dicts (create new Target rows with the reciprocal FK set).
func (w *Worker) applySetField(ctx context.Context, f *scheme.Field, parentOID int64, v value.Value) error {
	if f.Set == nil || f.Set.Target == nil {
		return sdberr.New(sdberr.KindBug, "set field %q missing SetRelation", f.Name)
	}
	items, ok := v.AsArray()
	if !ok {
		if v.IsNull() {
			items = nil
		} else {
			return sdberr.New(sdberr.KindSchemaValidation, "set field %q expects an array", f.Name)
		}
	}

	fk, hasFK := w.scheme.ResolveForeignLink(f)
	if hasFK {
		return w.applyOneToManySet(ctx, f, fk, parentOID, items)
	}
	return w.applyManyToManySet(ctx, f, parentOID, items)
}

// applyOneToManySet re-points the Target rows' reciprocal Object field
// (fk) to parentOID for every oid named in items, and sets it to NULL,
// whatever fk.Object.OnRemove says, for Target rows that currently point
// at parentOID but are no longer named.
func (w *Worker) applyOneToManySet(ctx context.Context, f, fk *scheme.Field, parentOID int64, items []value.Value) error {
	target := f.Set.Target
	var keep []int64
	for _, it := range items {
		if oid, ok := it.AsInt(); ok {
			keep = append(keep, oid)
		} else if it.Kind() == value.KindDict {
			// nested create: spawn a Target row with fk pre-set.
			nested := it
			nested.Set(fk.Name, value.Int(parentOID))
			sub := New(target, w.tx, Options{Role: w.opts.Role})
			if _, err := sub.Create(ctx, nested); err != nil {
				return err
			}
		}
	}

	b := qbuilder.New(w.dialect())
	literals := make([]string, len(keep))
	for i, oid := range keep {
		literals[i] = qbuilder.Literal(strconv.FormatInt(oid, 10))
	}

	clearStmt := b.Update(target.Name).
		Set(fk.Name, qbuilder.KindInt, nil)
	var clearSQL string
	if len(keep) > 0 {
		clearSQL = clearStmt.Where(func(wb *qbuilder.WhereBuilder) {
			wb.Eq(fk.Name, qbuilder.KindInt, parentOID)
			wb.NotIn("__oid", literals)
		}).Finalize()
	} else {
		clearSQL = clearStmt.Where(func(wb *qbuilder.WhereBuilder) {
			wb.Eq(fk.Name, qbuilder.KindInt, parentOID)
		}).Finalize()
	}
	if _, err := w.tx.Exec(ctx, clearSQL, flattenParams(b)...); err != nil {
		return err
	}

	if len(keep) == 0 {
		return nil
	}
	b2 := qbuilder.New(w.dialect())
	literals2 := make([]string, len(keep))
	for i, oid := range keep {
		literals2[i] = strconv.FormatInt(oid, 10)
	}
	setSQL := b2.Update(target.Name).
		Set(fk.Name, qbuilder.KindInt, parentOID).
		Where(func(wb *qbuilder.WhereBuilder) { wb.In("__oid", literals2) }).
		Finalize()
	_, err := w.tx.Exec(ctx, setSQL, flattenParams(b2)...)
	return err
}

// applyManyToManySet replaces the join-table rows for parentOID (no
// reciprocal Object field was resolvable on Target, per spec §3.2's
// many-to-many fallback).
func (w *Worker) applyManyToManySet(ctx context.Context, f *scheme.Field, parentOID int64, items []value.Value) error {
	table := relationTable(w.scheme, f)

	b := qbuilder.New(w.dialect())
	delSQL := b.DeleteFrom(table).
		Where(func(wb *qbuilder.WhereBuilder) { wb.Eq("parent_id", qbuilder.KindInt, parentOID) }).
		Finalize()
	if _, err := w.tx.Exec(ctx, delSQL, flattenParams(b)...); err != nil {
		return err
	}

	for _, it := range items {
		oid, ok := it.AsInt()
		if !ok {
			continue
		}
		ib := qbuilder.New(w.dialect())
		insSQL := ib.InsertInto(table).
			Fields("parent_id", "target_id").
			Values([]qbuilder.ParamKind{qbuilder.KindInt, qbuilder.KindInt}, []any{parentOID, oid}).
			NoConflictClause().Finalize()
		if _, err := w.tx.Exec(ctx, insSQL, flattenParams(ib)...); err != nil {
			return err
		}
	}
	return nil
}

// applyArrayField replaces every row of the field's element table with
// the entries named in v (spec §4.5: Array fields are stored one row per
// element rather than as a single main-row column).
func (w *Worker) applyArrayField(ctx context.Context, f *scheme.Field, parentOID int64, v value.Value) error {
	table := relationTable(w.scheme, f)
	items, ok := v.AsArray()
	if !ok && !v.IsNull() {
		return sdberr.New(sdberr.KindSchemaValidation, "array field %q expects an array", f.Name)
	}

	b := qbuilder.New(w.dialect())
	delSQL := b.DeleteFrom(table).
		Where(func(wb *qbuilder.WhereBuilder) { wb.Eq("parent_id", qbuilder.KindInt, parentOID) }).
		Finalize()
	if _, err := w.tx.Exec(ctx, delSQL, flattenParams(b)...); err != nil {
		return err
	}

	kind := paramKind(f.ArrayOf)
	for _, item := range items {
		sv, err := arrayElementValue(f.ArrayOf, item)
		if err != nil {
			return err
		}
		ib := qbuilder.New(w.dialect())
		insSQL := ib.InsertInto(table).
			Fields("parent_id", "data").
			Values([]qbuilder.ParamKind{qbuilder.KindInt, kind}, []any{parentOID, sv}).
			NoConflictClause().Finalize()
		if _, err := w.tx.Exec(ctx, insSQL, flattenParams(ib)...); err != nil {
			return err
		}
	}
	return nil
}

func arrayElementValue(t scheme.FieldType, v value.Value) (any, error) {
	switch t {
	case scheme.TypeInteger:
		i, ok := v.AsInt()
		if !ok {
			return nil, sdberr.New(sdberr.KindSchemaValidation, "array element expects int")
		}
		return i, nil
	case scheme.TypeFloat:
		f, ok := v.AsFloat()
		if !ok {
			return nil, sdberr.New(sdberr.KindSchemaValidation, "array element expects float")
		}
		return f, nil
	case scheme.TypeText:
		s, ok := v.AsString()
		if !ok {
			return nil, sdberr.New(sdberr.KindSchemaValidation, "array element expects text")
		}
		return s, nil
	default:
		s, _ := v.AsString()
		return s, nil
	}
}
