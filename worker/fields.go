package worker

import (
	"context"

	"github.com/stelladb/stellator/qbuilder"
	"github.com/stelladb/stellator/scheme"
	"github.com/stelladb/stellator/sdberr"
	"github.com/stelladb/stellator/translator"
	"github.com/stelladb/stellator/value"
)

// GetField fetches a single field's value without decoding the whole row
// (spec §4.5 GetField). Relation fields are read through getRelationField,
// so the caller still gets one Worker-shaped answer regardless of field kind.
func (w *Worker) GetField(ctx context.Context, oid int64, name string) (value.Value, error) {
	f, ok := w.scheme.FieldByName(name)
	if !ok {
		return value.Null(), sdberr.New(sdberr.KindSchemaValidation, "no field %q on scheme %q", name, w.scheme.Name)
	}
	if f.IsRelation() {
		return w.getRelationField(ctx, f, oid)
	}

	if err := w.tx.checkAborted(); err != nil {
		return value.Null(), err
	}
	if err := w.checkPolicy(scheme.ReadFilter, oid); err != nil {
		return value.Null(), err
	}

	b := qbuilder.New(w.dialect())
	sqlText := b.Select().Fields(qbuilder.Ident(f.Name)).From(w.scheme.Name, "").
		Where(func(wb *qbuilder.WhereBuilder) { wb.Eq("__oid", qbuilder.KindInt, oid) }).
		Finalize()

	var out any
	if err := w.tx.QueryRow(ctx, sqlText, flattenParams(b)...).Scan(&out); err != nil {
		return value.Null(), sdberr.Wrap(sdberr.KindNotFound, err, "%s:%d.%s not found", w.scheme.Name, oid, name)
	}
	return decodeRawScalar(f, out), nil
}

func decodeRawScalar(f *scheme.Field, raw any) value.Value {
	if raw == nil {
		return value.Null()
	}
	switch f.Type {
	case scheme.TypeInteger, scheme.TypeObject, scheme.TypeFile, scheme.TypeImage:
		switch t := raw.(type) {
		case int64:
			return value.Int(t)
		case int:
			return value.Int(int64(t))
		}
	case scheme.TypeFloat:
		if fl, ok := raw.(float64); ok {
			return value.Float(fl)
		}
	case scheme.TypeBoolean:
		if b, ok := raw.(bool); ok {
			return value.Bool(b)
		}
	case scheme.TypeText:
		switch t := raw.(type) {
		case string:
			return value.String(t)
		case []byte:
			return value.String(string(t))
		}
	case scheme.TypeBytes, scheme.TypeData, scheme.TypeExtra:
		if b, ok := raw.([]byte); ok {
			return value.Bytes(b)
		}
	}
	return value.Null()
}

// getRelationField fetches a relation-typed field's current members via
// its backing table (or, for FullTextView, its own main-row column), for
// callers that want just that one field rather than a full Select
// projection.
func (w *Worker) getRelationField(ctx context.Context, f *scheme.Field, oid int64) (value.Value, error) {
	if err := w.tx.checkAborted(); err != nil {
		return value.Null(), err
	}
	if err := w.checkPolicy(scheme.ReadFilter, oid); err != nil {
		return value.Null(), err
	}

	switch f.Type {
	case scheme.TypeArray:
		return w.selectElementColumn(ctx, relationTable(w.scheme, f), oid, "data")
	case scheme.TypeSet:
		if fk, ok := w.scheme.ResolveForeignLink(f); ok {
			return w.selectElementColumn(ctx, f.Set.Target.Name, oid, "__oid", fk.Name)
		}
		return w.selectElementColumn(ctx, relationTable(w.scheme, f), oid, "target_id")
	case scheme.TypeView:
		return w.selectViewMembers(ctx, f, oid)
	case scheme.TypeFullTextView:
		// FullTextView is a scalar tsvector (Postgres) / TEXT (SQLite)
		// column on this scheme's own row, not a join-table relation like
		// View, so it reads as a plain column rather than via
		// translator.WriteQueryList.
		return w.selectFullTextScalar(ctx, f, oid)
	default:
		return value.Null(), sdberr.New(sdberr.KindSchemaValidation, "field %q is not independently fetchable", f.Name)
	}
}

// selectViewMembers runs the translator's View-field query list and
// decodes each row into a dict of the view's __vid/__oid columns plus the
// target scheme's own projected field columns.
func (w *Worker) selectViewMembers(ctx context.Context, f *scheme.Field, oid int64) (value.Value, error) {
	tc := translator.New(w.dialect(), w.scheme)
	plan, err := tc.WriteQueryList(f, oid, false)
	if err != nil {
		return value.Null(), sdberr.Wrap(sdberr.KindBug, err, "building view query for %q", f.Name)
	}
	rows, err := w.tx.Query(ctx, plan.SQL, plan.Args...)
	if err != nil {
		return value.Null(), err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return value.Null(), sdberr.Wrap(sdberr.KindBackendUnavailable, err, "reading view columns for %q", f.Name)
	}
	target := f.View.Target

	out := value.Array()
	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return value.Null(), sdberr.Wrap(sdberr.KindBackendUnavailable, err, "scanning view row for %q", f.Name)
		}
		doc := value.NewDict()
		for i, col := range cols {
			switch col {
			case "__vid", "__oid":
				if iv, ok := raw[i].(int64); ok {
					doc.Set(col, value.Int(iv))
				}
			default:
				if tf, ok := target.FieldByName(col); ok {
					doc.Set(col, decodeRawScalar(tf, raw[i]))
				}
			}
		}
		out.Append(doc)
	}
	if err := rows.Err(); err != nil {
		return value.Null(), sdberr.Wrap(sdberr.KindBackendUnavailable, err, "reading view rows for %q", f.Name)
	}
	return out, nil
}

// selectFullTextScalar reads f's raw tsvector/TEXT column for oid, the
// same shape GetField uses for any other scalar field.
func (w *Worker) selectFullTextScalar(ctx context.Context, f *scheme.Field, oid int64) (value.Value, error) {
	b := qbuilder.New(w.dialect())
	sqlText := b.Select().Fields(qbuilder.Ident(f.Name)).From(w.scheme.Name, "").
		Where(func(wb *qbuilder.WhereBuilder) { wb.Eq("__oid", qbuilder.KindInt, oid) }).
		Finalize()

	var out any
	if err := w.tx.QueryRow(ctx, sqlText, flattenParams(b)...).Scan(&out); err != nil {
		return value.Null(), sdberr.Wrap(sdberr.KindNotFound, err, "%s:%d.%s not found", w.scheme.Name, oid, f.Name)
	}
	switch t := out.(type) {
	case string:
		return value.String(t), nil
	case []byte:
		return value.String(string(t)), nil
	default:
		return value.Null(), nil
	}
}

// selectElementColumn returns an array Value of col read from table where
// filterCol (default "parent_id") equals oid.
func (w *Worker) selectElementColumn(ctx context.Context, table string, oid int64, col string, filterCol ...string) (value.Value, error) {
	fc := "parent_id"
	if len(filterCol) > 0 {
		fc = filterCol[0]
	}
	b := qbuilder.New(w.dialect())
	sqlText := b.Select().Fields(qbuilder.Ident(col)).From(table, "").
		Where(func(wb *qbuilder.WhereBuilder) { wb.Eq(fc, qbuilder.KindInt, oid) }).
		Finalize()
	rows, err := w.tx.Query(ctx, sqlText, flattenParams(b)...)
	if err != nil {
		return value.Null(), err
	}
	defer rows.Close()

	out := value.Array()
	for rows.Next() {
		var raw any
		if err := rows.Scan(&raw); err != nil {
			return value.Null(), sdberr.Wrap(sdberr.KindBackendUnavailable, err, "scanning %s", table)
		}
		switch t := raw.(type) {
		case int64:
			out.Append(value.Int(t))
		case float64:
			out.Append(value.Float(t))
		case string:
			out.Append(value.String(t))
		case []byte:
			out.Append(value.String(string(t)))
		}
	}
	if err := rows.Err(); err != nil {
		return value.Null(), sdberr.Wrap(sdberr.KindBackendUnavailable, err, "reading %s", table)
	}
	return out, nil
}

// SetField overwrites a single field's value via the main-row UPDATE path
// (scalar) or the post-update fan-out (relation), without requiring a
// caller to build a full patch document (spec §4.5 SetField).
func (w *Worker) SetField(ctx context.Context, oid int64, name string, v value.Value) error {
	f, ok := w.scheme.FieldByName(name)
	if !ok {
		return sdberr.New(sdberr.KindSchemaValidation, "no field %q on scheme %q", name, w.scheme.Name)
	}
	patch := value.NewDict()
	patch.Set(f.Name, v)
	_, err := w.Update(ctx, oid, patch)
	return err
}

// ClearField resets a field to its empty state: NULL for scalars, an
// empty set/array for relation fields (spec §4.5 ClearField).
func (w *Worker) ClearField(ctx context.Context, oid int64, name string) error {
	f, ok := w.scheme.FieldByName(name)
	if !ok {
		return sdberr.New(sdberr.KindSchemaValidation, "no field %q on scheme %q", name, w.scheme.Name)
	}
	patch := value.NewDict()
	if f.IsRelation() {
		patch.Set(f.Name, value.Array())
	} else {
		patch.Set(f.Name, value.Null())
	}
	_, err := w.Update(ctx, oid, patch)
	return err
}

// AppendField adds items to a Set or Array field without replacing the
// existing membership (spec §4.5 AppendField), by reading the current
// members, merging, and re-applying via the post-update path.
func (w *Worker) AppendField(ctx context.Context, oid int64, name string, items value.Value) error {
	f, ok := w.scheme.FieldByName(name)
	if !ok {
		return sdberr.New(sdberr.KindSchemaValidation, "no field %q on scheme %q", name, w.scheme.Name)
	}
	if f.Type != scheme.TypeSet && f.Type != scheme.TypeArray {
		return sdberr.New(sdberr.KindSchemaValidation, "field %q does not support append", name)
	}
	current, err := w.getRelationField(ctx, f, oid)
	if err != nil {
		return err
	}
	merged := current
	newItems, _ := items.AsArray()
	for _, it := range newItems {
		merged.Append(it)
	}
	patch := value.NewDict()
	patch.Set(f.Name, merged)
	_, err = w.Update(ctx, oid, patch)
	return err
}

// CountField reports the number of members of a Set/Array field (spec
// §4.5 CountField) without materialising them.
func (w *Worker) CountField(ctx context.Context, oid int64, name string) (int64, error) {
	f, ok := w.scheme.FieldByName(name)
	if !ok {
		return 0, sdberr.New(sdberr.KindSchemaValidation, "no field %q on scheme %q", name, w.scheme.Name)
	}
	if err := w.tx.checkAborted(); err != nil {
		return 0, err
	}
	if err := w.checkPolicy(scheme.ReadFilter, oid); err != nil {
		return 0, err
	}

	if f.Type == scheme.TypeView {
		return w.countViewMembers(ctx, f, oid)
	}

	var table, filterCol string
	switch f.Type {
	case scheme.TypeArray:
		table, filterCol = relationTable(w.scheme, f), "parent_id"
	case scheme.TypeSet:
		if fk, ok := w.scheme.ResolveForeignLink(f); ok {
			table, filterCol = f.Set.Target.Name, fk.Name
		} else {
			table, filterCol = relationTable(w.scheme, f), "parent_id"
		}
	default:
		return 0, sdberr.New(sdberr.KindSchemaValidation, "field %q is not countable", name)
	}

	b := qbuilder.New(w.dialect())
	sqlText := b.Select().Fields("COUNT(*)").From(table, "").
		Where(func(wb *qbuilder.WhereBuilder) { wb.Eq(filterCol, qbuilder.KindInt, oid) }).
		Finalize()
	var n int64
	if err := w.tx.QueryRow(ctx, sqlText, flattenParams(b)...).Scan(&n); err != nil {
		return 0, sdberr.Wrap(sdberr.KindBackendUnavailable, err, "count field %q", name)
	}
	return n, nil
}

// countViewMembers counts a View field's current members via the
// translator's id-only query list, wrapped in a COUNT(*) so the target
// scheme's own columns are never fetched just to be thrown away.
func (w *Worker) countViewMembers(ctx context.Context, f *scheme.Field, oid int64) (int64, error) {
	tc := translator.New(w.dialect(), w.scheme)
	plan, err := tc.WriteQueryList(f, oid, true)
	if err != nil {
		return 0, sdberr.Wrap(sdberr.KindBug, err, "building view count query for %q", f.Name)
	}
	inner := plan.SQL
	if n := len(inner); n > 0 && inner[n-1] == ';' {
		inner = inner[:n-1]
	}
	sqlText := "SELECT COUNT(*) FROM (" + inner + ") AS members"
	var n int64
	if err := w.tx.QueryRow(ctx, sqlText, plan.Args...).Scan(&n); err != nil {
		return 0, sdberr.Wrap(sdberr.KindBackendUnavailable, err, "count view field %q", f.Name)
	}
	return n, nil
}
