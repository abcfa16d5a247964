package worker

import (
	"context"

	"github.com/stelladb/stellator/cursor"
	"github.com/stelladb/stellator/qbuilder"
	"github.com/stelladb/stellator/scheme"
	"github.com/stelladb/stellator/sdberr"
	"github.com/stelladb/stellator/translator"
	"github.com/stelladb/stellator/value"
)

// sharedFTSCache backs the OpIncludes path of applyConditions: one
// process-wide LRU of compiled full-text match expressions, per
// translator.FullTextCache's own doc comment ("generalized from
// per-connection to process-wide").
var sharedFTSCache = translator.NewFullTextCache(0)

// Worker is one Scheme-bound view over a Transaction (spec §4.5): it
// resolves access policy, composes SQL via qbuilder for the scheme's
// non-relation fields, decodes rows via cursor, and fans relation-typed
// fields out through the post-update protocol (postupdate.go). Select's
// ordering, keyset pagination and full-text ranking are delegated to the
// translator package via the SelectQuery a caller passes in; this file
// otherwise covers the oid-addressed single-row surface spec §4.5 names
// (Get/Create/Update/Remove/Touch/*Field) directly.
type Worker struct {
	scheme *scheme.Scheme
	tx     *Transaction
	opts   Options
}

// New binds scheme to tx under opts.
func New(s *scheme.Scheme, tx *Transaction, opts Options) *Worker {
	return &Worker{scheme: s, tx: tx, opts: opts}
}

func (w *Worker) dialect() qbuilder.Dialect {
	if w.tx.adapter.Driver.DialectName() == "sqlite" {
		return qbuilder.SQLite
	}
	return qbuilder.Postgres
}

func (w *Worker) effectiveRole() scheme.Role {
	if w.opts.Role > w.tx.role {
		return w.opts.Role
	}
	return w.tx.role
}

// userID resolves the acting user id for predicate-style access policies;
// 0 when no user is bound (system/anonymous actions).
func (w *Worker) userID() int64 {
	if v, ok := w.tx.scratch["__userID"]; ok {
		if i, ok2 := v.AsInt(); ok2 {
			return i
		}
	}
	return 0
}

// checkPolicy evaluates the scheme's access policy for the effective role
// and returns sdberr.SchemaDenied when the operation is not permitted
// (spec §4.5: "A denial returns an empty value.Value ... without emitting
// SQL").
func (w *Worker) checkPolicy(op scheme.HookKind, objectOID int64) error {
	role := w.effectiveRole()
	if !w.scheme.AllowsRole(op, role) {
		return sdberr.New(sdberr.KindSchemaDenied, "role denied %s on scheme %q", op, w.scheme.Name)
	}
	policy := w.scheme.PolicyFor(role)
	if !policy.Evaluate(op, w.userID(), objectOID) {
		return sdberr.New(sdberr.KindSchemaDenied, "role denied %s on scheme %q", op, w.scheme.Name)
	}
	return nil
}

func paramKind(t scheme.FieldType) qbuilder.ParamKind {
	switch t {
	case scheme.TypeInteger, scheme.TypeObject, scheme.TypeFile, scheme.TypeImage:
		return qbuilder.KindInt
	case scheme.TypeFloat:
		return qbuilder.KindFloat
	case scheme.TypeBoolean:
		return qbuilder.KindBool
	case scheme.TypeText:
		return qbuilder.KindText
	case scheme.TypeBytes, scheme.TypeData, scheme.TypeExtra:
		return qbuilder.KindBlob
	default:
		return qbuilder.KindText
	}
}

// scalarValue extracts the Go value qbuilder.Bind expects for f from v.
func scalarValue(f *scheme.Field, v value.Value) (any, error) {
	if v.IsNull() {
		return nil, nil
	}
	switch f.Type {
	case scheme.TypeInteger, scheme.TypeObject, scheme.TypeFile, scheme.TypeImage:
		i, ok := v.AsInt()
		if !ok {
			return nil, sdberr.New(sdberr.KindSchemaValidation, "field %q expects int, got %s", f.Name, v.Kind())
		}
		return i, nil
	case scheme.TypeFloat:
		fl, ok := v.AsFloat()
		if !ok {
			return nil, sdberr.New(sdberr.KindSchemaValidation, "field %q expects float, got %s", f.Name, v.Kind())
		}
		return fl, nil
	case scheme.TypeBoolean:
		b, ok := v.AsBool()
		if !ok {
			return nil, sdberr.New(sdberr.KindSchemaValidation, "field %q expects bool, got %s", f.Name, v.Kind())
		}
		return b, nil
	case scheme.TypeText:
		s, ok := v.AsString()
		if !ok {
			return nil, sdberr.New(sdberr.KindSchemaValidation, "field %q expects text, got %s", f.Name, v.Kind())
		}
		return s, nil
	case scheme.TypeBytes, scheme.TypeData, scheme.TypeExtra:
		b, ok := v.AsBytes()
		if !ok {
			return nil, sdberr.New(sdberr.KindSchemaValidation, "field %q expects bytes, got %s", f.Name, v.Kind())
		}
		return b, nil
	default:
		return nil, sdberr.New(sdberr.KindSchemaValidation, "field %q is not directly settable (type %s)", f.Name, f.Type)
	}
}

// mainFields splits patch's keys into the fields the main INSERT/UPDATE
// statement carries directly (scalar, Object) versus relation fields
// handed to the post-update fan-out (spec §4.5 post-update protocol).
func (w *Worker) mainFields(patch value.Value) (main []*scheme.Field, relations []*scheme.Field) {
	for _, key := range patch.Keys() {
		f, ok := w.scheme.FieldByName(key)
		if !ok {
			continue
		}
		if f.IsRelation() {
			relations = append(relations, f)
			continue
		}
		if f.Type == scheme.TypeVirtual {
			continue
		}
		main = append(main, f)
	}
	return main, relations
}

func (w *Worker) projectedFields() []*scheme.Field {
	return w.scheme.ResolveReadFields(w.opts.Fields)
}

func (w *Worker) virtualFields() []*scheme.Field {
	var out []*scheme.Field
	for _, f := range w.scheme.Fields() {
		if f.Type == scheme.TypeVirtual && f.VirtualRead != nil {
			out = append(out, f)
		}
	}
	return out
}

// decodeOne runs the projected+virtual columns decode for the current row
// of rows, which must already be positioned via Next().
func (w *Worker) decodeOne(ctx context.Context, c *cursor.Cursor) (value.Value, error) {
	return c.Decode(w.scheme, w.projectedFields(), w.virtualFields())
}

func (w *Worker) selectColumns() []string {
	cols := []string{qbuilder.Aliased(qbuilder.Ident("__oid"), "__oid")}
	for _, f := range w.projectedFields() {
		cols = append(cols, qbuilder.Ident(f.Name))
	}
	return cols
}

// applyConditions compiles the worker's persistent Conditions plus extra
// via translator.CompileWhere, so Get/Select/Count share the same
// In/NotIn/Includes-capable predicate compiler the relation/delta paths
// use instead of a second, narrower copy of it.
func (w *Worker) applyConditions(wb *qbuilder.WhereBuilder, extra []scheme.Condition) error {
	all := append(append([]scheme.Condition{}, w.opts.Conditions...), extra...)
	tc := translator.New(w.dialect(), w.scheme)
	if err := tc.CompileWhere(wb, all, sharedFTSCache); err != nil {
		return sdberr.Wrap(sdberr.KindBug, err, "compiling conditions")
	}
	return nil
}

// Get fetches a single row by __oid (spec §4.5 Get).
func (w *Worker) Get(ctx context.Context, oid int64) (value.Value, error) {
	ctx, end := startOp(ctx, w.scheme.Name, "get")
	defer end()
	if err := w.tx.checkAborted(); err != nil {
		return value.Null(), err
	}
	if err := w.checkPolicy(scheme.ReadFilter, oid); err != nil {
		return value.Null(), err
	}

	b := qbuilder.New(w.dialect())
	sqlText := b.Select().Fields(w.selectColumns()...).From(w.scheme.Name, "").
		Where(func(wb *qbuilder.WhereBuilder) { wb.Eq("__oid", qbuilder.KindInt, oid) }).
		Finalize()

	rows, err := w.tx.Query(ctx, sqlText, flattenParams(b)...)
	if err != nil {
		return value.Null(), err
	}
	defer rows.Close()

	c, err := cursor.New(rows)
	if err != nil {
		return value.Null(), err
	}
	if !c.Next() {
		if err := c.Err(); err != nil {
			return value.Null(), sdberr.Wrap(sdberr.KindBackendUnavailable, err, "scanning row")
		}
		return value.Null(), sdberr.New(sdberr.KindNotFound, "%s:%d not found", w.scheme.Name, oid)
	}
	return w.decodeOne(ctx, c)
}

// Select fetches every row matching extra (plus the worker's persistent
// Conditions), honouring q's ordering, keyset pagination and full-text
// ranking (spec §4.6). The zero SelectQuery behaves exactly like the
// unordered, unpaginated case: every matching row, backend-determined
// order.
func (w *Worker) Select(ctx context.Context, q SelectQuery, extra ...scheme.Condition) ([]value.Value, error) {
	ctx, end := startOp(ctx, w.scheme.Name, "select")
	defer end()
	if err := w.tx.checkAborted(); err != nil {
		return nil, err
	}
	if err := w.checkPolicy(scheme.ReadFilter, 0); err != nil {
		return nil, err
	}

	tc := translator.New(w.dialect(), w.scheme)
	var ftsCompiled string
	rankingByFTS := q.Order != nil && q.Order.Type == scheme.TypeFullTextView
	if rankingByFTS && q.FTSQuery != "" {
		ftsCompiled = sharedFTSCache.Compile(w.dialect(), w.scheme.Name, q.Order, q.FTSQuery)
	}

	cols := w.selectColumns()
	if rankingByFTS {
		cols = append(cols, tc.WriteFullTextRank(q.Order, ftsCompiled))
	}

	b := qbuilder.New(w.dialect())
	tc.PrepareTieBreakCTE(b, q.Order, q.Dir, q.Cursor, ftsCompiled)
	from := b.Select().Fields(cols...).From(w.scheme.Name, "")

	var condErr error
	var where *qbuilder.SelectWhere
	if len(w.opts.Conditions)+len(extra) == 0 && q.Cursor == nil {
		where = from.NoWhere()
	} else {
		where = from.Where(func(wb *qbuilder.WhereBuilder) {
			if condErr = w.applyConditions(wb, extra); condErr != nil {
				return
			}
			if q.Order != nil {
				condErr = tc.WritePageWhere(wb, q.Order, q.Dir, q.Cursor, ftsCompiled)
			}
		})
	}
	if condErr != nil {
		return nil, condErr
	}

	var sqlText string
	if q.Order != nil {
		orderExpr := qbuilder.Ident(q.Order.Name)
		if rankingByFTS {
			orderExpr = qbuilder.Ident("__ts_rank_" + q.Order.Name)
		}
		orderBy := where.OrderBy(orderExpr, qbuilder.Direction(q.Dir), qbuilder.NullsDefault)
		if q.Limit > 0 {
			sqlText = orderBy.Limit(q.Limit).Finalize()
		} else {
			sqlText = orderBy.Finalize()
		}
	} else {
		sqlText = where.Finalize()
	}

	rows, err := w.tx.Query(ctx, sqlText, flattenParams(b)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	c, err := cursor.New(rows)
	if err != nil {
		return nil, err
	}
	var out []value.Value
	for c.Next() {
		doc, err := w.decodeOne(ctx, c)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	if err := c.Err(); err != nil {
		return nil, sdberr.Wrap(sdberr.KindBackendUnavailable, err, "scanning rows")
	}
	return out, nil
}

// Count returns the number of rows matching extra plus the worker's
// persistent Conditions (spec §4.5 Count).
func (w *Worker) Count(ctx context.Context, extra ...scheme.Condition) (int64, error) {
	ctx, end := startOp(ctx, w.scheme.Name, "count")
	defer end()
	if err := w.tx.checkAborted(); err != nil {
		return 0, err
	}
	if err := w.checkPolicy(scheme.ReadFilter, 0); err != nil {
		return 0, err
	}

	b := qbuilder.New(w.dialect())
	stmt := b.Select().Fields("COUNT(*)").From(w.scheme.Name, "")
	var sqlText string
	if len(w.opts.Conditions)+len(extra) == 0 {
		sqlText = stmt.NoWhere().Finalize()
	} else {
		var condErr error
		sqlText = stmt.Where(func(wb *qbuilder.WhereBuilder) {
			condErr = w.applyConditions(wb, extra)
		}).Finalize()
		if condErr != nil {
			return 0, condErr
		}
	}
	var n int64
	if err := w.tx.QueryRow(ctx, sqlText, flattenParams(b)...).Scan(&n); err != nil {
		return 0, sdberr.Wrap(sdberr.KindBackendUnavailable, err, "count query")
	}
	return n, nil
}

// Create inserts a new row from patch, running BeforeCreate/AfterCreate
// hooks and the post-update protocol for relation fields, honouring the
// worker's ConflictPolicy (spec §4.5 Create + conflict handling).
func (w *Worker) Create(ctx context.Context, patch value.Value) (value.Value, error) {
	ctx, end := startOp(ctx, w.scheme.Name, "create")
	defer end()
	if err := w.tx.checkAborted(); err != nil {
		return value.Null(), err
	}
	if err := w.checkPolicy(scheme.BeforeCreate, 0); err != nil {
		return value.Null(), err
	}
	for _, hook := range w.scheme.Hooks(scheme.BeforeCreate) {
		if err := hook(w, &patch); err != nil {
			return value.Null(), sdberr.Wrap(sdberr.KindBug, err, "BeforeCreate hook on %q", w.scheme.Name)
		}
	}

	main, relations := w.mainFields(patch)

	b := qbuilder.New(w.dialect())
	stmt := b.InsertInto(w.scheme.Name)
	names := make([]string, len(main))
	kinds := make([]qbuilder.ParamKind, len(main))
	values := make([]any, len(main))
	for i, f := range main {
		v, _ := patch.Get(f.Name)
		sv, err := scalarValue(f, v)
		if err != nil {
			return value.Null(), err
		}
		names[i] = f.Name
		kinds[i] = paramKind(f.Type)
		values[i] = sv
	}
	fieldsStmt := stmt.Fields(names...)
	valuesStmt := fieldsStmt.Values(kinds, values)

	var conflict *qbuilder.InsertReturning
	switch w.opts.Conflict.Action {
	case ConflictDoNothing:
		conflict = valuesStmt.OnConflict(w.opts.Conflict.Target).DoNothing()
	case ConflictDoUpdate:
		conflict = valuesStmt.OnConflict(w.opts.Conflict.Target).
			DoUpdate(w.opts.Conflict.UpdateFields, w.opts.Conflict.UpdateWhere)
	default:
		conflict = valuesStmt.NoConflictClause()
	}
	sqlText := conflict.Returning(w.selectColumns()...)

	rows, err := w.tx.Query(ctx, sqlText, flattenParams(b)...)
	if err != nil {
		return value.Null(), err
	}
	defer rows.Close()

	c, err := cursor.New(rows)
	if err != nil {
		return value.Null(), err
	}
	if !c.Next() {
		if err := c.Err(); err != nil {
			return value.Null(), sdberr.Wrap(sdberr.KindBackendUnavailable, err, "scanning inserted row")
		}
		if w.opts.Conflict.Action == ConflictDoNothing {
			return value.Null(), sdberr.New(sdberr.KindConflict, "insert into %q conflicted, no row returned", w.scheme.Name)
		}
		return value.Null(), sdberr.New(sdberr.KindBug, "insert into %q returned no row", w.scheme.Name)
	}
	doc, err := w.decodeOne(ctx, c)
	if err != nil {
		return value.Null(), err
	}

	oid, _ := doc.Get("__oid")
	oidVal, _ := oid.AsInt()
	if err := w.applyRelations(ctx, oidVal, relations, patch); err != nil {
		return value.Null(), err
	}

	for _, hook := range w.scheme.Hooks(scheme.AfterCreate) {
		if err := hook(w, &doc); err != nil {
			return value.Null(), sdberr.Wrap(sdberr.KindBug, err, "AfterCreate hook on %q", w.scheme.Name)
		}
	}
	return doc, nil
}

// Update patches an existing row by __oid, running BeforeUpdate/AfterUpdate
// hooks and the post-update protocol (spec §4.5 Update).
func (w *Worker) Update(ctx context.Context, oid int64, patch value.Value) (value.Value, error) {
	ctx, end := startOp(ctx, w.scheme.Name, "update")
	defer end()
	if err := w.tx.checkAborted(); err != nil {
		return value.Null(), err
	}
	if err := w.checkPolicy(scheme.BeforeUpdate, oid); err != nil {
		return value.Null(), err
	}
	for _, hook := range w.scheme.Hooks(scheme.BeforeUpdate) {
		if err := hook(w, &patch); err != nil {
			return value.Null(), sdberr.Wrap(sdberr.KindBug, err, "BeforeUpdate hook on %q", w.scheme.Name)
		}
	}

	main, relations := w.mainFields(patch)
	if len(main) == 0 && len(relations) == 0 {
		return w.Get(ctx, oid)
	}

	var sqlText string
	var b *qbuilder.Builder
	if len(main) > 0 {
		b = qbuilder.New(w.dialect())
		stmt := b.Update(w.scheme.Name)
		var setStmt *qbuilder.UpdateSet
		for i, f := range main {
			v, _ := patch.Get(f.Name)
			sv, err := scalarValue(f, v)
			if err != nil {
				return value.Null(), err
			}
			if i == 0 {
				setStmt = stmt.Set(f.Name, paramKind(f.Type), sv)
			} else {
				setStmt = setStmt.Set(f.Name, paramKind(f.Type), sv)
			}
		}
		sqlText = setStmt.Where(func(wb *qbuilder.WhereBuilder) {
			wb.Eq("__oid", qbuilder.KindInt, oid)
		}).Returning(w.selectColumns()...)

		rows, err := w.tx.Query(ctx, sqlText, flattenParams(b)...)
		if err != nil {
			return value.Null(), err
		}
		defer rows.Close()
		c, err := cursor.New(rows)
		if err != nil {
			return value.Null(), err
		}
		if !c.Next() {
			if err := c.Err(); err != nil {
				return value.Null(), sdberr.Wrap(sdberr.KindBackendUnavailable, err, "scanning updated row")
			}
			return value.Null(), sdberr.New(sdberr.KindNotFound, "%s:%d not found", w.scheme.Name, oid)
		}
		doc, err := w.decodeOne(ctx, c)
		if err != nil {
			return value.Null(), err
		}
		if err := w.applyRelations(ctx, oid, relations, patch); err != nil {
			return value.Null(), err
		}
		for _, hook := range w.scheme.Hooks(scheme.AfterUpdate) {
			if err := hook(w, &doc); err != nil {
				return value.Null(), sdberr.Wrap(sdberr.KindBug, err, "AfterUpdate hook on %q", w.scheme.Name)
			}
		}
		return doc, nil
	}

	if err := w.applyRelations(ctx, oid, relations, patch); err != nil {
		return value.Null(), err
	}
	return w.Get(ctx, oid)
}

// Touch re-stamps a row without changing any field value, to trigger
// delta-audit and AfterUpdate hooks on backends that key audit rows off a
// DML timestamp (spec §4.5 Touch).
func (w *Worker) Touch(ctx context.Context, oid int64) (value.Value, error) {
	ctx, end := startOp(ctx, w.scheme.Name, "touch")
	defer end()
	if err := w.tx.checkAborted(); err != nil {
		return value.Null(), err
	}
	if err := w.checkPolicy(scheme.BeforeUpdate, oid); err != nil {
		return value.Null(), err
	}

	b := qbuilder.New(w.dialect())
	sqlText := b.Update(w.scheme.Name).
		Set("__oid", qbuilder.KindInt, qbuilder.LiteralValue(qbuilder.Ident("__oid"))).
		Where(func(wb *qbuilder.WhereBuilder) { wb.Eq("__oid", qbuilder.KindInt, oid) }).
		Returning(w.selectColumns()...)

	rows, err := w.tx.Query(ctx, sqlText, flattenParams(b)...)
	if err != nil {
		return value.Null(), err
	}
	defer rows.Close()
	c, err := cursor.New(rows)
	if err != nil {
		return value.Null(), err
	}
	if !c.Next() {
		if err := c.Err(); err != nil {
			return value.Null(), sdberr.Wrap(sdberr.KindBackendUnavailable, err, "scanning touched row")
		}
		return value.Null(), sdberr.New(sdberr.KindNotFound, "%s:%d not found", w.scheme.Name, oid)
	}
	doc, err := w.decodeOne(ctx, c)
	if err != nil {
		return value.Null(), err
	}
	for _, hook := range w.scheme.Hooks(scheme.AfterUpdate) {
		if err := hook(w, &doc); err != nil {
			return value.Null(), sdberr.Wrap(sdberr.KindBug, err, "AfterUpdate hook on %q", w.scheme.Name)
		}
	}
	return doc, nil
}

// Remove deletes a row by __oid, running BeforeRemove/AfterRemove hooks
// (spec §4.5 Remove). The worker issues a single DELETE and does no
// Cascade/Restrict/SetNull cleanup of related rows; the migration planner
// (migrate) creates no foreign keys or triggers that would do it either.
func (w *Worker) Remove(ctx context.Context, oid int64) error {
	ctx, end := startOp(ctx, w.scheme.Name, "remove")
	defer end()
	if err := w.tx.checkAborted(); err != nil {
		return err
	}
	if err := w.checkPolicy(scheme.BeforeRemove, oid); err != nil {
		return err
	}
	for _, hook := range w.scheme.Hooks(scheme.BeforeRemove) {
		if err := hook(w, nil); err != nil {
			return sdberr.Wrap(sdberr.KindBug, err, "BeforeRemove hook on %q", w.scheme.Name)
		}
	}

	b := qbuilder.New(w.dialect())
	sqlText := b.DeleteFrom(w.scheme.Name).
		Where(func(wb *qbuilder.WhereBuilder) { wb.Eq("__oid", qbuilder.KindInt, oid) }).
		Returning("__oid")

	rows, err := w.tx.Query(ctx, sqlText, flattenParams(b)...)
	if err != nil {
		return err
	}
	defer rows.Close()
	found := rows.Next()
	if err := rows.Err(); err != nil {
		return sdberr.Wrap(sdberr.KindBackendUnavailable, err, "scanning removed row")
	}
	if !found {
		return sdberr.New(sdberr.KindNotFound, "%s:%d not found", w.scheme.Name, oid)
	}
	for _, hook := range w.scheme.Hooks(scheme.AfterRemove) {
		if err := hook(w, nil); err != nil {
			return sdberr.Wrap(sdberr.KindBug, err, "AfterRemove hook on %q", w.scheme.Name)
		}
	}
	return nil
}

// flattenParams adapts qbuilder's buffered Params into the positional
// driver args QueryRow/Query/Exec expect, in bind order.
func flattenParams(b *qbuilder.Builder) []any {
	params := b.Params()
	out := make([]any, len(params))
	for i, p := range params {
		out[i] = p.Value
	}
	return out
}
