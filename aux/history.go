package aux

import (
	"context"

	"github.com/stelladb/stellator/cursor"
	"github.com/stelladb/stellator/driver"
	"github.com/stelladb/stellator/qbuilder"
	"github.com/stelladb/stellator/scheme"
	"github.com/stelladb/stellator/translator"
	"github.com/stelladb/stellator/value"
)

func (c conn) dialect() qbuilder.Dialect {
	if c.a.Driver.DialectName() == "sqlite" {
		return qbuilder.SQLite
	}
	return qbuilder.Postgres
}

// LoginHistory reads the __login audit table of spec §3.5/§4.9.
type LoginHistory struct {
	c conn
}

// NewLoginHistory binds a LoginHistory reader to adapter.
func NewLoginHistory(a *driver.Adapter) *LoginHistory {
	return &LoginHistory{c: newConn(a)}
}

// UserResolver looks a user oid up into a display value, used by
// GetHistory's resolveUsers option (spec §4.8 "the user column is
// resolved into {id, name}").
type UserResolver interface {
	ResolveUser(ctx context.Context, oid int64) (name string, ok error)
}

// GetHistory returns every __login row for user since sinceMicros,
// ordered oldest-first, as {action, time, addr, host, path, user?} documents per
// spec §4.8 (here "action" is "success"/"failure" rather than the
// scheme-delta vocabulary, since __login has no action column of its
// own — it is derived from the success flag).
func (h *LoginHistory) GetHistory(ctx context.Context, userOID, sinceMicros int64, resolver UserResolver) ([]value.Value, error) {
	rows, err := h.c.query(ctx,
		`SELECT "date", "success", "addr", "host", "path" FROM "__login"
		 WHERE "user" = ?1 AND "date" >= ?2 ORDER BY "date"`,
		userOID, sinceMicros)
	if err != nil {
		return nil, wrapErr(err, "login history: select")
	}
	defer rows.Close()

	var out []value.Value
	for rows.Next() {
		var date int64
		var success bool
		var addr, host, path string
		if err := rows.Scan(&date, &success, &addr, &host, &path); err != nil {
			return nil, wrapErr(err, "login history: scan")
		}
		doc := value.NewDict()
		action := "failure"
		if success {
			action = "success"
		}
		doc.Set("action", value.String(action))
		doc.Set("time", value.Int(date))
		doc.Set("addr", value.String(addr))
		doc.Set("host", value.String(host))
		doc.Set("path", value.String(path))
		if resolver != nil {
			if name, err := resolver.ResolveUser(ctx, userOID); err == nil {
				user := value.NewDict()
				user.Set("id", value.Int(userOID))
				user.Set("name", value.String(name))
				doc.Set("user", user)
			}
		}
		out = append(out, doc)
	}
	return out, wrapErr(rows.Err(), "login history: iterate")
}

// DeltaAudit reads a scheme's __delta_{scheme} change log (spec §3.5/§4.8).
type DeltaAudit struct {
	c conn
}

// NewDeltaAudit binds a DeltaAudit reader to adapter.
func NewDeltaAudit(a *driver.Adapter) *DeltaAudit {
	return &DeltaAudit{c: newConn(a)}
}

// GetHistory returns every __delta_{s.Name} row since sinceMicros, in
// backend order (the compiled query has no ORDER BY), as {action, time,
// object, user?} documents (spec §4.8), via
// translator.WriteQueryDelta's aggregate-then-right-join compile so a
// deleted row still surfaces (delta-only, every scalar column NULL) the
// same way a live Select would see it. The target scheme must have
// HasDelta(true) set; callers are responsible for checking that before
// calling (consulting a scheme with no delta table surfaces the backend's
// missing-table error).
func (d *DeltaAudit) GetHistory(ctx context.Context, s *scheme.Scheme, sinceMicros int64, resolver UserResolver) ([]value.Value, error) {
	tc := translator.New(d.c.dialect(), s)
	plan, err := tc.WriteQueryDelta(sinceMicros)
	if err != nil {
		return nil, wrapErr(err, "delta audit: compile")
	}
	rows, err := d.c.query(ctx, plan.SQL, plan.Args...)
	if err != nil {
		return nil, wrapErr(err, "delta audit: select")
	}
	defer rows.Close()

	cur, err := cursor.New(rows)
	if err != nil {
		return nil, wrapErr(err, "delta audit: cursor")
	}
	var out []value.Value
	for cur.Next() {
		raw, err := cur.Decode(s, nonRelationFields(s), nil)
		if err != nil {
			return nil, wrapErr(err, "delta audit: decode")
		}
		out = append(out, flattenDeltaEntry(ctx, raw, resolver))
	}
	return out, wrapErr(cur.Err(), "delta audit: iterate")
}

// ViewHistory returns every delta-tracked View field's membership change
// for parentOID since sinceMicros, in backend order (the compiled query has
// no ORDER BY), as {__oid, __vid, __delta: {time}} documents decoded by
// cursor.Decode, via translator.WriteQueryViewDelta. __vid==0 signals the
// member left the view (spec §4.8 view-delta tombstoning).
func (d *DeltaAudit) ViewHistory(ctx context.Context, s *scheme.Scheme, field *scheme.Field, parentOID, sinceMicros int64) ([]value.Value, error) {
	tc := translator.New(d.c.dialect(), s)
	plan, err := tc.WriteQueryViewDelta(field, parentOID, sinceMicros)
	if err != nil {
		return nil, wrapErr(err, "view delta audit: compile")
	}
	rows, err := d.c.query(ctx, plan.SQL, plan.Args...)
	if err != nil {
		return nil, wrapErr(err, "view delta audit: select")
	}
	defer rows.Close()

	cur, err := cursor.New(rows)
	if err != nil {
		return nil, wrapErr(err, "view delta audit: cursor")
	}
	var out []value.Value
	for cur.Next() {
		doc, err := cur.Decode(field.View.Target, nil, nil)
		if err != nil {
			return nil, wrapErr(err, "view delta audit: decode")
		}
		out = append(out, doc)
	}
	return out, wrapErr(cur.Err(), "view delta audit: iterate")
}

// flattenDeltaEntry re-projects the __delta sub-document cursor.Decode
// nests a delta-query row under into the flat {action,time,object,user?}
// shape this package's callers expect, resolving the user oid through
// resolver when given.
func flattenDeltaEntry(ctx context.Context, raw value.Value, resolver UserResolver) value.Value {
	doc := value.NewDict()
	delta, ok := raw.Get("__delta")
	if !ok {
		return doc
	}
	if action, ok := delta.Get("action"); ok {
		doc.Set("action", action)
	}
	if t, ok := delta.Get("time"); ok {
		doc.Set("time", t)
	}
	if obj, ok := delta.Get("object"); ok {
		doc.Set("object", obj)
	}
	userVal, hasUser := delta.Get("user")
	if !hasUser {
		return doc
	}
	userOID, _ := userVal.AsInt()
	if resolver != nil {
		if name, err := resolver.ResolveUser(ctx, userOID); err == nil {
			u := value.NewDict()
			u.Set("id", value.Int(userOID))
			u.Set("name", value.String(name))
			doc.Set("user", u)
			return doc
		}
	}
	doc.Set("user", userVal)
	return doc
}

// nonRelationFields lists s's declared scalar fields, the same "skip
// relation-typed columns" filter translator.WriteQueryDelta's own column
// projection applies, so the cursor decode matches the compiled SELECT.
func nonRelationFields(s *scheme.Scheme) []*scheme.Field {
	var out []*scheme.Field
	for _, f := range s.Fields() {
		if !f.IsRelation() {
			out = append(out, f)
		}
	}
	return out
}
