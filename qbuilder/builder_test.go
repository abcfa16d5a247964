package qbuilder_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stelladb/stellator/qbuilder"
)

func TestSelectBasic(t *testing.T) {
	b := qbuilder.New(qbuilder.Postgres)
	sql := b.Select().
		Fields(qbuilder.Ident("id"), qbuilder.Ident("name")).
		From("users", "").
		Where(func(w *qbuilder.WhereBuilder) {
			w.Eq("id", qbuilder.KindInt, int64(1))
		}).
		OrderBy(qbuilder.Ident("name"), qbuilder.Asc, qbuilder.NullsDefault).
		Limit(30).
		Finalize()

	assert.Equal(t, `SELECT "id", "name" FROM "users" WHERE "id" = ?1 ORDER BY "name" ASC LIMIT ?2;`, sql)
	params := b.Params()
	assert.Len(t, params, 2)
	assert.Equal(t, int64(1), params[0].Value)
}

func TestInsertOnConflictDoUpdateReturning(t *testing.T) {
	b := qbuilder.New(qbuilder.Postgres)
	sql := b.InsertInto("users").
		Fields("name", "email").
		Values([]qbuilder.ParamKind{qbuilder.KindText, qbuilder.KindText}, []any{"a", "a@x"}).
		OnConflict("email").
		DoUpdate([]string{"name"}, "").
		Returning("__oid", "name")

	assert.Equal(t,
		`INSERT INTO "users" ("name", "email") VALUES (?1, ?2) ON CONFLICT ("email") DO UPDATE SET "name" = EXCLUDED."name" RETURNING __oid, name;`,
		sql)
}

func TestInsertMultiRowValues(t *testing.T) {
	b := qbuilder.New(qbuilder.Postgres)
	ins := b.InsertInto("post").Fields("tags")
	v := ins.Values([]qbuilder.ParamKind{qbuilder.KindText}, []any{"x"})
	v.Values([]qbuilder.ParamKind{qbuilder.KindText}, []any{"y"})
	sql := v.NoConflictClause().Finalize()
	assert.Equal(t, `INSERT INTO "post" ("tags") VALUES (?1), (?2);`, sql)
}

func TestWhereInInlinesScalarArray(t *testing.T) {
	b := qbuilder.New(qbuilder.Postgres)
	sql := b.Select().Fields("*").From("post", "").
		Where(func(w *qbuilder.WhereBuilder) {
			w.In("status", []string{"1", "2", "3"})
		}).Finalize()
	assert.Equal(t, `SELECT * FROM "post" WHERE "status" IN (1, 2, 3);`, sql)
}

func TestWhereGroupNesting(t *testing.T) {
	b := qbuilder.New(qbuilder.Postgres)
	sql := b.Select().Fields("*").From("post", "").
		Where(func(w *qbuilder.WhereBuilder) {
			w.Eq("owner", qbuilder.KindInt, int64(1))
			w.Group(func(w2 *qbuilder.WhereBuilder) {
				w2.IsNull("deleted_at")
				w2.Or("true")
			})
		}).Finalize()
	assert.Equal(t, `SELECT * FROM "post" WHERE "owner" = ?1 AND ("deleted_at" IS NULL OR true);`, sql)
}

func TestWithCTE(t *testing.T) {
	b := qbuilder.New(qbuilder.Postgres)
	b.With("u", func(sub *qbuilder.Builder) {
		sub.Select().Fields("__oid").From("post", "").NoWhere().Finalize()
	})
	sql := b.Select().Fields("*").FromRaw(qbuilder.Ident("u")).NoWhere().Finalize()
	assert.Equal(t, `WITH "u" AS (SELECT __oid FROM "post")SELECT * FROM "u";`, sql)
}

func TestDeleteReturning(t *testing.T) {
	b := qbuilder.New(qbuilder.SQLite)
	sql := b.DeleteFrom("post").
		Where(func(w *qbuilder.WhereBuilder) { w.Eq("__oid", qbuilder.KindInt, int64(1)) }).
		Returning("__oid")
	assert.Equal(t, `DELETE FROM "post" WHERE "__oid" = ?1 RETURNING __oid;`, sql)
}
