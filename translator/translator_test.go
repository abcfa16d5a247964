package translator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stelladb/stellator/qbuilder"
	"github.com/stelladb/stellator/scheme"
	"github.com/stelladb/stellator/translator"
	"github.com/stelladb/stellator/value"
)

func postScheme() *scheme.Scheme {
	return scheme.New("post").
		Field(scheme.Field{Name: "title", Type: scheme.TypeText}).
		Field(scheme.Field{Name: "rating", Type: scheme.TypeFloat})
}

func TestStrategyFor(t *testing.T) {
	oid := &scheme.Field{Name: "__oid"}
	unique := &scheme.Field{Name: "slug", Type: scheme.TypeText, Flags: scheme.Unique}
	plain := &scheme.Field{Name: "rating", Type: scheme.TypeFloat}
	fts := &scheme.Field{Name: "search", Type: scheme.TypeFullTextView}

	assert.Equal(t, translator.ScalarOID, translator.StrategyFor(oid))
	assert.Equal(t, translator.UniqueIndexed, translator.StrategyFor(unique))
	assert.Equal(t, translator.TieBreak, translator.StrategyFor(plain))
	assert.Equal(t, translator.TieBreak, translator.StrategyFor(fts))
}

func TestWritePageWhereScalarOID(t *testing.T) {
	s := postScheme()
	ctx := translator.New(qbuilder.Postgres, s)
	oidField := &scheme.Field{Name: "__oid"}

	b := qbuilder.New(qbuilder.Postgres)
	sqlText := b.Select().Fields("*").From("post", "").
		Where(func(wb *qbuilder.WhereBuilder) {
			require.NoError(t, ctx.WritePageWhere(wb, oidField, scheme.Asc, &translator.PageCursor{OID: 42}, ""))
		}).Finalize()

	assert.Contains(t, sqlText, `"__oid" > ?1`)
}

func TestWritePageWhereTieBreak(t *testing.T) {
	s := postScheme()
	ctx := translator.New(qbuilder.Postgres, s)
	rating, _ := s.FieldByName("rating")

	cursor := &translator.PageCursor{Value: 4.5, OID: 7}
	b := qbuilder.New(qbuilder.Postgres)
	ctx.PrepareTieBreakCTE(b, rating, scheme.Asc, cursor, "")
	sqlText := b.Select().Fields("*").From("post", "").
		Where(func(wb *qbuilder.WhereBuilder) {
			require.NoError(t, ctx.WritePageWhere(wb, rating, scheme.Asc, cursor, ""))
		}).Finalize()

	assert.Contains(t, sqlText, `WITH "u" AS (SELECT "__oid", "rating" FROM "post" WHERE "rating" > ?1)`)
	assert.Contains(t, sqlText, `"__oid" IN (SELECT "__oid" FROM "u")`)
	assert.Contains(t, sqlText, `"rating" = (SELECT MAX(u."rating") FROM "u")`)
}

func TestWritePageWhereTieBreakFullText(t *testing.T) {
	s := postScheme().Field(scheme.Field{Name: "search", Type: scheme.TypeFullTextView, FullText: &scheme.FullText{}})
	ctx := translator.New(qbuilder.Postgres, s)
	search, _ := s.FieldByName("search")

	cursor := &translator.PageCursor{Value: 0.3, OID: 9}
	b := qbuilder.New(qbuilder.Postgres)
	ctx.PrepareTieBreakCTE(b, search, scheme.Desc, cursor, "to_tsquery('english', 'foo')")
	sqlText := b.Select().Fields("*").From("post", "").
		Where(func(wb *qbuilder.WhereBuilder) {
			require.NoError(t, ctx.WritePageWhere(wb, search, scheme.Desc, cursor, "to_tsquery('english', 'foo')"))
		}).Finalize()

	assert.Contains(t, sqlText, `"__ts_rank_search"`)
	assert.Contains(t, sqlText, `ts_rank("search", to_tsquery('english', 'foo'), 0) < ?1`)
	assert.Contains(t, sqlText, `"__oid" IN (SELECT "__oid" FROM "u")`)
	assert.Contains(t, sqlText, `ts_rank("search", to_tsquery('english', 'foo'), 0) = (SELECT MIN(u."__ts_rank_search") FROM "u")`)
}

func TestFullTextCacheCompilesOncePerKey(t *testing.T) {
	cache := translator.NewFullTextCache(4)
	f := &scheme.Field{Name: "search", Type: scheme.TypeFullTextView}

	e1 := cache.Compile(qbuilder.Postgres, "post", f, "hello world")
	e2 := cache.Compile(qbuilder.Postgres, "post", f, "hello world")
	assert.Equal(t, e1, e2)
	assert.Contains(t, e1, "to_tsquery")
	assert.Contains(t, e1, "hello & world")
}

func TestFullTextCacheSQLiteFallback(t *testing.T) {
	cache := translator.NewFullTextCache(4)
	f := &scheme.Field{Name: "search", Type: scheme.TypeFullTextView}
	expr := cache.Compile(qbuilder.SQLite, "post", f, "hello")
	assert.Equal(t, "'%hello%'", expr)
}

func TestCompileWhereBasicAndIn(t *testing.T) {
	s := postScheme()
	ctx := translator.New(qbuilder.Postgres, s)
	cache := translator.NewFullTextCache(4)

	conds := []scheme.Condition{
		{Field: "title", Op: scheme.OpEq, Value1: "hello"},
		{Field: "rating", Op: scheme.OpIn, Value1: value.Array(value.Float(1), value.Float(2))},
		{Field: "nonexistent", Op: scheme.OpEq, Value1: "ignored"},
	}

	b := qbuilder.New(qbuilder.Postgres)
	sqlText := b.Select().Fields("*").From("post", "").
		Where(func(wb *qbuilder.WhereBuilder) {
			require.NoError(t, ctx.CompileWhere(wb, conds, cache))
		}).Finalize()

	assert.Contains(t, sqlText, `"title" = ?1`)
	assert.Contains(t, sqlText, `"rating" IN (1, 2)`)
	assert.NotContains(t, sqlText, "nonexistent")
}

func TestCompileWhereIncludes(t *testing.T) {
	s := scheme.New("post").
		Field(scheme.Field{Name: "search", Type: scheme.TypeFullTextView})
	ctx := translator.New(qbuilder.Postgres, s)
	cache := translator.NewFullTextCache(4)

	conds := []scheme.Condition{
		{Field: "search", Op: scheme.OpIncludes, Value1: "hello world"},
	}

	b := qbuilder.New(qbuilder.Postgres)
	sqlText := b.Select().Fields("*").From("post", "").
		Where(func(wb *qbuilder.WhereBuilder) {
			require.NoError(t, ctx.CompileWhere(wb, conds, cache))
		}).Finalize()

	assert.Contains(t, sqlText, `"search" @@ to_tsquery`)
	assert.Contains(t, sqlText, "hello & world")
}

func TestWriteQueryListArrayField(t *testing.T) {
	s := scheme.New("post").
		Field(scheme.Field{Name: "tags", Type: scheme.TypeArray, ArrayOf: scheme.TypeText})
	ctx := translator.New(qbuilder.Postgres, s)
	tagsField, _ := s.FieldByName("tags")

	plan, err := ctx.WriteQueryList(tagsField, 3, false)
	require.NoError(t, err)
	assert.Contains(t, plan.SQL, `"post_f_tags"`)
	assert.Contains(t, plan.SQL, `"parent_id"`)
}

func TestWriteQueryDeltaRequiresDeltaFlag(t *testing.T) {
	s := postScheme()
	ctx := translator.New(qbuilder.Postgres, s)
	_, err := ctx.WriteQueryDelta(0)
	assert.Error(t, err)
}

func TestWriteQueryDelta(t *testing.T) {
	s := postScheme().HasDelta(true)
	ctx := translator.New(qbuilder.Postgres, s)

	plan, err := ctx.WriteQueryDelta(1000)
	require.NoError(t, err)
	assert.Contains(t, plan.SQL, `"latest_delta"`)
	assert.Contains(t, plan.SQL, `"__delta_post"`)
	assert.Contains(t, plan.SQL, `LEFT JOIN "post" t`)
	assert.Equal(t, []any{int64(1000)}, plan.Args)
}

func TestWriteQueryViewDelta(t *testing.T) {
	s := scheme.New("post")
	target := scheme.New("tag")
	s.Field(scheme.Field{
		Name: "tags",
		Type: scheme.TypeView,
		View: &scheme.FieldView{Target: target, Delta: true},
	})
	ctx := translator.New(qbuilder.Postgres, s)
	tagsField, _ := s.FieldByName("tags")

	plan, err := ctx.WriteQueryViewDelta(tagsField, 5, 1000)
	require.NoError(t, err)
	assert.Contains(t, plan.SQL, `"post_f_tags_delta"`)
	assert.Contains(t, plan.SQL, `"post_f_tags_view"`)
	assert.Contains(t, plan.SQL, "COALESCE")
}
