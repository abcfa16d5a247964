package migrate_test

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stelladb/stellator/migrate"
	"github.com/stelladb/stellator/qbuilder"
	"github.com/stelladb/stellator/scheme"
)

func openMemDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", "file::memory:?cache=shared")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func postScheme() *scheme.Scheme {
	return scheme.New("post").
		Field(scheme.Field{Name: "title", Type: scheme.TypeText, Flags: scheme.Required}).
		Field(scheme.Field{Name: "views", Type: scheme.TypeInteger})
}

func TestProjectMainTable(t *testing.T) {
	tables := migrate.Project([]*scheme.Scheme{postScheme()}, qbuilder.SQLite)
	require.Len(t, tables, 1)
	assert.Equal(t, "post", tables[0].Name)
	names := columnNames(tables[0])
	assert.Contains(t, names, "__oid")
	assert.Contains(t, names, "title")
	assert.Contains(t, names, "views")
}

func TestProjectArrayAndSetTables(t *testing.T) {
	tag := scheme.New("tag").Field(scheme.Field{Name: "name", Type: scheme.TypeText})
	s := scheme.New("post").
		Field(scheme.Field{Name: "tags_arr", Type: scheme.TypeArray, ArrayOf: scheme.TypeText}).
		Field(scheme.Field{Name: "tags", Type: scheme.TypeSet, Set: &scheme.SetRelation{Target: tag}})

	tables := migrate.Project([]*scheme.Scheme{s}, qbuilder.Postgres)
	names := map[string]bool{}
	for _, tb := range tables {
		names[tb.Name] = true
	}
	assert.True(t, names["post"])
	assert.True(t, names["post_f_tags_arr"])
	assert.True(t, names["post_f_tags"]) // many-to-many: no reciprocal Object field on tag
}

func TestProjectDeltaTable(t *testing.T) {
	s := postScheme().HasDelta(true)
	tables := migrate.Project([]*scheme.Scheme{s}, qbuilder.Postgres)
	found := false
	for _, tb := range tables {
		if tb.Name == "__delta_post" {
			found = true
			assert.Contains(t, columnNames(tb), "action")
		}
	}
	assert.True(t, found)
}

func TestPlanAndApplyCreatesTable(t *testing.T) {
	ctx := context.Background()
	db := openMemDB(t)
	ins := migrate.NewSQLiteIntrospector(db)

	stmts, err := migrate.Plan(ctx, ins, []*scheme.Scheme{postScheme()}, qbuilder.SQLite, migrate.Config{})
	require.NoError(t, err)
	require.NotEmpty(t, stmts)

	require.NoError(t, migrate.Apply(ctx, db, stmts))

	var count int
	require.NoError(t, db.QueryRowContext(ctx,
		`select count(*) from sqlite_master where type='table' and name='post'`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestPlanIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := openMemDB(t)
	ins := migrate.NewSQLiteIntrospector(db)
	schemes := []*scheme.Scheme{postScheme()}

	first, err := migrate.Plan(ctx, ins, schemes, qbuilder.SQLite, migrate.Config{})
	require.NoError(t, err)
	require.NoError(t, migrate.Apply(ctx, db, first))

	second, err := migrate.Plan(ctx, ins, schemes, qbuilder.SQLite, migrate.Config{})
	require.NoError(t, err)
	assert.Empty(t, second)
}

func TestParseTriggerNameRoundTrip(t *testing.T) {
	spec := migrate.TriggerSpec{
		Timing: "AFTER", Event: "UPDATE",
		Source: "post", SourceField: "tags",
		Target: "tag", TargetField: "posts",
		Policy: "cascade",
	}
	name := migrate.FormatTriggerName(spec)
	parsed, ok := migrate.ParseTriggerName(name)
	require.True(t, ok)
	assert.Equal(t, spec, parsed)

	_, ok = migrate.ParseTriggerName("some_user_trigger")
	assert.False(t, ok)
}

func columnNames(t migrate.Table) []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}
