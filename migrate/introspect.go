// Package migrate implements the introspect → project → diff → ordered-DDL
// pipeline of spec §4.7. It retargets the teacher's
// schema.GenerateIdempotentDDLs/Generator.generateDDLs algorithm
// (github.com/k0kubun/sqldef schema/generator.go) from "parse two SQL
// files and diff their ASTs" to "introspect a live database and diff
// against a declared []*scheme.Scheme".
package migrate

import (
	"context"
	"database/sql"
	"strings"
)

// Column is a structured column record, generalized from the teacher's
// adapter.Database.DumpTableDDL (which returns raw DDL text) since the
// planner needs to diff fields, not pass text through.
type Column struct {
	Name       string
	Type       string
	NotNull    bool
	PrimaryKey bool
	Default    string
}

// Index is a structured index record.
type Index struct {
	Name    string
	Table   string
	Unique  bool
	Columns []string
}

// Trigger is a structured trigger record. Name follows the
// ST_TRIGGER:{timing}:{event}:{source}@{field}:{target}@{field}:{policy}
// grammar of spec §4.7/§6 for triggers this planner created; names that
// don't parse (see ParseTriggerName) are left untouched.
type Trigger struct {
	Name   string
	Table  string
	Timing string // BEFORE | AFTER
	Event  string // INSERT | UPDATE | DELETE
}

// Introspector reads the current structured shape of a live database,
// grounded directly on the teacher's adapter/postgres.go
// (postgresTableNames, information_schema queries) and
// adapter/sqlite3.Sqlite3Database (TableNames over sqlite_master,
// PRAGMA-based column introspection).
type Introspector interface {
	TableNames(ctx context.Context) ([]string, error)
	Columns(ctx context.Context, table string) ([]Column, error)
	Indexes(ctx context.Context, table string) ([]Index, error)
	Triggers(ctx context.Context) ([]Trigger, error)
}

// PostgresIntrospector reads structure via information_schema, grounded
// on adapter/postgres.go's postgresTableNames query generalized from
// pg_dump text output to structured information_schema.columns/
// pg_indexes/information_schema.triggers rows.
type PostgresIntrospector struct {
	DB *sql.DB
}

func NewPostgresIntrospector(db *sql.DB) *PostgresIntrospector {
	return &PostgresIntrospector{DB: db}
}

func (p *PostgresIntrospector) TableNames(ctx context.Context) ([]string, error) {
	rows, err := p.DB.QueryContext(ctx,
		`select table_name from information_schema.tables where table_schema = 'public' and table_type = 'BASE TABLE'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

func (p *PostgresIntrospector) Columns(ctx context.Context, table string) ([]Column, error) {
	rows, err := p.DB.QueryContext(ctx, `
		select c.column_name, c.data_type, c.is_nullable = 'NO', coalesce(c.column_default, ''),
		       coalesce(pk.is_pk, false)
		from information_schema.columns c
		left join (
			select kcu.column_name, true as is_pk
			from information_schema.table_constraints tc
			join information_schema.key_column_usage kcu
			  on tc.constraint_name = kcu.constraint_name and tc.table_name = kcu.table_name
			where tc.table_name = $1 and tc.constraint_type = 'PRIMARY KEY'
		) pk on pk.column_name = c.column_name
		where c.table_name = $1
		order by c.ordinal_position`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var c Column
		if err := rows.Scan(&c.Name, &c.Type, &c.NotNull, &c.Default, &c.PrimaryKey); err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

func (p *PostgresIntrospector) Indexes(ctx context.Context, table string) ([]Index, error) {
	rows, err := p.DB.QueryContext(ctx, `
		select i.relname as index_name, ix.indisunique, a.attname
		from pg_class t
		join pg_index ix on t.oid = ix.indrelid
		join pg_class i on i.oid = ix.indexrelid
		join pg_attribute a on a.attrelid = t.oid and a.attnum = any(ix.indkey)
		where t.relname = $1 and ix.indisprimary = false
		order by i.relname, a.attnum`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byName := map[string]*Index{}
	var order []string
	for rows.Next() {
		var name, col string
		var unique bool
		if err := rows.Scan(&name, &unique, &col); err != nil {
			return nil, err
		}
		idx, ok := byName[name]
		if !ok {
			idx = &Index{Name: name, Table: table, Unique: unique}
			byName[name] = idx
			order = append(order, name)
		}
		idx.Columns = append(idx.Columns, col)
	}
	out := make([]Index, 0, len(order))
	for _, name := range order {
		out = append(out, *byName[name])
	}
	return out, rows.Err()
}

func (p *PostgresIntrospector) Triggers(ctx context.Context) ([]Trigger, error) {
	rows, err := p.DB.QueryContext(ctx, `
		select trigger_name, event_object_table, action_timing, event_manipulation
		from information_schema.triggers`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Trigger
	for rows.Next() {
		var t Trigger
		if err := rows.Scan(&t.Name, &t.Table, &t.Timing, &t.Event); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// SQLiteIntrospector reads structure via sqlite_master/PRAGMA, grounded
// on adapter/sqlite3.Sqlite3Database's TableNames (sqlite_master query)
// and DumpTableDDL, generalized to PRAGMA table_info/index_list for
// structured columns and indexes instead of raw CREATE TABLE text.
type SQLiteIntrospector struct {
	DB *sql.DB
}

func NewSQLiteIntrospector(db *sql.DB) *SQLiteIntrospector {
	return &SQLiteIntrospector{DB: db}
}

func (s *SQLiteIntrospector) TableNames(ctx context.Context) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx,
		`select tbl_name from sqlite_master where type = 'table' and tbl_name not like 'sqlite_%'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

func (s *SQLiteIntrospector) Columns(ctx context.Context, table string) ([]Column, error) {
	rows, err := s.DB.QueryContext(ctx, `pragma table_info(`+quoteIdent(table)+`)`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var cid int
		var name, ctype string
		var notNull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		cols = append(cols, Column{
			Name: name, Type: ctype, NotNull: notNull != 0,
			PrimaryKey: pk != 0, Default: dflt.String,
		})
	}
	return cols, rows.Err()
}

func (s *SQLiteIntrospector) Indexes(ctx context.Context, table string) ([]Index, error) {
	rows, err := s.DB.QueryContext(ctx, `pragma index_list(`+quoteIdent(table)+`)`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type row struct {
		name   string
		unique bool
		origin string
	}
	var names []row
	for rows.Next() {
		var seq int
		var name, origin string
		var unique, partial int
		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			return nil, err
		}
		names = append(names, row{name: name, unique: unique != 0, origin: origin})
	}
	rows.Close()

	var out []Index
	for _, r := range names {
		// Auto-generated indices back a UNIQUE/PK constraint rather than an
		// explicit index declaration; skip them, matching the teacher's
		// containsString(...) skip-list pattern for sqlite_autoindex_*.
		if r.origin == "pk" || strings.HasPrefix(r.name, "sqlite_autoindex_") {
			continue
		}
		colRows, err := s.DB.QueryContext(ctx, `pragma index_info(`+quoteIdent(r.name)+`)`)
		if err != nil {
			return nil, err
		}
		idx := Index{Name: r.name, Table: table, Unique: r.unique}
		for colRows.Next() {
			var seqno, cid int
			var colName string
			if err := colRows.Scan(&seqno, &cid, &colName); err != nil {
				colRows.Close()
				return nil, err
			}
			idx.Columns = append(idx.Columns, colName)
		}
		colRows.Close()
		out = append(out, idx)
	}
	return out, nil
}

func (s *SQLiteIntrospector) Triggers(ctx context.Context) ([]Trigger, error) {
	rows, err := s.DB.QueryContext(ctx,
		`select name, tbl_name, sql from sqlite_master where type = 'trigger'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Trigger
	for rows.Next() {
		var name, table, ddl string
		if err := rows.Scan(&name, &table, &ddl); err != nil {
			return nil, err
		}
		timing, event := "", ""
		switch {
		case strings.Contains(ddl, "BEFORE INSERT"):
			timing, event = "BEFORE", "INSERT"
		case strings.Contains(ddl, "AFTER INSERT"):
			timing, event = "AFTER", "INSERT"
		case strings.Contains(ddl, "BEFORE UPDATE"):
			timing, event = "BEFORE", "UPDATE"
		case strings.Contains(ddl, "AFTER UPDATE"):
			timing, event = "AFTER", "UPDATE"
		case strings.Contains(ddl, "BEFORE DELETE"):
			timing, event = "BEFORE", "DELETE"
		case strings.Contains(ddl, "AFTER DELETE"):
			timing, event = "AFTER", "DELETE"
		}
		out = append(out, Trigger{Name: name, Table: table, Timing: timing, Event: event})
	}
	return out, rows.Err()
}

func quoteIdent(s string) string { return `"` + s + `"` }
