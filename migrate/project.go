package migrate

import (
	"strconv"

	"github.com/stelladb/stellator/qbuilder"
	"github.com/stelladb/stellator/scheme"
)

// Table is the desired structured shape of one SQL table, synthesised
// from a *scheme.Scheme (or an implicit relation side table) by Project.
type Table struct {
	Name       string
	Columns    []Column
	Indexes    []Index
	References []string // table names this table's FK columns point at, for dependency ordering
}

// Project synthesises the desired []Table shape from every declared
// scheme, per spec §4.7's column-type mapping and join/side-table rules:
// Set (many-to-many, no reciprocal Object field) → "{parent}_f_{field}"
// (parent_id, target_id); Array → "{parent}_f_{field}"(parent_id, data);
// View → "{parent}_f_{field}_view"(tag, target_id, __vid) plus, when
// Delta is set, "{parent}_f_{field}_delta"(object, tag, time); a
// delta-audited scheme gets "__delta_{scheme}"(object, action, time,
// user). Grounded on the teacher's schema.Generator's "walk the desired
// shape, emit structural records" iteration (schema/generator.go).
func Project(schemes []*scheme.Scheme, dialect qbuilder.Dialect) []Table {
	var tables []Table
	for _, s := range schemes {
		tables = append(tables, projectMainTable(s, dialect))
		for _, f := range s.Fields() {
			switch f.Type {
			case scheme.TypeSet:
				if _, ok := s.ResolveForeignLink(f); !ok {
					tables = append(tables, projectSetJoinTable(s, f))
				}
			case scheme.TypeArray:
				tables = append(tables, projectArrayTable(s, f, dialect))
			case scheme.TypeView:
				tables = append(tables, projectViewTables(s, f)...)
			}
		}
		if s.HasDeltaFlag() {
			tables = append(tables, projectDeltaTable(s))
		}
	}
	return tables
}

func projectMainTable(s *scheme.Scheme, dialect qbuilder.Dialect) Table {
	t := Table{Name: s.Name}
	t.Columns = append(t.Columns, Column{Name: "__oid", Type: sqlType(scheme.TypeInteger, dialect), PrimaryKey: true, NotNull: true})
	for _, f := range s.Fields() {
		if f.IsRelation() || f.Type == scheme.TypeVirtual {
			continue
		}
		col := Column{
			Name:    f.Name,
			Type:    columnSQLType(f, dialect),
			NotNull: f.Flags.Has(scheme.Required),
		}
		t.Columns = append(t.Columns, col)
		if f.Type == scheme.TypeObject && f.Object != nil {
			t.References = append(t.References, f.Object.Target.Name)
			t.Indexes = append(t.Indexes, Index{Name: s.Name + "_" + f.Name + "_idx", Table: s.Name, Columns: []string{f.Name}})
		}
		if f.Flags.Has(scheme.Unique) {
			t.Indexes = append(t.Indexes, Index{Name: s.Name + "_" + f.Name + "_uniq", Table: s.Name, Unique: true, Columns: []string{f.Name}})
		} else if f.Flags.Has(scheme.Indexed) {
			t.Indexes = append(t.Indexes, Index{Name: s.Name + "_" + f.Name + "_idx", Table: s.Name, Columns: []string{f.Name}})
		}
	}
	for i, cols := range s.Uniques() {
		t.Indexes = append(t.Indexes, Index{Name: s.Name + "_uniq_" + strconv.Itoa(i), Table: s.Name, Unique: true, Columns: cols})
	}
	return t
}

func projectSetJoinTable(s *scheme.Scheme, f *scheme.Field) Table {
	name := s.Name + "_f_" + f.Name
	return Table{
		Name: name,
		Columns: []Column{
			{Name: "parent_id", Type: "bigint", NotNull: true},
			{Name: "target_id", Type: "bigint", NotNull: true},
		},
		Indexes: []Index{
			{Name: name + "_parent_idx", Table: name, Columns: []string{"parent_id"}},
			{Name: name + "_target_idx", Table: name, Columns: []string{"target_id"}},
			{Name: name + "_uniq", Table: name, Unique: true, Columns: []string{"parent_id", "target_id"}},
		},
		References: []string{s.Name, f.Set.Target.Name},
	}
}

func projectArrayTable(s *scheme.Scheme, f *scheme.Field, dialect qbuilder.Dialect) Table {
	name := s.Name + "_f_" + f.Name
	return Table{
		Name: name,
		Columns: []Column{
			{Name: "parent_id", Type: "bigint", NotNull: true},
			{Name: "data", Type: sqlType(f.ArrayOf, dialect), NotNull: true},
		},
		Indexes:    []Index{{Name: name + "_parent_idx", Table: name, Columns: []string{"parent_id"}}},
		References: []string{s.Name},
	}
}

func projectViewTables(s *scheme.Scheme, f *scheme.Field) []Table {
	viewName := s.Name + "_f_" + f.Name + "_view"
	view := Table{
		Name: viewName,
		Columns: []Column{
			{Name: "tag", Type: "bigint", NotNull: true},
			{Name: "target_id", Type: "bigint", NotNull: true},
			{Name: "__vid", Type: "bigint", NotNull: true},
		},
		Indexes: []Index{
			{Name: viewName + "_tag_idx", Table: viewName, Columns: []string{"tag"}},
			{Name: viewName + "_uniq", Table: viewName, Unique: true, Columns: []string{"tag", "target_id"}},
		},
		References: []string{s.Name, f.View.Target.Name},
	}
	tables := []Table{view}
	if f.View.Delta {
		deltaName := s.Name + "_f_" + f.Name + "_delta"
		tables = append(tables, Table{
			Name: deltaName,
			Columns: []Column{
				{Name: "object", Type: "bigint", NotNull: true},
				{Name: "tag", Type: "bigint", NotNull: true},
				{Name: "time", Type: "bigint", NotNull: true},
			},
			Indexes:    []Index{{Name: deltaName + "_tag_time_idx", Table: deltaName, Columns: []string{"tag", "time"}}},
			References: []string{s.Name},
		})
	}
	return tables
}

func projectDeltaTable(s *scheme.Scheme) Table {
	name := "__delta_" + s.Name
	return Table{
		Name: name,
		Columns: []Column{
			{Name: "object", Type: "bigint", NotNull: true},
			{Name: "action", Type: "integer", NotNull: true},
			{Name: "time", Type: "bigint", NotNull: true},
			{Name: "user", Type: "bigint"},
		},
		Indexes:    []Index{{Name: name + "_time_idx", Table: name, Columns: []string{"time"}}},
		References: []string{s.Name},
	}
}

func columnSQLType(f *scheme.Field, dialect qbuilder.Dialect) string {
	if f.Type == scheme.TypeCustom && f.Custom != nil && f.Custom.SQLType != "" {
		return f.Custom.SQLType
	}
	return sqlType(f.Type, dialect)
}

// sqlType maps a scheme.FieldType to its backend column type, per spec
// §4.7's column-type mapping table.
func sqlType(t scheme.FieldType, dialect qbuilder.Dialect) string {
	pg := dialect == qbuilder.Postgres
	switch t {
	case scheme.TypeInteger, scheme.TypeObject, scheme.TypeFile, scheme.TypeImage:
		if pg {
			return "bigint"
		}
		return "INTEGER"
	case scheme.TypeFloat:
		if pg {
			return "double precision"
		}
		return "REAL"
	case scheme.TypeBoolean:
		if pg {
			return "boolean"
		}
		return "INTEGER"
	case scheme.TypeText:
		if pg {
			return "text"
		}
		return "TEXT"
	case scheme.TypeBytes:
		if pg {
			return "bytea"
		}
		return "BLOB"
	case scheme.TypeData, scheme.TypeExtra:
		if pg {
			return "jsonb"
		}
		return "TEXT"
	case scheme.TypeFullTextView:
		if pg {
			return "tsvector"
		}
		return "TEXT"
	default:
		if pg {
			return "text"
		}
		return "TEXT"
	}
}
