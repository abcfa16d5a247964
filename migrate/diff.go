package migrate

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/stelladb/stellator/qbuilder"
)

// Statement is one DDL statement of a migration plan, in execution order.
type Statement struct {
	SQL        string
	Destructive bool // DROP TABLE/COLUMN/INDEX — gated by Config.EnableDrop
}

// diffTables compares desired (from Project) against the live tables
// named by currentNames, returning statements ordered by OrderTables for
// creates and in introspected (TableNames) order for drops; drops are not
// reordered by dependency.
func diffTables(ctx context.Context, ins Introspector, desired []Table) ([]Statement, error) {
	currentNames, err := ins.TableNames(ctx)
	if err != nil {
		return nil, err
	}
	currentSet := toSet(currentNames)
	desiredSet := make(map[string]Table, len(desired))
	for _, t := range desired {
		desiredSet[t.Name] = t
	}

	var stmts []Statement

	ordered := OrderTables(desired)
	for _, t := range ordered {
		if !currentSet[t.Name] {
			stmts = append(stmts, Statement{SQL: createTableSQL(t)})
			for _, idx := range t.Indexes {
				stmts = append(stmts, Statement{SQL: createIndexSQL(idx)})
			}
			continue
		}
		colStmts, err := diffColumns(ctx, ins, t)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, colStmts...)

		idxStmts, err := diffIndexes(ctx, ins, t)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, idxStmts...)
	}

	// Tables that exist but are no longer desired: DROP.
	for _, name := range currentNames {
		if _, ok := desiredSet[name]; !ok {
			stmts = append(stmts, Statement{SQL: fmt.Sprintf("DROP TABLE %s", qbuilder.Ident(name)), Destructive: true})
		}
	}

	return stmts, nil
}

func diffColumns(ctx context.Context, ins Introspector, t Table) ([]Statement, error) {
	current, err := ins.Columns(ctx, t.Name)
	if err != nil {
		return nil, err
	}
	currentByName := make(map[string]Column, len(current))
	for _, c := range current {
		currentByName[c.Name] = c
	}
	desiredByName := make(map[string]Column, len(t.Columns))
	for _, c := range t.Columns {
		desiredByName[c.Name] = c
	}

	var stmts []Statement
	for _, c := range t.Columns {
		existing, ok := currentByName[c.Name]
		if !ok {
			stmts = append(stmts, Statement{SQL: fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", qbuilder.Ident(t.Name), columnDDL(c))})
			continue
		}
		if !strings.EqualFold(existing.Type, c.Type) {
			// Column type mismatch: drop and re-add per spec §4.7 —
			// migrations here are not data-preserving, an ALTER COLUMN
			// TYPE is not attempted since it behaves inconsistently
			// across backends.
			stmts = append(stmts, Statement{SQL: fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", qbuilder.Ident(t.Name), qbuilder.Ident(c.Name)), Destructive: true})
			stmts = append(stmts, Statement{SQL: fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", qbuilder.Ident(t.Name), columnDDL(c)), Destructive: true})
		}
	}
	for _, c := range current {
		if c.Name == "__oid" {
			continue // __oid is protected from DROP COLUMN, matching the teacher's own primary-key handling
		}
		if _, ok := desiredByName[c.Name]; !ok {
			stmts = append(stmts, Statement{SQL: fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", qbuilder.Ident(t.Name), qbuilder.Ident(c.Name)), Destructive: true})
		}
	}
	return stmts, nil
}

func diffIndexes(ctx context.Context, ins Introspector, t Table) ([]Statement, error) {
	current, err := ins.Indexes(ctx, t.Name)
	if err != nil {
		return nil, err
	}
	currentByCols := make(map[string]Index, len(current))
	for _, idx := range current {
		currentByCols[indexKey(idx)] = idx
	}
	desiredByCols := make(map[string]Index, len(t.Indexes))
	for _, idx := range t.Indexes {
		desiredByCols[indexKey(idx)] = idx
	}

	var stmts []Statement
	for _, idx := range t.Indexes {
		if _, ok := currentByCols[indexKey(idx)]; !ok {
			stmts = append(stmts, Statement{SQL: createIndexSQL(idx)})
		}
	}
	for _, idx := range current {
		if _, ok := desiredByCols[indexKey(idx)]; !ok {
			stmts = append(stmts, Statement{SQL: fmt.Sprintf("DROP INDEX %s", qbuilder.Ident(idx.Name)), Destructive: true})
		}
	}
	return stmts, nil
}

func indexKey(idx Index) string {
	cols := append([]string(nil), idx.Columns...)
	sort.Strings(cols)
	return strings.Join(cols, ",")
}

func createTableSQL(t Table) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	b.WriteString(qbuilder.Ident(t.Name))
	b.WriteString(" (")
	for i, c := range t.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(columnDDL(c))
	}
	for _, c := range t.Columns {
		if c.PrimaryKey {
			b.WriteString(fmt.Sprintf(", PRIMARY KEY (%s)", qbuilder.Ident(c.Name)))
			break
		}
	}
	b.WriteString(")")
	return b.String()
}

func columnDDL(c Column) string {
	s := qbuilder.Ident(c.Name) + " " + c.Type
	if c.NotNull {
		s += " NOT NULL"
	}
	if c.Default != "" {
		s += " DEFAULT " + c.Default
	}
	return s
}

func createIndexSQL(idx Index) string {
	kw := "CREATE INDEX"
	if idx.Unique {
		kw = "CREATE UNIQUE INDEX"
	}
	cols := make([]string, len(idx.Columns))
	for i, c := range idx.Columns {
		cols[i] = qbuilder.Ident(c)
	}
	return fmt.Sprintf("%s %s ON %s (%s)", kw, qbuilder.Ident(idx.Name), qbuilder.Ident(idx.Table), strings.Join(cols, ", "))
}

func toSet(items []string) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, s := range items {
		out[s] = true
	}
	return out
}
