// Package stellator is the top-level entrypoint shared by the
// cmd/stelladef and cmd/stellashell binaries, grounded on the teacher's
// root sqldef.go (Options + Run shared by cmd/mysqldef and cmd/psqldef):
// the same "Export / DryRun / Apply" three-way branch, adapted from
// "diff a desired SQL file against the live schema" to "diff a
// caller-supplied []*scheme.Scheme against the live schema" since this
// engine's desired state is declared in Go, not in a SQL file.
package stellator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/stelladb/stellator/driver"
	"github.com/stelladb/stellator/driver/pgdriver"
	"github.com/stelladb/stellator/driver/sqlitedriver"
	"github.com/stelladb/stellator/migrate"
	"github.com/stelladb/stellator/qbuilder"
	"github.com/stelladb/stellator/scheme"
)

// Options mirrors the teacher's sqldef.Options (SqlFile/DryRun/Export/
// SkipDrop), minus SqlFile since the desired state here is Go-declared.
type Options struct {
	DryRun bool
	Export bool
}

// NewRegistry builds the driver.Registry wired for every backend this
// engine supports (spec §1 Non-goals: Postgres and SQLite only).
func NewRegistry() *driver.Registry {
	r := driver.NewRegistry()
	r.Register(driver.KindPostgres, pgdriver.New)
	r.Register(driver.KindSQLite, sqlitedriver.New)
	return r
}

// Run introspects the target database, projects schemes through
// migrate.Plan, and either exports the current structure, prints a dry
// run, or applies the plan — the same three-way branch as the teacher's
// Run, restructured around this engine's schema/migrate packages instead
// of schema.GenerateIdempotentDDLs.
func Run(ctx context.Context, reg *driver.Registry, dsn string, schemes []*scheme.Scheme, migCfg migrate.Config, opts Options) error {
	drv, params, err := reg.Open(dsn)
	if err != nil {
		return fmt.Errorf("stellator: %w", err)
	}
	db, err := drv.Connect(ctx, params)
	if err != nil {
		return fmt.Errorf("stellator: connect: %w", err)
	}
	defer db.Close()

	// Keyed off DialectName() rather than Kind so a caller-registered
	// driver still resolves correctly as long as it reports one of the
	// two known dialect names.
	var ins migrate.Introspector
	var dialect qbuilder.Dialect
	switch drv.DialectName() {
	case "postgres":
		ins = migrate.NewPostgresIntrospector(db)
		dialect = qbuilder.Postgres
	case "sqlite":
		ins = migrate.NewSQLiteIntrospector(db)
		dialect = qbuilder.SQLite
	default:
		return fmt.Errorf("stellator: unsupported dialect %q", drv.DialectName())
	}

	stmts, err := migrate.Plan(ctx, ins, schemes, dialect, migCfg)
	if err != nil {
		return fmt.Errorf("stellator: plan: %w", err)
	}

	if opts.Export {
		printCurrentStructure(ctx, ins)
		return nil
	}

	if len(stmts) == 0 {
		fmt.Println("-- Nothing is modified --")
		return nil
	}

	if opts.DryRun {
		fmt.Println("-- dry run --")
		fmt.Println(migrate.DryRunSummary(stmts))
		for _, s := range stmts {
			fmt.Printf("%s;\n", s.SQL)
		}
		return nil
	}

	if err := migrate.Apply(ctx, db, stmts); err != nil {
		return fmt.Errorf("stellator: apply: %w", err)
	}
	slog.Info("stellator: migration applied", "statements", len(stmts))
	return nil
}

// printCurrentStructure renders every table the live database already
// carries (not only those of the declared schemes), for the --export flag's "dump current
// structure" use (spec §6 / teacher's --export).
func printCurrentStructure(ctx context.Context, ins migrate.Introspector) {
	names, err := ins.TableNames(ctx)
	if err != nil {
		fmt.Printf("-- error listing tables: %s --\n", err)
		return
	}
	if len(names) == 0 {
		fmt.Println("-- No table exists --")
		return
	}
	for _, name := range names {
		cols, err := ins.Columns(ctx, name)
		if err != nil {
			fmt.Printf("-- error introspecting %s: %s --\n", name, err)
			continue
		}
		fmt.Printf("-- %s --\n", name)
		for _, c := range cols {
			fmt.Printf("  %s %s\n", c.Name, c.Type)
		}
	}
}
