package migrate

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/dustin/go-humanize"

	"github.com/stelladb/stellator/qbuilder"
	"github.com/stelladb/stellator/scheme"
	"github.com/stelladb/stellator/sdberr"
)

// Plan introspects the live database via ins, projects the desired
// shape from schemes (filtered by cfg's target/skip lists), diffs the
// two, and returns the ordered statement list a caller would execute via
// Apply. Running Plan again against an already-migrated database returns
// an empty slice — spec §4.7's idempotence property, tested the way the
// teacher's cmd/psqldef/psqldef_test.go asserts a dry-run second pass is
// empty.
func Plan(ctx context.Context, ins Introspector, schemes []*scheme.Scheme, dialect qbuilder.Dialect, cfg Config) ([]Statement, error) {
	filtered := filterSchemes(schemes, cfg)
	desired := Project(filtered, dialect)
	stmts, err := diffTables(ctx, ins, desired)
	if err != nil {
		return nil, err
	}
	if !cfg.EnableDrop {
		var kept []Statement
		for _, s := range stmts {
			if s.Destructive {
				slog.Warn("migrate: skipping destructive statement (enable_drop is false)", "sql", s.SQL)
				continue
			}
			kept = append(kept, s)
		}
		stmts = kept
	}
	slog.Info("migrate: plan ready", "statements", humanize.Comma(int64(len(stmts))))
	return stmts, nil
}

// DryRunSummary renders a human-readable count of the statements a plan
// would run, split by destructiveness, for an operator reviewing a dry
// run before committing to Apply.
func DryRunSummary(stmts []Statement) string {
	var destructive int
	for _, s := range stmts {
		if s.Destructive {
			destructive++
		}
	}
	return humanize.Comma(int64(len(stmts))) + " statement(s), " +
		humanize.Comma(int64(destructive)) + " destructive"
}

func filterSchemes(schemes []*scheme.Scheme, cfg Config) []*scheme.Scheme {
	if len(cfg.TargetSchemes) == 0 && len(cfg.SkipSchemes) == 0 {
		return schemes
	}
	names := make([]string, len(schemes))
	for i, s := range schemes {
		names[i] = s.Name
	}
	allowed := toSet(cfg.filterSchemeNames(names))
	var out []*scheme.Scheme
	for _, s := range schemes {
		if allowed[s.Name] {
			out = append(out, s)
		}
	}
	return out
}

// Apply executes stmts inside one outermost transaction, rolling back and
// surfacing sdberr.Info{FailedQuery: ...} on the first failing statement,
// grounded on the teacher's database.RunDDLs transaction-wrapping
// (database/database.go).
func Apply(ctx context.Context, db *sql.DB, stmts []Statement) error {
	tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return sdberr.Wrap(sdberr.KindBackendUnavailable, err, "migrate: begin transaction")
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt.SQL); err != nil {
			tx.Rollback()
			return sdberr.Wrap(sdberr.KindConstraintViolation, err, "migrate: apply statement").
				WithInfo(sdberr.Info{FailedQuery: stmt.SQL})
		}
	}
	if err := tx.Commit(); err != nil {
		return sdberr.Wrap(sdberr.KindBackendUnavailable, err, "migrate: commit")
	}
	return nil
}
