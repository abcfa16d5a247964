package translator

import (
	"fmt"

	"github.com/stelladb/stellator/qbuilder"
	"github.com/stelladb/stellator/scheme"
)

// PageStrategy selects which keyset ("soft-limit") pagination shape spec
// §4.6 compiles, chosen by the caller based on the order field's
// declared indexing:
//   - ScalarOID: ordering by the implicit __oid sequence, the cheapest
//     case — a plain "> last_oid" predicate.
//   - UniqueIndexed: ordering by a field with a Unique index, which is
//     enough on its own to break ties deterministically.
//   - TieBreak: ordering by a non-unique or FullTextView field, which
//     needs a composite "(field, __oid) > (last_field, last_oid)" tuple
//     comparison (via a CTE on backends without row-value comparison) to
//     preserve a stable order across pages when values repeat.
type PageStrategy int

const (
	ScalarOID PageStrategy = iota
	UniqueIndexed
	TieBreak
)

// PageCursor is the opaque continuation token spec §4.6 keyset pagination
// hands back to the caller between pages: the last row's order-field
// value (nil for ScalarOID, where __oid alone suffices) and its __oid.
type PageCursor struct {
	Value any
	OID   int64
}

// StrategyFor picks the pagination strategy for ordering by field (spec
// §4.6: "scalar oid order / unique-indexed column / non-unique-or-FTS").
func StrategyFor(field *scheme.Field) PageStrategy {
	if field == nil || field.Name == "__oid" {
		return ScalarOID
	}
	if field.Type == scheme.TypeFullTextView {
		return TieBreak
	}
	if field.Flags.Has(scheme.Unique) {
		return UniqueIndexed
	}
	return TieBreak
}

// PrepareTieBreakCTE opens the "u" CTE the TieBreak strategy's keyset
// predicate (WritePageWhere) compares against, and must be called on b
// before Select() begins writing to it — a WITH clause can only be the
// first text of a statement (qbuilder.Builder.With no-ops past that
// point). A no-op for every other strategy, or when cursor is nil (first
// page, no predicate at all).
//
// This mirrors the original's "hasAltLimit" branch (STSqlQuery.cc's
// SqlQuery_makeWhereClause/SqlQuery_makeSoftLimitWith): rather than a
// plain tuple comparison, it collects every row strictly past cursor by
// the simple field (or rank) comparison into u, so WritePageWhere's
// predicate can include every row tied with the page boundary value
// instead of splitting them arbitrarily across pages by an oid tie-break.
func (c *Context) PrepareTieBreakCTE(b *qbuilder.Builder, orderField *scheme.Field, dir scheme.Direction, cursor *PageCursor, ftsQuery string) {
	if orderField == nil || cursor == nil || StrategyFor(orderField) != TieBreak {
		return
	}
	op := ">"
	if dir == scheme.Desc {
		op = "<"
	}
	isFTS := orderField.Type == scheme.TypeFullTextView
	var rankExpr, rankAlias string
	if isFTS {
		rankExpr, rankAlias = c.rankExprAndAlias(orderField, ftsQuery)
	}

	b.With("u", func(sub *qbuilder.Builder) {
		var cols []string
		if isFTS {
			cols = []string{qbuilder.Ident("__oid"), qbuilder.Aliased(rankExpr, rankAlias)}
		} else {
			cols = []string{qbuilder.Ident("__oid"), qbuilder.Ident(orderField.Name)}
		}
		sub.Select().Fields(cols...).From(c.Scheme.Name, "").
			Where(func(subWB *qbuilder.WhereBuilder) {
				if isFTS {
					writeRawCmp(subWB, rankExpr, qbuilder.KindFloat, cursor.Value, op)
				} else {
					writeCmp(subWB, orderField.Name, paramKind(orderField.Type), cursor.Value, op)
				}
			}).Finalize()
	})
}

// WritePageWhere appends the keyset continuation predicate for resuming
// after cursor, ordering by orderField in dir, into wb. A nil cursor
// means "first page": no predicate is added. ftsQuery is the already-
// compiled to_tsquery(...) expression backing orderField's rank when
// orderField is a FullTextView field ordered by rank (TieBreak strategy);
// ignored for every other strategy. When the strategy is TieBreak, the
// caller must have already run PrepareTieBreakCTE on the same statement's
// Builder before Select() started writing to it.
func (c *Context) WritePageWhere(wb *qbuilder.WhereBuilder, orderField *scheme.Field, dir scheme.Direction, cursor *PageCursor, ftsQuery string) error {
	if cursor == nil {
		return nil
	}
	strategy := StrategyFor(orderField)
	op := ">"
	if dir == scheme.Desc {
		op = "<"
	}
	switch strategy {
	case ScalarOID:
		writeCmp(wb, "__oid", qbuilder.KindInt, cursor.OID, op)
	case UniqueIndexed:
		kind := paramKind(orderField.Type)
		writeCmp(wb, orderField.Name, kind, cursor.Value, op)
	case TieBreak:
		return c.writeTieBreakPageWhere(wb, orderField, dir, ftsQuery)
	default:
		return fmt.Errorf("translator: unknown page strategy %d", strategy)
	}
	return nil
}

// writeTieBreakPageWhere appends the outer predicate referencing the "u"
// CTE PrepareTieBreakCTE already opened:
//
//	__oid IN (SELECT __oid FROM u) OR field = (SELECT MAX/MIN(field) FROM u)
func (c *Context) writeTieBreakPageWhere(wb *qbuilder.WhereBuilder, orderField *scheme.Field, dir scheme.Direction, ftsQuery string) error {
	isFTS := orderField.Type == scheme.TypeFullTextView

	agg := "MAX"
	if dir == scheme.Desc {
		agg = "MIN"
	}
	boundaryExpr := qbuilder.Ident(orderField.Name)
	boundaryCol := orderField.Name
	if isFTS {
		rankExpr, rankAlias := c.rankExprAndAlias(orderField, ftsQuery)
		boundaryExpr = rankExpr
		boundaryCol = rankAlias
	}

	wb.Raw(fmt.Sprintf("%s IN (SELECT %s FROM %s)", qbuilder.Ident("__oid"), qbuilder.Ident("__oid"), qbuilder.Ident("u")))
	wb.Or(fmt.Sprintf("%s = (SELECT %s(%s) FROM %s)", boundaryExpr, agg, qbuilder.Qualified("u", boundaryCol), qbuilder.Ident("u")))
	return nil
}

func writeCmp(wb *qbuilder.WhereBuilder, field string, kind qbuilder.ParamKind, value any, op string) {
	switch op {
	case ">":
		wb.Gt(field, kind, value)
	case "<":
		wb.Lt(field, kind, value)
	}
}

// writeRawCmp compares an already-rendered expression (not a plain column
// name) against a bound value, for the TieBreak FTS branch where the
// comparison target is a ts_rank(...) call rather than Ident(field).
func writeRawCmp(wb *qbuilder.WhereBuilder, expr string, kind qbuilder.ParamKind, value any, op string) {
	wb.Raw(fmt.Sprintf("%s %s %s", expr, op, wb.Bind(kind, value)))
}

// NextCursor extracts the continuation token from the last decoded row of
// a page, for the caller to hand back on the next Select call.
func NextCursor(orderField *scheme.Field, lastRowOID int64, lastRowOrderValue any) *PageCursor {
	if StrategyFor(orderField) == ScalarOID {
		return &PageCursor{OID: lastRowOID}
	}
	return &PageCursor{Value: lastRowOrderValue, OID: lastRowOID}
}
