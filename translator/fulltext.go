package translator

import (
	"container/list"
	"fmt"
	"strings"
	"sync"

	"github.com/stelladb/stellator/qbuilder"
	"github.com/stelladb/stellator/scheme"
)

// DefaultFullTextCacheSize bounds the compiled-query LRU (spec §4.6:
// "a small bounded LRU"), grounded on driver.StmtCache's eviction shape,
// generalized from per-connection to process-wide and keyed by
// (scheme, field, query) instead of by SQL text.
const DefaultFullTextCacheSize = 256

type ftsKey struct {
	scheme string
	field  string
	query  string
}

// FullTextCache memoizes compiled to_tsquery(...)/MATCH expressions keyed
// by (scheme, field) → query text, avoiding recompiling the same search
// phrase across requests (spec §4.6 "Full-text query caching").
type FullTextCache struct {
	mu    sync.Mutex
	cap   int
	ll    *list.List
	items map[ftsKey]*list.Element
}

type ftsEntry struct {
	key  ftsKey
	expr string
}

// NewFullTextCache returns an empty cache bounded to capacity entries
// (DefaultFullTextCacheSize when capacity<=0).
func NewFullTextCache(capacity int) *FullTextCache {
	if capacity <= 0 {
		capacity = DefaultFullTextCacheSize
	}
	return &FullTextCache{cap: capacity, ll: list.New(), items: make(map[ftsKey]*list.Element)}
}

// Compile returns the compiled match expression for query against f,
// caching by (scheme, field, query). PostgreSQL compiles a genuine
// to_tsquery(...) call per spec §4.6 normalisation rules; SQLite has no
// native FTS ranking in this engine's scope, so it falls back to a LIKE
// match, matching spec §4.6's "SQLite path stubbing rank to NULL".
func (c *FullTextCache) Compile(dialect qbuilder.Dialect, schemeName string, f *scheme.Field, query string) string {
	key := ftsKey{scheme: schemeName, field: f.Name, query: query}

	c.mu.Lock()
	if el, ok := c.items[key]; ok {
		c.ll.MoveToFront(el)
		expr := el.Value.(*ftsEntry).expr
		c.mu.Unlock()
		return expr
	}
	c.mu.Unlock()

	expr := compileFullTextExpr(dialect, f, query)

	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.ll.MoveToFront(el)
		return el.Value.(*ftsEntry).expr
	}
	el := c.ll.PushFront(&ftsEntry{key: key, expr: expr})
	c.items[key] = el
	if c.ll.Len() > c.cap {
		oldest := c.ll.Back()
		if oldest != nil {
			delete(c.items, oldest.Value.(*ftsEntry).key)
			c.ll.Remove(oldest)
		}
	}
	return expr
}

func compileFullTextExpr(dialect qbuilder.Dialect, f *scheme.Field, query string) string {
	if dialect != qbuilder.Postgres {
		return fmt.Sprintf("'%%%s%%'", escapeSQLString(query))
	}
	language := "english"
	return fmt.Sprintf("to_tsquery(%s, '%s')", quoteLiteral(language), escapeSQLString(tokenize(query)))
}

// tokenize joins a free-text search phrase's words with " & " for a basic
// AND-of-terms to_tsquery expression; richer operators (OR, prefix match,
// phrase) are a caller concern via a raw Condition.Value1 string using
// to_tsquery's own operator syntax directly, which this function passes
// through unchanged when it already contains a tsquery operator.
func tokenize(query string) string {
	if strings.ContainsAny(query, "&|!<>()") {
		return query
	}
	fields := strings.Fields(query)
	return strings.Join(fields, " & ")
}

func quoteLiteral(s string) string { return "'" + escapeSQLString(s) + "'" }

// WriteFullTextRank appends a ts_rank(...) projection for f against an
// already-compiled tsquery expression (spec §4.6 "writeFullTextRank"),
// honouring the normalisation flags declared on FullText (doc-length and
// unique-words variants, log or linear). SQLite has no tsvector/ts_rank
// equivalent in scope, so its projection is a literal NULL, matching spec
// §4.6's explicit SQLite stub.
func (c *Context) WriteFullTextRank(f *scheme.Field, compiledQuery string) string {
	expr, alias := c.rankExprAndAlias(f, compiledQuery)
	return qbuilder.Aliased(expr, alias)
}

// rankExprAndAlias returns the bare ts_rank(...) expression text (without
// an AS alias) alongside the "__ts_rank_<field>" alias it is normally
// projected under, so callers that need to recompute the same expression
// outside the original SELECT list (the keyset tie-break pagination
// predicate, which cannot reference a sibling SELECT's column alias) can
// do so without re-deriving it.
func (c *Context) rankExprAndAlias(f *scheme.Field, compiledQuery string) (expr, alias string) {
	alias = "__ts_rank_" + f.Name
	if c.Dialect != qbuilder.Postgres {
		return "NULL", alias
	}
	norm := rankNormalization(f.FullText)
	return fmt.Sprintf("ts_rank(%s, %s, %d)", qbuilder.Ident(f.Name), compiledQuery, norm), alias
}

// rankNormalization maps the Ts-prefixed flag bits on a FullText
// declaration to PostgreSQL's ts_rank normalization bitmask (spec §4.6
// "four normalisation variants").
func rankNormalization(ft *scheme.FullText) int {
	if ft == nil {
		return 0
	}
	n := 0
	if ft.Normalization.Has(scheme.TsNormDocLength) {
		n |= 2
	}
	if ft.Normalization.Has(scheme.TsNormDocLengthLog) {
		n |= 1
	}
	if ft.Normalization.Has(scheme.TsNormUniqueWords) {
		n |= 8
	}
	if ft.Normalization.Has(scheme.TsNormUniqueWordsLog) {
		n |= 16
	}
	return n
}
