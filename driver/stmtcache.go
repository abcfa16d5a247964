package driver

import (
	"container/list"
	"context"
	"database/sql"
	"sync"
)

// StmtCache is a small, bounded per-connection prepared-statement cache
// with LRU eviction (spec §4.1: "Prepared statements are cached per
// connection; cache eviction is LRU with a small bound").
type StmtCache struct {
	mu       sync.Mutex
	cap      int
	ll       *list.List
	items    map[string]*list.Element
}

type stmtEntry struct {
	sql  string
	stmt *sql.Stmt
}

// DefaultStmtCacheSize is the small bound spec §4.1 calls for.
const DefaultStmtCacheSize = 128

func NewStmtCache(capacity int) *StmtCache {
	if capacity <= 0 {
		capacity = DefaultStmtCacheSize
	}
	return &StmtCache{cap: capacity, ll: list.New(), items: make(map[string]*list.Element)}
}

// Prepare returns a cached *sql.Stmt for sql, preparing and caching it on
// the given connection if absent, evicting the least-recently-used entry
// when the cache is full.
func (c *StmtCache) Prepare(ctx context.Context, conn *sql.Conn, query string) (*sql.Stmt, error) {
	c.mu.Lock()
	if el, ok := c.items[query]; ok {
		c.ll.MoveToFront(el)
		stmt := el.Value.(*stmtEntry).stmt
		c.mu.Unlock()
		return stmt, nil
	}
	c.mu.Unlock()

	stmt, err := conn.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[query]; ok {
		// Lost the race to prepare the same statement twice; keep the
		// winner, discard ours.
		stmt.Close()
		c.ll.MoveToFront(el)
		return el.Value.(*stmtEntry).stmt, nil
	}
	el := c.ll.PushFront(&stmtEntry{sql: query, stmt: stmt})
	c.items[query] = el
	if c.ll.Len() > c.cap {
		oldest := c.ll.Back()
		if oldest != nil {
			entry := oldest.Value.(*stmtEntry)
			entry.stmt.Close()
			delete(c.items, entry.sql)
			c.ll.Remove(oldest)
		}
	}
	return stmt, nil
}

// Close closes every cached statement and clears the cache.
func (c *StmtCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for el := c.ll.Front(); el != nil; el = el.Next() {
		if err := el.Value.(*stmtEntry).stmt.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.ll.Init()
	c.items = make(map[string]*list.Element)
	return firstErr
}
