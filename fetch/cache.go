package fetch

import (
	"context"
	"fmt"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

const cacheSchema = `
CREATE TABLE IF NOT EXISTS responses (
	url          TEXT PRIMARY KEY,
	content_type TEXT NOT NULL DEFAULT '',
	body         BLOB NOT NULL,
	fetched_at   INTEGER NOT NULL
);`

// Cache is a URL-keyed response cache backed by a local SQLite database.
// Lookups and stores are best effort, a broken cache never fails a run.
type Cache struct {
	pool *sqlitex.Pool
}

func OpenCache(path string) (*Cache, error) {
	pool, err := sqlitex.NewPool(path, sqlitex.PoolOptions{PoolSize: 4})
	if err != nil {
		return nil, fmt.Errorf("unable to open cache at %s: %w", path, err)
	}
	conn, err := pool.Take(context.Background())
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to initialize cache: %w", err)
	}
	defer pool.Put(conn)
	if err := sqlitex.ExecuteScript(conn, cacheSchema, nil); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to initialize cache schema: %w", err)
	}
	return &Cache{pool: pool}, nil
}

func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.pool.Close()
}

// Get returns the cached body and content type for url.
func (c *Cache) Get(ctx context.Context, url string) ([]byte, string, bool) {
	if c == nil {
		return nil, "", false
	}
	conn, err := c.pool.Take(ctx)
	if err != nil {
		return nil, "", false
	}
	defer c.pool.Put(conn)

	var (
		body  []byte
		ctype string
		found bool
	)
	err = sqlitex.Execute(conn, `SELECT body, content_type FROM responses WHERE url = ?`, &sqlitex.ExecOptions{
		Args: []any{url},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			found = true
			body = make([]byte, stmt.ColumnLen(0))
			stmt.ColumnBytes(0, body)
			ctype = stmt.ColumnText(1)
			return nil
		},
	})
	if err != nil || !found {
		return nil, "", false
	}
	return body, ctype, true
}

// Put stores a response overwriting any previous entry for url.
func (c *Cache) Put(ctx context.Context, url string, body []byte, ctype string) {
	if c == nil {
		return
	}
	conn, err := c.pool.Take(ctx)
	if err != nil {
		return
	}
	defer c.pool.Put(conn)

	_ = sqlitex.Execute(conn, `INSERT OR REPLACE INTO responses (url, content_type, body, fetched_at) VALUES (?, ?, ?, ?)`, &sqlitex.ExecOptions{
		Args: []any{url, ctype, body, time.Now().Unix()},
	})
}
