package imagetopim

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/imagetopim/imagetopim/pim"
	_ "github.com/mattn/go-sqlite3"
)

// Cache stores encoded PIM files keyed by the SHA-1 of the source image, the
// bit depth and the conversion options.
type Cache struct {
	db *sql.DB
}

// NewCache opens or creates the cache database at file.
func NewCache(file string) (*Cache, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("%s?_busy_timeout=5000", file))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)

	if _, err = db.Exec("CREATE TABLE IF NOT EXISTS pim (id INTEGER PRIMARY KEY NOT NULL, sha1 TEXT NOT NULL, depth INTEGER NOT NULL, options TEXT NOT NULL, data BLOB NOT NULL, UNIQUE(sha1, depth, options))"); err != nil {
		db.Close()
		return nil, err
	}

	return &Cache{
		db: db,
	}, nil
}

// Find returns the cached file or nil if there isn't one.
func (c *Cache) Find(ctx context.Context, sha string, d pim.Depth, options string) ([]byte, error) {
	var data []byte
	switch err := c.db.QueryRowContext(ctx, "SELECT data FROM pim WHERE sha1 = ? AND depth = ? AND options = ?", sha, int(d), options).Scan(&data); err {
	case sql.ErrNoRows:
		return nil, nil
	case nil:
		return data, nil
	default:
		return nil, err
	}
}

// Store adds or replaces a cached file.
func (c *Cache) Store(ctx context.Context, sha string, d pim.Depth, options string, data []byte) error {
	if _, err := c.db.ExecContext(ctx, "INSERT OR REPLACE INTO pim (sha1, depth, options, data) VALUES (?, ?, ?, ?)", sha, int(d), options, data); err != nil {
		return err
	}
	return nil
}

// Length returns the number of cached files.
func (c *Cache) Length(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM pim").Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Close closes the database.
func (c *Cache) Close() error {
	return c.db.Close()
}
