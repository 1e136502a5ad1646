// Package cache is a similarity-indexed response cache. Lookups match any
// stored entry for the same provider and model whose content vector is close
// enough to the query content, so reworded repeats of a request skip the
// provider call entirely.
package cache

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/fanout-ai/fanout/pkg/models"
	"github.com/fanout-ai/fanout/pkg/pool"
)

const createCacheTable = `
CREATE TABLE IF NOT EXISTS cache_entries (
	fingerprint TEXT NOT NULL,
	provider TEXT NOT NULL,
	model TEXT NOT NULL,
	content TEXT NOT NULL,
	vector BLOB NOT NULL,
	payload BLOB NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	last_access DATETIME NOT NULL,
	hit_count INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (provider, model, fingerprint)
);
CREATE INDEX IF NOT EXISTS idx_cache_lru ON cache_entries(last_access);
`

// Cache is a semantic response cache backed by SQLite through a handle pool.
// It holds no mutable state of its own beyond hit/miss counters; entry
// mutation serializes on the backing store's single-writer lock.
type Cache struct {
	pool       *pool.Pool
	maxEntries int
	threshold  float64

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// New creates a Cache over the given pool with an entry-count bound and a
// similarity threshold in [0,1].
func New(ctx context.Context, p *pool.Pool, maxEntries int, threshold float64) (*Cache, error) {
	c := &Cache{pool: p, maxEntries: maxEntries, threshold: threshold}
	err := p.Do(ctx, func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, createCacheTable)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("migrate cache table: %w", err)
	}
	return c, nil
}

// Lookup returns the cached payload whose stored content is most similar to
// content, scoped to provider+model, if that similarity meets the threshold.
// Ties between equal scores go to the most recently accessed entry. Any
// storage failure is reported as a miss: a broken cache never fails a query.
func (c *Cache) Lookup(ctx context.Context, provider, model, content string) ([]byte, float64, bool) {
	queryVec := Vectorize(content)

	var (
		payload []byte
		bestKey string
		bestSim float64
		found   bool
	)

	err := c.pool.Do(ctx, func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx,
			`SELECT fingerprint, vector, payload, last_access FROM cache_entries WHERE provider = ? AND model = ?`,
			provider, model,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		var bestAccess time.Time
		for rows.Next() {
			var (
				fingerprint  string
				vecBlob      []byte
				entryPayload []byte
				lastAccess   time.Time
			)
			if err := rows.Scan(&fingerprint, &vecBlob, &entryPayload, &lastAccess); err != nil {
				continue // malformed row, treat as absent
			}
			vec, err := decodeVector(vecBlob)
			if err != nil {
				continue
			}

			sim := Cosine(queryVec, vec)
			if sim < c.threshold {
				continue
			}
			if !found || sim > bestSim || (sim == bestSim && lastAccess.After(bestAccess)) {
				found = true
				bestSim = sim
				bestKey = fingerprint
				bestAccess = lastAccess
				payload = entryPayload
			}
		}
		if err := rows.Err(); err != nil {
			return err
		}

		if found {
			// Write-after-read: bump recency and hit count on the match.
			_, err = db.ExecContext(ctx,
				`UPDATE cache_entries SET last_access = ?, hit_count = hit_count + 1
				 WHERE provider = ? AND model = ? AND fingerprint = ?`,
				time.Now().UTC(), provider, model, bestKey,
			)
			return err
		}
		return nil
	})
	if err != nil {
		log.Printf("cache lookup degraded to miss: %v", err)
		c.misses.Add(1)
		return nil, 0, false
	}

	if !found {
		c.misses.Add(1)
		return nil, 0, false
	}
	c.hits.Add(1)
	return payload, bestSim, true
}

// Store inserts or replaces an entry and evicts the least-recently-accessed
// entries when the configured bound would be exceeded.
func (c *Cache) Store(ctx context.Context, provider, model, content string, payload []byte) error {
	fingerprint := Fingerprint(provider, model, content)
	vecBlob := encodeVector(Vectorize(content))
	now := time.Now().UTC()

	err := c.pool.Do(ctx, func(db *sql.DB) error {
		_, err := db.ExecContext(ctx,
			`INSERT OR REPLACE INTO cache_entries
			 (fingerprint, provider, model, content, vector, payload, created_at, last_access, hit_count)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)`,
			fingerprint, provider, model, NormalizeContent(content), vecBlob, payload, now, now,
		)
		if err != nil {
			return err
		}
		return c.evictOver(ctx, db)
	})
	if err != nil {
		return fmt.Errorf("cache store: %w", err)
	}
	return nil
}

// evictOver removes the oldest-accessed entries beyond the configured bound.
func (c *Cache) evictOver(ctx context.Context, db *sql.DB) error {
	var count int64
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cache_entries`).Scan(&count); err != nil {
		return err
	}
	over := count - int64(c.maxEntries)
	if over <= 0 {
		return nil
	}
	res, err := db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE rowid IN
		 (SELECT rowid FROM cache_entries ORDER BY last_access ASC, rowid ASC LIMIT ?)`,
		over,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil {
		c.evictions.Add(n)
	}
	return nil
}

// Entries lists the most recently accessed entries, newest first, up to
// limit. Vectors are not decoded; listings are for inspection, not matching.
func (c *Cache) Entries(ctx context.Context, limit int) ([]models.CacheEntry, error) {
	var entries []models.CacheEntry
	err := c.pool.Do(ctx, func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx,
			`SELECT fingerprint, provider, model, content, created_at, last_access, hit_count
			 FROM cache_entries ORDER BY last_access DESC, rowid DESC LIMIT ?`,
			limit,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var e models.CacheEntry
			if err := rows.Scan(&e.Fingerprint, &e.Provider, &e.Model, &e.Content,
				&e.CreatedAt, &e.LastAccess, &e.HitCount); err != nil {
				return err
			}
			entries = append(entries, e)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("cache entries: %w", err)
	}
	return entries, nil
}

// Stats returns cache performance metrics.
func (c *Cache) Stats(ctx context.Context) (models.CacheStats, error) {
	var count int64
	err := c.pool.Do(ctx, func(db *sql.DB) error {
		return db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cache_entries`).Scan(&count)
	})
	if err != nil {
		return models.CacheStats{}, fmt.Errorf("cache stats: %w", err)
	}
	return models.CacheStats{
		Entries:   count,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}, nil
}

// Clear removes all cache entries.
func (c *Cache) Clear(ctx context.Context) error {
	err := c.pool.Do(ctx, func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `DELETE FROM cache_entries`)
		return err
	})
	if err != nil {
		return fmt.Errorf("cache clear: %w", err)
	}
	return nil
}
