// Package usage persists per-query token and cost accounting so batch runs
// can be audited after the fact.
package usage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fanout-ai/fanout/pkg/models"
	"github.com/fanout-ai/fanout/pkg/pool"
)

const createUsageTable = `
CREATE TABLE IF NOT EXISTS usage_records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	batch_id TEXT NOT NULL,
	query_id TEXT NOT NULL,
	provider TEXT NOT NULL,
	model TEXT NOT NULL,
	prompt_tokens INTEGER NOT NULL,
	completion_tokens INTEGER NOT NULL,
	total_tokens INTEGER NOT NULL,
	cost_usd REAL NOT NULL,
	latency_ms INTEGER NOT NULL,
	from_cache INTEGER NOT NULL DEFAULT 0,
	success INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_usage_batch ON usage_records(batch_id);
CREATE INDEX IF NOT EXISTS idx_usage_provider ON usage_records(provider, model);
`

// Recorder writes and queries usage records through the shared handle pool.
type Recorder struct {
	pool *pool.Pool
}

// New creates a Recorder and runs auto-migration.
func New(ctx context.Context, p *pool.Pool) (*Recorder, error) {
	r := &Recorder{pool: p}
	err := p.Do(ctx, func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, createUsageTable)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("migrate usage table: %w", err)
	}
	return r, nil
}

// Record stores one usage record.
func (r *Recorder) Record(ctx context.Context, rec models.UsageRecord) error {
	err := r.pool.Do(ctx, func(db *sql.DB) error {
		_, err := db.ExecContext(ctx,
			`INSERT INTO usage_records
			 (batch_id, query_id, provider, model, prompt_tokens, completion_tokens, total_tokens, cost_usd, latency_ms, from_cache, success, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.BatchID, rec.QueryID, rec.Provider, rec.Model,
			rec.PromptTokens, rec.CompletionTokens, rec.TotalTokens,
			rec.CostUSD, rec.Latency.Milliseconds(), rec.FromCache, rec.Success,
			rec.CreatedAt,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	return nil
}

// Summary returns aggregated usage grouped by provider and model, optionally
// filtered by provider.
func (r *Recorder) Summary(ctx context.Context, providerName string) ([]models.UsageSummary, error) {
	query := `SELECT provider, model, COUNT(*), SUM(from_cache),
		 SUM(prompt_tokens), SUM(completion_tokens), SUM(total_tokens), SUM(cost_usd)
		 FROM usage_records`
	var args []any
	if providerName != "" {
		query += ` WHERE provider = ?`
		args = append(args, providerName)
	}
	query += ` GROUP BY provider, model ORDER BY provider, model`

	var summaries []models.UsageSummary
	err := r.pool.Do(ctx, func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var s models.UsageSummary
			if err := rows.Scan(&s.Provider, &s.Model, &s.RequestCount, &s.CacheHits,
				&s.TotalPrompt, &s.TotalCompletion, &s.TotalTokens, &s.TotalCostUSD); err != nil {
				return err
			}
			summaries = append(summaries, s)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("usage summary: %w", err)
	}
	return summaries, nil
}

// ByBatch returns the usage records of one batch in insertion order.
func (r *Recorder) ByBatch(ctx context.Context, batchID string) ([]models.UsageRecord, error) {
	var records []models.UsageRecord
	err := r.pool.Do(ctx, func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx,
			`SELECT id, batch_id, query_id, provider, model, prompt_tokens, completion_tokens, total_tokens, cost_usd, latency_ms, from_cache, success, created_at
			 FROM usage_records WHERE batch_id = ? ORDER BY id ASC`,
			batchID,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var rec models.UsageRecord
			var latencyMS int64
			if err := rows.Scan(&rec.ID, &rec.BatchID, &rec.QueryID, &rec.Provider, &rec.Model,
				&rec.PromptTokens, &rec.CompletionTokens, &rec.TotalTokens,
				&rec.CostUSD, &latencyMS, &rec.FromCache, &rec.Success, &rec.CreatedAt); err != nil {
				return err
			}
			rec.Latency = time.Duration(latencyMS) * time.Millisecond
			records = append(records, rec)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("usage by batch: %w", err)
	}
	return records, nil
}
