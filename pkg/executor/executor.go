// Package executor fans a batch of independent provider queries out to
// workers under bounded concurrency, consulting the semantic cache, pacing
// calls through the shared rate limiter, retrying transient failures with
// backoff, and aggregating every outcome into a BatchResult.
package executor

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/fanout-ai/fanout/pkg/cache"
	"github.com/fanout-ai/fanout/pkg/config"
	"github.com/fanout-ai/fanout/pkg/limiter"
	"github.com/fanout-ai/fanout/pkg/models"
	"github.com/fanout-ai/fanout/pkg/provider"
	"github.com/fanout-ai/fanout/pkg/router"
	"github.com/fanout-ai/fanout/pkg/usage"
)

// Options tunes one batch execution. Zero values fall back to the engine's
// configured defaults.
type Options struct {
	MaxConcurrency int
	// OnProgress is invoked once per completed query, on the worker that
	// completed it. Panics in the callback are recovered and logged.
	OnProgress func(models.Result)
}

// Engine executes query batches. The cache and usage recorder are optional;
// a nil cache disables caching, a nil recorder disables accounting.
type Engine struct {
	cfg     *config.Config
	router  *router.Router
	limiter *limiter.Limiter
	cache   *cache.Cache
	usage   *usage.Recorder
}

// New wires an Engine from its collaborators.
func New(cfg *config.Config, rt *router.Router, lim *limiter.Limiter, c *cache.Cache, rec *usage.Recorder) *Engine {
	return &Engine{cfg: cfg, router: rt, limiter: lim, cache: c, usage: rec}
}

// ExecuteBatch runs every query under bounded concurrency and returns
// exactly one Result per query, in completion order. Canceling ctx stops
// dispatching new queries; in-flight queries finish naturally and queries
// never dispatched yield failed Results marked canceled.
func (e *Engine) ExecuteBatch(ctx context.Context, queries []models.Query, opts Options) (*models.BatchResult, error) {
	maxConcurrency := opts.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = e.cfg.MaxConcurrency
	}

	batchID := uuid.New().String()
	start := time.Now()
	results := make(chan models.Result, len(queries))

	var g errgroup.Group
	g.SetLimit(maxConcurrency)

	for _, q := range queries {
		if ctx.Err() != nil {
			res := models.Result{
				QueryID: q.ID,
				Err:     fmt.Sprintf("batch canceled before dispatch: %v", context.Cause(ctx)),
			}
			notify(opts.OnProgress, res)
			results <- res
			continue
		}

		q := q
		g.Go(func() error {
			res := e.runQuery(ctx, batchID, q)
			notify(opts.OnProgress, res)
			results <- res
			return nil
		})
	}

	_ = g.Wait()
	close(results)

	batch := &models.BatchResult{ID: batchID}
	for res := range results {
		batch.Results = append(batch.Results, res)
	}
	batch.Stats = models.ComputeStats(batch.Results)
	batch.Duration = time.Since(start)
	return batch, nil
}

// runQuery executes one query end to end: cache lookup, rate-limited
// provider attempts across the route chain, write-through, accounting.
// The batch context only gates dispatch; once running, a query detaches so
// cancellation never interrupts it mid-flight.
func (e *Engine) runQuery(ctx context.Context, batchID string, q models.Query) models.Result {
	start := time.Now()
	base := context.WithoutCancel(ctx)

	targets, err := e.router.Resolve(q.TaskType)
	if err != nil {
		return models.Result{
			QueryID:  q.ID,
			Err:      err.Error(),
			Duration: time.Since(start),
		}
	}

	content := string(q.Payload)
	primary := targets[0]

	if e.cache != nil {
		if payload, _, ok := e.cache.Lookup(base, primary.Provider, primary.Model, content); ok {
			res := models.Result{
				QueryID:   q.ID,
				Success:   true,
				FromCache: true,
				Content:   payload,
				Provider:  primary.Provider,
				Model:     primary.Model,
				Duration:  time.Since(start),
			}
			e.record(base, batchID, res)
			return res
		}
	}

	queryCtx := base
	if q.Timeout > 0 {
		var cancel context.CancelFunc
		queryCtx, cancel = context.WithTimeout(base, q.Timeout)
		defer cancel()
	}

	maxRetries := e.cfg.MaxRetries
	if q.MaxRetries != nil {
		maxRetries = *q.MaxRetries
	}

	var (
		lastErr  error
		attempts int
	)

targets:
	for _, t := range targets {
		for attempt := 0; attempt <= maxRetries; attempt++ {
			if attempt > 0 {
				delay := backoff(e.cfg.Retry.BaseDelay, e.cfg.Retry.MaxDelay, attempt)
				log.Printf("query %s: retrying %s in %v (attempt %d/%d): %v",
					q.ID, t.Provider, delay, attempt+1, maxRetries+1, lastErr)
				select {
				case <-time.After(delay):
				case <-queryCtx.Done():
					lastErr = fmt.Errorf("query timed out: %w", queryCtx.Err())
					break targets
				}
			}

			// Every attempt, including retries, consumes a rate permit.
			if err := e.limiter.Acquire(queryCtx); err != nil {
				lastErr = err
				break targets
			}

			attempts++
			resp, err := t.Caller.Call(queryCtx, provider.Request{
				Model:       t.Model,
				Payload:     q.Payload,
				Temperature: q.Temperature,
				MaxTokens:   q.MaxTokens,
			})
			if err == nil {
				res := models.Result{
					QueryID:  q.ID,
					Success:  true,
					Content:  resp.Content,
					Provider: t.Provider,
					Model:    resp.Model,
					Attempts: attempts,
					Usage:    resp.Usage,
					CostUSD:  resp.CostUSD,
					Duration: time.Since(start),
				}
				e.writeThrough(base, t, content, resp.Content, q.ID)
				e.record(base, batchID, res)
				return res
			}

			lastErr = err
			if queryCtx.Err() != nil {
				lastErr = fmt.Errorf("query timed out: %w", lastErr)
				break targets
			}
			if !provider.IsRetryable(err) {
				// Permanent failure: no retry on this target, fall
				// through to the next one in the chain.
				log.Printf("query %s: permanent failure from %s, trying next target: %v", q.ID, t.Provider, err)
				continue targets
			}
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no provider target produced a result")
	}
	res := models.Result{
		QueryID:  q.ID,
		Err:      lastErr.Error(),
		Provider: primary.Provider,
		Model:    primary.Model,
		Attempts: attempts,
		Duration: time.Since(start),
	}
	e.record(base, batchID, res)
	return res
}

// writeThrough stores a fresh provider result in the cache. A cache write
// failure is logged and swallowed: the caller already has the payload.
func (e *Engine) writeThrough(ctx context.Context, t router.Target, content string, payload []byte, queryID string) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Store(ctx, t.Provider, t.Model, content, payload); err != nil {
		log.Printf("query %s: cache write failed: %v", queryID, err)
	}
}

// record persists accounting for a completed query. Failures are logged,
// never surfaced.
func (e *Engine) record(ctx context.Context, batchID string, res models.Result) {
	if e.usage == nil {
		return
	}
	err := e.usage.Record(ctx, models.UsageRecord{
		BatchID:          batchID,
		QueryID:          res.QueryID,
		Provider:         res.Provider,
		Model:            res.Model,
		PromptTokens:     res.Usage.PromptTokens,
		CompletionTokens: res.Usage.CompletionTokens,
		TotalTokens:      res.Usage.TotalTokens,
		CostUSD:          res.CostUSD,
		Latency:          res.Duration,
		FromCache:        res.FromCache,
		Success:          res.Success,
		CreatedAt:        time.Now().UTC(),
	})
	if err != nil {
		log.Printf("query %s: usage record failed: %v", res.QueryID, err)
	}
}

// backoff computes the delay before the given retry attempt: base doubled
// per attempt, capped, with uniform jitter in ±20%.
func backoff(base, max time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = 250 * time.Millisecond
	}
	if max <= 0 {
		max = 4 * time.Second
	}
	d := base << (attempt - 1)
	if d > max || d <= 0 {
		d = max
	}
	jitter := 0.8 + 0.4*rand.Float64()
	return time.Duration(float64(d) * jitter)
}

func notify(fn func(models.Result), res models.Result) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("progress callback panicked: %v", r)
		}
	}()
	fn(res)
}
