package executor

import (
	"context"
	"fmt"

	"github.com/fanout-ai/fanout/pkg/cache"
	"github.com/fanout-ai/fanout/pkg/config"
	"github.com/fanout-ai/fanout/pkg/limiter"
	"github.com/fanout-ai/fanout/pkg/pool"
	"github.com/fanout-ai/fanout/pkg/registry"
	"github.com/fanout-ai/fanout/pkg/router"
	"github.com/fanout-ai/fanout/pkg/usage"
)

// Shared builds an Engine whose pool, limiter, cache and usage recorder are
// process-wide singletons keyed by backing-store location and rate profile.
// Concurrent callers converge on the same instances; the default registry's
// Shutdown drains them at process exit.
func Shared(ctx context.Context, cfg *config.Config) (*Engine, error) {
	reg := registry.Default()

	p, err := registry.Shared(reg, "pool:"+cfg.DBPath, func() (*pool.Pool, error) {
		return pool.Open(cfg.DBPath, cfg.Pool.Size, cfg.Pool.AcquireTimeout)
	})
	if err != nil {
		return nil, fmt.Errorf("shared pool: %w", err)
	}

	lim, err := registry.Shared(reg, fmt.Sprintf("limiter:%g", cfg.RequestsPerSecond), func() (*limiter.Limiter, error) {
		return limiter.New(cfg.RequestsPerSecond), nil
	})
	if err != nil {
		return nil, fmt.Errorf("shared limiter: %w", err)
	}

	var c *cache.Cache
	if cfg.Cache.Enabled {
		c, err = registry.Shared(reg, "cache:"+cfg.DBPath, func() (*cache.Cache, error) {
			return cache.New(ctx, p, cfg.Cache.MaxEntries, cfg.Cache.SimilarityThreshold)
		})
		if err != nil {
			return nil, fmt.Errorf("shared cache: %w", err)
		}
	}

	rec, err := registry.Shared(reg, "usage:"+cfg.DBPath, func() (*usage.Recorder, error) {
		return usage.New(ctx, p)
	})
	if err != nil {
		return nil, fmt.Errorf("shared usage recorder: %w", err)
	}

	rt, err := router.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("build router: %w", err)
	}

	return New(cfg, rt, lim, c, rec), nil
}
