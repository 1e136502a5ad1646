package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	cachepkg "github.com/fanout-ai/fanout/pkg/cache"
	"github.com/fanout-ai/fanout/pkg/config"
	"github.com/fanout-ai/fanout/pkg/pool"
)

func openCache(ctx context.Context, cfg *config.Config) (*cachepkg.Cache, *pool.Pool, error) {
	p, err := pool.Open(cfg.DBPath, cfg.Pool.Size, cfg.Pool.AcquireTimeout)
	if err != nil {
		return nil, nil, err
	}
	c, err := cachepkg.New(ctx, p, cfg.Cache.MaxEntries, cfg.Cache.SimilarityThreshold)
	if err != nil {
		_ = p.Close()
		return nil, nil, err
	}
	return c, p, nil
}

func newCacheCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the semantic cache",
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			ctx := context.Background()
			c, p, err := openCache(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = p.Close() }()

			stats, err := c.Stats(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Entries:   %d\nHits:      %d\nMisses:    %d\nEvictions: %d\n",
				stats.Entries, stats.Hits, stats.Misses, stats.Evictions)
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear all cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			ctx := context.Background()
			c, p, err := openCache(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = p.Close() }()

			if err := c.Clear(ctx); err != nil {
				return err
			}
			fmt.Println("All cache entries cleared.")
			return nil
		},
	}

	var listLimit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List cached entries, most recently used first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			ctx := context.Background()
			c, p, err := openCache(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = p.Close() }()

			entries, err := c.Entries(ctx, listLimit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("Cache is empty.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tPROVIDER\tMODEL\tHITS\tLAST ACCESS\tCONTENT")
			for _, e := range entries {
				content := e.Content
				if len(content) > 48 {
					content = content[:45] + "..."
				}
				fmt.Fprintf(w, "%.12s\t%s\t%s\t%d\t%s\t%s\n",
					e.Fingerprint, e.Provider, e.Model, e.HitCount,
					e.LastAccess.Local().Format("2006-01-02 15:04:05"), content)
			}
			return w.Flush()
		},
	}
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 20, "maximum entries to list")

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "fanout.yaml", "path to config file")
	cmd.AddCommand(statsCmd, clearCmd, listCmd)
	return cmd
}
