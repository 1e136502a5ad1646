package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fanout-ai/fanout/pkg/config"
	"github.com/fanout-ai/fanout/pkg/pool"
	"github.com/fanout-ai/fanout/pkg/usage"
)

func newStatsCmd() *cobra.Command {
	var (
		configPath string
		provider   string
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show token usage and cost statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			ctx := context.Background()
			p, err := pool.Open(cfg.DBPath, cfg.Pool.Size, cfg.Pool.AcquireTimeout)
			if err != nil {
				return err
			}
			defer func() { _ = p.Close() }()

			rec, err := usage.New(ctx, p)
			if err != nil {
				return err
			}

			summaries, err := rec.Summary(ctx, provider)
			if err != nil {
				return err
			}
			if len(summaries) == 0 {
				fmt.Println("No usage data found.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PROVIDER\tMODEL\tREQUESTS\tCACHED\tPROMPT\tCOMPLETION\tTOTAL\tCOST")
			for _, s := range summaries {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t$%.6f\n",
					s.Provider, s.Model, s.RequestCount, s.CacheHits,
					s.TotalPrompt, s.TotalCompletion, s.TotalTokens, s.TotalCostUSD)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "fanout.yaml", "path to config file")
	cmd.Flags().StringVar(&provider, "provider", "", "filter by provider name")
	return cmd
}
