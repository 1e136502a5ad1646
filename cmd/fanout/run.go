package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/fanout-ai/fanout/pkg/config"
	"github.com/fanout-ai/fanout/pkg/executor"
	"github.com/fanout-ai/fanout/pkg/models"
	"github.com/fanout-ai/fanout/pkg/registry"
)

// batchFile is the on-disk batch format for `fanout run`.
type batchFile struct {
	Queries []batchQuery `yaml:"queries"`
}

type batchQuery struct {
	ID          string          `yaml:"id"`
	Task        models.TaskType `yaml:"task"`
	Payload     map[string]any  `yaml:"payload"`
	Temperature *float64        `yaml:"temperature"`
	MaxTokens   *int            `yaml:"max_tokens"`
	MaxRetries  *int            `yaml:"max_retries"`
	Timeout     time.Duration   `yaml:"timeout"`
}

func loadBatch(path string) ([]models.Query, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read batch file: %w", err)
	}

	var bf batchFile
	if err := yaml.Unmarshal(data, &bf); err != nil {
		return nil, fmt.Errorf("parse batch file: %w", err)
	}
	if len(bf.Queries) == 0 {
		return nil, fmt.Errorf("batch file has no queries")
	}

	queries := make([]models.Query, 0, len(bf.Queries))
	for _, bq := range bf.Queries {
		payload, err := json.Marshal(bq.Payload)
		if err != nil {
			return nil, fmt.Errorf("query %q: encode payload: %w", bq.ID, err)
		}
		id := bq.ID
		if id == "" {
			id = uuid.New().String()
		}
		queries = append(queries, models.Query{
			ID:          id,
			TaskType:    bq.Task,
			Payload:     payload,
			Temperature: bq.Temperature,
			MaxTokens:   bq.MaxTokens,
			MaxRetries:  bq.MaxRetries,
			Timeout:     bq.Timeout,
		})
	}
	return queries, nil
}

func newRunCmd() *cobra.Command {
	var (
		configPath  string
		batchPath   string
		concurrency int
		quiet       bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a batch of queries through the dispatch engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			queries, err := loadBatch(batchPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			engine, err := executor.Shared(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = registry.Default().Shutdown() }()

			opts := executor.Options{MaxConcurrency: concurrency}
			if !quiet {
				opts.OnProgress = func(res models.Result) {
					status := "ok"
					if !res.Success {
						status = "failed"
					} else if res.FromCache {
						status = "cached"
					}
					fmt.Fprintf(os.Stderr, "%s\t%s\t%v\n", res.QueryID, status, res.Duration.Round(time.Millisecond))
				}
			}

			batch, err := engine.ExecuteBatch(ctx, queries, opts)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "QUERY\tSTATUS\tPROVIDER\tMODEL\tATTEMPTS\tTOKENS\tCOST\tLATENCY")
			for _, r := range batch.Results {
				status := "ok"
				switch {
				case !r.Success:
					status = "failed"
				case r.FromCache:
					status = "cached"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t$%.6f\t%v\n",
					r.QueryID, status, r.Provider, r.Model, r.Attempts,
					r.Usage.TotalTokens, r.CostUSD, r.Duration.Round(time.Millisecond))
			}
			if err := w.Flush(); err != nil {
				return err
			}

			s := batch.Stats
			fmt.Printf("\n%d submitted, %d succeeded (%d cached), %d failed in %v — %d tokens, $%.6f\n",
				s.Submitted, s.Succeeded, s.FromCache, s.Failed,
				batch.Duration.Round(time.Millisecond), s.TotalTokens, s.TotalCost)

			if s.Failed > 0 {
				for _, r := range batch.Results {
					if !r.Success {
						fmt.Fprintf(os.Stderr, "query %s: %s\n", r.QueryID, r.Err)
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "fanout.yaml", "path to config file")
	cmd.Flags().StringVarP(&batchPath, "batch", "b", "batch.yaml", "path to batch file")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "override max_concurrency for this run")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress per-query progress output")
	return cmd
}
