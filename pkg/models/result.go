package models

import "time"

// Result is the outcome of exactly one Query, produced after all retries
// succeeded or were exhausted.
type Result struct {
	QueryID   string        `json:"query_id"`
	Success   bool          `json:"success"`
	FromCache bool          `json:"from_cache"`
	Content   []byte        `json:"content,omitempty"`
	Err       string        `json:"error,omitempty"`
	Provider  string        `json:"provider,omitempty"`
	Model     string        `json:"model,omitempty"`
	Attempts  int           `json:"attempts"`
	Usage     Usage         `json:"usage"`
	CostUSD   float64       `json:"cost_usd"`
	Duration  time.Duration `json:"duration"`
}

// BatchResult holds every Result of a batch, keyed back to queries by ID.
// Results appear in completion order.
type BatchResult struct {
	ID       string        `json:"id"`
	Results  []Result      `json:"results"`
	Stats    BatchStats    `json:"stats"`
	Duration time.Duration `json:"duration"`
}

// ByQueryID returns the result for the given query ID, if present.
func (b *BatchResult) ByQueryID(id string) (Result, bool) {
	for _, r := range b.Results {
		if r.QueryID == id {
			return r, true
		}
	}
	return Result{}, false
}

// BatchStats aggregates a batch's results. It is derived once from the
// immutable Result set after all workers finish, never incremented by them.
type BatchStats struct {
	Submitted   int           `json:"submitted"`
	Succeeded   int           `json:"succeeded"`
	Failed      int           `json:"failed"`
	FromCache   int           `json:"from_cache"`
	TotalTokens int           `json:"total_tokens"`
	TotalCost   float64       `json:"total_cost_usd"`
	MinLatency  time.Duration `json:"min_latency"`
	MaxLatency  time.Duration `json:"max_latency"`
	AvgLatency  time.Duration `json:"avg_latency"`
}

// ComputeStats derives BatchStats from a result set.
func ComputeStats(results []Result) BatchStats {
	stats := BatchStats{Submitted: len(results)}
	var total time.Duration
	for i, r := range results {
		if r.Success {
			stats.Succeeded++
		} else {
			stats.Failed++
		}
		if r.FromCache {
			stats.FromCache++
		}
		stats.TotalTokens += r.Usage.TotalTokens
		stats.TotalCost += r.CostUSD
		total += r.Duration
		if i == 0 || r.Duration < stats.MinLatency {
			stats.MinLatency = r.Duration
		}
		if r.Duration > stats.MaxLatency {
			stats.MaxLatency = r.Duration
		}
	}
	if len(results) > 0 {
		stats.AvgLatency = total / time.Duration(len(results))
	}
	return stats
}
