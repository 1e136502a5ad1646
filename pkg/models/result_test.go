package models

import (
	"testing"
	"time"
)

func TestComputeStats(t *testing.T) {
	results := []Result{
		{QueryID: "q1", Success: true, Usage: Usage{TotalTokens: 100}, CostUSD: 0.001, Duration: 100 * time.Millisecond},
		{QueryID: "q2", Success: true, FromCache: true, Duration: 5 * time.Millisecond},
		{QueryID: "q3", Err: "upstream returned 500", Duration: 300 * time.Millisecond},
	}

	stats := ComputeStats(results)
	if stats.Submitted != 3 {
		t.Errorf("Submitted = %d, want 3", stats.Submitted)
	}
	if stats.Succeeded != 2 || stats.Failed != 1 {
		t.Errorf("Succeeded/Failed = %d/%d, want 2/1", stats.Succeeded, stats.Failed)
	}
	if stats.FromCache != 1 {
		t.Errorf("FromCache = %d, want 1", stats.FromCache)
	}
	if stats.TotalTokens != 100 {
		t.Errorf("TotalTokens = %d, want 100", stats.TotalTokens)
	}
	if stats.TotalCost != 0.001 {
		t.Errorf("TotalCost = %v, want 0.001", stats.TotalCost)
	}
	if stats.MinLatency != 5*time.Millisecond {
		t.Errorf("MinLatency = %v, want 5ms", stats.MinLatency)
	}
	if stats.MaxLatency != 300*time.Millisecond {
		t.Errorf("MaxLatency = %v, want 300ms", stats.MaxLatency)
	}
	if stats.AvgLatency != 135*time.Millisecond {
		t.Errorf("AvgLatency = %v, want 135ms", stats.AvgLatency)
	}
}

func TestComputeStatsEmpty(t *testing.T) {
	stats := ComputeStats(nil)
	if stats.Submitted != 0 || stats.AvgLatency != 0 {
		t.Errorf("stats = %+v, want zero values", stats)
	}
}

func TestByQueryID(t *testing.T) {
	b := &BatchResult{Results: []Result{
		{QueryID: "q1", Success: true},
		{QueryID: "q2"},
	}}

	r, ok := b.ByQueryID("q2")
	if !ok || r.QueryID != "q2" {
		t.Errorf("ByQueryID(q2) = %+v, %v", r, ok)
	}
	if _, ok := b.ByQueryID("missing"); ok {
		t.Error("expected miss for unknown query ID")
	}
}
