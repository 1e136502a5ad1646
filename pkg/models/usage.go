package models

import "time"

// Usage represents token usage from a provider response.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// UsageRecord tracks token and cost accounting for one executed query.
type UsageRecord struct {
	ID               int64         `json:"id"`
	BatchID          string        `json:"batch_id"`
	QueryID          string        `json:"query_id"`
	Provider         string        `json:"provider"`
	Model            string        `json:"model"`
	PromptTokens     int           `json:"prompt_tokens"`
	CompletionTokens int           `json:"completion_tokens"`
	TotalTokens      int           `json:"total_tokens"`
	CostUSD          float64       `json:"cost_usd"`
	Latency          time.Duration `json:"latency"`
	FromCache        bool          `json:"from_cache"`
	Success          bool          `json:"success"`
	CreatedAt        time.Time     `json:"created_at"`
}

// UsageSummary aggregates usage grouped by provider and model.
type UsageSummary struct {
	Provider        string  `json:"provider"`
	Model           string  `json:"model"`
	RequestCount    int     `json:"request_count"`
	CacheHits       int     `json:"cache_hits"`
	TotalPrompt     int     `json:"total_prompt"`
	TotalCompletion int     `json:"total_completion"`
	TotalTokens     int     `json:"total_tokens"`
	TotalCostUSD    float64 `json:"total_cost_usd"`
}
