package models

import "time"

// CacheEntry stores a cached provider response with its similarity vector.
// Entries are owned by the cache; eviction is the cache's business alone.
type CacheEntry struct {
	Fingerprint string    `json:"fingerprint"`
	Provider    string    `json:"provider"`
	Model       string    `json:"model"`
	Content     string    `json:"content"`
	Vector      []float32 `json:"vector"`
	Payload     []byte    `json:"payload"`
	CreatedAt   time.Time `json:"created_at"`
	LastAccess  time.Time `json:"last_access"`
	HitCount    int64     `json:"hit_count"`
}

// CacheStats reports cache performance metrics.
type CacheStats struct {
	Entries   int64 `json:"entries"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
}
