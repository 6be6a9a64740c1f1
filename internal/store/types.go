package store

import (
	"time"
)

// UpsertParams describes one content row write. Ingesting a URL that already
// exists replaces the prior row and drops its chunks and vectors.
type UpsertParams struct {
	URL       string
	Title     string
	Content   string
	Retention string
	SessionID string
	Tags      string
	Metadata  string
}

// ContentRow is one persisted crawled page.
type ContentRow struct {
	ID        int64     `json:"id"`
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Content   string    `json:"content,omitempty"`
	CrawledAt time.Time `json:"crawled_at"`
	Retention string    `json:"retention_policy"`
	SessionID string    `json:"session_id,omitempty"`
	Tags      string    `json:"tags"`
	Metadata  string    `json:"metadata,omitempty"`
}

// VectorHit is one chunk returned by the vector index, joined back to its
// chunk text and content row.
type VectorHit struct {
	ChunkRowID int64   `json:"chunk_rowid"`
	ContentID  int64   `json:"content_id"`
	URL        string  `json:"url"`
	Title      string  `json:"title"`
	Tags       string  `json:"tags"`
	ChunkIndex int     `json:"chunk_index"`
	ChunkText  string  `json:"chunk_text"`
	Similarity float64 `json:"similarity"`
}

// BlockedPattern is one blocklist entry.
type BlockedPattern struct {
	ID          int64     `json:"id"`
	Pattern     string    `json:"pattern"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// DomainCount is the number of stored pages per domain.
type DomainCount struct {
	Domain string `json:"domain"`
	Pages  int    `json:"pages"`
}

// KG queue statuses.
const (
	KGStatusPending    = "pending"
	KGStatusProcessing = "processing"
	KGStatusCompleted  = "completed"
	KGStatusFailed     = "failed"
	KGStatusSkipped    = "skipped"
)

// StatsSnapshot aggregates store-wide counters.
type StatsSnapshot struct {
	ContentRows    int64            `json:"content_rows"`
	ChunkRows      int64            `json:"chunk_rows"`
	VectorRows     int64            `json:"vector_rows"`
	SessionRows    int64            `json:"session_rows"`
	BlockedRows    int64            `json:"blocked_patterns"`
	ByRetention    map[string]int64 `json:"by_retention"`
	KGQueueByState map[string]int64 `json:"kg_queue_by_status"`
	DiskSizeBytes  int64            `json:"disk_size_bytes"`
}
