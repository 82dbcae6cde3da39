package store

import "time"

// Document is a published page body the engine retrofits links into.
// OriginalContent holds the pre-optimization body; it is set exactly once per
// optimization cycle and cleared only by a full rollback.
type Document struct {
	ID              string
	Title           string
	Content         string
	OriginalContent *string
	LinkCount       int
	OptimizedAt     *time.Time
	UpdatedAt       time.Time
}

// LinkCatalogEntry is a reusable link target owned by the catalog collaborator.
// The engine only reads entries and adjusts UsageCount.
type LinkCatalogEntry struct {
	ID         string
	URL        string
	Title      string
	Keywords   string
	Category   string
	Priority   int
	IsActive   bool
	PageExists bool
	UsageCount int
}

// LinkUsage is the audit record written for every injected link.
type LinkUsage struct {
	ID              int64
	LinkID          string
	DocumentID      string
	AnchorText      string
	ContextSnippet  string
	Position        int
	WasAutoInserted bool
	CreatedAt       time.Time
}
