package ingest

import (
	"context"
	"time"
)

// Result is the per-file ingest outcome.
type Result struct {
	SourcePath   string    `json:"source_path"`
	HashHex      string    `json:"hash"`
	FileExt      string    `json:"file_ext"`
	Size         int64     `json:"size"`
	Deduplicated bool      `json:"deduplicated"`
	IngestedAt   time.Time `json:"ingested_at"`
	Err          string    `json:"error,omitempty"`
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned      uint32 `json:"scanned"`
	Matched      uint32 `json:"matched"`
	Succeeded    uint32 `json:"succeeded"`
	Deduplicated uint32 `json:"deduplicated"`
	Failed       uint32 `json:"failed"`
}

// HashIndex answers whether a document with this content was already processed.
type HashIndex interface {
	ExistsByHash(ctx context.Context, hashHex string) (bool, error)
}

// Ingestor is the behavior the batch and watch commands depend on.
type Ingestor interface {
	// IngestPath a single path.
	IngestPath(ctx context.Context, path string) (Result, error)
	// IngestDirectory ingests all matching files under root.
	IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]Result, DirStats, error)
}
