package ingest

import (
	"context"
	"time"

	"github.com/joseph-ayodele/doc-intake/internal/entity"
)

// IngestionResult is the per-file ingest outcome.
type IngestionResult struct {
	SourcePath string
	HashHex    string
	FileExt    string
	SourceType string
	SizeBytes  int64
	// PageCount is set for PDFs only.
	PageCount int
	// Deduplicated is set when the owner already saved a document from the same bytes.
	Deduplicated bool
	ExistingID   string
	IngestedAt   time.Time
	Err          string
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Succeeded    uint32
	Deduplicated uint32
	Failed       uint32
}

// Ingestor is the behavior the pipeline depends on.
type Ingestor interface {
	// IngestPath checks a single file.
	IngestPath(ctx context.Context, ownerID, path string) (IngestionResult, error)
	// IngestDirectory ingests all matching files under root.
	IngestDirectory(ctx context.Context, ownerID, root string, skipHidden bool) ([]IngestionResult, DirStats, error)
}

// HashLookup finds a saved document by the hash of its source file.
type HashLookup interface {
	FindByContentHash(ctx context.Context, ownerID, hash string) (*entity.Document, error)
}
