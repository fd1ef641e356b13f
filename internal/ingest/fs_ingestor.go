package ingest

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/joseph-ayodele/doc-intake/constants"
	"github.com/joseph-ayodele/doc-intake/internal/common"
)

// DefaultMaxBytes caps the size of a single ingested file.
const DefaultMaxBytes int64 = 25 << 20

// FSIngestor reads from the local filesystem.
type FSIngestor struct {
	// Lookup marks files already saved by the owner; nil disables deduplication.
	Lookup   HashLookup
	MaxBytes int64
	logger   *slog.Logger
	now      func() time.Time
}

func NewFSIngestor(lookup HashLookup, logger *slog.Logger) *FSIngestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &FSIngestor{
		Lookup:   lookup,
		MaxBytes: DefaultMaxBytes,
		logger:   logger,
		now:      time.Now,
	}
}

func (i *FSIngestor) IngestPath(ctx context.Context, ownerID, path string) (IngestionResult, error) {
	var out IngestionResult

	if err := common.NewValidator().Field("owner_id", ownerID, common.Required).Error(); err != nil {
		return out, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		i.logger.Error("abs path error", "path", path, "error", err)
		return out, err
	}

	ext := constants.NormalizeExt(filepath.Ext(abs))
	if ext == "" || !AllowedExt(ext) {
		i.logger.Warn("unsupported or missing extension", "path", abs, "ext", ext)
		return out, fmt.Errorf("%w: unsupported or missing extension %q", common.ErrInvalidInput, ext)
	}

	data, err := i.read(abs)
	if err != nil {
		return out, err
	}

	out = IngestionResult{
		SourcePath: abs,
		FileExt:    ext,
		SourceType: constants.MapExtToFormat(ext),
		SizeBytes:  int64(len(data)),
		IngestedAt: i.now().UTC(),
	}
	sum := sha256.Sum256(data)
	out.HashHex = hex.EncodeToString(sum[:])

	if out.SourceType == constants.PDF {
		pages, err := pdfPageCount(data)
		if err != nil {
			i.logger.Warn("pdf validation failed", "path", abs, "error", err)
			return out, fmt.Errorf("%w: invalid pdf: %v", common.ErrInvalidInput, err)
		}
		out.PageCount = pages
	}

	if i.Lookup != nil {
		doc, err := i.Lookup.FindByContentHash(ctx, ownerID, out.HashHex)
		switch {
		case err == nil:
			out.Deduplicated = true
			out.ExistingID = doc.ID
		case !errors.Is(err, common.ErrNotFound):
			return out, fmt.Errorf("dedup lookup: %w", err)
		}
	}

	i.logger.Debug("file ingested", "path", abs, "hash", out.HashHex, "dedup", out.Deduplicated)
	return out, nil
}

func (i *FSIngestor) read(abs string) ([]byte, error) {
	f, err := os.Open(abs)
	if err != nil {
		i.logger.Error("open error", "path", abs, "error", err)
		return nil, err
	}
	defer func(f *os.File) {
		if err := f.Close(); err != nil {
			i.logger.Error("close file error", "path", abs, "error", err)
		}
	}(f)

	limit := i.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		i.logger.Error("read error", "path", abs, "error", err)
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", common.ErrInvalidInput, limit)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", common.ErrInvalidInput)
	}
	return data, nil
}

// pdfPageCount parses the PDF structure in relaxed mode and returns its page count.
func pdfPageCount(data []byte) (int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	pctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return 0, fmt.Errorf("failed to read PDF context: %w", err)
	}
	if err := api.ValidateContext(pctx); err != nil {
		return 0, err
	}
	if err := pctx.EnsurePageCount(); err != nil {
		return 0, fmt.Errorf("failed to ensure page count: %w", err)
	}
	if pctx.PageCount == 0 {
		return 0, errors.New("pdf has no pages")
	}
	return pctx.PageCount, nil
}

// IngestDirectory walks root, skips hidden if requested,
// and calls IngestPath for each file. Returns per-file results + aggregate stats.
func (i *FSIngestor) IngestDirectory(
	ctx context.Context,
	ownerID string,
	root string,
	skipHidden bool,
) ([]IngestionResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, fmt.Errorf("%w: root_path is required", common.ErrInvalidInput)
	}

	var results []IngestionResult
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			results = append(results, IngestionResult{SourcePath: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if skipHidden && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			return nil
		}
		if !Candidate(path, skipHidden) {
			return nil
		}
		stats.Matched++

		r, err := i.IngestPath(ctx, ownerID, path)
		if err != nil {
			results = append(results, IngestionResult{SourcePath: path, Err: err.Error()})
			stats.Failed++
			return nil
		}

		results = append(results, r)
		stats.Succeeded++
		if r.Deduplicated {
			stats.Deduplicated++
		}
		return nil
	})

	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}
	i.logger.Info("directory ingested", "root", root, "matched", stats.Matched, "failed", stats.Failed)
	return results, stats, nil
}
