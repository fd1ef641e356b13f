package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joseph-ayodele/doc-intake/constants"
	"github.com/joseph-ayodele/doc-intake/internal/common"
	"github.com/joseph-ayodele/doc-intake/internal/extract"
	"github.com/joseph-ayodele/doc-intake/internal/ingest"
	"github.com/joseph-ayodele/doc-intake/internal/ocr"
	"github.com/joseph-ayodele/doc-intake/internal/repository"
)

// Config holds thresholds and behavior flags for the processor.
type Config struct {
	ReviewConfidence float32       // default 0.60
	OCRTimeout       time.Duration // 0 = no extra deadline
	// SkipDuplicates returns early for files the owner already saved.
	SkipDuplicates bool
}

// Extraction is the outcome of one file or text run.
type Extraction struct {
	File        ingest.IngestionResult
	OCR         extract.TextExtractionResult
	Fields      extract.FieldsResult
	Status      constants.JobStatus
	NeedsReview bool
	Reasons     []string
	// BlobKey names the archived original, when archiving is enabled.
	BlobKey  string
	Warnings []string
}

// Processor coordinates ingest, OCR (text extract) and field extraction.
type Processor struct {
	logger   *slog.Logger
	ingestor ingest.Ingestor
	ocr      extract.TextExtractor
	fields   extract.FieldExtractor
	blobs    repository.BlobStore
	cfg      Config
}

// NewProcessor wires the stages. blobs may be nil.
func NewProcessor(
	logger *slog.Logger,
	ingestor ingest.Ingestor,
	ocr extract.TextExtractor,
	fields extract.FieldExtractor,
	blobs repository.BlobStore,
	cfg Config,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReviewConfidence <= 0 {
		cfg.ReviewConfidence = 0.60
	}
	return &Processor{
		logger:   logger,
		ingestor: ingestor,
		ocr:      ocr,
		fields:   fields,
		blobs:    blobs,
		cfg:      cfg,
	}
}

// ProcessFile ingests path for ownerID, extracts its text, then its identity fields.
// Nothing is saved; the caller decides what to do with the result.
func (p *Processor) ProcessFile(ctx context.Context, ownerID, path string) (Extraction, error) {
	out := Extraction{Status: constants.JobStatusRunning}

	file, err := p.ingestor.IngestPath(ctx, ownerID, path)
	out.File = file
	if err != nil {
		out.Status = constants.JobStatusFailed
		p.logger.Error("processor.ingest.failed", "path", path, "err", err)
		return out, fmt.Errorf("ingest: %w", err)
	}
	if file.Deduplicated && p.cfg.SkipDuplicates {
		out.Status = constants.JobStatusSaved
		p.logger.Info("processor.ingest.duplicate", "path", file.SourcePath, "existing_id", file.ExistingID)
		return out, nil
	}

	ctx = ocr.WithContentHash(ctx, file.HashHex)
	ocrCtx, cancel := common.WithTimeout(ctx, p.cfg.OCRTimeout)
	res, err := p.ocr.Extract(ocrCtx, file.SourcePath)
	cancel()
	out.OCR = res
	out.Warnings = append(out.Warnings, res.Warnings...)
	if err != nil {
		out.Status = constants.JobStatusFailed
		p.logger.Error("processor.ocr.failed", "path", file.SourcePath, "err", err)
		return out, fmt.Errorf("ocr: %w", err)
	}
	out.Status = constants.JobStatusOCROK
	p.logger.Info("processor.ocr.ok",
		"path", file.SourcePath,
		"method", res.Method,
		"pages", res.Pages,
		"confidence", res.Confidence,
	)

	if p.blobs != nil {
		out.BlobKey = p.archive(ctx, ownerID, file)
		if out.BlobKey == "" {
			out.Warnings = append(out.Warnings, "original not archived")
		}
	}

	if err := p.extractFields(ctx, &out, nil); err != nil {
		return out, err
	}
	return out, nil
}

// ProcessText runs field extraction on text that was already acquired.
func (p *Processor) ProcessText(ctx context.Context, text string, hints map[string]string) (Extraction, error) {
	out := Extraction{
		Status: constants.JobStatusOCROK,
		OCR:    extract.TextExtractionResult{Text: text, SourceType: constants.TXT, Method: "plain-text"},
	}
	if err := p.extractFields(ctx, &out, hints); err != nil {
		return out, err
	}
	return out, nil
}

func (p *Processor) extractFields(ctx context.Context, out *Extraction, hints map[string]string) error {
	res, err := p.fields.ExtractFields(ctx, out.OCR.Text, hints)
	if err != nil {
		out.Status = constants.JobStatusFailed
		p.logger.Error("processor.fields.failed", "path", out.File.SourcePath, "err", err)
		return fmt.Errorf("fields: %w", err)
	}
	out.Fields = res
	out.Reasons = ReviewReasons(out.OCR.Confidence, p.cfg.ReviewConfidence, res.Fields)
	out.NeedsReview = len(out.Reasons) > 0
	out.Status = constants.JobStatusFieldsOK
	if out.NeedsReview {
		out.Status = constants.JobStatusNeedsReview
	}
	p.logger.Info("processor.fields.ok",
		"path", out.File.SourcePath,
		"filled", res.Fields.Filled(),
		"needs_review", out.NeedsReview,
		"reasons", out.Reasons,
	)
	return nil
}

// archive stores the original under its content hash and returns the key, or "" on failure.
func (p *Processor) archive(ctx context.Context, ownerID string, file ingest.IngestionResult) string {
	key := repository.BlobKey(ownerID, file.HashHex, file.FileExt)
	f, err := os.Open(file.SourcePath)
	if err != nil {
		p.logger.Warn("processor.archive.failed", "path", file.SourcePath, "err", err)
		return ""
	}
	defer f.Close()
	if err := p.blobs.Put(ctx, key, f); err != nil {
		p.logger.Warn("processor.archive.failed", "path", file.SourcePath, "key", key, "err", err)
		return ""
	}
	return key
}
