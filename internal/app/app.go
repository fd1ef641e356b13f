package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/doc-intake/internal/common"
	"github.com/joseph-ayodele/doc-intake/internal/documents"
	"github.com/joseph-ayodele/doc-intake/internal/export"
	"github.com/joseph-ayodele/doc-intake/internal/extract"
	"github.com/joseph-ayodele/doc-intake/internal/ingest"
	"github.com/joseph-ayodele/doc-intake/internal/ocr"
	"github.com/joseph-ayodele/doc-intake/internal/pipeline"
	"github.com/joseph-ayodele/doc-intake/internal/repository"
)

// App is the wired set of services shared by the commands.
type App struct {
	Store     repository.DocumentStore
	Blobs     repository.BlobStore
	Ingestor  *ingest.FSIngestor
	Processor *pipeline.Processor
	Documents *documents.Service
	Exporter  *export.Service

	closeBlobs func() error
	logger     *slog.Logger
}

// OCRConfig maps the loaded configuration onto the OCR extractor's.
func OCRConfig(c common.OCRConfig) ocr.Config {
	return ocr.Config{
		HeicConverter:       c.HeicConverter,
		TessdataDir:         c.TessdataDir,
		ArtifactCacheDir:    c.ArtifactCacheDir,
		TesseractLang:       c.Language,
		PageWorkers:         c.PageWorkers,
		MaxPages:            c.MaxPages,
		EnableTSVConfidence: true,
	}
}

// NewProcessor builds the extraction pipeline. lookup and blobs may be nil.
func NewProcessor(cfg *common.Config, lookup ingest.HashLookup, blobs repository.BlobStore, skipDuplicates bool, logger *slog.Logger) (*pipeline.Processor, *ingest.FSIngestor, error) {
	fx, err := extract.NewRulesExtractor(nil, cfg.Extract.PreClean, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("field extractor: %w", err)
	}
	ingestor := ingest.NewFSIngestor(lookup, logger)
	tx := extract.NewOCRAdapter(ocr.NewExtractor(OCRConfig(cfg.OCR), logger))
	proc := pipeline.NewProcessor(logger, ingestor, tx, fx, blobs, pipeline.Config{
		ReviewConfidence: float32(cfg.Extract.ReviewConfidence),
		OCRTimeout:       cfg.OCR.Timeout,
		SkipDuplicates:   skipDuplicates,
	})
	return proc, ingestor, nil
}

// New opens the configured store and blob store and wires the services.
func New(ctx context.Context, cfg *common.Config, skipDuplicates bool, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := repository.OpenStore(ctx, cfg.Store, logger)
	if err != nil {
		return nil, err
	}
	blobs, closeBlobs, err := repository.OpenBlobStore(ctx, cfg.Store, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	a := &App{Store: store, Blobs: blobs, closeBlobs: closeBlobs, logger: logger}
	a.Processor, a.Ingestor, err = NewProcessor(cfg, store, blobs, skipDuplicates, logger)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Documents, err = documents.NewService(store, logger)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Exporter = export.NewService(store, logger)

	logger.Info("services initialized", "store", cfg.Store.Backend, "archive", blobs != nil)
	return a, nil
}

// Close releases the store and blob store.
func (a *App) Close() error {
	var errs []error
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	if a.closeBlobs != nil {
		errs = append(errs, a.closeBlobs())
	}
	return errors.Join(errs...)
}
