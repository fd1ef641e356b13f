package main

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/joseph-ayodele/doc-intake/constants"
	"github.com/joseph-ayodele/doc-intake/internal/async"
	"github.com/joseph-ayodele/doc-intake/internal/documents"
	"github.com/joseph-ayodele/doc-intake/internal/fields"
	"github.com/joseph-ayodele/doc-intake/internal/pipeline"
)

// batch processes queued files and saves what it extracts.
type batch struct {
	proc       *pipeline.Processor
	docs       *documents.Service
	skipReview bool
	logger     *slog.Logger

	queued     atomic.Int64
	saved      atomic.Int64
	review     atomic.Int64
	duplicates atomic.Int64
	failures   atomic.Int64
}

func (b *batch) handle(ctx context.Context, job async.Job) error {
	x, err := b.proc.ProcessFile(ctx, job.OwnerID, job.Path)
	if err != nil {
		b.failures.Add(1)
		return err
	}
	if x.Status == constants.JobStatusSaved {
		b.duplicates.Add(1)
		return nil
	}
	if x.NeedsReview {
		b.review.Add(1)
		if b.skipReview {
			b.logger.Warn("skipping document that needs review", "path", x.File.SourcePath, "reasons", x.Reasons)
			return nil
		}
	}

	doc, err := b.docs.Save(ctx, documents.SaveRequest{
		OwnerID:      job.OwnerID,
		Record:       fields.NewRecord(x.Fields.Fields),
		OriginalText: x.OCR.Text,
		SourcePath:   x.File.SourcePath,
		ContentHash:  x.File.HashHex,
	})
	if err != nil {
		b.failures.Add(1)
		return err
	}
	b.saved.Add(1)
	b.logger.Info("document saved", "path", x.File.SourcePath, "id", doc.ID, "title", doc.Title)
	return nil
}

func (b *batch) enqueue(ctx context.Context, q async.Queue, owner, path string, force bool) {
	if err := q.Enqueue(ctx, async.Job{OwnerID: owner, Path: path, Force: force}); err != nil {
		b.logger.Error("failed to enqueue file", "path", path, "error", err)
		b.failures.Add(1)
		return
	}
	b.queued.Add(1)
}
