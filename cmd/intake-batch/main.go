package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/joseph-ayodele/doc-intake/internal/app"
	"github.com/joseph-ayodele/doc-intake/internal/async"
	"github.com/joseph-ayodele/doc-intake/internal/common"
	"github.com/joseph-ayodele/doc-intake/internal/ingest"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	os.Exit(run())
}

func run() int {
	v := common.NewViper()
	fs := pflag.NewFlagSet("intake-batch", pflag.ExitOnError)
	common.BindFlags(fs, v)
	var (
		dir        = fs.String("dir", "", "directory to process documents from (required)")
		owner      = fs.String("owner", "local", "owner id the documents are saved for")
		out        = fs.String("out", "", "output XLSX file path (optional, defaults to parent directory)")
		workers    = fs.Int("workers", 4, "files processed concurrently")
		queueSize  = fs.Int("queue-size", 256, "files waiting for a worker before enqueueing blocks")
		jobTimeout = fs.Duration("job-timeout", 3*time.Minute, "time limit for processing one file")
		force      = fs.Bool("force", false, "reprocess files the owner already saved")
		skipReview = fs.Bool("skip-review", false, "do not save extractions that need review")
		watch      = fs.Bool("watch", false, "keep running and process files as they appear")
	)
	_ = fs.Parse(os.Args[1:])

	if *dir == "" {
		printError("Error: --dir is required\n")
		return 1
	}
	if *out == "" {
		parentDir := filepath.Dir(filepath.Clean(*dir))
		*out = filepath.Join(parentDir, "documents.xlsx")
	}

	cfg := common.LoadConfigFrom(v)
	logger := common.NewLogger(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, !*force, logger)
	if err != nil {
		logger.Error("failed to initialize services", "error", err)
		return 1
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("failed to close store", "error", err)
		}
	}()

	b := &batch{proc: a.Processor, docs: a.Documents, skipReview: *skipReview, logger: logger}
	q := async.NewProcessorQueue(b.handle, logger,
		async.WithWorkers(*workers),
		async.WithQueueSize(*queueSize),
		async.WithProcessTimeout(*jobTimeout),
	)

	if *watch {
		paths, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
			Roots:       []string{*dir},
			SkipHidden:  true,
			InitialScan: true,
			Debounce:    500 * time.Millisecond,
		}, logger)
		if err != nil {
			logger.Error("failed to start watcher", "error", err)
			return 1
		}
		logger.Info("watching for documents", "dir", *dir, "owner", *owner)
		go func() {
			for err := range errs {
				logger.Warn("watcher reported error", "error", err)
			}
		}()
		for p := range paths {
			b.enqueue(ctx, q, *owner, p, *force)
		}
	} else {
		logger.Info("starting ingestion", "dir", *dir, "owner", *owner)
		results, stats, err := a.Ingestor.IngestDirectory(ctx, *owner, *dir, true)
		if err != nil {
			logger.Error("failed to ingest directory", "error", err)
			return 1
		}
		logger.Info("ingestion complete",
			"scanned", stats.Scanned,
			"matched", stats.Matched,
			"succeeded", stats.Succeeded,
			"failed", stats.Failed,
			"deduplicated", stats.Deduplicated)
		for _, r := range results {
			if r.Err != "" {
				b.failures.Add(1)
				continue
			}
			b.enqueue(ctx, q, *owner, r.SourcePath, *force)
		}
	}

	// Drain with a fresh context so a signal still lets queued files finish.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	q.Shutdown(shutdownCtx)

	logger.Info("exporting to XLSX", "output", *out)
	xlsxBytes, err := a.Exporter.ExportDocumentsXLSX(shutdownCtx, *owner)
	if err != nil {
		logger.Error("failed to export documents", "error", err)
		return 1
	}
	if err := os.WriteFile(*out, xlsxBytes, 0o644); err != nil {
		logger.Error("failed to write output file", "error", err)
		return 1
	}

	logger.Info("batch processing complete",
		"files_queued", b.queued.Load(),
		"documents_saved", b.saved.Load(),
		"needs_review", b.review.Load(),
		"duplicates", b.duplicates.Load(),
		"failures", b.failures.Load(),
		"output_file", *out)

	fmt.Printf("Batch processing complete!\n")
	fmt.Printf("- Files queued: %d\n", b.queued.Load())
	fmt.Printf("- Documents saved: %d\n", b.saved.Load())
	fmt.Printf("- Needs review: %d\n", b.review.Load())
	fmt.Printf("- Duplicates skipped: %d\n", b.duplicates.Load())
	fmt.Printf("- Failures: %d\n", b.failures.Load())
	fmt.Printf("- Output: %s\n", *out)
	return 0
}
