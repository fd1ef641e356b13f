package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/joseph-ayodele/doc-intake/internal/app"
	"github.com/joseph-ayodele/doc-intake/internal/common"
	"github.com/joseph-ayodele/doc-intake/internal/extract"
	"github.com/joseph-ayodele/doc-intake/internal/ocr"
)

func main() {
	v := common.NewViper()
	fs := pflag.NewFlagSet("runocr", pflag.ExitOnError)
	common.BindFlags(fs, v)
	printText := fs.Bool("print", true, "write the extracted text to stdout")
	_ = fs.Parse(os.Args[1:])

	cfg := common.LoadConfigFrom(v)
	logger := common.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	if fs.NArg() != 1 {
		logger.Error("usage", "cmd", "runocr [flags] <file>")
		os.Exit(2)
	}
	path := fs.Arg(0)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	tx := extract.NewOCRAdapter(ocr.NewExtractor(app.OCRConfig(cfg.OCR), logger))

	start := time.Now()
	res, err := tx.Extract(ctx, path)
	dur := time.Since(start)
	if err != nil {
		logger.Error("text extraction failed", "path", path, "error", err, "duration_ms", dur.Milliseconds())
		os.Exit(1)
	}

	logger.Info("text extraction OK",
		"path", path,
		"method", res.Method,
		"pages", res.Pages,
		"confidence", res.Confidence,
		"warnings", res.Warnings,
		"bytes", len(res.Text),
		"duration_ms", dur.Milliseconds(),
	)
	if *printText {
		fmt.Println(res.Text)
	}
}
