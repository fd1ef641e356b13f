package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/doc-intake/constants"
)

type Config struct {
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "eng"
	DPI           int    // rasterization DPI for scanned PDFs, default 300
	MaxPages      int    // 0 = no limit
	PageWorkers   int    // concurrent page OCR for scanned PDFs, default 4

	TessdataDir         string
	HeicConverter       string
	EnableTSVConfidence bool

	PSM int // e.g., 6 is good for uniform block of text
	OEM int // 1 = LSTM; leave 0 to use default

	ArtifactCacheDir string
}

type ExtractionResult struct {
	Text       string
	Pages      int
	SourceType string // PDF | IMAGE | TXT
	Method     string // "pdf-text" | "pdf-ocr" | "image-ocr" | "plain-text"
	Language   string
	Duration   time.Duration
	Warnings   []string
	Confidence float32
}

type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.PageWorkers <= 0 {
		cfg.PageWorkers = 4
	}
	if cfg.ArtifactCacheDir == "" {
		cfg.ArtifactCacheDir = "./tmp"
	}
	return &Extractor{cfg: cfg, runner: execRunner{}, logger: logger}
}

// WithRunner swaps the command runner, mainly for tests.
func (e *Extractor) WithRunner(r Runner) *Extractor {
	e.runner = r
	return e
}

// Extract picks a strategy based on file extension.
func (e *Extractor) Extract(ctx context.Context, path string) (ExtractionResult, error) {
	start := time.Now()
	ext := constants.NormalizeExt(filepath.Ext(path))
	e.logger.Debug("starting ocr extraction", "path", path, "ext", ext)

	switch constants.MapExtToFormat(ext) {
	case constants.PDF:
		res, err := e.extractPDF(ctx, path)
		res.Duration = time.Since(start)
		return res, err
	case constants.TXT:
		res, err := e.readText(path)
		res.Duration = time.Since(start)
		return res, err
	case constants.IMAGE:
		var warns []string
		if constants.IsHEICExt(ext) {
			hashHex, _ := contentHashFromCtx(ctx)
			out, w, cleanup, err := convertHEICtoPNG(ctx, e.runner, e.logger, e.cfg.HeicConverter, path, e.cfg.ArtifactCacheDir, hashHex)
			warns = append(warns, w...)
			if cleanup != nil {
				defer cleanup()
			}
			if err != nil {
				e.logger.Error("heic conversion failed", "path", path, "error", err)
				return ExtractionResult{SourceType: constants.IMAGE, Warnings: warns}, err
			}
			path = out
		}
		res, err := e.extractImage(ctx, path)
		res.Duration = time.Since(start)
		res.Warnings = append(res.Warnings, warns...)
		return res, err
	default:
		e.logger.Error("unsupported ocr extension", "extension", ext)
		return ExtractionResult{}, fmt.Errorf("unsupported extension: %q", ext)
	}
}

// readText handles files that already carry recognized text.
func (e *Extractor) readText(path string) (ExtractionResult, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return ExtractionResult{SourceType: constants.TXT}, fmt.Errorf("read text: %w", err)
	}
	txt := Normalize(string(b))
	return ExtractionResult{
		Text:       txt,
		Pages:      1,
		SourceType: constants.TXT,
		Method:     "plain-text",
		Language:   e.cfg.TesseractLang,
		Confidence: HeuristicConfidence(txt),
	}, nil
}
