package extract

import (
	"context"
	"strings"

	"github.com/joseph-ayodele/doc-intake/internal/ocr"
)

// WarnNoText is added when a file was read but nothing was recognized in it.
const WarnNoText = "no text recognized"

var _ TextExtractor = (*OCRAdapter)(nil)

// OCRAdapter exposes an ocr.Extractor as the text stage.
type OCRAdapter struct {
	e *ocr.Extractor
}

func NewOCRAdapter(e *ocr.Extractor) *OCRAdapter {
	return &OCRAdapter{e: e}
}

func (a *OCRAdapter) Extract(ctx context.Context, path string) (TextExtractionResult, error) {
	r, err := a.e.Extract(ctx, path)
	out := fromOCR(r)
	if err == nil && strings.TrimSpace(out.Text) == "" {
		out.Warnings = append(out.Warnings, WarnNoText)
	}
	return out, err
}

func fromOCR(r ocr.ExtractionResult) TextExtractionResult {
	return TextExtractionResult{
		Text:       r.Text,
		Pages:      r.Pages,
		SourceType: r.SourceType,
		Method:     r.Method,
		Language:   r.Language,
		Duration:   r.Duration,
		Warnings:   r.Warnings,
		Confidence: r.Confidence,
	}
}
