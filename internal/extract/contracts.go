package extract

import (
	"context"
	"time"

	"github.com/joseph-ayodele/doc-intake/internal/fields"
)

// TextExtractor is Stage 1: file -> text.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (TextExtractionResult, error)
}

type TextExtractionResult struct {
	Text       string
	Pages      int
	SourceType string // "PDF" | "IMAGE" | "TXT"
	Method     string // "pdf-text" | "pdf-ocr" | "image-ocr" | "plain-text"
	Language   string
	Duration   time.Duration
	Warnings   []string
	Confidence float32
}

// FieldExtractor is Stage 2: text -> identity fields.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, text string, hints map[string]string) (FieldsResult, error)
}

// HintPreClean overrides the extractor's pre-clean setting ("true" / "false").
const HintPreClean = "preclean"

type FieldsResult struct {
	Fields fields.ExtractedFields
	Trace  []fields.Match
	// JSON is Fields encoded and validated against FieldsJSONSchema.
	JSON       string
	Confidence float32
	// Text is the input as the rules saw it, after any pre-clean.
	Text string
}
