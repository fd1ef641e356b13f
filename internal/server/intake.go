package server

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strconv"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/doc-intake/internal/common"
	"github.com/joseph-ayodele/doc-intake/internal/documents"
	"github.com/joseph-ayodele/doc-intake/internal/export"
	"github.com/joseph-ayodele/doc-intake/internal/extract"
	"github.com/joseph-ayodele/doc-intake/internal/fields"
	"github.com/joseph-ayodele/doc-intake/internal/ingest"
	"github.com/joseph-ayodele/doc-intake/internal/pipeline"
)

// IntakeService serves extraction and the owner's saved documents.
type IntakeService struct {
	processor *pipeline.Processor
	docs      *documents.Service
	exporter  *export.Service
	roots     []string
	logger    *slog.Logger
}

// NewIntakeService serves ProcessFile only for paths under roots.
func NewIntakeService(proc *pipeline.Processor, docs *documents.Service, exporter *export.Service, roots []string, logger *slog.Logger) *IntakeService {
	if logger == nil {
		logger = slog.Default()
	}
	return &IntakeService{processor: proc, docs: docs, exporter: exporter, roots: roots, logger: logger}
}

func (s *IntakeService) ExtractText(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	hints := map[string]string{}
	if _, ok := req.GetFields()["clean"]; ok {
		hints[extract.HintPreClean] = strconv.FormatBool(boolOr(req, "clean", false))
	}
	x, err := s.processor.ProcessText(ctx, req.GetFields()["text"].GetStringValue(), hints)
	if err != nil {
		return nil, err
	}
	return toStruct(extractionValue(x))
}

func (s *IntakeService) ProcessFile(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	path := str(req, "path")
	if err := common.ValidateAndReturnError(common.NewValidator().Field("path", path, common.Required)); err != nil {
		return nil, err
	}
	owner := common.OwnerIDFromContext(ctx)
	if !ingest.WithinRoots(path, s.roots) {
		s.logger.Warn("path outside intake roots", "owner_id", owner, "path", path)
		return nil, fmt.Errorf("%w: %s is outside the intake roots", common.ErrForbidden, path)
	}

	s.logger.Info("starting file processing", "owner_id", owner, "path", path)
	x, err := s.processor.ProcessFile(ctx, owner, path)
	if err != nil {
		return nil, err
	}

	out := extractionValue(x)
	out["ocrText"] = x.OCR.Text
	out["method"] = x.OCR.Method
	out["pages"] = float64(x.OCR.Pages)
	out["ocrConfidence"] = float64(x.OCR.Confidence)
	out["sourcePath"] = x.File.SourcePath
	out["contentHash"] = x.File.HashHex
	out["deduplicated"] = x.File.Deduplicated
	out["existingId"] = x.File.ExistingID
	out["blobKey"] = x.BlobKey
	out["warnings"] = anyStrings(x.Warnings)
	return toStruct(out)
}

func (s *IntakeService) SaveDocument(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	rec, err := record(req)
	if err != nil {
		return nil, err
	}
	doc, err := s.docs.Save(ctx, documents.SaveRequest{
		OwnerID:      common.OwnerIDFromContext(ctx),
		Record:       rec,
		DocumentType: str(req, "document_type"),
		OriginalText: req.GetFields()["original_text"].GetStringValue(),
		SourcePath:   str(req, "source_path"),
		ContentHash:  str(req, "content_hash"),
	})
	if err != nil {
		return nil, err
	}
	return toStruct(map[string]any{"document": documentValue(doc)})
}

func (s *IntakeService) ListDocuments(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	docs, err := s.docs.List(ctx, common.OwnerIDFromContext(ctx))
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, len(docs))
	for _, d := range docs {
		out = append(out, documentValue(d))
	}
	return toStruct(map[string]any{"documents": out})
}

func (s *IntakeService) UpdateDocument(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	edits, err := stringMap(req, "fields")
	if err != nil {
		return nil, err
	}
	for k := range edits {
		if _, ok := fields.ParseField(k); !ok {
			return nil, fmt.Errorf("%w: unknown field %q", common.ErrInvalidInput, k)
		}
	}
	extra, err := stringMap(req, "extra")
	if err != nil {
		return nil, err
	}
	if edits == nil {
		edits = map[string]string{}
	}
	for k, v := range extra {
		if _, fixed := fields.ParseField(k); fixed {
			return nil, fmt.Errorf("%w: %q belongs in fields", common.ErrInvalidInput, k)
		}
		edits[k] = v
	}

	doc, err := s.docs.Update(ctx, documents.UpdateRequest{
		OwnerID:      common.OwnerIDFromContext(ctx),
		ID:           str(req, "id"),
		Edits:        edits,
		DocumentType: str(req, "document_type"),
	})
	if err != nil {
		return nil, err
	}
	return toStruct(map[string]any{"document": documentValue(doc)})
}

func (s *IntakeService) DeleteDocument(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id := str(req, "id")
	if err := s.docs.Delete(ctx, common.OwnerIDFromContext(ctx), id); err != nil {
		return nil, err
	}
	return toStruct(map[string]any{"id": id, "deleted": true})
}

func (s *IntakeService) ExportDocuments(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	owner := common.OwnerIDFromContext(ctx)
	b, err := s.exporter.ExportDocumentsXLSX(ctx, owner)
	if err != nil {
		return nil, err
	}
	return toStruct(map[string]any{
		"filename": "documents.xlsx",
		"xlsx":     base64.StdEncoding.EncodeToString(b),
	})
}

// record reads the "fields" and "extra" objects of a save request.
func record(req *structpb.Struct) (fields.Record, error) {
	var rec fields.Record
	fm, err := stringMap(req, "fields")
	if err != nil {
		return rec, err
	}
	for k, v := range fm {
		f, ok := fields.ParseField(k)
		if !ok {
			return rec, fmt.Errorf("%w: unknown field %q", common.ErrInvalidInput, k)
		}
		rec.Fields.Set(f, v)
	}
	extra, err := stringMap(req, "extra")
	if err != nil {
		return rec, err
	}
	for k, v := range extra {
		if _, fixed := fields.ParseField(k); fixed {
			return rec, fmt.Errorf("%w: %q belongs in fields", common.ErrInvalidInput, k)
		}
		rec.Set(k, v)
	}
	return rec, nil
}
