package documents

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/doc-intake/constants"
	"github.com/joseph-ayodele/doc-intake/internal/common"
	"github.com/joseph-ayodele/doc-intake/internal/entity"
	"github.com/joseph-ayodele/doc-intake/internal/extract"
	"github.com/joseph-ayodele/doc-intake/internal/fields"
	"github.com/joseph-ayodele/doc-intake/internal/repository"
)

const titleDateLayout = "Jan 2, 2006"

var contentHashRe = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Service handles saving and editing reviewed documents.
type Service struct {
	store  repository.DocumentStore
	schema *jsonschema.Schema
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a new document service.
func NewService(store repository.DocumentStore, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	schema, err := extract.CompileSchema(extract.FieldsJSONSchema(extract.EditedGenders))
	if err != nil {
		return nil, fmt.Errorf("compile edited fields schema: %w", err)
	}
	return &Service{store: store, schema: schema, logger: logger, now: time.Now}, nil
}

// SaveRequest is a reviewed extraction ready to be stored.
type SaveRequest struct {
	OwnerID      string
	Record       fields.Record
	DocumentType string // derived from the fields when empty
	OriginalText string
	SourcePath   string
	ContentHash  string
}

// Save validates the record and stores it as a new document.
func (s *Service) Save(ctx context.Context, req SaveRequest) (*entity.Document, error) {
	f := Sanitize(req.Record.Fields)
	extra, err := sanitizeExtra(req.Record.Extra)
	if err != nil {
		return nil, err
	}

	docType, err := s.documentType(req.DocumentType, f)
	if err != nil {
		return nil, err
	}
	v := common.NewValidator().
		Field("owner_id", req.OwnerID, common.Required).
		Field("content_hash", req.ContentHash, common.OptionalPattern(contentHashRe, "must be a lowercase hex SHA-256"))
	if err := v.Error(); err != nil {
		s.logger.Warn("documents.save.invalid", "error", err)
		return nil, err
	}
	if err := s.validateFields(f); err != nil {
		s.logger.Warn("documents.save.invalid", "owner_id", req.OwnerID, "error", err)
		return nil, err
	}

	now := s.now().UTC()
	doc := &entity.Document{
		OwnerID:      req.OwnerID,
		Title:        Title(docType, now),
		DocumentType: string(docType),
		Fields:       f,
		Extra:        extra,
		OriginalText: req.OriginalText,
		SourcePath:   req.SourcePath,
		ContentHash:  req.ContentHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := s.store.Save(ctx, doc); err != nil {
		s.logger.Error("documents.save.failed", "owner_id", req.OwnerID, "error", err)
		return nil, fmt.Errorf("save document: %w", err)
	}

	s.logger.Info("documents.save.ok", "owner_id", doc.OwnerID, "id", doc.ID, "type", doc.DocumentType)
	return doc, nil
}

// List returns the owner's documents, newest first.
func (s *Service) List(ctx context.Context, ownerID string) ([]*entity.Document, error) {
	if err := common.NewValidator().Field("owner_id", ownerID, common.Required).Error(); err != nil {
		return nil, err
	}
	docs, err := s.store.List(ctx, ownerID)
	if err != nil {
		// DB error already logged in repository layer
		return nil, fmt.Errorf("list documents: %w", err)
	}
	s.logger.Debug("documents listed", "owner_id", ownerID, "count", len(docs))
	return docs, nil
}

func (s *Service) Get(ctx context.Context, ownerID, id string) (*entity.Document, error) {
	v := common.NewValidator().
		Field("owner_id", ownerID, common.Required).
		Field("id", id, common.Required)
	if err := v.Error(); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, ownerID, id)
}

// UpdateRequest edits a saved document. Edits are keyed by field name;
// fixed fields are replaced, other keys are extension keys and an empty
// value removes one.
type UpdateRequest struct {
	OwnerID      string
	ID           string
	Edits        map[string]string
	DocumentType string
}

func (s *Service) Update(ctx context.Context, req UpdateRequest) (*entity.Document, error) {
	current, err := s.Get(ctx, req.OwnerID, req.ID)
	if err != nil {
		return nil, err
	}

	var patch entity.DocumentPatch
	f := current.Fields
	changed := false
	for k, val := range req.Edits {
		if field, ok := fields.ParseField(k); ok {
			f.Set(field, val)
			changed = true
			continue
		}
		key, err := extraKey(k)
		if err != nil {
			return nil, err
		}
		if patch.Extra == nil {
			patch.Extra = map[string]string{}
		}
		patch.Extra[key] = strings.TrimSpace(val)
	}
	if changed {
		f = Sanitize(f)
		if err := s.validateFields(f); err != nil {
			s.logger.Warn("documents.update.invalid", "owner_id", req.OwnerID, "id", req.ID, "error", err)
			return nil, err
		}
		patch.Fields = &f
	}
	if strings.TrimSpace(req.DocumentType) != "" {
		dt, err := s.documentType(req.DocumentType, f)
		if err != nil {
			return nil, err
		}
		t := string(dt)
		patch.DocumentType = &t
	}
	if patch.Empty() {
		return current, nil
	}

	doc, err := s.store.Update(ctx, req.OwnerID, req.ID, patch)
	if err != nil {
		s.logger.Error("documents.update.failed", "owner_id", req.OwnerID, "id", req.ID, "error", err)
		return nil, fmt.Errorf("update document: %w", err)
	}
	s.logger.Info("documents.update.ok", "owner_id", req.OwnerID, "id", doc.ID)
	return doc, nil
}

func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	v := common.NewValidator().
		Field("owner_id", ownerID, common.Required).
		Field("id", id, common.Required)
	if err := v.Error(); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, ownerID, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	s.logger.Info("documents.delete.ok", "owner_id", ownerID, "id", id)
	return nil
}

// documentType canonicalizes an explicit type, or derives one from f.
func (s *Service) documentType(raw string, f fields.ExtractedFields) (constants.DocumentType, error) {
	if strings.TrimSpace(raw) != "" {
		dt, ok := constants.CanonicalizeDocumentType(raw)
		if !ok {
			return "", fmt.Errorf("%w: unknown document type %q", common.ErrValidation, raw)
		}
		return dt, nil
	}
	return DeriveType(f), nil
}

func (s *Service) validateFields(f fields.ExtractedFields) error {
	b, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode fields: %w", err)
	}
	if err := extract.ValidateJSON(s.schema, b); err != nil {
		return fmt.Errorf("%w: %v", common.ErrValidation, err)
	}
	return nil
}

// DeriveType picks a document type from the identifiers present.
func DeriveType(f fields.ExtractedFields) constants.DocumentType {
	switch {
	case f.IDNumber != "":
		return constants.Aadhar
	case f.DocumentNumber != "":
		return constants.Visa
	}
	return constants.Document
}

// Title is the display title stored with a new document.
func Title(t constants.DocumentType, at time.Time) string {
	return fmt.Sprintf("%s - %s", t, at.Format(titleDateLayout))
}

// Summary is a one-line description meant to be read aloud.
func Summary(doc *entity.Document) string {
	or := func(v string) string {
		if v == "" {
			return "Not specified"
		}
		return v
	}
	id := "Document: " + or(doc.Fields.DocumentNumber)
	if doc.Fields.IDNumber != "" {
		id = "Aadhar: " + doc.Fields.IDNumber
	}
	return fmt.Sprintf("Name: %s, %s, Date of Birth: %s", or(doc.Fields.FullName), id, or(doc.Fields.DateOfBirth))
}
