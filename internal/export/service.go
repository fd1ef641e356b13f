package export

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/doc-intake/internal/entity"
	"github.com/joseph-ayodele/doc-intake/internal/repository"
)

const sheet = "Documents"

var headers = []string{
	"Title",
	"Type",
	"Full Name",
	"Date of Birth",
	"ID Number",
	"Gender",
	"Address",
	"Document Number",
	"Saved At",
}

// Service produces XLSX bytes for an owner's saved documents.
type Service struct {
	store  repository.DocumentStore
	logger *slog.Logger
}

func NewService(store repository.DocumentStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// ExportDocumentsXLSX returns a workbook with one row per document, newest first.
// Extension keys used by any document become extra columns after the fixed ones.
func (s *Service) ExportDocumentsXLSX(ctx context.Context, ownerID string) ([]byte, error) {
	start := time.Now()

	docs, err := s.store.List(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("export.xlsx.close_failed", "error", err)
		}
	}()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	extraKeys := collectExtraKeys(docs)
	cols := append(append([]string{}, headers...), extraKeys...)
	for i, h := range cols {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, err
		}
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		last, _ := excelize.CoordinatesToCellName(len(cols), 1)
		_ = f.SetCellStyle(sheet, "A1", last, style)
	}

	for i, d := range docs {
		row := i + 2
		write := func(col int, v any) error {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			return f.SetCellValue(sheet, cell, v)
		}
		values := []string{
			d.Title,
			d.DocumentType,
			d.Fields.FullName,
			d.Fields.DateOfBirth,
			d.Fields.IDNumber,
			d.Fields.Gender,
			d.Fields.Address,
			d.Fields.DocumentNumber,
			d.CreatedAt.UTC().Format(time.RFC3339),
		}
		for _, k := range extraKeys {
			values = append(values, d.Extra[k])
		}
		for c, v := range values {
			if err := write(c+1, v); err != nil {
				return nil, err
			}
		}
	}

	_ = f.SetColWidth(sheet, "A", "B", 24) // title, type
	_ = f.SetColWidth(sheet, "C", "C", 28) // name
	_ = f.SetColWidth(sheet, "D", "F", 16)
	_ = f.SetColWidth(sheet, "G", "G", 48) // address
	_ = f.SetColWidth(sheet, "H", "I", 22)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"owner_id", ownerID,
		"rows", len(docs),
		"extra_columns", len(extraKeys),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func collectExtraKeys(docs []*entity.Document) []string {
	seen := map[string]struct{}{}
	for _, d := range docs {
		for k := range d.Extra {
			seen[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
