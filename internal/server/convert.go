package server

import (
	"fmt"
	"strings"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/doc-intake/internal/common"
	"github.com/joseph-ayodele/doc-intake/internal/documents"
	"github.com/joseph-ayodele/doc-intake/internal/entity"
	"github.com/joseph-ayodele/doc-intake/internal/fields"
	"github.com/joseph-ayodele/doc-intake/internal/pipeline"
)

func str(in *structpb.Struct, key string) string {
	return strings.TrimSpace(in.GetFields()[key].GetStringValue())
}

// boolOr reads a bool field, returning def when it is absent.
func boolOr(in *structpb.Struct, key string, def bool) bool {
	v, ok := in.GetFields()[key]
	if !ok {
		return def
	}
	if _, isBool := v.GetKind().(*structpb.Value_BoolValue); !isBool {
		return def
	}
	return v.GetBoolValue()
}

// stringMap reads a nested object whose values must all be strings.
func stringMap(in *structpb.Struct, key string) (map[string]string, error) {
	v, ok := in.GetFields()[key]
	if !ok {
		return nil, nil
	}
	obj := v.GetStructValue()
	if obj == nil {
		return nil, common.InvalidArgumentErrorf("%s must be an object", key)
	}
	out := make(map[string]string, len(obj.GetFields()))
	for k, fv := range obj.GetFields() {
		s, isString := fv.GetKind().(*structpb.Value_StringValue)
		if !isString {
			return nil, common.InvalidArgumentErrorf("%s.%s must be a string", key, k)
		}
		out[k] = s.StringValue
	}
	return out, nil
}

func anyMap(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func anyStrings(ss []string) []any {
	out := make([]any, 0, len(ss))
	for _, s := range ss {
		out = append(out, s)
	}
	return out
}

func fieldsValue(f fields.ExtractedFields) map[string]any {
	return anyMap(f.Map())
}

func documentValue(d *entity.Document) map[string]any {
	return map[string]any{
		"id":           d.ID,
		"title":        d.Title,
		"documentType": d.DocumentType,
		"fields":       fieldsValue(d.Fields),
		"extra":        anyMap(d.Extra),
		"originalText": d.OriginalText,
		"sourcePath":   d.SourcePath,
		"contentHash":  d.ContentHash,
		"timestamp":    d.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updatedAt":    d.UpdatedAt.UTC().Format(time.RFC3339Nano),
		"summary":      documents.Summary(d),
	}
}

func extractionValue(x pipeline.Extraction) map[string]any {
	out := map[string]any{
		"fields":      fieldsValue(x.Fields.Fields),
		"text":        x.Fields.Text,
		"confidence":  float64(x.Fields.Confidence),
		"needsReview": x.NeedsReview,
		"reasons":     anyStrings(x.Reasons),
		"status":      string(x.Status),
	}
	trace := make([]any, 0, len(x.Fields.Trace))
	for _, m := range x.Fields.Trace {
		trace = append(trace, string(m.Field)+"="+m.Rule)
	}
	out["trace"] = trace
	return out
}

func toStruct(m map[string]any) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("%w: encode response: %v", common.ErrInternal, err)
	}
	return s, nil
}
