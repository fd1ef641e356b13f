package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/doc-intake/internal/fields"
	"github.com/joseph-ayodele/doc-intake/internal/ocr"
)

// RulesExtractor is the FieldExtractor backed by the ordered field rules.
type RulesExtractor struct {
	x        *fields.Extractor
	preClean bool
	schema   *jsonschema.Schema
	logger   *slog.Logger
}

// NewRulesExtractor wires x (or the default rule set when nil).
// When preClean is set the text goes through ocr.Clean first.
func NewRulesExtractor(x *fields.Extractor, preClean bool, logger *slog.Logger) (*RulesExtractor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if x == nil {
		x = fields.NewExtractor()
	}
	schema, err := CompileSchema(FieldsJSONSchema(ExtractedGenders))
	if err != nil {
		return nil, err
	}
	return &RulesExtractor{x: x, preClean: preClean, schema: schema, logger: logger}, nil
}

func (r *RulesExtractor) ExtractFields(ctx context.Context, text string, hints map[string]string) (FieldsResult, error) {
	if err := ctx.Err(); err != nil {
		return FieldsResult{}, err
	}

	clean := r.preClean
	if v, ok := hints[HintPreClean]; ok {
		clean = v == "true"
	}
	if clean {
		text = ocr.Clean(text)
	}

	out, trace := r.x.ExtractWithTrace(text)
	b, err := json.Marshal(out)
	if err != nil {
		return FieldsResult{}, fmt.Errorf("encode fields: %w", err)
	}
	if err := ValidateJSON(r.schema, b); err != nil {
		r.logger.Error("fields.extract.schema_invalid", "error", err, "json", string(b))
		return FieldsResult{}, err
	}

	conf := float32(out.Filled()) / float32(len(fields.All))
	rules := make([]string, 0, len(trace))
	for _, m := range trace {
		rules = append(rules, string(m.Field)+"="+m.Rule)
	}
	r.logger.Debug("fields.extract.ok", "filled", out.Filled(), "preclean", clean, "rules", rules)

	return FieldsResult{
		Fields:     out,
		Trace:      trace,
		JSON:       string(b),
		Confidence: conf,
		Text:       text,
	}, nil
}
