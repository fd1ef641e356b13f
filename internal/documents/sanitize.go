package documents

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/joseph-ayodele/doc-intake/internal/common"
	"github.com/joseph-ayodele/doc-intake/internal/fields"
)

const maxExtraKeyLen = 64

var genderAliases = map[string]string{
	"m":      "Male",
	"male":   "Male",
	"f":      "Female",
	"female": "Female",
	"o":      "Other",
	"other":  "Other",
}

// Sanitize tidies hand-edited fields: values are trimmed, gender spellings
// are canonicalized, a 12-digit ID gets its 4-4-4 grouping back and
// document numbers are upper-cased. Unrecognized values pass through so
// validation can reject them.
func Sanitize(f fields.ExtractedFields) fields.ExtractedFields {
	for _, k := range fields.All {
		f.Set(k, strings.TrimSpace(f.Get(k)))
	}
	if g, ok := genderAliases[strings.ToLower(f.Gender)]; ok {
		f.Gender = g
	}
	if digits := strings.Map(dropSeparators, f.IDNumber); len(digits) == 12 && isDigits(digits) {
		f.IDNumber = digits[:4] + " " + digits[4:8] + " " + digits[8:]
	}
	f.DocumentNumber = strings.ToUpper(f.DocumentNumber)
	return f
}

func dropSeparators(r rune) rune {
	if r == ' ' || r == '-' {
		return -1
	}
	return r
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// extraKey validates an extension key name.
func extraKey(k string) (string, error) {
	k = strings.TrimSpace(k)
	switch {
	case k == "":
		return "", fmt.Errorf("%w: extra key must not be empty", common.ErrValidation)
	case strings.IndexFunc(k, unicode.IsControl) >= 0:
		return "", fmt.Errorf("%w: extra key %q has control characters", common.ErrValidation, k)
	}
	if err := common.NewValidator().Field("extra key", k, common.MaxLength(maxExtraKeyLen)).Error(); err != nil {
		return "", err
	}
	if _, fixed := fields.ParseField(k); fixed {
		return "", fmt.Errorf("%w: %q is a fixed field, not an extra key", common.ErrValidation, k)
	}
	return k, nil
}

// sanitizeExtra trims keys and values and drops empty values.
func sanitizeExtra(in map[string]string) (map[string]string, error) {
	var out map[string]string
	for k, v := range in {
		key, err := extraKey(k)
		if err != nil {
			return nil, err
		}
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if out == nil {
			out = make(map[string]string, len(in))
		}
		out[key] = v
	}
	return out, nil
}
