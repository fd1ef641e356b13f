package pipeline

import (
	"github.com/joseph-ayodele/doc-intake/internal/fields"
)

// Review reasons.
const (
	ReasonLowOCRConfidence  = "low_ocr_confidence"
	ReasonMissingName       = "missing_full_name"
	ReasonMissingBirthDate  = "missing_date_of_birth"
	ReasonMissingIdentifier = "missing_identifier"
)

// ReviewReasons lists why an extraction should be checked by a person.
// ocrConfidence 0 means unknown and is not held against the result.
func ReviewReasons(ocrConfidence, threshold float32, f fields.ExtractedFields) []string {
	var reasons []string
	if ocrConfidence > 0 && ocrConfidence < threshold {
		reasons = append(reasons, ReasonLowOCRConfidence)
	}
	missing := map[fields.Field]bool{}
	for _, m := range f.Missing() {
		missing[m] = true
	}
	if missing[fields.FullName] {
		reasons = append(reasons, ReasonMissingName)
	}
	if missing[fields.DateOfBirth] {
		reasons = append(reasons, ReasonMissingBirthDate)
	}
	if missing[fields.IDNumber] && missing[fields.DocumentNumber] {
		reasons = append(reasons, ReasonMissingIdentifier)
	}
	return reasons
}
