package constants

import (
	"strings"
)

type DocumentType string

const (
	Aadhar   DocumentType = "Aadhar"
	Passport DocumentType = "Passport"
	Visa     DocumentType = "Visa"
	Document DocumentType = "Document"
)

var allDocumentTypes = []DocumentType{
	Aadhar,
	Passport,
	Visa,
	Document,
}

func DocumentTypesAsStrings() []string {
	result := make([]string, len(allDocumentTypes))
	for i, dt := range allDocumentTypes {
		result[i] = string(dt)
	}
	return result
}

func CanonicalizeDocumentType(input string) (DocumentType, bool) {
	if input == "" {
		return Document, false
	}

	normalized := strings.ToLower(strings.TrimSpace(input))

	// synonyms map
	synonyms := map[string]DocumentType{
		"aadhaar":       Aadhar,
		"aadhaar card":  Aadhar,
		"aadhar card":   Aadhar,
		"uidai":         Aadhar,
		"travel visa":   Visa,
		"passport book": Passport,
		"id":            Document,
		"identity card": Document,
		"other":         Document,
	}

	if dt, ok := synonyms[normalized]; ok {
		return dt, true
	}

	for _, dt := range allDocumentTypes {
		if normalized == strings.ToLower(string(dt)) {
			return dt, true
		}
	}

	return Document, false
}
