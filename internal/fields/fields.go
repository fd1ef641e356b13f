package fields

import "strings"

// Field names one slot of ExtractedFields. The string value is the JSON key.
type Field string

const (
	FullName       Field = "fullName"
	DateOfBirth    Field = "dateOfBirth"
	IDNumber       Field = "aadharNumber"
	Gender         Field = "gender"
	Address        Field = "address"
	DocumentNumber Field = "documentNumber"
)

// All lists the fixed schema in output order.
var All = []Field{FullName, DateOfBirth, IDNumber, Gender, Address, DocumentNumber}

// ParseField maps a JSON key back to its Field.
func ParseField(key string) (Field, bool) {
	for _, f := range All {
		if string(f) == key {
			return f, true
		}
	}
	return "", false
}

// ExtractedFields is the fixed-schema result of one extraction.
// An empty string means the field was not found.
type ExtractedFields struct {
	FullName       string `json:"fullName"`
	DateOfBirth    string `json:"dateOfBirth"`
	IDNumber       string `json:"aadharNumber"`
	Gender         string `json:"gender"`
	Address        string `json:"address"`
	DocumentNumber string `json:"documentNumber"`
}

// Get returns the value stored for f.
func (e ExtractedFields) Get(f Field) string {
	switch f {
	case FullName:
		return e.FullName
	case DateOfBirth:
		return e.DateOfBirth
	case IDNumber:
		return e.IDNumber
	case Gender:
		return e.Gender
	case Address:
		return e.Address
	case DocumentNumber:
		return e.DocumentNumber
	}
	return ""
}

// Set stores v for f. It reports false for an unknown field.
func (e *ExtractedFields) Set(f Field, v string) bool {
	switch f {
	case FullName:
		e.FullName = v
	case DateOfBirth:
		e.DateOfBirth = v
	case IDNumber:
		e.IDNumber = v
	case Gender:
		e.Gender = v
	case Address:
		e.Address = v
	case DocumentNumber:
		e.DocumentNumber = v
	default:
		return false
	}
	return true
}

// Empty reports whether no field was found.
func (e ExtractedFields) Empty() bool {
	return len(e.Missing()) == len(All)
}

// Missing returns the fields left empty, in schema order.
func (e ExtractedFields) Missing() []Field {
	var out []Field
	for _, f := range All {
		if strings.TrimSpace(e.Get(f)) == "" {
			out = append(out, f)
		}
	}
	return out
}

// Filled counts non-empty fields.
func (e ExtractedFields) Filled() int {
	return len(All) - len(e.Missing())
}

// Map returns the six fields keyed by JSON name. Every key is present.
func (e ExtractedFields) Map() map[string]string {
	m := make(map[string]string, len(All))
	for _, f := range All {
		m[string(f)] = e.Get(f)
	}
	return m
}

// Record is an extraction result after review: the fixed fields plus
// whatever ad-hoc keys the reviewer added.
type Record struct {
	Fields ExtractedFields   `json:"fields"`
	Extra  map[string]string `json:"extra,omitempty"`
}

// NewRecord wraps an extraction result.
func NewRecord(f ExtractedFields) Record {
	return Record{Fields: f}
}

// Set writes one of the fixed fields, or an extension key otherwise.
func (r *Record) Set(key, value string) {
	if f, ok := ParseField(key); ok {
		r.Fields.Set(f, value)
		return
	}
	if r.Extra == nil {
		r.Extra = make(map[string]string)
	}
	r.Extra[key] = value
}

// Get reads a fixed field or an extension key.
func (r Record) Get(key string) (string, bool) {
	if f, ok := ParseField(key); ok {
		return r.Fields.Get(f), true
	}
	v, ok := r.Extra[key]
	return v, ok
}

// Flatten merges fixed fields and extension keys. Fixed fields win on collision.
func (r Record) Flatten() map[string]string {
	out := r.Fields.Map()
	for k, v := range r.Extra {
		if _, fixed := out[k]; fixed {
			continue
		}
		out[k] = v
	}
	return out
}
