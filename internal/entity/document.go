package entity

import (
	"time"

	"github.com/joseph-ayodele/doc-intake/internal/fields"
)

// Document is a saved extraction result belonging to one owner.
type Document struct {
	ID           string                 `json:"id"`
	OwnerID      string                 `json:"userId"`
	Title        string                 `json:"title"`
	DocumentType string                 `json:"documentType"`
	Fields       fields.ExtractedFields `json:"fields"`
	Extra        map[string]string      `json:"extra,omitempty"`
	OriginalText string                 `json:"originalText"`
	SourcePath   string                 `json:"sourcePath,omitempty"`
	ContentHash  string                 `json:"contentHash,omitempty"`
	CreatedAt    time.Time              `json:"timestamp"`
	UpdatedAt    time.Time              `json:"updatedAt"`
}

// Record returns the document's fields and extra keys as one record.
func (d *Document) Record() fields.Record {
	r := fields.NewRecord(d.Fields)
	for k, v := range d.Extra {
		r.Set(k, v)
	}
	return r
}

// Clone returns a deep copy.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	c := *d
	if d.Extra != nil {
		c.Extra = make(map[string]string, len(d.Extra))
		for k, v := range d.Extra {
			c.Extra[k] = v
		}
	}
	return &c
}

// DocumentPatch is a partial update. Nil pointers leave the value unchanged.
type DocumentPatch struct {
	Title        *string
	DocumentType *string
	Fields       *fields.ExtractedFields
	// Extra keys are merged; an empty value removes the key.
	Extra map[string]string
}

// Empty reports whether the patch changes nothing.
func (p DocumentPatch) Empty() bool {
	return p.Title == nil && p.DocumentType == nil && p.Fields == nil && len(p.Extra) == 0
}

// Apply writes the patch onto d and stamps UpdatedAt.
func (d *Document) Apply(p DocumentPatch, now time.Time) {
	if p.Title != nil {
		d.Title = *p.Title
	}
	if p.DocumentType != nil {
		d.DocumentType = *p.DocumentType
	}
	if p.Fields != nil {
		d.Fields = *p.Fields
	}
	for k, v := range p.Extra {
		if v == "" {
			delete(d.Extra, k)
			continue
		}
		if d.Extra == nil {
			d.Extra = map[string]string{}
		}
		d.Extra[k] = v
	}
	d.UpdatedAt = now
}
