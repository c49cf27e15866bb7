// Package mapping holds the translation table between a template's internal
// field names and the keys API clients fill them by.
package mapping

import (
	"fmt"
	"strings"

	pdferrors "github.com/a3tai/sf2809-filler/internal/pdf/errors"
)

// Record maps one template field to its API key
type Record struct {
	PDFName string   `json:"pdf_name" yaml:"pdf_name"`
	APIName string   `json:"api_name" yaml:"api_name"`
	Type    string   `json:"type" yaml:"type"`
	AltText string   `json:"alt_text" yaml:"alt_text"`
	Options []string `json:"options,omitempty" yaml:"options,omitempty"`
}

// APIName derives the API key for a template field name: lowercased, with
// spaces and periods removed. Other punctuation is kept as is, so two names
// such as "Address 1" and "Address.1" collide; NewTable rejects that.
func APIName(pdfName string) string {
	return strings.NewReplacer(" ", "", ".", "").Replace(strings.ToLower(pdfName))
}

// Table is an immutable, validated set of records. It is safe for concurrent use.
type Table struct {
	records []Record
	byAPI   map[string]int
}

// NewTable validates records and indexes them by API name. Records with an
// empty API name or an API name shared with an earlier record are rejected.
func NewTable(records []Record) (*Table, error) {
	t := &Table{
		records: make([]Record, len(records)),
		byAPI:   make(map[string]int, len(records)),
	}
	copy(t.records, records)

	for i, r := range t.records {
		if r.APIName == "" {
			return nil, pdferrors.NewFormError(pdferrors.ErrorTypeDuplicateMapping,
				fmt.Sprintf("record %d (%q) has an empty api name", i, r.PDFName))
		}
		if prev, exists := t.byAPI[r.APIName]; exists {
			return nil, pdferrors.DuplicateMapping(r.APIName, t.records[prev].PDFName, r.PDFName)
		}
		t.byAPI[r.APIName] = i
	}
	return t, nil
}

// Lookup returns the record for an exact API name match
func (t *Table) Lookup(apiName string) (Record, bool) {
	i, ok := t.byAPI[apiName]
	if !ok {
		return Record{}, false
	}
	return t.records[i], true
}

// Records returns a copy of the records in table order
func (t *Table) Records() []Record {
	out := make([]Record, len(t.records))
	copy(out, t.records)
	return out
}

// Len returns the number of records
func (t *Table) Len() int {
	return len(t.records)
}
