package mapping

import (
	"errors"
	"fmt"

	pdferrors "github.com/a3tai/sf2809-filler/internal/pdf/errors"
	"github.com/a3tai/sf2809-filler/internal/pdf/extraction"
)

// Record types
const (
	TypeText      = "text"
	TypeButton    = "button"
	TypeChoice    = "choice"
	TypeSignature = "signature"
)

// ErrNoFields is returned when a template has no fillable fields
var ErrNoFields = errors.New("template has no form fields")

// Generate introspects the template at templatePath and builds its mapping table
func Generate(templatePath string, debug bool) (*Table, error) {
	fields, err := extraction.NewPDFCPUFormExtractor(debug).ExtractFormsFromFile(templatePath)
	if err != nil {
		return nil, pdferrors.TemplateReadFailed(templatePath, err)
	}
	records := FromFields(fields)
	if len(records) == 0 {
		return nil, pdferrors.TemplateReadFailed(templatePath, ErrNoFields)
	}
	return NewTable(records)
}

// FromFields converts extracted fields to records in the same order. Fields
// without a name are skipped: no fill tool can address them.
func FromFields(fields []extraction.FormField) []Record {
	records := make([]Record, 0, len(fields))
	for _, field := range fields {
		if field.Name == "" {
			continue
		}
		r := Record{
			PDFName: field.Name,
			APIName: APIName(field.Name),
			Type:    TypeName(field.Type),
			AltText: field.AltText,
		}
		if field.Type.HasStates() && len(field.Options) > 0 {
			r.Options = append([]string(nil), field.Options...)
		}
		records = append(records, r)
	}
	return records
}

// TypeName returns the lowercase field type name recorded in the mapping:
// text, button, choice or signature
func TypeName(t extraction.FormFieldType) string {
	switch t {
	case extraction.FormFieldTypeText:
		return TypeText
	case extraction.FormFieldTypeCheckbox, extraction.FormFieldTypeRadio, extraction.FormFieldTypeButton:
		return TypeButton
	case extraction.FormFieldTypeSelect:
		return TypeChoice
	case extraction.FormFieldTypeSignature:
		return TypeSignature
	default:
		return fmt.Sprint(t)
	}
}
