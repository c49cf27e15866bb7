package extraction

// FormFieldType represents the type of a form field
type FormFieldType string

const (
	FormFieldTypeText      FormFieldType = "text"
	FormFieldTypeCheckbox  FormFieldType = "checkbox"
	FormFieldTypeRadio     FormFieldType = "radio"
	FormFieldTypeSelect    FormFieldType = "select"
	FormFieldTypeButton    FormFieldType = "button"
	FormFieldTypeSignature FormFieldType = "signature"
	FormFieldTypeUnknown   FormFieldType = "unknown"
)

// HasStates reports whether fields of this type take one of a finite set of values
func (t FormFieldType) HasStates() bool {
	return t == FormFieldTypeCheckbox || t == FormFieldTypeRadio || t == FormFieldTypeSelect
}

// FormField represents a terminal interactive form field in a PDF
type FormField struct {
	// Name is the fully qualified field name, partial names joined with ".".
	// It is empty for a field without any /T entry.
	Name        string        `json:"name"`
	PartialName string        `json:"partial_name"`
	Type        FormFieldType `json:"type"`
	AltText     string        `json:"alt_text,omitempty"`
	Value       interface{}   `json:"value,omitempty"`
	Options     []string      `json:"options,omitempty"`
	Required    bool          `json:"required"`
	ReadOnly    bool          `json:"read_only"`
	MultiSelect bool          `json:"multi_select,omitempty"`
	MaxLength   int           `json:"max_length,omitempty"`
}

// Field flag bits (PDF 32000-1, 12.7.3.1 and 12.7.4)
const (
	flagReadOnly    = 1 << 0
	flagRequired    = 1 << 1
	flagRadio       = 1 << 15
	flagPushbutton  = 1 << 16
	flagMultiSelect = 1 << 21
)
