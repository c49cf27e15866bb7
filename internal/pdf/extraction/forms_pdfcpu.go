package extraction

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// maxFieldDepth bounds the field hierarchy walk; real forms nest a handful of levels
const maxFieldDepth = 32

// FieldVisitor is called once per terminal field. dict is the field dictionary
// itself (mutable, it lives in the context's xref table) and widgets holds the
// widget annotations that display it.
type FieldVisitor func(field FormField, dict types.Dict, widgets []types.Dict) error

// PDFCPUFormExtractor implements form extraction using the pdfcpu library
type PDFCPUFormExtractor struct {
	debugMode bool
}

// NewPDFCPUFormExtractor creates a new form extractor using pdfcpu
func NewPDFCPUFormExtractor(debugMode bool) *PDFCPUFormExtractor {
	return &PDFCPUFormExtractor{
		debugMode: debugMode,
	}
}

// ReadContext reads a PDF into a pdfcpu context using relaxed validation
func ReadContext(rs io.ReadSeeker) (*model.Context, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(rs, conf)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF context: %w", err)
	}

	if err := ctx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("failed to ensure page count: %w", err)
	}
	return ctx, nil
}

// ExtractFormsFromFile extracts all terminal form fields from a PDF file
func (fe *PDFCPUFormExtractor) ExtractFormsFromFile(filePath string) ([]FormField, error) {
	if fe.debugMode {
		fmt.Printf("Extracting forms from: %s using pdfcpu\n", filePath)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF file: %w", err)
	}
	defer file.Close()

	return fe.ExtractFormsFromReader(file)
}

// ExtractFormsFromReader extracts forms from an io.ReadSeeker
func (fe *PDFCPUFormExtractor) ExtractFormsFromReader(reader io.ReadSeeker) ([]FormField, error) {
	ctx, err := ReadContext(reader)
	if err != nil {
		return nil, err
	}

	var forms []FormField
	err = fe.WalkFields(ctx, func(field FormField, _ types.Dict, _ []types.Dict) error {
		forms = append(forms, field)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return forms, nil
}

// AcroForm returns the document's interactive form dictionary, or nil when the
// document has none
func AcroForm(ctx *model.Context) (types.Dict, error) {
	rootDict, err := ctx.Catalog()
	if err != nil {
		return nil, fmt.Errorf("failed to get catalog: %w", err)
	}

	acroFormObj, found := rootDict.Find("AcroForm")
	if !found {
		return nil, nil
	}

	acroFormDict, err := ctx.DereferenceDict(acroFormObj)
	if err != nil {
		return nil, fmt.Errorf("failed to dereference AcroForm: %w", err)
	}
	return acroFormDict, nil
}

// WalkFields visits every terminal field of the document's AcroForm in
// document order. Nonterminal fields contribute their partial name and
// inheritable entries (FT, Ff) to their descendants.
func (fe *PDFCPUFormExtractor) WalkFields(ctx *model.Context, visit FieldVisitor) error {
	acroFormDict, err := AcroForm(ctx)
	if err != nil {
		return err
	}
	if acroFormDict == nil {
		if fe.debugMode {
			fmt.Println("No AcroForm dictionary found in document")
		}
		return nil
	}

	fieldsObj, found := acroFormDict.Find("Fields")
	if !found {
		if fe.debugMode {
			fmt.Println("No Fields array found in AcroForm")
		}
		return nil
	}

	fieldsArray, err := ctx.DereferenceArray(fieldsObj)
	if err != nil {
		return fmt.Errorf("failed to dereference Fields array: %w", err)
	}

	w := &fieldWalker{
		ctx:     ctx,
		visit:   visit,
		visited: make(map[int]bool),
		debug:   fe.debugMode,
	}
	for _, fieldRef := range fieldsArray {
		if err := w.walk(fieldRef, inherited{}, 0); err != nil {
			return err
		}
	}
	return nil
}

// inherited carries the entries a field takes from its ancestors
type inherited struct {
	name     string
	fieldTyp string
	flags    int
	hasFlags bool
}

type fieldWalker struct {
	ctx     *model.Context
	visit   FieldVisitor
	visited map[int]bool
	debug   bool
}

func (w *fieldWalker) walk(fieldObj types.Object, parent inherited, depth int) error {
	if depth > maxFieldDepth {
		return fmt.Errorf("field hierarchy deeper than %d levels", maxFieldDepth)
	}
	if ref, ok := fieldObj.(types.IndirectRef); ok {
		objNr := ref.ObjectNumber.Value()
		if w.visited[objNr] {
			return nil
		}
		w.visited[objNr] = true
	}

	fieldDict, err := w.ctx.DereferenceDict(fieldObj)
	if err != nil {
		return fmt.Errorf("failed to dereference field: %w", err)
	}
	if fieldDict == nil {
		return nil
	}

	current := parent
	partial := w.stringEntry(fieldDict, "T")
	if partial != "" {
		if parent.name != "" {
			current.name = parent.name + "." + partial
		} else {
			current.name = partial
		}
	}
	if ft, ok := w.nameEntry(fieldDict, "FT"); ok {
		current.fieldTyp = ft
	}
	if flagsObj, found := fieldDict.Find("Ff"); found {
		if flags, err := w.ctx.DereferenceInteger(flagsObj); err == nil && flags != nil {
			current.flags = flags.Value()
			current.hasFlags = true
		}
	}

	kids := w.kids(fieldDict)
	var childFields []types.Object
	var widgets []types.Dict
	for _, kid := range kids {
		kidDict, err := w.ctx.DereferenceDict(kid)
		if err != nil || kidDict == nil {
			continue
		}
		if _, hasName := kidDict.Find("T"); hasName {
			childFields = append(childFields, kid)
		} else {
			widgets = append(widgets, kidDict)
		}
	}

	if len(childFields) > 0 {
		for _, child := range childFields {
			if err := w.walk(child, current, depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	// Terminal field: merged field/widget when it has no widget kids.
	if len(widgets) == 0 {
		widgets = []types.Dict{fieldDict}
	}

	field := w.terminalField(fieldDict, widgets, current, partial)
	if w.debug {
		fmt.Printf("Extracted field: %s (type: %s)\n", field.Name, field.Type)
	}
	return w.visit(field, fieldDict, widgets)
}

func (w *fieldWalker) terminalField(fieldDict types.Dict, widgets []types.Dict, attrs inherited, partial string) FormField {
	field := FormField{
		Name:        attrs.name,
		PartialName: partial,
		Type:        fieldType(attrs.fieldTyp, attrs.flags),
		AltText:     w.stringEntry(fieldDict, "TU"),
	}

	if attrs.hasFlags {
		field.ReadOnly = attrs.flags&flagReadOnly != 0
		field.Required = attrs.flags&flagRequired != 0
		field.MultiSelect = field.Type == FormFieldTypeSelect && attrs.flags&flagMultiSelect != 0
	}

	if valueObj, found := fieldDict.Find("V"); found {
		field.Value = w.fieldValue(valueObj, field.Type)
	}

	if maxLenObj, found := fieldDict.Find("MaxLen"); found {
		if maxLen, err := w.ctx.DereferenceInteger(maxLenObj); err == nil && maxLen != nil {
			field.MaxLength = maxLen.Value()
		}
	}

	switch field.Type {
	case FormFieldTypeSelect:
		field.Options = w.choiceOptions(fieldDict)
	case FormFieldTypeCheckbox, FormFieldTypeRadio:
		field.Options = w.appearanceStates(widgets)
	}

	return field
}

// fieldType determines the field type from the (possibly inherited) FT entry and flags
func fieldType(ft string, flags int) FormFieldType {
	switch ft {
	case "Btn":
		if flags&flagRadio != 0 {
			return FormFieldTypeRadio
		} else if flags&flagPushbutton != 0 {
			return FormFieldTypeButton
		}
		return FormFieldTypeCheckbox
	case "Tx":
		return FormFieldTypeText
	case "Ch":
		return FormFieldTypeSelect
	case "Sig":
		return FormFieldTypeSignature
	default:
		return FormFieldTypeUnknown
	}
}

func (w *fieldWalker) kids(dict types.Dict) types.Array {
	kidsObj, found := dict.Find("Kids")
	if !found {
		return nil
	}
	kids, err := w.ctx.DereferenceArray(kidsObj)
	if err != nil {
		return nil
	}
	return kids
}

func (w *fieldWalker) stringEntry(dict types.Dict, key string) string {
	obj, found := dict.Find(key)
	if !found {
		return ""
	}
	s, err := w.ctx.DereferenceStringOrHexLiteral(obj, model.V10, nil)
	if err != nil {
		return ""
	}
	return s
}

func (w *fieldWalker) nameEntry(dict types.Dict, key string) (string, bool) {
	obj, found := dict.Find(key)
	if !found {
		return "", false
	}
	name, err := w.ctx.DereferenceName(obj, model.V10, nil)
	if err != nil {
		return "", false
	}
	return name.Value(), true
}

// fieldValue extracts the current value based on field type
func (w *fieldWalker) fieldValue(valueObj types.Object, fieldType FormFieldType) interface{} {
	switch fieldType {
	case FormFieldTypeText:
		if val, err := w.ctx.DereferenceStringOrHexLiteral(valueObj, model.V10, nil); err == nil {
			return val
		}
	case FormFieldTypeCheckbox, FormFieldTypeRadio:
		if name, err := w.ctx.DereferenceName(valueObj, model.V10, nil); err == nil {
			return name.Value()
		}
	case FormFieldTypeSelect:
		// Can be string or array of strings
		if val, err := w.ctx.DereferenceStringOrHexLiteral(valueObj, model.V10, nil); err == nil {
			return val
		}
		if arr, err := w.ctx.DereferenceArray(valueObj); err == nil {
			var values []string
			for _, item := range arr {
				if str, err := w.ctx.DereferenceStringOrHexLiteral(item, model.V10, nil); err == nil {
					values = append(values, str)
				}
			}
			return values
		}
	}
	return nil
}

// choiceOptions extracts the export values of a choice field
func (w *fieldWalker) choiceOptions(fieldDict types.Dict) []string {
	var options []string

	optObj, found := fieldDict.Find("Opt")
	if !found {
		return options
	}

	optArray, err := w.ctx.DereferenceArray(optObj)
	if err != nil {
		return options
	}

	for _, opt := range optArray {
		// Options can be strings or arrays of [export_value, display_value]
		if str, err := w.ctx.DereferenceStringOrHexLiteral(opt, model.V10, nil); err == nil {
			options = append(options, str)
		} else if arr, err := w.ctx.DereferenceArray(opt); err == nil && len(arr) >= 1 {
			if exportVal, err := w.ctx.DereferenceStringOrHexLiteral(arr[0], model.V10, nil); err == nil {
				options = append(options, exportVal)
			}
		}
	}

	return options
}

// appearanceStates collects the on/off state names a button's widgets can show,
// sorted so that repeated runs produce the same order
func (w *fieldWalker) appearanceStates(widgets []types.Dict) []string {
	seen := make(map[string]bool)
	for _, widget := range widgets {
		apObj, found := widget.Find("AP")
		if !found {
			continue
		}
		apDict, err := w.ctx.DereferenceDict(apObj)
		if err != nil || apDict == nil {
			continue
		}
		nObj, found := apDict.Find("N")
		if !found {
			continue
		}
		nDict, err := w.ctx.DereferenceDict(nObj)
		if err != nil || nDict == nil {
			continue
		}
		for state := range nDict {
			seen[state] = true
		}
	}

	states := make([]string, 0, len(seen))
	for state := range seen {
		states = append(states, state)
	}
	sort.Strings(states)
	if len(states) == 0 {
		return nil
	}
	return states
}
