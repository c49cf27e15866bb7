package fill

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/a3tai/sf2809-filler/internal/pdf/extraction"
)

// PDFCPU fills forms in process with pdfcpu. It sets field values and asks
// viewers to regenerate appearances instead of drawing them itself.
type PDFCPU struct {
	extractor *extraction.PDFCPUFormExtractor
}

// NewPDFCPU creates the in-process backend
func NewPDFCPU() *PDFCPU {
	return &PDFCPU{extractor: extraction.NewPDFCPUFormExtractor(false)}
}

// Name returns the backend name
func (p *PDFCPU) Name() string {
	return BackendPDFCPU
}

// Fill writes a filled copy of template to dest
func (p *PDFCPU) Fill(ctx context.Context, template, dest string, values Values) error {
	f, err := os.Open(template)
	if err != nil {
		return fmt.Errorf("failed to open template: %w", err)
	}
	defer f.Close()

	pctx, err := extraction.ReadContext(f)
	if err != nil {
		return err
	}

	remaining := make(map[string]bool, len(values))
	for name := range values {
		remaining[name] = true
	}

	err = p.extractor.WalkFields(pctx, func(field extraction.FormField, dict types.Dict, widgets []types.Dict) error {
		value, ok := values[field.Name]
		if !ok {
			return nil
		}
		delete(remaining, field.Name)
		return setValue(pctx, field, dict, widgets, value)
	})
	if err != nil {
		return err
	}

	if len(remaining) > 0 {
		missing := make([]string, 0, len(remaining))
		for name := range remaining {
			missing = append(missing, name)
		}
		sort.Strings(missing)
		return fmt.Errorf("fields not found in template: %s", strings.Join(missing, ", "))
	}

	acroForm, err := extraction.AcroForm(pctx)
	if err != nil {
		return err
	}
	if acroForm != nil {
		acroForm["NeedAppearances"] = types.Boolean(true)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	return writeAtomically(pctx, dest)
}

func setValue(pctx *model.Context, field extraction.FormField, dict types.Dict, widgets []types.Dict, value Value) error {
	switch field.Type {
	case extraction.FormFieldTypeText:
		dict["V"] = textObject(value.String())
	case extraction.FormFieldTypeSelect:
		if len(value) > 1 {
			if !field.MultiSelect {
				return &ValueError{Field: field.Name, Reason: "accepts a single value"}
			}
			arr := make(types.Array, 0, len(value))
			for _, v := range value {
				arr = append(arr, textObject(v))
			}
			dict["V"] = arr
		} else {
			dict["V"] = textObject(value.String())
		}
	case extraction.FormFieldTypeCheckbox, extraction.FormFieldTypeRadio:
		state := value.String()
		if len(field.Options) > 0 && !contains(field.Options, state) {
			return &ValueError{
				Field:  field.Name,
				Reason: fmt.Sprintf("has no state %q (states: %s)", state, strings.Join(field.Options, ", ")),
			}
		}
		dict["V"] = types.Name(state)
		for _, widget := range widgets {
			if widgetHasState(pctx, widget, state) {
				widget["AS"] = types.Name(state)
			} else {
				widget["AS"] = types.Name("Off")
			}
		}
	default:
		return &ValueError{Field: field.Name, Reason: fmt.Sprintf("of type %s cannot be filled", field.Type)}
	}
	return nil
}

func textObject(s string) types.Object {
	return types.NewHexLiteral([]byte(types.EncodeUTF16String(s)))
}

func widgetHasState(pctx *model.Context, widget types.Dict, state string) bool {
	apObj, found := widget.Find("AP")
	if !found {
		return false
	}
	apDict, err := pctx.DereferenceDict(apObj)
	if err != nil || apDict == nil {
		return false
	}
	nObj, found := apDict.Find("N")
	if !found {
		return false
	}
	nDict, err := pctx.DereferenceDict(nObj)
	if err != nil || nDict == nil {
		return false
	}
	_, found = nDict.Find(state)
	return found
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// writeAtomically writes next to dest and renames, so dest never holds a partial document
func writeAtomically(pctx *model.Context, dest string) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*")
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := api.WriteContext(pctx, tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write filled document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write filled document: %w", err)
	}
	return os.Rename(tmp.Name(), dest)
}
