package mapping

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	pdferrors "github.com/a3tai/sf2809-filler/internal/pdf/errors"
)

// Format is a serialization format for the mapping artifact
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	// FormatXLSX is a review export only; Load does not read it
	FormatXLSX Format = "xlsx"
)

const xlsxSheet = "Mappings"

// ParseFormat validates a format name
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(name)); f {
	case FormatJSON, FormatYAML, FormatXLSX:
		return f, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported mapping format: %s", name)
	}
}

// FormatForPath picks a format from a file extension, defaulting to JSON
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".xlsx":
		return FormatXLSX
	default:
		return FormatJSON
	}
}

// Encode writes the table in the given format. JSON and YAML output depend
// only on the records, so an unchanged template yields identical bytes.
func (t *Table) Encode(w io.Writer, format Format) error {
	switch format {
	case FormatJSON:
		// Alt text is printed form wording; keep "&" and "<" readable.
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(t.records); err != nil {
			return fmt.Errorf("failed to encode mappings: %w", err)
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(t.records); err != nil {
			return fmt.Errorf("failed to encode mappings: %w", err)
		}
		return enc.Close()
	case FormatXLSX:
		return t.encodeXLSX(w)
	default:
		return fmt.Errorf("unsupported mapping format: %s", format)
	}
}

// Bytes returns the encoded table
func (t *Table) Bytes(format Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := t.Encode(&buf, format); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (t *Table) encodeXLSX(w io.Writer) error {
	f := excelize.NewFile()
	f.SetSheetName("Sheet1", xlsxSheet)

	header := []string{"pdf_name", "api_name", "type", "alt_text", "options"}
	for col, title := range header {
		if err := setCell(f, col, 0, title); err != nil {
			return err
		}
	}
	for i, r := range t.records {
		row := []string{r.PDFName, r.APIName, r.Type, r.AltText, strings.Join(r.Options, ", ")}
		for col, value := range row {
			if err := setCell(f, col, i+1, value); err != nil {
				return err
			}
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write spreadsheet: %w", err)
	}
	return nil
}

func setCell(f *excelize.File, col, row int, value string) error {
	axis, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return err
	}
	return f.SetCellValue(xlsxSheet, axis, value)
}

// Decode reads records in the given format and validates them into a table
func Decode(r io.Reader, format Format) (*Table, error) {
	var records []Record
	switch format {
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&records); err != nil {
			return nil, fmt.Errorf("failed to decode mappings: %w", err)
		}
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&records); err != nil {
			return nil, fmt.Errorf("failed to decode mappings: %w", err)
		}
	default:
		return nil, fmt.Errorf("cannot load mappings from %s", format)
	}
	return NewTable(records)
}

// Load reads the mapping artifact at path, choosing the format from its extension
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, pdferrors.TemplateReadFailed(path, err)
	}
	defer f.Close()

	table, err := Decode(f, FormatForPath(path))
	if err != nil {
		if pdferrors.TypeOf(err) != pdferrors.ErrorTypeUnknown {
			return nil, err
		}
		return nil, pdferrors.TemplateReadFailed(path, err)
	}
	return table, nil
}

// WriteFile encodes the table to path, replacing any existing file only once
// the new content is completely written
func (t *Table) WriteFile(path string, format Format) error {
	data, err := t.Bytes(format)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write mappings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write mappings: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}
