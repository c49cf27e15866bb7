package pdf

import (
	"fmt"
	"os"

	"github.com/ledongthuc/pdf"
)

// Validator checks that a document produced by a fill backend is a complete,
// readable PDF before it is handed to a caller
type Validator struct {
	maxFileSize int64
}

// NewValidator creates a new PDF validator with the specified constraints
func NewValidator(maxFileSize int64) *Validator {
	return &Validator{
		maxFileSize: maxFileSize,
	}
}

// ValidateOutput opens the file at filePath and returns its page count
func (v *Validator) ValidateOutput(filePath string) (int, error) {
	if filePath == "" {
		return 0, fmt.Errorf("path cannot be empty")
	}

	fileInfo, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return 0, fmt.Errorf("file does not exist: %s", filePath)
	}
	if err != nil {
		return 0, fmt.Errorf("cannot access file: %w", err)
	}

	if fileInfo.IsDir() {
		return 0, fmt.Errorf("path is a directory, not a file: %s", filePath)
	}

	if fileInfo.Size() == 0 {
		return 0, fmt.Errorf("file is empty: %s", filePath)
	}

	if v.maxFileSize > 0 && fileInfo.Size() > v.maxFileSize {
		return 0, fmt.Errorf("file too large: %d bytes (max: %d bytes)",
			fileInfo.Size(), v.maxFileSize)
	}

	pages, err := countPages(filePath)
	if err != nil {
		return 0, err
	}
	if pages < 1 {
		return 0, fmt.Errorf("document has no pages: %s", filePath)
	}
	return pages, nil
}

// countPages opens the document with ledongthuc/pdf, which panics on some
// malformed input
func countPages(filePath string) (pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages, err = 0, fmt.Errorf("invalid PDF file: %v", r)
		}
	}()

	f, reader, err := pdf.Open(filePath)
	if err != nil {
		return 0, fmt.Errorf("invalid PDF file: %w", err)
	}
	defer f.Close()

	return reader.NumPage(), nil
}

// IsValidPDF performs a quick check to see if a file is a valid PDF
func (v *Validator) IsValidPDF(filePath string) bool {
	_, err := v.ValidateOutput(filePath)
	return err == nil
}
