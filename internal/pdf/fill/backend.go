// Package fill writes field values into a PDF form template.
package fill

import (
	"context"
	"fmt"
)

// Backend fills template into a new document at dest. values are keyed by
// the template's own field names. Implementations must not leave a file at
// dest when they return an error.
type Backend interface {
	Fill(ctx context.Context, template, dest string, values Values) error
	Name() string
}

// Backend names accepted by New
const (
	BackendPDFTK  = "pdftk"
	BackendPDFCPU = "pdfcpu"
)

// New returns the named backend. pdftkBinary is only used by the pdftk backend.
func New(name, pdftkBinary string) (Backend, error) {
	switch name {
	case BackendPDFTK:
		return NewPDFTK(pdftkBinary)
	case BackendPDFCPU:
		return NewPDFCPU(), nil
	default:
		return nil, fmt.Errorf("unknown fill backend: %s", name)
	}
}
