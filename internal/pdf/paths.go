package pdf

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// PathBuilder names filled documents. Names combine the template identifier,
// the creation time and a random suffix so concurrent fills never collide.
type PathBuilder struct {
	templateID string
	uuidFunc   func() string
	now        func() time.Time
}

// NewPathBuilder creates a builder for documents filled from template
func NewPathBuilder(template string, uuidFunc func() string) *PathBuilder {
	return &PathBuilder{
		templateID: TemplateID(template),
		uuidFunc:   uuidFunc,
		now:        time.Now,
	}
}

// TemplateID returns the template file name without directory or extension
func TemplateID(template string) string {
	base := filepath.Base(template)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Destination returns a fresh document path inside dir
func (b *PathBuilder) Destination(dir string) string {
	name := fmt.Sprintf("%s_%d_%s.pdf", b.templateID, b.now().UnixNano(), b.uuidFunc())
	return filepath.Join(dir, name)
}
