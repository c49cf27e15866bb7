package mapping

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pdferrors "github.com/a3tai/sf2809-filler/internal/pdf/errors"
	"github.com/a3tai/sf2809-filler/internal/pdf/pdftest"
)

func TestGenerate(t *testing.T) {
	template := pdftest.WriteFormPDF(t, t.TempDir(), pdftest.SF2809Fields...)

	table, err := Generate(template, false)
	require.NoError(t, err)

	want := []Record{
		{PDFName: "1Name", APIName: "1name", Type: "text", AltText: "1. Name (Last, First, Middle Initial)"},
		{PDFName: "6Address1", APIName: "6address1", Type: "text", AltText: "6. Home Address. Street"},
		{PDFName: "6Address City", APIName: "6addresscity", Type: "text", AltText: "6. City"},
		{PDFName: "Enrollment Type", APIName: "enrollmenttype", Type: "choice", AltText: "Event code",
			Options: []string{"1A", "1B", "2A"}},
		{PDFName: "Self Only", APIName: "selfonly", Type: "button", AltText: "Self only enrollment",
			Options: []string{"Off", "Yes"}},
	}
	if diff := cmp.Diff(want, table.Records()); diff != "" {
		t.Errorf("Generate() mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerate_SkipsUnnamedFields(t *testing.T) {
	template := pdftest.WriteFormPDF(t, t.TempDir(),
		pdftest.Field{Name: "1Name", Type: "Tx"},
		pdftest.Field{Type: "Tx", AltText: "no name"},
		pdftest.Field{Name: "6Address1", Type: "Tx"},
	)

	table, err := Generate(template, false)
	require.NoError(t, err)

	var names []string
	for _, r := range table.Records() {
		names = append(names, r.PDFName)
	}
	assert.Equal(t, []string{"1Name", "6Address1"}, names)
}

func TestGenerate_Deterministic(t *testing.T) {
	template := pdftest.WriteFormPDF(t, t.TempDir(), pdftest.SF2809Fields...)

	first, err := Generate(template, false)
	require.NoError(t, err)
	second, err := Generate(template, false)
	require.NoError(t, err)

	for _, format := range []Format{FormatJSON, FormatYAML} {
		a, err := first.Bytes(format)
		require.NoError(t, err)
		b, err := second.Bytes(format)
		require.NoError(t, err)
		assert.Equal(t, a, b, "format %s", format)
	}
}

func TestGenerate_Failures(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing template", func(t *testing.T) {
		_, err := Generate(filepath.Join(dir, "missing.pdf"), false)
		require.Error(t, err)
		assert.Equal(t, pdferrors.ErrorTypeTemplateReadFailed, pdferrors.TypeOf(err))
	})

	t.Run("not a pdf", func(t *testing.T) {
		path := filepath.Join(dir, "garbage.pdf")
		require.NoError(t, os.WriteFile(path, []byte("hello"), 0o600))
		_, err := Generate(path, false)
		require.Error(t, err)
		assert.Equal(t, pdferrors.ErrorTypeTemplateReadFailed, pdferrors.TypeOf(err))
	})

	t.Run("zero fields", func(t *testing.T) {
		empty := pdftest.WriteFormPDF(t, t.TempDir())
		_, err := Generate(empty, false)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNoFields)
	})

	t.Run("only unnamed fields", func(t *testing.T) {
		template := pdftest.WriteFormPDF(t, t.TempDir(), pdftest.Field{Type: "Tx"})
		_, err := Generate(template, false)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNoFields)
	})

	t.Run("colliding names", func(t *testing.T) {
		template := pdftest.WriteFormPDF(t, t.TempDir(),
			pdftest.Field{Name: "Address 1", Type: "Tx"},
			pdftest.Field{Name: "Address.1", Type: "Tx"},
		)
		_, err := Generate(template, false)
		require.Error(t, err)
		assert.Equal(t, pdferrors.ErrorTypeDuplicateMapping, pdferrors.TypeOf(err))
	})
}
