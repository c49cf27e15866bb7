// Package pdftest builds small AcroForm documents for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Field describes one field of a generated form. A field with Kids is
// nonterminal and only contributes its partial name and FT to the kids.
type Field struct {
	Name    string
	Type    string // Tx, Btn, Ch; may be empty on kids that inherit it
	AltText string
	Flags   int
	// Options are Opt entries for Ch fields and on-state names for Btn fields.
	Options []string
	Kids    []Field
}

// SF2809Fields is a small stand-in for the real template's field set.
var SF2809Fields = []Field{
	{Name: "1Name", Type: "Tx", AltText: "1. Name (Last, First, Middle Initial)"},
	{Name: "6Address1", Type: "Tx", AltText: "6. Home Address. Street"},
	{Name: "6Address City", Type: "Tx", AltText: "6. City"},
	{Name: "Enrollment Type", Type: "Ch", AltText: "Event code", Options: []string{"1A", "1B", "2A"}},
	{Name: "Self Only", Type: "Btn", AltText: "Self only enrollment", Options: []string{"Yes"}},
}

type builder struct {
	objects []string
}

func (b *builder) alloc() int {
	b.objects = append(b.objects, "")
	return len(b.objects)
}

func (b *builder) set(num int, body string) {
	b.objects[num-1] = body
}

// FormPDF returns a one page PDF whose AcroForm holds fields.
func FormPDF(fields ...Field) []byte {
	b := &builder{}
	catalog := b.alloc()
	pages := b.alloc()
	page := b.alloc()
	acroForm := b.alloc()
	appearance := b.alloc()

	b.set(appearance, "<< /Type /XObject /Subtype /Form /BBox [0 0 10 10] /Length 0 >>\nstream\n\nendstream")

	var widgets []int
	var roots []int
	y := 750
	var add func(f Field, parent int) int
	add = func(f Field, parent int) int {
		num := b.alloc()
		var d strings.Builder
		d.WriteString("<<")
		if f.Name != "" {
			fmt.Fprintf(&d, " /T %s", literal(f.Name))
		}
		if f.Type != "" {
			fmt.Fprintf(&d, " /FT /%s", f.Type)
		}
		if f.Flags != 0 {
			fmt.Fprintf(&d, " /Ff %d", f.Flags)
		}
		if parent != 0 {
			fmt.Fprintf(&d, " /Parent %d 0 R", parent)
		}
		if len(f.Kids) > 0 {
			var kids []string
			for _, kid := range f.Kids {
				kids = append(kids, fmt.Sprintf("%d 0 R", add(kid, num)))
			}
			fmt.Fprintf(&d, " /Kids [%s]", strings.Join(kids, " "))
		} else {
			if f.AltText != "" {
				fmt.Fprintf(&d, " /TU %s", literal(f.AltText))
			}
			fmt.Fprintf(&d, " /Type /Annot /Subtype /Widget /P %d 0 R /F 4 /Rect [50 %d 300 %d]", page, y, y+14)
			y -= 20
			switch f.Type {
			case "Ch":
				var opts []string
				for _, o := range f.Options {
					opts = append(opts, literal(o))
				}
				fmt.Fprintf(&d, " /Opt [%s]", strings.Join(opts, " "))
			case "Btn":
				d.WriteString(" /AP << /N <<")
				for _, o := range f.Options {
					fmt.Fprintf(&d, " /%s %d 0 R", o, appearance)
				}
				fmt.Fprintf(&d, " /Off %d 0 R >> >> /AS /Off", appearance)
			case "Tx":
				d.WriteString(" /DA (/Helv 10 Tf 0 g)")
			}
			widgets = append(widgets, num)
		}
		d.WriteString(" >>")
		b.set(num, d.String())
		return num
	}
	for _, f := range fields {
		roots = append(roots, add(f, 0))
	}

	b.set(catalog, fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R /AcroForm %d 0 R >>", pages, acroForm))
	b.set(pages, fmt.Sprintf("<< /Type /Pages /Kids [%d 0 R] /Count 1 >>", page))
	b.set(page, fmt.Sprintf("<< /Type /Page /Parent %d 0 R /MediaBox [0 0 612 792] /Resources << >> /Annots [%s] >>",
		pages, refs(widgets)))
	b.set(acroForm, fmt.Sprintf("<< /Fields [%s] /DA (/Helv 0 Tf 0 g) >>", refs(roots)))

	return b.bytes(catalog)
}

func (b *builder) bytes(root int) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")
	offsets := make([]int, len(b.objects))
	for i, body := range b.objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(b.objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root %d 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(b.objects)+1, root, xref)
	return buf.Bytes()
}

// WriteFormPDF writes a generated form into dir and returns its path.
func WriteFormPDF(t testing.TB, dir string, fields ...Field) string {
	t.Helper()
	path := filepath.Join(dir, "template.pdf")
	if err := os.WriteFile(path, FormPDF(fields...), 0o600); err != nil {
		t.Fatalf("write form pdf: %v", err)
	}
	return path
}

func refs(nums []int) string {
	parts := make([]string, len(nums))
	for i, n := range nums {
		parts[i] = fmt.Sprintf("%d 0 R", n)
	}
	return strings.Join(parts, " ")
}

func literal(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return "(" + r.Replace(s) + ")"
}
