package pdftest

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// FakePDFTK writes an executable shell script standing in for pdftk and
// returns its path. The script sees pdftk's argument order:
// $1 template, $2 fill_form, $3 -, $4 output, $5 destination.
func FakePDFTK(t testing.TB, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake pdftk needs a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "pdftk")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake pdftk: %v", err)
	}
	return path
}

// CopyingPDFTK copies the template to the destination unchanged and saves the
// XFDF it was given as <captureDir>/<destination base name>.xfdf
func CopyingPDFTK(t testing.TB, captureDir string) string {
	t.Helper()
	return FakePDFTK(t, fmt.Sprintf(`cat > "%s/$(basename "$5").xfdf" || exit 3
cp "$1" "$5"`, captureDir))
}

// FailingPDFTK writes a partial destination file and exits non-zero
func FailingPDFTK(t testing.TB) string {
	t.Helper()
	return FakePDFTK(t, `cat > /dev/null
printf 'partial' > "$5"
echo "Error: Failed to open form data file" >&2
exit 1`)
}

// HangingPDFTK never finishes on its own
func HangingPDFTK(t testing.TB) string {
	t.Helper()
	return FakePDFTK(t, `exec sleep 30`)
}

// GarbagePDFTK exits successfully after writing something that is not a PDF
func GarbagePDFTK(t testing.TB) string {
	t.Helper()
	return FakePDFTK(t, `cat > /dev/null
printf 'this is not a pdf' > "$5"`)
}
