package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/sf2809-filler/internal/mapping"
	"github.com/a3tai/sf2809-filler/internal/pdf/pdftest"
)

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_WritesMappings(t *testing.T) {
	dir := t.TempDir()
	template := pdftest.WriteFormPDF(t, dir, pdftest.SF2809Fields...)

	for _, name := range []string{"m.json", "m.yaml", "m.xlsx"} {
		t.Run(name, func(t *testing.T) {
			output := filepath.Join(dir, name)
			code, stdout, stderr := runCLI(t, "-output", output, template)
			require.Equal(t, 0, code, stderr)
			assert.Contains(t, stdout, "Wrote")
			assert.FileExists(t, output)
		})
	}

	table, err := mapping.Load(filepath.Join(dir, "m.json"))
	require.NoError(t, err)
	assert.Equal(t, len(pdftest.SF2809Fields), table.Len())
}

func TestRun_Check(t *testing.T) {
	dir := t.TempDir()
	template := pdftest.WriteFormPDF(t, dir, pdftest.SF2809Fields...)
	output := filepath.Join(dir, "sf2809_mappings.json")

	code, _, stderr := runCLI(t, "-template", template, "-output", output)
	require.Equal(t, 0, code, stderr)

	code, stdout, _ := runCLI(t, "-check", "-template", template, "-output", output)
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "up to date")

	require.NoError(t, os.WriteFile(output, []byte("[]\n"), 0o600))
	code, _, stderr = runCLI(t, "-check", "-template", template, "-output", output)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "out of date")
}

func TestRun_Errors(t *testing.T) {
	dir := t.TempDir()
	template := pdftest.WriteFormPDF(t, dir, pdftest.SF2809Fields...)

	tests := []struct {
		name     string
		args     []string
		wantCode int
	}{
		{name: "no template", args: nil, wantCode: 2},
		{name: "unknown flag", args: []string{"-nope"}, wantCode: 2},
		{name: "missing template", args: []string{filepath.Join(dir, "missing.pdf")}, wantCode: 1},
		{name: "bad format", args: []string{"-format", "csv", template}, wantCode: 1},
		{name: "check xlsx", args: []string{"-check", "-output", filepath.Join(dir, "m.xlsx"), template}, wantCode: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, _ := runCLI(t, tt.args...)
			assert.Equal(t, tt.wantCode, code)
		})
	}
}

func TestRun_Help(t *testing.T) {
	code, stdout, _ := runCLI(t, "-help")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "USAGE:")
}
