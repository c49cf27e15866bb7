package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/sf2809-filler/internal/config"
	"github.com/a3tai/sf2809-filler/internal/mapping"
	pdferrors "github.com/a3tai/sf2809-filler/internal/pdf/errors"
	"github.com/a3tai/sf2809-filler/internal/pdf/pdftest"
)

const (
	testVersion = "1.2.3"
	devVersion  = "dev"
)

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	originalStdout := os.Stdout

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Failed to create pipe: %v", err)
	}
	os.Stdout = w
	defer func() {
		os.Stdout = originalStdout
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
		w.Close()
	}()

	var buf bytes.Buffer
	io.Copy(&buf, r)
	<-done
	return buf.String()
}

func TestPrintVersion(t *testing.T) {
	oldVersion := version
	oldBuildTime := buildTime
	oldGitCommit := gitCommit

	version = testVersion
	buildTime = "2023-12-01_10:30:00"
	gitCommit = "abc123"

	defer func() {
		version = oldVersion
		buildTime = oldBuildTime
		gitCommit = oldGitCommit
	}()

	output := captureStdout(t, printVersion)

	expectedStrings := []string{
		"SF2809 Filler",
		"Version: " + testVersion,
		"Build Time: 2023-12-01_10:30:00",
		"Git Commit: abc123",
		"Built with:",
	}

	for _, expected := range expectedStrings {
		if !strings.Contains(output, expected) {
			t.Errorf("printVersion() output missing expected string: %s\nActual output:\n%s", expected, output)
		}
	}
}

func TestPrintVersionWithDefaults(t *testing.T) {
	if version != devVersion {
		t.Skipf("binary built with version %s", version)
	}

	output := captureStdout(t, printVersion)
	if !strings.Contains(output, "Version: "+devVersion) {
		t.Errorf("printVersion() output missing default version\nActual output:\n%s", output)
	}
}

// testConfig writes a template and its generated mappings and returns a
// configuration that uses them with the in-process backend
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	template := pdftest.WriteFormPDF(t, dir, pdftest.SF2809Fields...)

	table, err := mapping.Generate(template, false)
	require.NoError(t, err)
	mappings := filepath.Join(dir, "sf2809_mappings.json")
	require.NoError(t, table.WriteFile(mappings, mapping.FormatJSON))

	cfg := config.DefaultConfig()
	cfg.Template = template
	cfg.Mappings = mappings
	cfg.WorkDir = filepath.Join(dir, "work")
	cfg.OutputDir = filepath.Join(dir, "out")
	cfg.Backend = config.BackendPDFCPU
	cfg.Host = "127.0.0.1"
	cfg.Port = 0
	return cfg
}

func TestNewService(t *testing.T) {
	cfg := testConfig(t)

	svc, err := newService(cfg, log.NewNopLogger())
	require.NoError(t, err)
	assert.Equal(t, len(pdftest.SF2809Fields), svc.Table().Len())
	assert.DirExists(t, cfg.WorkDir)
}

func TestNewService_Fatal(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(t *testing.T, cfg *config.Config)
		wantType pdferrors.ErrorType
	}{
		{
			name: "missing template",
			mutate: func(t *testing.T, cfg *config.Config) {
				cfg.Template = filepath.Join(t.TempDir(), "missing.pdf")
			},
			wantType: pdferrors.ErrorTypeTemplateReadFailed,
		},
		{
			name: "missing mappings",
			mutate: func(t *testing.T, cfg *config.Config) {
				cfg.Mappings = filepath.Join(t.TempDir(), "missing.json")
			},
			wantType: pdferrors.ErrorTypeTemplateReadFailed,
		},
		{
			name: "duplicate api name",
			mutate: func(t *testing.T, cfg *config.Config) {
				path := filepath.Join(t.TempDir(), "dup.json")
				data := `[{"pdf_name":"6Address1","api_name":"6address1","type":"text"},` +
					`{"pdf_name":"6ADDRESS1","api_name":"6address1","type":"text"}]`
				require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
				cfg.Mappings = path
			},
			wantType: pdferrors.ErrorTypeDuplicateMapping,
		},
		{
			name: "pdftk not installed",
			mutate: func(t *testing.T, cfg *config.Config) {
				cfg.Backend = config.BackendPDFTK
				cfg.PDFTK = filepath.Join(t.TempDir(), "no-such-pdftk")
			},
			wantType: pdferrors.ErrorTypeUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(t, cfg)

			svc, err := newService(cfg, log.NewNopLogger())
			require.Error(t, err)
			assert.Nil(t, svc)
			assert.Equal(t, tt.wantType, pdferrors.TypeOf(err))
		})
	}
}

func TestRun_ServerStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	svc, err := newService(cfg, log.NewNopLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx, cfg, svc, log.NewNopLogger())
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}

func TestRun_StdioRejectsBadOutputDir(t *testing.T) {
	cfg := testConfig(t)
	cfg.Mode = config.ModeStdio
	cfg.OutputDir = ""
	svc, err := newService(cfg, log.NewNopLogger())
	require.NoError(t, err)

	err = run(context.Background(), cfg, svc, log.NewNopLogger())
	assert.Error(t, err)
}
