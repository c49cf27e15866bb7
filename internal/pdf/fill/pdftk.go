package fill

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// waitDelay bounds how long Fill waits for pdftk's output pipes after the
// process has been killed
const waitDelay = 2 * time.Second

// ToolError reports a failed external tool run together with its diagnostic output
type ToolError struct {
	Tool   string
	Err    error
	Output string
}

func (e *ToolError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("%s failed: %v: %s", e.Tool, e.Err, e.Output)
	}
	return fmt.Sprintf("%s failed: %v", e.Tool, e.Err)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

type commandFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

// PDFTK fills forms by running the pdftk command line tool, passing the
// values as XFDF on standard input
type PDFTK struct {
	binary  string
	command commandFunc
}

// NewPDFTK resolves binary on PATH. A missing binary is an error so that
// callers can refuse to start instead of failing every request.
func NewPDFTK(binary string) (*PDFTK, error) {
	if binary == "" {
		binary = BackendPDFTK
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("pdftk binary not found: %w", err)
	}
	return &PDFTK{
		binary:  path,
		command: exec.CommandContext,
	}, nil
}

// Name returns the backend name
func (p *PDFTK) Name() string {
	return BackendPDFTK
}

// Binary returns the resolved pdftk path
func (p *PDFTK) Binary() string {
	return p.binary
}

// Fill runs `pdftk <template> fill_form - output <dest> need_appearances`
func (p *PDFTK) Fill(ctx context.Context, template, dest string, values Values) error {
	xfdf, err := XFDF(values)
	if err != nil {
		return fmt.Errorf("failed to encode XFDF: %w", err)
	}

	cmd := p.command(ctx, p.binary, template, "fill_form", "-", "output", dest, "need_appearances")
	cmd.Stdin = bytes.NewReader(xfdf)
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output
	cmd.WaitDelay = waitDelay

	if err := cmd.Run(); err != nil {
		_ = os.Remove(dest)
		return &ToolError{
			Tool:   BackendPDFTK,
			Err:    err,
			Output: strings.TrimSpace(output.String()),
		}
	}

	info, err := os.Stat(dest)
	if err != nil {
		return &ToolError{Tool: BackendPDFTK, Err: fmt.Errorf("no output written: %w", err)}
	}
	if info.Size() == 0 {
		_ = os.Remove(dest)
		return &ToolError{Tool: BackendPDFTK, Err: fmt.Errorf("empty output written to %s", dest)}
	}
	return nil
}
