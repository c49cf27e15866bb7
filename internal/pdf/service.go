package pdf

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/google/uuid"

	"github.com/a3tai/sf2809-filler/internal/mapping"
	pdferrors "github.com/a3tai/sf2809-filler/internal/pdf/errors"
	"github.com/a3tai/sf2809-filler/internal/pdf/fill"
)

// DefaultFillTimeout bounds a fill when the configuration leaves it unset
const DefaultFillTimeout = 30 * time.Second

// ServiceConfig holds the settings a Service is built from
type ServiceConfig struct {
	Template    string
	WorkDir     string
	FillTimeout time.Duration
	MaxFileSize int64
}

// Service fills one form template. It holds only read-only state after
// construction and is safe for concurrent use.
type Service struct {
	template  string
	workDir   string
	timeout   time.Duration
	table     *mapping.Table
	backend   fill.Backend
	validator *Validator
	paths     *PathBuilder
	logger    log.Logger
}

// NewService checks that the template is readable and wires the service
func NewService(cfg ServiceConfig, table *mapping.Table, backend fill.Backend, logger log.Logger) (*Service, error) {
	if table == nil {
		return nil, fmt.Errorf("mapping table cannot be nil")
	}
	if backend == nil {
		return nil, fmt.Errorf("fill backend cannot be nil")
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}

	f, err := os.Open(cfg.Template)
	if err != nil {
		return nil, pdferrors.TemplateReadFailed(cfg.Template, err)
	}
	f.Close()

	if err := os.MkdirAll(cfg.WorkDir, 0o750); err != nil {
		return nil, fmt.Errorf("cannot create work directory %s: %w", cfg.WorkDir, err)
	}

	timeout := cfg.FillTimeout
	if timeout <= 0 {
		timeout = DefaultFillTimeout
	}

	return &Service{
		template:  cfg.Template,
		workDir:   cfg.WorkDir,
		timeout:   timeout,
		table:     table,
		backend:   backend,
		validator: NewValidator(cfg.MaxFileSize),
		paths:     NewPathBuilder(cfg.Template, uuid.NewString),
		logger:    log.With(logger, "component", "filler", "backend", backend.Name()),
	}, nil
}

// Table returns the mapping table the service translates with
func (s *Service) Table() *mapping.Table {
	return s.table
}

// Template returns the template path
func (s *Service) Template() string {
	return s.template
}

// WorkDir returns the directory transient documents are written to
func (s *Service) WorkDir() string {
	return s.workDir
}

// Translate rekeys values from API names to template field names. Keys are
// checked in sorted order so the reported unknown field is deterministic.
func (s *Service) Translate(values fill.Values) (fill.Values, error) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(fill.Values, len(values))
	for _, apiName := range keys {
		record, ok := s.table.Lookup(apiName)
		if !ok {
			return nil, pdferrors.UnknownField(apiName)
		}
		if err := checkValue(record, values[apiName]); err != nil {
			return nil, err
		}
		out[record.PDFName] = values[apiName]
	}
	return out, nil
}

// checkValue rejects values the record's field type cannot hold, so that
// every backend refuses them the same way
func checkValue(record mapping.Record, value fill.Value) error {
	if len(value) > 1 && record.Type != mapping.TypeChoice {
		return pdferrors.InvalidValue(record.APIName, "accepts a single value", nil)
	}
	if record.Type == mapping.TypeButton && len(record.Options) > 0 && !slices.Contains(record.Options, value.String()) {
		return pdferrors.InvalidValue(record.APIName,
			fmt.Sprintf("has no state %q (states: %s)", value.String(), strings.Join(record.Options, ", ")), nil)
	}
	return nil
}

// apiNameFor returns the API name of a template field, or the field name
// itself when the table has no record for it
func (s *Service) apiNameFor(pdfName string) string {
	for _, r := range s.table.Records() {
		if r.PDFName == pdfName {
			return r.APIName
		}
	}
	return pdfName
}

// Fill writes a filled copy of the template into destDir and returns its path.
// The caller owns the returned file. On error no file is left behind.
func (s *Service) Fill(ctx context.Context, values fill.Values, destDir string) (string, error) {
	logger := log.With(s.logger, "method", "Fill")

	fields, err := s.Translate(values)
	if err != nil {
		level.Info(logger).Log("msg", "translate values", "err", err)
		return "", err
	}

	info, err := os.Stat(destDir)
	if err != nil {
		return "", pdferrors.FillFailed(err, "destination directory is not accessible")
	}
	if !info.IsDir() {
		return "", pdferrors.FillFailed(fmt.Errorf("%s is not a directory", destDir), "")
	}

	dest := s.paths.Destination(destDir)
	fillCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	if err := s.backend.Fill(fillCtx, s.template, dest, fields); err != nil {
		_ = os.Remove(dest)
		if errors.Is(ctx.Err(), context.Canceled) {
			level.Info(logger).Log("msg", "fill canceled by caller", "err", err)
			return "", fmt.Errorf("fill canceled: %w", ctx.Err())
		}
		if errors.Is(fillCtx.Err(), context.DeadlineExceeded) {
			level.Error(logger).Log("msg", "fill timed out", "timeout", s.timeout, "err", err)
			return "", pdferrors.FillTimeout(s.timeout, err)
		}
		var valueErr *fill.ValueError
		if errors.As(err, &valueErr) {
			level.Info(logger).Log("msg", "value rejected", "field", valueErr.Field, "err", err)
			return "", pdferrors.InvalidValue(s.apiNameFor(valueErr.Field), valueErr.Reason, err)
		}
		// A ToolError already carries the tool's output in its message.
		level.Error(logger).Log("msg", "fill template", "err", err)
		return "", pdferrors.FillFailed(err, "").WithFile(dest)
	}

	pages, err := s.validator.ValidateOutput(dest)
	if err != nil {
		_ = os.Remove(dest)
		level.Error(logger).Log("msg", "validate output", "err", err)
		return "", pdferrors.FillFailed(err, "fill produced an unreadable document").WithFile(dest)
	}

	level.Debug(logger).Log("msg", "filled", "fields", len(fields), "pages", pages, "path", dest,
		"took", time.Since(start))
	return dest, nil
}

// Document is a filled document open for reading. Closing it deletes the file.
type Document struct {
	*os.File
	path string
	size int64
}

// Size returns the document size in bytes
func (d *Document) Size() int64 {
	return d.size
}

// Path returns the document's location on disk
func (d *Document) Path() string {
	return d.path
}

// Close closes and removes the document
func (d *Document) Close() error {
	closeErr := d.File.Close()
	if err := os.Remove(d.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return closeErr
}

// Open fills into the work directory and opens the result. The caller must
// Close the document, which deletes it.
func (s *Service) Open(ctx context.Context, values fill.Values) (*Document, error) {
	path, err := s.Fill(ctx, values, s.workDir)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		_ = os.Remove(path)
		return nil, pdferrors.FillFailed(err, "cannot open filled document").WithFile(path)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		_ = os.Remove(path)
		return nil, pdferrors.FillFailed(err, "cannot stat filled document").WithFile(path)
	}
	return &Document{File: f, path: path, size: info.Size()}, nil
}

// FillBytes fills and returns the document's content, leaving nothing on disk
func (s *Service) FillBytes(ctx context.Context, values fill.Values) ([]byte, error) {
	doc, err := s.Open(ctx, values)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	data := make([]byte, doc.Size())
	if _, err := doc.ReadAt(data, 0); err != nil {
		return nil, pdferrors.FillFailed(err, "cannot read filled document").WithFile(doc.Path())
	}
	return data, nil
}
