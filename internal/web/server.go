// Package web exposes the form filler over HTTP and serves the preview page.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"strconv"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	"github.com/a3tai/sf2809-filler/internal/mapping"
	"github.com/a3tai/sf2809-filler/internal/pdf"
	pdferrors "github.com/a3tai/sf2809-filler/internal/pdf/errors"
	"github.com/a3tai/sf2809-filler/internal/pdf/fill"
)

//go:embed assets/*
var embeddedAssets embed.FS

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
	pdfContentType    = "application/pdf"
	jsonContentType   = "application/json"
)

// Filler fills the form into a document that is deleted when closed.
type Filler interface {
	Open(ctx context.Context, values fill.Values) (*pdf.Document, error)
	Table() *mapping.Table
}

// Options configures the HTTP surface.
type Options struct {
	AllowOrigin string
	MaxBodySize int64
	Version     string
}

// Server serves the fill endpoint.
type Server struct {
	filler      Filler
	allowOrigin string
	maxBodySize int64
	openAPI     []byte
	fields      []byte
	assets      fs.FS
	logger      log.Logger
}

type fieldView struct {
	APIName string   `json:"api_name"`
	Type    string   `json:"type"`
	AltText string   `json:"alt_text"`
	Options []string `json:"options,omitempty"`
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// NewServer renders the static documents once; the table never changes.
func NewServer(filler Filler, opts Options, logger log.Logger) (*Server, error) {
	if filler == nil {
		return nil, fmt.Errorf("filler cannot be nil")
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if opts.AllowOrigin == "" {
		opts.AllowOrigin = "*"
	}

	table := filler.Table()
	openAPI, err := json.Marshal(OpenAPI(table, opts.Version))
	if err != nil {
		return nil, fmt.Errorf("failed to render OpenAPI document: %w", err)
	}

	records := table.Records()
	views := make([]fieldView, 0, len(records))
	for _, r := range records {
		views = append(views, fieldView{APIName: r.APIName, Type: r.Type, AltText: r.AltText, Options: r.Options})
	}
	fields, err := json.Marshal(views)
	if err != nil {
		return nil, fmt.Errorf("failed to render field list: %w", err)
	}

	assets, err := fs.Sub(embeddedAssets, "assets")
	if err != nil {
		return nil, err
	}

	return &Server{
		filler:      filler,
		allowOrigin: opts.AllowOrigin,
		maxBodySize: opts.MaxBodySize,
		openAPI:     openAPI,
		fields:      fields,
		assets:      assets,
		logger:      log.With(logger, "component", "http"),
	}, nil
}

// Handler returns the routed handler with CORS and access logging applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /sf2809", s.handleFill)
	mux.HandleFunc("OPTIONS /sf2809", s.handlePreflight)
	mux.HandleFunc("GET /sf2809/fields", s.handleStatic(s.fields, jsonContentType))
	mux.HandleFunc("GET /sf2809/openapi.json", s.handleStatic(s.openAPI, jsonContentType))
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /{$}", s.handleAsset("index.html"))
	mux.HandleFunc("GET /sf2809.js", s.handleAsset("sf2809.js"))
	return s.logRequests(s.cors(mux))
}

// Run serves on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		level.Info(s.logger).Log("msg", "listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	level.Info(s.logger).Log("msg", "shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleFill(w http.ResponseWriter, r *http.Request) {
	logger := log.With(s.logger, "method", "handleFill")

	body := io.Reader(r.Body)
	if s.maxBodySize > 0 {
		body = http.MaxBytesReader(w, r.Body, s.maxBodySize)
	}
	values, err := fill.DecodeValues(body)
	if err != nil {
		s.writeError(w, pdferrors.MalformedRequest(err))
		return
	}

	doc, err := s.filler.Open(r.Context(), values)
	if err != nil {
		s.writeError(w, err)
		return
	}
	defer func() {
		if err := doc.Close(); err != nil {
			level.Error(logger).Log("msg", "remove document", "path", doc.Path(), "err", err)
		}
	}()

	w.Header().Set("Content-Type", pdfContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(doc.Size(), 10))
	w.Header().Set("Content-Disposition", `inline; filename="sf2809.pdf"`)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, doc); err != nil {
		level.Warn(logger).Log("msg", "stream document", "err", err)
	}
}

func (s *Server) handlePreflight(w http.ResponseWriter, r *http.Request) {
	h := w.Header()
	h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type")
	h.Set("Access-Control-Max-Age", "86400")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStatic(body []byte, contentType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write(body)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "ok")
}

func (s *Server) handleAsset(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.ServeFileFS(w, r, s.assets, name)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	logger := log.With(s.logger, "method", "writeError")
	if status >= http.StatusInternalServerError && !errors.Is(err, context.Canceled) {
		level.Error(logger).Log("msg", "request failed", "status", status, "err", err)
	} else {
		level.Info(logger).Log("msg", "request rejected", "status", status, "err", err)
	}

	w.Header().Set("Content-Type", jsonContentType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: err.Error(),
		Kind:  pdferrors.TypeOf(err).String(),
	})
}

// StatusFor maps an error to the HTTP status reported for it.
func StatusFor(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}

	switch pdferrors.TypeOf(err) {
	case pdferrors.ErrorTypeMalformedRequest:
		return http.StatusBadRequest
	case pdferrors.ErrorTypeUnknownField:
		return http.StatusUnprocessableEntity
	case pdferrors.ErrorTypeFillTimeout:
		return http.StatusGatewayTimeout
	case pdferrors.ErrorTypeFillInvocationFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.allowOrigin)
		if s.allowOrigin != "*" {
			w.Header().Add("Vary", "Origin")
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(p []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(p)
	r.bytes += int64(n)
	return n, err
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		level.Debug(s.logger).Log("msg", "request", "http_method", r.Method, "path", r.URL.Path,
			"status", rec.status, "bytes", rec.bytes, "took", time.Since(start))
	})
}
