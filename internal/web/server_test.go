package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-kit/kit/log"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/sf2809-filler/internal/mapping"
	"github.com/a3tai/sf2809-filler/internal/pdf"
	pdferrors "github.com/a3tai/sf2809-filler/internal/pdf/errors"
	"github.com/a3tai/sf2809-filler/internal/pdf/extraction"
	"github.com/a3tai/sf2809-filler/internal/pdf/fill"
	"github.com/a3tai/sf2809-filler/internal/pdf/pdftest"
)

func newTestServer(t *testing.T, backend fill.Backend, opts Options) (*httptest.Server, string) {
	t.Helper()
	template := pdftest.WriteFormPDF(t, t.TempDir(), pdftest.SF2809Fields...)
	table, err := mapping.Generate(template, false)
	require.NoError(t, err)

	workDir := t.TempDir()
	svc, err := pdf.NewService(pdf.ServiceConfig{
		Template:    template,
		WorkDir:     workDir,
		FillTimeout: 300 * time.Millisecond,
	}, table, backend, nil)
	require.NoError(t, err)

	srv, err := NewServer(svc, opts, nil)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, workDir
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	res, err := http.Post(url+"/sf2809", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { res.Body.Close() })
	return res
}

func decodeError(t *testing.T, res *http.Response) errorBody {
	t.Helper()
	assert.Equal(t, "application/json", res.Header.Get("Content-Type"))
	var body errorBody
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	return body
}

func assertNoDocuments(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "filled documents must be removed after the request")
}

func TestFill(t *testing.T) {
	ts, workDir := newTestServer(t, fill.NewPDFCPU(), Options{})

	res := post(t, ts.URL, `{"6address1": "1800 F. Street NW"}`)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "application/pdf", res.Header.Get("Content-Type"))
	assert.Equal(t, "*", res.Header.Get("Access-Control-Allow-Origin"))

	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Equal(t, res.Header.Get("Content-Length"), fmt.Sprint(len(data)))

	fields, err := extraction.NewPDFCPUFormExtractor(false).ExtractFormsFromReader(bytes.NewReader(data))
	require.NoError(t, err)
	got := map[string]interface{}{}
	for _, f := range fields {
		got[f.Name] = f.Value
	}
	assert.Equal(t, "1800 F. Street NW", got["6Address1"])

	assertNoDocuments(t, workDir)
}

func TestFill_Errors(t *testing.T) {
	tests := []struct {
		name       string
		backend    func(t *testing.T) fill.Backend
		body       string
		wantStatus int
		wantKind   string
	}{
		{
			name:       "unknown field",
			body:       `{"nonexistent_field": "x"}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantKind:   "UNKNOWN_FIELD",
		},
		{
			name:       "malformed json",
			body:       `{"6address1": `,
			wantStatus: http.StatusBadRequest,
			wantKind:   "MALFORMED_REQUEST",
		},
		{
			name:       "not an object",
			body:       `["6address1"]`,
			wantStatus: http.StatusBadRequest,
			wantKind:   "MALFORMED_REQUEST",
		},
		{
			name:       "nested value",
			body:       `{"6address1": {"street": "x"}}`,
			wantStatus: http.StatusBadRequest,
			wantKind:   "MALFORMED_REQUEST",
		},
		{
			name:       "body too large",
			body:       `{"6address1": "` + strings.Repeat("x", 2048) + `"}`,
			wantStatus: http.StatusRequestEntityTooLarge,
			wantKind:   "MALFORMED_REQUEST",
		},
		{
			name:       "unknown checkbox state",
			body:       `{"selfonly": "Maybe"}`,
			wantStatus: http.StatusBadRequest,
			wantKind:   "MALFORMED_REQUEST",
		},
		{
			name:       "list for a single choice field",
			body:       `{"enrollmenttype": ["1A", "1B"]}`,
			wantStatus: http.StatusBadRequest,
			wantKind:   "MALFORMED_REQUEST",
		},
		{
			name: "unknown checkbox state with pdftk",
			backend: func(t *testing.T) fill.Backend {
				b, err := fill.NewPDFTK(pdftest.CopyingPDFTK(t, t.TempDir()))
				require.NoError(t, err)
				return b
			},
			body:       `{"selfonly": "Maybe"}`,
			wantStatus: http.StatusBadRequest,
			wantKind:   "MALFORMED_REQUEST",
		},
		{
			name: "tool fails",
			backend: func(t *testing.T) fill.Backend {
				b, err := fill.NewPDFTK(pdftest.FailingPDFTK(t))
				require.NoError(t, err)
				return b
			},
			body:       `{"6address1": "x"}`,
			wantStatus: http.StatusBadGateway,
			wantKind:   "FILL_INVOCATION_FAILED",
		},
		{
			name: "tool hangs",
			backend: func(t *testing.T) fill.Backend {
				b, err := fill.NewPDFTK(pdftest.HangingPDFTK(t))
				require.NoError(t, err)
				return b
			},
			body:       `{"6address1": "x"}`,
			wantStatus: http.StatusGatewayTimeout,
			wantKind:   "FILL_TIMEOUT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var backend fill.Backend = fill.NewPDFCPU()
			if tt.backend != nil {
				backend = tt.backend(t)
			}
			ts, workDir := newTestServer(t, backend, Options{MaxBodySize: 1024})

			res := post(t, ts.URL, tt.body)
			assert.Equal(t, tt.wantStatus, res.StatusCode)
			body := decodeError(t, res)
			assert.Equal(t, tt.wantKind, body.Kind)
			assert.NotEmpty(t, body.Error)
			assertNoDocuments(t, workDir)
		})
	}
}

func TestPreflight(t *testing.T) {
	ts, _ := newTestServer(t, fill.NewPDFCPU(), Options{AllowOrigin: "https://forms.example.gov"})

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/sf2809", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://forms.example.gov")
	req.Header.Set("Access-Control-Request-Method", "POST")
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, http.StatusNoContent, res.StatusCode)
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Empty(t, body)
	assert.Equal(t, "https://forms.example.gov", res.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, res.Header.Get("Access-Control-Allow-Methods"), "POST")
	assert.Contains(t, res.Header.Get("Access-Control-Allow-Headers"), "Content-Type")
}

func TestMethodNotAllowed(t *testing.T) {
	ts, _ := newTestServer(t, fill.NewPDFCPU(), Options{})

	res, err := http.Get(ts.URL + "/sf2809")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)
}

func TestFields(t *testing.T) {
	ts, _ := newTestServer(t, fill.NewPDFCPU(), Options{})

	res, err := http.Get(ts.URL + "/sf2809/fields")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var got []fieldView
	require.NoError(t, json.NewDecoder(res.Body).Decode(&got))
	want := []fieldView{
		{APIName: "1name", Type: "text", AltText: "1. Name (Last, First, Middle Initial)"},
		{APIName: "6address1", Type: "text", AltText: "6. Home Address. Street"},
		{APIName: "6addresscity", Type: "text", AltText: "6. City"},
		{APIName: "enrollmenttype", Type: "choice", AltText: "Event code", Options: []string{"1A", "1B", "2A"}},
		{APIName: "selfonly", Type: "button", AltText: "Self only enrollment", Options: []string{"Off", "Yes"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}
}

func TestOpenAPI(t *testing.T) {
	ts, _ := newTestServer(t, fill.NewPDFCPU(), Options{Version: "1.2.3"})

	res, err := http.Get(ts.URL + "/sf2809/openapi.json")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	doc, err := openapi3.NewLoader().LoadFromData(data)
	require.NoError(t, err)
	require.NoError(t, doc.Validate(context.Background()))
	assert.Equal(t, "1.2.3", doc.Info.Version)

	op := doc.Paths.Find("/sf2809").Post
	require.NotNil(t, op)
	schema := op.RequestBody.Value.Content.Get("application/json").Schema.Value
	assert.Len(t, schema.Properties, 5)
	require.Contains(t, schema.Properties, "6address1")
	require.Contains(t, schema.Properties, "enrollmenttype")
	assert.Equal(t, []interface{}{"1A", "1B", "2A"}, schema.Properties["enrollmenttype"].Value.OneOf[0].Value.Enum)
	assert.NotNil(t, op.Responses.Status(http.StatusUnprocessableEntity))
}

func TestStaticRoutes(t *testing.T) {
	ts, _ := newTestServer(t, fill.NewPDFCPU(), Options{})

	tests := []struct {
		path         string
		wantType     string
		wantContains string
	}{
		{"/healthz", "text/plain", "ok"},
		{"/", "text/html", `<canvas id="15"></canvas>`},
		{"/sf2809.js", "javascript", "renderPdfFromResponseArray"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			res, err := http.Get(ts.URL + tt.path)
			require.NoError(t, err)
			defer res.Body.Close()
			require.Equal(t, http.StatusOK, res.StatusCode)
			assert.Contains(t, res.Header.Get("Content-Type"), tt.wantType)
			body, err := io.ReadAll(res.Body)
			require.NoError(t, err)
			assert.Contains(t, string(body), tt.wantContains)
		})
	}

	res, err := http.Get(ts.URL + "/missing")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{pdferrors.MalformedRequest(io.EOF), http.StatusBadRequest},
		{pdferrors.MalformedRequest(&http.MaxBytesError{Limit: 1}), http.StatusRequestEntityTooLarge},
		{pdferrors.UnknownField("x"), http.StatusUnprocessableEntity},
		{pdferrors.InvalidValue("selfonly", "has no state", nil), http.StatusBadRequest},
		{pdferrors.FillTimeout(time.Second, nil), http.StatusGatewayTimeout},
		{pdferrors.FillFailed(io.EOF, ""), http.StatusBadGateway},
		{pdferrors.DuplicateMapping("a", "A", "a"), http.StatusInternalServerError},
		{pdferrors.TemplateReadFailed("t.pdf", io.EOF), http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), tt.err.Error())
	}
}

func TestRun(t *testing.T) {
	template := pdftest.WriteFormPDF(t, t.TempDir(), pdftest.SF2809Fields...)
	table, err := mapping.Generate(template, false)
	require.NoError(t, err)
	svc, err := pdf.NewService(pdf.ServiceConfig{Template: template, WorkDir: t.TempDir()}, table, fill.NewPDFCPU(), nil)
	require.NoError(t, err)
	srv, err := NewServer(svc, Options{}, nil)
	require.NoError(t, err)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, addr) }()

	require.Eventually(t, func() bool {
		res, err := http.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		res.Body.Close()
		return res.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestNewServer_NilFiller(t *testing.T) {
	_, err := NewServer(nil, Options{}, nil)
	assert.Error(t, err)
}

type canceledFiller struct {
	table *mapping.Table
}

func (f canceledFiller) Open(ctx context.Context, values fill.Values) (*pdf.Document, error) {
	return nil, fmt.Errorf("fill canceled: %w", context.Canceled)
}

func (f canceledFiller) Table() *mapping.Table {
	return f.table
}

func TestFill_CanceledIsNotLoggedAsError(t *testing.T) {
	table, err := mapping.NewTable([]mapping.Record{{PDFName: "6Address1", APIName: "6address1", Type: "text"}})
	require.NoError(t, err)

	var buf bytes.Buffer
	srv, err := NewServer(canceledFiller{table: table}, Options{}, log.NewLogfmtLogger(&buf))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/sf2809", strings.NewReader(`{"6address1": "x"}`))
	srv.Handler().ServeHTTP(rec, req)

	assert.Contains(t, buf.String(), `msg="request rejected"`)
	assert.NotContains(t, buf.String(), "level=error")
}
