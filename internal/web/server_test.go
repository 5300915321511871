package web

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luigidoria/Generative-AI-Data-Refiner/internal/config"
	"github.com/luigidoria/Generative-AI-Data-Refiner/internal/core"
	"github.com/luigidoria/Generative-AI-Data-Refiner/internal/correction"
	"github.com/luigidoria/Generative-AI-Data-Refiner/internal/schema"
	"github.com/luigidoria/Generative-AI-Data-Refiner/internal/scriptcache"
	"github.com/luigidoria/Generative-AI-Data-Refiner/internal/sink"
	"github.com/luigidoria/Generative-AI-Data-Refiner/internal/validation"
)

const validCSV = "id_transacao,data_transacao,valor,tipo,categoria,descricao,conta_origem,conta_destino,status\n" +
	"TX1,2024-01-15,100.50,CREDITO,Salario,pagamento,0001-1,,PENDENTE\n" +
	"TX2,2024-01-16,-20.00,DEBITO,Mercado,compra,0001-1,,CONCLUIDA\n"

const messyCSV = "codigo;data;Data;Valor;Tipo;Categoria;origem;observacao\n" +
	"T1;15/01/2024;;R$ 1.234,56;credit;food;acc-1;x\n" +
	"T2;;16/01/2024;R$ 10,00;debito;rent;acc-2;y\n" +
	"T3;17/01/2024;18/01/2024;R$ 99,90;DEBITO;misc;acc-3;z\n"

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{RequestTimeout: 5 * time.Second},
		Ingest: config.IngestConfig{
			MaxFileSize:           1 << 20,
			MaxConcurrent:         2,
			MaxWaitTime:           time.Second,
			MaxCorrectionAttempts: 3,
		},
		Rate: config.RateLimitConfig{Enabled: false},
	}
}

type testServer struct {
	*Server
	audit *core.MemoryAuditLog
	sink  *sink.MemorySink
}

func newTestServer(t *testing.T, cfg *config.Config) *testServer {
	t.Helper()
	tpl := schema.Default()
	audit := core.NewMemoryAuditLog()
	mem := sink.NewMemorySink()
	svc := core.NewService(cfg.Ingest, core.Dependencies{
		Validator: validation.NewValidator(tpl),
		Generator: correction.NewCachingGenerator(scriptcache.NewMemoryStore(), correction.NewRulePlanner(tpl)),
		Sink:      mem,
		Audit:     audit,
	})
	s := NewServer(cfg, svc, tpl, audit)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return &testServer{Server: s, audit: audit, sink: mem}
}

func uploadRequest(t *testing.T, files map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, content := range files {
		part, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/files", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func (s *testServer) upload(t *testing.T, name, content string) core.SessionView {
	t.Helper()
	rec := s.do(uploadRequest(t, map[string]string{name: content}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Files []UploadResult `json:"files"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Files, 1)
	require.NotNil(t, resp.Files[0].File)
	return *resp.Files[0].File
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := s.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	h := decode[HealthResponse](t, rec)
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, 0, h.Queue)
	assert.Equal(t, 2, h.Limiter.MaxConcurrent)
}

func TestTemplateEndpoint(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/template", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[map[string][]schema.Column](t, rec)
	names := make([]string, 0, len(body["columns"]))
	for _, c := range body["columns"] {
		names = append(names, c.Name)
	}
	assert.Equal(t, schema.Default().Names(), names)
}

func TestUploadValidThenInsert(t *testing.T) {
	s := newTestServer(t, testConfig())

	view := s.upload(t, "ok.csv", validCSV)
	assert.Equal(t, core.StatusReadyValid, view.Status)

	rec := s.do(httptest.NewRequest(http.MethodPost, "/api/files/"+view.ID+"/insert", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	done := decode[core.SessionView](t, rec)
	assert.Equal(t, core.StatusCompleted, done.Status)
	assert.Equal(t, 2, s.sink.Len())

	// a finished file cannot be inserted twice
	rec = s.do(httptest.NewRequest(http.MethodPost, "/api/files/"+view.ID+"/insert", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
	errResp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "UPL003", errResp.Code)
}

func TestUploadCorrectInsert(t *testing.T) {
	s := newTestServer(t, testConfig())

	view := s.upload(t, "messy.csv", messyCSV)
	require.Equal(t, core.StatusPendingCorrection, view.Status)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/files/"+view.ID+"/report", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.NotEmpty(t, rec.Body.String())

	rec = s.do(httptest.NewRequest(http.MethodPost, "/api/files/"+view.ID+"/correct", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	corrected := decode[core.SessionView](t, rec)
	assert.Equal(t, core.StatusReadyAI, corrected.Status)
	assert.Equal(t, core.SourceAI, corrected.Source)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/files/"+view.ID+"/preview?n=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	p := decode[core.Preview](t, rec)
	assert.Equal(t, 3, p.Rows)
	assert.Len(t, p.Head, 1)
	assert.InDelta(t, 1234.56+10+99.9, p.ValorTotal, 0.001)

	rec = s.do(httptest.NewRequest(http.MethodPost, "/api/files/"+view.ID+"/insert", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, core.StatusCompleted, decode[core.SessionView](t, rec).Status)
}

func TestUploadMultipleFiles(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := s.do(uploadRequest(t, map[string]string{
		"a.csv":     validCSV,
		"empty.csv": "",
	}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decode[map[string][]UploadResult](t, rec)
	require.Len(t, resp["files"], 2)
	for _, res := range resp["files"] {
		switch res.Filename {
		case "a.csv":
			require.NotNil(t, res.File)
			assert.Nil(t, res.Error)
		case "empty.csv":
			assert.Nil(t, res.File)
			require.NotNil(t, res.Error)
			assert.Equal(t, "FILE002", res.Error.Code)
		}
	}
}

func TestUploadErrors(t *testing.T) {
	t.Run("no file", func(t *testing.T) {
		s := newTestServer(t, testConfig())
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		require.NoError(t, mw.WriteField("note", "hi"))
		require.NoError(t, mw.Close())
		req := httptest.NewRequest(http.MethodPost, "/api/files", &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())

		rec := s.do(req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "FILE003", decode[ErrorResponse](t, rec).Code)
	})

	t.Run("too large", func(t *testing.T) {
		cfg := testConfig()
		cfg.Ingest.MaxFileSize = 16
		s := newTestServer(t, cfg)

		rec := s.do(uploadRequest(t, map[string]string{"big.csv": validCSV}))
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.Equal(t, "FILE001", decode[ErrorResponse](t, rec).Code)
	})
}

func TestUnknownFile(t *testing.T) {
	s := newTestServer(t, testConfig())

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/api/files/nope", nil),
		httptest.NewRequest(http.MethodGet, "/api/files/nope/report", nil),
		httptest.NewRequest(http.MethodPost, "/api/files/nope/correct", nil),
		httptest.NewRequest(http.MethodDelete, "/api/files/nope", nil),
	} {
		rec := s.do(req)
		assert.Equal(t, http.StatusNotFound, rec.Code, req.URL.Path)
		assert.Equal(t, "UPL001", decode[ErrorResponse](t, rec).Code)
	}
}

func TestSkipRemoveReset(t *testing.T) {
	s := newTestServer(t, testConfig())

	a := s.upload(t, "a.csv", messyCSV)
	b := s.upload(t, "b.csv", validCSV)

	rec := s.do(httptest.NewRequest(http.MethodPost, "/api/files/"+a.ID+"/skip", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, core.StatusManualFailure, decode[core.SessionView](t, rec).Status)

	rec = s.do(httptest.NewRequest(http.MethodDelete, "/api/files/"+a.ID, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/files", nil))
	list := decode[map[string][]core.SessionView](t, rec)
	require.Len(t, list["files"], 1)
	assert.Equal(t, b.ID, list["files"][0].ID)

	rec = s.do(httptest.NewRequest(http.MethodPost, "/api/queue/reset", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[map[string]int](t, rec)["removed"])
	assert.Equal(t, 0, s.service.Queue().Len())
}

func TestHTMXResponses(t *testing.T) {
	s := newTestServer(t, testConfig())
	view := s.upload(t, "ok.csv", validCSV)

	req := httptest.NewRequest(http.MethodGet, "/api/files/"+view.ID, nil)
	req.Header.Set("HX-Request", "true")
	rec := s.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), `id="file-`+view.ID+`"`)

	req = httptest.NewRequest(http.MethodGet, "/api/files/missing", nil)
	req.Header.Set("HX-Request", "true")
	rec = s.do(req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `class="alert alert-error"`)
	assert.Contains(t, rec.Body.String(), "UPL001")

	req = httptest.NewRequest(http.MethodGet, "/api/files", nil)
	req.Header.Set("HX-Request", "true")
	rec = s.do(req)
	assert.Contains(t, rec.Body.String(), `<table id="queue"`)
}

func TestAuditEndpoints(t *testing.T) {
	s := newTestServer(t, testConfig())

	ok := s.upload(t, "ok.csv", validCSV)
	s.do(httptest.NewRequest(http.MethodPost, "/api/files/"+ok.ID+"/insert", nil))
	messy := s.upload(t, "messy.csv", messyCSV)
	s.do(httptest.NewRequest(http.MethodPost, "/api/files/"+messy.ID+"/skip", nil))

	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/audit", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[map[string][]core.AuditRecord](t, rec)["records"], 2)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/audit?status=completed", nil))
	records := decode[map[string][]core.AuditRecord](t, rec)["records"]
	require.Len(t, records, 1)
	assert.Equal(t, "ok.csv", records[0].Filename)
	assert.Equal(t, 2, records[0].Inserted)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/audit/summary", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	sum := decode[core.AuditSummary](t, rec)
	assert.Equal(t, 2, sum.Files)
	assert.Equal(t, 1, sum.Completed)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/audit/export", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	assert.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "id,timestamp,file_hash"))
}

func TestAuditDisabled(t *testing.T) {
	cfg := testConfig()
	tpl := schema.Default()
	svc := core.NewService(cfg.Ingest, core.Dependencies{
		Validator: validation.NewValidator(tpl),
		Generator: correction.NewCachingGenerator(scriptcache.NewMemoryStore(), correction.NewRulePlanner(tpl)),
		Sink:      sink.NewMemorySink(),
	})
	s := &testServer{Server: NewServer(cfg, svc, tpl, nil)}

	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/audit", nil))
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestAPIKeyRequired(t *testing.T) {
	cfg := testConfig()
	cfg.Security = config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"secret"}}
	s := newTestServer(t, cfg)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/files", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/files", nil)
	req.Header.Set("X-API-Key", "wrong")
	assert.Equal(t, http.StatusForbidden, s.do(req).Code)

	req = httptest.NewRequest(http.MethodGet, "/api/files", nil)
	req.Header.Set("X-API-Key", "secret")
	assert.Equal(t, http.StatusOK, s.do(req).Code)

	// health stays open for probes
	assert.Equal(t, http.StatusOK, s.do(httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code)
}

func TestRateLimitedUploads(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 100, UploadLimit: 1}
	s := newTestServer(t, cfg)

	s.upload(t, "a.csv", validCSV)
	rec := s.do(uploadRequest(t, map[string]string{"b.csv": validCSV}))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// reads are on the general budget
	assert.Equal(t, http.StatusOK, s.do(httptest.NewRequest(http.MethodGet, "/api/files", nil)).Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{core.ErrSessionNotFound, http.StatusNotFound},
		{core.ErrInvalidTransition, http.StatusConflict},
		{core.ErrAttemptsExhausted, http.StatusConflict},
		{core.ErrTooManyFiles, http.StatusServiceUnavailable},
		{core.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
		{core.ErrEmptyFile, http.StatusBadRequest},
		{errNoFile, http.StatusBadRequest},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
