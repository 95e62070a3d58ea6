package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GitRadiation/template-filler/internal/domain"
	mockpub "github.com/GitRadiation/template-filler/internal/publisher/mock"
	"github.com/GitRadiation/template-filler/internal/registry"
	mockrepo "github.com/GitRadiation/template-filler/internal/repository/mock"
	mockstore "github.com/GitRadiation/template-filler/internal/storage/mock"
	"github.com/GitRadiation/template-filler/internal/usecase"
)

type testEnv struct {
	router *gin.Engine
	repo   *mockrepo.JobRepository
	pub    *mockpub.Publisher
	store  *mockstore.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg, err := registry.NewFromSources(map[domain.TemplateName]string{
		domain.TemplateContract:    `Contract: {{ party_a }} / {{ party_b }}`,
		domain.TemplateInvoice:     `Invoice {{ invoice_number }} for {{ customer }}`,
		domain.TemplateCertificate: `Certificate: {{ recipient }} / {{ course }}`,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	env := &testEnv{
		repo:  mockrepo.NewJobRepository(),
		pub:   mockpub.NewPublisher(),
		store: mockstore.NewStore(),
	}
	logger := zap.NewNop()

	env.router = NewRouter(&RouterDeps{
		SubmitUC:   usecase.NewSubmitJobUsecase(env.repo, reg, env.pub, logger),
		GetJobUC:   usecase.NewGetJobUsecase(env.repo, env.store, logger),
		ListJobsUC: usecase.NewListJobsUsecase(env.repo, logger),
		Registry:   reg,
		HealthChecks: map[string]Pinger{
			"postgres": func(ctx context.Context) error { return nil },
		},
		Logger:          logger,
		RateLimitPerMin: 1000,
		MaxBodyBytes:    1 << 20,
	})
	return env
}

func (e *testEnv) postJSON(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) get(path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestUpload_Created(t *testing.T) {
	env := newTestEnv(t)

	w := env.postJSON(t, "/api/v1/upload", map[string]any{
		"template_name": "contract",
		"data":          map[string]any{"party_a": "ACME", "party_b": "Jane"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp domain.SubmitResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if !resp.Success {
		t.Error("expected success true")
	}
	if resp.Status != domain.StatusPending {
		t.Errorf("expected pending, got %s", resp.Status)
	}
	if resp.JobID == uuid.Nil {
		t.Error("expected non-nil job id")
	}

	if len(env.pub.Published) != 1 {
		t.Errorf("expected 1 published task, got %d", len(env.pub.Published))
	}
}

func TestUpload_UnknownTemplate(t *testing.T) {
	env := newTestEnv(t)

	w := env.postJSON(t, "/api/v1/upload", map[string]any{
		"template_name": "resume",
		"data":          map[string]any{},
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestUpload_MalformedData(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload",
		bytes.NewReader([]byte(`{"template_name": "contract", "data": "not-an-object"}`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestUpload_BrokerDown(t *testing.T) {
	env := newTestEnv(t)
	env.pub.PublishFn = func(ctx context.Context, jobID uuid.UUID) error {
		return errors.New("connection refused")
	}

	w := env.postJSON(t, "/api/v1/upload", map[string]any{
		"template_name": "contract",
		"data":          map[string]any{"party_a": "ACME", "party_b": "Jane"},
	})
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}
}

func TestStatus_NotFound(t *testing.T) {
	env := newTestEnv(t)

	w := env.get("/api/v1/status/" + uuid.NewString())
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestStatus_InvalidID(t *testing.T) {
	env := newTestEnv(t)

	w := env.get("/api/v1/status/not-a-uuid")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestStatus_CompletedExposesDownloadURL(t *testing.T) {
	env := newTestEnv(t)
	id := uuid.New()
	ref := "generated/" + id.String() + ".pdf"
	env.repo.Put(&domain.Job{
		ID:           id,
		TemplateName: domain.TemplateContract,
		OutputFormat: domain.FormatPDF,
		Status:       domain.StatusCompleted,
		OutputRef:    &ref,
	})

	w := env.get("/api/v1/status/" + id.String())
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var view domain.JobView
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if view.Status != domain.StatusCompleted {
		t.Errorf("expected completed, got %s", view.Status)
	}
	if view.OutputURL == nil || *view.OutputURL != "/api/v1/download/"+id.String() {
		t.Errorf("unexpected output_url: %v", view.OutputURL)
	}
}

func TestStatus_PendingHidesDownloadURL(t *testing.T) {
	env := newTestEnv(t)
	id := uuid.New()
	env.repo.Put(&domain.Job{
		ID:           id,
		TemplateName: domain.TemplateContract,
		OutputFormat: domain.FormatPDF,
		Status:       domain.StatusPending,
	})

	w := env.get("/api/v1/status/" + id.String())
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var view domain.JobView
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if view.OutputURL != nil {
		t.Errorf("pending job must not expose a download url: %v", *view.OutputURL)
	}
}

func TestDownload_NotReady(t *testing.T) {
	env := newTestEnv(t)
	id := uuid.New()
	env.repo.Put(&domain.Job{
		ID:           id,
		TemplateName: domain.TemplateContract,
		OutputFormat: domain.FormatPDF,
		Status:       domain.StatusRunning,
	})

	w := env.get("/api/v1/download/" + id.String())
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", w.Code)
	}
}

func TestDownload_StreamsBytes(t *testing.T) {
	env := newTestEnv(t)
	id := uuid.New()
	ref := "generated/" + id.String() + ".pdf"
	if err := env.store.Put(context.Background(), ref, []byte("%PDF-1.7 doc"), "application/pdf"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	env.repo.Put(&domain.Job{
		ID:           id,
		TemplateName: domain.TemplateContract,
		OutputFormat: domain.FormatPDF,
		Status:       domain.StatusCompleted,
		OutputRef:    &ref,
	})

	w := env.get("/api/v1/download/" + id.String())
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("expected application/pdf, got %s", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); cd == "" {
		t.Error("expected Content-Disposition header")
	}
	if w.Body.String() != "%PDF-1.7 doc" {
		t.Errorf("unexpected body: %q", w.Body.String())
	}
}

func TestDownload_OutputGone(t *testing.T) {
	env := newTestEnv(t)
	id := uuid.New()
	ref := "generated/" + id.String() + ".pdf"
	env.repo.Put(&domain.Job{
		ID:           id,
		TemplateName: domain.TemplateContract,
		OutputFormat: domain.FormatPDF,
		Status:       domain.StatusCompleted,
		OutputRef:    &ref,
	})

	w := env.get("/api/v1/download/" + id.String())
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestListJobs_FilterAndCount(t *testing.T) {
	env := newTestEnv(t)
	env.repo.Put(&domain.Job{ID: uuid.New(), TemplateName: domain.TemplateContract, Status: domain.StatusPending})
	env.repo.Put(&domain.Job{ID: uuid.New(), TemplateName: domain.TemplateInvoice, Status: domain.StatusFailed})

	w := env.get("/api/v1/jobs?status=failed")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Count int              `json:"count"`
		Jobs  []domain.JobView `json:"jobs"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp.Count != 1 || len(resp.Jobs) != 1 {
		t.Fatalf("expected 1 job, got count=%d len=%d", resp.Count, len(resp.Jobs))
	}
	if resp.Jobs[0].Status != domain.StatusFailed {
		t.Errorf("filter leaked status %s", resp.Jobs[0].Status)
	}
}

func TestListJobs_InvalidStatus(t *testing.T) {
	env := newTestEnv(t)

	w := env.get("/api/v1/jobs?status=bogus")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestTemplates_ListsRegistry(t *testing.T) {
	env := newTestEnv(t)

	w := env.get("/api/v1/templates")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Templates []domain.TemplateInfo `json:"templates"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if len(resp.Templates) != 3 {
		t.Errorf("expected 3 templates, got %d", len(resp.Templates))
	}
}

func TestHealth_OK(t *testing.T) {
	env := newTestEnv(t)

	w := env.get("/api/v1/health")
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}
