package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/modelstack/driftwatch/internal/engine"
	"github.com/modelstack/driftwatch/internal/models"
	"github.com/modelstack/driftwatch/internal/repo"
	"github.com/modelstack/driftwatch/internal/services"
)

type stubRunner struct {
	lastReq models.RunRequest
	outcome services.RunOutcome
	err     error
}

func (s *stubRunner) RunDetection(_ context.Context, req models.RunRequest) (services.RunOutcome, error) {
	s.lastReq = req
	if s.err != nil {
		return services.RunOutcome{}, s.err
	}
	return s.outcome, nil
}

type stubReports struct {
	reports []models.DriftReport
	err     error
}

func (s *stubReports) ListRecent(context.Context, int) ([]models.DriftReport, error) {
	return s.reports, s.err
}

type stubHistory struct {
	summaries []repo.ReportSummary
	err       error
}

func (s *stubHistory) RecentReports(context.Context, int) ([]repo.ReportSummary, error) {
	return s.summaries, s.err
}

func testHandler(runner *stubRunner, reports *stubReports, trigger *engine.Trigger) *Handler {
	return NewHandler(nil, runner, reports, nil, trigger, "baseline-v1", 24*time.Hour)
}

func TestHandleRun(t *testing.T) {
	runner := &stubRunner{outcome: services.RunOutcome{
		Report:   models.DriftReport{ID: "run-1", DriftDetected: true},
		Decision: models.RetrainDecision{ShouldRetrain: true, Reason: "drift detected in 1 of last 1 runs (required 1)"},
	}}
	h := testHandler(runner, &stubReports{}, nil)

	body := `{"baseline_version":"baseline-v2","window":{"start":"2025-06-01T00:00:00Z","end":"2025-06-02T00:00:00Z"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/drift/run", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var outcome services.RunOutcome
	if err := json.Unmarshal(rec.Body.Bytes(), &outcome); err != nil {
		t.Fatalf("decode outcome: %v", err)
	}
	if outcome.Report.ID != "run-1" || !outcome.Decision.ShouldRetrain {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if runner.lastReq.BaselineVersion != "baseline-v2" {
		t.Fatalf("baseline version not forwarded: %q", runner.lastReq.BaselineVersion)
	}
	if !runner.lastReq.Window.End.After(runner.lastReq.Window.Start) {
		t.Fatalf("window not forwarded: %+v", runner.lastReq.Window)
	}
}

func TestHandleRunAppliesDefaults(t *testing.T) {
	runner := &stubRunner{}
	h := testHandler(runner, &stubReports{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/drift/run", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if runner.lastReq.BaselineVersion != "baseline-v1" {
		t.Fatalf("default version not applied: %q", runner.lastReq.BaselineVersion)
	}
	span := runner.lastReq.Window.End.Sub(runner.lastReq.Window.Start)
	if span != 24*time.Hour {
		t.Fatalf("default trailing window not applied: %v", span)
	}
}

func TestHandleRunBadRequests(t *testing.T) {
	h := testHandler(&stubRunner{}, &stubReports{}, nil)

	cases := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"bad timestamp", `{"window":{"start":"yesterday","end":"2025-06-02T00:00:00Z"}}`},
		{"inverted window", `{"window":{"start":"2025-06-02T00:00:00Z","end":"2025-06-01T00:00:00Z"}}`},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/drift/run", strings.NewReader(tc.body))
		rec := httptest.NewRecorder()
		h.Routes().ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", tc.name, rec.Code)
		}
	}
}

func TestHandleRunSchemaMismatchIsUnprocessable(t *testing.T) {
	runner := &stubRunner{err: &models.SchemaMismatchError{Feature: "amount", Detail: "required feature absent"}}
	h := testHandler(runner, &stubReports{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/drift/run", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestHandleRunMethodNotAllowed(t *testing.T) {
	h := testHandler(&stubRunner{}, &stubReports{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/drift/run", nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestHandleReports(t *testing.T) {
	reports := &stubReports{reports: []models.DriftReport{{ID: "run-1"}, {ID: "run-2"}}}
	h := testHandler(&stubRunner{}, reports, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/drift/reports?limit=2", nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var payload struct {
		Reports []models.DriftReport `json:"reports"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.Reports) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(payload.Reports))
	}
}

func TestHandleReportsRejectsBadLimit(t *testing.T) {
	h := testHandler(&stubRunner{}, &stubReports{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/drift/reports?limit=zero", nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleHistory(t *testing.T) {
	history := &stubHistory{summaries: []repo.ReportSummary{
		{ID: "run-1", DriftDetected: true, DriftedCount: 2, Policy: "min-count:1"},
		{ID: "run-2"},
	}}
	h := NewHandler(nil, &stubRunner{}, &stubReports{}, history, nil, "baseline-v1", 24*time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/drift/history?limit=5", nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var payload struct {
		History []repo.ReportSummary `json:"history"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.History) != 2 || payload.History[0].ID != "run-1" {
		t.Fatalf("unexpected history payload: %+v", payload.History)
	}
	if !payload.History[0].DriftDetected || payload.History[0].DriftedCount != 2 {
		t.Fatalf("summary fields lost in encoding: %+v", payload.History[0])
	}
}

func TestHandleHistoryWithoutIndex(t *testing.T) {
	h := testHandler(&stubRunner{}, &stubReports{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/drift/history", nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 with no history index, got %d", rec.Code)
	}
}

func TestHandleDecision(t *testing.T) {
	reports := &stubReports{reports: []models.DriftReport{
		{ID: "run-1", DriftDetected: true},
		{ID: "run-2", DriftDetected: true},
	}}
	h := testHandler(&stubRunner{}, reports, engine.NewTrigger(3, 2))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/drift/decision", nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var decision models.RetrainDecision
	if err := json.Unmarshal(rec.Body.Bytes(), &decision); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !decision.ShouldRetrain || len(decision.ReportIDs) != 2 {
		t.Fatalf("unexpected decision: %+v", decision)
	}
}

func TestHandleHealth(t *testing.T) {
	h := testHandler(&stubRunner{}, &stubReports{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
