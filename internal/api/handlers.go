package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/modelstack/driftwatch/internal/engine"
	"github.com/modelstack/driftwatch/internal/models"
	"github.com/modelstack/driftwatch/internal/repo"
	"github.com/modelstack/driftwatch/internal/services"
	"github.com/modelstack/driftwatch/internal/utils"
)

// DriftRunner executes detection runs.
type DriftRunner interface {
	RunDetection(ctx context.Context, req models.RunRequest) (services.RunOutcome, error)
}

// ReportReader serves persisted report history.
type ReportReader interface {
	ListRecent(ctx context.Context, n int) ([]models.DriftReport, error)
}

// HistoryReader serves indexed report summaries from the history store.
type HistoryReader interface {
	RecentReports(ctx context.Context, n int) ([]repo.ReportSummary, error)
}

// Handler exposes the drift engine over HTTP JSON for the external scheduler
// and for dashboards.
type Handler struct {
	logger         *slog.Logger
	runner         DriftRunner
	reports        ReportReader
	history        HistoryReader
	trigger        *engine.Trigger
	defaultVersion string
	defaultWindow  time.Duration
}

// NewHandler constructs the HTTP handler set. history may be nil when the
// SQLite index is not configured.
func NewHandler(logger *slog.Logger, runner DriftRunner, reports ReportReader, history HistoryReader, trigger *engine.Trigger, defaultVersion string, defaultWindow time.Duration) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if trigger == nil {
		trigger = engine.NewTrigger(1, 1)
	}
	return &Handler{
		logger:         logger,
		runner:         runner,
		reports:        reports,
		history:        history,
		trigger:        trigger,
		defaultVersion: defaultVersion,
		defaultWindow:  defaultWindow,
	}
}

// Routes wires the handler's endpoints onto a fresh mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/drift/run", h.handleRun)
	mux.HandleFunc("/api/v1/drift/reports", h.handleReports)
	mux.HandleFunc("/api/v1/drift/history", h.handleHistory)
	mux.HandleFunc("/api/v1/drift/decision", h.handleDecision)
	mux.HandleFunc("/healthz", h.handleHealth)
	return mux
}

type runRequestBody struct {
	BaselineVersion string `json:"baseline_version"`
	Window          struct {
		Start string `json:"start"`
		End   string `json:"end"`
	} `json:"window"`
}

func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var body runRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	req := models.RunRequest{BaselineVersion: body.BaselineVersion}
	if req.BaselineVersion == "" {
		req.BaselineVersion = h.defaultVersion
	}
	if body.Window.Start != "" || body.Window.End != "" {
		start, err := utils.ParseRFC3339(body.Window.Start)
		if err != nil {
			writeError(w, http.StatusBadRequest, "window.start: "+err.Error())
			return
		}
		end, err := utils.ParseRFC3339(body.Window.End)
		if err != nil {
			writeError(w, http.StatusBadRequest, "window.end: "+err.Error())
			return
		}
		if !end.After(start) {
			writeError(w, http.StatusBadRequest, "window.end must be after window.start")
			return
		}
		req.Window = models.TimeRange{Start: start, End: end}
	} else {
		start, end := utils.TrailingWindow(h.defaultWindow)
		req.Window = models.TimeRange{Start: start, End: end}
	}

	outcome, err := h.runner.RunDetection(r.Context(), req)
	if err != nil {
		var mismatch *models.SchemaMismatchError
		var empty *models.EmptySampleError
		if errors.As(err, &mismatch) || errors.As(err, &empty) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		h.logger.Error("detection run failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "detection run failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, outcome)
}

func (h *Handler) handleReports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET required")
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	reports, err := h.reports.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("list reports failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to list reports")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": reports})
}

// handleHistory serves the SQLite-indexed summaries so dashboards can page run
// history without parsing the JSON artifact tree.
func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET required")
		return
	}
	if h.history == nil {
		writeError(w, http.StatusNotFound, "history index not enabled")
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	summaries, err := h.history.RecentReports(r.Context(), limit)
	if err != nil {
		h.logger.Error("history query failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to query history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": summaries})
}

func (h *Handler) handleDecision(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET required")
		return
	}

	reports, err := h.reports.ListRecent(r.Context(), h.trigger.Window())
	if err != nil {
		h.logger.Error("decision history fetch failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to read report history")
		return
	}
	writeJSON(w, http.StatusOK, h.trigger.Decide(reports))
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
