package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/modelstack/driftwatch/internal/engine"
	"github.com/modelstack/driftwatch/internal/metrics"
	"github.com/modelstack/driftwatch/internal/models"
	"github.com/modelstack/driftwatch/internal/utils"
)

// SampleSource supplies the baseline and current samples for a run.
type SampleSource interface {
	FetchBaseline(ctx context.Context, version string) (models.FeatureSample, error)
	FetchWindow(ctx context.Context, start, end time.Time) (models.FeatureSample, error)
}

// ReportStore persists report artifacts and serves recent history.
type ReportStore interface {
	Save(ctx context.Context, report models.DriftReport) (string, error)
	ListRecent(ctx context.Context, n int) ([]models.DriftReport, error)
}

// HistoryRecorder indexes reports and decisions for dashboards. Optional.
type HistoryRecorder interface {
	RecordReport(ctx context.Context, report models.DriftReport, artifactPath string) error
	RecordDecision(ctx context.Context, decision models.RetrainDecision) error
}

// DriftService orchestrates one detection run end to end: fetch samples, detect,
// persist, decide. It is the single entry point for both the HTTP API and the
// one-shot batch mode.
type DriftService struct {
	logger    *slog.Logger
	source    SampleSource
	detector  *engine.Detector
	trigger   *engine.Trigger
	store     ReportStore
	history   HistoryRecorder
	latencies *utils.LatencyTracker
}

// RunOutcome is the caller-facing result of one run. Degraded marks a run whose
// report was computed but could not be persisted; the report is still attached.
type RunOutcome struct {
	Report       models.DriftReport     `json:"report"`
	Decision     models.RetrainDecision `json:"decision"`
	ArtifactPath string                 `json:"artifact_path,omitempty"`
	Degraded     bool                   `json:"degraded"`
}

// NewDriftService constructs the service facade.
func NewDriftService(logger *slog.Logger, source SampleSource, detector *engine.Detector, trigger *engine.Trigger, store ReportStore, history HistoryRecorder) *DriftService {
	if logger == nil {
		logger = slog.Default()
	}
	if trigger == nil {
		trigger = engine.NewTrigger(1, 1)
	}
	return &DriftService{
		logger:    logger,
		source:    source,
		detector:  detector,
		trigger:   trigger,
		store:     store,
		history:   history,
		latencies: utils.NewLatencyTracker(1024),
	}
}

// Trigger exposes the configured trigger for read-only decision queries.
func (s *DriftService) Trigger() *engine.Trigger { return s.trigger }

// RunDetection executes one full comparison run. Fetch and schema failures abort
// the run with an error and no report; persistence failures degrade the run but
// never discard the computed report.
func (s *DriftService) RunDetection(ctx context.Context, req models.RunRequest) (RunOutcome, error) {
	if s.source == nil || s.detector == nil || s.store == nil {
		return RunOutcome{}, fmt.Errorf("drift service not fully configured")
	}

	start := time.Now()
	outcome, err := s.run(ctx, req)
	duration := time.Since(start)

	switch {
	case err != nil:
		metrics.ObserveRun(duration, metrics.OutcomeError)
		return RunOutcome{}, err
	case outcome.Degraded:
		metrics.ObserveRun(duration, metrics.OutcomeDegraded)
	default:
		metrics.ObserveRun(duration, metrics.OutcomeSuccess)
	}

	s.latencies.Observe(duration)
	if count := s.latencies.Count(); count >= 20 && count%20 == 0 {
		s.logger.Info("detection latency", slog.Duration("p95", s.latencies.Percentile(95)), slog.Int("samples", count))
	}
	return outcome, nil
}

func (s *DriftService) run(ctx context.Context, req models.RunRequest) (RunOutcome, error) {
	baseline, err := s.source.FetchBaseline(ctx, req.BaselineVersion)
	if err != nil {
		return RunOutcome{}, fmt.Errorf("baseline fetch: %w", err)
	}
	current, err := s.source.FetchWindow(ctx, req.Window.Start, req.Window.End)
	if err != nil {
		return RunOutcome{}, fmt.Errorf("current sample fetch: %w", err)
	}

	report, err := s.detector.Run(ctx, baseline, current, req)
	if err != nil {
		return RunOutcome{}, err
	}
	metrics.RecordReport(report.DriftedCount, report.DriftedRatio)

	outcome := RunOutcome{Report: report}
	artifactPath, err := s.store.Save(ctx, report)
	if err != nil {
		var persistence *models.PersistenceError
		if !errors.As(err, &persistence) {
			persistence = &models.PersistenceError{Err: err}
		}
		s.logger.Warn("report not persisted, continuing degraded", slog.Any("error", persistence))
		outcome.Degraded = true
	} else {
		outcome.ArtifactPath = artifactPath
		if s.history != nil {
			if herr := s.history.RecordReport(ctx, report, artifactPath); herr != nil {
				s.logger.Warn("history index update failed", slog.Any("error", herr))
			}
		}
	}

	outcome.Decision = s.decide(ctx, report, outcome.Degraded)
	metrics.RecordDecision(outcome.Decision.ShouldRetrain)
	if s.history != nil && !outcome.Degraded {
		if herr := s.history.RecordDecision(ctx, outcome.Decision); herr != nil {
			s.logger.Warn("decision index update failed", slog.Any("error", herr))
		}
	}

	s.logger.Info("detection run finished",
		slog.String("report_id", report.ID),
		slog.Bool("drift_detected", report.DriftDetected),
		slog.Bool("should_retrain", outcome.Decision.ShouldRetrain),
		slog.Bool("degraded", outcome.Degraded),
	)
	return outcome, nil
}

// decide evaluates the trigger over persisted history. When the fresh report
// did not make it to the store it is appended in memory so the decision still
// reflects this run.
func (s *DriftService) decide(ctx context.Context, report models.DriftReport, degraded bool) models.RetrainDecision {
	recent, err := s.store.ListRecent(ctx, s.trigger.Window())
	if err != nil {
		s.logger.Warn("report history unavailable, deciding on current report only", slog.Any("error", err))
		recent = nil
	}
	if degraded || !containsReport(recent, report.ID) {
		recent = append(recent, report)
		if len(recent) > s.trigger.Window() {
			recent = recent[len(recent)-s.trigger.Window():]
		}
	}
	return s.trigger.Decide(recent)
}

func containsReport(reports []models.DriftReport, id string) bool {
	for _, r := range reports {
		if r.ID == id {
			return true
		}
	}
	return false
}
