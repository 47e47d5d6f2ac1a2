package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/modelstack/driftwatch/internal/models"
	"github.com/modelstack/driftwatch/internal/schema"
	"github.com/modelstack/driftwatch/internal/stats"
)

// Comparator quantifies how different two one-dimensional samples of the same
// feature are.
type Comparator interface {
	Compare(feature string, baseline, current []float64) (stats.KSResult, error)
}

// Config carries the detection knobs. Every run is reproducible from its inputs
// and this configuration; there is no global state.
type Config struct {
	// SignificanceThreshold is the p-value below which a feature counts as
	// drifted. The 0.1 default is more permissive than the conventional 0.05
	// to catch drift earlier, at the cost of more false positives.
	SignificanceThreshold float64
	MinSamplesPerFeature  int
	// MaxParallel bounds concurrent per-feature comparisons.
	MaxParallel int
}

func (c Config) withDefaults() Config {
	if c.SignificanceThreshold <= 0 || c.SignificanceThreshold >= 1 {
		c.SignificanceThreshold = 0.1
	}
	if c.MinSamplesPerFeature < 2 {
		c.MinSamplesPerFeature = 2
	}
	if c.MaxParallel < 1 {
		c.MaxParallel = 4
	}
	return c
}

// Detector runs the per-feature comparison loop and aggregates one verdict.
type Detector struct {
	logger     *slog.Logger
	schema     *schema.Schema
	comparator Comparator
	policy     AggregationPolicy
	cfg        Config
}

// NewDetector constructs a detector. Nil collaborators fall back to defaults:
// the built-in schema, a KS comparator, and the eager min-count policy.
func NewDetector(logger *slog.Logger, sch *schema.Schema, comparator Comparator, policy AggregationPolicy, cfg Config) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	if sch == nil {
		sch = schema.Default()
	}
	cfg = cfg.withDefaults()
	if comparator == nil {
		comparator = stats.NewComparator(cfg.MinSamplesPerFeature)
	}
	if policy == nil {
		policy = MinCountPolicy{MinDrifted: 1}
	}
	return &Detector{
		logger:     logger,
		schema:     sch,
		comparator: comparator,
		policy:     policy,
		cfg:        cfg,
	}
}

type featureOutcome struct {
	result  *models.FeatureDriftResult
	skipped *models.SkippedFeature
}

// Run compares the current sample against the baseline feature by feature and
// returns the aggregate report. Schema-level failures abort before any
// comparison; feature-local failures become skipped-feature notes. An aborted
// run (context cancelled mid-flight) produces no report.
func (d *Detector) Run(ctx context.Context, baseline, current models.FeatureSample, req models.RunRequest) (models.DriftReport, error) {
	cleanBaseline, err := d.schema.Validate(baseline)
	if err != nil {
		return models.DriftReport{}, fmt.Errorf("baseline sample: %w", err)
	}
	cleanCurrent, err := d.schema.Validate(current)
	if err != nil {
		return models.DriftReport{}, fmt.Errorf("current sample: %w", err)
	}

	features := d.schema.Comparable()
	outcomes := make([]featureOutcome, len(features))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.MaxParallel)
	for idx, name := range features {
		idx, name := idx, name
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[idx] = d.compareFeature(name, cleanBaseline.Column(name), cleanCurrent.Column(name))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return models.DriftReport{}, fmt.Errorf("run aborted: %w", err)
	}

	results := make([]models.FeatureDriftResult, 0, len(features))
	skipped := make([]models.SkippedFeature, 0)
	drifted := 0
	for _, out := range outcomes {
		if out.skipped != nil {
			skipped = append(skipped, *out.skipped)
			continue
		}
		if out.result == nil {
			continue
		}
		results = append(results, *out.result)
		if out.result.Drifted {
			drifted++
		}
	}

	ratio := 0.0
	if len(results) > 0 {
		ratio = float64(drifted) / float64(len(results))
	}

	now := time.Now().UTC()
	report := models.DriftReport{
		SchemaVersion:   models.ReportSchemaVersion,
		ID:              fmt.Sprintf("run-%d", now.UnixNano()),
		GeneratedAt:     now,
		BaselineVersion: req.BaselineVersion,
		Window:          req.Window,
		Results:         results,
		Skipped:         skipped,
		DriftedCount:    drifted,
		DriftedRatio:    ratio,
		DriftDetected:   d.policy.Evaluate(results),
		Policy:          d.policy.Name(),
		Threshold:       d.cfg.SignificanceThreshold,
		FeatureSchema:   d.schema.Version,
	}

	for _, skip := range report.Skipped {
		d.logger.Debug("feature skipped", slog.String("feature", skip.Feature), slog.String("reason", skip.Reason))
	}
	d.logger.Info("drift run complete",
		slog.String("report_id", report.ID),
		slog.Int("evaluated", len(results)),
		slog.Int("drifted", drifted),
		slog.Bool("drift_detected", report.DriftDetected),
	)
	return report, nil
}

func (d *Detector) compareFeature(name string, baseline, current []float64) featureOutcome {
	res, err := d.comparator.Compare(name, baseline, current)
	if err != nil {
		// Feature-local failure: partial results beat no results.
		return featureOutcome{skipped: &models.SkippedFeature{Feature: name, Reason: err.Error()}}
	}
	return featureOutcome{result: &models.FeatureDriftResult{
		Feature:   name,
		NBaseline: res.NBaseline,
		NCurrent:  res.NCurrent,
		Statistic: res.Statistic,
		PValue:    res.PValue,
		Drifted:   res.PValue < d.cfg.SignificanceThreshold,
		Threshold: d.cfg.SignificanceThreshold,
	}}
}
