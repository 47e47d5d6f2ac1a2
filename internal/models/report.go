package models

import "time"

// ReportSchemaVersion tags the persisted DriftReport encoding. Fields may be added
// under the same version; renames or removals require a version bump so dashboards
// and the decision trigger never silently break.
const ReportSchemaVersion = "driftwatch.report/v1"

// FeatureDriftResult is the outcome of one two-sample comparison. Immutable once
// produced; a fresh value is created on every run.
type FeatureDriftResult struct {
	Feature   string  `json:"feature"`
	NBaseline int     `json:"n_baseline"`
	NCurrent  int     `json:"n_current"`
	Statistic float64 `json:"statistic"`
	PValue    float64 `json:"p_value"`
	Drifted   bool    `json:"drifted"`
	Threshold float64 `json:"threshold"`
}

// SkippedFeature records a feature-local failure that did not abort the run.
type SkippedFeature struct {
	Feature string `json:"feature"`
	Reason  string `json:"reason"`
}

// DriftReport is the timestamped aggregate verdict of one run. Persisted as an
// immutable artifact, one per invocation, never overwritten.
type DriftReport struct {
	SchemaVersion   string               `json:"schema_version"`
	ID              string               `json:"id"`
	GeneratedAt     time.Time            `json:"generated_at"`
	BaselineVersion string               `json:"baseline_version"`
	Window          TimeRange            `json:"window"`
	Results         []FeatureDriftResult `json:"results"`
	Skipped         []SkippedFeature     `json:"skipped,omitempty"`
	DriftedCount    int                  `json:"drifted_count"`
	DriftedRatio    float64              `json:"drifted_ratio"`
	DriftDetected   bool                 `json:"drift_detected"`
	Policy          string               `json:"policy"`
	Threshold       float64              `json:"threshold"`
	FeatureSchema   string               `json:"feature_schema"`
}

// RetrainDecision is the trigger's verdict over recent report history. Transient:
// recomputed on each invocation, the persisted reports remain the source of truth.
type RetrainDecision struct {
	ShouldRetrain bool      `json:"should_retrain"`
	Reason        string    `json:"reason"`
	ReportIDs     []string  `json:"report_ids,omitempty"`
	EvaluatedAt   time.Time `json:"evaluated_at"`
}
