package engine

import (
	"fmt"

	"github.com/modelstack/driftwatch/internal/models"
)

// AggregationPolicy turns per-feature results into the report-level verdict.
// Exactly one policy is active per run and its name is recorded in the report
// metadata for auditability.
type AggregationPolicy interface {
	Name() string
	Evaluate(results []models.FeatureDriftResult) bool
}

// MinCountPolicy flags the report when at least MinDrifted features drifted.
// The default of one is deliberately eager: any single feature crossing the
// significance threshold trips the overall flag.
type MinCountPolicy struct {
	MinDrifted int
}

func (p MinCountPolicy) Name() string {
	return fmt.Sprintf("min-count:%d", p.minDrifted())
}

func (p MinCountPolicy) Evaluate(results []models.FeatureDriftResult) bool {
	drifted := 0
	for _, r := range results {
		if r.Drifted {
			drifted++
		}
	}
	return drifted >= p.minDrifted()
}

func (p MinCountPolicy) minDrifted() int {
	if p.MinDrifted < 1 {
		return 1
	}
	return p.MinDrifted
}

// MajorityPolicy flags the report when more than half of the evaluated features
// drifted. Stricter than MinCountPolicy; useful for noisy feature sets.
type MajorityPolicy struct{}

func (MajorityPolicy) Name() string { return "majority" }

func (MajorityPolicy) Evaluate(results []models.FeatureDriftResult) bool {
	if len(results) == 0 {
		return false
	}
	drifted := 0
	for _, r := range results {
		if r.Drifted {
			drifted++
		}
	}
	return drifted*2 > len(results)
}

// PolicyFromName resolves a configured policy name. Unknown names fall back to
// the eager min-count default.
func PolicyFromName(name string, minDrifted int) AggregationPolicy {
	switch name {
	case "majority":
		return MajorityPolicy{}
	default:
		return MinCountPolicy{MinDrifted: minDrifted}
	}
}
