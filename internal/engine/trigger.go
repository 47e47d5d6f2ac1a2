package engine

import (
	"fmt"
	"time"

	"github.com/modelstack/driftwatch/internal/models"
)

// Trigger converts recent report history into a retraining signal. It is a pure,
// side-effect-free query: the same report sequence always yields the same
// decision, and the absence of reports is not a failure condition.
type Trigger struct {
	window       int
	requiredHits int
}

// NewTrigger builds a trigger requiring drift in at least requiredHits of the
// last window reports. The 1-of-1 default preserves the simple behaviour of
// acting on the most recent report alone; larger windows add hysteresis against
// single noisy runs.
func NewTrigger(window, requiredHits int) *Trigger {
	if window < 1 {
		window = 1
	}
	if requiredHits < 1 {
		requiredHits = 1
	}
	if requiredHits > window {
		requiredHits = window
	}
	return &Trigger{window: window, requiredHits: requiredHits}
}

// Window returns the number of trailing reports the trigger inspects.
func (t *Trigger) Window() int { return t.window }

// Decide evaluates the trailing reports, ordered oldest to newest.
func (t *Trigger) Decide(reports []models.DriftReport) models.RetrainDecision {
	now := time.Now().UTC()
	if len(reports) == 0 {
		return models.RetrainDecision{
			ShouldRetrain: false,
			Reason:        "no data",
			EvaluatedAt:   now,
		}
	}

	tail := reports
	if len(tail) > t.window {
		tail = tail[len(tail)-t.window:]
	}

	hits := 0
	var driftedIDs []string
	for _, report := range tail {
		if report.DriftDetected {
			hits++
			driftedIDs = append(driftedIDs, report.ID)
		}
	}

	if hits >= t.requiredHits {
		return models.RetrainDecision{
			ShouldRetrain: true,
			Reason:        fmt.Sprintf("drift detected in %d of last %d runs (required %d)", hits, len(tail), t.requiredHits),
			ReportIDs:     driftedIDs,
			EvaluatedAt:   now,
		}
	}
	return models.RetrainDecision{
		ShouldRetrain: false,
		Reason:        fmt.Sprintf("drift detected in %d of last %d runs, below required %d", hits, len(tail), t.requiredHits),
		ReportIDs:     driftedIDs,
		EvaluatedAt:   now,
	}
}
