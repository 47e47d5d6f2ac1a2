package repo

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/modelstack/driftwatch/internal/models"
)

// HistoryStore indexes report summaries and emitted decisions in SQLite so
// dashboards can query run history without walking the artifact tree. The JSON
// artifacts stay the source of truth; this index is derived data.
type HistoryStore struct {
	db *sql.DB
}

// ReportSummary is the indexed view of one report, served to dashboards.
type ReportSummary struct {
	ID              string    `json:"id"`
	GeneratedAt     time.Time `json:"generated_at"`
	BaselineVersion string    `json:"baseline_version"`
	Evaluated       int       `json:"evaluated"`
	DriftedCount    int       `json:"drifted_count"`
	DriftedRatio    float64   `json:"drifted_ratio"`
	DriftDetected   bool      `json:"drift_detected"`
	Policy          string    `json:"policy"`
	Threshold       float64   `json:"threshold"`
	ArtifactPath    string    `json:"artifact_path"`
}

const historySchema = `
CREATE TABLE IF NOT EXISTS reports (
	id TEXT PRIMARY KEY,
	generated_at TIMESTAMP NOT NULL,
	baseline_version TEXT NOT NULL,
	evaluated INTEGER NOT NULL,
	drifted_count INTEGER NOT NULL,
	drifted_ratio REAL NOT NULL,
	drift_detected INTEGER NOT NULL,
	policy TEXT NOT NULL,
	threshold REAL NOT NULL,
	artifact_path TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reports_generated_at ON reports(generated_at);

CREATE TABLE IF NOT EXISTS decisions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	evaluated_at TIMESTAMP NOT NULL,
	should_retrain INTEGER NOT NULL,
	reason TEXT NOT NULL,
	report_ids TEXT NOT NULL
);
`

// OpenHistoryStore opens (or creates) the SQLite history database.
func OpenHistoryStore(path string) (*HistoryStore, error) {
	if path == "" {
		return nil, fmt.Errorf("history db path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	// SQLite allows a single writer; the engine is batch-invoked anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec(historySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply history schema: %w", err)
	}
	return &HistoryStore{db: db}, nil
}

// RecordReport stores the summary row for a persisted report.
func (h *HistoryStore) RecordReport(ctx context.Context, report models.DriftReport, artifactPath string) error {
	_, err := h.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO reports
		 (id, generated_at, baseline_version, evaluated, drifted_count, drifted_ratio, drift_detected, policy, threshold, artifact_path)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.ID,
		report.GeneratedAt.UTC(),
		report.BaselineVersion,
		len(report.Results),
		report.DriftedCount,
		report.DriftedRatio,
		report.DriftDetected,
		report.Policy,
		report.Threshold,
		artifactPath,
	)
	if err != nil {
		return fmt.Errorf("record report %s: %w", report.ID, err)
	}
	return nil
}

// RecordDecision appends an emitted retrain decision.
func (h *HistoryStore) RecordDecision(ctx context.Context, decision models.RetrainDecision) error {
	_, err := h.db.ExecContext(ctx,
		`INSERT INTO decisions (evaluated_at, should_retrain, reason, report_ids) VALUES (?, ?, ?, ?)`,
		decision.EvaluatedAt.UTC(),
		decision.ShouldRetrain,
		decision.Reason,
		strings.Join(decision.ReportIDs, ","),
	)
	if err != nil {
		return fmt.Errorf("record decision: %w", err)
	}
	return nil
}

// RecentReports returns up to n summaries ordered oldest to newest.
func (h *HistoryStore) RecentReports(ctx context.Context, n int) ([]ReportSummary, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := h.db.QueryContext(ctx,
		`SELECT id, generated_at, baseline_version, evaluated, drifted_count, drifted_ratio, drift_detected, policy, threshold, artifact_path
		 FROM reports ORDER BY generated_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query recent reports: %w", err)
	}
	defer rows.Close()

	var summaries []ReportSummary
	for rows.Next() {
		var s ReportSummary
		if err := rows.Scan(&s.ID, &s.GeneratedAt, &s.BaselineVersion, &s.Evaluated, &s.DriftedCount,
			&s.DriftedRatio, &s.DriftDetected, &s.Policy, &s.Threshold, &s.ArtifactPath); err != nil {
			return nil, fmt.Errorf("scan report summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Flip to oldest-first to match the trigger's input convention.
	for i, j := 0, len(summaries)-1; i < j; i, j = i+1, j-1 {
		summaries[i], summaries[j] = summaries[j], summaries[i]
	}
	return summaries, nil
}

// Close releases the underlying database handle.
func (h *HistoryStore) Close() error {
	return h.db.Close()
}
