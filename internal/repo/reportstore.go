package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/modelstack/driftwatch/internal/models"
)

// FileReportStore persists each DriftReport as an immutable JSON artifact at
// <dir>/<baselineVersion>/report-<runID>.json. Artifacts are never overwritten:
// downstream consumers (dashboards, alerting) read them without coupling to the
// engine's internals.
type FileReportStore struct {
	dir string
}

// NewFileReportStore creates a store rooted at dir.
func NewFileReportStore(dir string) *FileReportStore {
	return &FileReportStore{dir: dir}
}

// Save writes the report artifact and returns its path. Failures are reported
// as PersistenceError; the caller still holds the computed report.
func (s *FileReportStore) Save(ctx context.Context, report models.DriftReport) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &models.PersistenceError{Path: s.dir, Err: err}
	}

	version := report.BaselineVersion
	if version == "" {
		version = "unversioned"
	}
	dir := filepath.Join(s.dir, version)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", &models.PersistenceError{Path: dir, Err: err}
	}

	path := filepath.Join(dir, fmt.Sprintf("report-%s.json", report.ID))
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", &models.PersistenceError{Path: path, Err: err}
	}

	// O_EXCL: a report artifact is written once, never replaced.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", &models.PersistenceError{Path: path, Err: err}
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return "", &models.PersistenceError{Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return "", &models.PersistenceError{Path: path, Err: err}
	}
	return path, nil
}

// ListRecent returns up to n reports ordered oldest to newest. A missing report
// directory is an empty history, not an error.
func (s *FileReportStore) ListRecent(ctx context.Context, n int) ([]models.DriftReport, error) {
	if n <= 0 {
		return nil, nil
	}

	var reports []models.DriftReport
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".json") {
			return nil
		}
		data, rerr := os.ReadFile(path)
		if rerr != nil {
			return rerr
		}
		var report models.DriftReport
		if uerr := json.Unmarshal(data, &report); uerr != nil {
			// Tolerate foreign files in the report tree.
			return nil
		}
		if report.ID == "" {
			return nil
		}
		reports = append(reports, report)
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan report dir %s: %w", s.dir, err)
	}

	sort.Slice(reports, func(i, j int) bool {
		return reports[i].GeneratedAt.Before(reports[j].GeneratedAt)
	})
	if len(reports) > n {
		reports = reports[len(reports)-n:]
	}
	return reports, nil
}
