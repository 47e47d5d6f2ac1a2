package repo

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func writeCSV(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func TestLoadCSVSample(t *testing.T) {
	path := writeCSV(t, "extract.csv", "amount,hour_of_day,label\n10.5,3,fraud\n42,17,ok\n")

	sample, err := LoadCSVSample(path, []string{"amount", "hour_of_day", "absent"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff([]string{"amount", "hour_of_day"}, sample.Order); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{10.5, 42}, sample.Columns["amount"]); diff != "" {
		t.Fatalf("amount mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{3, 17}, sample.Columns["hour_of_day"]); diff != "" {
		t.Fatalf("hour_of_day mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadCSVSampleUnparsableCellBecomesNaN(t *testing.T) {
	path := writeCSV(t, "extract.csv", "amount\n10\nnot-a-number\n12\n")

	sample, err := LoadCSVSample(path, []string{"amount"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	col := sample.Columns["amount"]
	if len(col) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(col))
	}
	if !math.IsNaN(col[1]) {
		t.Fatalf("unparsable cell should be NaN, got %f", col[1])
	}
}

func TestLoadCSVSampleShortRow(t *testing.T) {
	path := writeCSV(t, "extract.csv", "amount,hour_of_day\n10,3\n11\n")

	sample, err := LoadCSVSample(path, []string{"hour_of_day"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	col := sample.Columns["hour_of_day"]
	if len(col) != 2 || !math.IsNaN(col[1]) {
		t.Fatalf("missing cell should be NaN, got %v", col)
	}
}

func TestLoadCSVSampleMissingFile(t *testing.T) {
	if _, err := LoadCSVSample(filepath.Join(t.TempDir(), "absent.csv"), []string{"amount"}); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestCSVSampleSource(t *testing.T) {
	baseline := writeCSV(t, "baseline.csv", "amount\n10\n11\n")
	current := writeCSV(t, "current.csv", "amount\n500\n510\n")

	source := CSVSampleSource{
		BaselinePath: baseline,
		CurrentPath:  current,
		Features:     []string{"amount"},
	}

	got, err := source.FetchBaseline(context.Background(), "baseline-v1")
	if err != nil {
		t.Fatalf("fetch baseline: %v", err)
	}
	if diff := cmp.Diff([]float64{10, 11}, got.Columns["amount"]); diff != "" {
		t.Fatalf("baseline mismatch (-want +got):\n%s", diff)
	}

	got, err = source.FetchWindow(context.Background(), time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("fetch window: %v", err)
	}
	if diff := cmp.Diff([]float64{500, 510}, got.Columns["amount"]); diff != "" {
		t.Fatalf("window mismatch (-want +got):\n%s", diff)
	}
}
