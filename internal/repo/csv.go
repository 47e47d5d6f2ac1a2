package repo

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/modelstack/driftwatch/internal/models"
)

// LoadCSVSample reads the named numeric columns from a CSV extract with a header
// row. Missing or unparsable cells become NaN so schema validation drops them
// instead of the loader guessing at a fill value.
func LoadCSVSample(path string, features []string) (models.FeatureSample, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.FeatureSample{}, fmt.Errorf("open sample csv: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return models.FeatureSample{}, fmt.Errorf("read csv header: %w", err)
	}

	colIndex := make(map[string]int, len(header))
	for i, name := range header {
		colIndex[name] = i
	}

	sample := models.FeatureSample{Columns: make(map[string][]float64, len(features))}
	for _, name := range features {
		if _, ok := colIndex[name]; !ok {
			continue
		}
		sample.Order = append(sample.Order, name)
		sample.Columns[name] = nil
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return models.FeatureSample{}, fmt.Errorf("read csv row: %w", err)
		}
		for _, name := range sample.Order {
			idx := colIndex[name]
			value := math.NaN()
			if idx < len(record) {
				if parsed, perr := strconv.ParseFloat(record[idx], 64); perr == nil {
					value = parsed
				}
			}
			sample.Columns[name] = append(sample.Columns[name], value)
		}
	}
	return sample, nil
}

// CSVSampleSource adapts local CSV extracts to the sample-source contract used
// by the service, for one-shot batch invocations.
type CSVSampleSource struct {
	BaselinePath string
	CurrentPath  string
	Features     []string
}

// FetchBaseline loads the baseline extract; the version tag is carried by the
// caller, not encoded in the file.
func (s CSVSampleSource) FetchBaseline(_ context.Context, _ string) (models.FeatureSample, error) {
	return LoadCSVSample(s.BaselinePath, s.Features)
}

// FetchWindow loads the current extract; window bounds are advisory for files.
func (s CSVSampleSource) FetchWindow(_ context.Context, _, _ time.Time) (models.FeatureSample, error) {
	return LoadCSVSample(s.CurrentPath, s.Features)
}
