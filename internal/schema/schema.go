package schema

import (
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/modelstack/driftwatch/internal/models"
)

// Feature declares one column of the canonical feature set. Comparable marks
// whether the feature participates in two-sample testing; one-hot indicator
// columns stay in the schema for completeness but are not compared.
type Feature struct {
	Name       string `yaml:"name"`
	Comparable bool   `yaml:"comparable"`
	Required   bool   `yaml:"required"`
}

// Schema is the agreed, ordered feature contract shared by the baseline and every
// current sample. It is a pure data contract: validation has no side effects.
type Schema struct {
	Version  string    `yaml:"version"`
	Features []Feature `yaml:"features"`
}

type schemaFile struct {
	Schema Schema `yaml:"schema"`
}

// Load reads a schema pack from the provided YAML path. An empty path or a missing
// file falls back to the built-in default schema.
func Load(path string) (*Schema, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read schema pack: %w", err)
	}
	var file schemaFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse schema pack: %w", err)
	}
	sch := file.Schema
	if len(sch.Features) == 0 {
		return nil, fmt.Errorf("schema pack %s declares no features", path)
	}
	if sch.Version == "" {
		sch.Version = "unversioned"
	}
	return &sch, nil
}

// Default returns the built-in transaction feature schema. Engineered one-hot
// columns are excluded from comparison: a continuous two-sample test is not
// meaningful for 0/1 indicators.
func Default() *Schema {
	return &Schema{
		Version: "fraud-tx/v1",
		Features: []Feature{
			{Name: "amount", Comparable: true, Required: true},
			{Name: "amount_log", Comparable: true},
			{Name: "hour_of_day", Comparable: true, Required: true},
			{Name: "hour_sin", Comparable: true},
			{Name: "hour_cos", Comparable: true},
			{Name: "day_of_week", Comparable: true},
			{Name: "customer_tenure_days", Comparable: true, Required: true},
			{Name: "avg_monthly_spend", Comparable: true, Required: true},
			{Name: "num_prev_tx_24h", Comparable: true},
			{Name: "cust_prev_amount_mean", Comparable: true},
			{Name: "country_us", Comparable: false},
			{Name: "country_ca", Comparable: false},
			{Name: "country_gb", Comparable: false},
			{Name: "country_in", Comparable: false},
		},
	}
}

// Comparable returns the ordered names of features that participate in testing.
func (s *Schema) Comparable() []string {
	names := make([]string, 0, len(s.Features))
	for _, f := range s.Features {
		if f.Comparable {
			names = append(names, f.Name)
		}
	}
	return names
}

// Validate checks a raw sample against the schema and returns a cleaned copy:
// feature order normalised to schema order, non-finite observations dropped.
// A missing required feature is a SchemaMismatchError. A sample whose comparable
// columns are all empty after filtering is an EmptySampleError; individually
// empty columns are left to the aggregator to record as skips.
func (s *Schema) Validate(sample models.FeatureSample) (models.FeatureSample, error) {
	if len(sample.Columns) == 0 {
		return models.FeatureSample{}, &models.SchemaMismatchError{Detail: "sample carries no columns"}
	}

	cleaned := models.FeatureSample{
		Order:   make([]string, 0, len(s.Features)),
		Columns: make(map[string][]float64, len(s.Features)),
	}

	usable := 0
	for _, f := range s.Features {
		col, ok := sample.Columns[f.Name]
		if !ok {
			if f.Required {
				return models.FeatureSample{}, &models.SchemaMismatchError{Feature: f.Name, Detail: "required feature absent"}
			}
			continue
		}
		filtered := dropNonFinite(col)
		cleaned.Order = append(cleaned.Order, f.Name)
		cleaned.Columns[f.Name] = filtered
		if f.Comparable && len(filtered) > 0 {
			usable++
		}
	}

	if usable == 0 {
		return models.FeatureSample{}, &models.EmptySampleError{Feature: firstComparable(s)}
	}
	return cleaned, nil
}

func dropNonFinite(col []float64) []float64 {
	filtered := make([]float64, 0, len(col))
	for _, v := range col {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		filtered = append(filtered, v)
	}
	return filtered
}

func firstComparable(s *Schema) string {
	for _, f := range s.Features {
		if f.Comparable {
			return f.Name
		}
	}
	return ""
}
