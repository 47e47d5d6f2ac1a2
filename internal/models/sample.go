package models

import "time"

// FeatureSample is an ordered collection of named numeric columns. Order carries the
// feature order used when the sample was assembled; Columns maps feature name to its
// observations. Samples are read-only once handed to the engine.
type FeatureSample struct {
	Order   []string             `json:"order"`
	Columns map[string][]float64 `json:"columns"`
}

// Column returns the observations for a feature, or nil when absent.
func (s FeatureSample) Column(name string) []float64 {
	if s.Columns == nil {
		return nil
	}
	return s.Columns[name]
}

// Has reports whether the sample carries the named feature.
func (s FeatureSample) Has(name string) bool {
	_, ok := s.Columns[name]
	return ok
}

// TimeRange bounds the collection window of a current sample.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// RunRequest identifies the inputs of one detection run.
type RunRequest struct {
	BaselineVersion string    `json:"baseline_version"`
	Window          TimeRange `json:"window"`
}
