package models

import "fmt"

// SchemaMismatchError indicates the supplied sample cannot be compared against the
// schema at all: a required feature is missing or structurally unusable. Fatal to
// the run, no report is produced.
type SchemaMismatchError struct {
	Feature string
	Detail  string
}

func (e *SchemaMismatchError) Error() string {
	if e.Feature == "" {
		return fmt.Sprintf("schema mismatch: %s", e.Detail)
	}
	return fmt.Sprintf("schema mismatch on feature %q: %s", e.Feature, e.Detail)
}

// EmptySampleError indicates a feature column carried zero usable observations
// after non-finite values were filtered out.
type EmptySampleError struct {
	Feature string
}

func (e *EmptySampleError) Error() string {
	return fmt.Sprintf("feature %q has no usable observations", e.Feature)
}

// InsufficientDataError indicates a sample is too small for the two-sample test to
// say anything trustworthy. Feature-local: the feature is skipped, the run continues.
type InsufficientDataError struct {
	Feature string
	Got     int
	Min     int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("feature %q has %d observations, need at least %d", e.Feature, e.Got, e.Min)
}

// PersistenceError indicates a fully computed report could not be written. The
// in-memory report remains valid and is returned to the caller.
type PersistenceError struct {
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist report to %s: %v", e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
