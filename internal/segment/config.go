// Package segment implements the customer segmentation workflow: feature
// catalog, algorithm configuration, the primary clustering request, the
// workflow status machine, the dependent boxplot fetch, and projection of
// all of it into a display model.
//
// Controller owns every piece of mutable state. Callers dispatch actions on
// it and receive request descriptors back; they perform the I/O (usually via
// Dispatcher) and feed outcomes back in. Controller itself never blocks.
package segment

import (
	"fmt"
	"strings"
)

// Algorithm selects the clustering method.
type Algorithm string

const (
	KMeans Algorithm = "kmeans"
	DBSCAN Algorithm = "dbscan"
)

// Algorithms lists the supported algorithms in display order.
var Algorithms = []Algorithm{KMeans, DBSCAN}

// Label is the human name of the algorithm.
func (a Algorithm) Label() string {
	switch a {
	case KMeans:
		return "K-Means Clustering"
	case DBSCAN:
		return "DBSCAN Clustering"
	}
	return string(a)
}

// ParseAlgorithm accepts "kmeans" or "dbscan" (case-insensitive).
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(strings.ToLower(strings.TrimSpace(s))) {
	case KMeans:
		return KMeans, nil
	case DBSCAN:
		return DBSCAN, nil
	}
	return "", fmt.Errorf("unknown algorithm %q (want kmeans or dbscan)", s)
}

// Parameter bounds, inclusive.
const (
	MinFeatures   = 2
	MinClusters   = 2
	MaxClusters   = 10
	MinEps        = 0.1
	MaxEps        = 2.0
	MinMinSamples = 2
	MaxMinSamples = 20
)

// Defaults for a fresh form.
const (
	DefaultNClusters  = 3
	DefaultEps        = 0.5
	DefaultMinSamples = 5
)

// KMeansParams is the K-Means variant of the parameter union.
type KMeansParams struct {
	NClusters int
}

// DBSCANParams is the DBSCAN variant of the parameter union.
type DBSCANParams struct {
	Eps        float64
	MinSamples int
}

// AlgorithmConfig is the user's form state. Both parameter variants are
// retained so switching algorithms back and forth keeps typed values, but
// only the one selected by Algorithm is ever validated or sent.
type AlgorithmConfig struct {
	Algorithm Algorithm
	KMeans    KMeansParams
	DBSCAN    DBSCANParams
	Features  Selection
}

// DefaultConfig returns the initial form state.
func DefaultConfig() AlgorithmConfig {
	return AlgorithmConfig{
		Algorithm: KMeans,
		KMeans:    KMeansParams{NClusters: DefaultNClusters},
		DBSCAN:    DBSCANParams{Eps: DefaultEps, MinSamples: DefaultMinSamples},
	}
}

// ValidationError is a client-side rejection of a submit. No request is sent.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validate checks the config is submittable.
func (c AlgorithmConfig) Validate() error {
	if c.Features.Len() < MinFeatures {
		return &ValidationError{Field: "features", Message: "Please select at least 2 features for clustering."}
	}
	switch c.Algorithm {
	case KMeans:
		if n := c.KMeans.NClusters; n < MinClusters || n > MaxClusters {
			return &ValidationError{Field: "n_clusters", Message: fmt.Sprintf("Number of clusters must be between %d and %d.", MinClusters, MaxClusters)}
		}
	case DBSCAN:
		// Small tolerance so 0.1 stepped up from 0.0 in float still passes.
		if e := c.DBSCAN.Eps; e < MinEps-1e-9 || e > MaxEps+1e-9 {
			return &ValidationError{Field: "eps", Message: fmt.Sprintf("Epsilon must be between %.1f and %.1f.", MinEps, MaxEps)}
		}
		if m := c.DBSCAN.MinSamples; m < MinMinSamples || m > MaxMinSamples {
			return &ValidationError{Field: "min_samples", Message: fmt.Sprintf("Min samples must be between %d and %d.", MinMinSamples, MaxMinSamples)}
		}
	default:
		return &ValidationError{Field: "algorithm", Message: fmt.Sprintf("Unknown algorithm %q.", c.Algorithm)}
	}
	return nil
}

// Selection is an insertion-ordered set of feature values.
// The zero value is empty and ready to use. Methods never mutate the
// receiver; they return a new Selection.
type Selection struct {
	values []string
}

// NewSelection builds a selection, dropping duplicates and empty values.
func NewSelection(values ...string) Selection {
	var s Selection
	for _, v := range values {
		s = s.With(v)
	}
	return s
}

// Values returns the selection in insertion order.
func (s Selection) Values() []string {
	out := make([]string, len(s.values))
	copy(out, s.values)
	return out
}

// Len returns the number of selected values.
func (s Selection) Len() int {
	return len(s.values)
}

// Contains reports whether v is selected.
func (s Selection) Contains(v string) bool {
	for _, x := range s.values {
		if x == v {
			return true
		}
	}
	return false
}

// With returns s plus v appended (no-op if present).
func (s Selection) With(v string) Selection {
	if v == "" || s.Contains(v) {
		return s
	}
	values := make([]string, len(s.values), len(s.values)+1)
	copy(values, s.values)
	return Selection{values: append(values, v)}
}

// Without returns s minus v.
func (s Selection) Without(v string) Selection {
	values := make([]string, 0, len(s.values))
	for _, x := range s.values {
		if x != v {
			values = append(values, x)
		}
	}
	return Selection{values: values}
}

// Toggle adds v if absent, removes it if present.
func (s Selection) Toggle(v string) Selection {
	if s.Contains(v) {
		return s.Without(v)
	}
	return s.With(v)
}

// Equal compares order and content.
func (s Selection) Equal(o Selection) bool {
	if len(s.values) != len(o.values) {
		return false
	}
	for i := range s.values {
		if s.values[i] != o.values[i] {
			return false
		}
	}
	return true
}

// String joins the values for display.
func (s Selection) String() string {
	return strings.Join(s.values, ", ")
}
