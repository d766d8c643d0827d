package distance

import (
	"fmt"
	"math"
	"slices"
)

// Dot calculates the dot product of two vectors.
// Assumes vectors are the same length (caller's responsibility).
func Dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// SquaredL2 calculates the squared L2 (Euclidean) distance between two vectors.
// Assumes vectors are the same length (caller's responsibility).
func SquaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// NormalizeL2InPlace L2-normalizes v in place.
// Returns false if v has zero L2 norm.
func NormalizeL2InPlace(v []float32) bool {
	if len(v) == 0 {
		return false
	}
	norm2 := Dot(v, v)
	if norm2 == 0 {
		return false
	}
	inv := 1 / float32(math.Sqrt(float64(norm2)))
	for i := range v {
		v[i] *= inv
	}
	return true
}

// NormalizeL2Copy returns a normalized copy of src.
// Returns false if src has zero L2 norm.
func NormalizeL2Copy(src []float32) ([]float32, bool) {
	dst := slices.Clone(src)
	if !NormalizeL2InPlace(dst) {
		return nil, false
	}
	return dst, true
}

// Metric represents the distance metric used for vector comparison.
type Metric int

const (
	// MetricDot scores by raw inner product; higher is more similar.
	MetricDot Metric = iota
	// MetricCosine scores by inner product of L2-normalized vectors;
	// higher is more similar, self-similarity is 1.0.
	MetricCosine
	// MetricEuclidean scores by squared L2 distance; lower is more similar.
	MetricEuclidean
)

func (m Metric) String() string {
	switch m {
	case MetricDot:
		return "dot"
	case MetricCosine:
		return "cosine"
	case MetricEuclidean:
		return "euclidean"
	default:
		return fmt.Sprintf("unknown(%d)", m)
	}
}

// ErrInvalidMetric indicates an unknown or unsupported distance metric.
type ErrInvalidMetric struct {
	Name string
}

func (e *ErrInvalidMetric) Error() string {
	return fmt.Sprintf("invalid distance metric: %q", e.Name)
}

// ParseMetric parses the wire name of a metric ("dot", "cosine", "euclidean").
func ParseMetric(name string) (Metric, error) {
	switch name {
	case "dot":
		return MetricDot, nil
	case "cosine":
		return MetricCosine, nil
	case "euclidean":
		return MetricEuclidean, nil
	default:
		return 0, &ErrInvalidMetric{Name: name}
	}
}

// Valid reports whether m is one of the supported metrics.
func (m Metric) Valid() bool {
	return m == MetricDot || m == MetricCosine || m == MetricEuclidean
}

// LowerIsBetter reports the ordering direction of the metric's scores.
func (m Metric) LowerIsBetter() bool {
	return m == MetricEuclidean
}

// Normalizes reports whether stored vectors and queries must be L2-normalized
// before scoring.
func (m Metric) Normalizes() bool {
	return m == MetricCosine
}

// Func is a function type for distance calculation.
type Func func(a, b []float32) float32

// Provider returns the scoring function for the given metric.
// Cosine maps to Dot; callers are responsible for normalizing vectors.
func Provider(m Metric) (Func, error) {
	switch m {
	case MetricDot, MetricCosine:
		return Dot, nil
	case MetricEuclidean:
		return SquaredL2, nil
	default:
		return nil, &ErrInvalidMetric{Name: m.String()}
	}
}
