package search

import (
	"math"

	"github.com/arcadialab/vecengine/v1/vectordb"
)

// Dot returns the dot product of two equal-length vectors.
func Dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// Magnitude returns the Euclidean norm of a vector.
func Magnitude(v []float32) float32 {
	return float32(math.Sqrt(float64(Dot(v, v))))
}

// CosineSimilarity returns dot(a,b) / (‖a‖·‖b‖). Zero-magnitude inputs
// yield 0 rather than dividing by zero.
func CosineSimilarity(a, b []float32) float32 {
	magA := Magnitude(a)
	magB := Magnitude(b)
	if magA == 0 || magB == 0 {
		return 0
	}
	return Dot(a, b) / (magA * magB)
}

// EuclideanDistance returns ‖a-b‖.
func EuclideanDistance(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return float32(math.Sqrt(float64(sum)))
}

// ManhattanDistance returns the L1 distance between two vectors.
func ManhattanDistance(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		if d < 0 {
			d = -d
		}
		sum += d
	}
	return sum
}

// ScoreByDistance computes an exact similarity score for the given metric.
// Distances are converted to similarities so that higher is always better:
// Euclidean and Manhattan map through 1/(1+dist), cosine and dot are used
// directly. Vectors must be equal length; this is the caller's invariant.
func ScoreByDistance(metric vectordb.Distance, a, b []float32) float32 {
	switch metric {
	case vectordb.DistanceEuclid:
		return 1 / (1 + EuclideanDistance(a, b))
	case vectordb.DistanceDot:
		return Dot(a, b)
	case vectordb.DistanceManhattan:
		return 1 / (1 + ManhattanDistance(a, b))
	default:
		return CosineSimilarity(a, b)
	}
}
