// Tastemap - Taste-Cluster Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastemap

// Package vecmath provides dimension-checked vector arithmetic for taste
// embeddings.
//
// Every binary operation fails with ErrDimensionMismatch when the operand
// lengths differ. Vectors are never truncated or padded: a silent reshape
// would corrupt every downstream similarity computation.
//
// All functions are pure. Inputs are never mutated and results are always
// freshly allocated slices.
package vecmath

import (
	"errors"
	"fmt"
	"math"
)

// ErrDimensionMismatch is returned when two vectors of different length are combined.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

func checkDims(a, b []float64) error {
	if len(a) != len(b) {
		return fmt.Errorf("%w: %d != %d", ErrDimensionMismatch, len(a), len(b))
	}
	return nil
}

// Zero returns a zero vector of the given dimension.
func Zero(dimension int) []float64 {
	if dimension < 0 {
		dimension = 0
	}
	return make([]float64, dimension)
}

// Clone returns a copy of v.
func Clone(v []float64) []float64 {
	if v == nil {
		return nil
	}
	out := make([]float64, len(v))
	copy(out, v)
	return out
}

// Add returns a + b.
func Add(a, b []float64) ([]float64, error) {
	if err := checkDims(a, b); err != nil {
		return nil, err
	}
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] + b[i]
	}
	return out, nil
}

// Subtract returns a - b.
func Subtract(a, b []float64) ([]float64, error) {
	if err := checkDims(a, b); err != nil {
		return nil, err
	}
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out, nil
}

// Scale returns s * v.
func Scale(v []float64, s float64) []float64 {
	out := make([]float64, len(v))
	for i := range v {
		out[i] = v[i] * s
	}
	return out
}

// WeightedAdd returns base + w*v.
func WeightedAdd(base, v []float64, w float64) ([]float64, error) {
	if err := checkDims(base, v); err != nil {
		return nil, err
	}
	out := make([]float64, len(base))
	for i := range base {
		out[i] = base[i] + w*v[i]
	}
	return out, nil
}

// WeightedSubtract returns base - w*v.
func WeightedSubtract(base, v []float64, w float64) ([]float64, error) {
	if err := checkDims(base, v); err != nil {
		return nil, err
	}
	out := make([]float64, len(base))
	for i := range base {
		out[i] = base[i] - w*v[i]
	}
	return out, nil
}

// Dot returns the dot product of a and b.
func Dot(a, b []float64) (float64, error) {
	if err := checkDims(a, b); err != nil {
		return 0, err
	}
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum, nil
}

// Norm returns the Euclidean norm of v.
func Norm(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// CosineSimilarity returns dot(a,b) / (|a| |b|).
// A zero-norm operand yields 0 rather than NaN.
func CosineSimilarity(a, b []float64) (float64, error) {
	if err := checkDims(a, b); err != nil {
		return 0, err
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// CosineDistance returns 1 - CosineSimilarity(a, b).
func CosineDistance(a, b []float64) (float64, error) {
	sim, err := CosineSimilarity(a, b)
	if err != nil {
		return 0, err
	}
	return 1 - sim, nil
}
