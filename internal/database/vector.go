// Tastemap - Taste-Cluster Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastemap

package database

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// vectorLiteral renders v as a DuckDB list literal for CAST(? AS DOUBLE[]).
// Values use the shortest representation that round-trips exactly.
func vectorLiteral(v []float64) (string, error) {
	var b strings.Builder
	b.Grow(len(v) * 8)
	b.WriteByte('[')
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return "", fmt.Errorf("vector component %d is not finite", i)
		}
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(x, 'g', -1, 64))
	}
	b.WriteByte(']')
	return b.String(), nil
}

// idListLiteral renders ids as a DuckDB list literal for CAST(? AS BIGINT[]).
func idListLiteral(ids []int64) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, id := range ids {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatInt(id, 10))
	}
	b.WriteByte(']')
	return b.String()
}

// scanVector converts a scanned DOUBLE[] column into a float slice.
// The driver returns lists as []any.
func scanVector(src any) ([]float64, error) {
	switch v := src.(type) {
	case nil:
		return nil, nil
	case []float64:
		out := make([]float64, len(v))
		copy(out, v)
		return out, nil
	case []any:
		out := make([]float64, len(v))
		for i, el := range v {
			switch x := el.(type) {
			case float64:
				out[i] = x
			case float32:
				out[i] = float64(x)
			case int64:
				out[i] = float64(x)
			case int32:
				out[i] = float64(x)
			default:
				return nil, fmt.Errorf("unexpected list element type %T at %d", el, i)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unexpected vector type %T", src)
	}
}
