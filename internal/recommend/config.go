// Tastemap - Taste-Cluster Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastemap

package recommend

import (
	"fmt"
	"sort"
	"time"
)

// Ranking strategy names accepted by RankingConfig.Strategy.
const (
	StrategyDiverse    = "diverse"
	StrategyRoundRobin = "round_robin"
	StrategyMMR        = "mmr"
)

// Config contains all configuration for the recommendation engine.
type Config struct {
	// Dimension is the expected embedding length. Zero accepts any length,
	// as long as all vectors in one computation agree.
	// Default: 103.
	Dimension int `json:"dimension" koanf:"dimension"`

	// MinRatings is the number of ratings a user needs before recommendations
	// are produced.
	// Default: 5.
	MinRatings int `json:"min_ratings" koanf:"min_ratings"`

	// KValues are the cluster counts tried by the adaptive selector, ascending.
	// Default: [1, 2, 5, 7, 10, 15].
	KValues []int `json:"k_values" koanf:"k_values"`

	// CandidatesPerCluster is the per-centroid retrieval limit.
	// Default: 100.
	CandidatesPerCluster int `json:"candidates_per_cluster" koanf:"candidates_per_cluster"`

	// MinItemsPerCluster is the number of above-threshold candidates each
	// cluster needs for a k to be valid.
	// Default: 10.
	MinItemsPerCluster int `json:"min_items_per_cluster" koanf:"min_items_per_cluster"`

	// SimilarityThreshold is the minimum candidate-to-centroid similarity
	// counted towards MinItemsPerCluster.
	// Default: 0.65.
	SimilarityThreshold float64 `json:"similarity_threshold" koanf:"similarity_threshold"`

	// MinTotalRecommendations is the minimum number of valid candidates
	// across all clusters for a k to be accepted.
	// Default: 30.
	MinTotalRecommendations int `json:"min_total_recommendations" koanf:"min_total_recommendations"`

	// FetchConcurrency bounds concurrent candidate retrievals during prefetch.
	// Default: 4.
	FetchConcurrency int `json:"fetch_concurrency" koanf:"fetch_concurrency"`

	// FetchTimeout bounds the whole candidate prefetch.
	// Default: 10s.
	FetchTimeout time.Duration `json:"fetch_timeout" koanf:"fetch_timeout"`

	// Clustering contains k-means parameters.
	Clustering ClusteringConfig `json:"clustering" koanf:"clustering"`

	// Ranking contains ranking parameters.
	Ranking RankingConfig `json:"ranking" koanf:"ranking"`

	// DefaultPageSize is used when a request does not specify a count.
	// Default: 20.
	DefaultPageSize int `json:"default_page_size" koanf:"default_page_size"`

	// MaxPageSize caps the requested count.
	// Default: 100.
	MaxPageSize int `json:"max_page_size" koanf:"max_page_size"`

	// SimilarLimit is the default result size for similar-item lookups.
	// Default: 10.
	SimilarLimit int `json:"similar_limit" koanf:"similar_limit"`
}

// ClusteringConfig contains k-means parameters.
type ClusteringConfig struct {
	// MaxIterations caps Lloyd iterations.
	// Default: 100.
	MaxIterations int `json:"max_iterations" koanf:"max_iterations"`

	// Tolerance stops iteration once the largest centroid shift
	// (1 - cosine similarity) falls below it.
	// Default: 1e-4.
	Tolerance float64 `json:"tolerance" koanf:"tolerance"`
}

// RankingConfig selects and parameterizes the ranking strategy.
type RankingConfig struct {
	// Strategy is "diverse", "round_robin" or "mmr".
	Strategy string `json:"strategy" koanf:"strategy"`

	// Params are the diverse ranking parameters.
	Params RankingParams `json:"params" koanf:"params"`

	// LookAhead is the window scanned for intra-cluster diversity.
	// Default: 5.
	LookAhead int `json:"look_ahead" koanf:"look_ahead"`

	// MMRLambda balances relevance against embedding diversity for the
	// mmr strategy (1.0 = pure relevance).
	// Default: 0.7.
	MMRLambda float64 `json:"mmr_lambda" koanf:"mmr_lambda"`
}

// RankingParams are the tunable parameters of diverse ranking.
type RankingParams struct {
	// Alpha dampens the quality signal, in [0, 1].
	Alpha float64 `json:"alpha" koanf:"alpha"`

	// Lambda is the per-draw decay of a cluster's draw weight, in [0.1, 0.5].
	Lambda float64 `json:"lambda" koanf:"lambda"`

	// Beta scales the near-duplicate penalty, in [0.2, 0.8].
	Beta float64 `json:"beta" koanf:"beta"`

	// Threshold is the similarity above which the penalty applies, in [0.5, 0.8].
	Threshold float64 `json:"threshold" koanf:"threshold"`

	// TopK is the number of upcoming items averaged into a draw weight, in [3, 10].
	TopK int `json:"top_k" koanf:"top_k"`
}

// DefaultRankingParams returns the default diverse ranking parameters.
func DefaultRankingParams() RankingParams {
	return RankingParams{
		Alpha:     0.1,
		Lambda:    0.1,
		Beta:      0.2,
		Threshold: 0.65,
		TopK:      5,
	}
}

// Validate checks every parameter against its range.
//
//nolint:gocritic // value receiver is intentional for immutable semantics
func (p RankingParams) Validate() error {
	if p.Alpha < 0 || p.Alpha > 1 {
		return fmt.Errorf("%w: alpha must be in [0, 1], got %f", ErrInvalidParams, p.Alpha)
	}
	if p.Lambda < 0.1 || p.Lambda > 0.5 {
		return fmt.Errorf("%w: lambda must be in [0.1, 0.5], got %f", ErrInvalidParams, p.Lambda)
	}
	if p.Beta < 0.2 || p.Beta > 0.8 {
		return fmt.Errorf("%w: beta must be in [0.2, 0.8], got %f", ErrInvalidParams, p.Beta)
	}
	if p.Threshold < 0.5 || p.Threshold > 0.8 {
		return fmt.Errorf("%w: threshold must be in [0.5, 0.8], got %f", ErrInvalidParams, p.Threshold)
	}
	if p.TopK < 3 || p.TopK > 10 {
		return fmt.Errorf("%w: top_k must be in [3, 10], got %d", ErrInvalidParams, p.TopK)
	}
	return nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Dimension:               103,
		MinRatings:              5,
		KValues:                 []int{1, 2, 5, 7, 10, 15},
		CandidatesPerCluster:    100,
		MinItemsPerCluster:      10,
		SimilarityThreshold:     0.65,
		MinTotalRecommendations: 30,
		FetchConcurrency:        4,
		FetchTimeout:            10 * time.Second,
		Clustering: ClusteringConfig{
			MaxIterations: 100,
			Tolerance:     1e-4,
		},
		Ranking: RankingConfig{
			Strategy:  StrategyDiverse,
			Params:    DefaultRankingParams(),
			LookAhead: 5,
			MMRLambda: 0.7,
		},
		DefaultPageSize: 20,
		MaxPageSize:     100,
		SimilarLimit:    10,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Dimension < 0 {
		return fmt.Errorf("dimension must be non-negative, got %d", c.Dimension)
	}
	if c.MinRatings < 1 {
		return fmt.Errorf("min_ratings must be positive, got %d", c.MinRatings)
	}
	if len(c.KValues) == 0 {
		return fmt.Errorf("k_values must not be empty")
	}
	if !sort.IntsAreSorted(c.KValues) {
		return fmt.Errorf("k_values must be ascending, got %v", c.KValues)
	}
	for i, k := range c.KValues {
		if k < 1 {
			return fmt.Errorf("k_values must be positive, got %d", k)
		}
		if i > 0 && k == c.KValues[i-1] {
			return fmt.Errorf("k_values must be unique, got duplicate %d", k)
		}
	}
	if c.CandidatesPerCluster < 1 {
		return fmt.Errorf("candidates_per_cluster must be positive, got %d", c.CandidatesPerCluster)
	}
	if c.MinItemsPerCluster < 0 {
		return fmt.Errorf("min_items_per_cluster must be non-negative, got %d", c.MinItemsPerCluster)
	}
	if c.SimilarityThreshold < -1 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity_threshold must be in [-1, 1], got %f", c.SimilarityThreshold)
	}
	if c.MinTotalRecommendations < 0 {
		return fmt.Errorf("min_total_recommendations must be non-negative, got %d", c.MinTotalRecommendations)
	}
	if c.FetchConcurrency < 1 {
		return fmt.Errorf("fetch_concurrency must be positive, got %d", c.FetchConcurrency)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("fetch_timeout must be positive, got %v", c.FetchTimeout)
	}

	if c.Clustering.MaxIterations < 1 {
		return fmt.Errorf("clustering.max_iterations must be positive, got %d", c.Clustering.MaxIterations)
	}
	if c.Clustering.Tolerance < 0 {
		return fmt.Errorf("clustering.tolerance must be non-negative, got %f", c.Clustering.Tolerance)
	}

	switch c.Ranking.Strategy {
	case StrategyDiverse, StrategyRoundRobin, StrategyMMR:
	default:
		return fmt.Errorf("ranking.strategy must be one of %q, %q, %q, got %q",
			StrategyDiverse, StrategyRoundRobin, StrategyMMR, c.Ranking.Strategy)
	}
	if err := c.Ranking.Params.Validate(); err != nil {
		return fmt.Errorf("ranking.params: %w", err)
	}
	if c.Ranking.LookAhead < 1 {
		return fmt.Errorf("ranking.look_ahead must be positive, got %d", c.Ranking.LookAhead)
	}
	if c.Ranking.MMRLambda < 0 || c.Ranking.MMRLambda > 1 {
		return fmt.Errorf("ranking.mmr_lambda must be in [0, 1], got %f", c.Ranking.MMRLambda)
	}

	if c.DefaultPageSize < 1 {
		return fmt.Errorf("default_page_size must be positive, got %d", c.DefaultPageSize)
	}
	if c.MaxPageSize < c.DefaultPageSize {
		return fmt.Errorf("max_page_size must be >= default_page_size, got %d < %d", c.MaxPageSize, c.DefaultPageSize)
	}
	if c.SimilarLimit < 1 {
		return fmt.Errorf("similar_limit must be positive, got %d", c.SimilarLimit)
	}

	return nil
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	clone.KValues = append([]int(nil), c.KValues...)
	return &clone
}
