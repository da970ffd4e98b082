// Tastemap - Taste-Cluster Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastemap

// Package retrieval protects candidate retrieval with a circuit breaker and
// a rate limiter.
//
// A slow or failing vector store otherwise turns every recommendation
// request into a pile of blocked fan-out queries. The breaker opens after a
// sustained failure rate and rejects calls until the store recovers; the
// limiter caps the query rate toward the store.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/tastemap/internal/metrics"
	"github.com/tomtom215/tastemap/internal/recommend"
)

// ErrRateLimited is returned when the limiter cannot admit a call before the
// context ends.
var ErrRateLimited = errors.New("candidate retrieval rate limited")

// Config configures the breaker and limiter.
type Config struct {
	Name string `koanf:"name"`

	// MaxRequests is the number of probe calls allowed while half-open.
	MaxRequests uint32 `koanf:"max_requests"`

	// Interval resets the closed-state counts.
	Interval time.Duration `koanf:"interval"`

	// Timeout is the open-state duration before probing.
	Timeout time.Duration `koanf:"timeout"`

	// MinRequests and FailureRatio decide when to trip.
	MinRequests  uint32  `koanf:"min_requests"`
	FailureRatio float64 `koanf:"failure_ratio"`

	// RatePerSecond <= 0 disables the limiter.
	RatePerSecond float64 `koanf:"rate_per_second"`
	Burst         int     `koanf:"burst"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Name:          "candidate-retrieval",
		MaxRequests:   3,
		Interval:      time.Minute,
		Timeout:       30 * time.Second,
		MinRequests:   10,
		FailureRatio:  0.6,
		RatePerSecond: 200,
		Burst:         50,
	}
}

// Retriever wraps a recommend.CandidateRetriever.
type Retriever struct {
	next    recommend.CandidateRetriever
	cb      *gobreaker.CircuitBreaker[any]
	limiter *rate.Limiter
	name    string
	logger  zerolog.Logger
}

var _ recommend.CandidateRetriever = (*Retriever)(nil)

func New(next recommend.CandidateRetriever, cfg Config, logger *zerolog.Logger) *Retriever {
	if cfg.Name == "" {
		cfg.Name = DefaultConfig().Name
	}
	r := &Retriever{
		next:   next,
		name:   cfg.Name,
		logger: logger.With().Str("component", "retrieval").Str("breaker", cfg.Name).Logger(),
	}
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}

	metrics.CircuitBreakerState.WithLabelValues(cfg.Name).Set(0)
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(cfg.Name).Set(0)

	r.cb = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= cfg.FailureRatio
			if shouldTrip {
				r.logger.Warn().
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("Opening circuit")
			}
			return shouldTrip
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr, toStr := stateToString(from), stateToString(to)
			r.logger.Info().Str("from", fromStr).Str("to", toStr).Msg("Circuit breaker state transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
			}
		},
		// Caller cancellations and missing items say nothing about store health.
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, recommend.ErrNotFound) ||
				errors.Is(err, context.Canceled)
		},
	})
	return r
}

// State returns the breaker state.
func (r *Retriever) State() gobreaker.State {
	return r.cb.State()
}

func (r *Retriever) NearestToCentroids(ctx context.Context, q recommend.CandidateQuery) ([][]recommend.Candidate, error) {
	return castResult[[][]recommend.Candidate](r.execute(ctx, func() (any, error) {
		return r.next.NearestToCentroids(ctx, q)
	}))
}

func (r *Retriever) SimilarItems(ctx context.Context, itemID int64, limit int, includeInactive bool) ([]recommend.Candidate, error) {
	return castResult[[]recommend.Candidate](r.execute(ctx, func() (any, error) {
		return r.next.SimilarItems(ctx, itemID, limit, includeInactive)
	}))
}

func (r *Retriever) execute(ctx context.Context, fn func() (any, error)) (any, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			metrics.RetrievalRateLimited.WithLabelValues(r.name).Inc()
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
	}

	result, err := r.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(r.name, "rejected").Inc()
			r.logger.Warn().Err(err).Msg("Retrieval rejected by circuit breaker")
		} else {
			metrics.CircuitBreakerRequests.WithLabelValues(r.name, "failure").Inc()
			counts := r.cb.Counts()
			metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(r.name).Set(float64(counts.ConsecutiveFailures))
		}
		return nil, err
	}

	metrics.CircuitBreakerRequests.WithLabelValues(r.name, "success").Inc()
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(r.name).Set(0)
	return result, nil
}

// castResult type-asserts the breaker result.
func castResult[T any](result any, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
