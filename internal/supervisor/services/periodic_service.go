// Tastemap - Taste-Cluster Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastemap

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/tastemap/internal/metrics"
)

// Task is one run of a periodic maintenance job.
type Task func(ctx context.Context) error

// PeriodicConfig configures a PeriodicService.
type PeriodicConfig struct {
	// Name identifies the service in logs, metrics and supervisor events.
	Name string

	// Interval between runs. Default: 5m.
	Interval time.Duration

	// Timeout bounds a single run. Zero means Interval.
	Timeout time.Duration

	// RunOnStart runs the task once before the first tick.
	RunOnStart bool
}

const defaultPeriodicInterval = 5 * time.Minute

// PeriodicService runs a Task on a ticker until canceled. A failing run is
// logged and counted; it does not stop the service, so supervisor backoff
// is reserved for panics.
type PeriodicService struct {
	task   Task
	config PeriodicConfig
	logger zerolog.Logger
}

// NewPeriodicService creates a periodic maintenance service.
func NewPeriodicService(task Task, cfg PeriodicConfig, logger *zerolog.Logger) *PeriodicService {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultPeriodicInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = cfg.Interval
	}
	if cfg.Name == "" {
		cfg.Name = "periodic"
	}
	l := zerolog.Nop()
	if logger != nil {
		l = *logger
	}
	return &PeriodicService{
		task:   task,
		config: cfg,
		logger: l.With().Str("service", cfg.Name).Logger(),
	}
}

// Serve implements suture.Service.
func (s *PeriodicService) Serve(ctx context.Context) error {
	s.logger.Debug().Dur("interval", s.config.Interval).Msg("Periodic service starting")

	if s.config.RunOnStart {
		s.run(ctx)
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug().Msg("Periodic service stopping")
			return ctx.Err()
		case <-ticker.C:
			s.run(ctx)
		}
	}
}

func (s *PeriodicService) run(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	start := time.Now()
	err := s.task(runCtx)
	if err != nil && ctx.Err() != nil {
		return
	}
	metrics.RecordBackgroundTask(s.config.Name, err)
	if err != nil {
		s.logger.Warn().Err(err).Dur("duration", time.Since(start)).Msg("Maintenance run failed")
		return
	}
	s.logger.Trace().Dur("duration", time.Since(start)).Msg("Maintenance run complete")
}

// String identifies the service in supervisor logs.
func (s *PeriodicService) String() string {
	return s.config.Name
}
