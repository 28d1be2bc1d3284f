// Copyright (C) 2025 Kanban Lab (dev@kanbanlab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package retention runs the periodic activity-log purge in the
// background. The same purge backs the explicit cleanup endpoint; the
// scheduler just drives it on a timer.
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Purger deletes activity entries older than the given age and reports
// how many were removed. Satisfied by coordinator.Coordinator.
type Purger interface {
	PurgeActivities(ctx context.Context, olderThanDays int) (int, error)
}

// Config holds the scheduler settings.
type Config struct {
	// Interval is how often the purge runs.
	Interval time.Duration

	// MaxAgeDays is the retention window; entries older than this are
	// removed.
	MaxAgeDays int
}

// DefaultConfig returns production defaults: hourly runs, 30-day
// retention.
func DefaultConfig() Config {
	return Config{
		Interval:   time.Hour,
		MaxAgeDays: 30,
	}
}

// Scheduler periodically purges old activity entries.
//
// # Thread Safety
//
// All methods are safe for concurrent use. Only one run loop is active
// at a time; Start while running is an error.
type Scheduler struct {
	purger Purger
	config Config
	log    *slog.Logger

	mu      sync.Mutex
	done    chan struct{}
	running bool
}

// NewScheduler creates a stopped scheduler. log may be nil.
func NewScheduler(purger Purger, config Config, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		purger: purger,
		config: config,
		log:    log,
	}
}

// Start launches the run loop: one purge immediately, then one per
// interval until Stop is called or ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("retention scheduler is already running")
	}
	s.running = true
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	s.log.Info("activity retention scheduler starting",
		"interval", s.config.Interval.String(),
		"maxAgeDays", s.config.MaxAgeDays)

	go s.runLoop(ctx, done)
	return nil
}

// Stop signals the run loop to exit. Safe to call multiple times; does
// not interrupt a purge already in progress.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.log.Info("activity retention scheduler stopping")
	close(s.done)
	s.running = false
}

// RunNow performs one purge immediately, independent of the schedule.
func (s *Scheduler) RunNow(ctx context.Context) (int, error) {
	return s.purger.PurgeActivities(ctx, s.config.MaxAgeDays)
}

func (s *Scheduler) runLoop(ctx context.Context, done <-chan struct{}) {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.purge(ctx)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("activity retention scheduler stopped", "reason", "context cancelled")
			return
		case <-done:
			s.log.Info("activity retention scheduler stopped", "reason", "stop requested")
			return
		case <-ticker.C:
			s.purge(ctx)
		}
	}
}

// purge runs one cycle; errors are logged, never fatal to the loop.
func (s *Scheduler) purge(ctx context.Context) {
	n, err := s.purger.PurgeActivities(ctx, s.config.MaxAgeDays)
	if err != nil {
		s.log.Error("activity retention purge failed", "error", err)
		return
	}
	if n > 0 {
		s.log.Info("activity retention purge complete", "removed", n)
	}
}
