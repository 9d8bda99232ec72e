// Package engine drives the office simulation: per-tick movement, knowledge
// sharing between co-located colleagues, and metric recording.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// ErrStopped is returned when a run ends before its last tick.
var ErrStopped = errors.New("simulation stopped")

// Engine drives the simulation forward one tick at a time.
type Engine struct {
	Tick     uint64        // Ticks completed (monotonic, never resets)
	Limit    uint64        // Ticks to run; 0 runs until stopped
	Interval time.Duration // Minimum wall time per tick; 0 runs flat out

	// OnTick runs the tick with the given number. An error aborts the loop.
	OnTick func(tick uint64) error

	running atomic.Bool
	stopped atomic.Bool
}

// NewEngine creates an engine that runs limit ticks as fast as possible.
func NewEngine(limit uint64) *Engine {
	return &Engine{Limit: limit}
}

// Run executes ticks until the limit is reached, Stop is called, the context is
// cancelled, or OnTick fails. It blocks for the duration of the run.
func (e *Engine) Run(ctx context.Context) error {
	e.running.Store(true)
	defer e.running.Store(false)
	slog.Info("simulation engine started", "tick", e.Tick, "limit", e.Limit, "interval", e.Interval)

	for e.Limit == 0 || e.Tick < e.Limit {
		if e.stopped.Load() {
			return fmt.Errorf("%w at tick %d", ErrStopped, e.Tick)
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w at tick %d: %v", ErrStopped, e.Tick, err)
		}

		start := time.Now()
		if e.OnTick != nil {
			if err := e.OnTick(e.Tick); err != nil {
				return err
			}
		}
		e.Tick++

		// Sleep for the remainder of the tick interval.
		if e.Interval > 0 {
			if wait := e.Interval - time.Since(start); wait > 0 {
				timer := time.NewTimer(wait)
				select {
				case <-ctx.Done():
					timer.Stop()
				case <-timer.C:
				}
			}
		}
	}

	slog.Info("simulation engine stopped", "tick", e.Tick)
	return nil
}

// Stop halts the loop before its next tick. Safe to call from any goroutine.
func (e *Engine) Stop() {
	e.stopped.Store(true)
}

// Running reports whether Run is in progress.
func (e *Engine) Running() bool {
	return e.running.Load()
}
