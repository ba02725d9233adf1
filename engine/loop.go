package engine

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/lixenwraith/outbreak/status"
)

// maxStepIntervals caps the delta handed to systems after a stall
const maxStepIntervals = 4

// ErrLoopRunning is returned when Run is called on a loop that is already running
var ErrLoopRunning = errors.New("loop already running")

// Loop drives registered systems on a fixed tick
// All systems run on the loop goroutine; readers use the status registry
type Loop struct {
	clock    TimeProvider
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex // serializes Step and RunSafe
	systems []System

	lastTick  time.Time
	paused    atomic.Bool
	running   atomic.Bool
	tickCount atomic.Uint64

	statTicks  *atomic.Int64
	statPaused *atomic.Bool
}

// NewLoop creates a loop ticking every interval, measuring deltas with clock
func NewLoop(clock TimeProvider, interval time.Duration, reg *status.Registry, logger *zap.Logger) *Loop {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{
		clock:      clock,
		interval:   interval,
		logger:     logger.Named("loop"),
		statTicks:  reg.Ints.Get("engine.ticks"),
		statPaused: reg.Bools.Get("engine.paused"),
	}
}

// AddSystem registers a system, keeping systems ordered by priority
// Systems of equal priority run in registration order
func (l *Loop) AddSystem(s System) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.systems = append(l.systems, s)
	sort.SliceStable(l.systems, func(i, j int) bool {
		return l.systems[i].Priority() < l.systems[j].Priority()
	})
}

// Step runs every system once with dt
func (l *Loop) Step(dt time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, s := range l.systems {
		s.Update(dt)
	}
	ticks := l.tickCount.Add(1)
	l.statTicks.Store(int64(ticks))
}

// RunSafe executes fn between ticks
func (l *Loop) RunSafe(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn()
}

// Run ticks until ctx is cancelled
// Paused ticks advance the reference time so resuming does not replay the pause
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrLoopRunning
	}
	defer l.running.Store(false)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.lastTick = l.clock.Now()
	l.logger.Debug("loop started", zap.Duration("interval", l.interval))

	for {
		select {
		case <-ctx.Done():
			l.logger.Debug("loop stopped", zap.Uint64("ticks", l.tickCount.Load()))
			return nil
		case <-ticker.C:
			now := l.clock.Now()
			dt := now.Sub(l.lastTick)
			l.lastTick = now

			if l.paused.Load() {
				continue
			}
			if limit := l.interval * maxStepIntervals; dt > limit {
				l.logger.Debug("tick delta clamped", zap.Duration("dt", dt), zap.Duration("limit", limit))
				dt = limit
			}
			l.Step(dt)
		}
	}
}

// SetPaused toggles tick processing
func (l *Loop) SetPaused(p bool) {
	l.paused.Store(p)
	l.statPaused.Store(p)
}

// TogglePause flips the pause state and returns the new state
func (l *Loop) TogglePause() bool {
	p := !l.paused.Load()
	l.SetPaused(p)
	return p
}

// Paused reports whether ticks are being skipped
func (l *Loop) Paused() bool {
	return l.paused.Load()
}

// Ticks returns the number of completed steps
func (l *Loop) Ticks() uint64 {
	return l.tickCount.Load()
}

// Interval returns the configured tick interval
func (l *Loop) Interval() time.Duration {
	return l.interval
}
