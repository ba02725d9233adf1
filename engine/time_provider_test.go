package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/lixenwraith/outbreak/status"
)

func TestMockTimeProvider(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	mock := NewMockTimeProvider(start)

	if !mock.Now().Equal(start) {
		t.Fatalf("initial time %v", mock.Now())
	}
	mock.Advance(90 * time.Minute)
	mock.Advance(30 * time.Minute)
	if want := start.Add(2 * time.Hour); !mock.Now().Equal(want) {
		t.Errorf("after Advance: %v, want %v", mock.Now(), want)
	}
	next := start.Add(24 * time.Hour)
	mock.SetTime(next)
	if !mock.Now().Equal(next) {
		t.Errorf("after SetTime: %v, want %v", mock.Now(), next)
	}
}

// A stalled clock must not hand systems more than maxStepIntervals of time
func TestLoopClampsStalledDelta(t *testing.T) {
	const interval = 2 * time.Millisecond
	clock := NewMockTimeProvider(time.Unix(0, 0))
	loop := NewLoop(clock, interval, status.NewRegistry(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu     sync.Mutex
		deltas []time.Duration
	)
	loop.AddSystem(SystemFunc{P: PrioritySpawn, Fn: func(dt time.Duration) {
		mu.Lock()
		deltas = append(deltas, dt)
		n := len(deltas)
		mu.Unlock()
		// Every tick the clock jumps an hour
		clock.Advance(time.Hour)
		if n == 3 {
			cancel()
		}
	}})

	if err := loop.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(deltas) < 3 {
		t.Fatalf("ran %d ticks", len(deltas))
	}
	if deltas[0] != 0 {
		t.Errorf("first delta = %v, want 0 on a frozen clock", deltas[0])
	}
	for i, dt := range deltas[1:] {
		if dt != interval*maxStepIntervals {
			t.Errorf("delta %d = %v, want clamp %v", i+1, dt, interval*maxStepIntervals)
		}
	}
}
