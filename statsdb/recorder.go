package statsdb

import (
	"github.com/lixenwraith/outbreak/coordinator"
	"github.com/lixenwraith/outbreak/core"
)

// Recorder samples coordinator counters into a run every few ticks and tallies events
// Both sink methods run on the tick goroutine
type Recorder struct {
	db    *DB
	runID string
	every uint64

	last   core.Counters
	events map[string]uint64
}

func NewRecorder(db *DB, runID string, everyTicks int) *Recorder {
	if everyTicks < 1 {
		everyTicks = 1
	}
	return &Recorder{
		db:     db,
		runID:  runID,
		every:  uint64(everyTicks),
		events: make(map[string]uint64),
	}
}

// PublishCounters implements coordinator.CounterSink
func (r *Recorder) PublishCounters(c core.Counters) {
	r.last = c
	if c.Tick%r.every == 0 {
		r.db.WriteSample(r.runID, c)
	}
}

// HandleEvent implements coordinator.EventSink
func (r *Recorder) HandleEvent(ev coordinator.Event) {
	r.events[string(ev.Kind)]++
}

// Finish writes the last sample and the run totals
func (r *Recorder) Finish() {
	if r.last.Tick%r.every != 0 {
		r.db.WriteSample(r.runID, r.last)
	}
	totals := make(map[string]uint64, len(r.events))
	for k, v := range r.events {
		totals[k] = v
	}
	r.db.FinishRun(r.runID, r.last.Tick, totals)
}
