package audio

import (
	"fmt"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/generators"

	"github.com/lixenwraith/outbreak/coordinator"
)

type toneShape uint8

const (
	toneSine toneShape = iota
	toneSquare
)

// cue is a short fixed tone played for one event kind
type cue struct {
	freq  float64
	dur   time.Duration
	shape toneShape
	gain  float64 // relative to master volume
}

// Allocations and releases happen every few ticks and stay silent
var cues = map[coordinator.EventKind]cue{
	coordinator.EventSpawned: {freq: 880, dur: 60 * time.Millisecond, shape: toneSine, gain: 0.4},
	coordinator.EventRemoved: {freq: 440, dur: 80 * time.Millisecond, shape: toneSine, gain: 0.35},
	coordinator.EventStarved: {freq: 120, dur: 150 * time.Millisecond, shape: toneSquare, gain: 0.25},
	coordinator.EventRefused: {freq: 220, dur: 40 * time.Millisecond, shape: toneSquare, gain: 0.2},
}

// CueStream builds the finite streamer for kind, ok is false for silent kinds
func CueStream(kind coordinator.EventKind, sr beep.SampleRate, volume float64) (beep.Streamer, bool, error) {
	c, ok := cues[kind]
	if !ok {
		return nil, false, nil
	}

	var (
		tone beep.Streamer
		err  error
	)
	switch c.shape {
	case toneSquare:
		tone, err = generators.SquareTone(sr, c.freq)
	default:
		tone, err = generators.SineTone(sr, c.freq)
	}
	if err != nil {
		return nil, false, fmt.Errorf("cue %s: %w", kind, err)
	}

	return &effects.Gain{
		Streamer: beep.Take(sr.N(c.dur), tone),
		Gain:     volume*c.gain - 1,
	}, true, nil
}
