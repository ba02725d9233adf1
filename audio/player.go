// Package audio plays short tones for coordinator events through beep
package audio

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"
	"go.uber.org/zap"

	"github.com/lixenwraith/outbreak/coordinator"
	"github.com/lixenwraith/outbreak/status"
)

type Config struct {
	SampleRate int
	Volume     float64 // 0..1
}

// Player is a coordinator.EventSink; without Initialize every call is a no-op
type Player struct {
	rate   beep.SampleRate
	volume float64
	logger *zap.Logger

	mu          sync.Mutex
	mixer       *beep.Mixer
	initialized bool
	play        func(beep.Streamer)

	muted *atomic.Bool
}

// NewPlayer creates a player whose mute flag lives in reg as audio.muted
func NewPlayer(cfg Config, reg *status.Registry, logger *zap.Logger) *Player {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Player{
		rate:   beep.SampleRate(cfg.SampleRate),
		volume: cfg.Volume,
		logger: logger.Named("audio"),
		mixer:  &beep.Mixer{},
		muted:  reg.Bools.Get("audio.muted"),
	}
}

// Initialize opens the speaker and starts the mixer
func (p *Player) Initialize() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.initialized {
		return nil
	}
	if err := speaker.Init(p.rate, p.rate.N(100*time.Millisecond)); err != nil {
		return err
	}
	speaker.Play(p.mixer)
	p.play = func(s beep.Streamer) {
		speaker.Lock()
		p.mixer.Add(s)
		speaker.Unlock()
	}
	p.initialized = true
	return nil
}

// Close silences the mixer and releases the speaker
func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return
	}
	speaker.Clear()
	speaker.Close()
	p.play = nil
	p.initialized = false
}

func (p *Player) SetMuted(m bool) { p.muted.Store(m) }

// ToggleMute flips the mute flag and returns the new state
func (p *Player) ToggleMute() bool {
	for {
		old := p.muted.Load()
		if p.muted.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

func (p *Player) Muted() bool { return p.muted.Load() }

// HandleEvent implements coordinator.EventSink
func (p *Player) HandleEvent(ev coordinator.Event) {
	if p.muted.Load() {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.initialized {
		return
	}

	s, ok, err := CueStream(ev.Kind, p.rate, p.volume)
	if err != nil {
		p.logger.Warn("cue unavailable", zap.Error(err))
		return
	}
	if ok {
		p.play(s)
	}
}
