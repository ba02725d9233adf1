package status

import (
	"strings"
	"sync"
	"testing"

	"github.com/lixenwraith/outbreak/core"
)

func TestHUDSnapshot(t *testing.T) {
	reg := NewRegistry()
	h := NewHUD(reg)

	h.SetText(core.FieldAgentCount, "Agents: 4")
	h.SetText(core.FieldCarrierCount, "Carriers: 2")
	h.SetText(core.FieldInfectedText, "25%")
	h.SetValue(core.FieldInfectedRatio, 0.25)
	h.PublishCounters(core.Counters{Tick: 9, Agents: 4, Carriers: 2, Infected: 1, Fraction: 0.25})

	want := HUDSnapshot{
		Tick: 9, AgentText: "Agents: 4", CarrierText: "Carriers: 2", PercentText: "25%",
		Fraction: 0.25, Agents: 4, Carriers: 2, Infected: 1,
	}
	if got := h.Snapshot(); got != want {
		t.Errorf("Snapshot = %+v, want %+v", got, want)
	}

	// Cells are shared with the registry
	if got := reg.Strings.Get("hud.infected-percent-text").Load(); got != "25%" {
		t.Errorf("registry text = %q", got)
	}
}

func TestHUDUnknownFields(t *testing.T) {
	reg := NewRegistry()
	h := NewHUD(reg)
	h.SetText("wave", "Wave 3")
	h.SetValue("pressure", 0.7)

	if got := reg.Strings.Get("hud.wave").Load(); got != "Wave 3" {
		t.Errorf("unknown text field = %q", got)
	}
	if got := reg.Floats.Get("hud.pressure").Get(); got != 0.7 {
		t.Errorf("unknown value field = %v", got)
	}
}

func TestAtomicStringTruncates(t *testing.T) {
	var s AtomicString
	if s.Load() != "" {
		t.Error("zero value not empty")
	}
	s.Store(strings.Repeat("x", MaxStringLen+10))
	if got := len(s.Load()); got != MaxStringLen {
		t.Errorf("stored %d bytes, want %d", got, MaxStringLen)
	}
}

func TestHUDConcurrentReaders(t *testing.T) {
	h := NewHUD(NewRegistry())
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				_ = h.Snapshot()
			}
		}()
	}
	for j := 0; j < 1000; j++ {
		h.PublishCounters(core.Counters{Tick: uint64(j), Agents: j})
	}
	wg.Wait()
	if got := h.Snapshot().Tick; got != 999 {
		t.Errorf("final tick = %d", got)
	}
}
