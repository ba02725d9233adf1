package status

import (
	"sync/atomic"

	"github.com/lixenwraith/outbreak/core"
)

const hudPrefix = "hud."

// HUD publishes coordinator display fields and counters into a Registry
type HUD struct {
	reg *Registry

	agentText   *AtomicString
	carrierText *AtomicString
	percentText *AtomicString
	fraction    *AtomicFloat
	tick        *atomic.Int64
	agents      *atomic.Int64
	carriers    *atomic.Int64
	infected    *atomic.Int64
}

// HUDSnapshot is a point-in-time copy of the HUD cells
type HUDSnapshot struct {
	Tick        uint64  `json:"tick"`
	AgentText   string  `json:"agent_text"`
	CarrierText string  `json:"carrier_text"`
	PercentText string  `json:"percent_text"`
	Fraction    float64 `json:"fraction"`
	Agents      int     `json:"agents"`
	Carriers    int     `json:"carriers"`
	Infected    int     `json:"infected"`
}

// NewHUD caches the HUD cells of reg
func NewHUD(reg *Registry) *HUD {
	return &HUD{
		reg:         reg,
		agentText:   reg.Strings.Get(hudPrefix + string(core.FieldAgentCount)),
		carrierText: reg.Strings.Get(hudPrefix + string(core.FieldCarrierCount)),
		percentText: reg.Strings.Get(hudPrefix + string(core.FieldInfectedText)),
		fraction:    reg.Floats.Get(hudPrefix + string(core.FieldInfectedRatio)),
		tick:        reg.Ints.Get(hudPrefix + "tick"),
		agents:      reg.Ints.Get(hudPrefix + "agents"),
		carriers:    reg.Ints.Get(hudPrefix + "carriers"),
		infected:    reg.Ints.Get(hudPrefix + "infected"),
	}
}

// SetText stores a text field, unknown fields land in the registry under their own key
func (h *HUD) SetText(field core.Field, text string) {
	switch field {
	case core.FieldAgentCount:
		h.agentText.Store(text)
	case core.FieldCarrierCount:
		h.carrierText.Store(text)
	case core.FieldInfectedText:
		h.percentText.Store(text)
	default:
		h.reg.Strings.Get(hudPrefix + string(field)).Store(text)
	}
}

// SetValue stores a normalized value field
func (h *HUD) SetValue(field core.Field, v float64) {
	if field == core.FieldInfectedRatio {
		h.fraction.Set(v)
		return
	}
	h.reg.Floats.Get(hudPrefix + string(field)).Set(v)
}

// PublishCounters records the raw numbers behind the text fields
func (h *HUD) PublishCounters(c core.Counters) {
	h.tick.Store(int64(c.Tick))
	h.agents.Store(int64(c.Agents))
	h.carriers.Store(int64(c.Carriers))
	h.infected.Store(int64(c.Infected))
}

// Snapshot reads all HUD cells
func (h *HUD) Snapshot() HUDSnapshot {
	return HUDSnapshot{
		Tick:        uint64(h.tick.Load()),
		AgentText:   h.agentText.Load(),
		CarrierText: h.carrierText.Load(),
		PercentText: h.percentText.Load(),
		Fraction:    h.fraction.Get(),
		Agents:      int(h.agents.Load()),
		Carriers:    int(h.carriers.Load()),
		Infected:    int(h.infected.Load()),
	}
}
