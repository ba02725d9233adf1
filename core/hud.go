package core

// Field names a display slot the coordinator publishes into
type Field string

const (
	FieldAgentCount    Field = "agent-count"
	FieldCarrierCount  Field = "carrier-count"
	FieldInfectedRatio Field = "infected-fraction"
	FieldInfectedText  Field = "infected-percent-text"
)

// Counters is one tick's aggregate of agent health
type Counters struct {
	Tick     uint64  `json:"tick"`
	Agents   int     `json:"agents"`
	Carriers int     `json:"carriers"`
	Infected int     `json:"infected"`
	Fraction float64 `json:"fraction"`
}
