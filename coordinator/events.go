package coordinator

import "github.com/lixenwraith/outbreak/core"

// EventKind identifies a coordinator bookkeeping change
type EventKind string

const (
	EventSpawned   EventKind = "spawned"
	EventRefused   EventKind = "refused"
	EventAllocated EventKind = "allocated"
	EventStarved   EventKind = "starved"
	EventReleased  EventKind = "released"
	EventRemoved   EventKind = "removed"
)

// Event is emitted to every registered EventSink
type Event struct {
	Kind      EventKind   `json:"kind"`
	Tick      uint64      `json:"tick"`
	Agent     core.Entity `json:"agent,omitempty"`
	Target    core.Entity `json:"target,omitempty"`
	Entrance  core.Entity `json:"entrance,omitempty"`
	AgentKind string      `json:"agent_kind,omitempty"`
}
