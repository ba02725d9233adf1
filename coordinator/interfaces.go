package coordinator

import "github.com/lixenwraith/outbreak/core"

// Scene is the host engine's entity surface
type Scene interface {
	// FindEntities returns every entity carrying tag, in a stable order
	FindEntities(tag string) []core.Entity
	Position(e core.Entity) core.Point
	Instantiate(kind string, pos core.Point) core.Entity
	Destroy(e core.Entity)
}

// Behavior is the per-agent decision engine
type Behavior interface {
	SetEntrance(agent, entrance core.Entity)
	Enable(agent core.Entity)
}

// HealthReader exposes agent health owned by another system
// ok is false when the agent has no health to read
type HealthReader interface {
	HealthStatus(agent core.Entity) (core.HealthStatus, bool)
}

// Display receives the HUD values computed every tick
type Display interface {
	SetText(field core.Field, text string)
	SetValue(field core.Field, v float64)
}

// CounterSink receives the raw counters behind the display values
type CounterSink interface {
	PublishCounters(c core.Counters)
}

// EventSink observes coordinator bookkeeping changes
// Called synchronously on the tick goroutine; must not call back into the coordinator
type EventSink interface {
	HandleEvent(ev Event)
}

// EventSinkFunc adapts a function to EventSink
type EventSinkFunc func(ev Event)

// HandleEvent implements EventSink
func (f EventSinkFunc) HandleEvent(ev Event) { f(ev) }

type nopDisplay struct{}

func (nopDisplay) SetText(core.Field, string)   {}
func (nopDisplay) SetValue(core.Field, float64) {}

type noHealth struct{}

func (noHealth) HealthStatus(core.Entity) (core.HealthStatus, bool) { return core.HealthNone, false }
