package scene

import (
	"sync/atomic"

	"github.com/lixenwraith/outbreak/core"
	"github.com/lixenwraith/outbreak/engine"
)

// AgentTag is carried by every instantiated agent
const AgentTag = "Agent"

// Layout describes the static part of a scene
type Layout struct {
	Width, Height int
	EntranceTag   string
	TargetTag     string
	Entrances     []core.Point
	Targets       []core.Point
}

// Scene is an in-memory entity world backing the coordinator's Scene and HealthReader
// Component stores are individually locked; readers on other goroutines see consistent cells
type Scene struct {
	width, height int
	next          atomic.Uint64

	Tags      *engine.Store[string]
	Kinds     *engine.Store[string]
	Positions *engine.Store[core.Point]
	Health    *engine.Store[core.HealthStatus]
}

// New creates an empty scene of the given grid size
func New(width, height int) *Scene {
	return &Scene{
		width:     width,
		height:    height,
		Tags:      engine.NewStore[string](),
		Kinds:     engine.NewStore[string](),
		Positions: engine.NewStore[core.Point](),
		Health:    engine.NewStore[core.HealthStatus](),
	}
}

// Build creates a scene and places the layout's entrances and targets
func Build(l Layout) *Scene {
	s := New(l.Width, l.Height)
	for _, p := range l.Entrances {
		s.Place(l.EntranceTag, p)
	}
	for _, p := range l.Targets {
		s.Place(l.TargetTag, p)
	}
	return s
}

// Place adds a static tagged entity at p
func (s *Scene) Place(tag string, p core.Point) core.Entity {
	e := s.alloc()
	s.Tags.Set(e, tag)
	s.Positions.Set(e, s.clamp(p))
	return e
}

// FindEntities returns entities carrying tag in creation order
func (s *Scene) FindEntities(tag string) []core.Entity {
	var out []core.Entity
	for _, e := range s.Tags.All() {
		if t, ok := s.Tags.Get(e); ok && t == tag {
			out = append(out, e)
		}
	}
	return out
}

// Position returns e's grid position, the origin for unknown entities
func (s *Scene) Position(e core.Entity) core.Point {
	p, _ := s.Positions.Get(e)
	return p
}

// SetPosition moves e, clamped to the grid
func (s *Scene) SetPosition(e core.Entity, p core.Point) {
	if !s.Positions.Has(e) {
		return
	}
	s.Positions.Set(e, s.clamp(p))
}

// Instantiate creates an agent of kind at pos with no health yet
func (s *Scene) Instantiate(kind string, pos core.Point) core.Entity {
	e := s.alloc()
	s.Tags.Set(e, AgentTag)
	s.Kinds.Set(e, kind)
	s.Positions.Set(e, s.clamp(pos))
	return e
}

// Destroy removes e from every store
func (s *Scene) Destroy(e core.Entity) {
	s.Tags.Remove(e)
	s.Kinds.Remove(e)
	s.Positions.Remove(e)
	s.Health.Remove(e)
}

// Exists reports whether e is live
func (s *Scene) Exists(e core.Entity) bool {
	return s.Tags.Has(e)
}

// Kind returns the agent kind of e
func (s *Scene) Kind(e core.Entity) (string, bool) {
	return s.Kinds.Get(e)
}

// HealthStatus implements coordinator.HealthReader
func (s *Scene) HealthStatus(e core.Entity) (core.HealthStatus, bool) {
	return s.Health.Get(e)
}

// SetHealth attaches or updates e's health component
func (s *Scene) SetHealth(e core.Entity, h core.HealthStatus) {
	if !s.Tags.Has(e) {
		return
	}
	s.Health.Set(e, h)
}

// Agents returns live agents in spawn order
func (s *Scene) Agents() []core.Entity {
	return s.Kinds.All()
}

// AgentCount returns the number of live agents
func (s *Scene) AgentCount() int {
	return s.Kinds.Count()
}

// Size returns the grid dimensions
func (s *Scene) Size() (int, int) {
	return s.width, s.height
}

func (s *Scene) alloc() core.Entity {
	return core.Entity(s.next.Add(1))
}

func (s *Scene) clamp(p core.Point) core.Point {
	if p.X < 0 {
		p.X = 0
	}
	if p.Y < 0 {
		p.Y = 0
	}
	if s.width > 0 && p.X >= s.width {
		p.X = s.width - 1
	}
	if s.height > 0 && p.Y >= s.height {
		p.Y = s.height - 1
	}
	return p
}
