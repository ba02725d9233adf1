package coordinator

import (
	"math/rand/v2"
	"testing"

	"github.com/lixenwraith/outbreak/core"
)

// fakeScene hands out sequential entity IDs and records lifecycle calls
type fakeScene struct {
	next      core.Entity
	tags      map[string][]core.Entity
	positions map[core.Entity]core.Point
	kinds     map[core.Entity]string
	destroyed []core.Entity
}

func newFakeScene(entrances, targets int) *fakeScene {
	s := &fakeScene{
		next:      1,
		tags:      make(map[string][]core.Entity),
		positions: make(map[core.Entity]core.Point),
		kinds:     make(map[core.Entity]string),
	}
	for i := 0; i < entrances; i++ {
		e := s.alloc()
		s.positions[e] = core.Point{X: i, Y: 0}
		s.tags["Entrance"] = append(s.tags["Entrance"], e)
	}
	for i := 0; i < targets; i++ {
		e := s.alloc()
		s.positions[e] = core.Point{X: i, Y: 10}
		s.tags["Target"] = append(s.tags["Target"], e)
	}
	return s
}

func (s *fakeScene) alloc() core.Entity {
	e := s.next
	s.next++
	return e
}

func (s *fakeScene) FindEntities(tag string) []core.Entity {
	return append([]core.Entity(nil), s.tags[tag]...)
}

func (s *fakeScene) Position(e core.Entity) core.Point { return s.positions[e] }

func (s *fakeScene) Instantiate(kind string, pos core.Point) core.Entity {
	e := s.alloc()
	s.positions[e] = pos
	s.kinds[e] = kind
	return e
}

func (s *fakeScene) Destroy(e core.Entity) {
	s.destroyed = append(s.destroyed, e)
	delete(s.positions, e)
	delete(s.kinds, e)
}

type fakeBehavior struct {
	entrances map[core.Entity]core.Entity
	enabled   map[core.Entity]bool
}

func newFakeBehavior() *fakeBehavior {
	return &fakeBehavior{
		entrances: make(map[core.Entity]core.Entity),
		enabled:   make(map[core.Entity]bool),
	}
}

func (b *fakeBehavior) SetEntrance(agent, entrance core.Entity) { b.entrances[agent] = entrance }
func (b *fakeBehavior) Enable(agent core.Entity)                { b.enabled[agent] = true }

type fakeHealth map[core.Entity]core.HealthStatus

func (h fakeHealth) HealthStatus(agent core.Entity) (core.HealthStatus, bool) {
	s, ok := h[agent]
	return s, ok
}

type fakeDisplay struct {
	texts  map[core.Field]string
	values map[core.Field]float64
}

func newFakeDisplay() *fakeDisplay {
	return &fakeDisplay{
		texts:  make(map[core.Field]string),
		values: make(map[core.Field]float64),
	}
}

func (d *fakeDisplay) SetText(f core.Field, text string) { d.texts[f] = text }
func (d *fakeDisplay) SetValue(f core.Field, v float64)  { d.values[f] = v }

// scriptedRand returns a fixed sequence of draws
type scriptedRand struct {
	draws []int
	pos   int
}

func (r *scriptedRand) IntN(n int) int {
	v := r.draws[r.pos] % n
	r.pos++
	return v
}

type testRig struct {
	c        *Coordinator
	scene    *fakeScene
	behavior *fakeBehavior
	health   fakeHealth
	display  *fakeDisplay
	events   []Event
}

func newTestRig(t *testing.T, entrances, targets int, interval float64) *testRig {
	t.Helper()
	r := &testRig{
		scene:    newFakeScene(entrances, targets),
		behavior: newFakeBehavior(),
		health:   fakeHealth{},
		display:  newFakeDisplay(),
	}
	c, err := New(Config{
		SpawnInterval: interval,
		Kinds:         []string{"walker", "runner"},
		EntranceTag:   "Entrance",
		TargetTag:     "Target",
	}, Deps{
		Scene:    r.scene,
		Behavior: r.behavior,
		Health:   r.health,
		Display:  r.display,
		Rand:     rand.New(rand.NewPCG(7, 11)),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.AddEventSink(EventSinkFunc(func(ev Event) { r.events = append(r.events, ev) }))
	r.c = c
	return r
}

func (r *testRig) eventCount(kind EventKind) int {
	n := 0
	for _, ev := range r.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func (r *testRig) liveAgents() []core.Entity {
	out := make([]core.Entity, 0, len(r.c.agents))
	for a := range r.c.agents {
		out = append(out, a)
	}
	return out
}

func expectPanic(t *testing.T, fn func()) any {
	t.Helper()
	var recovered any
	func() {
		defer func() { recovered = recover() }()
		fn()
	}()
	if recovered == nil {
		t.Fatal("expected panic")
	}
	return recovered
}
