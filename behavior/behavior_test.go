package behavior

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/lixenwraith/outbreak/core"
	"github.com/lixenwraith/outbreak/scene"
)

type fakeDirector struct {
	queue   map[core.Entity][]core.Entity
	calls   int
	removed []core.Entity
}

func newFakeDirector() *fakeDirector {
	return &fakeDirector{queue: make(map[core.Entity][]core.Entity)}
}

func (d *fakeDirector) AllocateTarget(agent core.Entity) (core.Entity, bool) {
	d.calls++
	q := d.queue[agent]
	if len(q) == 0 {
		return 0, false
	}
	d.queue[agent] = q[1:]
	return q[0], true
}

func (d *fakeDirector) RemoveAgent(agent core.Entity) {
	d.removed = append(d.removed, agent)
}

const step = 100 * time.Millisecond

func newRig(cfg Config) (*Engine, *scene.Scene, *fakeDirector, core.Entity) {
	s := scene.New(20, 10)
	entrance := s.Place("Entrance", core.Point{X: 0, Y: 5})
	e := New(cfg, s, rand.New(rand.NewPCG(1, 2)), nil)
	d := newFakeDirector()
	e.SetDirector(d)
	return e, s, d, entrance
}

func spawn(e *Engine, s *scene.Scene, entrance core.Entity) core.Entity {
	agent := s.Instantiate("walker", s.Position(entrance))
	e.SetEntrance(agent, entrance)
	e.Enable(agent)
	return agent
}

func TestVisitCycle(t *testing.T) {
	e, s, d, entrance := newRig(Config{MoveInterval: step, Dwell: 2 * step, Visits: 1})
	target := s.Place("Target", core.Point{X: 3, Y: 5})
	agent := spawn(e, s, entrance)
	d.queue[agent] = []core.Entity{target}

	if h, ok := s.HealthStatus(agent); !ok || h != core.HealthNone {
		t.Fatalf("health after Enable = (%v, %v), want NONE", h, ok)
	}

	e.Update(step)
	if e.Phase(agent) != PhaseWalking || d.calls != 1 {
		t.Fatalf("after first tick phase=%v calls=%d", e.Phase(agent), d.calls)
	}

	for range 3 {
		e.Update(step)
	}
	if got := s.Position(agent); got != (core.Point{X: 3, Y: 5}) {
		t.Fatalf("agent at %v, want target (3,5)", got)
	}
	if e.Phase(agent) != PhaseDwelling {
		t.Fatalf("phase = %v, want dwelling", e.Phase(agent))
	}

	e.Update(step)
	e.Update(step)
	if e.Phase(agent) != PhaseLeaving || e.Visits(agent) != 1 {
		t.Fatalf("phase=%v visits=%d, want leaving after 1 visit", e.Phase(agent), e.Visits(agent))
	}

	for range 3 {
		e.Update(step)
	}
	if len(d.removed) != 1 || d.removed[0] != agent {
		t.Fatalf("removed = %v, want [%d]", d.removed, agent)
	}
	if e.Len() != 0 {
		t.Errorf("engine still tracks %d agents", e.Len())
	}
	if got := s.Position(agent); got != s.Position(entrance) {
		t.Errorf("agent left at %v, want entrance", got)
	}
}

func TestStarvedAgentRetriesNextPeriod(t *testing.T) {
	e, s, d, entrance := newRig(Config{MoveInterval: step, Dwell: step, Visits: 1})
	agent := spawn(e, s, entrance)

	e.Update(step)
	if d.calls != 1 || e.Phase(agent) != PhaseSeeking {
		t.Fatalf("calls=%d phase=%v", d.calls, e.Phase(agent))
	}

	d.queue[agent] = []core.Entity{s.Place("Target", core.Point{X: 1, Y: 5})}
	e.Update(step / 2)
	if d.calls != 1 {
		t.Fatalf("retried before move period elapsed, calls=%d", d.calls)
	}
	e.Update(step / 2)
	if d.calls != 2 || e.Phase(agent) != PhaseWalking {
		t.Fatalf("calls=%d phase=%v, want retry to succeed", d.calls, e.Phase(agent))
	}
}

func TestMultipleVisitsRequestNewTargets(t *testing.T) {
	e, s, d, entrance := newRig(Config{MoveInterval: step, Dwell: step, Visits: 2})
	t1 := s.Place("Target", core.Point{X: 1, Y: 5})
	t2 := s.Place("Target", core.Point{X: 1, Y: 4})
	agent := spawn(e, s, entrance)
	d.queue[agent] = []core.Entity{t1, t2}

	for range 20 {
		e.Update(step)
	}
	if d.calls != 2 {
		t.Errorf("AllocateTarget calls = %d, want 2", d.calls)
	}
	if len(d.removed) != 1 {
		t.Errorf("agent not removed after two visits")
	}
}

func TestCarrierChance(t *testing.T) {
	e, s, _, entrance := newRig(Config{MoveInterval: step, CarrierChance: 1})
	agent := spawn(e, s, entrance)
	if h, _ := s.HealthStatus(agent); h != core.HealthCarrier {
		t.Errorf("health = %v, want CARRIER", h)
	}

	// Enabling twice does not reroll
	s.SetHealth(agent, core.HealthNone)
	e.Enable(agent)
	if h, _ := s.HealthStatus(agent); h != core.HealthNone {
		t.Errorf("second Enable changed health to %v", h)
	}
}

func TestInfectionWhileDwelling(t *testing.T) {
	cfg := Config{MoveInterval: step, Dwell: 10 * step, Visits: 1, InfectChance: 1, InfectRadius: 1}
	e, s, d, entrance := newRig(cfg)
	near := s.Place("Target", core.Point{X: 1, Y: 5})
	far := s.Place("Target", core.Point{X: 2, Y: 5})

	carrier := spawn(e, s, entrance)
	victim := spawn(e, s, entrance)
	s.SetHealth(carrier, core.HealthCarrier)
	d.queue[carrier] = []core.Entity{near}
	d.queue[victim] = []core.Entity{far}

	for range 4 {
		e.Update(step)
	}
	if e.Phase(victim) != PhaseDwelling {
		t.Fatalf("victim phase = %v, want dwelling", e.Phase(victim))
	}
	if h, _ := s.HealthStatus(victim); h != core.HealthInfected {
		t.Errorf("victim health = %v, want INFECTED", h)
	}
	if h, _ := s.HealthStatus(carrier); h != core.HealthCarrier {
		t.Errorf("carrier health changed to %v", h)
	}
}

func TestNoInfectionOutOfRange(t *testing.T) {
	cfg := Config{MoveInterval: step, Dwell: 10 * step, Visits: 1, InfectChance: 1, InfectRadius: 1}
	e, s, d, entrance := newRig(cfg)
	carrier := spawn(e, s, entrance)
	victim := spawn(e, s, entrance)
	s.SetHealth(carrier, core.HealthCarrier)
	// Carrier stays seeking at the entrance, victim dwells three cells away
	d.queue[victim] = []core.Entity{s.Place("Target", core.Point{X: 3, Y: 5})}

	for range 8 {
		e.Update(step)
	}
	if e.Phase(victim) != PhaseDwelling {
		t.Fatalf("victim phase = %v, want dwelling", e.Phase(victim))
	}
	if h, _ := s.HealthStatus(victim); h != core.HealthNone {
		t.Errorf("victim health = %v, want NONE", h)
	}
}

func TestForget(t *testing.T) {
	e, s, d, entrance := newRig(Config{MoveInterval: step})
	agent := spawn(e, s, entrance)
	e.Forget(agent)
	e.Forget(agent)
	e.Update(step)
	if d.calls != 0 || e.Len() != 0 {
		t.Errorf("forgotten agent still active: calls=%d len=%d", d.calls, e.Len())
	}
	if e.Phase(agent) != PhaseIdle || e.Phase(agent).String() != "idle" {
		t.Errorf("Phase = %v", e.Phase(agent))
	}
}

type countingSource struct {
	src   rand.Source
	draws int
}

func (c *countingSource) Uint64() uint64 {
	c.draws++
	return c.src.Uint64()
}

// Infection rolls follow dwell time, not the number of Update calls
func TestInfectionRollsIndependentOfTickRate(t *testing.T) {
	rolls := func(tick time.Duration) int {
		src := &countingSource{src: rand.NewPCG(3, 4)}
		s := scene.New(20, 10)
		entrance := s.Place("Entrance", core.Point{X: 0, Y: 5})
		e := New(Config{MoveInterval: step, Dwell: 10 * step, Visits: 1, InfectChance: 0, InfectRadius: 1},
			s, rand.New(src), nil)
		d := newFakeDirector()
		e.SetDirector(d)

		carrier := spawn(e, s, entrance) // stays seeking at the entrance
		s.SetHealth(carrier, core.HealthCarrier)
		victim := spawn(e, s, entrance)
		s.SetHealth(victim, core.HealthNone)
		d.queue[victim] = []core.Entity{s.Place("Target", core.Point{X: 1, Y: 5})}

		e.Update(step)
		e.Update(step)
		if e.Phase(victim) != PhaseDwelling {
			t.Fatalf("victim phase = %v, want dwelling", e.Phase(victim))
		}

		src.draws = 0
		for elapsed := time.Duration(0); elapsed < 6*step; elapsed += tick {
			e.Update(tick)
		}
		return src.draws
	}

	for _, tick := range []time.Duration{step / 4, step, 3 * step} {
		if got := rolls(tick); got != 6 {
			t.Errorf("tick %v: %d infection rolls over six move periods, want 6", tick, got)
		}
	}
}
