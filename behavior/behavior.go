// Package behavior is a minimal stand-in for the external decision engine.
// Agents request a target, walk to it in straight grid steps, dwell, and after
// a fixed number of visits return to their entrance and ask to be removed.
// While dwelling, healthy agents near a carrier or infected agent may catch it.
package behavior

import (
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/lixenwraith/outbreak/core"
	"github.com/lixenwraith/outbreak/engine"
)

// Director is the coordinator surface agents call back into
type Director interface {
	AllocateTarget(agent core.Entity) (core.Entity, bool)
	RemoveAgent(agent core.Entity)
}

// World is the scene surface the engine reads and moves agents through
type World interface {
	Position(e core.Entity) core.Point
	SetPosition(e core.Entity, p core.Point)
	HealthStatus(e core.Entity) (core.HealthStatus, bool)
	SetHealth(e core.Entity, h core.HealthStatus)
}

const defaultMoveInterval = 100 * time.Millisecond

type Config struct {
	MoveInterval  time.Duration // time per grid step, also the retry period when starved
	Dwell         time.Duration
	Visits        int
	CarrierChance float64
	InfectChance  float64 // per move period spent dwelling, independent of the tick rate
	InfectRadius  int
}

// Phase is an agent's position in its visit cycle
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseSeeking
	PhaseWalking
	PhaseDwelling
	PhaseLeaving
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSeeking:
		return "seeking"
	case PhaseWalking:
		return "walking"
	case PhaseDwelling:
		return "dwelling"
	case PhaseLeaving:
		return "leaving"
	}
	return "unknown"
}

type agentState struct {
	entrance core.Entity
	enabled  bool
	phase    Phase
	target   core.Entity
	visits   int
	moveAcc  time.Duration
	dwell    time.Duration
	exposure time.Duration // dwell time not yet rolled for infection
}

// Engine runs every enabled agent once per tick
type Engine struct {
	cfg      Config
	world    World
	director Director
	rng      *rand.Rand
	logger   *zap.Logger

	agents map[core.Entity]*agentState
	order  []core.Entity
}

// New creates an engine; SetDirector must be called before the first Update
func New(cfg Config, world World, rng *rand.Rand, logger *zap.Logger) *Engine {
	if cfg.Visits <= 0 {
		cfg.Visits = 1
	}
	if cfg.MoveInterval <= 0 {
		cfg.MoveInterval = defaultMoveInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:    cfg,
		world:  world,
		rng:    rng,
		logger: logger.Named("behavior"),
		agents: make(map[core.Entity]*agentState),
	}
}

// SetDirector wires the coordinator, which itself needs the engine at construction
func (e *Engine) SetDirector(d Director) {
	e.director = d
}

// SetEntrance records where agent came from and must return to
func (e *Engine) SetEntrance(agent, entrance core.Entity) {
	e.state(agent).entrance = entrance
}

// Enable starts agent's visit cycle and rolls its initial health
func (e *Engine) Enable(agent core.Entity) {
	st := e.state(agent)
	if st.enabled {
		return
	}
	st.enabled = true
	st.phase = PhaseSeeking
	st.moveAcc = e.cfg.MoveInterval // first request goes out on the next tick

	health := core.HealthNone
	if e.rng.Float64() < e.cfg.CarrierChance {
		health = core.HealthCarrier
	}
	e.world.SetHealth(agent, health)
}

// Forget drops agent without calling back into the director
func (e *Engine) Forget(agent core.Entity) {
	if _, ok := e.agents[agent]; !ok {
		return
	}
	delete(e.agents, agent)
	for i, a := range e.order {
		if a == agent {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
}

// Phase returns agent's current phase
func (e *Engine) Phase(agent core.Entity) Phase {
	if st, ok := e.agents[agent]; ok {
		return st.phase
	}
	return PhaseIdle
}

// Visits returns how many dwells agent has completed
func (e *Engine) Visits(agent core.Entity) int {
	if st, ok := e.agents[agent]; ok {
		return st.visits
	}
	return 0
}

// Len returns the number of tracked agents
func (e *Engine) Len() int { return len(e.agents) }

// Priority implements engine.System
func (e *Engine) Priority() int { return engine.PriorityBehavior }

// Update implements engine.System
func (e *Engine) Update(dt time.Duration) {
	order := append([]core.Entity(nil), e.order...)
	for _, agent := range order {
		st, ok := e.agents[agent]
		if !ok || !st.enabled {
			continue
		}
		switch st.phase {
		case PhaseSeeking:
			e.seek(agent, st, dt)
		case PhaseWalking:
			if e.walk(agent, st, dt, e.world.Position(st.target)) {
				st.phase = PhaseDwelling
				st.dwell = e.cfg.Dwell
				st.exposure = 0
			}
		case PhaseDwelling:
			e.dwell(agent, st, dt)
		case PhaseLeaving:
			if e.walk(agent, st, dt, e.world.Position(st.entrance)) {
				e.Forget(agent)
				e.director.RemoveAgent(agent)
			}
		}
	}
}

func (e *Engine) seek(agent core.Entity, st *agentState, dt time.Duration) {
	st.moveAcc += dt
	if st.moveAcc < e.cfg.MoveInterval {
		return
	}
	st.moveAcc = 0

	target, ok := e.director.AllocateTarget(agent)
	if !ok {
		e.logger.Debug("no target, retrying", zap.Uint64("agent", uint64(agent)))
		return
	}
	st.target = target
	st.phase = PhaseWalking
}

// walk advances agent toward dst, reporting arrival
func (e *Engine) walk(agent core.Entity, st *agentState, dt time.Duration, dst core.Point) bool {
	st.moveAcc += dt
	pos := e.world.Position(agent)
	for pos != dst && st.moveAcc >= e.cfg.MoveInterval {
		st.moveAcc -= e.cfg.MoveInterval
		pos = pos.Step(dst)
		e.world.SetPosition(agent, pos)
	}
	if pos == dst {
		st.moveAcc = 0
		return true
	}
	return false
}

func (e *Engine) dwell(agent core.Entity, st *agentState, dt time.Duration) {
	st.exposure += dt
	for st.exposure >= e.cfg.MoveInterval {
		st.exposure -= e.cfg.MoveInterval
		e.expose(agent)
	}

	st.dwell -= dt
	if st.dwell > 0 {
		return
	}
	st.visits++
	if st.visits >= e.cfg.Visits {
		st.phase = PhaseLeaving
		return
	}
	st.phase = PhaseSeeking
	st.moveAcc = e.cfg.MoveInterval
}

// expose rolls infection for a healthy agent with a contagious neighbor in range
func (e *Engine) expose(agent core.Entity) {
	if h, ok := e.world.HealthStatus(agent); !ok || h != core.HealthNone {
		return
	}
	pos := e.world.Position(agent)
	for _, other := range e.order {
		if other == agent {
			continue
		}
		h, ok := e.world.HealthStatus(other)
		if !ok || h == core.HealthNone {
			continue
		}
		if core.ChebyshevDist(pos, e.world.Position(other)) > e.cfg.InfectRadius {
			continue
		}
		if e.rng.Float64() < e.cfg.InfectChance {
			e.world.SetHealth(agent, core.HealthInfected)
			e.logger.Debug("agent infected",
				zap.Uint64("agent", uint64(agent)),
				zap.Uint64("source", uint64(other)))
		}
		return
	}
}

func (e *Engine) state(agent core.Entity) *agentState {
	st, ok := e.agents[agent]
	if !ok {
		st = &agentState{}
		e.agents[agent] = st
		e.order = append(e.order, agent)
	}
	return st
}
