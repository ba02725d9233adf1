package coordinator

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/lixenwraith/outbreak/core"
	"github.com/lixenwraith/outbreak/engine"
)

// Config holds the coordinator's tunables
type Config struct {
	SpawnInterval float64 // seconds between timed spawns
	Kinds         []string
	EntranceTag   string
	TargetTag     string
	Shuffle       ShuffleMode
}

// Validate checks cfg for values the coordinator cannot run with
func (c Config) Validate() error {
	if c.SpawnInterval <= 0 {
		return fmt.Errorf("%w: spawn interval must be > 0", ErrInvalidConfig)
	}
	if len(c.Kinds) == 0 {
		return fmt.Errorf("%w: at least one agent kind required", ErrInvalidConfig)
	}
	if c.EntranceTag == "" || c.TargetTag == "" {
		return fmt.Errorf("%w: entrance and target tags must not be empty", ErrInvalidConfig)
	}
	if c.Shuffle != "" && !c.Shuffle.Valid() {
		return fmt.Errorf("%w: unknown shuffle mode %q", ErrInvalidConfig, c.Shuffle)
	}
	return nil
}

// Deps are the collaborators the coordinator calls into
// Scene and Behavior are required; the rest default to no-ops
type Deps struct {
	Scene    Scene
	Behavior Behavior
	Health   HealthReader
	Display  Display
	Rand     *rand.Rand
	Logger   *zap.Logger
}

// Coordinator spawns agents, hands out targets and publishes health counters
// Single owner: every method must be called from the tick goroutine
type Coordinator struct {
	cfg      Config
	scene    Scene
	behavior Behavior
	health   HealthReader
	display  Display
	rng      *rand.Rand
	logger   *zap.Logger

	entrances   []core.Entity
	targetOrder []core.Entity               // discovery order, shuffled per allocation
	targets     map[core.Entity]core.Entity // target -> assigned agent, 0 when free
	agents      map[core.Entity]core.Entity // agent -> current target, 0 when none

	elapsed     float64
	tick        uint64
	counters    core.Counters
	initialized bool

	eventSinks   []EventSink
	counterSinks []CounterSink
}

// New creates a coordinator; call Initialize before the first Tick
func New(cfg Config, deps Deps) (*Coordinator, error) {
	if cfg.Shuffle == "" {
		cfg.Shuffle = ShuffleNaive
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Scene == nil || deps.Behavior == nil {
		return nil, fmt.Errorf("%w: scene and behavior are required", ErrInvalidConfig)
	}

	c := &Coordinator{
		cfg:      cfg,
		scene:    deps.Scene,
		behavior: deps.Behavior,
		health:   deps.Health,
		display:  deps.Display,
		rng:      deps.Rand,
		logger:   deps.Logger,
		targets:  make(map[core.Entity]core.Entity),
		agents:   make(map[core.Entity]core.Entity),
	}
	if c.health == nil {
		c.health = noHealth{}
	}
	if c.display == nil {
		c.display = nopDisplay{}
	}
	if c.rng == nil {
		seed := uint64(time.Now().UnixNano())
		c.rng = rand.New(rand.NewPCG(seed, seed>>1))
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	c.logger = c.logger.Named("coordinator")
	return c, nil
}

// AddEventSink registers an observer for bookkeeping events
func (c *Coordinator) AddEventSink(s EventSink) {
	c.eventSinks = append(c.eventSinks, s)
}

// AddCounterSink registers a consumer of per-tick counters
func (c *Coordinator) AddCounterSink(s CounterSink) {
	c.counterSinks = append(c.counterSinks, s)
}

// Initialize discovers entrances and targets, spawns the first agent and publishes counters
// The first spawn ignores the timer
func (c *Coordinator) Initialize() error {
	if c.initialized {
		return ErrAlreadyInitialized
	}

	c.entrances = c.scene.FindEntities(c.cfg.EntranceTag)
	if len(c.entrances) == 0 {
		return fmt.Errorf("%w: tag %q", ErrNoEntrances, c.cfg.EntranceTag)
	}

	for _, t := range c.scene.FindEntities(c.cfg.TargetTag) {
		if _, dup := c.targets[t]; dup {
			continue
		}
		c.targets[t] = 0
		c.targetOrder = append(c.targetOrder, t)
	}
	if len(c.targetOrder) < 2 {
		c.logger.Warn("too few targets, no agent can spawn",
			zap.Int("targets", len(c.targetOrder)))
	}

	c.initialized = true
	c.logger.Info("initialized",
		zap.Int("entrances", len(c.entrances)),
		zap.Int("targets", len(c.targetOrder)),
		zap.Int("capacity", c.Capacity()),
		zap.String("shuffle", string(c.cfg.Shuffle)))

	c.SpawnAgent(c.randomKind())
	c.UpdateCounters()
	return nil
}

// Tick advances the spawn timer by dt seconds and republishes counters
// On expiry the timer restarts from zero; overshoot is dropped
func (c *Coordinator) Tick(dt float64) {
	c.tick++
	c.elapsed += dt
	if c.elapsed >= c.cfg.SpawnInterval {
		c.elapsed = 0
		c.SpawnAgent(c.randomKind())
	}
	c.UpdateCounters()
}

// Priority implements engine.System
func (c *Coordinator) Priority() int { return engine.PrioritySpawn }

// Update implements engine.System
func (c *Coordinator) Update(dt time.Duration) { c.Tick(dt.Seconds()) }

// SpawnAgent instantiates an agent of kind at a random entrance
// Returns false without error when the scene is at capacity
func (c *Coordinator) SpawnAgent(kind string) (core.Entity, bool) {
	if len(c.entrances) == 0 {
		panic(fmt.Errorf("spawn %q: %w", kind, ErrNotInitialized))
	}
	if len(c.agents) >= c.Capacity() {
		c.emit(Event{Kind: EventRefused, AgentKind: kind})
		return 0, false
	}

	entrance := c.entrances[c.rng.IntN(len(c.entrances))]
	agent := c.scene.Instantiate(kind, c.scene.Position(entrance))

	// Registered before the behavior engine starts so an immediate target request resolves
	c.agents[agent] = 0
	c.behavior.SetEntrance(agent, entrance)
	c.behavior.Enable(agent)

	c.logger.Debug("agent spawned",
		zap.Uint64("agent", uint64(agent)),
		zap.Uint64("entrance", uint64(entrance)),
		zap.String("kind", kind))
	c.emit(Event{Kind: EventSpawned, Agent: agent, Entrance: entrance, AgentKind: kind})
	return agent, true
}

// AllocateTarget releases the agent's current target and assigns a different free one
// Returns false when no other target is free; the agent is then targetless
func (c *Coordinator) AllocateTarget(agent core.Entity) (core.Entity, bool) {
	last := c.mustTarget(agent, "allocate target")
	if last != 0 {
		c.targets[last] = 0
		c.agents[agent] = 0
		c.emit(Event{Kind: EventReleased, Agent: agent, Target: last})
	}

	candidates := make([]core.Entity, len(c.targetOrder))
	copy(candidates, c.targetOrder)
	shuffle(c.cfg.Shuffle, c.rng, candidates)

	for _, t := range candidates {
		if t == last {
			continue
		}
		if c.targets[t] != 0 {
			continue
		}
		c.targets[t] = agent
		c.agents[agent] = t
		c.emit(Event{Kind: EventAllocated, Agent: agent, Target: t})
		return t, true
	}

	c.emit(Event{Kind: EventStarved, Agent: agent, Target: last})
	return 0, false
}

// RemoveAgent frees the agent's target, forgets the agent and destroys its entity
func (c *Coordinator) RemoveAgent(agent core.Entity) {
	last := c.mustTarget(agent, "remove agent")
	if last != 0 {
		c.targets[last] = 0
	}
	delete(c.agents, agent)
	c.scene.Destroy(agent)

	c.logger.Debug("agent removed", zap.Uint64("agent", uint64(agent)))
	c.emit(Event{Kind: EventRemoved, Agent: agent, Target: last})
}

// UpdateCounters aggregates agent health and publishes it to the display and counter sinks
func (c *Coordinator) UpdateCounters() core.Counters {
	counters := core.Counters{Tick: c.tick, Agents: len(c.agents)}
	for agent := range c.agents {
		status, ok := c.health.HealthStatus(agent)
		if !ok {
			continue
		}
		switch status {
		case core.HealthCarrier:
			counters.Carriers++
		case core.HealthInfected:
			counters.Infected++
		}
	}

	// An empty scene reports 0% instead of NaN
	var ratio float32
	if counters.Agents > 0 {
		ratio = float32(counters.Infected) / float32(counters.Agents)
		counters.Fraction = float64(counters.Infected) / float64(counters.Agents)
	}

	c.display.SetText(core.FieldAgentCount, "Agents: "+strconv.Itoa(counters.Agents))
	c.display.SetText(core.FieldCarrierCount, "Carriers: "+strconv.Itoa(counters.Carriers))
	c.display.SetValue(core.FieldInfectedRatio, counters.Fraction)
	c.display.SetText(core.FieldInfectedText, FormatPercent(ratio))

	for _, s := range c.counterSinks {
		s.PublishCounters(counters)
	}
	c.counters = counters
	return counters
}

// FormatPercent renders a 0..1 ratio as the shortest float32 percentage, e.g. "25%"
func FormatPercent(ratio float32) string {
	return strconv.FormatFloat(float64(ratio*100), 'f', -1, 32) + "%"
}

// Capacity is the maximum number of live agents, one less than the target count
func (c *Coordinator) Capacity() int {
	return len(c.targetOrder) - 1
}

// AgentCount returns the number of live agents
func (c *Coordinator) AgentCount() int { return len(c.agents) }

// TargetCount returns the number of discovered targets
func (c *Coordinator) TargetCount() int { return len(c.targetOrder) }

// Elapsed returns seconds accumulated toward the next timed spawn
func (c *Coordinator) Elapsed() float64 { return c.elapsed }

// Counters returns the most recently published counters
func (c *Coordinator) Counters() core.Counters { return c.counters }

// CurrentTick returns the number of Tick calls so far
func (c *Coordinator) CurrentTick() uint64 { return c.tick }

// Entrances returns the discovered entrances
func (c *Coordinator) Entrances() []core.Entity {
	out := make([]core.Entity, len(c.entrances))
	copy(out, c.entrances)
	return out
}

// Assignment returns the agent's current target
func (c *Coordinator) Assignment(agent core.Entity) (core.Entity, bool) {
	t, ok := c.agents[agent]
	if !ok || t == 0 {
		return 0, false
	}
	return t, true
}

// Occupant returns the agent holding target
func (c *Coordinator) Occupant(target core.Entity) (core.Entity, bool) {
	a, ok := c.targets[target]
	if !ok || a == 0 {
		return 0, false
	}
	return a, true
}

// Targets returns all targets in discovery order
func (c *Coordinator) Targets() []core.Entity {
	out := make([]core.Entity, len(c.targetOrder))
	copy(out, c.targetOrder)
	return out
}

// CheckInvariants verifies capacity and that both maps agree
func (c *Coordinator) CheckInvariants() error {
	if len(c.targetOrder) > 0 && len(c.agents) > c.Capacity() {
		return fmt.Errorf("agents %d exceed capacity %d", len(c.agents), c.Capacity())
	}
	seen := make(map[core.Entity]core.Entity, len(c.targets))
	for t, a := range c.targets {
		if a == 0 {
			continue
		}
		if other, dup := seen[a]; dup {
			return fmt.Errorf("agent %d holds targets %d and %d", a, other, t)
		}
		seen[a] = t
		cur, ok := c.agents[a]
		if !ok {
			return fmt.Errorf("target %d assigned to unknown agent %d", t, a)
		}
		if cur != t {
			return fmt.Errorf("target %d assigned to agent %d whose target is %d", t, a, cur)
		}
	}
	for a, t := range c.agents {
		if t == 0 {
			continue
		}
		if c.targets[t] != a {
			return fmt.Errorf("agent %d points at target %d held by %d", a, t, c.targets[t])
		}
	}
	return nil
}

func (c *Coordinator) mustTarget(agent core.Entity, op string) core.Entity {
	t, ok := c.agents[agent]
	if !ok {
		panic(fmt.Errorf("%s %d: %w", op, agent, ErrUnknownAgent))
	}
	return t
}

func (c *Coordinator) randomKind() string {
	return c.cfg.Kinds[c.rng.IntN(len(c.cfg.Kinds))]
}

func (c *Coordinator) emit(ev Event) {
	ev.Tick = c.tick
	for _, s := range c.eventSinks {
		s.HandleEvent(ev)
	}
}
