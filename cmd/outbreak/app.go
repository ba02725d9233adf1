package main

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/lixenwraith/outbreak/audio"
	"github.com/lixenwraith/outbreak/behavior"
	"github.com/lixenwraith/outbreak/config"
	"github.com/lixenwraith/outbreak/coordinator"
	"github.com/lixenwraith/outbreak/core"
	"github.com/lixenwraith/outbreak/engine"
	"github.com/lixenwraith/outbreak/journal"
	"github.com/lixenwraith/outbreak/metrics"
	"github.com/lixenwraith/outbreak/observer"
	"github.com/lixenwraith/outbreak/scene"
	"github.com/lixenwraith/outbreak/statsdb"
	"github.com/lixenwraith/outbreak/status"
)

// app owns every component of one run
type app struct {
	cfg    config.Config
	runID  string
	seed   uint64
	logger *zap.Logger

	reg      *status.Registry
	hud      *status.HUD
	scene    *scene.Scene
	behavior *behavior.Engine
	coord    *coordinator.Coordinator
	loop     *engine.Loop

	metrics  *metrics.Collector
	journal  *journal.Journal
	stats    *statsdb.DB
	recorder *statsdb.Recorder
	player   *audio.Player
	observer *observer.Server

	events map[coordinator.EventKind]uint64 // tick goroutine only
}

func newApp(cfg config.Config, seed uint64, logger *zap.Logger) (*app, error) {
	if seed == 0 {
		seed = cfg.Spawn.Seed
	}
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	runID := uuid.NewString()
	a := &app{
		cfg:    cfg,
		runID:  runID,
		seed:   seed,
		logger: logger.With(zap.String("run", runID)),
		reg:    status.NewRegistry(),
		events: make(map[coordinator.EventKind]uint64),
	}
	a.hud = status.NewHUD(a.reg)

	layout := scene.Layout{
		Width:       cfg.Scene.Width,
		Height:      cfg.Scene.Height,
		EntranceTag: cfg.Spawn.EntranceTag,
		TargetTag:   cfg.Spawn.TargetTag,
	}
	for _, p := range cfg.Scene.Entrances {
		layout.Entrances = append(layout.Entrances, p.Point())
	}
	for _, p := range cfg.Scene.Targets {
		layout.Targets = append(layout.Targets, p.Point())
	}
	a.scene = scene.Build(layout)

	a.behavior = behavior.New(behavior.Config{
		MoveInterval:  time.Duration(cfg.Behavior.MoveMs) * time.Millisecond,
		Dwell:         time.Duration(cfg.Behavior.DwellMs) * time.Millisecond,
		Visits:        cfg.Behavior.Visits,
		CarrierChance: cfg.Behavior.CarrierChance,
		InfectChance:  cfg.Behavior.InfectChance,
		InfectRadius:  cfg.Behavior.InfectRadius,
	}, a.scene, rand.New(rand.NewPCG(seed, 2)), a.logger)

	collector, err := metrics.NewCollector(prometheus.NewRegistry())
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	a.metrics = collector

	a.coord, err = coordinator.New(cfg.Coordinator(), coordinator.Deps{
		Scene:    a.scene,
		Behavior: a.behavior,
		Health:   a.scene,
		Display:  metrics.NewDisplay(collector, a.hud),
		Rand:     rand.New(rand.NewPCG(seed, 1)),
		Logger:   a.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("coordinator: %w", err)
	}
	a.behavior.SetDirector(a.coord)

	a.coord.AddCounterSink(a.hud)
	a.coord.AddCounterSink(collector)
	a.coord.AddEventSink(collector)
	a.coord.AddEventSink(coordinator.EventSinkFunc(func(ev coordinator.Event) {
		a.events[ev.Kind]++
	}))

	if cfg.Journal.Enabled {
		a.journal = journal.New(cfg.Journal.Dir, a.runID, a.logger)
		a.coord.AddEventSink(a.journal)
	}
	if cfg.Stats.Enabled {
		if a.stats, err = statsdb.Open(cfg.Stats.Path, a.logger); err != nil {
			a.Close()
			return nil, fmt.Errorf("stats: %w", err)
		}
		a.stats.StartRun(statsdb.RunInfo{
			RunID:         a.runID,
			StartedAt:     time.Now(),
			Seed:          seed,
			Shuffle:       cfg.Spawn.Shuffle,
			SpawnInterval: cfg.Spawn.IntervalSec,
			Entrances:     len(cfg.Scene.Entrances),
			Targets:       len(cfg.Scene.Targets),
		})
		a.recorder = statsdb.NewRecorder(a.stats, a.runID, cfg.Stats.EveryTicks)
		a.coord.AddCounterSink(a.recorder)
		a.coord.AddEventSink(a.recorder)
	}

	a.player = audio.NewPlayer(audio.Config{SampleRate: cfg.Audio.SampleRate, Volume: cfg.Audio.Volume}, a.reg, a.logger)
	a.coord.AddEventSink(a.player)

	a.observer = observer.NewServer(a.hud, time.Duration(cfg.Observer.PushMs)*time.Millisecond, a.logger).WithRegistry(a.reg)

	a.loop = engine.NewLoop(engine.NewMonotonicTimeProvider(), time.Duration(cfg.Render.TickMs)*time.Millisecond, a.reg, a.logger)
	a.loop.AddSystem(a.coord)
	a.loop.AddSystem(a.behavior)

	if err := a.coord.Initialize(); err != nil {
		a.Close()
		return nil, err
	}
	a.logger.Info("run started", zap.Uint64("seed", seed), zap.Int("capacity", a.coord.Capacity()))
	return a, nil
}

// startServers launches the configured HTTP endpoints; they stop with ctx
func (a *app) startServers(ctx context.Context) {
	if addr := a.cfg.Metrics.Listen; addr != "" {
		core.Go(func() {
			if err := a.metrics.Serve(ctx, addr, a.logger); err != nil {
				a.logger.Error("metrics server stopped", zap.Error(err))
			}
		})
	}
	if addr := a.cfg.Observer.Listen; addr != "" {
		core.Go(func() {
			if err := a.observer.Serve(ctx, addr); err != nil {
				a.logger.Error("observer server stopped", zap.Error(err))
			}
		})
	}
}

// runHeadless steps the loop ticks times at the configured interval without waiting
func (a *app) runHeadless(ctx context.Context, ticks int, out io.Writer) error {
	interval := a.loop.Interval()
	for i := 0; i < ticks; i++ {
		if ctx.Err() != nil {
			break
		}
		a.loop.Step(interval)
	}
	if err := a.coord.CheckInvariants(); err != nil {
		return fmt.Errorf("after %d ticks: %w", a.loop.Ticks(), err)
	}
	if n, m := a.scene.AgentCount(), a.coord.AgentCount(); n != m {
		return fmt.Errorf("after %d ticks: scene holds %d agents, coordinator tracks %d", a.loop.Ticks(), n, m)
	}
	a.writeSummary(out)
	return nil
}

func (a *app) writeSummary(out io.Writer) {
	snap := a.hud.Snapshot()
	fmt.Fprintf(out, "run %s seed %d\n", a.runID, a.seed)
	fmt.Fprintf(out, "ticks %d, capacity %d, targets %d\n", a.loop.Ticks(), a.coord.Capacity(), a.coord.TargetCount())
	fmt.Fprintf(out, "%s, %s, infected %d (%s)\n", snap.AgentText, snap.CarrierText, snap.Infected, snap.PercentText)
	for _, kind := range []coordinator.EventKind{
		coordinator.EventSpawned, coordinator.EventRefused, coordinator.EventStarved, coordinator.EventRemoved,
	} {
		fmt.Fprintf(out, "%s %d\n", kind, a.events[kind])
	}
}

// Close flushes the run records; safe on a partially built app
func (a *app) Close() {
	if a.recorder != nil {
		a.recorder.Finish()
		a.recorder = nil
	}
	if a.stats != nil {
		if err := a.stats.Close(); err != nil {
			a.logger.Warn("stats close", zap.Error(err))
		}
	}
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.logger.Warn("journal close", zap.Error(err))
		}
	}
	if a.player != nil {
		a.player.Close()
	}
	if a.coord != nil {
		a.logger.Info("run finished", zap.Uint64("ticks", a.coord.CurrentTick()))
	}
}
