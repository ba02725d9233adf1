package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lixenwraith/outbreak/coordinator"
	"github.com/lixenwraith/outbreak/core"
)

// Config is the full outbreak.yaml document
type Config struct {
	Spawn    SpawnSpec    `yaml:"spawn"`
	Scene    SceneSpec    `yaml:"scene"`
	Behavior BehaviorSpec `yaml:"behavior"`
	Render   RenderSpec   `yaml:"render"`
	Audio    AudioSpec    `yaml:"audio"`
	Journal  JournalSpec  `yaml:"journal"`
	Stats    StatsSpec    `yaml:"stats"`
	Metrics  MetricsSpec  `yaml:"metrics"`
	Observer ObserverSpec `yaml:"observer"`
}

type SpawnSpec struct {
	IntervalSec float64  `yaml:"interval_sec"`
	Kinds       []string `yaml:"kinds"`
	EntranceTag string   `yaml:"entrance_tag"`
	TargetTag   string   `yaml:"target_tag"`
	Shuffle     string   `yaml:"shuffle"`
	Seed        uint64   `yaml:"seed"`
}

type SceneSpec struct {
	Width     int         `yaml:"width"`
	Height    int         `yaml:"height"`
	Entrances []PointSpec `yaml:"entrances"`
	Targets   []PointSpec `yaml:"targets"`
}

type PointSpec struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

type BehaviorSpec struct {
	MoveMs        int     `yaml:"move_ms"`
	DwellMs       int     `yaml:"dwell_ms"`
	Visits        int     `yaml:"visits"`
	CarrierChance float64 `yaml:"carrier_chance"`
	InfectChance  float64 `yaml:"infect_chance"`
	InfectRadius  int     `yaml:"infect_radius"`
}

type RenderSpec struct {
	TickMs int    `yaml:"tick_ms"`
	Color  string `yaml:"color"`
}

type AudioSpec struct {
	Enabled    bool    `yaml:"enabled"`
	SampleRate int     `yaml:"sample_rate"`
	Volume     float64 `yaml:"volume"`
}

type JournalSpec struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

type StatsSpec struct {
	Enabled    bool   `yaml:"enabled"`
	Path       string `yaml:"path"`
	EveryTicks int    `yaml:"every_ticks"`
}

type MetricsSpec struct {
	Listen string `yaml:"listen"`
}

type ObserverSpec struct {
	Listen string `yaml:"listen"`
	PushMs int    `yaml:"push_ms"`
}

// Load reads path over the defaults; an empty path returns the defaults
func Load(path string) (Config, error) {
	cfg := Defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("outbreak.yaml: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("outbreak.yaml: %w", err)
	}
	return cfg, nil
}

// Defaults returns a small scene that runs out of the box
func Defaults() Config {
	return Config{
		Spawn: SpawnSpec{
			IntervalSec: 1.25,
			Kinds:       []string{"walker", "runner"},
			EntranceTag: "Entrance",
			TargetTag:   "Target",
			Shuffle:     string(coordinator.ShuffleNaive),
		},
		Scene: SceneSpec{
			Width:  60,
			Height: 20,
			Entrances: []PointSpec{
				{X: 0, Y: 10},
				{X: 59, Y: 10},
			},
			Targets: []PointSpec{
				{X: 10, Y: 3}, {X: 20, Y: 3}, {X: 30, Y: 3}, {X: 40, Y: 3}, {X: 50, Y: 3},
				{X: 10, Y: 16}, {X: 20, Y: 16}, {X: 30, Y: 16}, {X: 40, Y: 16}, {X: 50, Y: 16},
				{X: 30, Y: 10},
			},
		},
		Behavior: BehaviorSpec{
			MoveMs:        120,
			DwellMs:       1500,
			Visits:        3,
			CarrierChance: 0.15,
			InfectChance:  0.05,
			InfectRadius:  2,
		},
		Render: RenderSpec{
			TickMs: 50,
			Color:  "auto",
		},
		Audio: AudioSpec{
			Enabled:    false,
			SampleRate: 44100,
			Volume:     0.5,
		},
		Journal: JournalSpec{
			Enabled: false,
			Dir:     "./data/journal",
		},
		Stats: StatsSpec{
			Enabled:    false,
			Path:       "./data/stats.db",
			EveryTicks: 20,
		},
		Observer: ObserverSpec{
			PushMs: 250,
		},
	}
}

// Normalize fills derived and clamped values
func (c *Config) Normalize() {
	if c == nil {
		return
	}
	c.Spawn.Shuffle = strings.ToLower(strings.TrimSpace(c.Spawn.Shuffle))
	if c.Spawn.Shuffle == "" {
		c.Spawn.Shuffle = string(coordinator.ShuffleNaive)
	}
	kinds := c.Spawn.Kinds[:0]
	for _, k := range c.Spawn.Kinds {
		if k = strings.TrimSpace(k); k != "" {
			kinds = append(kinds, k)
		}
	}
	c.Spawn.Kinds = kinds

	if c.Behavior.Visits <= 0 {
		c.Behavior.Visits = 1
	}
	if c.Behavior.InfectRadius < 0 {
		c.Behavior.InfectRadius = 0
	}
	c.Behavior.CarrierChance = clamp01(c.Behavior.CarrierChance)
	c.Behavior.InfectChance = clamp01(c.Behavior.InfectChance)
	c.Audio.Volume = clamp01(c.Audio.Volume)
	if c.Stats.EveryTicks <= 0 {
		c.Stats.EveryTicks = 1
	}
	if c.Observer.PushMs <= 0 {
		c.Observer.PushMs = 250
	}
	c.Render.Color = strings.ToLower(strings.TrimSpace(c.Render.Color))
	if c.Render.Color == "" {
		c.Render.Color = "auto"
	}
}

// Validate reports the first value the scene cannot run with
func (c Config) Validate() error {
	if err := c.Coordinator().Validate(); err != nil {
		return err
	}
	if c.Scene.Width <= 0 || c.Scene.Height <= 0 {
		return fmt.Errorf("scene width and height must be > 0")
	}
	if len(c.Scene.Entrances) == 0 {
		return fmt.Errorf("scene must define at least one entrance")
	}
	if len(c.Scene.Targets) < 2 {
		return fmt.Errorf("scene must define at least two targets, one is always held in reserve")
	}
	seen := make(map[PointSpec]bool, len(c.Scene.Targets))
	for i, p := range c.Scene.Targets {
		if !c.inside(p) {
			return fmt.Errorf("scene.targets[%d] (%d,%d) outside %dx%d", i, p.X, p.Y, c.Scene.Width, c.Scene.Height)
		}
		if seen[p] {
			return fmt.Errorf("scene.targets[%d] duplicates (%d,%d)", i, p.X, p.Y)
		}
		seen[p] = true
	}
	for i, p := range c.Scene.Entrances {
		if !c.inside(p) {
			return fmt.Errorf("scene.entrances[%d] (%d,%d) outside %dx%d", i, p.X, p.Y, c.Scene.Width, c.Scene.Height)
		}
	}
	if c.Behavior.MoveMs <= 0 || c.Behavior.DwellMs < 0 {
		return fmt.Errorf("behavior move_ms must be > 0 and dwell_ms >= 0")
	}
	if c.Render.TickMs <= 0 {
		return fmt.Errorf("render tick_ms must be > 0")
	}
	switch c.Render.Color {
	case "auto", "256", "truecolor", "mono":
	default:
		return fmt.Errorf("render color %q must be auto, 256, truecolor or mono", c.Render.Color)
	}
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio sample_rate must be > 0")
	}
	if c.Journal.Enabled && strings.TrimSpace(c.Journal.Dir) == "" {
		return fmt.Errorf("journal dir must not be empty when enabled")
	}
	if c.Stats.Enabled && strings.TrimSpace(c.Stats.Path) == "" {
		return fmt.Errorf("stats path must not be empty when enabled")
	}
	return nil
}

// Coordinator projects the spawn section onto the coordinator's config
func (c Config) Coordinator() coordinator.Config {
	return coordinator.Config{
		SpawnInterval: c.Spawn.IntervalSec,
		Kinds:         c.Spawn.Kinds,
		EntranceTag:   c.Spawn.EntranceTag,
		TargetTag:     c.Spawn.TargetTag,
		Shuffle:       coordinator.ShuffleMode(c.Spawn.Shuffle),
	}
}

// Point converts a spec point to a grid point
func (p PointSpec) Point() core.Point {
	return core.Point{X: p.X, Y: p.Y}
}

func (c Config) inside(p PointSpec) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < c.Scene.Width && p.Y < c.Scene.Height
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
