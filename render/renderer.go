// Package render draws the scene and HUD to a tcell screen
package render

import (
	"math"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/lixenwraith/outbreak/core"
	"github.com/lixenwraith/outbreak/engine"
	"github.com/lixenwraith/outbreak/status"
)

// SliderWidth is the cell width of the infected-fraction bar
const SliderWidth = 20

// SceneView is the read side of the scene the renderer draws
type SceneView interface {
	FindEntities(tag string) []core.Entity
	Position(e core.Entity) core.Point
	Agents() []core.Entity
	HealthStatus(e core.Entity) (core.HealthStatus, bool)
	Size() (int, int)
}

// Occupancy reports which targets are held
type Occupancy interface {
	Occupant(target core.Entity) (core.Entity, bool)
}

type Options struct {
	EntranceTag string
	TargetTag   string
	Color       bool

	// Paused and Muted drive the HUD flags; nil reads engine.paused and audio.muted
	Paused func() bool
	Muted  func() bool
}

// Renderer is the last system in the frame, it reads the scene on the loop goroutine
type Renderer struct {
	screen tcell.Screen
	scene  SceneView
	occ    Occupancy
	hud    *status.HUD
	opts   Options
	pal    palette

	paused func() bool
	muted  func() bool
}

func New(screen tcell.Screen, scene SceneView, occ Occupancy, reg *status.Registry, hud *status.HUD, opts Options) *Renderer {
	r := &Renderer{
		screen: screen,
		scene:  scene,
		occ:    occ,
		hud:    hud,
		opts:   opts,
		pal:    newPalette(opts.Color),
		paused: opts.Paused,
		muted:  opts.Muted,
	}
	if r.paused == nil {
		r.paused = reg.Bools.Get("engine.paused").Load
	}
	if r.muted == nil {
		r.muted = reg.Bools.Get("audio.muted").Load
	}
	return r
}

// Priority implements engine.System
func (r *Renderer) Priority() int { return engine.PriorityRender }

// Update implements engine.System
func (r *Renderer) Update(time.Duration) { r.Draw() }

// Draw renders one full frame; the grid sits inside a one-cell border at (1,1)
func (r *Renderer) Draw() {
	r.screen.SetStyle(r.pal.base)
	r.screen.Clear()

	w, h := r.scene.Size()
	r.drawBorder(w, h)

	for _, e := range r.scene.FindEntities(r.opts.EntranceTag) {
		r.put(r.scene.Position(e), glyphEntrance, r.pal.entrance)
	}
	for _, e := range r.scene.FindEntities(r.opts.TargetTag) {
		if _, held := r.occ.Occupant(e); held {
			r.put(r.scene.Position(e), glyphTargetTaken, r.pal.targetTaken)
		} else {
			r.put(r.scene.Position(e), glyphTargetFree, r.pal.targetFree)
		}
	}
	for _, a := range r.scene.Agents() {
		hs, ok := r.scene.HealthStatus(a)
		r.put(r.scene.Position(a), glyphAgent, r.pal.agent(hs, ok))
	}

	r.drawHUD(h + 2)
	r.screen.Show()
}

// Sync redraws after a terminal resize
func (r *Renderer) Sync() {
	r.screen.Sync()
}

func (r *Renderer) put(p core.Point, ch rune, style tcell.Style) {
	r.screen.SetContent(p.X+1, p.Y+1, ch, nil, style)
}

func (r *Renderer) drawBorder(w, h int) {
	s := r.pal.border
	for x := 1; x <= w; x++ {
		r.screen.SetContent(x, 0, tcell.RuneHLine, nil, s)
		r.screen.SetContent(x, h+1, tcell.RuneHLine, nil, s)
	}
	for y := 1; y <= h; y++ {
		r.screen.SetContent(0, y, tcell.RuneVLine, nil, s)
		r.screen.SetContent(w+1, y, tcell.RuneVLine, nil, s)
	}
	r.screen.SetContent(0, 0, tcell.RuneULCorner, nil, s)
	r.screen.SetContent(w+1, 0, tcell.RuneURCorner, nil, s)
	r.screen.SetContent(0, h+1, tcell.RuneLLCorner, nil, s)
	r.screen.SetContent(w+1, h+1, tcell.RuneLRCorner, nil, s)
}

func (r *Renderer) drawHUD(y int) {
	snap := r.hud.Snapshot()

	x := r.text(0, y, snap.AgentText+"  "+snap.CarrierText+"  ", r.pal.text)

	filled := sliderCells(snap.Fraction)
	x = r.text(x, y, "[", r.pal.text)
	for i := 0; i < SliderWidth; i++ {
		if i < filled {
			r.screen.SetContent(x, y, glyphSliderFill, nil, r.pal.sliderFill)
		} else {
			r.screen.SetContent(x, y, glyphSliderEmpty, nil, r.pal.sliderEmpty)
		}
		x++
	}
	x = r.text(x, y, "] "+snap.PercentText, r.pal.text)

	var flags []string
	if r.paused() {
		flags = append(flags, "PAUSED")
	}
	if r.muted() {
		flags = append(flags, "MUTED")
	}
	if len(flags) > 0 {
		r.text(x+2, y, " "+strings.Join(flags, " ")+" ", r.pal.paused)
	}
}

func (r *Renderer) text(x, y int, s string, style tcell.Style) int {
	for _, ch := range s {
		r.screen.SetContent(x, y, ch, nil, style)
		x++
	}
	return x
}

// sliderCells converts a fraction to filled slider cells
func sliderCells(fraction float64) int {
	if math.IsNaN(fraction) || fraction <= 0 {
		return 0
	}
	if fraction >= 1 {
		return SliderWidth
	}
	return int(math.Round(fraction * SliderWidth))
}
