package render

import (
	"strings"
	"testing"

	"github.com/gdamore/tcell/v2"

	"github.com/lixenwraith/outbreak/core"
	"github.com/lixenwraith/outbreak/scene"
	"github.com/lixenwraith/outbreak/status"
)

type fakeOccupancy map[core.Entity]core.Entity

func (f fakeOccupancy) Occupant(target core.Entity) (core.Entity, bool) {
	a, ok := f[target]
	return a, ok
}

type rig struct {
	screen tcell.SimulationScreen
	scene  *scene.Scene
	occ    fakeOccupancy
	reg    *status.Registry
	hud    *status.HUD
	r      *Renderer
}

func newRig(t *testing.T, color bool) *rig {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatalf("screen init: %v", err)
	}
	t.Cleanup(screen.Fini)
	screen.SetSize(40, 12)

	s := scene.New(10, 5)
	reg := status.NewRegistry()
	hud := status.NewHUD(reg)
	occ := fakeOccupancy{}
	r := New(screen, s, occ, reg, hud, Options{EntranceTag: "Entrance", TargetTag: "Target", Color: color})
	return &rig{screen: screen, scene: s, occ: occ, reg: reg, hud: hud, r: r}
}

func (g *rig) cell(x, y int) (rune, tcell.Style) {
	ch, _, style, _ := g.screen.GetContent(x, y)
	return ch, style
}

func (g *rig) row(y, from, n int) string {
	out := make([]rune, 0, n)
	for x := from; x < from+n; x++ {
		ch, _ := g.cell(x, y)
		out = append(out, ch)
	}
	return string(out)
}

func TestDrawSceneGlyphs(t *testing.T) {
	g := newRig(t, true)
	g.scene.Place("Entrance", core.Point{X: 0, Y: 2})
	g.scene.Place("Target", core.Point{X: 4, Y: 1})
	taken := g.scene.Place("Target", core.Point{X: 6, Y: 1})
	agent := g.scene.Instantiate("walker", core.Point{X: 3, Y: 3})
	g.scene.SetHealth(agent, core.HealthInfected)
	g.occ[taken] = agent

	g.r.Draw()

	if ch, _ := g.cell(1, 3); ch != glyphEntrance {
		t.Errorf("entrance cell = %q", ch)
	}
	if ch, _ := g.cell(5, 2); ch != glyphTargetFree {
		t.Errorf("free target cell = %q", ch)
	}
	if ch, _ := g.cell(7, 2); ch != glyphTargetTaken {
		t.Errorf("taken target cell = %q", ch)
	}
	ch, style := g.cell(4, 4)
	if ch != glyphAgent {
		t.Fatalf("agent cell = %q", ch)
	}
	if fg, _, _ := style.Decompose(); fg != RgbAgentInfected {
		t.Errorf("infected agent fg = %v, want %v", fg, RgbAgentInfected)
	}
	if ch, _ := g.cell(0, 0); ch != tcell.RuneULCorner {
		t.Errorf("border corner = %q", ch)
	}
	if ch, _ := g.cell(11, 6); ch != tcell.RuneLRCorner {
		t.Errorf("far border corner = %q", ch)
	}
}

func TestDrawHUD(t *testing.T) {
	g := newRig(t, false)
	g.hud.SetText(core.FieldAgentCount, "Agents: 4")
	g.hud.SetText(core.FieldCarrierCount, "Carriers: 2")
	g.hud.SetText(core.FieldInfectedText, "25%")
	g.hud.SetValue(core.FieldInfectedRatio, 0.25)

	g.r.Draw()

	// Grid is 5 rows inside a border, HUD sits below it
	const y = 7
	prefix := "Agents: 4  Carriers: 2  ["
	if got := g.row(y, 0, len([]rune(prefix))); got != prefix {
		t.Fatalf("HUD prefix = %q", got)
	}
	start := len([]rune(prefix))
	filled := 0
	for x := start; x < start+SliderWidth; x++ {
		if ch, _ := g.cell(x, y); ch == glyphSliderFill {
			filled++
		}
	}
	if filled != 5 {
		t.Errorf("slider filled cells = %d, want 5", filled)
	}
	if got := g.row(y, start+SliderWidth, 5); got != "] 25%" {
		t.Errorf("HUD suffix = %q", got)
	}
}

func TestDrawPausedAndMutedFlags(t *testing.T) {
	g := newRig(t, true)
	g.hud.SetText(core.FieldInfectedText, "0%")
	g.reg.Bools.Get("engine.paused").Store(true)
	g.reg.Bools.Get("audio.muted").Store(true)

	g.r.Draw()

	line := g.row(7, 0, 40)
	if !strings.Contains(line, "PAUSED MUTED") {
		t.Errorf("HUD line %q lacks flags", line)
	}
}

func TestFlagsFollowOptionFuncs(t *testing.T) {
	g := newRig(t, true)
	paused := false
	g.r = New(g.screen, g.scene, g.occ, g.reg, g.hud, Options{
		EntranceTag: "Entrance",
		TargetTag:   "Target",
		Color:       true,
		Paused:      func() bool { return paused },
		Muted:       func() bool { return false },
	})
	// Registry cells are ignored once funcs are supplied
	g.reg.Bools.Get("audio.muted").Store(true)

	g.r.Draw()
	if line := g.row(7, 0, 40); strings.Contains(line, "PAUSED") || strings.Contains(line, "MUTED") {
		t.Fatalf("unexpected flags in %q", line)
	}

	paused = true
	g.r.Draw()
	line := g.row(7, 0, 40)
	if !strings.Contains(line, "PAUSED") || strings.Contains(line, "MUTED") {
		t.Errorf("HUD line %q, want PAUSED only", line)
	}
}

func TestSliderCells(t *testing.T) {
	cases := map[float64]int{-1: 0, 0: 0, 0.02: 0, 0.03: 1, 0.5: 10, 1: SliderWidth, 3: SliderWidth}
	for in, want := range cases {
		if got := sliderCells(in); got != want {
			t.Errorf("sliderCells(%v) = %d, want %d", in, got, want)
		}
	}
}

func TestTranslate(t *testing.T) {
	cases := []struct {
		ev   tcell.Event
		want Action
	}{
		{tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone), ActionQuit},
		{tcell.NewEventKey(tcell.KeyRune, 'q', tcell.ModNone), ActionQuit},
		{tcell.NewEventKey(tcell.KeyRune, ' ', tcell.ModNone), ActionPause},
		{tcell.NewEventKey(tcell.KeyRune, 'm', tcell.ModNone), ActionMute},
		{tcell.NewEventKey(tcell.KeyRune, 'x', tcell.ModNone), ActionNone},
		{tcell.NewEventResize(80, 24), ActionResize},
	}
	for _, tc := range cases {
		if got := Translate(tc.ev); got != tc.want {
			t.Errorf("Translate(%T) = %v, want %v", tc.ev, got, tc.want)
		}
	}
}
