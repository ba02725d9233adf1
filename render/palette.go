package render

import (
	"github.com/gdamore/tcell/v2"

	"github.com/lixenwraith/outbreak/core"
)

var (
	RgbBackground    = tcell.NewRGBColor(26, 27, 38) // Tokyo Night background
	RgbBorder        = tcell.NewRGBColor(90, 90, 110)
	RgbEntrance      = tcell.NewRGBColor(100, 150, 255)
	RgbTargetFree    = tcell.NewRGBColor(120, 120, 120)
	RgbTargetTaken   = tcell.NewRGBColor(255, 165, 0)
	RgbAgentHealthy  = tcell.NewRGBColor(50, 255, 50)
	RgbAgentCarrier  = tcell.NewRGBColor(255, 255, 0)
	RgbAgentInfected = tcell.NewRGBColor(255, 80, 80)
	RgbAgentUnknown  = tcell.NewRGBColor(200, 200, 200)
	RgbStatusText    = tcell.NewRGBColor(255, 255, 255)
	RgbSliderFill    = tcell.NewRGBColor(200, 50, 50)
	RgbSliderEmpty   = tcell.NewRGBColor(60, 60, 60)
	RgbPaused        = tcell.NewRGBColor(135, 206, 250)
)

const (
	glyphEntrance    = 'E'
	glyphTargetFree  = '○'
	glyphTargetTaken = '●'
	glyphAgent       = '@'
	glyphSliderFill  = '█'
	glyphSliderEmpty = '░'
)

// palette maps roles to styles; the mono palette keeps everything distinguishable without color
type palette struct {
	base, border, entrance, targetFree, targetTaken tcell.Style
	healthy, carrier, infected, unknown             tcell.Style
	text, sliderFill, sliderEmpty, paused           tcell.Style
}

func newPalette(color bool) palette {
	if !color {
		d := tcell.StyleDefault
		return palette{
			base: d, border: d, entrance: d.Bold(true), targetFree: d, targetTaken: d.Bold(true),
			healthy: d, carrier: d.Underline(true), infected: d.Reverse(true), unknown: d.Dim(true),
			text: d, sliderFill: d, sliderEmpty: d.Dim(true), paused: d.Reverse(true),
		}
	}
	bg := tcell.StyleDefault.Background(RgbBackground)
	return palette{
		base:        bg,
		border:      bg.Foreground(RgbBorder),
		entrance:    bg.Foreground(RgbEntrance).Bold(true),
		targetFree:  bg.Foreground(RgbTargetFree),
		targetTaken: bg.Foreground(RgbTargetTaken),
		healthy:     bg.Foreground(RgbAgentHealthy),
		carrier:     bg.Foreground(RgbAgentCarrier).Bold(true),
		infected:    bg.Foreground(RgbAgentInfected).Bold(true),
		unknown:     bg.Foreground(RgbAgentUnknown),
		text:        bg.Foreground(RgbStatusText),
		sliderFill:  bg.Foreground(RgbSliderFill),
		sliderEmpty: bg.Foreground(RgbSliderEmpty),
		paused:      tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(RgbPaused),
	}
}

func (p palette) agent(h core.HealthStatus, known bool) tcell.Style {
	if !known {
		return p.unknown
	}
	switch h {
	case core.HealthCarrier:
		return p.carrier
	case core.HealthInfected:
		return p.infected
	default:
		return p.healthy
	}
}
