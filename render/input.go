package render

import "github.com/gdamore/tcell/v2"

// Action is what a terminal event asks the command to do
type Action uint8

const (
	ActionNone Action = iota
	ActionQuit
	ActionPause
	ActionMute
	ActionResize
)

// Translate maps a tcell event to an Action
func Translate(ev tcell.Event) Action {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			return ActionQuit
		case tcell.KeyRune:
			switch ev.Rune() {
			case 'q', 'Q':
				return ActionQuit
			case ' ':
				return ActionPause
			case 'm', 'M':
				return ActionMute
			}
		}
	case *tcell.EventResize:
		return ActionResize
	}
	return ActionNone
}
