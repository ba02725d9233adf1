package engine

import "time"

// Priorities for the standard systems, lower runs first
const (
	PrioritySpawn    = 10
	PriorityBehavior = 20
	PriorityRender   = 90
)

// System is a unit of per-tick work driven by the Loop
type System interface {
	Priority() int
	Update(dt time.Duration)
}

// SystemFunc adapts a function to System
type SystemFunc struct {
	P  int
	Fn func(dt time.Duration)
}

// Priority implements System
func (s SystemFunc) Priority() int { return s.P }

// Update implements System
func (s SystemFunc) Update(dt time.Duration) { s.Fn(dt) }
