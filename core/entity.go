package core

// Entity is a stable handle issued by the scene
// Zero is never issued and means "none"
type Entity uint64

// Point represents a 2D grid coordinate
type Point struct {
	X, Y int
}

// Step returns a single-cell move from p toward dst, one axis at a time
// X is resolved before Y so paths are predictable on the grid
func (p Point) Step(dst Point) Point {
	switch {
	case p.X < dst.X:
		return Point{X: p.X + 1, Y: p.Y}
	case p.X > dst.X:
		return Point{X: p.X - 1, Y: p.Y}
	case p.Y < dst.Y:
		return Point{X: p.X, Y: p.Y + 1}
	case p.Y > dst.Y:
		return Point{X: p.X, Y: p.Y - 1}
	}
	return p
}

// ChebyshevDist returns the king-move distance between two points
func ChebyshevDist(a, b Point) int {
	dx := a.X - b.X
	if dx < 0 {
		dx = -dx
	}
	dy := a.Y - b.Y
	if dy < 0 {
		dy = -dy
	}
	if dx > dy {
		return dx
	}
	return dy
}
