package mesh

import "fmt"

// Coord identifies one chip in the mesh.
type Coord struct {
	X int
	Y int
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d, %d)", c.X, c.Y)
}

// Location is one processor on one chip.
type Location struct {
	X int
	Y int
	P int
}

func (l Location) Chip() Coord {
	return Coord{X: l.X, Y: l.Y}
}

func (l Location) String() string {
	return fmt.Sprintf("(%d, %d, %d)", l.X, l.Y, l.P)
}

// Span is a half-open [Start, End) range of allocated resource units.
// Allocations may consist of several disjoint spans.
type Span struct {
	Start int
	End   int
}

func (s Span) Len() int {
	return s.End - s.Start
}

// Machine describes the usable extent of the target mesh.
type Machine struct {
	Width  int
	Height int

	// DeadChips marks coordinates that exist in the extent but must not
	// be used.
	DeadChips map[Coord]bool
}

func NewMachine(width, height int) *Machine {
	return &Machine{Width: width, Height: height, DeadChips: map[Coord]bool{}}
}

func (m *Machine) HasChip(c Coord) bool {
	if c.X < 0 || c.Y < 0 || c.X >= m.Width || c.Y >= m.Height {
		return false
	}
	return !m.DeadChips[c]
}

// Chips lists every usable chip, x-major then y, so callers iterating the
// machine do so in one deterministic order.
func (m *Machine) Chips() []Coord {
	chips := make([]Coord, 0, m.Width*m.Height)
	for x := 0; x < m.Width; x++ {
		for y := 0; y < m.Height; y++ {
			c := Coord{X: x, Y: y}
			if !m.DeadChips[c] {
				chips = append(chips, c)
			}
		}
	}
	return chips
}

// Path is a routing path reduced to the figure the result tables need.
type Path struct {
	Hops int
}

func (p Path) NumHops() int {
	return p.Hops
}

// Distance is the link count between two chips on a non-wrapping grid.
func Distance(a, b Coord) int {
	dx := a.X - b.X
	if dx < 0 {
		dx = -dx
	}
	dy := a.Y - b.Y
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}
