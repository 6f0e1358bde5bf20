package experiment

import (
	"errors"
	"fmt"

	"github.com/meshkit/netbench/internal/mesh"
)

var ErrNoRoom = errors.New("experiment: machine cannot fit the experiment")

// Route describes the path a flow takes through the mesh. Result tables
// only consume the hop count.
type Route interface {
	NumHops() int
}

// Plan is a complete placement solution.
type Plan struct {
	Locations   map[*Core]mesh.Location
	Allocations map[*Core][]mesh.Span
	Routes      map[*Flow]Route
}

// Placer maps cores to processors and flows to routes. demands gives the
// processor count each core needs; pins lists hard chip constraints.
type Placer interface {
	Place(machine *mesh.Machine, demands map[*Core]int, flows []*Flow, pins map[*Core]mesh.Coord) (*Plan, error)
}

// SimplePlacer packs cores onto chips first-fit in row-major chip order.
// Pinned cores land first; routes are straight-line hop counts, not real
// paths.
type SimplePlacer struct {
	// CoresPerChip caps occupancy per chip. Zero means 16.
	CoresPerChip int
}

func (p SimplePlacer) Place(machine *mesh.Machine, demands map[*Core]int, flows []*Flow, pins map[*Core]mesh.Coord) (*Plan, error) {
	capacity := p.CoresPerChip
	if capacity <= 0 {
		capacity = 16
	}

	plan := &Plan{
		Locations:   make(map[*Core]mesh.Location, len(demands)),
		Allocations: make(map[*Core][]mesh.Span, len(demands)),
		Routes:      make(map[*Flow]Route, len(flows)),
	}
	used := make(map[mesh.Coord]int)

	place := func(c *Core, chip mesh.Coord) error {
		demand := demands[c]
		if demand <= 0 {
			demand = 1
		}
		if used[chip]+demand > capacity {
			return fmt.Errorf("%w: chip %s is full", ErrNoRoom, chip)
		}
		// processors are numbered from 1; 0 is reserved for the
		// monitor on every chip
		start := used[chip] + 1
		used[chip] += demand
		plan.Locations[c] = mesh.Location{X: chip.X, Y: chip.Y, P: start}
		plan.Allocations[c] = []mesh.Span{{Start: start, End: start + demand}}
		return nil
	}

	ordered := orderedCores(demands)
	for _, c := range ordered {
		chip, ok := pins[c]
		if !ok {
			continue
		}
		if !machine.HasChip(chip) {
			return nil, fmt.Errorf("%w: %s pinned to missing chip %s", ErrNoRoom, c, chip)
		}
		if err := place(c, chip); err != nil {
			return nil, err
		}
	}

	chips := machine.Chips()
	next := 0
	for _, c := range ordered {
		if _, ok := pins[c]; ok {
			continue
		}
		for next < len(chips) && used[chips[next]] >= capacity {
			next++
		}
		if next == len(chips) {
			return nil, fmt.Errorf("%w: %d cores over %d chips", ErrNoRoom, len(demands), len(chips))
		}
		if err := place(c, chips[next]); err != nil {
			return nil, err
		}
	}

	for _, f := range flows {
		plan.Routes[f] = routeFor(f, plan.Locations)
	}
	return plan, nil
}

// orderedCores restores registration order from the demand map key set.
func orderedCores(demands map[*Core]int) []*Core {
	var exp *Experiment
	for c := range demands {
		exp = c.exp
		break
	}
	if exp == nil {
		return nil
	}
	ordered := make([]*Core, 0, len(demands))
	for _, c := range exp.cores {
		if _, ok := demands[c]; ok {
			ordered = append(ordered, c)
		}
	}
	return ordered
}

// routeFor measures the longest source-to-sink branch of a flow.
func routeFor(f *Flow, locs map[*Core]mesh.Location) Route {
	src, ok := locs[f.source]
	if !ok {
		return nil
	}
	longest := 0
	for _, sink := range f.sinks {
		loc, ok := locs[sink]
		if !ok {
			return nil
		}
		if d := mesh.Distance(src.Chip(), loc.Chip()); d > longest {
			longest = d
		}
	}
	return mesh.Path{Hops: longest}
}
