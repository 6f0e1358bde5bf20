package experiment

import (
	"github.com/meshkit/netbench/internal/mesh"
	"github.com/meshkit/netbench/internal/options"
)

// Core is one traffic endpoint, mapped to a single processor at placement.
type Core struct {
	exp  *Experiment
	name string
	pin  *mesh.Coord

	srcFlows  []*Flow
	sinkFlows []*Flow

	// hidden cores exist only to read per-chip counters and carry no
	// flows of their own
	hidden bool
}

func (c *Core) Name() string   { return c.name }
func (c *Core) String() string { return c.name }

// Pin constrains placement to a specific chip.
func (c *Core) Pin(chip mesh.Coord) {
	pin := chip
	c.pin = &pin
	c.exp.invalidatePlan()
}

// Option returns an accessor for opt scoped to this core. While a group
// is open, writes land in the (group, core) tier.
func (c *Core) Option(opt options.Option) Setting {
	return Setting{exp: c.exp, opt: opt, owner: c, useCur: true}
}

// Flows returns the flows sourced and sunk here, in registration order.
func (c *Core) Flows() (sources, sinks []*Flow) {
	return append([]*Flow(nil), c.srcFlows...), append([]*Flow(nil), c.sinkFlows...)
}

// Flow is a stream of packets from one source core to a fixed sink set.
type Flow struct {
	exp    *Experiment
	name   string
	source *Core
	sinks  []*Core
	key    uint32
}

func (f *Flow) Name() string   { return f.name }
func (f *Flow) String() string { return f.name }
func (f *Flow) Source() *Core  { return f.source }

func (f *Flow) Sinks() []*Core { return append([]*Core(nil), f.sinks...) }

// FanOut is the number of sinks the flow delivers each packet to.
func (f *Flow) FanOut() int { return len(f.sinks) }

// Key is the routing key assigned at compile time, zero before Prepare.
func (f *Flow) Key() uint32 { return f.key }

// OptionSource lets flow-scoped option values outrank values scoped to
// the flow's source core.
func (f *Flow) OptionSource() any { return f.source }

// Option returns an accessor for opt scoped to this flow. While a group
// is open, writes land in the (group, flow) tier.
func (f *Flow) Option(opt options.Option) Setting {
	return Setting{exp: f.exp, opt: opt, owner: f, useCur: true}
}

// Group is one consecutive traffic phase. Groups run in creation order.
type Group struct {
	exp       *Experiment
	name      string
	labelKeys []string
	labels    map[string]any
}

func (g *Group) Name() string   { return g.name }
func (g *Group) String() string { return g.name }

// AddLabel attaches a value that reappears as a column in every result
// table, keyed per group. Setting a key again overwrites its value and
// keeps its original column position.
func (g *Group) AddLabel(key string, value any) {
	if _, ok := g.labels[key]; !ok {
		g.labelKeys = append(g.labelKeys, key)
	}
	g.labels[key] = value
}

// Label reports the value attached under key, if any.
func (g *Group) Label(key string) (any, bool) {
	v, ok := g.labels[key]
	return v, ok
}

// Option returns an accessor for opt bound to this group, whether or not
// the group is still open.
func (g *Group) Option(opt options.Option) Setting {
	return Setting{exp: g.exp, opt: opt, group: g}
}
