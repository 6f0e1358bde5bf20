package experiment

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog"

	"github.com/meshkit/netbench/internal/mesh"
	"github.com/meshkit/netbench/internal/options"
	"github.com/meshkit/netbench/internal/transport"
)

var (
	ErrGroupNested = errors.New("experiment: a group is already open")
	ErrNoGroup     = errors.New("experiment: no group is open")
	ErrOpenGroup   = errors.New("experiment: a group is still open")
	ErrForeignCore = errors.New("experiment: core belongs to a different experiment")
	ErrNoSinks     = errors.New("experiment: flow needs at least one sink")
)

// Experiment accumulates a description of a network load experiment and
// drives it through compile, run, and decode.
type Experiment struct {
	tr      transport.Transport
	machine *mesh.Machine
	opts    *options.Resolver
	rng     *rand.Rand
	log     zerolog.Logger

	cores  []*Core
	flows  []*Flow
	groups []*Group
	cur    *Group

	placer      Placer
	placements  map[*Core]mesh.Location
	allocations map[*Core][]mesh.Span
	routes      map[*Flow]Route
}

func New(tr transport.Transport, machine *mesh.Machine) *Experiment {
	return &Experiment{
		tr:      tr,
		machine: machine,
		opts:    options.NewResolver(),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		log:     zerolog.Nop(),
	}
}

func (e *Experiment) Machine() *mesh.Machine { return e.machine }

// SetLogger routes progress logging through l. The default discards it.
func (e *Experiment) SetLogger(l zerolog.Logger) { e.log = l }

// SetRand replaces the source used for auto seeds and burst phases.
func (e *Experiment) SetRand(r *rand.Rand) { e.rng = r }

// SetPlacer replaces the placement strategy used by Prepare. The default
// is a zero SimplePlacer.
func (e *Experiment) SetPlacer(p Placer) { e.placer = p }

// NewCore registers a traffic core. An empty name is replaced with a
// generated one.
func (e *Experiment) NewCore(name string) *Core {
	if name == "" {
		name = "core-" + xid.New().String()
	}
	c := &Core{exp: e, name: name}
	e.cores = append(e.cores, c)
	e.invalidatePlan()
	return c
}

// NewFlow registers a flow from source to one or more sinks. All endpoints
// must belong to this experiment. A core may appear as both source and
// sink, including of the same flow.
func (e *Experiment) NewFlow(name string, source *Core, sinks ...*Core) (*Flow, error) {
	if source == nil || source.exp != e {
		return nil, fmt.Errorf("%w: source of %q", ErrForeignCore, name)
	}
	if len(sinks) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoSinks, name)
	}
	for _, s := range sinks {
		if s == nil || s.exp != e {
			return nil, fmt.Errorf("%w: sink of %q", ErrForeignCore, name)
		}
	}
	if name == "" {
		name = "flow-" + xid.New().String()
	}
	f := &Flow{exp: e, name: name, source: source, sinks: append([]*Core(nil), sinks...)}
	e.flows = append(e.flows, f)
	source.srcFlows = append(source.srcFlows, f)
	for _, s := range sinks {
		s.sinkFlows = append(s.sinkFlows, f)
	}
	e.invalidatePlan()
	return f, nil
}

// BeginGroup opens a new traffic group. Until EndGroup, option writes
// through Setting bind to it. Groups cannot nest.
func (e *Experiment) BeginGroup(name string) (*Group, error) {
	if e.cur != nil {
		return nil, fmt.Errorf("%w: %s", ErrGroupNested, e.cur.name)
	}
	if name == "" {
		name = fmt.Sprintf("group%d", len(e.groups))
	}
	g := &Group{exp: e, name: name, labels: map[string]any{}}
	e.groups = append(e.groups, g)
	e.cur = g
	return g, nil
}

func (e *Experiment) EndGroup() error {
	if e.cur == nil {
		return ErrNoGroup
	}
	e.cur = nil
	return nil
}

// Option returns an accessor for opt at experiment scope. While a group
// is open, writes land in that group's tier.
func (e *Experiment) Option(opt options.Option) Setting {
	return Setting{exp: e, opt: opt, useCur: true}
}

// SetPlacements installs an externally computed placement, bypassing the
// Placer on the next Prepare. Allocations and routes are derived unless
// SetRoutes is also called.
func (e *Experiment) SetPlacements(placements map[*Core]mesh.Location) {
	e.placements = placements
	e.allocations = nil
	e.routes = nil
}

// SetRoutes installs externally computed routes keyed by flow.
func (e *Experiment) SetRoutes(routes map[*Flow]Route) {
	e.routes = routes
}

// invalidatePlan drops any computed placement; registering cores or flows
// after planning forces a fresh solution.
func (e *Experiment) invalidatePlan() {
	e.placements = nil
	e.allocations = nil
	e.routes = nil
}

// Setting is a handle on one option at one scope. It is produced by the
// Option methods on Experiment, Core, Flow, and Group.
type Setting struct {
	exp    *Experiment
	opt    options.Option
	owner  any
	group  *Group
	useCur bool
}

func (s Setting) scope() (any, any) {
	g := s.group
	if s.useCur {
		g = s.exp.cur
	}
	var groupAny any
	if g != nil {
		groupAny = g
	}
	return groupAny, s.owner
}

// Set records a value for the option at this setting's scope.
func (s Setting) Set(value any) error {
	g, owner := s.scope()
	return s.exp.opts.Set(s.opt, value, g, owner)
}

// Get resolves the option at this setting's scope.
func (s Setting) Get() any {
	g, owner := s.scope()
	return s.exp.opts.Get(s.opt, g, owner)
}
