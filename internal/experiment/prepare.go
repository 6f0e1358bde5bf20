package experiment

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/meshkit/netbench/internal/counters"
	"github.com/meshkit/netbench/internal/mesh"
	"github.com/meshkit/netbench/internal/observability"
	"github.com/meshkit/netbench/internal/options"
	"github.com/meshkit/netbench/internal/program"
)

var ErrUnplaced = errors.New("experiment: core has no placement")

// Record identifies one column of a core's result matrix. The counter
// category decides which extra field is meaningful: Flow for source and
// sink counters, Chip for per-chip counters, neither for permanent ones.
type Record struct {
	Counter counters.Counter
	Flow    *Flow
	Chip    mesh.Coord
}

// Prepared carries everything derived from an experiment description:
// placement, record lists, and compiled instruction streams. Run consumes
// it directly; the offline compile and decode paths share it so both
// sides of a split pipeline agree on buffer layout.
type Prepared struct {
	exp     *Experiment
	cores   []*Core
	groups  []*Group
	samples []int
	periods []float64
	total   int
	images  map[*Core][]byte
	lists   map[*Core][]Record
	access  map[*Core]bool
	routes  map[*Flow]Route
}

// Prepare places the experiment, derives per-core record lists, and
// compiles every instruction stream. It is deterministic for everything
// except auto seeds and re-randomized burst phases.
func (e *Experiment) Prepare() (*Prepared, error) {
	if e.cur != nil {
		return nil, fmt.Errorf("%w: %s", ErrOpenGroup, e.cur.name)
	}
	if err := e.plan(); err != nil {
		return nil, err
	}

	access := e.routerAccessCores()
	lists := e.recordLists(access)

	for i, f := range e.flows {
		f.key = uint32(i+1) << 8
	}

	p := &Prepared{
		exp:     e,
		cores:   append([]*Core(nil), e.cores...),
		groups:  append([]*Group(nil), e.groups...),
		images:  make(map[*Core][]byte, len(e.cores)),
		lists:   lists,
		access:  access,
		routes:  e.routes,
	}
	for _, g := range p.groups {
		n := e.groupSamples(g)
		p.samples = append(p.samples, n)
		p.periods = append(p.periods, e.groupPeriod(g))
		p.total += n
	}

	for _, c := range p.cores {
		start := time.Now()
		b := program.NewBuilder(e.rng)
		if err := e.compileCore(b, c, lists[c], access[c]); err != nil {
			return nil, fmt.Errorf("experiment: compile %s: %w", c, err)
		}
		p.images[c] = b.Pack()
		observability.RecordCompile(len(b.Words()), time.Since(start))
		e.log.Debug().
			Stringer("core", c).
			Int("words", len(b.Words())).
			Int("columns", len(lists[c])).
			Msg("compiled instruction stream")
	}
	return p, nil
}

func (p *Prepared) Cores() []*Core   { return append([]*Core(nil), p.cores...) }
func (p *Prepared) Groups() []*Group { return append([]*Group(nil), p.groups...) }

// Image is the packed instruction stream for c.
func (p *Prepared) Image(c *Core) []byte { return p.images[c] }

// Records is the ordered column list of c's result matrix.
func (p *Prepared) Records(c *Core) []Record {
	return append([]Record(nil), p.lists[c]...)
}

func (p *Prepared) Location(c *Core) mesh.Location { return p.exp.placements[c] }

// TotalSamples is the row count of every result matrix, summed over all
// groups.
func (p *Prepared) TotalSamples() int { return p.total }

// ResultSize is the byte size of c's fully populated result buffer.
func (p *Prepared) ResultSize(c *Core) int {
	return 4 + 4*p.total*len(p.lists[c])
}

// BufferSize is the allocation needed at c's location; the instruction
// stream and the result buffer share it.
func (p *Prepared) BufferSize(c *Core) int {
	size := p.ResultSize(c)
	if n := len(p.images[c]); n > size {
		size = n
	}
	return size
}

// plan resolves placements, allocations, and routes, then backfills a
// hidden recorder core on every chip left empty while per-chip counters
// are being recorded.
func (e *Experiment) plan() error {
	if e.placements == nil {
		placer := e.placer
		if placer == nil {
			placer = SimplePlacer{}
		}
		demands := make(map[*Core]int, len(e.cores))
		pins := make(map[*Core]mesh.Coord)
		for _, c := range e.cores {
			demands[c] = 1
			if c.pin != nil {
				pins[c] = *c.pin
			}
		}
		plan, err := placer.Place(e.machine, demands, e.flows, pins)
		if err != nil {
			return err
		}
		e.placements = plan.Locations
		e.allocations = plan.Allocations
		e.routes = plan.Routes
	}
	if e.allocations == nil {
		e.allocations = make(map[*Core][]mesh.Span, len(e.cores))
		for _, c := range e.cores {
			if loc, ok := e.placements[c]; ok {
				e.allocations[c] = []mesh.Span{{Start: loc.P, End: loc.P + 1}}
			}
		}
	}
	if e.routes == nil {
		e.routes = make(map[*Flow]Route, len(e.flows))
		for _, f := range e.flows {
			e.routes[f] = routeFor(f, e.placements)
		}
	}
	e.ensureChipRecorders()
	for _, c := range e.cores {
		if _, ok := e.placements[c]; !ok {
			return fmt.Errorf("%w: %s", ErrUnplaced, c)
		}
	}
	return nil
}

// ensureChipRecorders gives every empty chip a hidden flowless core so
// its router and reinjector counters are observed. Chips that already
// host a core need nothing; their first core reads the registers.
func (e *Experiment) ensureChipRecorders() {
	if !e.chipCountersRecorded() {
		return
	}
	present := make(map[mesh.Coord]bool)
	for _, c := range e.cores {
		if loc, ok := e.placements[c]; ok {
			present[loc.Chip()] = true
		}
	}
	for _, chip := range e.machine.Chips() {
		if present[chip] {
			continue
		}
		c := &Core{
			exp:    e,
			name:   fmt.Sprintf("router%s", chip),
			hidden: true,
		}
		pin := chip
		c.pin = &pin
		e.cores = append(e.cores, c)
		e.placements[c] = mesh.Location{X: chip.X, Y: chip.Y, P: 1}
		e.allocations[c] = []mesh.Span{{Start: 1, End: 2}}
		e.log.Debug().Stringer("chip", chip).Msg("added hidden recorder core")
	}
}

func (e *Experiment) chipCountersRecorded() bool {
	for _, c := range e.opts.RecordedCounters() {
		if c.ChipCounter() {
			return true
		}
	}
	return false
}

// routerAccessCores marks the earliest-registered core on each chip. Only
// that core touches the chip's router configuration and counters, so two
// cohabiting cores never fight over the shared registers.
func (e *Experiment) routerAccessCores() map[*Core]bool {
	seen := make(map[mesh.Coord]bool)
	access := make(map[*Core]bool, len(e.cores))
	for _, c := range e.cores {
		loc, ok := e.placements[c]
		if !ok {
			continue
		}
		if !seen[loc.Chip()] {
			seen[loc.Chip()] = true
			access[c] = true
		}
	}
	return access
}

// recordLists derives each core's result-matrix columns: recorded
// counters in ascending bit order, fanned out per flow for source and
// sink counters. Compile and decode both key off this list, so the two
// sides agree on layout without ever exchanging it.
func (e *Experiment) recordLists(access map[*Core]bool) map[*Core][]Record {
	recorded := e.opts.RecordedCounters()
	lists := make(map[*Core][]Record, len(e.cores))
	for _, core := range e.cores {
		var list []Record
		for _, c := range recorded {
			switch {
			case c.ChipCounter():
				if access[core] {
					list = append(list, Record{Counter: c, Chip: e.placements[core].Chip()})
				}
			case c.SourceCounter():
				for _, f := range core.srcFlows {
					list = append(list, Record{Counter: c, Flow: f})
				}
			case c.SinkCounter():
				for _, f := range core.sinkFlows {
					list = append(list, Record{Counter: c, Flow: f})
				}
			default:
				list = append(list, Record{Counter: c})
			}
		}
		lists[core] = list
	}
	return lists
}

// groupSamples is the number of result rows a group produces: one per
// whole recording interval, or a single end-of-run sample when no
// interval is set. The epsilon absorbs binary float error in
// duration/interval ratios that are exact in decimal.
func (e *Experiment) groupSamples(g *Group) int {
	duration := e.opts.Float(options.Duration, g, nil)
	interval := e.opts.Float(options.RecordInterval, g, nil)
	if interval <= 0 {
		return 1
	}
	return int(math.Floor(duration/interval + 1e-9))
}

// groupPeriod is the wall-clock time covered by one of g's samples.
func (e *Experiment) groupPeriod(g *Group) float64 {
	if interval := e.opts.Float(options.RecordInterval, g, nil); interval > 0 {
		return interval
	}
	return e.opts.Float(options.Duration, g, nil)
}

func (e *Experiment) compileCore(b *program.Builder, c *Core, list []Record, router bool) error {
	var mask uint32
	for _, rec := range list {
		mask |= rec.Counter.Bit()
	}
	if err := b.Num(len(c.srcFlows), len(c.sinkFlows)); err != nil {
		return err
	}
	for _, g := range e.groups {
		if err := e.compileGroup(b, c, g, mask, router); err != nil {
			return fmt.Errorf("group %s: %w", g, err)
		}
	}
	if err := b.Barrier(); err != nil {
		return err
	}
	return b.Exit()
}

// compileGroup emits one traffic phase: parameter writes, the group
// barrier, then warmup, recorded run, cooldown, and the flush sleep.
// Parameter writes rely on the builder's shadow registers, so a phase
// that changes nothing emits (almost) nothing.
func (e *Experiment) compileGroup(b *program.Builder, c *Core, g *Group, mask uint32, router bool) error {
	o := e.opts
	if err := b.Seed(o.OptUint(options.Seed, g, c)); err != nil {
		return err
	}
	if err := b.Timestep(o.Float(options.Timestep, g, nil)); err != nil {
		return err
	}
	if err := b.RecordInterval(o.Float(options.RecordInterval, g, nil)); err != nil {
		return err
	}
	for i, f := range c.srcFlows {
		if err := b.SourceKey(i, f.key); err != nil {
			return err
		}
		if err := b.Probability(i, o.Float(options.Probability, g, f)); err != nil {
			return err
		}
		if err := b.Burst(i,
			o.Float(options.BurstPeriod, g, f),
			o.Float(options.BurstDuty, g, f),
			o.OptFloat(options.BurstPhase, g, f)); err != nil {
			return err
		}
		if err := b.Payload(i, o.Bool(options.UsePayload, g, f)); err != nil {
			return err
		}
		if err := b.NumRetries(i, o.Uint(options.NumRetries, g, f)); err != nil {
			return err
		}
		if err := b.PacketsPerTimestep(i, o.Uint(options.PacketsPerTimestep, g, f)); err != nil {
			return err
		}
	}
	for i, f := range c.sinkFlows {
		if err := b.SinkKey(i, f.key); err != nil {
			return err
		}
	}

	// Router state changes before the barrier so every core sees the
	// new timeouts the moment traffic starts.
	timeoutSet := false
	if router {
		if to := o.OptUint(options.RouterTimeout, g, nil); to != nil {
			if err := b.RouterTimeout(int(*to), 0); err != nil {
				return err
			}
			timeoutSet = true
		}
		if err := b.Reinject(o.Bool(options.ReinjectPackets, g, nil)); err != nil {
			return err
		}
	}

	if err := b.Barrier(); err != nil {
		return err
	}
	if err := b.Consume(o.Bool(options.ConsumePackets, g, c)); err != nil {
		return err
	}
	if err := b.Record(0); err != nil {
		return err
	}
	if err := b.Run(o.Float(options.Warmup, g, nil)); err != nil {
		return err
	}
	if err := b.Record(mask); err != nil {
		return err
	}
	if err := b.Run(o.Float(options.Duration, g, nil)); err != nil {
		return err
	}
	if err := b.Record(0); err != nil {
		return err
	}
	if err := b.Run(o.Float(options.Cooldown, g, nil)); err != nil {
		return err
	}
	// Consumption comes back on for the flush so stopped sinks do not
	// leave packets wedged in the fabric.
	if err := b.Consume(true); err != nil {
		return err
	}
	if err := b.Sleep(o.Float(options.FlushTime, g, nil)); err != nil {
		return err
	}
	if timeoutSet {
		if err := b.RouterTimeoutRestore(); err != nil {
			return err
		}
	}
	if router {
		if err := b.Reinject(false); err != nil {
			return err
		}
	}
	return nil
}
