package experiment

import (
	"errors"
	"fmt"

	"github.com/meshkit/netbench/internal/counters"
	"github.com/meshkit/netbench/internal/faults"
	"github.com/meshkit/netbench/internal/observability"
	"github.com/meshkit/netbench/internal/results"
)

var ErrMissingResults = errors.New("experiment: missing result buffer")

type coreData struct {
	matrix   [][]uint32
	complete bool
	faults   faults.Set
}

// RunResults holds every decoded per-core matrix and derives the
// aggregate tables from it. All tables share the leading columns: one per
// group label (first-seen order), then group and time.
type RunResults struct {
	prep  *Prepared
	data  map[*Core]*coreData
	union faults.Set
}

// Decode splits each raw buffer into its fault word and sample matrix.
// Structural problems fail the whole decode; truncated matrices do not,
// their missing rows read as zero.
func (p *Prepared) Decode(raw map[*Core][]byte) (*RunResults, error) {
	r := &RunResults{prep: p, data: make(map[*Core]*coreData, len(p.cores))}
	for _, c := range p.cores {
		buf, ok := raw[c]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingResults, c)
		}
		fault, matrix, complete, err := results.Split(buf, len(p.lists[c]), p.total)
		if err != nil {
			return nil, fmt.Errorf("experiment: results of %s: %w", c, err)
		}
		fs, err := faults.FromWord(fault)
		if err != nil {
			return nil, fmt.Errorf("experiment: results of %s: %w", c, err)
		}
		observability.RecordDecode(len(buf))
		for _, f := range fs.Flags() {
			observability.RecordFault(f.String())
		}
		if !fs.Empty() || !complete {
			p.exp.log.Warn().
				Stringer("core", c).
				Stringer("faults", fs).
				Bool("complete", complete).
				Msg("degraded result buffer")
		}
		r.data[c] = &coreData{matrix: matrix, complete: complete, faults: fs}
		r.union = r.union.Union(fs)
	}
	return r, nil
}

// Faults is the union of every core's fault flags.
func (r *RunResults) Faults() faults.Set { return r.union }

// CoreFaults reports the flags a single core raised.
func (r *RunResults) CoreFaults(c *Core) faults.Set {
	if d := r.data[c]; d != nil {
		return d.faults
	}
	return 0
}

// Complete reports whether every core delivered its full sample matrix.
func (r *RunResults) Complete() bool {
	for _, c := range r.prep.cores {
		if d := r.data[c]; d == nil || !d.complete {
			return false
		}
	}
	return true
}

// value reads one counter sample from c's matrix. Rows lost to
// truncation, and columns c never recorded, read as zero.
func (r *RunResults) value(c *Core, row int, counter counters.Counter, flow *Flow) uint64 {
	d := r.data[c]
	if d == nil || row >= len(d.matrix) {
		return 0
	}
	for i, rec := range r.prep.lists[c] {
		if rec.Counter == counter && rec.Flow == flow {
			return uint64(d.matrix[row][i])
		}
	}
	return 0
}

// sumCounter adds every column of counter in c's row, across all flows.
func (r *RunResults) sumCounter(c *Core, row int, counter counters.Counter) uint64 {
	d := r.data[c]
	if d == nil || row >= len(d.matrix) {
		return 0
	}
	var sum uint64
	for i, rec := range r.prep.lists[c] {
		if rec.Counter == counter {
			sum += uint64(d.matrix[row][i])
		}
	}
	return sum
}

// recordedCounters is the union of every core's recorded counters, in
// bit order.
func (r *RunResults) recordedCounters() []counters.Counter {
	present := make(map[counters.Counter]bool)
	for _, list := range r.prep.lists {
		for _, rec := range list {
			present[rec.Counter] = true
		}
	}
	var out []counters.Counter
	for _, c := range counters.All() {
		if present[c] {
			out = append(out, c)
		}
	}
	return out
}

func (r *RunResults) labelKeys() []string {
	seen := make(map[string]bool)
	var keys []string
	for _, g := range r.prep.groups {
		for _, k := range g.labelKeys {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	return keys
}

func (r *RunResults) commonColumns() []string {
	return append(r.labelKeys(), "group", "time")
}

// eachSample walks every (group, sample) row in run order, handing fn the
// global matrix row index and the filled common cells. Groups without a
// label leave its cell nil.
func (r *RunResults) eachSample(fn func(row int, g *Group, common []any)) {
	keys := r.labelKeys()
	row := 0
	for gi, g := range r.prep.groups {
		period := r.prep.periods[gi]
		for s := 0; s < r.prep.samples[gi]; s++ {
			common := make([]any, 0, len(keys)+2)
			for _, k := range keys {
				if v, ok := g.labels[k]; ok {
					common = append(common, v)
				} else {
					common = append(common, nil)
				}
			}
			common = append(common, g, float64(s+1)*period)
			fn(row, g, common)
			row++
		}
	}
}

// Totals sums every recorded counter across the whole machine, one row
// per sample. When sent counts were recorded an ideal_received column
// gives the delivery count a loss-free network would have produced.
func (r *RunResults) Totals() *results.Table {
	rec := r.recordedCounters()
	ideal := false
	for _, c := range rec {
		if c == counters.Sent {
			ideal = true
		}
	}

	cols := r.commonColumns()
	for _, c := range rec {
		cols = append(cols, c.String())
	}
	if ideal {
		cols = append(cols, "ideal_received")
	}
	t := results.NewTable(cols...)

	r.eachSample(func(row int, g *Group, common []any) {
		cells := common
		for _, c := range rec {
			var sum uint64
			for _, core := range r.prep.cores {
				sum += r.sumCounter(core, row, c)
			}
			cells = append(cells, sum)
		}
		if ideal {
			var want uint64
			for _, f := range r.prep.exp.flows {
				want += r.value(f.source, row, counters.Sent, f) * uint64(f.FanOut())
			}
			cells = append(cells, want)
		}
		t.AppendRow(cells...)
	})
	return t
}

// CoreTotals breaks every non-chip counter down per core, one row per
// core per sample.
func (r *RunResults) CoreTotals() *results.Table {
	var rec []counters.Counter
	for _, c := range r.recordedCounters() {
		if !c.ChipCounter() {
			rec = append(rec, c)
		}
	}

	cols := append(r.commonColumns(), "core")
	for _, c := range rec {
		cols = append(cols, c.String())
	}
	t := results.NewTable(cols...)

	r.eachSample(func(row int, g *Group, common []any) {
		for _, core := range r.prep.cores {
			cells := append(append([]any(nil), common...), core)
			for _, c := range rec {
				cells = append(cells, r.sumCounter(core, row, c))
			}
			t.AppendRow(cells...)
		}
	})
	return t
}

// FlowTotals gives per-flow traffic, one row per flow per sample. Source
// counters come from the flow's source core; sink counters are summed
// over the sink set.
func (r *RunResults) FlowTotals() *results.Table {
	srcRec, sinkRec := r.endpointCounters()

	cols := append(r.commonColumns(), "flow", "fan_out")
	for _, c := range srcRec {
		cols = append(cols, c.String())
	}
	for _, c := range sinkRec {
		cols = append(cols, c.String())
	}
	t := results.NewTable(cols...)

	r.eachSample(func(row int, g *Group, common []any) {
		for _, f := range r.prep.exp.flows {
			cells := append(append([]any(nil), common...), f, f.FanOut())
			for _, c := range srcRec {
				cells = append(cells, r.value(f.source, row, c, f))
			}
			for _, c := range sinkRec {
				var sum uint64
				for _, sink := range f.sinks {
					sum += r.value(sink, row, c, f)
				}
				cells = append(cells, sum)
			}
			t.AppendRow(cells...)
		}
	})
	return t
}

// FlowCounters is the finest-grained view: one row per flow per sink per
// sample, with the hop count of the flow's longest branch.
func (r *RunResults) FlowCounters() *results.Table {
	srcRec, sinkRec := r.endpointCounters()

	cols := append(r.commonColumns(), "flow", "source", "sink", "num_hops")
	for _, c := range srcRec {
		cols = append(cols, c.String())
	}
	for _, c := range sinkRec {
		cols = append(cols, c.String())
	}
	t := results.NewTable(cols...)

	r.eachSample(func(row int, g *Group, common []any) {
		for _, f := range r.prep.exp.flows {
			var hops any
			if route := r.prep.routes[f]; route != nil {
				hops = route.NumHops()
			}
			for _, sink := range f.sinks {
				cells := append(append([]any(nil), common...), f, f.source, sink, hops)
				for _, c := range srcRec {
					cells = append(cells, r.value(f.source, row, c, f))
				}
				for _, c := range sinkRec {
					cells = append(cells, r.value(sink, row, c, f))
				}
				t.AppendRow(cells...)
			}
		}
	})
	return t
}

// RouterCounters reports per-chip counters, one row per chip per sample,
// read from each chip's router-access core.
func (r *RunResults) RouterCounters() *results.Table {
	var rec []counters.Counter
	for _, c := range r.recordedCounters() {
		if c.ChipCounter() {
			rec = append(rec, c)
		}
	}

	cols := append(r.commonColumns(), "x", "y")
	for _, c := range rec {
		cols = append(cols, c.String())
	}
	t := results.NewTable(cols...)

	var recorders []*Core
	if len(rec) > 0 {
		for _, core := range r.prep.cores {
			if r.prep.access[core] {
				recorders = append(recorders, core)
			}
		}
	}

	r.eachSample(func(row int, g *Group, common []any) {
		for _, core := range recorders {
			chip := r.prep.exp.placements[core].Chip()
			cells := append(append([]any(nil), common...), chip.X, chip.Y)
			for _, c := range rec {
				cells = append(cells, r.value(core, row, c, nil))
			}
			t.AppendRow(cells...)
		}
	})
	return t
}

func (r *RunResults) endpointCounters() (src, sink []counters.Counter) {
	for _, c := range r.recordedCounters() {
		switch {
		case c.SourceCounter():
			src = append(src, c)
		case c.SinkCounter():
			sink = append(sink, c)
		}
	}
	return src, sink
}
