package experiment

import (
	"context"
	"fmt"
	"time"

	"github.com/meshkit/netbench/internal/faults"
	"github.com/meshkit/netbench/internal/mesh"
	"github.com/meshkit/netbench/internal/observability"
	"github.com/meshkit/netbench/internal/transport"
)

// RunConfig tunes one Run invocation.
type RunConfig struct {
	// Image is the interpreter binary loaded on every used location.
	Image []byte

	// IgnoreDeadlineFaults accepts runs whose only faults are missed
	// realtime deadlines. Counters from such runs are complete; the
	// traffic just ran slower than real time.
	IgnoreDeadlineFaults bool

	// BeforeGroup, when set, runs before each group's barrier release.
	BeforeGroup func(*Group)

	// BeforeReadResults, when set, runs after all interpreters exited
	// and before result buffers are read back.
	BeforeReadResults func()
}

// FaultError reports interpreter faults after a completed run. Results
// carries whatever was decoded; callers deciding to tolerate a fault can
// still inspect every table.
type FaultError struct {
	Faults  faults.Set
	Results *RunResults
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("experiment: interpreter faults: %s", e.Faults)
}

// Run executes the experiment end to end: prepare, load, step every
// group past its barrier, wait for exit, read buffers back, and decode.
// On interpreter faults the decoded results are returned alongside a
// *FaultError.
func (e *Experiment) Run(ctx context.Context, cfg RunConfig) (*RunResults, error) {
	start := time.Now()
	res, err := e.run(ctx, cfg)
	switch {
	case err == nil:
		observability.RecordRun("ok", time.Since(start))
	case res != nil:
		observability.RecordRun("fault", time.Since(start))
	default:
		observability.RecordRun("error", time.Since(start))
	}
	return res, err
}

func (e *Experiment) run(ctx context.Context, cfg RunConfig) (*RunResults, error) {
	p, err := e.Prepare()
	if err != nil {
		return nil, err
	}

	e.log.Info().
		Int("cores", len(p.cores)).
		Int("flows", len(e.flows)).
		Int("groups", len(p.groups)).
		Int("samples", p.total).
		Msg("starting run")

	buffers := make(map[*Core]transport.Buffer, len(p.cores))
	images := make(map[mesh.Location][]byte, len(p.cores))
	for _, c := range p.cores {
		loc := p.Location(c)
		buf, err := e.tr.Alloc(ctx, loc, p.BufferSize(c))
		if err != nil {
			return nil, fmt.Errorf("experiment: alloc for %s: %w", c, err)
		}
		if err := buf.Write(ctx, p.Image(c)); err != nil {
			return nil, fmt.Errorf("experiment: load %s: %w", c, err)
		}
		buffers[c] = buf
		images[loc] = cfg.Image
	}

	if err := e.tr.Start(ctx, images); err != nil {
		return nil, fmt.Errorf("experiment: start interpreters: %w", err)
	}

	// Each group ends at a barrier; releasing barrier i starts group
	// i's traffic. Sync phases alternate so a fast core re-arming for
	// the next barrier cannot slip through the previous release.
	n := len(p.cores)
	for i, g := range p.groups {
		if cfg.BeforeGroup != nil {
			cfg.BeforeGroup(g)
		}
		e.log.Debug().Stringer("group", g).Msg("releasing group barrier")
		if err := e.barrier(ctx, i, n); err != nil {
			return nil, fmt.Errorf("experiment: barrier for %s: %w", g, err)
		}
	}
	if err := e.barrier(ctx, len(p.groups), n); err != nil {
		return nil, fmt.Errorf("experiment: final barrier: %w", err)
	}
	if err := e.tr.WaitState(ctx, transport.StateExit, n); err != nil {
		return nil, fmt.Errorf("experiment: wait for exit: %w", err)
	}

	if cfg.BeforeReadResults != nil {
		cfg.BeforeReadResults()
	}

	raw := make(map[*Core][]byte, len(p.cores))
	for _, c := range p.cores {
		data, err := buffers[c].Read(ctx, p.ResultSize(c))
		if err != nil {
			return nil, fmt.Errorf("experiment: read results of %s: %w", c, err)
		}
		raw[c] = data
	}

	res, err := p.Decode(raw)
	if err != nil {
		return nil, err
	}
	fs := res.Faults()
	if !fs.Empty() && !(cfg.IgnoreDeadlineFaults && fs.DeadlinesOnly()) {
		return res, &FaultError{Faults: fs, Results: res}
	}
	e.log.Info().Msg("run complete")
	return res, nil
}

func (e *Experiment) barrier(ctx context.Context, i, cores int) error {
	state, sig := transport.StateSync0, transport.SignalSync0
	if i%2 == 1 {
		state, sig = transport.StateSync1, transport.SignalSync1
	}
	if err := e.tr.WaitState(ctx, state, cores); err != nil {
		return err
	}
	return e.tr.Signal(ctx, sig)
}
