package config

import (
	"fmt"
	"sort"

	"github.com/meshkit/netbench/internal/experiment"
	"github.com/meshkit/netbench/internal/mesh"
	"github.com/meshkit/netbench/internal/options"
	"github.com/meshkit/netbench/internal/transport"
)

// Build turns a validated scenario into a live experiment on tr. Option
// maps apply in sorted key order so repeated builds bind identically.
func Build(cfg Scenario, tr transport.Transport) (*experiment.Experiment, error) {
	machine := mesh.NewMachine(cfg.Machine.Width, cfg.Machine.Height)
	for _, dc := range cfg.Machine.DeadChips {
		machine.DeadChips[mesh.Coord{X: dc[0], Y: dc[1]}] = true
	}
	e := experiment.New(tr, machine)

	if err := applyOptions(e.Option, cfg.Options); err != nil {
		return nil, fmt.Errorf("options invalid: %w", err)
	}

	cores := make(map[string]*experiment.Core, len(cfg.Cores))
	for i, cc := range cfg.Cores {
		c := e.NewCore(cc.Name)
		if len(cc.Chip) == 2 {
			c.Pin(mesh.Coord{X: cc.Chip[0], Y: cc.Chip[1]})
		}
		if err := applyOptions(c.Option, cc.Options); err != nil {
			return nil, fmt.Errorf("core[%d] %q invalid: %w", i, cc.Name, err)
		}
		cores[cc.Name] = c
	}

	for i, fc := range cfg.Flows {
		sinks := make([]*experiment.Core, len(fc.Sinks))
		for j, s := range fc.Sinks {
			sinks[j] = cores[s]
		}
		f, err := e.NewFlow(fc.Name, cores[fc.Source], sinks...)
		if err != nil {
			return nil, fmt.Errorf("flow[%d] %q invalid: %w", i, fc.Name, err)
		}
		if err := applyOptions(f.Option, fc.Options); err != nil {
			return nil, fmt.Errorf("flow[%d] %q invalid: %w", i, fc.Name, err)
		}
	}

	for i, gc := range cfg.Groups {
		g, err := e.BeginGroup(gc.Name)
		if err != nil {
			return nil, fmt.Errorf("group[%d] invalid: %w", i, err)
		}
		if err := e.EndGroup(); err != nil {
			return nil, fmt.Errorf("group[%d] invalid: %w", i, err)
		}
		for _, k := range sortedKeys(gc.Labels) {
			g.AddLabel(k, gc.Labels[k])
		}
		if err := applyOptions(g.Option, gc.Options); err != nil {
			return nil, fmt.Errorf("group[%d] %q invalid: %w", i, g.Name(), err)
		}
	}
	return e, nil
}

func applyOptions(accessor func(options.Option) experiment.Setting, opts map[string]any) error {
	for _, name := range sortedKeys(opts) {
		opt, ok := options.FromName(name)
		if !ok {
			return fmt.Errorf("unknown option %q", name)
		}
		if err := accessor(opt).Set(opts[name]); err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
