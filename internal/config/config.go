package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/meshkit/netbench/internal/options"
)

// Scenario is the on-disk description of one experiment: a machine, the
// traffic topology, the option tiers, and the group schedule.
type Scenario struct {
	Name    string         `toml:"name"`
	Machine MachineConfig  `toml:"machine"`
	Options map[string]any `toml:"options"`
	Cores   []CoreConfig   `toml:"cores"`
	Flows   []FlowConfig   `toml:"flows"`
	Groups  []GroupConfig  `toml:"groups"`
}

type MachineConfig struct {
	Width     int     `toml:"width"`
	Height    int     `toml:"height"`
	DeadChips [][]int `toml:"dead_chips"`
}

type CoreConfig struct {
	Name    string         `toml:"name"`
	Chip    []int          `toml:"chip"`
	Options map[string]any `toml:"options"`
}

type FlowConfig struct {
	Name    string         `toml:"name"`
	Source  string         `toml:"source"`
	Sinks   []string       `toml:"sinks"`
	Options map[string]any `toml:"options"`
}

type GroupConfig struct {
	Name    string         `toml:"name"`
	Labels  map[string]any `toml:"labels"`
	Options map[string]any `toml:"options"`
}

func LoadScenario(path string) (Scenario, error) {
	var cfg Scenario
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("scenario load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Scenario{}, fmt.Errorf("scenario parse failed (%s): %w", path, err)
	}
	if cfg.Name == "" {
		cfg.Name = "experiment"
	}
	if err := ValidateScenario(cfg); err != nil {
		return Scenario{}, err
	}
	return cfg, nil
}

// ValidateScenario checks structure and referential integrity. Option
// values and scopes are checked later, when the scenario is built, where
// the option layer produces precise errors.
func ValidateScenario(cfg Scenario) error {
	if cfg.Machine.Width < 1 || cfg.Machine.Height < 1 {
		return fmt.Errorf("scenario needs a machine size, got %dx%d",
			cfg.Machine.Width, cfg.Machine.Height)
	}
	for i, dc := range cfg.Machine.DeadChips {
		if len(dc) != 2 {
			return fmt.Errorf("dead_chips[%d] invalid: want [x, y], got %v", i, dc)
		}
		if dc[0] < 0 || dc[0] >= cfg.Machine.Width || dc[1] < 0 || dc[1] >= cfg.Machine.Height {
			return fmt.Errorf("dead_chips[%d] invalid: chip (%d, %d) outside the machine", i, dc[0], dc[1])
		}
	}

	if err := validateOptionNames("options", cfg.Options); err != nil {
		return err
	}

	cores := map[string]bool{}
	for i, cc := range cfg.Cores {
		if strings.TrimSpace(cc.Name) == "" {
			return fmt.Errorf("core[%d] invalid: name is required", i)
		}
		if cores[cc.Name] {
			return fmt.Errorf("core[%d] invalid: duplicate name %q", i, cc.Name)
		}
		cores[cc.Name] = true
		if cc.Chip != nil {
			if len(cc.Chip) != 2 {
				return fmt.Errorf("core[%d] invalid: chip wants [x, y], got %v", i, cc.Chip)
			}
			if cc.Chip[0] < 0 || cc.Chip[0] >= cfg.Machine.Width ||
				cc.Chip[1] < 0 || cc.Chip[1] >= cfg.Machine.Height {
				return fmt.Errorf("core[%d] invalid: chip (%d, %d) outside the machine",
					i, cc.Chip[0], cc.Chip[1])
			}
		}
		if err := validateOptionNames(fmt.Sprintf("core[%d].options", i), cc.Options); err != nil {
			return err
		}
	}

	flows := map[string]bool{}
	for i, fc := range cfg.Flows {
		if strings.TrimSpace(fc.Name) == "" {
			return fmt.Errorf("flow[%d] invalid: name is required", i)
		}
		if flows[fc.Name] {
			return fmt.Errorf("flow[%d] invalid: duplicate name %q", i, fc.Name)
		}
		flows[fc.Name] = true
		if !cores[fc.Source] {
			return fmt.Errorf("flow[%d] invalid: unknown source core %q", i, fc.Source)
		}
		if len(fc.Sinks) == 0 {
			return fmt.Errorf("flow[%d] invalid: at least one sink is required", i)
		}
		for _, s := range fc.Sinks {
			if !cores[s] {
				return fmt.Errorf("flow[%d] invalid: unknown sink core %q", i, s)
			}
		}
		if err := validateOptionNames(fmt.Sprintf("flow[%d].options", i), fc.Options); err != nil {
			return err
		}
	}

	groups := map[string]bool{}
	for i, gc := range cfg.Groups {
		if gc.Name != "" {
			if groups[gc.Name] {
				return fmt.Errorf("group[%d] invalid: duplicate name %q", i, gc.Name)
			}
			groups[gc.Name] = true
		}
		if err := validateOptionNames(fmt.Sprintf("group[%d].options", i), gc.Options); err != nil {
			return err
		}
	}
	return nil
}

func validateOptionNames(where string, opts map[string]any) error {
	for name := range opts {
		if _, ok := options.FromName(name); !ok {
			return fmt.Errorf("%s invalid: unknown option %q", where, name)
		}
	}
	return nil
}
