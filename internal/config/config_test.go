package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/BurntSushi/toml"

	"github.com/meshkit/netbench/internal/options"
	"github.com/meshkit/netbench/internal/transport"
)

func TestTemplatesParseAndValidate(t *testing.T) {
	for _, kind := range []string{"basic", "sweep"} {
		t.Run(kind, func(t *testing.T) {
			text, err := Template(kind)
			if err != nil {
				t.Fatalf("template: %v", err)
			}
			var cfg Scenario
			if err := toml.Unmarshal([]byte(text), &cfg); err != nil {
				t.Fatalf("parse: %v", err)
			}
			if err := ValidateScenario(cfg); err != nil {
				t.Fatalf("validate: %v", err)
			}
		})
	}
	if _, err := Template("nope"); err == nil {
		t.Fatalf("unknown kind accepted")
	}
}

func TestWriteTemplateRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.toml")
	if err := WriteTemplate(path, "basic", false); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := WriteTemplate(path, "basic", false); err == nil {
		t.Fatalf("overwrite not refused")
	}
	if err := WriteTemplate(path, "sweep", true); err != nil {
		t.Fatalf("forced overwrite: %v", err)
	}
}

func TestLoadScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.toml")
	if err := WriteTemplate(path, "sweep", false); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := LoadScenario(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Name != "load-sweep" {
		t.Fatalf("name = %q", cfg.Name)
	}
	if len(cfg.Cores) != 2 || len(cfg.Flows) != 1 || len(cfg.Groups) != 3 {
		t.Fatalf("topology = %d cores, %d flows, %d groups",
			len(cfg.Cores), len(cfg.Flows), len(cfg.Groups))
	}
	if _, err := LoadScenario(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatalf("missing file accepted")
	}
}

func TestLoadScenarioDefaultsName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.toml")
	body := "[machine]\nwidth = 1\nheight = 1\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := LoadScenario(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Name != "experiment" {
		t.Fatalf("name = %q, want experiment", cfg.Name)
	}
}

func TestValidateScenario(t *testing.T) {
	base := func() Scenario {
		return Scenario{
			Name:    "t",
			Machine: MachineConfig{Width: 2, Height: 2},
			Cores:   []CoreConfig{{Name: "a"}, {Name: "b"}},
			Flows:   []FlowConfig{{Name: "f", Source: "a", Sinks: []string{"b"}}},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Scenario)
	}{
		{"missing machine", func(s *Scenario) { s.Machine.Width = 0 }},
		{"dead chip shape", func(s *Scenario) { s.Machine.DeadChips = [][]int{{1}} }},
		{"dead chip out of range", func(s *Scenario) { s.Machine.DeadChips = [][]int{{5, 0}} }},
		{"unknown option", func(s *Scenario) { s.Options = map[string]any{"warp_speed": 9} }},
		{"unnamed core", func(s *Scenario) { s.Cores[0].Name = " " }},
		{"duplicate core", func(s *Scenario) { s.Cores[1].Name = "a" }},
		{"chip shape", func(s *Scenario) { s.Cores[0].Chip = []int{1, 2, 3} }},
		{"chip out of range", func(s *Scenario) { s.Cores[0].Chip = []int{2, 0} }},
		{"unnamed flow", func(s *Scenario) { s.Flows[0].Name = "" }},
		{"unknown source", func(s *Scenario) { s.Flows[0].Source = "ghost" }},
		{"no sinks", func(s *Scenario) { s.Flows[0].Sinks = nil }},
		{"unknown sink", func(s *Scenario) { s.Flows[0].Sinks = []string{"ghost"} }},
		{"duplicate group", func(s *Scenario) {
			s.Groups = []GroupConfig{{Name: "g"}, {Name: "g"}}
		}},
		{"bad group option", func(s *Scenario) {
			s.Groups = []GroupConfig{{Name: "g", Options: map[string]any{"bogus": 1}}}
		}},
	}
	if err := ValidateScenario(base()); err != nil {
		t.Fatalf("base scenario invalid: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			if err := ValidateScenario(cfg); err == nil {
				t.Fatalf("accepted")
			}
		})
	}
}

func TestBuildScenario(t *testing.T) {
	cfg := Scenario{
		Name:    "t",
		Machine: MachineConfig{Width: 2, Height: 2, DeadChips: [][]int{{1, 1}}},
		Options: map[string]any{
			"timestep":    1e-4,
			"duration":    0.1,
			"record_sent": true,
		},
		Cores: []CoreConfig{
			{Name: "a", Chip: []int{0, 0}, Options: map[string]any{"probability": 0.2}},
			{Name: "b"},
		},
		Flows: []FlowConfig{
			{Name: "f", Source: "a", Sinks: []string{"b"}, Options: map[string]any{"probability": 0.5}},
		},
		Groups: []GroupConfig{
			{Name: "g1", Labels: map[string]any{"load": 0.5}, Options: map[string]any{"duration": 0.2}},
			{Name: "g2"},
		},
	}
	if err := ValidateScenario(cfg); err != nil {
		t.Fatalf("validate: %v", err)
	}
	e, err := Build(cfg, transport.NewMem())
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if got := e.Option(options.Duration).Get(); got != 0.1 {
		t.Fatalf("global duration = %v, want 0.1", got)
	}
	p, err := e.Prepare()
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	cores := p.Cores()
	if len(cores) != 2 {
		t.Fatalf("cores = %d, want 2", len(cores))
	}
	if loc := p.Location(cores[0]); loc.Chip().X != 0 || loc.Chip().Y != 0 {
		t.Fatalf("pinned core at %s", loc)
	}
	// one sample per group: no record_interval is set anywhere
	if p.TotalSamples() != 2 {
		t.Fatalf("samples = %d, want 2", p.TotalSamples())
	}
	groups := p.Groups()
	if len(groups) != 2 || groups[0].Name() != "g1" {
		t.Fatalf("groups = %v", groups)
	}
	if v, ok := groups[0].Label("load"); !ok || v != 0.5 {
		t.Fatalf("label = %v, %v", v, ok)
	}
	if got := groups[0].Option(options.Duration).Get(); got != 0.2 {
		t.Fatalf("g1 duration = %v, want 0.2", got)
	}
}

func TestBuildRejectsBadOptionValue(t *testing.T) {
	cfg := Scenario{
		Name:    "t",
		Machine: MachineConfig{Width: 1, Height: 1},
		Options: map[string]any{"timestep": "fast"},
	}
	if err := ValidateScenario(cfg); err != nil {
		t.Fatalf("validate: %v", err)
	}
	_, err := Build(cfg, transport.NewMem())
	var ve options.ValueError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want ValueError", err)
	}
}

func TestBuildRejectsScopedRecordOption(t *testing.T) {
	cfg := Scenario{
		Name:    "t",
		Machine: MachineConfig{Width: 1, Height: 1},
		Groups: []GroupConfig{
			{Name: "g", Options: map[string]any{"record_sent": true}},
		},
	}
	if err := ValidateScenario(cfg); err != nil {
		t.Fatalf("validate: %v", err)
	}
	_, err := Build(cfg, transport.NewMem())
	var se options.ScopeError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want ScopeError", err)
	}
}
