package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/meshkit/netbench/internal/experiment"
)

const manifestName = "manifest.toml"

// manifest records the compiled layout so a later decode invocation can
// verify the scenario has not drifted since the images were written.
type manifest struct {
	Scenario     string         `toml:"scenario"`
	TotalSamples int            `toml:"total_samples"`
	Cores        []manifestCore `toml:"cores"`
}

type manifestCore struct {
	Index      int    `toml:"index"`
	Name       string `toml:"name"`
	X          int    `toml:"x"`
	Y          int    `toml:"y"`
	P          int    `toml:"p"`
	Image      string `toml:"image"`
	Results    string `toml:"results"`
	BufferSize int    `toml:"buffer_size"`
	ResultSize int    `toml:"result_size"`
	Columns    int    `toml:"columns"`
}

func newManifest(name string, p *experiment.Prepared) manifest {
	m := manifest{Scenario: name, TotalSamples: p.TotalSamples()}
	for i, c := range p.Cores() {
		loc := p.Location(c)
		base := fmt.Sprintf("core%02d-%s", i, sanitize(c.Name()))
		m.Cores = append(m.Cores, manifestCore{
			Index:      i,
			Name:       c.Name(),
			X:          loc.X,
			Y:          loc.Y,
			P:          loc.P,
			Image:      base + ".img",
			Results:    base + ".res",
			BufferSize: p.BufferSize(c),
			ResultSize: p.ResultSize(c),
			Columns:    len(p.Records(c)),
		})
	}
	return m
}

func (m manifest) write(path string) error {
	data, err := toml.Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func readManifest(path string) (manifest, error) {
	var m manifest
	if _, err := toml.DecodeFile(path, &m); err != nil {
		return manifest{}, fmt.Errorf("manifest load failed (%s): %w", path, err)
	}
	return m, nil
}

// check compares the manifest against a freshly prepared experiment.
func (m manifest) check(name string, p *experiment.Prepared) error {
	if m.Scenario != name {
		return fmt.Errorf("manifest is for scenario %q, not %q", m.Scenario, name)
	}
	cores := p.Cores()
	if len(m.Cores) != len(cores) {
		return fmt.Errorf("manifest has %d cores, scenario has %d", len(m.Cores), len(cores))
	}
	if m.TotalSamples != p.TotalSamples() {
		return fmt.Errorf("manifest has %d samples, scenario has %d", m.TotalSamples, p.TotalSamples())
	}
	for i, c := range cores {
		mc := m.Cores[i]
		if mc.Name != c.Name() {
			return fmt.Errorf("core %d is %q in the manifest, %q in the scenario", i, mc.Name, c.Name())
		}
		if mc.ResultSize != p.ResultSize(c) {
			return fmt.Errorf("core %q result size is %d in the manifest, %d in the scenario",
				mc.Name, mc.ResultSize, p.ResultSize(c))
		}
	}
	return nil
}

// sanitize maps a core name onto a safe file-name fragment.
func sanitize(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
