package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "basic":
		return basicTemplate, nil
	case "sweep":
		return sweepTemplate, nil
	default:
		return "", fmt.Errorf("unknown scenario kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("scenario already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const basicTemplate = `name = "basic"

[machine]
width = 2
height = 2

[options]
timestep = 1e-4
warmup = 0.05
duration = 0.5
cooldown = 0.01
record_sent = true
record_received = true

[[cores]]
name = "src"

[[cores]]
name = "dst"

[[flows]]
name = "f0"
source = "src"
sinks = ["dst"]
[flows.options]
probability = 0.05

[[groups]]
name = "main"
`

const sweepTemplate = `name = "load-sweep"

[machine]
width = 4
height = 4

[options]
timestep = 1e-4
warmup = 0.05
duration = 0.2
cooldown = 0.01
record_interval = 0.02
record_sent = true
record_blocked = true
record_received = true
record_dropped_multicast = true

[[cores]]
name = "src"
chip = [0, 0]

[[cores]]
name = "dst"
chip = [3, 3]

[[flows]]
name = "f0"
source = "src"
sinks = ["dst"]

[[groups]]
name = "light"
[groups.labels]
load = 0.01
[groups.options]
probability = 0.01

[[groups]]
name = "medium"
[groups.labels]
load = 0.1
[groups.options]
probability = 0.1

[[groups]]
name = "heavy"
[groups.labels]
load = 0.3
[groups.options]
probability = 0.3
`
