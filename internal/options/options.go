package options

import (
	"fmt"

	"github.com/meshkit/netbench/internal/counters"
)

// Option identifies one experiment parameter.
type Option uint8

const (
	Seed Option = iota
	Timestep
	Warmup
	Duration
	Cooldown
	FlushTime
	RecordInterval
	Probability
	BurstPeriod
	BurstDuty
	BurstPhase
	UsePayload
	ConsumePackets
	RouterTimeout
	ReinjectPackets
	PacketsPerTimestep
	NumRetries

	RecordLocalMulticast
	RecordExternalMulticast
	RecordLocalP2P
	RecordExternalP2P
	RecordLocalNearestNeighbour
	RecordExternalNearestNeighbour
	RecordLocalFixedRoute
	RecordExternalFixedRoute
	RecordDroppedMulticast
	RecordDroppedP2P
	RecordDroppedNearestNeighbour
	RecordDroppedFixedRoute
	RecordCounter12
	RecordCounter13
	RecordCounter14
	RecordCounter15
	RecordReinjected
	RecordReinjectOverflow
	RecordReinjectMissed
	RecordSent
	RecordBlocked
	RecordRetried
	RecordReceived

	numOptions
)

// Kind is the value shape an option accepts.
type Kind uint8

const (
	KindFloat Kind = iota
	KindBool
	KindUint
	KindOptionalUint
	KindOptionalFloat
)

func (k Kind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindUint:
		return "uint"
	case KindOptionalUint:
		return "optional uint"
	case KindOptionalFloat:
		return "optional float"
	}
	return "unknown"
}

type meta struct {
	name       string
	kind       Kind
	globalOnly bool
	perCore    bool
	perFlow    bool
	def        any
}

// recordCounters maps each record-enable flag to the counter it records.
// DeadlinesMissed has no flag; it is always recorded.
var recordCounters = map[Option]counters.Counter{
	RecordLocalMulticast:           counters.LocalMulticast,
	RecordExternalMulticast:        counters.ExternalMulticast,
	RecordLocalP2P:                 counters.LocalP2P,
	RecordExternalP2P:              counters.ExternalP2P,
	RecordLocalNearestNeighbour:    counters.LocalNearestNeighbour,
	RecordExternalNearestNeighbour: counters.ExternalNearestNeighbour,
	RecordLocalFixedRoute:          counters.LocalFixedRoute,
	RecordExternalFixedRoute:       counters.ExternalFixedRoute,
	RecordDroppedMulticast:         counters.DroppedMulticast,
	RecordDroppedP2P:               counters.DroppedP2P,
	RecordDroppedNearestNeighbour:  counters.DroppedNearestNeighbour,
	RecordDroppedFixedRoute:        counters.DroppedFixedRoute,
	RecordCounter12:                counters.Counter12,
	RecordCounter13:                counters.Counter13,
	RecordCounter14:                counters.Counter14,
	RecordCounter15:                counters.Counter15,
	RecordReinjected:               counters.Reinjected,
	RecordReinjectOverflow:         counters.ReinjectOverflow,
	RecordReinjectMissed:           counters.ReinjectMissed,
	RecordSent:                     counters.Sent,
	RecordBlocked:                  counters.Blocked,
	RecordRetried:                  counters.Retried,
	RecordReceived:                 counters.Received,
}

var metas = buildMetas()

func buildMetas() map[Option]meta {
	m := map[Option]meta{
		Seed:               {name: "seed", kind: KindOptionalUint, perCore: true, def: nil},
		Timestep:           {name: "timestep", kind: KindFloat, def: 1e-3},
		Warmup:             {name: "warmup", kind: KindFloat, def: 1.0},
		Duration:           {name: "duration", kind: KindFloat, def: 1.0},
		Cooldown:           {name: "cooldown", kind: KindFloat, def: 0.0},
		FlushTime:          {name: "flush_time", kind: KindFloat, def: 0.01},
		RecordInterval:     {name: "record_interval", kind: KindFloat, def: 0.0},
		Probability:        {name: "probability", kind: KindFloat, perCore: true, perFlow: true, def: 0.0},
		BurstPeriod:        {name: "burst_period", kind: KindFloat, perCore: true, perFlow: true, def: 0.0},
		BurstDuty:          {name: "burst_duty", kind: KindFloat, perCore: true, perFlow: true, def: 0.0},
		BurstPhase:         {name: "burst_phase", kind: KindOptionalFloat, perCore: true, perFlow: true, def: 0.0},
		UsePayload:         {name: "use_payload", kind: KindBool, perCore: true, perFlow: true, def: false},
		ConsumePackets:     {name: "consume_packets", kind: KindBool, perCore: true, def: true},
		RouterTimeout:      {name: "router_timeout", kind: KindOptionalUint, def: nil},
		ReinjectPackets:    {name: "reinject_packets", kind: KindBool, def: false},
		PacketsPerTimestep: {name: "packets_per_timestep", kind: KindUint, perCore: true, perFlow: true, def: uint32(1)},
		NumRetries:         {name: "num_retries", kind: KindUint, perCore: true, perFlow: true, def: uint32(0)},
	}
	for opt, c := range recordCounters {
		m[opt] = meta{
			name:       "record_" + c.String(),
			kind:       KindBool,
			globalOnly: true,
			def:        false,
		}
	}
	return m
}

func (o Option) String() string {
	if m, ok := metas[o]; ok {
		return m.name
	}
	return "unknown"
}

// All returns every option in declaration order.
func All() []Option {
	out := make([]Option, 0, numOptions)
	for o := Option(0); o < numOptions; o++ {
		out = append(out, o)
	}
	return out
}

// FromName resolves an option by its canonical name.
func FromName(name string) (Option, bool) {
	for o := Option(0); o < numOptions; o++ {
		if metas[o].name == name {
			return o, true
		}
	}
	return 0, false
}

// GlobalOnly reports whether o admits no group, core or flow exceptions.
func (o Option) GlobalOnly() bool {
	return metas[o].globalOnly
}

// AllowsCore reports whether o may carry per-core exceptions.
func (o Option) AllowsCore() bool {
	return metas[o].perCore
}

// AllowsFlow reports whether o may carry per-flow exceptions.
func (o Option) AllowsFlow() bool {
	return metas[o].perFlow
}

func (o Option) Kind() Kind {
	return metas[o].kind
}

func (o Option) Default() any {
	return metas[o].def
}

// ForCounter returns the record-enable option for c, if it has one.
func ForCounter(c counters.Counter) (Option, bool) {
	for opt, rc := range recordCounters {
		if rc == c {
			return opt, true
		}
	}
	return 0, false
}

// RecordedCounter returns the counter a record-enable option controls.
func (o Option) RecordedCounter() (counters.Counter, bool) {
	c, ok := recordCounters[o]
	return c, ok
}

// normalize coerces v to the canonical stored representation for k.
func normalize(k Kind, v any) (any, error) {
	switch k {
	case KindFloat:
		return toFloat(v)
	case KindBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
		return nil, fmt.Errorf("want bool, got %T", v)
	case KindUint:
		return toUint(v)
	case KindOptionalUint:
		if v == nil {
			return nil, nil
		}
		return toUint(v)
	case KindOptionalFloat:
		if v == nil {
			return nil, nil
		}
		return toFloat(v)
	}
	return nil, fmt.Errorf("unknown kind %d", k)
}

func toFloat(v any) (any, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case uint32:
		return float64(x), nil
	}
	return nil, fmt.Errorf("want float, got %T", v)
}

func toUint(v any) (any, error) {
	switch x := v.(type) {
	case uint32:
		return x, nil
	case int:
		if x < 0 {
			return nil, fmt.Errorf("want non-negative value, got %d", x)
		}
		return uint32(x), nil
	case int64:
		if x < 0 || x > 0xFFFFFFFF {
			return nil, fmt.Errorf("value %d out of uint32 range", x)
		}
		return uint32(x), nil
	case uint64:
		if x > 0xFFFFFFFF {
			return nil, fmt.Errorf("value %d out of uint32 range", x)
		}
		return uint32(x), nil
	case float64:
		if x < 0 || x != float64(uint32(x)) {
			return nil, fmt.Errorf("value %v is not a uint32", x)
		}
		return uint32(x), nil
	}
	return nil, fmt.Errorf("want uint, got %T", v)
}
