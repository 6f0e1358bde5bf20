// Package counters owns the closed set of measurable traffic counters.
//
// A Counter's numeric value is its bit position in the record-enable mask
// understood by the on-chip interpreter. Iteration order, mask layout and
// result-column order all derive from that one number.
package counters

// Counter identifies one recordable quantity.
type Counter uint8

const (
	// Router diagnostic counters, one per routed-packet class.
	LocalMulticast           Counter = 0
	ExternalMulticast        Counter = 1
	LocalP2P                 Counter = 2
	ExternalP2P              Counter = 3
	LocalNearestNeighbour    Counter = 4
	ExternalNearestNeighbour Counter = 5
	LocalFixedRoute          Counter = 6
	ExternalFixedRoute       Counter = 7
	DroppedMulticast         Counter = 8
	DroppedP2P               Counter = 9
	DroppedNearestNeighbour  Counter = 10
	DroppedFixedRoute        Counter = 11
	Counter12                Counter = 12
	Counter13                Counter = 13
	Counter14                Counter = 14
	Counter15                Counter = 15

	// Packet reinjector counters.
	Reinjected       Counter = 16
	ReinjectOverflow Counter = 17
	ReinjectMissed   Counter = 18

	// DeadlinesMissed is recorded unconditionally for every core.
	DeadlinesMissed Counter = 19

	// Per-source-flow counters.
	Sent    Counter = 24
	Blocked Counter = 25
	Retried Counter = 26

	// Per-sink-flow counters.
	Received Counter = 28
)

var ordered = []Counter{
	LocalMulticast, ExternalMulticast, LocalP2P, ExternalP2P,
	LocalNearestNeighbour, ExternalNearestNeighbour,
	LocalFixedRoute, ExternalFixedRoute,
	DroppedMulticast, DroppedP2P, DroppedNearestNeighbour, DroppedFixedRoute,
	Counter12, Counter13, Counter14, Counter15,
	Reinjected, ReinjectOverflow, ReinjectMissed,
	DeadlinesMissed,
	Sent, Blocked, Retried,
	Received,
}

var names = map[Counter]string{
	LocalMulticast:           "local_multicast",
	ExternalMulticast:        "external_multicast",
	LocalP2P:                 "local_p2p",
	ExternalP2P:              "external_p2p",
	LocalNearestNeighbour:    "local_nearest_neighbour",
	ExternalNearestNeighbour: "external_nearest_neighbour",
	LocalFixedRoute:          "local_fixed_route",
	ExternalFixedRoute:       "external_fixed_route",
	DroppedMulticast:         "dropped_multicast",
	DroppedP2P:               "dropped_p2p",
	DroppedNearestNeighbour:  "dropped_nearest_neighbour",
	DroppedFixedRoute:        "dropped_fixed_route",
	Counter12:                "counter12",
	Counter13:                "counter13",
	Counter14:                "counter14",
	Counter15:                "counter15",
	Reinjected:               "reinjected",
	ReinjectOverflow:         "reinject_overflow",
	ReinjectMissed:           "reinject_missed",
	DeadlinesMissed:          "deadlines_missed",
	Sent:                     "sent",
	Blocked:                  "blocked",
	Retried:                  "retried",
	Received:                 "received",
}

// All returns every counter in ascending bit order.
func All() []Counter {
	out := make([]Counter, len(ordered))
	copy(out, ordered)
	return out
}

// Bit is the counter's record-enable mask bit.
func (c Counter) Bit() uint32 {
	return 1 << uint32(c)
}

func (c Counter) String() string {
	if n, ok := names[c]; ok {
		return n
	}
	return "unknown"
}

// FromName resolves a counter by its canonical name.
func FromName(name string) (Counter, bool) {
	for c, n := range names {
		if n == name {
			return c, true
		}
	}
	return 0, false
}

// RouterCounter reports whether c reads a per-chip router register.
func (c Counter) RouterCounter() bool {
	return c <= Counter15
}

// ReinjectorCounter reports whether c reads the per-chip packet reinjector.
func (c Counter) ReinjectorCounter() bool {
	return c >= Reinjected && c <= ReinjectMissed
}

// PermanentCounter reports whether c is recorded for every core regardless
// of the configured record set.
func (c Counter) PermanentCounter() bool {
	return c == DeadlinesMissed
}

// SourceCounter reports whether c is sampled once per source flow.
func (c Counter) SourceCounter() bool {
	return c == Sent || c == Blocked || c == Retried
}

// SinkCounter reports whether c is sampled once per sink flow.
func (c Counter) SinkCounter() bool {
	return c == Received
}

// ChipCounter reports whether c attributes to a chip rather than a core
// or flow.
func (c Counter) ChipCounter() bool {
	return c.RouterCounter() || c.ReinjectorCounter()
}
