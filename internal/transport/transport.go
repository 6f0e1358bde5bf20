package transport

import (
	"context"

	"github.com/meshkit/netbench/internal/mesh"
)

// State is an interpreter lifecycle state the host can wait on.
type State string

const (
	StateSync0 State = "sync0"
	StateSync1 State = "sync1"
	StateExit  State = "exit"
)

// Signal releases cores held at a barrier.
type Signal string

const (
	SignalSync0 Signal = "sync0"
	SignalSync1 Signal = "sync1"
)

// Buffer is one remote memory allocation, written with the instruction
// stream before a run and read back for results afterwards.
type Buffer interface {
	Write(ctx context.Context, p []byte) error
	Read(ctx context.Context, n int) ([]byte, error)
}

// Transport moves experiment data to and from the target machine.
type Transport interface {
	// Alloc reserves size bytes of result/program memory at loc.
	Alloc(ctx context.Context, loc mesh.Location, size int) (Buffer, error)

	// Start loads and launches an interpreter image on every location.
	Start(ctx context.Context, images map[mesh.Location][]byte) error

	// WaitState blocks until the given number of interpreters reach state.
	WaitState(ctx context.Context, state State, cores int) error

	// Signal releases every interpreter waiting on sig.
	Signal(ctx context.Context, sig Signal) error
}
