package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/meshkit/netbench/internal/mesh"
)

var (
	ErrAllocTwice = errors.New("transport: location already allocated")
	ErrOverflow   = errors.New("transport: access exceeds allocation")
)

// Mem is an in-memory Transport. Barriers release immediately and reads
// return whatever Exec produces for the written program, or zeroes when
// no Exec hook is set. Zeroed buffers decode as a clean run with empty
// counters, which is exactly what a dry run wants.
type Mem struct {
	mu      sync.Mutex
	buffers map[mesh.Location]*MemBuffer

	// Exec, when set, maps a written program to the raw result bytes a
	// real interpreter would leave behind. Called once per buffer on
	// first read.
	Exec func(loc mesh.Location, program []byte) []byte

	StartTargets []mesh.Location
	WaitLog      []State
	SignalLog    []Signal
}

func NewMem() *Mem {
	return &Mem{buffers: make(map[mesh.Location]*MemBuffer)}
}

func (m *Mem) Alloc(ctx context.Context, loc mesh.Location, size int) (Buffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if size <= 0 {
		return nil, fmt.Errorf("transport: allocation of %d bytes at %v", size, loc)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.buffers[loc]; ok {
		return nil, fmt.Errorf("%w: %v", ErrAllocTwice, loc)
	}
	b := &MemBuffer{parent: m, loc: loc, data: make([]byte, size)}
	m.buffers[loc] = b
	return b, nil
}

func (m *Mem) Start(ctx context.Context, images map[mesh.Location][]byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for loc := range images {
		m.StartTargets = append(m.StartTargets, loc)
	}
	return nil
}

func (m *Mem) WaitState(ctx context.Context, state State, cores int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WaitLog = append(m.WaitLog, state)
	return nil
}

func (m *Mem) Signal(ctx context.Context, sig Signal) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SignalLog = append(m.SignalLog, sig)
	return nil
}

// Buffer returns the allocation at loc, if any. Test hook.
func (m *Mem) Buffer(loc mesh.Location) (*MemBuffer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buffers[loc]
	return b, ok
}

// MemBuffer is one in-memory allocation. The first write is remembered
// as the program image handed to Exec.
type MemBuffer struct {
	parent   *Mem
	loc      mesh.Location
	data     []byte
	program  []byte
	executed bool
}

func (b *MemBuffer) Write(ctx context.Context, p []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(p) > len(b.data) {
		return fmt.Errorf("%w: write %d into %d at %v", ErrOverflow, len(p), len(b.data), b.loc)
	}
	copy(b.data, p)
	if b.program == nil {
		b.program = append([]byte(nil), p...)
	}
	return nil
}

func (b *MemBuffer) Read(ctx context.Context, n int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if n > len(b.data) {
		return nil, fmt.Errorf("%w: read %d from %d at %v", ErrOverflow, n, len(b.data), b.loc)
	}
	if !b.executed {
		b.executed = true
		if exec := b.parent.Exec; exec != nil {
			out := exec(b.loc, b.program)
			for i := range b.data {
				b.data[i] = 0
			}
			copy(b.data, out)
		} else {
			for i := range b.data {
				b.data[i] = 0
			}
		}
	}
	return append([]byte(nil), b.data[:n]...), nil
}
