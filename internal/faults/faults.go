// Package faults decodes the fault word the on-chip interpreter leaves at
// the head of every result buffer.
package faults

import (
	"errors"
	"fmt"
	"strings"
)

// Flag is one fault condition reported by the interpreter.
type Flag uint32

const (
	// StillRunning is preset by the interpreter and cleared on clean
	// exit; seeing it in a read-back buffer means the run never finished.
	StillRunning Flag = 1 << 0

	Malloc              Flag = 1 << 1
	DMA                 Flag = 1 << 2
	UnknownInstruction  Flag = 1 << 3
	BadArguments        Flag = 1 << 4
	DeadlineMissed      Flag = 1 << 5
	MostDeadlinesMissed Flag = 1 << 6
)

const knownMask = uint32(StillRunning | Malloc | DMA | UnknownInstruction |
	BadArguments | DeadlineMissed | MostDeadlinesMissed)

var ErrUnknownFaultBits = errors.New("faults: unknown fault bits")

var flagNames = []struct {
	f    Flag
	name string
}{
	{StillRunning, "still_running"},
	{Malloc, "malloc"},
	{DMA, "dma"},
	{UnknownInstruction, "unknown_instruction"},
	{BadArguments, "bad_arguments"},
	{DeadlineMissed, "deadline_missed"},
	{MostDeadlinesMissed, "most_deadlines_missed"},
}

func (f Flag) String() string {
	for _, fn := range flagNames {
		if fn.f == f {
			return fn.name
		}
	}
	return fmt.Sprintf("flag(%#x)", uint32(f))
}

// Deadline reports whether f only signals missed realtime deadlines, the
// one fault class a caller may choose to tolerate.
func (f Flag) Deadline() bool {
	return f == DeadlineMissed || f == MostDeadlinesMissed
}

// Set is a bitmask of fault flags.
type Set uint32

// FromWord decodes a raw fault word. Bits outside the known flag set are
// an error naming the residue.
func FromWord(w uint32) (Set, error) {
	if residue := w &^ knownMask; residue != 0 {
		return 0, fmt.Errorf("%w: %#08x", ErrUnknownFaultBits, residue)
	}
	return Set(w), nil
}

func (s Set) Empty() bool {
	return s == 0
}

func (s Set) Has(f Flag) bool {
	return uint32(s)&uint32(f) != 0
}

func (s Set) Union(o Set) Set {
	return s | o
}

// DeadlinesOnly reports whether s is non-empty and carries nothing but
// deadline faults.
func (s Set) DeadlinesOnly() bool {
	if s.Empty() {
		return false
	}
	return uint32(s)&^uint32(DeadlineMissed|MostDeadlinesMissed) == 0
}

// Flags expands the set in ascending bit order.
func (s Set) Flags() []Flag {
	var out []Flag
	for _, fn := range flagNames {
		if s.Has(fn.f) {
			out = append(out, fn.f)
		}
	}
	return out
}

func (s Set) String() string {
	if s.Empty() {
		return "none"
	}
	parts := make([]string, 0, len(flagNames))
	for _, f := range s.Flags() {
		parts = append(parts, f.String())
	}
	return strings.Join(parts, "|")
}
