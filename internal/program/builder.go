package program

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

var (
	ErrTerminated = errors.New("program: stream already terminated")
	ErrNumFixed   = errors.New("program: source/sink counts already set")
	ErrNoNum      = errors.New("program: source/sink counts not set")
	ErrNoTimestep = errors.New("program: timestep not set")
	ErrIndexRange = errors.New("program: index out of range")
)

// EncodeError reports a value the wire format cannot carry exactly.
type EncodeError struct {
	What    string
	Value   float64
	Nearest float64
}

func (e EncodeError) Error() string {
	return fmt.Sprintf("program: %s %v not encodable, nearest supported value is %v",
		e.What, e.Value, e.Nearest)
}

type burstReq struct {
	period float64  // seconds
	duty   float64  // fraction of period
	phase  *float64 // fraction of period, nil picks a fresh random phase
}

// Builder accumulates one core's instruction stream. Shadow registers
// mirror the interpreter state so repeated parameter writes with the same
// effective value emit nothing.
type Builder struct {
	rng        *rand.Rand
	words      []uint32
	terminated bool

	numSet     bool
	numSources int
	numSinks   int

	seedKnown bool
	seedAuto  bool

	timestep float64 // seconds, 0 while unset

	recordMask    uint32
	intervalSec   float64
	intervalSteps uint32

	srcBurst      []burstReq
	srcProb       []uint32
	srcPeriod     []uint32
	srcDuty       []uint32
	srcPhase      []uint32
	srcKey        []uint32
	srcPayload    []bool
	srcRetries    []uint32
	srcPackets    []uint32
	sinkKey       []uint32
	consume       bool
	reinject      bool
}

func NewBuilder(rng *rand.Rand) *Builder {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Builder{rng: rng, consume: true}
}

// Words returns a copy of the emitted instruction words, without the
// length prefix.
func (b *Builder) Words() []uint32 {
	out := make([]uint32, len(b.words))
	copy(out, b.words)
	return out
}

// Size is the packed byte size, length prefix included.
func (b *Builder) Size() int {
	return 4 + 4*len(b.words)
}

// Pack frames the stream as little-endian words behind a length prefix.
// The prefix counts the instruction bytes only, not itself.
func (b *Builder) Pack() []byte {
	out := make([]byte, b.Size())
	binary.LittleEndian.PutUint32(out[0:4], uint32(4*len(b.words)))
	for i, w := range b.words {
		binary.LittleEndian.PutUint32(out[4+4*i:], w)
	}
	return out
}

func (b *Builder) emit(words ...uint32) {
	b.words = append(b.words, words...)
}

func indexed(op uint32, idx int) uint32 {
	return op | uint32(idx)<<8
}

// Exit terminates the stream. Nothing may be appended afterwards.
func (b *Builder) Exit() error {
	if b.terminated {
		return ErrTerminated
	}
	b.emit(OpExit)
	b.terminated = true
	return nil
}

func (b *Builder) Sleep(seconds float64) error {
	if b.terminated {
		return ErrTerminated
	}
	us := math.Round(seconds * 1e6)
	if us < 0 || us > math.MaxUint32 {
		return EncodeError{What: "sleep duration", Value: seconds, Nearest: clampSeconds(us, 1e6)}
	}
	b.emit(OpSleep, uint32(us))
	return nil
}

func (b *Builder) Barrier() error {
	if b.terminated {
		return ErrTerminated
	}
	b.emit(OpBarrier)
	return nil
}

// Seed programs the interpreter PRNG. A nil seed asks for a fresh random
// seed; consecutive nil seeds leave the already-random state alone. An
// explicit seed is always written, even unchanged, so reruns of a phase
// replay identical traffic.
func (b *Builder) Seed(seed *uint32) error {
	if b.terminated {
		return ErrTerminated
	}
	if seed == nil {
		if b.seedKnown && b.seedAuto {
			return nil
		}
		b.emit(OpSeed, b.rng.Uint32())
		b.seedKnown = true
		b.seedAuto = true
		return nil
	}
	b.emit(OpSeed, *seed)
	b.seedKnown = true
	b.seedAuto = false
	return nil
}

// Timestep sets the interpreter tick. The value must land on a whole
// nanosecond. Tick-relative registers (record interval, burst timing) are
// re-derived and re-emitted as needed.
func (b *Builder) Timestep(seconds float64) error {
	if b.terminated {
		return ErrTerminated
	}
	ns := seconds * 1e9
	rounded := math.Round(ns)
	if math.Abs(ns-rounded) > 1e-6 || rounded <= 0 || rounded > math.MaxUint32 {
		return EncodeError{What: "timestep", Value: seconds, Nearest: clampSeconds(rounded, 1e9)}
	}
	if b.timestep == seconds {
		return nil
	}
	b.emit(OpTimestep, uint32(rounded))
	b.timestep = seconds

	if err := b.applyInterval(); err != nil {
		return err
	}
	for i := range b.srcBurst {
		if err := b.applyBurst(i); err != nil {
			return err
		}
	}
	return nil
}

// Run executes the current traffic configuration for a wall-clock
// duration, converted to timesteps.
func (b *Builder) Run(seconds float64) error {
	if b.terminated {
		return ErrTerminated
	}
	steps, err := b.steps("run duration", seconds)
	if err != nil {
		return err
	}
	b.emit(OpRun, steps)
	return nil
}

// Num fixes the source and sink flow counts. Issued exactly once, before
// any per-source or per-sink instruction.
func (b *Builder) Num(sources, sinks int) error {
	if b.terminated {
		return ErrTerminated
	}
	if b.numSet {
		return ErrNumFixed
	}
	if sources < 0 || sinks < 0 || sources > 0xFF || sinks > 0xFF {
		return fmt.Errorf("program: source/sink counts %d/%d out of range", sources, sinks)
	}
	b.numSet = true
	b.numSources = sources
	b.numSinks = sinks
	b.srcBurst = make([]burstReq, sources)
	b.srcProb = make([]uint32, sources)
	b.srcPeriod = make([]uint32, sources)
	b.srcDuty = make([]uint32, sources)
	b.srcPhase = make([]uint32, sources)
	b.srcKey = make([]uint32, sources)
	b.srcPayload = make([]bool, sources)
	b.srcRetries = make([]uint32, sources)
	b.srcPackets = make([]uint32, sources)
	for i := range b.srcPackets {
		b.srcPackets[i] = 1
	}
	b.sinkKey = make([]uint32, sinks)
	b.emit(OpNum, uint32(sources)|uint32(sinks)<<8)
	return nil
}

// RouterTimeout sets both router wait times. Always emitted; the matching
// RouterTimeoutRestore puts the pre-experiment values back.
func (b *Builder) RouterTimeout(wait1, wait2 int) error {
	if b.terminated {
		return ErrTerminated
	}
	w1, err := EncodeWaitTime(wait1)
	if err != nil {
		return err
	}
	w2, err := EncodeWaitTime(wait2)
	if err != nil {
		return err
	}
	b.emit(OpRouterTimeout, uint32(w1)<<16|uint32(w2)<<24)
	return nil
}

func (b *Builder) RouterTimeoutRestore() error {
	if b.terminated {
		return ErrTerminated
	}
	b.emit(OpRouterTimeoutRestore)
	return nil
}

// Reinject toggles dropped-packet reinjection. The interpreter starts
// with reinjection disabled.
func (b *Builder) Reinject(enable bool) error {
	if b.terminated {
		return ErrTerminated
	}
	if enable == b.reinject {
		return nil
	}
	if enable {
		b.emit(OpReinjectionEnable)
	} else {
		b.emit(OpReinjectionDisable)
	}
	b.reinject = enable
	return nil
}

// Record sets the recorded-counter mask.
func (b *Builder) Record(mask uint32) error {
	if b.terminated {
		return ErrTerminated
	}
	if mask == b.recordMask {
		return nil
	}
	b.emit(OpRecord, mask)
	b.recordMask = mask
	return nil
}

// RecordInterval sets the sampling interval; zero means one sample per
// recording run.
func (b *Builder) RecordInterval(seconds float64) error {
	if b.terminated {
		return ErrTerminated
	}
	b.intervalSec = seconds
	return b.applyInterval()
}

func (b *Builder) applyInterval() error {
	steps, err := b.steps("record interval", b.intervalSec)
	if err != nil {
		return err
	}
	if steps == b.intervalSteps {
		return nil
	}
	b.emit(OpRecordInterval, steps)
	b.intervalSteps = steps
	return nil
}

// Probability sets source i's per-timestep send probability. The full
// closed range maps onto the 32-bit operand.
func (b *Builder) Probability(i int, p float64) error {
	if err := b.sourceIndex(i); err != nil {
		return err
	}
	if p < 0 || p > 1 {
		return EncodeError{What: "probability", Value: p, Nearest: math.Min(1, math.Max(0, p))}
	}
	enc := uint32(math.Round(p * 0xFFFFFFFF))
	if enc == b.srcProb[i] {
		return nil
	}
	b.emit(indexed(OpProbability, i), enc)
	b.srcProb[i] = enc
	return nil
}

// Burst programs source i's burst envelope. Duty and phase are fractions
// of the period; a nil phase draws a new random phase on every emission.
// Period zero disables bursting and suppresses duty/phase entirely.
func (b *Builder) Burst(i int, period, duty float64, phase *float64) error {
	if err := b.sourceIndex(i); err != nil {
		return err
	}
	b.srcBurst[i] = burstReq{period: period, duty: duty, phase: phase}
	return b.applyBurst(i)
}

func (b *Builder) applyBurst(i int) error {
	req := b.srcBurst[i]
	periodSteps, err := b.steps("burst period", req.period)
	if err != nil {
		return err
	}
	if periodSteps != b.srcPeriod[i] {
		b.emit(indexed(OpBurstPeriod, i), periodSteps)
		b.srcPeriod[i] = periodSteps
	}
	if periodSteps == 0 {
		return nil
	}
	dutySteps := uint32(math.Round(req.duty * float64(periodSteps)))
	if dutySteps != b.srcDuty[i] {
		b.emit(indexed(OpBurstDuty, i), dutySteps)
		b.srcDuty[i] = dutySteps
	}
	if req.phase == nil {
		phaseSteps := uint32(b.rng.Int63n(int64(periodSteps)))
		b.emit(indexed(OpBurstPhase, i), phaseSteps)
		b.srcPhase[i] = phaseSteps
		return nil
	}
	phaseSteps := uint32(math.Round(*req.phase * float64(periodSteps)))
	if phaseSteps != b.srcPhase[i] {
		b.emit(indexed(OpBurstPhase, i), phaseSteps)
		b.srcPhase[i] = phaseSteps
	}
	return nil
}

// SourceKey sets the routing key source i transmits with. The low byte
// belongs to the interpreter and is masked off.
func (b *Builder) SourceKey(i int, key uint32) error {
	if err := b.sourceIndex(i); err != nil {
		return err
	}
	key &= keyMask
	if key == b.srcKey[i] {
		return nil
	}
	b.emit(indexed(OpSourceKey, i), key)
	b.srcKey[i] = key
	return nil
}

// Payload toggles whether source i sends payload-bearing packets.
func (b *Builder) Payload(i int, payload bool) error {
	if err := b.sourceIndex(i); err != nil {
		return err
	}
	if payload == b.srcPayload[i] {
		return nil
	}
	if payload {
		b.emit(indexed(OpPayload, i))
	} else {
		b.emit(indexed(OpNoPayload, i))
	}
	b.srcPayload[i] = payload
	return nil
}

// NumRetries sets how often source i re-offers a blocked packet before
// counting it as blocked.
func (b *Builder) NumRetries(i int, n uint32) error {
	if err := b.sourceIndex(i); err != nil {
		return err
	}
	if n == b.srcRetries[i] {
		return nil
	}
	b.emit(indexed(OpNumRetries, i), n)
	b.srcRetries[i] = n
	return nil
}

// PacketsPerTimestep sets how many packets source i offers each timestep.
func (b *Builder) PacketsPerTimestep(i int, n uint32) error {
	if err := b.sourceIndex(i); err != nil {
		return err
	}
	if n == b.srcPackets[i] {
		return nil
	}
	b.emit(indexed(OpPacketsPerTimestep, i), n)
	b.srcPackets[i] = n
	return nil
}

// SinkKey sets the routing key sink i accepts, masked like source keys.
func (b *Builder) SinkKey(i int, key uint32) error {
	if b.terminated {
		return ErrTerminated
	}
	if !b.numSet {
		return ErrNoNum
	}
	if i < 0 || i >= b.numSinks {
		return fmt.Errorf("%w: sink %d of %d", ErrIndexRange, i, b.numSinks)
	}
	key &= keyMask
	if key == b.sinkKey[i] {
		return nil
	}
	b.emit(indexed(OpSinkKey, i), key)
	b.sinkKey[i] = key
	return nil
}

// Consume toggles whether arriving packets are drained from the network.
// The interpreter starts consuming.
func (b *Builder) Consume(consume bool) error {
	if b.terminated {
		return ErrTerminated
	}
	if consume == b.consume {
		return nil
	}
	if consume {
		b.emit(OpConsume)
	} else {
		b.emit(OpNoConsume)
	}
	b.consume = consume
	return nil
}

func (b *Builder) sourceIndex(i int) error {
	if b.terminated {
		return ErrTerminated
	}
	if !b.numSet {
		return ErrNoNum
	}
	if i < 0 || i >= b.numSources {
		return fmt.Errorf("%w: source %d of %d", ErrIndexRange, i, b.numSources)
	}
	return nil
}

// steps converts a wall-clock duration to whole timesteps. Zero needs no
// timestep; anything else requires one to be set first.
func (b *Builder) steps(what string, seconds float64) (uint32, error) {
	if seconds == 0 {
		return 0, nil
	}
	if b.timestep == 0 {
		return 0, ErrNoTimestep
	}
	s := math.Round(seconds / b.timestep)
	if s < 0 || s > math.MaxUint32 {
		return 0, EncodeError{What: what, Value: seconds, Nearest: clampSeconds(s, 1/b.timestep)}
	}
	return uint32(s), nil
}

// clampSeconds maps a clamped raw operand back to seconds for error
// reporting.
func clampSeconds(raw, perSecond float64) float64 {
	if raw < 0 {
		return 0
	}
	if raw > math.MaxUint32 {
		return math.MaxUint32 / perSecond
	}
	return raw / perSecond
}
