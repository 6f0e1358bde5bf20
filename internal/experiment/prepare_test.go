package experiment

import (
	"encoding/binary"
	"errors"
	"math/rand"
	"testing"

	"github.com/meshkit/netbench/internal/counters"
	"github.com/meshkit/netbench/internal/mesh"
	"github.com/meshkit/netbench/internal/options"
	"github.com/meshkit/netbench/internal/program"
	"github.com/meshkit/netbench/internal/testutil/testlog"
	"github.com/meshkit/netbench/internal/transport"
)

// unpackWords strips the length prefix of a packed image and returns the
// instruction words.
func unpackWords(t *testing.T, image []byte) []uint32 {
	t.Helper()
	if len(image) < 4 || len(image)%4 != 0 {
		t.Fatalf("image length %d not framed", len(image))
	}
	if n := binary.LittleEndian.Uint32(image[0:4]); int(n) != len(image)-4 {
		t.Fatalf("length prefix %d, want %d", n, len(image)-4)
	}
	words := make([]uint32, 0, len(image)/4-1)
	for off := 4; off < len(image); off += 4 {
		words = append(words, binary.LittleEndian.Uint32(image[off:off+4]))
	}
	return words
}

func wordsEqual(t *testing.T, got, want []uint32) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("stream length %d, want %d\ngot  %#x\nwant %#x", len(got), len(want), got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("word %d = %#x, want %#x\ngot  %#x\nwant %#x", i, got[i], want[i], got, want)
		}
	}
}

// twoCoreExperiment is the canonical small setup: src and dst sharing the
// only chip, one flow between them, sent and received recorded.
func twoCoreExperiment(t *testing.T, tr transport.Transport) (*Experiment, *Core, *Core, *Flow) {
	t.Helper()
	e := New(tr, mesh.NewMachine(1, 1))
	e.SetLogger(testlog.Start(t))
	e.SetRand(rand.New(rand.NewSource(1)))
	src := e.NewCore("src")
	dst := e.NewCore("dst")
	f, err := e.NewFlow("f", src, dst)
	if err != nil {
		t.Fatalf("flow: %v", err)
	}
	for opt, v := range map[options.Option]any{
		options.Timestep:       1e-4,
		options.Seed:           42,
		options.Warmup:         0.001,
		options.Duration:       0.01,
		options.FlushTime:      0.01,
		options.RecordSent:     true,
		options.RecordReceived: true,
	} {
		if err := e.Option(opt).Set(v); err != nil {
			t.Fatalf("set %s: %v", opt, err)
		}
	}
	if err := f.Option(options.Probability).Set(0.5); err != nil {
		t.Fatalf("set probability: %v", err)
	}
	if _, err := e.BeginGroup("g"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := e.EndGroup(); err != nil {
		t.Fatalf("end: %v", err)
	}
	return e, src, dst, f
}

func TestPrepareCompilesSourceStream(t *testing.T) {
	e, src, _, f := twoCoreExperiment(t, transport.NewMem())
	p, err := e.Prepare()
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if f.Key() != 0x100 {
		t.Fatalf("flow key = %#x, want 0x100", f.Key())
	}

	mask := counters.DeadlinesMissed.Bit() | counters.Sent.Bit()
	want := []uint32{
		program.OpNum, 1,
		program.OpSeed, 42,
		program.OpTimestep, 100000,
		program.OpSourceKey, 0x100,
		program.OpProbability, 0x80000000,
		program.OpBarrier,
		program.OpRun, 10,
		program.OpRecord, mask,
		program.OpRun, 100,
		program.OpRecord, 0,
		program.OpRun, 0,
		program.OpSleep, 10000,
		program.OpBarrier,
		program.OpExit,
	}
	wordsEqual(t, unpackWords(t, p.Image(src)), want)
}

func TestPrepareCompilesSinkStream(t *testing.T) {
	e, _, dst, _ := twoCoreExperiment(t, transport.NewMem())
	p, err := e.Prepare()
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}

	mask := counters.DeadlinesMissed.Bit() | counters.Received.Bit()
	want := []uint32{
		program.OpNum, 1 << 8,
		program.OpSeed, 42,
		program.OpTimestep, 100000,
		program.OpSinkKey, 0x100,
		program.OpBarrier,
		program.OpRun, 10,
		program.OpRecord, mask,
		program.OpRun, 100,
		program.OpRecord, 0,
		program.OpRun, 0,
		program.OpSleep, 10000,
		program.OpBarrier,
		program.OpExit,
	}
	wordsEqual(t, unpackWords(t, p.Image(dst)), want)
}

func TestPrepareEmitsOnlyChangesPerGroup(t *testing.T) {
	e, src, _, f := twoCoreExperiment(t, transport.NewMem())
	g2, err := e.BeginGroup("g2")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := f.Option(options.Probability).Set(0.25); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := e.EndGroup(); err != nil {
		t.Fatalf("end: %v", err)
	}
	_ = g2

	p, err := e.Prepare()
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}

	mask := counters.DeadlinesMissed.Bit() | counters.Sent.Bit()
	phase := []uint32{
		program.OpBarrier,
		program.OpRun, 10,
		program.OpRecord, mask,
		program.OpRun, 100,
		program.OpRecord, 0,
		program.OpRun, 0,
		program.OpSleep, 10000,
	}
	want := []uint32{
		program.OpNum, 1,
		program.OpSeed, 42,
		program.OpTimestep, 100000,
		program.OpSourceKey, 0x100,
		program.OpProbability, 0x80000000,
	}
	want = append(want, phase...)
	// the explicit seed is re-emitted every group; only the changed
	// probability follows it
	want = append(want,
		program.OpSeed, 42,
		program.OpProbability, 0x40000000,
	)
	want = append(want, phase...)
	want = append(want, program.OpBarrier, program.OpExit)
	wordsEqual(t, unpackWords(t, p.Image(src)), want)
}

func TestPrepareRouterBracket(t *testing.T) {
	e, src, dst, _ := twoCoreExperiment(t, transport.NewMem())
	if err := e.Option(options.RouterTimeout).Set(16); err != nil {
		t.Fatalf("set timeout: %v", err)
	}
	if err := e.Option(options.ReinjectPackets).Set(true); err != nil {
		t.Fatalf("set reinject: %v", err)
	}
	p, err := e.Prepare()
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}

	// src registered first, so it owns the chip's router
	srcWords := unpackWords(t, p.Image(src))
	wantOps := map[uint32]int{
		program.OpRouterTimeout:        1,
		program.OpRouterTimeoutRestore: 1,
		program.OpReinjectionEnable:    1,
		program.OpReinjectionDisable:   1,
	}
	counts := countOps(srcWords)
	for op, want := range wantOps {
		if counts[op] != want {
			t.Fatalf("src op %#x count = %d, want %d (stream %#x)", op, counts[op], want, srcWords)
		}
	}
	// encode(16) = 0x10 in wait1, zero in wait2
	if idx := indexOf(srcWords, program.OpRouterTimeout); srcWords[idx+1] != 0x00100000 {
		t.Fatalf("timeout operand = %#x, want 0x00100000", srcWords[idx+1])
	}

	dstWords := unpackWords(t, p.Image(dst))
	counts = countOps(dstWords)
	for op := range wantOps {
		if counts[op] != 0 {
			t.Fatalf("dst emits router op %#x", op)
		}
	}
}

// countOps tallies opcode words, skipping operands. It mirrors the
// interpreter's fetch loop, so indexed opcodes count under their base.
func countOps(words []uint32) map[uint32]int {
	operands := map[uint32]int{
		program.OpSleep: 1, program.OpSeed: 1, program.OpTimestep: 1,
		program.OpRun: 1, program.OpNum: 1, program.OpRouterTimeout: 1,
		program.OpRecord: 1, program.OpRecordInterval: 1,
		program.OpProbability: 1, program.OpBurstPeriod: 1,
		program.OpBurstDuty: 1, program.OpBurstPhase: 1,
		program.OpSourceKey: 1, program.OpNumRetries: 1,
		program.OpPacketsPerTimestep: 1, program.OpSinkKey: 1,
	}
	counts := make(map[uint32]int)
	for i := 0; i < len(words); i++ {
		op := words[i] & 0xFF
		counts[op]++
		i += operands[op]
	}
	return counts
}

func indexOf(words []uint32, op uint32) int {
	for i, w := range words {
		if w&0xFF == op {
			return i
		}
	}
	return -1
}

func TestPrepareSampleCounts(t *testing.T) {
	tests := []struct {
		name     string
		duration float64
		interval float64
		want     int
	}{
		{"no interval", 0.01, 0, 1},
		{"exact tenth", 1.0, 0.1, 10},
		{"inexact float ratio", 0.3, 0.1, 3},
		{"interval exceeds duration", 1.0, 2.0, 0},
		{"zero duration", 0, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, src, _, _ := twoCoreExperiment(t, transport.NewMem())
			if err := e.Option(options.Duration).Set(tt.duration); err != nil {
				t.Fatalf("set duration: %v", err)
			}
			if err := e.Option(options.RecordInterval).Set(tt.interval); err != nil {
				t.Fatalf("set interval: %v", err)
			}
			p, err := e.Prepare()
			if err != nil {
				t.Fatalf("prepare: %v", err)
			}
			if p.TotalSamples() != tt.want {
				t.Fatalf("samples = %d, want %d", p.TotalSamples(), tt.want)
			}
			// two columns on src: deadlines_missed and sent
			if got, want := p.ResultSize(src), 4+4*tt.want*2; got != want {
				t.Fatalf("result size = %d, want %d", got, want)
			}
		})
	}
}

func TestPrepareRecordLists(t *testing.T) {
	e, src, dst, f := twoCoreExperiment(t, transport.NewMem())
	p, err := e.Prepare()
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}

	srcList := p.Records(src)
	if len(srcList) != 2 ||
		srcList[0].Counter != counters.DeadlinesMissed ||
		srcList[1].Counter != counters.Sent || srcList[1].Flow != f {
		t.Fatalf("src records = %+v", srcList)
	}
	dstList := p.Records(dst)
	if len(dstList) != 2 ||
		dstList[0].Counter != counters.DeadlinesMissed ||
		dstList[1].Counter != counters.Received || dstList[1].Flow != f {
		t.Fatalf("dst records = %+v", dstList)
	}
}

func TestPrepareHiddenRecorderCores(t *testing.T) {
	e := New(transport.NewMem(), mesh.NewMachine(2, 2))
	c := e.NewCore("only")
	c.Pin(mesh.Coord{X: 0, Y: 0})
	if err := e.Option(options.RecordLocalMulticast).Set(true); err != nil {
		t.Fatalf("set: %v", err)
	}
	p, err := e.Prepare()
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}

	cores := p.Cores()
	if len(cores) != 4 {
		t.Fatalf("cores = %d, want 1 real + 3 hidden", len(cores))
	}
	chips := map[mesh.Coord]bool{}
	for _, core := range cores {
		loc := p.Location(core)
		chips[loc.Chip()] = true
		recs := p.Records(core)
		// every chip's recorder carries the router counter column
		var chipCols int
		for _, r := range recs {
			if r.Counter == counters.LocalMulticast {
				chipCols++
			}
		}
		if chipCols != 1 {
			t.Fatalf("core %s chip columns = %d, want 1", core, chipCols)
		}
	}
	if len(chips) != 4 {
		t.Fatalf("recorders cover %d chips, want 4", len(chips))
	}
}

func TestPrepareSharedChipRouterAccess(t *testing.T) {
	e, src, dst, _ := twoCoreExperiment(t, transport.NewMem())
	if err := e.Option(options.RecordLocalMulticast).Set(true); err != nil {
		t.Fatalf("set: %v", err)
	}
	p, err := e.Prepare()
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if len(p.Cores()) != 2 {
		t.Fatalf("cores = %d, hidden core added to an occupied chip", len(p.Cores()))
	}

	hasChipCol := func(c *Core) bool {
		for _, r := range p.Records(c) {
			if r.Counter == counters.LocalMulticast {
				return true
			}
		}
		return false
	}
	if !hasChipCol(src) {
		t.Fatalf("first core on chip lacks the router column")
	}
	if hasChipCol(dst) {
		t.Fatalf("second core on chip also records the router")
	}
}

func TestPrepareWithOpenGroup(t *testing.T) {
	e, _, _, _ := twoCoreExperiment(t, transport.NewMem())
	if _, err := e.BeginGroup("open"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := e.Prepare(); !errors.Is(err, ErrOpenGroup) {
		t.Fatalf("prepare err = %v, want ErrOpenGroup", err)
	}
}

func TestPrepareBufferSizeCoversImageAndResults(t *testing.T) {
	e, src, _, _ := twoCoreExperiment(t, transport.NewMem())
	p, err := e.Prepare()
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if p.BufferSize(src) < len(p.Image(src)) {
		t.Fatalf("buffer %d smaller than image %d", p.BufferSize(src), len(p.Image(src)))
	}
	if p.BufferSize(src) < p.ResultSize(src) {
		t.Fatalf("buffer %d smaller than results %d", p.BufferSize(src), p.ResultSize(src))
	}
}
