package program

// Instruction opcodes understood by the on-chip interpreter. Per-source
// and per-sink instructions carry the source/sink index in bits 8-15 of
// the opcode word.
const (
	OpExit                 uint32 = 0x00
	OpSleep                uint32 = 0x01
	OpBarrier              uint32 = 0x02
	OpSeed                 uint32 = 0x03
	OpTimestep             uint32 = 0x04
	OpRun                  uint32 = 0x05
	OpNum                  uint32 = 0x06
	OpRouterTimeout        uint32 = 0x07
	OpRouterTimeoutRestore uint32 = 0x08
	OpReinjectionEnable    uint32 = 0x09
	OpReinjectionDisable   uint32 = 0x0A

	OpRecord         uint32 = 0x10
	OpRecordInterval uint32 = 0x11

	OpProbability        uint32 = 0x20
	OpBurstPeriod        uint32 = 0x21
	OpBurstDuty          uint32 = 0x22
	OpBurstPhase         uint32 = 0x23
	OpSourceKey          uint32 = 0x24
	OpPayload            uint32 = 0x25
	OpNoPayload          uint32 = 0x26
	OpNumRetries         uint32 = 0x27
	OpPacketsPerTimestep uint32 = 0x28

	OpConsume   uint32 = 0x30
	OpNoConsume uint32 = 0x31
	OpSinkKey   uint32 = 0x32
)

// keyMask clears the per-packet count field the interpreter owns; only
// the top 24 bits of a routing key are significant.
const keyMask uint32 = 0xFFFFFF00
