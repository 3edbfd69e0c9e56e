package cpu

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tiny16/tiny16/mem"
)

func newTestCPU() *CPU {
	return NewCPU(mem.NewMemory(nil))
}

func TestResetStackPointer(t *testing.T) {
	assert := assert.New(t)

	c := newTestCPU()
	assert.Equal(uint16(SP_RESET), c.Registers[7])
}

func TestLdiSetsRegisterAndClearsFlags(t *testing.T) {
	assert := assert.New(t)

	c := newTestCPU()
	c.C, c.V = true, true
	c.Mem.Write16(0, encodeWide1(OP_LDI, 0))
	c.Mem.Write16(2, 0x8000)

	assert.NoError(c.Exec())
	assert.Equal(uint16(0x8000), c.Registers[0])
	assert.True(c.N)
	assert.False(c.Z)
	assert.False(c.C)
	assert.False(c.V)
	assert.Equal(uint16(4), c.PC)
}

func TestAddFlagConsistency(t *testing.T) {
	assert := assert.New(t)

	table := []struct {
		name    string
		a, b    uint16
		wantZ   bool
		wantC   bool
		wantV   bool
		wantSum uint16
	}{
		{"zero_sum", 1, 0xFFFF, true, true, false, 0},
		{"no_carry_no_overflow", 1, 2, false, false, false, 3},
		{"signed_overflow", 0x7FFF, 1, false, false, true, 0x8000},
		{"unsigned_carry_only", 0xFFFF, 2, false, true, false, 1},
	}

	for _, entry := range table {
		c := newTestCPU()
		c.Registers[0] = entry.a
		c.Registers[1] = entry.b
		c.Mem.Write16(0, encodeR(OP_ADD, 0, 1))

		assert.NoError(c.Exec(), entry.name)
		assert.Equal(entry.wantSum, c.Registers[0], entry.name)
		assert.Equal(entry.wantZ, c.Z, entry.name)
		assert.Equal(entry.wantC, c.C, entry.name)
		assert.Equal(entry.wantV, c.V, entry.name)
	}
}

func TestSubFlagConsistency(t *testing.T) {
	assert := assert.New(t)

	table := []struct {
		name  string
		a, b  uint16
		wantZ bool
		wantC bool
	}{
		{"equal", 5, 5, true, true},
		{"no_borrow", 5, 3, false, true},
		{"borrow", 3, 5, false, false},
	}

	for _, entry := range table {
		c := newTestCPU()
		c.Registers[0] = entry.a
		c.Registers[1] = entry.b
		c.Mem.Write16(0, encodeR(OP_SUB, 0, 1))

		assert.NoError(c.Exec(), entry.name)
		assert.Equal(entry.wantZ, c.Z, entry.name)
		assert.Equal(entry.wantC, c.C, entry.name)
	}
}

func TestCmpLeavesRegisterUnchangedButSetsSubFlags(t *testing.T) {
	assert := assert.New(t)

	c := newTestCPU()
	c.Registers[0] = 5
	c.Registers[1] = 5
	c.Mem.Write16(0, encodeR(OP_CMP, 0, 1))

	assert.NoError(c.Exec())
	assert.Equal(uint16(5), c.Registers[0])
	assert.True(c.Z)
	assert.True(c.C)
}

func TestShlCarryIsOldTopBit(t *testing.T) {
	assert := assert.New(t)

	c := newTestCPU()
	c.Registers[0] = 0x8001
	c.Mem.Write16(0, encodeRImm3(OP_SHL, 0, 1))

	assert.NoError(c.Exec())
	assert.Equal(uint16(0x0002), c.Registers[0])
	assert.True(c.C)
}

func TestShlZeroCountClearsCarry(t *testing.T) {
	assert := assert.New(t)

	c := newTestCPU()
	c.Registers[0] = 0xFFFF
	c.Mem.Write16(0, encodeRImm3(OP_SHL, 0, 0))

	assert.NoError(c.Exec())
	assert.Equal(uint16(0xFFFF), c.Registers[0])
	assert.False(c.C)
}

func TestShrCarryIsOldBitNMinus1(t *testing.T) {
	assert := assert.New(t)

	c := newTestCPU()
	c.Registers[0] = 0x0003
	c.Mem.Write16(0, encodeRImm3(OP_SHR, 0, 1))

	assert.NoError(c.Exec())
	assert.Equal(uint16(0x0001), c.Registers[0])
	assert.True(c.C)
}

func TestLoadStoreShortFormAddressing(t *testing.T) {
	assert := assert.New(t)

	c := newTestCPU()
	c.Registers[1] = 0x1000
	c.Registers[2] = 0xBEEF
	c.Mem.Write16(0, encodeStShort(1, 2, 4))
	c.Mem.Write16(2, encodeLdShort(3, 1, 4))

	assert.NoError(c.Exec())
	assert.Equal(uint16(0xBEEF), c.Mem.Read16(0x1004))

	assert.NoError(c.Exec())
	assert.Equal(uint16(0xBEEF), c.Registers[3])
}

func TestOutRoutesThroughMmioForHighAddresses(t *testing.T) {
	assert := assert.New(t)

	sink := &mem.BufferSink{}
	c := NewCPU(mem.NewMemory(sink))
	c.Registers[0] = 'A'
	c.Mem.Write16(0, encodeWide1(OP_OUT, 0))
	c.Mem.Write16(2, mem.UART_OUT)

	assert.NoError(c.Exec())
	assert.Equal([]byte{'A'}, sink.Bytes)
}

func TestCallRetStackBalance(t *testing.T) {
	assert := assert.New(t)

	c := newTestCPU()
	before := c.Registers[7]

	// CALL 0x0010 at address 0; RET at 0x0010.
	c.Mem.Write16(0, encodeWide1(OP_CALL, 0))
	c.Mem.Write16(2, 0x0010)
	c.Mem.Write16(0x0010, encodeR(OP_RET, 0, 0))

	assert.NoError(c.Exec()) // CALL
	assert.Equal(uint16(0x0010), c.PC)
	assert.NotEqual(before, c.Registers[7])

	assert.NoError(c.Exec()) // RET
	assert.Equal(uint16(4), c.PC, "RET must return to the instruction after CALL's operand")
	assert.Equal(before, c.Registers[7])
}

func TestUnknownOpcodeHaltsGracefullyWithFaultingPC(t *testing.T) {
	assert := assert.New(t)

	c := newTestCPU()
	c.Mem.Write16(0, 0xFFFF)

	err := c.Exec()
	assert.Error(err)
	assert.True(c.Halted)

	var rerr *RuntimeError
	assert.True(errors.As(err, &rerr))
	assert.Equal(uint16(0), rerr.PC)
	assert.True(errors.Is(err, ErrUnknownOpcode))

	// Further Exec calls after halting are no-ops.
	assert.NoError(c.Exec())
}

func TestHaltSetsFlagAndStopsExecution(t *testing.T) {
	assert := assert.New(t)

	c := newTestCPU()
	c.Mem.Write16(0, encodeR(OP_HALT, 0, 0))

	assert.NoError(c.Exec())
	assert.True(c.Halted)
}

func TestTimerTicksOnceRegardlessOfInstructionWidth(t *testing.T) {
	assert := assert.New(t)

	c := newTestCPU()
	c.Mem.Write16(0, encodeR(OP_NOP, 0, 0))
	c.Mem.Write16(2, encodeWide1(OP_LDI, 0))
	c.Mem.Write16(4, 0x0001)

	assert.NoError(c.Exec())
	assert.Equal(uint16(1), c.Mem.Timer)

	assert.NoError(c.Exec())
	assert.Equal(uint16(2), c.Mem.Timer)
}
