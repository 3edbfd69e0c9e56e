package emulator

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tiny16/tiny16/cpu"
	"github.com/tiny16/tiny16/mem"
)

func assembleAndRun(t *testing.T, src string, sink mem.Sink) (*Emulator, *cpu.Program) {
	t.Helper()

	asm := &cpu.Assembler{}
	prog, err := asm.Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}

	emu := NewEmulator(sink)
	emu.Program = prog
	if err := emu.Load(prog.Image, 0); err != nil {
		t.Fatalf("load: %v", err)
	}
	emu.Reset(0)

	if err := emu.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	return emu, prog
}

// TestEmulatorHello covers end-to-end scenario 1.
func TestEmulatorHello(t *testing.T) {
	assert := assert.New(t)

	var b strings.Builder
	for _, c := range "Hello, World!\n" {
		b.WriteString("LDI r0, ")
		b.WriteString(strconv.Itoa(int(c)))
		b.WriteString("\nOUT r0, [0xFF00]\n")
	}
	b.WriteString("HALT\n")

	sink := &mem.BufferSink{}
	assembleAndRun(t, b.String(), sink)

	assert.Equal("Hello, World!\n", string(sink.Bytes))
	assert.Len(sink.Bytes, 14)
}

// TestEmulatorFibonacciBuffer covers end-to-end scenario 2.
func TestEmulatorFibonacciBuffer(t *testing.T) {
	assert := assert.New(t)

	src := `
  LDI r0, 0
  LDI r1, 1
  LDI r2, 10
  LDI r3, buf
loop:
  ST r0, [r3+0]
  ADDI r3, 2
  MOV r4, r1
  ADD r1, r0
  MOV r0, r4
  ADDI r2, -1
  JNZ loop
  HALT
buf:
  .word 0,0,0,0,0,0,0,0,0,0
`
	emu, prog := assembleAndRun(t, src, nil)

	bufAddr := prog.Labels["buf"]
	want := []uint16{0, 1, 1, 2, 3, 5, 8, 13, 21, 34}
	for i, w := range want {
		got := emu.Mem.Read16(bufAddr + uint16(2*i))
		assert.Equal(w, got, "word %d", i)
	}
	assert.Equal(uint16(0), emu.CPU.Registers[2])
}

// TestEmulatorTimerFires covers end-to-end scenario 3.
func TestEmulatorTimerFires(t *testing.T) {
	assert := assert.New(t)

	src := `
  LDI r0, 5
  STB r0, [0xFF12]
  LDI r0, 0
  STB r0, [0xFF13]
  NOP
  NOP
  NOP
  NOP
  NOP
  HALT
`
	emu, _ := assembleAndRun(t, src, nil)
	assert.True(emu.Mem.IrqPending)

	emu.Mem.Write8(0xFF14, 1)
	assert.False(emu.Mem.IrqPending)
}

// TestEmulatorCallRetRoundTrip covers end-to-end scenario 4.
func TestEmulatorCallRetRoundTrip(t *testing.T) {
	assert := assert.New(t)

	src := `
  CALL routine
after_call:
  HALT
routine:
  RET
`
	asm := &cpu.Assembler{}
	prog, err := asm.Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}

	emu := NewEmulator(nil)
	emu.Program = prog
	if err := emu.Load(prog.Image, 0); err != nil {
		t.Fatalf("load: %v", err)
	}
	emu.Reset(0)

	sp0 := emu.CPU.Registers[7]

	halted, err := emu.Tick() // CALL
	assert.NoError(err)
	assert.False(halted)
	assert.Equal(prog.Labels["routine"], emu.CPU.PC)

	halted, err = emu.Tick() // RET
	assert.NoError(err)
	assert.False(halted)
	assert.Equal(prog.Labels["after_call"], emu.CPU.PC)
	assert.Equal(sp0, emu.CPU.Registers[7])
}

// TestEmulatorUnknownOpcodeHalts covers end-to-end scenario 5.
func TestEmulatorUnknownOpcodeHalts(t *testing.T) {
	assert := assert.New(t)

	emu := NewEmulator(nil)
	if err := emu.Load([]byte{0xFF, 0xFF}, 0); err != nil {
		t.Fatalf("load: %v", err)
	}
	emu.Reset(0)

	halted, err := emu.Tick()
	assert.True(halted)
	assert.Error(err)

	var rtErr *cpu.RuntimeError
	assert.True(errors.As(err, &rtErr))
	assert.Equal(uint16(0), rtErr.PC)
	assert.True(emu.CPU.Halted)
}

// TestEmulatorShortVsAbsoluteLdSizes covers end-to-end scenario 6.
func TestEmulatorShortVsAbsoluteLdSizes(t *testing.T) {
	assert := assert.New(t)

	asm := &cpu.Assembler{}
	prog, err := asm.Parse(strings.NewReader("LD r0, [r1+2]\nLD r0, [0x2000]\n"))
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}

	assert.Len(prog.Image, 6)
	assert.Equal(byte(0x13), prog.Image[1]>>3) // op bits 15:11 of the short form's control word
	assert.Equal(byte(0x0F), prog.Image[3]>>3) // op bits 15:11 of the absolute form's control word
	assert.Equal(byte(0x00), prog.Image[4])
	assert.Equal(byte(0x20), prog.Image[5])
}

func TestEmulatorRunCancelledByContext(t *testing.T) {
	assert := assert.New(t)

	asm := &cpu.Assembler{}
	prog, err := asm.Parse(strings.NewReader("loop:\n  JMP loop\n"))
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}

	emu := NewEmulator(nil)
	if err := emu.Load(prog.Image, 0); err != nil {
		t.Fatalf("load: %v", err)
	}
	emu.Reset(0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = emu.Run(ctx)
	assert.ErrorIs(err, context.Canceled)
}

func TestEmulatorDefinesCombinesMemAndCpu(t *testing.T) {
	assert := assert.New(t)

	emu := NewEmulator(nil)
	seen := map[string]string{}
	for name, value := range emu.Defines() {
		seen[name] = value
	}
	assert.Contains(seen, "UART_OUT")
	assert.Contains(seen, "HALT")
}
