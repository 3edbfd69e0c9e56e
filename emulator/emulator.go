package emulator

import (
	"context"
	"iter"

	"github.com/tiny16/tiny16/cpu"
	"github.com/tiny16/tiny16/internal"
	"github.com/tiny16/tiny16/mem"
)

// Emulator wires a cpu.CPU to a mem.Memory: image loading at a base
// address, a run-to-halt loop on top of CPU.Exec, and the debug
// accessors a driver's verbose trace needs.
type Emulator struct {
	Verbose bool

	CPU *cpu.CPU
	Mem *mem.Memory

	// Program is the assembled listing currently loaded, if any. It is
	// only used to resolve LineNo/CurrentInstruction against source
	// provenance; a nil Program still runs fine, just without line
	// numbers.
	Program *cpu.Program
}

// NewEmulator builds a CPU and Memory pair, with Memory's UART output
// routed to sink.
func NewEmulator(sink mem.Sink) *Emulator {
	m := mem.NewMemory(sink)
	return &Emulator{
		CPU: cpu.NewCPU(m),
		Mem: m,
	}
}

// Load copies image into Memory starting at base. It is the host's
// responsibility to call Reset afterward with the program's intended
// entry point.
func (emu *Emulator) Load(image []byte, base uint16) error {
	if int(base)+len(image) > 0x10000 {
		return ErrImageTooLarge
	}
	for i, b := range image {
		emu.Mem.Ram[int(base)+i] = b
	}
	return nil
}

// Reset sets CPU.PC to pc. Registers[7] already defaults to
// cpu.SP_RESET at construction; the host may overwrite it afterward.
func (emu *Emulator) Reset(pc uint16) {
	emu.CPU.PC = pc
	emu.CPU.Halted = false
}

// Tick executes exactly one instruction.
func (emu *Emulator) Tick() (halted bool, err error) {
	emu.CPU.Verbose = emu.Verbose
	if err := emu.CPU.Exec(); err != nil {
		return true, err
	}
	return emu.CPU.Halted, nil
}

// Run loops Tick until the CPU halts, an error is raised, or ctx is
// cancelled. The emulation loop itself stays single-threaded and
// synchronous; ctx is checked only between ticks.
func (emu *Emulator) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		halted, err := emu.Tick()
		if err != nil {
			return err
		}
		if halted {
			return nil
		}
	}
}

// LineNo returns the source line number of the instruction at the
// current PC, or 0 if no Program is attached or the PC has no
// provenance (e.g. it fell outside any emitted instruction).
func (emu *Emulator) LineNo() int {
	if emu.Program == nil {
		return 0
	}
	op, ok := emu.Program.At(emu.CPU.PC)
	if !ok {
		return 0
	}
	return op.LineNo
}

// CurrentInstruction decodes the instruction at the current PC
// without executing it, for a debugger or verbose trace.
func (emu *Emulator) CurrentInstruction() (cpu.Instruction, bool) {
	if emu.CPU.Halted {
		return cpu.Instruction{}, false
	}
	ins, _ := emu.CPU.Decode(emu.CPU.PC)
	return ins, true
}

// Defines yields every named constant across Memory and CPU, for a
// driver's symbol listing.
func (emu *Emulator) Defines() iter.Seq2[string, string] {
	return internal.IterSeq2Concat(emu.Mem.Defines(), emu.CPU.Defines())
}
