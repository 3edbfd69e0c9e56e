package cpu

import (
	"fmt"
	"iter"
	"log"

	"github.com/tiny16/tiny16/mem"
)

// SP_RESET is the stack pointer value R7 is initialized to at CPU
// construction. Nothing prevents other uses of R7.
const SP_RESET = 0x7FFC

// CPU is the Tiny16 register file, condition flags, and execution
// engine. It drives a mem.Memory but does not own it, so a driver or
// test can inspect memory independently between steps.
type CPU struct {
	Registers [8]uint16
	PC        uint16

	Z, N, C, V bool
	Halted     bool

	Verbose bool

	Mem *mem.Memory
}

// NewCPU constructs a CPU wired to m, with R7 defaulted to SP_RESET.
func NewCPU(m *mem.Memory) *CPU {
	c := &CPU{Mem: m}
	c.Registers[7] = SP_RESET
	return c
}

func (c *CPU) String() string {
	return fmt.Sprintf("pc=0x%04x r0=0x%04x r1=0x%04x r2=0x%04x r3=0x%04x r4=0x%04x r5=0x%04x r6=0x%04x r7=0x%04x z=%v n=%v c=%v v=%v halted=%v",
		c.PC, c.Registers[0], c.Registers[1], c.Registers[2], c.Registers[3],
		c.Registers[4], c.Registers[5], c.Registers[6], c.Registers[7],
		c.Z, c.N, c.C, c.V, c.Halted)
}

// Decode reads and decodes the instruction at pc, returning it along
// with the PC that follows it (pc+2, or pc+4 for wide forms). It does
// not mutate CPU state.
func (c *CPU) Decode(pc uint16) (ins Instruction, next uint16) {
	word := c.Mem.Read16(pc)
	op := decodeOp(word)
	ins = Instruction{
		Op:   op,
		PC:   pc,
		Rd:   decodeRd(word),
		Rs1:  decodeRs1(word),
		Imm3: decodeImm3(word),
		Imm5: sext5(decodeImm5(word)),
		Imm8: sext8(decodeImm8(word)),
	}
	next = pc + 2
	if op.IsWide() {
		ins.Operand = c.Mem.Read16(next)
		ins.HasOperand = true
		next += 2
	}
	return ins, next
}

// Exec fetches, decodes, and executes exactly one instruction, then
// ticks the timer once. A no-op if the CPU is already halted. On an
// unknown opcode, Halted is set and a *RuntimeError naming the
// faulting PC is returned -- a graceful halt, not a crash.
func (c *CPU) Exec() error {
	if c.Halted {
		return nil
	}

	ins, next := c.Decode(c.PC)
	c.PC = next

	if c.Verbose {
		log.Printf("tiny16: cpu: %04x: %v", ins.PC, ins)
	}

	if err := c.execute(ins); err != nil {
		c.Halted = true
		return &RuntimeError{PC: ins.PC, Err: err}
	}

	c.Mem.Tick()
	return nil
}

func (c *CPU) execute(ins Instruction) error {
	switch ins.Op {
	case OP_NOP:
		// no effect

	case OP_HALT:
		c.Halted = true

	case OP_LDI:
		c.Registers[ins.Rd] = ins.Operand
		c.setLogicalFlags(c.Registers[ins.Rd])

	case OP_MOV:
		c.Registers[ins.Rd] = c.Registers[ins.Rs1]
		c.setLogicalFlags(c.Registers[ins.Rd])

	case OP_ADD:
		c.Registers[ins.Rd] = c.addInto(c.Registers[ins.Rd], c.Registers[ins.Rs1])

	case OP_SUB:
		c.Registers[ins.Rd] = c.subInto(c.Registers[ins.Rd], c.Registers[ins.Rs1])

	case OP_AND:
		c.Registers[ins.Rd] &= c.Registers[ins.Rs1]
		c.setLogicalFlags(c.Registers[ins.Rd])

	case OP_OR:
		c.Registers[ins.Rd] |= c.Registers[ins.Rs1]
		c.setLogicalFlags(c.Registers[ins.Rd])

	case OP_XOR:
		c.Registers[ins.Rd] ^= c.Registers[ins.Rs1]
		c.setLogicalFlags(c.Registers[ins.Rd])

	case OP_NOT:
		c.Registers[ins.Rd] = ^c.Registers[ins.Rd]
		c.setLogicalFlags(c.Registers[ins.Rd])

	case OP_SHL:
		c.Registers[ins.Rd] = c.shiftLeft(c.Registers[ins.Rd], ins.Imm3&0x7)

	case OP_SHR:
		c.Registers[ins.Rd] = c.shiftRight(c.Registers[ins.Rd], ins.Imm3&0x7)

	case OP_ADDI:
		c.Registers[ins.Rd] = c.addInto(c.Registers[ins.Rd], uint16(ins.Imm8))

	case OP_CMPI:
		c.subInto(c.Registers[ins.Rd], uint16(ins.Imm8))

	case OP_CMP:
		c.subInto(c.Registers[ins.Rd], c.Registers[ins.Rs1])

	case OP_LD:
		c.Registers[ins.Rd] = c.Mem.Read16(ins.Operand)
		c.setLogicalFlags(c.Registers[ins.Rd])

	case OP_ST:
		c.Mem.Write16(ins.Operand, c.Registers[ins.Rs1])

	case OP_LDB:
		c.Registers[ins.Rd] = uint16(c.Mem.Read8(ins.Operand))
		c.setLogicalFlags(c.Registers[ins.Rd])

	case OP_STB:
		c.Mem.Write8(ins.Operand, byte(c.Registers[ins.Rs1]))

	case OP_LDR:
		addr := c.Registers[ins.Rs1] + uint16(ins.Imm5)
		c.Registers[ins.Rd] = c.Mem.Read16(addr)
		c.setLogicalFlags(c.Registers[ins.Rd])

	case OP_STR:
		addr := c.Registers[ins.Rd] + uint16(ins.Imm5)
		c.Mem.Write16(addr, c.Registers[ins.Rs1])

	case OP_JMP:
		c.PC = ins.Operand

	case OP_JZ:
		if c.Z {
			c.PC = ins.Operand
		}

	case OP_JNZ:
		if !c.Z {
			c.PC = ins.Operand
		}

	case OP_JC:
		if c.C {
			c.PC = ins.Operand
		}

	case OP_JN:
		if c.N {
			c.PC = ins.Operand
		}

	case OP_CALL:
		c.push16(c.PC)
		c.PC = ins.Operand

	case OP_RET:
		c.PC = c.pop16()

	case OP_IN:
		if ins.Operand >= mem.MMIO_BASE {
			c.Registers[ins.Rd] = uint16(c.Mem.Read8(ins.Operand))
		} else {
			c.Registers[ins.Rd] = c.Mem.Read16(ins.Operand)
		}
		c.setLogicalFlags(c.Registers[ins.Rd])

	case OP_OUT:
		if ins.Operand >= mem.MMIO_BASE {
			c.Mem.Write8(ins.Operand, byte(c.Registers[ins.Rs1]))
		} else {
			c.Mem.Write16(ins.Operand, c.Registers[ins.Rs1])
		}

	default:
		return ErrUnknownOpcode
	}

	return nil
}

// setLogicalFlags sets Z and N from v and clears C and V, the shared
// flag rule for load/move/logical instructions.
func (c *CPU) setLogicalFlags(v uint16) {
	c.Z = v == 0
	c.N = v&0x8000 != 0
	c.C = false
	c.V = false
}

// addInto computes a+b with the documented carry/overflow formulas
// and returns the 16-bit result.
func (c *CPU) addInto(a, b uint16) uint16 {
	w := uint32(a) + uint32(b)
	result := uint16(w)
	c.C = w>>16&1 != 0
	c.V = (^(a^b)&(a^result))>>15&1 != 0
	c.Z = result == 0
	c.N = result&0x8000 != 0
	return result
}

// subInto computes a-b (via a + ^b + 1) with the documented
// carry/overflow formulas and returns the 16-bit result. C=1 means no
// borrow occurred.
func (c *CPU) subInto(a, b uint16) uint16 {
	w := uint32(a) + uint32(^b) + 1
	result := uint16(w)
	c.C = w>>16&1 != 0
	c.V = ((a^b)&(a^result))>>15&1 != 0
	c.Z = result == 0
	c.N = result&0x8000 != 0
	return result
}

func (c *CPU) shiftLeft(v uint16, n byte) uint16 {
	if n > 0 {
		c.C = (v>>(16-n))&1 != 0
	} else {
		c.C = false
	}
	result := v << n
	c.Z = result == 0
	c.N = result&0x8000 != 0
	c.V = false
	return result
}

func (c *CPU) shiftRight(v uint16, n byte) uint16 {
	if n > 0 {
		c.C = (v>>(n-1))&1 != 0
	} else {
		c.C = false
	}
	result := v >> n
	c.Z = result == 0
	c.N = result&0x8000 != 0
	c.V = false
	return result
}

// push16 decrements R7 by 2 and writes v at the new R7. The stack
// grows downward.
func (c *CPU) push16(v uint16) {
	c.Registers[7] -= 2
	c.Mem.Write16(c.Registers[7], v)
}

// pop16 reads the 16-bit value at R7, then increments R7 by 2.
func (c *CPU) pop16() uint16 {
	v := c.Mem.Read16(c.Registers[7])
	c.Registers[7] += 2
	return v
}

// Defines yields opcode mnemonics and their numeric value, for a
// driver's symbol listing.
func (c *CPU) Defines() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for op := Op(0); op <= OP_OUT; op++ {
			name, ok := opNames[op]
			if !ok {
				continue
			}
			if !yield(name, fmt.Sprintf("0x%02x", byte(op))) {
				return
			}
		}
	}
}
