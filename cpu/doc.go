// Package cpu implements the Tiny16 execution engine and its two-pass
// assembler: Opcode/Instruction decoding and CPU.Exec for running a
// program, and Assembler.Parse for turning assembly text into a
// Program ready to load into memory.
package cpu
