// Package emulator wires a cpu.CPU to a mem.Memory, providing image
// loading at a base address and a run-to-halt loop on top of the
// single-step cpu.CPU.Exec.
package emulator
