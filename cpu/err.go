package cpu

import (
	"errors"

	"github.com/tiny16/tiny16/translate"
)

var f = translate.From

var (
	// Runtime errors
	ErrUnknownOpcode = errors.New(f("unknown opcode"))

	// Assembler errors
	ErrEquateDuplicate    = errors.New(f(".equ duplicated"))
	ErrEquateSyntax       = errors.New(f(".equ syntax"))
	ErrLabelDuplicate     = errors.New(f("label duplicated"))
	ErrOrgBackwards       = errors.New(f(".org cannot move backwards"))
	ErrMnemonicUnknown    = errors.New(f("unknown mnemonic"))
	ErrOperandArity       = errors.New(f("wrong number of operands"))
	ErrOperandInvalid     = errors.New(f("invalid operand"))
	ErrRegisterInvalid    = errors.New(f("invalid register"))
	ErrShiftOutOfRange    = errors.New(f("shift count out of range"))
	ErrStringUnterminated = errors.New(f("unterminated string literal"))
	ErrExpressionInvalid  = errors.New(f("invalid expression"))
)

// ErrLabelMissing names a label referenced but never defined.
type ErrLabelMissing string

func (e ErrLabelMissing) Error() string {
	return f("label %q missing", string(e))
}

// RuntimeError wraps a runtime fault with the PC at the start of the
// faulting instruction, per the "graceful halt, not a crash" policy.
type RuntimeError struct {
	PC  uint16
	Err error
}

func (e *RuntimeError) Error() string {
	return f("pc=0x%04x: %v", e.PC, e.Err)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// SyntaxError wraps an assembler error with the offending source line.
type SyntaxError struct {
	LineNo int
	Line   string
	Err    error
}

func (e *SyntaxError) Error() string {
	return f("line %d: %q: %v", e.LineNo, e.Line, e.Err)
}

func (e *SyntaxError) Unwrap() error {
	return e.Err
}
