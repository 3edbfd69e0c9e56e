package cpu

import "strings"

// fixupEntry is a recorded (offset, symbol) pair: a 16-bit little-
// endian placeholder at offset in the image that must be patched with
// symbol's resolved address once every label is known.
type fixupEntry struct {
	offset int
	symbol string
}

// wideMnemonics is the set of mnemonics whose instruction occupies 4
// bytes (a control word plus a 16-bit operand), independent of the
// LD/ST short-vs-absolute distinction handled separately.
var wideMnemonics = map[string]bool{
	"ldi": true, "ldb": true, "stb": true,
	"jmp": true, "jz": true, "jnz": true, "jc": true, "jn": true,
	"call": true, "in": true, "out": true,
}

var twoRegisterOps = map[string]Op{
	"mov": OP_MOV,
	"add": OP_ADD,
	"sub": OP_SUB,
	"and": OP_AND,
	"or":  OP_OR,
	"xor": OP_XOR,
	"cmp": OP_CMP,
}

var jumpOps = map[string]Op{
	"jmp": OP_JMP,
	"jz":  OP_JZ,
	"jnz": OP_JNZ,
	"jc":  OP_JC,
	"jn":  OP_JN,
}

// instructionSize returns the byte size pass 1 assigns to mnem with
// the given (not yet emitted) operand text -- 2 or 4 bytes, per the
// wide-opcode set and the LD/ST short-vs-absolute split.
func instructionSize(mnem, operand string) uint16 {
	if mnem == "ld" || mnem == "st" {
		parts := splitComma(operand)
		if len(parts) == 2 && strings.Contains(parts[1], "+") {
			return 2
		}
		return 4
	}
	if wideMnemonics[mnem] {
		return 4
	}
	return 2
}

func appendWord(image *[]byte, w uint16) {
	*image = append(*image, byte(w), byte(w>>8))
}

func addFixup(image *[]byte, fixups *[]fixupEntry, symbol string) {
	*fixups = append(*fixups, fixupEntry{offset: len(*image), symbol: symbol})
	appendWord(image, 0)
}

// appendAbsoluteOperand emits either a resolved 16-bit address or a
// fixup placeholder for a forward label reference.
func appendAbsoluteOperand(image *[]byte, fixups *[]fixupEntry, tok string) error {
	addr, symbol, ok := parseAddrToken(tok)
	if !ok {
		return ErrOperandInvalid
	}
	if symbol == "" {
		appendWord(image, addr)
	} else {
		addFixup(image, fixups, symbol)
	}
	return nil
}

// appendJumpTarget emits either a resolved 16-bit address or a fixup
// placeholder for a bare (unbracketed) label/address operand, as used
// by JMP/Jcc/CALL/LDI.
func appendJumpTarget(image *[]byte, fixups *[]fixupEntry, tok string) {
	if v, ok := parseInt(tok); ok {
		appendWord(image, uint16(v))
		return
	}
	addFixup(image, fixups, strings.ToLower(strings.TrimSpace(tok)))
}

// emitInstruction encodes one instruction mnemonic with its operand
// text into image, recording any forward-label fixups.
func (asm *Assembler) emitInstruction(mnem, operand string, image *[]byte, fixups *[]fixupEntry) error {
	parts := splitComma(operand)

	switch mnem {
	case "nop":
		appendWord(image, encodeR(OP_NOP, 0, 0))

	case "halt":
		appendWord(image, encodeR(OP_HALT, 0, 0))

	case "ldi":
		if len(parts) != 2 {
			return ErrOperandArity
		}
		rd, err := parseReg(parts[0])
		if err != nil {
			return err
		}
		appendWord(image, encodeWide1(OP_LDI, rd))
		appendJumpTarget(image, fixups, parts[1])

	case "mov", "add", "sub", "and", "or", "xor", "cmp":
		if len(parts) != 2 {
			return ErrOperandArity
		}
		rd, err := parseReg(parts[0])
		if err != nil {
			return err
		}
		rs, err := parseReg(parts[1])
		if err != nil {
			return err
		}
		appendWord(image, encodeR(twoRegisterOps[mnem], rd, rs))

	case "not":
		if len(parts) != 1 {
			return ErrOperandArity
		}
		rd, err := parseReg(parts[0])
		if err != nil {
			return err
		}
		appendWord(image, encodeR(OP_NOT, rd, 0))

	case "shl", "shr":
		if len(parts) != 2 {
			return ErrOperandArity
		}
		rd, err := parseReg(parts[0])
		if err != nil {
			return err
		}
		v, ok := parseInt(parts[1])
		if !ok || v < 0 || v > 7 {
			return ErrShiftOutOfRange
		}
		op := OP_SHL
		if mnem == "shr" {
			op = OP_SHR
		}
		appendWord(image, encodeRImm3(op, rd, byte(v)))

	case "addi", "cmpi":
		if len(parts) != 2 {
			return ErrOperandArity
		}
		rd, err := parseReg(parts[0])
		if err != nil {
			return err
		}
		v, ok := parseInt(parts[1])
		if !ok {
			return ErrOperandInvalid
		}
		op := OP_ADDI
		if mnem == "cmpi" {
			op = OP_CMPI
		}
		appendWord(image, encodeRImm8(op, rd, byte(v)))

	case "ld":
		if len(parts) != 2 {
			return ErrOperandArity
		}
		rd, err := parseReg(parts[0])
		if err != nil {
			return err
		}
		if strings.Contains(parts[1], "+") {
			rb, imm5, err := parseShortAddr(parts[1])
			if err != nil {
				return err
			}
			appendWord(image, encodeLdShort(rd, rb, byte(imm5)))
			return nil
		}
		appendWord(image, encodeWide1(OP_LD, rd))
		return appendAbsoluteOperand(image, fixups, parts[1])

	case "st":
		if len(parts) != 2 {
			return ErrOperandArity
		}
		rs, err := parseReg(parts[0])
		if err != nil {
			return err
		}
		if strings.Contains(parts[1], "+") {
			rb, imm5, err := parseShortAddr(parts[1])
			if err != nil {
				return err
			}
			appendWord(image, encodeStShort(rb, rs, byte(imm5)))
			return nil
		}
		appendWord(image, encodeWide1(OP_ST, rs))
		return appendAbsoluteOperand(image, fixups, parts[1])

	case "ldb":
		if len(parts) != 2 {
			return ErrOperandArity
		}
		rd, err := parseReg(parts[0])
		if err != nil {
			return err
		}
		appendWord(image, encodeWide1(OP_LDB, rd))
		return appendAbsoluteOperand(image, fixups, parts[1])

	case "stb":
		if len(parts) != 2 {
			return ErrOperandArity
		}
		rs, err := parseReg(parts[0])
		if err != nil {
			return err
		}
		appendWord(image, encodeWide1(OP_STB, rs))
		return appendAbsoluteOperand(image, fixups, parts[1])

	case "jmp", "jz", "jnz", "jc", "jn":
		if len(parts) != 1 {
			return ErrOperandArity
		}
		appendWord(image, encodeWide1(jumpOps[mnem], 0))
		appendJumpTarget(image, fixups, parts[0])

	case "call":
		if len(parts) != 1 {
			return ErrOperandArity
		}
		appendWord(image, encodeWide1(OP_CALL, 0))
		appendJumpTarget(image, fixups, parts[0])

	case "ret":
		appendWord(image, encodeR(OP_RET, 0, 0))

	case "in":
		if len(parts) != 2 {
			return ErrOperandArity
		}
		rd, err := parseReg(parts[0])
		if err != nil {
			return err
		}
		appendWord(image, encodeWide1(OP_IN, rd))
		return appendAbsoluteOperand(image, fixups, parts[1])

	case "out":
		if len(parts) != 2 {
			return ErrOperandArity
		}
		rs, err := parseReg(parts[0])
		if err != nil {
			return err
		}
		appendWord(image, uint16(OP_OUT)<<11|uint16(rs&0x7)<<5)
		return appendAbsoluteOperand(image, fixups, parts[1])

	default:
		return ErrMnemonicUnknown
	}

	return nil
}
