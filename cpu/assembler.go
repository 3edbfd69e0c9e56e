package cpu

import (
	"bufio"
	"io"
	"log"
	"regexp"
	"strconv"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// Assembler is a two-pass translator from Tiny16 assembly text to a
// byte image: pass 1 sizes every line and builds the label table,
// pass 2 emits bytes and resolves forward references via a fixup
// list.
type Assembler struct {
	Verbose bool

	Equate map[string]string
}

// programLine is one non-blank, comment-stripped source line after
// character-literal and $(...) expansion, with its label (if any)
// split off and equate substitution already applied to its operand
// text.
type programLine struct {
	lineNo int
	raw    string
	label  string
	mnem   string // lower-cased mnemonic/directive name, "" for a pure label line
	operand string
}

var charLiteralRe = regexp.MustCompile(`'\\?[^']'`)
var parenExprRe = regexp.MustCompile(`\$\([^$]*\)`)

// Parse reads a complete assembly source from r and assembles it into
// a Program.
func (asm *Assembler) Parse(r io.Reader) (*Program, error) {
	if asm.Equate == nil {
		asm.Equate = map[string]string{}
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var lines []programLine
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()

		text := raw
		if idx := strings.IndexByte(text, ';'); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		text, err := asm.expandCharLiterals(text)
		if err != nil {
			return nil, &SyntaxError{LineNo: lineNo, Line: raw, Err: err}
		}
		text, err = asm.expandParenExpr(text)
		if err != nil {
			return nil, &SyntaxError{LineNo: lineNo, Line: raw, Err: err}
		}

		label, rest := splitLabel(text)
		if rest == "" {
			lines = append(lines, programLine{lineNo: lineNo, raw: raw, label: label})
			continue
		}

		mnem, operand := splitFirstWord(rest)
		mnemLower := strings.ToLower(mnem)

		if mnemLower == ".equ" {
			parts := strings.Fields(operand)
			if len(parts) != 2 {
				return nil, &SyntaxError{LineNo: lineNo, Line: raw, Err: ErrEquateSyntax}
			}
			if _, exists := asm.Equate[parts[0]]; exists {
				return nil, &SyntaxError{LineNo: lineNo, Line: raw, Err: ErrEquateDuplicate}
			}
			asm.Equate[parts[0]] = parts[1]
			if label != "" {
				lines = append(lines, programLine{lineNo: lineNo, raw: raw, label: label})
			}
			if asm.Verbose {
				log.Printf("tiny16: asm: line %d: .equ %s %s", lineNo, parts[0], parts[1])
			}
			continue
		}

		operand = asm.substituteEquates(operand)

		if asm.Verbose {
			log.Printf("tiny16: asm: line %d: %s %s", lineNo, mnemLower, operand)
		}

		lines = append(lines, programLine{
			lineNo:  lineNo,
			raw:     raw,
			label:   label,
			mnem:    mnemLower,
			operand: operand,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	labels, err := asm.pass1(lines)
	if err != nil {
		return nil, err
	}

	return asm.pass2(lines, labels)
}

func (asm *Assembler) substituteEquates(operand string) string {
	parts := splitComma(operand)
	if len(parts) == 0 {
		return operand
	}
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if v, ok := asm.Equate[p]; ok {
			parts[i] = v
		} else if len(p) >= 2 && p[0] == '[' && p[len(p)-1] == ']' {
			if v, ok := asm.Equate[strings.TrimSpace(p[1:len(p)-1])]; ok {
				parts[i] = "[" + v + "]"
			}
		}
	}
	return strings.Join(parts, ", ")
}

// expandCharLiterals replaces 'c' and '\n'-style escapes with their
// decimal numeric value, ahead of any other tokenizing.
func (asm *Assembler) expandCharLiterals(line string) (string, error) {
	var firstErr error
	result := charLiteralRe.ReplaceAllStringFunc(line, func(word string) string {
		inner := word[1 : len(word)-1]
		var v byte
		switch {
		case inner[0] == '\\' && len(inner) == 2:
			switch inner[1] {
			case 'n':
				v = '\n'
			case 't':
				v = '\t'
			case '0':
				v = 0
			case '\\':
				v = '\\'
			default:
				firstErr = ErrOperandInvalid
				return word
			}
		case len(inner) == 1:
			v = inner[0]
		default:
			firstErr = ErrOperandInvalid
			return word
		}
		return strconv.Itoa(int(v))
	})
	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// expandParenExpr evaluates every $(...) expression against the
// current equate table using a starlark interpreter, substituting its
// decimal value in place.
func (asm *Assembler) expandParenExpr(line string) (string, error) {
	var firstErr error
	result := parenExprRe.ReplaceAllStringFunc(line, func(expr string) string {
		value, err := asm.evalExpr(expr[2 : len(expr)-1])
		if err != nil {
			firstErr = err
			return expr
		}
		return strconv.FormatInt(int64(value), 10)
	})
	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

func (asm *Assembler) evalExpr(expr string) (int64, error) {
	thread := &starlark.Thread{}
	opts := syntax.FileOptions{}

	predeclared := starlark.StringDict{}
	for name, raw := range asm.Equate {
		if v, ok := parseInt(raw); ok {
			predeclared[name] = starlark.MakeInt64(v)
		}
	}

	prog := "rc = " + expr + "\n"
	dict, err := starlark.ExecFileOptions(&opts, thread, "equ", prog, predeclared)
	if err != nil {
		return 0, ErrExpressionInvalid
	}

	rc, ok := dict["rc"]
	if !ok {
		return 0, ErrExpressionInvalid
	}
	iv, ok := rc.(starlark.Int)
	if !ok {
		return 0, ErrExpressionInvalid
	}
	i64, ok := iv.Int64()
	if !ok {
		return 0, ErrExpressionInvalid
	}
	return i64, nil
}

// pass1 walks lines computing the size of every item and recording
// label addresses.
func (asm *Assembler) pass1(lines []programLine) (map[string]uint16, error) {
	labels := map[string]uint16{}
	pc := uint16(0)

	for _, pl := range lines {
		if pl.label != "" {
			key := strings.ToLower(pl.label)
			if _, exists := labels[key]; exists {
				return nil, &SyntaxError{LineNo: pl.lineNo, Line: pl.raw, Err: ErrLabelDuplicate}
			}
			labels[key] = pc
		}

		if pl.mnem == "" {
			continue
		}

		switch pl.mnem {
		case ".org":
			v, ok := parseInt(pl.operand)
			if !ok {
				return nil, &SyntaxError{LineNo: pl.lineNo, Line: pl.raw, Err: ErrOperandInvalid}
			}
			newPC := uint16(v)
			if newPC < pc {
				return nil, &SyntaxError{LineNo: pl.lineNo, Line: pl.raw, Err: ErrOrgBackwards}
			}
			pc = newPC

		case ".word":
			pc += uint16(2 * len(splitComma(pl.operand)))

		case ".stringz":
			body, err := parseStringLiteral(pl.operand)
			if err != nil {
				return nil, &SyntaxError{LineNo: pl.lineNo, Line: pl.raw, Err: err}
			}
			pc += uint16(len(body) + 1)

		default:
			pc += instructionSize(pl.mnem, pl.operand)
		}
	}

	return labels, nil
}

// pass2 walks lines again, emitting the final byte image and
// resolving every fixup once every label address is known.
func (asm *Assembler) pass2(lines []programLine, labels map[string]uint16) (*Program, error) {
	var image []byte
	var fixups []fixupEntry
	var opcodes []Opcode

	for _, pl := range lines {
		if pl.mnem == "" {
			continue
		}

		start := len(image)

		switch pl.mnem {
		case ".org":
			v, _ := parseInt(pl.operand)
			newPC := uint16(v)
			for len(image) < int(newPC) {
				image = append(image, 0)
			}
			continue

		case ".word":
			for _, p := range splitComma(pl.operand) {
				if v, ok := parseInt(p); ok {
					image = append(image, byte(v), byte(v>>8))
				} else {
					addFixup(&image, &fixups, strings.ToLower(p))
				}
			}

		case ".stringz":
			body, err := parseStringLiteral(pl.operand)
			if err != nil {
				return nil, &SyntaxError{LineNo: pl.lineNo, Line: pl.raw, Err: err}
			}
			image = append(image, body...)
			image = append(image, 0)

		default:
			if err := asm.emitInstruction(pl.mnem, pl.operand, &image, &fixups); err != nil {
				return nil, &SyntaxError{LineNo: pl.lineNo, Line: pl.raw, Err: err}
			}
		}

		if n := len(image) - start; n > 0 {
			words := make([]byte, n)
			copy(words, image[start:])
			opcodes = append(opcodes, Opcode{LineNo: pl.lineNo, Ip: uint16(start), Words: words})
		}
	}

	for _, fx := range fixups {
		addr, ok := labels[fx.symbol]
		if !ok {
			return nil, ErrLabelMissing(fx.symbol)
		}
		image[fx.offset] = byte(addr)
		image[fx.offset+1] = byte(addr >> 8)
	}

	return &Program{Image: image, Org: 0, Labels: labels, Opcode: opcodes}, nil
}
