package cpu

import (
	"strconv"
	"strings"
)

// parseReg parses a register operand "r0".."r7".
func parseReg(tok string) (byte, error) {
	tok = strings.ToLower(strings.TrimSpace(tok))
	if len(tok) < 2 || tok[0] != 'r' {
		return 0, ErrRegisterInvalid
	}
	v, err := strconv.Atoi(tok[1:])
	if err != nil || v < 0 || v > 7 {
		return 0, ErrRegisterInvalid
	}
	return byte(v), nil
}

// parseInt parses a decimal or 0x-prefixed hexadecimal integer
// literal, with an optional leading '#'. Character literals are
// expanded to decimal text earlier, during line preprocessing, so
// parseInt never sees quotes.
func parseInt(tok string) (int64, bool) {
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return 0, false
	}
	if tok[0] == '#' {
		tok = tok[1:]
	}
	v, err := strconv.ParseInt(tok, 0, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseAddrToken parses a bracketed absolute address operand: either
// "[0x1234]" (resolved immediately) or "[label]" (a forward reference,
// returned lower-cased for case-insensitive lookup).
func parseAddrToken(tok string) (addr uint16, symbol string, ok bool) {
	tok = strings.TrimSpace(tok)
	if len(tok) < 3 || tok[0] != '[' || tok[len(tok)-1] != ']' {
		return 0, "", false
	}
	inner := strings.TrimSpace(tok[1 : len(tok)-1])
	if v, isInt := parseInt(inner); isInt {
		return uint16(v), "", true
	}
	return 0, strings.ToLower(inner), true
}

// parseShortAddr parses the short addressing form "[rb+imm5]" or
// "[rb + imm5]".
func parseShortAddr(tok string) (base byte, imm5 int16, err error) {
	tok = strings.TrimSpace(tok)
	if len(tok) < 3 || tok[0] != '[' || tok[len(tok)-1] != ']' {
		return 0, 0, ErrOperandInvalid
	}
	inner := strings.TrimSpace(tok[1 : len(tok)-1])
	plus := strings.IndexByte(inner, '+')
	if plus < 0 {
		return 0, 0, ErrOperandInvalid
	}
	base, err = parseReg(inner[:plus])
	if err != nil {
		return 0, 0, err
	}
	v, ok := parseInt(inner[plus+1:])
	if !ok {
		return 0, 0, ErrOperandInvalid
	}
	return base, int16(v), nil
}

// parseStringLiteral scans a ".stringz" operand starting at its
// opening quote, returning the decoded byte body (without the NUL
// terminator). Recognized escapes: \n, \t, \0; any other \x yields
// the literal x. The scan stops at the first unescaped '"'.
func parseStringLiteral(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if len(s) == 0 || s[0] != '"' {
		return nil, ErrOperandInvalid
	}
	var body []byte
	esc := false
	closed := false
	for i := 1; i < len(s); i++ {
		c := s[i]
		if esc {
			switch c {
			case 'n':
				body = append(body, '\n')
			case 't':
				body = append(body, '\t')
			case '0':
				body = append(body, 0)
			default:
				body = append(body, c)
			}
			esc = false
			continue
		}
		if c == '\\' {
			esc = true
		} else if c == '"' {
			closed = true
			break
		} else {
			body = append(body, c)
		}
	}
	if !closed {
		return nil, ErrStringUnterminated
	}
	return body, nil
}

// splitComma splits s on top-level commas: commas inside [...] or
// "..." do not split.
func splitComma(s string) []string {
	var out []string
	var cur strings.Builder
	depth := 0
	inStr := false
	for _, c := range s {
		switch {
		case c == '"':
			inStr = !inStr
			cur.WriteRune(c)
		case !inStr && c == '[':
			depth++
			cur.WriteRune(c)
		case !inStr && c == ']':
			depth--
			cur.WriteRune(c)
		case !inStr && depth == 0 && c == ',':
			out = append(out, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteRune(c)
		}
	}
	if cur.Len() > 0 {
		out = append(out, strings.TrimSpace(cur.String()))
	}
	return out
}

// splitFirstWord splits s at the first run of whitespace, returning
// the leading word and the (trimmed) remainder.
func splitFirstWord(s string) (first, rest string) {
	s = strings.TrimLeft(s, " \t")
	idx := strings.IndexAny(s, " \t")
	if idx < 0 {
		return s, ""
	}
	return s[:idx], strings.TrimSpace(s[idx+1:])
}

// splitLabel extracts a leading "name:" label from line, per the
// lexical rule that a label token followed by ':' at the start of a
// line defines a label, optionally sharing the line with an
// instruction.
func splitLabel(line string) (label, rest string) {
	if idx := strings.IndexByte(line, ':'); idx >= 0 {
		name := strings.TrimSpace(line[:idx])
		if name != "" && !strings.ContainsAny(name, " \t\"[") {
			return name, strings.TrimSpace(line[idx+1:])
		}
	}
	return "", line
}
