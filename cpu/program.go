package cpu

// Opcode records one emitted instruction's source provenance
// alongside the bytes produced for it, so a fault or disassembly can
// be reported against a source line instead of only a raw address.
type Opcode struct {
	LineNo int
	Ip     uint16
	Words  []byte
}

// Program is the assembler's output: a byte image plus the
// line-tagged instruction stream and label table that produced it.
type Program struct {
	Image  []byte
	Org    uint16
	Labels map[string]uint16
	Opcode []Opcode
}

// At returns the Opcode covering address ip, if any.
func (p *Program) At(ip uint16) (op Opcode, ok bool) {
	for _, o := range p.Opcode {
		if ip >= o.Ip && int(ip) < int(o.Ip)+len(o.Words) {
			return o, true
		}
	}
	return Opcode{}, false
}
