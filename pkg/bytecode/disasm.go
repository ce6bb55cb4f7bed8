package bytecode

import (
	"fmt"
	"strings"
)

// Listing returns a raw, offset-annotated listing of the binary. Unlike
// the compiler's disassembler it does not need the command catalog and
// never fails on unknown opcodes.
func (b *Binary) Listing(name string) (string, error) {
	instrs, err := b.Decode()
	if err != nil {
		return "", err
	}

	var sb strings.Builder

	// Header
	if name != "" {
		sb.WriteString(fmt.Sprintf("; === %s ===\n", name))
	}
	sb.WriteString(fmt.Sprintf("; Index: 0x%X\n", b.Index))
	sb.WriteString(fmt.Sprintf("; Start: 0x%04X  Assets: 0x%04X\n", b.Start, b.Assets))

	codeLen := uint32(0)
	for i := range instrs {
		codeLen += instrs[i].Size()
	}
	sb.WriteString(fmt.Sprintf("; Code: %d bytes, Strings: %d bytes\n\n", codeLen, len(b.Strings)))

	// Code section
	for i := range instrs {
		sb.WriteString(listInstruction(&instrs[i], b.Strings, codeLen))
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// listInstruction formats a single instruction.
func listInstruction(in *Instruction, pool []byte, codeLen uint32) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%04X  %-12s", in.Offset, in.Word.String()))

	var notes []string
	for i, arg := range in.Args {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(fmt.Sprintf(" 0x%X", arg))

		a, ok := in.Annotation(i)
		if !ok {
			continue
		}
		switch a.Tag {
		case TagPointer:
			notes = append(notes, fmt.Sprintf("->%04X", arg))
		case TagUnicode, TagASCII:
			s, err := DecodeString(pool, int(arg)-int(codeLen), a.Tag == TagUnicode)
			if err != nil {
				notes = append(notes, "<bad string>")
				continue
			}
			display := s
			if len(display) > 40 {
				display = display[:37] + "..."
			}
			notes = append(notes, fmt.Sprintf("%q", display))
		}
	}
	if len(notes) > 0 {
		sb.WriteString("  ; ")
		sb.WriteString(strings.Join(notes, " "))
	}
	return sb.String()
}
