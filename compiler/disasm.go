package compiler

import (
	"fmt"
	"strings"

	"github.com/chazu/tickflow/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Disassembler: linked binary -> tickflow source
// ---------------------------------------------------------------------------

// Disassemble renders bin as tickflow source that assembles back to the
// same binary. Commands are named from the catalog where the instruction
// fits an entry exactly; everything else is written in raw opcode form.
func Disassemble(bin *bytecode.Binary) (string, error) {
	instrs, err := bin.Decode()
	if err != nil {
		return "", err
	}
	var codeLen uint32
	boundary := make(map[uint32]bool, len(instrs)+1)
	for _, in := range instrs {
		boundary[in.Offset] = true
		codeLen += in.Size()
	}
	boundary[codeLen] = true

	labels := make(map[uint32][]string)
	named := make(map[uint32]string)
	addLabel := func(off uint32, name string) {
		labels[off] = append(labels[off], name)
		if _, ok := named[off]; !ok {
			named[off] = name
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "#index 0x%X\n", bin.Index)
	if boundary[bin.Start] {
		addLabel(bin.Start, "start")
	} else {
		fmt.Fprintf(&sb, "#start 0x%X\n", bin.Start)
	}
	if boundary[bin.Assets] {
		addLabel(bin.Assets, "assets")
	} else {
		fmt.Fprintf(&sb, "#assets 0x%X\n", bin.Assets)
	}

	for _, in := range instrs {
		for slot, arg := range in.Args {
			a, ok := in.Annotation(slot)
			if !ok || a.Tag != bytecode.TagPointer {
				continue
			}
			if !boundary[arg] {
				return "", fmt.Errorf("%s at %#x: pointer %#x is not an instruction boundary", in.Word, in.Offset, arg)
			}
			if _, ok := named[arg]; !ok {
				addLabel(arg, fmt.Sprintf("loc_%04X", arg))
			}
		}
	}

	writeLabels := func(off uint32) {
		for _, name := range labels[off] {
			fmt.Fprintf(&sb, "%s:\n", name)
		}
	}
	for _, in := range instrs {
		writeLabels(in.Offset)
		args := make([]Value, len(in.Args))
		for slot, arg := range in.Args {
			a, ok := in.Annotation(slot)
			switch {
			case !ok:
				args[slot] = IntValue(int32(arg))
			case a.Tag == bytecode.TagPointer:
				args[slot] = LabelRef(named[arg])
			default:
				unicode := a.Tag == bytecode.TagUnicode
				if arg < codeLen {
					return "", fmt.Errorf("%s at %#x: string pointer %#x inside code", in.Word, in.Offset, arg)
				}
				text, err := bytecode.DecodeString(bin.Strings, int(arg-codeLen), unicode)
				if err != nil {
					return "", fmt.Errorf("%s at %#x: %w", in.Word, in.Offset, err)
				}
				args[slot] = StringRef{Text: text, Unicode: unicode}
			}
		}
		sb.WriteString("\t")
		sb.WriteString(commandText(in.Word, args))
		sb.WriteString("\n")
	}
	writeLabels(codeLen)
	return sb.String(), nil
}

// commandText picks the first catalog entry whose slots match args
// exactly, falling back to the raw opcode.
func commandText(w bytecode.Word, args []Value) string {
	head := w.String()
match:
	for _, nd := range commandsFor(w.Opcode(), w.Arg0()) {
		if len(nd.def.Slots) != len(args) || !slotsMatch(nd.def.Slots, args) {
			continue
		}
		switch {
		case nd.def.Arg0 == Arg0Fixed:
			head = nd.name
		case nd.def.Arg0 == Arg0Optional && w.Arg0() == 0:
			head = nd.name
		default:
			head = fmt.Sprintf("%s<0x%X>", nd.name, w.Arg0())
		}
		break match
	}
	if len(args) == 0 {
		return head
	}
	parts := make([]string, len(args))
	for i, v := range args {
		parts[i] = argText(v)
	}
	return head + " " + strings.Join(parts, ", ")
}

func slotsMatch(slots []ArgType, args []Value) bool {
	for i, s := range slots {
		if !kindMatches(s.Kind, args[i]) {
			return false
		}
	}
	return true
}

func argText(v Value) string {
	if iv, ok := v.(IntValue); ok {
		if iv < 10 {
			return iv.String()
		}
		return fmt.Sprintf("0x%X", int32(iv))
	}
	return v.String()
}
