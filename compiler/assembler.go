package compiler

import (
	"github.com/tliron/commonlog"

	"github.com/chazu/tickflow/pkg/bytecode"
)

var log = commonlog.GetLogger("tickflow.compiler")

// ---------------------------------------------------------------------------
// Assembler: statement list -> linked binary
// ---------------------------------------------------------------------------

// instr is a command with its catalog entry applied: arg0 settled,
// defaults filled in and argument kinds checked.
type instr struct {
	cmd  *Command
	word bytecode.Word
	args []Value
}

func (in *instr) size() uint32 { return 4 * uint32(1+len(in.args)) }

// Assemble lowers prog to a linked binary. Labels are resolved in a first
// pass over the code layout, arguments are written in the second.
func Assemble(prog *Program) (*bytecode.Binary, error) {
	a := &assembler{labels: make(map[string]uint32)}
	if err := a.layout(prog); err != nil {
		return nil, err
	}
	bin, err := a.emit(prog)
	if err != nil {
		return nil, err
	}
	log.Debugf("assembled index %#x: %d bytes of code, %d bytes of strings", bin.Index, len(bin.Code), len(bin.Strings))
	return bin, nil
}

type assembler struct {
	labels  map[string]uint32
	pool    []byte
	instrs  map[*Command]*instr
	codeLen uint32 // code size without annotations
}

// layout is the first pass: it resolves every command against the
// catalog and assigns label offsets.
func (a *assembler) layout(prog *Program) error {
	a.instrs = make(map[*Command]*instr)
	var off uint32
	for _, st := range prog.Statements {
		switch st := st.(type) {
		case *Label:
			if _, dup := a.labels[st.Name]; dup {
				return errorAt(st.Pos, ErrDuplicateLabel, "%s", st.Name)
			}
			a.labels[st.Name] = off
		case *Command:
			in, err := resolve(st)
			if err != nil {
				return err
			}
			a.instrs[st] = in
			off += in.size()
		case *RawBytes:
			off += uint32(bytecode.Pad4(len(st.Data)))
		case *RawInts:
			off += 4 * uint32(len(st.Data))
		}
	}
	a.codeLen = off
	return nil
}

// emit is the second pass. Every string argument gets its own pool entry,
// appended in code order, so repeated literals are stored repeatedly.
func (a *assembler) emit(prog *Program) (*bytecode.Binary, error) {
	bin := &bytecode.Binary{Index: prog.Index}
	var err error
	if bin.Start, err = a.entry(prog.Start, "start"); err != nil {
		return nil, err
	}
	if bin.Assets, err = a.entry(prog.Assets, "assets"); err != nil {
		return nil, err
	}

	var code []byte
	for _, st := range prog.Statements {
		switch st := st.(type) {
		case *Command:
			in := a.instrs[st]
			var anns []bytecode.Annotation
			vals := make([]uint32, len(in.args))
			for i, v := range in.args {
				switch v := v.(type) {
				case IntValue:
					vals[i] = uint32(int32(v))
				case LabelRef:
					off, ok := a.labels[string(v)]
					if !ok {
						return nil, commandError(st, i, ErrUnresolvedLabel, "%s", string(v))
					}
					vals[i] = off
					anns = append(anns, bytecode.Annotation{Slot: i, Tag: bytecode.TagPointer})
				case StringRef:
					entry, err := bytecode.EncodeString(v.Text, v.Unicode)
					if err != nil {
						return nil, commandError(st, i, ErrWrongArgType, "%v", err)
					}
					vals[i] = a.codeLen + uint32(len(a.pool))
					a.pool = append(a.pool, entry...)
					tag := bytecode.TagASCII
					if v.Unicode {
						tag = bytecode.TagUnicode
					}
					anns = append(anns, bytecode.Annotation{Slot: i, Tag: tag})
				}
			}
			if len(anns) > 0 {
				code = bytecode.AppendUint32(code, bytecode.AnnotationMarker)
				code = bytecode.AppendUint32(code, uint32(len(anns)))
				for _, ann := range anns {
					code = bytecode.AppendUint32(code, ann.Encode())
				}
			}
			code = bytecode.AppendUint32(code, uint32(in.word))
			for _, v := range vals {
				code = bytecode.AppendUint32(code, v)
			}
		case *RawBytes:
			padded := make([]byte, bytecode.Pad4(len(st.Data)))
			copy(padded, st.Data)
			code = append(code, padded...)
		case *RawInts:
			for _, v := range st.Data {
				code = bytecode.AppendUint32(code, uint32(v))
			}
		}
	}
	bin.Code = code
	bin.Strings = a.pool
	return bin, nil
}

// entry returns the override when set, otherwise the offset of label.
func (a *assembler) entry(override *uint32, label string) (uint32, error) {
	if override != nil {
		return *override, nil
	}
	off, ok := a.labels[label]
	if !ok {
		return 0, errorAt(Position{}, ErrUnresolvedLabel, "no %q label and no #%s directive", label, label)
	}
	return off, nil
}
