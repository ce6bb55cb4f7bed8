package bytecode

import (
	"errors"
	"fmt"
)

// Sentinel words of the linked binary format.
const (
	AnnotationMarker uint32 = 0xFFFFFFFF
	StringsMarker    uint32 = 0xFFFFFFFE
)

// BinaryHeaderSize is index + start + assets.
const BinaryHeaderSize = 12

var (
	ErrTruncated      = errors.New("truncated tickflow binary")
	ErrNoStringPool   = errors.New("missing string pool marker")
	ErrBadAnnotation  = errors.New("invalid argument annotation")
	ErrMisalignedCode = errors.New("code length is not a multiple of 4")
)

// ---------------------------------------------------------------------------
// Pointers and annotations
// ---------------------------------------------------------------------------

// PointerKind tells what a relocatable argument points at.
type PointerKind uint8

const (
	// PointerString points into the string pool.
	PointerString PointerKind = 0
	// PointerTickflow points at code.
	PointerTickflow PointerKind = 1
)

// String returns a human-readable name for the kind.
func (k PointerKind) String() string {
	switch k {
	case PointerString:
		return "string"
	case PointerTickflow:
		return "tickflow"
	default:
		return fmt.Sprintf("PointerKind(%d)", k)
	}
}

// Pointer is a 4-byte field in a code blob that must be rebased when the
// blob moves.
type Pointer struct {
	Offset uint32      // byte offset of the field in the code blob
	Kind   PointerKind // what the field points at
	Value  uint32      // resolved value of the field
}

// ArgTag is the type tag of an annotated argument.
type ArgTag uint8

const (
	TagPointer ArgTag = 0 // code offset
	TagUnicode ArgTag = 1 // unicode string
	TagASCII   ArgTag = 2 // ascii string
)

// Annotation marks one argument slot of the following instruction as
// relocatable.
type Annotation struct {
	Slot int
	Tag  ArgTag
}

// Encode packs the annotation into its on-disk word.
func (a Annotation) Encode() uint32 {
	return uint32(a.Slot)<<8 | uint32(a.Tag)
}

// DecodeAnnotation unpacks an annotation word.
func DecodeAnnotation(v uint32) (Annotation, error) {
	a := Annotation{Slot: int(v >> 8), Tag: ArgTag(v & 0xFF)}
	if a.Tag > TagASCII {
		return a, fmt.Errorf("%w: tag %d", ErrBadAnnotation, a.Tag)
	}
	return a, nil
}

// Kind returns the pointer kind the tag maps to.
func (t ArgTag) Kind() PointerKind {
	if t == TagPointer {
		return PointerTickflow
	}
	return PointerString
}

// ---------------------------------------------------------------------------
// Binary: a linked tickflow file
// ---------------------------------------------------------------------------

// Binary is a linked tickflow file as written by the assembler.
type Binary struct {
	Index   uint32
	Start   uint32 // code offset of the start function
	Assets  uint32 // code offset of the asset loading function
	Code    []byte // instructions including annotation records
	Strings []byte // string pool
}

// MarshalBinary encodes b in the linked binary format.
func (b *Binary) MarshalBinary() ([]byte, error) {
	if len(b.Code)%4 != 0 {
		return nil, ErrMisalignedCode
	}
	out := make([]byte, 0, BinaryHeaderSize+len(b.Code)+4+len(b.Strings))
	out = AppendUint32(out, b.Index)
	out = AppendUint32(out, b.Start)
	out = AppendUint32(out, b.Assets)
	out = append(out, b.Code...)
	out = AppendUint32(out, StringsMarker)
	out = append(out, b.Strings...)
	return out, nil
}

// ReadBinary parses a linked binary. The string pool marker is located by
// walking the instructions, so argument values equal to a sentinel are safe.
func ReadBinary(data []byte) (*Binary, error) {
	if len(data) < BinaryHeaderSize {
		return nil, fmt.Errorf("%w: %d byte header", ErrTruncated, len(data))
	}
	b := &Binary{
		Index:  ReadUint32(data[0:]),
		Start:  ReadUint32(data[4:]),
		Assets: ReadUint32(data[8:]),
	}
	body := data[BinaryHeaderSize:]
	pos := 0
	for {
		if pos+4 > len(body) {
			return nil, fmt.Errorf("%w at %#x", ErrNoStringPool, BinaryHeaderSize+pos)
		}
		w := ReadUint32(body[pos:])
		switch w {
		case StringsMarker:
			b.Code = body[:pos]
			b.Strings = body[pos+4:]
			return b, nil
		case AnnotationMarker:
			if pos+8 > len(body) {
				return nil, fmt.Errorf("%w: annotation at %#x", ErrTruncated, BinaryHeaderSize+pos)
			}
			n := int(ReadUint32(body[pos+4:]))
			pos += 8 + 4*n
		default:
			pos += 4 + 4*Word(w).ArgCount()
		}
	}
}

// Instruction is one decoded instruction of a linked binary.
type Instruction struct {
	Offset      uint32 // offset in the code with annotations removed
	Word        Word
	Args        []uint32
	Annotations []Annotation
}

// Size returns the encoded size without annotations.
func (in *Instruction) Size() uint32 { return 4 * uint32(1+len(in.Args)) }

// Annotation returns the annotation of the given slot.
func (in *Instruction) Annotation(slot int) (Annotation, bool) {
	for _, a := range in.Annotations {
		if a.Slot == slot {
			return a, true
		}
	}
	return Annotation{}, false
}

// Decode splits the code of b into instructions.
func (b *Binary) Decode() ([]Instruction, error) {
	return DecodeCode(b.Code)
}

// DecodeCode splits annotated code into instructions.
func DecodeCode(code []byte) ([]Instruction, error) {
	var out []Instruction
	var pending []Annotation
	var offset uint32
	pos := 0
	for pos < len(code) {
		if pos+4 > len(code) {
			return nil, fmt.Errorf("%w: partial word at %#x", ErrTruncated, pos)
		}
		w := ReadUint32(code[pos:])
		if w == AnnotationMarker {
			if pos+8 > len(code) {
				return nil, fmt.Errorf("%w: annotation at %#x", ErrTruncated, pos)
			}
			n := int(ReadUint32(code[pos+4:]))
			if pos+8+4*n > len(code) {
				return nil, fmt.Errorf("%w: annotation at %#x", ErrTruncated, pos)
			}
			pending = make([]Annotation, 0, n)
			for i := 0; i < n; i++ {
				a, err := DecodeAnnotation(ReadUint32(code[pos+8+4*i:]))
				if err != nil {
					return nil, fmt.Errorf("at %#x: %w", pos, err)
				}
				pending = append(pending, a)
			}
			pos += 8 + 4*n
			continue
		}
		word := Word(w)
		argc := word.ArgCount()
		if pos+4+4*argc > len(code) {
			return nil, fmt.Errorf("%w: %s at %#x needs %d arguments", ErrTruncated, word, pos, argc)
		}
		in := Instruction{Offset: offset, Word: word, Annotations: pending}
		for _, a := range pending {
			if a.Slot >= argc {
				return nil, fmt.Errorf("%w: slot %d of %s with %d arguments", ErrBadAnnotation, a.Slot, word, argc)
			}
		}
		for i := 0; i < argc; i++ {
			in.Args = append(in.Args, ReadUint32(code[pos+4+4*i:]))
		}
		pending = nil
		out = append(out, in)
		offset += in.Size()
		pos += 4 + 4*argc
	}
	if pending != nil {
		return nil, fmt.Errorf("%w: annotation without instruction", ErrBadAnnotation)
	}
	return out, nil
}

// Relocatable strips the annotation records from b and returns the plain
// code together with one pointer record per annotated argument.
func (b *Binary) Relocatable() ([]byte, []Pointer, error) {
	instrs, err := b.Decode()
	if err != nil {
		return nil, nil, err
	}
	var code []byte
	var ptrs []Pointer
	for _, in := range instrs {
		code = AppendUint32(code, uint32(in.Word))
		for i, arg := range in.Args {
			if a, ok := in.Annotation(i); ok {
				ptrs = append(ptrs, Pointer{Offset: uint32(len(code)), Kind: a.Tag.Kind(), Value: arg})
			}
			code = AppendUint32(code, arg)
		}
	}
	return code, ptrs, nil
}
