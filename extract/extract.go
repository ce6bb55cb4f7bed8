// Package extract pulls modded tickflow out of a patched game-data image
// and relocates it into a self-contained, position independent unit.
//
// Functions are discovered from a set of entry points by following
// call-class opcodes. Each function is copied verbatim, then the call
// targets and string arguments inside it are rewritten to offsets within
// the extracted code and its private string pool.
package extract

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/tliron/commonlog"

	"github.com/chazu/tickflow/pkg/bytecode"
)

var log = commonlog.GetLogger("tickflow.extract")

var (
	ErrUnresolvedCallTarget = errors.New("unresolved call target")
	ErrBelowBase            = errors.New("address below base offset")
	ErrNoEntryPoints        = errors.New("no entry points")
)

// ---------------------------------------------------------------------------
// Function units
// ---------------------------------------------------------------------------

// Function is one extracted tickflow function.
type Function struct {
	Address uint32 // absolute address in the image
	Offset  uint32 // offset in the extracted code, set once all functions are known
	Scene   uint32 // scene inherited from the first caller
	Code    []byte

	pointers    []pending
	annotations map[uint32][]bytecode.Annotation // by local word offset
}

// pending is a pointer recorded during the scan whose value is only known
// once every function has been placed.
type pending struct {
	offset uint32 // local offset of the argument field
	kind   bytecode.PointerKind
	target uint32 // absolute call target, or string pool offset
}

// FunctionSet is the result of one extraction.
type FunctionSet struct {
	Functions []*Function
	Code      []byte
	Strings   []byte
	Pointers  []bytecode.Pointer
	Start     uint32 // offset of the first entry point's function
	Assets    uint32 // offset of the second entry point's function

	// External lists call targets below the base offset, in discovery order.
	External []uint32
	// Placeholders counts string arguments below the base offset.
	Placeholders int

	annotations map[uint32][]bytecode.Annotation // by global word offset
}

// ---------------------------------------------------------------------------
// Extractor
// ---------------------------------------------------------------------------

// visit is a worklist entry.
type visit struct {
	address uint32
	scene   uint32
}

// Extractor reads functions from an image whose byte 0 sits at the
// absolute address Base.
type Extractor struct {
	r    io.ReadSeeker
	Base uint32

	queue   []visit
	visited map[uint32]int // address -> index into queue and functions
	funcs   []*Function
	pool    []byte
	set     *FunctionSet
}

// NewExtractor creates an extractor over r.
func NewExtractor(r io.ReadSeeker, base uint32) *Extractor {
	return &Extractor{r: r, Base: base}
}

// Extract discovers and relocates every function reachable from entries.
// The first entry becomes the set's start offset and the second, when
// present, its assets offset. Each call starts from a clean state, so two
// extractions from the same image share nothing.
func (e *Extractor) Extract(entries []uint32) (*FunctionSet, error) {
	if len(entries) == 0 {
		return nil, ErrNoEntryPoints
	}
	e.queue = e.queue[:0]
	e.visited = make(map[uint32]int)
	e.funcs = nil
	e.pool = nil
	e.set = &FunctionSet{}

	for _, addr := range entries {
		if addr < e.Base {
			return nil, fmt.Errorf("%w: entry point %#x (base %#x)", ErrBelowBase, addr, e.Base)
		}
		e.enqueue(addr, bytecode.NoScene)
	}

	// The queue grows while it is scanned; functions found mid-scan are
	// visited after everything already queued.
	for i := 0; i < len(e.queue); i++ {
		fn, err := e.scan(e.queue[i])
		if err != nil {
			return nil, err
		}
		e.funcs = append(e.funcs, fn)
	}

	if err := e.link(); err != nil {
		return nil, err
	}
	set := e.set
	set.Start = e.funcs[e.visited[entries[0]]].Offset
	set.Assets = set.Start
	if len(entries) > 1 {
		set.Assets = e.funcs[e.visited[entries[1]]].Offset
	}
	log.Debugf("extracted %d functions, %d bytes of code, %d bytes of strings",
		len(set.Functions), len(set.Code), len(set.Strings))
	return set, nil
}

func (e *Extractor) enqueue(addr, scene uint32) {
	if _, ok := e.visited[addr]; ok {
		return
	}
	e.visited[addr] = len(e.queue)
	e.queue = append(e.queue, visit{address: addr, scene: scene})
}

// scan copies one function, stopping at a return seen at depth zero.
func (e *Extractor) scan(v visit) (*Function, error) {
	fn := &Function{Address: v.address, Scene: v.scene, annotations: make(map[uint32][]bytecode.Annotation)}
	pos := int64(v.address - e.Base)
	if _, err := e.r.Seek(pos, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seeking to function %#x: %w", v.address, err)
	}

	scene := v.scene
	depth := 0
	for {
		wordAt := uint32(len(fn.Code))
		raw, err := e.readUint32()
		if err != nil {
			return nil, fmt.Errorf("function %#x at %#x: %w", v.address, v.address+wordAt, err)
		}
		w := bytecode.Word(raw)
		args := make([]uint32, w.ArgCount())
		for i := range args {
			if args[i], err = e.readUint32(); err != nil {
				return nil, fmt.Errorf("function %#x: %s argument %d: %w", v.address, w, i, err)
			}
		}
		fn.Code = bytecode.AppendUint32(fn.Code, raw)
		for _, a := range args {
			fn.Code = bytecode.AppendUint32(fn.Code, a)
		}
		argAt := func(slot int) uint32 { return wordAt + 4*uint32(1+slot) }

		switch {
		case bytecode.IsSceneOp(w):
			if len(args) > 0 {
				scene = args[0]
			}
		case bytecode.IsDepthOp(w):
			depth++
		case bytecode.IsUndepthOp(w):
			if depth > 0 {
				depth--
			}
		case bytecode.IsReturnOp(w):
			if depth == 0 {
				return fn, nil
			}
		}

		if call, ok := bytecode.LookupCall(w); ok && call.Slot < len(args) {
			target := args[call.Slot]
			if target < e.Base {
				log.Noticef("function %#x: %s calls base game code at %#x", v.address, w, target)
				e.set.External = append(e.set.External, target)
			} else {
				e.enqueue(target, scene)
				fn.pointers = append(fn.pointers, pending{offset: argAt(call.Slot), kind: bytecode.PointerTickflow, target: target})
				fn.annotations[wordAt] = append(fn.annotations[wordAt], bytecode.Annotation{Slot: call.Slot, Tag: bytecode.TagPointer})
			}
		}

		if sop, ok := bytecode.LookupString(w, scene); ok {
			tag := bytecode.TagASCII
			if sop.Unicode {
				tag = bytecode.TagUnicode
			}
			for _, slot := range sop.Slots {
				if slot >= len(args) {
					continue
				}
				entry, err := e.readString(args[slot], sop.Unicode)
				if err != nil {
					return nil, fmt.Errorf("function %#x: %s string argument %d: %w", v.address, w, slot, err)
				}
				// The string read moved the stream; restore it.
				if _, err := e.r.Seek(pos+int64(len(fn.Code)), io.SeekStart); err != nil {
					return nil, err
				}
				fn.pointers = append(fn.pointers, pending{offset: argAt(slot), kind: bytecode.PointerString, target: uint32(len(e.pool))})
				fn.annotations[wordAt] = append(fn.annotations[wordAt], bytecode.Annotation{Slot: slot, Tag: tag})
				e.pool = append(e.pool, entry...)
			}
		}
	}
}

// readString reads the string at addr as a padded pool entry. Addresses
// below the base point at base game data and become an empty entry.
func (e *Extractor) readString(addr uint32, unicode bool) ([]byte, error) {
	if addr < e.Base {
		log.Warningf("string at %#x is below base %#x, using placeholder", addr, e.Base)
		e.set.Placeholders++
		return bytecode.PadEntry(nil, true), nil
	}
	if _, err := e.r.Seek(int64(addr-e.Base), io.SeekStart); err != nil {
		return nil, err
	}
	var raw []byte
	var unit [2]byte
	size := 1
	if unicode {
		size = 2
	}
	for {
		if _, err := io.ReadFull(e.r, unit[:size]); err != nil {
			return nil, fmt.Errorf("%w: string at %#x: %v", bytecode.ErrUnterminatedString, addr, err)
		}
		if unit[0] == 0 && (size == 1 || unit[1] == 0) {
			return bytecode.PadEntry(raw, unicode), nil
		}
		raw = append(raw, unit[:size]...)
	}
}

func (e *Extractor) readUint32() (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(e.r, buf[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, fmt.Errorf("%w: %v", bytecode.ErrTruncated, err)
		}
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// ---------------------------------------------------------------------------
// Linking: place functions, then apply the deferred pointer writes
// ---------------------------------------------------------------------------

func (e *Extractor) link() error {
	set := e.set
	var off uint32
	for _, fn := range e.funcs {
		fn.Offset = off
		off += uint32(len(fn.Code))
	}
	codeLen := off

	set.Functions = e.funcs
	set.Code = make([]byte, 0, codeLen)
	set.annotations = make(map[uint32][]bytecode.Annotation)
	for _, fn := range e.funcs {
		set.Code = append(set.Code, fn.Code...)
		for at, anns := range fn.annotations {
			set.annotations[fn.Offset+at] = anns
		}
	}

	for _, fn := range e.funcs {
		for _, p := range fn.pointers {
			var value uint32
			switch p.kind {
			case bytecode.PointerTickflow:
				idx, ok := e.visited[p.target]
				if !ok || idx >= len(e.funcs) {
					return fmt.Errorf("%w: %#x called from function %#x", ErrUnresolvedCallTarget, p.target, fn.Address)
				}
				value = e.funcs[idx].Offset
			case bytecode.PointerString:
				value = codeLen + p.target
			}
			at := fn.Offset + p.offset
			bytecode.WriteUint32(set.Code[at:], value)
			set.Pointers = append(set.Pointers, bytecode.Pointer{Offset: at, Kind: p.kind, Value: value})
		}
	}
	set.Strings = e.pool
	return nil
}

// Binary returns the set as a linked binary with argument annotations, so
// it can be disassembled or fed to the container builder.
func (s *FunctionSet) Binary(index uint32) (*bytecode.Binary, error) {
	instrs, err := bytecode.DecodeCode(s.Code)
	if err != nil {
		return nil, err
	}
	var code []byte
	for _, in := range instrs {
		if anns := s.annotations[in.Offset]; len(anns) > 0 {
			code = bytecode.AppendUint32(code, bytecode.AnnotationMarker)
			code = bytecode.AppendUint32(code, uint32(len(anns)))
			for _, a := range anns {
				code = bytecode.AppendUint32(code, a.Encode())
			}
		}
		code = bytecode.AppendUint32(code, uint32(in.Word))
		for _, a := range in.Args {
			code = bytecode.AppendUint32(code, a)
		}
	}
	return &bytecode.Binary{Index: index, Start: s.Start, Assets: s.Assets, Code: code, Strings: s.Strings}, nil
}
