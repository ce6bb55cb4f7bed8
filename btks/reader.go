package btks

import (
	"bytes"
	"fmt"
	"io"

	"github.com/chazu/tickflow/extract"
	"github.com/chazu/tickflow/pkg/bytecode"
	"github.com/chazu/tickflow/tempo"
)

// ---------------------------------------------------------------------------
// Reader
// ---------------------------------------------------------------------------

// ReadHeader parses the fixed header at the start of data.
func ReadHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, fmt.Errorf("%w: %d byte header", ErrUnexpectedEOF, len(data))
	}
	if !bytes.Equal(data[:4], Magic[:]) {
		return Header{}, ErrInvalidMagic
	}
	h := Header{
		TotalSize:    bytecode.ReadUint32(data[4:]),
		Revision:     bytecode.ReadUint32(data[8:]),
		HeaderSize:   bytecode.ReadUint32(data[12:]),
		SectionCount: bytecode.ReadUint32(data[16:]),
	}
	if h.Revision != Revision {
		return h, fmt.Errorf("%w: %d", ErrRevision, h.Revision)
	}
	if h.HeaderSize < HeaderSize || h.HeaderSize > h.TotalSize {
		return h, fmt.Errorf("%w: header size %#x, total size %#x", ErrCorruptHeader, h.HeaderSize, h.TotalSize)
	}
	if int64(h.TotalSize) > int64(len(data)) {
		return h, fmt.Errorf("%w: total size %#x, have %#x bytes", ErrUnexpectedEOF, h.TotalSize, len(data))
	}
	return h, nil
}

// Parse reads a container written by Write.
func Parse(data []byte) (*Container, error) {
	h, err := ReadHeader(data)
	if err != nil {
		return nil, err
	}
	data = data[:h.TotalSize]
	c := &Container{}
	seen := make(map[[4]byte]bool)
	pos := int(h.HeaderSize)

	for i := uint32(0); i < h.SectionCount; i++ {
		if pos+8 > len(data) {
			return nil, fmt.Errorf("%w: section %d header", ErrUnexpectedEOF, i)
		}
		var magic [4]byte
		copy(magic[:], data[pos:])
		size := int(bytecode.ReadUint32(data[pos+4:]))
		if size < 8 || pos+size > len(data) {
			return nil, fmt.Errorf("%w: %s size %#x at %#x", ErrCorruptSection, magic[:], size, pos)
		}
		if seen[magic] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSection, magic[:])
		}
		seen[magic] = true
		body := data[pos+8 : pos+size]

		switch magic {
		case MagicFlow:
			if len(body) < 4 || (len(body)-4)%4 != 0 {
				return nil, fmt.Errorf("%w: FLOW of %#x bytes", ErrCorruptSection, size)
			}
			c.Start = bytecode.ReadUint32(body)
			c.Code = append([]byte(nil), body[4:]...)
		case MagicPtro:
			if err := c.readPointers(body); err != nil {
				return nil, err
			}
		case MagicTmpo:
			if err := c.readTempos(body); err != nil {
				return nil, err
			}
		case MagicStrd:
			c.Strings = append([]byte(nil), body...)
		default:
			return nil, fmt.Errorf("%w: %q at %#x", ErrUnknownSection, magic[:], pos)
		}
		pos += size
	}
	if !seen[MagicFlow] {
		return nil, ErrMissingFlow
	}
	for _, p := range c.Pointers {
		if int(p.Offset)+4 > len(c.Code) {
			return nil, fmt.Errorf("%w: %#x", ErrPointerOutside, p.Offset)
		}
	}
	return c, nil
}

func (c *Container) readPointers(body []byte) error {
	if len(body) < 4 {
		return fmt.Errorf("%w: PTRO", ErrCorruptSection)
	}
	n := int(bytecode.ReadUint32(body))
	if len(body) != 4+pointerRecordSize*n {
		return fmt.Errorf("%w: PTRO holds %d bytes for %d pointers", ErrCorruptSection, len(body)-4, n)
	}
	for i := 0; i < n; i++ {
		rec := body[4+pointerRecordSize*i:]
		kind := bytecode.PointerKind(rec[4])
		if kind != bytecode.PointerString && kind != bytecode.PointerTickflow {
			return fmt.Errorf("%w: pointer %d has kind %d", ErrCorruptSection, i, kind)
		}
		c.Pointers = append(c.Pointers, bytecode.Pointer{Offset: bytecode.ReadUint32(rec), Kind: kind})
	}
	return nil
}

func (c *Container) readTempos(body []byte) error {
	if len(body) < 4 {
		return fmt.Errorf("%w: TMPO", ErrCorruptSection)
	}
	n := int(bytecode.ReadUint32(body))
	r := bytes.NewReader(body[4:])
	for i := 0; i < n; i++ {
		var hdr [tempoHeaderSize]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return fmt.Errorf("%w: tempo %d header", ErrUnexpectedEOF, i)
		}
		id := bytecode.ReadUint32(hdr[0:])
		count := int(bytecode.ReadUint32(hdr[4:]))
		tp, err := tempo.ReadBinary(r, id)
		if err != nil {
			return fmt.Errorf("%w: tempo %#x: %v", ErrCorruptSection, id, err)
		}
		if len(tp.Points) != count {
			return fmt.Errorf("%w: tempo %#x has %d points, header says %d", ErrCorruptSection, id, len(tp.Points), count)
		}
		c.Tempos = append(c.Tempos, tp)
	}
	if r.Len() != 0 {
		return fmt.Errorf("%w: %d trailing TMPO bytes", ErrCorruptSection, r.Len())
	}
	return nil
}

// ---------------------------------------------------------------------------
// Building containers
// ---------------------------------------------------------------------------

// FromFunctionSet packages an extracted unit. String pointers are rebased
// from code-relative to STRD-relative offsets.
func FromFunctionSet(set *extract.FunctionSet) (*Container, error) {
	return relocate(set.Start, set.Code, set.Pointers, set.Strings)
}

// FromBinary converts a linked binary. The annotation records become the
// pointer table; the assets offset has no place in a container and is
// dropped.
func FromBinary(bin *bytecode.Binary) (*Container, error) {
	code, ptrs, err := bin.Relocatable()
	if err != nil {
		return nil, err
	}
	return relocate(bin.Start, code, ptrs, bin.Strings)
}

func relocate(start uint32, code []byte, ptrs []bytecode.Pointer, strings []byte) (*Container, error) {
	c := &Container{
		Start:    start,
		Code:     append([]byte(nil), code...),
		Pointers: make([]bytecode.Pointer, 0, len(ptrs)),
		Strings:  strings,
	}
	codeLen := uint32(len(code))
	for _, p := range ptrs {
		if p.Kind == bytecode.PointerString {
			if p.Value < codeLen || p.Value-codeLen >= uint32(len(strings)) {
				return nil, fmt.Errorf("%w: string pointer at %#x has value %#x", ErrPointerOutside, p.Offset, p.Value)
			}
			p.Value -= codeLen
			bytecode.WriteUint32(c.Code[p.Offset:], p.Value)
		}
		c.Pointers = append(c.Pointers, p)
	}
	return c, nil
}
