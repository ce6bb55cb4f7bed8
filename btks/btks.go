// Package btks reads and writes BTKS containers: a relocatable tickflow
// code blob packaged with its pointer table, tempos and string pool.
package btks

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/tliron/commonlog"

	"github.com/chazu/tickflow/pkg/bytecode"
	"github.com/chazu/tickflow/tempo"
)

var log = commonlog.GetLogger("tickflow.btks")

// ---------------------------------------------------------------------------
// Container Format Constants
// ---------------------------------------------------------------------------

// Magic identifies a BTKS container.
var Magic = [4]byte{'B', 'T', 'K', 'S'}

// Section magics, in the order they are written.
var (
	MagicFlow = [4]byte{'F', 'L', 'O', 'W'}
	MagicPtro = [4]byte{'P', 'T', 'R', 'O'}
	MagicTmpo = [4]byte{'T', 'M', 'P', 'O'}
	MagicStrd = [4]byte{'S', 'T', 'R', 'D'}
)

// Revision is the container revision written by this package.
const Revision uint32 = 0

// HeaderSize is magic(4) + totalSize(4) + revision(4) + headerSize(4) +
// sectionCount(4) + reserved(4).
const HeaderSize = 0x18

const (
	flowFixed = 0xC // magic + size + start
	ptroFixed = 0xC // magic + size + count
	tmpoFixed = 0xC // magic + size + count
	strdFixed = 0x8 // magic + size

	pointerRecordSize = 5
	tempoHeaderSize   = 12 // id + point count + streamed flag
	tempoPointSize    = 12

	totalSizeOffset    = 4
	sectionCountOffset = 0x10
)

var (
	ErrInvalidMagic     = errors.New("invalid magic: expected BTKS")
	ErrRevision         = errors.New("unsupported container revision")
	ErrCorruptHeader    = errors.New("corrupt container header")
	ErrCorruptSection   = errors.New("corrupt section")
	ErrUnknownSection   = errors.New("unknown section")
	ErrMissingFlow      = errors.New("container has no FLOW section")
	ErrUnexpectedEOF    = errors.New("unexpected end of container data")
	ErrPointerOutside   = errors.New("pointer outside code")
	ErrDuplicateSection = errors.New("duplicate section")
)

// ---------------------------------------------------------------------------
// Container
// ---------------------------------------------------------------------------

// Container is the content of a BTKS file. Code pointers in Code are
// offsets into Code; string pointers are offsets into Strings.
type Container struct {
	Start    uint32
	Code     []byte
	Pointers []bytecode.Pointer // Value is not stored
	Tempos   []*tempo.Tempo
	Strings  []byte
}

// Header is the parsed fixed header.
type Header struct {
	TotalSize    uint32
	Revision     uint32
	HeaderSize   uint32
	SectionCount uint32
}

// ---------------------------------------------------------------------------
// Writer
// ---------------------------------------------------------------------------

// Write serializes c to w starting at w's current position. The total size
// and section count are written as placeholders and patched once every
// section is out.
func Write(w io.WriteSeeker, c *Container) error {
	if err := c.validate(); err != nil {
		return err
	}
	origin, err := w.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	sections, err := c.writeSections(w)
	if err != nil {
		return err
	}

	// Back-patch the header.
	end, err := w.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	total := uint32(end - origin)
	if err := patchUint32(w, origin+totalSizeOffset, total); err != nil {
		return err
	}
	if err := patchUint32(w, origin+sectionCountOffset, sections); err != nil {
		return err
	}
	if _, err := w.Seek(end, io.SeekStart); err != nil {
		return err
	}
	log.Debugf("wrote container: %d bytes, %d sections", total, sections)
	return nil
}

// MarshalBinary returns the serialized container.
func (c *Container) MarshalBinary() ([]byte, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	sections, err := c.writeSections(&buf)
	if err != nil {
		return nil, err
	}
	data := buf.Bytes()
	bytecode.WriteUint32(data[totalSizeOffset:], uint32(len(data)))
	bytecode.WriteUint32(data[sectionCountOffset:], sections)
	return data, nil
}

func (c *Container) validate() error {
	if len(c.Code)%4 != 0 {
		return bytecode.ErrMisalignedCode
	}
	for _, p := range c.Pointers {
		if int(p.Offset)+4 > len(c.Code) {
			return fmt.Errorf("%w: %#x", ErrPointerOutside, p.Offset)
		}
	}
	return nil
}

// writeSections writes the header with zero total size and section count,
// followed by every non-empty section. It returns the section count.
func (c *Container) writeSections(w io.Writer) (uint32, error) {
	sw := &sectionWriter{w: w}
	sw.raw(Magic[:])
	sw.u32(0) // total size
	sw.u32(Revision)
	sw.u32(HeaderSize)
	sw.u32(0) // section count
	sw.u32(0) // reserved

	sections := uint32(0)

	sw.raw(MagicFlow[:])
	sw.u32(uint32(flowFixed + len(c.Code)))
	sw.u32(c.Start)
	sw.raw(c.Code)
	sections++

	if len(c.Pointers) > 0 {
		sw.raw(MagicPtro[:])
		sw.u32(uint32(ptroFixed + pointerRecordSize*len(c.Pointers)))
		sw.u32(uint32(len(c.Pointers)))
		for _, p := range c.Pointers {
			sw.u32(p.Offset)
			sw.raw([]byte{byte(p.Kind)})
		}
		sections++
	}

	if len(c.Tempos) > 0 {
		payload := 0
		for _, tp := range c.Tempos {
			payload += tempoHeaderSize + tempoPointSize*len(tp.Points)
		}
		sw.raw(MagicTmpo[:])
		sw.u32(uint32(tmpoFixed + payload))
		sw.u32(uint32(len(c.Tempos)))
		for _, tp := range c.Tempos {
			points, err := tp.MarshalBinary()
			if err != nil {
				return 0, err
			}
			sw.u32(tp.ID)
			sw.u32(uint32(len(tp.Points)))
			sw.u32(boolWord(tp.Streamed()))
			sw.raw(points)
		}
		sections++
	}

	if len(c.Strings) > 0 {
		sw.raw(MagicStrd[:])
		sw.u32(uint32(strdFixed + len(c.Strings)))
		sw.raw(c.Strings)
		sections++
	}
	return sections, sw.err
}

func boolWord(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func patchUint32(w io.WriteSeeker, at int64, v uint32) error {
	if _, err := w.Seek(at, io.SeekStart); err != nil {
		return err
	}
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

// sectionWriter keeps the first write error so section code reads straight.
type sectionWriter struct {
	w   io.Writer
	err error
}

func (s *sectionWriter) raw(b []byte) {
	if s.err != nil {
		return
	}
	_, s.err = s.w.Write(b)
}

func (s *sectionWriter) u32(v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	s.raw(buf[:])
}
