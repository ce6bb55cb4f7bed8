package extract

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/chazu/tickflow/tempo"
)

// ---------------------------------------------------------------------------
// Image variants
// ---------------------------------------------------------------------------

// Variant identifies the patch format of a game-data image.
type Variant int

const (
	RHMPatch Variant = iota
	SaltwaterUS
	SaltwaterEU
	SaltwaterJP
	SaltwaterKR
)

var variantNames = map[Variant]string{
	RHMPatch:    "rhmpatch",
	SaltwaterUS: "saltwater-us",
	SaltwaterEU: "saltwater-eu",
	SaltwaterJP: "saltwater-jp",
	SaltwaterKR: "saltwater-kr",
}

func (v Variant) String() string {
	if name, ok := variantNames[v]; ok {
		return name
	}
	return fmt.Sprintf("Variant(%d)", int(v))
}

// Base returns the absolute address of byte 0 of the image.
func (v Variant) Base() uint32 {
	if v == RHMPatch {
		return 0x0C000000
	}
	return 0x060A9008
}

// ParseVariant accepts the names printed by Variant.String.
func ParseVariant(s string) (Variant, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for v, name := range variantNames {
		if name == s {
			return v, nil
		}
	}
	return 0, fmt.Errorf("unknown image variant %q", s)
}

// ---------------------------------------------------------------------------
// Tables at the start of the image
// ---------------------------------------------------------------------------

const (
	GameCount  = 0x68
	TempoCount = 0x1DD
	GateCount  = 0x10

	// GateIndexBase is the unit index of the first gate entry.
	GateIndexBase = 0x100

	gameStride   = 0x34
	gameReserved = 0x68 // between the game and tempo tables
	tempoStride  = 0x10
	gateStride   = 0x24
)

// TableEntry is a game or gate table entry. Practice fields are only set
// for gates.
type TableEntry struct {
	Index          uint32
	Start          uint32
	Assets         uint32
	PracticeStart  uint32
	PracticeAssets uint32
}

// IsGate reports whether the entry came from the gate table.
func (t TableEntry) IsGate() bool { return t.Index >= GateIndexBase }

// TempoEntry is a tempo table entry.
type TempoEntry struct {
	ID1 uint32
	ID2 uint32
	Pos uint32
}

// Tables holds the modded entries of an image: those whose pointers are
// at or above the base address.
type Tables struct {
	Games  []TableEntry
	Gates  []TableEntry
	Tempos []TempoEntry
}

// ReadTables reads the game, tempo and, unless legacy is set, gate tables
// from the start of r.
func ReadTables(r io.Reader, base uint32, legacy bool) (*Tables, error) {
	t := &Tables{}
	var buf [gameStride]byte

	for i := 0; i < GameCount; i++ {
		if _, err := io.ReadFull(r, buf[:gameStride]); err != nil {
			return nil, fmt.Errorf("game table entry %#x: %w", i, err)
		}
		// The leading index word is skipped: the table position is the index.
		e := TableEntry{
			Index:  uint32(i),
			Start:  binary.LittleEndian.Uint32(buf[4:]),
			Assets: binary.LittleEndian.Uint32(buf[8:]),
		}
		if e.Start >= base {
			t.Games = append(t.Games, e)
		}
	}
	if _, err := io.CopyN(io.Discard, r, gameReserved); err != nil {
		return nil, fmt.Errorf("game table padding: %w", err)
	}

	for i := 0; i < TempoCount; i++ {
		if _, err := io.ReadFull(r, buf[:tempoStride]); err != nil {
			return nil, fmt.Errorf("tempo table entry %#x: %w", i, err)
		}
		e := TempoEntry{
			ID1: binary.LittleEndian.Uint32(buf[0:]),
			ID2: binary.LittleEndian.Uint32(buf[4:]),
			Pos: binary.LittleEndian.Uint32(buf[8:]),
		}
		if e.Pos >= base {
			t.Tempos = append(t.Tempos, e)
		}
	}

	if legacy {
		return t, nil
	}
	for i := 0; i < GateCount; i++ {
		if _, err := io.ReadFull(r, buf[:gateStride]); err != nil {
			return nil, fmt.Errorf("gate table entry %#x: %w", i, err)
		}
		// As with games, the leading word is skipped. The gate and practice
		// halves are told apart by their pointer pairs, not by that word.
		e := TableEntry{
			Index:          GateIndexBase + uint32(i),
			Start:          binary.LittleEndian.Uint32(buf[4:]),
			Assets:         binary.LittleEndian.Uint32(buf[8:]),
			PracticeStart:  binary.LittleEndian.Uint32(buf[12:]),
			PracticeAssets: binary.LittleEndian.Uint32(buf[16:]),
		}
		if e.Start >= base || e.PracticeStart >= base {
			t.Gates = append(t.Gates, e)
		}
	}
	return t, nil
}

// ---------------------------------------------------------------------------
// Image: every modded unit and tempo
// ---------------------------------------------------------------------------

// Options selects how an image is read.
type Options struct {
	Variant Variant
	Base    uint32 // overrides the variant's base when non-zero
	Legacy  bool   // image predates the gate table
}

func (o Options) base() uint32 {
	if o.Base != 0 {
		return o.Base
	}
	return o.Variant.Base()
}

// Unit is one extracted tickflow program.
type Unit struct {
	Index    uint32
	Practice bool // the practice half of a gate entry
	Set      *FunctionSet
}

// Name returns a stable name for the unit, used when no name table entry
// is configured.
func (u *Unit) Name() string {
	if u.Practice {
		return fmt.Sprintf("%03x_practice", u.Index)
	}
	return fmt.Sprintf("%03x", u.Index)
}

// Image is the extracted content of a patched image.
type Image struct {
	Variant Variant
	Base    uint32
	Units   []*Unit
	Tempos  []*tempo.Tempo
}

// ReadImage extracts every modded unit and tempo from r. Each unit is
// extracted independently; the gate and practice halves of a gate entry
// become separate units.
func ReadImage(r io.ReadSeeker, opts Options) (*Image, error) {
	base := opts.base()
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	tables, err := ReadTables(r, base, opts.Legacy)
	if err != nil {
		return nil, err
	}
	img := &Image{Variant: opts.Variant, Base: base}

	extract := func(index uint32, practice bool, start, assets uint32) error {
		set, err := NewExtractor(r, base).Extract([]uint32{start, assets})
		if err != nil {
			return fmt.Errorf("unit %#x: %w", index, err)
		}
		u := &Unit{Index: index, Practice: practice, Set: set}
		log.Infof("unit %s: %d functions, %d bytes", u.Name(), len(set.Functions), len(set.Code))
		img.Units = append(img.Units, u)
		return nil
	}

	for _, g := range tables.Games {
		if err := extract(g.Index, false, g.Start, g.Assets); err != nil {
			return nil, err
		}
	}
	for _, g := range tables.Gates {
		if g.Start >= base {
			if err := extract(g.Index, false, g.Start, g.Assets); err != nil {
				return nil, err
			}
		}
		if g.PracticeStart >= base {
			if err := extract(g.Index, true, g.PracticeStart, g.PracticeAssets); err != nil {
				return nil, err
			}
		}
	}

	for _, te := range tables.Tempos {
		if _, err := r.Seek(int64(te.Pos-base), io.SeekStart); err != nil {
			return nil, err
		}
		tp, err := tempo.ReadBinary(r, te.ID1)
		if err != nil {
			return nil, fmt.Errorf("tempo %#x: %w", te.ID1, err)
		}
		img.Tempos = append(img.Tempos, tp)
	}
	log.Infof("%s image: %d units, %d tempos", opts.Variant, len(img.Units), len(img.Tempos))
	return img, nil
}
