package extract

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Report summarizes an extraction for tooling: which units were found,
// where each function came from and where it ended up.
type Report struct {
	Variant string        `cbor:"variant"`
	Base    uint32        `cbor:"base"`
	Units   []UnitReport  `cbor:"units"`
	Tempos  []TempoReport `cbor:"tempos,omitempty"`
}

// UnitReport describes one extracted unit.
type UnitReport struct {
	Index        uint32           `cbor:"index"`
	Practice     bool             `cbor:"practice,omitempty"`
	Name         string           `cbor:"name"`
	Start        uint32           `cbor:"start"`
	Assets       uint32           `cbor:"assets"`
	CodeSize     int              `cbor:"code_size"`
	StringSize   int              `cbor:"string_size"`
	Pointers     int              `cbor:"pointers"`
	External     []uint32         `cbor:"external,omitempty"`
	Placeholders int              `cbor:"placeholders,omitempty"`
	Functions    []FunctionReport `cbor:"functions"`
}

// FunctionReport maps one function from the image to the unit.
type FunctionReport struct {
	Address uint32 `cbor:"address"`
	Offset  uint32 `cbor:"offset"`
	Size    int    `cbor:"size"`
	Scene   uint32 `cbor:"scene"`
}

// TempoReport describes one extracted tempo.
type TempoReport struct {
	ID       uint32 `cbor:"id"`
	Points   int    `cbor:"points"`
	Streamed bool   `cbor:"streamed"`
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("extract: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Report builds the report for img. names maps unit names to output names
// and may be nil.
func (img *Image) Report(names func(*Unit) string) *Report {
	r := &Report{Variant: img.Variant.String(), Base: img.Base}
	for _, u := range img.Units {
		name := u.Name()
		if names != nil {
			name = names(u)
		}
		ur := UnitReport{
			Index:        u.Index,
			Practice:     u.Practice,
			Name:         name,
			Start:        u.Set.Start,
			Assets:       u.Set.Assets,
			CodeSize:     len(u.Set.Code),
			StringSize:   len(u.Set.Strings),
			Pointers:     len(u.Set.Pointers),
			External:     u.Set.External,
			Placeholders: u.Set.Placeholders,
		}
		for _, fn := range u.Set.Functions {
			ur.Functions = append(ur.Functions, FunctionReport{
				Address: fn.Address,
				Offset:  fn.Offset,
				Size:    len(fn.Code),
				Scene:   fn.Scene,
			})
		}
		r.Units = append(r.Units, ur)
	}
	for _, tp := range img.Tempos {
		r.Tempos = append(r.Tempos, TempoReport{ID: tp.ID, Points: len(tp.Points), Streamed: tp.Streamed()})
	}
	return r
}

// MarshalReport serializes a Report to canonical CBOR.
func MarshalReport(r *Report) ([]byte, error) {
	return cborEncMode.Marshal(r)
}

// UnmarshalReport deserializes a Report from CBOR bytes.
func UnmarshalReport(data []byte) (*Report, error) {
	var r Report
	if err := cbor.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("extract: unmarshal report: %w", err)
	}
	return &r, nil
}
