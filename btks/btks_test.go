package btks

import (
	"bytes"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/chazu/tickflow/extract"
	"github.com/chazu/tickflow/pkg/bytecode"
	"github.com/chazu/tickflow/tempo"
)

func code(ws ...uint32) []byte {
	var b []byte
	for _, w := range ws {
		b = bytecode.AppendUint32(b, w)
	}
	return b
}

func marshal(t *testing.T, c *Container) []byte {
	t.Helper()
	data, err := c.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	return data
}

func TestHeaderAccounting(t *testing.T) {
	twoPoints := &tempo.Tempo{ID: 0x10001, Points: []tempo.Point{
		{Beats: 4, Time: 64000},
		{Beats: 2, Time: 32000},
	}}
	tests := []struct {
		name     string
		c        *Container
		sections uint32
		total    uint32
	}{
		{
			name:     "flow only",
			c:        &Container{Code: code(0x8, 0)},
			sections: 1,
			total:    HeaderSize + flowFixed + 8,
		},
		{
			name: "flow ptro strd",
			c: &Container{
				Code:     code(0x4B5, 0, 0x8),
				Pointers: []bytecode.Pointer{{Offset: 4, Kind: bytecode.PointerString}},
				Strings:  []byte("hi\x00\x00"),
			},
			sections: 3,
			total:    HeaderSize + (flowFixed + 12) + (ptroFixed + 5) + (strdFixed + 4),
		},
		{
			name:     "flow tmpo",
			c:        &Container{Code: code(0x8), Tempos: []*tempo.Tempo{twoPoints}},
			sections: 2,
			total:    HeaderSize + (flowFixed + 4) + (tmpoFixed + tempoHeaderSize + 2*tempoPointSize),
		},
		{
			name:     "empty strings are omitted",
			c:        &Container{Code: code(0x8), Strings: []byte{}},
			sections: 1,
			total:    HeaderSize + flowFixed + 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := marshal(t, tt.c)
			h, err := ReadHeader(data)
			if err != nil {
				t.Fatalf("ReadHeader: %v", err)
			}
			if h.SectionCount != tt.sections {
				t.Errorf("section count = %d, want %d", h.SectionCount, tt.sections)
			}
			if h.TotalSize != tt.total || int(h.TotalSize) != len(data) {
				t.Errorf("total size = %#x (len %#x), want %#x", h.TotalSize, len(data), tt.total)
			}
			if h.HeaderSize != HeaderSize || h.Revision != Revision {
				t.Errorf("header = %+v", h)
			}
		})
	}
}

func TestWriteAtOffset(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "*.btk")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	prefix := bytes.Repeat([]byte{0xAA}, 16)
	if _, err := f.Write(prefix); err != nil {
		t.Fatal(err)
	}
	c := &Container{Code: code(0x8), Strings: []byte("x\x00\x00\x00")}
	if err := Write(f, c); err != nil {
		t.Fatalf("Write: %v", err)
	}
	pos, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(f.Name())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data[:16], prefix) {
		t.Errorf("prefix clobbered: % X", data[:16])
	}
	if !bytes.Equal(data[16:], marshal(t, c)) {
		t.Errorf("file body differs from MarshalBinary:\n% X", data[16:])
	}
	h, err := ReadHeader(data[16:])
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if int(h.TotalSize) != len(data)-16 || h.SectionCount != 2 {
		t.Errorf("header = %+v, data after prefix = %d bytes", h, len(data)-16)
	}
	if int(pos) != len(data) {
		t.Errorf("writer left at %d, want end %d", pos, len(data))
	}
}

func TestParseRoundTrip(t *testing.T) {
	c := &Container{
		Start: 8,
		Code:  code(0x406, 8, 0x4B5, 0, 0x7),
		Pointers: []bytecode.Pointer{
			{Offset: 4, Kind: bytecode.PointerTickflow},
			{Offset: 12, Kind: bytecode.PointerString},
		},
		Tempos: []*tempo.Tempo{
			{ID: 0x100, Points: []tempo.Point{{Beats: 1, Time: 16000, Loop: 3}}},
			{ID: 0x10002, Points: []tempo.Point{{Beats: 4, Time: 64000}, {Beats: 4, Time: 48000}}},
		},
		Strings: []byte("hey\x00"),
	}
	back, err := Parse(marshal(t, c))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if back.Start != c.Start || !bytes.Equal(back.Code, c.Code) || !bytes.Equal(back.Strings, c.Strings) {
		t.Errorf("got start %d code % X strings %q", back.Start, back.Code, back.Strings)
	}
	if len(back.Pointers) != 2 || back.Pointers[0] != c.Pointers[0] || back.Pointers[1] != c.Pointers[1] {
		t.Errorf("pointers = %+v", back.Pointers)
	}
	if len(back.Tempos) != 2 {
		t.Fatalf("got %d tempos", len(back.Tempos))
	}
	for i, tp := range back.Tempos {
		want := c.Tempos[i]
		if tp.ID != want.ID || len(tp.Points) != len(want.Points) {
			t.Errorf("tempo %d = %+v", i, tp)
			continue
		}
		for j := range tp.Points {
			if tp.Points[j] != want.Points[j] {
				t.Errorf("tempo %d point %d = %+v, want %+v", i, j, tp.Points[j], want.Points[j])
			}
		}
	}
}

func TestParseStreamedFlag(t *testing.T) {
	c := &Container{Code: code(0x8), Tempos: []*tempo.Tempo{{ID: 0x20, Points: []tempo.Point{{Beats: 1, Time: 1}}}}}
	data := marshal(t, c)
	// header, FLOW, then TMPO magic + size + count + id + points
	at := HeaderSize + flowFixed + 4 + tmpoFixed + 8
	if got := bytecode.ReadUint32(data[at:]); got != 1 {
		t.Errorf("streamed flag = %d, want 1", got)
	}
}

func TestParseErrors(t *testing.T) {
	good := marshal(t, &Container{Code: code(0x8)})
	mutate := func(f func([]byte)) []byte {
		b := append([]byte(nil), good...)
		f(b)
		return b
	}
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"short", good[:10], ErrUnexpectedEOF},
		{"magic", mutate(func(b []byte) { b[0] = 'X' }), ErrInvalidMagic},
		{"revision", mutate(func(b []byte) { b[8] = 1 }), ErrRevision},
		{"header size", mutate(func(b []byte) { b[12] = 4 }), ErrCorruptHeader},
		{"truncated", good[:len(good)-4], ErrUnexpectedEOF},
		{"unknown section", mutate(func(b []byte) { copy(b[HeaderSize:], "JUNK") }), ErrUnknownSection},
		{"no sections", mutate(func(b []byte) { b[sectionCountOffset] = 0 }), ErrMissingFlow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(tt.data); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestWriteRejects(t *testing.T) {
	if _, err := (&Container{Code: []byte{1, 2}}).MarshalBinary(); !errors.Is(err, bytecode.ErrMisalignedCode) {
		t.Errorf("misaligned code: err = %v", err)
	}
	c := &Container{Code: code(0x8), Pointers: []bytecode.Pointer{{Offset: 4}}}
	if _, err := c.MarshalBinary(); !errors.Is(err, ErrPointerOutside) {
		t.Errorf("pointer past code: err = %v", err)
	}
}

func TestFromFunctionSet(t *testing.T) {
	// debug <string at pool offset 4>, stop; code is 12 bytes
	set := &extract.FunctionSet{
		Code:    code(0x4B5, 12+4, 0x8),
		Strings: []byte("a\x00\x00\x00hey\x00"),
		Pointers: []bytecode.Pointer{
			{Offset: 4, Kind: bytecode.PointerString, Value: 12 + 4},
		},
	}
	c, err := FromFunctionSet(set)
	if err != nil {
		t.Fatalf("FromFunctionSet: %v", err)
	}
	if got := bytecode.ReadUint32(c.Code[4:]); got != 4 {
		t.Errorf("string field = %d, want STRD offset 4", got)
	}
	if c.Pointers[0].Value != 4 {
		t.Errorf("pointer value = %d, want 4", c.Pointers[0].Value)
	}
	if got := bytecode.ReadUint32(set.Code[4:]); got != 16 {
		t.Errorf("source code modified: field = %d", got)
	}
}

func TestFromBinary(t *testing.T) {
	ascii := bytecode.Annotation{Slot: 0, Tag: bytecode.TagASCII}.Encode()
	ptr := bytecode.Annotation{Slot: 0, Tag: bytecode.TagPointer}.Encode()
	bin := &bytecode.Binary{
		Start: 8,
		Code: code(
			bytecode.AnnotationMarker, 1, ascii, 0x4B5, 16,
			bytecode.AnnotationMarker, 1, ptr, 0x406, 0,
		),
		Strings: []byte("hi\x00\x00"),
	}
	c, err := FromBinary(bin)
	if err != nil {
		t.Fatalf("FromBinary: %v", err)
	}
	if !bytes.Equal(c.Code, code(0x4B5, 0, 0x406, 0)) {
		t.Errorf("code = % X", c.Code)
	}
	want := []bytecode.Pointer{
		{Offset: 4, Kind: bytecode.PointerString, Value: 0},
		{Offset: 12, Kind: bytecode.PointerTickflow, Value: 0},
	}
	if len(c.Pointers) != len(want) || c.Pointers[0] != want[0] || c.Pointers[1] != want[1] {
		t.Errorf("pointers = %+v, want %+v", c.Pointers, want)
	}
	if c.Start != 8 {
		t.Errorf("start = %d", c.Start)
	}

	bad := &bytecode.Binary{Code: code(bytecode.AnnotationMarker, 1, ascii, 0x4B5, 2)}
	if _, err := FromBinary(bad); !errors.Is(err, ErrPointerOutside) {
		t.Errorf("string pointer into code: err = %v", err)
	}
	// 8 bytes of code and a 4-byte pool: 12 is one past the last entry
	pastEnd := &bytecode.Binary{
		Code:    code(bytecode.AnnotationMarker, 1, ascii, 0x4B5, 12),
		Strings: []byte("hi\x00\x00"),
	}
	if _, err := FromBinary(pastEnd); !errors.Is(err, ErrPointerOutside) {
		t.Errorf("string pointer at end of pool: err = %v", err)
	}
	last := &bytecode.Binary{
		Code:    code(bytecode.AnnotationMarker, 1, ascii, 0x4B5, 11),
		Strings: []byte("hi\x00\x00"),
	}
	if _, err := FromBinary(last); err != nil {
		t.Errorf("string pointer at last pool byte: err = %v", err)
	}
}
