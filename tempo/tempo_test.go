package tempo

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/chazu/tickflow/pkg/bytecode"
)

func TestParseText(t *testing.T) {
	src := "0x1A2B\n120 4\n\n60 2 3\n"
	tp, err := ParseText(strings.NewReader(src))
	if err != nil {
		t.Fatalf("ParseText: %v", err)
	}
	if tp.ID != 0x1A2B {
		t.Errorf("ID = %#x, want 0x1A2B", tp.ID)
	}
	want := []Point{
		{Beats: 4, Time: 64000, Loop: 0}, // 2 seconds
		{Beats: 2, Time: 64000, Loop: 3},
	}
	if len(tp.Points) != len(want) {
		t.Fatalf("got %d points, want %d", len(tp.Points), len(want))
	}
	for i := range want {
		if tp.Points[i] != want[i] {
			t.Errorf("point %d = %+v, want %+v", i, tp.Points[i], want[i])
		}
	}
}

func TestParseTextErrors(t *testing.T) {
	tests := []struct {
		src  string
		want error
	}{
		{"", ErrBadTempo},
		{"zz\n120 1\n", ErrBadTempo},
		{"10\n", ErrEmpty},
		{"10\n120\n", ErrBadTempo},
		{"10\n0 1\n", ErrBadTempo},
		{"10\n120 1 0x8000\n", ErrLoopValue},
	}
	for _, tc := range tests {
		if _, err := ParseText(strings.NewReader(tc.src)); !errors.Is(err, tc.want) {
			t.Errorf("%q: err = %v, want %v", tc.src, err, tc.want)
		}
	}
}

func TestMarshalBinaryTerminator(t *testing.T) {
	tp := &Tempo{ID: 1, Points: []Point{{Beats: 1, Time: 16000}, {Beats: 2, Time: 32000, Loop: 1}}}
	data, err := tp.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	if len(data) != 24 {
		t.Fatalf("len = %d, want 24", len(data))
	}
	if got := bytecode.ReadUint32(data[0:]); got != math.Float32bits(1) {
		t.Errorf("beats bits = %#x", got)
	}
	if got := bytecode.ReadUint32(data[8:]); got != 0 {
		t.Errorf("first loop = %#x, want 0", got)
	}
	if got := bytecode.ReadUint32(data[20:]); got != 0x8001 {
		t.Errorf("last loop = %#x, want 0x8001", got)
	}

	back, err := ReadBinary(bytes.NewReader(append(data, 0xAA, 0xBB)), 1)
	if err != nil {
		t.Fatalf("ReadBinary: %v", err)
	}
	if len(back.Points) != 2 || back.Points[1] != tp.Points[1] {
		t.Errorf("ReadBinary = %+v", back.Points)
	}
}

func TestMarshalBinaryEmpty(t *testing.T) {
	if _, err := (&Tempo{ID: 3}).MarshalBinary(); !errors.Is(err, ErrEmpty) {
		t.Errorf("err = %v, want ErrEmpty", err)
	}
}

func TestReadBinaryUnfinished(t *testing.T) {
	tp := &Tempo{Points: []Point{{Beats: 1, Time: 1}}}
	data, _ := tp.MarshalBinary()
	if _, err := ReadBinary(bytes.NewReader(data[:8]), 0); !errors.Is(err, ErrUnfinished) {
		t.Errorf("err = %v, want ErrUnfinished", err)
	}
}

func TestTextRoundTrip(t *testing.T) {
	tp, err := ParseText(strings.NewReader("FF\n150 8 2\n"))
	if err != nil {
		t.Fatal(err)
	}
	again, err := ParseText(strings.NewReader(tp.Text()))
	if err != nil {
		t.Fatalf("ParseText(Text()): %v\n%s", err, tp.Text())
	}
	if again.ID != tp.ID || again.Points[0] != tp.Points[0] {
		t.Errorf("got %+v, want %+v", again, tp)
	}
}

func TestStreamed(t *testing.T) {
	if !(&Tempo{ID: 0xFFFF}).Streamed() {
		t.Error("0xFFFF should be streamed")
	}
	if (&Tempo{ID: 0x10000}).Streamed() {
		t.Error("0x10000 should not be streamed")
	}
}
