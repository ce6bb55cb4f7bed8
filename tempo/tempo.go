// Package tempo converts tempo curves between their text form and the
// binary form stored in game data and BTKS containers.
package tempo

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/chazu/tickflow/pkg/bytecode"
)

const (
	// SampleRate is the number of time units per second.
	SampleRate = 32000
	// TerminatorBit marks the loop value of the last point.
	TerminatorBit uint32 = 0x8000
	// DefaultLoop is the loop value of a text point that omits it.
	DefaultLoop uint32 = 0
	// StreamedLimit bounds the ids of the game's built-in streamed tempos.
	StreamedLimit uint32 = 0x10000

	pointSize = 12
)

var (
	ErrEmpty      = errors.New("tempo has no points")
	ErrBadTempo   = errors.New("invalid tempo")
	ErrLoopValue  = errors.New("loop value uses the terminator bit")
	ErrUnfinished = errors.New("tempo data has no terminating point")
)

// Point is one segment of a tempo curve.
type Point struct {
	Beats float32 // length of the segment in beats
	Time  uint32  // length of the segment in 1/SampleRate seconds
	Loop  uint32  // loop control, without the terminator bit
}

// BPM returns the tempo of the segment.
func (p Point) BPM() float64 {
	if p.Time == 0 {
		return 0
	}
	return 60 * float64(p.Beats) * SampleRate / float64(p.Time)
}

// NewPoint builds a point from a tempo in beats per minute.
func NewPoint(bpm float64, beats float32, loop uint32) (Point, error) {
	if !(bpm > 0) || math.IsInf(bpm, 0) {
		return Point{}, fmt.Errorf("%w: bpm %v", ErrBadTempo, bpm)
	}
	if beats < 0 || math.IsNaN(float64(beats)) {
		return Point{}, fmt.Errorf("%w: beats %v", ErrBadTempo, beats)
	}
	if loop&TerminatorBit != 0 {
		return Point{}, fmt.Errorf("%w: %#x", ErrLoopValue, loop)
	}
	t := math.Round(60 * float64(beats) / bpm * SampleRate)
	if t > math.MaxUint32 {
		return Point{}, fmt.Errorf("%w: segment too long", ErrBadTempo)
	}
	return Point{Beats: beats, Time: uint32(t), Loop: loop}, nil
}

// Tempo is a tempo curve.
type Tempo struct {
	ID     uint32
	Points []Point
}

// Streamed reports whether the id belongs to a built-in streamed tempo.
func (t *Tempo) Streamed() bool { return t.ID < StreamedLimit }

// Size returns the encoded size of the points.
func (t *Tempo) Size() int { return pointSize * len(t.Points) }

// MarshalBinary encodes the points, setting the terminator bit on the last.
func (t *Tempo) MarshalBinary() ([]byte, error) {
	if len(t.Points) == 0 {
		return nil, fmt.Errorf("%w: %#x", ErrEmpty, t.ID)
	}
	out := make([]byte, 0, t.Size())
	for i, p := range t.Points {
		if p.Loop&TerminatorBit != 0 {
			return nil, fmt.Errorf("tempo %#x point %d: %w", t.ID, i, ErrLoopValue)
		}
		loop := p.Loop
		if i == len(t.Points)-1 {
			loop |= TerminatorBit
		}
		out = bytecode.AppendUint32(out, math.Float32bits(p.Beats))
		out = bytecode.AppendUint32(out, p.Time)
		out = bytecode.AppendUint32(out, loop)
	}
	return out, nil
}

// ReadBinary reads points from r up to and including the terminating one.
func ReadBinary(r io.Reader, id uint32) (*Tempo, error) {
	t := &Tempo{ID: id}
	var buf [pointSize]byte
	for {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, fmt.Errorf("%w: tempo %#x after %d points", ErrUnfinished, id, len(t.Points))
			}
			return nil, err
		}
		p := Point{
			Beats: math.Float32frombits(binary.LittleEndian.Uint32(buf[0:])),
			Time:  binary.LittleEndian.Uint32(buf[4:]),
			Loop:  binary.LittleEndian.Uint32(buf[8:]),
		}
		last := p.Loop&TerminatorBit != 0
		p.Loop &^= TerminatorBit
		t.Points = append(t.Points, p)
		if last {
			return t, nil
		}
	}
}

// ---------------------------------------------------------------------------
// Text form
// ---------------------------------------------------------------------------

// ParseText parses a tempo file: the id in hex on the first line, then one
// "bpm beats [loop]" line per point. Blank lines are ignored.
func ParseText(r io.Reader) (*Tempo, error) {
	sc := bufio.NewScanner(r)
	t := &Tempo{}
	line := 0
	haveID := false
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		if !haveID {
			id, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(text), "0x"), 16, 32)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w: id %q", line, ErrBadTempo, text)
			}
			t.ID = uint32(id)
			haveID = true
			continue
		}
		p, err := parsePoint(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		t.Points = append(t.Points, p)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if !haveID {
		return nil, fmt.Errorf("%w: missing id", ErrBadTempo)
	}
	if len(t.Points) == 0 {
		return nil, fmt.Errorf("%w: %#x", ErrEmpty, t.ID)
	}
	return t, nil
}

func parsePoint(text string) (Point, error) {
	fields := strings.Fields(text)
	if len(fields) < 2 || len(fields) > 3 {
		return Point{}, fmt.Errorf("%w: want \"bpm beats [loop]\", got %q", ErrBadTempo, text)
	}
	bpm, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return Point{}, fmt.Errorf("%w: bpm %q", ErrBadTempo, fields[0])
	}
	beats, err := strconv.ParseFloat(fields[1], 32)
	if err != nil {
		return Point{}, fmt.Errorf("%w: beats %q", ErrBadTempo, fields[1])
	}
	loop := DefaultLoop
	if len(fields) == 3 {
		v, err := strconv.ParseUint(fields[2], 0, 32)
		if err != nil {
			return Point{}, fmt.Errorf("%w: loop %q", ErrBadTempo, fields[2])
		}
		loop = uint32(v)
	}
	return NewPoint(bpm, float32(beats), loop)
}

// Text renders t in the form read by ParseText.
func (t *Tempo) Text() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%X\n", t.ID)
	for _, p := range t.Points {
		fmt.Fprintf(&sb, "%s %s %d\n",
			strconv.FormatFloat(p.BPM(), 'f', -1, 64),
			strconv.FormatFloat(float64(p.Beats), 'f', -1, 32),
			p.Loop)
	}
	return sb.String()
}
