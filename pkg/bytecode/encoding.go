package bytecode

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	xunicode "golang.org/x/text/encoding/unicode"
)

// ---------------------------------------------------------------------------
// Little-endian helpers
// ---------------------------------------------------------------------------

// WriteUint32 writes a uint32 in little-endian format.
func WriteUint32(buf []byte, v uint32) {
	binary.LittleEndian.PutUint32(buf, v)
}

// ReadUint32 reads a uint32 in little-endian format.
func ReadUint32(buf []byte) uint32 {
	return binary.LittleEndian.Uint32(buf)
}

// AppendUint32 appends v to buf in little-endian format.
func AppendUint32(buf []byte, v uint32) []byte {
	return binary.LittleEndian.AppendUint32(buf, v)
}

// ---------------------------------------------------------------------------
// String pool entries
// ---------------------------------------------------------------------------

// ErrUnterminatedString is returned when a pool entry has no terminator.
var ErrUnterminatedString = errors.New("unterminated string")

var utf16le = xunicode.UTF16(xunicode.LittleEndian, xunicode.IgnoreBOM)

// Pad4 returns n rounded up to a multiple of 4.
func Pad4(n int) int {
	return (n + 3) &^ 3
}

// PadEntry appends the terminator for the encoding to raw and zero pads
// the result to a 4-byte boundary.
func PadEntry(raw []byte, unicode bool) []byte {
	term := 1
	if unicode {
		term = 2
	}
	out := make([]byte, Pad4(len(raw)+term))
	copy(out, raw)
	return out
}

// EncodeString encodes text as a string pool entry: UTF-16LE code units for
// unicode strings, raw bytes otherwise, NUL terminated and padded to 4 bytes.
func EncodeString(text string, unicode bool) ([]byte, error) {
	if !unicode {
		if bytes.IndexByte([]byte(text), 0) >= 0 {
			return nil, fmt.Errorf("string %q contains NUL", text)
		}
		return PadEntry([]byte(text), false), nil
	}
	raw, err := utf16le.NewEncoder().Bytes([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("encoding %q as UTF-16: %w", text, err)
	}
	return PadEntry(raw, true), nil
}

// DecodeString reads the NUL terminated string at off in pool.
func DecodeString(pool []byte, off int, unicode bool) (string, error) {
	if off < 0 || off > len(pool) {
		return "", fmt.Errorf("string offset %#x outside pool of %d bytes", off, len(pool))
	}
	data := pool[off:]
	if !unicode {
		end := bytes.IndexByte(data, 0)
		if end < 0 {
			return "", fmt.Errorf("%w at %#x", ErrUnterminatedString, off)
		}
		return string(data[:end]), nil
	}
	end := -1
	for i := 0; i+1 < len(data); i += 2 {
		if data[i] == 0 && data[i+1] == 0 {
			end = i
			break
		}
	}
	if end < 0 {
		return "", fmt.Errorf("%w at %#x", ErrUnterminatedString, off)
	}
	text, err := utf16le.NewDecoder().Bytes(data[:end])
	if err != nil {
		return "", fmt.Errorf("decoding UTF-16 at %#x: %w", off, err)
	}
	return string(text), nil
}
