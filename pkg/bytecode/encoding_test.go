package bytecode

import (
	"bytes"
	"testing"
)

func TestEncodeStringPadding(t *testing.T) {
	tests := []struct {
		text    string
		unicode bool
		want    []byte
	}{
		{"", false, []byte{0, 0, 0, 0}},
		{"abc", false, []byte{'a', 'b', 'c', 0}},
		{"abcd", false, []byte{'a', 'b', 'c', 'd', 0, 0, 0, 0}},
		{"", true, []byte{0, 0, 0, 0}},
		{"a", true, []byte{'a', 0, 0, 0}},
		{"ab", true, []byte{'a', 0, 'b', 0, 0, 0, 0, 0}},
		{"é", true, []byte{0xE9, 0, 0, 0}},
	}
	for _, tc := range tests {
		got, err := EncodeString(tc.text, tc.unicode)
		if err != nil {
			t.Errorf("EncodeString(%q, %v): %v", tc.text, tc.unicode, err)
			continue
		}
		if len(got)%4 != 0 {
			t.Errorf("EncodeString(%q, %v): length %d not a multiple of 4", tc.text, tc.unicode, len(got))
		}
		if !bytes.Equal(got, tc.want) {
			t.Errorf("EncodeString(%q, %v) = %v, want %v", tc.text, tc.unicode, got, tc.want)
		}
	}
}

func TestEncodeStringRejectsNUL(t *testing.T) {
	if _, err := EncodeString("a\x00b", false); err == nil {
		t.Error("expected error for embedded NUL")
	}
}

func TestDecodeString(t *testing.T) {
	a, _ := EncodeString("model.brcad", true)
	b, _ := EncodeString("sfx", false)
	pool := append(append([]byte{}, a...), b...)

	got, err := DecodeString(pool, 0, true)
	if err != nil || got != "model.brcad" {
		t.Errorf("unicode = %q, %v", got, err)
	}
	got, err = DecodeString(pool, len(a), false)
	if err != nil || got != "sfx" {
		t.Errorf("ascii = %q, %v", got, err)
	}
	if _, err := DecodeString([]byte("ab"), 0, false); err == nil {
		t.Error("expected error for unterminated string")
	}
	if _, err := DecodeString(pool, len(pool)+4, false); err == nil {
		t.Error("expected error for offset outside pool")
	}
}

func TestPad4(t *testing.T) {
	for n, want := range map[int]int{0: 0, 1: 4, 3: 4, 4: 4, 5: 8} {
		if got := Pad4(n); got != want {
			t.Errorf("Pad4(%d) = %d, want %d", n, got, want)
		}
	}
}
