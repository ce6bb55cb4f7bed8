package compiler

import (
	"bytes"
	"errors"
	"testing"

	"github.com/chazu/tickflow/pkg/bytecode"
)

func assemble(t *testing.T, src string) *bytecode.Binary {
	t.Helper()
	prog, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	bin, err := Assemble(prog)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	return bin
}

func words(ws ...uint32) []byte {
	var out []byte
	for _, w := range ws {
		out = bytecode.AppendUint32(out, w)
	}
	return out
}

func TestAssembleCallLabel(t *testing.T) {
	bin := assemble(t, `start:
assets:
	call L1
L1:
	stop
`)
	want := words(0xFFFFFFFF, 1, 0, 0x406, 8, 0x8)
	if !bytes.Equal(bin.Code, want) {
		t.Errorf("code = % X, want % X", bin.Code, want)
	}
	if bin.Start != 0 || bin.Assets != 0 {
		t.Errorf("start/assets = %#x/%#x, want 0/0", bin.Start, bin.Assets)
	}
	if len(bin.Strings) != 0 {
		t.Errorf("strings = %q, want empty", bin.Strings)
	}
}

func TestAssembleStrings(t *testing.T) {
	bin := assemble(t, `#index 7
start:
	debug "hi"
assets:
	set_model 1, u"a"
	stop
`)
	// debug (8) + set_model (16) + stop (4)
	const codeLen = 28
	want := words(
		0xFFFFFFFF, 1, 0x002, 0x4B5, codeLen,
		0xFFFFFFFF, 1, 0x101, 0xC31, 1, codeLen + 4, 1,
		0x8,
	)
	if !bytes.Equal(bin.Code, want) {
		t.Errorf("code = % X, want % X", bin.Code, want)
	}
	if !bytes.Equal(bin.Strings, []byte("hi\x00\x00a\x00\x00\x00")) {
		t.Errorf("strings = % X", bin.Strings)
	}
	if bin.Index != 7 || bin.Start != 0 || bin.Assets != 8 {
		t.Errorf("header = %d/%#x/%#x, want 7/0/0x8", bin.Index, bin.Start, bin.Assets)
	}
}

func TestAssembleRepeatedStrings(t *testing.T) {
	bin := assemble(t, "start:\nassets:\n\tdebug \"x\"\n\tdebug \"x\"\n")
	if want := "x\x00\x00\x00x\x00\x00\x00"; string(bin.Strings) != want {
		t.Errorf("pool = %q, want %q", bin.Strings, want)
	}
	instrs, err := bin.Decode()
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	// two 8-byte debug commands, so the pool starts at 16
	if len(instrs) != 2 || instrs[0].Args[0] != 16 || instrs[1].Args[0] != 20 {
		t.Fatalf("instructions = %+v, want string args 0x10 and 0x14", instrs)
	}
}

func TestAssembleArg0Forms(t *testing.T) {
	bin := assemble(t, `#start 0
#assets 0
	rest 0x30
	rest<0x30>
	kill_cat 2
	if_gt 1
	0x3<0x5> 9
`)
	want := words(
		0x30<<14|0xE,
		0x30<<14|0xE,
		1<<14|0x403, 2,
		4<<14|0x416, 1,
		5<<14|0x403, 9,
	)
	if !bytes.Equal(bin.Code, want) {
		t.Errorf("code = % X, want % X", bin.Code, want)
	}
}

func TestAssembleDefaults(t *testing.T) {
	bin := assemble(t, "start:\nassets:\n\tasync_sub 5\n")
	want := words(0xC00, 5, 0, 2000)
	if !bytes.Equal(bin.Code, want) {
		t.Errorf("code = % X, want % X", bin.Code, want)
	}
}

func TestAssembleRaw(t *testing.T) {
	bin := assemble(t, "#start 0\n#assets 0\n\tbytes 1, 2, 3, 4, 5\n\tints -1\n")
	want := []byte{1, 2, 3, 4, 5, 0, 0, 0, 0xFF, 0xFF, 0xFF, 0xFF}
	if !bytes.Equal(bin.Code, want) {
		t.Errorf("code = % X, want % X", bin.Code, want)
	}
}

func TestAssembleErrors(t *testing.T) {
	tests := []struct {
		src  string
		want error
	}{
		{"start:\nassets:\n\tfrobnicate\n", ErrUndefinedCommand},
		{"start:\nassets:\n\tkill_all<1>\n", ErrArg0Conflict},
		{"start:\nassets:\n\trest\n", ErrMissingArg0},
		{"start:\nassets:\n\tcall\n", ErrWrongArgCount},
		{"start:\nassets:\n\tasync_sub 1, 2, 3, 4\n", ErrWrongArgCount},
		{"start:\nassets:\n\tcall 5\n", ErrWrongArgType},
		{"start:\nassets:\n\tset_model 1, \"ascii\"\n", ErrWrongArgType},
		{"start:\nassets:\n\tcall nowhere\n", ErrUnresolvedLabel},
		{"start:\nstart:\nassets:\n\tstop\n", ErrDuplicateLabel},
		{"assets:\n\tstop\n", ErrUnresolvedLabel},
		{"#start 0\n\tstop\n", ErrUnresolvedLabel},
		{"start:\nassets:\n\t0x1 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16\n", bytecode.ErrTooManyArgs},
	}
	for _, tc := range tests {
		prog, err := Parse(tc.src)
		if err != nil {
			t.Errorf("%q: Parse: %v", tc.src, err)
			continue
		}
		_, err = Assemble(prog)
		if !errors.Is(err, tc.want) {
			t.Errorf("%q: err = %v, want %v", tc.src, err, tc.want)
		}
	}
}

func TestAssembleErrorPosition(t *testing.T) {
	prog, _ := Parse("start:\nassets:\n\tstop\n\tcall 5\n")
	_, err := Assemble(prog)
	var cerr *Error
	if !errors.As(err, &cerr) {
		t.Fatalf("err = %v, want *Error", err)
	}
	if cerr.Pos.Line != 4 || cerr.Command != "call" || cerr.Arg != 0 {
		t.Errorf("error = %+v", cerr)
	}
}
