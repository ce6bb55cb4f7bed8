package bytecode

import (
	"errors"
	"testing"
)

func TestMakeWord(t *testing.T) {
	tests := []struct {
		op   uint16
		argc int
		arg0 uint32
		want Word
	}{
		{0x6, 1, 0, 0x406},
		{0x8, 0, 0, 0x8},
		{0x16, 1, 2, 0x8416},
		{0x7FF, 0, 0, 0x3FF}, // opcode masked to 10 bits
		{0x1, 15, 1, 0x7C01},
	}
	for _, tc := range tests {
		got, err := MakeWord(tc.op, tc.argc, tc.arg0)
		if err != nil {
			t.Errorf("MakeWord(%#x, %d, %d): %v", tc.op, tc.argc, tc.arg0, err)
			continue
		}
		if got != tc.want {
			t.Errorf("MakeWord(%#x, %d, %d) = %#x, want %#x", tc.op, tc.argc, tc.arg0, got, tc.want)
		}
	}
}

func TestMakeWordTooManyArgs(t *testing.T) {
	if _, err := MakeWord(0x1, 16, 0); !errors.Is(err, ErrTooManyArgs) {
		t.Errorf("err = %v, want ErrTooManyArgs", err)
	}
}

func TestWordFields(t *testing.T) {
	w, _ := MakeWord(0x3E, 3, 7)
	if w.Opcode() != 0x3E {
		t.Errorf("Opcode = %#x, want 0x3E", w.Opcode())
	}
	if w.ArgCount() != 3 {
		t.Errorf("ArgCount = %d, want 3", w.ArgCount())
	}
	if w.Arg0() != 7 {
		t.Errorf("Arg0 = %d, want 7", w.Arg0())
	}
	if w.Command() != 0x3E|7<<14 {
		t.Errorf("Command = %#x", w.Command())
	}
	if w.String() != "0x3E<0x7>" {
		t.Errorf("String = %q", w.String())
	}
}

func TestOpcodeClasses(t *testing.T) {
	word := func(op uint16, argc int, arg0 uint32) Word {
		w, err := MakeWord(op, argc, arg0)
		if err != nil {
			t.Fatal(err)
		}
		return w
	}

	if c, ok := LookupCall(word(0x6, 1, 0)); !ok || c.Slot != 0 {
		t.Errorf("call: %+v %v", c, ok)
	}
	if c, ok := LookupCall(word(0x1, 2, 1)); !ok || c.Slot != 1 {
		t.Errorf("set_func: %+v %v", c, ok)
	}
	if _, ok := LookupCall(word(0x1, 2, 0)); ok {
		t.Error("get_async treated as call")
	}
	if !IsSceneOp(word(0x28, 1, 0)) {
		t.Error("engine not a scene op")
	}
	if !IsDepthOp(word(0x16, 1, 5)) || !IsDepthOp(word(0x19, 0, 0)) {
		t.Error("if_geq/switch not depth ops")
	}
	if IsDepthOp(word(0x16, 1, 6)) {
		t.Error("0x16<6> treated as depth op")
	}
	if !IsUndepthOp(word(0x18, 0, 0)) || !IsUndepthOp(word(0x1D, 0, 0)) {
		t.Error("endif/endswitch not undepth ops")
	}
	if !IsReturnOp(word(0x7, 0, 0)) || !IsReturnOp(word(0x8, 0, 0)) {
		t.Error("return/stop not return ops")
	}
}

func TestLookupStringScene(t *testing.T) {
	w, _ := MakeWord(0x105, 1, 0)
	if _, ok := LookupString(w, NoScene); ok {
		t.Error("0x105 matched without scene 1")
	}
	op, ok := LookupString(w, 0x01)
	if !ok || len(op.Slots) != 1 || op.Slots[0] != 0 {
		t.Errorf("0x105 in scene 1: %+v %v", op, ok)
	}

	w, _ = MakeWord(0x31, 3, 0)
	op, ok = LookupString(w, 0x40)
	if !ok || !op.Unicode || op.Slots[0] != 1 {
		t.Errorf("set_model: %+v %v", op, ok)
	}

	w, _ = MakeWord(0x94, 4, 0)
	op, ok = LookupString(w, NoScene)
	if !ok || len(op.Slots) != 3 || op.Unicode {
		t.Errorf("0x94: %+v %v", op, ok)
	}
}
