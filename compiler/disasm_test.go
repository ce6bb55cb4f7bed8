package compiler

import (
	"bytes"
	"strings"
	"testing"

	"github.com/chazu/tickflow/pkg/bytecode"
)

const roundTripSource = `#index 0x101
start:
	engine 0x40
	set_model 1, u"model.brcad"
	async_call sub1, 0x30
	rest 0x30
	if_lt 3
	debug "x\ty\x01"
	endif
	0x94 1, 2, 3, 4
	0x16<0x9> 2
	kill_cat -5
	stop
assets:
	set_sfx 0, u"snd"
	set_sfx 0, u"snd"
	debug "x\ty\x01"
	return
sub1:
	call start
	stop
`

func marshal(t *testing.T, bin *bytecode.Binary) []byte {
	t.Helper()
	data, err := bin.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	return data
}

func TestDisassembleRoundTrip(t *testing.T) {
	bin := assemble(t, roundTripSource)
	text, err := Disassemble(bin)
	if err != nil {
		t.Fatalf("Disassemble: %v", err)
	}
	again := assemble(t, text)
	if !bytes.Equal(marshal(t, bin), marshal(t, again)) {
		t.Errorf("round trip changed the binary; disassembly:\n%s", text)
	}
}

func TestDisassembleNames(t *testing.T) {
	bin := assemble(t, roundTripSource)
	text, err := Disassemble(bin)
	if err != nil {
		t.Fatalf("Disassemble: %v", err)
	}
	for _, want := range []string{
		"#index 0x101\n",
		"start:\n",
		"assets:\n",
		"\tset_model 1, u\"model.brcad\", 1\n",
		"\tasync_call loc_",
		"\trest<0x30>\n",
		"\tif_lt 3\n",
		"\tdebug \"x\\ty\\x01\"\n",
		"\t0x94 1, 2, 3, 4\n",
		"\t0x16<0x9> 2\n",
		"\tkill_cat -5\n",
		"\tcall start\n",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("missing %q in:\n%s", want, text)
		}
	}
}

func TestDisassembleEntryOverride(t *testing.T) {
	// Start points into the middle of the call instruction.
	bin := &bytecode.Binary{Start: 4, Assets: 0, Code: words(0x408, 7, 0x8)}
	text, err := Disassemble(bin)
	if err != nil {
		t.Fatalf("Disassemble: %v", err)
	}
	if !strings.Contains(text, "#start 0x4\n") {
		t.Errorf("missing #start directive in:\n%s", text)
	}
	again := assemble(t, text)
	if !bytes.Equal(marshal(t, bin), marshal(t, again)) {
		t.Errorf("round trip changed the binary:\n%s", text)
	}
}
