package bytecode

import (
	"errors"
	"fmt"
)

// ErrTooManyArgs is returned when an instruction would need more arguments
// than the 4-bit count field can hold.
var ErrTooManyArgs = errors.New("too many arguments for one instruction")

const (
	// MaxArgs is the largest argument count an instruction word can encode.
	MaxArgs = 15

	opcodeMask   = 0x3FF
	argCountMask = 0xF
	argCountBit  = 10
	arg0Bit      = 14

	// CommandMask clears the argument count, leaving opcode and arg0.
	CommandMask uint32 = 0xFFFFC3FF
)

// Word is an encoded instruction word.
type Word uint32

// MakeWord packs an opcode, argument count and arg0 selector.
func MakeWord(opcode uint16, argc int, arg0 uint32) (Word, error) {
	if argc < 0 || argc > MaxArgs {
		return 0, fmt.Errorf("%w: %d (max %d)", ErrTooManyArgs, argc, MaxArgs)
	}
	return Word(uint32(opcode)&opcodeMask | uint32(argc)<<argCountBit | arg0<<arg0Bit), nil
}

// Opcode returns the low 10 bits of the word.
func (w Word) Opcode() uint16 { return uint16(uint32(w) & opcodeMask) }

// ArgCount returns the number of argument words following w.
func (w Word) ArgCount() int { return int(uint32(w)>>argCountBit) & argCountMask }

// Arg0 returns the sub-variant selector.
func (w Word) Arg0() uint32 { return uint32(w) >> arg0Bit }

// Command returns w with the argument count cleared, so it compares equal
// for every arity of the same opcode and selector.
func (w Word) Command() uint32 { return uint32(w) & CommandMask }

// String returns the opcode in tickflow notation, e.g. 0x16<2>.
func (w Word) String() string {
	if w.Arg0() == 0 {
		return fmt.Sprintf("0x%X", w.Opcode())
	}
	return fmt.Sprintf("0x%X<0x%X>", w.Opcode(), w.Arg0())
}

// cmd builds the comparison key used by the op tables.
func cmd(opcode uint16, arg0 uint32) uint32 {
	return uint32(opcode)&opcodeMask | arg0<<arg0Bit
}

// ---------------------------------------------------------------------------
// Opcode classes
// ---------------------------------------------------------------------------

// NoScene is the scene register value before any scene op has run.
const NoScene uint32 = 0xFF

// SceneOpcode sets the scene register from its first argument.
const SceneOpcode uint16 = 0x28

// CallOp is a call-class opcode whose argument Slot holds an absolute
// address of another tickflow function.
type CallOp struct {
	Command uint32
	Slot    int
}

// StringOp is a string-class opcode. Slots name the arguments holding
// absolute string addresses. When Scene is set the op only takes strings
// while that scene is active.
type StringOp struct {
	Command uint32
	Slots   []int
	Unicode bool
	Scene   *uint32
}

func scene(v uint32) *uint32 { return &v }

var callOps = []CallOp{
	{cmd(0x1, 1), 1}, // set_func
	{cmd(0x2, 0), 0}, // async_call
	{cmd(0x3, 2), 0}, // kill_loc
	{cmd(0x6, 0), 0}, // call
}

var depthOps = []uint32{
	cmd(0x16, 0), cmd(0x16, 1), cmd(0x16, 2),
	cmd(0x16, 3), cmd(0x16, 4), cmd(0x16, 5),
	cmd(0x19, 0),
}

var undepthOps = []uint32{cmd(0x18, 0), cmd(0x1D, 0)}

var returnOps = []uint32{cmd(0x7, 0), cmd(0x8, 0)}

var stringOps = []StringOp{
	{Command: cmd(0x31, 0), Slots: []int{1}, Unicode: true},
	{Command: cmd(0x35, 0), Slots: []int{1}, Unicode: true},
	{Command: cmd(0x39, 0), Slots: []int{1}, Unicode: true},
	{Command: cmd(0x3B, 0), Slots: []int{2}},
	{Command: cmd(0x3E, 0), Slots: []int{1}, Unicode: true},
	{Command: cmd(0x5D, 0), Slots: []int{1}, Unicode: true},
	{Command: cmd(0x5D, 2), Slots: []int{0}, Unicode: true},
	{Command: cmd(0x61, 2), Slots: []int{0}, Unicode: true},
	{Command: cmd(0x65, 1), Slots: []int{1}},
	{Command: cmd(0x66, 0), Slots: []int{1}},
	{Command: cmd(0x67, 1), Slots: []int{1}},
	{Command: cmd(0x68, 1), Slots: []int{1}},
	{Command: cmd(0x93, 0), Slots: []int{2, 3}},
	{Command: cmd(0x94, 0), Slots: []int{1, 2, 3}},
	{Command: cmd(0x95, 0), Slots: []int{1}},
	{Command: cmd(0xAF, 2), Slots: []int{2}},
	{Command: cmd(0xB0, 4), Slots: []int{1}},
	{Command: cmd(0xB0, 5), Slots: []int{1}},
	{Command: cmd(0xB0, 6), Slots: []int{1}},
	{Command: cmd(0xB5, 0), Slots: []int{0}},

	// Scene specific aliases of engine ops.
	{Command: cmd(0x105, 0), Slots: []int{0}, Scene: scene(0x01)},
	{Command: cmd(0x107, 0), Slots: []int{0}, Scene: scene(0x0C)},
	{Command: cmd(0x107, 1), Slots: []int{0}, Scene: scene(0x0C)},
	{Command: cmd(0x106, 0), Slots: []int{0}, Scene: scene(0x18)},
	{Command: cmd(0x106, 0), Slots: []int{0}, Scene: scene(0x2A)},
	{Command: cmd(0x10B, 0), Slots: []int{0}, Scene: scene(0x2C)},
	{Command: cmd(0x107, 0), Slots: []int{0}, Scene: scene(0x39)},
	{Command: cmd(0x107, 1), Slots: []int{0}, Scene: scene(0x39)},
	{Command: cmd(0x108, 0), Slots: []int{0}, Scene: scene(0x39)},
	{Command: cmd(0x109, 0), Slots: []int{0, 1}, Scene: scene(0x39)},
	{Command: cmd(0x10A, 0), Slots: []int{0}, Scene: scene(0x39)},
}

// LookupCall returns the call-class description of w, if any.
func LookupCall(w Word) (CallOp, bool) {
	c := w.Command()
	for _, op := range callOps {
		if op.Command == c {
			return op, true
		}
	}
	return CallOp{}, false
}

// LookupString returns the string-class description of w under the given
// scene, if any.
func LookupString(w Word, sceneID uint32) (StringOp, bool) {
	c := w.Command()
	for _, op := range stringOps {
		if op.Command != c {
			continue
		}
		if op.Scene == nil || *op.Scene == sceneID {
			return op, true
		}
	}
	return StringOp{}, false
}

// IsSceneOp reports whether w sets the scene register.
func IsSceneOp(w Word) bool { return w.Command() == cmd(SceneOpcode, 0) }

// IsDepthOp reports whether w opens a nested scope (if, switch).
func IsDepthOp(w Word) bool { return contains(depthOps, w.Command()) }

// IsUndepthOp reports whether w closes a nested scope (endif, endswitch).
func IsUndepthOp(w Word) bool { return contains(undepthOps, w.Command()) }

// IsReturnOp reports whether w returns from the current function.
func IsReturnOp(w Word) bool { return contains(returnOps, w.Command()) }

func contains(set []uint32, c uint32) bool {
	for _, v := range set {
		if v == c {
			return true
		}
	}
	return false
}
