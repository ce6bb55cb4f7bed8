package compiler

// ---------------------------------------------------------------------------
// Command catalog: mnemonic -> opcode, arg0 policy and argument slots
// ---------------------------------------------------------------------------

// ArgKind is the declared type of an argument slot.
type ArgKind uint8

const (
	ArgInt ArgKind = iota
	ArgLabel
	ArgAString
	ArgUString
)

func (k ArgKind) String() string {
	switch k {
	case ArgInt:
		return "integer"
	case ArgLabel:
		return "label"
	case ArgAString:
		return "ascii string"
	case ArgUString:
		return "unicode string"
	default:
		return "unknown"
	}
}

// ArgType is an argument slot. Optional slots are integers with a default
// and may only trail the required ones.
type ArgType struct {
	Kind     ArgKind
	Optional bool
	Default  int32
}

// Arg0Policy says where an opcode's sub-variant selector comes from.
type Arg0Policy uint8

const (
	// Arg0Fixed: the catalog supplies arg0; callers may not.
	Arg0Fixed Arg0Policy = iota
	// Arg0Required: callers must supply arg0.
	Arg0Required
	// Arg0Optional: callers may supply arg0, defaulting to 0.
	Arg0Optional
)

// CommandDef describes one named command.
type CommandDef struct {
	Opcode uint16
	Arg0   Arg0Policy
	Value  uint32 // arg0 when Arg0 is Arg0Fixed
	Slots  []ArgType
}

// FirstOptional returns the index of the first optional slot, or the slot
// count when every slot is required.
func (d *CommandDef) FirstOptional() int {
	for i, s := range d.Slots {
		if s.Optional {
			return i
		}
	}
	return len(d.Slots)
}

var (
	tInt  = ArgType{Kind: ArgInt}
	tLbl  = ArgType{Kind: ArgLabel}
	tAStr = ArgType{Kind: ArgAString}
	tUStr = ArgType{Kind: ArgUString}
)

func opt(v int32) ArgType { return ArgType{Kind: ArgInt, Optional: true, Default: v} }

func set(op uint16, arg0 uint32, slots ...ArgType) CommandDef {
	return CommandDef{Opcode: op, Arg0: Arg0Fixed, Value: arg0, Slots: slots}
}

func free(op uint16, slots ...ArgType) CommandDef {
	return CommandDef{Opcode: op, Arg0: Arg0Optional, Slots: slots}
}

func arg(op uint16, slots ...ArgType) CommandDef {
	return CommandDef{Opcode: op, Arg0: Arg0Required, Slots: slots}
}

type namedDef struct {
	name string
	def  CommandDef
}

// catalogOrder is the catalog in declaration order. The disassembler picks
// the first matching entry, so more specific names come first.
var catalogOrder = []namedDef{
	{"async_sub", free(0x0, tInt, opt(0), opt(2000))},
	{"get_async", set(0x1, 0, tInt, opt(0))},
	{"set_func", set(0x1, 1, tInt, tLbl)},
	{"async_call", free(0x2, tLbl, opt(0))},
	{"kill_all", set(0x3, 0)},
	{"kill_cat", set(0x3, 1, tInt)},
	{"kill_loc", set(0x3, 2, tLbl)},
	{"kill_sub", set(0x3, 3, tInt)},
	{"sub", free(0x4, tInt)},
	{"get_sync", free(0x5, tInt)},
	{"call", free(0x6, tLbl)},
	{"return", free(0x7)},
	{"stop", free(0x8)},
	{"set_cat", free(0x9, tInt)},
	{"set_condvar", free(0xA, tInt)},
	{"add_condvar", free(0xB, tInt)},
	{"push_condvar", free(0xC)},
	{"pop_condvar", free(0xD)},
	{"rest", arg(0xE)},
	{"setrest", set(0xF, 0, tInt, tInt)},
	{"getrest", set(0xF, 1, tInt)},
	{"rest_reset", free(0x11)},
	{"unrest", arg(0x12)},
	{"label", arg(0x14)},
	{"goto", arg(0x15)},
	{"if", set(0x16, 0, tInt)},
	{"if_neq", set(0x16, 1, tInt)},
	{"if_lt", set(0x16, 2, tInt)},
	{"if_leq", set(0x16, 3, tInt)},
	{"if_gt", set(0x16, 4, tInt)},
	{"if_geq", set(0x16, 5, tInt)},
	{"else", free(0x17)},
	{"endif", free(0x18)},
	{"switch", free(0x19)},
	{"case", arg(0x1A)},
	{"break", free(0x1B)},
	{"default", free(0x1C)},
	{"endswitch", free(0x1D)},
	{"set_countdown", set(0x1E, 0, tInt)},
	{"set_countdown_condvar", set(0x1E, 1)},
	{"get_countdown_init", set(0x1E, 2)},
	{"get_countdown_prog", set(0x1E, 3)},
	{"get_countdown", set(0x1E, 4)},
	{"dec_countdown", set(0x1E, 5)},
	{"speed", free(0x24, tInt)},
	{"speed_relative", free(0x25, tInt, tInt, tInt)},
	{"engine", free(0x28, tInt)},
	{"game_model", set(0x2A, 0, tInt, tInt)},
	{"game_cellanim", set(0x2A, 2, tInt, tInt)},
	{"game_effect", set(0x2A, 3, tInt, tInt)},
	{"game_layout", set(0x2A, 4, tInt, tInt)},
	{"set_model", set(0x31, 0, tInt, tUStr, opt(1))},
	{"remove_model", set(0x31, 1, tInt)},
	{"has_model", set(0x31, 2, tInt)},
	{"set_cellanim", set(0x35, 0, tInt, tUStr, opt(-1))},
	{"cellanim_busy", set(0x35, 1, tInt)},
	{"remove_cellanim", set(0x35, 3, tInt)},
	{"set_effect", set(0x39, 0, tInt, tUStr, opt(-1))},
	{"effect_busy", set(0x39, 1, tInt)},
	{"remove_effect", set(0x39, 7, tInt)},
	{"set_layout", set(0x3E, 0, tInt, tUStr, opt(-1))},
	{"layout_busy", set(0x3E, 1, tInt)},
	{"remove_layout", set(0x3E, 7, tInt)},
	{"play_sfx", free(0x40, tInt)},
	{"set_sfx", free(0x5D, tInt, tUStr)},
	{"remove_sfx", free(0x5F, tInt)},
	{"input", free(0x6A, tInt)},
	{"fade", free(0x7D, tInt, tInt, tInt)},
	{"zoom", set(0x7E, 0, tInt, tInt, tInt)},
	{"zoom_gradual", set(0x7E, 1, tInt, tInt, tInt, tInt, tInt, tInt)},
	{"pan", set(0x7F, 0, tInt, tInt, tInt)},
	{"pan_gradual", set(0x7F, 1, tInt, tInt, tInt, tInt, tInt, tInt)},
	{"rotate", set(0x80, 0, tInt, tInt)},
	{"rotate_gradual", set(0x80, 1, tInt, tInt, tInt, tInt, tInt)},
	{"star", free(0xAE, tInt)},
	{"debug", free(0xB5, tAStr)},
}

var catalog = func() map[string]*CommandDef {
	m := make(map[string]*CommandDef, len(catalogOrder))
	for i := range catalogOrder {
		m[catalogOrder[i].name] = &catalogOrder[i].def
	}
	return m
}()

// LookupCommand returns the catalog entry for name.
func LookupCommand(name string) (*CommandDef, bool) {
	d, ok := catalog[name]
	return d, ok
}

// commandsFor returns the catalog entries that can encode opcode with the
// given arg0, in declaration order, fixed selectors first.
func commandsFor(opcode uint16, arg0 uint32) []namedDef {
	var fixed, free []namedDef
	for _, nd := range catalogOrder {
		if nd.def.Opcode != opcode {
			continue
		}
		switch nd.def.Arg0 {
		case Arg0Fixed:
			if nd.def.Value == arg0 {
				fixed = append(fixed, nd)
			}
		default:
			free = append(free, nd)
		}
	}
	return append(fixed, free...)
}

// CommandName returns the first catalog name that encodes opcode with arg0.
func CommandName(opcode uint16, arg0 uint32) (string, bool) {
	if defs := commandsFor(opcode, arg0); len(defs) > 0 {
		return defs[0].name, true
	}
	return "", false
}
