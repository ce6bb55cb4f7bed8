package compiler

import "github.com/chazu/tickflow/pkg/bytecode"

// resolve applies the catalog entry for c. Raw commands (no name) take
// their arguments as written.
func resolve(c *Command) (*instr, error) {
	if c.Name == "" {
		var arg0 uint32
		if c.Arg0 != nil {
			arg0 = *c.Arg0
		}
		return build(c, c.Opcode, arg0, c.Args)
	}

	def, ok := LookupCommand(c.Name)
	if !ok {
		return nil, commandError(c, -1, ErrUndefinedCommand, "")
	}
	args := c.Args

	var arg0 uint32
	switch def.Arg0 {
	case Arg0Fixed:
		if c.Arg0 != nil {
			return nil, commandError(c, -1, ErrArg0Conflict, "arg0 is %#x", def.Value)
		}
		arg0 = def.Value
	case Arg0Required:
		switch {
		case c.Arg0 != nil:
			arg0 = *c.Arg0
		case len(args) == len(def.Slots)+1 && isInt(args[0]):
			// "rest 0x30" is shorthand for "rest<0x30>".
			arg0 = uint32(int32(args[0].(IntValue)))
			args = args[1:]
		default:
			return nil, commandError(c, -1, ErrMissingArg0, "")
		}
	case Arg0Optional:
		if c.Arg0 != nil {
			arg0 = *c.Arg0
		}
	}

	if lo := def.FirstOptional(); len(args) < lo || len(args) > len(def.Slots) {
		if lo == len(def.Slots) {
			return nil, commandError(c, -1, ErrWrongArgCount, "got %d, want %d", len(args), lo)
		}
		return nil, commandError(c, -1, ErrWrongArgCount, "got %d, want %d to %d", len(args), lo, len(def.Slots))
	}

	full := make([]Value, len(def.Slots))
	for i, slot := range def.Slots {
		if i >= len(args) {
			full[i] = IntValue(slot.Default)
			continue
		}
		if !kindMatches(slot.Kind, args[i]) {
			return nil, commandError(c, i, ErrWrongArgType, "got %s, want %s", kindName(args[i]), slot.Kind)
		}
		full[i] = args[i]
	}
	return build(c, def.Opcode, arg0, full)
}

func build(c *Command, opcode uint16, arg0 uint32, args []Value) (*instr, error) {
	w, err := bytecode.MakeWord(opcode, len(args), arg0)
	if err != nil {
		return nil, commandError(c, -1, bytecode.ErrTooManyArgs, "%d arguments (max %d)", len(args), bytecode.MaxArgs)
	}
	return &instr{cmd: c, word: w, args: args}, nil
}

func isInt(v Value) bool {
	_, ok := v.(IntValue)
	return ok
}

func kindMatches(k ArgKind, v Value) bool {
	switch v := v.(type) {
	case IntValue:
		return k == ArgInt
	case LabelRef:
		return k == ArgLabel
	case StringRef:
		if v.Unicode {
			return k == ArgUString
		}
		return k == ArgAString
	}
	return false
}
