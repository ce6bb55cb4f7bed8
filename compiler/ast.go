package compiler

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Statement list: the assembler's input
// ---------------------------------------------------------------------------

// Position is a location in tickflow source.
type Position struct {
	Line   int // 1-based
	Column int // 1-based
}

func (p Position) String() string {
	if p.Line == 0 {
		return "-"
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Program is a parsed tickflow file.
type Program struct {
	Index  uint32  // value of #index
	Start  *uint32 // #start override, nil to use the "start" label
	Assets *uint32 // #assets override, nil to use the "assets" label

	Statements []Statement
}

// Statement is a Label, Command, RawBytes or RawInts.
type Statement interface {
	stmtNode()
	Position() Position
}

// Label marks the current code offset.
type Label struct {
	Name string
	Pos  Position
}

// Command is one instruction. Name is looked up in the command catalog;
// when Name is empty Opcode is used as is.
type Command struct {
	Name   string
	Opcode uint16
	Arg0   *uint32 // explicit <arg0>, nil when absent
	Args   []Value
	Pos    Position
}

// RawBytes is emitted verbatim and zero padded to 4 bytes.
type RawBytes struct {
	Data []byte
	Pos  Position
}

// RawInts is emitted verbatim as little-endian words.
type RawInts struct {
	Data []int32
	Pos  Position
}

func (*Label) stmtNode() {}
func (*Command) stmtNode() {}
func (*RawBytes) stmtNode() {}
func (*RawInts) stmtNode() {}

func (s *Label) Position() Position { return s.Pos }
func (s *Command) Position() Position { return s.Pos }
func (s *RawBytes) Position() Position { return s.Pos }
func (s *RawInts) Position() Position { return s.Pos }

// DisplayName returns the command name, or the opcode in hex for raw commands.
func (c *Command) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return fmt.Sprintf("0x%X", c.Opcode)
}

// ---------------------------------------------------------------------------
// Argument values
// ---------------------------------------------------------------------------

// Value is an argument: IntValue, LabelRef or StringRef.
type Value interface {
	valueNode()
	String() string
}

// IntValue is a plain 32-bit integer argument.
type IntValue int32

// LabelRef resolves to the code offset of a label.
type LabelRef string

// StringRef resolves to the offset of its text in the string pool.
type StringRef struct {
	Text    string
	Unicode bool
}

func (IntValue) valueNode() {}
func (LabelRef) valueNode() {}
func (StringRef) valueNode() {}

func (v IntValue) String() string { return fmt.Sprintf("%d", int32(v)) }
func (v LabelRef) String() string { return string(v) }

func (v StringRef) String() string {
	if v.Unicode {
		return "u" + quote(v.Text)
	}
	return quote(v.Text)
}

// quote renders text as a tickflow string literal. Bytes that are not
// printable UTF-8 are written as \xHH so the literal reads back exactly.
func quote(text string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for i := 0; i < len(text); {
		c := text[i]
		switch c {
		case '"', '\\':
			sb.WriteByte('\\')
			sb.WriteByte(c)
			i++
			continue
		case '\n':
			sb.WriteString(`\n`)
			i++
			continue
		case '\t':
			sb.WriteString(`\t`)
			i++
			continue
		case '\r':
			sb.WriteString(`\r`)
			i++
			continue
		}
		r, size := utf8.DecodeRuneInString(text[i:])
		if r < 0x20 || r == 0x7F || (r == utf8.RuneError && size == 1) {
			for j := 0; j < size; j++ {
				fmt.Fprintf(&sb, `\x%02X`, text[i+j])
			}
		} else {
			sb.WriteString(text[i : i+size])
		}
		i += size
	}
	sb.WriteByte('"')
	return sb.String()
}

// kindName names the kind of a value for error messages.
func kindName(v Value) string {
	switch v := v.(type) {
	case IntValue:
		return "integer"
	case LabelRef:
		return "label"
	case StringRef:
		if v.Unicode {
			return "unicode string"
		}
		return "ascii string"
	default:
		return fmt.Sprintf("%T", v)
	}
}
