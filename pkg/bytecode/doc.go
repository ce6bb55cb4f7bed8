// Package bytecode holds the data model shared by the tickflow assembler,
// the image extractor and the BTKS container writer.
//
// Tickflow is the stack-machine bytecode that drives scripted event
// sequences in the game engine. Every instruction is a 32-bit little-endian
// word followed by up to 15 32-bit arguments:
//
//	bits  0-9   opcode
//	bits 10-13  argument count
//	bits 14-31  arg0, a sub-variant selector
//
// # Linked binaries
//
// The assembler produces a linked binary ("Tickompiler .bin"):
//
//   - Header: index, start offset, assets offset (three u32 words)
//   - Code: instruction words and arguments. An instruction whose arguments
//     contain code pointers or string pointers is preceded by an argument
//     annotation record: 0xFFFFFFFF, a count, then one word per annotated
//     argument holding (slot << 8) | tag.
//   - 0xFFFFFFFE, then the string pool.
//
// Offsets stored in arguments never count annotation records: they are
// offsets into the code as it looks once the annotations are removed, and
// string pointers are code length plus the offset into the pool.
//
// # Opcode classes
//
// The extractor discovers control flow only through the instruction set's
// own conventions: call-class ops carry an absolute target address, the
// scene op selects which string ops are active, depth and undepth ops open
// and close nested scopes, and a return op at depth zero ends a function.
// The tables in opcodes.go list them.
package bytecode
