package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Token types for the tickflow lexer
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError
	TokenNewline

	// Literals
	TokenInteger    // 42, 0x2A, 0b101010, -1
	TokenString     // "hello"
	TokenUString    // u"hello"
	TokenIdentifier // call, loc_0010
	TokenDirective  // #index, #start, #assets

	// Delimiters
	TokenColon  // :
	TokenComma  // ,
	TokenLAngle // <
	TokenRAngle // >
)

var tokenNames = map[TokenType]string{
	TokenEOF:        "EOF",
	TokenError:      "ERROR",
	TokenNewline:    "NEWLINE",
	TokenInteger:    "INTEGER",
	TokenString:     "STRING",
	TokenUString:    "USTRING",
	TokenIdentifier: "IDENTIFIER",
	TokenDirective:  "DIRECTIVE",
	TokenColon:      ":",
	TokenComma:      ",",
	TokenLAngle:     "<",
	TokenRAngle:     ">",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// Token represents a lexical token. For strings Literal holds the decoded
// text; for directives it holds the name without '#'.
type Token struct {
	Type    TokenType
	Literal string
	Pos     Position
}

func (t Token) String() string {
	switch t.Type {
	case TokenEOF:
		return "EOF"
	case TokenNewline:
		return "NEWLINE"
	case TokenError:
		return fmt.Sprintf("ERROR(%s)", t.Literal)
	}
	if len(t.Literal) > 20 {
		return fmt.Sprintf("%s(%q...)", t.Type, t.Literal[:20])
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}
