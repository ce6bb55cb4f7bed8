package compiler

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer: tokenizer for tickflow source
// ---------------------------------------------------------------------------

// Lexer tokenizes tickflow source. Newlines are significant: each
// statement ends at one.
type Lexer struct {
	input     string
	pos       int  // current position in input
	readPos   int  // reading position (after current char)
	ch        rune // current character
	line      int  // current line (1-based)
	lineStart int  // offset of current line start
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input, line: 1}
	l.readChar()
	return l
}

// readChar reads the next character.
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.lineStart = l.readPos
	}
	if l.readPos >= len(l.input) {
		l.ch = 0 // EOF
		l.pos = l.readPos
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
	l.ch = r
	l.pos = l.readPos
	l.readPos += size
}

// peekChar returns the next character without consuming it.
func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPos:])
	return r
}

func (l *Lexer) position() Position {
	return Position{Line: l.line, Column: l.pos - l.lineStart + 1}
}

// NextToken returns the next token.
func (l *Lexer) NextToken() Token {
	l.skipSpaceAndComments()
	pos := l.position()

	switch {
	case l.pos >= len(l.input):
		return Token{Type: TokenEOF, Pos: pos}

	case l.ch == '\n':
		l.readChar()
		return Token{Type: TokenNewline, Literal: "\n", Pos: pos}

	case l.ch == ':':
		l.readChar()
		return Token{Type: TokenColon, Literal: ":", Pos: pos}

	case l.ch == ',':
		l.readChar()
		return Token{Type: TokenComma, Literal: ",", Pos: pos}

	case l.ch == '<':
		l.readChar()
		return Token{Type: TokenLAngle, Literal: "<", Pos: pos}

	case l.ch == '>':
		l.readChar()
		return Token{Type: TokenRAngle, Literal: ">", Pos: pos}

	case l.ch == '"':
		return l.readString(pos, TokenString)

	case l.ch == 'u' && l.peekChar() == '"':
		l.readChar()
		return l.readString(pos, TokenUString)

	case l.ch == '#':
		l.readChar()
		if !isIdentStart(l.ch) {
			return Token{Type: TokenError, Literal: "expected directive name after '#'", Pos: pos}
		}
		return Token{Type: TokenDirective, Literal: l.readIdent(), Pos: pos}

	case isDigit(l.ch) || (l.ch == '-' && isDigit(l.peekChar())):
		return l.readNumber(pos)

	case isIdentStart(l.ch):
		return Token{Type: TokenIdentifier, Literal: l.readIdent(), Pos: pos}

	default:
		ch := l.ch
		l.readChar()
		return Token{Type: TokenError, Literal: fmt.Sprintf("unexpected character: %q", ch), Pos: pos}
	}
}

// skipSpaceAndComments skips blanks and // comments, stopping at newlines.
func (l *Lexer) skipSpaceAndComments() {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\r' {
			l.readChar()
		}
		if l.ch == '/' && l.peekChar() == '/' {
			for l.ch != '\n' && l.pos < len(l.input) {
				l.readChar()
			}
			continue
		}
		return
	}
}

func (l *Lexer) readIdent() string {
	start := l.pos
	for isIdentPart(l.ch) {
		l.readChar()
	}
	return l.input[start:l.pos]
}

// readNumber reads the literal text of an integer. Conversion happens in
// the parser so that range errors carry the full literal.
func (l *Lexer) readNumber(pos Position) Token {
	start := l.pos
	if l.ch == '-' {
		l.readChar()
	}
	for isIdentPart(l.ch) {
		l.readChar()
	}
	return Token{Type: TokenInteger, Literal: l.input[start:l.pos], Pos: pos}
}

// readString reads a double-quoted literal and decodes its escapes.
func (l *Lexer) readString(pos Position, typ TokenType) Token {
	l.readChar() // opening quote
	var sb strings.Builder
	for {
		switch {
		case l.pos >= len(l.input) || l.ch == '\n':
			return Token{Type: TokenError, Literal: "unterminated string", Pos: pos}
		case l.ch == '"':
			l.readChar()
			return Token{Type: typ, Literal: sb.String(), Pos: pos}
		case l.ch == '\\':
			l.readChar()
			switch l.ch {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case '"', '\\':
				sb.WriteRune(l.ch)
			case 'x':
				hi, lo := l.peekChar(), rune(0)
				l.readChar()
				if l.readPos < len(l.input) {
					lo = rune(l.input[l.readPos])
				}
				if !isHex(hi) || !isHex(lo) {
					return Token{Type: TokenError, Literal: `invalid \x escape`, Pos: pos}
				}
				l.readChar()
				sb.WriteByte(byte(hexVal(hi)<<4 | hexVal(lo)))
			default:
				return Token{Type: TokenError, Literal: fmt.Sprintf("unknown escape \\%c", l.ch), Pos: pos}
			}
			l.readChar()
		default:
			// Copy raw bytes so invalid UTF-8 survives unchanged.
			sb.WriteString(l.input[l.pos:l.readPos])
			l.readChar()
		}
	}
}

func isDigit(ch rune) bool { return ch >= '0' && ch <= '9' }

func isHex(ch rune) bool {
	return isDigit(ch) || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')
}

func hexVal(ch rune) int {
	switch {
	case isDigit(ch):
		return int(ch - '0')
	case ch >= 'a' && ch <= 'f':
		return int(ch-'a') + 10
	default:
		return int(ch-'A') + 10
	}
}

func isIdentStart(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
}

func isIdentPart(ch rune) bool {
	return isIdentStart(ch) || isDigit(ch) || ch == '.'
}
