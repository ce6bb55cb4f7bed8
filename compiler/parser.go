package compiler

import "strconv"

// ---------------------------------------------------------------------------
// Parser: line-oriented parser for tickflow source
// ---------------------------------------------------------------------------

const (
	maxOpcode = 0x3FF
	maxArg0   = 1<<18 - 1
)

// Parser parses tickflow source into a Program.
type Parser struct {
	lexer     *Lexer
	curToken  Token
	peekToken Token
}

// NewParser creates a new parser for the given input.
func NewParser(input string) *Parser {
	p := &Parser{lexer: NewLexer(input)}
	// Read two tokens to fill curToken and peekToken
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses a complete tickflow file.
func Parse(src string) (*Program, error) {
	return NewParser(src).ParseProgram()
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.lexer.NextToken()
}

func (p *Parser) curTokenIs(t TokenType) bool  { return p.curToken.Type == t }
func (p *Parser) peekTokenIs(t TokenType) bool { return p.peekToken.Type == t }

func (p *Parser) errorf(format string, args ...any) *Error {
	if p.curTokenIs(TokenError) {
		return errorAt(p.curToken.Pos, ErrSyntax, "%s", p.curToken.Literal)
	}
	return errorAt(p.curToken.Pos, ErrSyntax, format, args...)
}

// ParseProgram parses statements until EOF and returns the first error.
func (p *Parser) ParseProgram() (*Program, error) {
	prog := &Program{}
	for !p.curTokenIs(TokenEOF) {
		if err := p.parseLine(prog); err != nil {
			return nil, err
		}
	}
	return prog, nil
}

// parseLine parses: {label ':'} [directive | statement] NEWLINE
func (p *Parser) parseLine(prog *Program) error {
	for p.curTokenIs(TokenIdentifier) && p.peekTokenIs(TokenColon) {
		prog.Statements = append(prog.Statements, &Label{Name: p.curToken.Literal, Pos: p.curToken.Pos})
		p.nextToken()
		p.nextToken()
	}

	switch p.curToken.Type {
	case TokenNewline:
	case TokenEOF:
		return nil
	case TokenDirective:
		if err := p.parseDirective(prog); err != nil {
			return err
		}
	case TokenIdentifier, TokenInteger:
		st, err := p.parseStatement()
		if err != nil {
			return err
		}
		prog.Statements = append(prog.Statements, st)
	default:
		return p.errorf("unexpected %s", p.curToken)
	}

	switch p.curToken.Type {
	case TokenNewline:
		p.nextToken()
	case TokenEOF:
	default:
		return p.errorf("expected end of line, got %s", p.curToken)
	}
	return nil
}

func (p *Parser) parseDirective(prog *Program) error {
	name := p.curToken.Literal
	p.nextToken()
	if !p.curTokenIs(TokenInteger) {
		return p.errorf("#%s expects an integer", name)
	}
	v, err := p.parseUint32()
	if err != nil {
		return err
	}
	switch name {
	case "index":
		prog.Index = v
	case "start":
		prog.Start = &v
	case "assets":
		prog.Assets = &v
	default:
		return errorAt(p.curToken.Pos, ErrSyntax, "unknown directive #%s", name)
	}
	p.nextToken()
	return nil
}

func (p *Parser) parseStatement() (Statement, error) {
	pos := p.curToken.Pos
	if p.curTokenIs(TokenIdentifier) {
		switch p.curToken.Literal {
		case "bytes":
			return p.parseRawBytes(pos)
		case "ints":
			return p.parseRawInts(pos)
		}
	}

	c := &Command{Pos: pos}
	if p.curTokenIs(TokenIdentifier) {
		c.Name = p.curToken.Literal
	} else {
		v, err := p.parseInt()
		if err != nil {
			return nil, err
		}
		if v < 0 || v > maxOpcode {
			return nil, p.errorf("opcode %s out of range", p.curToken.Literal)
		}
		c.Opcode = uint16(v)
	}
	p.nextToken()

	if p.curTokenIs(TokenLAngle) {
		p.nextToken()
		if !p.curTokenIs(TokenInteger) {
			return nil, p.errorf("expected arg0, got %s", p.curToken)
		}
		v, err := p.parseInt()
		if err != nil {
			return nil, err
		}
		if v < 0 || v > maxArg0 {
			return nil, p.errorf("arg0 %s out of range", p.curToken.Literal)
		}
		arg0 := uint32(v)
		c.Arg0 = &arg0
		p.nextToken()
		if !p.curTokenIs(TokenRAngle) {
			return nil, p.errorf("expected '>', got %s", p.curToken)
		}
		p.nextToken()
	}

	if p.atLineEnd() {
		return c, nil
	}
	for {
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		c.Args = append(c.Args, v)
		if !p.curTokenIs(TokenComma) {
			return c, nil
		}
		p.nextToken()
	}
}

func (p *Parser) parseValue() (Value, error) {
	tok := p.curToken
	switch tok.Type {
	case TokenInteger:
		v, err := p.parseInt32()
		if err != nil {
			return nil, err
		}
		p.nextToken()
		return IntValue(v), nil
	case TokenIdentifier:
		p.nextToken()
		return LabelRef(tok.Literal), nil
	case TokenString:
		p.nextToken()
		return StringRef{Text: tok.Literal}, nil
	case TokenUString:
		p.nextToken()
		return StringRef{Text: tok.Literal, Unicode: true}, nil
	default:
		return nil, p.errorf("expected argument, got %s", tok)
	}
}

func (p *Parser) parseRawBytes(pos Position) (Statement, error) {
	st := &RawBytes{Pos: pos}
	p.nextToken()
	err := p.parseIntList(func() error {
		v, err := p.parseInt()
		if err != nil {
			return err
		}
		if v < -0x80 || v > 0xFF {
			return p.errorf("byte %s out of range", p.curToken.Literal)
		}
		st.Data = append(st.Data, byte(v))
		return nil
	})
	return st, err
}

func (p *Parser) parseRawInts(pos Position) (Statement, error) {
	st := &RawInts{Pos: pos}
	p.nextToken()
	err := p.parseIntList(func() error {
		v, err := p.parseInt32()
		if err != nil {
			return err
		}
		st.Data = append(st.Data, v)
		return nil
	})
	return st, err
}

// parseIntList calls item for each integer of a comma separated list.
func (p *Parser) parseIntList(item func() error) error {
	for !p.atLineEnd() {
		if !p.curTokenIs(TokenInteger) {
			return p.errorf("expected integer, got %s", p.curToken)
		}
		if err := item(); err != nil {
			return err
		}
		p.nextToken()
		if !p.curTokenIs(TokenComma) {
			break
		}
		p.nextToken()
	}
	return nil
}

func (p *Parser) atLineEnd() bool {
	return p.curTokenIs(TokenNewline) || p.curTokenIs(TokenEOF)
}

// parseInt converts the current integer literal: decimal, 0x, 0b or 0o,
// optionally negative.
func (p *Parser) parseInt() (int64, error) {
	v, err := strconv.ParseInt(p.curToken.Literal, 0, 64)
	if err != nil {
		return 0, p.errorf("invalid integer %s", p.curToken.Literal)
	}
	return v, nil
}

// parseInt32 accepts the signed and unsigned 32-bit ranges, so 0xFFFFFFFF
// and -1 are the same word.
func (p *Parser) parseInt32() (int32, error) {
	v, err := p.parseInt()
	if err != nil {
		return 0, err
	}
	if v < -1<<31 || v > 1<<32-1 {
		return 0, p.errorf("integer %s out of 32-bit range", p.curToken.Literal)
	}
	return int32(uint32(v)), nil
}

func (p *Parser) parseUint32() (uint32, error) {
	v, err := p.parseInt()
	if err != nil {
		return 0, err
	}
	if v < 0 || v > 1<<32-1 {
		return 0, p.errorf("integer %s out of range", p.curToken.Literal)
	}
	return uint32(v), nil
}
