package bytecode

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Parser parses bytecode assembly into methods
type Parser struct {
	l         *Lexer
	curToken  Token
	peekToken Token
	errors    []string
}

// NewParser creates a new Parser for the given lexer
func NewParser(l *Lexer) *Parser {
	p := &Parser{l: l}
	// Read two tokens to initialize curToken and peekToken
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses a whole script, returning all syntax errors joined
func Parse(src string) ([]*Method, error) {
	p := NewParser(NewLexer(src))
	methods := p.ParseScript()
	if len(p.Errors()) > 0 {
		errs := make([]error, len(p.Errors()))
		for i, e := range p.Errors() {
			errs[i] = errors.New(e)
		}
		return nil, errors.Join(errs...)
	}
	return methods, nil
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

// Errors returns the list of parsing errors
func (p *Parser) Errors() []string {
	return p.errors
}

func (p *Parser) addError(msg string) {
	p.errors = append(p.errors, fmt.Sprintf("line %d, col %d: %s",
		p.curToken.Line, p.curToken.Column, msg))
}

func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

func (p *Parser) skipNewlines() {
	for p.curTokenIs(TokenNewline) {
		p.nextToken()
	}
}

// skipLine advances past the next line end
func (p *Parser) skipLine() {
	for !p.curTokenIs(TokenNewline) && !p.curTokenIs(TokenEOF) {
		p.nextToken()
	}
	p.nextToken()
}

// endLine expects the current token to end the line
func (p *Parser) endLine() {
	if !p.curTokenIs(TokenNewline) && !p.curTokenIs(TokenEOF) {
		p.addError(fmt.Sprintf("unexpected %q at end of line", p.curToken.Literal))
	}
	p.skipLine()
}

// ParseScript parses methods until EOF
func (p *Parser) ParseScript() []*Method {
	var methods []*Method
	names := make(map[string]int)
	for {
		p.skipNewlines()
		if p.curTokenIs(TokenEOF) {
			return methods
		}
		if !p.curTokenIs(TokenDirective) || p.curToken.Literal != ".method" {
			p.addError(fmt.Sprintf("expected .method, got %q", p.curToken.Literal))
			p.skipLine()
			continue
		}
		m := p.parseMethod()
		if m == nil {
			continue
		}
		if line, dup := names[m.Name]; dup {
			p.errors = append(p.errors, fmt.Sprintf("line %d: method %s already defined on line %d", m.Line, m.Name, line))
			continue
		}
		names[m.Name] = m.Line
		methods = append(methods, m)
	}
}

// parseMethod parses from .method to .end
func (p *Parser) parseMethod() *Method {
	m := &Method{Line: p.curToken.Line}
	p.nextToken()
	if !p.curTokenIs(TokenIdent) {
		p.addError("expected method name")
		p.skipLine()
		return nil
	}
	m.Name = p.curToken.Literal
	p.nextToken()

	for p.curTokenIs(TokenIdent) {
		key := p.curToken.Literal
		p.nextToken()
		if !p.curTokenIs(TokenAssign) {
			p.addError(fmt.Sprintf("expected = after %s", key))
			break
		}
		p.nextToken()
		v, ok := p.parseCount()
		if !ok {
			break
		}
		switch key {
		case "stack":
			m.Stack = v
		case "args":
			m.Args = v
		case "locals":
			m.Locals = v
		default:
			p.addError(fmt.Sprintf("unknown method attribute %s", key))
		}
	}
	p.endLine()
	if m.Args > m.Locals {
		p.errors = append(p.errors, fmt.Sprintf("line %d: method %s has %d argument slots but only %d locals", m.Line, m.Name, m.Args, m.Locals))
	}

	for {
		p.skipNewlines()
		switch {
		case p.curTokenIs(TokenEOF):
			p.addError(fmt.Sprintf("method %s is missing .end", m.Name))
			return nil
		case p.curTokenIs(TokenDirective) && p.curToken.Literal == ".end":
			p.nextToken()
			p.endLine()
			return m
		case p.curTokenIs(TokenIdent):
			if in, ok := p.parseInstruction(m); ok {
				m.Code = append(m.Code, in)
			}
		default:
			p.addError(fmt.Sprintf("expected instruction, got %q", p.curToken.Literal))
			p.skipLine()
		}
	}
}

func (p *Parser) parseCount() (int, bool) {
	if !p.curTokenIs(TokenNumber) {
		p.addError(fmt.Sprintf("expected number, got %q", p.curToken.Literal))
		return 0, false
	}
	v, err := strconv.Atoi(p.curToken.Literal)
	if err != nil || v < 0 {
		p.addError(fmt.Sprintf("invalid count %q", p.curToken.Literal))
		return 0, false
	}
	p.nextToken()
	return v, true
}

// parseInstruction parses one instruction line
func (p *Parser) parseInstruction(m *Method) (Instruction, bool) {
	in := Instruction{Op: strings.ToLower(p.curToken.Literal), Line: p.curToken.Line}
	op, known := opcodes[in.Op]
	if !known {
		p.addError(fmt.Sprintf("unknown opcode %s", p.curToken.Literal))
		p.skipLine()
		return in, false
	}
	p.nextToken()

	ok := true
	switch op.operand {
	case intOperand:
		in.Int, ok = p.parseInt(in.Op == "iconst")
	case localOperand:
		var n int
		n, ok = p.parseCount()
		in.Int = int64(n)
		if ok && n+op.slots > m.Locals {
			p.addError(fmt.Sprintf("%s: local %d out of range (locals=%d)", in.Op, n, m.Locals))
			ok = false
		}
	case floatOperand:
		in.Float, ok = p.parseFloat(in.Op == "fconst")
	case symbolOperand:
		if !p.curTokenIs(TokenIdent) {
			p.addError(fmt.Sprintf("%s needs a symbol", in.Op))
			ok = false
			break
		}
		in.Sym = p.curToken.Literal
		p.nextToken()
	case optionalSymbol:
		if p.curTokenIs(TokenIdent) {
			in.Sym = p.curToken.Literal
			p.nextToken()
		}
	}
	if !ok {
		p.skipLine()
		return in, false
	}
	p.endLine()
	return in, true
}

func (p *Parser) parseInt(is32 bool) (int64, bool) {
	if !p.curTokenIs(TokenNumber) {
		p.addError(fmt.Sprintf("expected integer, got %q", p.curToken.Literal))
		return 0, false
	}
	bits := 64
	if is32 {
		bits = 32
	}
	v, err := strconv.ParseInt(p.curToken.Literal, 0, bits)
	if err != nil {
		p.addError(fmt.Sprintf("invalid %d-bit integer %q", bits, p.curToken.Literal))
		return 0, false
	}
	p.nextToken()
	return v, true
}

// parseFloat accepts decimal literals, NaN and [+-]Infinity
func (p *Parser) parseFloat(is32 bool) (float64, bool) {
	lit := p.curToken.Literal
	var v float64
	switch {
	case p.curTokenIs(TokenIdent) && lit == "NaN":
		v = math.NaN()
	case p.curTokenIs(TokenIdent) && (lit == "Infinity" || lit == "+Infinity"):
		v = math.Inf(1)
	case p.curTokenIs(TokenIdent) && lit == "-Infinity":
		v = math.Inf(-1)
	case p.curTokenIs(TokenNumber):
		bits := 64
		if is32 {
			bits = 32
		}
		f, err := strconv.ParseFloat(lit, bits)
		if err != nil {
			p.addError(fmt.Sprintf("invalid floating point number %q", lit))
			return 0, false
		}
		v = f
	default:
		p.addError(fmt.Sprintf("expected floating point number, got %q", lit))
		return 0, false
	}
	p.nextToken()
	return v, true
}
