package bytecode

import (
	"unicode"
)

// Lexer tokenizes bytecode assembly. Line ends are significant: every
// instruction and directive is terminated by a TokenNewline.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // next reading position
	ch      byte // current character
	line    int
	column  int
}

// NewLexer creates a new Lexer for the given input
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input, line: 1, column: 0}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0 // EOF
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
	l.column++
}

func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

// NextToken returns the next token from the input
func (l *Lexer) NextToken() Token {
	l.skipSpace()
	l.skipComment()

	tok := Token{Line: l.line, Column: l.column}

	switch l.ch {
	case 0:
		tok.Type = TokenEOF
		return tok
	case '\n':
		tok.Type = TokenNewline
		tok.Literal = "\n"
		l.readChar()
		l.line++
		l.column = 1
		return tok
	case '=':
		tok.Type = TokenAssign
		tok.Literal = "="
	case '.':
		if isLetter(l.peekChar()) {
			l.readChar()
			tok.Type = TokenDirective
			tok.Literal = "." + l.readIdentifier()
			return tok
		}
		tok.Type = TokenNumber
		tok.Literal = l.readNumber()
		return tok
	case '-', '+':
		if isDigit(l.peekChar()) || l.peekChar() == '.' {
			tok.Type = TokenNumber
			tok.Literal = l.readNumber()
			return tok
		}
		if isLetter(l.peekChar()) {
			// -Infinity
			pos := l.pos
			l.readChar()
			l.readIdentifier()
			tok.Type = TokenIdent
			tok.Literal = l.input[pos:l.pos]
			return tok
		}
		tok.Type = TokenIllegal
		tok.Literal = string(l.ch)
	default:
		if isLetter(l.ch) {
			tok.Type = TokenIdent
			tok.Literal = l.readIdentifier()
			return tok
		} else if isDigit(l.ch) {
			tok.Type = TokenNumber
			tok.Literal = l.readNumber()
			return tok
		}
		tok.Type = TokenIllegal
		tok.Literal = string(l.ch)
	}

	l.readChar()
	return tok
}

func (l *Lexer) skipSpace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\r' {
		l.readChar()
	}
}

// skipComment skips a # or ; comment up to, not including, the line end
func (l *Lexer) skipComment() {
	if l.ch != '#' && l.ch != ';' {
		return
	}
	for l.ch != '\n' && l.ch != 0 {
		l.readChar()
	}
}

func (l *Lexer) readIdentifier() string {
	pos := l.pos
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '$' || l.ch == '.' || l.ch == '/' {
		l.readChar()
	}
	return l.input[pos:l.pos]
}

// readNumber reads decimal and hex integers and decimal floats with an
// optional sign and exponent. Validation is left to the parser.
func (l *Lexer) readNumber() string {
	pos := l.pos
	if l.ch == '-' || l.ch == '+' {
		l.readChar()
	}
	for isDigit(l.ch) || isHexLetter(l.ch) || l.ch == 'x' || l.ch == 'X' || l.ch == '.' {
		if (l.ch == 'e' || l.ch == 'E') && (l.peekChar() == '-' || l.peekChar() == '+') {
			l.readChar()
		}
		l.readChar()
	}
	return l.input[pos:l.pos]
}

func isLetter(ch byte) bool {
	return unicode.IsLetter(rune(ch)) || ch == '_' || ch == '$'
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

func isHexLetter(ch byte) bool {
	return ('a' <= ch && ch <= 'f') || ('A' <= ch && ch <= 'F')
}
