package bytecode

// TokenType represents the type of a token
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenIllegal
	TokenNewline

	// Literals
	TokenIdent     // iload, add3, $$helper
	TokenNumber    // 42, -1, 0x10, 1.5e3
	TokenDirective // .method, .end

	// Operators
	TokenAssign // =
)

var tokenNames = map[TokenType]string{
	TokenEOF:       "EOF",
	TokenIllegal:   "ILLEGAL",
	TokenNewline:   "NEWLINE",
	TokenIdent:     "IDENT",
	TokenNumber:    "NUMBER",
	TokenDirective: "DIRECTIVE",
	TokenAssign:    "=",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

// Token represents a lexical token
type Token struct {
	Type    TokenType
	Literal string
	Line    int
	Column  int
}
