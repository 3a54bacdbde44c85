package expr

import "fmt"

// TokenType classifies a lexed token.
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenIdent
	TokenString
	TokenNumber
	TokenVarRef
	TokenLParen
	TokenRParen
	TokenCompare
	TokenAssign

	// Condition keywords.
	TokenElement
	TokenText
	TokenState
	TokenVariable
	TokenCheck
	TokenTextOp
	TokenPageState
	TokenAnd
	TokenOr
	TokenNot
	TokenIs
	TokenIf

	// Loop keywords.
	TokenWhile
	TokenRepeat
	TokenTimes
	TokenFor
	TokenEach
	TokenIn

	// Variable operation keywords.
	TokenSet
	TokenIncrement
	TokenExtract
	TokenDelete
	TokenFrom
	TokenBy
	TokenTo
)

var tokenNames = map[TokenType]string{
	TokenEOF:       "end of input",
	TokenIdent:     "identifier",
	TokenString:    "string",
	TokenNumber:    "number",
	TokenVarRef:    "variable reference",
	TokenLParen:    "'('",
	TokenRParen:    "')'",
	TokenCompare:   "comparison operator",
	TokenAssign:    "'='",
	TokenElement:   "element",
	TokenText:      "text",
	TokenState:     "state",
	TokenVariable:  "variable",
	TokenCheck:     "element check",
	TokenTextOp:    "text operator",
	TokenPageState: "page state",
	TokenAnd:       "and",
	TokenOr:        "or",
	TokenNot:       "not",
	TokenIs:        "is",
	TokenIf:        "if",
	TokenWhile:     "while",
	TokenRepeat:    "repeat",
	TokenTimes:     "times",
	TokenFor:       "for",
	TokenEach:      "each",
	TokenIn:        "in",
	TokenSet:       "set",
	TokenIncrement: "increment",
	TokenExtract:   "extract",
	TokenDelete:    "delete",
	TokenFrom:      "from",
	TokenBy:        "by",
	TokenTo:        "to",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("token(%d)", int(t))
}

// Token is a lexed unit. Value holds the canonical form: the decoded text of a
// string, the name of a variable reference, or the canonical word of a keyword.
type Token struct {
	Type  TokenType
	Text  string
	Value string
	Pos   int
}

// ParseError reports a lexing or parsing failure at a byte offset of Input.
type ParseError struct {
	Input   string
	Pos     int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at position %d: %s", e.Pos, e.Message)
}

func errorf(input string, pos int, format string, args ...any) *ParseError {
	return &ParseError{Input: input, Pos: pos, Message: fmt.Sprintf(format, args...)}
}
